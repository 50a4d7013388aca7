// Package signing resolves the marketplace's offer-signing key from its
// supported sources: a raw hex key, an encrypted keystore file, or an AWS
// Secrets Manager secret.
package signing

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/ethereum/go-ethereum/accounts/keystore"
	"github.com/ethereum/go-ethereum/crypto"
	"golang.org/x/term"
)

// KeyFromEnv loads the marketplace signing key from environment variables
// following this strategy:
//   - If MARKETD_PRIVATE_KEY is set, it takes priority. It is expected to be a
//     hex-encoded Ethereum account private key.
//   - If MARKETD_AWS_SECRET_ID is set, the key hex is fetched from that AWS
//     Secrets Manager secret using the default credential chain.
//   - If MARKETD_KEYSTORE is set, it is expected to be a path to a keystore
//     file. If MARKETD_KEYSTORE_PASSWORD is also set, that is used as the
//     password to decrypt the keystore. Otherwise the user is prompted.
func KeyFromEnv(ctx context.Context) (*ecdsa.PrivateKey, error) {
	if privateKeyHex := os.Getenv("MARKETD_PRIVATE_KEY"); privateKeyHex != "" {
		return PrivateKey(privateKeyHex)
	}

	if secretID := os.Getenv("MARKETD_AWS_SECRET_ID"); secretID != "" {
		return PrivateKeyFromSecretsManager(ctx, secretID)
	}

	keystoreFile := os.Getenv("MARKETD_KEYSTORE")
	if keystoreFile == "" {
		return nil, errors.New("one of MARKETD_PRIVATE_KEY, MARKETD_AWS_SECRET_ID or MARKETD_KEYSTORE must be set")
	}

	prompt := false
	keystorePassword, ok := os.LookupEnv("MARKETD_KEYSTORE_PASSWORD")
	if !ok {
		prompt = true
	}
	return PrivateKeyFromKeystoreFile(keystoreFile, keystorePassword, prompt)
}

// PrivateKey decodes a private key from its hex representation.
func PrivateKey(privateKeyHex string) (*ecdsa.PrivateKey, error) {
	trimmed := strings.TrimPrefix(strings.TrimSpace(privateKeyHex), "0x")
	return crypto.HexToECDSA(trimmed)
}

// PrivateKeyFromKeystoreFile loads a private key from a keystore file. If
// prompt is true, the user will be interactively prompted for the password to
// the keystore file even if the password variable is nonempty.
func PrivateKeyFromKeystoreFile(keystoreFile, password string, prompt bool) (*ecdsa.PrivateKey, error) {
	keystoreContent, readErr := os.ReadFile(keystoreFile)
	if readErr != nil {
		return nil, readErr
	}

	if prompt {
		fmt.Printf("Please provide a password for keystore (%s): ", keystoreFile)
		passwordRaw, inputErr := term.ReadPassword(int(os.Stdin.Fd()))
		if inputErr != nil {
			return nil, fmt.Errorf("error reading password: %s", inputErr.Error())
		}
		fmt.Print("\n")
		password = string(passwordRaw)
	}

	key, err := keystore.DecryptKey(keystoreContent, password)
	if err != nil {
		return nil, err
	}
	return key.PrivateKey, nil
}

// PrivateKeyFromSecretsManager fetches a hex-encoded private key stored as an
// AWS Secrets Manager secret string.
func PrivateKeyFromSecretsManager(ctx context.Context, secretID string) (*ecdsa.PrivateKey, error) {
	awsConfig, configErr := config.LoadDefaultConfig(ctx)
	if configErr != nil {
		return nil, fmt.Errorf("error loading AWS configuration: %w", configErr)
	}

	client := secretsmanager.NewFromConfig(awsConfig)
	secret, getErr := client.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{
		SecretId: aws.String(secretID),
	})
	if getErr != nil {
		return nil, fmt.Errorf("error fetching secret %s: %w", secretID, getErr)
	}
	if secret.SecretString == nil {
		return nil, fmt.Errorf("secret %s does not contain a string value", secretID)
	}

	return PrivateKey(*secret.SecretString)
}
