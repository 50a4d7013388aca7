// Package onchain validates signatures from smart-contract signer accounts by
// calling the account's own EIP-1271 isValidSignature entry point over an
// Ethereum JSON-RPC provider.
package onchain

import (
	"bytes"
	"context"
	"errors"
	"math/big"
	"os"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
)

// isValidSignature(bytes32,bytes) and its EIP-1271 magic return value.
var (
	isValidSignatureSelector = crypto.Keccak256([]byte("isValidSignature(bytes32,bytes)"))[:4]
	magicValue               = []byte{0x16, 0x26, 0xba, 0x7e}
)

// ContractCaller is the subset of the Ethereum client the verifier needs.
// *ethclient.Client satisfies it.
type ContractCaller interface {
	CallContract(ctx context.Context, call ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
}

// ERC1271Verifier checks contract-account signatures via eth_call. It
// implements market.ContractSignerVerifier.
type ERC1271Verifier struct {
	client      ContractCaller
	callTimeout time.Duration
}

// NewERC1271Verifier wraps an Ethereum contract caller.
func NewERC1271Verifier(client ContractCaller) *ERC1271Verifier {
	return &ERC1271Verifier{client: client, callTimeout: 10 * time.Second}
}

// NewERC1271VerifierFromEnv dials the provider named by
// MARKETD_HTTP_PROVIDER_URL.
func NewERC1271VerifierFromEnv() (*ERC1271Verifier, error) {
	providerURL := os.Getenv("MARKETD_HTTP_PROVIDER_URL")
	if providerURL == "" {
		return nil, errors.New("MARKETD_HTTP_PROVIDER_URL must be set")
	}
	client, err := ethclient.Dial(providerURL)
	if err != nil {
		return nil, err
	}
	return NewERC1271Verifier(client), nil
}

// IsValidSignature reports whether the signer contract accepts the signature
// for the digest. Any call failure or non-magic return reports false; the
// redemption engine treats false as a rejection, not a fatal error.
func (v *ERC1271Verifier) IsValidSignature(signer common.Address, digest, signature []byte) bool {
	if len(digest) != 32 {
		return false
	}

	ctx, cancel := context.WithTimeout(context.Background(), v.callTimeout)
	defer cancel()

	data := packIsValidSignature(digest, signature)
	result, err := v.client.CallContract(ctx, ethereum.CallMsg{To: &signer, Data: data}, nil)
	if err != nil {
		return false
	}
	return len(result) >= 4 && bytes.Equal(result[:4], magicValue)
}

// packIsValidSignature ABI-encodes the call data by hand: a static bytes32
// followed by a dynamic bytes argument at offset 0x40.
func packIsValidSignature(digest, signature []byte) []byte {
	padded := len(signature)
	if rem := padded % 32; rem != 0 {
		padded += 32 - rem
	}

	data := make([]byte, 0, 4+32+32+32+padded)
	data = append(data, isValidSignatureSelector...)
	data = append(data, digest...)

	var word [32]byte
	big.NewInt(0x40).FillBytes(word[:])
	data = append(data, word[:]...)

	big.NewInt(int64(len(signature))).FillBytes(word[:])
	data = append(data, word[:]...)

	data = append(data, signature...)
	data = append(data, make([]byte, padded-len(signature))...)
	return data
}
