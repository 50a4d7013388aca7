package main

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"os"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/spf13/cobra"

	"github.com/bitgalleries/marketplace/market"
	"github.com/bitgalleries/marketplace/service"
	"github.com/bitgalleries/marketplace/signing"
)

var marketdVersion = "0.1.0"

// offerFlags collects the offer fields shared by the sign and hash commands.
type offerFlags struct {
	kind         string
	chainID      string
	contract     string
	price        string
	tokenID      uint64
	pricePerUnit string
	timeUnit     uint64
	minDuration  uint64
	maxDuration  uint64
	contentURI   string
	nonce        uint64
}

func (f *offerFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.kind, "kind", "sale", "Offer kind: sale, rent_with_mint or rent")
	cmd.Flags().StringVar(&f.chainID, "chain-id", "1", "Chain identity the offer is bound to")
	cmd.Flags().StringVar(&f.contract, "contract", "", "Verifying instance address the offer is bound to")
	cmd.Flags().StringVar(&f.price, "price", "0", "Sale price")
	cmd.Flags().Uint64Var(&f.tokenID, "token-id", 0, "Existing asset identifier (rent only)")
	cmd.Flags().StringVar(&f.pricePerUnit, "price-per-unit", "0", "Rental price per time unit")
	cmd.Flags().Uint64Var(&f.timeUnit, "time-unit", 1, "Rental time unit in seconds")
	cmd.Flags().Uint64Var(&f.minDuration, "min-duration", 0, "Minimum rental duration in seconds")
	cmd.Flags().Uint64Var(&f.maxDuration, "max-duration", 0, "Maximum rental duration in seconds")
	cmd.Flags().StringVar(&f.contentURI, "content-uri", "", "Content URI of the asset")
	cmd.Flags().Uint64Var(&f.nonce, "nonce", 0, "Uniqueness nonce chosen by the lister")
}

func (f *offerFlags) encoder() (*market.Encoder, error) {
	chainID, ok := new(big.Int).SetString(f.chainID, 0)
	if !ok {
		return nil, fmt.Errorf("invalid chain id: %s", f.chainID)
	}
	if !common.IsHexAddress(f.contract) {
		return nil, errors.New("--contract must be a valid address")
	}
	return market.NewEncoder(chainID, common.HexToAddress(f.contract)), nil
}

func (f *offerFlags) digest(enc *market.Encoder, lister common.Address) ([]byte, error) {
	switch f.kind {
	case "sale":
		price, ok := new(big.Int).SetString(f.price, 0)
		if !ok {
			return nil, fmt.Errorf("invalid price: %s", f.price)
		}
		return enc.SaleOfferDigest(market.SaleOffer{
			Lister:     lister,
			Price:      price,
			ContentURI: f.contentURI,
			Nonce:      f.nonce,
		})
	case "rent_with_mint":
		pricePerUnit, ok := new(big.Int).SetString(f.pricePerUnit, 0)
		if !ok {
			return nil, fmt.Errorf("invalid price per unit: %s", f.pricePerUnit)
		}
		return enc.MintRentalOfferDigest(market.MintRentalOffer{
			Lister:       lister,
			PricePerUnit: pricePerUnit,
			TimeUnit:     f.timeUnit,
			MinDuration:  f.minDuration,
			MaxDuration:  f.maxDuration,
			ContentURI:   f.contentURI,
			Nonce:        f.nonce,
		})
	case "rent":
		pricePerUnit, ok := new(big.Int).SetString(f.pricePerUnit, 0)
		if !ok {
			return nil, fmt.Errorf("invalid price per unit: %s", f.pricePerUnit)
		}
		return enc.RentalOfferDigest(market.RentalOffer{
			Lister:       lister,
			TokenID:      f.tokenID,
			PricePerUnit: pricePerUnit,
			TimeUnit:     f.timeUnit,
			MinDuration:  f.minDuration,
			MaxDuration:  f.maxDuration,
			Nonce:        f.nonce,
		})
	default:
		return nil, fmt.Errorf("unknown offer kind: %s", f.kind)
	}
}

func rootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "marketd",
		Short: "Signature-authorized lazy-minting marketplace",
	}
	root.AddCommand(serveCommand(), signCommand(), hashCommand(), versionCommand())
	return root
}

func serveCommand() *cobra.Command {
	var host string
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the marketplace redemption API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return service.RunServer(cmd.Context(), host, port)
		},
	}
	cmd.Flags().StringVar(&host, "host", "127.0.0.1", "Host to bind the server to")
	cmd.Flags().IntVar(&port, "port", 8412, "Port to bind the server to")
	return cmd
}

func signCommand() *cobra.Command {
	flags := &offerFlags{}

	cmd := &cobra.Command{
		Use:   "sign",
		Short: "Sign an offer with the key resolved from the environment",
		RunE: func(cmd *cobra.Command, args []string) error {
			enc, err := flags.encoder()
			if err != nil {
				return err
			}
			key, err := signing.KeyFromEnv(cmd.Context())
			if err != nil {
				return err
			}
			lister := crypto.PubkeyToAddress(key.PublicKey)
			digest, err := flags.digest(enc, lister)
			if err != nil {
				return err
			}
			signature, err := market.SignDigest(digest, key, false)
			if err != nil {
				return err
			}
			return json.NewEncoder(os.Stdout).Encode(map[string]string{
				"kind":      flags.kind,
				"lister":    lister.Hex(),
				"digest":    "0x" + hex.EncodeToString(digest),
				"signature": "0x" + hex.EncodeToString(signature),
			})
		},
	}
	flags.register(cmd)
	return cmd
}

func hashCommand() *cobra.Command {
	flags := &offerFlags{}
	var lister string

	cmd := &cobra.Command{
		Use:   "hash",
		Short: "Print the canonical digest of an offer",
		RunE: func(cmd *cobra.Command, args []string) error {
			enc, err := flags.encoder()
			if err != nil {
				return err
			}
			if !common.IsHexAddress(lister) {
				return errors.New("--lister must be a valid address")
			}
			digest, err := flags.digest(enc, common.HexToAddress(lister))
			if err != nil {
				return err
			}
			fmt.Println("0x" + hex.EncodeToString(digest))
			return nil
		},
	}
	flags.register(cmd)
	cmd.Flags().StringVar(&lister, "lister", "", "Lister address the offer binds to")
	return cmd
}

func versionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the marketd version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println(marketdVersion)
		},
	}
}
