// Package service exposes the marketplace redemption engine over HTTP.
package service

import (
	"bytes"
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"io"
	"log"
	"math/big"
	"net"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/bitgalleries/marketplace/market"
	"github.com/bitgalleries/marketplace/signing"
	"github.com/bitgalleries/marketplace/store"
)

var CORS_ALLOWED_ORIGINS = os.Getenv("MARKETD_CORS_ALLOWED_ORIGINS")

// Service owns a redemption engine wired to in-process ledgers and, when
// configured, a durable replay-guard store and an offer-signing key.
type Service struct {
	engine     *market.Engine
	bank       *market.MemoryPaymentLedger
	gate       *market.PauseSwitch
	signatures *store.SignatureStore
	signingKey *ecdsa.PrivateKey
}

// logEmitter writes every redemption record to the process log.
type logEmitter struct{}

func (logEmitter) Emit(event *market.Event) {
	if event == nil {
		return
	}
	log.Printf("%s lister=%s recipient=%s tokenId=%s", event.Type,
		event.Attributes["lister"], event.Attributes["recipient"], event.Attributes["tokenId"])
}

// ConfigureFromEnv builds a service from environment variables:
//   - MARKETD_CHAIN_ID (required): chain identity bound into offer digests.
//   - MARKETD_CONTRACT_ADDRESS (required): verifying instance address.
//   - MARKETD_VAULT_ADDRESS (optional): settlement vault account; defaults to
//     the verifying instance address.
//   - MARKETD_SIGNATURE_DB (optional): path to the BoltDB replay-guard store.
//   - Signing key variables per the signing package (optional; /authorize and
//     /address are disabled without a key).
func ConfigureFromEnv(ctx context.Context) (*Service, error) {
	chainIDRaw := os.Getenv("MARKETD_CHAIN_ID")
	if chainIDRaw == "" {
		return nil, errors.New("MARKETD_CHAIN_ID must be set")
	}
	chainID, parsed := new(big.Int).SetString(chainIDRaw, 0)
	if !parsed {
		return nil, fmt.Errorf("MARKETD_CHAIN_ID must be a valid integer, got %s", chainIDRaw)
	}

	contractRaw := os.Getenv("MARKETD_CONTRACT_ADDRESS")
	contract := common.HexToAddress(contractRaw)
	if contract == (common.Address{}) {
		return nil, errors.New("MARKETD_CONTRACT_ADDRESS must be set to a non-zero address")
	}

	vault := contract
	if vaultRaw := os.Getenv("MARKETD_VAULT_ADDRESS"); vaultRaw != "" {
		vault = common.HexToAddress(vaultRaw)
	}

	svc := &Service{
		bank: market.NewMemoryPaymentLedger(),
		gate: &market.PauseSwitch{},
	}

	svc.engine = market.NewEngine(
		market.Config{ChainID: chainID, VerifyingContract: contract, Vault: vault},
		market.NewMemoryOwnershipLedger(),
		market.NewMemoryUsageRightLedger(),
		svc.bank,
	)
	svc.engine.SetPauseGate(svc.gate)
	svc.engine.SetRoyaltyRegistry(market.NewMemoryRoyaltyRegistry())
	svc.engine.SetEmitter(logEmitter{})

	if dbPath := os.Getenv("MARKETD_SIGNATURE_DB"); dbPath != "" {
		signatures, err := store.Open(dbPath, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to open signature store: %w", err)
		}
		svc.signatures = signatures
		svc.engine.SetSignatureStore(signatures)
	}

	key, keyErr := signing.KeyFromEnv(ctx)
	if keyErr == nil {
		svc.signingKey = key
	} else {
		log.Printf("running without a signing key: %s", keyErr.Error())
	}

	return svc, nil
}

// Close releases the durable signature store, if one was opened.
func (s *Service) Close() error {
	if s.signatures == nil {
		return nil
	}
	return s.signatures.Close()
}

// Handler assembles the route table with the middleware chain applied.
func (s *Service) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/ping", PingHandler)
	mux.HandleFunc("/status", s.StatusHandler)
	mux.HandleFunc("/address", s.AddressHandler)
	mux.HandleFunc("/sale", s.SaleHandler)
	mux.HandleFunc("/rent_with_mint", s.RentWithMintHandler)
	mux.HandleFunc("/rent", s.RentHandler)
	mux.HandleFunc("/signature", s.SignatureHandler)
	mux.HandleFunc("/deposit", s.DepositHandler)
	mux.HandleFunc("/balance", s.BalanceHandler)
	mux.HandleFunc("/authorize", s.AuthorizeHandler)

	// Set middleware, from bottom to top
	handler := corsMiddleware(mux)
	handler = logMiddleware(handler)
	handler = panicMiddleware(handler)
	return handler
}

// corsMiddleware handles CORS origin check
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodOptions {
			for _, allowedOrigin := range strings.Split(CORS_ALLOWED_ORIGINS, ",") {
				if allowedOrigin != "" && r.Header.Get("Origin") == allowedOrigin {
					w.Header().Set("Access-Control-Allow-Origin", allowedOrigin)
					w.Header().Set("Access-Control-Allow-Methods", "GET,POST")
					w.Header().Set("Access-Control-Allow-Credentials", "true")
					w.Header().Set("Access-Control-Allow-Headers", "Authorization, Content-Type")
				}
			}
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// logMiddleware logs access requests in proper format
func logMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		if err != nil {
			http.Error(w, "Unable to read body", http.StatusBadRequest)
			return
		}
		r.Body = io.NopCloser(bytes.NewBuffer(body))
		if len(body) > 0 {
			defer r.Body.Close()
		}

		next.ServeHTTP(w, r)

		var ip string
		realIp := r.Header["X-Real-Ip"]
		if len(realIp) == 0 {
			ip, _, err = net.SplitHostPort(r.RemoteAddr)
			if err != nil {
				http.Error(w, fmt.Sprintf("Unable to parse client IP: %s", r.RemoteAddr), http.StatusBadRequest)
				return
			}
		} else {
			ip = realIp[0]
		}

		log.Printf("marketd %s %s - %s\n", ip, r.Method, r.URL.Path)
	})
}

// panicMiddleware handles panic errors to prevent server shutdown
func panicMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				log.Println("recovered panic error", err)
				http.Error(w, "Internal server error", 500)
			}
		}()

		next.ServeHTTP(w, r)
	})
}

// RunServer configures a service from the environment and serves it until the
// listener fails.
func RunServer(ctx context.Context, serverHost string, serverPort int) error {
	svc, err := ConfigureFromEnv(ctx)
	if err != nil {
		return fmt.Errorf("failed to configure service, err: %v", err)
	}
	defer svc.Close()

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", serverHost, serverPort),
		Handler:      svc.Handler(),
		ReadTimeout:  40 * time.Second,
		WriteTimeout: 40 * time.Second,
	}

	log.Printf("Starting marketd server on: %s:%d", serverHost, serverPort)
	if err := server.ListenAndServe(); err != nil {
		return fmt.Errorf("failed to start server listener, err: %v", err)
	}
	return nil
}
