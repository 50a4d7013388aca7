package service

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/bitgalleries/marketplace/market"
)

func parseSignature(value string) ([]byte, error) {
	normalized := strings.TrimPrefix(strings.TrimSpace(value), "0x")
	signature, err := hex.DecodeString(normalized)
	if err != nil {
		return nil, fmt.Errorf("error parsing signature: %v", err)
	}
	if len(signature) == 0 {
		return nil, errors.New("error parsing signature: empty")
	}
	return signature, nil
}

// statusForError maps the engine's error taxonomy onto HTTP status codes.
func statusForError(err error) int {
	switch {
	case errors.Is(err, market.ErrInvalidCounterparty),
		errors.Is(err, market.ErrInvalidOrUsedSignature):
		return http.StatusForbidden
	case errors.Is(err, market.ErrInsufficientPayment):
		return http.StatusPaymentRequired
	case errors.Is(err, market.ErrInvalidDuration),
		errors.Is(err, market.ErrDurationOverflow):
		return http.StatusBadRequest
	case errors.Is(err, market.ErrAlreadyRented):
		return http.StatusConflict
	case errors.Is(err, market.ErrUnknownAsset):
		return http.StatusNotFound
	case errors.Is(err, market.ErrPaused):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeEngineError(w http.ResponseWriter, err error) {
	status := statusForError(err)
	if status == http.StatusInternalServerError {
		log.Printf("redemption error: %s", err.Error())
		writeJSON(w, status, ErrorResponse{Error: "Internal server error"})
		return
	}
	writeJSON(w, status, ErrorResponse{Error: err.Error()})
}

// PingHandler responds with the status of the service itself.
func PingHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, PingResponse{Status: "ok"})
}

func (s *Service) StatusHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, StatusResponse{
		ChainID:           s.engine.Encoder().ChainID(),
		VerifyingContract: s.engine.Encoder().VerifyingContract().Hex(),
		AssetCount:        s.engine.CurrentAssetCount(),
		Paused:            s.gate.Paused(),
	})
}

func (s *Service) AddressHandler(w http.ResponseWriter, r *http.Request) {
	if s.signingKey == nil {
		writeJSON(w, http.StatusServiceUnavailable, ErrorResponse{Error: "no signing key configured"})
		return
	}
	writeJSON(w, http.StatusOK, AddressResponse{
		Address: crypto.PubkeyToAddress(s.signingKey.PublicKey).Hex(),
	})
}

func (s *Service) SaleHandler(w http.ResponseWriter, r *http.Request) {
	var request SaleRequest
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		http.Error(w, "Error decoding request", http.StatusBadRequest)
		return
	}

	parameters := &SaleParameters{}
	if err := parameters.Parse(&request); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	receipt, err := s.engine.Sale(parameters.Caller, parameters.To, parameters.Offer, parameters.Payment, parameters.Signature)
	if err != nil {
		writeEngineError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, SaleResponse{
		Lister:     receipt.Lister.Hex(),
		Recipient:  receipt.Recipient.Hex(),
		Price:      receipt.Price.String(),
		TokenID:    receipt.TokenID,
		ContentURI: receipt.ContentURI,
	})
}

func (s *Service) RentWithMintHandler(w http.ResponseWriter, r *http.Request) {
	var request RentWithMintRequest
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		http.Error(w, "Error decoding request", http.StatusBadRequest)
		return
	}

	parameters := &RentWithMintParameters{}
	if err := parameters.Parse(&request); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	receipt, err := s.engine.RentWithMint(parameters.Caller, parameters.To, parameters.Offer, parameters.RentDuration, parameters.Payment, parameters.Signature)
	if err != nil {
		writeEngineError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, rentResponse(receipt))
}

func (s *Service) RentHandler(w http.ResponseWriter, r *http.Request) {
	var request RentRequest
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		http.Error(w, "Error decoding request", http.StatusBadRequest)
		return
	}

	parameters := &RentParameters{}
	if err := parameters.Parse(&request); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	receipt, err := s.engine.Rent(parameters.Caller, parameters.To, parameters.Offer, parameters.RentDuration, parameters.Payment, parameters.Signature)
	if err != nil {
		writeEngineError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, rentResponse(receipt))
}

func rentResponse(receipt *market.RentReceipt) RentResponse {
	return RentResponse{
		Lister:     receipt.Lister.Hex(),
		Recipient:  receipt.Recipient.Hex(),
		TotalPrice: receipt.TotalPrice.String(),
		TokenID:    receipt.TokenID,
		ContentURI: receipt.ContentURI,
		ExpiresAt:  receipt.ExpiresAt,
	}
}

// SignatureHandler reports whether a signature was already consumed, so
// indexers can detect stale offers before submission.
func (s *Service) SignatureHandler(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("signature")
	signature, err := parseSignature(raw)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusOK, SignatureResponse{
		Signature: "0x" + hex.EncodeToString(signature),
		Consumed:  s.engine.IsSignatureConsumed(signature),
	})
}

// DepositHandler credits an account on the in-process payment ledger. It
// models funds arriving from outside the marketplace.
func (s *Service) DepositHandler(w http.ResponseWriter, r *http.Request) {
	var request DepositRequest
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		http.Error(w, "Error decoding request", http.StatusBadRequest)
		return
	}

	account, err := parseAddress("account", request.Account)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	amount, err := parseBig("amount", request.Amount)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	s.bank.Deposit(account, amount)
	writeJSON(w, http.StatusOK, BalanceResponse{
		Account: account.Hex(),
		Balance: s.bank.BalanceOf(account).String(),
	})
}

func (s *Service) BalanceHandler(w http.ResponseWriter, r *http.Request) {
	account, err := parseAddress("account", r.URL.Query().Get("account"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusOK, BalanceResponse{
		Account: account.Hex(),
		Balance: s.bank.BalanceOf(account).String(),
	})
}

// AuthorizeHandler signs an offer with the service's own key, for listers
// that delegate authorization to this instance.
func (s *Service) AuthorizeHandler(w http.ResponseWriter, r *http.Request) {
	if s.signingKey == nil {
		writeJSON(w, http.StatusServiceUnavailable, ErrorResponse{Error: "no signing key configured"})
		return
	}

	var request AuthorizeRequest
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		http.Error(w, "Error decoding request", http.StatusBadRequest)
		return
	}

	lister := crypto.PubkeyToAddress(s.signingKey.PublicKey)
	digest, err := s.authorizeDigest(lister, &request)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	signature, err := market.SignDigest(digest, s.signingKey, false)
	if err != nil {
		log.Printf("failed to create signature, err: %s", err.Error())
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, AuthorizeResponse{
		Request:   &request,
		Digest:    hex.EncodeToString(digest),
		Signer:    lister.Hex(),
		Signature: hex.EncodeToString(signature),
	})
}

func (s *Service) authorizeDigest(lister common.Address, request *AuthorizeRequest) ([]byte, error) {
	nonce, err := parseUint64("nonce", request.Nonce)
	if err != nil {
		return nil, err
	}

	switch request.Kind {
	case "sale":
		price, err := parseBig("price", request.Price)
		if err != nil {
			return nil, err
		}
		return s.engine.Encoder().SaleOfferDigest(market.SaleOffer{
			Lister:     lister,
			Price:      price,
			ContentURI: request.ContentURI,
			Nonce:      nonce,
		})
	case "rent_with_mint":
		offer := market.MintRentalOffer{Lister: lister, ContentURI: request.ContentURI, Nonce: nonce}
		if offer.PricePerUnit, err = parseBig("pricePerUnit", request.PricePerUnit); err != nil {
			return nil, err
		}
		if offer.TimeUnit, err = parseUint64("timeUnit", request.TimeUnit); err != nil {
			return nil, err
		}
		if offer.MinDuration, err = parseUint64("minDuration", request.MinDuration); err != nil {
			return nil, err
		}
		if offer.MaxDuration, err = parseUint64("maxDuration", request.MaxDuration); err != nil {
			return nil, err
		}
		return s.engine.Encoder().MintRentalOfferDigest(offer)
	case "rent":
		offer := market.RentalOffer{Lister: lister, Nonce: nonce}
		if offer.TokenID, err = parseUint64("tokenID", request.TokenID); err != nil {
			return nil, err
		}
		if offer.PricePerUnit, err = parseBig("pricePerUnit", request.PricePerUnit); err != nil {
			return nil, err
		}
		if offer.TimeUnit, err = parseUint64("timeUnit", request.TimeUnit); err != nil {
			return nil, err
		}
		if offer.MinDuration, err = parseUint64("minDuration", request.MinDuration); err != nil {
			return nil, err
		}
		if offer.MaxDuration, err = parseUint64("maxDuration", request.MaxDuration); err != nil {
			return nil, err
		}
		return s.engine.Encoder().RentalOfferDigest(offer)
	default:
		return nil, fmt.Errorf("unknown offer kind: %s", request.Kind)
	}
}
