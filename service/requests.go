package service

import (
	"fmt"
	"math/big"
	"strconv"

	"github.com/ethereum/go-ethereum/common"

	"github.com/bitgalleries/marketplace/market"
)

type PingResponse struct {
	Status string `json:"status"`
}

type StatusResponse struct {
	ChainID           *big.Int `json:"chainID"`
	VerifyingContract string   `json:"verifyingContract"`
	AssetCount        uint64   `json:"assetCount"`
	Paused            bool     `json:"paused"`
}

type AddressResponse struct {
	Address string `json:"address"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}

// SaleRequest is the wire form of a sale redemption. Integers travel as
// strings so clients are not bound to JSON number precision.
type SaleRequest struct {
	Caller     string `json:"caller"`
	To         string `json:"to"`
	Lister     string `json:"lister"`
	Price      string `json:"price"`
	ContentURI string `json:"contentURI"`
	Nonce      string `json:"nonce"`
	Payment    string `json:"payment"`
	Signature  string `json:"signature"`
}

// RentWithMintRequest is the wire form of a rent-with-mint redemption.
type RentWithMintRequest struct {
	Caller       string `json:"caller"`
	To           string `json:"to"`
	Lister       string `json:"lister"`
	PricePerUnit string `json:"pricePerUnit"`
	TimeUnit     string `json:"timeUnit"`
	MinDuration  string `json:"minDuration"`
	MaxDuration  string `json:"maxDuration"`
	RentDuration string `json:"rentDuration"`
	ContentURI   string `json:"contentURI"`
	Nonce        string `json:"nonce"`
	Payment      string `json:"payment"`
	Signature    string `json:"signature"`
}

// RentRequest is the wire form of an existing-asset rental redemption.
type RentRequest struct {
	Caller       string `json:"caller"`
	To           string `json:"to"`
	Lister       string `json:"lister"`
	TokenID      string `json:"tokenID"`
	PricePerUnit string `json:"pricePerUnit"`
	TimeUnit     string `json:"timeUnit"`
	MinDuration  string `json:"minDuration"`
	MaxDuration  string `json:"maxDuration"`
	RentDuration string `json:"rentDuration"`
	Nonce        string `json:"nonce"`
	Payment      string `json:"payment"`
	Signature    string `json:"signature"`
}

type SaleResponse struct {
	Lister     string `json:"lister"`
	Recipient  string `json:"recipient"`
	Price      string `json:"price"`
	TokenID    uint64 `json:"tokenID"`
	ContentURI string `json:"contentURI"`
}

type RentResponse struct {
	Lister     string `json:"lister"`
	Recipient  string `json:"recipient"`
	TotalPrice string `json:"totalPrice"`
	TokenID    uint64 `json:"tokenID"`
	ContentURI string `json:"contentURI"`
	ExpiresAt  int64  `json:"expiresAt"`
}

type SignatureResponse struct {
	Signature string `json:"signature"`
	Consumed  bool   `json:"consumed"`
}

type DepositRequest struct {
	Account string `json:"account"`
	Amount  string `json:"amount"`
}

type BalanceResponse struct {
	Account string `json:"account"`
	Balance string `json:"balance"`
}

// AuthorizeRequest asks the service to sign an offer with its own key. Kind
// selects the payload schema; fields not used by the kind are ignored.
type AuthorizeRequest struct {
	Kind         string `json:"kind"`
	Price        string `json:"price"`
	TokenID      string `json:"tokenID"`
	PricePerUnit string `json:"pricePerUnit"`
	TimeUnit     string `json:"timeUnit"`
	MinDuration  string `json:"minDuration"`
	MaxDuration  string `json:"maxDuration"`
	ContentURI   string `json:"contentURI"`
	Nonce        string `json:"nonce"`
}

type AuthorizeResponse struct {
	Request   *AuthorizeRequest `json:"request"`
	Digest    string            `json:"digest"`
	Signer    string            `json:"signer"`
	Signature string            `json:"signature"`
}

func parseAddress(field, value string) (common.Address, error) {
	if !common.IsHexAddress(value) {
		return common.Address{}, fmt.Errorf("error parsing %s: %s", field, value)
	}
	return common.HexToAddress(value), nil
}

func parseBig(field, value string) (*big.Int, error) {
	if value == "" {
		return big.NewInt(0), nil
	}
	parsed, ok := new(big.Int).SetString(value, 0)
	if !ok || parsed.Sign() < 0 {
		return nil, fmt.Errorf("error parsing %s: %s", field, value)
	}
	return parsed, nil
}

func parseUint64(field, value string) (uint64, error) {
	if value == "" {
		return 0, nil
	}
	parsed, err := strconv.ParseUint(value, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("error parsing %s: %s", field, value)
	}
	return parsed, nil
}

// SaleParameters is the typed form of SaleRequest.
type SaleParameters struct {
	Caller    common.Address
	To        common.Address
	Offer     market.SaleOffer
	Payment   *big.Int
	Signature []byte
}

func (p *SaleParameters) Parse(request *SaleRequest) error {
	var err error
	if p.Caller, err = parseAddress("caller", request.Caller); err != nil {
		return err
	}
	if p.To, err = parseAddress("to", request.To); err != nil {
		return err
	}
	if p.Offer.Lister, err = parseAddress("lister", request.Lister); err != nil {
		return err
	}
	if p.Offer.Price, err = parseBig("price", request.Price); err != nil {
		return err
	}
	p.Offer.ContentURI = request.ContentURI
	if p.Offer.Nonce, err = parseUint64("nonce", request.Nonce); err != nil {
		return err
	}
	if p.Payment, err = parseBig("payment", request.Payment); err != nil {
		return err
	}
	if p.Signature, err = parseSignature(request.Signature); err != nil {
		return err
	}
	return nil
}

// RentWithMintParameters is the typed form of RentWithMintRequest.
type RentWithMintParameters struct {
	Caller       common.Address
	To           common.Address
	Offer        market.MintRentalOffer
	RentDuration uint64
	Payment      *big.Int
	Signature    []byte
}

func (p *RentWithMintParameters) Parse(request *RentWithMintRequest) error {
	var err error
	if p.Caller, err = parseAddress("caller", request.Caller); err != nil {
		return err
	}
	if p.To, err = parseAddress("to", request.To); err != nil {
		return err
	}
	if p.Offer.Lister, err = parseAddress("lister", request.Lister); err != nil {
		return err
	}
	if p.Offer.PricePerUnit, err = parseBig("pricePerUnit", request.PricePerUnit); err != nil {
		return err
	}
	if p.Offer.TimeUnit, err = parseUint64("timeUnit", request.TimeUnit); err != nil {
		return err
	}
	if p.Offer.MinDuration, err = parseUint64("minDuration", request.MinDuration); err != nil {
		return err
	}
	if p.Offer.MaxDuration, err = parseUint64("maxDuration", request.MaxDuration); err != nil {
		return err
	}
	if p.RentDuration, err = parseUint64("rentDuration", request.RentDuration); err != nil {
		return err
	}
	p.Offer.ContentURI = request.ContentURI
	if p.Offer.Nonce, err = parseUint64("nonce", request.Nonce); err != nil {
		return err
	}
	if p.Payment, err = parseBig("payment", request.Payment); err != nil {
		return err
	}
	if p.Signature, err = parseSignature(request.Signature); err != nil {
		return err
	}
	return nil
}

// RentParameters is the typed form of RentRequest.
type RentParameters struct {
	Caller       common.Address
	To           common.Address
	Offer        market.RentalOffer
	RentDuration uint64
	Payment      *big.Int
	Signature    []byte
}

func (p *RentParameters) Parse(request *RentRequest) error {
	var err error
	if p.Caller, err = parseAddress("caller", request.Caller); err != nil {
		return err
	}
	if p.To, err = parseAddress("to", request.To); err != nil {
		return err
	}
	if p.Offer.Lister, err = parseAddress("lister", request.Lister); err != nil {
		return err
	}
	if p.Offer.TokenID, err = parseUint64("tokenID", request.TokenID); err != nil {
		return err
	}
	if p.Offer.PricePerUnit, err = parseBig("pricePerUnit", request.PricePerUnit); err != nil {
		return err
	}
	if p.Offer.TimeUnit, err = parseUint64("timeUnit", request.TimeUnit); err != nil {
		return err
	}
	if p.Offer.MinDuration, err = parseUint64("minDuration", request.MinDuration); err != nil {
		return err
	}
	if p.Offer.MaxDuration, err = parseUint64("maxDuration", request.MaxDuration); err != nil {
		return err
	}
	if p.RentDuration, err = parseUint64("rentDuration", request.RentDuration); err != nil {
		return err
	}
	if p.Offer.Nonce, err = parseUint64("nonce", request.Nonce); err != nil {
		return err
	}
	if p.Payment, err = parseBig("payment", request.Payment); err != nil {
		return err
	}
	if p.Signature, err = parseSignature(request.Signature); err != nil {
		return err
	}
	return nil
}
