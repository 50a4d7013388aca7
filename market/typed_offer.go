package market

import (
	"crypto/ecdsa"
	"math/big"
	"strconv"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
)

// These must match the EIP-712 domain pinned by offer-signing clients. Any
// change produces unrelated digests and invalidates every outstanding offer.
var EIP712DomainName = "bitgalleries-market"
var EIP712DomainVersion = "0.0.1"

var EIP712Domain []apitypes.Type = []apitypes.Type{
	{Name: "name", Type: "string"},
	{Name: "version", Type: "string"},
	{Name: "chainId", Type: "uint256"},
	{Name: "verifyingContract", Type: "address"},
}

// One payload schema per offer kind. The distinct primary type names keep two
// kinds with identical field values from ever colliding on digest.
var SaleOfferPayload []apitypes.Type = []apitypes.Type{
	{Name: "lister", Type: "address"},
	{Name: "price", Type: "uint256"},
	{Name: "contentURI", Type: "string"},
	{Name: "nonce", Type: "uint256"},
}

var MintRentalOfferPayload []apitypes.Type = []apitypes.Type{
	{Name: "lister", Type: "address"},
	{Name: "pricePerUnit", Type: "uint256"},
	{Name: "timeUnit", Type: "uint256"},
	{Name: "minDuration", Type: "uint256"},
	{Name: "maxDuration", Type: "uint256"},
	{Name: "contentURI", Type: "string"},
	{Name: "nonce", Type: "uint256"},
}

var RentalOfferPayload []apitypes.Type = []apitypes.Type{
	{Name: "lister", Type: "address"},
	{Name: "tokenId", Type: "uint256"},
	{Name: "pricePerUnit", Type: "uint256"},
	{Name: "timeUnit", Type: "uint256"},
	{Name: "minDuration", Type: "uint256"},
	{Name: "maxDuration", Type: "uint256"},
	{Name: "nonce", Type: "uint256"},
}

// Encoder produces the canonical digest for each offer kind, bound to one
// chain and one verifying instance. Both inputs are fixed at construction.
type Encoder struct {
	chainID           *big.Int
	verifyingContract common.Address
}

// NewEncoder binds an encoder to a chain identity and a deployed instance
// address.
func NewEncoder(chainID *big.Int, verifyingContract common.Address) *Encoder {
	return &Encoder{
		chainID:           new(big.Int).Set(chainID),
		verifyingContract: verifyingContract,
	}
}

// ChainID returns the chain identity the encoder is bound to.
func (enc *Encoder) ChainID() *big.Int {
	return new(big.Int).Set(enc.chainID)
}

// VerifyingContract returns the instance address the encoder is bound to.
func (enc *Encoder) VerifyingContract() common.Address {
	return enc.verifyingContract
}

func (enc *Encoder) hash(primaryType string, payload []apitypes.Type, message apitypes.TypedDataMessage) ([]byte, error) {
	data := apitypes.TypedData{
		Types: apitypes.Types{
			"EIP712Domain": EIP712Domain,
			primaryType:    payload,
		},
		PrimaryType: primaryType,
		Domain: apitypes.TypedDataDomain{
			Name:              EIP712DomainName,
			Version:           EIP712DomainVersion,
			ChainId:           (*math.HexOrDecimal256)(enc.chainID),
			VerifyingContract: enc.verifyingContract.Hex(),
		},
		Message: message,
	}

	digest, _, err := apitypes.TypedDataAndHash(data)
	return digest, err
}

// SaleOfferDigest returns the digest a lister signs to authorize a sale.
func (enc *Encoder) SaleOfferDigest(offer SaleOffer) ([]byte, error) {
	// SaleOffer(address lister,uint256 price,string contentURI,uint256 nonce)
	return enc.hash("SaleOffer", SaleOfferPayload, apitypes.TypedDataMessage{
		"lister":     offer.Lister.Hex(),
		"price":      bigString(offer.Price),
		"contentURI": offer.ContentURI,
		"nonce":      strconv.FormatUint(offer.Nonce, 10),
	})
}

// MintRentalOfferDigest returns the digest a lister signs to authorize a
// rental of a yet-to-be-minted asset.
func (enc *Encoder) MintRentalOfferDigest(offer MintRentalOffer) ([]byte, error) {
	// MintRentalOffer(address lister,uint256 pricePerUnit,uint256 timeUnit,uint256 minDuration,uint256 maxDuration,string contentURI,uint256 nonce)
	return enc.hash("MintRentalOffer", MintRentalOfferPayload, apitypes.TypedDataMessage{
		"lister":       offer.Lister.Hex(),
		"pricePerUnit": bigString(offer.PricePerUnit),
		"timeUnit":     strconv.FormatUint(offer.TimeUnit, 10),
		"minDuration":  strconv.FormatUint(offer.MinDuration, 10),
		"maxDuration":  strconv.FormatUint(offer.MaxDuration, 10),
		"contentURI":   offer.ContentURI,
		"nonce":        strconv.FormatUint(offer.Nonce, 10),
	})
}

// RentalOfferDigest returns the digest a lister signs to authorize a rental
// of an existing asset.
func (enc *Encoder) RentalOfferDigest(offer RentalOffer) ([]byte, error) {
	// RentalOffer(address lister,uint256 tokenId,uint256 pricePerUnit,uint256 timeUnit,uint256 minDuration,uint256 maxDuration,uint256 nonce)
	return enc.hash("RentalOffer", RentalOfferPayload, apitypes.TypedDataMessage{
		"lister":       offer.Lister.Hex(),
		"tokenId":      strconv.FormatUint(offer.TokenID, 10),
		"pricePerUnit": bigString(offer.PricePerUnit),
		"timeUnit":     strconv.FormatUint(offer.TimeUnit, 10),
		"minDuration":  strconv.FormatUint(offer.MinDuration, 10),
		"maxDuration":  strconv.FormatUint(offer.MaxDuration, 10),
		"nonce":        strconv.FormatUint(offer.Nonce, 10),
	})
}

func bigString(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}

// SignDigest signs a 32-byte digest with the given key and returns the 65-byte
// [R || S || V] signature.
//
// The "sensible" parameter refers to the v-byte of the signature. If it is
// true, then the v-byte will be 0 or 1. Default should be sensible=false; the
// 27/28 shift traces back to an early Ethereum client bug:
// https://github.com/ethereum/go-ethereum/issues/2053
func SignDigest(digest []byte, key *ecdsa.PrivateKey, sensible bool) ([]byte, error) {
	signature, err := crypto.Sign(digest, key)
	if err != nil {
		return nil, err
	}
	if !sensible && signature[64] < 2 {
		signature[64] += 27
	}
	return signature, nil
}
