package market

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// SaleOffer describes an outright transfer of ownership. The asset does not
// exist until the offer is redeemed: the content URI is minted together with
// the new token.
type SaleOffer struct {
	Lister     common.Address
	Price      *big.Int
	ContentURI string
	Nonce      uint64
}

// MintRentalOffer describes a time-boxed rental of an asset that is minted at
// redemption time. Ownership of the minted asset stays with the lister; the
// counterparty only receives the usage right.
//
// The requested rental duration is chosen by the counterparty at redemption
// and is deliberately not part of the signed payload. The lister constrains it
// through MinDuration and MaxDuration instead.
type MintRentalOffer struct {
	Lister       common.Address
	PricePerUnit *big.Int
	TimeUnit     uint64
	MinDuration  uint64
	MaxDuration  uint64
	ContentURI   string
	Nonce        uint64
}

// RentalOffer describes a time-boxed rental of an asset that already exists in
// the ownership ledger.
type RentalOffer struct {
	Lister       common.Address
	TokenID      uint64
	PricePerUnit *big.Int
	TimeUnit     uint64
	MinDuration  uint64
	MaxDuration  uint64
	Nonce        uint64
}

// SaleReceipt is the redemption record emitted after a successful sale.
type SaleReceipt struct {
	Lister     common.Address
	Recipient  common.Address
	Price      *big.Int
	TokenID    uint64
	ContentURI string
}

// RentReceipt is the redemption record emitted after a successful rental of
// either kind. TotalPrice is the truncated per-unit price multiplied out over
// the requested duration.
type RentReceipt struct {
	Lister     common.Address
	Recipient  common.Address
	TotalPrice *big.Int
	TokenID    uint64
	ContentURI string
	ExpiresAt  int64
}
