package market

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// OwnershipLedger records full ownership of unique assets. Implementations
// issue identifiers, keep one owner per identifier and associate an immutable
// content URI with each asset.
type OwnershipLedger interface {
	Mint(owner common.Address, contentURI string) (uint64, error)
	OwnerOf(tokenID uint64) (common.Address, error)
	ContentURI(tokenID uint64) (string, error)
	SetContentURI(tokenID uint64, contentURI string) error
	Burn(tokenID uint64) error
}

// UsageRightLedger tracks the temporary, non-ownership usage right per asset.
// UserOf must return the zero address once the right has expired.
type UsageRightLedger interface {
	SetUser(tokenID uint64, user common.Address, expiresAt int64) error
	UserOf(tokenID uint64) (common.Address, error)
}

// PaymentLedger moves funds between accounts. Implementations may reject a
// transfer, in which case the engine rolls the redemption back.
type PaymentLedger interface {
	Transfer(from, to common.Address, amount *big.Int) error
}

// PauseGate is an externally administered switch. While it reports true the
// engine rejects every redemption.
type PauseGate interface {
	Paused() bool
}

// ContractSignerVerifier validates signatures on behalf of smart-contract
// signer accounts that cannot produce a recoverable single-key signature.
type ContractSignerVerifier interface {
	IsValidSignature(signer common.Address, digest, signature []byte) bool
}

// SignatureStore is the consumed-signature set backing the replay guard. The
// engine is its only writer. Release exists solely so the engine can undo a
// consumption when an outbound transfer fails after it; outside that
// compensation path entries are never removed.
type SignatureStore interface {
	IsConsumed(signature []byte) bool
	Consume(signature []byte) error
	Release(signature []byte) error
}

// RoyaltyInfo is the royalty term stored per asset. It is surfaced to
// observers but not exercised by settlement.
type RoyaltyInfo struct {
	Receiver common.Address
	Bps      uint32
}

// RoyaltyRegistry stores a royalty recipient and fraction per asset.
type RoyaltyRegistry interface {
	SetRoyalty(tokenID uint64, info RoyaltyInfo) error
	Royalty(tokenID uint64) (RoyaltyInfo, bool)
}
