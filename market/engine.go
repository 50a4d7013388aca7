package market

import (
	"errors"
	"fmt"
	"math"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

var (
	errNilAssets   = errors.New("market engine: ownership ledger not configured")
	errNilUsers    = errors.New("market engine: usage-right ledger not configured")
	errNilPayments = errors.New("market engine: payment ledger not configured")
)

// Config fixes the engine's domain identity and settlement vault. All fields
// are immutable for the engine's lifetime; changing any of the domain inputs
// yields a different separator and invalidates outstanding offers.
type Config struct {
	ChainID           *big.Int
	VerifyingContract common.Address

	// Vault is the engine's own settlement account. Attached payments are
	// pulled into it before the outbound legs run.
	Vault common.Address
}

// Engine is the offer redemption core. It reconstructs an offer from
// caller-supplied fields, verifies the lister's signature against the
// domain-bound digest, enforces the business rules, settles payment and
// mints or updates asset records.
//
// The engine assumes strictly serialized execution: each redemption runs to
// completion before the next starts. The only hazard it defends against is
// reentrancy through the payment ledger, which is why a signature is consumed
// before any outbound transfer.
type Engine struct {
	encoder *Encoder
	vault   common.Address

	assets   OwnershipLedger
	users    UsageRightLedger
	payments PaymentLedger

	signatures       SignatureStore
	pause            PauseGate
	royalties        RoyaltyRegistry
	contractVerifier ContractSignerVerifier

	emitter Emitter
	nowFn   func() int64

	assetCount uint64
}

// NewEngine wires a redemption engine with its required collaborators. The
// replay guard defaults to an in-memory set; override it with
// SetSignatureStore for durability.
func NewEngine(cfg Config, assets OwnershipLedger, users UsageRightLedger, payments PaymentLedger) *Engine {
	chainID := cfg.ChainID
	if chainID == nil {
		chainID = big.NewInt(0)
	}
	return &Engine{
		encoder:    NewEncoder(chainID, cfg.VerifyingContract),
		vault:      cfg.Vault,
		assets:     assets,
		users:      users,
		payments:   payments,
		signatures: newMemorySignatureStore(),
		emitter:    NoopEmitter{},
		nowFn:      func() int64 { return time.Now().Unix() },
	}
}

// Encoder exposes the engine's domain-bound offer encoder, e.g. for offer
// signing clients that want digests from the authoritative instance.
func (e *Engine) Encoder() *Encoder { return e.encoder }

// SetEmitter configures the event emitter. Passing nil resets it to a no-op
// implementation.
func (e *Engine) SetEmitter(emitter Emitter) {
	if emitter == nil {
		e.emitter = NoopEmitter{}
		return
	}
	e.emitter = emitter
}

// SetNowFunc overrides the time source used for rental expiry. Primarily
// intended for tests to provide deterministic timestamps.
func (e *Engine) SetNowFunc(now func() int64) {
	if now == nil {
		e.nowFn = func() int64 { return time.Now().Unix() }
		return
	}
	e.nowFn = now
}

// SetSignatureStore replaces the replay-guard backing set. Call before the
// first redemption; the engine remains the only writer.
func (e *Engine) SetSignatureStore(store SignatureStore) {
	if store == nil {
		e.signatures = newMemorySignatureStore()
		return
	}
	e.signatures = store
}

// SetPauseGate configures the externally administered pause switch.
func (e *Engine) SetPauseGate(gate PauseGate) { e.pause = gate }

// SetRoyaltyRegistry configures the royalty registry. Settlement does not
// consult it; it is carried for observers.
func (e *Engine) SetRoyaltyRegistry(registry RoyaltyRegistry) { e.royalties = registry }

// SetContractSignerVerifier configures the hook used to validate signatures
// from smart-contract signer accounts.
func (e *Engine) SetContractSignerVerifier(verifier ContractSignerVerifier) {
	e.contractVerifier = verifier
}

// IsSignatureConsumed reports whether a signature was already redeemed.
// Off-chain indexers use this to detect stale offers before submission.
func (e *Engine) IsSignatureConsumed(signature []byte) bool {
	return e.signatures.IsConsumed(signature)
}

// CurrentAssetCount reports how many assets this engine has minted.
func (e *Engine) CurrentAssetCount() uint64 { return e.assetCount }

// Royalty surfaces the stored royalty term for an asset, if any.
func (e *Engine) Royalty(tokenID uint64) (RoyaltyInfo, bool) {
	if e.royalties == nil {
		return RoyaltyInfo{}, false
	}
	return e.royalties.Royalty(tokenID)
}

func (e *Engine) checkCollaborators() error {
	if e.assets == nil {
		return errNilAssets
	}
	if e.users == nil {
		return errNilUsers
	}
	if e.payments == nil {
		return errNilPayments
	}
	return nil
}

func (e *Engine) paused() bool {
	return e.pause != nil && e.pause.Paused()
}

// Sale redeems a signed sale offer: a new asset is minted to the recipient,
// the price is forwarded to the lister and any overpayment is refunded to the
// caller. The signature is consumed before the outbound transfers run.
func (e *Engine) Sale(caller, to common.Address, offer SaleOffer, payment *big.Int, signature []byte) (*SaleReceipt, error) {
	if err := e.checkCollaborators(); err != nil {
		return nil, err
	}
	if e.paused() {
		return nil, ErrPaused
	}
	if offer.Lister == to {
		return nil, ErrInvalidCounterparty
	}

	digest, err := e.encoder.SaleOfferDigest(offer)
	if err != nil {
		return nil, fmt.Errorf("market engine: sale digest: %w", err)
	}
	if !e.verifySignature(offer.Lister, digest, signature) {
		return nil, ErrInvalidOrUsedSignature
	}

	price := bigOrZero(offer.Price)
	attached := bigOrZero(payment)
	if attached.Cmp(price) < 0 {
		return nil, ErrInsufficientPayment
	}

	var undo []func()
	rollback := func() {
		for i := len(undo) - 1; i >= 0; i-- {
			undo[i]()
		}
	}

	if err := e.payments.Transfer(caller, e.vault, attached); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInsufficientPayment, err)
	}
	undo = append(undo, func() { _ = e.payments.Transfer(e.vault, caller, attached) })

	// Consume before any outbound transfer so a reentrant redemption of the
	// same signature is rejected by the verifier's short-circuit.
	if err := e.signatures.Consume(signature); err != nil {
		rollback()
		return nil, fmt.Errorf("market engine: replay guard: %w", err)
	}
	undo = append(undo, func() { _ = e.signatures.Release(signature) })

	tokenID, err := e.assets.Mint(to, offer.ContentURI)
	if err != nil {
		rollback()
		return nil, fmt.Errorf("market engine: mint: %w", err)
	}
	undo = append(undo, func() { _ = e.assets.Burn(tokenID) })

	if err := e.settlePayment(caller, offer.Lister, price, attached); err != nil {
		rollback()
		return nil, err
	}

	e.assetCount++
	receipt := &SaleReceipt{
		Lister:     offer.Lister,
		Recipient:  to,
		Price:      price,
		TokenID:    tokenID,
		ContentURI: offer.ContentURI,
	}
	e.emitter.Emit(NewSaleRedeemedEvent(receipt, signature))
	return receipt, nil
}

// RentWithMint redeems a signed rental offer for an asset minted at
// redemption time. Ownership goes to the lister; the recipient receives the
// usage right until now + rentDuration.
func (e *Engine) RentWithMint(caller, to common.Address, offer MintRentalOffer, rentDuration uint64, payment *big.Int, signature []byte) (*RentReceipt, error) {
	if err := e.checkCollaborators(); err != nil {
		return nil, err
	}
	if e.paused() {
		return nil, ErrPaused
	}
	if offer.Lister == to {
		return nil, ErrInvalidCounterparty
	}
	if err := checkDuration(offer.TimeUnit, offer.MinDuration, offer.MaxDuration, rentDuration); err != nil {
		return nil, err
	}

	digest, err := e.encoder.MintRentalOfferDigest(offer)
	if err != nil {
		return nil, fmt.Errorf("market engine: rental digest: %w", err)
	}
	if !e.verifySignature(offer.Lister, digest, signature) {
		return nil, ErrInvalidOrUsedSignature
	}

	expiresAt, err := e.rentalExpiry(rentDuration)
	if err != nil {
		return nil, err
	}
	totalPrice := rentalPrice(offer.PricePerUnit, rentDuration, offer.TimeUnit)
	attached := bigOrZero(payment)
	if attached.Cmp(totalPrice) < 0 {
		return nil, ErrInsufficientPayment
	}

	var undo []func()
	rollback := func() {
		for i := len(undo) - 1; i >= 0; i-- {
			undo[i]()
		}
	}

	if err := e.payments.Transfer(caller, e.vault, attached); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInsufficientPayment, err)
	}
	undo = append(undo, func() { _ = e.payments.Transfer(e.vault, caller, attached) })

	if err := e.signatures.Consume(signature); err != nil {
		rollback()
		return nil, fmt.Errorf("market engine: replay guard: %w", err)
	}
	undo = append(undo, func() { _ = e.signatures.Release(signature) })

	// The lister keeps ownership of the minted asset; the recipient only
	// holds the usage right.
	tokenID, err := e.assets.Mint(offer.Lister, offer.ContentURI)
	if err != nil {
		rollback()
		return nil, fmt.Errorf("market engine: mint: %w", err)
	}
	undo = append(undo, func() { _ = e.assets.Burn(tokenID) })

	if err := e.users.SetUser(tokenID, to, expiresAt); err != nil {
		rollback()
		return nil, fmt.Errorf("market engine: usage grant: %w", err)
	}
	undo = append(undo, func() { _ = e.users.SetUser(tokenID, common.Address{}, 0) })

	if err := e.settlePayment(caller, offer.Lister, totalPrice, attached); err != nil {
		rollback()
		return nil, err
	}

	e.assetCount++
	receipt := &RentReceipt{
		Lister:     offer.Lister,
		Recipient:  to,
		TotalPrice: totalPrice,
		TokenID:    tokenID,
		ContentURI: offer.ContentURI,
		ExpiresAt:  expiresAt,
	}
	e.emitter.Emit(NewRentRedeemedEvent(receipt, signature))
	return receipt, nil
}

// Rent redeems a signed rental offer for an existing asset. The asset's usage
// right must be unassigned or expired.
func (e *Engine) Rent(caller, to common.Address, offer RentalOffer, rentDuration uint64, payment *big.Int, signature []byte) (*RentReceipt, error) {
	if err := e.checkCollaborators(); err != nil {
		return nil, err
	}
	if e.paused() {
		return nil, ErrPaused
	}
	if offer.Lister == to {
		return nil, ErrInvalidCounterparty
	}
	if err := checkDuration(offer.TimeUnit, offer.MinDuration, offer.MaxDuration, rentDuration); err != nil {
		return nil, err
	}

	digest, err := e.encoder.RentalOfferDigest(offer)
	if err != nil {
		return nil, fmt.Errorf("market engine: rental digest: %w", err)
	}
	if !e.verifySignature(offer.Lister, digest, signature) {
		return nil, ErrInvalidOrUsedSignature
	}

	if _, err := e.assets.OwnerOf(offer.TokenID); err != nil {
		return nil, fmt.Errorf("%w: token %d", ErrUnknownAsset, offer.TokenID)
	}
	user, err := e.users.UserOf(offer.TokenID)
	if err != nil {
		return nil, fmt.Errorf("market engine: usage lookup: %w", err)
	}
	if user != (common.Address{}) {
		return nil, ErrAlreadyRented
	}

	expiresAt, err := e.rentalExpiry(rentDuration)
	if err != nil {
		return nil, err
	}
	totalPrice := rentalPrice(offer.PricePerUnit, rentDuration, offer.TimeUnit)
	attached := bigOrZero(payment)
	if attached.Cmp(totalPrice) < 0 {
		return nil, ErrInsufficientPayment
	}

	var undo []func()
	rollback := func() {
		for i := len(undo) - 1; i >= 0; i-- {
			undo[i]()
		}
	}

	if err := e.payments.Transfer(caller, e.vault, attached); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInsufficientPayment, err)
	}
	undo = append(undo, func() { _ = e.payments.Transfer(e.vault, caller, attached) })

	if err := e.signatures.Consume(signature); err != nil {
		rollback()
		return nil, fmt.Errorf("market engine: replay guard: %w", err)
	}
	undo = append(undo, func() { _ = e.signatures.Release(signature) })

	if err := e.users.SetUser(offer.TokenID, to, expiresAt); err != nil {
		rollback()
		return nil, fmt.Errorf("market engine: usage grant: %w", err)
	}
	undo = append(undo, func() { _ = e.users.SetUser(offer.TokenID, common.Address{}, 0) })

	if err := e.settlePayment(caller, offer.Lister, totalPrice, attached); err != nil {
		rollback()
		return nil, err
	}

	contentURI, _ := e.assets.ContentURI(offer.TokenID)
	receipt := &RentReceipt{
		Lister:     offer.Lister,
		Recipient:  to,
		TotalPrice: totalPrice,
		TokenID:    offer.TokenID,
		ContentURI: contentURI,
		ExpiresAt:  expiresAt,
	}
	e.emitter.Emit(NewRentRedeemedEvent(receipt, signature))
	return receipt, nil
}

// settlePayment runs the outbound legs from the vault: the price to the
// lister, then the exact overpayment back to the caller. Both accounts are
// untrusted; failures surface as ErrTransferFailed and the caller of this
// function rolls the redemption back.
func (e *Engine) settlePayment(caller, lister common.Address, price, attached *big.Int) error {
	if price.Sign() > 0 {
		if err := e.payments.Transfer(e.vault, lister, price); err != nil {
			return fmt.Errorf("%w: lister payout: %v", ErrTransferFailed, err)
		}
	}
	refund := new(big.Int).Sub(attached, price)
	if refund.Sign() > 0 {
		if err := e.payments.Transfer(e.vault, caller, refund); err != nil {
			return fmt.Errorf("%w: refund: %v", ErrTransferFailed, err)
		}
	}
	return nil
}

// rentalExpiry computes now + rentDuration, failing instead of wrapping when
// the sum leaves the representable timestamp range.
func (e *Engine) rentalExpiry(rentDuration uint64) (int64, error) {
	now := e.nowFn()
	if rentDuration > math.MaxInt64 || now > math.MaxInt64-int64(rentDuration) {
		return 0, ErrDurationOverflow
	}
	return now + int64(rentDuration), nil
}

func checkDuration(timeUnit, minDuration, maxDuration, rentDuration uint64) error {
	if timeUnit == 0 {
		return ErrInvalidDuration
	}
	if rentDuration < minDuration || rentDuration > maxDuration {
		return ErrInvalidDuration
	}
	return nil
}

// rentalPrice computes floor(pricePerUnit * rentDuration / timeUnit). The
// policy is to truncate, never round up: listers must pick units so the
// truncation is acceptable.
func rentalPrice(pricePerUnit *big.Int, rentDuration, timeUnit uint64) *big.Int {
	total := new(big.Int).Mul(bigOrZero(pricePerUnit), new(big.Int).SetUint64(rentDuration))
	return total.Div(total, new(big.Int).SetUint64(timeUnit))
}

func bigOrZero(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(v)
}
