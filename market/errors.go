package market

import "errors"

var (
	// ErrInvalidCounterparty rejects redemptions where the lister and the
	// recipient are the same address.
	ErrInvalidCounterparty = errors.New("market: lister cannot redeem own offer")

	// ErrInvalidOrUsedSignature covers both a signature that never verified
	// and a signature that was already consumed. The two cases are merged on
	// purpose so a caller cannot probe whether a given signature was ever
	// valid.
	ErrInvalidOrUsedSignature = errors.New("market: invalid or already used signature")

	// ErrInsufficientPayment rejects redemptions whose attached payment is
	// below the offer price.
	ErrInsufficientPayment = errors.New("market: attached payment below offer price")

	// ErrInvalidDuration rejects rental durations outside the signed
	// [MinDuration, MaxDuration] window, and offers with a zero time unit.
	ErrInvalidDuration = errors.New("market: rental duration outside offer bounds")

	// ErrAlreadyRented rejects rentals of an asset whose usage right has not
	// yet expired.
	ErrAlreadyRented = errors.New("market: asset usage right still assigned")

	// ErrDurationOverflow rejects rentals whose expiry timestamp would not be
	// representable. The engine fails instead of wrapping.
	ErrDurationOverflow = errors.New("market: rental expiry overflows timestamp range")

	// ErrTransferFailed reports an outbound payment rejected by the payment
	// ledger. The redemption is rolled back in full.
	ErrTransferFailed = errors.New("market: value transfer failed")

	// ErrUnknownAsset rejects rentals referencing a token id the ownership
	// ledger never issued.
	ErrUnknownAsset = errors.New("market: unknown asset")

	// ErrPaused rejects all redemptions while the pause gate is closed.
	ErrPaused = errors.New("market: redemptions paused")
)
