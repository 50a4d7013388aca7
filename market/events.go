package market

import (
	"encoding/hex"
	"strconv"
)

const (
	EventTypeSaleRedeemed = "market.sale.redeemed"
	EventTypeRentRedeemed = "market.rent.redeemed"
)

// Event is a structured redemption record emitted for downstream indexers.
// The engine never reads events back.
type Event struct {
	Type       string            `json:"type"`
	Attributes map[string]string `json:"attributes"`
}

// EventType returns the event's type tag.
func (e *Event) EventType() string {
	if e == nil {
		return ""
	}
	return e.Type
}

// Emitter broadcasts events to downstream subscribers (e.g. API, indexers).
type Emitter interface {
	Emit(*Event)
}

// NoopEmitter satisfies the Emitter interface while discarding all events.
type NoopEmitter struct{}

// Emit implements the Emitter interface.
func (NoopEmitter) Emit(*Event) {}

// NewSaleRedeemedEvent returns the canonical event payload for a redeemed
// sale offer.
func NewSaleRedeemedEvent(receipt *SaleReceipt, signature []byte) *Event {
	attrs := make(map[string]string)
	if receipt == nil {
		return &Event{Type: EventTypeSaleRedeemed, Attributes: attrs}
	}
	attrs["lister"] = receipt.Lister.Hex()
	attrs["recipient"] = receipt.Recipient.Hex()
	attrs["price"] = bigString(receipt.Price)
	attrs["tokenId"] = strconv.FormatUint(receipt.TokenID, 10)
	attrs["contentURI"] = receipt.ContentURI
	attrs["signature"] = hex.EncodeToString(signature)
	return &Event{Type: EventTypeSaleRedeemed, Attributes: attrs}
}

// NewRentRedeemedEvent returns the canonical event payload for a redeemed
// rental offer of either kind.
func NewRentRedeemedEvent(receipt *RentReceipt, signature []byte) *Event {
	attrs := make(map[string]string)
	if receipt == nil {
		return &Event{Type: EventTypeRentRedeemed, Attributes: attrs}
	}
	attrs["lister"] = receipt.Lister.Hex()
	attrs["recipient"] = receipt.Recipient.Hex()
	attrs["totalPrice"] = bigString(receipt.TotalPrice)
	attrs["tokenId"] = strconv.FormatUint(receipt.TokenID, 10)
	attrs["contentURI"] = receipt.ContentURI
	attrs["expiresAt"] = strconv.FormatInt(receipt.ExpiresAt, 10)
	attrs["signature"] = hex.EncodeToString(signature)
	return &Event{Type: EventTypeRentRedeemed, Attributes: attrs}
}
