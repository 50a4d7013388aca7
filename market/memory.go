package market

import (
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// MemoryOwnershipLedger is an in-process OwnershipLedger. Identifiers start at
// one and are never reissued, including after a burn.
type MemoryOwnershipLedger struct {
	nextID uint64
	owners map[uint64]common.Address
	uris   map[uint64]string
}

// NewMemoryOwnershipLedger returns an empty in-memory ownership ledger.
func NewMemoryOwnershipLedger() *MemoryOwnershipLedger {
	return &MemoryOwnershipLedger{
		nextID: 1,
		owners: make(map[uint64]common.Address),
		uris:   make(map[uint64]string),
	}
}

func (l *MemoryOwnershipLedger) Mint(owner common.Address, contentURI string) (uint64, error) {
	if owner == (common.Address{}) {
		return 0, fmt.Errorf("ownership ledger: mint to zero address")
	}
	id := l.nextID
	l.nextID++
	l.owners[id] = owner
	l.uris[id] = contentURI
	return id, nil
}

func (l *MemoryOwnershipLedger) OwnerOf(tokenID uint64) (common.Address, error) {
	owner, ok := l.owners[tokenID]
	if !ok {
		return common.Address{}, fmt.Errorf("ownership ledger: token %d does not exist", tokenID)
	}
	return owner, nil
}

func (l *MemoryOwnershipLedger) ContentURI(tokenID uint64) (string, error) {
	uri, ok := l.uris[tokenID]
	if !ok {
		return "", fmt.Errorf("ownership ledger: token %d does not exist", tokenID)
	}
	return uri, nil
}

func (l *MemoryOwnershipLedger) SetContentURI(tokenID uint64, contentURI string) error {
	if _, ok := l.owners[tokenID]; !ok {
		return fmt.Errorf("ownership ledger: token %d does not exist", tokenID)
	}
	l.uris[tokenID] = contentURI
	return nil
}

func (l *MemoryOwnershipLedger) Burn(tokenID uint64) error {
	if _, ok := l.owners[tokenID]; !ok {
		return fmt.Errorf("ownership ledger: token %d does not exist", tokenID)
	}
	delete(l.owners, tokenID)
	delete(l.uris, tokenID)
	return nil
}

type usageGrant struct {
	user      common.Address
	expiresAt int64
}

// MemoryUsageRightLedger is an in-process UsageRightLedger with automatic
// expiry: once the grant's timestamp passes, UserOf reports the zero address.
type MemoryUsageRightLedger struct {
	grants map[uint64]usageGrant
	nowFn  func() int64
}

// NewMemoryUsageRightLedger returns an empty in-memory usage-right ledger.
func NewMemoryUsageRightLedger() *MemoryUsageRightLedger {
	return &MemoryUsageRightLedger{
		grants: make(map[uint64]usageGrant),
		nowFn:  func() int64 { return time.Now().Unix() },
	}
}

// SetNowFunc overrides the time source, primarily so tests can expire grants
// deterministically.
func (l *MemoryUsageRightLedger) SetNowFunc(now func() int64) {
	if now == nil {
		l.nowFn = func() int64 { return time.Now().Unix() }
		return
	}
	l.nowFn = now
}

func (l *MemoryUsageRightLedger) SetUser(tokenID uint64, user common.Address, expiresAt int64) error {
	if user == (common.Address{}) {
		delete(l.grants, tokenID)
		return nil
	}
	l.grants[tokenID] = usageGrant{user: user, expiresAt: expiresAt}
	return nil
}

func (l *MemoryUsageRightLedger) UserOf(tokenID uint64) (common.Address, error) {
	grant, ok := l.grants[tokenID]
	if !ok {
		return common.Address{}, nil
	}
	if l.nowFn() >= grant.expiresAt {
		return common.Address{}, nil
	}
	return grant.user, nil
}

// MemoryPaymentLedger is an in-process PaymentLedger keeping plain balances.
type MemoryPaymentLedger struct {
	balances map[common.Address]*big.Int
}

// NewMemoryPaymentLedger returns an empty in-memory payment ledger.
func NewMemoryPaymentLedger() *MemoryPaymentLedger {
	return &MemoryPaymentLedger{balances: make(map[common.Address]*big.Int)}
}

// Deposit credits an account. Used to model funds arriving from outside the
// marketplace.
func (l *MemoryPaymentLedger) Deposit(account common.Address, amount *big.Int) {
	if amount == nil || amount.Sign() <= 0 {
		return
	}
	l.balances[account] = new(big.Int).Add(l.balanceOf(account), amount)
}

// BalanceOf reports an account's current balance.
func (l *MemoryPaymentLedger) BalanceOf(account common.Address) *big.Int {
	return new(big.Int).Set(l.balanceOf(account))
}

func (l *MemoryPaymentLedger) balanceOf(account common.Address) *big.Int {
	if balance, ok := l.balances[account]; ok {
		return balance
	}
	return big.NewInt(0)
}

func (l *MemoryPaymentLedger) Transfer(from, to common.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return fmt.Errorf("payment ledger: invalid transfer amount")
	}
	if amount.Sign() == 0 {
		return nil
	}
	fromBalance := l.balanceOf(from)
	if fromBalance.Cmp(amount) < 0 {
		return fmt.Errorf("payment ledger: insufficient balance")
	}
	l.balances[from] = new(big.Int).Sub(fromBalance, amount)
	l.balances[to] = new(big.Int).Add(l.balanceOf(to), amount)
	return nil
}

// memorySignatureStore is the default, non-durable replay-guard set.
type memorySignatureStore struct {
	consumed map[string]bool
}

func newMemorySignatureStore() *memorySignatureStore {
	return &memorySignatureStore{consumed: make(map[string]bool)}
}

func (s *memorySignatureStore) IsConsumed(signature []byte) bool {
	return s.consumed[string(signature)]
}

func (s *memorySignatureStore) Consume(signature []byte) error {
	s.consumed[string(signature)] = true
	return nil
}

func (s *memorySignatureStore) Release(signature []byte) error {
	delete(s.consumed, string(signature))
	return nil
}

// MemoryRoyaltyRegistry is an in-process RoyaltyRegistry.
type MemoryRoyaltyRegistry struct {
	royalties map[uint64]RoyaltyInfo
}

// NewMemoryRoyaltyRegistry returns an empty in-memory royalty registry.
func NewMemoryRoyaltyRegistry() *MemoryRoyaltyRegistry {
	return &MemoryRoyaltyRegistry{royalties: make(map[uint64]RoyaltyInfo)}
}

func (r *MemoryRoyaltyRegistry) SetRoyalty(tokenID uint64, info RoyaltyInfo) error {
	if info.Bps > 10_000 {
		return fmt.Errorf("royalty registry: bps out of range: %d", info.Bps)
	}
	r.royalties[tokenID] = info
	return nil
}

func (r *MemoryRoyaltyRegistry) Royalty(tokenID uint64) (RoyaltyInfo, bool) {
	info, ok := r.royalties[tokenID]
	return info, ok
}

// PauseSwitch is a trivial PauseGate toggled by its administrator.
type PauseSwitch struct {
	paused bool
}

// Pause closes the gate.
func (p *PauseSwitch) Pause() { p.paused = true }

// Unpause opens the gate.
func (p *PauseSwitch) Unpause() { p.paused = false }

// Paused reports the gate state.
func (p *PauseSwitch) Paused() bool { return p.paused }
