package market

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"
)

func TestMemoryOwnershipLedger(t *testing.T) {
	ledger := NewMemoryOwnershipLedger()
	owner := common.HexToAddress("0x00000000000000000000000000000000000000a1")

	id, err := ledger.Mint(owner, "ipfs://one")
	require.NoError(t, err)
	require.Equal(t, uint64(1), id)

	got, err := ledger.OwnerOf(id)
	require.NoError(t, err)
	require.Equal(t, owner, got)

	uri, err := ledger.ContentURI(id)
	require.NoError(t, err)
	require.Equal(t, "ipfs://one", uri)

	require.NoError(t, ledger.SetContentURI(id, "ipfs://two"))
	uri, err = ledger.ContentURI(id)
	require.NoError(t, err)
	require.Equal(t, "ipfs://two", uri)

	require.NoError(t, ledger.Burn(id))
	_, err = ledger.OwnerOf(id)
	require.Error(t, err)

	// Identifiers are never reissued, even after a burn.
	next, err := ledger.Mint(owner, "ipfs://three")
	require.NoError(t, err)
	require.Equal(t, uint64(2), next)

	_, err = ledger.Mint(common.Address{}, "ipfs://zero")
	require.Error(t, err)
}

func TestMemoryUsageRightLedgerExpiry(t *testing.T) {
	ledger := NewMemoryUsageRightLedger()
	now := int64(1000)
	ledger.SetNowFunc(func() int64 { return now })

	user := common.HexToAddress("0x00000000000000000000000000000000000000a2")
	require.NoError(t, ledger.SetUser(7, user, 1500))

	got, err := ledger.UserOf(7)
	require.NoError(t, err)
	require.Equal(t, user, got)

	now = 1500
	got, err = ledger.UserOf(7)
	require.NoError(t, err)
	require.Equal(t, common.Address{}, got)

	// Setting the zero user clears the grant outright.
	require.NoError(t, ledger.SetUser(7, user, 5000))
	require.NoError(t, ledger.SetUser(7, common.Address{}, 0))
	got, err = ledger.UserOf(7)
	require.NoError(t, err)
	require.Equal(t, common.Address{}, got)
}

func TestMemoryPaymentLedger(t *testing.T) {
	ledger := NewMemoryPaymentLedger()
	alice := common.HexToAddress("0x00000000000000000000000000000000000000a3")
	bob := common.HexToAddress("0x00000000000000000000000000000000000000a4")

	ledger.Deposit(alice, big.NewInt(100))
	require.Equal(t, big.NewInt(100), ledger.BalanceOf(alice))

	require.Error(t, ledger.Transfer(alice, bob, big.NewInt(101)))
	require.NoError(t, ledger.Transfer(alice, bob, big.NewInt(40)))
	require.Equal(t, big.NewInt(60), ledger.BalanceOf(alice))
	require.Equal(t, big.NewInt(40), ledger.BalanceOf(bob))

	require.NoError(t, ledger.Transfer(alice, bob, big.NewInt(0)))
	require.Error(t, ledger.Transfer(alice, bob, big.NewInt(-1)))
	require.Error(t, ledger.Transfer(alice, bob, nil))
}
