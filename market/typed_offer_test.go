package market

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/require"
)

func testEncoder() *Encoder {
	return NewEncoder(big.NewInt(testChainID), instanceAddr)
}

func TestDigestDeterminism(t *testing.T) {
	enc := testEncoder()
	offer := SaleOffer{
		Lister:     common.HexToAddress("0x00000000000000000000000000000000000000e1"),
		Price:      big.NewInt(42),
		ContentURI: "ipfs://content",
		Nonce:      1,
	}

	first, err := enc.SaleOfferDigest(offer)
	require.NoError(t, err)
	second, err := enc.SaleOfferDigest(offer)
	require.NoError(t, err)
	require.Equal(t, first, second)
	require.Len(t, first, 32)
}

func TestDigestKindSeparation(t *testing.T) {
	enc := testEncoder()
	lister := common.HexToAddress("0x00000000000000000000000000000000000000e1")

	// Identical field values under different offer kinds must never collide.
	saleDigest, err := enc.SaleOfferDigest(SaleOffer{
		Lister: lister, Price: big.NewInt(1), ContentURI: "ipfs://a", Nonce: 1,
	})
	require.NoError(t, err)
	mintDigest, err := enc.MintRentalOfferDigest(MintRentalOffer{
		Lister: lister, PricePerUnit: big.NewInt(1), TimeUnit: 1, MinDuration: 1, MaxDuration: 1, ContentURI: "ipfs://a", Nonce: 1,
	})
	require.NoError(t, err)
	rentDigest, err := enc.RentalOfferDigest(RentalOffer{
		Lister: lister, TokenID: 1, PricePerUnit: big.NewInt(1), TimeUnit: 1, MinDuration: 1, MaxDuration: 1, Nonce: 1,
	})
	require.NoError(t, err)

	require.NotEqual(t, saleDigest, mintDigest)
	require.NotEqual(t, saleDigest, rentDigest)
	require.NotEqual(t, mintDigest, rentDigest)
}

func TestDigestDomainSeparation(t *testing.T) {
	offer := SaleOffer{
		Lister:     common.HexToAddress("0x00000000000000000000000000000000000000e1"),
		Price:      big.NewInt(42),
		ContentURI: "ipfs://content",
		Nonce:      1,
	}

	base, err := testEncoder().SaleOfferDigest(offer)
	require.NoError(t, err)

	otherChain, err := NewEncoder(big.NewInt(testChainID+1), instanceAddr).SaleOfferDigest(offer)
	require.NoError(t, err)
	require.NotEqual(t, base, otherChain)

	otherInstance, err := NewEncoder(big.NewInt(testChainID), common.HexToAddress("0x00000000000000000000000000000000000000f2")).SaleOfferDigest(offer)
	require.NoError(t, err)
	require.NotEqual(t, base, otherInstance)
}

func TestDigestFieldSensitivity(t *testing.T) {
	enc := testEncoder()
	base := SaleOffer{
		Lister:     common.HexToAddress("0x00000000000000000000000000000000000000e1"),
		Price:      big.NewInt(42),
		ContentURI: "ipfs://content",
		Nonce:      1,
	}
	baseDigest, err := enc.SaleOfferDigest(base)
	require.NoError(t, err)

	cases := []struct {
		name   string
		mutate func(*SaleOffer)
	}{
		{"price", func(o *SaleOffer) { o.Price = big.NewInt(43) }},
		{"contentURI", func(o *SaleOffer) { o.ContentURI = "ipfs://other" }},
		{"nonce", func(o *SaleOffer) { o.Nonce = 2 }},
		{"lister", func(o *SaleOffer) { o.Lister = common.HexToAddress("0x00000000000000000000000000000000000000e2") }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			mutated := base
			tc.mutate(&mutated)
			digest, err := enc.SaleOfferDigest(mutated)
			require.NoError(t, err)
			require.NotEqual(t, baseDigest, digest)
		})
	}
}

func TestEmptyContentURIHashes(t *testing.T) {
	enc := testEncoder()
	offer := SaleOffer{
		Lister: common.HexToAddress("0x00000000000000000000000000000000000000e1"),
		Price:  big.NewInt(0),
		Nonce:  0,
	}

	first, err := enc.SaleOfferDigest(offer)
	require.NoError(t, err)
	second, err := enc.SaleOfferDigest(offer)
	require.NoError(t, err)
	require.Equal(t, first, second)
}

func TestSignDigestRecovery(t *testing.T) {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	signer := crypto.PubkeyToAddress(key.PublicKey)

	digest, err := testEncoder().SaleOfferDigest(SaleOffer{
		Lister: signer, Price: big.NewInt(1), ContentURI: "ipfs://a", Nonce: 1,
	})
	require.NoError(t, err)

	// Default signing shifts v to 27/28; recovery must normalize it back.
	shifted, err := SignDigest(digest, key, false)
	require.NoError(t, err)
	require.GreaterOrEqual(t, shifted[64], byte(27))
	require.Equal(t, signer, recoverSigner(digest, shifted))

	sensible, err := SignDigest(digest, key, true)
	require.NoError(t, err)
	require.Less(t, sensible[64], byte(2))
	require.Equal(t, signer, recoverSigner(digest, sensible))
}
