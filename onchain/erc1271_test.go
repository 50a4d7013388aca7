package onchain

import (
	"bytes"
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/require"
)

type fakeCaller struct {
	lastCall ethereum.CallMsg
	result   []byte
	err      error
}

func (c *fakeCaller) CallContract(ctx context.Context, call ethereum.CallMsg, blockNumber *big.Int) ([]byte, error) {
	c.lastCall = call
	return c.result, c.err
}

func paddedMagic() []byte {
	result := make([]byte, 32)
	copy(result, magicValue)
	return result
}

func TestIsValidSignatureAcceptsMagicValue(t *testing.T) {
	caller := &fakeCaller{result: paddedMagic()}
	verifier := NewERC1271Verifier(caller)

	signer := common.HexToAddress("0x00000000000000000000000000000000000000c1")
	digest := crypto.Keccak256([]byte("offer"))
	signature := []byte("contract-signature")

	require.True(t, verifier.IsValidSignature(signer, digest, signature))
	require.Equal(t, &signer, caller.lastCall.To)
	require.True(t, bytes.HasPrefix(caller.lastCall.Data, isValidSignatureSelector))
}

func TestIsValidSignatureRejects(t *testing.T) {
	signer := common.HexToAddress("0x00000000000000000000000000000000000000c1")
	digest := crypto.Keccak256([]byte("offer"))

	// Call failure, short return and non-magic return all report false.
	require.False(t, NewERC1271Verifier(&fakeCaller{err: errors.New("revert")}).IsValidSignature(signer, digest, []byte("sig")))
	require.False(t, NewERC1271Verifier(&fakeCaller{result: []byte{0x16}}).IsValidSignature(signer, digest, []byte("sig")))
	require.False(t, NewERC1271Verifier(&fakeCaller{result: make([]byte, 32)}).IsValidSignature(signer, digest, []byte("sig")))

	// A digest that is not 32 bytes never reaches the provider.
	caller := &fakeCaller{result: paddedMagic()}
	require.False(t, NewERC1271Verifier(caller).IsValidSignature(signer, []byte("short"), []byte("sig")))
	require.Nil(t, caller.lastCall.To)
}

func TestPackIsValidSignature(t *testing.T) {
	digest := crypto.Keccak256([]byte("offer"))
	signature := []byte("65-byte-signature-would-go-here")

	data := packIsValidSignature(digest, signature)

	require.Equal(t, isValidSignatureSelector, data[:4])
	require.Equal(t, digest, data[4:36])
	// Offset word points at the dynamic bytes argument.
	require.Equal(t, byte(0x40), data[67])
	// Length word holds the signature length.
	require.Equal(t, byte(len(signature)), data[99])
	require.Equal(t, signature, data[100:100+len(signature)])
	// Payload is padded to a 32-byte boundary.
	require.Equal(t, 0, (len(data)-4)%32)
}
