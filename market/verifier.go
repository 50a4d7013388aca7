package market

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

const signatureLength = 65

// verifySignature reports whether signature authorizes digest on behalf of
// signer. The zero address never authorizes anything: recovery failures use it
// as a sentinel, so accepting it as a signer would turn garbage bytes into a
// valid authorization. A consumed signature short-circuits to false before any
// cryptographic work. Malformed signatures report false rather than an error:
// callers treat false as "reject the redemption".
func (e *Engine) verifySignature(signer common.Address, digest, signature []byte) bool {
	if signer == (common.Address{}) {
		return false
	}
	if e.signatures.IsConsumed(signature) {
		return false
	}
	if recoverSigner(digest, signature) == signer {
		return true
	}
	if e.contractVerifier != nil {
		return e.contractVerifier.IsValidSignature(signer, digest, signature)
	}
	return false
}

// recoverSigner recovers the address behind a 65-byte [R || S || V]
// signature, or the zero address when the signature does not parse.
//
// Only the canonical low-s encoding is accepted. For any signature (r, s, v)
// the curve admits a twin (r, N-s, v^1) with different raw bytes that recovers
// the same key; since the replay guard keys on raw bytes, accepting the twin
// would let a consumed signature be redeemed a second time.
func recoverSigner(digest, signature []byte) common.Address {
	if len(signature) != signatureLength {
		return common.Address{}
	}

	normalized := make([]byte, signatureLength)
	copy(normalized, signature)
	// Normalize signature so that 27 -> 0, 28 -> 1.
	// For more context: https://github.com/ethereum/go-ethereum/issues/2053
	if normalized[64] == 27 || normalized[64] == 28 {
		normalized[64] -= 27
	}

	r := new(big.Int).SetBytes(normalized[:32])
	s := new(big.Int).SetBytes(normalized[32:64])
	if !crypto.ValidateSignatureValues(normalized[64], r, s, true) {
		return common.Address{}
	}

	pubkey, err := crypto.SigToPub(digest, normalized)
	if err != nil {
		return common.Address{}
	}
	return crypto.PubkeyToAddress(*pubkey)
}
