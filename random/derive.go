package random

import (
	"crypto/sha256"
	"encoding/binary"

	"github.com/luca-patrignani/p2p-craps/domain/craps"
)

// Seed chains the valid nonces into a single round seed. Callers must
// pass the nonces already sorted by player id; the chaining makes the
// seed depend on every contribution and its position.
func Seed(nonces [][]byte) [32]byte {
	seed := sha256.Sum256([]byte(seedTag))
	for _, nonce := range nonces {
		h := sha256.New()
		h.Write(seed[:])
		h.Write(nonce)
		copy(seed[:], h.Sum(nil))
	}
	return seed
}

// Derive maps a seed and round number to a dice roll. Each die comes
// from a disjoint byte of the derivation hash, reduced modulo 6. The
// function is pure: every peer holding the same seed derives the same
// roll.
func Derive(seed [32]byte, round uint64) craps.DiceRoll {
	h := sha256.New()
	h.Write([]byte(deriveTag))
	h.Write(seed[:])
	var rb [8]byte
	binary.BigEndian.PutUint64(rb[:], round)
	h.Write(rb[:])
	digest := h.Sum(nil)
	return craps.DiceRoll{
		Die1: digest[0]%6 + 1,
		Die2: digest[16]%6 + 1,
	}
}
