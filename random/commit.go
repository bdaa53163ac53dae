package random

import (
	"crypto/sha256"
	"encoding/binary"

	"github.com/luca-patrignani/p2p-craps/domain/craps"
)

// Domain tags keep commitment hashes, seed chaining and dice derivation
// in separate hash domains.
const (
	commitTag = "craps/commit/v1"
	seedTag   = "craps/seed/v1"
	deriveTag = "craps/derive/v1"
)

// NonceSize is the required length of a randomness contribution.
const NonceSize = 32

// Commitment is the hash a player publishes before revealing its nonce.
type Commitment [32]byte

// Commit binds a nonce to a specific player, game and round. Reusing a
// nonce in another round produces a different commitment.
func Commit(nonce []byte, player craps.PeerId, game craps.GameId, round uint64) Commitment {
	h := sha256.New()
	h.Write([]byte(commitTag))
	h.Write(nonce)
	h.Write(player[:])
	h.Write(game[:])
	var rb [8]byte
	binary.BigEndian.PutUint64(rb[:], round)
	h.Write(rb[:])
	return Commitment(h.Sum(nil))
}

// VerifyCommitment reports whether the nonce opens the commitment.
func VerifyCommitment(c Commitment, nonce []byte, player craps.PeerId, game craps.GameId, round uint64) bool {
	return Commit(nonce, player, game, round) == c
}
