package random

import (
	"bytes"
	"crypto/rand"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/luca-patrignani/p2p-craps/domain/craps"
)

var (
	// ErrDuplicateCommitment rejects a second commitment from the same
	// player in one round.
	ErrDuplicateCommitment = errors.New("duplicate commitment")
	// ErrCommitmentMismatch rejects a reveal whose nonce does not open
	// the stored commitment. The player is excluded from the round seed.
	ErrCommitmentMismatch = errors.New("reveal does not match commitment")
	// ErrRoundNotOpen rejects contributions outside an open round.
	ErrRoundNotOpen = errors.New("no open randomness round")
	// ErrNoValidReveals means every contribution was withheld or invalid,
	// so no seed can be derived.
	ErrNoValidReveals = errors.New("no valid reveals in round")
)

// NewNonce draws a fresh random contribution.
func NewNonce() ([]byte, error) {
	nonce := make([]byte, NonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("drawing nonce: %w", err)
	}
	return nonce, nil
}

// Coordinator runs the commit-reveal rounds for one game. Players first
// publish a commitment, then reveal the nonce behind it; the combined
// valid nonces seed the dice derivation. A player that commits but never
// reveals, or reveals a mismatching nonce, is excluded from the seed.
//
// The last peer to reveal sees every other nonce before publishing its
// own. Withholding removes its contribution but cannot steer the roll:
// the commitment already fixed the nonce, so the only choice left is
// between two seeds it cannot pick between.
type Coordinator struct {
	mu    sync.Mutex
	game  craps.GameId
	round uint64
	open  bool

	commitments map[craps.PeerId]Commitment
	reveals     map[craps.PeerId][]byte
	excluded    map[craps.PeerId]bool
}

func NewCoordinator(game craps.GameId) *Coordinator {
	return &Coordinator{game: game}
}

// BeginRound opens the commitment window for the given round number,
// discarding any state from a previous round.
func (c *Coordinator) BeginRound(round uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.round = round
	c.open = true
	c.commitments = map[craps.PeerId]Commitment{}
	c.reveals = map[craps.PeerId][]byte{}
	c.excluded = map[craps.PeerId]bool{}
}

// Round returns the current round number.
func (c *Coordinator) Round() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.round
}

// SubmitCommitment stores one commitment per player per round.
func (c *Coordinator) SubmitCommitment(player craps.PeerId, commitment Commitment) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.open {
		return ErrRoundNotOpen
	}
	if _, ok := c.commitments[player]; ok {
		return fmt.Errorf("%w: player %s round %d", ErrDuplicateCommitment, player, c.round)
	}
	c.commitments[player] = commitment
	return nil
}

// SubmitReveal checks the nonce against the player's commitment. On a
// mismatch the player is excluded from the round and the reveal is
// rejected; the round itself continues.
func (c *Coordinator) SubmitReveal(player craps.PeerId, nonce []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.open {
		return ErrRoundNotOpen
	}
	commitment, ok := c.commitments[player]
	if !ok {
		return fmt.Errorf("%w: player %s never committed", ErrCommitmentMismatch, player)
	}
	if !VerifyCommitment(commitment, nonce, player, c.game, c.round) {
		c.excluded[player] = true
		return fmt.Errorf("%w: player %s round %d", ErrCommitmentMismatch, player, c.round)
	}
	c.reveals[player] = nonce
	return nil
}

// CommitmentCount returns how many players committed this round.
func (c *Coordinator) CommitmentCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.commitments)
}

// AllRevealed reports whether every committed player has validly
// revealed or been excluded.
func (c *Coordinator) AllRevealed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for player := range c.commitments {
		if _, ok := c.reveals[player]; !ok && !c.excluded[player] {
			return false
		}
	}
	return len(c.commitments) > 0
}

// CompleteRound closes the round and derives the dice roll from the
// valid reveals, sorted by player id. Committed players that never
// revealed are excluded, the same way on every peer.
func (c *Coordinator) CompleteRound() (craps.DiceRoll, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.open {
		return craps.DiceRoll{}, ErrRoundNotOpen
	}
	c.open = false

	players := make([]craps.PeerId, 0, len(c.reveals))
	for player := range c.reveals {
		players = append(players, player)
	}
	if len(players) == 0 {
		return craps.DiceRoll{}, fmt.Errorf("%w: round %d", ErrNoValidReveals, c.round)
	}
	sort.Slice(players, func(i, j int) bool {
		return bytes.Compare(players[i][:], players[j][:]) < 0
	})

	nonces := make([][]byte, len(players))
	for i, player := range players {
		nonces[i] = c.reveals[player]
	}
	return Derive(Seed(nonces), c.round), nil
}

// Revealed returns the valid reveals of the current round, keyed by
// player. Used to rebuild the seed during replay.
func (c *Coordinator) Revealed() map[craps.PeerId][]byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[craps.PeerId][]byte, len(c.reveals))
	for player, nonce := range c.reveals {
		out[player] = nonce
	}
	return out
}

// RollFromReveals derives a roll directly from a reveal set, without
// coordinator state. Replay uses it to reproduce historical rounds.
func RollFromReveals(reveals map[craps.PeerId][]byte, round uint64) (craps.DiceRoll, error) {
	if len(reveals) == 0 {
		return craps.DiceRoll{}, fmt.Errorf("%w: round %d", ErrNoValidReveals, round)
	}
	players := make([]craps.PeerId, 0, len(reveals))
	for player := range reveals {
		players = append(players, player)
	}
	sort.Slice(players, func(i, j int) bool {
		return bytes.Compare(players[i][:], players[j][:]) < 0
	})
	nonces := make([][]byte, len(players))
	for i, player := range players {
		nonces[i] = reveals[player]
	}
	return Derive(Seed(nonces), round), nil
}
