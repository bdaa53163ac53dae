package consensus

import (
	"bytes"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/luca-patrignani/p2p-craps/crypto"
	"github.com/luca-patrignani/p2p-craps/domain/craps"
)

// DefaultCollectTimeout bounds how long a round waits for peer
// summaries before deciding with whatever arrived.
const DefaultCollectTimeout = 2 * time.Second

var (
	// ErrInsufficientConfirmations means the matching summaries are below
	// quorum; the caller escalates to reconciliation, not failure.
	ErrInsufficientConfirmations = errors.New("insufficient confirmations")
	// ErrByzantineThresholdExceeded means reconciliation itself could not
	// reach quorum; the game is terminally stalled.
	ErrByzantineThresholdExceeded = errors.New("byzantine threshold exceeded")
	// ErrNoLocalSummary means Decide ran before ComputeLocal.
	ErrNoLocalSummary = errors.New("no local summary for round")
)

// RoundState tracks a round through the consensus machine.
type RoundState uint8

const (
	// Collecting gathers peer summaries inside the timeout window.
	Collecting RoundState = iota
	// Committed means quorum agreed on the payout root.
	Committed
	// Reconciling means the first decide fell short and replay is running.
	Reconciling
	// Unrecoverable is terminal: even reconciliation found no quorum.
	Unrecoverable
)

func (s RoundState) String() string {
	switch s {
	case Collecting:
		return "collecting"
	case Committed:
		return "committed"
	case Reconciling:
		return "reconciling"
	case Unrecoverable:
		return "unrecoverable"
	}
	return fmt.Sprintf("state(%d)", uint8(s))
}

type roundTally struct {
	local     *RoundSummary
	summaries map[craps.PeerId]RoundSummary
	state     RoundState
}

// Coordinator runs the per-round agreement for one game. Every peer
// computes its own summary, broadcasts it, collects the others and
// commits when enough payout roots match byte for byte.
type Coordinator struct {
	mu       sync.Mutex
	game     craps.GameId
	verifier Verifier
	rounds   map[uint64]*roundTally
}

func NewCoordinator(game craps.GameId, verifier Verifier) *Coordinator {
	return &Coordinator{game: game, verifier: verifier, rounds: map[uint64]*roundTally{}}
}

func (c *Coordinator) tally(round uint64) *roundTally {
	t, ok := c.rounds[round]
	if !ok {
		t = &roundTally{summaries: map[craps.PeerId]RoundSummary{}}
		c.rounds[round] = t
	}
	return t
}

// ComputeLocal builds and signs this peer's summary for the round and
// registers it as the peer's own vote. Rerunning it after reconciliation
// replaces the local summary.
func (c *Coordinator) ComputeLocal(round uint64, roll craps.DiceRoll, bets []craps.Bet, resolutions []craps.BetResolution, pair *crypto.KeyPair) (RoundSummary, error) {
	betRoot, err := BetRoot(bets)
	if err != nil {
		return RoundSummary{}, err
	}
	payoutRoot, err := PayoutRoot(resolutions)
	if err != nil {
		return RoundSummary{}, err
	}
	diceHash := DiceHash(roll, round)
	summary := RoundSummary{
		Game:       c.game[:],
		Round:      round,
		DiceHash:   diceHash[:],
		BetRoot:    betRoot[:],
		PayoutRoot: payoutRoot[:],
	}
	if err := summary.Sign(pair); err != nil {
		return RoundSummary{}, fmt.Errorf("signing summary: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	t := c.tally(round)
	t.local = &summary
	t.summaries[pair.PeerId()] = summary
	return summary, nil
}

// AddSummary records a peer's summary, one vote per distinct signer.
// Summaries for other games, with bad signatures, or arriving after the
// round left the collecting or reconciling state are ignored.
func (c *Coordinator) AddSummary(s RoundSummary) error {
	if !bytes.Equal(s.Game, c.game[:]) {
		return fmt.Errorf("summary targets game %x, not %s", s.Game, c.game)
	}
	if err := s.Verify(c.verifier); err != nil {
		return fmt.Errorf("rejecting summary: %w", err)
	}
	signer, err := s.SignerId()
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	t := c.tally(s.Round)
	if t.state == Committed || t.state == Unrecoverable {
		return fmt.Errorf("round %d already %s", s.Round, t.state)
	}
	if _, ok := t.summaries[signer]; ok && t.state != Reconciling {
		return fmt.Errorf("duplicate summary from %s for round %d", signer, s.Round)
	}
	// During reconciliation a peer may legitimately correct its summary
	// after replaying the merged log.
	t.summaries[signer] = s
	return nil
}

// Decide counts summaries whose payout root equals the local one. At or
// above quorum it commits the round and returns the certificate; below,
// it moves the round to reconciling and returns
// ErrInsufficientConfirmations. A second shortfall, after reconciliation
// already ran, is terminal.
func (c *Coordinator) Decide(round uint64, participants int) (*RoundConsensus, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := c.tally(round)
	if t.local == nil {
		return nil, ErrNoLocalSummary
	}
	if t.state == Unrecoverable {
		return nil, ErrByzantineThresholdExceeded
	}

	var matching []RoundSummary
	for _, s := range t.summaries {
		if bytes.Equal(s.PayoutRoot, t.local.PayoutRoot) {
			matching = append(matching, s)
		}
	}
	if len(matching) >= Quorum(participants) {
		t.state = Committed
		return &RoundConsensus{
			Game:       c.game[:],
			Round:      round,
			PayoutRoot: t.local.PayoutRoot,
			Summaries:  matching,
		}, nil
	}

	if t.state == Reconciling {
		t.state = Unrecoverable
		return nil, fmt.Errorf("%w: round %d stuck at %d/%d after reconciliation",
			ErrByzantineThresholdExceeded, round, len(matching), Quorum(participants))
	}
	t.state = Reconciling
	return nil, fmt.Errorf("%w: round %d has %d/%d matching summaries",
		ErrInsufficientConfirmations, round, len(matching), Quorum(participants))
}

// State reports where a round stands.
func (c *Coordinator) State(round uint64) RoundState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.tally(round).state
}

// Summaries returns the collected summaries for a round.
func (c *Coordinator) Summaries(round uint64) []RoundSummary {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := c.tally(round)
	out := make([]RoundSummary, 0, len(t.summaries))
	for _, s := range t.summaries {
		out = append(out, s)
	}
	return out
}
