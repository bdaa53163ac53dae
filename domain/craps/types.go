package craps

import (
	"encoding/hex"
	"fmt"

	"github.com/google/uuid"
)

// PeerId identifies a participant. It is derived from the participant's
// public key, so owning the matching private key proves the identity.
type PeerId [32]byte

// GameId identifies a single craps table.
type GameId [16]byte

// NewGameId returns a fresh random game identifier.
func NewGameId() GameId {
	return GameId(uuid.New())
}

func (p PeerId) String() string { return hex.EncodeToString(p[:8]) }

func (p PeerId) MarshalText() ([]byte, error) {
	return []byte(hex.EncodeToString(p[:])), nil
}

func (p *PeerId) UnmarshalText(text []byte) error {
	b, err := hex.DecodeString(string(text))
	if err != nil {
		return err
	}
	if len(b) != len(p) {
		return fmt.Errorf("peer id must be %d bytes, got %d", len(p), len(b))
	}
	copy(p[:], b)
	return nil
}

func (g GameId) String() string { return hex.EncodeToString(g[:]) }

func (g GameId) MarshalText() ([]byte, error) {
	return []byte(hex.EncodeToString(g[:])), nil
}

func (g *GameId) UnmarshalText(text []byte) error {
	b, err := hex.DecodeString(string(text))
	if err != nil {
		return err
	}
	if len(b) != len(g) {
		return fmt.Errorf("game id must be %d bytes, got %d", len(g), len(b))
	}
	copy(g[:], b)
	return nil
}

// Betting limits, in tokens.
const (
	MinBet uint64 = 1
	MaxBet uint64 = 10_000_000
)

// DiceRoll is the outcome of rolling two dice.
type DiceRoll struct {
	Die1 uint8 `json:"die1"`
	Die2 uint8 `json:"die2"`
}

// NewDiceRoll validates both dice are in [1,6].
func NewDiceRoll(die1, die2 uint8) (DiceRoll, error) {
	if die1 < 1 || die1 > 6 || die2 < 1 || die2 > 6 {
		return DiceRoll{}, &ValidationError{Reason: fmt.Sprintf("dice values must be 1-6, got %d and %d", die1, die2)}
	}
	return DiceRoll{Die1: die1, Die2: die2}, nil
}

func (r DiceRoll) Total() uint8 { return r.Die1 + r.Die2 }

// IsNatural reports a come-out winner for the pass line.
func (r DiceRoll) IsNatural() bool {
	t := r.Total()
	return t == 7 || t == 11
}

// IsCraps reports a come-out loser for the pass line.
func (r DiceRoll) IsCraps() bool {
	t := r.Total()
	return t == 2 || t == 3 || t == 12
}

// IsHardWay reports a double on one of the hardway totals.
func (r DiceRoll) IsHardWay() bool {
	t := r.Total()
	return r.Die1 == r.Die2 && (t == 4 || t == 6 || t == 8 || t == 10)
}

func (r DiceRoll) String() string {
	return fmt.Sprintf("%d+%d=%d", r.Die1, r.Die2, r.Total())
}

// GamePhase is the craps table phase.
type GamePhase uint8

const (
	PhaseComeOut GamePhase = iota
	PhasePoint
	PhaseResolved
)

func (p GamePhase) String() string {
	switch p {
	case PhaseComeOut:
		return "come-out"
	case PhasePoint:
		return "point"
	case PhaseResolved:
		return "resolved"
	}
	return fmt.Sprintf("phase(%d)", uint8(p))
}

// Bet is a single wager placed by a player.
type Bet struct {
	ID        [16]byte `json:"id"`
	Player    PeerId   `json:"player"`
	Game      GameId   `json:"game"`
	Type      BetType  `json:"type"`
	Amount    uint64   `json:"amount"`
	Timestamp uint64   `json:"timestamp"`
}

// NewBet creates a wager with a fresh random id.
func NewBet(player PeerId, game GameId, betType BetType, amount uint64, timestamp uint64) Bet {
	return Bet{
		ID:        [16]byte(uuid.New()),
		Player:    player,
		Game:      game,
		Type:      betType,
		Amount:    amount,
		Timestamp: timestamp,
	}
}

// ValidationError rejects a single action and never mutates shared state.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string { return "invalid action: " + e.Reason }
