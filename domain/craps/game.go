package craps

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
)

// Game is the authoritative craps table state: phase, point, the bet
// ledger and every tracker the multi-round bets are judged against.
// All mutation happens through PlaceBet and ProcessRoll so that every
// peer replaying the same actions reaches the same state.
type Game struct {
	ID           GameId   `json:"id"`
	Phase        GamePhase `json:"phase"`
	Shooter      PeerId   `json:"shooter"`
	Participants []PeerId `json:"participants"`
	Point        uint8    `json:"point"` // 0 when no point is established
	SeriesID     uint64   `json:"series_id"`
	RollCount    uint64   `json:"roll_count"`
	RollHistory  []DiceRoll `json:"roll_history"`

	// Bet ledger: at most one active bet per (player, bet type).
	Bets map[PeerId]map[BetType]Bet `json:"bets"`

	// Come and don't-come bets that travelled to a point.
	ComePoints     map[PeerId]map[uint8]uint64 `json:"come_points"`
	DontComePoints map[PeerId]map[uint8]uint64 `json:"dont_come_points"`

	// Achievement trackers, reset at seven-out.
	FirePoints     map[uint8]bool  `json:"fire_points"`
	RepeaterCounts map[uint8]uint8 `json:"repeater_counts"`
	BonusNumbers   map[uint8]bool  `json:"bonus_numbers"`
	HardwayStreak  map[uint8]uint8 `json:"hardway_streak"`
	DoublesRolled  map[uint8]bool  `json:"doubles_rolled"`
	PointHistory   []uint8         `json:"point_history"`
	PassWinStreak  uint32          `json:"pass_win_streak"`
}

// NewGame creates a table in the come-out phase with the shooter as the
// only participant.
func NewGame(id GameId, shooter PeerId) *Game {
	return &Game{
		ID:             id,
		Phase:          PhaseComeOut,
		Shooter:        shooter,
		Participants:   []PeerId{shooter},
		Bets:           map[PeerId]map[BetType]Bet{},
		ComePoints:     map[PeerId]map[uint8]uint64{},
		DontComePoints: map[PeerId]map[uint8]uint64{},
		FirePoints:     map[uint8]bool{},
		RepeaterCounts: map[uint8]uint8{},
		BonusNumbers:   map[uint8]bool{},
		HardwayStreak:  map[uint8]uint8{},
		DoublesRolled:  map[uint8]bool{},
	}
}

// AddPlayer registers a participant. Returns false if already present.
func (g *Game) AddPlayer(player PeerId) bool {
	for _, p := range g.Participants {
		if p == player {
			return false
		}
	}
	g.Participants = append(g.Participants, player)
	return true
}

// HasParticipant reports whether the player has joined this table.
func (g *Game) HasParticipant(player PeerId) bool {
	for _, p := range g.Participants {
		if p == player {
			return true
		}
	}
	return false
}

// IsActive reports whether the table accepts bets and rolls.
func (g *Game) IsActive() bool {
	return g.Phase == PhaseComeOut || g.Phase == PhasePoint
}

// Resolve marks the table terminally closed. Used when consensus cannot
// recover; no further bets or rolls are accepted.
func (g *Game) Resolve() {
	g.Phase = PhaseResolved
}

// PlaceBet validates and records a wager in the ledger. A rejected bet
// leaves the state untouched.
func (g *Game) PlaceBet(bet Bet) error {
	if !g.IsActive() {
		return &ValidationError{Reason: "game is not active"}
	}
	if bet.Game != g.ID {
		return &ValidationError{Reason: fmt.Sprintf("bet targets game %s, not %s", bet.Game, g.ID)}
	}
	if !bet.Type.Valid() {
		return &ValidationError{Reason: fmt.Sprintf("unknown bet type %d", uint8(bet.Type))}
	}
	if bet.Amount < MinBet || bet.Amount > MaxBet {
		return &ValidationError{Reason: fmt.Sprintf("amount %d outside [%d, %d]", bet.Amount, MinBet, MaxBet)}
	}
	if !bet.Type.ValidForPhase(g.Phase) {
		return &ValidationError{Reason: fmt.Sprintf("%s bet not allowed during %s", bet.Type, g.Phase)}
	}
	if !g.HasParticipant(bet.Player) {
		return &ValidationError{Reason: fmt.Sprintf("player %s has not joined", bet.Player)}
	}
	if _, dup := g.Bets[bet.Player][bet.Type]; dup {
		return &ValidationError{Reason: fmt.Sprintf("player %s already has a %s bet", bet.Player, bet.Type)}
	}
	if g.Bets[bet.Player] == nil {
		g.Bets[bet.Player] = map[BetType]Bet{}
	}
	g.Bets[bet.Player][bet.Type] = bet
	return nil
}

// ActiveBets returns every pending wager sorted by (player, bet type),
// the canonical order used for consensus digests.
func (g *Game) ActiveBets() []Bet {
	var bets []Bet
	for _, player := range g.sortedBetPlayers() {
		types := make([]BetType, 0, len(g.Bets[player]))
		for bt := range g.Bets[player] {
			types = append(types, bt)
		}
		sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })
		for _, bt := range types {
			bets = append(bets, g.Bets[player][bt])
		}
	}
	return bets
}

// ProcessRoll settles every bet affected by the roll and advances the
// phase, point and trackers. It is a pure function of the current state
// and the roll: identical inputs yield identical resolutions on every
// peer.
func (g *Game) ProcessRoll(roll DiceRoll) []BetResolution {
	if !g.IsActive() {
		return nil
	}
	total := roll.Total()
	g.RollCount++
	g.RollHistory = append(g.RollHistory, roll)

	g.trackRoll(roll)
	switch {
	case g.Phase == PhaseComeOut && (total == 7 || total == 11):
		g.PassWinStreak++
	case g.Phase == PhaseComeOut && (total == 2 || total == 3 || total == 12):
		g.PassWinStreak = 0
	case g.Phase == PhasePoint && total == g.Point:
		g.FirePoints[total] = true
		g.PointHistory = append(g.PointHistory, total)
		g.PassWinStreak++
	}

	var resolutions []BetResolution
	switch g.Phase {
	case PhaseComeOut:
		resolutions = append(resolutions, g.resolveComeOut(roll)...)
	case PhasePoint:
		resolutions = append(resolutions, g.resolvePoint(roll)...)
	}
	resolutions = append(resolutions, g.resolveOneRoll(roll)...)
	resolutions = append(resolutions, g.resolveMultiRound(roll)...)

	g.advancePhase(total)
	g.removeSettled(resolutions)
	return resolutions
}

// trackRoll updates the per-roll trackers before any bet is judged.
func (g *Game) trackRoll(roll DiceRoll) {
	total := roll.Total()
	if total != 7 {
		g.BonusNumbers[total] = true
	}
	g.RepeaterCounts[total]++
	if roll.IsHardWay() {
		g.HardwayStreak[total]++
	} else if total == 4 || total == 6 || total == 8 || total == 10 {
		delete(g.HardwayStreak, total)
	}
	if roll.Die1 == roll.Die2 && roll.Die1 >= 2 {
		g.DoublesRolled[total] = true
	}
}

// advancePhase moves the table to the next phase after resolutions are
// computed. Both a made point and a seven-out start a new series; only
// the seven-out wipes the achievement trackers.
func (g *Game) advancePhase(total uint8) {
	switch g.Phase {
	case PhaseComeOut:
		switch total {
		case 4, 5, 6, 8, 9, 10:
			g.Point = total
			g.Phase = PhasePoint
		}
	case PhasePoint:
		if total == g.Point {
			g.Point = 0
			g.Phase = PhaseComeOut
			g.SeriesID++
		} else if total == 7 {
			g.Point = 0
			g.Phase = PhaseComeOut
			g.SeriesID++
			g.resetSeries()
		}
	}
}

// resetSeries clears everything a seven-out ends.
func (g *Game) resetSeries() {
	g.FirePoints = map[uint8]bool{}
	g.RepeaterCounts = map[uint8]uint8{}
	g.BonusNumbers = map[uint8]bool{}
	g.HardwayStreak = map[uint8]uint8{}
	g.DoublesRolled = map[uint8]bool{}
	g.PointHistory = nil
	g.PassWinStreak = 0
	g.ComePoints = map[PeerId]map[uint8]uint64{}
	g.DontComePoints = map[PeerId]map[uint8]uint64{}
}

// removeSettled takes terminally resolved bets off the ledger. Pending
// multi-round bets are never in the resolution list, so they survive.
func (g *Game) removeSettled(resolutions []BetResolution) {
	for _, r := range resolutions {
		if bets, ok := g.Bets[r.Player]; ok {
			delete(bets, r.BetType)
			if len(bets) == 0 {
				delete(g.Bets, r.Player)
			}
		}
	}
}

// Snapshot serializes the full table state. Two peers holding the same
// state produce byte-identical snapshots.
func (g *Game) Snapshot() ([]byte, error) {
	return json.Marshal(g)
}

// Restore replaces the table state with a previously taken snapshot.
// Unmarshaling goes through a fresh value so maps already populated on
// the receiver do not leak entries into the restored state.
func (g *Game) Restore(data []byte) error {
	var restored Game
	if err := json.Unmarshal(data, &restored); err != nil {
		return err
	}
	*g = restored
	return nil
}

func (g *Game) sortedBetPlayers() []PeerId {
	players := make([]PeerId, 0, len(g.Bets))
	for p := range g.Bets {
		players = append(players, p)
	}
	sort.Slice(players, func(i, j int) bool {
		return bytes.Compare(players[i][:], players[j][:]) < 0
	})
	return players
}

func sortedPointKeys[V any](m map[uint8]V) []uint8 {
	keys := make([]uint8, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}
