package craps

import "fmt"

// BetOutcome is the terminal result of a wager.
type BetOutcome uint8

const (
	Won BetOutcome = iota
	Lost
	Push
)

func (o BetOutcome) String() string {
	switch o {
	case Won:
		return "won"
	case Lost:
		return "lost"
	case Push:
		return "push"
	}
	return fmt.Sprintf("outcome(%d)", uint8(o))
}

// BetResolution records one wager leaving the table. Payout is the total
// amount returned to the player: stake plus winnings for a win, the stake
// for a push, zero for a loss.
type BetResolution struct {
	Player  PeerId     `json:"player"`
	BetType BetType    `json:"bet_type"`
	Amount  uint64     `json:"amount"`
	Outcome BetOutcome `json:"outcome"`
	Payout  uint64     `json:"payout"`
}

func won(player PeerId, betType BetType, amount, payout uint64) BetResolution {
	return BetResolution{Player: player, BetType: betType, Amount: amount, Outcome: Won, Payout: payout}
}

func lost(player PeerId, betType BetType, amount uint64) BetResolution {
	return BetResolution{Player: player, BetType: betType, Amount: amount, Outcome: Lost}
}

func push(player PeerId, betType BetType, amount uint64) BetResolution {
	return BetResolution{Player: player, BetType: betType, Amount: amount, Outcome: Push, Payout: amount}
}
