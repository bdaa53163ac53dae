package craps

import "fmt"

// BetType is the closed set of wagers the table accepts. The settlement
// rules treat the set as exhaustive: every variant maps to exactly one
// payout rule.
type BetType uint8

const (
	// Line bets
	Pass BetType = iota
	DontPass
	Come
	DontCome

	// True-odds bets, keyed by the established point
	OddsPass
	OddsDontPass
	OddsCome
	OddsDontCome

	// Field bet
	Field

	// Hardways
	Hard4
	Hard6
	Hard8
	Hard10

	// One-roll next bets
	Next2
	Next3
	Next4
	Next5
	Next6
	Next7
	Next8
	Next9
	Next10
	Next11
	Next12

	// Number-before-7 bets
	Yes2
	Yes3
	Yes4
	Yes5
	Yes6
	Yes8
	Yes9
	Yes10
	Yes11
	Yes12

	// 7-before-number bets
	No2
	No3
	No4
	No5
	No6
	No8
	No9
	No10
	No11
	No12

	// Repeater bets
	Repeater2
	Repeater3
	Repeater4
	Repeater5
	Repeater6
	Repeater8
	Repeater9
	Repeater10
	Repeater11
	Repeater12

	// Multi-round achievement bets
	Fire
	BonusSmall
	BonusTall
	BonusAll
	HotRoller
	TwiceHard
	RideLine
	Muggsy
	Replay
	DifferentDoubles

	numBetTypes
)

var betTypeNames = [numBetTypes]string{
	Pass: "pass", DontPass: "dont-pass", Come: "come", DontCome: "dont-come",
	OddsPass: "odds-pass", OddsDontPass: "odds-dont-pass", OddsCome: "odds-come", OddsDontCome: "odds-dont-come",
	Field: "field",
	Hard4: "hard-4", Hard6: "hard-6", Hard8: "hard-8", Hard10: "hard-10",
	Next2: "next-2", Next3: "next-3", Next4: "next-4", Next5: "next-5", Next6: "next-6",
	Next7: "next-7", Next8: "next-8", Next9: "next-9", Next10: "next-10", Next11: "next-11", Next12: "next-12",
	Yes2: "yes-2", Yes3: "yes-3", Yes4: "yes-4", Yes5: "yes-5", Yes6: "yes-6",
	Yes8: "yes-8", Yes9: "yes-9", Yes10: "yes-10", Yes11: "yes-11", Yes12: "yes-12",
	No2: "no-2", No3: "no-3", No4: "no-4", No5: "no-5", No6: "no-6",
	No8: "no-8", No9: "no-9", No10: "no-10", No11: "no-11", No12: "no-12",
	Repeater2: "repeater-2", Repeater3: "repeater-3", Repeater4: "repeater-4", Repeater5: "repeater-5", Repeater6: "repeater-6",
	Repeater8: "repeater-8", Repeater9: "repeater-9", Repeater10: "repeater-10", Repeater11: "repeater-11", Repeater12: "repeater-12",
	Fire: "fire", BonusSmall: "bonus-small", BonusTall: "bonus-tall", BonusAll: "bonus-all",
	HotRoller: "hot-roller", TwiceHard: "twice-hard", RideLine: "ride-line", Muggsy: "muggsy",
	Replay: "replay", DifferentDoubles: "different-doubles",
}

func (b BetType) String() string {
	if b < numBetTypes {
		return betTypeNames[b]
	}
	return fmt.Sprintf("bet-type(%d)", uint8(b))
}

// Valid reports whether b is a member of the closed set.
func (b BetType) Valid() bool { return b < numBetTypes }

// YesTarget returns the number a Yes-N bet needs before a 7.
func (b BetType) YesTarget() (uint8, bool) {
	switch b {
	case Yes2:
		return 2, true
	case Yes3:
		return 3, true
	case Yes4:
		return 4, true
	case Yes5:
		return 5, true
	case Yes6:
		return 6, true
	case Yes8:
		return 8, true
	case Yes9:
		return 9, true
	case Yes10:
		return 10, true
	case Yes11:
		return 11, true
	case Yes12:
		return 12, true
	}
	return 0, false
}

// NoTarget returns the number a No-N bet needs a 7 to beat.
func (b BetType) NoTarget() (uint8, bool) {
	switch b {
	case No2:
		return 2, true
	case No3:
		return 3, true
	case No4:
		return 4, true
	case No5:
		return 5, true
	case No6:
		return 6, true
	case No8:
		return 8, true
	case No9:
		return 9, true
	case No10:
		return 10, true
	case No11:
		return 11, true
	case No12:
		return 12, true
	}
	return 0, false
}

// NextTarget returns the total a Next-N one-roll bet pays on.
func (b BetType) NextTarget() (uint8, bool) {
	switch b {
	case Next2:
		return 2, true
	case Next3:
		return 3, true
	case Next4:
		return 4, true
	case Next5:
		return 5, true
	case Next6:
		return 6, true
	case Next7:
		return 7, true
	case Next8:
		return 8, true
	case Next9:
		return 9, true
	case Next10:
		return 10, true
	case Next11:
		return 11, true
	case Next12:
		return 12, true
	}
	return 0, false
}

// RepeaterTarget returns the number a Repeater-N bet tracks.
func (b BetType) RepeaterTarget() (uint8, bool) {
	switch b {
	case Repeater2:
		return 2, true
	case Repeater3:
		return 3, true
	case Repeater4:
		return 4, true
	case Repeater5:
		return 5, true
	case Repeater6:
		return 6, true
	case Repeater8:
		return 8, true
	case Repeater9:
		return 9, true
	case Repeater10:
		return 10, true
	case Repeater11:
		return 11, true
	case Repeater12:
		return 12, true
	}
	return 0, false
}

// HardTarget returns the total a hardway bet covers.
func (b BetType) HardTarget() (uint8, bool) {
	switch b {
	case Hard4:
		return 4, true
	case Hard6:
		return 6, true
	case Hard8:
		return 8, true
	case Hard10:
		return 10, true
	}
	return 0, false
}

// ValidForPhase reports whether the bet may be placed in the given phase.
// Line bets are come-out only; come and odds bets require an established
// point; everything else can be placed whenever the table is live.
func (b BetType) ValidForPhase(phase GamePhase) bool {
	switch phase {
	case PhaseComeOut:
		switch b {
		case Come, DontCome, OddsPass, OddsDontPass, OddsCome, OddsDontCome:
			return false
		}
		return true
	case PhasePoint:
		switch b {
		case Pass, DontPass:
			return false
		}
		return true
	}
	return false
}
