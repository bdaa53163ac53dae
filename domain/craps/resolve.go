package craps

import (
	"bytes"
	"sort"
)

// resolveComeOut settles line bets on a come-out roll. Establishing a
// point emits no line-bet resolution; the bets ride into the point phase.
func (g *Game) resolveComeOut(roll DiceRoll) []BetResolution {
	var resolutions []BetResolution
	total := roll.Total()

	for _, player := range g.sortedBetPlayers() {
		bets := g.Bets[player]
		if bet, ok := bets[Pass]; ok {
			switch total {
			case 7, 11:
				resolutions = append(resolutions, won(player, Pass, bet.Amount, bet.Amount*2))
			case 2, 3, 12:
				resolutions = append(resolutions, lost(player, Pass, bet.Amount))
			}
		}
		if bet, ok := bets[DontPass]; ok {
			switch total {
			case 2, 3:
				resolutions = append(resolutions, won(player, DontPass, bet.Amount, bet.Amount*2))
			case 7, 11:
				resolutions = append(resolutions, lost(player, DontPass, bet.Amount))
			case 12:
				// Bar 12: the don't side pushes instead of winning.
				resolutions = append(resolutions, push(player, DontPass, bet.Amount))
			}
		}
	}
	return resolutions
}

// resolvePoint settles bets while a point is established: the made
// point, the seven-out, and the number bets on every other total.
func (g *Game) resolvePoint(roll DiceRoll) []BetResolution {
	var resolutions []BetResolution
	var travels []comeTravel
	total := roll.Total()
	point := g.Point

	for _, player := range g.sortedBetPlayers() {
		bets := g.Bets[player]
		switch {
		case total == point:
			if bet, ok := bets[Pass]; ok {
				resolutions = append(resolutions, won(player, Pass, bet.Amount, bet.Amount*2))
			}
			if bet, ok := bets[DontPass]; ok {
				resolutions = append(resolutions, lost(player, DontPass, bet.Amount))
			}
			for _, bt := range []BetType{OddsPass, OddsCome} {
				if bet, ok := bets[bt]; ok {
					resolutions = append(resolutions, won(player, bt, bet.Amount, Payout(bet.Amount, OddsMultiplier(point, true))))
				}
			}
			for _, bt := range []BetType{OddsDontPass, OddsDontCome} {
				if bet, ok := bets[bt]; ok {
					resolutions = append(resolutions, lost(player, bt, bet.Amount))
				}
			}
		case total == 7:
			if bet, ok := bets[Pass]; ok {
				resolutions = append(resolutions, lost(player, Pass, bet.Amount))
			}
			if bet, ok := bets[DontPass]; ok {
				resolutions = append(resolutions, won(player, DontPass, bet.Amount, bet.Amount*2))
			}
			for _, bt := range []BetType{OddsPass, OddsCome} {
				if bet, ok := bets[bt]; ok {
					resolutions = append(resolutions, lost(player, bt, bet.Amount))
				}
			}
			for _, bt := range []BetType{OddsDontPass, OddsDontCome} {
				if bet, ok := bets[bt]; ok {
					resolutions = append(resolutions, won(player, bt, bet.Amount, Payout(bet.Amount, OddsMultiplier(point, false))))
				}
			}
			// Seven-out kills every number-before-7 and hardway bet.
			for _, bt := range sortedBetTypes(bets) {
				if _, ok := bt.YesTarget(); ok {
					resolutions = append(resolutions, lost(player, bt, bets[bt].Amount))
				}
				if _, ok := bt.HardTarget(); ok {
					resolutions = append(resolutions, lost(player, bt, bets[bt].Amount))
				}
				if target, ok := bt.NoTarget(); ok {
					resolutions = append(resolutions, won(player, bt, bets[bt].Amount, Payout(bets[bt].Amount, NoMultiplier(target))))
				}
			}
		default:
			resolutions = append(resolutions, g.resolveNumberBets(roll, player, bets)...)
		}
		comeResolutions, comeTravels := g.resolveComeBase(roll, player, bets)
		resolutions = append(resolutions, comeResolutions...)
		travels = append(travels, comeTravels...)
	}

	// Already travelled bets are judged before this roll's travels land,
	// so a come bet never wins on the roll that moved it.
	resolutions = append(resolutions, g.resolveTravelledCome(roll)...)
	for _, tr := range travels {
		dest := g.ComePoints
		if tr.dontSide {
			dest = g.DontComePoints
		}
		if dest[tr.player] == nil {
			dest[tr.player] = map[uint8]uint64{}
		}
		dest[tr.player][tr.point] = tr.amount
	}
	return resolutions
}

// comeTravel is a come or don't-come bet moving to its own point.
type comeTravel struct {
	player   PeerId
	point    uint8
	amount   uint64
	dontSide bool
}

// resolveNumberBets settles Yes-N, No-N and hardway bets on a point
// phase roll that is neither the point nor a 7.
func (g *Game) resolveNumberBets(roll DiceRoll, player PeerId, bets map[BetType]Bet) []BetResolution {
	var resolutions []BetResolution
	total := roll.Total()

	for _, bt := range sortedBetTypes(bets) {
		bet := bets[bt]
		if target, ok := bt.YesTarget(); ok && total == target {
			resolutions = append(resolutions, won(player, bt, bet.Amount, Payout(bet.Amount, YesMultiplier(target))))
		}
		if target, ok := bt.NoTarget(); ok && total == target {
			resolutions = append(resolutions, lost(player, bt, bet.Amount))
		}
		if target, ok := bt.HardTarget(); ok && total == target {
			if roll.IsHardWay() {
				resolutions = append(resolutions, won(player, bt, bet.Amount, bet.Amount*hardMultiplier(target)))
			} else {
				// Easy way loses the hardway bet outright.
				resolutions = append(resolutions, lost(player, bt, bet.Amount))
			}
		}
	}
	return resolutions
}

// resolveComeBase settles a freshly placed come or don't-come bet, or
// hands it back as a travel to its own point.
func (g *Game) resolveComeBase(roll DiceRoll, player PeerId, bets map[BetType]Bet) ([]BetResolution, []comeTravel) {
	var resolutions []BetResolution
	var travels []comeTravel
	total := roll.Total()

	if bet, ok := bets[Come]; ok {
		switch total {
		case 7, 11:
			resolutions = append(resolutions, won(player, Come, bet.Amount, bet.Amount*2))
		case 2, 3, 12:
			resolutions = append(resolutions, lost(player, Come, bet.Amount))
		default:
			travels = append(travels, comeTravel{player: player, point: total, amount: bet.Amount})
			delete(bets, Come)
		}
	}
	if bet, ok := bets[DontCome]; ok {
		switch total {
		case 2, 3:
			resolutions = append(resolutions, won(player, DontCome, bet.Amount, bet.Amount*2))
		case 7, 11:
			resolutions = append(resolutions, lost(player, DontCome, bet.Amount))
		case 12:
			resolutions = append(resolutions, push(player, DontCome, bet.Amount))
		default:
			travels = append(travels, comeTravel{player: player, point: total, amount: bet.Amount, dontSide: true})
			delete(bets, DontCome)
		}
	}
	return resolutions, travels
}

// resolveTravelledCome settles come and don't-come bets that already
// moved to a point of their own.
func (g *Game) resolveTravelledCome(roll DiceRoll) []BetResolution {
	var resolutions []BetResolution
	total := roll.Total()

	for _, player := range sortedComePlayers(g.ComePoints) {
		points := g.ComePoints[player]
		for _, comePoint := range sortedPointKeys(points) {
			amount := points[comePoint]
			if total == comePoint {
				resolutions = append(resolutions, won(player, Come, amount, amount*2))
				delete(points, comePoint)
			} else if total == 7 {
				resolutions = append(resolutions, lost(player, Come, amount))
				delete(points, comePoint)
			}
		}
		if len(points) == 0 {
			delete(g.ComePoints, player)
		}
	}
	for _, player := range sortedComePlayers(g.DontComePoints) {
		points := g.DontComePoints[player]
		for _, dontPoint := range sortedPointKeys(points) {
			amount := points[dontPoint]
			if total == 7 {
				resolutions = append(resolutions, won(player, DontCome, amount, amount*2))
				delete(points, dontPoint)
			} else if total == dontPoint {
				resolutions = append(resolutions, lost(player, DontCome, amount))
				delete(points, dontPoint)
			}
		}
		if len(points) == 0 {
			delete(g.DontComePoints, player)
		}
	}
	return resolutions
}

// resolveOneRoll settles Field and Next-N bets; they live and die on
// every roll regardless of phase.
func (g *Game) resolveOneRoll(roll DiceRoll) []BetResolution {
	var resolutions []BetResolution
	total := roll.Total()

	for _, player := range g.sortedBetPlayers() {
		bets := g.Bets[player]
		if bet, ok := bets[Field]; ok {
			switch total {
			case 2, 12:
				resolutions = append(resolutions, won(player, Field, bet.Amount, bet.Amount*3))
			case 3, 4, 9, 10, 11:
				resolutions = append(resolutions, won(player, Field, bet.Amount, bet.Amount*2))
			default:
				resolutions = append(resolutions, lost(player, Field, bet.Amount))
			}
		}
		for _, bt := range sortedBetTypes(bets) {
			bet := bets[bt]
			if target, ok := bt.NextTarget(); ok {
				if total == target {
					resolutions = append(resolutions, won(player, bt, bet.Amount, Payout(bet.Amount, NextMultiplier(target))))
				} else {
					resolutions = append(resolutions, lost(player, bt, bet.Amount))
				}
			}
		}
	}
	return resolutions
}

// resolveMultiRound pays achievement bets whose completion condition the
// trackers now satisfy. A bet that has not completed stays pending; the
// seven-out series reset is what ends its run.
func (g *Game) resolveMultiRound(roll DiceRoll) []BetResolution {
	var resolutions []BetResolution

	for _, player := range g.sortedBetPlayers() {
		bets := g.Bets[player]

		if bet, ok := bets[Fire]; ok {
			if m := fireMultiplier(len(g.FirePoints)); m > 0 {
				resolutions = append(resolutions, won(player, Fire, bet.Amount, bet.Amount*m))
			}
		}
		for _, bt := range sortedBetTypes(bets) {
			bet := bets[bt]
			if target, ok := bt.RepeaterTarget(); ok {
				if g.RepeaterCounts[target] >= RepeaterRequired(target) {
					resolutions = append(resolutions, won(player, bt, bet.Amount, Payout(bet.Amount, RepeaterMultiplier(target))))
				}
			}
		}
		if bet, ok := bets[BonusSmall]; ok && g.hasAllNumbers(2, 3, 4, 5, 6) {
			resolutions = append(resolutions, won(player, BonusSmall, bet.Amount, bet.Amount*31))
		}
		if bet, ok := bets[BonusTall]; ok && g.hasAllNumbers(8, 9, 10, 11, 12) {
			resolutions = append(resolutions, won(player, BonusTall, bet.Amount, bet.Amount*31))
		}
		if bet, ok := bets[BonusAll]; ok && g.hasAllNumbers(2, 3, 4, 5, 6, 8, 9, 10, 11, 12) {
			resolutions = append(resolutions, won(player, BonusAll, bet.Amount, bet.Amount*151))
		}
		if bet, ok := bets[HotRoller]; ok && g.Phase == PhasePoint && g.RollCount > 20 {
			resolutions = append(resolutions, won(player, HotRoller, bet.Amount, Payout(bet.Amount, hotRollerMultiplier(g.RollCount))))
		}
		if bet, ok := bets[TwiceHard]; ok && g.hasHardwayStreak(2) {
			resolutions = append(resolutions, won(player, TwiceHard, bet.Amount, bet.Amount*7))
		}
		if bet, ok := bets[RideLine]; ok && g.PassWinStreak >= 3 {
			resolutions = append(resolutions, won(player, RideLine, bet.Amount, Payout(bet.Amount, rideLineMultiplier(g.PassWinStreak))))
		}
		if bet, ok := bets[Muggsy]; ok && g.muggsyHit(roll) {
			resolutions = append(resolutions, won(player, Muggsy, bet.Amount, bet.Amount*3))
		}
		if bet, ok := bets[Replay]; ok {
			if count := g.maxPointRepeats(); count >= 3 {
				resolutions = append(resolutions, won(player, Replay, bet.Amount, Payout(bet.Amount, replayMultiplier(count))))
			}
		}
		if bet, ok := bets[DifferentDoubles]; ok && len(g.DoublesRolled) >= 2 {
			resolutions = append(resolutions, won(player, DifferentDoubles, bet.Amount, Payout(bet.Amount, differentDoublesMultiplier(len(g.DoublesRolled)))))
		}
	}
	return resolutions
}

func (g *Game) hasAllNumbers(numbers ...uint8) bool {
	for _, n := range numbers {
		if !g.BonusNumbers[n] {
			return false
		}
	}
	return true
}

func (g *Game) hasHardwayStreak(min uint8) bool {
	for _, count := range g.HardwayStreak {
		if count >= min {
			return true
		}
	}
	return false
}

// muggsyHit matches a natural 7 on come-out immediately followed by a
// point-establishing roll.
func (g *Game) muggsyHit(roll DiceRoll) bool {
	n := len(g.RollHistory)
	if n < 2 || g.Phase != PhaseComeOut {
		return false
	}
	prev := g.RollHistory[n-2].Total()
	curr := roll.Total()
	return prev == 7 && curr >= 4 && curr <= 10 && curr != 7
}

func (g *Game) maxPointRepeats() int {
	counts := map[uint8]int{}
	max := 0
	for _, p := range g.PointHistory {
		counts[p]++
		if counts[p] > max {
			max = counts[p]
		}
	}
	return max
}

func sortedBetTypes(bets map[BetType]Bet) []BetType {
	types := make([]BetType, 0, len(bets))
	for bt := range bets {
		types = append(types, bt)
	}
	sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })
	return types
}

func sortedComePlayers(m map[PeerId]map[uint8]uint64) []PeerId {
	players := make([]PeerId, 0, len(m))
	for p := range m {
		players = append(players, p)
	}
	sort.Slice(players, func(i, j int) bool {
		return bytes.Compare(players[i][:], players[j][:]) < 0
	})
	return players
}
