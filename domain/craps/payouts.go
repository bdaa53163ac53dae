package craps

// Payout multipliers are expressed in basis points: 100 means 1:1.
// Every computation is integer-only with truncating division so all
// peers arrive at byte-identical payouts.

// Payout returns stake plus winnings for a multiplier in basis points.
func Payout(amount uint64, multiplier uint64) uint64 {
	return amount + amount*multiplier/100
}

// YesMultiplier is the basis-point payout for a Yes-N win.
func YesMultiplier(target uint8) uint64 {
	switch target {
	case 2, 12:
		return 588
	case 3, 11:
		return 294
	case 4, 10:
		return 196
	case 5, 9:
		return 147
	case 6, 8:
		return 118
	}
	return 100
}

// NoMultiplier is the basis-point payout for a No-N win.
func NoMultiplier(target uint8) uint64 {
	switch target {
	case 2, 12:
		return 16
	case 3, 11:
		return 33
	case 4, 10:
		return 49
	case 5, 9:
		return 65
	case 6, 8:
		return 82
	}
	return 100
}

// NextMultiplier is the basis-point payout for a Next-N one-roll win.
func NextMultiplier(target uint8) uint64 {
	switch target {
	case 2, 12:
		return 3430
	case 3, 11:
		return 1666
	case 4, 10:
		return 1078
	case 5, 9:
		return 784
	case 6, 8:
		return 608
	case 7:
		return 490
	}
	return 100
}

// RepeaterMultiplier is the basis-point payout once a repeater completes.
func RepeaterMultiplier(target uint8) uint64 {
	switch target {
	case 2, 12:
		return 4000
	case 3, 11:
		return 5000
	case 4, 10:
		return 6500
	case 5, 9:
		return 8000
	case 6, 8:
		return 9000
	}
	return 100
}

// RepeaterRequired is how many times the number must roll before a 7.
func RepeaterRequired(target uint8) uint8 {
	switch target {
	case 2:
		return 2
	case 3:
		return 3
	case 4:
		return 4
	case 5:
		return 5
	case 6:
		return 6
	case 8:
		return 6
	case 9:
		return 5
	case 10:
		return 4
	case 11:
		return 3
	case 12:
		return 2
	}
	return 0
}

// OddsMultiplier is the true-odds basis-point payout for the given point.
// Pass-side odds pay 2:1 on 4/10, 3:2 on 5/9 and 6:5 on 6/8; the don't
// side pays the inverse.
func OddsMultiplier(point uint8, pass bool) uint64 {
	if pass {
		switch point {
		case 4, 10:
			return 200
		case 5, 9:
			return 150
		case 6, 8:
			return 120
		}
		return 100
	}
	switch point {
	case 4, 10:
		return 50
	case 5, 9:
		return 67
	case 6, 8:
		return 83
	}
	return 100
}

// hardMultiplier is the total-return factor for a hardway win:
// hard 4 and 10 pay 7:1, hard 6 and 8 pay 9:1.
func hardMultiplier(target uint8) uint64 {
	switch target {
	case 4, 10:
		return 8
	case 6, 8:
		return 10
	}
	return 0
}

// fireMultiplier is the total-return factor by unique points made.
func fireMultiplier(uniquePoints int) uint64 {
	switch uniquePoints {
	case 4:
		return 25
	case 5:
		return 250
	case 6:
		return 1000
	}
	return 0
}

// hotRollerMultiplier is the basis-point payout by roll-count streak.
func hotRollerMultiplier(rollCount uint64) uint64 {
	switch {
	case rollCount <= 30:
		return 200
	case rollCount <= 40:
		return 500
	case rollCount <= 50:
		return 1000
	}
	return 2000
}

// rideLineMultiplier is the basis-point payout by consecutive pass wins.
func rideLineMultiplier(passWins uint32) uint64 {
	switch passWins {
	case 3:
		return 300
	case 4:
		return 500
	case 5:
		return 1000
	}
	return 2500
}

// replayMultiplier is the basis-point payout by repeats of the same point.
func replayMultiplier(count int) uint64 {
	switch count {
	case 3:
		return 1000
	case 4:
		return 2500
	}
	return 5000
}

// differentDoublesMultiplier is the basis-point payout by distinct doubles.
func differentDoublesMultiplier(count int) uint64 {
	switch count {
	case 2:
		return 600
	case 3:
		return 2500
	case 4:
		return 10000
	}
	return 25000
}
