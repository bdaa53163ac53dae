package main

import (
	"fmt"
	"strconv"

	"github.com/pterm/pterm"

	"github.com/luca-patrignani/p2p-craps/application"
	"github.com/luca-patrignani/p2p-craps/domain/craps"
)

func printTable(g *craps.Game, self craps.PeerId) {
	var panels []pterm.Panel
	for _, p := range g.Participants {
		if p != self {
			panels = append(panels, pterm.Panel{Data: printPlayerInfo(g, p, false)})
		}
	}
	board := pterm.Panel{Data: pterm.DefaultHeader.WithBackgroundStyle(pterm.BgGreen.ToStyle()).Sprint(printBoardInfo(g))}
	dashboard := []pterm.Panel{{Data: printPlayerInfo(g, self, true)}}

	pterm.DefaultPanel.WithPanels([][]pterm.Panel{
		panels,
		{board},
		dashboard,
	}).Render()
}

func printPlayerInfo(g *craps.Game, p craps.PeerId, main bool) string {
	hpadding := 4
	if main {
		hpadding = 10
	}
	pbox := pterm.DefaultBox.WithLeftPadding(hpadding).WithRightPadding(hpadding).WithTopPadding(1).WithBottomPadding(1)
	title := p.String()
	if p == g.Shooter {
		title += " " + pterm.LightYellow("(shooter)")
	}
	bets := ""
	for _, bet := range g.Bets[p] {
		bets += pterm.Sprintfln("%s: %d", bet.Type, bet.Amount)
	}
	for point, amount := range g.ComePoints[p] {
		bets += pterm.Sprintfln("come on %d: %d", point, amount)
	}
	for point, amount := range g.DontComePoints[p] {
		bets += pterm.Sprintfln("dont-come on %d: %d", point, amount)
	}
	if bets == "" {
		bets = pterm.Gray("no bets down")
	}
	return pbox.WithTitle(title).WithTitleTopLeft().Sprint(bets)
}

func printBoardInfo(g *craps.Game) string {
	board := "Phase: " + g.Phase.String()
	if g.Point != 0 {
		board += " | Point: " + strconv.Itoa(int(g.Point))
	}
	board += " | Series: " + strconv.FormatUint(g.SeriesID, 10)
	board += " | Rolls: " + strconv.FormatUint(g.RollCount, 10)
	if n := len(g.RollHistory); n > 0 {
		board += " | Last roll: " + g.RollHistory[n-1].String()
	}
	return board
}

func printRollResult(result application.RoundResult, self craps.PeerId) {
	pbox := pterm.DefaultBox.WithLeftPadding(4).WithRightPadding(4).WithTopPadding(1).WithBottomPadding(1)
	info := pterm.Sprintfln("The dice came up %s", pterm.LightCyan(result.Roll.String()))
	for _, r := range result.Resolutions {
		name := r.Player.String()
		if r.Player == self {
			name = pterm.LightCyan("you")
		}
		switch r.Outcome {
		case craps.Won:
			info += pterm.Sprintfln("%s %s with %s, payout %d", name, pterm.LightGreen("won"), r.BetType, r.Payout)
		case craps.Lost:
			info += pterm.Sprintfln("%s %s %d on %s", name, pterm.LightRed("lost"), r.Amount, r.BetType)
		case craps.Push:
			info += pterm.Sprintfln("%s pushed on %s, stake %d returned", name, r.BetType, r.Amount)
		}
	}
	if len(result.Resolutions) == 0 {
		info += "No bets settled on this roll"
	}
	title := fmt.Sprintf("|ROUND %d|", result.Round)
	pterm.Println(pbox.WithTitle(pterm.LightGreen(title)).WithTitleTopCenter().Sprint(info))
}
