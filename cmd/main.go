package main

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"os"
	"strconv"

	"github.com/pterm/pterm"
	"github.com/pterm/pterm/putils"

	"github.com/luca-patrignani/p2p-craps/application"
	"github.com/luca-patrignani/p2p-craps/crypto"
	"github.com/luca-patrignani/p2p-craps/discovery"
	"github.com/luca-patrignani/p2p-craps/domain/craps"
	"github.com/luca-patrignani/p2p-craps/network"
)

const (
	discoveryStart uint16 = 9000
	discoveryEnd   uint16 = 9010
)

func main() {
	if len(os.Args) != 2 {
		fmt.Fprintf(os.Stderr, "usage: %s <ip>\n", os.Args[0])
		os.Exit(1)
	}

	// Create a new slog handler with the default PTerm logger
	handler := pterm.NewSlogHandler(&pterm.DefaultLogger)
	logger := slog.New(handler)

	pterm.DefaultBigText.WithLetters(
		putils.LettersFromStringWithStyle("P2P ", pterm.FgDarkGray.ToStyle()),
		putils.LettersFromStringWithStyle("C", pterm.FgRed.ToStyle()),
		putils.LettersFromStringWithStyle("raps", pterm.FgDarkGray.ToStyle()),
	).Render()

	pair := crypto.NewKeyPair()
	registry := crypto.NewRegistry()
	if _, err := registry.Register(pair.Public); err != nil {
		panic(err)
	}
	self := pair.PeerId()
	pterm.Info.Printfln("Your peer id: %s", self)

	ip := os.Args[1]
	l, err := net.Listen("tcp", ip+":0")
	if err != nil {
		logger.Error("failed to listen on address", "address", ip, "err", err.Error())
		panic(err)
	}
	mesh := network.NewMesh(self, network.WithLogger(logger))
	mesh.Start(l)
	pterm.Info.Println("Listening on " + l.Addr().String())
	pterm.Print("\n")

	game, shooter := chooseTable(self)
	players := promptPlayers()

	publicKey, err := crypto.PublicKeyBytes(pair.Public)
	if err != nil {
		panic(err)
	}
	ann := discovery.Announcement{
		Game:      game,
		Shooter:   shooter,
		Peer:      self,
		Address:   l.Addr().String(),
		PublicKey: publicKey,
	}
	discover, err := discovery.NewWithOptions(ann,
		discovery.WithPortRange(discoveryStart, discoveryEnd),
		discovery.WithAttempts(60),
	)
	if err != nil {
		panic(err)
	}

	actor := application.NewActor(game, shooter, pair, registry, mesh, mesh.Inbox(),
		application.WithActorLogger(logger),
	)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go actor.Run(ctx)

	spinner, _ := pterm.DefaultSpinner.Start(fmt.Sprintf("Waiting for %d more players to sit down ...", players-1))
	found := map[craps.PeerId]bool{}
	for len(found) < players-1 {
		entry := <-discover.Entries
		if entry.Game != game || entry.Peer == self || found[entry.Peer] {
			continue
		}
		id, err := registry.RegisterBytes(entry.PublicKey)
		if err != nil || id != entry.Peer {
			logger.Warn("ignoring peer with mismatched key", "peer", entry.Peer.String())
			continue
		}
		found[id] = true
		mesh.AddPeer(id, entry.Address)
		actor.AddParticipant(id)
		spinner.UpdateText(fmt.Sprintf("%s joined (%d/%d)", id, len(found), players-1))
	}
	spinner.Success()
	if err := discover.Close(); err != nil {
		logger.Warn("discovery shutdown", "err", err.Error())
	}
	pterm.Success.Printfln("Table %s is full, dice are hot", game)

	play(actor, self)
}

// chooseTable either opens a fresh table with this peer as the shooter
// or adopts the game and shooter of a table already announced nearby.
func chooseTable(self craps.PeerId) (craps.GameId, craps.PeerId) {
	choice, _ := pterm.DefaultInteractiveSelect.
		WithDefaultText("Open a new table or join one?").
		WithOptions([]string{"Open a new table", "Join a table"}).
		Show()
	if choice == "Open a new table" {
		game := craps.NewGameId()
		pterm.Info.Printfln("Opened table %s", game)
		return game, self
	}

	for {
		entries := discovery.Find(discoveryStart, discoveryEnd)
		tables := map[string]discovery.Entry{}
		var options []string
		for _, e := range entries {
			label := fmt.Sprintf("%s (shooter %s)", e.Game, e.Shooter)
			if _, ok := tables[label]; !ok {
				tables[label] = e
				options = append(options, label)
			}
		}
		if len(options) == 0 {
			if retry, _ := pterm.DefaultInteractiveConfirm.
				WithDefaultText("No open tables found, scan again?").
				WithDefaultValue(true).Show(); retry {
				continue
			}
			os.Exit(0)
		}
		label, _ := pterm.DefaultInteractiveSelect.
			WithDefaultText("Pick a table").
			WithOptions(options).
			Show()
		entry := tables[label]
		return entry.Game, entry.Shooter
	}
}

func promptPlayers() int {
	for {
		answer, _ := pterm.DefaultInteractiveTextInput.
			WithDefaultText("How many players at the table?").
			WithDefaultValue("2").
			Show()
		players, err := strconv.Atoi(answer)
		if err != nil || players < 2 {
			pterm.Error.Println("At least 2 players are needed")
			continue
		}
		return players
	}
}

// play is the table loop: render the state, then bet or roll until the
// table closes or the player walks away.
func play(actor *application.Actor, self craps.PeerId) {
	for {
		game, err := actor.Game()
		if err != nil {
			panic(err)
		}
		printTable(game, self)
		if !game.IsActive() {
			pterm.Error.Println("The table is closed")
			return
		}

		action, _ := pterm.DefaultInteractiveSelect.
			WithDefaultText("Your move").
			WithOptions([]string{"Roll the dice", "Place a bet", "Walk away"}).
			Show()
		switch action {
		case "Place a bet":
			placeBet(actor, game.Phase)
		case "Roll the dice":
			rollDice(actor, self)
		case "Walk away":
			return
		}
	}
}

func placeBet(actor *application.Actor, phase craps.GamePhase) {
	options, byName := betMenu(phase)
	name, _ := pterm.DefaultInteractiveSelect.
		WithDefaultText("Pick a bet").
		WithOptions(options).
		Show()
	answer, _ := pterm.DefaultInteractiveTextInput.
		WithDefaultText("Amount").
		WithDefaultValue("10").
		Show()
	amount, err := strconv.ParseUint(answer, 10, 64)
	if err != nil {
		pterm.Error.Printfln("Invalid amount: %s", answer)
		return
	}
	if err := actor.PlaceBet(byName[name], amount); err != nil {
		pterm.Error.Printfln("Bet rejected: %s", err.Error())
		return
	}
	pterm.Success.Printfln("Bet %s for %d placed", name, amount)
}

// betMenu lists every bet the current phase accepts.
func betMenu(phase craps.GamePhase) ([]string, map[string]craps.BetType) {
	var options []string
	byName := map[string]craps.BetType{}
	for bt := craps.Pass; bt.Valid(); bt++ {
		if !bt.ValidForPhase(phase) {
			continue
		}
		options = append(options, bt.String())
		byName[bt.String()] = bt
	}
	return options, byName
}

func rollDice(actor *application.Actor, self craps.PeerId) {
	if err := actor.StartRound(); err != nil {
		pterm.Error.Printfln("Cannot roll: %s", err.Error())
		return
	}
	spinner, _ := pterm.DefaultSpinner.Start("Waiting for the table to reveal and agree ...")
	result := <-actor.Results()
	if result.Err != nil {
		spinner.Fail()
		pterm.Error.Printfln("Round %d failed: %s", result.Round, result.Err.Error())
		return
	}
	spinner.Success()
	printRollResult(result, self)
}
