package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/luca-patrignani/p2p-craps/consensus"
	"github.com/luca-patrignani/p2p-craps/crypto"
	"github.com/luca-patrignani/p2p-craps/domain/craps"
	"github.com/luca-patrignani/p2p-craps/eventlog"
	"github.com/luca-patrignani/p2p-craps/network"
	"github.com/luca-patrignani/p2p-craps/random"
)

// RoundResult reports a finished round to the actor's consumer.
type RoundResult struct {
	Round       uint64
	Roll        craps.DiceRoll
	Resolutions []craps.BetResolution
	Err         error
}

type roundPhase uint8

const (
	phaseIdle roundPhase = iota
	phaseCommit
	phaseReveal
	phaseDecide
)

// Actor owns one game's authoritative state. Every mutation runs on its
// single Run goroutine, either as an inbound message or as a posted
// command, so the ledger, randomness and consensus state never see
// interleaved writes. Timers post commands instead of touching state
// directly.
type Actor struct {
	self        craps.PeerId
	gameId      craps.GameId
	pair        *crypto.KeyPair
	registry    *crypto.Registry
	broadcaster network.Broadcaster
	inbox       <-chan network.Message
	logger      *slog.Logger

	game *craps.Game
	log  *eventlog.Log
	rand *random.Coordinator
	cons *consensus.Coordinator

	commands chan func()
	results  chan RoundResult

	revealTimeout time.Duration
	decideTimeout time.Duration

	round       uint64
	phase       roundPhase
	nonce       []byte
	stash       []eventlog.SignedEvent
	pendingRoll craps.DiceRoll
	pendingRes  []craps.BetResolution
}

type actorOption func(*Actor)

// WithRevealTimeout bounds the commit and reveal collection windows.
func WithRevealTimeout(d time.Duration) actorOption {
	return func(a *Actor) { a.revealTimeout = d }
}

// WithDecideTimeout bounds the summary collection window.
func WithDecideTimeout(d time.Duration) actorOption {
	return func(a *Actor) { a.decideTimeout = d }
}

// WithActorLogger replaces the default logger.
func WithActorLogger(logger *slog.Logger) actorOption {
	return func(a *Actor) { a.logger = logger }
}

// NewActor builds the per-game actor. The shooter is the game's
// creator; every peer of the same game must agree on it, or their
// replayed states will diverge.
func NewActor(gameId craps.GameId, shooter craps.PeerId, pair *crypto.KeyPair, registry *crypto.Registry, broadcaster network.Broadcaster, inbox <-chan network.Message, opts ...actorOption) *Actor {
	a := &Actor{
		self:          pair.PeerId(),
		gameId:        gameId,
		pair:          pair,
		registry:      registry,
		broadcaster:   broadcaster,
		inbox:         inbox,
		logger:        slog.Default(),
		game:          craps.NewGame(gameId, shooter),
		log:           eventlog.New(gameId, shooter, registry),
		rand:          random.NewCoordinator(gameId),
		cons:          consensus.NewCoordinator(gameId, registry),
		commands:      make(chan func(), 64),
		results:       make(chan RoundResult, 16),
		revealTimeout: 2 * time.Second,
		decideTimeout: consensus.DefaultCollectTimeout,
	}
	for _, opt := range opts {
		opt(a)
	}
	a.game.AddPlayer(a.self)
	return a
}

// Run serializes all state mutation. It returns when the context ends
// or the inbox closes.
func (a *Actor) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case cmd := <-a.commands:
			cmd()
		case msg, ok := <-a.inbox:
			if !ok {
				return
			}
			a.handleMessage(msg)
		}
	}
}

// Results delivers one RoundResult per completed or failed round.
func (a *Actor) Results() <-chan RoundResult {
	return a.results
}

func (a *Actor) post(cmd func()) {
	a.commands <- cmd
}

func (a *Actor) after(d time.Duration, cmd func()) {
	time.AfterFunc(d, func() { a.post(cmd) })
}

// AddParticipant registers a peer at the table before any of its events
// arrive.
func (a *Actor) AddParticipant(id craps.PeerId) {
	done := make(chan struct{})
	a.post(func() {
		a.game.AddPlayer(id)
		close(done)
	})
	<-done
}

// Game returns a snapshot of the current table state.
func (a *Actor) Game() (*craps.Game, error) {
	type reply struct {
		snapshot []byte
		err      error
	}
	replies := make(chan reply, 1)
	a.post(func() {
		b, err := a.game.Snapshot()
		replies <- reply{snapshot: b, err: err}
	})
	r := <-replies
	if r.err != nil {
		return nil, r.err
	}
	restored := &craps.Game{}
	if err := restored.Restore(r.snapshot); err != nil {
		return nil, err
	}
	return restored, nil
}

// PlaceBet validates, records, logs and broadcasts a wager by this
// peer. The bet targets the currently open round, or the next one when
// no round is open.
func (a *Actor) PlaceBet(betType craps.BetType, amount uint64) error {
	errs := make(chan error, 1)
	a.post(func() { errs <- a.placeBet(betType, amount) })
	return <-errs
}

func (a *Actor) placeBet(betType craps.BetType, amount uint64) error {
	round := a.round + 1
	if a.phase != phaseIdle {
		round = a.round
	}
	bet := craps.NewBet(a.self, a.gameId, betType, amount, uint64(time.Now().UnixNano()))
	if err := a.game.PlaceBet(bet); err != nil {
		return err
	}

	payload, err := eventlog.EncodeBetPayload(bet)
	if err != nil {
		return err
	}
	signed, err := eventlog.NewEvent(a.gameId, round, eventlog.KindBetPlace, a.self, payload, bet.Timestamp).Sign(a.pair)
	if err != nil {
		return err
	}
	if err := a.log.Apply(signed); err != nil {
		return err
	}
	a.broadcastEvent(signed)
	a.logger.Info("bet placed", "type", betType.String(), "amount", amount, "round", round)
	return nil
}

// StartRound opens a commit-reveal round. The outcome arrives on
// Results once consensus settles.
func (a *Actor) StartRound() error {
	errs := make(chan error, 1)
	a.post(func() { errs <- a.startRound() })
	return <-errs
}

func (a *Actor) startRound() error {
	if a.phase != phaseIdle {
		return fmt.Errorf("round %d still in progress", a.round)
	}
	if !a.game.IsActive() {
		return fmt.Errorf("game %s is not active", a.gameId)
	}
	nonce, err := random.NewNonce()
	if err != nil {
		return err
	}
	a.round++
	a.nonce = nonce
	a.phase = phaseCommit
	a.rand.BeginRound(a.round)
	revert := func(err error) error {
		a.round--
		a.phase = phaseIdle
		return err
	}

	commitment := random.Commit(nonce, a.self, a.gameId, a.round)
	payload, err := eventlog.EncodeCommitmentPayload([32]byte(commitment))
	if err != nil {
		return revert(err)
	}
	signed, err := eventlog.NewEvent(a.gameId, a.round, eventlog.KindCommitment, a.self, payload, uint64(time.Now().UnixNano())).Sign(a.pair)
	if err != nil {
		return revert(err)
	}
	if err := a.log.Apply(signed); err != nil {
		return revert(err)
	}
	if err := a.rand.SubmitCommitment(a.self, commitment); err != nil {
		return revert(err)
	}
	a.broadcastEvent(signed)
	a.drainStash()

	round := a.round
	a.after(a.revealTimeout, func() { a.reveal(round) })
	a.logger.Info("round opened", "round", round)
	return nil
}

// reveal publishes this peer's nonce, once per round: either every
// participant has committed or the commit window expired.
func (a *Actor) reveal(round uint64) {
	if a.phase != phaseCommit || a.round != round {
		return
	}
	a.phase = phaseReveal

	payload, err := eventlog.EncodeRevealPayload(a.nonce)
	if err != nil {
		a.fail(fmt.Errorf("encoding reveal: %w", err))
		return
	}
	signed, err := eventlog.NewEvent(a.gameId, a.round, eventlog.KindReveal, a.self, payload, uint64(time.Now().UnixNano())).Sign(a.pair)
	if err != nil {
		a.fail(fmt.Errorf("signing reveal: %w", err))
		return
	}
	if err := a.log.Apply(signed); err != nil {
		a.fail(err)
		return
	}
	if err := a.rand.SubmitReveal(a.self, a.nonce); err != nil {
		a.fail(err)
		return
	}
	a.broadcastEvent(signed)

	a.after(a.revealTimeout, func() { a.complete(round) })
	a.maybeComplete()
}

// complete closes the reveal window: non-revealers are excluded and the
// dice derive from whoever validly revealed.
func (a *Actor) complete(round uint64) {
	if a.phase != phaseReveal || a.round != round {
		return
	}
	a.phase = phaseDecide

	roll, err := a.rand.CompleteRound()
	if err != nil {
		a.fail(err)
		return
	}
	bets := a.game.ActiveBets()
	resolutions := a.game.ProcessRoll(roll)
	a.pendingRoll = roll
	a.pendingRes = resolutions

	summary, err := a.cons.ComputeLocal(a.round, roll, bets, resolutions, a.pair)
	if err != nil {
		a.fail(fmt.Errorf("computing summary: %w", err))
		return
	}
	a.broadcastSummary(summary)
	a.after(a.decideTimeout, func() { a.decide(round) })
	a.logger.Info("roll settled locally", "round", a.round, "roll", roll.String(), "resolutions", len(resolutions))
}

// decide commits the round on quorum agreement, or escalates to
// reconciliation, or gives the round up as unrecoverable.
func (a *Actor) decide(round uint64) {
	if a.phase != phaseDecide || a.round != round {
		return
	}
	cert, err := a.cons.Decide(a.round, len(a.game.Participants))
	switch {
	case err == nil:
		if cperr := a.log.AddCheckpoint(*cert); cperr != nil {
			a.logger.Debug("checkpoint not stored", "round", a.round, "err", cperr)
		}
		a.phase = phaseIdle
		a.results <- RoundResult{Round: a.round, Roll: a.pendingRoll, Resolutions: a.pendingRes}
		a.logger.Info("round committed", "round", a.round, "confirmations", len(cert.Summaries))

	case errors.Is(err, consensus.ErrInsufficientConfirmations):
		a.logger.Warn("quorum missed, reconciling", "round", a.round, "err", err)
		a.requestMissingEvents()
		a.after(a.decideTimeout, func() { a.reconcile(round) })

	default:
		a.game.Resolve()
		a.phase = phaseIdle
		a.results <- RoundResult{Round: a.round, Err: err}
		a.logger.Error("game unrecoverable", "round", a.round, "err", err)
	}
}

// reconcile adopts the state replayed from the merged event log,
// recomputes the round summary from it and retries the decision.
func (a *Actor) reconcile(round uint64) {
	if a.phase != phaseDecide || a.round != round {
		return
	}
	game, replay, err := a.log.ReplayThrough(a.round)
	if err != nil {
		a.fail(fmt.Errorf("replaying log: %w", err))
		return
	}
	if !replay.Rolled || replay.Round != a.round {
		a.fail(fmt.Errorf("replay produced no roll for round %d", a.round))
		return
	}
	a.game = game
	a.pendingRoll = replay.Roll
	a.pendingRes = replay.Resolutions

	summary, err := a.cons.ComputeLocal(a.round, replay.Roll, replay.Bets, replay.Resolutions, a.pair)
	if err != nil {
		a.fail(fmt.Errorf("recomputing summary: %w", err))
		return
	}
	a.broadcastSummary(summary)
	a.after(a.decideTimeout, func() { a.decide(round) })
	a.logger.Info("state replayed", "round", a.round, "events", a.log.Len())
}

func (a *Actor) fail(err error) {
	a.phase = phaseIdle
	a.results <- RoundResult{Round: a.round, Err: err}
	a.logger.Error("round failed", "round", a.round, "err", err)
}

func (a *Actor) handleMessage(msg network.Message) {
	game, err := msg.GameIdOf()
	if err != nil || game != a.gameId {
		return
	}
	switch msg.Kind {
	case network.KindBetPlace, network.KindCommitmentSubmit, network.KindRevealSubmit:
		signed, err := network.DecodeEventMessage(msg)
		if err != nil {
			a.logger.Debug("dropping malformed event message", "err", err)
			return
		}
		a.applyRemoteEvent(signed)

	case network.KindRoundSummary:
		summary, err := network.DecodeSummaryMessage(msg)
		if err != nil {
			a.logger.Debug("dropping malformed summary", "err", err)
			return
		}
		if err := a.cons.AddSummary(summary); err != nil {
			a.logger.Debug("summary not counted", "err", err)
		}

	case network.KindEventRequest:
		known, err := network.DecodeEventRequestMessage(msg)
		if err != nil {
			return
		}
		a.serveEvents(known)

	case network.KindEventResponse:
		events, err := network.DecodeEventResponseMessage(msg)
		if err != nil {
			return
		}
		for _, signed := range events {
			if err := a.log.Apply(signed); err != nil && !errors.Is(err, eventlog.ErrDuplicateEvent) {
				a.logger.Debug("merged event rejected", "err", err)
			}
		}
	}
}

// applyRemoteEvent logs a peer's event and feeds it into the live round
// state when it belongs to the open round.
func (a *Actor) applyRemoteEvent(signed eventlog.SignedEvent) {
	if err := a.log.Apply(signed); err != nil {
		if !errors.Is(err, eventlog.ErrDuplicateEvent) {
			a.logger.Debug("event rejected", "err", err)
		}
		return
	}
	sender, err := signed.Event.SenderId()
	if err != nil {
		return
	}
	a.game.AddPlayer(sender)

	switch signed.Event.Kind {
	case eventlog.KindBetPlace:
		bet, err := eventlog.DecodeBetPayload(&signed.Event)
		if err != nil {
			return
		}
		if err := a.game.PlaceBet(bet); err != nil {
			a.logger.Debug("peer bet rejected", "peer", sender.String(), "err", err)
		}

	case eventlog.KindCommitment, eventlog.KindReveal:
		// A peer may open the round before we do; keep its contribution
		// until our own StartRound catches up.
		if a.phase == phaseIdle && signed.Event.Round == a.round+1 {
			a.stash = append(a.stash, signed)
			return
		}
		if signed.Event.Round != a.round {
			return
		}
		a.applyContribution(signed, sender)
	}
}

// applyContribution feeds a commitment or reveal into the open round.
func (a *Actor) applyContribution(signed eventlog.SignedEvent, sender craps.PeerId) {
	switch signed.Event.Kind {
	case eventlog.KindCommitment:
		if a.phase != phaseCommit {
			return
		}
		hash, err := eventlog.DecodeCommitmentPayload(&signed.Event)
		if err != nil {
			return
		}
		if err := a.rand.SubmitCommitment(sender, random.Commitment(hash)); err != nil {
			a.logger.Debug("commitment rejected", "peer", sender.String(), "err", err)
			return
		}
		// Everyone has committed: no need to wait out the window.
		if a.rand.CommitmentCount() >= len(a.game.Participants) {
			a.reveal(a.round)
		}

	case eventlog.KindReveal:
		if a.phase != phaseReveal && a.phase != phaseCommit {
			return
		}
		nonce, err := eventlog.DecodeRevealPayload(&signed.Event)
		if err != nil {
			return
		}
		if err := a.rand.SubmitReveal(sender, nonce); err != nil {
			a.logger.Warn("reveal excluded", "peer", sender.String(), "err", err)
		}
		a.maybeComplete()
	}
}

// drainStash replays contributions that arrived before the round
// opened locally, commitments first so their reveals verify.
func (a *Actor) drainStash() {
	stash := a.stash
	a.stash = nil
	for _, kind := range []uint32{eventlog.KindCommitment, eventlog.KindReveal} {
		for _, signed := range stash {
			if signed.Event.Round != a.round || signed.Event.Kind != kind {
				continue
			}
			sender, err := signed.Event.SenderId()
			if err != nil {
				continue
			}
			a.applyContribution(signed, sender)
		}
	}
}

func (a *Actor) maybeComplete() {
	if a.phase == phaseReveal && a.rand.AllRevealed() {
		a.complete(a.round)
	}
}

// serveEvents answers an EventRequest: send back whatever we hold that
// the requester's hash list does not cover.
func (a *Actor) serveEvents(known [][32]byte) {
	knownSet := make(map[[32]byte]bool, len(known))
	for _, h := range known {
		knownSet[h] = true
	}
	var missing []eventlog.SignedEvent
	for _, signed := range a.log.Entries() {
		hash, err := signed.Event.Hash()
		if err != nil {
			continue
		}
		if !knownSet[hash] {
			missing = append(missing, signed)
		}
	}
	if len(missing) == 0 {
		return
	}
	msg, err := network.NewEventResponseMessage(a.gameId, missing)
	if err != nil {
		a.logger.Error("encoding event response", "err", err)
		return
	}
	a.broadcaster.Broadcast(msg)
}

func (a *Actor) requestMissingEvents() {
	msg, err := network.NewEventRequestMessage(a.gameId, a.log.Hashes())
	if err != nil {
		a.logger.Error("encoding event request", "err", err)
		return
	}
	a.broadcaster.Broadcast(msg)
}

func (a *Actor) broadcastEvent(signed eventlog.SignedEvent) {
	msg, err := network.NewEventMessage(a.gameId, signed)
	if err != nil {
		a.logger.Error("encoding event broadcast", "err", err)
		return
	}
	a.broadcaster.Broadcast(msg)
}

func (a *Actor) broadcastSummary(summary consensus.RoundSummary) {
	msg, err := network.NewSummaryMessage(a.gameId, summary)
	if err != nil {
		a.logger.Error("encoding summary broadcast", "err", err)
		return
	}
	a.broadcaster.Broadcast(msg)
}
