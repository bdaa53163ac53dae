package eventlog

import (
	"bytes"
	"errors"
	"testing"

	"github.com/luca-patrignani/p2p-craps/consensus"
	"github.com/luca-patrignani/p2p-craps/crypto"
	"github.com/luca-patrignani/p2p-craps/domain/craps"
	"github.com/luca-patrignani/p2p-craps/random"
)

var testGame = craps.GameId{0xaa}

type logPeer struct {
	pair *crypto.KeyPair
	id   craps.PeerId
}

func newLogPeers(t *testing.T, reg *crypto.Registry, n int) []logPeer {
	t.Helper()
	peers := make([]logPeer, n)
	for i := range peers {
		pair := crypto.NewKeyPair()
		id, err := reg.Register(pair.Public)
		if err != nil {
			t.Fatalf("registering peer %d: %v", i, err)
		}
		peers[i] = logPeer{pair: pair, id: id}
	}
	return peers
}

func signedBet(t *testing.T, peer logPeer, round uint64, betType craps.BetType, amount uint64) SignedEvent {
	t.Helper()
	bet := craps.NewBet(peer.id, testGame, betType, amount, round)
	payload, err := EncodeBetPayload(bet)
	if err != nil {
		t.Fatalf("encoding bet: %v", err)
	}
	signed, err := NewEvent(testGame, round, KindBetPlace, peer.id, payload, round).Sign(peer.pair)
	if err != nil {
		t.Fatalf("signing bet event: %v", err)
	}
	return signed
}

func signedCommitment(t *testing.T, peer logPeer, round uint64, nonce []byte) SignedEvent {
	t.Helper()
	payload, err := EncodeCommitmentPayload([32]byte(random.Commit(nonce, peer.id, testGame, round)))
	if err != nil {
		t.Fatalf("encoding commitment: %v", err)
	}
	signed, err := NewEvent(testGame, round, KindCommitment, peer.id, payload, round).Sign(peer.pair)
	if err != nil {
		t.Fatalf("signing commitment event: %v", err)
	}
	return signed
}

func signedReveal(t *testing.T, peer logPeer, round uint64, nonce []byte) SignedEvent {
	t.Helper()
	payload, err := EncodeRevealPayload(nonce)
	if err != nil {
		t.Fatalf("encoding reveal: %v", err)
	}
	signed, err := NewEvent(testGame, round, KindReveal, peer.id, payload, round).Sign(peer.pair)
	if err != nil {
		t.Fatalf("signing reveal event: %v", err)
	}
	return signed
}

func TestApplyDeduplicatesAndRecordsParticipants(t *testing.T) {
	reg := crypto.NewRegistry()
	peers := newLogPeers(t, reg, 2)
	log := New(testGame, peers[0].id, reg)

	ev := signedBet(t, peers[1], 1, craps.Pass, 10)
	if err := log.Apply(ev); err != nil {
		t.Fatalf("apply: %v", err)
	}
	if err := log.Apply(ev); !errors.Is(err, ErrDuplicateEvent) {
		t.Errorf("duplicate apply: got %v, want ErrDuplicateEvent", err)
	}
	if log.Len() != 1 {
		t.Errorf("log has %d events, want 1", log.Len())
	}
	if !log.HasParticipant(peers[1].id) {
		t.Error("sender not recorded as participant")
	}
}

func TestApplyRejectsBadSignature(t *testing.T) {
	reg := crypto.NewRegistry()
	peers := newLogPeers(t, reg, 2)
	log := New(testGame, peers[0].id, reg)

	ev := signedBet(t, peers[1], 1, craps.Pass, 10)
	ev.Event.Timestamp++
	if err := log.Apply(ev); err == nil {
		t.Error("event with stale signature accepted")
	}
	if log.Len() != 0 {
		t.Error("rejected event was stored")
	}
}

func TestApplyRejectsWrongGame(t *testing.T) {
	reg := crypto.NewRegistry()
	peers := newLogPeers(t, reg, 1)
	log := New(craps.GameId{0xbb}, peers[0].id, reg)

	if err := log.Apply(signedBet(t, peers[0], 1, craps.Pass, 10)); !errors.Is(err, ErrWrongGame) {
		t.Error("event for another game accepted")
	}
}

// playRound appends one full round: each peer places a field bet,
// commits and reveals.
func playRound(t *testing.T, log *Log, peers []logPeer, round uint64) {
	t.Helper()
	nonces := make([][]byte, len(peers))
	for i, peer := range peers {
		if err := log.Apply(signedBet(t, peer, round, craps.Field, 10)); err != nil {
			t.Fatalf("round %d bet: %v", round, err)
		}
		nonce := make([]byte, random.NonceSize)
		nonce[0] = byte(round)
		nonce[1] = byte(i)
		nonces[i] = nonce
		if err := log.Apply(signedCommitment(t, peer, round, nonce)); err != nil {
			t.Fatalf("round %d commitment: %v", round, err)
		}
	}
	for i, peer := range peers {
		if err := log.Apply(signedReveal(t, peer, round, nonces[i])); err != nil {
			t.Fatalf("round %d reveal: %v", round, err)
		}
	}
}

func TestComputeStateIsOrderIndependent(t *testing.T) {
	reg := crypto.NewRegistry()
	peers := newLogPeers(t, reg, 3)

	first := New(testGame, peers[0].id, reg)
	playRound(t, first, peers, 1)
	playRound(t, first, peers, 2)

	// Deliver the same events to a second log in reverse order.
	second := New(testGame, peers[0].id, reg)
	entries := first.Entries()
	for i := len(entries) - 1; i >= 0; i-- {
		if err := second.Apply(entries[i]); err != nil {
			t.Fatalf("applying out of order: %v", err)
		}
	}

	firstState, err := first.ComputeState()
	if err != nil {
		t.Fatalf("first compute: %v", err)
	}
	secondState, err := second.ComputeState()
	if err != nil {
		t.Fatalf("second compute: %v", err)
	}

	a, err := firstState.Snapshot()
	if err != nil {
		t.Fatalf("first snapshot: %v", err)
	}
	b, err := secondState.Snapshot()
	if err != nil {
		t.Fatalf("second snapshot: %v", err)
	}
	if !bytes.Equal(a, b) {
		t.Error("replayed states differ across delivery orders")
	}
	if firstState.RollCount != 2 {
		t.Errorf("replayed state has %d rolls, want 2", firstState.RollCount)
	}
}

func TestComputeStateSkipsMismatchedReveal(t *testing.T) {
	reg := crypto.NewRegistry()
	peers := newLogPeers(t, reg, 2)
	log := New(testGame, peers[0].id, reg)

	good := make([]byte, random.NonceSize)
	bad := make([]byte, random.NonceSize)
	bad[0] = 0xff

	if err := log.Apply(signedCommitment(t, peers[0], 1, good)); err != nil {
		t.Fatalf("commitment: %v", err)
	}
	if err := log.Apply(signedCommitment(t, peers[1], 1, good)); err != nil {
		t.Fatalf("commitment: %v", err)
	}
	if err := log.Apply(signedReveal(t, peers[0], 1, good)); err != nil {
		t.Fatalf("reveal: %v", err)
	}
	// Second peer reveals a nonce that does not open its commitment.
	if err := log.Apply(signedReveal(t, peers[1], 1, bad)); err != nil {
		t.Fatalf("reveal: %v", err)
	}

	state, err := log.ComputeState()
	if err != nil {
		t.Fatalf("compute: %v", err)
	}
	expected, err := random.RollFromReveals(map[craps.PeerId][]byte{peers[0].id: good}, 1)
	if err != nil {
		t.Fatalf("roll from reveals: %v", err)
	}
	if state.RollCount != 1 || state.RollHistory[0] != expected {
		t.Errorf("replay roll %v, want %v from the single valid reveal", state.RollHistory, expected)
	}
}

func TestMissingAndGet(t *testing.T) {
	reg := crypto.NewRegistry()
	peers := newLogPeers(t, reg, 2)
	log := New(testGame, peers[0].id, reg)

	ev := signedBet(t, peers[0], 1, craps.Pass, 10)
	if err := log.Apply(ev); err != nil {
		t.Fatalf("apply: %v", err)
	}
	known, err := ev.Event.Hash()
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	unknown := [32]byte{0xde, 0xad}

	missing := log.Missing([][32]byte{known, unknown})
	if len(missing) != 1 || missing[0] != unknown {
		t.Errorf("missing = %v, want only the unknown hash", missing)
	}
	got := log.Get([][32]byte{known, unknown})
	if len(got) != 1 {
		t.Fatalf("get returned %d events, want 1", len(got))
	}
}

func checkpointFor(t *testing.T, log *Log, peers []logPeer, reg *crypto.Registry, round uint64) consensus.RoundConsensus {
	t.Helper()
	roll := craps.DiceRoll{Die1: 3, Die2: 4}
	resolutions := []craps.BetResolution{{Player: peers[0].id, BetType: craps.Pass, Amount: 10, Outcome: craps.Won, Payout: 20}}

	var summaries []consensus.RoundSummary
	var root []byte
	for _, peer := range peers {
		coord := consensus.NewCoordinator(testGame, reg)
		s, err := coord.ComputeLocal(round, roll, nil, resolutions, peer.pair)
		if err != nil {
			t.Fatalf("compute local: %v", err)
		}
		summaries = append(summaries, s)
		root = s.PayoutRoot
	}
	return consensus.RoundConsensus{
		Game:       testGame[:],
		Round:      round,
		PayoutRoot: root,
		Summaries:  summaries,
	}
}

func TestCheckpointAndCompact(t *testing.T) {
	reg := crypto.NewRegistry()
	peers := newLogPeers(t, reg, 3)
	log := New(testGame, peers[0].id, reg)

	playRound(t, log, peers, 1)
	playRound(t, log, peers, 2)
	before := log.Len()

	cp := checkpointFor(t, log, peers, reg, 2)
	if err := log.AddCheckpoint(cp); err != nil {
		t.Fatalf("add checkpoint: %v", err)
	}

	dropped := log.Compact()
	if dropped == 0 {
		t.Error("compact dropped nothing despite an older round")
	}
	if log.Len() != before-dropped {
		t.Errorf("log length %d after dropping %d from %d", log.Len(), dropped, before)
	}
	for _, e := range log.Entries() {
		if e.Event.Round < 2 {
			t.Errorf("event from round %d survived compaction", e.Event.Round)
		}
	}
}

func TestCompactPreservesReplayedState(t *testing.T) {
	reg := crypto.NewRegistry()
	peers := newLogPeers(t, reg, 3)
	log := New(testGame, peers[0].id, reg)

	playRound(t, log, peers, 1)
	playRound(t, log, peers, 2)

	stateBefore, err := log.ComputeState()
	if err != nil {
		t.Fatalf("compute before compaction: %v", err)
	}
	before, err := stateBefore.Snapshot()
	if err != nil {
		t.Fatalf("snapshot before compaction: %v", err)
	}

	if err := log.AddCheckpoint(checkpointFor(t, log, peers, reg, 2)); err != nil {
		t.Fatalf("add checkpoint: %v", err)
	}
	if log.Compact() == 0 {
		t.Fatal("compact dropped nothing despite an older round")
	}

	stateAfter, err := log.ComputeState()
	if err != nil {
		t.Fatalf("compute after compaction: %v", err)
	}
	after, err := stateAfter.Snapshot()
	if err != nil {
		t.Fatalf("snapshot after compaction: %v", err)
	}
	if !bytes.Equal(before, after) {
		t.Error("replayed state changed after compaction")
	}
	if stateAfter.RollCount != 2 {
		t.Errorf("replayed state has %d rolls, want 2", stateAfter.RollCount)
	}

	// New rounds keep building on the checkpointed state.
	playRound(t, log, peers, 3)
	resumed, err := log.ComputeState()
	if err != nil {
		t.Fatalf("compute after new round: %v", err)
	}
	if resumed.RollCount != 3 {
		t.Errorf("replayed state has %d rolls after round 3, want 3", resumed.RollCount)
	}
}

func TestCheckpointRejectedBelowQuorum(t *testing.T) {
	reg := crypto.NewRegistry()
	peers := newLogPeers(t, reg, 3)
	log := New(testGame, peers[0].id, reg)
	playRound(t, log, peers, 1)

	// Only one signer out of three participants: below the quorum of 3.
	cp := checkpointFor(t, log, peers[:1], reg, 1)
	if err := log.AddCheckpoint(cp); err == nil {
		t.Error("checkpoint below quorum accepted")
	}
	if log.Compact() != 0 {
		t.Error("compact ran without a stored checkpoint")
	}
}
