package consensus

import (
	"errors"
	"testing"

	"github.com/luca-patrignani/p2p-craps/crypto"
	"github.com/luca-patrignani/p2p-craps/domain/craps"
)

var testGame = craps.GameId{0xaa}

type testPeer struct {
	pair *crypto.KeyPair
	id   craps.PeerId
}

func newPeers(t *testing.T, reg *crypto.Registry, n int) []testPeer {
	t.Helper()
	peers := make([]testPeer, n)
	for i := range peers {
		pair := crypto.NewKeyPair()
		id, err := reg.Register(pair.Public)
		if err != nil {
			t.Fatalf("registering peer %d: %v", i, err)
		}
		peers[i] = testPeer{pair: pair, id: id}
	}
	return peers
}

func testResolutions(payout uint64) []craps.BetResolution {
	return []craps.BetResolution{{
		Player:  craps.PeerId{1},
		BetType: craps.Pass,
		Amount:  10,
		Outcome: craps.Won,
		Payout:  payout,
	}}
}

func summaryFrom(t *testing.T, peer testPeer, roll craps.DiceRoll, resolutions []craps.BetResolution) RoundSummary {
	t.Helper()
	coord := NewCoordinator(testGame, crypto.NewRegistry())
	s, err := coord.ComputeLocal(1, roll, nil, resolutions, peer.pair)
	if err != nil {
		t.Fatalf("computing summary: %v", err)
	}
	return s
}

func TestQuorum(t *testing.T) {
	tests := []struct {
		n        int
		expected int
	}{
		{1, 1}, {2, 2}, {3, 3}, {4, 3}, {5, 4}, {6, 5}, {7, 5}, {10, 7},
	}
	for _, tt := range tests {
		if got := Quorum(tt.n); got != tt.expected {
			t.Errorf("Quorum(%d) = %d, want %d", tt.n, got, tt.expected)
		}
	}
}

func TestSummarySignAndVerify(t *testing.T) {
	reg := crypto.NewRegistry()
	peers := newPeers(t, reg, 1)
	s := summaryFrom(t, peers[0], craps.DiceRoll{Die1: 3, Die2: 4}, testResolutions(20))

	if err := s.Verify(reg); err != nil {
		t.Errorf("valid summary rejected: %v", err)
	}

	s.PayoutRoot[0] ^= 1
	if err := s.Verify(reg); err == nil {
		t.Error("tampered summary accepted")
	}
}

func TestDecideCommitsAtQuorum(t *testing.T) {
	reg := crypto.NewRegistry()
	peers := newPeers(t, reg, 7)
	roll := craps.DiceRoll{Die1: 3, Die2: 4}

	coord := NewCoordinator(testGame, reg)
	if _, err := coord.ComputeLocal(1, roll, nil, testResolutions(20), peers[0].pair); err != nil {
		t.Fatalf("compute local: %v", err)
	}
	// Four more peers agree: five matching summaries out of seven.
	for _, peer := range peers[1:5] {
		if err := coord.AddSummary(summaryFrom(t, peer, roll, testResolutions(20))); err != nil {
			t.Fatalf("adding summary: %v", err)
		}
	}

	cert, err := coord.Decide(1, len(peers))
	if err != nil {
		t.Fatalf("decide with 5/7 matching: %v", err)
	}
	if len(cert.Summaries) != 5 {
		t.Errorf("certificate has %d summaries, want 5", len(cert.Summaries))
	}
	if coord.State(1) != Committed {
		t.Errorf("round state = %s, want committed", coord.State(1))
	}

	isParticipant := func(id craps.PeerId) bool {
		for _, p := range peers {
			if p.id == id {
				return true
			}
		}
		return false
	}
	if err := cert.Validate(reg, isParticipant, len(peers)); err != nil {
		t.Errorf("certificate validation: %v", err)
	}
}

func TestDecideBelowQuorumTriggersReconciliation(t *testing.T) {
	reg := crypto.NewRegistry()
	peers := newPeers(t, reg, 7)
	roll := craps.DiceRoll{Die1: 3, Die2: 4}

	coord := NewCoordinator(testGame, reg)
	if _, err := coord.ComputeLocal(1, roll, nil, testResolutions(20), peers[0].pair); err != nil {
		t.Fatalf("compute local: %v", err)
	}
	// Only three peers agree; two others computed a different payout.
	for _, peer := range peers[1:4] {
		if err := coord.AddSummary(summaryFrom(t, peer, roll, testResolutions(20))); err != nil {
			t.Fatalf("adding summary: %v", err)
		}
	}
	for _, peer := range peers[4:6] {
		if err := coord.AddSummary(summaryFrom(t, peer, roll, testResolutions(999))); err != nil {
			t.Fatalf("adding summary: %v", err)
		}
	}

	if _, err := coord.Decide(1, len(peers)); !errors.Is(err, ErrInsufficientConfirmations) {
		t.Fatalf("decide with 4/7 matching: got %v, want ErrInsufficientConfirmations", err)
	}
	if coord.State(1) != Reconciling {
		t.Errorf("round state = %s, want reconciling", coord.State(1))
	}
}

func TestDecideAfterFailedReconciliationIsTerminal(t *testing.T) {
	reg := crypto.NewRegistry()
	peers := newPeers(t, reg, 4)
	roll := craps.DiceRoll{Die1: 1, Die2: 2}

	coord := NewCoordinator(testGame, reg)
	if _, err := coord.ComputeLocal(1, roll, nil, testResolutions(20), peers[0].pair); err != nil {
		t.Fatalf("compute local: %v", err)
	}

	if _, err := coord.Decide(1, len(peers)); !errors.Is(err, ErrInsufficientConfirmations) {
		t.Fatalf("first decide: got %v, want ErrInsufficientConfirmations", err)
	}
	if _, err := coord.Decide(1, len(peers)); !errors.Is(err, ErrByzantineThresholdExceeded) {
		t.Fatalf("second decide: got %v, want ErrByzantineThresholdExceeded", err)
	}
	if coord.State(1) != Unrecoverable {
		t.Errorf("round state = %s, want unrecoverable", coord.State(1))
	}
}

func TestAddSummaryRejectsDuplicateSigner(t *testing.T) {
	reg := crypto.NewRegistry()
	peers := newPeers(t, reg, 2)
	roll := craps.DiceRoll{Die1: 3, Die2: 4}

	coord := NewCoordinator(testGame, reg)
	s := summaryFrom(t, peers[1], roll, testResolutions(20))
	if err := coord.AddSummary(s); err != nil {
		t.Fatalf("first summary: %v", err)
	}
	if err := coord.AddSummary(s); err == nil {
		t.Error("duplicate signer accepted")
	}
}

func TestReconcilingRoundAcceptsCorrectedSummary(t *testing.T) {
	reg := crypto.NewRegistry()
	peers := newPeers(t, reg, 3)
	roll := craps.DiceRoll{Die1: 3, Die2: 4}

	coord := NewCoordinator(testGame, reg)
	if _, err := coord.ComputeLocal(1, roll, nil, testResolutions(20), peers[0].pair); err != nil {
		t.Fatalf("compute local: %v", err)
	}
	if err := coord.AddSummary(summaryFrom(t, peers[1], roll, testResolutions(20))); err != nil {
		t.Fatalf("adding summary: %v", err)
	}
	// A diverging third peer keeps the round below its quorum of 3.
	if err := coord.AddSummary(summaryFrom(t, peers[2], roll, testResolutions(999))); err != nil {
		t.Fatalf("adding summary: %v", err)
	}
	if _, err := coord.Decide(1, len(peers)); !errors.Is(err, ErrInsufficientConfirmations) {
		t.Fatalf("first decide: got %v, want ErrInsufficientConfirmations", err)
	}

	// After merging logs the peer recomputes and rebroadcasts; the
	// corrected summary must replace its earlier vote.
	if err := coord.AddSummary(summaryFrom(t, peers[2], roll, testResolutions(20))); err != nil {
		t.Fatalf("corrected summary rejected: %v", err)
	}
	cert, err := coord.Decide(1, len(peers))
	if err != nil {
		t.Fatalf("decide after correction: %v", err)
	}
	if len(cert.Summaries) != 3 {
		t.Errorf("certificate has %d summaries, want 3", len(cert.Summaries))
	}
}

func TestAddSummaryRejectsWrongGame(t *testing.T) {
	reg := crypto.NewRegistry()
	peers := newPeers(t, reg, 1)

	other := NewCoordinator(craps.GameId{0xbb}, crypto.NewRegistry())
	s, err := other.ComputeLocal(1, craps.DiceRoll{Die1: 3, Die2: 4}, nil, nil, peers[0].pair)
	if err != nil {
		t.Fatalf("compute local: %v", err)
	}

	coord := NewCoordinator(testGame, reg)
	if err := coord.AddSummary(s); err == nil {
		t.Error("summary for a different game accepted")
	}
}
