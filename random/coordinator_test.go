package random

import (
	"errors"
	"testing"

	"github.com/luca-patrignani/p2p-craps/domain/craps"
)

var testGame = craps.GameId{0xaa}

func TestCommitVerifyAndBitFlip(t *testing.T) {
	player := craps.PeerId{1}
	nonce := make([]byte, NonceSize)
	for i := range nonce {
		nonce[i] = byte(i)
	}

	c := Commit(nonce, player, testGame, 3)
	if !VerifyCommitment(c, nonce, player, testGame, 3) {
		t.Fatal("commitment does not verify against its own nonce")
	}

	for i := range nonce {
		for bit := 0; bit < 8; bit++ {
			flipped := make([]byte, len(nonce))
			copy(flipped, nonce)
			flipped[i] ^= 1 << bit
			if VerifyCommitment(c, flipped, player, testGame, 3) {
				t.Fatalf("commitment verified with bit %d of byte %d flipped", bit, i)
			}
		}
	}
}

func TestCommitBindsContext(t *testing.T) {
	player := craps.PeerId{1}
	nonce := make([]byte, NonceSize)

	c := Commit(nonce, player, testGame, 3)
	if VerifyCommitment(c, nonce, craps.PeerId{2}, testGame, 3) {
		t.Error("commitment verified for a different player")
	}
	if VerifyCommitment(c, nonce, player, craps.GameId{0xbb}, 3) {
		t.Error("commitment verified for a different game")
	}
	if VerifyCommitment(c, nonce, player, testGame, 4) {
		t.Error("commitment verified for a different round")
	}
}

func TestDeriveIsDeterministic(t *testing.T) {
	seed := [32]byte{1, 2, 3}

	first := Derive(seed, 7)
	for i := 0; i < 100; i++ {
		if Derive(seed, 7) != first {
			t.Fatal("derive is not deterministic")
		}
	}
	if first.Die1 < 1 || first.Die1 > 6 || first.Die2 < 1 || first.Die2 > 6 {
		t.Errorf("derived dice out of range: %v", first)
	}
	if Derive(seed, 8) == first && Derive(seed, 9) == first && Derive(seed, 10) == first {
		t.Error("derive ignores the round number")
	}
}

func TestCoordinatorRound(t *testing.T) {
	alice := craps.PeerId{1}
	bob := craps.PeerId{2}
	c := NewCoordinator(testGame)
	c.BeginRound(1)

	aliceNonce := []byte("alice-nonce-0000-0000-0000-000000")[:NonceSize]
	bobNonce := []byte("bob-nonce-0000-0000-0000-00000000")[:NonceSize]

	if err := c.SubmitCommitment(alice, Commit(aliceNonce, alice, testGame, 1)); err != nil {
		t.Fatalf("alice commitment: %v", err)
	}
	if err := c.SubmitCommitment(bob, Commit(bobNonce, bob, testGame, 1)); err != nil {
		t.Fatalf("bob commitment: %v", err)
	}
	if err := c.SubmitCommitment(alice, Commit(aliceNonce, alice, testGame, 1)); !errors.Is(err, ErrDuplicateCommitment) {
		t.Errorf("second commitment: got %v, want ErrDuplicateCommitment", err)
	}

	if c.AllRevealed() {
		t.Error("all revealed before any reveal")
	}
	if err := c.SubmitReveal(alice, aliceNonce); err != nil {
		t.Fatalf("alice reveal: %v", err)
	}
	if err := c.SubmitReveal(bob, bobNonce); err != nil {
		t.Fatalf("bob reveal: %v", err)
	}
	if !c.AllRevealed() {
		t.Error("not all revealed after both reveals")
	}

	roll, err := c.CompleteRound()
	if err != nil {
		t.Fatalf("complete round: %v", err)
	}

	// Every peer holding the same reveals derives the same roll.
	expected, err := RollFromReveals(map[craps.PeerId][]byte{
		alice: aliceNonce,
		bob:   bobNonce,
	}, 1)
	if err != nil {
		t.Fatalf("roll from reveals: %v", err)
	}
	if roll != expected {
		t.Errorf("coordinator roll %v differs from replayed roll %v", roll, expected)
	}
}

func TestMismatchedRevealExcludesPlayer(t *testing.T) {
	alice := craps.PeerId{1}
	bob := craps.PeerId{2}
	c := NewCoordinator(testGame)
	c.BeginRound(1)

	aliceNonce := make([]byte, NonceSize)
	bobNonce := make([]byte, NonceSize)
	bobNonce[0] = 0xff

	_ = c.SubmitCommitment(alice, Commit(aliceNonce, alice, testGame, 1))
	_ = c.SubmitCommitment(bob, Commit(bobNonce, bob, testGame, 1))

	if err := c.SubmitReveal(alice, aliceNonce); err != nil {
		t.Fatalf("alice reveal: %v", err)
	}
	wrong := make([]byte, NonceSize)
	wrong[0] = 0xee
	if err := c.SubmitReveal(bob, wrong); !errors.Is(err, ErrCommitmentMismatch) {
		t.Fatalf("mismatched reveal: got %v, want ErrCommitmentMismatch", err)
	}
	if !c.AllRevealed() {
		t.Error("excluded player still counted as pending")
	}

	roll, err := c.CompleteRound()
	if err != nil {
		t.Fatalf("complete round: %v", err)
	}
	onlyAlice, _ := RollFromReveals(map[craps.PeerId][]byte{alice: aliceNonce}, 1)
	if roll != onlyAlice {
		t.Errorf("roll %v does not exclude the mismatched reveal, want %v", roll, onlyAlice)
	}
}

func TestCompleteRoundWithoutReveals(t *testing.T) {
	c := NewCoordinator(testGame)
	c.BeginRound(1)
	_ = c.SubmitCommitment(craps.PeerId{1}, Commitment{})

	if _, err := c.CompleteRound(); !errors.Is(err, ErrNoValidReveals) {
		t.Errorf("complete with no reveals: got %v, want ErrNoValidReveals", err)
	}
}

func TestRoundNotOpen(t *testing.T) {
	c := NewCoordinator(testGame)
	if err := c.SubmitCommitment(craps.PeerId{1}, Commitment{}); !errors.Is(err, ErrRoundNotOpen) {
		t.Errorf("commitment before begin: got %v, want ErrRoundNotOpen", err)
	}
	c.BeginRound(1)
	if _, err := c.CompleteRound(); err == nil {
		t.Error("expected error completing a round with no reveals")
	}
	if err := c.SubmitReveal(craps.PeerId{1}, nil); !errors.Is(err, ErrRoundNotOpen) {
		t.Errorf("reveal after completion: got %v, want ErrRoundNotOpen", err)
	}
}
