package consensus

import (
	"bytes"
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"fmt"

	"go.dedis.ch/protobuf"

	"github.com/luca-patrignani/p2p-craps/crypto"
	"github.com/luca-patrignani/p2p-craps/domain/craps"
)

// Verifier checks a signature claimed by a peer id.
type Verifier interface {
	VerifyFrom(id craps.PeerId, msg, sig []byte) error
}

// RoundSummary is one participant's view of a settled round: the dice
// outcome and Merkle roots over the bets and payouts it computed
// locally. Peers vote by broadcasting summaries; matching payout roots
// are agreement.
type RoundSummary struct {
	Game       []byte
	Round      uint64
	DiceHash   []byte
	BetRoot    []byte
	PayoutRoot []byte
	Signer     []byte
	Signature  []byte
}

// serialize returns the canonical encoding of the summary with the
// Signature field cleared, so the signature never covers itself.
func (s *RoundSummary) serialize() ([]byte, error) {
	tmp := *s
	tmp.Signature = nil
	return protobuf.Encode(&tmp)
}

// Sign sets the signer and signs the serialized summary.
func (s *RoundSummary) Sign(pair *crypto.KeyPair) error {
	id := pair.PeerId()
	s.Signer = id[:]
	b, err := s.serialize()
	if err != nil {
		return err
	}
	s.Signature, err = pair.Sign(b)
	return err
}

// Verify checks the summary's signature against its claimed signer.
func (s *RoundSummary) Verify(verifier Verifier) error {
	if len(s.Signature) == 0 {
		return errors.New("missing signature")
	}
	signer, err := s.SignerId()
	if err != nil {
		return err
	}
	b, err := s.serialize()
	if err != nil {
		return err
	}
	return verifier.VerifyFrom(signer, b, s.Signature)
}

// SignerId returns the signer as a peer id.
func (s *RoundSummary) SignerId() (craps.PeerId, error) {
	var id craps.PeerId
	if len(s.Signer) != len(id) {
		return id, fmt.Errorf("signer must be %d bytes, got %d", len(id), len(s.Signer))
	}
	copy(id[:], s.Signer)
	return id, nil
}

// DiceHash commits to the round's dice outcome.
func DiceHash(roll craps.DiceRoll, round uint64) [32]byte {
	var b [10]byte
	b[0] = roll.Die1
	b[1] = roll.Die2
	binary.BigEndian.PutUint64(b[2:], round)
	return sha256.Sum256(b[:])
}

type betLeaf struct {
	Id      []byte
	Player  []byte
	BetType uint32
	Amount  uint64
}

type payoutLeaf struct {
	Player  []byte
	BetType uint32
	Amount  uint64
	Outcome uint32
	Payout  uint64
}

// BetRoot is the Merkle root over the active bets in their canonical
// (player, bet type) order.
func BetRoot(bets []craps.Bet) ([32]byte, error) {
	leaves := make([][]byte, len(bets))
	for i, bet := range bets {
		b, err := protobuf.Encode(&betLeaf{
			Id:      bet.ID[:],
			Player:  bet.Player[:],
			BetType: uint32(bet.Type),
			Amount:  bet.Amount,
		})
		if err != nil {
			return [32]byte{}, fmt.Errorf("encoding bet leaf: %w", err)
		}
		leaves[i] = b
	}
	return MerkleRoot(leaves), nil
}

// PayoutRoot is the Merkle root over the round's resolutions in the
// order the settlement produced them.
func PayoutRoot(resolutions []craps.BetResolution) ([32]byte, error) {
	leaves := make([][]byte, len(resolutions))
	for i, r := range resolutions {
		b, err := protobuf.Encode(&payoutLeaf{
			Player:  r.Player[:],
			BetType: uint32(r.BetType),
			Amount:  r.Amount,
			Outcome: uint32(r.Outcome),
			Payout:  r.Payout,
		})
		if err != nil {
			return [32]byte{}, fmt.Errorf("encoding payout leaf: %w", err)
		}
		leaves[i] = b
	}
	return MerkleRoot(leaves), nil
}

// RoundConsensus is the quorum certificate for one round: the payout
// root plus the signed summaries agreeing on it.
type RoundConsensus struct {
	Game       []byte
	Round      uint64
	PayoutRoot []byte
	Summaries  []RoundSummary
}

// Validate checks the certificate: every summary must be validly signed
// by a distinct registered participant and carry the certificate's
// payout root, and the distinct signers must reach the quorum for n
// participants.
func (rc *RoundConsensus) Validate(verifier Verifier, isParticipant func(craps.PeerId) bool, n int) error {
	signers := map[craps.PeerId]bool{}
	for i := range rc.Summaries {
		s := &rc.Summaries[i]
		if s.Round != rc.Round || !bytes.Equal(s.Game, rc.Game) {
			return fmt.Errorf("summary %d targets a different round", i)
		}
		if !bytes.Equal(s.PayoutRoot, rc.PayoutRoot) {
			return fmt.Errorf("summary %d disagrees with the certificate root", i)
		}
		if err := s.Verify(verifier); err != nil {
			return fmt.Errorf("summary %d: %w", i, err)
		}
		signer, err := s.SignerId()
		if err != nil {
			return err
		}
		if !isParticipant(signer) {
			return fmt.Errorf("summary %d signed by non-participant %s", i, signer)
		}
		signers[signer] = true
	}
	if len(signers) < Quorum(n) {
		return fmt.Errorf("%w: %d distinct signers, quorum %d", ErrInsufficientConfirmations, len(signers), Quorum(n))
	}
	return nil
}

// Quorum is the number of matching votes needed among n participants.
func Quorum(n int) int {
	return 2*n/3 + 1
}
