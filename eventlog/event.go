package eventlog

import (
	"crypto/sha256"
	"fmt"

	"go.dedis.ch/protobuf"

	"github.com/luca-patrignani/p2p-craps/crypto"
	"github.com/luca-patrignani/p2p-craps/domain/craps"
)

// Event kinds recorded in the log.
const (
	KindBetPlace uint32 = iota + 1
	KindCommitment
	KindReveal
)

// Event is one accepted action. Fields stay protobuf-friendly so the
// canonical encoding, and therefore the event hash, is identical on
// every peer.
type Event struct {
	Game      []byte
	Round     uint64
	Kind      uint32
	Sender    []byte
	Payload   []byte
	Timestamp uint64
}

// SignedEvent carries the sender's signature over the encoded event.
type SignedEvent struct {
	Event     Event
	Signature []byte
}

// BetPayload is the payload of a KindBetPlace event. The player is the
// event sender and the game is the event game.
type BetPayload struct {
	Id        []byte
	BetType   uint32
	Amount    uint64
	Timestamp uint64
}

// CommitmentPayload is the payload of a KindCommitment event.
type CommitmentPayload struct {
	Hash []byte
}

// RevealPayload is the payload of a KindReveal event.
type RevealPayload struct {
	Nonce []byte
}

// NewEvent builds an event for the given game, round and sender.
func NewEvent(game craps.GameId, round uint64, kind uint32, sender craps.PeerId, payload []byte, timestamp uint64) Event {
	return Event{
		Game:      game[:],
		Round:     round,
		Kind:      kind,
		Sender:    sender[:],
		Payload:   payload,
		Timestamp: timestamp,
	}
}

// Marshal returns the canonical encoding used for hashing and signing.
func (e *Event) Marshal() ([]byte, error) {
	return protobuf.Encode(e)
}

// Hash is the event's identity: duplicates are detected by it and the
// canonical replay order is keyed by it.
func (e *Event) Hash() ([32]byte, error) {
	b, err := e.Marshal()
	if err != nil {
		return [32]byte{}, fmt.Errorf("encoding event: %w", err)
	}
	return sha256.Sum256(b), nil
}

// SenderId returns the sender as a peer id.
func (e *Event) SenderId() (craps.PeerId, error) {
	var id craps.PeerId
	if len(e.Sender) != len(id) {
		return id, fmt.Errorf("sender must be %d bytes, got %d", len(id), len(e.Sender))
	}
	copy(id[:], e.Sender)
	return id, nil
}

// GameIdOf returns the event's game id.
func (e *Event) GameIdOf() (craps.GameId, error) {
	var id craps.GameId
	if len(e.Game) != len(id) {
		return id, fmt.Errorf("game id must be %d bytes, got %d", len(id), len(e.Game))
	}
	copy(id[:], e.Game)
	return id, nil
}

// Sign wraps the event with the sender's signature over its canonical
// encoding.
func (e Event) Sign(pair *crypto.KeyPair) (SignedEvent, error) {
	b, err := e.Marshal()
	if err != nil {
		return SignedEvent{}, fmt.Errorf("encoding event: %w", err)
	}
	sig, err := pair.Sign(b)
	if err != nil {
		return SignedEvent{}, fmt.Errorf("signing event: %w", err)
	}
	return SignedEvent{Event: e, Signature: sig}, nil
}

// EncodeBetPayload builds a KindBetPlace payload from a wager.
func EncodeBetPayload(bet craps.Bet) ([]byte, error) {
	return protobuf.Encode(&BetPayload{
		Id:        bet.ID[:],
		BetType:   uint32(bet.Type),
		Amount:    bet.Amount,
		Timestamp: bet.Timestamp,
	})
}

// DecodeBetPayload rebuilds the wager carried by a KindBetPlace event.
func DecodeBetPayload(e *Event) (craps.Bet, error) {
	var p BetPayload
	if err := protobuf.Decode(e.Payload, &p); err != nil {
		return craps.Bet{}, fmt.Errorf("decoding bet payload: %w", err)
	}
	player, err := e.SenderId()
	if err != nil {
		return craps.Bet{}, err
	}
	game, err := e.GameIdOf()
	if err != nil {
		return craps.Bet{}, err
	}
	bet := craps.Bet{
		Player:    player,
		Game:      game,
		Type:      craps.BetType(p.BetType),
		Amount:    p.Amount,
		Timestamp: p.Timestamp,
	}
	if len(p.Id) == len(bet.ID) {
		copy(bet.ID[:], p.Id)
	}
	return bet, nil
}

// EncodeCommitmentPayload builds a KindCommitment payload.
func EncodeCommitmentPayload(hash [32]byte) ([]byte, error) {
	return protobuf.Encode(&CommitmentPayload{Hash: hash[:]})
}

// DecodeCommitmentPayload extracts the commitment hash.
func DecodeCommitmentPayload(e *Event) ([32]byte, error) {
	var p CommitmentPayload
	if err := protobuf.Decode(e.Payload, &p); err != nil {
		return [32]byte{}, fmt.Errorf("decoding commitment payload: %w", err)
	}
	var hash [32]byte
	if len(p.Hash) != len(hash) {
		return hash, fmt.Errorf("commitment hash must be %d bytes, got %d", len(hash), len(p.Hash))
	}
	copy(hash[:], p.Hash)
	return hash, nil
}

// EncodeRevealPayload builds a KindReveal payload.
func EncodeRevealPayload(nonce []byte) ([]byte, error) {
	return protobuf.Encode(&RevealPayload{Nonce: nonce})
}

// DecodeRevealPayload extracts the revealed nonce.
func DecodeRevealPayload(e *Event) ([]byte, error) {
	var p RevealPayload
	if err := protobuf.Decode(e.Payload, &p); err != nil {
		return nil, fmt.Errorf("decoding reveal payload: %w", err)
	}
	return p.Nonce, nil
}
