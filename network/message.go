package network

import (
	"fmt"

	"go.dedis.ch/protobuf"

	"github.com/luca-patrignani/p2p-craps/consensus"
	"github.com/luca-patrignani/p2p-craps/domain/craps"
	"github.com/luca-patrignani/p2p-craps/eventlog"
)

// Message kinds carried on the wire.
const (
	KindCommitmentSubmit uint32 = iota + 1
	KindRevealSubmit
	KindBetPlace
	KindRoundSummary
	KindEventRequest
	KindEventResponse
)

// Message is the wire envelope. The transport guarantees nothing about
// ordering, delivery or deduplication; every payload must be safe to
// re-deliver.
type Message struct {
	Kind    uint32
	Game    []byte
	Payload []byte
}

// Encode serializes the envelope for the wire.
func (m *Message) Encode() ([]byte, error) {
	return protobuf.Encode(m)
}

// DecodeMessage parses a wire envelope.
func DecodeMessage(b []byte) (Message, error) {
	var m Message
	if err := protobuf.Decode(b, &m); err != nil {
		return Message{}, fmt.Errorf("decoding message: %w", err)
	}
	return m, nil
}

// GameIdOf returns the envelope's game id.
func (m *Message) GameIdOf() (craps.GameId, error) {
	var id craps.GameId
	if len(m.Game) != len(id) {
		return id, fmt.Errorf("game id must be %d bytes, got %d", len(id), len(m.Game))
	}
	copy(id[:], m.Game)
	return id, nil
}

type eventRequestPayload struct {
	Hashes [][]byte
}

type eventResponsePayload struct {
	Events []eventlog.SignedEvent
}

// NewEventMessage wraps a signed event as a CommitmentSubmit,
// RevealSubmit or BetPlace message depending on the event kind.
func NewEventMessage(game craps.GameId, signed eventlog.SignedEvent) (Message, error) {
	var kind uint32
	switch signed.Event.Kind {
	case eventlog.KindBetPlace:
		kind = KindBetPlace
	case eventlog.KindCommitment:
		kind = KindCommitmentSubmit
	case eventlog.KindReveal:
		kind = KindRevealSubmit
	default:
		return Message{}, fmt.Errorf("event kind %d has no message kind", signed.Event.Kind)
	}
	payload, err := protobuf.Encode(&signed)
	if err != nil {
		return Message{}, fmt.Errorf("encoding event message: %w", err)
	}
	return Message{Kind: kind, Game: game[:], Payload: payload}, nil
}

// DecodeEventMessage extracts the signed event from an event-bearing
// message.
func DecodeEventMessage(m Message) (eventlog.SignedEvent, error) {
	var signed eventlog.SignedEvent
	if err := protobuf.Decode(m.Payload, &signed); err != nil {
		return eventlog.SignedEvent{}, fmt.Errorf("decoding event message: %w", err)
	}
	return signed, nil
}

// NewSummaryMessage wraps a signed round summary.
func NewSummaryMessage(game craps.GameId, summary consensus.RoundSummary) (Message, error) {
	payload, err := protobuf.Encode(&summary)
	if err != nil {
		return Message{}, fmt.Errorf("encoding summary message: %w", err)
	}
	return Message{Kind: KindRoundSummary, Game: game[:], Payload: payload}, nil
}

// DecodeSummaryMessage extracts the round summary.
func DecodeSummaryMessage(m Message) (consensus.RoundSummary, error) {
	var summary consensus.RoundSummary
	if err := protobuf.Decode(m.Payload, &summary); err != nil {
		return consensus.RoundSummary{}, fmt.Errorf("decoding summary message: %w", err)
	}
	return summary, nil
}

// NewEventRequestMessage asks peers for the events behind the hashes.
func NewEventRequestMessage(game craps.GameId, hashes [][32]byte) (Message, error) {
	p := eventRequestPayload{Hashes: make([][]byte, len(hashes))}
	for i, h := range hashes {
		p.Hashes[i] = append([]byte(nil), h[:]...)
	}
	payload, err := protobuf.Encode(&p)
	if err != nil {
		return Message{}, fmt.Errorf("encoding event request: %w", err)
	}
	return Message{Kind: KindEventRequest, Game: game[:], Payload: payload}, nil
}

// DecodeEventRequestMessage extracts the requested hashes.
func DecodeEventRequestMessage(m Message) ([][32]byte, error) {
	var p eventRequestPayload
	if err := protobuf.Decode(m.Payload, &p); err != nil {
		return nil, fmt.Errorf("decoding event request: %w", err)
	}
	hashes := make([][32]byte, 0, len(p.Hashes))
	for _, b := range p.Hashes {
		if len(b) != 32 {
			return nil, fmt.Errorf("event hash must be 32 bytes, got %d", len(b))
		}
		var h [32]byte
		copy(h[:], b)
		hashes = append(hashes, h)
	}
	return hashes, nil
}

// NewEventResponseMessage carries stored events back to a requester.
func NewEventResponseMessage(game craps.GameId, events []eventlog.SignedEvent) (Message, error) {
	payload, err := protobuf.Encode(&eventResponsePayload{Events: events})
	if err != nil {
		return Message{}, fmt.Errorf("encoding event response: %w", err)
	}
	return Message{Kind: KindEventResponse, Game: game[:], Payload: payload}, nil
}

// DecodeEventResponseMessage extracts the carried events.
func DecodeEventResponseMessage(m Message) ([]eventlog.SignedEvent, error) {
	var p eventResponsePayload
	if err := protobuf.Decode(m.Payload, &p); err != nil {
		return nil, fmt.Errorf("decoding event response: %w", err)
	}
	return p.Events, nil
}
