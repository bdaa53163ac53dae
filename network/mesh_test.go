package network

import (
	"net"
	"testing"
	"time"

	"github.com/luca-patrignani/p2p-craps/crypto"
	"github.com/luca-patrignani/p2p-craps/domain/craps"
	"github.com/luca-patrignani/p2p-craps/eventlog"
)

var testGame = craps.GameId{0xaa}

func startMesh(t *testing.T, self craps.PeerId) (*Mesh, string) {
	t.Helper()
	l, err := net.Listen("tcp", "localhost:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	m := NewMesh(self, WithTimeout(2*time.Second))
	m.Start(l)
	t.Cleanup(func() { _ = m.Close() })
	return m, l.Addr().String()
}

func TestBroadcastReachesPeers(t *testing.T) {
	alice := craps.PeerId{1}
	bob := craps.PeerId{2}

	aliceMesh, aliceAddr := startMesh(t, alice)
	bobMesh, bobAddr := startMesh(t, bob)
	aliceMesh.AddPeer(alice, aliceAddr)
	aliceMesh.AddPeer(bob, bobAddr)
	bobMesh.AddPeer(alice, aliceAddr)
	bobMesh.AddPeer(bob, bobAddr)

	pair := crypto.NewKeyPair()
	payload, err := eventlog.EncodeRevealPayload(make([]byte, 32))
	if err != nil {
		t.Fatalf("payload: %v", err)
	}
	signed, err := eventlog.NewEvent(testGame, 1, eventlog.KindReveal, alice, payload, 1).Sign(pair)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	msg, err := NewEventMessage(testGame, signed)
	if err != nil {
		t.Fatalf("message: %v", err)
	}

	aliceMesh.Broadcast(msg)

	select {
	case got := <-bobMesh.Inbox():
		if got.Kind != KindRevealSubmit {
			t.Errorf("received kind %d, want reveal submit", got.Kind)
		}
		decoded, err := DecodeEventMessage(got)
		if err != nil {
			t.Fatalf("decode: %v", err)
		}
		if decoded.Event.Round != 1 || decoded.Event.Kind != eventlog.KindReveal {
			t.Errorf("event survived the wire badly: %+v", decoded.Event)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("bob never received the broadcast")
	}

	// The sender must not deliver to itself.
	select {
	case <-aliceMesh.Inbox():
		t.Error("broadcast delivered to the sender")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestMessageRoundTrips(t *testing.T) {
	hashes := [][32]byte{{1}, {2}}
	req, err := NewEventRequestMessage(testGame, hashes)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	encoded, err := req.Encode()
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	decoded, err := DecodeMessage(encoded)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if decoded.Kind != KindEventRequest {
		t.Errorf("kind %d, want event request", decoded.Kind)
	}
	got, err := DecodeEventRequestMessage(decoded)
	if err != nil {
		t.Fatalf("decode request: %v", err)
	}
	if len(got) != 2 || got[0] != hashes[0] || got[1] != hashes[1] {
		t.Errorf("hashes changed on the wire: %v", got)
	}

	game, err := decoded.GameIdOf()
	if err != nil {
		t.Fatalf("game id: %v", err)
	}
	if game != testGame {
		t.Errorf("game id changed on the wire: %s", game)
	}
}
