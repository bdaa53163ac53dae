package crypto

import (
	"fmt"
	"sync"

	"go.dedis.ch/kyber/v4"

	"github.com/luca-patrignani/p2p-craps/domain/craps"
)

// Registry maps peer ids to the public keys they were derived from.
// Registration checks the derivation, so a peer cannot claim an id it
// does not own the key for.
type Registry struct {
	mu   sync.RWMutex
	keys map[craps.PeerId]kyber.Point
}

func NewRegistry() *Registry {
	return &Registry{keys: map[craps.PeerId]kyber.Point{}}
}

// Register binds a public key to its derived peer id.
func (r *Registry) Register(public kyber.Point) (craps.PeerId, error) {
	id := PeerIdOf(public)
	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.keys[id]; ok && !existing.Equal(public) {
		return craps.PeerId{}, fmt.Errorf("peer id %s already bound to a different key", id)
	}
	r.keys[id] = public
	return id, nil
}

// RegisterBytes registers a wire-format public key.
func (r *Registry) RegisterBytes(b []byte) (craps.PeerId, error) {
	public, err := PublicKeyFromBytes(b)
	if err != nil {
		return craps.PeerId{}, err
	}
	return r.Register(public)
}

// Lookup returns the public key bound to a peer id.
func (r *Registry) Lookup(id craps.PeerId) (kyber.Point, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	public, ok := r.keys[id]
	return public, ok
}

// VerifyFrom checks a signature claimed by the given peer.
func (r *Registry) VerifyFrom(id craps.PeerId, msg, sig []byte) error {
	public, ok := r.Lookup(id)
	if !ok {
		return fmt.Errorf("unknown peer %s", id)
	}
	return Verify(public, msg, sig)
}
