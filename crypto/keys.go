package crypto

import (
	"crypto/sha256"
	"errors"
	"fmt"

	"go.dedis.ch/kyber/v4"
	"go.dedis.ch/kyber/v4/group/edwards25519"
	"go.dedis.ch/kyber/v4/sign/schnorr"
	"go.dedis.ch/kyber/v4/util/key"

	"github.com/luca-patrignani/p2p-craps/domain/craps"
)

var suite = edwards25519.NewBlakeSHA256Ed25519()

// KeyPair is a peer's Schnorr signing identity. The peer id is the
// SHA-256 of the marshaled public key, so it cannot be chosen freely.
type KeyPair struct {
	Private kyber.Scalar
	Public  kyber.Point
}

// NewKeyPair generates a fresh signing identity.
func NewKeyPair() *KeyPair {
	pair := key.NewKeyPair(suite)
	return &KeyPair{Private: pair.Private, Public: pair.Public}
}

// PeerId derives the peer identifier from the public key.
func (k *KeyPair) PeerId() craps.PeerId {
	return PeerIdOf(k.Public)
}

// PeerIdOf derives the peer identifier for any public key.
func PeerIdOf(public kyber.Point) craps.PeerId {
	b, err := public.MarshalBinary()
	if err != nil {
		// Edwards25519 points always marshal; a failure here means the
		// point itself is corrupt.
		panic(fmt.Sprintf("marshaling public key: %v", err))
	}
	return craps.PeerId(sha256.Sum256(b))
}

// Sign produces a Schnorr signature over msg.
func (k *KeyPair) Sign(msg []byte) ([]byte, error) {
	return schnorr.Sign(suite, k.Private, msg)
}

// Verify checks a Schnorr signature against a public key.
func Verify(public kyber.Point, msg, sig []byte) error {
	if len(sig) == 0 {
		return errors.New("missing signature")
	}
	return schnorr.Verify(suite, public, msg, sig)
}

// PublicKeyBytes serializes a public key for the wire.
func PublicKeyBytes(public kyber.Point) ([]byte, error) {
	return public.MarshalBinary()
}

// PublicKeyFromBytes deserializes a wire-format public key.
func PublicKeyFromBytes(b []byte) (kyber.Point, error) {
	p := suite.Point()
	if err := p.UnmarshalBinary(b); err != nil {
		return nil, fmt.Errorf("unmarshaling public key: %w", err)
	}
	return p, nil
}
