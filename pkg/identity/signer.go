package identity

import (
	"crypto/ed25519"
	"encoding/hex"
	"errors"
	"fmt"
	"io"

	"github.com/taurusgroup/multi-party-ecdh/pkg/hash"
	"github.com/taurusgroup/multi-party-ecdh/pkg/party"
)

// AddressBytes is the length of an address before hex encoding.
const AddressBytes = 20

var (
	// ErrSignerUnavailable is returned when the signing key of a participant cannot be used.
	ErrSignerUnavailable = errors.New("identity: signer unavailable")
	ErrInvalidKey        = errors.New("identity: invalid key")
)

// Signer is the signing identity of a participant.
// Its ID is the address derived from its public key.
type Signer interface {
	ID() party.ID
	PublicKey() ed25519.PublicKey
	Sign(message []byte) ([]byte, error)
}

// Ed25519Signer holds an ed25519 private key in memory.
// Signatures are deterministic, which DeriveSecret relies on.
type Ed25519Signer struct {
	id  party.ID
	key ed25519.PrivateKey
}

// NewEd25519Signer wraps key.
func NewEd25519Signer(key ed25519.PrivateKey) (*Ed25519Signer, error) {
	if len(key) != ed25519.PrivateKeySize {
		return nil, fmt.Errorf("%w: ed25519 private key length %d", ErrInvalidKey, len(key))
	}
	return &Ed25519Signer{
		id:  Address(key.Public().(ed25519.PublicKey)),
		key: key,
	}, nil
}

// Ed25519SignerFromSeed derives the signer from a 32 byte seed.
func Ed25519SignerFromSeed(seed []byte) (*Ed25519Signer, error) {
	if len(seed) != ed25519.SeedSize {
		return nil, fmt.Errorf("%w: ed25519 seed length %d", ErrInvalidKey, len(seed))
	}
	return NewEd25519Signer(ed25519.NewKeyFromSeed(seed))
}

// GenerateEd25519Signer creates a signer with a fresh key read from rand.
func GenerateEd25519Signer(rand io.Reader) (*Ed25519Signer, error) {
	_, key, err := ed25519.GenerateKey(rand)
	if err != nil {
		return nil, fmt.Errorf("identity: generate ed25519 key: %w", err)
	}
	return NewEd25519Signer(key)
}

func (s *Ed25519Signer) ID() party.ID { return s.id }

func (s *Ed25519Signer) PublicKey() ed25519.PublicKey {
	return s.key.Public().(ed25519.PublicKey)
}

// Sign returns the ed25519 signature of message.
func (s *Ed25519Signer) Sign(message []byte) ([]byte, error) {
	if s == nil || len(s.key) != ed25519.PrivateKeySize {
		return nil, ErrSignerUnavailable
	}
	return ed25519.Sign(s.key, message), nil
}

// Seed returns the seed the private key was derived from.
func (s *Ed25519Signer) Seed() []byte {
	return s.key.Seed()
}

// Address returns the identifier of the owner of pub: the hex encoding of the
// first AddressBytes of its hash, prefixed with 0x.
func Address(pub ed25519.PublicKey) party.ID {
	h := hash.New(&hash.BytesWithDomain{TheDomain: "Ed25519 Public Key", Bytes: pub})
	return party.ID("0x" + hex.EncodeToString(h.Sum()[:AddressBytes]))
}

// Verify reports whether sig is a valid signature of message by pub.
func Verify(pub ed25519.PublicKey, message, sig []byte) bool {
	if len(pub) != ed25519.PublicKeySize {
		return false
	}
	return ed25519.Verify(pub, message, sig)
}
