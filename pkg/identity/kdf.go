package identity

import (
	"crypto/sha256"
	"fmt"
	"io"

	"github.com/taurusgroup/multi-party-ecdh/pkg/hash"
	"github.com/taurusgroup/multi-party-ecdh/pkg/math/curve"
	"github.com/taurusgroup/multi-party-ecdh/pkg/party"
	"github.com/taurusgroup/multi-party-ecdh/pkg/pool"
	"golang.org/x/crypto/hkdf"
)

const (
	kdfDomain     = "MPECDH Secret Derivation v1"
	sharedKeyInfo = "MPECDH Shared Key v1"
)

// KeyPair is the ceremony contribution of one participant.
// Secret must never leave the participant.
type KeyPair struct {
	ID     party.ID
	Secret curve.Scalar
	Public curve.Point
}

// PublicBytes returns the encoding of Public, which is submitted in the first round.
func (kp *KeyPair) PublicBytes() ([]byte, error) {
	return kp.Public.MarshalBinary()
}

// kdfMessage is what a participant signs to obtain its secret.
// It binds the group and the signer's own address.
func kdfMessage(group curve.Curve, id party.ID) []byte {
	h := hash.New(&hash.BytesWithDomain{TheDomain: "Protocol ID", Bytes: []byte(kdfDomain)})
	_ = h.WriteAny(&hash.BytesWithDomain{TheDomain: "Group Name", Bytes: []byte(group.Name())}, id)
	return h.Sum()
}

// DeriveSecret derives the secret scalar of s in group.
//
// The scalar is the hash of a deterministic signature over a fixed message, so the
// same signer always obtains the same key pair, and only the holder of the
// signing key can compute it.
func DeriveSecret(group curve.Curve, s Signer) (*KeyPair, error) {
	if s == nil {
		return nil, ErrSignerUnavailable
	}
	sig, err := s.Sign(kdfMessage(group, s.ID()))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSignerUnavailable, err)
	}
	h := hash.New(&hash.BytesWithDomain{TheDomain: "KDF Signature", Bytes: sig})
	secret := curve.FromHash(group, h.Sum())
	return &KeyPair{
		ID:     s.ID(),
		Secret: secret,
		Public: secret.ActOnBase(),
	}, nil
}

// DeriveAll derives the key pairs of all signers, in parallel if pl is not nil.
func DeriveAll(group curve.Curve, signers []Signer, pl *pool.Pool) ([]*KeyPair, error) {
	type result struct {
		kp  *KeyPair
		err error
	}
	results := pool.Parallelize(pl, len(signers), func(i int) result {
		kp, err := DeriveSecret(group, signers[i])
		return result{kp, err}
	})
	pairs := make([]*KeyPair, len(signers))
	for i, r := range results {
		if r.err != nil {
			return nil, r.err
		}
		pairs[i] = r.kp
	}
	return pairs, nil
}

// DeriveKey expands the shared point of a ceremony into a symmetric key of the given size.
// The ceremony's SSID is used as salt.
func DeriveKey(shared, ssid []byte, size int) ([]byte, error) {
	key := make([]byte, size)
	kdf := hkdf.New(sha256.New, shared, ssid, []byte(sharedKeyInfo))
	if _, err := io.ReadFull(kdf, key); err != nil {
		return nil, fmt.Errorf("identity: derive key: %w", err)
	}
	return key, nil
}
