package identity

import (
	"bytes"
	"crypto/ed25519"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/taurusgroup/multi-party-ecdh/pkg/math/curve"
	"github.com/taurusgroup/multi-party-ecdh/pkg/party"
	"github.com/taurusgroup/multi-party-ecdh/pkg/pool"
)

func seededSigner(t *testing.T, b byte) *Ed25519Signer {
	s, err := Ed25519SignerFromSeed(bytes.Repeat([]byte{b}, ed25519.SeedSize))
	require.NoError(t, err)
	return s
}

type brokenSigner struct{}

func (brokenSigner) ID() party.ID                 { return "0xbroken" }
func (brokenSigner) PublicKey() ed25519.PublicKey { return nil }
func (brokenSigner) Sign([]byte) ([]byte, error)  { return nil, errors.New("hardware wallet locked") }

func TestAddress(t *testing.T) {
	s := seededSigner(t, 1)
	id := s.ID()
	assert.True(t, strings.HasPrefix(string(id), "0x"))
	assert.Len(t, string(id), 2+2*AddressBytes)
	assert.Equal(t, id, Address(s.PublicKey()))
	assert.NotEqual(t, id, seededSigner(t, 2).ID())
}

func TestDeriveSecret(t *testing.T) {
	for _, group := range []curve.Curve{curve.X25519{}, curve.Secp256k1{}} {
		t.Run(group.Name(), func(t *testing.T) {
			s := seededSigner(t, 7)
			kp1, err := DeriveSecret(group, s)
			require.NoError(t, err)
			kp2, err := DeriveSecret(group, s)
			require.NoError(t, err)

			assert.Equal(t, s.ID(), kp1.ID)
			assert.True(t, kp1.Secret.Equal(kp2.Secret), "derivation must be stable")
			assert.True(t, kp1.Public.Equal(kp1.Secret.ActOnBase()))

			other, err := DeriveSecret(group, seededSigner(t, 8))
			require.NoError(t, err)
			assert.False(t, kp1.Public.Equal(other.Public))
		})
	}
}

func TestDeriveSecret_Unavailable(t *testing.T) {
	_, err := DeriveSecret(curve.X25519{}, brokenSigner{})
	assert.ErrorIs(t, err, ErrSignerUnavailable)
	_, err = DeriveSecret(curve.X25519{}, nil)
	assert.ErrorIs(t, err, ErrSignerUnavailable)
}

func TestDeriveAll(t *testing.T) {
	signers := []Signer{seededSigner(t, 1), seededSigner(t, 2), seededSigner(t, 3)}
	pl := pool.NewPool(0)
	defer pl.TearDown()

	pairs, err := DeriveAll(curve.X25519{}, signers, pl)
	require.NoError(t, err)
	require.Len(t, pairs, len(signers))
	for i, kp := range pairs {
		single, err := DeriveSecret(curve.X25519{}, signers[i])
		require.NoError(t, err)
		assert.True(t, single.Public.Equal(kp.Public))
	}

	_, err = DeriveAll(curve.X25519{}, append(signers, brokenSigner{}), nil)
	assert.ErrorIs(t, err, ErrSignerUnavailable)
}

func TestDeriveKey(t *testing.T) {
	k1, err := DeriveKey([]byte("shared"), []byte("ssid"), 32)
	require.NoError(t, err)
	k2, err := DeriveKey([]byte("shared"), []byte("ssid"), 32)
	require.NoError(t, err)
	k3, err := DeriveKey([]byte("shared"), []byte("other ssid"), 32)
	require.NoError(t, err)
	assert.Equal(t, k1, k2)
	assert.NotEqual(t, k1, k3)
	assert.Len(t, k1, 32)
}

func TestKeyFile(t *testing.T) {
	s := seededSigner(t, 5)
	path := filepath.Join(t.TempDir(), "key.pem")
	require.NoError(t, WriteKeyFile(s, path))
	assert.Error(t, WriteKeyFile(s, path), "existing key files must not be overwritten")

	read, err := ReadKeyFile(path)
	require.NoError(t, err)
	assert.Equal(t, s.ID(), read.ID())
	assert.Equal(t, s.Seed(), read.Seed())

	_, err = UnmarshalSignerFromPEM([]byte("not pem"))
	assert.Error(t, err)
}

func TestVerify(t *testing.T) {
	s := seededSigner(t, 9)
	sig, err := s.Sign([]byte("message"))
	require.NoError(t, err)
	assert.True(t, Verify(s.PublicKey(), []byte("message"), sig))
	assert.False(t, Verify(s.PublicKey(), []byte("other"), sig))
	assert.False(t, Verify(nil, []byte("message"), sig))
}
