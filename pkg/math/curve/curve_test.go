package curve

import (
	"crypto/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var groups = []Curve{X25519{}, Secp256k1{}}

func randomScalar(t *testing.T, group Curve) Scalar {
	buf := make([]byte, 64)
	_, err := rand.Read(buf)
	require.NoError(t, err)
	return group.ScalarFromHash(buf)
}

func TestCommutativity(t *testing.T) {
	for _, group := range groups {
		t.Run(group.Name(), func(t *testing.T) {
			a, b, c := randomScalar(t, group), randomScalar(t, group), randomScalar(t, group)
			chain := func(first, second, third Scalar) Point {
				p := first.ActOnBase()
				p, err := second.Act(p)
				require.NoError(t, err)
				p, err = third.Act(p)
				require.NoError(t, err)
				return p
			}
			abc := chain(a, b, c)
			assert.True(t, abc.Equal(chain(c, a, b)))
			assert.True(t, abc.Equal(chain(b, c, a)))
			assert.True(t, abc.Equal(chain(c, b, a)))
		})
	}
}

func TestActOnBase(t *testing.T) {
	for _, group := range groups {
		t.Run(group.Name(), func(t *testing.T) {
			s := randomScalar(t, group)
			p, err := s.Act(group.NewBasePoint())
			require.NoError(t, err)
			assert.True(t, p.Equal(s.ActOnBase()))

			data, err := p.MarshalBinary()
			require.NoError(t, err)
			assert.Len(t, data, group.PointBytes())
			decoded, err := DecodePoint(group, data)
			require.NoError(t, err)
			assert.True(t, p.Equal(decoded))

			viaBytes, err := Multiply(s, mustMarshal(t, group.NewBasePoint()))
			require.NoError(t, err)
			assert.Equal(t, data, viaBytes)
		})
	}
}

func TestInvalidPoints(t *testing.T) {
	pMinusOne := make([]byte, 32)
	for i := range pMinusOne {
		pMinusOne[i] = 0xff
	}
	pMinusOne[0] = 0xec
	pMinusOne[31] = 0x7f

	// p and p+9, the latter another encoding of the base point u = 9
	fieldOrder := append([]byte(nil), pMinusOne...)
	fieldOrder[0] = 0xed
	basePlusP := append([]byte(nil), pMinusOne...)
	basePlusP[0] = 0xf6

	one := make([]byte, 32)
	one[0] = 1

	topBit := make([]byte, 32)
	topBit[0] = 9
	topBit[31] = 0x80

	tests := []struct {
		name  string
		group Curve
		data  []byte
	}{
		{"x25519 empty", X25519{}, nil},
		{"x25519 short", X25519{}, make([]byte, 31)},
		{"x25519 zero", X25519{}, make([]byte, 32)},
		{"x25519 one", X25519{}, one},
		{"x25519 p-1", X25519{}, pMinusOne},
		{"x25519 p", X25519{}, fieldOrder},
		{"x25519 p+9", X25519{}, basePlusP},
		{"x25519 top bit", X25519{}, topBit},
		{"secp256k1 zero", Secp256k1{}, make([]byte, 33)},
		{"secp256k1 uncompressed length", Secp256k1{}, make([]byte, 65)},
		{"secp256k1 x25519 length", Secp256k1{}, make([]byte, 32)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodePoint(tt.group, tt.data)
			assert.ErrorIs(t, err, ErrInvalidPoint)
		})
	}
}

func TestX25519Canonical(t *testing.T) {
	base := make([]byte, 32)
	base[0] = 9
	p, err := DecodePoint(X25519{}, base)
	require.NoError(t, err)
	assert.True(t, p.Equal(X25519{}.NewBasePoint()))
}

func TestX25519Clamping(t *testing.T) {
	raw := make([]byte, 32)
	for i := range raw {
		raw[i] = 0xff
	}
	s := X25519{}.NewScalar()
	require.NoError(t, s.UnmarshalBinary(raw))
	clamped, err := s.MarshalBinary()
	require.NoError(t, err)
	assert.Equal(t, byte(0xf8), clamped[0])
	assert.Equal(t, byte(0x7f), clamped[31])
	assert.False(t, s.IsZero())

	assert.ErrorIs(t, s.UnmarshalBinary(raw[:31]), ErrInvalidScalar)
}

func TestSecp256k1Scalar(t *testing.T) {
	overflow := make([]byte, 32)
	for i := range overflow {
		overflow[i] = 0xff
	}
	s := Secp256k1{}.NewScalar()
	assert.ErrorIs(t, s.UnmarshalBinary(overflow), ErrInvalidScalar)

	// a hash of all ones truncates to a value above the order and must be reduced
	reduced := Secp256k1{}.ScalarFromHash(overflow)
	assert.False(t, reduced.IsZero())
	data, err := reduced.MarshalBinary()
	require.NoError(t, err)
	require.NoError(t, s.UnmarshalBinary(data))
	assert.True(t, s.Equal(reduced))

	assert.False(t, Secp256k1{}.ScalarFromHash(make([]byte, 32)).IsZero())
}

func TestFromName(t *testing.T) {
	for _, group := range groups {
		g, err := FromName(group.Name())
		require.NoError(t, err)
		assert.Equal(t, group, g)
	}
	_, err := FromName("ed448")
	assert.ErrorIs(t, err, ErrUnknownGroup)
}

func mustMarshal(t *testing.T, p Point) []byte {
	data, err := p.MarshalBinary()
	require.NoError(t, err)
	return data
}
