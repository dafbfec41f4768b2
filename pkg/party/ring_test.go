package party

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRing(t *testing.T) {
	tests := []struct {
		name string
		ids  []ID
		err  error
	}{
		{"empty", nil, ErrRingTooSmall},
		{"single", []ID{"a"}, ErrRingTooSmall},
		{"duplicate", []ID{"a", "b", "a"}, ErrDuplicateID},
		{"empty id", []ID{"a", ""}, ErrEmptyID},
		{"pair", []ID{"b", "a"}, nil},
		{"five", []ID{"e", "d", "c", "b", "a"}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := NewRing(tt.ids)
			if tt.err != nil {
				assert.ErrorIs(t, err, tt.err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, len(tt.ids), r.N())
			assert.True(t, r.IDs().Valid())
		})
	}
}

func TestRing_Cycle(t *testing.T) {
	input := []ID{"carol", "alice", "dave", "bob"}
	r, err := NewRing(input)
	require.NoError(t, err)
	assert.Equal(t, []ID{"carol", "alice", "dave", "bob"}, input, "input must not be reordered")
	assert.Equal(t, IDSlice{"alice", "bob", "carol", "dave"}, r.IDs())
	assert.Equal(t, 2, r.Relays())

	for _, start := range r.IDs() {
		cur := start
		for i := 0; i < r.N(); i++ {
			next, err := r.Successor(cur)
			require.NoError(t, err)
			pred, err := r.Predecessor(next)
			require.NoError(t, err)
			assert.Equal(t, cur, pred)
			cur = next
			if i < r.N()-1 {
				assert.NotEqual(t, start, cur, "cycle shorter than N")
			}
		}
		assert.Equal(t, start, cur, "following the successor N times must return to the start")
	}

	pred, err := r.Predecessor("alice")
	require.NoError(t, err)
	assert.Equal(t, ID("dave"), pred)

	_, err = r.Successor("eve")
	assert.ErrorIs(t, err, ErrNotInRing)
}

func TestRing_Pair(t *testing.T) {
	r, err := NewRing([]ID{"b", "a"})
	require.NoError(t, err)
	assert.Equal(t, 0, r.Relays())
	pred, err := r.Predecessor("a")
	require.NoError(t, err)
	succ, err := r.Successor("a")
	require.NoError(t, err)
	assert.Equal(t, pred, succ)
	assert.Equal(t, ID("b"), succ)
}

func TestRing_SSID(t *testing.T) {
	r1, err := NewRing([]ID{"a", "b", "c"})
	require.NoError(t, err)
	r2, err := NewRing([]ID{"c", "b", "a"})
	require.NoError(t, err)
	r3, err := NewRing([]ID{"a", "bc"})
	require.NoError(t, err)
	r4, err := NewRing([]ID{"ab", "c"})
	require.NoError(t, err)

	assert.Equal(t, r1.SSID("mpecdh", "x25519"), r2.SSID("mpecdh", "x25519"))
	assert.NotEqual(t, r1.SSID("mpecdh", "x25519"), r1.SSID("mpecdh", "secp256k1"))
	assert.NotEqual(t, r3.SSID("mpecdh", "x25519"), r4.SSID("mpecdh", "x25519"))
}
