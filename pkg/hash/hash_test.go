package hash

import (
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHash_WriteAny(t *testing.T) {
	h := New()
	assert.NoError(t, h.WriteAny([]byte{1, 4, 6}, "ceremony", uint64(7)))
	assert.NoError(t, h.WriteAny(&BytesWithDomain{TheDomain: "Slot", Bytes: []byte{9}}))
	assert.Len(t, h.Sum(), DigestLengthBytes)
}

func TestHash_WriteAny_Collision(t *testing.T) {
	sum := func(vs ...interface{}) []byte {
		h := New()
		require.NoError(t, h.WriteAny(vs...))
		return h.Sum()
	}
	// the same bytes split differently must not collide
	assert.NotEqual(t, sum([]byte("ab"), []byte("c")), sum([]byte("a"), []byte("bc")))
	// the same bytes under different types must not collide
	assert.NotEqual(t, sum([]byte("abc")), sum("abc"))
	assert.Equal(t, sum("abc", uint64(1)), sum("abc", uint64(1)))
}

func TestHash_Clone(t *testing.T) {
	h1 := New(&BytesWithDomain{TheDomain: "Test", Bytes: []byte("shared prefix")})
	h2 := h1.Clone()
	assert.Equal(t, h1.Sum(), h2.Sum())

	require.NoError(t, h2.WriteAny("more"))
	assert.NotEqual(t, h1.Sum(), h2.Sum())

	long := make([]byte, 2*DigestLengthBytes)
	_, err := io.ReadFull(h1.Digest(), long)
	require.NoError(t, err)
	assert.Equal(t, h1.Sum(), long[:DigestLengthBytes])
}
