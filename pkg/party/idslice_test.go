package party

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIDSlice(t *testing.T) {
	ids := NewIDSlice([]ID{"c", "a", "b"})
	require.True(t, ids.Valid())
	assert.Equal(t, IDSlice{"a", "b", "c"}, ids)
	assert.True(t, ids.Contains("a", "c"))
	assert.False(t, ids.Contains("a", "d"))
	assert.Equal(t, 1, ids.GetIndex("b"))
	assert.Equal(t, -1, ids.GetIndex("z"))
	assert.Equal(t, IDSlice{"a", "c"}, ids.Remove("b"))
	assert.Len(t, ids, 3, "Remove must not modify the receiver")

	assert.False(t, IDSlice{"a", "a"}.Valid())
	assert.False(t, IDSlice{"b", "a"}.Valid())
	assert.False(t, IDSlice{"", "a"}.Valid())
}

func TestRandomIDs(t *testing.T) {
	ids := RandomIDs(10)
	assert.Len(t, ids, 10)
	assert.True(t, ids.Valid())
}
