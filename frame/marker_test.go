package frame

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarkerSetDefault(t *testing.T) {
	s, err := NewMarkerSet()
	require.NoError(t, err)
	assert.Equal(t, 1, s.Len())
	assert.Equal(t, DefaultMarker, s.Primary())
	assert.True(t, s.Contains(DefaultMarker))
}

func TestMarkerSetInvalid(t *testing.T) {
	for _, m := range [][]byte{nil, []byte(""), []byte("abc"), []byte("abcde")} {
		_, err := NewMarkerSet(m)
		assert.Equal(t, ErrInvalidMarker, err)
	}
}

func TestMarkerSetMembership(t *testing.T) {
	s, err := NewMarkerSet([]byte("AAAA"), []byte("BBBB"))
	require.NoError(t, err)

	assert.True(t, s.Contains([]byte("AAAA")))
	assert.True(t, s.Contains([]byte("BBBB")))
	assert.False(t, s.Contains([]byte("CCCC")))
	assert.False(t, s.Contains([]byte("AAA")), "short probes never match")
	assert.False(t, s.Contains([]byte("AAAAA")))
}

func TestMarkerSetCopiesTokens(t *testing.T) {
	token := []byte("AAAA")
	s, err := NewMarkerSet(token)
	require.NoError(t, err)

	// Mutating the caller's slice must not affect the set.
	token[0] = 'Z'
	assert.True(t, s.Contains([]byte("AAAA")))
	assert.False(t, s.Contains(token))
}
