package sha256

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHasherHash(t *testing.T) {
	t.Parallel()

	got, err := New().Hash([]byte("hello world"))
	require.NoError(t, err)
	require.Equal(t, "b94d27b9934d3e08a52e52d7da7dabfac484efe37a5380ee9088f7ace2efcde9", got)

	spaced, err := New().Hash([]byte("hello   world\n"))
	require.NoError(t, err)
	require.NotEqual(t, got, spaced)
}

func TestHasherNormalizesWhitespace(t *testing.T) {
	t.Parallel()

	h := New(WithWhitespaceNormalization())
	a, err := h.Hash([]byte("  hello\n\tworld "))
	require.NoError(t, err)
	b, err := h.Hash([]byte("hello world"))
	require.NoError(t, err)
	require.Equal(t, a, b)
	require.Equal(t, "b94d27b9934d3e08a52e52d7da7dabfac484efe37a5380ee9088f7ace2efcde9", a)
}
