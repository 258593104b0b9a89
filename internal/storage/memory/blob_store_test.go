package memory

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/ai-readiness-scorer/internal/store"
)

func TestBlobStoreRoundTrip(t *testing.T) {
	t.Parallel()

	blobs := NewBlobStore()
	payload := []byte("<html>content</html>")
	uri, err := blobs.PutObject(context.Background(), "pages/job-1/abc.html", "text/html", bytes.NewReader(payload))
	require.NoError(t, err)
	require.Equal(t, "memory://pages/job-1/abc.html", uri)

	got, err := blobs.GetObject(context.Background(), uri)
	require.NoError(t, err)
	require.Equal(t, payload, got)

	got[0] = 'X'
	again, err := blobs.GetObject(context.Background(), uri)
	require.NoError(t, err)
	require.Equal(t, payload, again, "callers receive a copy")
}

func TestBlobStoreGetObjectErrors(t *testing.T) {
	t.Parallel()

	blobs := NewBlobStore()
	_, err := blobs.GetObject(context.Background(), "memory://missing")
	require.ErrorIs(t, err, store.ErrNotFound)

	_, err = blobs.GetObject(context.Background(), "gs://bucket/x")
	require.Error(t, err)
}
