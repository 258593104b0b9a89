package crawler

import (
	"context"
	"io"
	"time"
)

// BlobStore writes raw page content and returns a URI that can be read back.
type BlobStore interface {
	PutObject(ctx context.Context, path string, contentType string, r io.Reader) (string, error)
	GetObject(ctx context.Context, uri string) ([]byte, error)
}

// Publisher pushes notification payloads to Pub/Sub (or similar).
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) (string, error)
}

// Queue provides enqueue/dequeue semantics for enrichment tasks.
type Queue interface {
	Enqueue(ctx context.Context, task EnrichmentTask) error
	Dequeue(ctx context.Context) (EnrichmentTask, error)
}

// Hasher computes digests for deduplication/integrity.
type Hasher interface {
	Hash(data []byte) (string, error)
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

// IDGenerator produces record IDs (UUIDs).
type IDGenerator interface {
	NewID() (string, error)
}
