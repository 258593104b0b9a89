// Package sha256 fingerprints page text so unchanged content can be detected
// across crawls and enrichment results can be reused.
package sha256

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// Hasher implements crawler.Hasher with hex-encoded SHA-256 digests.
type Hasher struct {
	normalize bool
}

// Option configures a Hasher.
type Option func(*Hasher)

// WithWhitespaceNormalization collapses runs of whitespace before hashing so
// reflowed markup with identical text hashes the same.
func WithWhitespaceNormalization() Option {
	return func(h *Hasher) { h.normalize = true }
}

// New returns a SHA-256 hasher.
func New(opts ...Option) *Hasher {
	h := &Hasher{}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Hash returns the hex digest of data.
func (h *Hasher) Hash(data []byte) (string, error) {
	if h.normalize {
		data = []byte(strings.Join(strings.Fields(string(data)), " "))
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}
