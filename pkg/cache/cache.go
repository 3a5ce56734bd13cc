// Package cache stores rendered artifacts keyed by content hash.
//
// The CLI caches graph exports (DOT text and SVG) so that re-rendering an
// unchanged project skips Graphviz. Keys are derived from a hash of the
// serialized project, so any edit produces a new key and stale entries are
// simply never read again.
package cache

import (
	"context"
	"time"
)

// Cache is a byte store with optional expiry.
type Cache interface {
	// Get returns the stored value and whether it was found.
	Get(ctx context.Context, key string) ([]byte, bool, error)
	// Set stores data under key. A ttl of zero means no expiry.
	Set(ctx context.Context, key string, data []byte, ttl time.Duration) error
	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
	// Close releases resources held by the cache.
	Close() error
}

// ArtifactKeyOpts are the rendering choices that change an artifact.
type ArtifactKeyOpts struct {
	Format   string `json:"format"`
	Detailed bool   `json:"detailed"`
	RankDir  string `json:"rankdir,omitempty"`
}

// ArtifactKey returns the cache key of an artifact rendered from a project
// whose serialized form hashes to docHash.
func ArtifactKey(docHash string, opts ArtifactKeyOpts) string {
	return hashKey("artifact", docHash, opts)
}
