package adapter

import (
	"context"
	"time"
)

// BlobStore is the opaque artifact store. Keys are slash-separated paths
// namespaced by user and job; callers never hand raw keys to clients, only
// signed URLs resolved at read time.
type BlobStore interface {
	Put(ctx context.Context, key string, data []byte, contentType string) error
	Get(ctx context.Context, key string) ([]byte, string, error)
	// SignedURL returns a time-limited URL for the stored object.
	SignedURL(key string, ttl time.Duration) (string, error)
}
