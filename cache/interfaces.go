// Package cache provides a time-expiring cache of resolved avatar URLs
// persisted as a single serialized blob under one namespaced storage key.
package cache

import (
	"context"
	"time"
)

const (
	// DefaultTTL is how long a resolved URL is trusted after it was stored
	DefaultTTL = 24 * time.Hour

	// DefaultNamespace is the storage key the blob is persisted under
	DefaultNamespace = "sucukcamp_avatars"
)

// Entry is one persisted value with its write time in Unix milliseconds
type Entry struct {
	URL       string `json:"url"`
	Timestamp int64  `json:"timestamp"`
}

// StoredAt returns the entry's write time
func (e Entry) StoredAt() time.Time {
	return time.UnixMilli(e.Timestamp)
}

// Blob is the serialized form of the whole cache: identity -> entry
type Blob map[string]Entry

// Store persists one opaque blob under a fixed namespace
type Store interface {
	// Load returns the persisted blob, or nil with no error when nothing is stored yet
	Load(ctx context.Context) ([]byte, error)

	// Save replaces the persisted blob
	Save(ctx context.Context, data []byte) error
}

// Reader looks up fresh values
type Reader interface {
	Get(ctx context.Context, key string) (string, bool)
}

// Writer stores values; failures are absorbed by the implementation
type Writer interface {
	Put(ctx context.Context, key, value string)
}

// ReadWriter combines both cache operations
type ReadWriter interface {
	Reader
	Writer
}
