// Package cache stores fetched index data and parsed release metadata.
//
// A [Cache] is a byte-oriented key/value store with optional expiry. Three
// backends exist:
//
//   - [FileCache]: sharded files under a directory, safe to share between
//     concurrent processes (writes take a per-key advisory lock and rename
//     a temporary file into place)
//   - [RedisCache]: a shared remote cache for CI fleets
//   - [NullCache]: stores nothing
//
// Keys are produced by a [Keyer] so that every caller agrees on the layout.
// Release metadata is immutable upstream and is written with a zero TTL;
// version listings change and carry a TTL.
package cache

import (
	"context"
	"encoding/json"
	"time"
)

// Cache is the storage contract shared by all backends.
type Cache interface {
	// Get returns the stored bytes and whether the key was present and fresh.
	Get(ctx context.Context, key string) ([]byte, bool, error)
	// Set stores data under key. A ttl of zero never expires.
	Set(ctx context.Context, key string, data []byte, ttl time.Duration) error
	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
	// Close releases backend resources.
	Close() error
}

// Clearer is implemented by backends that can drop every entry at once.
type Clearer interface {
	Clear(ctx context.Context) error
}

// GetJSON reads key and decodes it into a T.
// A corrupt entry is reported as a miss.
func GetJSON[T any](ctx context.Context, c Cache, key string) (T, bool, error) {
	var v T
	data, ok, err := c.Get(ctx, key)
	if err != nil || !ok {
		return v, false, err
	}
	if err := json.Unmarshal(data, &v); err != nil {
		return v, false, nil
	}
	return v, true, nil
}

// SetJSON encodes v as JSON and stores it under key.
func SetJSON(ctx context.Context, c Cache, key string, v any, ttl time.Duration) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return c.Set(ctx, key, data, ttl)
}
