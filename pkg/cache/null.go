package cache

import (
	"context"
	"time"
)

// NullCache stores nothing. The provider still memoizes in memory for the
// run, so --no-cache and cache.backend = "none" only cost repeated fetches
// across runs.
type NullCache struct{}

// NewNullCache returns a cache that always misses.
func NewNullCache() Cache { return NullCache{} }

func (NullCache) Get(context.Context, string) ([]byte, bool, error) { return nil, false, nil }

func (NullCache) Set(context.Context, string, []byte, time.Duration) error { return nil }

func (NullCache) Delete(context.Context, string) error { return nil }

func (NullCache) Close() error { return nil }

var _ Cache = NullCache{}
