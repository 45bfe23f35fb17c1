// Package cache provides response caches for model answers, keyed by
// wotrtl.RequestCacheKey.
package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/wotrcz/wotrtl"
	"github.com/wotrcz/wotrtl/catalog"
)

// TranslationCache is the interface for response caching.
type TranslationCache = wotrtl.TranslationCache

// Backends accepted by Open.
const (
	BackendNone   = "none"
	BackendMemory = "memory"
	BackendRedis  = "redis"
)

// Options selects and configures a cache backend.
type Options struct {
	Backend   string        // none, memory or redis
	URL       string        // Redis URL
	TTL       time.Duration // 0 = no expiration
	KeyPrefix string        // Redis key prefix (default "wotrtl:")
	File      string        // Memory cache persisted here between runs (optional)
}

// Handle is an opened cache. Close persists a file-backed memory cache and
// releases Redis connections.
type Handle struct {
	Cache TranslationCache
	close func() error
}

// Close flushes and releases the cache.
func (h *Handle) Close() error {
	if h == nil || h.close == nil {
		return nil
	}
	return h.close()
}

// Open builds the cache described by opts. Backend "none" (or empty)
// returns a handle with a nil Cache.
func Open(ctx context.Context, opts Options) (*Handle, error) {
	switch opts.Backend {
	case "", BackendNone:
		return &Handle{}, nil

	case BackendMemory:
		mem := NewInMemoryCache(opts.TTL)
		h := &Handle{Cache: mem}
		if opts.File == "" {
			return h, nil
		}
		if catalog.Exists(opts.File) {
			if _, err := NewImporter(mem).ImportFromFile(opts.File); err != nil {
				return nil, &wotrtl.CacheError{Message: "loading " + opts.File, Cause: err}
			}
		}
		h.close = func() error {
			return NewExporter(mem).ExportToFile(opts.File, map[string]string{"backend": BackendMemory})
		}
		return h, nil

	case BackendRedis:
		rc, err := NewRedisCache(ctx, RedisConfig{URL: opts.URL, TTL: opts.TTL, KeyPrefix: opts.KeyPrefix})
		if err != nil {
			return nil, err
		}
		return &Handle{Cache: rc, close: rc.Close}, nil

	default:
		return nil, &wotrtl.CacheError{Message: fmt.Sprintf("unknown backend %q", opts.Backend)}
	}
}
