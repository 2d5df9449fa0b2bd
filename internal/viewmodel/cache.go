package viewmodel

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// ErrMiss signals a cache miss.
var ErrMiss = errors.New("querycache: miss")

// QueryCache stores encoded view results by key. Each entry is tagged with
// the entities it was read from so a write to any of them drops it.
// Implementations must be safe for concurrent use.
type QueryCache interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration, entities []string) error
	InvalidateEntity(ctx context.Context, entity string) error
}

// LocalCache is an in-process QueryCache.
type LocalCache struct {
	items *gocache.Cache

	mu    sync.Mutex
	index map[string]map[string]struct{}
}

var _ QueryCache = (*LocalCache)(nil)

// NewLocalCache creates a cache whose entries default to ttl.
func NewLocalCache(ttl time.Duration) *LocalCache {
	c := &LocalCache{
		items: gocache.New(ttl, 2*ttl),
		index: make(map[string]map[string]struct{}),
	}
	return c
}

func (c *LocalCache) Get(_ context.Context, key string) ([]byte, error) {
	v, ok := c.items.Get(key)
	if !ok {
		return nil, ErrMiss
	}
	return v.([]byte), nil
}

func (c *LocalCache) Set(_ context.Context, key string, value []byte, ttl time.Duration, entities []string) error {
	if ttl <= 0 {
		ttl = gocache.DefaultExpiration
	}
	c.items.Set(key, value, ttl)

	c.mu.Lock()
	defer c.mu.Unlock()
	for _, e := range entities {
		keys, ok := c.index[e]
		if !ok {
			keys = make(map[string]struct{})
			c.index[e] = keys
		}
		keys[key] = struct{}{}
	}
	return nil
}

func (c *LocalCache) InvalidateEntity(_ context.Context, entity string) error {
	c.mu.Lock()
	keys := c.index[entity]
	delete(c.index, entity)
	c.mu.Unlock()

	for key := range keys {
		c.items.Delete(key)
	}
	return nil
}

// CachedFetcher serves a Fetcher's records from a QueryCache, keyed by the
// spec name, its filter values and a scope such as the user id.
type CachedFetcher[R any] struct {
	inner  *QueryFetcher[R]
	cache  QueryCache
	scope  string
	ttl    time.Duration
	logger *slog.Logger
}

// NewCachedFetcher wraps f. Cache failures fall through to f.
func NewCachedFetcher[R any](f *QueryFetcher[R], cache QueryCache, scope string, ttl time.Duration, logger *slog.Logger) *CachedFetcher[R] {
	if logger == nil {
		logger = slog.Default()
	}
	return &CachedFetcher[R]{inner: f, cache: cache, scope: scope, ttl: ttl, logger: logger}
}

// Spec returns the wrapped spec.
func (f *CachedFetcher[R]) Spec() Spec { return f.inner.Spec() }

// Fetch returns cached records when present, otherwise reads and caches them.
func (f *CachedFetcher[R]) Fetch(ctx context.Context) ([]R, error) {
	spec := f.inner.Spec()
	key := spec.CacheKey(f.scope)

	raw, err := f.cache.Get(ctx, key)
	switch {
	case err == nil:
		var records []R
		if err := json.Unmarshal(raw, &records); err == nil {
			return records, nil
		}
		f.logger.Warn("dropping undecodable cache entry", "key", key)
	case !errors.Is(err, ErrMiss):
		f.logger.With("error", err).Warn("query cache read failed", "key", key)
	}

	records, err := f.inner.fetch(ctx, spec)
	if err != nil {
		return nil, err
	}
	encoded, err := json.Marshal(records)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", spec.Name, err)
	}
	if err := f.cache.Set(ctx, key, encoded, f.ttl, spec.Entities()); err != nil {
		f.logger.With("error", err).Warn("query cache write failed", "key", key)
	}
	return records, nil
}
