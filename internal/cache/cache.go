// Package cache provides the content-addressed dependency cache.
//
// Resolving third-party packages is the most expensive step of a compile and
// the easiest to reuse. The cache snapshots a workspace's resolved dependency
// directory after a successful build and keys it by the SHA256 of the lock file
// that produced it:
//
//  1. Identical lock file bytes always map to the same key
//  2. A snapshot is only ever stored under the digest of the lock file it was built from
//  3. Entries are immutable, so concurrent writers storing the same key are harmless
//
// Snapshots live in a pluggable Store (BoltDB by default, or NATS, Redis, S3).
package cache

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/Norgate-AV/pcs/internal/logger"
	"github.com/Norgate-AV/pcs/internal/metrics"
)

// DependencyCache looks up and stores dependency snapshots by digest
type DependencyCache struct {
	store    Store
	log      *zap.Logger
	recorder metrics.Recorder

	mu    sync.Mutex
	known map[string]struct{}
}

// Option configures a DependencyCache
type Option func(*DependencyCache)

// WithLogger sets the logger used by the cache
func WithLogger(l *zap.Logger) Option {
	return func(c *DependencyCache) { c.log = logger.OrNop(l) }
}

// WithRecorder sets the metrics recorder used by the cache
func WithRecorder(r metrics.Recorder) Option {
	return func(c *DependencyCache) {
		if r != nil {
			c.recorder = r
		}
	}
}

// New creates a dependency cache on top of store
func New(store Store, opts ...Option) *DependencyCache {
	c := &DependencyCache{
		store:    store,
		log:      zap.NewNop(),
		recorder: metrics.NoopRecorder{},
		known:    make(map[string]struct{}),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Get retrieves the snapshot for digest
// Returns nil if cache miss
func (c *DependencyCache) Get(ctx context.Context, digest string) (*Entry, error) {
	data, err := c.store.Get(ctx, digest)
	if errors.Is(err, ErrNotFound) {
		c.recorder.IncCacheLookup(false)
		c.log.Debug("Dependency cache miss", zap.String("digest", digest))
		return nil, nil
	}

	if err != nil {
		return nil, fmt.Errorf("failed to read cache entry %s: %w", digest, err)
	}

	c.recorder.IncCacheLookup(true)
	c.remember(digest)
	c.log.Debug("Dependency cache hit", zap.String("digest", digest), zap.Int("bytes", len(data)))

	return &Entry{Digest: digest, Payload: string(data)}, nil
}

// Store writes entry under its digest
func (c *DependencyCache) Store(ctx context.Context, entry *Entry) error {
	if entry == nil || entry.Digest == "" {
		return fmt.Errorf("cannot store entry without digest")
	}

	if err := c.store.Set(ctx, entry.Digest, []byte(entry.Payload)); err != nil {
		return fmt.Errorf("failed to store cache entry %s: %w", entry.Digest, err)
	}

	c.recorder.IncCacheStore()
	c.remember(entry.Digest)
	c.log.Info("Stored dependency snapshot", zap.String("digest", entry.Digest), zap.Int("bytes", len(entry.Payload)))

	return nil
}

// Known reports whether digest has already been seen in the backing store
// by this process, either through a hit or a store
func (c *DependencyCache) Known(digest string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	_, ok := c.known[digest]
	return ok
}

// Close closes the backing store
func (c *DependencyCache) Close() error {
	return c.store.Close()
}

func (c *DependencyCache) remember(digest string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.known[digest] = struct{}{}
}
