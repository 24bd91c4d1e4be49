// Package memory implements db.Store in process memory with ristretto.
package memory

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/dgraph-io/ristretto/v2"

	"github.com/kailas-cloud/siteqa/internal/db"
)

// Compile-time check: Store implements db.Store.
var _ db.Store = (*Store)(nil)

// DefaultMaxEntries bounds the store when Config.MaxEntries is zero.
const DefaultMaxEntries = 100_000

// Config holds in-memory store settings.
type Config struct {
	MaxEntries int64
}

// Store is an admission-controlled LRU-ish cache. Every entry costs 1.
type Store struct {
	cache  *ristretto.Cache[string, []byte]
	closed atomic.Bool
}

// NewStore creates an in-memory store.
func NewStore(cfg Config) (*Store, error) {
	if cfg.MaxEntries <= 0 {
		cfg.MaxEntries = DefaultMaxEntries
	}
	cache, err := ristretto.NewCache(&ristretto.Config[string, []byte]{
		NumCounters: cfg.MaxEntries * 10,
		MaxCost:     cfg.MaxEntries,
		BufferItems: 64,
	})
	if err != nil {
		return nil, fmt.Errorf("create ristretto cache: %w", err)
	}
	return &Store{cache: cache}, nil
}

// Get retrieves a value by key.
func (s *Store) Get(_ context.Context, key string) ([]byte, error) {
	if s.closed.Load() {
		return nil, &db.Error{Op: db.OpGet, Key: key, Err: db.ErrClosed}
	}
	v, ok := s.cache.Get(key)
	if !ok {
		return nil, db.ErrKeyNotFound
	}
	return v, nil
}

// Set stores a value. The write is visible to the next Get.
func (s *Store) Set(ctx context.Context, key string, value []byte) error {
	return s.SetWithTTL(ctx, key, value, 0)
}

// SetWithTTL stores a value with an expiration. A non-positive ttl never expires.
func (s *Store) SetWithTTL(_ context.Context, key string, value []byte, ttl time.Duration) error {
	if s.closed.Load() {
		return &db.Error{Op: db.OpSet, Key: key, Err: db.ErrClosed}
	}
	if ttl < 0 {
		ttl = 0
	}
	// Dropped sets are normal under admission pressure.
	s.cache.SetWithTTL(key, value, 1, ttl)
	s.cache.Wait()
	return nil
}

// Del removes a key.
func (s *Store) Del(_ context.Context, key string) error {
	if s.closed.Load() {
		return &db.Error{Op: db.OpDel, Key: key, Err: db.ErrClosed}
	}
	s.cache.Del(key)
	return nil
}

// Ping reports whether the store is open.
func (s *Store) Ping(context.Context) error {
	if s.closed.Load() {
		return &db.Error{Op: db.OpPing, Err: db.ErrClosed}
	}
	return nil
}

// WaitForReady returns immediately; the store is ready once created.
func (s *Store) WaitForReady(ctx context.Context, _ time.Duration) error {
	return s.Ping(ctx)
}

// Close releases the cache.
func (s *Store) Close() {
	if s.closed.CompareAndSwap(false, true) {
		s.cache.Close()
	}
}
