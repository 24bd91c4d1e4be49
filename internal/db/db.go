// Package db defines the key-value store behind the embedding cache.
// Implementations live in db/memory (ristretto) and db/redis (rueidis).
package db

import (
	"context"
	"time"
)

// Store is what the CLI wires into the embedding cache and health check.
type Store interface {
	Pinger
	KVStore
	Close()
	WaitForReady(ctx context.Context, timeout time.Duration) error
}

// Pinger checks store connectivity. The health service reports a failing
// Pinger as a degraded cache.
type Pinger interface {
	Ping(ctx context.Context) error
}

// KVStore holds opaque values. Embedding entries are written once per key
// and never updated in place; Del drops entries the cache can no longer use.
type KVStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Del(ctx context.Context, key string) error
}
