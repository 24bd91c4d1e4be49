// Package embcache caches embedding vectors in a key-value store.
package embcache

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"math"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/kailas-cloud/siteqa/internal/db"
	"github.com/kailas-cloud/siteqa/internal/domain"
)

var cacheKeyPrefix = domain.KeyPrefix + "emb_cache:"

// codecV1 layout: version byte, uint32 dimension, little-endian float32s.
const (
	codecV1   byte = 1
	headerLen      = 5
)

const (
	resultHit   = "hit"
	resultMiss  = "miss"
	resultStale = "stale"
)

// store is the consumer interface for the embedding cache (ISP).
type store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Del(ctx context.Context, key string) error
}

// Config scopes cache entries.
type Config struct {
	Model string        // part of every key
	TTL   time.Duration // <= 0 keeps entries until evicted
}

// CachedEmbedder caches embeddings in a key-value store.
// Keys are scoped by model so switching models never returns stale vectors.
// A model re-pulled under the same name can still change dimension; entries
// whose dimension differs from the provider's latest vector are dropped.
type CachedEmbedder struct {
	inner      domain.Embedder
	store      store
	cfg        Config
	dims       atomic.Int32
	cacheTotal *prometheus.CounterVec
	logger     *zap.Logger
}

// New creates a caching decorator.
// cacheTotal is a counter vec with label "result" ("hit"/"miss"/"stale"), passed explicitly.
func New(
	inner domain.Embedder,
	s store,
	cfg Config,
	cacheTotal *prometheus.CounterVec,
	logger *zap.Logger,
) *CachedEmbedder {
	return &CachedEmbedder{
		inner:      inner,
		store:      s,
		cfg:        cfg,
		cacheTotal: cacheTotal,
		logger:     logger,
	}
}

// Embed returns a cached embedding or calls the inner embedder.
// Cache hit: TotalTokens = 0 (no real tokens consumed).
// Cache miss: full EmbeddingResult from inner. Failures and empty vectors are never cached.
func (c *CachedEmbedder) Embed(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	key := c.cacheKey(text)

	if vec, ok := c.getFromCache(ctx, key); ok {
		c.incCache(resultHit)
		return domain.EmbeddingResult{Embedding: vec}, nil
	}

	c.incCache(resultMiss)

	result, err := c.inner.Embed(ctx, text)
	if err != nil {
		return domain.EmbeddingResult{}, fmt.Errorf("embed text: %w", err)
	}

	if n := len(result.Embedding); n > 0 {
		if prev := c.dims.Swap(int32(n)); prev != 0 && prev != int32(n) {
			c.logger.Warn("Embedding dimension changed",
				zap.String("model", c.cfg.Model),
				zap.Int32("previous", prev),
				zap.Int("current", n),
			)
		}
		c.putToCache(ctx, key, result.Embedding)
	}
	return result, nil
}

func (c *CachedEmbedder) incCache(result string) {
	if c.cacheTotal != nil {
		c.cacheTotal.WithLabelValues(result).Inc()
	}
}

func (c *CachedEmbedder) cacheKey(text string) string {
	h := sha256.New()
	h.Write([]byte(c.cfg.Model))
	h.Write([]byte{0})
	h.Write([]byte(text))
	return cacheKeyPrefix + hex.EncodeToString(h.Sum(nil))
}

func (c *CachedEmbedder) getFromCache(ctx context.Context, key string) ([]float32, bool) {
	data, err := c.store.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, db.ErrKeyNotFound) {
			c.logger.Warn("Failed to get cached embedding", zap.String("key", key), zap.Error(err))
		}
		return nil, false
	}
	if len(data) == 0 {
		return nil, false
	}

	vec, err := decodeVector(data)
	if err != nil {
		c.logger.Warn("Failed to parse cached embedding", zap.String("key", key), zap.Error(err))
		c.evict(ctx, key)
		return nil, false
	}
	if want := c.dims.Load(); want != 0 && int32(len(vec)) != want {
		c.incCache(resultStale)
		c.evict(ctx, key)
		return nil, false
	}

	return vec, true
}

func (c *CachedEmbedder) putToCache(ctx context.Context, key string, vec []float32) {
	if err := c.store.SetWithTTL(ctx, key, encodeVector(vec), c.cfg.TTL); err != nil {
		c.logger.Warn("Failed to cache embedding", zap.String("key", key), zap.Error(err))
	}
}

func (c *CachedEmbedder) evict(ctx context.Context, key string) {
	if err := c.store.Del(ctx, key); err != nil {
		c.logger.Debug("Failed to evict cached embedding", zap.String("key", key), zap.Error(err))
	}
}

func encodeVector(v []float32) []byte {
	buf := make([]byte, headerLen+len(v)*4)
	buf[0] = codecV1
	binary.LittleEndian.PutUint32(buf[1:headerLen], uint32(len(v)))
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[headerLen+i*4:], math.Float32bits(f))
	}
	return buf
}

func decodeVector(data []byte) ([]float32, error) {
	if len(data) < headerLen {
		return nil, fmt.Errorf("invalid embedding cache data: len=%d", len(data))
	}
	if data[0] != codecV1 {
		return nil, fmt.Errorf("unknown embedding cache version %d", data[0])
	}
	dims := int(binary.LittleEndian.Uint32(data[1:headerLen]))
	if len(data)-headerLen != dims*4 {
		return nil, fmt.Errorf("invalid embedding cache data: %d bytes for %d dims", len(data)-headerLen, dims)
	}
	vec := make([]float32, dims)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[headerLen+i*4:]))
	}
	return vec, nil
}
