// Package indexing turns (source, text) pairs into a hybrid index.
package indexing

import (
	"context"
	"crypto/sha256"
	"fmt"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"
	"go.uber.org/zap"

	"github.com/kailas-cloud/siteqa/internal/domain"
	"github.com/kailas-cloud/siteqa/internal/domain/index"
	"github.com/kailas-cloud/siteqa/internal/domain/segment"
	"github.com/kailas-cloud/siteqa/internal/metrics"
)

// Pair is one source and its extracted text.
type Pair struct {
	Source string
	Text   string
}

// Config tunes segmentation and embedding concurrency.
type Config struct {
	Chunking domain.ChunkingConfig
	Workers  int // embedding workers; 1 embeds sequentially
}

// Stats summarizes one Extend call.
type Stats struct {
	Added      int
	Duplicates int
	Total      int
}

// Builder builds and extends indexes.
type Builder struct {
	embed  Embedder
	cfg    Config
	pool   *ants.Pool
	now    func() time.Time
	logger *zap.Logger
}

// New creates a builder. A pool is started only when more than one worker is configured;
// call Release when done.
func New(embed Embedder, cfg Config, logger *zap.Logger) (*Builder, error) {
	if cfg.Chunking.TargetChars <= 0 {
		cfg.Chunking = domain.DefaultChunkingConfig()
	}
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	b := &Builder{embed: embed, cfg: cfg, now: time.Now, logger: logger}
	if cfg.Workers > 1 {
		pool, err := ants.NewPool(cfg.Workers)
		if err != nil {
			return nil, fmt.Errorf("create embedding pool: %w", err)
		}
		b.pool = pool
	}
	return b, nil
}

// Release stops the worker pool.
func (b *Builder) Release() {
	if b.pool != nil {
		b.pool.Release()
	}
}

// Build creates a new index from pairs. Any embedding failure aborts the build.
func (b *Builder) Build(ctx context.Context, pairs []Pair, meta index.Meta) (*index.Index, error) {
	start := time.Now()

	pending, _, err := b.segment(pairs, false)
	if err != nil {
		return nil, err
	}
	chunks, err := b.embedAll(ctx, pending)
	if err != nil {
		return nil, fmt.Errorf("build index: %w", err)
	}

	idx := index.New(meta, b.now())
	idx.Merge(chunks)

	metrics.IndexChunks.Set(float64(len(idx.Chunks)))
	metrics.IndexBuildDuration.WithLabelValues("build").Observe(time.Since(start).Seconds())
	b.logger.Info("Index built",
		zap.Int("sources", len(pairs)),
		zap.Int("chunks", len(idx.Chunks)),
		zap.Duration("duration", time.Since(start)),
	)
	return idx, nil
}

// Extend embeds pairs and merges them into idx. Chunks whose exact text already
// appeared earlier in this call are skipped. idx is modified only on success.
func (b *Builder) Extend(ctx context.Context, idx *index.Index, pairs []Pair) (Stats, error) {
	start := time.Now()

	pending, dups, err := b.segment(pairs, true)
	if err != nil {
		return Stats{}, err
	}
	chunks, err := b.embedAll(ctx, pending)
	if err != nil {
		return Stats{}, fmt.Errorf("extend index: %w", err)
	}

	idx.Merge(chunks)

	metrics.IndexChunks.Set(float64(len(idx.Chunks)))
	metrics.IndexBuildDuration.WithLabelValues("extend").Observe(time.Since(start).Seconds())
	b.logger.Info("Index extended",
		zap.Int("added", len(chunks)),
		zap.Int("duplicates", dups),
		zap.Int("chunks", len(idx.Chunks)),
	)
	return Stats{Added: len(chunks), Duplicates: dups, Total: len(idx.Chunks)}, nil
}

type pendingChunk struct {
	source  string
	ordinal int
	text    string
}

// segment splits every pair into windows in input order.
func (b *Builder) segment(pairs []Pair, dedup bool) ([]pendingChunk, int, error) {
	var (
		out  []pendingChunk
		seen map[[sha256.Size]byte]struct{}
		dups int
	)
	if dedup {
		seen = make(map[[sha256.Size]byte]struct{})
	}
	for _, p := range pairs {
		windows, err := segment.Split(p.Text, b.cfg.Chunking.TargetChars, b.cfg.Chunking.OverlapChars)
		if err != nil {
			return nil, 0, fmt.Errorf("segment %s: %w", p.Source, err)
		}
		for i, w := range windows {
			if dedup {
				sum := sha256.Sum256([]byte(w))
				if _, ok := seen[sum]; ok {
					dups++
					continue
				}
				seen[sum] = struct{}{}
			}
			out = append(out, pendingChunk{source: p.Source, ordinal: i, text: w})
		}
	}
	return out, dups, nil
}

// embedAll embeds pending chunks and returns them in input order.
func (b *Builder) embedAll(ctx context.Context, pending []pendingChunk) ([]index.Chunk, error) {
	vecs := make([][]float32, len(pending))

	if b.pool == nil {
		for i, p := range pending {
			res, err := b.embed.Embed(ctx, p.text)
			if err != nil {
				return nil, fmt.Errorf("embed %s: %w", index.ChunkID(p.source, p.ordinal), err)
			}
			vecs[i] = res.Embedding
		}
		return assemble(pending, vecs), nil
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		firstErr error
	)
	fail := func(err error) {
		mu.Lock()
		if firstErr == nil {
			firstErr = err
			cancel()
		}
		mu.Unlock()
	}

	for i := range pending {
		if ctx.Err() != nil {
			break
		}
		wg.Add(1)
		err := b.pool.Submit(func() {
			defer wg.Done()
			if ctx.Err() != nil {
				return
			}
			p := pending[i]
			res, err := b.embed.Embed(ctx, p.text)
			if err != nil {
				fail(fmt.Errorf("embed %s: %w", index.ChunkID(p.source, p.ordinal), err))
				return
			}
			vecs[i] = res.Embedding
		})
		if err != nil {
			wg.Done()
			fail(fmt.Errorf("submit embedding task: %w", err))
			break
		}
	}
	wg.Wait()

	if firstErr != nil {
		return nil, firstErr
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return assemble(pending, vecs), nil
}

func assemble(pending []pendingChunk, vecs [][]float32) []index.Chunk {
	chunks := make([]index.Chunk, len(pending))
	for i, p := range pending {
		chunks[i] = index.NewChunk(p.source, p.ordinal, p.text, vecs[i])
	}
	return chunks
}
