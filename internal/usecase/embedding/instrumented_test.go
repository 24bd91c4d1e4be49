package embedding

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/kailas-cloud/siteqa/internal/domain"
	"github.com/kailas-cloud/siteqa/internal/metrics"
)

func TestMain(m *testing.M) {
	metrics.RegisterEmbeddingMetrics()
	os.Exit(m.Run())
}

// call is one recorded invocation of mockEmbedder.
type call struct {
	text   string
	numCtx int
}

type mockEmbedder struct {
	mu      sync.Mutex
	calls   []call
	results []domain.EmbeddingResult
	errs    []error
}

func (m *mockEmbedder) Embed(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	i := len(m.calls)
	m.calls = append(m.calls, call{text: text, numCtx: domain.ContextLimitFrom(ctx)})
	if i < len(m.errs) && m.errs[i] != nil {
		return domain.EmbeddingResult{}, m.errs[i]
	}
	if i < len(m.results) {
		return m.results[i], nil
	}
	if len(m.results) > 0 {
		return m.results[len(m.results)-1], nil
	}
	return domain.EmbeddingResult{Embedding: []float32{1}}, nil
}

func TestInstrumentedEmbedder_Success(t *testing.T) {
	inner := &mockEmbedder{results: []domain.EmbeddingResult{{
		Embedding: []float32{0.1, 0.2, 0.3}, PromptTokens: 7, TotalTokens: 7,
	}}}
	p := NewInstrumentedEmbedder(inner, "test", "test-model", zap.NewNop())

	ctx, usage := domain.NewContextWithUsage(context.Background())
	result, err := p.Embed(ctx, "hello")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.Embedding) != 3 {
		t.Fatalf("expected 3 dimensions, got %d", len(result.Embedding))
	}
	if usage.Calls() != 1 || usage.TotalTokens() != 7 {
		t.Errorf("usage: calls=%d tokens=%d", usage.Calls(), usage.TotalTokens())
	}
}

func TestInstrumentedEmbedder_NoUsageCollector(t *testing.T) {
	p := NewInstrumentedEmbedder(&mockEmbedder{}, "test", "m", zap.NewNop())
	if _, err := p.Embed(context.Background(), "hello"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestInstrumentedEmbedder_Error(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	inner := &mockEmbedder{errs: []error{fmt.Errorf("boom: %w", domain.ErrEmbeddingProviderError)}}
	p := NewInstrumentedEmbedder(inner, "test", "m", zap.New(core))

	ctx, usage := domain.NewContextWithUsage(context.Background())
	_, err := p.Embed(ctx, "hello")
	if !errors.Is(err, domain.ErrEmbeddingProviderError) {
		t.Fatalf("expected provider error, got %v", err)
	}
	if usage.Calls() != 0 {
		t.Errorf("failed call must not be recorded, got %d", usage.Calls())
	}
	if logs.FilterLevelExact(zapcore.WarnLevel).Len() != 1 {
		t.Errorf("expected one warning, got %v", logs.All())
	}
}

func TestInstrumentedEmbedder_ContextLengthLoggedAtDebug(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	inner := &mockEmbedder{errs: []error{domain.ErrContextLength}}
	p := NewInstrumentedEmbedder(inner, "test", "m", zap.New(core))

	if _, err := p.Embed(context.Background(), "hello"); !errors.Is(err, domain.ErrContextLength) {
		t.Fatalf("expected context length error, got %v", err)
	}
	if logs.FilterLevelExact(zapcore.WarnLevel).Len() != 0 {
		t.Error("context length rejections are expected and must not warn")
	}
	if logs.FilterMessage("Embedding request failed").Len() != 1 {
		t.Errorf("expected one debug entry, got %v", logs.All())
	}
}
