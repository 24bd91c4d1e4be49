package domain

import (
	"context"
	"math"
)

// Embedder is the shared text vectorization contract between layers.
type Embedder interface {
	Embed(ctx context.Context, text string) (EmbeddingResult, error)
}

// Generator produces a single answer string for a prompt.
type Generator interface {
	Generate(ctx context.Context, prompt string, temperature float64) (string, error)
}

// HealthChecker verifies provider availability.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// EmbeddingResult carries the embedding vector and token usage through the decorator chain.
type EmbeddingResult struct {
	Embedding    []float32
	PromptTokens int
	TotalTokens  int
}

// DefaultTemperature replaces a NaN generation temperature.
const DefaultTemperature = 0.2

// SanitizeTemperature maps NaN to DefaultTemperature and clamps to [0, 1].
func SanitizeTemperature(t float64) float64 {
	if math.IsNaN(t) {
		t = DefaultTemperature
	}
	return math.Max(0, math.Min(1, t))
}

type contextLimitKey struct{}

// WithContextLimit attaches a context-window hint (in tokens) for the embedding backend.
// Providers that cannot size their window per request ignore it.
func WithContextLimit(ctx context.Context, numCtx int) context.Context {
	return context.WithValue(ctx, contextLimitKey{}, numCtx)
}

// ContextLimitFrom returns the context-window hint, or 0 when none is set.
func ContextLimitFrom(ctx context.Context) int {
	n, _ := ctx.Value(contextLimitKey{}).(int)
	return n
}
