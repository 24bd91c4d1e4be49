package embedding

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/kailas-cloud/siteqa/internal/domain"
	"github.com/kailas-cloud/siteqa/internal/domain/text"
	"github.com/kailas-cloud/siteqa/internal/metrics"
)

// Defaults for the first attempt.
const (
	DefaultMaxChars = 750
	DefaultNumCtx   = 2048
)

// ShrinkBudgets are the character budgets tried, in order, after the backend
// rejects an input as too long.
var ShrinkBudgets = []int{256, 192, 160, 120}

// ShrinkNumCtx caps the context-window hint once shrinking starts.
const ShrinkNumCtx = 1024

// State is a step of the shrink-and-retry machine.
type State int

// States of the shrink-and-retry machine.
const (
	StateTrying State = iota
	StateShrinkAndRetry
	StateFailed
	StateSucceeded
)

func (s State) String() string {
	switch s {
	case StateTrying:
		return "trying"
	case StateShrinkAndRetry:
		return "shrink_and_retry"
	case StateFailed:
		return "failed"
	case StateSucceeded:
		return "succeeded"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Ladder tracks one text through the shrink-and-retry machine.
// It performs no I/O, so the transitions can be driven directly.
type Ladder struct {
	State   State
	Budget  int // character budget of the current attempt
	NumCtx  int // context-window hint of the current attempt
	Input   string
	Err     error
	source  string
	budgets []int
	next    int
}

// NewLadder starts in StateTrying with text clamped to maxChars.
func NewLadder(source string, maxChars, numCtx int, budgets []int) *Ladder {
	return &Ladder{
		State:   StateTrying,
		Budget:  maxChars,
		NumCtx:  numCtx,
		Input:   text.Clamp(source, maxChars),
		source:  source,
		budgets: budgets,
	}
}

// Observe moves out of StateTrying given the attempt's outcome.
func (l *Ladder) Observe(err error) {
	switch {
	case err == nil:
		l.State, l.Err = StateSucceeded, nil
	case errors.Is(err, domain.ErrContextLength):
		l.State, l.Err = StateShrinkAndRetry, err
	default:
		l.State, l.Err = StateFailed, err
	}
}

// Shrink moves out of StateShrinkAndRetry: to StateTrying with the next budget,
// or to StateFailed once the budgets are exhausted.
func (l *Ladder) Shrink() {
	if l.next >= len(l.budgets) {
		l.State = StateFailed
		return
	}
	l.Budget = l.budgets[l.next]
	l.next++
	l.Input = text.Clamp(l.source, l.Budget)
	l.NumCtx = min(l.NumCtx, ShrinkNumCtx)
	l.State = StateTrying
}

// ShrinkingEmbedder clamps inputs and walks the ladder on context-length rejections.
type ShrinkingEmbedder struct {
	inner    domain.Embedder
	maxChars int
	numCtx   int
	budgets  []int
	logger   *zap.Logger
}

// NewShrinkingEmbedder wraps inner. Zero maxChars/numCtx take the defaults.
func NewShrinkingEmbedder(inner domain.Embedder, maxChars, numCtx int, logger *zap.Logger) *ShrinkingEmbedder {
	if maxChars <= 0 {
		maxChars = DefaultMaxChars
	}
	if numCtx <= 0 {
		numCtx = DefaultNumCtx
	}
	return &ShrinkingEmbedder{
		inner:    inner,
		maxChars: maxChars,
		numCtx:   numCtx,
		budgets:  ShrinkBudgets,
		logger:   logger,
	}
}

// Embed implements domain.Embedder. A terminal failure wraps domain.ErrEmbeddingFailed
// together with the last cause.
func (s *ShrinkingEmbedder) Embed(ctx context.Context, t string) (domain.EmbeddingResult, error) {
	l := NewLadder(t, s.maxChars, s.numCtx, s.budgets)
	var res domain.EmbeddingResult
	for {
		switch l.State {
		case StateTrying:
			var err error
			res, err = s.inner.Embed(domain.WithContextLimit(ctx, l.NumCtx), l.Input)
			l.Observe(err)
		case StateShrinkAndRetry:
			l.Shrink()
			if l.State == StateTrying {
				metrics.EmbeddingShrinkRetriesTotal.Inc()
				s.logger.Debug("Input rejected as too long, shrinking",
					zap.Int("budget", l.Budget),
					zap.Int("num_ctx", l.NumCtx),
				)
			}
		case StateSucceeded:
			return res, nil
		case StateFailed:
			return domain.EmbeddingResult{}, fmt.Errorf("%w: %w", domain.ErrEmbeddingFailed, l.Err)
		}
	}
}

// DisabledEmbedder returns empty vectors without calling a backend.
// Ranking then relies on lexical scores and bonuses alone.
type DisabledEmbedder struct{}

// Embed implements domain.Embedder.
func (DisabledEmbedder) Embed(context.Context, string) (domain.EmbeddingResult, error) {
	return domain.EmbeddingResult{}, nil
}
