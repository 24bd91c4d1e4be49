package embedding

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/siteqa/internal/domain"
	"github.com/kailas-cloud/siteqa/internal/retry"
)

// RetryingEmbedder retries transient provider failures with linear backoff.
// Context-length rejections and cancellations are returned immediately.
type RetryingEmbedder struct {
	inner  domain.Embedder
	policy retry.Policy
	logger *zap.Logger
}

// NewRetryingEmbedder wraps inner with a bounded retry policy.
func NewRetryingEmbedder(inner domain.Embedder, policy retry.Policy, logger *zap.Logger) *RetryingEmbedder {
	if policy.Attempts <= 0 {
		policy = retry.DefaultPolicy
	}
	return &RetryingEmbedder{inner: inner, policy: policy, logger: logger}
}

// Embed implements domain.Embedder.
func (r *RetryingEmbedder) Embed(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	res, err := retry.Do(ctx, r.policy, func(ctx context.Context) (domain.EmbeddingResult, error) {
		res, err := r.inner.Embed(ctx, text)
		if err != nil && !isTransient(err) {
			return res, retry.Permanent(err)
		}
		return res, err
	}, func(err error, wait time.Duration) {
		r.logger.Debug("Retrying embedding", zap.Duration("wait", wait), zap.Error(err))
	})
	if err != nil {
		return domain.EmbeddingResult{}, fmt.Errorf("retrying embed: %w", err)
	}
	return res, nil
}

func isTransient(err error) bool {
	switch {
	case errors.Is(err, domain.ErrContextLength),
		errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded):
		return false
	}
	return true
}
