package indexing

import (
	"context"

	"github.com/kailas-cloud/siteqa/internal/domain"
)

// Embedder vectorizes chunk text.
type Embedder interface {
	Embed(ctx context.Context, text string) (domain.EmbeddingResult, error)
}
