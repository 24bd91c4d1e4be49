package qa

import (
	"context"

	"github.com/kailas-cloud/siteqa/internal/domain"
	"github.com/kailas-cloud/siteqa/internal/domain/index"
	"github.com/kailas-cloud/siteqa/internal/repository/session"
	"github.com/kailas-cloud/siteqa/internal/usecase/crawl"
	"github.com/kailas-cloud/siteqa/internal/usecase/indexing"
)

// Crawler collects pages within a scope.
type Crawler interface {
	Crawl(ctx context.Context, req crawl.Request) ([]crawl.Page, error)
}

// IndexBuilder creates and extends indexes.
type IndexBuilder interface {
	Build(ctx context.Context, pairs []indexing.Pair, meta index.Meta) (*index.Index, error)
	Extend(ctx context.Context, idx *index.Index, pairs []indexing.Pair) (indexing.Stats, error)
}

// Extractor converts an uploaded document to text.
type Extractor interface {
	Extract(ctx context.Context, name, contentType string, body []byte) (string, error)
}

// SessionStore resolves session IDs.
type SessionStore interface {
	Get(id string) (*session.Session, bool)
	GetOrCreate(id string) *session.Session
}

// Embedder vectorizes questions.
type Embedder = domain.Embedder

// Generator writes answers.
type Generator = domain.Generator
