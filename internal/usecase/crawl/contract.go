package crawl

import (
	"context"
	"net/url"

	"github.com/kailas-cloud/siteqa/internal/domain"
	"github.com/kailas-cloud/siteqa/internal/extract"
)

// Fetcher retrieves pages and binary documents.
type Fetcher interface {
	FetchPage(ctx context.Context, rawURL, referer string) (domain.Resource, error)
	FetchDocument(ctx context.Context, rawURL, referer string) (domain.Resource, error)
}

// Extractor turns fetched bodies into text.
type Extractor interface {
	HTML(base *url.URL, body []byte) extract.HTMLPage
	Extract(ctx context.Context, name, contentType string, body []byte) (string, error)
}
