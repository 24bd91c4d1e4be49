// Package browser renders pages in headless Chrome for sites that build their
// content with JavaScript.
package browser

import (
	"context"
	"fmt"
	"time"

	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/kailas-cloud/siteqa/internal/domain"
	"github.com/kailas-cloud/siteqa/internal/metrics"
	"github.com/kailas-cloud/siteqa/internal/retry"
	"github.com/kailas-cloud/siteqa/internal/transport/web"
)

// DefaultTimeout bounds a single render.
const DefaultTimeout = 45 * time.Second

// Config holds renderer settings.
type Config struct {
	Timeout   time.Duration
	UserAgent string
	Retry     retry.Policy
}

// Fetcher renders pages with chromedp. Documents are delegated to the HTTP fetcher.
type Fetcher struct {
	http   *web.Fetcher
	cfg    Config
	logger *zap.Logger
}

// NewFetcher creates a rendering fetcher on top of an HTTP fetcher.
func NewFetcher(cfg Config, httpFetcher *web.Fetcher, logger *zap.Logger) *Fetcher {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = web.DefaultUserAgent
	}
	if cfg.Retry.Attempts <= 0 {
		cfg.Retry = retry.DefaultPolicy
	}
	return &Fetcher{http: httpFetcher, cfg: cfg, logger: logger}
}

// FetchPage returns the rendered outer HTML of rawURL.
func (f *Fetcher) FetchPage(ctx context.Context, rawURL, _ string) (domain.Resource, error) {
	html, err := retry.Do(ctx, f.cfg.Retry, func(ctx context.Context) (string, error) {
		return f.render(ctx, rawURL)
	}, func(err error, wait time.Duration) {
		metrics.CrawlFetchRetriesTotal.Inc()
		f.logger.Debug("Retrying render",
			zap.String("url", rawURL),
			zap.Duration("wait", wait),
			zap.Error(err),
		)
	})
	if err != nil {
		return domain.Resource{}, fmt.Errorf("%w: render %s: %w", domain.ErrFetchFailed, rawURL, err)
	}
	return domain.Resource{
		URL:         rawURL,
		ContentType: "text/html; charset=utf-8",
		Body:        []byte(html),
	}, nil
}

// FetchDocument delegates to the HTTP fetcher.
func (f *Fetcher) FetchDocument(ctx context.Context, rawURL, referer string) (domain.Resource, error) {
	return f.http.FetchDocument(ctx, rawURL, referer)
}

// MaxDocumentBytes returns the HTTP fetcher's body ceiling.
func (f *Fetcher) MaxDocumentBytes() int64 { return f.http.MaxDocumentBytes() }

func (f *Fetcher) render(ctx context.Context, rawURL string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, f.cfg.Timeout)
	defer cancel()

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.UserAgent(f.cfg.UserAgent),
	)
	actx, cancelAlloc := chromedp.NewExecAllocator(ctx, opts...)
	defer cancelAlloc()
	bctx, cancelBrowser := chromedp.NewContext(actx)
	defer cancelBrowser()

	var html string
	if err := chromedp.Run(bctx,
		chromedp.Navigate(rawURL),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	); err != nil {
		return "", fmt.Errorf("chromedp run: %w", err)
	}
	return html, nil
}
