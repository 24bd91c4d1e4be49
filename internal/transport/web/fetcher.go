// Package web fetches pages and documents over HTTP with bounded retries.
package web

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/siteqa/internal/domain"
	"github.com/kailas-cloud/siteqa/internal/metrics"
	"github.com/kailas-cloud/siteqa/internal/retry"
)

// Defaults used when Config leaves a field zero.
const (
	DefaultTimeout          = 45 * time.Second
	DefaultMaxRedirects     = 10
	DefaultMaxDocumentBytes = 10 << 20
	DefaultUserAgent        = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36"

	pageAccept     = "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8"
	documentAccept = "application/pdf,application/vnd.openxmlformats-officedocument.wordprocessingml.document,application/octet-stream;q=0.9,*/*;q=0.8"
	acceptLanguage = "en-US,en;q=0.9,de;q=0.8"
)

// Config holds HTTP fetcher settings.
type Config struct {
	Timeout          time.Duration
	MaxRedirects     int
	UserAgent        string
	MaxDocumentBytes int64
	Retry            retry.Policy
}

// Fetcher performs GET requests with browser-like headers.
type Fetcher struct {
	client *http.Client
	cfg    Config
	logger *zap.Logger
}

// NewFetcher creates an HTTP fetcher, filling zero config fields with defaults.
func NewFetcher(cfg Config, logger *zap.Logger) *Fetcher {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.MaxRedirects <= 0 {
		cfg.MaxRedirects = DefaultMaxRedirects
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = DefaultUserAgent
	}
	if cfg.MaxDocumentBytes <= 0 {
		cfg.MaxDocumentBytes = DefaultMaxDocumentBytes
	}
	if cfg.Retry.Attempts <= 0 {
		cfg.Retry = retry.DefaultPolicy
	}

	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:          64,
		MaxIdleConnsPerHost:   8,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: time.Second,
	}
	maxRedirects := cfg.MaxRedirects

	return &Fetcher{
		client: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: transport,
			CheckRedirect: func(_ *http.Request, via []*http.Request) error {
				if len(via) >= maxRedirects {
					return fmt.Errorf("stopped after %d redirects", maxRedirects)
				}
				return nil
			},
		},
		cfg:    cfg,
		logger: logger,
	}
}

// MaxDocumentBytes returns the configured body ceiling.
func (f *Fetcher) MaxDocumentBytes() int64 { return f.cfg.MaxDocumentBytes }

// FetchPage fetches an HTML page.
func (f *Fetcher) FetchPage(ctx context.Context, rawURL, referer string) (domain.Resource, error) {
	return f.fetch(ctx, rawURL, referer, pageAccept)
}

// FetchDocument fetches a binary document. Bodies above the ceiling fail with
// domain.ErrDocumentTooLarge without being retried.
func (f *Fetcher) FetchDocument(ctx context.Context, rawURL, referer string) (domain.Resource, error) {
	return f.fetch(ctx, rawURL, referer, documentAccept)
}

func (f *Fetcher) fetch(ctx context.Context, rawURL, referer, accept string) (domain.Resource, error) {
	resp, err := retry.Do(ctx, f.cfg.Retry, func(ctx context.Context) (domain.Resource, error) {
		return f.get(ctx, rawURL, referer, accept)
	}, func(err error, wait time.Duration) {
		metrics.CrawlFetchRetriesTotal.Inc()
		f.logger.Debug("Retrying fetch",
			zap.String("url", rawURL),
			zap.Duration("wait", wait),
			zap.Error(err),
		)
	})
	if err != nil {
		if errors.Is(err, domain.ErrDocumentTooLarge) {
			return domain.Resource{}, err
		}
		return domain.Resource{}, fmt.Errorf("%w: %s: %w", domain.ErrFetchFailed, rawURL, err)
	}
	return resp, nil
}

func (f *Fetcher) get(ctx context.Context, rawURL, referer, accept string) (domain.Resource, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, http.NoBody)
	if err != nil {
		return domain.Resource{}, retry.Permanent(fmt.Errorf("build request: %w", err))
	}
	req.Header.Set("User-Agent", f.cfg.UserAgent)
	req.Header.Set("Accept", accept)
	req.Header.Set("Accept-Language", acceptLanguage)
	if referer != "" {
		req.Header.Set("Referer", referer)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return domain.Resource{}, fmt.Errorf("get: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		statusErr := fmt.Errorf("unexpected status %d", resp.StatusCode)
		if isPermanentStatus(resp.StatusCode) {
			return domain.Resource{}, retry.Permanent(statusErr)
		}
		return domain.Resource{}, statusErr
	}

	if resp.ContentLength > f.cfg.MaxDocumentBytes {
		return domain.Resource{}, retry.Permanent(fmt.Errorf("%w: %d bytes", domain.ErrDocumentTooLarge, resp.ContentLength))
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, f.cfg.MaxDocumentBytes+1))
	if err != nil {
		return domain.Resource{}, fmt.Errorf("read body: %w", err)
	}
	if int64(len(body)) > f.cfg.MaxDocumentBytes {
		return domain.Resource{}, retry.Permanent(fmt.Errorf("%w: over %d bytes", domain.ErrDocumentTooLarge, f.cfg.MaxDocumentBytes))
	}

	return domain.Resource{
		URL:         resp.Request.URL.String(),
		ContentType: resp.Header.Get("Content-Type"),
		Body:        body,
	}, nil
}

// isPermanentStatus reports client errors that a retry cannot fix.
func isPermanentStatus(code int) bool {
	if code == http.StatusRequestTimeout || code == http.StatusTooManyRequests {
		return false
	}
	return code >= 400 && code < 500
}
