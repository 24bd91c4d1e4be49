// Package crawl implements the scoped breadth-first crawler.
package crawl

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/kailas-cloud/siteqa/internal/domain"
	"github.com/kailas-cloud/siteqa/internal/extract"
	"github.com/kailas-cloud/siteqa/internal/logger"
	"github.com/kailas-cloud/siteqa/internal/metrics"
)

// Defaults used when Config leaves a field zero.
const (
	DefaultMaxLinksPerPage = 200
	DefaultPoliteness      = 200 * time.Millisecond
	DefaultProgressEvery   = 25
)

// Config tunes traversal.
type Config struct {
	MaxLinksPerPage int
	Politeness      time.Duration // minimum spacing between page fetches; negative disables
	FollowDocuments bool
	ProgressEvery   int
}

// Request bounds one crawl.
type Request struct {
	Seeds       []string
	MaxDepth    int
	ScopePrefix string // defaults to scheme://host of the first seed
	MaxPages    int
}

// Page is a crawled URL (fragment stripped) with its extracted text.
type Page struct {
	URL  string
	Text string
}

// Service crawls sites breadth-first within a URL prefix.
type Service struct {
	fetcher   Fetcher
	extractor Extractor
	cfg       Config
	logger    *zap.Logger
}

// New creates a crawl service.
func New(fetcher Fetcher, extractor Extractor, cfg Config, logger *zap.Logger) *Service {
	if cfg.MaxLinksPerPage <= 0 {
		cfg.MaxLinksPerPage = DefaultMaxLinksPerPage
	}
	if cfg.Politeness == 0 {
		cfg.Politeness = DefaultPoliteness
	}
	if cfg.ProgressEvery <= 0 {
		cfg.ProgressEvery = DefaultProgressEvery
	}
	return &Service{fetcher: fetcher, extractor: extractor, cfg: cfg, logger: logger}
}

type entry struct {
	u       *url.URL
	depth   int
	referer string
}

// crawlState is owned by a single Crawl call.
type crawlState struct {
	req    Request
	origin *url.URL
	seen   map[string]struct{}
	queue  []entry
	pages  []Page
	log    *zap.Logger
}

// visit marks key as seen and reports whether it was new.
func (st *crawlState) visit(key string) bool {
	if _, ok := st.seen[key]; ok {
		return false
	}
	st.seen[key] = struct{}{}
	return true
}

func (st *crawlState) full() bool { return len(st.pages) >= st.req.MaxPages }

// Crawl fetches pages breadth-first from the seeds. It fails only on invalid
// input; unreachable or empty pages are left out of the result. Cancellation of
// ctx stops the traversal and returns the pages collected so far.
func (s *Service) Crawl(ctx context.Context, req Request) ([]Page, error) {
	if len(req.Seeds) == 0 {
		return nil, fmt.Errorf("no seed urls: %w", domain.ErrInvalidInput)
	}
	if req.MaxPages <= 0 || req.MaxDepth < 0 {
		return nil, fmt.Errorf("max_pages must be positive and depth non-negative: %w", domain.ErrInvalidInput)
	}

	st := &crawlState{req: req, seen: make(map[string]struct{}), log: logger.FromContext(ctx, s.logger)}
	for _, raw := range req.Seeds {
		u, err := parseHTTPURL(raw)
		if err != nil {
			return nil, err
		}
		if st.origin == nil {
			st.origin = u
		}
		st.queue = append(st.queue, entry{u: u})
	}
	if st.req.ScopePrefix == "" {
		st.req.ScopePrefix = Origin(st.origin)
	}

	limit := rate.Inf
	if s.cfg.Politeness > 0 {
		limit = rate.Every(s.cfg.Politeness)
	}
	limiter := rate.NewLimiter(limit, 1)

	start := time.Now()
	for len(st.queue) > 0 && !st.full() {
		e := st.queue[0]
		st.queue = st.queue[1:]

		if !st.visit(Canonical(e.u)) {
			continue
		}
		if err := limiter.Wait(ctx); err != nil {
			return st.pages, fmt.Errorf("crawl interrupted: %w", err)
		}
		s.visitPage(ctx, st, e)
	}

	st.log.Info("Crawl finished",
		zap.String("scope", st.req.ScopePrefix),
		zap.Int("pages", len(st.pages)),
		zap.Int("seen", len(st.seen)),
		zap.Duration("duration", time.Since(start)),
	)
	return st.pages, nil
}

func (s *Service) visitPage(ctx context.Context, st *crawlState, e entry) {
	key := Canonical(e.u)
	resp, err := s.fetcher.FetchPage(ctx, e.u.String(), e.referer)
	if err != nil {
		metrics.CrawlPagesTotal.WithLabelValues("error").Inc()
		st.log.Debug("Skipping page", zap.String("url", key), zap.Error(err))
		return
	}

	base := e.u
	if final, err := url.Parse(resp.URL); err == nil && resp.URL != "" {
		base = final
	}
	page := s.extractor.HTML(base, resp.Body)
	if strings.TrimSpace(page.Text) != "" {
		s.appendPage(st, key, page.Text)
	} else {
		metrics.CrawlPagesTotal.WithLabelValues("empty").Inc()
	}

	if e.depth >= st.req.MaxDepth {
		return
	}

	links := page.Links
	if len(links) > s.cfg.MaxLinksPerPage {
		links = links[:s.cfg.MaxLinksPerPage]
	}
	for _, link := range links {
		linkKey := Canonical(link)
		if extract.LooksLikeDocument(link) {
			if !s.cfg.FollowDocuments || !SameOrigin(link, st.origin) {
				continue
			}
			if st.full() {
				return
			}
			if st.visit(linkKey) {
				s.visitDocument(ctx, st, link, linkKey, e.u.String())
			}
			continue
		}
		if strings.HasPrefix(linkKey, st.req.ScopePrefix) {
			st.queue = append(st.queue, entry{u: link, depth: e.depth + 1, referer: e.u.String()})
		}
	}
}

func (s *Service) visitDocument(ctx context.Context, st *crawlState, link *url.URL, key, referer string) {
	resp, err := s.fetcher.FetchDocument(ctx, link.String(), referer)
	if err != nil {
		result := "error"
		if errors.Is(err, domain.ErrDocumentTooLarge) {
			result = "too_large"
		}
		metrics.CrawlPagesTotal.WithLabelValues(result).Inc()
		st.log.Debug("Skipping document", zap.String("url", key), zap.Error(err))
		return
	}

	txt, err := s.extractor.Extract(ctx, link.String(), resp.ContentType, resp.Body)
	if err != nil {
		metrics.CrawlPagesTotal.WithLabelValues("error").Inc()
		st.log.Debug("Document extraction failed", zap.String("url", key), zap.Error(err))
		return
	}
	if strings.TrimSpace(txt) == "" {
		metrics.CrawlPagesTotal.WithLabelValues("empty").Inc()
		return
	}
	s.appendPage(st, key, txt)
}

func (s *Service) appendPage(st *crawlState, key, txt string) {
	st.pages = append(st.pages, Page{URL: key, Text: txt})
	metrics.CrawlPagesTotal.WithLabelValues("ok").Inc()
	if len(st.pages)%s.cfg.ProgressEvery == 0 {
		st.log.Info("Crawl progress",
			zap.Int("pages", len(st.pages)),
			zap.Int("max_pages", st.req.MaxPages),
			zap.Int("queued", len(st.queue)),
		)
	}
}

func parseHTTPURL(raw string) (*url.URL, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return nil, fmt.Errorf("parse %q: %w", raw, domain.ErrInvalidURL)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("%q is not an absolute http(s) url: %w", raw, domain.ErrInvalidURL)
	}
	return u, nil
}

// Canonical returns u without its fragment; path and query are kept.
func Canonical(u *url.URL) string {
	c := *u
	c.Fragment = ""
	c.RawFragment = ""
	return c.String()
}

// Origin returns scheme://host of u.
func Origin(u *url.URL) string {
	return u.Scheme + "://" + u.Host
}

// SameOrigin reports whether a and b share scheme and host.
func SameOrigin(a, b *url.URL) bool {
	return a.Scheme == b.Scheme && a.Host == b.Host
}
