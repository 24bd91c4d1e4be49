// Package qa answers questions over per-session indexes of crawled sites and
// uploaded documents.
package qa

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/kailas-cloud/siteqa/internal/domain"
	"github.com/kailas-cloud/siteqa/internal/domain/index"
	"github.com/kailas-cloud/siteqa/internal/domain/prompt"
	"github.com/kailas-cloud/siteqa/internal/domain/rank"
	"github.com/kailas-cloud/siteqa/internal/logger"
	"github.com/kailas-cloud/siteqa/internal/usecase/crawl"
	"github.com/kailas-cloud/siteqa/internal/usecase/indexing"
)

// Defaults applied when Config or a request leaves a field zero.
const (
	DefaultDepth            = 4
	DefaultMaxPages         = 400
	DefaultK                = 18
	DefaultListK            = 30
	DefaultTemperature      = 0.25
	DefaultMaxSources       = 8
	DefaultMaxDocumentBytes = 10 << 20
)

// UploadSourcePrefix prefixes the source ID of uploaded documents.
const UploadSourcePrefix = "upload://"

const answerSourceMarker = "source:"

// Config holds retrieval defaults and model names recorded in new indexes.
type Config struct {
	DefaultDepth       int
	DefaultMaxPages    int
	DefaultK           int
	ListK              int
	DefaultTemperature float64
	MaxSources         int
	MaxDocumentBytes   int64
	StagingDir         string // os.TempDir() when empty
	EmbedModel         string
	GenModel           string
}

// IndexRequest asks to crawl a site into the session index.
type IndexRequest struct {
	URL         string
	Depth       int
	MaxPages    int
	ScopePrefix string
}

// IndexResult describes the session index after an index or upload call.
type IndexResult struct {
	SessionID    string
	Chunks       int
	PagesIndexed int
	CreatedAt    time.Time
	Scope        string
}

// UploadFile is one uploaded document.
type UploadFile struct {
	Name    string
	Content io.Reader
}

// FileResult reports the outcome for one uploaded file.
type FileResult struct {
	Name  string
	OK    bool
	Chars int
	Error string
}

// UploadResult is the per-file outcome plus the resulting index.
type UploadResult struct {
	IndexResult
	Files []FileResult
}

// AskRequest is a question, optionally with a site to (re)index first.
type AskRequest struct {
	Question    string
	TopK        int
	Temperature *float64
	StartURL    string
	Depth       int
	MaxPages    int
	ScopePrefix string
}

// AskResult is the generated answer with its sources, primary first.
type AskResult struct {
	Answer  string
	Sources []string
}

// Service coordinates crawl, indexing, retrieval and generation per session.
type Service struct {
	sessions  SessionStore
	crawler   Crawler
	builder   IndexBuilder
	extractor Extractor
	embed     Embedder
	generate  Generator
	cfg       Config
	logger    *zap.Logger

	// one start_url crawl per session and origin at a time
	autoIndex singleflight.Group
}

// New creates a QA service.
func New(
	sessions SessionStore, crawler Crawler, builder IndexBuilder, extractor Extractor,
	embed Embedder, generate Generator, cfg Config, logger *zap.Logger,
) *Service {
	if cfg.DefaultDepth <= 0 {
		cfg.DefaultDepth = DefaultDepth
	}
	if cfg.DefaultMaxPages <= 0 {
		cfg.DefaultMaxPages = DefaultMaxPages
	}
	if cfg.DefaultK <= 0 {
		cfg.DefaultK = DefaultK
	}
	if cfg.ListK <= 0 {
		cfg.ListK = DefaultListK
	}
	if cfg.DefaultTemperature == 0 {
		cfg.DefaultTemperature = DefaultTemperature
	}
	if cfg.MaxSources <= 0 {
		cfg.MaxSources = DefaultMaxSources
	}
	if cfg.MaxDocumentBytes <= 0 {
		cfg.MaxDocumentBytes = DefaultMaxDocumentBytes
	}
	return &Service{
		sessions: sessions, crawler: crawler, builder: builder, extractor: extractor,
		embed: embed, generate: generate, cfg: cfg, logger: logger,
	}
}

// Index crawls the site and builds or extends the session index.
func (s *Service) Index(ctx context.Context, sessionID string, req IndexRequest) (IndexResult, error) {
	ctx = logger.WithSession(ctx, s.logger, sessionID)
	seed, err := SanitizeURL(req.URL)
	if err != nil {
		return IndexResult{}, err
	}
	pairs, scope, err := s.crawlSite(ctx, seed, req.Depth, req.MaxPages, req.ScopePrefix)
	if err != nil {
		return IndexResult{}, err
	}

	sess := s.sessions.GetOrCreate(sessionID)
	var res IndexResult
	err = sess.Write(func(cur *index.Index) (*index.Index, error) {
		next, err := s.buildOrExtend(ctx, cur, pairs, scope)
		if err != nil {
			return nil, err
		}
		res = describe(sessionID, next, scope)
		return next, nil
	})
	if err != nil {
		return IndexResult{}, err
	}
	return res, nil
}

// Upload extracts the files and builds or extends the session index with their text.
// Per-file failures are reported in the result; the call fails only when no file
// produced text.
func (s *Service) Upload(ctx context.Context, sessionID string, files []UploadFile) (UploadResult, error) {
	if len(files) == 0 {
		return UploadResult{}, fmt.Errorf("no files: %w", domain.ErrEmptyUpload)
	}

	ctx = logger.WithSession(ctx, s.logger, sessionID)
	log := logger.FromContext(ctx, s.logger)
	res := UploadResult{Files: make([]FileResult, 0, len(files))}
	var (
		pairs    []indexing.Pair
		nonEmpty int
	)
	for _, f := range files {
		txt, size, err := s.extractUpload(ctx, f)
		if size > 0 {
			nonEmpty++
		}
		fr := FileResult{Name: f.Name}
		switch {
		case err != nil:
			fr.Error = err.Error()
			log.Debug("Upload extraction failed", zap.String("file", f.Name), zap.Error(err))
		case strings.TrimSpace(txt) == "":
			fr.Error = domain.ErrNoExtractableText.Error()
		default:
			fr.OK, fr.Chars = true, len([]rune(txt))
			pairs = append(pairs, indexing.Pair{Source: UploadSourcePrefix + f.Name, Text: txt})
		}
		res.Files = append(res.Files, fr)
	}

	if nonEmpty == 0 {
		return res, fmt.Errorf("all files are empty: %w", domain.ErrEmptyUpload)
	}
	if len(pairs) == 0 {
		return res, fmt.Errorf("%d files: %w", len(files), domain.ErrNoExtractableText)
	}

	sess := s.sessions.GetOrCreate(sessionID)
	err := sess.Write(func(cur *index.Index) (*index.Index, error) {
		next, err := s.buildOrExtend(ctx, cur, pairs, UploadSourcePrefix)
		if err != nil {
			return nil, err
		}
		res.IndexResult = describe(sessionID, next, next.Scope)
		return next, nil
	})
	if err != nil {
		return res, err
	}
	return res, nil
}

// extractUpload stages f to a temporary file, extracts it and removes the file.
func (s *Service) extractUpload(ctx context.Context, f UploadFile) (string, int64, error) {
	staged, err := os.CreateTemp(s.cfg.StagingDir, "siteqa-upload-*"+filepath.Ext(f.Name))
	if err != nil {
		return "", 0, fmt.Errorf("stage %s: %w", f.Name, err)
	}
	defer os.Remove(staged.Name())

	size, err := io.Copy(staged, io.LimitReader(f.Content, s.cfg.MaxDocumentBytes+1))
	if cerr := staged.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return "", size, fmt.Errorf("stage %s: %w", f.Name, err)
	}
	if size > s.cfg.MaxDocumentBytes {
		return "", size, &domain.FileError{Name: f.Name, Err: domain.ErrDocumentTooLarge}
	}
	if size == 0 {
		return "", 0, &domain.FileError{Name: f.Name, Err: domain.ErrEmptyUpload}
	}

	body, err := os.ReadFile(staged.Name())
	if err != nil {
		return "", size, fmt.Errorf("read staged %s: %w", f.Name, err)
	}
	txt, err := s.extractor.Extract(ctx, f.Name, "", body)
	if err != nil {
		return "", size, &domain.FileError{Name: f.Name, Err: err}
	}
	return txt, size, nil
}

// Ask answers a question from the session index, indexing StartURL first
// when no indexed source shares its origin.
func (s *Service) Ask(ctx context.Context, sessionID string, req AskRequest) (AskResult, error) {
	if strings.TrimSpace(req.Question) == "" {
		return AskResult{}, fmt.Errorf("question is required: %w", domain.ErrInvalidInput)
	}
	ctx = logger.WithSession(ctx, s.logger, sessionID)
	if req.StartURL != "" {
		if err := s.ensureIndexed(ctx, sessionID, req); err != nil {
			return AskResult{}, err
		}
	}

	sess, ok := s.sessions.Get(sessionID)
	if !ok {
		return AskResult{}, domain.ErrNoIndex
	}

	var res AskResult
	err := sess.Read(func(idx *index.Index) error {
		if idx == nil || len(idx.Chunks) == 0 {
			return domain.ErrNoIndex
		}
		var err error
		res, err = s.answer(ctx, idx, req)
		return err
	})
	return res, err
}

// ensureIndexed extends the session index with StartURL's site unless some
// indexed source already shares its origin. Uploads and earlier sites are kept.
func (s *Service) ensureIndexed(ctx context.Context, sessionID string, req AskRequest) error {
	seed, err := SanitizeURL(req.StartURL)
	if err != nil {
		return fmt.Errorf("start_url: %w", err)
	}
	if s.hasOrigin(sessionID, seed) {
		return nil
	}

	key := sessionID + "\x00" + crawl.Origin(seed)
	_, err, _ = s.autoIndex.Do(key, func() (any, error) {
		// a flight for the same key may have finished since the check above
		if s.hasOrigin(sessionID, seed) {
			return nil, nil
		}
		pairs, scope, err := s.crawlSite(ctx, seed, req.Depth, req.MaxPages, req.ScopePrefix)
		if err != nil {
			return nil, err
		}
		return nil, s.sessions.GetOrCreate(sessionID).Write(func(cur *index.Index) (*index.Index, error) {
			if cur.HasOrigin(seed) {
				return cur, nil
			}
			return s.buildOrExtend(ctx, cur, pairs, scope)
		})
	})
	return err
}

func (s *Service) hasOrigin(sessionID string, seed *url.URL) bool {
	sess, ok := s.sessions.Get(sessionID)
	if !ok {
		return false
	}
	found := false
	_ = sess.Read(func(idx *index.Index) error {
		found = idx.HasOrigin(seed)
		return nil
	})
	return found
}

func (s *Service) answer(ctx context.Context, idx *index.Index, req AskRequest) (AskResult, error) {
	emb, err := s.embed.Embed(ctx, req.Question)
	if err != nil {
		return AskResult{}, fmt.Errorf("embed question: %w", err)
	}

	k, temperature := s.cfg.DefaultK, s.cfg.DefaultTemperature
	if req.Temperature != nil {
		temperature = *req.Temperature
	}
	if WantsProgramList(req.Question) {
		k, temperature = s.cfg.ListK, 0
	}
	if req.TopK > 0 {
		k = min(req.TopK, k)
	}

	picks := rank.Rank(req.Question, emb.Embedding, idx, k)
	primary := rank.PrimarySource(picks)
	text, err := s.generate.Generate(ctx, prompt.Build(req.Question, picks, primary), temperature)
	if err != nil {
		return AskResult{}, fmt.Errorf("generate answer: %w", err)
	}

	sources := s.collectSources(primary, picks)
	if len(sources) > 0 && !strings.Contains(strings.ToLower(text), answerSourceMarker) {
		text += "\n\nSource: " + sources[0]
	}

	logger.FromContext(ctx, s.logger).Debug("Question answered",
		zap.Int("k", k),
		zap.Int("picks", len(picks)),
		zap.String("primary", primary),
	)
	return AskResult{Answer: text, Sources: sources}, nil
}

// collectSources lists the primary source first, then distinct pick sources.
func (s *Service) collectSources(primary string, picks []rank.Scored) []string {
	seen := make(map[string]struct{})
	var out []string
	add := func(src string) {
		if src == "" {
			return
		}
		if _, ok := seen[src]; ok {
			return
		}
		seen[src] = struct{}{}
		out = append(out, src)
	}
	add(primary)
	for _, p := range picks {
		if len(out) >= s.cfg.MaxSources {
			break
		}
		add(p.Chunk.SourceID)
	}
	return out
}

// WantsProgramList reports whether the question asks for a list of English-taught programs.
func WantsProgramList(question string) bool {
	q := strings.ToLower(question)
	return strings.Contains(q, "english") &&
		(strings.Contains(q, "program") || strings.Contains(q, "list"))
}

func (s *Service) crawlSite(
	ctx context.Context, seed *url.URL, depth, maxPages int, scope string,
) ([]indexing.Pair, string, error) {
	if depth <= 0 {
		depth = s.cfg.DefaultDepth
	}
	if maxPages <= 0 {
		maxPages = s.cfg.DefaultMaxPages
	}
	if scope == "" {
		scope = crawl.Origin(seed)
	}

	pages, err := s.crawler.Crawl(ctx, crawl.Request{
		Seeds:       []string{seed.String()},
		MaxDepth:    depth,
		ScopePrefix: scope,
		MaxPages:    maxPages,
	})
	if err != nil {
		return nil, "", fmt.Errorf("crawl %s: %w", seed, err)
	}
	if len(pages) == 0 {
		return nil, "", fmt.Errorf("%s: %w", seed, domain.ErrEmptyCrawl)
	}

	pairs := make([]indexing.Pair, len(pages))
	for i, p := range pages {
		pairs[i] = indexing.Pair{Source: p.URL, Text: p.Text}
	}
	return pairs, scope, nil
}

func (s *Service) buildOrExtend(
	ctx context.Context, cur *index.Index, pairs []indexing.Pair, scope string,
) (*index.Index, error) {
	if cur == nil {
		return s.builder.Build(ctx, pairs, s.meta(scope))
	}
	if _, err := s.builder.Extend(ctx, cur, pairs); err != nil {
		return nil, err
	}
	return cur, nil
}

func (s *Service) meta(scope string) index.Meta {
	return index.Meta{EmbedModel: s.cfg.EmbedModel, GenModel: s.cfg.GenModel, Scope: scope}
}

func describe(sessionID string, idx *index.Index, scope string) IndexResult {
	return IndexResult{
		SessionID:    sessionID,
		Chunks:       len(idx.Chunks),
		PagesIndexed: len(idx.Sources()),
		CreatedAt:    idx.CreatedAt,
		Scope:        scope,
	}
}
