package chi

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	chirouter "github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/kailas-cloud/siteqa/internal/domain"
	"github.com/kailas-cloud/siteqa/internal/logger"
	"github.com/kailas-cloud/siteqa/internal/metrics"
	healthuc "github.com/kailas-cloud/siteqa/internal/usecase/health"
	qauc "github.com/kailas-cloud/siteqa/internal/usecase/qa"
)

// SessionHeader carries the session ID in requests and responses.
const SessionHeader = "X-Session-ID"

// DefaultMaxUploadBytes bounds a multipart upload body when no limit is configured.
const DefaultMaxUploadBytes = 50 << 20

const (
	uploadField     = "files"
	multipartMemory = 8 << 20
)

//go:embed static/index.html
var static embed.FS

// QA is the question-answering use case behind the API.
type QA interface {
	Index(ctx context.Context, sessionID string, req qauc.IndexRequest) (qauc.IndexResult, error)
	Upload(ctx context.Context, sessionID string, files []qauc.UploadFile) (qauc.UploadResult, error)
	Ask(ctx context.Context, sessionID string, req qauc.AskRequest) (qauc.AskResult, error)
}

// HealthChecker aggregates component health.
type HealthChecker interface {
	Check(ctx context.Context) healthuc.Report
}

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error, msg string) bool

// Server serves the HTTP API.
type Server struct {
	qa             QA
	health         HealthChecker
	maxUploadBytes int64
	logger         *zap.Logger
	errorHandlers  []errorHandler
}

// NewServer creates an HTTP API server. maxUploadBytes <= 0 selects DefaultMaxUploadBytes.
func NewServer(qa QA, health HealthChecker, maxUploadBytes int64, logger *zap.Logger) *Server {
	if maxUploadBytes <= 0 {
		maxUploadBytes = DefaultMaxUploadBytes
	}
	s := &Server{
		qa:             qa,
		health:         health,
		maxUploadBytes: maxUploadBytes,
		logger:         logger,
	}
	// ErrNoIndex is an input error too, so it has to match before the 400 entries.
	s.errorHandlers = []errorHandler{
		sentinelHandler(domain.ErrNoIndex, http.StatusNotFound, CodeNoIndex),
		sentinelHandler(domain.ErrInvalidInput, http.StatusBadRequest, CodeValidationFailed),
		sentinelHandler(domain.ErrInvalidURL, http.StatusBadRequest, CodeInvalidURL),
		sentinelHandler(domain.ErrEmptyCrawl, http.StatusBadRequest, CodeEmptyCrawl),
		sentinelHandler(domain.ErrEmptyUpload, http.StatusBadRequest, CodeEmptyUpload),
		sentinelHandler(domain.ErrNoExtractableText, http.StatusBadRequest, CodeNoExtractableText),
		sentinelHandler(domain.ErrUnsupportedFileType, http.StatusBadRequest, CodeUnsupportedFileType),
		sentinelHandler(domain.ErrDocumentTooLarge, http.StatusRequestEntityTooLarge, CodeDocumentTooLarge),
		sentinelHandler(domain.ErrEmbeddingFailed, http.StatusBadGateway, CodeEmbeddingFailed),
		sentinelHandler(domain.ErrContextLength, http.StatusBadGateway, CodeContextLength),
		sentinelHandler(domain.ErrEmbeddingProviderError, http.StatusBadGateway, CodeEmbeddingProviderError),
		sentinelHandler(domain.ErrGenerationFailed, http.StatusBadGateway, CodeGenerationFailed),
		sentinelHandler(domain.ErrFetchFailed, http.StatusBadGateway, CodeFetchFailed),
	}
	return s
}

// Routes returns the router with the middleware stack installed.
func (s *Server) Routes() http.Handler {
	r := chirouter.NewRouter()
	r.Use(jsonRecoverer(s.logger))
	r.Use(chiMiddleware.RequestID)
	r.Use(wideEventMiddleware(s.logger))
	r.Use(metrics.Middleware())

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, CodeNotFound, "route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, CodeBadRequest, "method not allowed")
	})

	r.Get("/", s.IndexPage)
	r.Post("/api/index", s.IndexSite)
	r.Post("/api/upload", s.Upload)
	r.Post("/api/ask", s.Ask)
	r.Get("/healthz", s.HealthCheck)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())
	return r
}

// IndexPage handles GET /.
func (s *Server) IndexPage(w http.ResponseWriter, _ *http.Request) {
	page, err := static.ReadFile("static/index.html")
	if err != nil {
		writeError(w, http.StatusInternalServerError, CodeInternalError, "internal error")
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(page)
}

// IndexSite handles POST /api/index.
func (s *Server) IndexSite(w http.ResponseWriter, r *http.Request) {
	var req IndexRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, "Invalid request body: "+err.Error())
		return
	}
	if req.Depth < 0 || req.MaxPages < 0 {
		writeError(w, http.StatusBadRequest, CodeValidationFailed, "depth and max_pages must not be negative")
		return
	}

	sessionID := resolveSession(w, r, req.SessionID)
	ctx, usage := domain.NewContextWithUsage(r.Context())
	res, err := s.qa.Index(ctx, sessionID, qauc.IndexRequest{
		URL:         req.URL,
		Depth:       req.Depth,
		MaxPages:    req.MaxPages,
		ScopePrefix: req.ScopePrefix,
	})
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	setEmbeddingHeaders(w, usage)
	writeJSON(w, http.StatusOK, indexResultToResponse(res, usage))
}

// Upload handles POST /api/upload.
func (s *Server) Upload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadBytes)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, CodeDocumentTooLarge,
				"upload exceeds "+strconv.FormatInt(tooLarge.Limit, 10)+" bytes")
			return
		}
		writeError(w, http.StatusBadRequest, CodeBadRequest, "Invalid multipart body: "+err.Error())
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	sessionID := resolveSession(w, r, r.FormValue("session_id"))

	headers := r.MultipartForm.File[uploadField]
	if len(headers) == 0 {
		s.handleDomainError(w, r, domain.ErrEmptyUpload)
		return
	}
	files, closeAll, err := openParts(headers)
	defer closeAll()
	if err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, "Invalid multipart body: "+err.Error())
		return
	}

	ctx, usage := domain.NewContextWithUsage(r.Context())
	res, err := s.qa.Upload(ctx, sessionID, files)
	if err != nil {
		if len(res.Files) > 0 && domain.IsClientFault(err) {
			logger.FromContext(r.Context(), s.logger).Warn("upload rejected", zap.Error(err))
			code := CodeNoExtractableText
			if errors.Is(err, domain.ErrEmptyUpload) {
				code = CodeEmptyUpload
			}
			writeJSON(w, http.StatusBadRequest, ErrorResponse{
				Code:    code,
				Message: err.Error(),
				Files:   fileResultsToResponse(res.Files),
			})
			return
		}
		s.handleDomainError(w, r, err)
		return
	}

	setEmbeddingHeaders(w, usage)
	writeJSON(w, http.StatusOK, UploadResponse{
		IndexResponse: indexResultToResponse(res.IndexResult, usage),
		Files:         fileResultsToResponse(res.Files),
	})
}

// Ask handles POST /api/ask.
func (s *Server) Ask(w http.ResponseWriter, r *http.Request) {
	var req AskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, "Invalid request body: "+err.Error())
		return
	}
	if req.TopK != nil && *req.TopK < 0 {
		writeError(w, http.StatusBadRequest, CodeValidationFailed, "top_k must not be negative")
		return
	}

	sessionID := resolveSession(w, r, req.SessionID)
	ctx, usage := domain.NewContextWithUsage(r.Context())
	res, err := s.qa.Ask(ctx, sessionID, qauc.AskRequest{
		Question:    req.Question,
		TopK:        derefInt(req.TopK),
		Temperature: req.Temperature,
		StartURL:    req.StartURL,
		Depth:       req.Depth,
		MaxPages:    req.MaxPages,
		ScopePrefix: req.ScopePrefix,
	})
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	sources := res.Sources
	if sources == nil {
		sources = []string{}
	}
	setEmbeddingHeaders(w, usage)
	writeJSON(w, http.StatusOK, AskResponse{
		SessionID:       sessionID,
		Answer:          res.Answer,
		Sources:         sources,
		EmbeddingTokens: usage.TotalTokens(),
	})
}

// HealthCheck handles GET /healthz. A degraded cache still answers 200.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	checks := make(map[string]string, len(report.Checks))
	for k, v := range report.Checks {
		checks[k] = string(v)
	}

	status := http.StatusOK
	if report.Status == healthuc.Unhealthy {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, HealthResponse{
		Status:   string(report.Status),
		Checks:   checks,
		Sessions: report.Sessions,
	})
}

// resolveSession picks the header, then the body value, then a fresh UUID,
// and echoes the result in the response header.
func resolveSession(w http.ResponseWriter, r *http.Request, fromBody string) string {
	id := strings.TrimSpace(r.Header.Get(SessionHeader))
	if id == "" {
		id = strings.TrimSpace(fromBody)
	}
	if id == "" {
		id = uuid.NewString()
	}
	w.Header().Set(SessionHeader, id)
	return id
}

func openParts(headers []*multipart.FileHeader) ([]qauc.UploadFile, func(), error) {
	var closers []io.Closer
	closeAll := func() {
		for _, c := range closers {
			_ = c.Close()
		}
	}
	files := make([]qauc.UploadFile, 0, len(headers))
	for _, fh := range headers {
		f, err := fh.Open()
		if err != nil {
			return nil, closeAll, err //nolint:wrapcheck // reported to the client as-is
		}
		closers = append(closers, f)
		files = append(files, qauc.UploadFile{Name: fh.Filename, Content: f})
	}
	return files, closeAll, nil
}

func setEmbeddingHeaders(w http.ResponseWriter, usage *domain.EmbeddingUsage) {
	if usage.Calls() > 0 {
		w.Header().Set("X-Embedding-Tokens", strconv.Itoa(usage.TotalTokens()))
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, ErrorResponse{
		Code:    code,
		Message: message,
	})
}

// safeDomainMessage returns the message shown to the client. Input errors are
// echoed in full; everything else collapses to its sentinel.
func safeDomainMessage(err error) string {
	if domain.IsClientFault(err) {
		return err.Error()
	}
	sentinels := []error{
		domain.ErrDocumentTooLarge,
		domain.ErrEmbeddingFailed,
		domain.ErrContextLength,
		domain.ErrEmbeddingProviderError,
		domain.ErrGenerationFailed,
		domain.ErrFetchFailed,
	}
	for _, s := range sentinels {
		if errors.Is(err, s) {
			return s.Error()
		}
	}
	return "internal error"
}

// sentinelHandler returns an errorHandler that matches a single sentinel error.
func sentinelHandler(sentinel error, status int, code string) errorHandler {
	return func(w http.ResponseWriter, err error, msg string) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeError(w, status, code, msg)
		return true
	}
}

func (s *Server) handleDomainError(w http.ResponseWriter, r *http.Request, err error) {
	log := logger.FromContext(r.Context(), s.logger)
	log.Warn("domain error", zap.Error(err))
	msg := safeDomainMessage(err)
	for _, h := range s.errorHandlers {
		if h(w, err, msg) {
			return
		}
	}
	log.Error("internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, CodeInternalError, "internal error")
}

func derefInt(p *int) int {
	if p == nil {
		return 0
	}
	return *p
}
