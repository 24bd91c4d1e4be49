package chi

import (
	"time"

	"github.com/kailas-cloud/siteqa/internal/domain"
	qauc "github.com/kailas-cloud/siteqa/internal/usecase/qa"
)

// Error codes returned in ErrorResponse.Code.
const (
	CodeBadRequest             = "bad_request"
	CodeNotFound               = "not_found"
	CodeValidationFailed       = "validation_failed"
	CodeInvalidURL             = "invalid_url"
	CodeEmptyCrawl             = "empty_crawl"
	CodeEmptyUpload            = "empty_upload"
	CodeNoExtractableText      = "no_extractable_text"
	CodeUnsupportedFileType    = "unsupported_file_type"
	CodeDocumentTooLarge       = "document_too_large"
	CodeNoIndex                = "no_index"
	CodeEmbeddingFailed        = "embedding_failed"
	CodeContextLength          = "context_length_exceeded"
	CodeEmbeddingProviderError = "embedding_provider_error"
	CodeGenerationFailed       = "generation_failed"
	CodeFetchFailed            = "fetch_failed"
	CodeInternalError          = "internal_error"
)

// IndexRequest is the body of POST /api/index.
type IndexRequest struct {
	SessionID   string `json:"session_id,omitempty"`
	URL         string `json:"url"`
	Depth       int    `json:"depth,omitempty"`
	MaxPages    int    `json:"max_pages,omitempty"`
	ScopePrefix string `json:"scope_prefix,omitempty"`
}

// IndexResponse describes the session index after indexing or upload.
type IndexResponse struct {
	OK              bool      `json:"ok"`
	SessionID       string    `json:"session_id"`
	Chunks          int       `json:"chunks"`
	PagesIndexed    int       `json:"pages_indexed"`
	CreatedAt       time.Time `json:"created_at"`
	SourceScope     string    `json:"source_scope"`
	EmbeddingTokens int       `json:"embedding_tokens,omitempty"`
}

// FileResult is the per-file outcome of an upload.
type FileResult struct {
	Name  string `json:"name"`
	OK    bool   `json:"ok"`
	Chars int    `json:"chars,omitempty"`
	Error string `json:"error,omitempty"`
}

// UploadResponse is the body returned by POST /api/upload.
type UploadResponse struct {
	IndexResponse
	Files []FileResult `json:"files"`
}

// AskRequest is the body of POST /api/ask.
type AskRequest struct {
	SessionID   string   `json:"session_id,omitempty"`
	Question    string   `json:"question"`
	TopK        *int     `json:"top_k,omitempty"`
	Temperature *float64 `json:"temperature,omitempty"`
	StartURL    string   `json:"start_url,omitempty"`
	Depth       int      `json:"depth,omitempty"`
	MaxPages    int      `json:"max_pages,omitempty"`
	ScopePrefix string   `json:"scope_prefix,omitempty"`
}

// AskResponse is the answer with its sources, primary first.
type AskResponse struct {
	SessionID       string   `json:"session_id"`
	Answer          string   `json:"answer"`
	Sources         []string `json:"sources"`
	EmbeddingTokens int      `json:"embedding_tokens,omitempty"`
}

// HealthResponse is the body of GET /healthz.
type HealthResponse struct {
	Status   string            `json:"status"`
	Checks   map[string]string `json:"checks"`
	Sessions int               `json:"sessions"`
}

// ErrorResponse is the body of every non-2xx API response.
type ErrorResponse struct {
	Code    string       `json:"code"`
	Message string       `json:"message"`
	Files   []FileResult `json:"files,omitempty"`
}

func indexResultToResponse(res qauc.IndexResult, usage *domain.EmbeddingUsage) IndexResponse {
	return IndexResponse{
		OK:              true,
		SessionID:       res.SessionID,
		Chunks:          res.Chunks,
		PagesIndexed:    res.PagesIndexed,
		CreatedAt:       res.CreatedAt.UTC(),
		SourceScope:     res.Scope,
		EmbeddingTokens: usage.TotalTokens(),
	}
}

func fileResultsToResponse(files []qauc.FileResult) []FileResult {
	out := make([]FileResult, len(files))
	for i, f := range files {
		out[i] = FileResult{Name: f.Name, OK: f.OK, Chars: f.Chars, Error: f.Error}
	}
	return out
}
