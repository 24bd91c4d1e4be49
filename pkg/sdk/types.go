package siteqa

import (
	"io"
	"time"
)

// IndexRequest asks the server to crawl a site into the session index.
// Zero fields take the server defaults.
type IndexRequest struct {
	URL         string
	Depth       int
	MaxPages    int
	ScopePrefix string // defaults to scheme://host of URL
}

// IndexResult describes the session index after Index or Upload.
type IndexResult struct {
	SessionID       string
	Chunks          int
	PagesIndexed    int
	CreatedAt       time.Time
	SourceScope     string
	EmbeddingTokens int
}

// File is one document to upload.
type File struct {
	Name    string
	Content io.Reader
}

// FileResult is the per-file outcome of an upload.
type FileResult struct {
	Name  string
	OK    bool
	Chars int
	Error string
}

// UploadResult is the index after an upload plus the per-file outcomes.
type UploadResult struct {
	IndexResult
	Files []FileResult
}

// AskRequest is a question. When StartURL is set and the session has no index
// for its origin, the server crawls it first.
type AskRequest struct {
	Question    string
	TopK        int
	Temperature *float64
	StartURL    string
	Depth       int
	MaxPages    int
	ScopePrefix string
}

// AskResult is the answer with its sources, primary first.
type AskResult struct {
	Answer          string
	Sources         []string
	EmbeddingTokens int
}

// HealthStatus represents the aggregated system health.
type HealthStatus struct {
	Status   string            // "ok", "degraded", "error"
	Checks   map[string]string // component → "ok"/"error"
	Sessions int
}
