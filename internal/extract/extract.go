// Package extract turns fetched pages and uploaded files into plain text.
package extract

import (
	"bytes"
	"context"
	"fmt"
	"mime"
	"net/url"
	"path"
	"strings"

	"go.uber.org/zap"

	"github.com/kailas-cloud/siteqa/internal/domain"
)

// Kind is a detected document format.
type Kind string

// Supported formats.
const (
	KindUnknown  Kind = ""
	KindHTML     Kind = "html"
	KindPDF      Kind = "pdf"
	KindDOCX     Kind = "docx"
	KindText     Kind = "text"
	KindMarkdown Kind = "markdown"
)

// Defaults used when Config leaves a field zero.
const (
	DefaultPDFMaxPages      = 12
	DefaultPDFToText        = "pdftotext"
	DefaultMaxDocumentBytes = 10 << 20
)

// Config holds extractor settings.
type Config struct {
	Readability      bool
	PDFMaxPages      int
	PDFToText        string
	MaxDocumentBytes int64
}

// Extractor converts documents to text.
type Extractor struct {
	cfg    Config
	logger *zap.Logger
}

// New creates an extractor, filling zero config fields with defaults.
func New(cfg Config, logger *zap.Logger) *Extractor {
	if cfg.PDFMaxPages <= 0 {
		cfg.PDFMaxPages = DefaultPDFMaxPages
	}
	if cfg.PDFToText == "" {
		cfg.PDFToText = DefaultPDFToText
	}
	if cfg.MaxDocumentBytes <= 0 {
		cfg.MaxDocumentBytes = DefaultMaxDocumentBytes
	}
	return &Extractor{cfg: cfg, logger: logger}
}

var extensionKinds = map[string]Kind{
	".pdf":      KindPDF,
	".docx":     KindDOCX,
	".txt":      KindText,
	".md":       KindMarkdown,
	".markdown": KindMarkdown,
	".html":     KindHTML,
	".htm":      KindHTML,
}

const docxMediaType = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"

var mediaKinds = map[string]Kind{
	"application/pdf":       KindPDF,
	docxMediaType:           KindDOCX,
	"text/plain":            KindText,
	"text/markdown":         KindMarkdown,
	"text/html":             KindHTML,
	"application/xhtml+xml": KindHTML,
}

// Detect identifies the format from the file name, then the Content-Type, then
// magic bytes.
func Detect(name, contentType string, body []byte) Kind {
	if k, ok := extensionKinds[strings.ToLower(path.Ext(name))]; ok {
		return k
	}
	if mt, _, err := mime.ParseMediaType(contentType); err == nil {
		if k, ok := mediaKinds[mt]; ok {
			return k
		}
	}
	switch {
	case bytes.HasPrefix(body, []byte("%PDF-")):
		return KindPDF
	case bytes.HasPrefix(body, []byte("PK\x03\x04")):
		return KindDOCX
	}
	return KindUnknown
}

// LooksLikeDocument reports whether a link points at a binary document rather
// than a page.
func LooksLikeDocument(u *url.URL) bool {
	s := strings.ToLower(u.String())
	return strings.HasSuffix(s, ".pdf") || strings.Contains(s, ".pdf?") ||
		strings.HasSuffix(strings.ToLower(u.Path), ".docx")
}

// Extract converts body to normalized text according to its detected kind.
// name may be a file name or a URL.
func (e *Extractor) Extract(ctx context.Context, name, contentType string, body []byte) (string, error) {
	if int64(len(body)) > e.cfg.MaxDocumentBytes {
		return "", fmt.Errorf("%w: %s", domain.ErrDocumentTooLarge, name)
	}

	kind := Detect(name, contentType, body)
	switch kind {
	case KindPDF:
		return e.PDF(ctx, body)
	case KindDOCX:
		return e.DOCX(body)
	case KindText, KindMarkdown:
		return strings.TrimSpace(strings.ToValidUTF8(string(body), "�")), nil
	case KindHTML:
		base, _ := url.Parse(name)
		return e.HTML(base, body).Text, nil
	default:
		return "", fmt.Errorf("%w: %s", domain.ErrUnsupportedFileType, name)
	}
}
