package domain

import (
	"errors"
	"fmt"
	"strings"
)

// Input errors: rejected immediately, never retried, mapped to client faults.
var (
	// ErrInvalidInput signals a malformed request.
	ErrInvalidInput = errors.New("invalid input")
	// ErrInvalidURL signals a seed URL that cannot be parsed.
	ErrInvalidURL = errors.New("invalid url")
	// ErrEmptyUpload signals an upload without files or with only empty files.
	ErrEmptyUpload = errors.New("empty upload")
	// ErrUnsupportedFileType signals a document format the extractor cannot read.
	ErrUnsupportedFileType = errors.New("unsupported file type")
	// ErrNoExtractableText signals that no uploaded file produced any text.
	ErrNoExtractableText = errors.New("no extractable text")
	// ErrEmptyCrawl signals a crawl that collected zero pages.
	ErrEmptyCrawl = errors.New("crawl returned 0 pages")
	// ErrNoIndex signals a question against a session without an index.
	ErrNoIndex = errors.New("no index loaded")
)

// Remote and extraction errors.
var (
	// ErrFetchFailed signals a page or document fetch that exhausted its retries.
	ErrFetchFailed = errors.New("fetch failed")
	// ErrDocumentTooLarge signals a fetched or uploaded document above the size ceiling.
	ErrDocumentTooLarge = errors.New("document too large")
	// ErrExtractionFailed signals a corrupt or unreadable document.
	ErrExtractionFailed = errors.New("extraction failed")
	// ErrContextLength signals that the embedding backend rejected the input as too long.
	ErrContextLength = errors.New("input exceeds context length")
	// ErrEmbeddingProviderError signals an embedding provider failure.
	ErrEmbeddingProviderError = errors.New("embedding provider error")
	// ErrEmbeddingFailed signals a terminal embedding failure after all retries.
	ErrEmbeddingFailed = errors.New("embedding failed")
	// ErrGenerationFailed signals a generation provider failure.
	ErrGenerationFailed = errors.New("generation failed")
)

// FileError reports an extraction failure for one file of a batch upload.
type FileError struct {
	Name string
	Err  error
}

func (e *FileError) Error() string {
	return fmt.Sprintf("%s: %v", e.Name, e.Err)
}

func (e *FileError) Unwrap() error { return e.Err }

// IsClientFault reports whether err belongs to the input-error class.
func IsClientFault(err error) bool {
	for _, target := range []error{
		ErrInvalidInput, ErrInvalidURL, ErrEmptyUpload, ErrUnsupportedFileType,
		ErrNoExtractableText, ErrEmptyCrawl, ErrNoIndex,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// contextLengthMarkers are fragments of provider messages that reject an input as too long.
var contextLengthMarkers = []string{
	"context length",
	"exceeds the context length",
	"too long",
}

// LooksLikeContextLength reports whether a provider message or error code means
// the input did not fit the model window.
func LooksLikeContextLength(message, code string) bool {
	if code == "context_length_exceeded" {
		return true
	}
	lower := strings.ToLower(message)
	for _, m := range contextLengthMarkers {
		if strings.Contains(lower, m) {
			return true
		}
	}
	return false
}
