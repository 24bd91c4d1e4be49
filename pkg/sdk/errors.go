package siteqa

import (
	"fmt"

	"github.com/kailas-cloud/siteqa/internal/domain"
	chiTransport "github.com/kailas-cloud/siteqa/internal/transport/chi"
)

// Sentinel errors re-exported from the domain layer.
// Use errors.Is() to check.
var (
	ErrInvalidInput           = domain.ErrInvalidInput
	ErrInvalidURL             = domain.ErrInvalidURL
	ErrEmptyCrawl             = domain.ErrEmptyCrawl
	ErrEmptyUpload            = domain.ErrEmptyUpload
	ErrNoExtractableText      = domain.ErrNoExtractableText
	ErrUnsupportedFileType    = domain.ErrUnsupportedFileType
	ErrDocumentTooLarge       = domain.ErrDocumentTooLarge
	ErrNoIndex                = domain.ErrNoIndex
	ErrEmbeddingFailed        = domain.ErrEmbeddingFailed
	ErrContextLength          = domain.ErrContextLength
	ErrEmbeddingProviderError = domain.ErrEmbeddingProviderError
	ErrGenerationFailed       = domain.ErrGenerationFailed
	ErrFetchFailed            = domain.ErrFetchFailed
)

var codeSentinels = map[string]error{
	chiTransport.CodeValidationFailed:       ErrInvalidInput,
	chiTransport.CodeInvalidURL:             ErrInvalidURL,
	chiTransport.CodeEmptyCrawl:             ErrEmptyCrawl,
	chiTransport.CodeEmptyUpload:            ErrEmptyUpload,
	chiTransport.CodeNoExtractableText:      ErrNoExtractableText,
	chiTransport.CodeUnsupportedFileType:    ErrUnsupportedFileType,
	chiTransport.CodeDocumentTooLarge:       ErrDocumentTooLarge,
	chiTransport.CodeNoIndex:                ErrNoIndex,
	chiTransport.CodeEmbeddingFailed:        ErrEmbeddingFailed,
	chiTransport.CodeContextLength:          ErrContextLength,
	chiTransport.CodeEmbeddingProviderError: ErrEmbeddingProviderError,
	chiTransport.CodeGenerationFailed:       ErrGenerationFailed,
	chiTransport.CodeFetchFailed:            ErrFetchFailed,
}

// APIError is a non-2xx response from the server.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
	Files      []FileResult // per-file outcome of a rejected upload
}

func (e *APIError) Error() string {
	return fmt.Sprintf("siteqa: %d %s: %s", e.StatusCode, e.Code, e.Message)
}

// Unwrap returns the sentinel matching the error code, if any.
func (e *APIError) Unwrap() error {
	return codeSentinels[e.Code]
}
