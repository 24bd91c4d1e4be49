package openai

import (
	"encoding/json"
	"errors"
	"fmt"

	openai "github.com/sashabaranov/go-openai"

	"github.com/kailas-cloud/siteqa/internal/domain"
)

// parseAPIError extracts a human-readable error from the API response and wraps it
// with wrap, or with domain.ErrContextLength when the input was rejected as too long.
func parseAPIError(err error, wrap error) error {
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		detail := extractDetail(reqErr.Body)
		if detail == "" {
			detail = string(reqErr.Body)
		}
		if domain.LooksLikeContextLength(detail, "") {
			wrap = domain.ErrContextLength
		}
		return fmt.Errorf("provider API error %d: %s: %w", reqErr.HTTPStatusCode, detail, wrap)
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		code, _ := apiErr.Code.(string)
		if domain.LooksLikeContextLength(apiErr.Message, code) {
			wrap = domain.ErrContextLength
		}
		return fmt.Errorf("provider API error %d: %s: %w", apiErr.HTTPStatusCode, apiErr.Message, wrap)
	}

	if domain.LooksLikeContextLength(err.Error(), "") {
		wrap = domain.ErrContextLength
	}
	return fmt.Errorf("provider request failed: %v: %w", err, wrap)
}

// extractDetail extracts the "detail" field from a JSON error body (Nebius error format).
func extractDetail(body []byte) string {
	var parsed struct {
		Detail string `json:"detail"`
	}
	if json.Unmarshal(body, &parsed) == nil && parsed.Detail != "" {
		return parsed.Detail
	}
	return ""
}
