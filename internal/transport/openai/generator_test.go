package openai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/zap"

	"github.com/kailas-cloud/siteqa/internal/domain"
)

func newTestGenerator(url string) *Generator {
	return NewGenerator(&Config{
		APIKey:   "test-key",
		BaseURL:  url,
		Model:    "chat-model",
		Provider: "test",
		Logger:   zap.NewNop(),
	})
}

func TestGenerator_Generate(t *testing.T) {
	var got struct {
		Model       string  `json:"model"`
		Temperature float64 `json:"temperature"`
		Messages    []struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"messages"`
	}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode request: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"id":     "cmpl-1",
			"object": "chat.completion",
			"model":  "chat-model",
			"choices": []any{map[string]any{
				"index":         0,
				"message":       map[string]any{"role": "assistant", "content": "  March 1.\n"},
				"finish_reason": "stop",
			}},
			"usage": map[string]any{"prompt_tokens": 10, "completion_tokens": 3, "total_tokens": 13},
		})
	}))
	defer server.Close()

	answer, err := newTestGenerator(server.URL).Generate(context.Background(), "When?", 3)
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if answer != "March 1." {
		t.Errorf("answer = %q", answer)
	}
	if got.Model != "chat-model" || len(got.Messages) != 1 || got.Messages[0].Content != "When?" {
		t.Errorf("unexpected request %+v", got)
	}
	if got.Temperature != 1 {
		t.Errorf("temperature = %v, expected clamp to 1", got.Temperature)
	}
}

func TestGenerator_Error(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		json.NewEncoder(w).Encode(map[string]any{
			"error": map[string]any{"message": "overloaded", "type": "server_error"},
		})
	}))
	defer server.Close()

	_, err := newTestGenerator(server.URL).Generate(context.Background(), "When?", 0.2)
	if !errors.Is(err, domain.ErrGenerationFailed) {
		t.Fatalf("expected ErrGenerationFailed, got %v", err)
	}
}
