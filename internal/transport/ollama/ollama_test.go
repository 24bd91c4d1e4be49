package ollama

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/kailas-cloud/siteqa/internal/domain"
)

// fakeServer answers both the legacy and the batched embedding endpoints.
type fakeServer struct {
	mu      sync.Mutex
	numCtx  []float64
	embedFn func(input string) (int, any)
}

func (f *fakeServer) handler(t *testing.T) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		if r.Body != nil && r.Method == http.MethodPost {
			_ = json.NewDecoder(r.Body).Decode(&body)
		}
		if opts, ok := body["options"].(map[string]any); ok {
			if n, ok := opts["num_ctx"].(float64); ok {
				f.mu.Lock()
				f.numCtx = append(f.numCtx, n)
				f.mu.Unlock()
			}
		}

		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/":
			w.Write([]byte("Ollama is running"))
		case "/api/embed", "/api/embeddings":
			input, _ := body["prompt"].(string)
			if in, ok := body["input"].([]any); ok && len(in) > 0 {
				input, _ = in[0].(string)
			}
			status, resp := f.embedFn(input)
			w.WriteHeader(status)
			json.NewEncoder(w).Encode(resp)
		case "/api/chat", "/api/generate":
			json.NewEncoder(w).Encode(map[string]any{
				"model":    "gen",
				"message":  map[string]any{"role": "assistant", "content": " The deadline is March 1. "},
				"response": " The deadline is March 1. ",
				"done":     true,
			})
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
		}
	})
}

func okEmbedding(string) (int, any) {
	return http.StatusOK, map[string]any{
		"embedding":  []float32{0.5, 0.25},
		"embeddings": [][]float32{{0.5, 0.25}},
	}
}

func TestClient_Embed(t *testing.T) {
	f := &fakeServer{embedFn: okEmbedding}
	srv := httptest.NewServer(f.handler(t))
	defer srv.Close()

	c := New(Config{ServerURL: srv.URL, EmbedModel: "nomic-embed-text"})
	res, err := c.Embed(domain.WithContextLimit(context.Background(), 1024), "hello")
	if err != nil {
		t.Fatalf("Embed failed: %v", err)
	}
	if len(res.Embedding) != 2 || res.Embedding[0] != 0.5 {
		t.Errorf("unexpected vector %v", res.Embedding)
	}
	if len(f.numCtx) == 0 || f.numCtx[0] != 1024 {
		t.Errorf("num_ctx not forwarded: %v", f.numCtx)
	}
}

func TestClient_Embed_ContextLength(t *testing.T) {
	f := &fakeServer{embedFn: func(string) (int, any) {
		return http.StatusInternalServerError, map[string]any{"error": "the input length exceeds the context length"}
	}}
	srv := httptest.NewServer(f.handler(t))
	defer srv.Close()

	c := New(Config{ServerURL: srv.URL, EmbedModel: "m"})
	_, err := c.Embed(context.Background(), strings.Repeat("x", 5000))
	if !errors.Is(err, domain.ErrContextLength) {
		t.Fatalf("expected ErrContextLength, got %v", err)
	}
}

func TestClient_Embed_ProviderError(t *testing.T) {
	f := &fakeServer{embedFn: func(string) (int, any) {
		return http.StatusInternalServerError, map[string]any{"error": "model not loaded"}
	}}
	srv := httptest.NewServer(f.handler(t))
	defer srv.Close()

	_, err := New(Config{ServerURL: srv.URL, EmbedModel: "m"}).Embed(context.Background(), "x")
	if !errors.Is(err, domain.ErrEmbeddingProviderError) {
		t.Fatalf("expected provider error, got %v", err)
	}
}

func TestClient_Generate(t *testing.T) {
	f := &fakeServer{embedFn: okEmbedding}
	srv := httptest.NewServer(f.handler(t))
	defer srv.Close()

	out, err := New(Config{ServerURL: srv.URL, GenModel: "gen"}).Generate(context.Background(), "When?", 0)
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if out != "The deadline is March 1." {
		t.Errorf("answer = %q", out)
	}
}

func TestClient_HealthCheck(t *testing.T) {
	f := &fakeServer{embedFn: okEmbedding}
	srv := httptest.NewServer(f.handler(t))
	defer srv.Close()

	if err := New(Config{ServerURL: srv.URL}).HealthCheck(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	srv.Close()
	if err := New(Config{ServerURL: srv.URL}).HealthCheck(context.Background()); err == nil {
		t.Fatal("expected error for a stopped server")
	}
}
