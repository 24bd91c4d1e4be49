// Package ollama talks to a local Ollama server through langchaingo.
package ollama

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/ollama"
	"go.uber.org/zap"

	"github.com/kailas-cloud/siteqa/internal/domain"
	"github.com/kailas-cloud/siteqa/internal/metrics"
)

const provider = "ollama"

// DefaultServerURL is the address of a local Ollama installation.
const DefaultServerURL = "http://localhost:11434"

// Config holds the Ollama connection settings.
type Config struct {
	ServerURL  string
	EmbedModel string
	GenModel   string
	HTTPClient *http.Client
	Logger     *zap.Logger
}

// Client embeds and generates with Ollama models. Runner options are fixed per
// langchaingo model, so one model is kept per context-window size.
type Client struct {
	cfg Config

	mu     sync.Mutex
	embeds map[int]*ollama.LLM
	gen    *ollama.LLM
}

// New creates a client. Models are created lazily on first use.
func New(cfg Config) *Client {
	if cfg.ServerURL == "" {
		cfg.ServerURL = DefaultServerURL
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = http.DefaultClient
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &Client{cfg: cfg, embeds: make(map[int]*ollama.LLM)}
}

func (c *Client) embedModel(numCtx int) (*ollama.LLM, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if m, ok := c.embeds[numCtx]; ok {
		return m, nil
	}
	opts := []ollama.Option{
		ollama.WithServerURL(c.cfg.ServerURL),
		ollama.WithModel(c.cfg.EmbedModel),
		ollama.WithHTTPClient(c.cfg.HTTPClient),
	}
	if numCtx > 0 {
		opts = append(opts, ollama.WithRunnerNumCtx(numCtx))
	}
	m, err := ollama.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("create ollama embed model: %w", err)
	}
	c.embeds[numCtx] = m
	return m, nil
}

func (c *Client) genModel() (*ollama.LLM, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.gen != nil {
		return c.gen, nil
	}
	m, err := ollama.New(
		ollama.WithServerURL(c.cfg.ServerURL),
		ollama.WithModel(c.cfg.GenModel),
		ollama.WithHTTPClient(c.cfg.HTTPClient),
	)
	if err != nil {
		return nil, fmt.Errorf("create ollama chat model: %w", err)
	}
	c.gen = m
	return m, nil
}

// Embed implements domain.Embedder. The context-limit hint becomes the runner num_ctx.
func (c *Client) Embed(ctx context.Context, text string) (domain.EmbeddingResult, error) {
	m, err := c.embedModel(domain.ContextLimitFrom(ctx))
	if err != nil {
		return domain.EmbeddingResult{}, fmt.Errorf("%w: %w", domain.ErrEmbeddingProviderError, err)
	}

	start := time.Now()
	vecs, err := m.CreateEmbedding(ctx, []string{text})
	duration := time.Since(start)

	if err != nil {
		wrap := domain.ErrEmbeddingProviderError
		errType := "api_error"
		if domain.LooksLikeContextLength(err.Error(), "") {
			wrap, errType = domain.ErrContextLength, "context_length"
		}
		metrics.EmbeddingRequestsTotal.WithLabelValues(provider, c.cfg.EmbedModel, "error").Inc()
		metrics.EmbeddingErrorsTotal.WithLabelValues(provider, c.cfg.EmbedModel, errType).Inc()
		return domain.EmbeddingResult{}, fmt.Errorf("ollama embed: %v: %w", err, wrap)
	}
	if len(vecs) == 0 || len(vecs[0]) == 0 {
		metrics.EmbeddingRequestsTotal.WithLabelValues(provider, c.cfg.EmbedModel, "error").Inc()
		metrics.EmbeddingErrorsTotal.WithLabelValues(provider, c.cfg.EmbedModel, "empty_response").Inc()
		return domain.EmbeddingResult{}, fmt.Errorf("empty embedding response: %w", domain.ErrEmbeddingProviderError)
	}

	metrics.EmbeddingRequestsTotal.WithLabelValues(provider, c.cfg.EmbedModel, "success").Inc()
	metrics.EmbeddingRequestDuration.WithLabelValues(provider, c.cfg.EmbedModel).Observe(duration.Seconds())

	return domain.EmbeddingResult{Embedding: vecs[0]}, nil
}

// Generate implements domain.Generator. Streamed parts are assembled into one string.
func (c *Client) Generate(ctx context.Context, prompt string, temperature float64) (string, error) {
	m, err := c.genModel()
	if err != nil {
		return "", fmt.Errorf("%w: %w", domain.ErrGenerationFailed, err)
	}

	start := time.Now()
	out, err := llms.GenerateFromSinglePrompt(ctx, m, prompt,
		llms.WithTemperature(domain.SanitizeTemperature(temperature)),
	)
	duration := time.Since(start)

	if err != nil {
		metrics.GenerationRequestsTotal.WithLabelValues(provider, c.cfg.GenModel, "error").Inc()
		return "", fmt.Errorf("ollama generate: %v: %w", err, domain.ErrGenerationFailed)
	}

	metrics.GenerationRequestsTotal.WithLabelValues(provider, c.cfg.GenModel, "success").Inc()
	metrics.GenerationRequestDuration.WithLabelValues(provider, c.cfg.GenModel).Observe(duration.Seconds())
	c.cfg.Logger.Debug("Generation completed",
		zap.String("model", c.cfg.GenModel),
		zap.Duration("duration", duration),
	)

	return strings.TrimSpace(out), nil
}

// HealthCheck pings the server root, which answers "Ollama is running".
func (c *Client) HealthCheck(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.ServerURL, nil)
	if err != nil {
		return fmt.Errorf("build ping request: %w", err)
	}
	resp, err := c.cfg.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("ping ollama: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return errors.New("ping ollama: " + resp.Status)
	}
	return nil
}
