package siteqa

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	chiTransport "github.com/kailas-cloud/siteqa/internal/transport/chi"
)

const (
	defaultTimeout = 15 * time.Minute
	uploadField    = "files"
	maxErrorBody   = 64 << 10
)

// Client talks to a siteqa server over HTTP. It is safe for concurrent use;
// concurrent calls share one session.
type Client struct {
	baseURL *url.URL
	http    *http.Client
	obs     *observer

	mu      sync.RWMutex
	session string
}

// New creates a client for the server at baseURL (e.g. "http://localhost:8080").
func New(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("siteqa: parse base url: %w", err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("siteqa: base url %q must be absolute http(s)", baseURL)
	}

	cfg := &clientConfig{timeout: defaultTimeout}
	for _, o := range opts {
		o.apply(cfg)
	}

	hc := cfg.httpClient
	if hc == nil {
		hc = &http.Client{Timeout: cfg.timeout}
	}

	obs, err := newObserver(cfg.logger, cfg.metricsReg)
	if err != nil {
		return nil, err
	}

	return &Client{
		baseURL: u,
		http:    hc,
		obs:     obs,
		session: cfg.session,
	}, nil
}

// SessionID returns the current session, empty until the server assigns one.
func (c *Client) SessionID() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.session
}

// Index crawls req.URL into the session index.
func (c *Client) Index(ctx context.Context, req IndexRequest) (res IndexResult, err error) {
	defer func(start time.Time) {
		c.obs.observe(call{op: "index", start: start, session: c.SessionID(), tokens: res.EmbeddingTokens, err: err})
	}(time.Now())

	body := chiTransport.IndexRequest{
		URL:         req.URL,
		Depth:       req.Depth,
		MaxPages:    req.MaxPages,
		ScopePrefix: req.ScopePrefix,
	}
	var resp chiTransport.IndexResponse
	if err = c.doJSON(ctx, http.MethodPost, "/api/index", body, &resp); err != nil {
		return IndexResult{}, err
	}
	return indexResultFromResponse(resp), nil
}

// Ask answers a question from the session index.
func (c *Client) Ask(ctx context.Context, req AskRequest) (res AskResult, err error) {
	defer func(start time.Time) {
		c.obs.observe(call{op: "ask", start: start, session: c.SessionID(), tokens: res.EmbeddingTokens, err: err})
	}(time.Now())

	body := chiTransport.AskRequest{
		Question:    req.Question,
		Temperature: req.Temperature,
		StartURL:    req.StartURL,
		Depth:       req.Depth,
		MaxPages:    req.MaxPages,
		ScopePrefix: req.ScopePrefix,
	}
	if req.TopK > 0 {
		topK := req.TopK
		body.TopK = &topK
	}
	var resp chiTransport.AskResponse
	if err = c.doJSON(ctx, http.MethodPost, "/api/ask", body, &resp); err != nil {
		return AskResult{}, err
	}
	return AskResult{
		Answer:          resp.Answer,
		Sources:         resp.Sources,
		EmbeddingTokens: resp.EmbeddingTokens,
	}, nil
}

// Upload sends documents to be indexed into the session. A rejected upload
// returns an *APIError whose Files lists why each file was skipped.
func (c *Client) Upload(ctx context.Context, files ...File) (res UploadResult, err error) {
	defer func(start time.Time) {
		c.obs.observe(call{op: "upload", start: start, session: c.SessionID(), tokens: res.EmbeddingTokens, err: err})
	}(time.Now())

	if len(files) == 0 {
		return UploadResult{}, fmt.Errorf("%w: no files", ErrEmptyUpload)
	}

	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)
	go func() {
		pw.CloseWithError(writeParts(mw, files))
	}()

	httpReq, err := c.newRequest(ctx, http.MethodPost, "/api/upload", pr)
	if err != nil {
		pr.Close()
		return UploadResult{}, err
	}
	httpReq.Header.Set("Content-Type", mw.FormDataContentType())

	var resp chiTransport.UploadResponse
	if err = c.do(httpReq, &resp); err != nil {
		return UploadResult{}, err
	}
	return UploadResult{
		IndexResult: indexResultFromResponse(resp.IndexResponse),
		Files:       fileResultsFromResponse(resp.Files),
	}, nil
}

func writeParts(mw *multipart.Writer, files []File) error {
	for _, f := range files {
		part, err := mw.CreateFormFile(uploadField, f.Name)
		if err != nil {
			return err
		}
		if _, err := io.Copy(part, f.Content); err != nil {
			return fmt.Errorf("read %s: %w", f.Name, err)
		}
	}
	return mw.Close()
}

// Health reports server health. An unhealthy server answers 503 with the same
// body, which is returned without error.
func (c *Client) Health(ctx context.Context) (_ HealthStatus, err error) {
	defer func(start time.Time) { c.obs.observe(call{op: "health", start: start, err: err}) }(time.Now())

	httpReq, err := c.newRequest(ctx, http.MethodGet, "/healthz", nil)
	if err != nil {
		return HealthStatus{}, err
	}
	res, err := c.http.Do(httpReq)
	if err != nil {
		return HealthStatus{}, fmt.Errorf("siteqa: health: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK && res.StatusCode != http.StatusServiceUnavailable {
		return HealthStatus{}, decodeAPIError(res)
	}
	var body chiTransport.HealthResponse
	if err = json.NewDecoder(res.Body).Decode(&body); err != nil {
		return HealthStatus{}, fmt.Errorf("siteqa: decode health: %w", err)
	}
	return HealthStatus{Status: body.Status, Checks: body.Checks, Sessions: body.Sessions}, nil
}

func (c *Client) doJSON(ctx context.Context, method, path string, in, out any) error {
	buf, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("siteqa: encode request: %w", err)
	}
	req, err := c.newRequest(ctx, method, path, bytes.NewReader(buf))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, out)
}

func (c *Client) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	u := c.baseURL.JoinPath(path)
	req, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return nil, fmt.Errorf("siteqa: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if id := c.SessionID(); id != "" {
		req.Header.Set(chiTransport.SessionHeader, id)
	}
	return req, nil
}

func (c *Client) do(req *http.Request, out any) error {
	res, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("siteqa: %s %s: %w", req.Method, req.URL.Path, err)
	}
	defer res.Body.Close()

	if id := res.Header.Get(chiTransport.SessionHeader); id != "" {
		c.mu.Lock()
		c.session = id
		c.mu.Unlock()
	}

	if res.StatusCode < 200 || res.StatusCode > 299 {
		return decodeAPIError(res)
	}
	if err := json.NewDecoder(res.Body).Decode(out); err != nil {
		return fmt.Errorf("siteqa: decode response: %w", err)
	}
	return nil
}

func decodeAPIError(res *http.Response) error {
	apiErr := &APIError{StatusCode: res.StatusCode}
	raw, _ := io.ReadAll(io.LimitReader(res.Body, maxErrorBody))

	var body chiTransport.ErrorResponse
	if err := json.Unmarshal(raw, &body); err != nil || body.Code == "" {
		apiErr.Message = strings.TrimSpace(string(raw))
		if apiErr.Message == "" {
			apiErr.Message = http.StatusText(res.StatusCode)
		}
		return apiErr
	}
	apiErr.Code = body.Code
	apiErr.Message = body.Message
	apiErr.Files = fileResultsFromResponse(body.Files)
	return apiErr
}

func indexResultFromResponse(r chiTransport.IndexResponse) IndexResult {
	return IndexResult{
		SessionID:       r.SessionID,
		Chunks:          r.Chunks,
		PagesIndexed:    r.PagesIndexed,
		CreatedAt:       r.CreatedAt,
		SourceScope:     r.SourceScope,
		EmbeddingTokens: r.EmbeddingTokens,
	}
}

func fileResultsFromResponse(files []chiTransport.FileResult) []FileResult {
	if len(files) == 0 {
		return nil
	}
	out := make([]FileResult, len(files))
	for i, f := range files {
		out[i] = FileResult{Name: f.Name, OK: f.OK, Chars: f.Chars, Error: f.Error}
	}
	return out
}

var _ error = (*APIError)(nil)

// IsAPIError reports whether err carries a server response and returns it.
func IsAPIError(err error) (*APIError, bool) {
	var apiErr *APIError
	ok := errors.As(err, &apiErr)
	return apiErr, ok
}
