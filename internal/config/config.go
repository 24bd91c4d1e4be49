package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"

	"gopkg.in/yaml.v3"
)

// Provider kinds.
const (
	ProviderOpenAI = "openai"
	ProviderOllama = "ollama"
)

// Cache drivers.
const (
	CacheMemory = "memory"
	CacheRedis  = "redis"
	CacheNone   = "none"
)

// Crawl renderers.
const (
	RendererHTTP     = "http"
	RendererChromedp = "chromedp"
)

// Config holds the siteqa configuration.
type Config struct {
	HTTP      HTTPConfig      `yaml:"http"`
	Logging   LoggingConfig   `yaml:"logging"`
	Provider  ProviderConfig  `yaml:"provider"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Index     IndexConfig     `yaml:"index"`
	Crawl     CrawlConfig     `yaml:"crawl"`
	Extract   ExtractConfig   `yaml:"extract"`
	Retrieval RetrievalConfig `yaml:"retrieval"`
	Cache     CacheConfig     `yaml:"cache"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error (default: determined by env)
	Format string `yaml:"format"` // json, console (default: determined by env)
}

// HTTPConfig holds HTTP server settings.
type HTTPConfig struct {
	Port            int   `yaml:"port"`
	ReadTimeoutSec  int   `yaml:"read_timeout_sec"`
	WriteTimeoutSec int   `yaml:"write_timeout_sec"`
	ShutdownSec     int   `yaml:"shutdown_timeout_sec"`
	MaxUploadBytes  int64 `yaml:"max_upload_bytes"`
}

// ProviderConfig selects the model backend.
type ProviderConfig struct {
	Kind       string `yaml:"kind"` // openai, ollama (default: ollama)
	BaseURL    string `yaml:"base_url"`
	APIKey     string `yaml:"api_key"`
	EmbedModel string `yaml:"embed_model"`
	GenModel   string `yaml:"gen_model"`
	Dimensions int    `yaml:"dimensions"`
}

// EmbeddingConfig holds input shrinking and retry settings.
type EmbeddingConfig struct {
	MaxChars      int  `yaml:"max_chars"`
	NumCtx        int  `yaml:"num_ctx"`
	Disabled      bool `yaml:"disabled"`
	RetryAttempts int  `yaml:"retry_attempts"`
	RetryStepMs   int  `yaml:"retry_step_ms"`
}

// IndexConfig holds segmentation and embedding concurrency settings.
type IndexConfig struct {
	ChunkTargetChars  int `yaml:"chunk_target_chars"`
	ChunkOverlapChars int `yaml:"chunk_overlap_chars"`
	EmbedWorkers      int `yaml:"embed_workers"`
}

// CrawlConfig holds crawler and fetcher settings.
type CrawlConfig struct {
	DefaultDepth      int    `yaml:"default_depth"`
	DefaultMaxPages   int    `yaml:"default_max_pages"`
	MaxLinksPerPage   int    `yaml:"max_links_per_page"`
	PolitenessMs      int    `yaml:"politeness_ms"`
	FollowDocuments   bool   `yaml:"follow_documents"`
	MaxDocumentBytes  int64  `yaml:"max_document_bytes"`
	RequestTimeoutSec int    `yaml:"request_timeout_sec"`
	MaxRedirects      int    `yaml:"max_redirects"`
	UserAgent         string `yaml:"user_agent"`
	Renderer          string `yaml:"renderer"` // http, chromedp (default: http)
}

// ExtractConfig holds document extraction settings.
type ExtractConfig struct {
	Readability   bool   `yaml:"readability"`
	PDFMaxPages   int    `yaml:"pdf_max_pages"`
	PDFToTextPath string `yaml:"pdftotext_path"`
}

// RetrievalConfig holds ranking and generation defaults.
type RetrievalConfig struct {
	DefaultK           int     `yaml:"default_k"`
	ListK              int     `yaml:"list_k"`
	DefaultTemperature float64 `yaml:"default_temperature"`
	MaxSources         int     `yaml:"max_sources"`
}

// CacheConfig holds embedding cache settings.
type CacheConfig struct {
	Driver           string   `yaml:"driver"` // memory, redis, none (default: memory)
	Addrs            []string `yaml:"addrs"`
	Username         string   `yaml:"username"`
	Password         string   `yaml:"password"`
	DB               int      `yaml:"db"`
	TTLHours         int      `yaml:"ttl_hours"`
	MaxEntries       int64    `yaml:"max_entries"`
	ReadinessTimeout int      `yaml:"readiness_timeout_sec"`
	ClientCacheSec   int      `yaml:"client_cache_sec"` // redis only; 0 disables client-side caching
}

// Load reads configuration from a YAML file by environment name (local, dev, prod).
func Load(env string) (Config, error) {
	configPath := findConfigPath(env)

	data, err := os.ReadFile(filepath.Clean(configPath))
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", configPath, err)
	}

	return Parse(data)
}

// Parse expands ${VAR} references, decodes YAML, applies defaults and validates.
func Parse(data []byte) (Config, error) {
	data = expandEnvVars(data)

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// GetEnv returns the current environment from the ENV variable, defaulting to "local".
func GetEnv() string {
	if env := os.Getenv("ENV"); env != "" {
		return env
	}
	return "local"
}

// ApplyDefaults fills empty fields with default values.
func (c *Config) ApplyDefaults() {
	if c.HTTP.Port == 0 {
		c.HTTP.Port = 8080
	}
	if c.HTTP.ReadTimeoutSec <= 0 {
		c.HTTP.ReadTimeoutSec = 30
	}
	// crawl + embed run inside the request
	if c.HTTP.WriteTimeoutSec <= 0 {
		c.HTTP.WriteTimeoutSec = 900
	}
	if c.HTTP.ShutdownSec <= 0 {
		c.HTTP.ShutdownSec = 10
	}
	if c.HTTP.MaxUploadBytes <= 0 {
		c.HTTP.MaxUploadBytes = 50 << 20
	}

	if c.Provider.Kind == "" {
		c.Provider.Kind = ProviderOllama
	}

	if c.Embedding.MaxChars <= 0 {
		c.Embedding.MaxChars = 750
	}
	if c.Embedding.NumCtx <= 0 {
		c.Embedding.NumCtx = 2048
	}
	if c.Embedding.RetryAttempts <= 0 {
		c.Embedding.RetryAttempts = 3
	}
	if c.Embedding.RetryStepMs <= 0 {
		c.Embedding.RetryStepMs = 200
	}

	if c.Index.ChunkTargetChars <= 0 {
		c.Index.ChunkTargetChars = 700
	}
	if c.Index.ChunkOverlapChars <= 0 {
		c.Index.ChunkOverlapChars = 120
	}
	if c.Index.EmbedWorkers <= 0 {
		c.Index.EmbedWorkers = 1
	}

	if c.Crawl.DefaultDepth <= 0 {
		c.Crawl.DefaultDepth = 4
	}
	if c.Crawl.DefaultMaxPages <= 0 {
		c.Crawl.DefaultMaxPages = 400
	}
	if c.Crawl.MaxLinksPerPage <= 0 {
		c.Crawl.MaxLinksPerPage = 200
	}
	if c.Crawl.PolitenessMs == 0 {
		c.Crawl.PolitenessMs = 200
	}
	if c.Crawl.MaxDocumentBytes <= 0 {
		c.Crawl.MaxDocumentBytes = 10 << 20
	}
	if c.Crawl.RequestTimeoutSec <= 0 {
		c.Crawl.RequestTimeoutSec = 45
	}
	if c.Crawl.MaxRedirects <= 0 {
		c.Crawl.MaxRedirects = 10
	}
	if c.Crawl.Renderer == "" {
		c.Crawl.Renderer = RendererHTTP
	}

	if c.Extract.PDFMaxPages <= 0 {
		c.Extract.PDFMaxPages = 12
	}
	if c.Extract.PDFToTextPath == "" {
		c.Extract.PDFToTextPath = "pdftotext"
	}

	if c.Retrieval.DefaultK <= 0 {
		c.Retrieval.DefaultK = 18
	}
	if c.Retrieval.ListK <= 0 {
		c.Retrieval.ListK = 30
	}
	if c.Retrieval.DefaultTemperature == 0 {
		c.Retrieval.DefaultTemperature = 0.25
	}
	if c.Retrieval.MaxSources <= 0 {
		c.Retrieval.MaxSources = 8
	}

	if c.Cache.Driver == "" {
		c.Cache.Driver = CacheMemory
	}
	if c.Cache.TTLHours <= 0 {
		c.Cache.TTLHours = 24 * 7
	}
	if c.Cache.MaxEntries <= 0 {
		c.Cache.MaxEntries = 100_000
	}
	if c.Cache.ReadinessTimeout <= 0 {
		c.Cache.ReadinessTimeout = 10
	}
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port must be between 1 and 65535, got %d", c.HTTP.Port)
	}

	switch c.Provider.Kind {
	case ProviderOpenAI:
		if c.Provider.APIKey == "" {
			return fmt.Errorf("provider.api_key is required for %q", ProviderOpenAI)
		}
	case ProviderOllama:
	default:
		return fmt.Errorf("provider.kind must be %q or %q, got %q", ProviderOpenAI, ProviderOllama, c.Provider.Kind)
	}
	if c.Provider.EmbedModel == "" && !c.Embedding.Disabled {
		return fmt.Errorf("provider.embed_model is required")
	}
	if c.Provider.GenModel == "" {
		return fmt.Errorf("provider.gen_model is required")
	}

	if c.Index.ChunkOverlapChars >= c.Index.ChunkTargetChars {
		return fmt.Errorf("index.chunk_overlap_chars (%d) must be below index.chunk_target_chars (%d)",
			c.Index.ChunkOverlapChars, c.Index.ChunkTargetChars)
	}

	switch c.Crawl.Renderer {
	case RendererHTTP, RendererChromedp:
	default:
		return fmt.Errorf("crawl.renderer must be %q or %q, got %q", RendererHTTP, RendererChromedp, c.Crawl.Renderer)
	}

	if t := c.Retrieval.DefaultTemperature; t < 0 || t > 1 {
		return fmt.Errorf("retrieval.default_temperature must be within [0, 1], got %v", t)
	}

	switch c.Cache.Driver {
	case CacheMemory, CacheNone:
	case CacheRedis:
		if len(c.Cache.Addrs) == 0 {
			return fmt.Errorf("cache.addrs is required for the %q driver", CacheRedis)
		}
		if c.Cache.ClientCacheSec < 0 {
			return fmt.Errorf("cache.client_cache_sec must not be negative, got %d", c.Cache.ClientCacheSec)
		}
	default:
		return fmt.Errorf("cache.driver must be one of %q, %q, %q, got %q",
			CacheMemory, CacheRedis, CacheNone, c.Cache.Driver)
	}
	return nil
}

// findConfigPath locates the config file.
func findConfigPath(env string) string {
	filename := fmt.Sprintf("%s.yaml", env)

	// 1. Check ./config/
	if path := filepath.Join("config", filename); fileExists(path) {
		return path
	}

	// 2. Check relative to the source file
	_, b, _, _ := runtime.Caller(0)
	projectRoot := filepath.Dir(filepath.Dir(filepath.Dir(b))) // internal/config -> project root
	if path := filepath.Join(projectRoot, "config", filename); fileExists(path) {
		return path
	}

	// 3. Fallback to ./config/
	return filepath.Join("config", filename)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// expandEnvVars replaces ${VAR} and ${VAR:-default} with environment variable values.
var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

func expandEnvVars(data []byte) []byte {
	return envVarRegex.ReplaceAllFunc(data, func(match []byte) []byte {
		expr := string(match[2 : len(match)-1]) // strip ${ and }
		varName, defaultVal, hasDefault := strings.Cut(expr, ":-")
		val := os.Getenv(varName)
		if val == "" && hasDefault {
			val = defaultVal
		}
		return []byte(val)
	})
}
