package config

import (
	"strings"
	"testing"
)

func validConfig() Config {
	cfg := Config{
		Provider: ProviderConfig{Kind: ProviderOllama, EmbedModel: "nomic-embed-text", GenModel: "llama3.1"},
	}
	cfg.ApplyDefaults()
	return cfg
}

func TestApplyDefaults(t *testing.T) {
	cfg := validConfig()

	if cfg.HTTP.Port != 8080 {
		t.Errorf("http.port = %d", cfg.HTTP.Port)
	}
	if cfg.Embedding.MaxChars != 750 || cfg.Embedding.NumCtx != 2048 {
		t.Errorf("embedding defaults = %+v", cfg.Embedding)
	}
	if cfg.Index.ChunkTargetChars != 700 || cfg.Index.ChunkOverlapChars != 120 || cfg.Index.EmbedWorkers != 1 {
		t.Errorf("index defaults = %+v", cfg.Index)
	}
	if cfg.Crawl.DefaultDepth != 4 || cfg.Crawl.DefaultMaxPages != 400 || cfg.Crawl.Renderer != RendererHTTP {
		t.Errorf("crawl defaults = %+v", cfg.Crawl)
	}
	if cfg.Retrieval.DefaultK != 18 || cfg.Retrieval.ListK != 30 || cfg.Retrieval.DefaultTemperature != 0.25 {
		t.Errorf("retrieval defaults = %+v", cfg.Retrieval)
	}
	if cfg.Cache.Driver != CacheMemory {
		t.Errorf("cache.driver = %q", cfg.Cache.Driver)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults must validate: %v", err)
	}
}

func TestApplyDefaults_NegativePolitenessKept(t *testing.T) {
	cfg := Config{Crawl: CrawlConfig{PolitenessMs: -1}}
	cfg.ApplyDefaults()
	if cfg.Crawl.PolitenessMs != -1 {
		t.Errorf("negative politeness disables the delay and must be kept, got %d", cfg.Crawl.PolitenessMs)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"invalid port", func(c *Config) { c.HTTP.Port = 70000 }, "http.port"},
		{"unknown provider", func(c *Config) { c.Provider.Kind = "bedrock" }, "provider.kind"},
		{"openai without key", func(c *Config) { c.Provider.Kind = ProviderOpenAI }, "provider.api_key"},
		{"missing gen model", func(c *Config) { c.Provider.GenModel = "" }, "provider.gen_model"},
		{"missing embed model", func(c *Config) { c.Provider.EmbedModel = "" }, "provider.embed_model"},
		{"overlap above target", func(c *Config) { c.Index.ChunkOverlapChars = 700 }, "chunk_overlap_chars"},
		{"unknown renderer", func(c *Config) { c.Crawl.Renderer = "phantomjs" }, "crawl.renderer"},
		{"temperature out of range", func(c *Config) { c.Retrieval.DefaultTemperature = 1.5 }, "default_temperature"},
		{"redis without addrs", func(c *Config) { c.Cache.Driver = CacheRedis }, "cache.addrs"},
		{"unknown cache", func(c *Config) { c.Cache.Driver = "memcached" }, "cache.driver"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error %q does not mention %q", err, tt.wantErr)
			}
		})
	}
}

func TestValidate_DisabledEmbeddingNeedsNoModel(t *testing.T) {
	cfg := validConfig()
	cfg.Provider.EmbedModel = ""
	cfg.Embedding.Disabled = true
	if err := cfg.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestParse_ExpandsEnv(t *testing.T) {
	t.Setenv("SITEQA_TEST_KEY", "sk-test")

	cfg, err := Parse([]byte(`
provider:
  kind: openai
  api_key: ${SITEQA_TEST_KEY}
  base_url: ${SITEQA_TEST_URL:-https://api.example.com/v1}
  embed_model: text-embedding-3-small
  gen_model: gpt-4o-mini
cache:
  driver: redis
  addrs: ["localhost:6379"]
`))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if cfg.Provider.APIKey != "sk-test" {
		t.Errorf("api_key = %q", cfg.Provider.APIKey)
	}
	if cfg.Provider.BaseURL != "https://api.example.com/v1" {
		t.Errorf("base_url = %q", cfg.Provider.BaseURL)
	}
	if cfg.Cache.Addrs[0] != "localhost:6379" {
		t.Errorf("cache.addrs = %v", cfg.Cache.Addrs)
	}
}

func TestParse_Invalid(t *testing.T) {
	if _, err := Parse([]byte("provider: [")); err == nil {
		t.Error("expected YAML error")
	}
	if _, err := Parse([]byte("provider:\n  kind: ollama\n")); err == nil {
		t.Error("expected validation error for missing models")
	}
}
