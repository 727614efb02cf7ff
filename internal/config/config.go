// Package config provides configuration loading for linkd.
//
// Configuration is loaded from an optional YAML file, then overridden by
// environment variables. Every section has sensible defaults so that the
// service boots with nothing but the provider credentials set.
package config

import (
	"errors"
	"fmt"
	"time"
)

// Config holds the complete linkd configuration.
type Config struct {
	Server        ServerConfig        `koanf:"server"`
	Site          SiteConfig          `koanf:"site"`
	Catalog       CatalogConfig       `koanf:"catalog"`
	Embeddings    EmbeddingsConfig    `koanf:"embeddings"`
	LLM           LLMConfig           `koanf:"llm"`
	Recommend     RecommendConfig     `koanf:"recommend"`
	SEO           SEOConfig           `koanf:"seo"`
	Logging       LoggingConfig       `koanf:"logging"`
	Observability ObservabilityConfig `koanf:"observability"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port            int           `koanf:"port"`
	SecretKey       Secret        `koanf:"secret_key"`
	AllowedOrigin   string        `koanf:"allowed_origin"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

// SiteConfig identifies the content site the service links within.
type SiteConfig struct {
	// Domain is the canonical site domain, used to recognise internal URLs
	// and branded anchor text (e.g. "example.com").
	Domain string `koanf:"domain"`
}

// CatalogConfig holds vector catalog (Qdrant) configuration.
type CatalogConfig struct {
	Host       string        `koanf:"host"`
	Port       int           `koanf:"port"`
	APIKey     Secret        `koanf:"api_key"`
	UseTLS     bool          `koanf:"use_tls"`
	Index      string        `koanf:"index"`
	VectorSize int           `koanf:"vector_size"`
	Timeout    time.Duration `koanf:"timeout"`
	MaxRetries int           `koanf:"max_retries"`
	// ListLimit bounds a single full-catalog scroll during cache refresh.
	ListLimit int `koanf:"list_limit"`
}

// EmbeddingsConfig holds embedding provider (OpenAI) configuration.
type EmbeddingsConfig struct {
	APIKey  Secret        `koanf:"api_key"`
	Model   string        `koanf:"model"`
	BaseURL string        `koanf:"base_url"`
	Timeout time.Duration `koanf:"timeout"`
}

// LLMConfig holds LLM provider (Anthropic) configuration.
type LLMConfig struct {
	APIKey    Secret `koanf:"api_key"`
	Model     string `koanf:"model"`
	MaxTokens int    `koanf:"max_tokens"`
	// Timeout bounds single-shot calls; BatchTimeout bounds batch analysis.
	Timeout           time.Duration `koanf:"timeout"`
	BatchTimeout      time.Duration `koanf:"batch_timeout"`
	MaxRetries        int           `koanf:"max_retries"`
	RequestsPerSecond float64       `koanf:"requests_per_second"`
	Burst             int           `koanf:"burst"`
}

// RecommendConfig holds recommendation response cache configuration.
type RecommendConfig struct {
	CacheTTL        time.Duration `koanf:"cache_ttl"`
	CacheMaxEntries int           `koanf:"cache_max_entries"`
}

// SEOConfig holds SEO cache refresh configuration.
type SEOConfig struct {
	RefreshTTL time.Duration `koanf:"refresh_ttl"`
	ArticleTTL time.Duration `koanf:"article_ttl"`
}

// LoggingConfig holds zap logger configuration.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// ObservabilityConfig holds OpenTelemetry configuration.
type ObservabilityConfig struct {
	Enabled      bool    `koanf:"enabled"`
	ServiceName  string  `koanf:"service_name"`
	OTLPEndpoint string  `koanf:"otlp_endpoint"`
	OTLPProtocol string  `koanf:"otlp_protocol"`
	SampleRatio  float64 `koanf:"sample_ratio"`
}

// applyDefaults sets default values for missing configuration fields.
func applyDefaults(cfg *Config) {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.AllowedOrigin == "" {
		cfg.Server.AllowedOrigin = "*"
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = 10 * time.Second
	}

	if cfg.Catalog.Host == "" {
		cfg.Catalog.Host = "localhost"
	}
	if cfg.Catalog.Port == 0 {
		cfg.Catalog.Port = 6334
	}
	if cfg.Catalog.Index == "" {
		cfg.Catalog.Index = "linkd_articles"
	}
	if cfg.Catalog.VectorSize == 0 {
		cfg.Catalog.VectorSize = 1536 // text-embedding-3-small dimensions
	}
	if cfg.Catalog.Timeout == 0 {
		cfg.Catalog.Timeout = 15 * time.Second
	}
	if cfg.Catalog.MaxRetries == 0 {
		cfg.Catalog.MaxRetries = 3
	}
	if cfg.Catalog.ListLimit == 0 {
		cfg.Catalog.ListLimit = 10000
	}

	if cfg.Embeddings.Model == "" {
		cfg.Embeddings.Model = "text-embedding-3-small"
	}
	if cfg.Embeddings.Timeout == 0 {
		cfg.Embeddings.Timeout = 60 * time.Second
	}

	if cfg.LLM.Model == "" {
		cfg.LLM.Model = "claude-sonnet-4-20250514"
	}
	if cfg.LLM.MaxTokens == 0 {
		cfg.LLM.MaxTokens = 4096
	}
	if cfg.LLM.Timeout == 0 {
		cfg.LLM.Timeout = 60 * time.Second
	}
	if cfg.LLM.BatchTimeout == 0 {
		cfg.LLM.BatchTimeout = 300 * time.Second
	}
	if cfg.LLM.MaxRetries == 0 {
		cfg.LLM.MaxRetries = 3
	}
	if cfg.LLM.RequestsPerSecond == 0 {
		cfg.LLM.RequestsPerSecond = 2
	}
	if cfg.LLM.Burst == 0 {
		cfg.LLM.Burst = 4
	}

	if cfg.Recommend.CacheTTL == 0 {
		cfg.Recommend.CacheTTL = 24 * time.Hour
	}
	if cfg.Recommend.CacheMaxEntries == 0 {
		cfg.Recommend.CacheMaxEntries = 1000
	}

	if cfg.SEO.RefreshTTL == 0 {
		cfg.SEO.RefreshTTL = 15 * time.Minute
	}
	if cfg.SEO.ArticleTTL == 0 {
		cfg.SEO.ArticleTTL = 10 * time.Minute
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}

	if cfg.Observability.ServiceName == "" {
		cfg.Observability.ServiceName = "linkd"
	}
	if cfg.Observability.OTLPProtocol == "" {
		cfg.Observability.OTLPProtocol = "grpc"
	}
	if cfg.Observability.SampleRatio == 0 {
		cfg.Observability.SampleRatio = 1.0
	}
}

// Validate validates the configuration.
//
// Provider API keys are deliberately not required here: the service boots
// without them and reports a degraded health status instead, so that the
// catalog endpoints keep working while credentials are being rotated.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d (must be 1-65535)", c.Server.Port)
	}
	if c.Server.ShutdownTimeout <= 0 {
		return errors.New("shutdown timeout must be positive")
	}
	if !c.Server.SecretKey.IsSet() {
		return errors.New("server secret key required (set API_SECRET_KEY)")
	}

	if c.Catalog.Port < 1 || c.Catalog.Port > 65535 {
		return fmt.Errorf("invalid catalog port: %d (must be 1-65535)", c.Catalog.Port)
	}
	if c.Catalog.Index == "" {
		return errors.New("catalog index name required")
	}
	if c.Catalog.VectorSize < 1 {
		return fmt.Errorf("invalid vector size: %d", c.Catalog.VectorSize)
	}

	if c.Recommend.CacheTTL <= 0 {
		return errors.New("recommend cache TTL must be positive")
	}
	if c.SEO.RefreshTTL <= 0 || c.SEO.ArticleTTL <= 0 {
		return errors.New("seo cache TTLs must be positive")
	}

	switch c.Logging.Format {
	case "json", "console":
	default:
		return fmt.Errorf("invalid log format: %q (must be json or console)", c.Logging.Format)
	}

	if c.Observability.Enabled && c.Observability.ServiceName == "" {
		return errors.New("service name required when telemetry is enabled")
	}
	switch c.Observability.OTLPProtocol {
	case "", "grpc", "http/protobuf":
	default:
		return fmt.Errorf("invalid OTLP protocol: %q (must be grpc or http/protobuf)", c.Observability.OTLPProtocol)
	}
	if c.Observability.SampleRatio < 0 || c.Observability.SampleRatio > 1 {
		return fmt.Errorf("invalid sample ratio: %g (must be 0-1)", c.Observability.SampleRatio)
	}

	return nil
}
