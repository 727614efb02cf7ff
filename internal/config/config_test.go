package config

import (
	"encoding/json"
	"fmt"
	"strings"
	"testing"
	"time"
)

// validConfig returns a Config that passes Validate.
func validConfig() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	cfg.Server.SecretKey = "test-secret"
	return cfg
}

func TestApplyDefaults(t *testing.T) {
	cfg := &Config{}
	applyDefaults(cfg)

	if cfg.Server.Port != 8080 {
		t.Errorf("Server.Port = %d, want 8080", cfg.Server.Port)
	}
	if cfg.Server.AllowedOrigin != "*" {
		t.Errorf("Server.AllowedOrigin = %q, want *", cfg.Server.AllowedOrigin)
	}
	if cfg.Server.ShutdownTimeout != 10*time.Second {
		t.Errorf("Server.ShutdownTimeout = %v, want 10s", cfg.Server.ShutdownTimeout)
	}
	if cfg.Catalog.Host != "localhost" || cfg.Catalog.Port != 6334 {
		t.Errorf("Catalog endpoint = %s:%d, want localhost:6334", cfg.Catalog.Host, cfg.Catalog.Port)
	}
	if cfg.Catalog.VectorSize != 1536 {
		t.Errorf("Catalog.VectorSize = %d, want 1536", cfg.Catalog.VectorSize)
	}
	if cfg.Catalog.ListLimit != 10000 {
		t.Errorf("Catalog.ListLimit = %d, want 10000", cfg.Catalog.ListLimit)
	}
	if cfg.LLM.Model != "claude-sonnet-4-20250514" {
		t.Errorf("LLM.Model = %q, want default model", cfg.LLM.Model)
	}
	if cfg.LLM.Timeout != 60*time.Second || cfg.LLM.BatchTimeout != 300*time.Second {
		t.Errorf("LLM timeouts = %v/%v, want 60s/300s", cfg.LLM.Timeout, cfg.LLM.BatchTimeout)
	}
	if cfg.Recommend.CacheTTL != 24*time.Hour {
		t.Errorf("Recommend.CacheTTL = %v, want 24h", cfg.Recommend.CacheTTL)
	}
	if cfg.Recommend.CacheMaxEntries != 1000 {
		t.Errorf("Recommend.CacheMaxEntries = %d, want 1000", cfg.Recommend.CacheMaxEntries)
	}
	if cfg.SEO.RefreshTTL != 15*time.Minute {
		t.Errorf("SEO.RefreshTTL = %v, want 15m", cfg.SEO.RefreshTTL)
	}
	if cfg.SEO.ArticleTTL != 10*time.Minute {
		t.Errorf("SEO.ArticleTTL = %v, want 10m", cfg.SEO.ArticleTTL)
	}
	if cfg.Logging.Level != "info" || cfg.Logging.Format != "json" {
		t.Errorf("Logging defaults = %s/%s, want info/json", cfg.Logging.Level, cfg.Logging.Format)
	}
	if cfg.Observability.ServiceName != "linkd" {
		t.Errorf("Observability.ServiceName = %q, want linkd", cfg.Observability.ServiceName)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid", func(c *Config) {}, ""},
		{"port zero", func(c *Config) { c.Server.Port = 0 }, "invalid server port"},
		{"port too high", func(c *Config) { c.Server.Port = 70000 }, "invalid server port"},
		{"negative shutdown", func(c *Config) { c.Server.ShutdownTimeout = -time.Second }, "shutdown timeout"},
		{"missing secret", func(c *Config) { c.Server.SecretKey = "" }, "secret key"},
		{"empty index", func(c *Config) { c.Catalog.Index = "" }, "index name"},
		{"bad vector size", func(c *Config) { c.Catalog.VectorSize = -1 }, "vector size"},
		{"bad log format", func(c *Config) { c.Logging.Format = "xml" }, "log format"},
		{"bad otlp protocol", func(c *Config) { c.Observability.OTLPProtocol = "thrift" }, "OTLP protocol"},
		{"bad sample ratio", func(c *Config) { c.Observability.SampleRatio = 1.5 }, "sample ratio"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("Validate() error = %v, want nil", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("Validate() = nil, want error containing %q", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestSecretRedaction(t *testing.T) {
	s := Secret("hunter2")

	if got := s.String(); got != "[REDACTED]" {
		t.Errorf("String() = %q, want [REDACTED]", got)
	}
	if got := fmt.Sprintf("%v", s); got != "[REDACTED]" {
		t.Errorf("%%v = %q, want [REDACTED]", got)
	}
	if got := fmt.Sprintf("%#v", s); got != "Secret([REDACTED])" {
		t.Errorf("%%#v = %q, want Secret([REDACTED])", got)
	}
	if got := s.Value(); got != "hunter2" {
		t.Errorf("Value() = %q, want raw secret", got)
	}

	b, err := json.Marshal(s)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	if string(b) != `"[REDACTED]"` {
		t.Errorf("Marshal() = %s, want redacted", b)
	}

	var empty Secret
	if empty.IsSet() {
		t.Error("empty Secret IsSet() = true, want false")
	}
	if empty.String() != "" {
		t.Errorf("empty Secret String() = %q, want empty", empty.String())
	}
}
