package config

import (
	"fmt"
	"io"
	"os"
	"runtime"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
)

const (
	maxConfigFileSize = 1024 * 1024 // 1MB
)

// envAliases maps the documented flat environment variables onto config
// paths. Anything not listed here falls through to the generic
// SECTION_FIELD_NAME -> section.field_name mapping.
var envAliases = map[string]string{
	"API_SECRET_KEY":    "server.secret_key",
	"ALLOWED_ORIGIN":    "server.allowed_origin",
	"SITE_DOMAIN":       "site.domain",
	"PINECONE_INDEX":    "catalog.index",
	"ANTHROPIC_API_KEY": "llm.api_key",
	"OPENAI_API_KEY":    "embeddings.api_key",
	"QDRANT_HOST":       "catalog.host",
	"QDRANT_PORT":       "catalog.port",
	"QDRANT_API_KEY":    "catalog.api_key",
	"QDRANT_USE_TLS":    "catalog.use_tls",
	"LOG_LEVEL":         "logging.level",
	"LOG_FORMAT":        "logging.format",
}

// Load loads configuration from an optional YAML file, then overrides with
// environment variables.
//
// Configuration precedence (highest to lowest):
//  1. Environment variables (API_SECRET_KEY, SERVER_PORT, SEO_REFRESH_TTL, ...)
//  2. YAML config file (path given by the caller; skipped when empty)
//  3. Hardcoded defaults
//
// Environment variables use underscore separator and are uppercased. The
// documented flat names (API_SECRET_KEY, PINECONE_INDEX, ANTHROPIC_API_KEY,
// OPENAI_API_KEY, SITE_DOMAIN, ALLOWED_ORIGIN) are aliased onto their config
// sections; everything else splits on the first underscore:
//
//	SERVER_PORT          -> server.port
//	SEO_REFRESH_TTL      -> seo.refresh_ttl
//	RECOMMEND_CACHE_TTL  -> recommend.cache_ttl
func Load(configPath string) (*Config, error) {
	k := koanf.New(".")

	if configPath != "" {
		// Open once and validate via the file descriptor to avoid a
		// TOCTOU race between stat and read.
		f, err := os.Open(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to open config file: %w", err)
		}
		defer f.Close()

		info, err := f.Stat()
		if err != nil {
			return nil, fmt.Errorf("failed to stat config file: %w", err)
		}
		if err := validateConfigFileProperties(info); err != nil {
			return nil, fmt.Errorf("config file validation failed: %w", err)
		}

		content, err := io.ReadAll(f)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := k.Load(rawbytes.Provider(content), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	if err := k.Load(env.Provider("", ".", transformEnv), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// transformEnv maps an environment variable name to a koanf config path.
func transformEnv(s string) string {
	if path, ok := envAliases[s]; ok {
		return path
	}

	lower := strings.ToLower(s)
	parts := strings.SplitN(lower, "_", 2)
	if len(parts) == 1 {
		return lower
	}

	// section.field_name: split on first underscore only so field names
	// keep their remaining underscores.
	return parts[0] + "." + parts[1]
}

// validateConfigFileProperties checks file permissions and size.
func validateConfigFileProperties(info os.FileInfo) error {
	// Config files carry the API secret; require owner-only access.
	// Skip on Windows (different permission model).
	if runtime.GOOS != "windows" {
		perm := info.Mode().Perm()
		if perm != 0600 && perm != 0400 {
			return fmt.Errorf("insecure config file permissions: %v (expected 0600 or 0400)", perm)
		}
	}

	if info.Size() > maxConfigFileSize {
		return fmt.Errorf("config file too large: %d bytes (max %d)", info.Size(), maxConfigFileSize)
	}

	return nil
}
