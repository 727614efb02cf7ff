// Package llm wraps the Anthropic Messages API behind typed content
// operations (summarize, keyword extraction, analysis, anchor selection,
// re-ranking).
//
// Every operation asks the model for JSON, extracts the outermost
// balanced object or array from the reply, and degrades to a documented
// default when the reply cannot be parsed. Transport failures are retried
// with exponential backoff and propagate as errors once retries are
// exhausted; a malformed reply never fails a request.
package llm

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/time/rate"
)

var tracer = otel.Tracer("linkd.llm")

var (
	// ErrInvalidConfig indicates invalid configuration
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrMalformedReply indicates the model reply held no parseable JSON.
	ErrMalformedReply = errors.New("malformed model reply")
)

// DefaultModel is the model used when none is configured.
const DefaultModel = "claude-sonnet-4-20250514"

// Config holds configuration for the LLM client.
type Config struct {
	// APIKey is the Anthropic API key. When empty the client still
	// constructs, but every call fails; Configured() reports this.
	APIKey string

	// Model is the model to use. Default: claude-sonnet-4-20250514
	Model string

	// BaseURL overrides the API endpoint. Empty uses the Anthropic
	// default.
	BaseURL string

	// MaxTokens caps the reply length. Default: 4096
	MaxTokens int

	// Timeout bounds a single-article operation including retries.
	// Default: 60s
	Timeout time.Duration

	// BatchTimeout bounds one batch-analysis chunk including retries.
	// Default: 300s
	BatchTimeout time.Duration

	// MaxRetries is the retry budget for transient failures. Default: 3
	MaxRetries int

	// RetryBackoff is the initial backoff, doubling per retry.
	// Default: 1s
	RetryBackoff time.Duration

	// RequestsPerSecond throttles outgoing calls. Default: 2
	RequestsPerSecond float64

	// Burst is the limiter burst size. Default: 4
	Burst int
}

// Validate validates the configuration.
func (c Config) Validate() error {
	if c.Model == "" {
		return fmt.Errorf("%w: model required", ErrInvalidConfig)
	}
	if c.MaxTokens <= 0 {
		return fmt.Errorf("%w: max tokens must be positive", ErrInvalidConfig)
	}
	return nil
}

// ApplyDefaults sets default values for unset fields.
func (c *Config) ApplyDefaults() {
	if c.Model == "" {
		c.Model = DefaultModel
	}
	if c.MaxTokens == 0 {
		c.MaxTokens = 4096
	}
	if c.Timeout == 0 {
		c.Timeout = 60 * time.Second
	}
	if c.BatchTimeout == 0 {
		c.BatchTimeout = 300 * time.Second
	}
	if c.MaxRetries == 0 {
		c.MaxRetries = 3
	}
	if c.RetryBackoff == 0 {
		c.RetryBackoff = time.Second
	}
	if c.RequestsPerSecond == 0 {
		c.RequestsPerSecond = 2
	}
	if c.Burst == 0 {
		c.Burst = 4
	}
}

// backend performs one model call and returns the concatenated text reply.
type backend interface {
	complete(ctx context.Context, params anthropic.MessageNewParams) (string, error)
}

// anthropicBackend is the production backend on the official SDK.
type anthropicBackend struct {
	client anthropic.Client
}

func (b *anthropicBackend) complete(ctx context.Context, params anthropic.MessageNewParams) (string, error) {
	msg, err := b.client.Messages.New(ctx, params)
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}
	return sb.String(), nil
}

// Client is the typed LLM operations client.
type Client struct {
	config  Config
	backend backend
	limiter *rate.Limiter
}

// New creates a new LLM client with the given configuration.
func New(config Config) (*Client, error) {
	config.ApplyDefaults()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	opts := []option.RequestOption{
		option.WithAPIKey(config.APIKey),
		// Retries are handled here so backoff and budget stay visible.
		option.WithMaxRetries(0),
	}
	if config.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(config.BaseURL))
	}

	return &Client{
		config:  config,
		backend: &anthropicBackend{client: anthropic.NewClient(opts...)},
		limiter: rate.NewLimiter(rate.Limit(config.RequestsPerSecond), config.Burst),
	}, nil
}

// Configured reports whether an API key is present.
func (c *Client) Configured() bool {
	return c.config.APIKey != ""
}

// Model returns the configured model.
func (c *Client) Model() string {
	return c.config.Model
}

// complete runs one operation against the model with rate limiting and
// retry. The timeout covers all attempts.
func (c *Client) complete(ctx context.Context, op, system, prompt string, timeout time.Duration) (string, error) {
	ctx, span := tracer.Start(ctx, "llm."+op)
	defer span.End()

	span.SetAttributes(
		attribute.String("llm.model", c.config.Model),
		attribute.Int("prompt_chars", len(prompt)),
	)

	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(c.config.Model),
		MaxTokens: int64(c.config.MaxTokens),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	}
	if system != "" {
		params.System = []anthropic.TextBlockParam{{Text: system}}
	}

	backoff := c.config.RetryBackoff
	var lastErr error

	for attempt := 0; attempt <= c.config.MaxRetries; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return "", fmt.Errorf("%s: waiting for rate limiter: %w", op, err)
		}

		reply, err := c.backend.complete(ctx, params)
		if err == nil {
			span.SetAttributes(attribute.Int("reply_chars", len(reply)))
			span.SetStatus(codes.Ok, "success")
			return reply, nil
		}
		lastErr = err

		if !isTransient(err) {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return "", fmt.Errorf("%s failed (permanent): %w", op, err)
		}

		if attempt == c.config.MaxRetries {
			break
		}

		select {
		case <-ctx.Done():
			return "", fmt.Errorf("%s canceled: %w", op, ctx.Err())
		case <-time.After(backoff):
			backoff *= 2
		}
	}

	span.RecordError(lastErr)
	span.SetStatus(codes.Error, lastErr.Error())
	return "", fmt.Errorf("%s failed after %d retries: %w", op, c.config.MaxRetries, lastErr)
}

// isTransient checks if an error is transient (should retry).
// Rate limits, overload, and 5xx responses retry; auth and validation
// failures do not.
func isTransient(err error) bool {
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		switch apiErr.StatusCode {
		case http.StatusRequestTimeout,
			http.StatusTooManyRequests,
			http.StatusInternalServerError,
			http.StatusBadGateway,
			http.StatusServiceUnavailable,
			http.StatusGatewayTimeout:
			return true
		case 529: // anthropic overloaded_error
			return true
		}
		return false
	}

	var netErr net.Error
	return errors.As(err, &netErr)
}

// truncate cuts s to at most max bytes without splitting a rune.
func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	cut := s[:max]
	for len(cut) > 0 && !utf8.ValidString(cut) {
		cut = cut[:len(cut)-1]
	}
	return cut
}
