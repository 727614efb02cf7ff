// Package embeddings generates article and query vectors via langchaingo.
//
// It wraps langchaingo's OpenAI-compatible embedding client, so it works
// against the OpenAI API and any server speaking the same protocol. Article
// vectors are composed from weighted fields rather than raw body text: the
// title carries the most signal for internal-link matching, so it is
// repeated for emphasis ahead of the summary and a truncated body.
package embeddings

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/openai"
)

var (
	// ErrEmptyInput indicates empty or nil input texts
	ErrEmptyInput = errors.New("empty or nil input texts")

	// ErrInvalidConfig indicates invalid configuration
	ErrInvalidConfig = errors.New("invalid configuration")
)

const (
	// DefaultModel is the embedding model used when none is configured.
	DefaultModel = "text-embedding-3-small"

	// titleWeight is how many times the title is repeated in the
	// composed article text.
	titleWeight = 3

	// maxBodyChars caps the body portion of the composed article text,
	// keeping the request inside the model's token budget.
	maxBodyChars = 24000
)

// modelDimensions maps known embedding models to their vector sizes.
var modelDimensions = map[string]int{
	"text-embedding-3-small": 1536,
	"text-embedding-3-large": 3072,
	"text-embedding-ada-002": 1536,
}

// Dimensions returns the vector size of a known model, or 0 when the model
// is not recognized and the collection size must be configured explicitly.
func Dimensions(model string) int {
	return modelDimensions[model]
}

// Config holds configuration for the embedding service.
type Config struct {
	// APIKey is the OpenAI API key. Optional for OpenAI-compatible
	// servers that do not authenticate.
	APIKey string

	// Model is the embedding model to use.
	// Default: text-embedding-3-small
	Model string

	// BaseURL overrides the API endpoint for OpenAI-compatible servers.
	// Empty uses the OpenAI default.
	BaseURL string

	// Timeout bounds each embedding call. Zero disables the bound.
	Timeout time.Duration
}

// Validate validates the configuration.
func (c Config) Validate() error {
	if c.Model == "" {
		return fmt.Errorf("%w: model required", ErrInvalidConfig)
	}
	return nil
}

// ApplyDefaults sets default values for unset fields.
func (c *Config) ApplyDefaults() {
	if c.Model == "" {
		c.Model = DefaultModel
	}
}

// Service generates embeddings for articles and queries.
type Service struct {
	embedder *embeddings.EmbedderImpl
	config   Config
}

// NewService creates a new embedding service with the given configuration.
func NewService(config Config) (*Service, error) {
	config.ApplyDefaults()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	// langchaingo requires a token even for servers that ignore it.
	apiKey := config.APIKey
	if apiKey == "" {
		apiKey = "placeholder"
	}

	opts := []openai.Option{
		openai.WithModel(config.Model),
		openai.WithEmbeddingModel(config.Model),
		openai.WithToken(apiKey),
	}
	if config.BaseURL != "" {
		opts = append(opts, openai.WithBaseURL(config.BaseURL))
	}

	llm, err := openai.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("creating OpenAI client: %w", err)
	}

	embedder, err := embeddings.NewEmbedder(llm)
	if err != nil {
		return nil, fmt.Errorf("creating embedder: %w", err)
	}

	return &Service{
		embedder: embedder,
		config:   config,
	}, nil
}

// Model returns the configured embedding model.
func (s *Service) Model() string {
	return s.config.Model
}

// Embed generates unit-norm embeddings for the given texts.
//
// Returns ErrEmptyInput if texts is empty or nil. Provider errors propagate
// unchanged so callers can decide what is retryable.
func (s *Service) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, fmt.Errorf("%w: texts cannot be empty", ErrEmptyInput)
	}

	ctx, cancel := s.opContext(ctx)
	defer cancel()

	vectors, err := s.embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("embedding documents: %w", err)
	}

	for i := range vectors {
		Normalize(vectors[i])
	}
	return vectors, nil
}

// EmbedQuery generates a unit-norm embedding for a single query text.
func (s *Service) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("%w: text cannot be empty", ErrEmptyInput)
	}

	ctx, cancel := s.opContext(ctx)
	defer cancel()

	vector, err := s.embedder.EmbedQuery(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}

	Normalize(vector)
	return vector, nil
}

// EmbedArticle generates a unit-norm embedding for an article from its
// weighted fields.
func (s *Service) EmbedArticle(ctx context.Context, title, summary, body string) ([]float32, error) {
	text := ComposeArticleText(title, summary, body)
	if text == "" {
		return nil, fmt.Errorf("%w: article has no embeddable text", ErrEmptyInput)
	}
	return s.EmbedQuery(ctx, text)
}

func (s *Service) opContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.config.Timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, s.config.Timeout)
}

// ComposeArticleText builds the text an article is embedded from: the title
// repeated for emphasis, then the summary, then the body truncated to the
// input budget.
func ComposeArticleText(title, summary, body string) string {
	var b strings.Builder

	title = strings.TrimSpace(title)
	if title != "" {
		for i := 0; i < titleWeight; i++ {
			b.WriteString(title)
			b.WriteString("\n")
		}
	}

	summary = strings.TrimSpace(summary)
	if summary != "" {
		b.WriteString(summary)
		b.WriteString("\n")
	}

	body = truncateRunes(strings.TrimSpace(body), maxBodyChars)
	b.WriteString(body)

	return strings.TrimSpace(b.String())
}

// Normalize scales the vector to unit length in place. Zero vectors are
// left untouched.
func Normalize(vec []float32) {
	var sum float64
	for _, v := range vec {
		sum += float64(v) * float64(v)
	}
	if sum == 0 {
		return
	}
	norm := math.Sqrt(sum)
	for i := range vec {
		vec[i] = float32(float64(vec[i]) / norm)
	}
}

// truncateRunes cuts s to at most max bytes without splitting a rune.
func truncateRunes(s string, max int) string {
	if len(s) <= max {
		return s
	}
	cut := s[:max]
	for len(cut) > 0 && !utf8.ValidString(cut) {
		cut = cut[:len(cut)-1]
	}
	return cut
}
