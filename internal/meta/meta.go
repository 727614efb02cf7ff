// Package meta generates SEO meta tags for an article, optionally with
// keyword extraction and link-aware related content.
package meta

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/linkd/internal/catalog"
	"github.com/fyrsmithlabs/linkd/internal/embeddings"
	"github.com/fyrsmithlabs/linkd/internal/htmlx"
	"github.com/fyrsmithlabs/linkd/internal/llm"
)

// relatedTopK is how many related articles the link-aware path surfaces.
const relatedTopK = 3

// Embedder turns text into a query vector.
type Embedder interface {
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// LanguageModel covers the model operations meta generation uses.
type LanguageModel interface {
	Configured() bool
	GenerateMeta(ctx context.Context, title, summary string, keywords []string) (*llm.Meta, error)
	ExtractKeywords(ctx context.Context, title, body string) (llm.Keywords, error)
}

// Request is the meta-generate request body.
type Request struct {
	Title                  string `json:"title"`
	Content                string `json:"content"`
	Summary                string `json:"summary,omitempty"`
	TopicCluster           string `json:"topicCluster,omitempty"`
	FocusKeyword           string `json:"focusKeyword,omitempty"`
	PostID                 int    `json:"postId,omitempty"`
	IncludeRelatedKeywords bool   `json:"includeRelatedKeywords,omitempty"`
	LinkAwareMeta          bool   `json:"linkAwareMeta,omitempty"`
}

// RelatedArticle is one catalog neighbor of the drafted content.
type RelatedArticle struct {
	PostID       int     `json:"postId"`
	Title        string  `json:"title"`
	URL          string  `json:"url"`
	Similarity   float64 `json:"similarity"`
	TopicCluster string  `json:"topicCluster,omitempty"`
}

// LinkSuggestion proposes where the new content should link first.
type LinkSuggestion struct {
	PostID     int    `json:"postId"`
	Title      string `json:"title"`
	URL        string `json:"url"`
	AnchorText string `json:"anchorText"`
}

// Result is the meta-generate response body.
type Result struct {
	Meta           llm.Meta         `json:"meta"`
	Reasoning      string           `json:"reasoning,omitempty"`
	FocusKeyword   string           `json:"focusKeyword,omitempty"`
	Keywords       *llm.Keywords    `json:"keywords,omitempty"`
	RelatedContent []RelatedArticle `json:"relatedContent,omitempty"`
	LinkSuggestion *LinkSuggestion  `json:"linkSuggestion,omitempty"`
}

// Service generates meta tags against the catalog and the model.
type Service struct {
	store    catalog.Store
	embedder Embedder
	model    LanguageModel
	logger   *zap.Logger
}

func NewService(store catalog.Store, embedder Embedder, model LanguageModel, logger *zap.Logger) *Service {
	return &Service{store: store, embedder: embedder, model: model, logger: logger}
}

// Generate produces meta tags for drafted content. Model failures degrade
// to deterministic fallbacks; only catalog access errors fail the call.
func (s *Service) Generate(ctx context.Context, req *Request) (*Result, error) {
	plain := htmlx.Plaintext(req.Content)
	summary := req.Summary
	if summary == "" {
		summary = llm.FallbackSummary(plain)
	}

	var keywords *llm.Keywords
	if req.IncludeRelatedKeywords && s.model.Configured() {
		kw, err := s.model.ExtractKeywords(ctx, req.Title, plain)
		if err != nil {
			s.logger.Warn("keyword extraction failed", zap.Error(err))
		} else {
			keywords = &kw
		}
	}

	var promptKeywords []string
	if req.FocusKeyword != "" {
		promptKeywords = append(promptKeywords, req.FocusKeyword)
	}
	if keywords != nil {
		promptKeywords = append(promptKeywords, keywords.Main...)
	}

	generated := llm.FallbackMeta(req.Title, summary)
	if s.model.Configured() {
		m, err := s.model.GenerateMeta(ctx, req.Title, summary, promptKeywords)
		if err != nil {
			s.logger.Warn("meta generation failed, using fallback", zap.Error(err))
		} else {
			generated = m
		}
	}

	result := &Result{
		Meta:         *generated,
		Reasoning:    generated.Reasoning,
		FocusKeyword: req.FocusKeyword,
		Keywords:     keywords,
	}

	if req.LinkAwareMeta {
		if err := s.attachRelated(ctx, req, plain, result); err != nil {
			return nil, err
		}
	}
	return result, nil
}

// attachRelated finds the catalog neighbors of the drafted content and
// derives a first-link suggestion from the best one.
func (s *Service) attachRelated(ctx context.Context, req *Request, plain string, result *Result) error {
	vector, err := s.embedder.EmbedQuery(ctx, embeddings.ComposeArticleText(req.Title, req.Summary, plain))
	if err != nil {
		return fmt.Errorf("embedding draft for related content: %w", err)
	}

	var exclude []int
	if req.PostID > 0 {
		exclude = []int{req.PostID}
	}
	hits, err := s.store.Query(ctx, vector, relatedTopK, exclude)
	if err != nil {
		return fmt.Errorf("querying related content: %w", err)
	}
	if len(hits) == 0 {
		return nil
	}

	related := make([]RelatedArticle, 0, len(hits))
	for _, hit := range hits {
		related = append(related, RelatedArticle{
			PostID:       hit.Article.PostID,
			Title:        hit.Article.Title,
			URL:          hit.Article.URL,
			Similarity:   hit.Score,
			TopicCluster: hit.Article.TopicCluster,
		})
	}
	result.RelatedContent = related

	best := hits[0].Article
	anchor := best.Title
	if len(best.SuggestedAnchors) > 0 {
		anchor = best.SuggestedAnchors[0]
	}
	result.LinkSuggestion = &LinkSuggestion{
		PostID:     best.PostID,
		Title:      best.Title,
		URL:        best.URL,
		AnchorText: strings.TrimSpace(anchor),
	}
	return nil
}
