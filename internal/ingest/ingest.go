// Package ingest is the catalog sync pipeline: validate, enrich the gaps
// with the model, embed, and upsert.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/linkd/internal/catalog"
	"github.com/fyrsmithlabs/linkd/internal/htmlx"
	"github.com/fyrsmithlabs/linkd/internal/llm"
)

// Sync actions.
const (
	ActionCreated = "created"
	ActionUpdated = "updated"
	ActionDeleted = "deleted"
)

// Embedder produces the article vector.
type Embedder interface {
	EmbedArticle(ctx context.Context, title, summary, body string) ([]float32, error)
}

// LanguageModel covers the enrichment operations sync uses.
type LanguageModel interface {
	Configured() bool
	Summarize(ctx context.Context, title, body string) (string, error)
	AutoAnalyze(ctx context.Context, title, body string, knownClusters []string) (*llm.Analysis, error)
	ExtractKeywords(ctx context.Context, title, body string) (llm.Keywords, error)
	SuggestAnchors(ctx context.Context, title, summary string) ([]string, error)
	ExtractQuestions(ctx context.Context, title, body string) ([]string, error)
}

// Enricher is an optional hook that runs after the built-in enrichment
// and before the upsert.
type Enricher interface {
	Enrich(ctx context.Context, article *catalog.Article, body string) error
}

// Request is one article as submitted by the CMS.
type Request struct {
	PostID  int    `json:"postId"`
	Title   string `json:"title"`
	URL     string `json:"url"`
	Content string `json:"content"`

	Slug            string   `json:"slug,omitempty"`
	ContentType     string   `json:"contentType,omitempty"`
	TopicCluster    string   `json:"topicCluster,omitempty"`
	RelatedClusters []string `json:"relatedClusters,omitempty"`
	FunnelStage     string   `json:"funnelStage,omitempty"`
	TargetPersona   string   `json:"targetPersona,omitempty"`
	DifficultyLevel string   `json:"difficultyLevel,omitempty"`
	QualityScore    int      `json:"qualityScore,omitempty"`
	ContentLifespan string   `json:"contentLifespan,omitempty"`
	IsPillar        bool     `json:"isPillar,omitempty"`

	Summary          string   `json:"summary,omitempty"`
	MainTopics       []string `json:"mainTopics,omitempty"`
	SemanticKeywords []string `json:"semanticKeywords,omitempty"`

	PublishedAt time.Time `json:"publishedAt,omitzero"`
	UpdatedAt   time.Time `json:"updatedAt,omitzero"`
}

// Validate checks the required fields and normalizes the content type.
func (r *Request) Validate() error {
	if r.PostID <= 0 {
		return fmt.Errorf("postId must be positive, got %d", r.PostID)
	}
	if strings.TrimSpace(r.Title) == "" {
		return errors.New("title is required")
	}
	if strings.TrimSpace(r.URL) == "" {
		return errors.New("url is required")
	}
	if strings.TrimSpace(r.Content) == "" {
		return errors.New("content is required")
	}
	switch r.ContentType {
	case "":
		r.ContentType = catalog.TypePost
	case catalog.TypePost, catalog.TypePage:
	default:
		return fmt.Errorf("contentType must be %q or %q, got %q", catalog.TypePost, catalog.TypePage, r.ContentType)
	}
	return nil
}

// Result reports what one sync did.
type Result struct {
	Action            string `json:"action"`
	PostID            int    `json:"postId"`
	VectorID          string `json:"vectorId"`
	GeneratedSummary  bool   `json:"generatedSummary"`
	GeneratedKeywords bool   `json:"generatedKeywords"`
	AutoAnalyzed      bool   `json:"autoAnalyzed"`
}

// BatchDetail is the per-article outcome of a batch sync.
type BatchDetail struct {
	PostID int    `json:"postId"`
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

// BatchResult summarizes a batch sync.
type BatchResult struct {
	Succeeded int           `json:"succeeded"`
	Failed    int           `json:"failed"`
	Details   []BatchDetail `json:"details"`
}

// Service runs the catalog sync pipeline.
type Service struct {
	store    catalog.Store
	lister   catalog.Lister
	embedder Embedder
	model    LanguageModel
	enricher Enricher
	logger   *zap.Logger
}

func NewService(store catalog.Store, lister catalog.Lister, embedder Embedder, model LanguageModel, enricher Enricher, logger *zap.Logger) *Service {
	return &Service{
		store:    store,
		lister:   lister,
		embedder: embedder,
		model:    model,
		enricher: enricher,
		logger:   logger,
	}
}

// Sync upserts one article, filling metadata gaps with the model. Fields
// the CMS supplies always win; on update, enrichment from the stored
// version is reused rather than regenerated, and link state, dismissals,
// and unknown payload fields carry over untouched.
func (s *Service) Sync(ctx context.Context, req *Request) (*Result, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	existing, err := s.store.Get(ctx, req.PostID)
	if err != nil && !errors.Is(err, catalog.ErrNotFound) {
		return nil, fmt.Errorf("checking for existing article %d: %w", req.PostID, err)
	}

	article := s.buildArticle(req, existing)
	plain := htmlx.Plaintext(req.Content)

	result := &Result{
		Action:   ActionCreated,
		PostID:   req.PostID,
		VectorID: strconv.Itoa(req.PostID),
	}
	if existing != nil {
		result.Action = ActionUpdated
	}

	s.enrich(ctx, article, plain, result)

	// Pillar status is a page property.
	if article.IsPost() {
		article.IsPillar = false
	}

	if s.enricher != nil {
		if err := s.enricher.Enrich(ctx, article, plain); err != nil {
			s.logger.Warn("enricher hook failed, syncing without it",
				zap.Int("postId", article.PostID), zap.Error(err))
		}
	}

	vector, err := s.embedder.EmbedArticle(ctx, article.Title, article.Summary, plain)
	if err != nil {
		return nil, fmt.Errorf("embedding article %d: %w", article.PostID, err)
	}
	article.Embedding = vector

	if err := s.store.Upsert(ctx, article); err != nil {
		return nil, fmt.Errorf("upserting article %d: %w", article.PostID, err)
	}
	s.lister.Invalidate()

	s.logger.Info("article synced",
		zap.Int("postId", article.PostID),
		zap.String("action", result.Action),
		zap.String("cluster", article.TopicCluster),
		zap.Bool("autoAnalyzed", result.AutoAnalyzed))
	return result, nil
}

// SyncBatch syncs articles sequentially; one bad article never aborts the
// rest.
func (s *Service) SyncBatch(ctx context.Context, reqs []*Request) *BatchResult {
	out := &BatchResult{Details: make([]BatchDetail, 0, len(reqs))}
	for _, req := range reqs {
		res, err := s.Sync(ctx, req)
		if err != nil {
			out.Failed++
			out.Details = append(out.Details, BatchDetail{
				PostID: req.PostID,
				Status: "failed",
				Error:  err.Error(),
			})
			continue
		}
		out.Succeeded++
		out.Details = append(out.Details, BatchDetail{PostID: res.PostID, Status: res.Action})
	}
	return out
}

// Delete removes an article from the catalog. Deleting an absent article
// is not an error.
func (s *Service) Delete(ctx context.Context, postID int) error {
	if postID <= 0 {
		return fmt.Errorf("postId must be positive, got %d", postID)
	}
	if err := s.store.Delete(ctx, postID); err != nil && !errors.Is(err, catalog.ErrNotFound) {
		return fmt.Errorf("deleting article %d: %w", postID, err)
	}
	s.lister.Invalidate()
	return nil
}

// buildArticle merges the request over the stored version: request fields
// win, stored enrichment fills the request's silences, and link state
// plus unknown extras always carry over.
func (s *Service) buildArticle(req *Request, existing *catalog.Article) *catalog.Article {
	a := &catalog.Article{
		PostID:      req.PostID,
		Title:       req.Title,
		URL:         req.URL,
		Slug:        req.Slug,
		ContentType: req.ContentType,

		Summary:          req.Summary,
		MainTopics:       req.MainTopics,
		SemanticKeywords: req.SemanticKeywords,

		TopicCluster:    req.TopicCluster,
		RelatedClusters: req.RelatedClusters,
		FunnelStage:     req.FunnelStage,
		TargetPersona:   req.TargetPersona,
		DifficultyLevel: req.DifficultyLevel,
		ContentLifespan: req.ContentLifespan,
		QualityScore:    req.QualityScore,
		IsPillar:        req.IsPillar,

		PublishedAt: req.PublishedAt,
		UpdatedAt:   req.UpdatedAt,
	}

	if existing == nil {
		return a
	}

	if a.Summary == "" {
		a.Summary = existing.Summary
	}
	if len(a.MainTopics) == 0 {
		a.MainTopics = existing.MainTopics
	}
	if len(a.SemanticKeywords) == 0 {
		a.SemanticKeywords = existing.SemanticKeywords
	}
	if a.TopicCluster == "" {
		a.TopicCluster = existing.TopicCluster
		if len(a.RelatedClusters) == 0 {
			a.RelatedClusters = existing.RelatedClusters
		}
	}
	if a.FunnelStage == "" {
		a.FunnelStage = existing.FunnelStage
	}
	if a.TargetPersona == "" {
		a.TargetPersona = existing.TargetPersona
	}
	if a.DifficultyLevel == "" {
		a.DifficultyLevel = existing.DifficultyLevel
	}
	if a.ContentLifespan == "" {
		a.ContentLifespan = existing.ContentLifespan
	}
	if a.QualityScore == 0 {
		a.QualityScore = existing.QualityScore
	}
	if a.PublishedAt.IsZero() {
		a.PublishedAt = existing.PublishedAt
	}
	if a.UpdatedAt.IsZero() {
		a.UpdatedAt = existing.UpdatedAt
	}

	a.SuggestedAnchors = existing.SuggestedAnchors
	a.QuestionsAnswered = existing.QuestionsAnswered
	a.Entities = existing.Entities

	a.InboundAnchors = existing.InboundAnchors
	a.OutboundLinks = existing.OutboundLinks
	a.InboundLinkCount = existing.InboundLinkCount
	a.DismissedLinks = existing.DismissedLinks
	a.Extras = existing.Extras
	return a
}

// enrich fills the remaining metadata gaps with the model, degrading to
// deterministic fallbacks when the model is absent or fails.
func (s *Service) enrich(ctx context.Context, a *catalog.Article, plain string, result *Result) {
	configured := s.model != nil && s.model.Configured()

	if a.Summary == "" {
		result.GeneratedSummary = true
		a.Summary = llm.FallbackSummary(plain)
		if configured {
			if summary, err := s.model.Summarize(ctx, a.Title, plain); err != nil {
				s.logger.Warn("summarize failed, using fallback",
					zap.Int("postId", a.PostID), zap.Error(err))
			} else if summary != "" {
				a.Summary = summary
			}
		}
	}

	if a.TopicCluster == "" {
		result.AutoAnalyzed = true
		analysis := llm.FallbackAnalysis()
		if configured {
			if out, err := s.model.AutoAnalyze(ctx, a.Title, plain, s.knownClusters(ctx)); err != nil {
				s.logger.Warn("auto-analyze failed, using fallback",
					zap.Int("postId", a.PostID), zap.Error(err))
			} else {
				analysis = out
			}
		}
		a.TopicCluster = analysis.TopicCluster
		if len(a.RelatedClusters) == 0 {
			a.RelatedClusters = analysis.RelatedClusters
		}
		if a.FunnelStage == "" {
			a.FunnelStage = analysis.FunnelStage
		}
		if a.TargetPersona == "" {
			a.TargetPersona = analysis.TargetPersona
		}
		if a.DifficultyLevel == "" {
			a.DifficultyLevel = analysis.DifficultyLevel
		}
		if a.ContentLifespan == "" {
			a.ContentLifespan = analysis.ContentLifespan
		}
		if a.QualityScore == 0 {
			a.QualityScore = analysis.QualityScore
		}
		if len(a.Entities) == 0 {
			a.Entities = analysis.Entities
		}
	}

	if len(a.MainTopics) == 0 && configured {
		if kw, err := s.model.ExtractKeywords(ctx, a.Title, plain); err != nil {
			s.logger.Warn("keyword extraction failed",
				zap.Int("postId", a.PostID), zap.Error(err))
		} else if len(kw.Main) > 0 || len(kw.Semantic) > 0 {
			result.GeneratedKeywords = true
			a.MainTopics = kw.Main
			if len(a.SemanticKeywords) == 0 {
				a.SemanticKeywords = kw.Semantic
			}
		}
	}

	if len(a.SuggestedAnchors) == 0 && configured {
		if suggestions, err := s.model.SuggestAnchors(ctx, a.Title, a.Summary); err != nil {
			s.logger.Warn("anchor suggestion failed",
				zap.Int("postId", a.PostID), zap.Error(err))
		} else {
			a.SuggestedAnchors = suggestions
		}
	}

	if len(a.QuestionsAnswered) == 0 && configured {
		if questions, err := s.model.ExtractQuestions(ctx, a.Title, plain); err != nil {
			s.logger.Warn("question extraction failed",
				zap.Int("postId", a.PostID), zap.Error(err))
		} else {
			a.QuestionsAnswered = questions
		}
	}
}

// knownClusters lists the distinct clusters already in the catalog, so
// auto-analyze matches existing taxonomy instead of inventing parallel
// names.
func (s *Service) knownClusters(ctx context.Context) []string {
	articles, err := s.lister.Articles(ctx)
	if err != nil {
		s.logger.Warn("listing clusters for auto-analyze failed", zap.Error(err))
		return nil
	}

	seen := make(map[string]struct{})
	var clusters []string
	for _, a := range articles {
		if a.TopicCluster == "" {
			continue
		}
		if _, ok := seen[a.TopicCluster]; ok {
			continue
		}
		seen[a.TopicCluster] = struct{}{}
		clusters = append(clusters, a.TopicCluster)
	}
	sort.Strings(clusters)
	return clusters
}
