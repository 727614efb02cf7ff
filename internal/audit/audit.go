// Package audit reviews the internal links an article already carries and
// surfaces the ones it is missing.
package audit

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/linkd/internal/anchors"
	"github.com/fyrsmithlabs/linkd/internal/catalog"
	"github.com/fyrsmithlabs/linkd/internal/htmlx"
	"github.com/fyrsmithlabs/linkd/internal/scoring"
)

// Audit thresholds.
const (
	DefaultMaxSuggestions = 5

	// A link is suboptimal when a different target is this similar to its
	// anchor and better written than the current target.
	suboptimalSimilarity = 0.7
	alternativeTopK      = 10
	betterOptionLimit    = 2

	missingTopK     = 30
	missingMinScore = 40.0

	// More than this many valid links into one cluster is redundant.
	clusterLinkLimit = 2
)

// Embedder turns text into a query vector.
type Embedder interface {
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// ExistingLink is one internal link as reported by the CMS.
type ExistingLink struct {
	TargetID int    `json:"targetId"`
	Anchor   string `json:"anchor,omitempty"`
	URL      string `json:"url,omitempty"`
}

// Request is the link-audit request body.
type Request struct {
	Content        string         `json:"content"`
	PostID         int            `json:"postId,omitempty"`
	Title          string         `json:"title,omitempty"`
	TopicCluster   string         `json:"topicCluster,omitempty"`
	ExistingLinks  []ExistingLink `json:"existingLinks,omitempty"`
	MaxSuggestions int            `json:"maxSuggestions,omitempty"`
}

// ValidLink is an existing link that holds up.
type ValidLink struct {
	TargetID     int    `json:"targetId"`
	Title        string `json:"title"`
	Anchor       string `json:"anchor,omitempty"`
	TopicCluster string `json:"topicCluster,omitempty"`
}

// BrokenLink is an existing link whose target left the catalog.
type BrokenLink struct {
	TargetID int    `json:"targetId"`
	Anchor   string `json:"anchor,omitempty"`
	Reason   string `json:"reason"`
}

// Alternative is a better target for an existing anchor.
type Alternative struct {
	PostID       int     `json:"postId"`
	Title        string  `json:"title"`
	URL          string  `json:"url"`
	Similarity   float64 `json:"similarity"`
	QualityScore int     `json:"qualityScore"`
}

// SuboptimalLink is an existing link with demonstrably better targets.
type SuboptimalLink struct {
	TargetID      int           `json:"targetId"`
	Anchor        string        `json:"anchor,omitempty"`
	CurrentTitle  string        `json:"currentTitle,omitempty"`
	BetterOptions []Alternative `json:"betterOptions"`
}

// MissingLink is a linking opportunity the article does not use yet.
type MissingLink struct {
	PostID       int     `json:"postId"`
	Title        string  `json:"title"`
	URL          string  `json:"url"`
	Score        float64 `json:"score"`
	AnchorText   string  `json:"anchorText"`
	TopicCluster string  `json:"topicCluster,omitempty"`
	FunnelStage  string  `json:"funnelStage,omitempty"`
}

// RedundantCluster flags a cluster receiving more links than it needs.
type RedundantCluster struct {
	Cluster   string `json:"cluster"`
	Count     int    `json:"count"`
	TargetIDs []int  `json:"targetIds"`
}

// Existing groups the verdicts on links the article already has.
type Existing struct {
	Total      int              `json:"total"`
	Valid      []ValidLink      `json:"valid"`
	Broken     []BrokenLink     `json:"broken"`
	Suboptimal []SuboptimalLink `json:"suboptimal"`
}

// Suggestions groups the proposed changes.
type Suggestions struct {
	Upgrades  []SuboptimalLink   `json:"upgrades"`
	Missing   []MissingLink      `json:"missing"`
	Redundant []RedundantCluster `json:"redundant"`
}

// Stats summarizes the audit.
type Stats struct {
	Valid        int `json:"valid"`
	Broken       int `json:"broken"`
	Suboptimal   int `json:"suboptimal"`
	MissingFound int `json:"missingFound"`
}

// Report is the full audit verdict.
type Report struct {
	Existing    Existing    `json:"existing"`
	Suggestions Suggestions `json:"suggestions"`
	Stats       Stats       `json:"stats"`
}

// Service audits internal links against the catalog.
type Service struct {
	store    catalog.Store
	embedder Embedder
	logger   *zap.Logger
}

func NewService(store catalog.Store, embedder Embedder, logger *zap.Logger) *Service {
	return &Service{store: store, embedder: embedder, logger: logger}
}

// Audit classifies the existing links, finds missing opportunities, and
// flags over-linked clusters.
func (s *Service) Audit(ctx context.Context, req *Request) (*Report, error) {
	if req.MaxSuggestions <= 0 {
		req.MaxSuggestions = DefaultMaxSuggestions
	}

	source := s.resolveSource(ctx, req)

	report := &Report{
		Existing: Existing{
			Total:      len(req.ExistingLinks),
			Valid:      []ValidLink{},
			Broken:     []BrokenLink{},
			Suboptimal: []SuboptimalLink{},
		},
		Suggestions: Suggestions{
			Upgrades:  []SuboptimalLink{},
			Missing:   []MissingLink{},
			Redundant: []RedundantCluster{},
		},
	}

	validByCluster := map[string][]int{}
	for _, link := range req.ExistingLinks {
		verdict, err := s.classify(ctx, req, link)
		if err != nil {
			return nil, err
		}
		switch v := verdict.(type) {
		case BrokenLink:
			report.Existing.Broken = append(report.Existing.Broken, v)
		case SuboptimalLink:
			report.Existing.Suboptimal = append(report.Existing.Suboptimal, v)
			report.Suggestions.Upgrades = append(report.Suggestions.Upgrades, v)
		case ValidLink:
			report.Existing.Valid = append(report.Existing.Valid, v)
			if v.TopicCluster != "" {
				validByCluster[v.TopicCluster] = append(validByCluster[v.TopicCluster], v.TargetID)
			}
		}
	}

	missing, err := s.missingOpportunities(ctx, req, source)
	if err != nil {
		return nil, err
	}
	report.Suggestions.Missing = missing

	for cluster, ids := range validByCluster {
		if len(ids) > clusterLinkLimit {
			sort.Ints(ids)
			report.Suggestions.Redundant = append(report.Suggestions.Redundant, RedundantCluster{
				Cluster:   cluster,
				Count:     len(ids),
				TargetIDs: ids,
			})
		}
	}
	sort.Slice(report.Suggestions.Redundant, func(i, j int) bool {
		return report.Suggestions.Redundant[i].Cluster < report.Suggestions.Redundant[j].Cluster
	})

	report.Stats = Stats{
		Valid:        len(report.Existing.Valid),
		Broken:       len(report.Existing.Broken),
		Suboptimal:   len(report.Existing.Suboptimal),
		MissingFound: len(missing),
	}
	return report, nil
}

// resolveSource loads the source article when it is in the catalog,
// otherwise builds a view from the request fields.
func (s *Service) resolveSource(ctx context.Context, req *Request) *catalog.Article {
	var art *catalog.Article
	if req.PostID > 0 {
		stored, err := s.store.Get(ctx, req.PostID)
		if err == nil {
			art = stored
		} else if !errors.Is(err, catalog.ErrNotFound) {
			s.logger.Warn("loading audit source failed, using request fields",
				zap.Int("postId", req.PostID), zap.Error(err))
		}
	}
	if art == nil {
		art = &catalog.Article{PostID: req.PostID, ContentType: catalog.TypePost}
	}
	if req.Title != "" {
		art.Title = req.Title
	}
	if req.TopicCluster != "" {
		art.TopicCluster = req.TopicCluster
	}
	return art
}

// classify renders a verdict on one existing link. A target missing from
// the catalog is broken, not an error.
func (s *Service) classify(ctx context.Context, req *Request, link ExistingLink) (any, error) {
	targetArt, err := s.store.Get(ctx, link.TargetID)
	if errors.Is(err, catalog.ErrNotFound) {
		return BrokenLink{
			TargetID: link.TargetID,
			Anchor:   link.Anchor,
			Reason:   "target not in catalog",
		}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("loading link target %d: %w", link.TargetID, err)
	}

	if better, err := s.betterOptions(ctx, req, link, targetArt); err != nil {
		return nil, err
	} else if len(better) > 0 {
		return SuboptimalLink{
			TargetID:      link.TargetID,
			Anchor:        link.Anchor,
			CurrentTitle:  targetArt.Title,
			BetterOptions: better,
		}, nil
	}

	return ValidLink{
		TargetID:     link.TargetID,
		Title:        targetArt.Title,
		Anchor:       link.Anchor,
		TopicCluster: targetArt.TopicCluster,
	}, nil
}

// betterOptions queries the catalog with the anchor text and keeps the
// top alternatives that are both very similar and higher quality than the
// current target.
func (s *Service) betterOptions(ctx context.Context, req *Request, link ExistingLink, current *catalog.Article) ([]Alternative, error) {
	anchor := strings.TrimSpace(link.Anchor)
	if anchor == "" {
		return nil, nil
	}

	vector, err := s.embedder.EmbedQuery(ctx, anchor)
	if err != nil {
		return nil, fmt.Errorf("embedding anchor %q: %w", anchor, err)
	}

	exclude := []int{link.TargetID}
	if req.PostID > 0 {
		exclude = append(exclude, req.PostID)
	}
	hits, err := s.store.Query(ctx, vector, alternativeTopK, exclude)
	if err != nil {
		return nil, fmt.Errorf("querying alternatives for %q: %w", anchor, err)
	}

	var better []Alternative
	for _, hit := range hits {
		if hit.Score <= suboptimalSimilarity {
			continue
		}
		if hit.Article.QualityScore <= current.QualityScore {
			continue
		}
		better = append(better, Alternative{
			PostID:       hit.Article.PostID,
			Title:        hit.Article.Title,
			URL:          hit.Article.URL,
			Similarity:   hit.Score,
			QualityScore: hit.Article.QualityScore,
		})
		if len(better) == betterOptionLimit {
			break
		}
	}
	return better, nil
}

// missingOpportunities embeds the body, pulls the nearest targets not yet
// linked, hybrid-scores them, and keeps the best ones that yield a
// verbatim anchor.
func (s *Service) missingOpportunities(ctx context.Context, req *Request, source *catalog.Article) ([]MissingLink, error) {
	plain := htmlx.Plaintext(req.Content)
	if strings.TrimSpace(plain) == "" {
		return []MissingLink{}, nil
	}

	vector, err := s.embedder.EmbedQuery(ctx, plain)
	if err != nil {
		return nil, fmt.Errorf("embedding audit body: %w", err)
	}

	exclude := make([]int, 0, len(req.ExistingLinks)+1)
	if req.PostID > 0 {
		exclude = append(exclude, req.PostID)
	}
	for _, link := range req.ExistingLinks {
		exclude = append(exclude, link.TargetID)
	}

	hits, err := s.store.Query(ctx, vector, missingTopK, exclude)
	if err != nil {
		return nil, fmt.Errorf("querying missing opportunities: %w", err)
	}

	type scored struct {
		article *catalog.Article
		score   float64
	}
	var pool []scored
	for _, hit := range hits {
		score, _ := scoring.Score(source, hit.Article, hit.Score)
		if score < missingMinScore {
			continue
		}
		pool = append(pool, scored{hit.Article, score})
	}
	sort.SliceStable(pool, func(i, j int) bool { return pool[i].score > pool[j].score })

	used := htmlx.AnchorTexts(req.Content)
	missing := []MissingLink{}
	for _, cand := range pool {
		if len(missing) == req.MaxSuggestions {
			break
		}
		found := anchors.Find(plain, cand.article, used)
		if found == nil {
			continue
		}
		used[strings.ToLower(found.Text)] = struct{}{}
		missing = append(missing, MissingLink{
			PostID:       cand.article.PostID,
			Title:        cand.article.Title,
			URL:          cand.article.URL,
			Score:        cand.score,
			AnchorText:   found.Text,
			TopicCluster: cand.article.TopicCluster,
			FunnelStage:  cand.article.FunnelStage,
		})
	}
	return missing, nil
}
