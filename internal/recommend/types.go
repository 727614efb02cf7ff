package recommend

import (
	"github.com/fyrsmithlabs/linkd/internal/catalog"
	"github.com/fyrsmithlabs/linkd/internal/scoring"
	"github.com/fyrsmithlabs/linkd/internal/seo"
)

// Request defaults.
const (
	DefaultMaxLinks = 5
	DefaultMinScore = 40.0
)

// Retrieval and re-ranking bounds.
const (
	vectorTopK         = 50
	rerankPoolSize     = 20
	similarityFloor    = 0.25
	candidateMultiple  = 3
	seoScoreWeight     = 0.2
	seoScoringParallel = 8
)

// Request is the smart-link request body. Tri-state fields use pointers
// so an explicit zero survives JSON decoding; Normalize resolves them.
type Request struct {
	Content         string   `json:"content"`
	PostID          int      `json:"postId,omitempty"`
	Title           string   `json:"title,omitempty"`
	TopicCluster    string   `json:"topicCluster,omitempty"`
	RelatedClusters []string `json:"relatedClusters,omitempty"`
	FunnelStage     string   `json:"funnelStage,omitempty"`
	TargetPersona   string   `json:"targetPersona,omitempty"`
	ContentType     string   `json:"contentType,omitempty"`

	MaxLinks          *int     `json:"maxLinks,omitempty"`
	MinScore          *float64 `json:"minScore,omitempty"`
	ExcludeIDs        []int    `json:"excludeIds,omitempty"`
	UseClaudeAnalysis *bool    `json:"useClaudeAnalysis,omitempty"`
	AutoInsert        bool     `json:"autoInsert,omitempty"`
	StrictSilo        bool     `json:"strictSilo,omitempty"`
	IncludeSEOMetrics *bool    `json:"includeSEOMetrics,omitempty"`
	SkipCache         bool     `json:"skipCache,omitempty"`
}

// Normalize applies request defaults in place.
func (r *Request) Normalize() {
	if r.ContentType == "" {
		r.ContentType = catalog.TypePost
	}
	if r.MaxLinks == nil {
		v := DefaultMaxLinks
		r.MaxLinks = &v
	}
	if r.MinScore == nil {
		v := DefaultMinScore
		r.MinScore = &v
	}
	if r.UseClaudeAnalysis == nil {
		v := true
		r.UseClaudeAnalysis = &v
	}
	if r.IncludeSEOMetrics == nil {
		v := true
		r.IncludeSEOMetrics = &v
	}
}

// Enhancement records one post-scoring adjustment on a recommendation.
type Enhancement struct {
	Name   string  `json:"name"`
	Delta  float64 `json:"delta,omitempty"`
	Factor float64 `json:"factor,omitempty"`
}

// Link is one proposed internal link.
type Link struct {
	PostID         int               `json:"postId"`
	Title          string            `json:"title"`
	URL            string            `json:"url"`
	TopicCluster   string            `json:"topicCluster,omitempty"`
	ContentType    string            `json:"contentType"`
	Score          float64           `json:"score"`
	ScoreBreakdown scoring.Breakdown `json:"scoreBreakdown"`
	AnchorText     string            `json:"anchorText"`
	Placement      string            `json:"placement,omitempty"`
	Reasoning      string            `json:"reasoning,omitempty"`
	Enhancements   []Enhancement     `json:"enhancements,omitempty"`
	SEO            *seo.LinkScore    `json:"seo,omitempty"`
}

// Stats summarizes one pipeline run.
type Stats struct {
	CandidatesFound       int            `json:"candidatesFound"`
	PassedScoring         int            `json:"passedScoring"`
	AverageScore          float64        `json:"averageScore"`
	LinksGenerated        int            `json:"linksGenerated"`
	FunnelDistribution    map[string]int `json:"funnelDistribution"`
	VelocityStatus        string         `json:"velocityStatus"`
	EntityBasedCandidates int            `json:"entityBasedCandidates"`
	CrossEncoderReRanked  bool           `json:"crossEncoderReRanked"`
}

// SEOSummary aggregates the per-link SEO scores in one response.
type SEOSummary struct {
	AverageScore float64 `json:"averageScore"`
	Scored       int     `json:"scored"`
}

// Response is the smart-link response body.
type Response struct {
	Success       bool        `json:"success"`
	Links         []Link      `json:"links"`
	LinkedContent string      `json:"linkedContent,omitempty"`
	Stats         *Stats      `json:"stats,omitempty"`
	SEOSummary    *SEOSummary `json:"seoSummary,omitempty"`
	Message       string      `json:"message,omitempty"`
	Skipped       bool        `json:"skipped,omitempty"`
	Cached        bool        `json:"cached,omitempty"`
	Deduplicated  bool        `json:"deduplicated,omitempty"`
}

// clone returns a shallow copy safe to tag with per-caller flags.
func (r *Response) clone() *Response {
	cp := *r
	return &cp
}
