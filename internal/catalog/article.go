// Package catalog provides the persistent article catalog backed by a
// vector index. Articles are stored as Qdrant points: the embedding is the
// point vector, every other attribute lives in the point payload.
package catalog

import (
	"encoding/json"
	"fmt"
	"maps"
	"reflect"
	"slices"
	"strings"
	"time"

	"github.com/qdrant/go-client/qdrant"
)

// Content types.
const (
	TypePost = "post"
	TypePage = "page"
)

// Funnel stages.
const (
	StageAwareness     = "awareness"
	StageConsideration = "consideration"
	StageDecision      = "decision"
	StageUnknown       = "unknown"
)

// InboundAnchor records one anchor pointing at an article.
type InboundAnchor struct {
	Text      string    `json:"text"`
	SourceID  int       `json:"sourceId"`
	Type      string    `json:"type,omitempty"`
	CreatedAt time.Time `json:"createdAt,omitzero"`
}

// OutboundLink records one internal link leaving an article.
type OutboundLink struct {
	TargetID  int       `json:"targetId"`
	Anchor    string    `json:"anchor"`
	CreatedAt time.Time `json:"createdAt,omitzero"`
}

// DismissedLink marks a target explicitly suppressed for a source article.
type DismissedLink struct {
	TargetID    int       `json:"targetId"`
	DismissedAt time.Time `json:"dismissedAt,omitzero"`
	Reason      string    `json:"reason,omitempty"`
}

// Article is a content unit identified by its CMS post ID.
//
// The JSON tags double as the payload schema in the vector index; unknown
// payload fields survive upserts through Extras.
type Article struct {
	PostID      int    `json:"postId"`
	Title       string `json:"title"`
	URL         string `json:"url"`
	Slug        string `json:"slug,omitempty"`
	ContentType string `json:"contentType"`

	Summary           string   `json:"summary,omitempty"`
	MainTopics        []string `json:"mainTopics,omitempty"`
	SemanticKeywords  []string `json:"semanticKeywords,omitempty"`
	SuggestedAnchors  []string `json:"suggestedAnchors,omitempty"`
	QuestionsAnswered []string `json:"questionsAnswered,omitempty"`
	Entities          []string `json:"entities,omitempty"`

	TopicCluster    string   `json:"topicCluster,omitempty"`
	RelatedClusters []string `json:"relatedClusters,omitempty"`
	FunnelStage     string   `json:"funnelStage,omitempty"`
	TargetPersona   string   `json:"targetPersona,omitempty"`
	DifficultyLevel string   `json:"difficultyLevel,omitempty"`
	ContentLifespan string   `json:"contentLifespan,omitempty"`
	QualityScore    int      `json:"qualityScore,omitempty"`
	IsPillar        bool     `json:"isPillar,omitempty"`

	InboundAnchors   []InboundAnchor `json:"inboundAnchors,omitempty"`
	OutboundLinks    []OutboundLink  `json:"outboundLinks,omitempty"`
	InboundLinkCount int             `json:"inboundLinkCount,omitempty"`
	DismissedLinks   []DismissedLink `json:"dismissedLinks,omitempty"`

	PublishedAt time.Time `json:"publishedAt,omitzero"`
	UpdatedAt   time.Time `json:"updatedAt,omitzero"`

	// Embedding is the article vector. It is stored as the point vector,
	// never in the payload.
	Embedding []float32 `json:"-"`

	// Extras carries payload fields this version of the schema does not
	// know about, so they survive read-modify-write upserts.
	Extras map[string]any `json:"-"`
}

// Clone returns a deep copy of the article.
func (a *Article) Clone() *Article {
	if a == nil {
		return nil
	}
	b := *a
	b.MainTopics = slices.Clone(a.MainTopics)
	b.SemanticKeywords = slices.Clone(a.SemanticKeywords)
	b.SuggestedAnchors = slices.Clone(a.SuggestedAnchors)
	b.QuestionsAnswered = slices.Clone(a.QuestionsAnswered)
	b.Entities = slices.Clone(a.Entities)
	b.RelatedClusters = slices.Clone(a.RelatedClusters)
	b.InboundAnchors = slices.Clone(a.InboundAnchors)
	b.OutboundLinks = slices.Clone(a.OutboundLinks)
	b.DismissedLinks = slices.Clone(a.DismissedLinks)
	b.Embedding = slices.Clone(a.Embedding)
	b.Extras = maps.Clone(a.Extras)
	return &b
}

// IsPage reports whether the article is a stable cornerstone page.
func (a *Article) IsPage() bool { return a.ContentType == TypePage }

// IsPost reports whether the article is a blog post.
func (a *Article) IsPost() bool { return a.ContentType == TypePost }

// Candidate is a similarity-query hit: an article plus its score.
type Candidate struct {
	Article *Article
	// Score is the cosine similarity in [0,1].
	Score float64
}

// knownPayloadKeys are the payload fields owned by the Article schema;
// everything else round-trips through Extras.
var knownPayloadKeys = articlePayloadKeys()

func articlePayloadKeys() map[string]struct{} {
	keys := make(map[string]struct{})
	t := reflect.TypeOf(Article{})
	for i := 0; i < t.NumField(); i++ {
		name, _, _ := strings.Cut(t.Field(i).Tag.Get("json"), ",")
		if name == "" || name == "-" {
			continue
		}
		keys[name] = struct{}{}
	}
	return keys
}

// Payload converts the article to a Qdrant payload map.
func (a *Article) Payload() (map[string]*qdrant.Value, error) {
	raw, err := json.Marshal(a)
	if err != nil {
		return nil, fmt.Errorf("marshaling article %d: %w", a.PostID, err)
	}

	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("remapping article %d: %w", a.PostID, err)
	}

	for k, v := range a.Extras {
		if _, owned := knownPayloadKeys[k]; !owned {
			m[k] = v
		}
	}

	return qdrant.NewValueMap(m), nil
}

// ArticleFromPayload rebuilds an article from a Qdrant payload map.
func ArticleFromPayload(payload map[string]*qdrant.Value) (*Article, error) {
	m := make(map[string]any, len(payload))
	for k, v := range payload {
		m[k] = valueToAny(v)
	}

	raw, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("remapping payload: %w", err)
	}

	var a Article
	if err := json.Unmarshal(raw, &a); err != nil {
		return nil, fmt.Errorf("unmarshaling payload: %w", err)
	}

	extras := make(map[string]any)
	for k, v := range m {
		if _, owned := knownPayloadKeys[k]; !owned {
			extras[k] = v
		}
	}
	if len(extras) > 0 {
		a.Extras = extras
	}

	return &a, nil
}

// valueToAny unwraps a Qdrant payload value into plain Go types.
func valueToAny(v *qdrant.Value) any {
	switch kind := v.GetKind().(type) {
	case *qdrant.Value_NullValue:
		return nil
	case *qdrant.Value_StringValue:
		return kind.StringValue
	case *qdrant.Value_IntegerValue:
		return kind.IntegerValue
	case *qdrant.Value_DoubleValue:
		return kind.DoubleValue
	case *qdrant.Value_BoolValue:
		return kind.BoolValue
	case *qdrant.Value_ListValue:
		items := kind.ListValue.GetValues()
		out := make([]any, len(items))
		for i, item := range items {
			out[i] = valueToAny(item)
		}
		return out
	case *qdrant.Value_StructValue:
		fields := kind.StructValue.GetFields()
		out := make(map[string]any, len(fields))
		for k, item := range fields {
			out[k] = valueToAny(item)
		}
		return out
	default:
		return nil
	}
}
