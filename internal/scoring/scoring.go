// Package scoring computes the hybrid business-rule score of a candidate
// link target against a source article.
//
// The score fuses vector similarity with editorial signals: topic-cluster
// proximity, funnel-stage direction, persona match, target quality, pillar
// preference, and content-type preference. Each component scores 0-100 and
// contributes a fixed weight; the weights sum to 1 so the composite stays
// on the same 0-100 scale.
package scoring

import (
	"slices"

	"github.com/fyrsmithlabs/linkd/internal/catalog"
)

// Component weights. These sum to 1.
const (
	WeightSimilarity  = 0.30
	WeightTopic       = 0.20
	WeightFunnel      = 0.15
	WeightPersona     = 0.10
	WeightQuality     = 0.10
	WeightPillar      = 0.08
	WeightContentType = 0.07
)

// Breakdown holds the per-component scores (each 0-100, pre-weight) behind
// one hybrid score.
type Breakdown struct {
	Similarity  float64 `json:"similarity"`
	Topic       float64 `json:"topicCluster"`
	Funnel      float64 `json:"funnelStage"`
	Persona     float64 `json:"persona"`
	Quality     float64 `json:"quality"`
	Pillar      float64 `json:"pillar"`
	ContentType float64 `json:"contentType"`
}

// Total recomputes the weighted composite from the components.
func (b Breakdown) Total() float64 {
	return b.Similarity*WeightSimilarity +
		b.Topic*WeightTopic +
		b.Funnel*WeightFunnel +
		b.Persona*WeightPersona +
		b.Quality*WeightQuality +
		b.Pillar*WeightPillar +
		b.ContentType*WeightContentType
}

// Score rates candidate as a link target for source. similarity is the
// vector cosine score in [0,1]. Returns the composite 0-100 and its
// breakdown.
func Score(source, candidate *catalog.Article, similarity float64) (float64, Breakdown) {
	b := Breakdown{
		Similarity:  clamp01(similarity) * 100,
		Topic:       topicScore(source, candidate),
		Funnel:      funnelScore(source.FunnelStage, candidate.FunnelStage),
		Persona:     personaScore(source.TargetPersona, candidate.TargetPersona),
		Quality:     qualityScore(candidate.QualityScore),
		Pillar:      boolScore(candidate.IsPillar),
		ContentType: contentTypeScore(source, candidate),
	}
	return b.Total(), b
}

// InSilo reports whether candidate sits inside the source's topic silo:
// the source's own cluster or one of its related clusters. Used by
// strictSilo mode to drop cross-silo candidates before scoring.
func InSilo(source, candidate *catalog.Article) bool {
	if source.TopicCluster == "" || candidate.TopicCluster == "" {
		return false
	}
	if candidate.TopicCluster == source.TopicCluster {
		return true
	}
	return slices.Contains(source.RelatedClusters, candidate.TopicCluster)
}

// topicScore: same cluster beats related clusters beats cross-cluster.
func topicScore(source, candidate *catalog.Article) float64 {
	switch {
	case source.TopicCluster != "" && candidate.TopicCluster == source.TopicCluster:
		return 100
	case slices.Contains(source.RelatedClusters, candidate.TopicCluster),
		slices.Contains(candidate.RelatedClusters, source.TopicCluster):
		return 70
	default:
		return 20
	}
}

// stageOrder maps funnel stages onto the awareness -> consideration ->
// decision axis.
var stageOrder = map[string]int{
	catalog.StageAwareness:     0,
	catalog.StageConsideration: 1,
	catalog.StageDecision:      2,
}

// funnelScore prefers forward movement along the funnel. Same stage is
// fine, one step backward is penalized, two steps backward heavily so.
func funnelScore(source, candidate string) float64 {
	from, okFrom := stageOrder[source]
	to, okTo := stageOrder[candidate]
	if !okFrom || !okTo {
		return 50
	}
	switch to - from {
	case 1, 2:
		return 100
	case 0:
		return 80
	case -1:
		return 40
	default: // -2
		return 10
	}
}

func personaScore(source, candidate string) float64 {
	if source == "" || candidate == "" {
		return 50
	}
	if source == candidate {
		return 100
	}
	return 30
}

// qualityScore passes the target's editorial quality through, defaulting
// unrated articles to neutral.
func qualityScore(quality int) float64 {
	if quality < 1 || quality > 100 {
		return 50
	}
	return float64(quality)
}

func boolScore(v bool) float64 {
	if v {
		return 100
	}
	return 0
}

// contentTypeScore prefers linking posts up to cornerstone pages.
func contentTypeScore(source, candidate *catalog.Article) float64 {
	if source.IsPost() && candidate.IsPage() {
		return 100
	}
	return 60
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
