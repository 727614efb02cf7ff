package scoring_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/fyrsmithlabs/linkd/internal/catalog"
	"github.com/fyrsmithlabs/linkd/internal/scoring"
)

func article(mutate func(*catalog.Article)) *catalog.Article {
	a := &catalog.Article{
		PostID:       1,
		Title:        "Test",
		ContentType:  catalog.TypePost,
		TopicCluster: "coffee-brewing",
		FunnelStage:  catalog.StageAwareness,
		QualityScore: 50,
	}
	if mutate != nil {
		mutate(a)
	}
	return a
}

func TestScoreRange(t *testing.T) {
	source := article(nil)

	best := article(func(a *catalog.Article) {
		a.PostID = 2
		a.ContentType = catalog.TypePage
		a.IsPillar = true
		a.FunnelStage = catalog.StageConsideration
		a.QualityScore = 100
	})
	source.TargetPersona = "home barista"
	best.TargetPersona = "home barista"

	total, breakdown := scoring.Score(source, best, 1.0)
	assert.InDelta(t, 100, total, 0.001)
	assert.Equal(t, float64(100), breakdown.Similarity)
	assert.Equal(t, float64(100), breakdown.Topic)
	assert.Equal(t, float64(100), breakdown.Funnel)
	assert.Equal(t, float64(100), breakdown.Persona)
	assert.Equal(t, float64(100), breakdown.Quality)
	assert.Equal(t, float64(100), breakdown.Pillar)
	assert.Equal(t, float64(100), breakdown.ContentType)

	worst := article(func(a *catalog.Article) {
		a.PostID = 3
		a.TopicCluster = "unrelated"
		a.FunnelStage = catalog.StageAwareness
		a.QualityScore = 1
	})
	worst.TargetPersona = "enterprise buyer"
	srcDecision := article(func(a *catalog.Article) {
		a.FunnelStage = catalog.StageDecision
		a.TargetPersona = "home barista"
	})

	total, _ = scoring.Score(srcDecision, worst, 0)
	assert.Less(t, total, 20.0)
	assert.GreaterOrEqual(t, total, 0.0)
}

func TestTopicClusterPreference(t *testing.T) {
	source := article(nil)

	same := article(func(a *catalog.Article) { a.PostID = 2 })
	related := article(func(a *catalog.Article) {
		a.PostID = 3
		a.TopicCluster = "espresso"
	})
	source.RelatedClusters = []string{"espresso"}
	cross := article(func(a *catalog.Article) {
		a.PostID = 4
		a.TopicCluster = "gardening"
	})

	sameTotal, _ := scoring.Score(source, same, 0.5)
	relatedTotal, _ := scoring.Score(source, related, 0.5)
	crossTotal, _ := scoring.Score(source, cross, 0.5)

	assert.Greater(t, sameTotal, relatedTotal)
	assert.Greater(t, relatedTotal, crossTotal)
}

func TestFunnelDirection(t *testing.T) {
	source := article(func(a *catalog.Article) { a.FunnelStage = catalog.StageConsideration })

	forward := article(func(a *catalog.Article) {
		a.PostID = 2
		a.FunnelStage = catalog.StageDecision
	})
	backward := article(func(a *catalog.Article) {
		a.PostID = 3
		a.FunnelStage = catalog.StageAwareness
	})

	forwardTotal, fb := scoring.Score(source, forward, 0.5)
	backwardTotal, bb := scoring.Score(source, backward, 0.5)

	assert.Greater(t, forwardTotal, backwardTotal)
	assert.Equal(t, float64(100), fb.Funnel)
	assert.Equal(t, float64(40), bb.Funnel)

	// Two steps backward is a strong penalty.
	srcDecision := article(func(a *catalog.Article) { a.FunnelStage = catalog.StageDecision })
	awareness := article(func(a *catalog.Article) {
		a.PostID = 4
		a.FunnelStage = catalog.StageAwareness
	})
	_, b := scoring.Score(srcDecision, awareness, 0.5)
	assert.Equal(t, float64(10), b.Funnel)

	// Unknown stages stay neutral.
	unknown := article(func(a *catalog.Article) {
		a.PostID = 5
		a.FunnelStage = catalog.StageUnknown
	})
	_, b = scoring.Score(source, unknown, 0.5)
	assert.Equal(t, float64(50), b.Funnel)
}

func TestBreakdownTotalMatchesScore(t *testing.T) {
	source := article(nil)
	candidate := article(func(a *catalog.Article) {
		a.PostID = 2
		a.FunnelStage = catalog.StageConsideration
		a.QualityScore = 80
	})

	total, breakdown := scoring.Score(source, candidate, 0.73)
	assert.InDelta(t, total, breakdown.Total(), 1e-9)
}

func TestInSilo(t *testing.T) {
	source := article(func(a *catalog.Article) {
		a.RelatedClusters = []string{"espresso"}
	})

	assert.True(t, scoring.InSilo(source, article(func(a *catalog.Article) { a.PostID = 2 })))
	assert.True(t, scoring.InSilo(source, article(func(a *catalog.Article) {
		a.PostID = 3
		a.TopicCluster = "espresso"
	})))
	assert.False(t, scoring.InSilo(source, article(func(a *catalog.Article) {
		a.PostID = 4
		a.TopicCluster = "gardening"
	})))
	assert.False(t, scoring.InSilo(source, article(func(a *catalog.Article) {
		a.PostID = 5
		a.TopicCluster = ""
	})))
}

func TestUnratedQualityIsNeutral(t *testing.T) {
	source := article(nil)
	candidate := article(func(a *catalog.Article) {
		a.PostID = 2
		a.QualityScore = 0
	})
	_, b := scoring.Score(source, candidate, 0.5)
	assert.Equal(t, float64(50), b.Quality)
}
