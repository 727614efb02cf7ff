package seo_test

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/linkd/internal/catalog"
	"github.com/fyrsmithlabs/linkd/internal/seo"
)

func TestScoreLinkPageSourceGate(t *testing.T) {
	cache, _ := newCache(t)

	got := cache.ScoreLink(seo.LinkInput{
		Source: &catalog.Article{PostID: 1, ContentType: catalog.TypePage},
		Target: &catalog.Article{PostID: 2, ContentType: catalog.TypePost},
		Anchor: "anything",
	})

	assert.Equal(t, seo.PageSourceScore, got.Score)
	assert.False(t, got.Allowed)
	assert.Nil(t, got.Breakdown)
}

func TestScoreLinkReciprocalPenalty(t *testing.T) {
	// Catalog contains A(1) -> B(2). Proposing B -> A must flag the
	// reciprocal penalty at -15.
	cache, _ := newCache(t,
		post(1, "Article A", func(a *catalog.Article) {
			a.OutboundLinks = []catalog.OutboundLink{{TargetID: 2, Anchor: "article b"}}
		}),
		post(2, "Article B", func(a *catalog.Article) {
			a.InboundAnchors = []catalog.InboundAnchor{{Text: "article b", SourceID: 1}}
			a.InboundLinkCount = 1
		}),
	)

	source, err := cache.Article(2)
	require.NoError(t, err)
	target, err := cache.Article(1)
	require.NoError(t, err)

	got := cache.ScoreLink(seo.LinkInput{
		Source:     source,
		Target:     target,
		Anchor:     "article a details",
		SourceHTML: "<p>See article a details for more.</p>",
	})

	require.True(t, got.Allowed)
	require.NotNil(t, got.Breakdown)
	assert.Equal(t, -15, got.Breakdown.Reciprocal.Score)
	assert.True(t, got.Breakdown.Reciprocal.IsReciprocal)
}

func TestScoreLinkStaleTarget(t *testing.T) {
	cache, _ := newCache(t, post(1, "Source", nil))

	target := post(2, "Old News", func(a *catalog.Article) {
		a.UpdatedAt = time.Now().Add(-400 * 24 * time.Hour)
	})
	source := post(1, "Source", nil)

	got := cache.ScoreLink(seo.LinkInput{
		Source:     source,
		Target:     target,
		Anchor:     "old news recap",
		SourceHTML: "<p>Read our old news recap sometime.</p>",
	})

	require.NotNil(t, got.Breakdown)
	assert.Equal(t, "stale", got.Breakdown.RelevanceDecay.Decay)
	assert.Equal(t, 5, got.Breakdown.RelevanceDecay.Score)
}

func TestScoreLinkDiversityBuckets(t *testing.T) {
	// Eleven prior placements of one anchor drive its diversity to zero.
	target := post(2, "Espresso Basics", func(a *catalog.Article) {
		for i := 0; i < 11; i++ {
			a.InboundAnchors = append(a.InboundAnchors, catalog.InboundAnchor{
				Text:     "espresso basics",
				SourceID: 10 + i,
			})
		}
		a.InboundLinkCount = 11
	})
	cache, _ := newCache(t, post(1, "Source", nil), target)

	got := cache.ScoreLink(seo.LinkInput{
		Source:     post(1, "Source", nil),
		Target:     target,
		Anchor:     "espresso basics",
		SourceHTML: "<p>Try espresso basics first.</p>",
	})
	require.NotNil(t, got.Breakdown)
	assert.Equal(t, 0, got.Breakdown.AnchorDiversity.Score)

	// An unseen anchor gets the full diversity score.
	got = cache.ScoreLink(seo.LinkInput{
		Source:     post(1, "Source", nil),
		Target:     target,
		Anchor:     "dialing in espresso shots",
		SourceHTML: "<p>Start by dialing in espresso shots.</p>",
	})
	assert.Equal(t, 30, got.Breakdown.AnchorDiversity.Score)
}

func TestScoreLinkFirstLink(t *testing.T) {
	created := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	cache, _ := newCache(t,
		post(1, "Source", nil),
		post(2, "Unlinked Target", nil),
		post(3, "Linked Target", func(a *catalog.Article) {
			a.InboundAnchors = []catalog.InboundAnchor{
				{Text: "linked target guide", SourceID: 4, CreatedAt: created},
			}
			a.InboundLinkCount = 1
		}),
	)

	src := post(1, "Source", nil)
	html := "<p>About the unlinked target guide and the linked target guide.</p>"

	// No first link yet: full score.
	got := cache.ScoreLink(seo.LinkInput{
		Source: src, Target: post(2, "Unlinked Target", nil),
		Anchor: "unlinked target guide", SourceHTML: html,
	})
	assert.Equal(t, 15, got.Breakdown.FirstLink.Score)

	// Matches the established first-link anchor.
	got = cache.ScoreLink(seo.LinkInput{
		Source: src, Target: post(3, "Linked Target", nil),
		Anchor: "Linked Target Guide", SourceHTML: html,
	})
	assert.Equal(t, 12, got.Breakdown.FirstLink.Score)

	// Different anchor against an existing first link.
	got = cache.ScoreLink(seo.LinkInput{
		Source: src, Target: post(3, "Linked Target", nil),
		Anchor: "another linked phrase", SourceHTML: html,
	})
	assert.Equal(t, 8, got.Breakdown.FirstLink.Score)
}

func TestScoreLinkPositionSemanticOverride(t *testing.T) {
	cache, _ := newCache(t, post(1, "Source", nil))
	target := post(2, "Burr Grinders", nil)
	source := post(1, "Source", nil)

	heading := cache.ScoreLink(seo.LinkInput{
		Source: source, Target: target,
		Anchor:     "burr grinders",
		SourceHTML: "<h2>Why burr grinders win</h2><p>" + strings.Repeat("Text. ", 100) + "</p>",
	})
	assert.Equal(t, 25, heading.Breakdown.LinkPosition.Score)

	list := cache.ScoreLink(seo.LinkInput{
		Source: source, Target: target,
		Anchor:     "burr grinders",
		SourceHTML: "<p>" + strings.Repeat("Text. ", 100) + "</p><ul><li>Get burr grinders</li></ul>",
	})
	assert.Equal(t, 22, list.Breakdown.LinkPosition.Score)

	early := cache.ScoreLink(seo.LinkInput{
		Source: source, Target: target,
		Anchor:     "burr grinders",
		SourceHTML: "<p>burr grinders come first here. " + strings.Repeat("Unrelated filler text. ", 100) + "</p>",
	})
	assert.Equal(t, 20, early.Breakdown.LinkPosition.Score)
}

func TestScoreLinkNormalizedRange(t *testing.T) {
	cache, _ := newCache(t, post(1, "Source", nil), post(2, "Great Espresso Machines", nil))

	got := cache.ScoreLink(seo.LinkInput{
		Source:     post(1, "Source", nil),
		Target:     post(2, "Great Espresso Machines", nil),
		Anchor:     "great espresso machines",
		SourceHTML: "<p>Compare great espresso machines before buying.</p>",
	})

	assert.True(t, got.Allowed)
	assert.GreaterOrEqual(t, got.Score, 0)
	assert.LessOrEqual(t, got.Score, 100)
	assert.NotEmpty(t, got.AnchorType)
}

func TestClassifyAnchor(t *testing.T) {
	target := &catalog.Article{
		PostID:     2,
		Title:      "Best Espresso Machines",
		MainTopics: []string{"espresso machines"},
	}

	cases := []struct {
		anchor string
		want   string
	}{
		{"https://example.com/espresso", seo.AnchorNakedURL},
		{"www.example.com", seo.AnchorNakedURL},
		{"example coffee blog", seo.AnchorBranded},
		{"click here", seo.AnchorGeneric},
		{"Best Espresso Machines", seo.AnchorExactMatch},
		{"espresso machines", seo.AnchorExactMatch},
		{"a solid espresso setup", seo.AnchorPartialMatch},
		{"our favorite brewing gear", seo.AnchorNatural},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, seo.ClassifyAnchor(tc.anchor, target, "example"), "anchor %q", tc.anchor)
	}
}
