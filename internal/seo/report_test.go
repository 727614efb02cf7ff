package seo_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/linkd/internal/catalog"
	"github.com/fyrsmithlabs/linkd/internal/seo"
)

func TestReportSummary(t *testing.T) {
	cache, _ := newCache(t,
		post(1, "Hub", func(a *catalog.Article) {
			a.OutboundLinks = []catalog.OutboundLink{{TargetID: 2, Anchor: "spoke"}}
			a.InboundLinkCount = 4
		}),
		post(2, "Spoke", func(a *catalog.Article) {
			a.InboundAnchors = []catalog.InboundAnchor{{Text: "spoke", SourceID: 1}}
			a.InboundLinkCount = 1
		}),
		post(3, "Pillar Page", func(a *catalog.Article) {
			a.ContentType = catalog.TypePage
			a.IsPillar = true
			a.InboundLinkCount = 6
		}),
	)

	r := cache.Report(seo.ReportOptions{
		IncludeOverusedAnchors:      true,
		IncludeContentTypeBreakdown: true,
		IncludePageRankDistribution: true,
	})

	assert.Contains(t, []string{seo.HealthGood, seo.HealthFair, seo.HealthPoor}, r.Health)
	assert.Equal(t, 3, r.Summary.LinkProfile.TotalArticles)
	assert.Equal(t, 1, r.Summary.LinkProfile.TotalLinks)
	assert.Equal(t, 1, r.Summary.AnchorDiversity.UniqueAnchors)
	assert.Equal(t, 1, r.Summary.AnchorDiversity.TotalAnchors)
	assert.NotEmpty(t, r.Summary.InternalPageRank.TopArticles)
	assert.NotEmpty(t, r.Recommendations)

	require.NotNil(t, r.ContentTypeBreakdown)
	assert.Equal(t, 2, r.ContentTypeBreakdown.Posts)
	assert.Equal(t, 1, r.ContentTypeBreakdown.Pages)
	assert.Equal(t, 1, r.ContentTypeBreakdown.Pillars)

	require.Len(t, r.PageRankDistribution, 5)
	total := 0
	for _, b := range r.PageRankDistribution {
		total += b.Count
	}
	assert.Equal(t, 3, total)

	// No anchor passes the over-use threshold here.
	assert.Empty(t, r.OverusedAnchors)
}

func TestReportOverusedAnchors(t *testing.T) {
	target := post(2, "Espresso Basics", func(a *catalog.Article) {
		for i := 0; i < 12; i++ {
			a.InboundAnchors = append(a.InboundAnchors, catalog.InboundAnchor{
				Text:     "espresso basics",
				SourceID: 100 + i,
			})
		}
		a.InboundLinkCount = 12
	})
	cache, _ := newCache(t, post(1, "Source", nil), target)

	r := cache.Report(seo.ReportOptions{IncludeOverusedAnchors: true, TopOverusedLimit: 5})
	require.Len(t, r.OverusedAnchors, 1)
	assert.Equal(t, "espresso basics", r.OverusedAnchors[0].Anchor)
	assert.Equal(t, 12, r.OverusedAnchors[0].Count)
}
