package seo_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/linkd/internal/catalog"
	"github.com/fyrsmithlabs/linkd/internal/seo"
)

func newCache(t *testing.T, articles ...*catalog.Article) (*seo.Cache, *catalog.MemStore) {
	t.Helper()
	store := catalog.NewMemStore(0)
	require.NoError(t, store.Seed(context.Background(), articles...))
	lister := catalog.NewCachedLister(store, time.Minute)
	cache := seo.NewCache(lister, store, "example.com", time.Minute, zap.NewNop())
	require.NoError(t, cache.Refresh(context.Background(), true))
	return cache, store
}

func post(id int, title string, mutate func(*catalog.Article)) *catalog.Article {
	a := &catalog.Article{
		PostID:      id,
		Title:       title,
		URL:         "/post-" + title,
		ContentType: catalog.TypePost,
	}
	if mutate != nil {
		mutate(a)
	}
	return a
}

func TestRefreshBuildsProjections(t *testing.T) {
	created := time.Date(2026, 1, 10, 0, 0, 0, 0, time.UTC)
	later := created.Add(48 * time.Hour)

	cache, _ := newCache(t,
		post(1, "Coffee Grinders", func(a *catalog.Article) {
			a.OutboundLinks = []catalog.OutboundLink{{TargetID: 2, Anchor: "espresso basics", CreatedAt: created}}
			a.InboundLinkCount = 5
		}),
		post(2, "Espresso Basics", func(a *catalog.Article) {
			a.InboundAnchors = []catalog.InboundAnchor{
				{Text: "espresso basics", SourceID: 1, CreatedAt: created},
				{Text: "espresso basics", SourceID: 3, CreatedAt: later},
			}
			a.InboundLinkCount = 2
			a.OutboundLinks = []catalog.OutboundLink{{TargetID: 1, Anchor: "coffee grinders", CreatedAt: later}}
		}),
		post(3, "Milk Frothing", nil),
	)

	// Anchor usage is keyed lowercased and counts both placements.
	usage := cache.AnchorUsageOf("Espresso Basics")
	require.NotNil(t, usage)
	assert.Equal(t, 2, usage.Count)
	assert.Equal(t, []int{2}, usage.TargetIDs)
	assert.ElementsMatch(t, []int{1, 3}, usage.SourceIDs)

	// First link is the oldest inbound anchor.
	first, ok := cache.FirstLinkOf(2)
	require.True(t, ok)
	assert.Equal(t, 1, first.SourceID)
	assert.Equal(t, created, first.CreatedAt)

	// 1->2 and 2->1 form a reciprocal pair.
	assert.True(t, cache.Links(1, 2))
	assert.True(t, cache.IsReciprocalPair(1, 2))
	assert.True(t, cache.IsReciprocalPair(2, 1))
	assert.False(t, cache.IsReciprocalPair(1, 3))

	// Orphans: post 2 has 2 inbound (orphan), post 3 has 0 (critical).
	orphans := cache.Orphans()
	require.Len(t, orphans, 2)
	assert.Equal(t, 3, orphans[0].PostID)
	assert.True(t, orphans[0].Critical)
	assert.Equal(t, 2, orphans[1].PostID)
	assert.False(t, orphans[1].Critical)
}

func TestPageRankRingIsUniform(t *testing.T) {
	// A 10-node ring: every node should rank the same within rounding.
	articles := make([]*catalog.Article, 10)
	for i := range articles {
		next := (i+1)%10 + 1
		articles[i] = post(i+1, "Ring", func(a *catalog.Article) {
			a.OutboundLinks = []catalog.OutboundLink{{TargetID: next, Anchor: "next"}}
			a.InboundLinkCount = 5
		})
	}
	cache, _ := newCache(t, articles...)

	base := cache.PageRankOf(1)
	for id := 1; id <= 10; id++ {
		assert.InDelta(t, base, cache.PageRankOf(id), 1,
			"node %d should rank within 1 of node 1", id)
	}
	assert.LessOrEqual(t, base, 100)
	assert.GreaterOrEqual(t, base, 99)
}

func TestPageRankRange(t *testing.T) {
	cache, _ := newCache(t,
		post(1, "Hub", func(a *catalog.Article) {
			a.OutboundLinks = []catalog.OutboundLink{
				{TargetID: 2, Anchor: "a"}, {TargetID: 3, Anchor: "b"},
			}
		}),
		post(2, "Spoke A", func(a *catalog.Article) {
			a.OutboundLinks = []catalog.OutboundLink{{TargetID: 3, Anchor: "c"}}
		}),
		post(3, "Popular", nil),
	)

	maxRank := 0
	for id := 1; id <= 3; id++ {
		rank := cache.PageRankOf(id)
		assert.GreaterOrEqual(t, rank, 0)
		assert.LessOrEqual(t, rank, 100)
		if rank > maxRank {
			maxRank = rank
		}
	}
	assert.Equal(t, 100, maxRank)
	// The most-linked node holds the top rank.
	assert.Equal(t, 100, cache.PageRankOf(3))
}

func TestRefreshIdempotent(t *testing.T) {
	cache, _ := newCache(t,
		post(1, "One", func(a *catalog.Article) {
			a.OutboundLinks = []catalog.OutboundLink{{TargetID: 2, Anchor: "two"}}
		}),
		post(2, "Two", func(a *catalog.Article) {
			a.InboundAnchors = []catalog.InboundAnchor{{Text: "two", SourceID: 1}}
			a.InboundLinkCount = 1
		}),
	)

	before := cache.Report(seo.ReportOptions{
		IncludeOverusedAnchors:      true,
		IncludePageRankDistribution: true,
		IncludeContentTypeBreakdown: true,
	})
	require.NoError(t, cache.Refresh(context.Background(), true))
	after := cache.Report(seo.ReportOptions{
		IncludeOverusedAnchors:      true,
		IncludePageRankDistribution: true,
		IncludeContentTypeBreakdown: true,
	})

	assert.Equal(t, before, after)
}

func TestDismissRestoreRoundTrip(t *testing.T) {
	cache, store := newCache(t, post(1, "Source", nil), post(2, "Target", nil))
	ctx := context.Background()

	require.Empty(t, cache.Dismissed(1))

	require.NoError(t, cache.Dismiss(ctx, 1, 2, "not relevant", true))
	assert.True(t, cache.IsDismissed(1, 2))

	dismissed := cache.Dismissed(1)
	require.Len(t, dismissed, 1)
	assert.Equal(t, 2, dismissed[0].TargetID)
	assert.Equal(t, "not relevant", dismissed[0].Reason)

	// Persisted through to the article metadata.
	a, err := store.Get(ctx, 1)
	require.NoError(t, err)
	require.Len(t, a.DismissedLinks, 1)

	require.NoError(t, cache.Restore(ctx, 1, 2, true))
	assert.False(t, cache.IsDismissed(1, 2))
	assert.Empty(t, cache.Dismissed(1))

	a, err = store.Get(ctx, 1)
	require.NoError(t, err)
	assert.Empty(t, a.DismissedLinks)
}

func TestDismissalsSurviveRefresh(t *testing.T) {
	cache, _ := newCache(t, post(1, "Source", nil), post(2, "Target", nil))
	ctx := context.Background()

	require.NoError(t, cache.Dismiss(ctx, 1, 2, "seasonal", false))
	require.NoError(t, cache.Refresh(ctx, true))
	assert.True(t, cache.IsDismissed(1, 2))
}

func TestIncrementalUpdate(t *testing.T) {
	cache, _ := newCache(t,
		post(1, "Source", nil),
		post(2, "Pour-Over Guide", nil),
	)

	cache.BatchIncrementalUpdate([]seo.PlacedLink{
		{SourceID: 1, TargetID: 2, Anchor: "pour-over technique"},
	})

	usage := cache.AnchorUsageOf("pour-over technique")
	require.NotNil(t, usage)
	assert.Equal(t, 1, usage.Count)

	assert.True(t, cache.Links(1, 2))

	first, ok := cache.FirstLinkOf(2)
	require.True(t, ok)
	assert.Equal(t, "pour-over technique", first.Anchor)
	assert.Equal(t, 1, first.SourceID)

	// Second placement of the same anchor bumps the count, keeps first.
	cache.BatchIncrementalUpdate([]seo.PlacedLink{
		{SourceID: 3, TargetID: 2, Anchor: "Pour-Over Technique"},
	})
	usage = cache.AnchorUsageOf("pour-over technique")
	assert.Equal(t, 2, usage.Count)
}

func TestTrackAnchorUsagePersists(t *testing.T) {
	cache, store := newCache(t, post(1, "Source", nil), post(2, "Target", nil))
	ctx := context.Background()

	require.NoError(t, cache.TrackAnchorUsage(ctx, seo.PlacedLink{
		SourceID: 1, TargetID: 2, Anchor: "target things",
	}, true))

	src, err := store.Get(ctx, 1)
	require.NoError(t, err)
	require.Len(t, src.OutboundLinks, 1)
	assert.Equal(t, 2, src.OutboundLinks[0].TargetID)

	tgt, err := store.Get(ctx, 2)
	require.NoError(t, err)
	require.Len(t, tgt.InboundAnchors, 1)
	assert.Equal(t, 1, tgt.InboundLinkCount)
}

func TestTTLGuard(t *testing.T) {
	store := catalog.NewMemStore(0)
	require.NoError(t, store.Seed(context.Background(), post(1, "One", nil)))
	lister := catalog.NewCachedLister(store, time.Minute)
	cache := seo.NewCache(lister, store, "example.com", time.Hour, zap.NewNop())

	require.NoError(t, cache.Refresh(context.Background(), false))
	_, ok := cache.Age()
	require.True(t, ok)

	// Adding an article without forcing does not rebuild inside the TTL.
	require.NoError(t, store.Seed(context.Background(), post(2, "Two", nil)))
	require.NoError(t, cache.Refresh(context.Background(), false))
	assert.Equal(t, 0, cache.PageRankOf(2))

	require.NoError(t, cache.Refresh(context.Background(), true))
	assert.NotEqual(t, 0, cache.PageRankOf(2))
}
