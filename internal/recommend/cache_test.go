package recommend

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/linkd/internal/catalog"
)

func TestCacheKeyStableAndDistinct(t *testing.T) {
	k1 := cacheKey(10, "some content body", 5)
	k2 := cacheKey(10, "some content body", 5)
	assert.Equal(t, k1, k2)
	assert.Len(t, k1, 64)

	assert.NotEqual(t, k1, cacheKey(11, "some content body", 5))
	assert.NotEqual(t, k1, cacheKey(10, "other content body", 5))
	assert.NotEqual(t, k1, cacheKey(10, "some content body", 3))
}

func TestCacheKeyIgnoresTailEdits(t *testing.T) {
	head := make([]byte, 1000)
	for i := range head {
		head[i] = 'a'
	}
	assert.Equal(t,
		cacheKey(1, string(head)+" tail one", 5),
		cacheKey(1, string(head)+" different tail", 5))
}

func TestResponseCacheTTL(t *testing.T) {
	c := newResponseCache(time.Hour, 10)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }

	c.put("k", &Response{Success: true})
	_, ok := c.get("k")
	assert.True(t, ok)

	now = now.Add(2 * time.Hour)
	_, ok = c.get("k")
	assert.False(t, ok)
	assert.Equal(t, 0, c.len())
}

func TestResponseCacheEvictsOldestBatch(t *testing.T) {
	c := newResponseCache(time.Hour, 200)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }

	for i := 0; i < 200; i++ {
		c.put(cacheKey(i, "body", 5), &Response{Success: true})
		now = now.Add(time.Second)
	}
	require.Equal(t, 200, c.len())

	c.put(cacheKey(999, "body", 5), &Response{Success: true})
	assert.Equal(t, 101, c.len())

	// The oldest entries are the ones that went.
	_, ok := c.get(cacheKey(0, "body", 5))
	assert.False(t, ok)
	_, ok = c.get(cacheKey(199, "body", 5))
	assert.True(t, ok)
}

func TestFreshnessDecayBuckets(t *testing.T) {
	now := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	cases := []struct {
		age   time.Duration
		delta float64
	}{
		{10 * 24 * time.Hour, 5},
		{60 * 24 * time.Hour, 3},
		{150 * 24 * time.Hour, 1},
		{300 * 24 * time.Hour, 0},
		{400 * 24 * time.Hour, -5},
	}
	for _, tc := range cases {
		a := &catalog.Article{UpdatedAt: now.Add(-tc.age)}
		delta, factor := FreshnessDecay{}.Adjust(a, now)
		assert.Equal(t, tc.delta, delta, "age %v", tc.age)
		assert.Zero(t, factor)
	}

	// No dates at all reads as stale.
	delta, _ := FreshnessDecay{}.Adjust(&catalog.Article{}, now)
	assert.Equal(t, float64(-5), delta)

	// PublishedAt stands in for a missing UpdatedAt.
	delta, _ = FreshnessDecay{}.Adjust(&catalog.Article{
		PublishedAt: now.Add(-10 * 24 * time.Hour),
	}, now)
	assert.Equal(t, float64(5), delta)
}

func TestApplyEnhancersClampsAtZero(t *testing.T) {
	now := time.Now()
	score, notes := applyEnhancers(defaultEnhancers(), &catalog.Article{}, 3, now)
	assert.Equal(t, float64(0), score)
	require.Len(t, notes, 1)
	assert.Equal(t, "freshnessDecay", notes[0].Name)
	assert.Equal(t, float64(-5), notes[0].Delta)
}

func balTarget(id int, stage string, score float64) *recommendation {
	return &recommendation{
		article:  &catalog.Article{PostID: id, FunnelStage: stage},
		enhanced: score,
	}
}

func TestBalanceFunnelQuotas(t *testing.T) {
	recs := []*recommendation{
		balTarget(1, catalog.StageAwareness, 95),
		balTarget(2, catalog.StageAwareness, 90),
		balTarget(3, catalog.StageAwareness, 85),
		balTarget(4, catalog.StageConsideration, 80),
		balTarget(5, catalog.StageConsideration, 75),
		balTarget(6, catalog.StageDecision, 70),
	}

	out := balanceFunnel(recs, 5)
	require.Len(t, out, 6)

	stages := map[string]int{}
	for _, r := range out[:5] {
		stages[r.article.FunnelStage]++
	}
	// 5 links at .3/.4/.3 rounds to 1/2/1 plus one largest-remainder pick.
	assert.Equal(t, 2, stages[catalog.StageConsideration])
	assert.GreaterOrEqual(t, stages[catalog.StageAwareness], 1)
	assert.Equal(t, 1, stages[catalog.StageDecision])
}

func TestBalanceFunnelSingleStagePassThrough(t *testing.T) {
	recs := []*recommendation{
		balTarget(1, catalog.StageAwareness, 95),
		balTarget(2, catalog.StageAwareness, 90),
		balTarget(3, "", 85),
	}
	out := balanceFunnel(recs, 2)
	assert.Equal(t, recs, out)
}
