package seo

import (
	"fmt"
	"math"
	"sort"
)

// Health grades for the metrics report.
const (
	HealthGood = "good"
	HealthFair = "fair"
	HealthPoor = "poor"
)

// ReportOptions selects the optional report sections.
type ReportOptions struct {
	IncludeOverusedAnchors      bool
	IncludePageRankDistribution bool
	IncludeContentTypeBreakdown bool
	TopOverusedLimit            int
}

// AnchorDiversitySummary describes the anchor profile.
type AnchorDiversitySummary struct {
	UniqueAnchors  int                `json:"uniqueAnchors"`
	TotalAnchors   int                `json:"totalAnchors"`
	DiversityRatio float64            `json:"diversityRatio"`
	TypeRatios     map[string]float64 `json:"typeRatios"`
}

// LinkProfileSummary describes the site link graph.
type LinkProfileSummary struct {
	TotalArticles   int     `json:"totalArticles"`
	TotalLinks      int     `json:"totalLinks"`
	Orphans         int     `json:"orphans"`
	CriticalOrphans int     `json:"criticalOrphans"`
	ReciprocalPairs int     `json:"reciprocalPairs"`
	AverageInbound  float64 `json:"averageInbound"`
}

// RankedArticle is one entry in the PageRank leaderboard.
type RankedArticle struct {
	PostID int    `json:"postId"`
	Title  string `json:"title"`
	Rank   int    `json:"rank"`
}

// PageRankSummary describes internal authority flow.
type PageRankSummary struct {
	TopArticles []RankedArticle `json:"topArticles"`
	AverageRank float64         `json:"averageRank"`
}

// ReportSummary is the always-present core of the metrics report.
type ReportSummary struct {
	AnchorDiversity  AnchorDiversitySummary `json:"anchorDiversity"`
	LinkProfile      LinkProfileSummary     `json:"linkProfile"`
	InternalPageRank PageRankSummary        `json:"internalPageRank"`
}

// OverusedAnchor is an anchor past the diversity ceiling.
type OverusedAnchor struct {
	Anchor  string `json:"anchor"`
	Count   int    `json:"count"`
	Type    string `json:"type"`
	Targets []int  `json:"targets"`
}

// ContentTypeBreakdown splits the catalog by content type.
type ContentTypeBreakdown struct {
	Posts   int `json:"posts"`
	Pages   int `json:"pages"`
	Pillars int `json:"pillars"`
}

// PageRankBucket is one band of the PageRank distribution.
type PageRankBucket struct {
	Range string `json:"range"`
	Count int    `json:"count"`
}

// Report is the full seo-metrics response body.
type Report struct {
	Health               string                `json:"health"`
	Summary              ReportSummary         `json:"summary"`
	OverusedAnchors      []OverusedAnchor      `json:"overusedAnchors,omitempty"`
	ContentTypeBreakdown *ContentTypeBreakdown `json:"contentTypeBreakdown,omitempty"`
	PageRankDistribution []PageRankBucket      `json:"pageRankDistribution,omitempty"`
	Recommendations      []string              `json:"recommendations"`
}

// Report assembles the metrics view of the current projection.
func (c *Cache) Report(opts ReportOptions) *Report {
	c.mu.RLock()
	defer c.mu.RUnlock()
	snap := c.current()

	summary := ReportSummary{
		AnchorDiversity:  anchorDiversity(snap),
		LinkProfile:      linkProfile(snap),
		InternalPageRank: pageRankSummary(snap),
	}

	r := &Report{
		Summary:         summary,
		Health:          healthGrade(summary),
		Recommendations: recommendations(summary),
	}

	if opts.IncludeOverusedAnchors {
		limit := opts.TopOverusedLimit
		if limit <= 0 {
			limit = 20
		}
		r.OverusedAnchors = overusedAnchors(snap, limit)
	}
	if opts.IncludeContentTypeBreakdown {
		r.ContentTypeBreakdown = contentTypes(snap)
	}
	if opts.IncludePageRankDistribution {
		r.PageRankDistribution = pageRankDistribution(snap)
	}
	return r
}

func anchorDiversity(snap *snapshot) AnchorDiversitySummary {
	ratios := make(map[string]float64, len(snap.typeCounts))
	for t, n := range snap.typeCounts {
		ratios[t] = round2(float64(n) / float64(snap.totalAnchors) * 100)
	}
	diversity := 0.0
	if snap.totalAnchors > 0 {
		diversity = round2(float64(len(snap.anchors)) / float64(snap.totalAnchors))
	}
	return AnchorDiversitySummary{
		UniqueAnchors:  len(snap.anchors),
		TotalAnchors:   snap.totalAnchors,
		DiversityRatio: diversity,
		TypeRatios:     ratios,
	}
}

func linkProfile(snap *snapshot) LinkProfileSummary {
	totalLinks := 0
	for _, targets := range snap.graph {
		totalLinks += len(targets)
	}
	critical := 0
	for _, o := range snap.orphans {
		if o.Critical {
			critical++
		}
	}
	inbound := 0
	for _, a := range snap.articles {
		inbound += a.InboundLinkCount
	}
	avg := 0.0
	if len(snap.articles) > 0 {
		avg = round2(float64(inbound) / float64(len(snap.articles)))
	}
	return LinkProfileSummary{
		TotalArticles:   len(snap.articles),
		TotalLinks:      totalLinks,
		Orphans:         len(snap.orphans),
		CriticalOrphans: critical,
		ReciprocalPairs: len(snap.reciprocal),
		AverageInbound:  avg,
	}
}

func pageRankSummary(snap *snapshot) PageRankSummary {
	ranked := make([]RankedArticle, 0, len(snap.pagerank))
	sum := 0
	for id, rank := range snap.pagerank {
		title := ""
		if a, ok := snap.articles[id]; ok {
			title = a.Title
		}
		ranked = append(ranked, RankedArticle{PostID: id, Title: title, Rank: rank})
		sum += rank
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].Rank != ranked[j].Rank {
			return ranked[i].Rank > ranked[j].Rank
		}
		return ranked[i].PostID < ranked[j].PostID
	})
	if len(ranked) > 10 {
		ranked = ranked[:10]
	}
	avg := 0.0
	if len(snap.pagerank) > 0 {
		avg = round2(float64(sum) / float64(len(snap.pagerank)))
	}
	return PageRankSummary{TopArticles: ranked, AverageRank: avg}
}

func overusedAnchors(snap *snapshot, limit int) []OverusedAnchor {
	var out []OverusedAnchor
	for text, u := range snap.anchors {
		if u.Count <= OverusedAnchorCount {
			continue
		}
		out = append(out, OverusedAnchor{
			Anchor:  text,
			Count:   u.Count,
			Type:    u.Type,
			Targets: append([]int(nil), u.TargetIDs...),
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Anchor < out[j].Anchor
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

func contentTypes(snap *snapshot) *ContentTypeBreakdown {
	var b ContentTypeBreakdown
	for _, a := range snap.articles {
		switch {
		case a.IsPage():
			b.Pages++
		default:
			b.Posts++
		}
		if a.IsPillar {
			b.Pillars++
		}
	}
	return &b
}

func pageRankDistribution(snap *snapshot) []PageRankBucket {
	buckets := []PageRankBucket{
		{Range: "0-20"}, {Range: "21-40"}, {Range: "41-60"},
		{Range: "61-80"}, {Range: "81-100"},
	}
	for _, rank := range snap.pagerank {
		idx := (rank - 1) / 20
		if rank == 0 {
			idx = 0
		}
		if idx > 4 {
			idx = 4
		}
		buckets[idx].Count++
	}
	return buckets
}

// healthGrade condenses the summary into one word.
func healthGrade(s ReportSummary) string {
	total := s.LinkProfile.TotalArticles
	if total == 0 {
		return HealthFair
	}
	criticalShare := float64(s.LinkProfile.CriticalOrphans) / float64(total)
	orphanShare := float64(s.LinkProfile.Orphans) / float64(total)

	switch {
	case criticalShare > 0.10 || s.AnchorDiversity.TypeRatios[AnchorExactMatch] > 40:
		return HealthPoor
	case orphanShare > 0.25 || (s.AnchorDiversity.TotalAnchors > 0 && s.AnchorDiversity.DiversityRatio < 0.3):
		return HealthFair
	default:
		return HealthGood
	}
}

// recommendations turns summary thresholds into action items.
func recommendations(s ReportSummary) []string {
	var recs []string
	if s.LinkProfile.CriticalOrphans > 0 {
		recs = append(recs, fmt.Sprintf("%d articles have no inbound links; link to them from related posts", s.LinkProfile.CriticalOrphans))
	}
	if s.LinkProfile.Orphans > s.LinkProfile.CriticalOrphans {
		recs = append(recs, fmt.Sprintf("%d articles are under-linked (2 or fewer inbound links)", s.LinkProfile.Orphans))
	}
	if s.AnchorDiversity.TypeRatios[AnchorExactMatch] > 40 {
		recs = append(recs, "exact-match anchors exceed 40% of the profile; vary anchor phrasing")
	}
	if s.AnchorDiversity.TypeRatios[AnchorGeneric] > 10 {
		recs = append(recs, "generic anchors exceed 10% of the profile; replace with descriptive phrases")
	}
	if s.LinkProfile.ReciprocalPairs > 0 {
		recs = append(recs, fmt.Sprintf("%d reciprocal link pairs exist; break up exchanges where they add no reader value", s.LinkProfile.ReciprocalPairs))
	}
	if len(recs) == 0 {
		recs = append(recs, "link profile looks healthy; keep anchors varied and new articles linked")
	}
	return recs
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
