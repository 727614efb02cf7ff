// Package seo maintains the site-wide SEO projection of the catalog and
// scores individual link placements against it.
//
// The projection (anchor usage, link graph, reciprocal pairs, PageRank,
// orphans, first links) is rebuilt from a full catalog snapshot on a TTL.
// A rebuild constructs the whole structure aside and swaps it in under
// the write lock, so readers never observe a partially-built cache.
// Dismissed opportunities survive rebuilds.
package seo

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/linkd/internal/catalog"
)

// Orphan thresholds: articles with this few inbound links need attention;
// zero inbound is critical.
const orphanThreshold = 2

// OverusedAnchorCount is the usage count past which an anchor scores zero
// diversity and surfaces in the overused report.
const OverusedAnchorCount = 10

// AnchorUsage aggregates every use of one anchor string site-wide.
type AnchorUsage struct {
	Count     int       `json:"count"`
	TargetIDs []int     `json:"targetIds"`
	SourceIDs []int     `json:"sourceIds"`
	Type      string    `json:"type"`
	CreatedAt time.Time `json:"createdAt,omitzero"`
}

// FirstLink is the oldest inbound anchor to a target across all sources.
type FirstLink struct {
	Anchor    string    `json:"anchor"`
	SourceID  int       `json:"sourceId"`
	CreatedAt time.Time `json:"createdAt,omitzero"`
}

// Orphan is an article with too few inbound links.
type Orphan struct {
	PostID       int    `json:"postId"`
	Title        string `json:"title"`
	URL          string `json:"url"`
	InboundLinks int    `json:"inboundLinks"`
	Critical     bool   `json:"critical"`
}

// pairKey identifies an unordered article pair.
type pairKey [2]int

func sortedPair(a, b int) pairKey {
	if a > b {
		a, b = b, a
	}
	return pairKey{a, b}
}

// snapshot is one build of the derived structures. Rebuilds replace the
// whole snapshot; incremental updates mutate it under the write lock.
type snapshot struct {
	articles      map[int]*catalog.Article
	graph         map[int][]int
	reciprocal    map[pairKey]struct{}
	anchors       map[string]*AnchorUsage
	firstLinks    map[int]FirstLink
	orphans       []Orphan
	typeCounts    map[string]int
	totalAnchors  int
	pagerank      map[int]int
	topicPagerank map[string]map[int]int
}

// Cache is the process-wide SEO projection. All methods are safe for
// concurrent use.
type Cache struct {
	lister catalog.Lister
	store  catalog.Store
	logger *zap.Logger
	ttl    time.Duration
	brand  string

	mu          sync.RWMutex
	snap        *snapshot
	lastRefresh time.Time
	dismissed   map[int]map[int]catalog.DismissedLink
}

// NewCache creates an empty cache. domain is the site domain, used to
// recognize branded anchors; ttl bounds snapshot staleness (default 15
// minutes when non-positive). The store is used for persisting dismissals
// and placed links; it may be the same object backing the lister.
func NewCache(lister catalog.Lister, store catalog.Store, domain string, ttl time.Duration, logger *zap.Logger) *Cache {
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Cache{
		lister:    lister,
		store:     store,
		logger:    logger,
		ttl:       ttl,
		brand:     brandToken(domain),
		dismissed: make(map[int]map[int]catalog.DismissedLink),
	}
}

// brandToken extracts the brand word from a domain: "acme.example.com"
// and "acme.com" both yield "acme".
func brandToken(domain string) string {
	domain = strings.ToLower(strings.TrimSpace(domain))
	if domain == "" {
		return ""
	}
	parts := strings.Split(domain, ".")
	if len(parts) >= 2 {
		return parts[len(parts)-2]
	}
	return parts[0]
}

// Refresh rebuilds the projection when it is older than the TTL, or
// unconditionally when force is set. On failure the previous snapshot
// stays in place; callers on the hot path log and continue with it.
func (c *Cache) Refresh(ctx context.Context, force bool) error {
	c.mu.RLock()
	fresh := c.snap != nil && time.Since(c.lastRefresh) < c.ttl
	c.mu.RUnlock()
	if fresh && !force {
		return nil
	}

	if force {
		c.lister.Invalidate()
	}

	articles, err := c.lister.Articles(ctx)
	if err != nil {
		c.logger.Error("seo cache refresh failed, keeping previous snapshot", zap.Error(err))
		return fmt.Errorf("refreshing seo cache: %w", err)
	}

	snap := buildSnapshot(articles, c.brand)

	c.mu.Lock()
	c.snap = snap
	c.lastRefresh = time.Now()
	// Dismissals persisted in article metadata seed the in-memory set;
	// entries dismissed this process lifetime stay regardless.
	for _, a := range articles {
		for _, dl := range a.DismissedLinks {
			if _, ok := c.dismissed[a.PostID][dl.TargetID]; !ok {
				if c.dismissed[a.PostID] == nil {
					c.dismissed[a.PostID] = make(map[int]catalog.DismissedLink)
				}
				c.dismissed[a.PostID][dl.TargetID] = dl
			}
		}
	}
	c.mu.Unlock()

	c.logger.Info("seo cache refreshed",
		zap.Int("articles", len(articles)),
		zap.Int("anchors", len(snap.anchors)),
		zap.Int("orphans", len(snap.orphans)),
		zap.Int("reciprocal_pairs", len(snap.reciprocal)),
	)
	return nil
}

// Age reports time since the last successful refresh, and false when the
// cache has never been built.
func (c *Cache) Age() (time.Duration, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.snap == nil {
		return 0, false
	}
	return time.Since(c.lastRefresh), true
}

// buildSnapshot derives every projection from one article listing.
func buildSnapshot(articles []*catalog.Article, brand string) *snapshot {
	snap := &snapshot{
		articles:      make(map[int]*catalog.Article, len(articles)),
		graph:         make(map[int][]int),
		reciprocal:    make(map[pairKey]struct{}),
		anchors:       make(map[string]*AnchorUsage),
		firstLinks:    make(map[int]FirstLink),
		typeCounts:    make(map[string]int),
		pagerank:      make(map[int]int),
		topicPagerank: make(map[string]map[int]int),
	}

	for _, a := range articles {
		snap.articles[a.PostID] = a
	}

	for _, a := range articles {
		if a.InboundLinkCount <= orphanThreshold {
			snap.orphans = append(snap.orphans, Orphan{
				PostID:       a.PostID,
				Title:        a.Title,
				URL:          a.URL,
				InboundLinks: a.InboundLinkCount,
				Critical:     a.InboundLinkCount == 0,
			})
		}

		for _, ia := range a.InboundAnchors {
			snap.recordAnchor(ia, a, brand)
		}

		for _, ol := range a.OutboundLinks {
			if !contains(snap.graph[a.PostID], ol.TargetID) {
				snap.graph[a.PostID] = append(snap.graph[a.PostID], ol.TargetID)
			}
		}
	}

	sort.Slice(snap.orphans, func(i, j int) bool {
		if snap.orphans[i].InboundLinks != snap.orphans[j].InboundLinks {
			return snap.orphans[i].InboundLinks < snap.orphans[j].InboundLinks
		}
		return snap.orphans[i].PostID < snap.orphans[j].PostID
	})

	for source, targets := range snap.graph {
		for _, target := range targets {
			if contains(snap.graph[target], source) {
				snap.reciprocal[sortedPair(source, target)] = struct{}{}
			}
		}
	}

	snap.pagerank = globalPageRank(snap.articles, snap.graph)
	snap.topicPagerank = topicPageRank(snap.articles, snap.graph)

	return snap
}

// recordAnchor folds one inbound anchor into the usage map, type
// counters, and first-link map.
func (s *snapshot) recordAnchor(ia catalog.InboundAnchor, target *catalog.Article, brand string) {
	text := strings.TrimSpace(ia.Text)
	if text == "" {
		return
	}
	key := strings.ToLower(text)

	anchorType := ia.Type
	if anchorType == "" {
		anchorType = ClassifyAnchor(text, target, brand)
	}

	usage, ok := s.anchors[key]
	if !ok {
		usage = &AnchorUsage{Type: anchorType, CreatedAt: ia.CreatedAt}
		s.anchors[key] = usage
	}
	usage.Count++
	if !contains(usage.TargetIDs, target.PostID) {
		usage.TargetIDs = append(usage.TargetIDs, target.PostID)
	}
	if !contains(usage.SourceIDs, ia.SourceID) {
		usage.SourceIDs = append(usage.SourceIDs, ia.SourceID)
	}
	if !ia.CreatedAt.IsZero() && (usage.CreatedAt.IsZero() || ia.CreatedAt.Before(usage.CreatedAt)) {
		usage.CreatedAt = ia.CreatedAt
	}

	s.typeCounts[anchorType]++
	s.totalAnchors++

	first, seen := s.firstLinks[target.PostID]
	if !seen || earlierThan(ia.CreatedAt, first.CreatedAt) {
		s.firstLinks[target.PostID] = FirstLink{
			Anchor:    text,
			SourceID:  ia.SourceID,
			CreatedAt: ia.CreatedAt,
		}
	}
}

// earlierThan treats a zero time as latest, so dated anchors win the
// first-link slot over undated ones.
func earlierThan(a, b time.Time) bool {
	if a.IsZero() {
		return false
	}
	if b.IsZero() {
		return true
	}
	return a.Before(b)
}

func contains(s []int, v int) bool {
	for _, x := range s {
		if x == v {
			return true
		}
	}
	return false
}

// current returns the live snapshot, or an empty one before first
// refresh so read paths never nil-check.
func (c *Cache) current() *snapshot {
	if c.snap != nil {
		return c.snap
	}
	return &snapshot{
		articles:      map[int]*catalog.Article{},
		graph:         map[int][]int{},
		reciprocal:    map[pairKey]struct{}{},
		anchors:       map[string]*AnchorUsage{},
		firstLinks:    map[int]FirstLink{},
		typeCounts:    map[string]int{},
		pagerank:      map[int]int{},
		topicPagerank: map[string]map[int]int{},
	}
}

// Article returns the cached metadata of one article.
func (c *Cache) Article(postID int) (*catalog.Article, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	a, ok := c.current().articles[postID]
	if !ok {
		return nil, fmt.Errorf("article %d: %w", postID, catalog.ErrNotFound)
	}
	return a, nil
}

// AnchorUsageOf returns the usage entry for an anchor, or nil.
func (c *Cache) AnchorUsageOf(anchor string) *AnchorUsage {
	c.mu.RLock()
	defer c.mu.RUnlock()
	u, ok := c.current().anchors[strings.ToLower(strings.TrimSpace(anchor))]
	if !ok {
		return nil
	}
	cp := *u
	return &cp
}

// PageRankOf returns the global PageRank of an article (0 when unknown).
func (c *Cache) PageRankOf(postID int) int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.current().pagerank[postID]
}

// FirstLinkOf returns the site-wide first link to a target, if any.
func (c *Cache) FirstLinkOf(targetID int) (FirstLink, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	fl, ok := c.current().firstLinks[targetID]
	return fl, ok
}

// Links reports whether source already links to target.
func (c *Cache) Links(sourceID, targetID int) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return contains(c.current().graph[sourceID], targetID)
}

// IsReciprocalPair reports whether the two articles link to each other.
func (c *Cache) IsReciprocalPair(a, b int) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.current().reciprocal[sortedPair(a, b)]
	return ok
}

// Orphans returns the orphan list, worst first.
func (c *Cache) Orphans() []Orphan {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]Orphan, len(c.current().orphans))
	copy(out, c.current().orphans)
	return out
}
