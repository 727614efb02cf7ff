package seo

import (
	"math"
	"strings"
	"time"

	"github.com/fyrsmithlabs/linkd/internal/anchors"
	"github.com/fyrsmithlabs/linkd/internal/catalog"
	"github.com/fyrsmithlabs/linkd/internal/htmlx"
)

// Raw composite bounds: the component maxima sum to 180 and the
// reciprocal penalty can reach -15. Normalization maps this onto 0-100.
const (
	rawScoreMin = -15
	rawScoreMax = 180
)

// PageSourceScore is the hard-gate score for links out of pages.
const PageSourceScore = -999

// LinkInput carries everything the composite scorer inspects.
type LinkInput struct {
	Source *catalog.Article
	Target *catalog.Article

	// Anchor is the proposed anchor text, verbatim in SourceHTML.
	Anchor string

	// SourceHTML is the full source body as supplied on the request.
	SourceHTML string
}

// Component is one scored dimension of a link placement.
type Component struct {
	Score int    `json:"score"`
	Max   int    `json:"max"`
	Note  string `json:"note,omitempty"`
}

// ReciprocalComponent is the reciprocal-link penalty dimension.
type ReciprocalComponent struct {
	Score        int    `json:"score"`
	IsReciprocal bool   `json:"isReciprocal"`
	Note         string `json:"note,omitempty"`
}

// DecayComponent is the target-freshness dimension.
type DecayComponent struct {
	Score int    `json:"score"`
	Max   int    `json:"max"`
	Decay string `json:"decay"`
}

// Breakdown itemizes a composite link score.
type Breakdown struct {
	AnchorDiversity  Component           `json:"anchorDiversity"`
	AnchorRatio      Component           `json:"anchorRatio"`
	KeywordAlignment Component           `json:"keywordAlignment"`
	LinkPosition     Component           `json:"linkPosition"`
	FirstLink        Component           `json:"firstLink"`
	Reciprocal       ReciprocalComponent `json:"reciprocal"`
	PageRank         Component           `json:"pageRank"`
	RelevanceDecay   DecayComponent      `json:"relevanceDecay"`
	ContextQuality   Component           `json:"contextQuality"`
}

// LinkScore is the scored verdict on one proposed link.
type LinkScore struct {
	// Score is 0-100 for allowed links, PageSourceScore for gated ones.
	Score      int        `json:"score"`
	Allowed    bool       `json:"allowed"`
	AnchorType string     `json:"anchorType,omitempty"`
	Breakdown  *Breakdown `json:"breakdown,omitempty"`
}

// ScoreLink rates one proposed placement against the current projection.
func (c *Cache) ScoreLink(in LinkInput) LinkScore {
	// Pages never emit automatic links, whatever the placement looks like.
	if in.Source != nil && in.Source.IsPage() {
		return LinkScore{Score: PageSourceScore, Allowed: false}
	}

	c.mu.RLock()
	defer c.mu.RUnlock()
	snap := c.current()

	anchorType := ClassifyAnchor(in.Anchor, in.Target, c.brand)
	loc := htmlx.Locate(in.SourceHTML, in.Anchor)

	b := &Breakdown{
		AnchorDiversity:  c.diversityScore(snap, in.Anchor),
		AnchorRatio:      c.ratioScore(snap, anchorType),
		KeywordAlignment: keywordAlignment(in.Anchor, in.Target),
		LinkPosition:     positionScore(loc),
		FirstLink:        c.firstLinkScore(snap, in),
		Reciprocal:       c.reciprocalScore(snap, in),
		PageRank:         c.pageRankScore(snap, in),
		RelevanceDecay:   decayScore(in.Target, time.Now()),
		ContextQuality:   contextQuality(loc, in.Target),
	}

	raw := b.AnchorDiversity.Score + b.AnchorRatio.Score + b.KeywordAlignment.Score +
		b.LinkPosition.Score + b.FirstLink.Score + b.Reciprocal.Score +
		b.PageRank.Score + b.RelevanceDecay.Score + b.ContextQuality.Score

	return LinkScore{
		Score:      normalizeRaw(raw),
		Allowed:    true,
		AnchorType: anchorType,
		Breakdown:  b,
	}
}

// normalizeRaw maps the raw sum from [-15,180] onto 0-100.
func normalizeRaw(raw int) int {
	score := float64(raw-rawScoreMin) / float64(rawScoreMax-rawScoreMin) * 100
	return int(math.Round(math.Min(100, math.Max(0, score))))
}

// diversityScore rewards anchors the site has not leaned on yet.
func (c *Cache) diversityScore(snap *snapshot, anchor string) Component {
	count := 0
	if u, ok := snap.anchors[strings.ToLower(strings.TrimSpace(anchor))]; ok {
		count = u.Count
	}

	var score int
	switch {
	case count == 0:
		score = 30
	case count == 1:
		score = 28
	case count == 2:
		score = 25
	case count <= 5:
		score = 20
	case count <= OverusedAnchorCount:
		score = 10
	default:
		score = 0
	}
	note := ""
	if count > OverusedAnchorCount {
		note = "anchor over-used site-wide"
	}
	return Component{Score: score, Max: 30, Note: note}
}

// ratioScore penalizes anchor categories already over-represented in the
// site-wide profile.
func (c *Cache) ratioScore(snap *snapshot, anchorType string) Component {
	ratio := 0.0
	if snap.totalAnchors > 0 {
		ratio = float64(snap.typeCounts[anchorType]) / float64(snap.totalAnchors) * 100
	}

	var score int
	var note string
	switch anchorType {
	case AnchorNatural:
		score = 20
	case AnchorBranded:
		if ratio > 30 {
			score, note = 10, "branded anchors over 30% of profile"
		} else {
			score = 18
		}
	case AnchorPartialMatch:
		score = 15
	case AnchorExactMatch:
		if ratio > 40 {
			score, note = 4, "exact-match anchors over 40% of profile"
		} else {
			score = 12
		}
	case AnchorGeneric:
		if ratio > 10 {
			score, note = 2, "generic anchors over 10% of profile"
		} else {
			score = 8
		}
	case AnchorNakedURL:
		score = 5
	default:
		score = 10
	}
	return Component{Score: score, Max: 20, Note: note}
}

// domainStems folds common word variants onto one stem, so "brewing"
// aligns with "brew" in target keywords.
var domainStems = map[string]string{
	"brewing": "brew", "brewed": "brew", "brews": "brew",
	"roasting": "roast", "roasted": "roast", "roasts": "roast",
	"grinding": "grind", "grinders": "grinder", "ground": "grind",
	"investing": "invest", "investment": "invest", "investments": "invest",
	"pricing": "price", "prices": "price", "priced": "price",
	"renting": "rent", "rentals": "rent", "rental": "rent", "rents": "rent",
	"buying": "buy", "buyers": "buy", "buyer": "buy",
	"selling": "sell", "sellers": "sell", "seller": "sell",
	"linking": "link", "links": "link", "linked": "link",
}

// domainSynonyms expands equivalent phrasings within the content domain.
var domainSynonyms = map[string]string{
	"guide":    "tutorial",
	"tutorial": "guide",
	"cost":     "price",
	"price":    "cost",
	"cheap":    "budget",
	"budget":   "cheap",
	"method":   "technique",
	"property": "home",
	"house":    "home",
}

// stem applies the domain table, then a plain suffix fold.
func stem(word string) string {
	if s, ok := domainStems[word]; ok {
		return s
	}
	for _, suffix := range []string{"ing", "ed", "es", "s"} {
		if trimmed, ok := strings.CutSuffix(word, suffix); ok && len(trimmed) >= 3 {
			return trimmed
		}
	}
	return word
}

// keywordAlignment measures overlap between anchor tokens and the
// target's vocabulary (title, topics, keywords, cluster). Direct matches
// count full; stem and synonym matches count 0.8.
func keywordAlignment(anchor string, target *catalog.Article) Component {
	if target == nil {
		return Component{Max: 25}
	}

	vocab := make(map[string]struct{})
	stems := make(map[string]struct{})
	addWords := func(s string) {
		for _, w := range splitWords(strings.ToLower(s)) {
			if len(w) < 3 {
				continue
			}
			vocab[w] = struct{}{}
			stems[stem(w)] = struct{}{}
		}
	}
	addWords(target.Title)
	for _, t := range target.MainTopics {
		addWords(t)
	}
	for _, k := range target.SemanticKeywords {
		addWords(k)
	}
	addWords(strings.ReplaceAll(target.TopicCluster, "-", " "))

	tokens := splitWords(strings.ToLower(anchor))
	if len(tokens) == 0 {
		return Component{Max: 25}
	}

	total := 0.0
	counted := 0
	for _, tok := range tokens {
		if len(tok) < 3 {
			continue
		}
		counted++
		switch {
		case member(vocab, tok):
			total += 1.0
		case member(stems, stem(tok)):
			total += 0.8
		case member(vocab, domainSynonyms[tok]):
			total += 0.8
		}
	}
	if counted == 0 {
		return Component{Max: 25}
	}
	score := int(math.Round(total / float64(counted) * 25))
	return Component{Score: score, Max: 25}
}

func member(set map[string]struct{}, key string) bool {
	if key == "" {
		return false
	}
	_, ok := set[key]
	return ok
}

func splitWords(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool {
		return !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9')
	})
}

// positionScore prefers anchors early in the copy. Semantic placements
// (headings, lists, quotes) override the percentile buckets.
func positionScore(loc htmlx.AnchorContext) Component {
	if !loc.Found {
		return Component{Score: 7, Max: 25, Note: "anchor not located in source"}
	}

	switch loc.Semantic {
	case htmlx.SemanticHeading:
		return Component{Score: 25, Max: 25, Note: "inside heading"}
	case htmlx.SemanticList:
		return Component{Score: 22, Max: 25, Note: "inside list item"}
	case htmlx.SemanticBlockquote:
		return Component{Score: 20, Max: 25, Note: "inside quote or callout"}
	}

	pct := loc.Fraction * 100
	var score int
	switch {
	case pct <= 5:
		score = 20
	case pct <= 10:
		score = 19
	case pct <= 20:
		score = 17
	case pct <= 35:
		score = 15
	case pct <= 50:
		score = 13
	case pct <= 65:
		score = 11
	case pct <= 85:
		score = 9
	default:
		score = 7
	}
	return Component{Score: score, Max: 25}
}

// firstLinkScore rewards becoming a target's site-wide first link, or
// matching its established first anchor.
func (c *Cache) firstLinkScore(snap *snapshot, in LinkInput) Component {
	if in.Source == nil || in.Target == nil {
		return Component{Max: 15}
	}
	if contains(snap.graph[in.Source.PostID], in.Target.PostID) {
		return Component{Score: 0, Max: 15, Note: "source already links to target"}
	}
	first, ok := snap.firstLinks[in.Target.PostID]
	if !ok {
		return Component{Score: 15, Max: 15, Note: "would be the target's first link"}
	}
	if strings.EqualFold(strings.TrimSpace(in.Anchor), strings.TrimSpace(first.Anchor)) {
		return Component{Score: 12, Max: 15, Note: "matches established first-link anchor"}
	}
	return Component{Score: 8, Max: 15}
}

// reciprocalScore penalizes link exchanges.
func (c *Cache) reciprocalScore(snap *snapshot, in LinkInput) ReciprocalComponent {
	if in.Source == nil || in.Target == nil {
		return ReciprocalComponent{}
	}
	if contains(snap.graph[in.Target.PostID], in.Source.PostID) {
		return ReciprocalComponent{Score: -15, IsReciprocal: true, Note: "target already links back to source"}
	}
	if _, ok := snap.reciprocal[sortedPair(in.Source.PostID, in.Target.PostID)]; ok {
		return ReciprocalComponent{Score: -10, IsReciprocal: true, Note: "pair already reciprocal"}
	}
	return ReciprocalComponent{}
}

// PageRank thresholds for the flow heuristic.
const (
	highPageRank = 60
	midPageRank  = 40
	lowPageRank  = 30
)

// pageRankScore favors links that pass authority from strong pages to
// weak ones, with a topic-level bonus inside one cluster.
func (c *Cache) pageRankScore(snap *snapshot, in LinkInput) Component {
	if in.Source == nil || in.Target == nil {
		return Component{Score: 5, Max: 25}
	}
	src := snap.pagerank[in.Source.PostID]
	tgt := snap.pagerank[in.Target.PostID]

	var score int
	var note string
	switch {
	case src >= highPageRank && tgt <= lowPageRank:
		score, note = 20, "high-authority source boosting weak target"
	case src >= midPageRank:
		score = 15
	case tgt >= highPageRank:
		score = 10
	default:
		score = 5
	}

	if in.Source.TopicCluster != "" && in.Source.TopicCluster == in.Target.TopicCluster {
		if topic, ok := snap.topicPagerank[in.Source.TopicCluster]; ok {
			if topic[in.Source.PostID] >= highPageRank && topic[in.Target.PostID] <= lowPageRank {
				score += 5
				if note == "" {
					note = "boosts weak target within its cluster"
				}
			}
		}
	}
	if score > 25 {
		score = 25
	}
	return Component{Score: score, Max: 25}
}

// decayScore rates target freshness by days since last update.
func decayScore(target *catalog.Article, now time.Time) DecayComponent {
	if target == nil {
		return DecayComponent{Score: 5, Max: 15, Decay: "stale"}
	}
	updated := target.UpdatedAt
	if updated.IsZero() {
		updated = target.PublishedAt
	}
	if updated.IsZero() {
		return DecayComponent{Score: 5, Max: 15, Decay: "stale"}
	}

	days := int(now.Sub(updated).Hours() / 24)
	switch {
	case days <= 30:
		return DecayComponent{Score: 15, Max: 15, Decay: "fresh"}
	case days <= 90:
		return DecayComponent{Score: 12, Max: 15, Decay: "recent"}
	case days <= 180:
		return DecayComponent{Score: 10, Max: 15, Decay: "aging"}
	case days <= 365:
		return DecayComponent{Score: 7, Max: 15, Decay: "old"}
	default:
		return DecayComponent{Score: 5, Max: 15, Decay: "stale"}
	}
}

// boilerplatePhrases in the surrounding text suggest the anchor sits in
// navigational filler rather than substantive copy.
var boilerplatePhrases = []string{
	"click here",
	"read more",
	"as mentioned above",
	"in this article",
	"subscribe to",
	"sign up for",
	"terms of service",
	"all rights reserved",
}

// actionWords leading into an anchor make the link inviting.
var actionWords = []string{
	"learn", "discover", "explore", "read", "see", "compare", "find", "master",
}

// contextQuality inspects the text around the anchor: topic-word density
// raises it, boilerplate lowers it, a leading action word helps.
func contextQuality(loc htmlx.AnchorContext, target *catalog.Article) Component {
	if !loc.Found || loc.Window == "" {
		return Component{Max: 25}
	}
	window := strings.ToLower(loc.Window)

	score := 8

	if target != nil {
		matches := 0
		for _, w := range anchors.DistinctiveWords(target.Title) {
			if strings.Contains(window, w) {
				matches++
			}
		}
		if matches > 4 {
			matches = 4
		}
		score += matches * 3
	}

	for _, p := range boilerplatePhrases {
		if strings.Contains(window, p) {
			score -= 5
			break
		}
	}

	for _, w := range actionWords {
		if strings.Contains(window, w+" ") {
			score += 5
			break
		}
	}

	if score < 0 {
		score = 0
	}
	if score > 25 {
		score = 25
	}
	return Component{Score: score, Max: 25}
}
