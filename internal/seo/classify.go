package seo

import (
	"strings"

	"github.com/fyrsmithlabs/linkd/internal/anchors"
	"github.com/fyrsmithlabs/linkd/internal/catalog"
)

// Anchor type categories, per the standard anchor-profile taxonomy.
const (
	AnchorBranded      = "branded"
	AnchorExactMatch   = "exact_match"
	AnchorPartialMatch = "partial_match"
	AnchorGeneric      = "generic"
	AnchorNakedURL     = "naked_url"
	AnchorNatural      = "natural"
)

// genericAnchors are the boilerplate anchor texts that dilute a link
// profile when over-used.
var genericAnchors = map[string]struct{}{
	"click here":    {},
	"here":          {},
	"read more":     {},
	"learn more":    {},
	"this article":  {},
	"this post":     {},
	"this page":     {},
	"more":          {},
	"link":          {},
	"website":       {},
	"more info":     {},
	"find out more": {},
	"check it out":  {},
	"see more":      {},
	"continue":      {},
}

// ClassifyAnchor buckets one anchor text. target supplies the keyword
// vocabulary for exact and partial matches; brand is the site brand word.
func ClassifyAnchor(anchor string, target *catalog.Article, brand string) string {
	text := strings.ToLower(strings.TrimSpace(anchor))
	if text == "" {
		return AnchorNatural
	}

	if strings.HasPrefix(text, "http://") || strings.HasPrefix(text, "https://") ||
		strings.HasPrefix(text, "www.") {
		return AnchorNakedURL
	}

	if brand != "" && containsWord(text, brand) {
		return AnchorBranded
	}

	if _, ok := genericAnchors[text]; ok {
		return AnchorGeneric
	}

	if target != nil {
		if text == strings.ToLower(strings.TrimSpace(target.Title)) {
			return AnchorExactMatch
		}
		for _, topic := range target.MainTopics {
			if text == strings.ToLower(strings.TrimSpace(topic)) {
				return AnchorExactMatch
			}
		}
		for _, w := range anchors.DistinctiveWords(target.Title) {
			if containsWord(text, w) {
				return AnchorPartialMatch
			}
		}
	}

	return AnchorNatural
}

// containsWord reports whether text contains word as a whole word.
func containsWord(text, word string) bool {
	for from := 0; ; {
		idx := strings.Index(text[from:], word)
		if idx < 0 {
			return false
		}
		idx += from
		before := idx == 0 || !isAlnum(text[idx-1])
		afterIdx := idx + len(word)
		after := afterIdx >= len(text) || !isAlnum(text[afterIdx])
		if before && after {
			return true
		}
		from = idx + len(word)
	}
}

func isAlnum(b byte) bool {
	return b >= 'a' && b <= 'z' || b >= 'A' && b <= 'Z' || b >= '0' && b <= '9'
}
