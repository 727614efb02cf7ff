// Package htmlx holds the HTML analysis helpers shared by the anchor
// finder, the SEO scorer, and auto-insert: plaintext extraction, anchor
// location with semantic context, and link weaving.
//
// Parsing is forgiving: CMS content arrives as body fragments, and
// net/html accepts anything, so these helpers never fail on malformed
// markup.
package htmlx

import (
	"strings"
	"unicode"

	"github.com/PuerkitoBio/goquery"
)

// Semantic positions an anchor can occupy. The SEO scorer gives these
// fixed position scores that override the percentile buckets.
const (
	SemanticNone       = ""
	SemanticHeading    = "heading"
	SemanticList       = "list"
	SemanticBlockquote = "blockquote"
)

// AnchorContext describes where an anchor phrase sits inside content.
type AnchorContext struct {
	// Found reports whether the anchor occurs in the plaintext.
	Found bool

	// Fraction is the position of the first occurrence as a fraction of
	// the plaintext length, in [0,1].
	Fraction float64

	// Semantic is the semantic wrapper of the anchor, or SemanticNone
	// for plain flow text.
	Semantic string

	// Window is the surrounding text, 100 characters each side,
	// whitespace-collapsed.
	Window string
}

// Plaintext returns the text content of an HTML fragment with tags
// stripped. Entity references are decoded.
func Plaintext(content string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(content))
	if err != nil {
		return ""
	}
	return doc.Find("body").Text()
}

// PlaintextExcludingAnchors returns the text content with tags stripped
// and the text of existing <a> elements removed, so already-linked
// phrases do not surface as new anchor candidates.
func PlaintextExcludingAnchors(content string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(content))
	if err != nil {
		return ""
	}
	doc.Find("a").Remove()
	return doc.Find("body").Text()
}

// Locate finds the first occurrence of anchor (case-insensitive) in the
// content's plaintext and reports its position, semantic wrapper, and
// surrounding text.
func Locate(content, anchor string) AnchorContext {
	anchor = strings.TrimSpace(anchor)
	if anchor == "" {
		return AnchorContext{}
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(content))
	if err != nil {
		return AnchorContext{}
	}

	text := doc.Find("body").Text()
	idx := IndexFold(text, anchor)
	if idx < 0 {
		return AnchorContext{}
	}

	ctx := AnchorContext{
		Found:    true,
		Semantic: semanticWrapper(doc, anchor),
		Window:   CollapseSpace(window(text, idx, idx+len(anchor), 100)),
	}
	if len(text) > 0 {
		ctx.Fraction = float64(idx) / float64(len(text))
	}
	return ctx
}

// semanticWrapper reports the highest-priority semantic element whose text
// contains the anchor: headings beat list items beat quotes and callouts.
func semanticWrapper(doc *goquery.Document, anchor string) string {
	contains := func(sel string) bool {
		found := false
		doc.Find(sel).EachWithBreak(func(_ int, s *goquery.Selection) bool {
			if IndexFold(s.Text(), anchor) >= 0 {
				found = true
				return false
			}
			return true
		})
		return found
	}

	switch {
	case contains("h1,h2,h3,h4,h5,h6"):
		return SemanticHeading
	case contains("li"):
		return SemanticList
	case contains("blockquote,aside,.callout"):
		return SemanticBlockquote
	default:
		return SemanticNone
	}
}

// IndexFold returns the byte index of the first case-insensitive
// occurrence of substr in s, or -1. Matching is done fold-wise on equal
// byte lengths, so the returned span always aligns with s.
func IndexFold(s, substr string) int {
	n := len(substr)
	if n == 0 || n > len(s) {
		return -1
	}
	// Fast path for the common exact match.
	if i := strings.Index(s, substr); i >= 0 {
		return i
	}
	for i := 0; i+n <= len(s); i++ {
		if strings.EqualFold(s[i:i+n], substr) {
			return i
		}
	}
	return -1
}

// CollapseSpace folds whitespace runs into single spaces and trims.
func CollapseSpace(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	inSpace := false
	for _, r := range s {
		if unicode.IsSpace(r) {
			inSpace = true
			continue
		}
		if inSpace && b.Len() > 0 {
			b.WriteByte(' ')
		}
		inSpace = false
		b.WriteRune(r)
	}
	return b.String()
}

// window expands [start,end) by radius characters each side, clamped to
// rune boundaries.
func window(s string, start, end, radius int) string {
	left := start
	for i := 0; i < radius && left > 0; i++ {
		left--
		for left > 0 && !isRuneStart(s[left]) {
			left--
		}
	}
	right := end
	for i := 0; i < radius && right < len(s); i++ {
		right++
		for right < len(s) && !isRuneStart(s[right]) {
			right++
		}
	}
	return s[left:right]
}

func isRuneStart(b byte) bool { return b&0xC0 != 0x80 }
