// Package anchors finds verbatim anchor phrases for internal links.
//
// Given a source body and a target article, the finder proposes at most
// one phrase that already occurs in the source text and would read
// naturally as a link to the target. Candidates come from three families
// (whole sentences, target-title n-grams, contextual windows around
// distinctive words); the highest-scoring survivor wins, with
// deterministic tie-breaking so repeated runs propose the same anchor.
package anchors

import (
	"sort"
	"strings"
	"unicode"

	"github.com/fyrsmithlabs/linkd/internal/catalog"
	"github.com/fyrsmithlabs/linkd/internal/htmlx"
)

// Anchor positions within the source body.
const (
	PositionIntro      = "intro"
	PositionBody       = "body"
	PositionConclusion = "conclusion"
)

// Anchor candidate families.
const (
	TypeSentence   = "sentence"
	TypePhrase     = "phrase"
	TypeContextual = "contextual"
)

// Position multipliers: links early in the copy are read more, links in
// the conclusion convert, mid-body is baseline.
const (
	introMultiplier      = 1.5
	conclusionMultiplier = 1.3
)

// Sentence and window length bounds, in characters.
const (
	sentenceMinLen = 20
	sentenceMaxLen = 150
	phraseMinLen   = 12
	windowMinLen   = 15
	windowMaxLen   = 80
	windowRadius   = 30
)

// Anchor is one proposed anchor phrase, verbatim present in the source.
type Anchor struct {
	// Text is the exact phrase as it appears in the source plaintext.
	Text string

	// Context is the surrounding text, for placement hints.
	Context string

	// Position is intro, body, or conclusion.
	Position string

	// Score is the candidate score; higher is better.
	Score float64

	// Type is the candidate family that produced the anchor.
	Type string

	// MatchingWords are the target's distinctive words found in the text.
	MatchingWords []string
}

// Find returns the best anchor in body for linking to target, or nil when
// no acceptable phrase exists. used holds lowercased anchors already
// consumed elsewhere on the page; they are never proposed again.
func Find(body string, target *catalog.Article, used map[string]struct{}) *Anchor {
	distinctive := DistinctiveWords(target.Title)
	if len(distinctive) == 0 {
		// Target title is all stopwords and filler; any anchor for it
		// would be generic.
		return nil
	}

	text := htmlx.PlaintextExcludingAnchors(body)
	if strings.TrimSpace(text) == "" {
		return nil
	}

	introEnd := len(text) / 5
	if introEnd > 500 {
		introEnd = 500
	}
	conclusionStart := len(text) * 4 / 5

	bounds := positionBounds{introEnd: introEnd, conclusionStart: conclusionStart}

	var candidates []Anchor
	candidates = append(candidates, sentenceCandidates(text, distinctive, bounds)...)
	candidates = append(candidates, phraseCandidates(text, target.Title, distinctive, bounds)...)
	candidates = append(candidates, contextualCandidates(text, distinctive, bounds)...)

	best := pickBest(candidates, used)
	if best == nil {
		return nil
	}
	out := *best
	return &out
}

type positionBounds struct {
	introEnd        int
	conclusionStart int
}

func (b positionBounds) at(offset int) (string, float64) {
	switch {
	case offset < b.introEnd:
		return PositionIntro, introMultiplier
	case offset >= b.conclusionStart:
		return PositionConclusion, conclusionMultiplier
	default:
		return PositionBody, 1.0
	}
}

// scored pairs a candidate with its start offset for tie-breaking.
type scoredCandidate struct {
	Anchor
	start int
}

// sentenceCandidates proposes whole sentences that mention at least two
// distinctive words. Score scales with coverage of the distinctive set.
func sentenceCandidates(text string, distinctive []string, bounds positionBounds) []Anchor {
	var out []Anchor
	for _, s := range splitSentences(text) {
		trimmed := strings.TrimSpace(s.text)
		if len(trimmed) < sentenceMinLen || len(trimmed) > sentenceMaxLen {
			continue
		}
		if isGenericPhrase(trimmed) {
			continue
		}
		matched := matchingWords(trimmed, distinctive)
		if len(matched) < 2 {
			continue
		}
		pos, mult := bounds.at(s.start)
		out = append(out, Anchor{
			Text:          trimmed,
			Context:       htmlx.CollapseSpace(trimmed),
			Position:      pos,
			Score:         float64(len(matched)) / float64(len(distinctive)) * mult * 100,
			Type:          TypeSentence,
			MatchingWords: matched,
		})
	}
	return out
}

// phraseCandidates proposes contiguous 3-6 word runs of the target title
// that occur verbatim in the source text.
func phraseCandidates(text, title string, distinctive []string, bounds positionBounds) []Anchor {
	words := tokenize(title)
	var out []Anchor
	for n := 3; n <= 6; n++ {
		for i := 0; i+n <= len(words); i++ {
			phrase := strings.Join(words[i:i+n], " ")
			if len(phrase) < phraseMinLen || isGenericPhrase(phrase) {
				continue
			}
			matched := matchingWords(phrase, distinctive)
			if len(matched) == 0 {
				continue
			}
			idx := htmlx.IndexFold(text, phrase)
			if idx < 0 {
				continue
			}
			pos, mult := bounds.at(idx)
			out = append(out, Anchor{
				Text:          text[idx : idx+len(phrase)],
				Context:       htmlx.CollapseSpace(surrounding(text, idx, idx+len(phrase))),
				Position:      pos,
				Score:         80 * mult * float64(n) / 3,
				Type:          TypePhrase,
				MatchingWords: matched,
			})
		}
	}
	return out
}

// contextualCandidates proposes short windows around each occurrence of a
// distinctive word, snapped to word boundaries.
func contextualCandidates(text string, distinctive []string, bounds positionBounds) []Anchor {
	lower := strings.ToLower(text)
	var out []Anchor
	for _, word := range distinctive {
		for _, idx := range wordOccurrences(lower, word) {
			start := snapLeft(text, idx-windowRadius)
			end := snapRight(text, idx+len(word)+windowRadius)
			window := strings.TrimSpace(text[start:end])
			if len(window) < windowMinLen || len(window) > windowMaxLen {
				continue
			}
			if isGenericPhrase(window) {
				continue
			}
			matched := matchingWords(window, distinctive)
			pos, mult := bounds.at(idx)
			out = append(out, Anchor{
				Text:          window,
				Context:       htmlx.CollapseSpace(surrounding(text, start, end)),
				Position:      pos,
				Score:         60 * mult * float64(len(matched)),
				Type:          TypeContextual,
				MatchingWords: matched,
			})
		}
	}
	return out
}

// pickBest applies the used-anchor filter and the deterministic ordering:
// score, then longer text, then earlier position, then lexicographic.
func pickBest(candidates []Anchor, used map[string]struct{}) *Anchor {
	posRank := map[string]int{PositionIntro: 0, PositionBody: 1, PositionConclusion: 2}

	kept := candidates[:0]
	for _, c := range candidates {
		if _, taken := used[strings.ToLower(c.Text)]; taken {
			continue
		}
		kept = append(kept, c)
	}
	if len(kept) == 0 {
		return nil
	}

	sort.Slice(kept, func(i, j int) bool {
		a, b := kept[i], kept[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if len(a.Text) != len(b.Text) {
			return len(a.Text) > len(b.Text)
		}
		if posRank[a.Position] != posRank[b.Position] {
			return posRank[a.Position] < posRank[b.Position]
		}
		return a.Text < b.Text
	})
	return &kept[0]
}

// DistinctiveWords tokenizes a title and drops stopwords and
// domain-generic filler, returning lowercased unique words in order.
func DistinctiveWords(title string) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, w := range tokenize(strings.ToLower(title)) {
		if len(w) < 3 {
			continue
		}
		if _, stop := stopwords[w]; stop {
			continue
		}
		if _, generic := genericTerms[w]; generic {
			continue
		}
		if _, dup := seen[w]; dup {
			continue
		}
		seen[w] = struct{}{}
		out = append(out, w)
	}
	return out
}

type sentence struct {
	text  string
	start int
}

// splitSentences cuts text at sentence terminators and newlines, keeping
// each sentence's start offset.
func splitSentences(text string) []sentence {
	var out []sentence
	start := 0
	for i, r := range text {
		if r == '.' || r == '!' || r == '?' || r == '\n' {
			if i > start {
				out = append(out, sentence{text: text[start:i], start: start})
			}
			start = i + 1
		}
	}
	if start < len(text) {
		out = append(out, sentence{text: text[start:], start: start})
	}
	return out
}

// matchingWords returns the distinctive words present in s as whole words.
func matchingWords(s string, distinctive []string) []string {
	present := make(map[string]struct{})
	for _, w := range tokenize(strings.ToLower(s)) {
		present[w] = struct{}{}
	}
	var out []string
	for _, w := range distinctive {
		if _, ok := present[w]; ok {
			out = append(out, w)
		}
	}
	return out
}

// wordOccurrences finds every whole-word occurrence of word in lower.
func wordOccurrences(lower, word string) []int {
	var out []int
	for from := 0; ; {
		idx := strings.Index(lower[from:], word)
		if idx < 0 {
			return out
		}
		idx += from
		before := idx == 0 || !isWordByte(lower[idx-1])
		afterIdx := idx + len(word)
		after := afterIdx >= len(lower) || !isWordByte(lower[afterIdx])
		if before && after {
			out = append(out, idx)
		}
		from = idx + len(word)
	}
}

func isWordByte(b byte) bool {
	return b >= 'a' && b <= 'z' || b >= 'A' && b <= 'Z' || b >= '0' && b <= '9'
}

// snapLeft moves start right to the first word boundary at or after it.
func snapLeft(text string, start int) int {
	if start <= 0 {
		return 0
	}
	for start < len(text) && isWordByte(text[start-1]) {
		start++
	}
	return start
}

// snapRight moves end left to the last word boundary at or before it.
func snapRight(text string, end int) int {
	if end >= len(text) {
		return len(text)
	}
	for end > 0 && isWordByte(text[end]) {
		end--
	}
	return end
}

func surrounding(text string, start, end int) string {
	left := start - 40
	if left < 0 {
		left = 0
	}
	right := end + 40
	if right > len(text) {
		right = len(text)
	}
	return text[left:right]
}

// tokenize splits on any non-alphanumeric rune.
func tokenize(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

func isGenericPhrase(s string) bool {
	lower := strings.ToLower(s)
	for _, p := range genericPhrases {
		if strings.Contains(lower, p) {
			return true
		}
	}
	return false
}

// stopwords are function words that carry no linking signal.
var stopwords = map[string]struct{}{
	"the": {}, "and": {}, "for": {}, "are": {}, "but": {}, "not": {},
	"you": {}, "your": {}, "all": {}, "can": {}, "with": {}, "was": {},
	"this": {}, "that": {}, "these": {}, "those": {}, "from": {},
	"they": {}, "them": {}, "what": {}, "when": {}, "where": {},
	"which": {}, "while": {}, "will": {}, "would": {}, "could": {},
	"should": {}, "about": {}, "into": {}, "over": {}, "under": {},
	"have": {}, "has": {}, "had": {}, "been": {}, "being": {},
	"does": {}, "doing": {}, "more": {}, "most": {}, "some": {},
	"such": {}, "than": {}, "then": {}, "there": {}, "here": {},
	"its": {}, "his": {}, "her": {}, "our": {}, "their": {},
	"why": {}, "who": {}, "get": {}, "got": {}, "out": {},
}

// genericTerms are title filler common across the whole site; a title
// made only of these is too generic to link to.
var genericTerms = map[string]struct{}{
	"guide": {}, "tips": {}, "best": {}, "top": {}, "ways": {},
	"things": {}, "complete": {}, "ultimate": {}, "beginner": {},
	"beginners": {}, "review": {}, "reviews": {}, "ideas": {},
	"introduction": {}, "overview": {}, "everything": {}, "need": {},
	"know": {}, "how": {}, "new": {}, "2024": {}, "2025": {}, "2026": {},
}

// genericPhrases blacklists boilerplate that must never become anchor
// text, regardless of which candidate family produced it.
var genericPhrases = []string{
	"click here",
	"read more",
	"learn more",
	"find out more",
	"check out",
	"check it out",
	"this article",
	"this post",
	"this page",
	"more information",
	"the following",
	"as mentioned",
	"in this guide",
	"in conclusion",
	"for example",
	"keep reading",
	"see below",
	"sign up",
	"get started today",
}
