package llm

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"
)

// Meta tag length limits, in characters.
const (
	MetaTitleMax       = 60
	MetaDescriptionMax = 155
)

const (
	analystSystem = "You are an SEO content analyst for a single website. Reply with JSON only, no prose."

	// Body budgets keep prompts inside the context window.
	singleBodyBudget = 12000
	batchBodyBudget  = 4000

	// batchChunkSize is the most articles one batch-analysis call covers.
	batchChunkSize = 10
)

// Summarize produces a 2-3 sentence summary of the article.
// A malformed reply falls back to the first 300 characters of the body.
func (c *Client) Summarize(ctx context.Context, title, body string) (string, error) {
	prompt := fmt.Sprintf(`Summarize this article in 2-3 sentences for use as search and linking context.

Title: %s

Article:
%s

Reply as {"summary": "..."}.`, title, truncate(body, singleBodyBudget))

	reply, err := c.complete(ctx, "summarize", analystSystem, prompt, c.config.Timeout)
	if err != nil {
		return "", err
	}

	var out struct {
		Summary string `json:"summary"`
	}
	if err := decodeReply(reply, &out); err != nil || strings.TrimSpace(out.Summary) == "" {
		return FallbackSummary(body), nil
	}
	return strings.TrimSpace(out.Summary), nil
}

// FallbackSummary is the summary used when no model reply is usable: the
// first 300 characters of the body.
func FallbackSummary(body string) string {
	return strings.TrimSpace(truncate(strings.TrimSpace(body), 300))
}

// Keywords is the topic vocabulary of one article.
type Keywords struct {
	Main     []string `json:"main"`
	Semantic []string `json:"semantic"`
}

// ExtractKeywords lists the article's main topics and semantic keyword
// phrases. A malformed reply falls back to empty lists.
func (c *Client) ExtractKeywords(ctx context.Context, title, body string) (Keywords, error) {
	prompt := fmt.Sprintf(`List the topics this article covers.

Title: %s

Article:
%s

Reply as {"main": ["3-5 primary topics"], "semantic": ["5-10 related keyword phrases"]}.`, title, truncate(body, singleBodyBudget))

	reply, err := c.complete(ctx, "extract_keywords", analystSystem, prompt, c.config.Timeout)
	if err != nil {
		return Keywords{}, err
	}

	var out Keywords
	if err := decodeReply(reply, &out); err != nil {
		return Keywords{}, nil
	}
	return out, nil
}

// Analysis is the model's structural read of one article.
type Analysis struct {
	TopicCluster    string   `json:"topicCluster"`
	RelatedClusters []string `json:"relatedClusters"`
	FunnelStage     string   `json:"funnelStage"`
	TargetPersona   string   `json:"targetPersona"`
	DifficultyLevel string   `json:"difficultyLevel"`
	ContentLifespan string   `json:"contentLifespan"`
	QualityScore    int      `json:"qualityScore"`
	Entities        []string `json:"entities"`
}

// FallbackAnalysis is the neutral analysis used when no model reply is
// usable or the model is not configured.
func FallbackAnalysis() *Analysis {
	return &Analysis{
		TopicCluster: "general",
		FunnelStage:  "unknown",
		QualityScore: 50,
	}
}

// AutoAnalyze classifies one article: topic cluster, funnel stage,
// persona, difficulty, lifespan, quality, entities. knownClusters steers
// the model toward the site's existing cluster names.
func (c *Client) AutoAnalyze(ctx context.Context, title, body string, knownClusters []string) (*Analysis, error) {
	prompt := autoAnalyzePrompt(title, truncate(body, singleBodyBudget), knownClusters)

	reply, err := c.complete(ctx, "auto_analyze", analystSystem, prompt, c.config.Timeout)
	if err != nil {
		return nil, err
	}

	var out Analysis
	if err := decodeReply(reply, &out); err != nil {
		return FallbackAnalysis(), nil
	}
	normalizeAnalysis(&out)
	return &out, nil
}

func autoAnalyzePrompt(title, body string, knownClusters []string) string {
	var b strings.Builder
	b.WriteString("Classify this article for internal-linking strategy.\n\n")
	fmt.Fprintf(&b, "Title: %s\n\nArticle:\n%s\n\n", title, body)
	if len(knownClusters) > 0 {
		fmt.Fprintf(&b, "Existing topic clusters on this site: %s. Reuse one when it fits; invent a new short kebab-case name only when none fit.\n\n",
			strings.Join(knownClusters, ", "))
	}
	b.WriteString(`Reply as {"topicCluster": "kebab-case-name", "relatedClusters": ["other clusters this touches"], "funnelStage": "awareness|consideration|decision", "targetPersona": "one phrase", "difficultyLevel": "beginner|intermediate|advanced", "contentLifespan": "evergreen|seasonal|news", "qualityScore": 1-100, "entities": ["products, brands, people named in the text"]}.`)
	return b.String()
}

// normalizeAnalysis coerces model output into the values the rest of the
// pipeline relies on.
func normalizeAnalysis(a *Analysis) {
	a.TopicCluster = strings.TrimSpace(strings.ToLower(a.TopicCluster))
	if a.TopicCluster == "" {
		a.TopicCluster = "general"
	}
	switch strings.ToLower(strings.TrimSpace(a.FunnelStage)) {
	case "awareness":
		a.FunnelStage = "awareness"
	case "consideration":
		a.FunnelStage = "consideration"
	case "decision":
		a.FunnelStage = "decision"
	default:
		a.FunnelStage = "unknown"
	}
	if a.QualityScore < 1 || a.QualityScore > 100 {
		a.QualityScore = 50
	}
}

// Meta holds generated meta tags.
type Meta struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Reasoning   string `json:"reasoning,omitempty"`
}

// GenerateMeta produces an SEO title and description within length limits.
// A malformed reply falls back to the truncated article title and summary.
func (c *Client) GenerateMeta(ctx context.Context, title, summary string, keywords []string) (*Meta, error) {
	var b strings.Builder
	b.WriteString("Write an SEO meta title and description for this article.\n\n")
	fmt.Fprintf(&b, "Title: %s\nSummary: %s\n", title, summary)
	if len(keywords) > 0 {
		fmt.Fprintf(&b, "Target keywords: %s\n", strings.Join(keywords, ", "))
	}
	fmt.Fprintf(&b, "\nThe meta title must be at most %d characters and the description at most %d characters.\n", MetaTitleMax, MetaDescriptionMax)
	b.WriteString(`Reply as {"title": "...", "description": "...", "reasoning": "one sentence"}.`)

	reply, err := c.complete(ctx, "generate_meta", analystSystem, b.String(), c.config.Timeout)
	if err != nil {
		return nil, err
	}

	var out Meta
	if err := decodeReply(reply, &out); err != nil || strings.TrimSpace(out.Title) == "" {
		out = *FallbackMeta(title, summary)
	}
	out.Title = clampRunes(out.Title, MetaTitleMax)
	out.Description = clampRunes(out.Description, MetaDescriptionMax)
	return &out, nil
}

// FallbackMeta builds meta tags from the article title and summary,
// clamped to the length limits.
func FallbackMeta(title, summary string) *Meta {
	return &Meta{
		Title:       clampRunes(title, MetaTitleMax),
		Description: clampRunes(summary, MetaDescriptionMax),
	}
}

// AnchorTarget describes a link target offered to the model.
type AnchorTarget struct {
	PostID           int
	Title            string
	Summary          string
	SuggestedAnchors []string
}

// AnchorChoice is one model-selected anchor for a target.
type AnchorChoice struct {
	PostID     int    `json:"postId"`
	AnchorText string `json:"anchorText"`
	Placement  string `json:"placement,omitempty"`
	Reasoning  string `json:"reasoning,omitempty"`
}

// SelectAnchors asks the model to pick, for each target, a phrase from the
// source text that can carry a link to it. The model is instructed to copy
// phrases verbatim; callers must still validate, because models
// paraphrase. A malformed reply falls back to an empty selection.
func (c *Client) SelectAnchors(ctx context.Context, sourceTitle, sourceBody string, targets []AnchorTarget) ([]AnchorChoice, error) {
	if len(targets) == 0 {
		return nil, nil
	}

	var b strings.Builder
	b.WriteString("Select link anchor text inside a source article for each target article below.\n\n")
	fmt.Fprintf(&b, "Source title: %s\n\nSource text:\n%s\n\nTargets:\n", sourceTitle, truncate(sourceBody, singleBodyBudget))
	for _, t := range targets {
		fmt.Fprintf(&b, "- postId %d: %q", t.PostID, t.Title)
		if t.Summary != "" {
			fmt.Fprintf(&b, " (%s)", clampRunes(t.Summary, 200))
		}
		if len(t.SuggestedAnchors) > 0 {
			fmt.Fprintf(&b, "; preferred anchor phrasings: %s", strings.Join(t.SuggestedAnchors, ", "))
		}
		b.WriteString("\n")
	}
	b.WriteString(`
Rules:
- anchorText MUST be an exact, character-for-character substring of the source text above. Do not paraphrase, re-case, or trim differently.
- Pick at most one anchor per target. Omit a target when no natural phrase exists.
- Prefer phrases of 2-8 words that describe the target.

Reply as [{"postId": 1, "anchorText": "...", "placement": "hint where it appears", "reasoning": "one sentence"}].`)

	reply, err := c.complete(ctx, "select_anchors", analystSystem, b.String(), c.config.Timeout)
	if err != nil {
		return nil, err
	}

	var out []AnchorChoice
	if err := decodeReply(reply, &out); err != nil {
		return nil, nil
	}
	return out, nil
}

// SuggestAnchors proposes phrases that read naturally when other articles
// link TO this one. A malformed reply falls back to an empty list.
func (c *Client) SuggestAnchors(ctx context.Context, title, summary string) ([]string, error) {
	prompt := fmt.Sprintf(`Other articles on this site will link to the article below. Suggest 3-5 short anchor phrases (2-6 words) a writer would naturally use for that link.

Title: %s
Summary: %s

Reply as a JSON array of strings.`, title, summary)

	reply, err := c.complete(ctx, "suggest_anchors", analystSystem, prompt, c.config.Timeout)
	if err != nil {
		return nil, err
	}

	var out []string
	if err := decodeReply(reply, &out); err != nil {
		return nil, nil
	}
	return cleanStrings(out), nil
}

// ExtractQuestions lists the questions the article answers.
// A malformed reply falls back to an empty list.
func (c *Client) ExtractQuestions(ctx context.Context, title, body string) ([]string, error) {
	prompt := fmt.Sprintf(`List 3-5 questions this article answers, phrased the way a reader would search for them.

Title: %s

Article:
%s

Reply as a JSON array of strings.`, title, truncate(body, singleBodyBudget))

	reply, err := c.complete(ctx, "extract_questions", analystSystem, prompt, c.config.Timeout)
	if err != nil {
		return nil, err
	}

	var out []string
	if err := decodeReply(reply, &out); err != nil {
		return nil, nil
	}
	return cleanStrings(out), nil
}

// BatchItem is one article in a batch analysis request.
type BatchItem struct {
	PostID int
	Title  string
	Body   string
}

// BatchAnalyze classifies up to ten articles per model call, chunking
// larger inputs. Items the model skips, and whole chunks with malformed
// replies, get the neutral fallback analysis.
func (c *Client) BatchAnalyze(ctx context.Context, items []BatchItem, knownClusters []string) (map[int]*Analysis, error) {
	results := make(map[int]*Analysis, len(items))

	for start := 0; start < len(items); start += batchChunkSize {
		end := min(start+batchChunkSize, len(items))
		chunk, err := c.batchAnalyzeChunk(ctx, items[start:end], knownClusters)
		if err != nil {
			return nil, err
		}
		for id, a := range chunk {
			results[id] = a
		}
	}
	return results, nil
}

func (c *Client) batchAnalyzeChunk(ctx context.Context, chunk []BatchItem, knownClusters []string) (map[int]*Analysis, error) {
	var b strings.Builder
	b.WriteString("Classify each article below for internal-linking strategy.\n\n")
	if len(knownClusters) > 0 {
		fmt.Fprintf(&b, "Existing topic clusters on this site: %s. Reuse one when it fits.\n\n",
			strings.Join(knownClusters, ", "))
	}
	for _, item := range chunk {
		fmt.Fprintf(&b, "=== postId %d ===\nTitle: %s\n\n%s\n\n", item.PostID, item.Title, truncate(item.Body, batchBodyBudget))
	}
	b.WriteString(`Reply as a JSON array with one entry per article: [{"postId": 1, "topicCluster": "kebab-case-name", "relatedClusters": [], "funnelStage": "awareness|consideration|decision", "targetPersona": "", "difficultyLevel": "beginner|intermediate|advanced", "contentLifespan": "evergreen|seasonal|news", "qualityScore": 1-100, "entities": []}].`)

	reply, err := c.complete(ctx, "batch_analyze", analystSystem, b.String(), c.config.BatchTimeout)
	if err != nil {
		return nil, err
	}

	results := make(map[int]*Analysis, len(chunk))

	var out []struct {
		PostID int `json:"postId"`
		Analysis
	}
	if err := decodeReply(reply, &out); err == nil {
		for _, item := range out {
			a := item.Analysis
			normalizeAnalysis(&a)
			results[item.PostID] = &a
		}
	}

	for _, item := range chunk {
		if _, ok := results[item.PostID]; !ok {
			results[item.PostID] = FallbackAnalysis()
		}
	}
	return results, nil
}

// RerankCandidate is one candidate target in a re-ranking request.
type RerankCandidate struct {
	PostID  int
	Title   string
	Summary string
}

// RerankPairs scores each candidate's linking relevance to the source on a
// 0-1 scale. A malformed reply falls back to nil so callers keep the
// vector-similarity order.
func (c *Client) RerankPairs(ctx context.Context, sourceTitle, sourceSummary string, candidates []RerankCandidate) (map[int]float64, error) {
	if len(candidates) == 0 {
		return nil, nil
	}

	var b strings.Builder
	b.WriteString("Score how relevant each candidate article is as an internal link target from the source article. 1.0 means a reader of the source would clearly want the candidate next; 0.0 means unrelated.\n\n")
	fmt.Fprintf(&b, "Source: %s\n%s\n\nCandidates:\n", sourceTitle, sourceSummary)
	for _, cand := range candidates {
		fmt.Fprintf(&b, "- postId %d: %s", cand.PostID, cand.Title)
		if cand.Summary != "" {
			fmt.Fprintf(&b, " (%s)", clampRunes(cand.Summary, 200))
		}
		b.WriteString("\n")
	}
	b.WriteString(`
Reply as [{"postId": 1, "score": 0.0}] covering every candidate.`)

	reply, err := c.complete(ctx, "rerank", analystSystem, b.String(), c.config.Timeout)
	if err != nil {
		return nil, err
	}

	var out []struct {
		PostID int     `json:"postId"`
		Score  float64 `json:"score"`
	}
	if err := decodeReply(reply, &out); err != nil {
		return nil, nil
	}

	scores := make(map[int]float64, len(out))
	for _, item := range out {
		scores[item.PostID] = clamp01(item.Score)
	}
	return scores, nil
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// clampRunes cuts s to at most max characters.
func clampRunes(s string, max int) string {
	s = strings.TrimSpace(s)
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	runes := []rune(s)
	return strings.TrimSpace(string(runes[:max]))
}

// cleanStrings trims entries and drops empties.
func cleanStrings(in []string) []string {
	out := in[:0]
	for _, s := range in {
		s = strings.TrimSpace(s)
		if s != "" {
			out = append(out, s)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
