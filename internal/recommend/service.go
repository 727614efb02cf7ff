// Package recommend orchestrates the smart-link pipeline: candidate
// retrieval, hybrid scoring, funnel balancing, anchor selection, and
// SEO-aware final ordering.
package recommend

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/fyrsmithlabs/linkd/internal/anchors"
	"github.com/fyrsmithlabs/linkd/internal/catalog"
	"github.com/fyrsmithlabs/linkd/internal/embeddings"
	"github.com/fyrsmithlabs/linkd/internal/entity"
	"github.com/fyrsmithlabs/linkd/internal/htmlx"
	"github.com/fyrsmithlabs/linkd/internal/llm"
	"github.com/fyrsmithlabs/linkd/internal/scoring"
	"github.com/fyrsmithlabs/linkd/internal/seo"
)

// PageSkipMessage is returned when the source is a page.
const PageSkipMessage = "Pages do not receive automatic links"

// Embedder turns query text into a unit vector.
type Embedder interface {
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// LanguageModel covers the model operations the pipeline uses. A client
// that is not configured degrades to similarity ordering and the anchor
// finder.
type LanguageModel interface {
	Configured() bool
	RerankPairs(ctx context.Context, sourceTitle, sourceSummary string, candidates []llm.RerankCandidate) (map[int]float64, error)
	SelectAnchors(ctx context.Context, sourceTitle, sourceBody string, targets []llm.AnchorTarget) ([]llm.AnchorChoice, error)
}

// EntitySource finds candidates by shared named entities.
type EntitySource interface {
	Candidates(ctx context.Context, source *catalog.Article) ([]entity.Candidate, error)
}

// Options tunes the service; zero values take defaults.
type Options struct {
	CacheTTL        time.Duration
	CacheMaxEntries int
	Enhancers       []Enhancer
}

// Service produces internal link recommendations.
type Service struct {
	store     catalog.Store
	embedder  Embedder
	model     LanguageModel
	entities  EntitySource
	seoCache  *seo.Cache
	domain    string
	logger    *zap.Logger
	cache     *responseCache
	group     singleflight.Group
	enhancers []Enhancer
	now       func() time.Time
}

func NewService(store catalog.Store, embedder Embedder, model LanguageModel, entities EntitySource, seoCache *seo.Cache, domain string, logger *zap.Logger, opts Options) *Service {
	enhancers := opts.Enhancers
	if enhancers == nil {
		enhancers = defaultEnhancers()
	}
	return &Service{
		store:     store,
		embedder:  embedder,
		model:     model,
		entities:  entities,
		seoCache:  seoCache,
		domain:    domain,
		logger:    logger,
		cache:     newResponseCache(opts.CacheTTL, opts.CacheMaxEntries),
		enhancers: enhancers,
		now:       time.Now,
	}
}

// recommendation is one candidate moving through the pipeline.
type recommendation struct {
	article    *catalog.Article
	similarity float64
	entity     bool

	base      float64
	breakdown scoring.Breakdown

	enhanced     float64
	enhancements []Enhancement

	anchorText string
	placement  string
	reasoning  string

	seoScore seo.LinkScore
}

// SmartLink runs the recommendation pipeline for one piece of content.
// Identical concurrent requests collapse onto a single pipeline run, and
// completed responses are served from cache until the TTL lapses.
func (s *Service) SmartLink(ctx context.Context, req *Request) (*Response, error) {
	req.Normalize()

	if req.ContentType == catalog.TypePage {
		return &Response{Success: true, Links: []Link{}, Message: PageSkipMessage}, nil
	}
	if *req.MaxLinks <= 0 {
		return &Response{Success: true, Links: []Link{}, Message: "maxLinks is zero"}, nil
	}

	key := cacheKey(req.PostID, req.Content, *req.MaxLinks)
	if !req.SkipCache {
		if resp, ok := s.cache.get(key); ok {
			out := resp.clone()
			out.Cached = true
			return out, nil
		}
	}

	v, err, shared := s.group.Do(key, func() (any, error) {
		resp, err := s.run(ctx, req)
		if err != nil {
			return nil, err
		}
		s.cache.put(key, resp)
		return resp, nil
	})
	if err != nil {
		return nil, err
	}

	out := v.(*Response).clone()
	out.Deduplicated = shared
	return out, nil
}

// InvalidateCache drops all cached responses, for use after bulk catalog
// changes.
func (s *Service) InvalidateCache() {
	s.cache.mu.Lock()
	s.cache.entries = make(map[string]*cacheEntry)
	s.cache.mu.Unlock()
}

func (s *Service) run(ctx context.Context, req *Request) (*Response, error) {
	maxLinks := *req.MaxLinks
	minScore := *req.MinScore
	useModel := *req.UseClaudeAnalysis && s.model != nil && s.model.Configured()

	if err := s.seoCache.Refresh(ctx, false); err != nil {
		s.logger.Warn("seo cache refresh failed, continuing with previous snapshot",
			zap.Error(err))
	}

	if existing := htmlx.InternalLinkCount(req.Content, s.domain); existing >= maxLinks {
		return &Response{
			Success: true,
			Skipped: true,
			Links:   []Link{},
			Message: fmt.Sprintf("content already carries %d internal links", existing),
		}, nil
	}

	source, vector, err := s.resolveSource(ctx, req)
	if err != nil {
		return nil, err
	}
	if source.IsPage() {
		return &Response{Success: true, Links: []Link{}, Message: PageSkipMessage}, nil
	}

	stats := &Stats{
		FunnelDistribution: map[string]int{},
		VelocityStatus:     s.velocityStatus(),
	}

	recs, err := s.retrieve(ctx, req, source, vector, stats)
	if err != nil {
		return nil, err
	}
	if len(recs) == 0 {
		return &Response{Success: true, Links: []Link{}, Message: "no suitable link targets found", Stats: stats}, nil
	}

	recs = s.rerank(ctx, source, recs, maxLinks, useModel, stats)
	recs = s.scoreCandidates(source, recs, req.StrictSilo, minScore, stats)
	if len(recs) == 0 {
		return &Response{Success: true, Links: []Link{}, Message: "no targets passed the score threshold", Stats: stats}, nil
	}

	recs = balanceFunnel(recs, maxLinks)
	recs = s.selectAnchors(ctx, req, source, recs, maxLinks, useModel)
	if len(recs) == 0 {
		return &Response{Success: true, Links: []Link{}, Message: "no anchor text found in the content", Stats: stats}, nil
	}

	s.scorePlacements(ctx, req, source, recs)

	sort.SliceStable(recs, func(i, j int) bool {
		return finalScore(recs[i]) > finalScore(recs[j])
	})
	if len(recs) > maxLinks {
		recs = recs[:maxLinks]
	}

	resp := s.assemble(req, source, recs, stats)
	return resp, nil
}

// resolveSource builds the source article view for this request: the
// stored article when postId resolves, overlaid with request metadata,
// plus a query vector (stored embedding, or a fresh one off the content).
func (s *Service) resolveSource(ctx context.Context, req *Request) (*catalog.Article, []float32, error) {
	var art *catalog.Article
	if req.PostID > 0 {
		stored, err := s.store.Get(ctx, req.PostID)
		switch {
		case err == nil:
			art = stored
		case errors.Is(err, catalog.ErrNotFound):
			// New content not yet synced; work from the request alone.
		default:
			return nil, nil, fmt.Errorf("loading source article %d: %w", req.PostID, err)
		}
	}
	if art == nil {
		art = &catalog.Article{PostID: req.PostID, ContentType: req.ContentType}
	}

	if req.Title != "" {
		art.Title = req.Title
	}
	if req.TopicCluster != "" {
		art.TopicCluster = req.TopicCluster
	}
	if len(req.RelatedClusters) > 0 {
		art.RelatedClusters = req.RelatedClusters
	}
	if req.FunnelStage != "" {
		art.FunnelStage = req.FunnelStage
	}
	if req.TargetPersona != "" {
		art.TargetPersona = req.TargetPersona
	}

	vector := art.Embedding
	if len(vector) == 0 {
		text := embeddings.ComposeArticleText(art.Title, art.Summary, htmlx.Plaintext(req.Content))
		fresh, err := s.embedder.EmbedQuery(ctx, text)
		if err != nil {
			return nil, nil, fmt.Errorf("embedding source content: %w", err)
		}
		vector = fresh
	}
	return art, vector, nil
}

// retrieve gathers candidates by vector similarity and entity overlap in
// parallel, merges them by post ID, and applies the similarity floor.
func (s *Service) retrieve(ctx context.Context, req *Request, source *catalog.Article, vector []float32, stats *Stats) ([]*recommendation, error) {
	exclude := make([]int, 0, len(req.ExcludeIDs)+1)
	if source.PostID > 0 {
		exclude = append(exclude, source.PostID)
	}
	exclude = append(exclude, req.ExcludeIDs...)

	var (
		vecHits []catalog.Candidate
		entHits []entity.Candidate
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		hits, err := s.store.Query(gctx, vector, vectorTopK, exclude)
		if err != nil {
			return fmt.Errorf("vector query: %w", err)
		}
		vecHits = hits
		return nil
	})
	g.Go(func() error {
		if s.entities == nil || len(source.Entities) == 0 {
			return nil
		}
		hits, err := s.entities.Candidates(gctx, source)
		if err != nil {
			return fmt.Errorf("entity retrieval: %w", err)
		}
		entHits = hits
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	excluded := make(map[int]struct{}, len(exclude))
	for _, id := range exclude {
		excluded[id] = struct{}{}
	}

	byID := make(map[int]*recommendation, len(vecHits)+len(entHits))
	var order []int
	admit := func(a *catalog.Article, score float64, fromEntities bool) {
		if a == nil {
			return
		}
		if _, skip := excluded[a.PostID]; skip {
			return
		}
		if s.seoCache.IsDismissed(source.PostID, a.PostID) {
			return
		}
		if r, ok := byID[a.PostID]; ok {
			if score > r.similarity {
				r.similarity = score
			}
			r.entity = r.entity || fromEntities
			return
		}
		byID[a.PostID] = &recommendation{article: a, similarity: score, entity: fromEntities}
		order = append(order, a.PostID)
	}

	for _, hit := range vecHits {
		admit(hit.Article, hit.Score, false)
	}
	for _, hit := range entHits {
		admit(hit.Article, hit.Score, true)
	}

	recs := make([]*recommendation, 0, len(order))
	for _, id := range order {
		r := byID[id]
		if r.similarity < similarityFloor {
			continue
		}
		recs = append(recs, r)
		if r.entity {
			stats.EntityBasedCandidates++
		}
	}

	sort.SliceStable(recs, func(i, j int) bool { return recs[i].similarity > recs[j].similarity })
	stats.CandidatesFound = len(recs)
	return recs, nil
}

// rerank asks the cross-encoder to re-order the head of the candidate
// list, then trims the pool to a working set proportional to the link
// budget. A failed or absent model keeps the similarity order.
func (s *Service) rerank(ctx context.Context, source *catalog.Article, recs []*recommendation, maxLinks int, useModel bool, stats *Stats) []*recommendation {
	if useModel && len(recs) > 1 {
		head := recs
		if len(head) > rerankPoolSize {
			head = head[:rerankPoolSize]
		}
		cands := make([]llm.RerankCandidate, len(head))
		for i, r := range head {
			cands[i] = llm.RerankCandidate{
				PostID:  r.article.PostID,
				Title:   r.article.Title,
				Summary: r.article.Summary,
			}
		}

		scores, err := s.model.RerankPairs(ctx, source.Title, source.Summary, cands)
		switch {
		case err != nil:
			s.logger.Warn("cross-encoder rerank failed, keeping similarity order", zap.Error(err))
		case len(scores) > 0:
			sort.SliceStable(head, func(i, j int) bool {
				return rerankKey(head[i], scores) > rerankKey(head[j], scores)
			})
			stats.CrossEncoderReRanked = true
		}
	}

	if keep := maxLinks * candidateMultiple; len(recs) > keep {
		recs = recs[:keep]
	}
	return recs
}

func rerankKey(r *recommendation, scores map[int]float64) float64 {
	if s, ok := scores[r.article.PostID]; ok {
		return s
	}
	return r.similarity
}

// scoreCandidates applies the hybrid scorer and the enhancement chain,
// dropping anything under the score floor.
func (s *Service) scoreCandidates(source *catalog.Article, recs []*recommendation, strictSilo bool, minScore float64, stats *Stats) []*recommendation {
	now := s.now()
	kept := recs[:0]
	var sum float64
	for _, r := range recs {
		if strictSilo && !scoring.InSilo(source, r.article) {
			continue
		}
		r.base, r.breakdown = scoring.Score(source, r.article, r.similarity)
		r.enhanced, r.enhancements = applyEnhancers(s.enhancers, r.article, r.base, now)
		if r.enhanced < minScore {
			continue
		}
		kept = append(kept, r)
		sum += r.enhanced
	}

	stats.PassedScoring = len(kept)
	if len(kept) > 0 {
		stats.AverageScore = round1(sum / float64(len(kept)))
	}
	sort.SliceStable(kept, func(i, j int) bool { return kept[i].enhanced > kept[j].enhanced })
	return kept
}

// selectAnchors assigns anchor text to the leading candidates. When the
// model path is on, its choices are validated against the actual body
// text; a paraphrased choice falls back to the anchor finder, and a
// candidate with no usable anchor at all is dropped.
func (s *Service) selectAnchors(ctx context.Context, req *Request, source *catalog.Article, recs []*recommendation, maxLinks int, useModel bool) []*recommendation {
	pool := recs
	if limit := maxLinks * 2; len(pool) > limit {
		pool = pool[:limit]
	}

	plain := htmlx.Plaintext(req.Content)
	used := htmlx.AnchorTexts(req.Content)

	choices := map[int]llm.AnchorChoice{}
	if useModel {
		targets := make([]llm.AnchorTarget, len(pool))
		for i, r := range pool {
			targets[i] = llm.AnchorTarget{
				PostID:           r.article.PostID,
				Title:            r.article.Title,
				Summary:          r.article.Summary,
				SuggestedAnchors: r.article.SuggestedAnchors,
			}
		}
		picked, err := s.model.SelectAnchors(ctx, source.Title, plain, targets)
		if err != nil {
			s.logger.Warn("anchor selection failed, using anchor finder", zap.Error(err))
		}
		for _, c := range picked {
			choices[c.PostID] = c
		}
	}

	anchored := make([]*recommendation, 0, len(pool))
	for _, r := range pool {
		if c, ok := choices[r.article.PostID]; ok && s.acceptChoice(plain, used, c) {
			r.anchorText = strings.TrimSpace(c.AnchorText)
			r.placement = c.Placement
			r.reasoning = c.Reasoning
		} else if found := anchors.Find(plain, r.article, used); found != nil {
			r.anchorText = found.Text
			r.placement = found.Position
		} else {
			continue
		}
		used[strings.ToLower(r.anchorText)] = struct{}{}
		anchored = append(anchored, r)
	}
	return anchored
}

// acceptChoice verifies a model anchor appears verbatim in the body and
// is not already carrying a link.
func (s *Service) acceptChoice(plain string, used map[string]struct{}, c llm.AnchorChoice) bool {
	text := strings.TrimSpace(c.AnchorText)
	if text == "" {
		return false
	}
	if htmlx.IndexFold(plain, text) < 0 {
		s.logger.Debug("model anchor not verbatim in body, falling back",
			zap.Int("postId", c.PostID), zap.String("anchor", text))
		return false
	}
	if _, taken := used[strings.ToLower(text)]; taken {
		return false
	}
	return true
}

// scorePlacements runs the composite link scorer over the proposals with
// bounded parallelism.
func (s *Service) scorePlacements(ctx context.Context, req *Request, source *catalog.Article, recs []*recommendation) {
	g, _ := errgroup.WithContext(ctx)
	g.SetLimit(seoScoringParallel)
	for _, r := range recs {
		r := r
		g.Go(func() error {
			r.seoScore = s.seoCache.ScoreLink(seo.LinkInput{
				Source:     source,
				Target:     r.article,
				Anchor:     r.anchorText,
				SourceHTML: req.Content,
			})
			return nil
		})
	}
	_ = g.Wait()
}

func finalScore(r *recommendation) float64 {
	return r.enhanced + seoScoreWeight*float64(r.seoScore.Score)
}

// assemble builds the response, optionally weaving the links into the
// content and feeding placements back into the SEO projection.
func (s *Service) assemble(req *Request, source *catalog.Article, recs []*recommendation, stats *Stats) *Response {
	includeSEO := *req.IncludeSEOMetrics

	links := make([]Link, 0, len(recs))
	var seoSum int
	for _, r := range recs {
		stage := r.article.FunnelStage
		if stage == "" {
			stage = catalog.StageUnknown
		}
		stats.FunnelDistribution[stage]++

		l := Link{
			PostID:         r.article.PostID,
			Title:          r.article.Title,
			URL:            r.article.URL,
			TopicCluster:   r.article.TopicCluster,
			ContentType:    r.article.ContentType,
			Score:          round1(r.enhanced),
			ScoreBreakdown: r.breakdown,
			AnchorText:     r.anchorText,
			Placement:      r.placement,
			Reasoning:      r.reasoning,
			Enhancements:   r.enhancements,
		}
		if includeSEO {
			sc := r.seoScore
			l.SEO = &sc
			seoSum += sc.Score
		}
		links = append(links, l)
	}
	stats.LinksGenerated = len(links)

	resp := &Response{Success: true, Links: links, Stats: stats}
	if includeSEO && len(links) > 0 {
		resp.SEOSummary = &SEOSummary{
			AverageScore: round1(float64(seoSum) / float64(len(links))),
			Scored:       len(links),
		}
	}

	if req.AutoInsert && len(links) > 0 {
		s.insertLinks(req, source, recs, resp)
	}
	return resp
}

// insertLinks weaves the recommended links into the content and records
// the placements that actually landed.
func (s *Service) insertLinks(req *Request, source *catalog.Article, recs []*recommendation, resp *Response) {
	insertions := make([]htmlx.Insertion, len(recs))
	for i, r := range recs {
		insertions[i] = htmlx.Insertion{Anchor: r.anchorText, Href: r.article.URL}
	}

	linked, inserted := htmlx.InsertLinks(req.Content, insertions)
	resp.LinkedContent = linked
	if len(inserted) == 0 {
		return
	}

	landed := make(map[string]struct{}, len(inserted))
	for _, a := range inserted {
		landed[strings.ToLower(a)] = struct{}{}
	}

	var placed []seo.PlacedLink
	var records []catalog.LinkRecord
	for _, r := range recs {
		if _, ok := landed[strings.ToLower(r.anchorText)]; !ok {
			continue
		}
		placed = append(placed, seo.PlacedLink{
			SourceID: source.PostID,
			TargetID: r.article.PostID,
			Anchor:   r.anchorText,
			Type:     r.seoScore.AnchorType,
		})
		records = append(records, catalog.LinkRecord{
			SourceID:   source.PostID,
			TargetID:   r.article.PostID,
			Anchor:     r.anchorText,
			AnchorType: r.seoScore.AnchorType,
		})
	}

	s.seoCache.BatchIncrementalUpdate(placed)

	// Persistence is best-effort off the request path.
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := s.store.AppendLinkRecords(ctx, records); err != nil {
			s.logger.Warn("persisting placed links failed",
				zap.Int("sourceId", source.PostID), zap.Error(err))
		}
	}()
}

func (s *Service) velocityStatus() string {
	for _, e := range s.enhancers {
		if v, ok := e.(interface{ Status() string }); ok {
			return v.Status()
		}
	}
	return "normal"
}

func round1(x float64) float64 {
	return math.Round(x*10) / 10
}
