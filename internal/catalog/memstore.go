package catalog

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"
)

// MemStore is an in-memory Store for tests and single-process development.
// It mirrors QdrantStore semantics, including link-record idempotence, but
// keeps everything in a map guarded by a RWMutex.
type MemStore struct {
	mu         sync.RWMutex
	articles   map[int]*Article
	vectorSize int
	collection string
}

var _ Store = (*MemStore)(nil)

// NewMemStore creates an empty in-memory store. A zero vectorSize disables
// embedding dimension checks, which keeps vector-free fixtures simple.
func NewMemStore(vectorSize int) *MemStore {
	return &MemStore{
		articles:   make(map[int]*Article),
		vectorSize: vectorSize,
		collection: "memory",
	}
}

// Seed upserts a batch of articles.
func (s *MemStore) Seed(ctx context.Context, articles ...*Article) error {
	for _, a := range articles {
		if err := s.Upsert(ctx, a); err != nil {
			return err
		}
	}
	return nil
}

func (s *MemStore) Upsert(_ context.Context, article *Article) error {
	if article.PostID <= 0 {
		return fmt.Errorf("post id must be positive, got %d", article.PostID)
	}
	if s.vectorSize > 0 && len(article.Embedding) > 0 && len(article.Embedding) != s.vectorSize {
		return fmt.Errorf("embedding has %d dimensions, store expects %d", len(article.Embedding), s.vectorSize)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.articles[article.PostID] = article.Clone()
	return nil
}

func (s *MemStore) Get(_ context.Context, postID int) (*Article, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.articles[postID]
	if !ok {
		return nil, fmt.Errorf("article %d: %w", postID, ErrNotFound)
	}
	return a.Clone(), nil
}

func (s *MemStore) Delete(_ context.Context, postID int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.articles, postID)
	return nil
}

func (s *MemStore) Query(_ context.Context, vector []float32, topK int, excludeIDs []int) ([]Candidate, error) {
	if topK <= 0 {
		return nil, fmt.Errorf("top k must be positive, got %d", topK)
	}

	excluded := make(map[int]struct{}, len(excludeIDs))
	for _, id := range excludeIDs {
		excluded[id] = struct{}{}
	}

	s.mu.RLock()
	candidates := make([]Candidate, 0, len(s.articles))
	for id, a := range s.articles {
		if _, skip := excluded[id]; skip {
			continue
		}
		if len(a.Embedding) == 0 {
			continue
		}
		candidates = append(candidates, Candidate{
			Article: a.Clone(),
			Score:   cosineSimilarity(vector, a.Embedding),
		})
	}
	s.mu.RUnlock()

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].Score != candidates[j].Score {
			return candidates[i].Score > candidates[j].Score
		}
		return candidates[i].Article.PostID < candidates[j].Article.PostID
	})
	if len(candidates) > topK {
		candidates = candidates[:topK]
	}
	return candidates, nil
}

func (s *MemStore) ListAll(_ context.Context, limit int) ([]*Article, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := s.sortedClones(func(*Article) bool { return true })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *MemStore) ListPillars(_ context.Context) ([]*Article, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sortedClones(func(a *Article) bool { return a.IsPillar }), nil
}

// sortedClones returns embedding-free copies ordered by post ID.
// Callers must hold at least the read lock.
func (s *MemStore) sortedClones(keep func(*Article) bool) []*Article {
	out := make([]*Article, 0, len(s.articles))
	for _, a := range s.articles {
		if !keep(a) {
			continue
		}
		c := a.Clone()
		c.Embedding = nil
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PostID < out[j].PostID })
	return out
}

func (s *MemStore) AppendLinkRecords(_ context.Context, records []LinkRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	for _, r := range records {
		if src, ok := s.articles[r.SourceID]; ok {
			if !hasOutbound(src.OutboundLinks, r.TargetID, r.Anchor) {
				src.OutboundLinks = append(src.OutboundLinks, OutboundLink{
					TargetID:  r.TargetID,
					Anchor:    r.Anchor,
					CreatedAt: now,
				})
			}
		}
		if tgt, ok := s.articles[r.TargetID]; ok {
			if !hasInbound(tgt.InboundAnchors, r.SourceID, r.Anchor) {
				tgt.InboundAnchors = append(tgt.InboundAnchors, InboundAnchor{
					Text:      r.Anchor,
					SourceID:  r.SourceID,
					Type:      r.AnchorType,
					CreatedAt: now,
				})
				tgt.InboundLinkCount++
			}
		}
	}
	return nil
}

func (s *MemStore) UpdateDismissed(_ context.Context, postID int, dismissed []DismissedLink) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.articles[postID]
	if !ok {
		return fmt.Errorf("article %d: %w", postID, ErrNotFound)
	}
	a.DismissedLinks = append([]DismissedLink(nil), dismissed...)
	return nil
}

func (s *MemStore) Stats(_ context.Context) (*Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return &Stats{
		TotalArticles: len(s.articles),
		VectorSize:    s.vectorSize,
		Collection:    s.collection,
	}, nil
}

func (s *MemStore) HealthCheck(context.Context) error { return nil }

func (s *MemStore) Close() error { return nil }

// cosineSimilarity computes cos(a,b) clamped to [0,1]. Mismatched or
// zero-norm vectors score 0.
func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	score := dot / (math.Sqrt(normA) * math.Sqrt(normB))
	if score < 0 {
		return 0
	}
	if score > 1 {
		return 1
	}
	return score
}
