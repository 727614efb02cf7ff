// Package entity retrieves link candidates through the knowledge graph:
// articles naming the same entities (products, brands, people) as the
// source. Entities are extracted during catalog sync and live in article
// metadata, so retrieval is a scan over the cached article snapshot
// rather than another index query.
package entity

import (
	"context"
	"fmt"
	"strings"

	"github.com/fyrsmithlabs/linkd/internal/catalog"
)

// Candidate is an article sharing entities with the source.
type Candidate struct {
	Article *catalog.Article

	// Overlap is how many entities source and candidate share.
	Overlap int

	// Score plugs into the candidate merge alongside vector similarity:
	// 0.5 base plus 0.1 per shared entity, capped at 1.0.
	Score float64
}

// Retriever finds entity-overlap candidates over the article snapshot.
type Retriever struct {
	lister catalog.Lister
}

// NewRetriever creates a retriever over the given lister.
func NewRetriever(lister catalog.Lister) *Retriever {
	return &Retriever{lister: lister}
}

// Candidates returns every catalog article sharing at least one entity
// with source, best overlap first. A source with no extracted entities
// yields no candidates.
func (r *Retriever) Candidates(ctx context.Context, source *catalog.Article) ([]Candidate, error) {
	if source == nil || len(source.Entities) == 0 {
		return nil, nil
	}

	sourceEntities := entitySet(source.Entities)

	articles, err := r.lister.Articles(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing articles for entity retrieval: %w", err)
	}

	var out []Candidate
	for _, a := range articles {
		if a.PostID == source.PostID {
			continue
		}
		overlap := 0
		for _, e := range a.Entities {
			if _, ok := sourceEntities[normalizeEntity(e)]; ok {
				overlap++
			}
		}
		if overlap == 0 {
			continue
		}
		out = append(out, Candidate{
			Article: a,
			Overlap: overlap,
			Score:   overlapScore(overlap),
		})
	}

	// Stable best-first order: overlap, then post ID.
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && less(out[j], out[j-1]); j-- {
			out[j], out[j-1] = out[j-1], out[j]
		}
	}
	return out, nil
}

func less(a, b Candidate) bool {
	if a.Overlap != b.Overlap {
		return a.Overlap > b.Overlap
	}
	return a.Article.PostID < b.Article.PostID
}

func overlapScore(overlap int) float64 {
	score := 0.5 + 0.1*float64(overlap)
	if score > 1.0 {
		return 1.0
	}
	return score
}

func entitySet(entities []string) map[string]struct{} {
	set := make(map[string]struct{}, len(entities))
	for _, e := range entities {
		if n := normalizeEntity(e); n != "" {
			set[n] = struct{}{}
		}
	}
	return set
}

func normalizeEntity(e string) string {
	return strings.ToLower(strings.TrimSpace(e))
}
