package catalog

import (
	"context"
	"errors"
)

var (
	// ErrNotFound indicates the requested article does not exist.
	ErrNotFound = errors.New("article not found")

	// ErrCollectionNotFound indicates the backing collection does not exist.
	ErrCollectionNotFound = errors.New("collection not found")

	// ErrInvalidCollectionName indicates the collection name contains
	// characters outside [a-z0-9_] or exceeds 64 characters.
	ErrInvalidCollectionName = errors.New("invalid collection name")

	// ErrInvalidConfig indicates the store configuration failed validation.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrConnectionFailed indicates the vector index is unreachable.
	ErrConnectionFailed = errors.New("connection failed")
)

// LinkRecord describes one placed internal link for persistence.
type LinkRecord struct {
	SourceID   int
	TargetID   int
	Anchor     string
	AnchorType string
}

// Stats summarizes the catalog for health and metrics surfaces.
type Stats struct {
	TotalArticles int
	VectorSize    int
	Collection    string
}

// Store is the article catalog contract.
//
// All methods honor context cancellation. Write methods are safe for
// concurrent use against distinct articles; concurrent writes to the same
// article follow last-write-wins.
type Store interface {
	// Upsert writes the article and its embedding, replacing any prior
	// version under the same post ID.
	Upsert(ctx context.Context, article *Article) error

	// Get fetches one article by post ID, embedding included.
	// Returns ErrNotFound if no point exists.
	Get(ctx context.Context, postID int) (*Article, error)

	// Delete removes the article. Deleting a missing article is not an
	// error.
	Delete(ctx context.Context, postID int) error

	// Query runs similarity search over the catalog, excluding the given
	// post IDs, and returns up to topK candidates ordered by score.
	Query(ctx context.Context, vector []float32, topK int, excludeIDs []int) ([]Candidate, error)

	// ListAll returns up to limit articles without embeddings.
	ListAll(ctx context.Context, limit int) ([]*Article, error)

	// ListPillars returns all pillar articles without embeddings.
	ListPillars(ctx context.Context) ([]*Article, error)

	// AppendLinkRecords persists placed links: each record appends an
	// outbound link on its source and an inbound anchor plus counter
	// increment on its target. A record whose source or target no longer
	// exists skips that side. Replaying a record is a no-op.
	AppendLinkRecords(ctx context.Context, records []LinkRecord) error

	// UpdateDismissed replaces the dismissed-link list of an article.
	UpdateDismissed(ctx context.Context, postID int, dismissed []DismissedLink) error

	// Stats reports collection totals.
	Stats(ctx context.Context) (*Stats, error)

	// HealthCheck verifies the backing index is reachable.
	HealthCheck(ctx context.Context) error

	// Close releases the underlying connection.
	Close() error
}
