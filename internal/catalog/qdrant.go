package catalog

import (
	"context"
	"errors"
	"fmt"
	"os"
	"regexp"
	"sort"
	"sync"
	"time"

	"github.com/qdrant/go-client/qdrant"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"google.golang.org/grpc"
	grpccodes "google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Tracer for OpenTelemetry instrumentation.
var tracer = otel.Tracer("linkd.catalog.qdrant")

// collectionNamePattern validates collection names.
// Pattern: lowercase letters, numbers, underscores, 1-64 characters.
var collectionNamePattern = regexp.MustCompile(`^[a-z0-9_]{1,64}$`)

// scrollPageSize bounds a single scroll page so large payloads stay well
// under the gRPC message limit.
const scrollPageSize = 1024

// QdrantConfig holds configuration for the Qdrant gRPC client.
type QdrantConfig struct {
	// Host is the Qdrant server hostname or IP address.
	Host string

	// Port is the Qdrant gRPC port (NOT the HTTP REST port).
	// Typically 6334 (gRPC), not 6333 (HTTP).
	Port int

	// APIKey authenticates against a managed Qdrant deployment.
	// Empty for local instances.
	APIKey string

	// Collection is the article collection name.
	Collection string

	// VectorSize is the dimensionality of article embeddings.
	// MUST match the embedder output dimensions.
	VectorSize uint64

	// Distance is the similarity metric for vector search.
	// Default: Cosine
	Distance qdrant.Distance

	// UseTLS enables TLS encryption for the gRPC connection.
	UseTLS bool

	// Timeout bounds each index round trip.
	// Default: 15 seconds
	Timeout time.Duration

	// MaxRetries is the maximum number of retry attempts for transient
	// failures. Default: 3
	MaxRetries int

	// RetryBackoff is the initial backoff duration for retries.
	// Doubles on each retry (exponential backoff).
	// Default: 1 second
	RetryBackoff time.Duration

	// MaxMessageSize is the maximum gRPC message size in bytes.
	// Default: 50MB
	MaxMessageSize int

	// CircuitBreakerThreshold is the number of failures before opening
	// the circuit. Default: 5
	CircuitBreakerThreshold int

	// ListLimit caps full-catalog listings.
	// Default: 10000
	ListLimit int
}

// Validate validates the configuration.
func (c QdrantConfig) Validate() error {
	if c.Host == "" {
		return fmt.Errorf("%w: host required", ErrInvalidConfig)
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("%w: invalid port: %d", ErrInvalidConfig, c.Port)
	}
	if c.Collection == "" {
		return fmt.Errorf("%w: collection required", ErrInvalidConfig)
	}
	if c.VectorSize == 0 {
		return fmt.Errorf("%w: vector size required", ErrInvalidConfig)
	}
	return nil
}

// ApplyDefaults sets default values for unset fields.
func (c *QdrantConfig) ApplyDefaults() {
	if c.Timeout == 0 {
		c.Timeout = 15 * time.Second
	}
	if c.MaxRetries == 0 {
		c.MaxRetries = 3
	}
	if c.RetryBackoff == 0 {
		c.RetryBackoff = time.Second
	}
	if c.MaxMessageSize == 0 {
		c.MaxMessageSize = 50 * 1024 * 1024 // 50MB
	}
	if c.CircuitBreakerThreshold == 0 {
		c.CircuitBreakerThreshold = 5
	}
	if c.ListLimit == 0 {
		c.ListLimit = 10000
	}
	if c.Distance == 0 {
		c.Distance = qdrant.Distance_Cosine
	}
}

// ValidateCollectionName validates a collection name against naming rules.
// Pattern: ^[a-z0-9_]{1,64}$
// Rejects: uppercase, special chars, path traversal, spaces.
func ValidateCollectionName(name string) error {
	if name == "" {
		return fmt.Errorf("%w: collection name cannot be empty", ErrInvalidCollectionName)
	}
	if !collectionNamePattern.MatchString(name) {
		return fmt.Errorf("%w: collection name must match pattern ^[a-z0-9_]{1,64}$, got %q", ErrInvalidCollectionName, name)
	}
	return nil
}

// IsTransientError checks if an error is transient (should retry).
// Returns true for network timeouts, temporary unavailability.
// Returns false for invalid arguments, not found, permission denied.
func IsTransientError(err error) bool {
	if err == nil {
		return false
	}

	st, ok := status.FromError(err)
	if !ok {
		return false
	}

	switch st.Code() {
	case grpccodes.Unavailable, grpccodes.DeadlineExceeded, grpccodes.Aborted, grpccodes.ResourceExhausted:
		return true
	case grpccodes.InvalidArgument, grpccodes.NotFound, grpccodes.PermissionDenied, grpccodes.Unauthenticated:
		return false
	default:
		return false
	}
}

// QdrantStore is a Store implementation backed by Qdrant's native gRPC
// client.
//
// Articles are stored one point per post ID: the embedding is the point
// vector and every other attribute lives in the payload, so a single
// similarity query returns fully hydrated candidates without a second
// metadata lookup.
type QdrantStore struct {
	// client is the official Qdrant Go gRPC client
	client *qdrant.Client

	// config holds the store configuration
	config QdrantConfig

	// circuitBreaker tracks failures for circuit breaker pattern
	circuitBreaker struct {
		failures int
		lastFail time.Time
		mu       sync.Mutex
	}
}

var _ Store = (*QdrantStore)(nil)

// NewQdrantStore creates a new QdrantStore with the given configuration.
//
// The constructor performs the following steps:
//  1. Validates configuration
//  2. Creates the Qdrant gRPC client
//  3. Performs a health check
//  4. Ensures the article collection exists
//
// Returns an error if configuration is invalid, the connection fails, or
// the collection cannot be created.
func NewQdrantStore(config QdrantConfig) (*QdrantStore, error) {
	config.ApplyDefaults()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	if err := ValidateCollectionName(config.Collection); err != nil {
		return nil, fmt.Errorf("validating collection name: %w", err)
	}

	// Warn if TLS is disabled (plaintext gRPC)
	if !config.UseTLS {
		fmt.Fprintf(os.Stderr, "WARNING: Qdrant gRPC using plaintext (TLS disabled). Insecure for production.\n")
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   config.Host,
		Port:   config.Port,
		APIKey: config.APIKey,
		UseTLS: config.UseTLS,
		GrpcOptions: []grpc.DialOption{
			grpc.WithDefaultCallOptions(
				grpc.MaxCallRecvMsgSize(config.MaxMessageSize),
				grpc.MaxCallSendMsgSize(config.MaxMessageSize),
			),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConnectionFailed, err)
	}

	store := &QdrantStore{
		client: client,
		config: config,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := store.HealthCheck(ctx); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("health check failed: %w", err)
	}

	if err := store.EnsureCollection(ctx); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ensuring collection: %w", err)
	}

	return store, nil
}

// Close closes the Qdrant gRPC connection.
func (s *QdrantStore) Close() error {
	if s.client != nil {
		return s.client.Close()
	}
	return nil
}

// HealthCheck verifies the Qdrant connection.
func (s *QdrantStore) HealthCheck(ctx context.Context) error {
	ctx, cancel := s.opContext(ctx)
	defer cancel()
	ctx, span := tracer.Start(ctx, "QdrantStore.HealthCheck")
	defer span.End()

	if _, err := s.client.HealthCheck(ctx); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("%w: %v", ErrConnectionFailed, err)
	}

	span.SetStatus(codes.Ok, "healthy")
	return nil
}

// EnsureCollection creates the article collection if it does not exist.
func (s *QdrantStore) EnsureCollection(ctx context.Context) error {
	ctx, span := tracer.Start(ctx, "QdrantStore.EnsureCollection")
	defer span.End()
	span.SetAttributes(attribute.String("collection", s.config.Collection))

	exists, err := s.collectionExists(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	if exists {
		span.SetStatus(codes.Ok, "exists")
		return nil
	}

	err = s.retryOperation(ctx, "create_collection", func() error {
		return s.client.CreateCollection(ctx, &qdrant.CreateCollection{
			CollectionName: s.config.Collection,
			VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
				Size:     s.config.VectorSize,
				Distance: s.config.Distance,
			}),
		})
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	span.SetStatus(codes.Ok, "created")
	return nil
}

func (s *QdrantStore) collectionExists(ctx context.Context) (bool, error) {
	var exists bool
	err := s.retryOperation(ctx, "collection_exists", func() error {
		_, err := s.client.GetCollectionInfo(ctx, s.config.Collection)
		if err != nil {
			if st, ok := status.FromError(err); ok && st.Code() == grpccodes.NotFound {
				exists = false
				return nil
			}
			return err
		}
		exists = true
		return nil
	})
	return exists, err
}

// Upsert writes the article and its embedding under its post ID.
func (s *QdrantStore) Upsert(ctx context.Context, article *Article) error {
	ctx, cancel := s.opContext(ctx)
	defer cancel()
	ctx, span := tracer.Start(ctx, "QdrantStore.Upsert")
	defer span.End()

	span.SetAttributes(
		attribute.Int("post_id", article.PostID),
		attribute.String("collection", s.config.Collection),
	)

	if article.PostID <= 0 {
		err := fmt.Errorf("post id must be positive, got %d", article.PostID)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	if len(article.Embedding) != int(s.config.VectorSize) {
		err := fmt.Errorf("embedding has %d dimensions, collection expects %d", len(article.Embedding), s.config.VectorSize)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	payload, err := article.Payload()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	point := &qdrant.PointStruct{
		Id:      qdrant.NewIDNum(uint64(article.PostID)),
		Vectors: qdrant.NewVectors(article.Embedding...),
		Payload: payload,
	}

	// Wait for the write to be applied so an immediate read sees it.
	err = s.retryOperation(ctx, "upsert", func() error {
		_, err := s.client.Upsert(ctx, &qdrant.UpsertPoints{
			CollectionName: s.config.Collection,
			Points:         []*qdrant.PointStruct{point},
			Wait:           qdrant.PtrOf(true),
		})
		return err
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	span.SetStatus(codes.Ok, "success")
	return nil
}

// Get fetches one article by post ID, embedding included.
func (s *QdrantStore) Get(ctx context.Context, postID int) (*Article, error) {
	ctx, cancel := s.opContext(ctx)
	defer cancel()
	ctx, span := tracer.Start(ctx, "QdrantStore.Get")
	defer span.End()

	span.SetAttributes(attribute.Int("post_id", postID))

	var points []*qdrant.RetrievedPoint
	err := s.retryOperation(ctx, "get", func() error {
		var err error
		points, err = s.client.Get(ctx, &qdrant.GetPoints{
			CollectionName: s.config.Collection,
			Ids:            []*qdrant.PointId{qdrant.NewIDNum(uint64(postID))},
			WithPayload:    qdrant.NewWithPayload(true),
			WithVectors:    qdrant.NewWithVectors(true),
		})
		return err
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	if len(points) == 0 {
		span.SetStatus(codes.Error, "not found")
		return nil, fmt.Errorf("article %d: %w", postID, ErrNotFound)
	}

	article, err := decodePoint(points[0])
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	span.SetStatus(codes.Ok, "success")
	return article, nil
}

// Delete removes the article. Deleting a missing article is not an error.
func (s *QdrantStore) Delete(ctx context.Context, postID int) error {
	ctx, cancel := s.opContext(ctx)
	defer cancel()
	ctx, span := tracer.Start(ctx, "QdrantStore.Delete")
	defer span.End()

	span.SetAttributes(attribute.Int("post_id", postID))

	err := s.retryOperation(ctx, "delete", func() error {
		_, err := s.client.Delete(ctx, &qdrant.DeletePoints{
			CollectionName: s.config.Collection,
			Points:         qdrant.NewPointsSelector(qdrant.NewIDNum(uint64(postID))),
			Wait:           qdrant.PtrOf(true),
		})
		return err
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	span.SetStatus(codes.Ok, "success")
	return nil
}

// Query runs similarity search over the catalog and returns up to topK
// candidates ordered by score, excluding the given post IDs.
func (s *QdrantStore) Query(ctx context.Context, vector []float32, topK int, excludeIDs []int) ([]Candidate, error) {
	ctx, cancel := s.opContext(ctx)
	defer cancel()
	ctx, span := tracer.Start(ctx, "QdrantStore.Query")
	defer span.End()

	span.SetAttributes(
		attribute.Int("top_k", topK),
		attribute.Int("exclude_count", len(excludeIDs)),
	)

	if topK <= 0 {
		err := fmt.Errorf("top k must be positive, got %d", topK)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	if len(vector) != int(s.config.VectorSize) {
		err := fmt.Errorf("query vector has %d dimensions, collection expects %d", len(vector), s.config.VectorSize)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	var filter *qdrant.Filter
	if len(excludeIDs) > 0 {
		ids := make([]*qdrant.PointId, len(excludeIDs))
		for i, id := range excludeIDs {
			ids[i] = qdrant.NewIDNum(uint64(id))
		}
		filter = &qdrant.Filter{
			MustNot: []*qdrant.Condition{qdrant.NewHasID(ids...)},
		}
	}

	var hits []*qdrant.ScoredPoint
	err := s.retryOperation(ctx, "query", func() error {
		var err error
		hits, err = s.client.Query(ctx, &qdrant.QueryPoints{
			CollectionName: s.config.Collection,
			Query:          qdrant.NewQuery(vector...),
			Limit:          qdrant.PtrOf(uint64(topK)),
			Filter:         filter,
			WithPayload:    qdrant.NewWithPayload(true),
		})
		return err
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	candidates := make([]Candidate, 0, len(hits))
	for _, hit := range hits {
		article, err := ArticleFromPayload(hit.GetPayload())
		if err != nil {
			// Skip malformed points rather than failing the whole query.
			span.RecordError(err)
			continue
		}
		if article.PostID == 0 {
			article.PostID = int(hit.GetId().GetNum())
		}
		candidates = append(candidates, Candidate{
			Article: article,
			Score:   float64(hit.GetScore()),
		})
	}

	span.SetAttributes(attribute.Int("candidate_count", len(candidates)))
	span.SetStatus(codes.Ok, "success")
	return candidates, nil
}

// ListAll returns up to limit articles without embeddings.
// A non-positive limit uses the configured list limit.
func (s *QdrantStore) ListAll(ctx context.Context, limit int) ([]*Article, error) {
	if limit <= 0 {
		limit = s.config.ListLimit
	}
	return s.scrollArticles(ctx, "QdrantStore.ListAll", nil, limit)
}

// ListPillars returns all pillar articles without embeddings.
func (s *QdrantStore) ListPillars(ctx context.Context) ([]*Article, error) {
	filter := &qdrant.Filter{
		Must: []*qdrant.Condition{qdrant.NewMatchBool("isPillar", true)},
	}
	return s.scrollArticles(ctx, "QdrantStore.ListPillars", filter, s.config.ListLimit)
}

// scrollArticles pages through the collection with the given filter.
func (s *QdrantStore) scrollArticles(ctx context.Context, spanName string, filter *qdrant.Filter, limit int) ([]*Article, error) {
	ctx, cancel := s.opContext(ctx)
	defer cancel()
	ctx, span := tracer.Start(ctx, spanName)
	defer span.End()

	span.SetAttributes(
		attribute.String("collection", s.config.Collection),
		attribute.Int("limit", limit),
	)

	articles := make([]*Article, 0, min(limit, scrollPageSize))
	var offset *qdrant.PointId

	for len(articles) < limit {
		page := min(limit-len(articles), scrollPageSize)

		var points []*qdrant.RetrievedPoint
		err := s.retryOperation(ctx, "scroll", func() error {
			var err error
			points, err = s.client.Scroll(ctx, &qdrant.ScrollPoints{
				CollectionName: s.config.Collection,
				Filter:         filter,
				Limit:          qdrant.PtrOf(uint32(page)),
				Offset:         offset,
				WithPayload:    qdrant.NewWithPayload(true),
			})
			return err
		})
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return nil, err
		}
		if len(points) == 0 {
			break
		}

		for _, pt := range points {
			article, err := decodePoint(pt)
			if err != nil {
				span.RecordError(err)
				continue
			}
			articles = append(articles, article)
		}

		if len(points) < page {
			break
		}
		// Numeric point IDs scroll in ascending order, so the next page
		// starts just past the last ID seen.
		offset = qdrant.NewIDNum(points[len(points)-1].GetId().GetNum() + 1)
	}

	span.SetAttributes(attribute.Int("article_count", len(articles)))
	span.SetStatus(codes.Ok, "success")
	return articles, nil
}

// AppendLinkRecords persists placed links. Each record appends an outbound
// link on its source and an inbound anchor plus counter increment on its
// target. Records whose source or target no longer exists are skipped.
// Re-submitting an already recorded link is a no-op.
func (s *QdrantStore) AppendLinkRecords(ctx context.Context, records []LinkRecord) error {
	ctx, span := tracer.Start(ctx, "QdrantStore.AppendLinkRecords")
	defer span.End()

	span.SetAttributes(attribute.Int("record_count", len(records)))

	if len(records) == 0 {
		span.SetStatus(codes.Ok, "success")
		return nil
	}

	now := time.Now().UTC()

	// Group mutations per article so each point is rewritten once.
	type mutation struct {
		outbound []OutboundLink
		inbound  []InboundAnchor
	}
	byArticle := make(map[int]*mutation)
	mut := func(id int) *mutation {
		m, ok := byArticle[id]
		if !ok {
			m = &mutation{}
			byArticle[id] = m
		}
		return m
	}
	for _, r := range records {
		src := mut(r.SourceID)
		src.outbound = append(src.outbound, OutboundLink{
			TargetID:  r.TargetID,
			Anchor:    r.Anchor,
			CreatedAt: now,
		})
		tgt := mut(r.TargetID)
		tgt.inbound = append(tgt.inbound, InboundAnchor{
			Text:      r.Anchor,
			SourceID:  r.SourceID,
			Type:      r.AnchorType,
			CreatedAt: now,
		})
	}

	order := make([]int, 0, len(byArticle))
	for id := range byArticle {
		order = append(order, id)
	}
	sort.Ints(order)

	skipped := 0
	for _, id := range order {
		m := byArticle[id]

		article, err := s.Get(ctx, id)
		if errors.Is(err, ErrNotFound) {
			skipped++
			continue
		}
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return err
		}

		changed := false
		for _, ob := range m.outbound {
			if hasOutbound(article.OutboundLinks, ob.TargetID, ob.Anchor) {
				continue
			}
			article.OutboundLinks = append(article.OutboundLinks, ob)
			changed = true
		}
		for _, ia := range m.inbound {
			if hasInbound(article.InboundAnchors, ia.SourceID, ia.Text) {
				continue
			}
			article.InboundAnchors = append(article.InboundAnchors, ia)
			article.InboundLinkCount++
			changed = true
		}
		if !changed {
			continue
		}

		if err := s.Upsert(ctx, article); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return err
		}
	}

	span.SetAttributes(attribute.Int("skipped", skipped))
	span.SetStatus(codes.Ok, "success")
	return nil
}

// UpdateDismissed replaces the dismissed-link list of an article.
func (s *QdrantStore) UpdateDismissed(ctx context.Context, postID int, dismissed []DismissedLink) error {
	ctx, span := tracer.Start(ctx, "QdrantStore.UpdateDismissed")
	defer span.End()

	span.SetAttributes(
		attribute.Int("post_id", postID),
		attribute.Int("dismissed_count", len(dismissed)),
	)

	article, err := s.Get(ctx, postID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	article.DismissedLinks = dismissed
	if err := s.Upsert(ctx, article); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	span.SetStatus(codes.Ok, "success")
	return nil
}

// Stats reports collection totals.
func (s *QdrantStore) Stats(ctx context.Context) (*Stats, error) {
	ctx, cancel := s.opContext(ctx)
	defer cancel()
	ctx, span := tracer.Start(ctx, "QdrantStore.Stats")
	defer span.End()

	var info *qdrant.CollectionInfo
	err := s.retryOperation(ctx, "stats", func() error {
		var innerErr error
		info, innerErr = s.client.GetCollectionInfo(ctx, s.config.Collection)
		if innerErr != nil {
			if st, ok := status.FromError(innerErr); ok && st.Code() == grpccodes.NotFound {
				return fmt.Errorf("%s: %w", s.config.Collection, ErrCollectionNotFound)
			}
		}
		return innerErr
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	stats := &Stats{
		TotalArticles: int(info.GetPointsCount()),
		VectorSize:    int(s.config.VectorSize),
		Collection:    s.config.Collection,
	}

	span.SetAttributes(attribute.Int("total_articles", stats.TotalArticles))
	span.SetStatus(codes.Ok, "success")
	return stats, nil
}

// opContext bounds one index round trip with the configured timeout.
func (s *QdrantStore) opContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.config.Timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, s.config.Timeout)
}

// retryOperation retries an operation with exponential backoff.
func (s *QdrantStore) retryOperation(ctx context.Context, operationName string, operation func() error) error {
	backoff := s.config.RetryBackoff

	for attempt := 0; attempt <= s.config.MaxRetries; attempt++ {
		err := operation()
		if err == nil {
			s.resetCircuitBreaker()
			return nil
		}

		// Check circuit breaker
		if s.isCircuitOpen() {
			return fmt.Errorf("%s: circuit breaker open", operationName)
		}

		// Check if error is transient
		if !IsTransientError(err) {
			return fmt.Errorf("%s failed (permanent): %w", operationName, err)
		}

		// Record failure for circuit breaker
		s.recordFailure()

		// Last attempt, return error
		if attempt == s.config.MaxRetries {
			return fmt.Errorf("%s failed after %d retries: %w", operationName, s.config.MaxRetries, err)
		}

		// Wait before retry (exponential backoff)
		select {
		case <-ctx.Done():
			return fmt.Errorf("%s canceled: %w", operationName, ctx.Err())
		case <-time.After(backoff):
			backoff *= 2
		}
	}
	return nil
}

func (s *QdrantStore) recordFailure() {
	s.circuitBreaker.mu.Lock()
	defer s.circuitBreaker.mu.Unlock()
	s.circuitBreaker.failures++
	s.circuitBreaker.lastFail = time.Now()
}

func (s *QdrantStore) resetCircuitBreaker() {
	s.circuitBreaker.mu.Lock()
	defer s.circuitBreaker.mu.Unlock()
	s.circuitBreaker.failures = 0
}

func (s *QdrantStore) isCircuitOpen() bool {
	s.circuitBreaker.mu.Lock()
	defer s.circuitBreaker.mu.Unlock()

	// Circuit is open if too many failures recently
	if s.circuitBreaker.failures >= s.config.CircuitBreakerThreshold {
		// Allow retry after 30 seconds
		if time.Since(s.circuitBreaker.lastFail) > 30*time.Second {
			s.circuitBreaker.failures = 0
			return false
		}
		return true
	}
	return false
}

// decodePoint rebuilds an article from a retrieved point, vector included
// when present.
func decodePoint(pt *qdrant.RetrievedPoint) (*Article, error) {
	article, err := ArticleFromPayload(pt.GetPayload())
	if err != nil {
		return nil, err
	}
	if article.PostID == 0 {
		article.PostID = int(pt.GetId().GetNum())
	}
	if data := pt.GetVectors().GetVector().GetData(); len(data) > 0 {
		article.Embedding = data
	}
	return article, nil
}

func hasOutbound(links []OutboundLink, targetID int, anchor string) bool {
	for _, l := range links {
		if l.TargetID == targetID && l.Anchor == anchor {
			return true
		}
	}
	return false
}

func hasInbound(anchors []InboundAnchor, sourceID int, text string) bool {
	for _, a := range anchors {
		if a.SourceID == sourceID && a.Text == text {
			return true
		}
	}
	return false
}
