package catalog

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// defaultListerTTL is how long a full-catalog snapshot stays fresh.
const defaultListerTTL = 10 * time.Minute

// Lister provides a site-wide article snapshot.
type Lister interface {
	// Articles returns the current snapshot. The returned slice is shared
	// between callers and must not be modified.
	Articles(ctx context.Context) ([]*Article, error)

	// Invalidate drops the snapshot so the next call refetches.
	Invalidate()
}

// CachedLister caches full-catalog listings for a TTL so site-wide passes
// (graph rebuilds, audits, orphan scans) do not hammer the index.
// Concurrent refreshes collapse into a single fetch.
type CachedLister struct {
	store Store
	ttl   time.Duration

	group singleflight.Group

	mu        sync.RWMutex
	snapshot  []*Article
	fetchedAt time.Time
}

var _ Lister = (*CachedLister)(nil)

// NewCachedLister creates a lister over the store. A non-positive ttl uses
// the default of 10 minutes.
func NewCachedLister(store Store, ttl time.Duration) *CachedLister {
	if ttl <= 0 {
		ttl = defaultListerTTL
	}
	return &CachedLister{store: store, ttl: ttl}
}

// Articles returns the cached snapshot, refetching when stale.
func (l *CachedLister) Articles(ctx context.Context) ([]*Article, error) {
	if snap, ok := l.fresh(); ok {
		return snap, nil
	}

	v, err, _ := l.group.Do("articles", func() (any, error) {
		// Another caller may have refreshed while this one waited.
		if snap, ok := l.fresh(); ok {
			return snap, nil
		}

		articles, err := l.store.ListAll(ctx, 0)
		if err != nil {
			return nil, err
		}

		l.mu.Lock()
		l.snapshot = articles
		l.fetchedAt = time.Now()
		l.mu.Unlock()
		return articles, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]*Article), nil
}

// Invalidate drops the snapshot so the next Articles call refetches.
func (l *CachedLister) Invalidate() {
	l.mu.Lock()
	l.snapshot = nil
	l.fetchedAt = time.Time{}
	l.mu.Unlock()
}

// Age reports how old the current snapshot is, and false when empty.
func (l *CachedLister) Age() (time.Duration, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.snapshot == nil {
		return 0, false
	}
	return time.Since(l.fetchedAt), true
}

func (l *CachedLister) fresh() ([]*Article, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.snapshot == nil || time.Since(l.fetchedAt) >= l.ttl {
		return nil, false
	}
	return l.snapshot, true
}
