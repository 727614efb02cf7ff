package catalog_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/linkd/internal/catalog"
)

// countingStore wraps a MemStore and counts ListAll calls.
type countingStore struct {
	*catalog.MemStore
	listCalls atomic.Int64
	failList  atomic.Bool
}

func (s *countingStore) ListAll(ctx context.Context, limit int) ([]*catalog.Article, error) {
	s.listCalls.Add(1)
	if s.failList.Load() {
		return nil, errors.New("index unavailable")
	}
	return s.MemStore.ListAll(ctx, limit)
}

func newCountingStore(t *testing.T, articles ...*catalog.Article) *countingStore {
	t.Helper()
	s := &countingStore{MemStore: catalog.NewMemStore(0)}
	require.NoError(t, s.Seed(context.Background(), articles...))
	return s
}

func TestCachedListerReusesSnapshot(t *testing.T) {
	ctx := context.Background()
	store := newCountingStore(t,
		&catalog.Article{PostID: 1, Title: "first"},
		&catalog.Article{PostID: 2, Title: "second"},
	)
	lister := catalog.NewCachedLister(store, time.Minute)

	first, err := lister.Articles(ctx)
	require.NoError(t, err)
	assert.Len(t, first, 2)

	second, err := lister.Articles(ctx)
	require.NoError(t, err)
	assert.Len(t, second, 2)

	assert.Equal(t, int64(1), store.listCalls.Load())
}

func TestCachedListerInvalidateForcesRefetch(t *testing.T) {
	ctx := context.Background()
	store := newCountingStore(t, &catalog.Article{PostID: 1})
	lister := catalog.NewCachedLister(store, time.Minute)

	_, err := lister.Articles(ctx)
	require.NoError(t, err)

	require.NoError(t, store.Upsert(ctx, &catalog.Article{PostID: 2}))
	lister.Invalidate()

	refreshed, err := lister.Articles(ctx)
	require.NoError(t, err)
	assert.Len(t, refreshed, 2)
	assert.Equal(t, int64(2), store.listCalls.Load())
}

func TestCachedListerExpiresAfterTTL(t *testing.T) {
	ctx := context.Background()
	store := newCountingStore(t, &catalog.Article{PostID: 1})
	lister := catalog.NewCachedLister(store, 10*time.Millisecond)

	_, err := lister.Articles(ctx)
	require.NoError(t, err)

	time.Sleep(20 * time.Millisecond)

	_, err = lister.Articles(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), store.listCalls.Load())
}

func TestCachedListerPropagatesErrors(t *testing.T) {
	ctx := context.Background()
	store := newCountingStore(t, &catalog.Article{PostID: 1})
	lister := catalog.NewCachedLister(store, time.Minute)

	store.failList.Store(true)
	_, err := lister.Articles(ctx)
	require.Error(t, err)

	// A failed fetch must not poison the cache.
	store.failList.Store(false)
	articles, err := lister.Articles(ctx)
	require.NoError(t, err)
	assert.Len(t, articles, 1)
}

func TestCachedListerAge(t *testing.T) {
	ctx := context.Background()
	store := newCountingStore(t, &catalog.Article{PostID: 1})
	lister := catalog.NewCachedLister(store, time.Minute)

	_, ok := lister.Age()
	assert.False(t, ok)

	_, err := lister.Articles(ctx)
	require.NoError(t, err)

	age, ok := lister.Age()
	assert.True(t, ok)
	assert.Less(t, age, time.Minute)
}
