package recommend

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Response cache bounds.
const (
	DefaultCacheTTL        = 24 * time.Hour
	DefaultCacheMaxEntries = 1000
	cacheEvictBatch        = 100
)

// cacheKey derives the lookup key for a smart-link request. Only the
// inputs that change the outcome participate: the post, the leading
// content (edits past the first kilobyte rarely move recommendations),
// and the link budget.
func cacheKey(postID int, content string, maxLinks int) string {
	head := content
	if len(head) > 1000 {
		head = head[:1000]
	}
	contentSum := sha256.Sum256([]byte(head))
	sum := sha256.Sum256(fmt.Appendf(nil, "%d|%s|%d", postID, hex.EncodeToString(contentSum[:]), maxLinks))
	return hex.EncodeToString(sum[:])
}

type cacheEntry struct {
	id      string
	resp    *Response
	created time.Time
}

// responseCache is a bounded TTL cache for smart-link responses. When
// full it evicts the oldest hundred entries in one sweep rather than one
// at a time, keeping insert cost flat under churn.
type responseCache struct {
	mu         sync.Mutex
	entries    map[string]*cacheEntry
	ttl        time.Duration
	maxEntries int
	now        func() time.Time
}

func newResponseCache(ttl time.Duration, maxEntries int) *responseCache {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	if maxEntries <= 0 {
		maxEntries = DefaultCacheMaxEntries
	}
	return &responseCache{
		entries:    make(map[string]*cacheEntry),
		ttl:        ttl,
		maxEntries: maxEntries,
		now:        time.Now,
	}
}

func (c *responseCache) get(key string) (*Response, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	if c.now().Sub(e.created) > c.ttl {
		delete(c.entries, key)
		return nil, false
	}
	return e.resp, true
}

func (c *responseCache) put(key string, resp *Response) string {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.entries) >= c.maxEntries {
		c.evictOldest(cacheEvictBatch)
	}
	e := &cacheEntry{id: uuid.NewString(), resp: resp, created: c.now()}
	c.entries[key] = e
	return e.id
}

func (c *responseCache) evictOldest(n int) {
	type aged struct {
		key     string
		created time.Time
	}
	all := make([]aged, 0, len(c.entries))
	for k, e := range c.entries {
		all = append(all, aged{k, e.created})
	}
	sort.Slice(all, func(i, j int) bool { return all[i].created.Before(all[j].created) })
	for i := 0; i < n && i < len(all); i++ {
		delete(c.entries, all[i].key)
	}
}

func (c *responseCache) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
