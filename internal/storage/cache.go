package storage

import (
	"container/list"
	"context"
	"sync"
	"time"

	"llm_billing_gateway/internal/models"
)

type cacheEntry[V any] struct {
	key       string
	value     V
	expiresAt time.Time
}

// LRUCache is a thread-safe LRU cache with TTL support
type LRUCache[V any] struct {
	mu           sync.Mutex
	capacity     int
	ttl          time.Duration
	items        map[string]*list.Element
	evictionList *list.List
	now          func() time.Time
}

// NewLRUCache creates a new LRU cache
func NewLRUCache[V any](capacity int, ttl time.Duration) *LRUCache[V] {
	if capacity < 1 {
		capacity = 1
	}
	return &LRUCache[V]{
		capacity:     capacity,
		ttl:          ttl,
		items:        make(map[string]*list.Element, capacity),
		evictionList: list.New(),
		now:          time.Now,
	}
}

// Get retrieves an unexpired item and marks it most recently used
func (c *LRUCache[V]) Get(key string) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var zero V
	elem, found := c.items[key]
	if !found {
		return zero, false
	}

	entry := elem.Value.(*cacheEntry[V])
	if c.now().After(entry.expiresAt) {
		c.removeElement(elem)
		return zero, false
	}

	c.evictionList.MoveToFront(elem)
	return entry.value, true
}

// Set adds or updates an item, evicting the least recently used one when full
func (c *LRUCache[V]) Set(key string, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	expiresAt := c.now().Add(c.ttl)

	if elem, found := c.items[key]; found {
		c.evictionList.MoveToFront(elem)
		entry := elem.Value.(*cacheEntry[V])
		entry.value = value
		entry.expiresAt = expiresAt
		return
	}

	elem := c.evictionList.PushFront(&cacheEntry[V]{key: key, value: value, expiresAt: expiresAt})
	c.items[key] = elem

	if c.evictionList.Len() > c.capacity {
		if oldest := c.evictionList.Back(); oldest != nil {
			c.removeElement(oldest)
		}
	}
}

// Delete removes an item from the cache
func (c *LRUCache[V]) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, found := c.items[key]; found {
		c.removeElement(elem)
	}
}

// Len returns the current number of items, expired ones included
func (c *LRUCache[V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.evictionList.Len()
}

func (c *LRUCache[V]) removeElement(elem *list.Element) {
	c.evictionList.Remove(elem)
	delete(c.items, elem.Value.(*cacheEntry[V]).key)
}

const activePriceListKey = "active"

// CachedPriceListStore keeps the active price list for a short TTL so the
// hot path does not query the database on every request. Save invalidates.
type CachedPriceListStore struct {
	next  PriceListStore
	cache *LRUCache[*models.PriceList]
}

// NewCachedPriceListStore wraps next with a TTL cache
func NewCachedPriceListStore(next PriceListStore, ttl time.Duration) *CachedPriceListStore {
	return &CachedPriceListStore{
		next:  next,
		cache: NewLRUCache[*models.PriceList](1, ttl),
	}
}

// FindActive returns the cached snapshot or loads it
func (s *CachedPriceListStore) FindActive(ctx context.Context) (*models.PriceList, error) {
	if pl, ok := s.cache.Get(activePriceListKey); ok {
		return pl, nil
	}

	pl, err := s.next.FindActive(ctx)
	if err != nil {
		return nil, err
	}
	s.cache.Set(activePriceListKey, pl)
	return pl, nil
}

// Save publishes through to the wrapped store and drops the cached snapshot
func (s *CachedPriceListStore) Save(ctx context.Context, pl *models.PriceList) error {
	defer s.cache.Delete(activePriceListKey)
	return s.next.Save(ctx, pl)
}
