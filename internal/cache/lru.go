package cache

import (
	"container/list"
	"sync"
	"time"
)

// LRUCache is an LRU cache with TTL and size-based eviction. Entries are
// refreshed on access, so the TTL measures idle time.
type LRUCache[T any] struct {
	mu      sync.Mutex
	maxSize int
	ttl     time.Duration
	items   map[string]*list.Element
	lru     *list.List
	onEvict func(key string, data T)
	now     func() time.Time
}

type cacheItem[T any] struct {
	key       string
	data      T
	expiresAt time.Time
}

type evicted[T any] struct {
	key  string
	data T
}

func NewLRUCache[T any](maxSize int, ttl time.Duration) *LRUCache[T] {
	return &LRUCache[T]{
		maxSize: maxSize,
		ttl:     ttl,
		items:   make(map[string]*list.Element),
		lru:     list.New(),
		now:     time.Now,
	}
}

// OnEvict registers fn to run for every entry that leaves the cache through
// expiry, capacity or Delete. fn runs without the cache lock held.
func (c *LRUCache[T]) OnEvict(fn func(key string, data T)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onEvict = fn
}

func (c *LRUCache[T]) Get(key string) (T, bool) {
	c.mu.Lock()
	var zero T
	elem, exists := c.items[key]
	if !exists {
		c.mu.Unlock()
		return zero, false
	}

	item := elem.Value.(*cacheItem[T])
	if c.now().After(item.expiresAt) {
		gone := c.removeElement(elem)
		c.mu.Unlock()
		c.notify(gone)
		return zero, false
	}

	item.expiresAt = c.now().Add(c.ttl)
	c.lru.MoveToFront(elem)
	c.mu.Unlock()
	return item.data, true
}

// GetOrCreate returns the live value for key, storing create() when there is
// none. create runs under the cache lock and must not call back into it.
func (c *LRUCache[T]) GetOrCreate(key string, create func() T) T {
	c.mu.Lock()
	var gone []evicted[T]
	if elem, exists := c.items[key]; exists {
		item := elem.Value.(*cacheItem[T])
		if !c.now().After(item.expiresAt) {
			item.expiresAt = c.now().Add(c.ttl)
			c.lru.MoveToFront(elem)
			c.mu.Unlock()
			return item.data
		}
		gone = append(gone, c.removeElement(elem)...)
	}
	data := create()
	gone = append(gone, c.insert(key, data)...)
	c.mu.Unlock()
	c.notify(gone)
	return data
}

// Set stores a value in the cache. Replacing an existing key does not run
// the eviction hook for the old value.
func (c *LRUCache[T]) Set(key string, data T) {
	c.mu.Lock()
	if elem, exists := c.items[key]; exists {
		elem.Value = &cacheItem[T]{key: key, data: data, expiresAt: c.now().Add(c.ttl)}
		c.lru.MoveToFront(elem)
		c.mu.Unlock()
		return
	}
	gone := c.insert(key, data)
	c.mu.Unlock()
	c.notify(gone)
}

func (c *LRUCache[T]) insert(key string, data T) []evicted[T] {
	elem := c.lru.PushFront(&cacheItem[T]{key: key, data: data, expiresAt: c.now().Add(c.ttl)})
	c.items[key] = elem

	var gone []evicted[T]
	for c.maxSize > 0 && c.lru.Len() > c.maxSize {
		gone = append(gone, c.removeElement(c.lru.Back())...)
	}
	return gone
}

func (c *LRUCache[T]) Delete(key string) {
	c.mu.Lock()
	var gone []evicted[T]
	if elem, exists := c.items[key]; exists {
		gone = c.removeElement(elem)
	}
	c.mu.Unlock()
	c.notify(gone)
}

func (c *LRUCache[T]) removeElement(elem *list.Element) []evicted[T] {
	item := elem.Value.(*cacheItem[T])
	delete(c.items, item.key)
	c.lru.Remove(elem)
	return []evicted[T]{{key: item.key, data: item.data}}
}

func (c *LRUCache[T]) notify(gone []evicted[T]) {
	if len(gone) == 0 {
		return
	}
	c.mu.Lock()
	fn := c.onEvict
	c.mu.Unlock()
	if fn == nil {
		return
	}
	for _, e := range gone {
		fn(e.key, e.data)
	}
}

// CleanExpired removes all expired entries and returns count of removed items
func (c *LRUCache[T]) CleanExpired() int {
	c.mu.Lock()
	now := c.now()
	var toRemove []*list.Element
	for elem := c.lru.Front(); elem != nil; elem = elem.Next() {
		if now.After(elem.Value.(*cacheItem[T]).expiresAt) {
			toRemove = append(toRemove, elem)
		}
	}
	var gone []evicted[T]
	for _, elem := range toRemove {
		gone = append(gone, c.removeElement(elem)...)
	}
	c.mu.Unlock()
	c.notify(gone)
	return len(toRemove)
}

func (c *LRUCache[T]) Size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

// Purge removes every entry, running the eviction hook for each.
func (c *LRUCache[T]) Purge() int {
	c.mu.Lock()
	var gone []evicted[T]
	for c.lru.Len() > 0 {
		gone = append(gone, c.removeElement(c.lru.Back())...)
	}
	c.mu.Unlock()
	c.notify(gone)
	return len(gone)
}
