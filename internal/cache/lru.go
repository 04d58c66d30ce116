package cache

import (
	"container/list"
	"context"
	"sync"
	"time"
)

// LRU is an in-memory cache with TTL and size-based eviction.
type LRU[T any] struct {
	mu      sync.Mutex
	maxSize int
	ttl     time.Duration
	items   map[string]*list.Element
	order   *list.List
	now     func() time.Time
}

type lruItem[T any] struct {
	key       string
	value     T
	expiresAt time.Time
}

// NewLRU returns an LRU holding at most maxSize entries (minimum 1). A
// non-positive ttl keeps entries until evicted.
func NewLRU[T any](maxSize int, ttl time.Duration) *LRU[T] {
	if maxSize < 1 {
		maxSize = 1
	}
	return &LRU[T]{
		maxSize: maxSize,
		ttl:     ttl,
		items:   make(map[string]*list.Element),
		order:   list.New(),
		now:     time.Now,
	}
}

// Get returns the cached value and marks it most recently used.
func (c *LRU[T]) Get(_ context.Context, key string) (T, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var zero T
	elem, ok := c.items[key]
	if !ok {
		return zero, false, nil
	}
	item := elem.Value.(*lruItem[T])
	if c.expired(item) {
		c.remove(elem)
		return zero, false, nil
	}
	c.order.MoveToFront(elem)
	return item.value, true, nil
}

// Set stores v, evicting the least recently used entry when full.
func (c *LRU[T]) Set(_ context.Context, key string, v T) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	item := &lruItem[T]{key: key, value: v}
	if c.ttl > 0 {
		item.expiresAt = c.now().Add(c.ttl)
	}

	if elem, ok := c.items[key]; ok {
		elem.Value = item
		c.order.MoveToFront(elem)
		return nil
	}
	c.items[key] = c.order.PushFront(item)
	if c.order.Len() > c.maxSize {
		c.remove(c.order.Back())
	}
	return nil
}

// Delete drops key.
func (c *LRU[T]) Delete(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if elem, ok := c.items[key]; ok {
		c.remove(elem)
	}
	return nil
}

// Len returns the number of entries, expired ones included.
// Ping always succeeds for the in-process cache.
func (c *LRU[T]) Ping(context.Context) error { return nil }

func (c *LRU[T]) Close() error { return nil }

func (c *LRU[T]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}

func (c *LRU[T]) expired(item *lruItem[T]) bool {
	return !item.expiresAt.IsZero() && c.now().After(item.expiresAt)
}

func (c *LRU[T]) remove(elem *list.Element) {
	item := elem.Value.(*lruItem[T])
	delete(c.items, item.key)
	c.order.Remove(elem)
}
