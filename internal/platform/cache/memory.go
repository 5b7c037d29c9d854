package cache

import (
	"container/list"
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"
)

// Memory is an in-process LRU cache with per-item expiry. It serves demo
// mode and tests.
type Memory struct {
	mu       sync.Mutex
	items    map[string]*list.Element
	lru      *list.List
	maxItems int
	now      func() time.Time
}

type memoryItem struct {
	key    string
	value  []byte
	expiry time.Time
}

// NewMemory returns a cache holding at most maxItems entries; 0 means 1024.
func NewMemory(maxItems int) *Memory {
	if maxItems <= 0 {
		maxItems = 1024
	}
	return &Memory{
		items:    make(map[string]*list.Element),
		lru:      list.New(),
		maxItems: maxItems,
		now:      time.Now,
	}
}

func (c *Memory) Get(_ context.Context, key string, dest interface{}) error {
	c.mu.Lock()
	el, ok := c.items[key]
	if !ok {
		c.mu.Unlock()
		return ErrMiss
	}
	item := el.Value.(*memoryItem)
	if !item.expiry.IsZero() && c.now().After(item.expiry) {
		c.remove(el)
		c.mu.Unlock()
		return ErrMiss
	}
	c.lru.MoveToFront(el)
	data := item.value
	c.mu.Unlock()

	if err := json.Unmarshal(data, dest); err != nil {
		return fmt.Errorf("unmarshal cached %s: %w", key, err)
	}
	return nil
}

// Set stores value; a ttl <= 0 never expires.
func (c *Memory) Set(_ context.Context, key string, value interface{}, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshal %s for cache: %w", key, err)
	}
	item := &memoryItem{key: key, value: data}
	if ttl > 0 {
		item.expiry = c.now().Add(ttl)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if el, ok := c.items[key]; ok {
		c.remove(el)
	}
	for c.lru.Len() >= c.maxItems {
		c.remove(c.lru.Back())
	}
	c.items[key] = c.lru.PushFront(item)
	return nil
}

func (c *Memory) Delete(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if el, ok := c.items[key]; ok {
		c.remove(el)
	}
	return nil
}

// Len returns the number of entries, expired ones included.
func (c *Memory) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.Len()
}

func (c *Memory) remove(el *list.Element) {
	c.lru.Remove(el)
	delete(c.items, el.Value.(*memoryItem).key)
}
