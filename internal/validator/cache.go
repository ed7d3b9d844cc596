package validator

import (
	"container/list"
	"crypto/sha256"
	"encoding/hex"
	"sync"
	"time"
)

// Key fingerprints a validation input. Fields are length-prefix separated so
// distinct (text, context, adaptation) triples never collide by reshuffling.
func Key(text string, context Context, adaptationID string) string {
	h := sha256.New()
	for _, part := range []string{text, string(context), adaptationID} {
		var length [8]byte
		n := len(part)
		for i := 0; i < 8; i++ {
			length[i] = byte(n >> (8 * i))
		}
		h.Write(length[:])
		h.Write([]byte(part))
	}
	return hex.EncodeToString(h.Sum(nil))
}

type cacheEntry struct {
	key      string
	result   Result
	storedAt time.Time
}

// Cache memoizes validation results with TTL expiry and LRU eviction.
// Entries are immutable once written; all access is internally locked.
type Cache struct {
	mu         sync.Mutex
	entries    map[string]*list.Element
	order      *list.List // front is most recently used
	maxEntries int
	ttl        time.Duration
	now        func() time.Time
}

func NewCache(maxEntries int, ttl time.Duration) *Cache {
	return &Cache{
		entries:    make(map[string]*list.Element),
		order:      list.New(),
		maxEntries: maxEntries,
		ttl:        ttl,
		now:        time.Now,
	}
}

func (c *Cache) Get(key string) (Result, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	element, ok := c.entries[key]
	if !ok {
		return Result{}, false
	}
	entry := element.Value.(*cacheEntry)
	if c.ttl > 0 && c.now().Sub(entry.storedAt) > c.ttl {
		c.order.Remove(element)
		delete(c.entries, key)
		return Result{}, false
	}
	c.order.MoveToFront(element)

	result := entry.result
	result.TraitScores = entry.result.TraitScores.Clone()
	return result, true
}

func (c *Cache) Put(key string, result Result) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if element, ok := c.entries[key]; ok {
		c.order.MoveToFront(element)
		element.Value.(*cacheEntry).storedAt = c.now()
		return
	}

	result.TraitScores = result.TraitScores.Clone()
	element := c.order.PushFront(&cacheEntry{key: key, result: result, storedAt: c.now()})
	c.entries[key] = element

	for c.maxEntries > 0 && c.order.Len() > c.maxEntries {
		oldest := c.order.Back()
		if oldest == nil {
			break
		}
		c.order.Remove(oldest)
		delete(c.entries, oldest.Value.(*cacheEntry).key)
	}
}

func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}
