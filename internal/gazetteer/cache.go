package gazetteer

import (
	"sync"

	"github.com/couchcryptid/sigwatch/internal/model"
)

// lruCache is a thread-safe LRU cache over gazetteer name lookups, adapted
// from the geocoder cache decorator: same doubly-linked-list eviction, but
// keyed on normalized place names instead of geocode requests.
type lruCache struct {
	maxEntries int
	mu         sync.Mutex
	entries    map[string]*entry
	head       *entry
	tail       *entry
}

type entry struct {
	key   string
	value model.Place
	ok    bool
	prev  *entry
	next  *entry
}

func newLRUCache(maxEntries int) *lruCache {
	return &lruCache{
		maxEntries: maxEntries,
		entries:    make(map[string]*entry),
	}
}

func (c *lruCache) get(key string) (model.Place, bool, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, cached := c.entries[key]
	if !cached {
		return model.Place{}, false, false
	}
	c.moveToFront(e)
	return e.value, e.ok, true
}

func (c *lruCache) put(key string, value model.Place, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, exists := c.entries[key]; exists {
		e.value, e.ok = value, ok
		c.moveToFront(e)
		return
	}

	e := &entry{key: key, value: value, ok: ok}
	c.entries[key] = e
	c.addToFront(e)

	if len(c.entries) > c.maxEntries {
		c.evictTail()
	}
}

func (c *lruCache) moveToFront(e *entry) {
	if e == c.head {
		return
	}
	c.remove(e)
	c.addToFront(e)
}

func (c *lruCache) addToFront(e *entry) {
	e.next = c.head
	e.prev = nil
	if c.head != nil {
		c.head.prev = e
	}
	c.head = e
	if c.tail == nil {
		c.tail = e
	}
}

func (c *lruCache) remove(e *entry) {
	if e.prev != nil {
		e.prev.next = e.next
	} else {
		c.head = e.next
	}
	if e.next != nil {
		e.next.prev = e.prev
	} else {
		c.tail = e.prev
	}
}

func (c *lruCache) evictTail() {
	if c.tail == nil {
		return
	}
	delete(c.entries, c.tail.key)
	c.remove(c.tail)
}
