package kafka

import (
	"sync"
)

// seenCache is a thread-safe LRU map of unified_event_id to the fingerprint
// of the row last published under that ID. Bounded so a long-lived dedup
// service cannot grow without limit.
type seenCache struct {
	maxEntries int
	mu         sync.Mutex
	entries    map[string]*seenEntry
	head       *seenEntry // most recently used
	tail       *seenEntry // least recently used
}

type seenEntry struct {
	key         string
	fingerprint string
	prev        *seenEntry
	next        *seenEntry
}

func newSeenCache(maxEntries int) *seenCache {
	return &seenCache{
		maxEntries: maxEntries,
		entries:    make(map[string]*seenEntry),
	}
}

func (c *seenCache) get(key string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return "", false
	}
	c.moveToFront(e)
	return e.fingerprint, true
}

func (c *seenCache) put(key, fingerprint string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.entries[key]; ok {
		e.fingerprint = fingerprint
		c.moveToFront(e)
		return
	}

	e := &seenEntry{key: key, fingerprint: fingerprint}
	c.entries[key] = e
	c.addToFront(e)

	if len(c.entries) > c.maxEntries {
		c.evictTail()
	}
}

func (c *seenCache) moveToFront(e *seenEntry) {
	if e == c.head {
		return
	}
	c.remove(e)
	c.addToFront(e)
}

func (c *seenCache) addToFront(e *seenEntry) {
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

func (c *seenCache) remove(e *seenEntry) {
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

func (c *seenCache) evictTail() {
	if c.tail == nil {
		return
	}
	delete(c.entries, c.tail.key)
	c.remove(c.tail)
}
