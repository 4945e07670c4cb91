// Package cache provides the bounded LRU view cache that fronts the two
// expensive store read paths: composed context strings and point-in-time
// memory views. It owns no source-of-truth data; every entry is a derived
// result keyed by (owner, query shape) and the whole owner partition is
// dropped whenever that owner's graph changes.
package cache

import (
	"container/list"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sync"
	"time"
)

// Stats is a read-only snapshot of cache counters.
type Stats struct {
	Hits     int64 `json:"hits"`
	Misses   int64 `json:"misses"`
	Size     int   `json:"size"`
	Capacity int   `json:"capacity"`
}

type entry struct {
	key     string
	owner   string
	value   any
	addedAt time.Time
}

// Cache is a thread-safe LRU cache with optional per-entry TTL.
// A capacity <= 0 disables caching entirely (every get is a miss).
//
// Admission is epoch-guarded: InvalidateOwner advances the owner's epoch,
// and a put carries the epoch its caller sampled before computing the
// value. A put whose epoch has been overtaken is dropped, so a view
// computed before a write can never be admitted after that write's
// invalidation ran.
type Cache struct {
	mu       sync.Mutex
	capacity int
	ttl      time.Duration
	ll       *list.List // front = most recently used
	items    map[string]*list.Element
	epochs   map[string]uint64
	hits     int64
	misses   int64
	now      func() time.Time
}

// New creates a Cache holding at most capacity entries. A non-zero ttl makes
// entries older than ttl behave as misses even when present; this bounds
// staleness if a caller ever writes around the store's invalidation path.
func New(capacity int, ttl time.Duration) *Cache {
	return &Cache{
		capacity: capacity,
		ttl:      ttl,
		ll:       list.New(),
		items:    make(map[string]*list.Element),
		epochs:   make(map[string]uint64),
		now:      time.Now,
	}
}

// Epoch returns the owner's current invalidation epoch. Sample it before
// computing a value destined for this cache; the matching put is dropped
// if the owner was invalidated in between.
func (c *Cache) Epoch(owner string) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	// Register the owner so Clear advances its epoch too.
	if _, ok := c.epochs[owner]; !ok {
		c.epochs[owner] = 0
	}
	return c.epochs[owner]
}

// GetContext returns a cached context string for (owner, topic).
func (c *Cache) GetContext(owner, topic string) (string, bool) {
	v, ok := c.get(fingerprint("context", owner, topic))
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

// PutContext caches a context string for (owner, topic). epoch is the
// value Epoch(owner) returned before the context was computed.
func (c *Cache) PutContext(owner, topic, context string, epoch uint64) {
	c.put(fingerprint("context", owner, topic), owner, context, epoch)
}

// GetView returns a cached memory view. The parts describe the query shape
// (topic filter, time filter, view kind) and must be given in a fixed order
// by the caller; identical logical queries hash to the same key.
func (c *Cache) GetView(owner string, parts ...any) (any, bool) {
	return c.get(fingerprint("view", owner, parts...))
}

// PutView caches a memory view under the same key shape as GetView.
// epoch is the value Epoch(owner) returned before the view was computed.
func (c *Cache) PutView(owner string, epoch uint64, v any, parts ...any) {
	c.put(fingerprint("view", owner, parts...), owner, v, epoch)
}

// InvalidateOwner removes every entry belonging to owner and returns how
// many were dropped. The store calls this synchronously after each write;
// no entry for the owner survives into the post-write world. The owner's
// epoch advances even when nothing was cached, so an in-flight put whose
// value predates the write is rejected on arrival.
func (c *Cache) InvalidateOwner(owner string) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.epochs[owner]++
	removed := 0
	for el := c.ll.Front(); el != nil; {
		next := el.Next()
		if el.Value.(*entry).owner == owner {
			c.remove(el)
			removed++
		}
		el = next
	}
	return removed
}

// Clear drops every entry and resets the hit/miss counters. Every known
// owner's epoch advances so in-flight puts computed before the clear are
// rejected too.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ll.Init()
	c.items = make(map[string]*list.Element)
	for owner := range c.epochs {
		c.epochs[owner]++
	}
	c.hits = 0
	c.misses = 0
}

// Stats returns a snapshot of the cache counters.
func (c *Cache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Stats{
		Hits:     c.hits,
		Misses:   c.misses,
		Size:     c.ll.Len(),
		Capacity: c.capacity,
	}
}

func (c *Cache) get(key string) (any, bool) {
	if c.capacity <= 0 {
		return nil, false
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.items[key]
	if !ok {
		c.misses++
		return nil, false
	}

	e := el.Value.(*entry)
	if c.ttl > 0 && c.now().Sub(e.addedAt) > c.ttl {
		// Expired entries are treated as misses and removed.
		c.remove(el)
		c.misses++
		return nil, false
	}

	c.ll.MoveToFront(el)
	c.hits++
	return e.value, true
}

func (c *Cache) put(key, owner string, v any, epoch uint64) {
	if c.capacity <= 0 {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	// The owner was invalidated after the caller sampled its epoch; this
	// value was computed against pre-invalidation data.
	if c.epochs[owner] != epoch {
		return
	}

	if el, ok := c.items[key]; ok {
		e := el.Value.(*entry)
		e.value = v
		e.addedAt = c.now()
		c.ll.MoveToFront(el)
		return
	}

	for c.ll.Len() >= c.capacity {
		c.remove(c.ll.Back())
	}

	el := c.ll.PushFront(&entry{key: key, owner: owner, value: v, addedAt: c.now()})
	c.items[key] = el
}

// remove deletes an element. Caller holds c.mu.
func (c *Cache) remove(el *list.Element) {
	c.ll.Remove(el)
	delete(c.items, el.Value.(*entry).key)
}

// fingerprint builds a deterministic key from the view kind, owner and query
// shape. JSON encoding sorts map keys, so logically identical queries hash
// identically regardless of ordering inside unordered substructures.
func fingerprint(kind, owner string, parts ...any) string {
	raw, err := json.Marshal([]any{kind, owner, parts})
	if err != nil {
		// Only unmarshalable values (chans, funcs) can fail here; fall back
		// to a collision-free-enough literal key.
		raw = []byte(kind + "\x00" + owner)
	}
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:])
}
