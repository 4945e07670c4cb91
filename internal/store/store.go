// Package store is the temporal, owner-partitioned persistence layer for
// ghostkg knowledge graphs. Every agent ("owner") has a private partition
// of concept nodes, append-only relation edges, and an interaction log.
// Nodes carry spaced-repetition memory state; reads are point-in-time
// ("what did this owner know, and how strongly, as of time T").
package store

import (
	"sync"

	"github.com/lazypower/ghostkg/internal/cache"
	"github.com/lazypower/ghostkg/internal/fsrs"
)

// SelfID is the distinguished concept identifier an owner uses for itself.
// The orphan-pruning policy never drops it from a graph view.
const SelfID = "I"

// Options configures a Store.
type Options struct {
	// StoreLogContent keeps full interaction content in the logs table.
	// When false (the default) only a content UUID is recorded.
	StoreLogContent bool
}

// Store coordinates the database, the memory model, and the view cache.
//
// Writes to one owner are serialized by a per-owner mutex so concurrent
// reviews of the same concept apply the memory model exactly once each,
// sequentially. Writes to different owners never block each other. The
// cache is invalidated synchronously inside the write path, after the
// transaction commits and before the owner lock is released, so a cache
// entry admitted later can only have been computed from post-write data.
type Store struct {
	db    *DB
	cache *cache.Cache
	sched *fsrs.Scheduler
	opts  Options

	mu         sync.Mutex
	ownerLocks map[string]*sync.Mutex
}

// New creates a Store. The cache is injected rather than constructed here;
// one cache instance per process, owned by whoever wires the program.
func New(db *DB, c *cache.Cache, sched *fsrs.Scheduler, opts Options) *Store {
	return &Store{
		db:         db,
		cache:      c,
		sched:      sched,
		opts:       opts,
		ownerLocks: make(map[string]*sync.Mutex),
	}
}

// DB exposes the underlying database (health checks, tests).
func (s *Store) DB() *DB { return s.db }

// Cache exposes the injected view cache.
func (s *Store) Cache() *cache.Cache { return s.cache }

// Scheduler exposes the memory model shared by all owners.
func (s *Store) Scheduler() *fsrs.Scheduler { return s.sched }

// ownerLock returns the mutex serializing writes for one owner,
// creating it on first use.
func (s *Store) ownerLock(owner string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.ownerLocks[owner]
	if !ok {
		l = &sync.Mutex{}
		s.ownerLocks[owner] = l
	}
	return l
}

// invalidate drops every cached view for the owner. Called with the
// owner lock held, after the write transaction has committed (or failed
// partway: a failed write may still have changed visible state in an
// earlier committed step, so invalidating on the error path is the safe
// default).
func (s *Store) invalidate(owner string) {
	if s.cache != nil {
		s.cache.InvalidateOwner(owner)
	}
}
