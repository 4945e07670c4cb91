package store

import (
	"fmt"
	"sync"
	"testing"

	"github.com/lazypower/ghostkg/internal/fsrs"
)

func TestSnapshotShape(t *testing.T) {
	s := testStore(t)
	at := wallAt(t, 0)

	if _, err := s.UpsertNode("alice", "coffee", fsrs.Good, at); err != nil {
		t.Fatalf("UpsertNode: %v", err)
	}
	if err := s.AddRelation("alice", "I", "likes", "coffee", 0.8, at); err != nil {
		t.Fatalf("AddRelation: %v", err)
	}

	g, err := s.Snapshot("alice", wallAt(t, 1), "", false)
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	if g.Owner != "alice" {
		t.Errorf("Owner = %q", g.Owner)
	}
	if len(g.Nodes) != 1 || g.Nodes[0].ID != "coffee" {
		t.Errorf("nodes = %+v", g.Nodes)
	}
	if g.Nodes[0].Retrievability <= 0 || g.Nodes[0].Retrievability > 1 {
		t.Errorf("retrievability = %v", g.Nodes[0].Retrievability)
	}
	if len(g.Edges) != 1 || g.Edges[0].Label != "likes" {
		t.Errorf("edges = %+v", g.Edges)
	}
}

func TestSnapshotCached(t *testing.T) {
	s := testStore(t)
	at := wallAt(t, 0)

	if _, err := s.UpsertNode("alice", "coffee", fsrs.Good, at); err != nil {
		t.Fatalf("UpsertNode: %v", err)
	}

	queryAt := wallAt(t, 1)
	first, err := s.Snapshot("alice", queryAt, "", false)
	if err != nil {
		t.Fatalf("first Snapshot: %v", err)
	}
	before := s.Cache().Stats()

	second, err := s.Snapshot("alice", queryAt, "", false)
	if err != nil {
		t.Fatalf("second Snapshot: %v", err)
	}
	after := s.Cache().Stats()

	if after.Hits != before.Hits+1 {
		t.Errorf("hits went %d -> %d, want a cache hit", before.Hits, after.Hits)
	}
	if second != first {
		t.Error("cached snapshot is not the same view")
	}

	// A different time key is a different view.
	if _, err := s.Snapshot("alice", wallAt(t, 2), "", false); err != nil {
		t.Fatalf("third Snapshot: %v", err)
	}
	if s.Cache().Stats().Misses <= after.Misses {
		t.Error("new time key should miss the cache")
	}
}

func TestSnapshotInvalidatedByWrite(t *testing.T) {
	s := testStore(t)
	at := wallAt(t, 0)
	queryAt := wallAt(t, 1)

	if _, err := s.UpsertNode("alice", "coffee", fsrs.Good, at); err != nil {
		t.Fatalf("UpsertNode: %v", err)
	}
	if _, err := s.Snapshot("alice", queryAt, "", false); err != nil {
		t.Fatalf("Snapshot: %v", err)
	}

	// Another review of the same concept changes memory state, so the
	// cached view at the same key must not survive.
	if _, err := s.UpsertNode("alice", "coffee", fsrs.Good, wallAt(t, 1)); err != nil {
		t.Fatalf("second UpsertNode: %v", err)
	}

	g, err := s.Snapshot("alice", queryAt, "", false)
	if err != nil {
		t.Fatalf("Snapshot after write: %v", err)
	}
	// Reviewed the same day it is queried: retrievability back at full.
	if g.Nodes[0].Retrievability < 0.99 {
		t.Errorf("retrievability = %v, want a fresh value, not the stale cached view",
			g.Nodes[0].Retrievability)
	}
}

func TestSnapshotNotStaleUnderConcurrentWrites(t *testing.T) {
	s := testStore(t)
	at := wallAt(t, 0)
	queryAt := wallAt(t, 1)

	if err := s.AddRelation("alice", "I", "likes", "coffee", 0.8, at); err != nil {
		t.Fatalf("AddRelation: %v", err)
	}

	// Readers build snapshots while a writer keeps adding edges. A view
	// computed against the pre-write graph must never be admitted to the
	// cache after the write's invalidation ran.
	done := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-done:
				return
			default:
			}
			if _, err := s.Snapshot("alice", queryAt, "", false); err != nil {
				t.Errorf("Snapshot: %v", err)
				return
			}
		}
	}()

	for i := 0; i < 50; i++ {
		target := fmt.Sprintf("concept-%d", i)
		if err := s.AddRelation("alice", "I", "knows", target, 0.1, at); err != nil {
			t.Fatalf("AddRelation %d: %v", i, err)
		}
	}
	close(done)
	wg.Wait()

	fresh, err := s.QueryFactsAsOf("alice", queryAt, "")
	if err != nil {
		t.Fatalf("QueryFactsAsOf: %v", err)
	}
	g, err := s.Snapshot("alice", queryAt, "", false)
	if err != nil {
		t.Fatalf("final Snapshot: %v", err)
	}
	if len(g.Edges) != len(fresh.Edges) {
		t.Errorf("snapshot has %d edges, store has %d, a stale view was served",
			len(g.Edges), len(fresh.Edges))
	}
}

func TestSnapshotPrunesOrphans(t *testing.T) {
	s := testStore(t)
	at := wallAt(t, 0)

	for _, concept := range []string{"I", "coffee", "island"} {
		if err := s.EnsureNode("alice", concept, at); err != nil {
			t.Fatalf("EnsureNode %s: %v", concept, err)
		}
	}
	if err := s.AddRelation("alice", "I", "likes", "coffee", 0.8, at); err != nil {
		t.Fatalf("AddRelation: %v", err)
	}

	g, err := s.Snapshot("alice", wallAt(t, 1), "", true)
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}

	ids := make(map[string]bool)
	for _, n := range g.Nodes {
		ids[n.ID] = true
	}
	if ids["island"] {
		t.Error("orphan node survived pruning")
	}
	if !ids["I"] {
		t.Error("self node must survive pruning")
	}
	if !ids["coffee"] {
		t.Error("referenced node must survive pruning")
	}
}
