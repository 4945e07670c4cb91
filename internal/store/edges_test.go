package store

import (
	"errors"
	"testing"

	"github.com/lazypower/ghostkg/internal/fsrs"
)

func TestAddRelationClampsSentiment(t *testing.T) {
	s := testStore(t)
	at := wallAt(t, 0)

	cases := []struct {
		in, want float64
	}{
		{1.7, 1.0},
		{-2.3, -1.0},
		{0.35, 0.35},
		{0, 0},
	}
	for i, tc := range cases {
		if err := s.AddRelation("alice", "I", "rates", "coffee", tc.in, at); err != nil {
			t.Fatalf("AddRelation(%v): %v", tc.in, err)
		}
		view, err := s.QueryFactsAsOf("alice", at, "")
		if err != nil {
			t.Fatalf("QueryFactsAsOf: %v", err)
		}
		if len(view.Edges) != i+1 {
			t.Fatalf("got %d edges, want %d", len(view.Edges), i+1)
		}
		// Newest first; ties broken by insertion order, so the latest
		// insert at the same key sorts last within the tie group.
		got := view.Edges[i].Sentiment
		if got != tc.want {
			t.Errorf("sentiment %v stored as %v, want %v", tc.in, got, tc.want)
		}
	}
}

func TestAddRelationDuplicatesAllowed(t *testing.T) {
	s := testStore(t)

	for day := 0; day < 3; day++ {
		if err := s.AddRelation("alice", "I", "likes", "coffee", 0.5, wallAt(t, day)); err != nil {
			t.Fatalf("AddRelation day %d: %v", day, err)
		}
	}

	view, err := s.QueryFactsAsOf("alice", wallAt(t, 10), "")
	if err != nil {
		t.Fatalf("QueryFactsAsOf: %v", err)
	}
	if len(view.Edges) != 3 {
		t.Errorf("got %d edges, want 3 (duplicates kept)", len(view.Edges))
	}
}

func TestAddRelationDoesNotTouchMemory(t *testing.T) {
	s := testStore(t)

	mem, err := s.UpsertNode("alice", "coffee", fsrs.Good, wallAt(t, 0))
	if err != nil {
		t.Fatalf("UpsertNode: %v", err)
	}
	if err := s.AddRelation("alice", "I", "likes", "coffee", 0.5, wallAt(t, 1)); err != nil {
		t.Fatalf("AddRelation: %v", err)
	}

	n, err := s.GetNode("alice", "coffee")
	if err != nil {
		t.Fatalf("GetNode: %v", err)
	}
	if n.Memory.Reps != mem.Reps || n.Memory.Stability != mem.Stability {
		t.Errorf("relation changed memory state: %+v vs %+v", n.Memory, mem)
	}
}

func TestAddRelationValidation(t *testing.T) {
	s := testStore(t)
	at := wallAt(t, 0)

	for _, tc := range []struct {
		name                     string
		source, relation, target string
	}{
		{"empty source", "", "likes", "coffee"},
		{"empty relation", "I", "", "coffee"},
		{"empty target", "I", "likes", ""},
	} {
		err := s.AddRelation("alice", tc.source, tc.relation, tc.target, 0, at)
		if !errors.Is(err, ErrValidation) {
			t.Errorf("%s: err = %v, want ErrValidation", tc.name, err)
		}
	}
}
