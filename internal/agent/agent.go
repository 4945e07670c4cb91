// Package agent wraps the store behind a per-persona facade. An Agent
// carries its own simulation clock and normalizes free-form terms into
// graph identifiers before anything touches storage.
package agent

import (
	"errors"
	"fmt"
	"log"
	"regexp"
	"strings"
	"sync"

	"github.com/lazypower/ghostkg/internal/fsrs"
	"github.com/lazypower/ghostkg/internal/simtime"
	"github.com/lazypower/ghostkg/internal/store"
)

// ErrRejectedTriple marks a triple the semantic gate filtered out:
// stopwords, grammatical meta-terms, generic placeholder nodes, or terms
// too short to mean anything.
var ErrRejectedTriple = errors.New("rejected triple")

var nonAlnum = regexp.MustCompile(`[^a-z0-9\s]`)

var stopwords = map[string]bool{
	"it": true, "is": true, "the": true, "a": true,
	"an": true, "this": true, "that": true,
}

// Grammatical and meta terms that show up when an extractor labels
// structure instead of meaning.
var bannedRelations = map[string]bool{
	"noun": true, "verb": true, "adjective": true, "adverb": true,
	"preposition": true, "conjunction": true, "pronoun": true,
	"phrase": true, "clause": true, "sentence": true, "statement": true,
	"text": true, "topic": true, "concept": true, "word": true,
	"term": true, "rating": true, "evaluation": true, "opinion": true,
}

var bannedNodes = map[string]bool{
	"text": true, "entity": true, "author": true, "none": true,
	"unknown": true, "wikipedia": true, "general knowledge": true,
	"source": true, "target": true, "adjective": true, "noun": true,
}

// Agent is one persona's view onto the shared store. All of its reads and
// writes happen at the agent's current simulation time, under its own name.
type Agent struct {
	name  string
	store *store.Store

	mu  sync.Mutex
	now simtime.Time
}

// New creates an agent. The clock starts unset; callers must SetTime
// before learning or querying.
func New(name string, s *store.Store) *Agent {
	return &Agent{name: name, store: s}
}

// Name returns the agent's owner identifier.
func (a *Agent) Name() string { return a.name }

// SetTime moves the agent's simulation clock. Wall and round times are
// both accepted here; the store pins the agent to whichever mode its
// first write uses.
func (a *Agent) SetTime(t simtime.Time) {
	a.mu.Lock()
	a.now = t
	a.mu.Unlock()
}

// Now returns the agent's current simulation time.
func (a *Agent) Now() simtime.Time {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.now
}

// normalize folds a free-form term into a graph identifier: lowercase,
// punctuation stripped, self-references ("me", "myself", the agent's own
// name) folded to the self node.
func (a *Agent) normalize(text string) string {
	clean := strings.ToLower(strings.TrimSpace(text))
	clean = nonAlnum.ReplaceAllString(clean, "")
	clean = strings.TrimSpace(clean)

	switch clean {
	case "i", "me", "myself", strings.ToLower(a.name):
		return store.SelfID
	}
	return clean
}

func validTriple(src, rel, tgt string) bool {
	if src == "" || rel == "" || tgt == "" {
		return false
	}
	if len(src) < 2 && src != store.SelfID {
		return false
	}
	if len(tgt) < 2 && tgt != store.SelfID {
		return false
	}
	if stopwords[src] || stopwords[tgt] {
		return false
	}
	if bannedNodes[src] || bannedNodes[tgt] {
		return false
	}
	return !bannedRelations[rel]
}

// Learn records one fact: the triple is normalized and gated, the target
// concept (and the source, when it is another entity) gets a memory
// review, the relation is appended, and the interaction is logged.
func (a *Agent) Learn(source, relation, target string, r fsrs.Rating, sentiment float64) error {
	now := a.Now()
	src := a.normalize(source)
	rel := a.normalize(relation)
	tgt := a.normalize(target)

	if !validTriple(src, rel, tgt) {
		log.Printf("learn: rejecting triple %q %q %q for %s", src, rel, tgt, a.name)
		return fmt.Errorf("%w: %q %q %q", ErrRejectedTriple, src, rel, tgt)
	}

	if _, err := a.store.UpsertNode(a.name, tgt, r, now); err != nil {
		return err
	}
	if src != store.SelfID {
		// Hearing about an entity refreshes the memory of it.
		if _, err := a.store.UpsertNode(a.name, src, fsrs.Good, now); err != nil {
			return err
		}
	} else if err := a.store.EnsureNode(a.name, src, now); err != nil {
		return err
	}

	if err := a.store.AddRelation(a.name, src, rel, tgt, sentiment, now); err != nil {
		return err
	}

	content := fmt.Sprintf("%s %s %s", src, rel, tgt)
	if _, err := a.store.LogInteraction(a.name, "learn", now, content, map[string]any{
		"sentiment": sentiment,
		"rating":    int(r),
	}); err != nil {
		return err
	}
	return nil
}

// Review applies one memory review to a concept without adding facts.
func (a *Agent) Review(concept string, r fsrs.Rating) error {
	name := a.normalize(concept)
	if name == "" {
		return fmt.Errorf("%w: empty concept", ErrRejectedTriple)
	}
	_, err := a.store.UpsertNode(a.name, name, r, a.Now())
	return err
}

// Snapshot builds the agent's graph view at its current clock.
func (a *Agent) Snapshot(topic string, prune bool) (*store.Graph, error) {
	return a.store.Snapshot(a.name, a.Now(), a.normalize(topic), prune)
}
