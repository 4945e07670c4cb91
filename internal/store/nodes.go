package store

import (
	"database/sql"

	"github.com/lazypower/ghostkg/internal/fsrs"
	"github.com/lazypower/ghostkg/internal/simtime"
)

// Node is one concept in an owner's graph together with its memory state.
type Node struct {
	Owner     string
	Concept   string
	Memory    fsrs.Memory
	CreatedAt simtime.Time
}

// UpsertNode applies one review to (owner, concept) at the given time and
// returns the resulting memory state. A concept seen for the first time is
// created with created_at = at and reviewed from a blank state. The
// read-modify-write runs under the owner's lock inside one transaction, so
// N concurrent reviews apply the memory model exactly N times.
func (s *Store) UpsertNode(owner, concept string, r fsrs.Rating, at simtime.Time) (fsrs.Memory, error) {
	if owner == "" {
		return fsrs.Memory{}, validationErrf("owner_id is required")
	}
	if concept == "" {
		return fsrs.Memory{}, validationErrf("concept_id is required")
	}
	if at.IsZero() {
		return fsrs.Memory{}, validationErrf("timestamp is required")
	}

	lock := s.ownerLock(owner)
	lock.Lock()
	defer lock.Unlock()
	// Registered after the lock: invalidation happens before the lock is
	// released, on success and on failure alike. A partially failed write
	// must never leave stale views behind.
	defer s.invalidate(owner)

	tx, err := s.db.Begin()
	if err != nil {
		return fsrs.Memory{}, storageErr("begin upsert", err)
	}
	defer tx.Rollback()

	if err := ensureOwnerTx(tx, owner, at.Mode()); err != nil {
		return fsrs.Memory{}, err
	}

	current, exists, err := nodeMemoryTx(tx, owner, concept, at.Mode())
	if err != nil {
		return fsrs.Memory{}, err
	}

	next, err := s.sched.Review(current, r, at)
	if err != nil {
		return fsrs.Memory{}, err
	}

	if exists {
		_, err = tx.Exec(`
			UPDATE nodes SET stability = ?, difficulty = ?, last_review_key = ?,
				reps = ?, review_state = ?
			WHERE owner_id = ? AND concept_id = ?
		`, next.Stability, next.Difficulty, next.LastReview.Key(),
			next.Reps, int(next.State), owner, concept)
	} else {
		_, err = tx.Exec(`
			INSERT INTO nodes (owner_id, concept_id, stability, difficulty,
				last_review_key, reps, review_state, created_key)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		`, owner, concept, next.Stability, next.Difficulty,
			next.LastReview.Key(), next.Reps, int(next.State), at.Key())
	}
	if err != nil {
		return fsrs.Memory{}, storageErr("upsert node", err)
	}

	if err := tx.Commit(); err != nil {
		return fsrs.Memory{}, storageErr("commit upsert", err)
	}
	return next, nil
}

// EnsureNode creates a bare, never-reviewed node if it does not exist.
// Used for the owner's self node; a later review starts from the blank
// state as usual.
func (s *Store) EnsureNode(owner, concept string, at simtime.Time) error {
	if owner == "" {
		return validationErrf("owner_id is required")
	}
	if concept == "" {
		return validationErrf("concept_id is required")
	}
	if at.IsZero() {
		return validationErrf("timestamp is required")
	}

	lock := s.ownerLock(owner)
	lock.Lock()
	defer lock.Unlock()
	defer s.invalidate(owner)

	tx, err := s.db.Begin()
	if err != nil {
		return storageErr("begin ensure node", err)
	}
	defer tx.Rollback()

	if err := ensureOwnerTx(tx, owner, at.Mode()); err != nil {
		return err
	}

	if _, err := tx.Exec(`
		INSERT INTO nodes (owner_id, concept_id, created_key)
		VALUES (?, ?, ?)
		ON CONFLICT(owner_id, concept_id) DO NOTHING
	`, owner, concept, at.Key()); err != nil {
		return storageErr("ensure node", err)
	}

	if err := tx.Commit(); err != nil {
		return storageErr("commit ensure node", err)
	}
	return nil
}

// GetNode returns a node, or nil if the owner or concept is unknown.
// Absence is a normal state, not an error.
func (s *Store) GetNode(owner, concept string) (*Node, error) {
	mode, ok, err := ownerMode(s.db.DB, owner)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}

	var (
		stability, difficulty float64
		lastReviewKey         sql.NullInt64
		reps, state           int
		createdKey            int64
	)
	err = s.db.QueryRow(`
		SELECT stability, difficulty, last_review_key, reps, review_state, created_key
		FROM nodes WHERE owner_id = ? AND concept_id = ?
	`, owner, concept).Scan(&stability, &difficulty, &lastReviewKey, &reps, &state, &createdKey)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, storageErr("get node", err)
	}

	return &Node{
		Owner:     owner,
		Concept:   concept,
		Memory:    memoryFrom(stability, difficulty, lastReviewKey, reps, state, mode),
		CreatedAt: simtime.FromKey(mode, createdKey),
	}, nil
}

// nodeMemoryTx reads the current memory state of (owner, concept) inside a
// transaction. exists is false for a concept never seen before.
func nodeMemoryTx(tx *sql.Tx, owner, concept string, mode simtime.Mode) (mem fsrs.Memory, exists bool, err error) {
	var (
		stability, difficulty float64
		lastReviewKey         sql.NullInt64
		reps, state           int
	)
	err = tx.QueryRow(`
		SELECT stability, difficulty, last_review_key, reps, review_state
		FROM nodes WHERE owner_id = ? AND concept_id = ?
	`, owner, concept).Scan(&stability, &difficulty, &lastReviewKey, &reps, &state)
	if err == sql.ErrNoRows {
		return fsrs.Memory{}, false, nil
	}
	if err != nil {
		return fsrs.Memory{}, false, storageErr("read node state", err)
	}
	return memoryFrom(stability, difficulty, lastReviewKey, reps, state, mode), true, nil
}

func memoryFrom(stability, difficulty float64, lastReviewKey sql.NullInt64, reps, state int, mode simtime.Mode) fsrs.Memory {
	m := fsrs.Memory{
		Stability:  stability,
		Difficulty: difficulty,
		Reps:       reps,
		State:      fsrs.State(state),
	}
	if lastReviewKey.Valid {
		t := simtime.FromKey(mode, lastReviewKey.Int64)
		m.LastReview = &t
	}
	return m
}
