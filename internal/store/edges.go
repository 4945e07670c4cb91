package store

import (
	"github.com/lazypower/ghostkg/internal/simtime"
)

// AddRelation appends a relation fact. Relations are multiset facts:
// duplicates are allowed and never an error. Sentiment is clamped into
// [-1.0, 1.0] before storage, never rejected. Node memory state is not
// touched; callers review the concepts a fact implies separately.
func (s *Store) AddRelation(owner, source, relation, target string, sentiment float64, at simtime.Time) error {
	if owner == "" {
		return validationErrf("owner_id is required")
	}
	if source == "" || relation == "" || target == "" {
		return validationErrf("source, relation, and target are required")
	}
	if at.IsZero() {
		return validationErrf("timestamp is required")
	}

	sentiment = clampSentiment(sentiment)

	lock := s.ownerLock(owner)
	lock.Lock()
	defer lock.Unlock()
	defer s.invalidate(owner)

	tx, err := s.db.Begin()
	if err != nil {
		return storageErr("begin add relation", err)
	}
	defer tx.Rollback()

	if err := ensureOwnerTx(tx, owner, at.Mode()); err != nil {
		return err
	}

	if _, err := tx.Exec(`
		INSERT INTO edges (owner_id, source, relation, target, sentiment, created_key)
		VALUES (?, ?, ?, ?, ?, ?)
	`, owner, source, relation, target, sentiment, at.Key()); err != nil {
		return storageErr("add relation", err)
	}

	if err := tx.Commit(); err != nil {
		return storageErr("commit add relation", err)
	}
	return nil
}

func clampSentiment(v float64) float64 {
	if v > 1.0 {
		return 1.0
	}
	if v < -1.0 {
		return -1.0
	}
	return v
}
