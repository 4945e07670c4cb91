package store

import (
	"database/sql"
	"fmt"

	"github.com/lazypower/ghostkg/internal/simtime"
)

// rowQuerier is satisfied by both *sql.Tx and *sql.DB.
type rowQuerier interface {
	QueryRow(query string, args ...any) *sql.Row
}

// querier adds multi-row queries; also satisfied by *sql.Tx and *sql.DB.
type querier interface {
	rowQuerier
	Query(query string, args ...any) (*sql.Rows, error)
}

// ensureOwnerTx pins the owner to a clock mode on first write and rejects
// any later operation that arrives in the other mode. An owner's rows are
// either all wall-clock or all round-based; the two are never comparable.
func ensureOwnerTx(tx *sql.Tx, owner string, mode simtime.Mode) error {
	if _, err := tx.Exec(`
		INSERT INTO owners (owner_id, time_mode) VALUES (?, ?)
		ON CONFLICT(owner_id) DO NOTHING
	`, owner, string(mode)); err != nil {
		return storageErr("ensure owner", err)
	}

	existing, ok, err := ownerMode(tx, owner)
	if err != nil {
		return err
	}
	if !ok {
		return storageErr("ensure owner", fmt.Errorf("owner %q missing after insert", owner))
	}
	if existing != mode {
		return validationErrf("owner %q uses %s time, got %s time", owner, existing, mode)
	}
	return nil
}

// ownerMode reads an owner's pinned clock mode. ok is false when the owner
// has never been written.
func ownerMode(q rowQuerier, owner string) (simtime.Mode, bool, error) {
	var mode string
	err := q.QueryRow("SELECT time_mode FROM owners WHERE owner_id = ?", owner).Scan(&mode)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, storageErr("owner mode", err)
	}
	return simtime.Mode(mode), true, nil
}

// Owners lists every owner known to the store.
func (s *Store) Owners() ([]string, error) {
	rows, err := s.db.Query("SELECT owner_id FROM owners ORDER BY owner_id")
	if err != nil {
		return nil, storageErr("list owners", err)
	}
	defer rows.Close()

	var owners []string
	for rows.Next() {
		var o string
		if err := rows.Scan(&o); err != nil {
			return nil, storageErr("scan owner", err)
		}
		owners = append(owners, o)
	}
	return owners, rows.Err()
}
