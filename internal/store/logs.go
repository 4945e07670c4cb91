package store

import (
	"database/sql"
	"encoding/json"

	"github.com/google/uuid"

	"github.com/lazypower/ghostkg/internal/simtime"
)

// LogEntry is one recorded interaction in an owner's history.
type LogEntry struct {
	ID          int64
	Owner       string
	Kind        string
	Content     string
	ContentUUID string
	Annotations map[string]any
	At          simtime.Time
}

// LogInteraction records an interaction event. When content storage is
// disabled the raw text is replaced by a fresh UUID so the event remains
// traceable without persisting what was said. The stored reference
// (content or UUID) is returned.
func (s *Store) LogInteraction(owner, kind string, at simtime.Time, content string, annotations map[string]any) (string, error) {
	if owner == "" {
		return "", validationErrf("owner_id is required")
	}
	if kind == "" {
		return "", validationErrf("interaction kind is required")
	}
	if at.IsZero() {
		return "", validationErrf("timestamp is required")
	}

	stored := content
	contentUUID := ""
	if !s.opts.StoreLogContent {
		contentUUID = uuid.NewString()
		stored = contentUUID
	}

	var annJSON []byte
	if len(annotations) > 0 {
		var err error
		annJSON, err = json.Marshal(annotations)
		if err != nil {
			return "", validationErrf("annotations not serializable: %v", err)
		}
	}

	lock := s.ownerLock(owner)
	lock.Lock()
	defer lock.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return "", storageErr("begin log interaction", err)
	}
	defer tx.Rollback()

	if err := ensureOwnerTx(tx, owner, at.Mode()); err != nil {
		return "", err
	}

	if _, err := tx.Exec(`
		INSERT INTO logs (owner_id, kind, content, content_uuid, annotations, ts_key)
		VALUES (?, ?, ?, ?, ?, ?)
	`, owner, kind, stored, contentUUID, nullableString(annJSON), at.Key()); err != nil {
		return "", storageErr("log interaction", err)
	}

	if err := tx.Commit(); err != nil {
		return "", storageErr("commit log interaction", err)
	}
	return stored, nil
}

// GetLogs returns an owner's most recent interactions, newest first.
// limit <= 0 means no limit.
func (s *Store) GetLogs(owner string, limit int) ([]LogEntry, error) {
	if owner == "" {
		return nil, validationErrf("owner_id is required")
	}

	mode, ok, err := ownerMode(s.db, owner)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}

	query := `
		SELECT id, kind, content, content_uuid, annotations, ts_key
		FROM logs
		WHERE owner_id = ?
		ORDER BY ts_key DESC, id DESC
	`
	args := []any{owner}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, storageErr("get logs", err)
	}
	defer rows.Close()

	var out []LogEntry
	for rows.Next() {
		var e LogEntry
		var ann sql.NullString
		var key int64
		if err := rows.Scan(&e.ID, &e.Kind, &e.Content, &e.ContentUUID, &ann, &key); err != nil {
			return nil, storageErr("scan log", err)
		}
		e.Owner = owner
		e.At = simtime.FromKey(mode, key)
		if ann.Valid && ann.String != "" {
			if err := json.Unmarshal([]byte(ann.String), &e.Annotations); err != nil {
				return nil, storageErr("decode log annotations", err)
			}
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("iterate logs", err)
	}
	return out, nil
}

func nullableString(b []byte) any {
	if len(b) == 0 {
		return nil
	}
	return string(b)
}
