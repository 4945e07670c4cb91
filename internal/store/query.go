package store

import (
	"database/sql"
	"strings"

	"github.com/lazypower/ghostkg/internal/fsrs"
	"github.com/lazypower/ghostkg/internal/simtime"
)

// NodeFact is a concept as seen at a point in time, annotated with the
// retrievability of its memory at that moment.
type NodeFact struct {
	Concept        string       `json:"concept"`
	Stability      float64      `json:"stability"`
	Difficulty     float64      `json:"difficulty"`
	Retrievability float64      `json:"retrievability"`
	Reps           int          `json:"reps"`
	State          string       `json:"state"`
	CreatedAt      simtime.Time `json:"-"`
	LastReview     *simtime.Time `json:"-"`
}

// EdgeFact is a relation as seen at a point in time.
type EdgeFact struct {
	Source    string       `json:"source"`
	Relation  string       `json:"relation"`
	Target    string       `json:"target"`
	Sentiment float64      `json:"sentiment"`
	CreatedAt simtime.Time `json:"-"`
}

// FactsView is everything one owner knew as of a point in time,
// optionally narrowed to a topic.
type FactsView struct {
	Owner string     `json:"owner_id"`
	At    int64      `json:"as_of"`
	Nodes []NodeFact `json:"nodes"`
	Edges []EdgeFact `json:"edges"`
}

// QueryFactsAsOf returns the owner's facts created at or before the given
// time, newest first, each node annotated with its retrievability at that
// time. An empty topic returns everything; otherwise edges whose source or
// target contains the topic (case-insensitive) are kept, together with the
// nodes those edges reference. Unknown owners get an empty view.
//
// Both scans run in one transaction so the view is a consistent snapshot
// even while another goroutine is writing.
func (s *Store) QueryFactsAsOf(owner string, at simtime.Time, topic string) (*FactsView, error) {
	if owner == "" {
		return nil, validationErrf("owner_id is required")
	}
	if at.IsZero() {
		return nil, validationErrf("timestamp is required")
	}

	view := &FactsView{
		Owner: owner,
		At:    at.Key(),
		Nodes: []NodeFact{},
		Edges: []EdgeFact{},
	}

	tx, err := s.db.Begin()
	if err != nil {
		return nil, storageErr("begin query", err)
	}
	defer tx.Rollback()

	mode, ok, err := ownerMode(tx, owner)
	if err != nil {
		return nil, err
	}
	if !ok {
		return view, nil
	}
	if mode != at.Mode() {
		return nil, validationErrf("owner %q uses %s time, got %s time", owner, mode, at.Mode())
	}

	nodes, err := nodesAsOfTx(tx, owner, at, mode)
	if err != nil {
		return nil, err
	}
	edges, err := edgesAsOfTx(tx, owner, at, mode)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, storageErr("commit query", err)
	}

	if topic != "" {
		nodes, edges = filterTopic(nodes, edges, topic)
	}

	for i := range nodes {
		nodes[i].Retrievability = s.sched.Retrievability(nodes[i].Stability, nodes[i].LastReview, at)
	}

	view.Nodes = nodes
	view.Edges = edges
	return view, nil
}

func nodesAsOfTx(tx *sql.Tx, owner string, at simtime.Time, mode simtime.Mode) ([]NodeFact, error) {
	rows, err := tx.Query(`
		SELECT concept_id, stability, difficulty, last_review_key, reps, review_state, created_key
		FROM nodes
		WHERE owner_id = ? AND created_key <= ?
		ORDER BY created_key DESC, rowid ASC
	`, owner, at.Key())
	if err != nil {
		return nil, storageErr("query nodes", err)
	}
	defer rows.Close()

	var out []NodeFact
	for rows.Next() {
		var (
			n             NodeFact
			lastReviewKey sql.NullInt64
			state         int
			createdKey    int64
		)
		if err := rows.Scan(&n.Concept, &n.Stability, &n.Difficulty,
			&lastReviewKey, &n.Reps, &state, &createdKey); err != nil {
			return nil, storageErr("scan node", err)
		}
		n.State = fsrs.State(state).String()
		n.CreatedAt = simtime.FromKey(mode, createdKey)
		if lastReviewKey.Valid {
			t := simtime.FromKey(mode, lastReviewKey.Int64)
			n.LastReview = &t
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

func edgesAsOfTx(tx *sql.Tx, owner string, at simtime.Time, mode simtime.Mode) ([]EdgeFact, error) {
	rows, err := tx.Query(`
		SELECT source, relation, target, sentiment, created_key
		FROM edges
		WHERE owner_id = ? AND created_key <= ?
		ORDER BY created_key DESC, id ASC
	`, owner, at.Key())
	if err != nil {
		return nil, storageErr("query edges", err)
	}
	defer rows.Close()

	var out []EdgeFact
	for rows.Next() {
		var (
			e          EdgeFact
			createdKey int64
		)
		if err := rows.Scan(&e.Source, &e.Relation, &e.Target, &e.Sentiment, &createdKey); err != nil {
			return nil, storageErr("scan edge", err)
		}
		e.CreatedAt = simtime.FromKey(mode, createdKey)
		out = append(out, e)
	}
	return out, rows.Err()
}

// filterTopic keeps edges touching the topic and the nodes those edges
// reference. A node also survives on its own name matching.
func filterTopic(nodes []NodeFact, edges []EdgeFact, topic string) ([]NodeFact, []EdgeFact) {
	needle := strings.ToLower(topic)
	keepConcepts := make(map[string]bool)

	kept := edges[:0]
	for _, e := range edges {
		if strings.Contains(strings.ToLower(e.Source), needle) ||
			strings.Contains(strings.ToLower(e.Target), needle) {
			kept = append(kept, e)
			keepConcepts[e.Source] = true
			keepConcepts[e.Target] = true
		}
	}

	keptNodes := nodes[:0]
	for _, n := range nodes {
		if keepConcepts[n.Concept] || strings.Contains(strings.ToLower(n.Concept), needle) {
			keptNodes = append(keptNodes, n)
		}
	}
	return keptNodes, kept
}

// StanceEdges returns the owner's own recent positions: edges from the
// self node whose target mentions the topic, or that were laid down in
// the sixty simulated minutes before the query time. Newest first,
// at most eight.
func (s *Store) StanceEdges(owner, topic string, at simtime.Time) ([]EdgeFact, error) {
	return s.selfEdges(owner, topic, at, true, 8)
}

// WorldEdges returns what the owner has heard from others: edges whose
// source is not the self node, filtered by topic, newest first.
func (s *Store) WorldEdges(owner, topic string, at simtime.Time, limit int) ([]EdgeFact, error) {
	return s.selfEdges(owner, topic, at, false, limit)
}

func (s *Store) selfEdges(owner, topic string, at simtime.Time, fromSelf bool, limit int) ([]EdgeFact, error) {
	if owner == "" {
		return nil, validationErrf("owner_id is required")
	}
	if at.IsZero() {
		return nil, validationErrf("timestamp is required")
	}

	mode, ok, err := ownerMode(s.db, owner)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	if mode != at.Mode() {
		return nil, validationErrf("owner %q uses %s time, got %s time", owner, mode, at.Mode())
	}

	return edgeRows(s.db, owner, topic, at, mode, fromSelf, limit)
}

// edgeRows runs the stance or world-knowledge edge query on any querier,
// so a caller composing several reads can run them all inside one
// transaction.
func edgeRows(q querier, owner, topic string, at simtime.Time, mode simtime.Mode, fromSelf bool, limit int) ([]EdgeFact, error) {
	var (
		query string
		args  []any
	)
	if fromSelf {
		// An hour of simulated time: keys are milliseconds in wall mode
		// and whole hours in round mode.
		recentKey := at.Key() - 3600000
		if mode == simtime.ModeRound {
			recentKey = at.Key() - 1
		}
		query = `
			SELECT source, relation, target, sentiment, created_key
			FROM edges
			WHERE owner_id = ? AND source = ? AND created_key <= ?
			  AND (target LIKE ? OR created_key >= ?)
			ORDER BY created_key DESC, id DESC
			LIMIT ?
		`
		args = []any{owner, SelfID, at.Key(), "%" + topic + "%", recentKey, limit}
	} else {
		query = `
			SELECT source, relation, target, sentiment, created_key
			FROM edges
			WHERE owner_id = ? AND source != ? AND created_key <= ?
			  AND (source LIKE ? OR target LIKE ?)
			ORDER BY created_key DESC, id DESC
			LIMIT ?
		`
		like := "%" + topic + "%"
		args = []any{owner, SelfID, at.Key(), like, like, limit}
	}

	rows, err := q.Query(query, args...)
	if err != nil {
		return nil, storageErr("query edges", err)
	}
	defer rows.Close()

	var out []EdgeFact
	for rows.Next() {
		var (
			e          EdgeFact
			createdKey int64
		)
		if err := rows.Scan(&e.Source, &e.Relation, &e.Target, &e.Sentiment, &createdKey); err != nil {
			return nil, storageErr("scan edge", err)
		}
		e.CreatedAt = simtime.FromKey(mode, createdKey)
		out = append(out, e)
	}
	return out, rows.Err()
}

// TopicView bundles everything one context composition needs about a
// topic: the topic concept's memory state (nil when the owner has never
// seen it), the owner's own stance edges, and what others have said.
type TopicView struct {
	Memory *fsrs.Memory
	Stance []EdgeFact
	World  []EdgeFact
}

// QueryTopicView reads the topic node's memory, the owner's stance edges,
// and world-knowledge edges in a single transaction, so a concurrent
// write cannot land between the reads and produce a view that mixes
// pre-write and post-write state. Unknown owners get an empty view.
func (s *Store) QueryTopicView(owner, topic string, at simtime.Time, worldLimit int) (*TopicView, error) {
	if owner == "" {
		return nil, validationErrf("owner_id is required")
	}
	if topic == "" {
		return nil, validationErrf("topic is required")
	}
	if at.IsZero() {
		return nil, validationErrf("timestamp is required")
	}

	tx, err := s.db.Begin()
	if err != nil {
		return nil, storageErr("begin topic view", err)
	}
	defer tx.Rollback()

	mode, ok, err := ownerMode(tx, owner)
	if err != nil {
		return nil, err
	}
	if !ok {
		return &TopicView{}, nil
	}
	if mode != at.Mode() {
		return nil, validationErrf("owner %q uses %s time, got %s time", owner, mode, at.Mode())
	}

	view := &TopicView{}
	mem, exists, err := nodeMemoryTx(tx, owner, topic, mode)
	if err != nil {
		return nil, err
	}
	if exists {
		view.Memory = &mem
	}

	if view.Stance, err = edgeRows(tx, owner, topic, at, mode, true, 8); err != nil {
		return nil, err
	}
	if view.World, err = edgeRows(tx, owner, topic, at, mode, false, worldLimit); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, storageErr("commit topic view", err)
	}
	return view, nil
}

// ClearOwner deletes every row belonging to one owner and drops the
// owner's cached views. Other owners are untouched.
func (s *Store) ClearOwner(owner string) error {
	if owner == "" {
		return validationErrf("owner_id is required")
	}

	lock := s.ownerLock(owner)
	lock.Lock()
	defer lock.Unlock()
	defer s.invalidate(owner)

	tx, err := s.db.Begin()
	if err != nil {
		return storageErr("begin clear owner", err)
	}
	defer tx.Rollback()

	for _, table := range []string{"nodes", "edges", "logs", "owners"} {
		if _, err := tx.Exec("DELETE FROM "+table+" WHERE owner_id = ?", owner); err != nil {
			return storageErr("clear "+table, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return storageErr("commit clear owner", err)
	}
	return nil
}

// Counts summarizes the store for status endpoints.
type Counts struct {
	Owners int `json:"owners"`
	Nodes  int `json:"nodes"`
	Edges  int `json:"edges"`
	Logs   int `json:"logs"`
}

// Stats counts rows across all owners.
func (s *Store) Stats() (Counts, error) {
	var c Counts
	for _, q := range []struct {
		table string
		dst   *int
	}{
		{"owners", &c.Owners},
		{"nodes", &c.Nodes},
		{"edges", &c.Edges},
		{"logs", &c.Logs},
	} {
		if err := s.db.QueryRow("SELECT COUNT(*) FROM " + q.table).Scan(q.dst); err != nil {
			return Counts{}, storageErr("count "+q.table, err)
		}
	}
	return c, nil
}
