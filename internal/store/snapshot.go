package store

import (
	"github.com/lazypower/ghostkg/internal/simtime"
)

// GraphNode is a concept in a visualization-ready graph view.
type GraphNode struct {
	ID             string  `json:"id"`
	Retrievability float64 `json:"retrievability"`
	Stability      float64 `json:"stability"`
}

// GraphEdge is a labeled connection in a graph view.
type GraphEdge struct {
	Source string `json:"source"`
	Target string `json:"target"`
	Label  string `json:"label"`
}

// Graph is a flattened, point-in-time view of one owner's knowledge,
// shaped for rendering rather than for querying.
type Graph struct {
	Owner string      `json:"owner_id"`
	At    int64       `json:"as_of"`
	Nodes []GraphNode `json:"nodes"`
	Edges []GraphEdge `json:"edges"`
}

// Snapshot builds a graph view of the owner's knowledge as of a point in
// time. Results are served from the view cache when an identical snapshot
// (same owner, topic, time, and pruning choice) was built since the
// owner's last write. Callers must treat the returned graph as read-only.
func (s *Store) Snapshot(owner string, at simtime.Time, topic string, pruneOrphans bool) (*Graph, error) {
	if owner == "" {
		return nil, validationErrf("owner_id is required")
	}
	if at.IsZero() {
		return nil, validationErrf("timestamp is required")
	}

	// The epoch is sampled before the view is computed; a write landing
	// during the computation advances it and the put below is dropped.
	var epoch uint64
	if s.cache != nil {
		if v, ok := s.cache.GetView(owner, topic, at.Key(), pruneOrphans); ok {
			if g, ok := v.(*Graph); ok {
				return g, nil
			}
		}
		epoch = s.cache.Epoch(owner)
	}

	view, err := s.QueryFactsAsOf(owner, at, topic)
	if err != nil {
		return nil, err
	}

	g := &Graph{
		Owner: owner,
		At:    at.Key(),
		Nodes: make([]GraphNode, 0, len(view.Nodes)),
		Edges: make([]GraphEdge, 0, len(view.Edges)),
	}
	for _, n := range view.Nodes {
		g.Nodes = append(g.Nodes, GraphNode{
			ID:             n.Concept,
			Retrievability: n.Retrievability,
			Stability:      n.Stability,
		})
	}
	for _, e := range view.Edges {
		g.Edges = append(g.Edges, GraphEdge{
			Source: e.Source,
			Target: e.Target,
			Label:  e.Relation,
		})
	}

	if pruneOrphans {
		g.PruneOrphans()
	}

	if s.cache != nil {
		s.cache.PutView(owner, epoch, g, topic, at.Key(), pruneOrphans)
	}
	return g, nil
}

// PruneOrphans drops nodes no edge references. The self node always
// survives: an agent that knows nothing still knows itself.
func (g *Graph) PruneOrphans() {
	referenced := make(map[string]bool, len(g.Edges)*2)
	for _, e := range g.Edges {
		referenced[e.Source] = true
		referenced[e.Target] = true
	}

	kept := g.Nodes[:0]
	for _, n := range g.Nodes {
		if n.ID == SelfID || referenced[n.ID] {
			kept = append(kept, n)
		}
	}
	g.Nodes = kept
}
