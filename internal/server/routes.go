package server

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/lazypower/ghostkg/internal/agent"
	"github.com/lazypower/ghostkg/internal/fsrs"
	"github.com/lazypower/ghostkg/internal/simtime"
	"github.com/lazypower/ghostkg/internal/store"
)

func (s *Server) handleSetTime(w http.ResponseWriter, r *http.Request) {
	owner := chi.URLParam(r, "owner")

	var req struct {
		Timestamp string `json:"timestamp"`
		Day       *int   `json:"day"`
		Hour      *int   `json:"hour"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"invalid json"}`, http.StatusBadRequest)
		return
	}

	var (
		at  simtime.Time
		err error
	)
	switch {
	case req.Timestamp != "":
		var t time.Time
		t, err = time.Parse(time.RFC3339, req.Timestamp)
		if err != nil {
			http.Error(w, `{"error":"timestamp must be RFC 3339"}`, http.StatusBadRequest)
			return
		}
		at = simtime.FromWall(t)
	case req.Day != nil && req.Hour != nil:
		at, err = simtime.FromRound(*req.Day, *req.Hour)
		if err != nil {
			http.Error(w, `{"error":"`+err.Error()+`"}`, http.StatusBadRequest)
			return
		}
	default:
		http.Error(w, `{"error":"timestamp or day+hour required"}`, http.StatusBadRequest)
		return
	}

	s.manager.Get(owner).SetTime(at)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"status": "ok",
		"mode":   string(at.Mode()),
		"key":    at.Key(),
	})
}

func (s *Server) handleLearn(w http.ResponseWriter, r *http.Request) {
	owner := chi.URLParam(r, "owner")

	var req struct {
		Source    string  `json:"source"`
		Relation  string  `json:"relation"`
		Target    string  `json:"target"`
		Rating    int     `json:"rating"`
		Sentiment float64 `json:"sentiment"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"invalid json"}`, http.StatusBadRequest)
		return
	}
	if req.Rating == 0 {
		req.Rating = int(fsrs.Good)
	}

	a := s.manager.Get(owner)
	if a.Now().IsZero() {
		http.Error(w, `{"error":"agent clock not set"}`, http.StatusBadRequest)
		return
	}

	err := a.Learn(req.Source, req.Relation, req.Target, fsrs.Rating(req.Rating), req.Sentiment)
	if err != nil {
		writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func (s *Server) handleReview(w http.ResponseWriter, r *http.Request) {
	owner := chi.URLParam(r, "owner")

	var req struct {
		Concept string `json:"concept"`
		Rating  int    `json:"rating"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"invalid json"}`, http.StatusBadRequest)
		return
	}
	if req.Concept == "" {
		http.Error(w, `{"error":"concept required"}`, http.StatusBadRequest)
		return
	}
	if req.Rating == 0 {
		req.Rating = int(fsrs.Good)
	}

	a := s.manager.Get(owner)
	if a.Now().IsZero() {
		http.Error(w, `{"error":"agent clock not set"}`, http.StatusBadRequest)
		return
	}

	if err := a.Review(req.Concept, fsrs.Rating(req.Rating)); err != nil {
		writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func (s *Server) handleContext(w http.ResponseWriter, r *http.Request) {
	owner := chi.URLParam(r, "owner")
	topic := r.URL.Query().Get("topic")
	if topic == "" {
		http.Error(w, `{"error":"topic required"}`, http.StatusBadRequest)
		return
	}

	a := s.manager.Get(owner)
	if a.Now().IsZero() {
		http.Error(w, `{"error":"agent clock not set"}`, http.StatusBadRequest)
		return
	}

	ctx, err := a.Context(topic)
	if err != nil {
		writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"context": ctx})
}

func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	owner := chi.URLParam(r, "owner")
	topic := r.URL.Query().Get("topic")
	prune := r.URL.Query().Get("prune") == "true"

	a := s.manager.Get(owner)
	if a.Now().IsZero() {
		http.Error(w, `{"error":"agent clock not set"}`, http.StatusBadRequest)
		return
	}

	g, err := a.Snapshot(topic, prune)
	if err != nil {
		writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(g)
}

func (s *Server) handleLogs(w http.ResponseWriter, r *http.Request) {
	owner := chi.URLParam(r, "owner")

	logs, err := s.store.GetLogs(owner, 50)
	if err != nil {
		writeError(w, err)
		return
	}

	type logEntry struct {
		Kind        string         `json:"kind"`
		Content     string         `json:"content"`
		Annotations map[string]any `json:"annotations,omitempty"`
		Key         int64          `json:"key"`
	}
	out := make([]logEntry, 0, len(logs))
	for _, l := range logs {
		out = append(out, logEntry{
			Kind:        l.Kind,
			Content:     l.Content,
			Annotations: l.Annotations,
			Key:         l.At.Key(),
		})
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{"logs": out})
}

func (s *Server) handleClear(w http.ResponseWriter, r *http.Request) {
	owner := chi.URLParam(r, "owner")

	if err := s.manager.Remove(owner); err != nil {
		writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "cleared"})
}

func (s *Server) handleListAgents(w http.ResponseWriter, r *http.Request) {
	owners, err := s.store.Owners()
	if err != nil {
		writeError(w, err)
		return
	}
	if owners == nil {
		owners = []string{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{"agents": owners})
}

func (s *Server) handleCacheStats(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if c := s.store.Cache(); c != nil {
		json.NewEncoder(w).Encode(c.Stats())
		return
	}
	json.NewEncoder(w).Encode(map[string]string{"status": "cache disabled"})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	counts, err := s.store.Stats()
	if err != nil {
		writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"counts":            counts,
		"clock_regressions": s.store.Scheduler().Regressions(),
	})
}

// writeError maps domain errors onto status codes: caller mistakes are
// 400s, everything else is a 500 and gets logged.
func writeError(w http.ResponseWriter, err error) {
	code := http.StatusInternalServerError
	if errors.Is(err, store.ErrValidation) ||
		errors.Is(err, agent.ErrRejectedTriple) ||
		errors.Is(err, fsrs.ErrInvalidRating) {
		code = http.StatusBadRequest
	}
	if code == http.StatusInternalServerError {
		log.Printf("api: %v", err)
	}
	http.Error(w, `{"error":"`+err.Error()+`"}`, code)
}
