// Package fsrs implements the FSRS-6 spaced-repetition memory model.
//
// Every concept an agent knows carries a Memory: stability (modeled days
// until retrievability decays to 0.9), difficulty (bounded [1, 10]) and a
// review state. Review advances the memory for a rating; Retrievability
// scores recall probability at a point in time. The model does no I/O
// and uses no randomness, so identical inputs always produce identical
// output.
package fsrs

import (
	"errors"
	"math"
	"sync/atomic"

	"github.com/lazypower/ghostkg/internal/simtime"
)

// Rating is the caller-supplied recall-quality signal for a review.
type Rating int

const (
	Again Rating = 1
	Hard  Rating = 2
	Good  Rating = 3
	Easy  Rating = 4
)

// ErrInvalidRating is returned for ratings outside [Again, Easy].
// An invalid rating is a caller contract violation, not a recoverable state.
var ErrInvalidRating = errors.New("invalid rating")

// State is the review-state a memory is in.
type State int

const (
	StateNew        State = 0
	StateLearning   State = 1
	StateReview     State = 2
	StateRelearning State = 3
)

func (s State) String() string {
	switch s {
	case StateNew:
		return "new"
	case StateLearning:
		return "learning"
	case StateReview:
		return "review"
	case StateRelearning:
		return "relearning"
	}
	return "unknown"
}

// Memory is the spaced-repetition state of one concept.
// The zero value is a never-reviewed ("new") memory.
type Memory struct {
	Stability  float64
	Difficulty float64
	LastReview *simtime.Time
	Reps       int
	State      State
}

// defaultWeights are the FSRS-6 default parameters.
// w[0..3] are initial stabilities per rating, w[20] is the decay exponent.
var defaultWeights = [21]float64{
	0.212, 1.2931, 2.3065, 8.2956, 6.4133, 0.8334, 3.0194, 0.001,
	1.8722, 0.1666, 0.796, 1.4835, 0.0614, 0.2629, 1.6483, 0.6014,
	1.8729, 0.5425, 0.0912, 0.0658, 0.1542,
}

// Scheduler computes review-state transitions and retrievability scores.
// Safe for concurrent use.
type Scheduler struct {
	w           [21]float64
	regressions atomic.Int64
}

// NewScheduler returns a Scheduler with the default FSRS-6 weights.
func NewScheduler() *Scheduler {
	return &Scheduler{w: defaultWeights}
}

// Regressions reports how many times a review saw a "now" earlier than
// the memory's last review. The elapsed time is clamped to zero in that
// case; this counter is the observable signal that a caller's clock went
// backwards. Retrievability queries never count: asking how retrievable a
// memory was at a historical time is legitimate, not a clock bug.
func (s *Scheduler) Regressions() int64 {
	return s.regressions.Load()
}

// Retrievability returns the modeled recall probability in (0, 1] for a
// memory with the given stability, reviewed last at lastReview, queried at
// now. A nil lastReview or non-positive stability means the fact was just
// learned (or is degenerate) and scores 1.0.
//
// R(t, S) = (1 + factor*t/S)^(-w20) with factor = 0.9^(-1/w20) - 1,
// which guarantees R(S, S) = 0.9 for any value of w20.
func (s *Scheduler) Retrievability(stability float64, lastReview *simtime.Time, now simtime.Time) float64 {
	if stability <= 0 || lastReview == nil {
		return 1.0
	}
	elapsed, _ := s.elapsedDays(*lastReview, now)
	w20 := s.w[20]
	factor := math.Pow(0.9, -1/w20) - 1
	return math.Pow(1+factor*elapsed/stability, -w20)
}

// Review applies one rating to a memory at the given time and returns the
// next memory state. Stability never drops below 0.1 and difficulty is
// clamped to [1, 10]. A now earlier than the last review is treated as
// zero elapsed time (see Regressions).
func (s *Scheduler) Review(m Memory, r Rating, now simtime.Time) (Memory, error) {
	if r < Again || r > Easy {
		return Memory{}, ErrInvalidRating
	}

	lr := now

	// First review of a new fact.
	if m.State == StateNew || m.LastReview == nil {
		return Memory{
			Stability:  s.w[r-1],
			Difficulty: s.initialDifficulty(r),
			LastReview: &lr,
			Reps:       m.Reps + 1,
			State:      StateLearning,
		}, nil
	}

	stability := m.Stability
	if stability < 0.1 {
		// Degenerate stored stability; the formulas below need S > 0.
		stability = 0.1
	}

	elapsed, regressed := s.elapsedDays(*m.LastReview, now)
	if regressed {
		s.regressions.Add(1)
	}
	retr := s.Retrievability(stability, m.LastReview, now)

	// Difficulty: linear damping plus mean reversion toward D0(Easy).
	deltaD := -s.w[6] * float64(r-Good)
	dPrime := m.Difficulty + deltaD*(10-m.Difficulty)/9
	nextD := clamp(s.w[7]*s.initialDifficulty(Easy)+(1-s.w[7])*dPrime, 1, 10)

	var nextS float64
	var nextState State

	if r == Again {
		// Post-lapse stability.
		nextS = s.w[11] *
			math.Pow(nextD, -s.w[12]) *
			(math.Pow(stability+1, s.w[13]) - 1) *
			math.Exp((1-retr)*s.w[14])
		nextState = StateRelearning
	} else {
		if elapsed < 1 {
			// Same-day review: S' = S * e^(w17*(G-3+w18)) * S^(-w19)
			nextS = stability *
				math.Exp(s.w[17]*(float64(r-Good)+s.w[18])) *
				math.Pow(stability, -s.w[19])
		} else {
			hardPenalty := 1.0
			if r == Hard {
				hardPenalty = s.w[15]
			}
			easyBonus := 1.0
			if r == Easy {
				easyBonus = s.w[16]
			}
			nextS = stability * (1 +
				math.Exp(s.w[8])*
					(11-nextD)*
					math.Pow(stability, -s.w[9])*
					(math.Exp((1-retr)*s.w[10])-1)*
					hardPenalty*easyBonus)
		}
		nextState = StateReview
	}

	if nextS < 0.1 {
		nextS = 0.1
	}

	return Memory{
		Stability:  nextS,
		Difficulty: nextD,
		LastReview: &lr,
		Reps:       m.Reps + 1,
		State:      nextState,
	}, nil
}

// initialDifficulty computes D0(G) = w4 - e^(w5*(G-1)) + 1, clamped to [1, 10].
func (s *Scheduler) initialDifficulty(r Rating) float64 {
	return clamp(s.w[4]-math.Exp(s.w[5]*float64(r-1))+1, 1, 10)
}

// elapsedDays returns the non-negative days from lastReview to now, and
// whether the clock ran backwards. Only Review counts a regression:
// retrievability is also asked for legitimately historical times (a
// point-in-time query earlier than a node's last review), which is not a
// clock bug.
func (s *Scheduler) elapsedDays(lastReview, now simtime.Time) (float64, bool) {
	elapsed, err := now.DaysSince(lastReview)
	if err != nil {
		// The store guarantees a single time mode per owner, so a mode
		// mismatch cannot normally reach this point. Treat it like a
		// same-moment review rather than corrupting the state.
		return 0, false
	}
	if elapsed < 0 {
		return 0, true
	}
	return elapsed, false
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
