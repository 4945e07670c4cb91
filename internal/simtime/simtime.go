// Package simtime provides the time representation used throughout ghostkg.
//
// An owner's clock runs in one of two modes: wall-clock time (a UTC
// timestamp) or round-based time (a day >= 1 and an hour in [0, 23]).
// The two modes are never comparable with each other; the store enforces
// that every row belonging to one owner uses a single mode.
package simtime

import (
	"fmt"
	"time"
)

// Mode identifies which clock representation a Time carries.
type Mode string

const (
	ModeWall  Mode = "wall"
	ModeRound Mode = "round"
)

const (
	hoursPerDay = 24
	msPerDay    = 24 * 60 * 60 * 1000
)

// Time is an immutable point in simulated time.
// The zero value is invalid; construct via FromWall or FromRound.
type Time struct {
	mode Mode
	wall time.Time
	day  int
	hour int
}

// FromWall creates a wall-mode Time. The timestamp is normalized to UTC.
func FromWall(t time.Time) Time {
	return Time{mode: ModeWall, wall: t.UTC()}
}

// FromRound creates a round-mode Time. Day must be >= 1 and hour in [0, 23].
func FromRound(day, hour int) (Time, error) {
	if day < 1 {
		return Time{}, fmt.Errorf("day must be >= 1, got %d", day)
	}
	if hour < 0 || hour > 23 {
		return Time{}, fmt.Errorf("hour must be in [0, 23], got %d", hour)
	}
	return Time{mode: ModeRound, day: day, hour: hour}, nil
}

// FromKey reconstructs a Time from its storage key. The inverse of Key.
func FromKey(mode Mode, key int64) Time {
	if mode == ModeRound {
		return Time{
			mode: ModeRound,
			day:  int(key/hoursPerDay) + 1,
			hour: int(key % hoursPerDay),
		}
	}
	return Time{mode: ModeWall, wall: time.UnixMilli(key).UTC()}
}

// Mode returns the clock mode.
func (t Time) Mode() Mode { return t.mode }

// IsZero reports whether t is the invalid zero value.
func (t Time) IsZero() bool { return t.mode == "" }

// Wall returns the wall-clock timestamp. Only meaningful in wall mode.
func (t Time) Wall() time.Time { return t.wall }

// Round returns the (day, hour) pair. Only meaningful in round mode.
func (t Time) Round() (day, hour int) { return t.day, t.hour }

// Key returns a mode-local ordering key: milliseconds since the Unix epoch
// in wall mode, hours since (day 1, hour 0) in round mode. Keys from
// different modes must never be compared; the store guarantees a single
// mode per owner.
func (t Time) Key() int64 {
	if t.mode == ModeRound {
		return int64(t.day-1)*hoursPerDay + int64(t.hour)
	}
	return t.wall.UnixMilli()
}

// DaysSince returns the fractional number of days elapsed from earlier to t.
// Both times must be in the same mode; the result may be negative when t
// precedes earlier (callers decide how to treat regressions).
func (t Time) DaysSince(earlier Time) (float64, error) {
	if t.mode != earlier.mode {
		return 0, fmt.Errorf("cannot compare %s time with %s time", t.mode, earlier.mode)
	}
	if t.mode == ModeRound {
		return float64(t.Key()-earlier.Key()) / hoursPerDay, nil
	}
	return float64(t.Key()-earlier.Key()) / msPerDay, nil
}

// Before reports whether t precedes other. Same-mode comparison only.
func (t Time) Before(other Time) bool {
	return t.mode == other.mode && t.Key() < other.Key()
}

func (t Time) String() string {
	if t.mode == ModeRound {
		return fmt.Sprintf("day %d, hour %d", t.day, t.hour)
	}
	return t.wall.Format(time.RFC3339)
}
