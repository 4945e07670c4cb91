package simtime

import (
	"testing"
	"time"
)

func TestFromRoundValidation(t *testing.T) {
	cases := []struct {
		day, hour int
		wantErr   bool
	}{
		{1, 0, false},
		{1, 23, false},
		{365, 12, false},
		{0, 0, true},
		{-3, 5, true},
		{1, 24, true},
		{1, -1, true},
	}
	for _, c := range cases {
		_, err := FromRound(c.day, c.hour)
		if (err != nil) != c.wantErr {
			t.Errorf("FromRound(%d, %d): err = %v, wantErr = %v", c.day, c.hour, err, c.wantErr)
		}
	}
}

func TestRoundKey(t *testing.T) {
	tm, err := FromRound(1, 0)
	if err != nil {
		t.Fatalf("FromRound: %v", err)
	}
	if tm.Key() != 0 {
		t.Errorf("key for (1, 0) = %d, want 0", tm.Key())
	}

	tm, _ = FromRound(2, 3)
	if tm.Key() != 27 {
		t.Errorf("key for (2, 3) = %d, want 27", tm.Key())
	}
}

func TestKeyRoundTrip(t *testing.T) {
	r, _ := FromRound(7, 14)
	back := FromKey(ModeRound, r.Key())
	day, hour := back.Round()
	if day != 7 || hour != 14 {
		t.Errorf("round trip = (%d, %d), want (7, 14)", day, hour)
	}

	w := FromWall(time.Date(2025, 3, 1, 9, 30, 0, 0, time.UTC))
	back = FromKey(ModeWall, w.Key())
	if !back.Wall().Equal(w.Wall()) {
		t.Errorf("wall round trip = %v, want %v", back.Wall(), w.Wall())
	}
}

func TestDaysSince(t *testing.T) {
	t0 := FromWall(time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC))
	t1 := FromWall(time.Date(2025, 1, 6, 0, 0, 0, 0, time.UTC))
	d, err := t1.DaysSince(t0)
	if err != nil {
		t.Fatalf("DaysSince: %v", err)
	}
	if d != 5 {
		t.Errorf("elapsed = %f, want 5", d)
	}

	// Negative elapsed is returned as-is; callers clamp.
	d, _ = t0.DaysSince(t1)
	if d != -5 {
		t.Errorf("elapsed = %f, want -5", d)
	}
}

func TestDaysSinceRound(t *testing.T) {
	r0, _ := FromRound(1, 0)
	r1, _ := FromRound(3, 12)
	d, err := r1.DaysSince(r0)
	if err != nil {
		t.Fatalf("DaysSince: %v", err)
	}
	if d != 2.5 {
		t.Errorf("elapsed = %f, want 2.5", d)
	}
}

func TestDaysSinceModeMismatch(t *testing.T) {
	w := FromWall(time.Now())
	r, _ := FromRound(1, 0)
	if _, err := w.DaysSince(r); err == nil {
		t.Error("expected error comparing wall time with round time")
	}
}

func TestBefore(t *testing.T) {
	r0, _ := FromRound(1, 5)
	r1, _ := FromRound(1, 6)
	if !r0.Before(r1) {
		t.Error("expected (1,5) before (1,6)")
	}
	if r1.Before(r0) {
		t.Error("(1,6) should not be before (1,5)")
	}

	// Cross-mode Before is always false.
	w := FromWall(time.Now())
	if r0.Before(w) || w.Before(r0) {
		t.Error("cross-mode times must not order against each other")
	}
}
