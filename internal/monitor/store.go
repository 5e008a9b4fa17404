package monitor

import (
	"time"

	"codeberg.org/mutker/agxmon/internal/telemetry"
)

// store holds the latest snapshot. It is not safe for concurrent use; the
// monitor lock guards it.
type store struct {
	snap       telemetry.Snapshot
	staleAfter time.Duration
}

func newStore(staleAfter time.Duration) store {
	return store{staleAfter: staleAfter}
}

// publish replaces the stored snapshot and stamps its capture time
func (s *store) publish(snap telemetry.Snapshot, now time.Time) {
	snap.CapturedAt = now
	s.snap = snap
}

// read returns a copy. A stale snapshot is returned with Valid cleared; the
// stored record itself is left untouched.
func (s *store) read(now time.Time) telemetry.Snapshot {
	snap := s.snap
	if !s.fresh(now) {
		snap.Valid = false
	}

	return snap
}

// fresh reports whether the stored snapshot decoded fine and is younger than
// the staleness window
func (s *store) fresh(now time.Time) bool {
	if !s.snap.Valid || s.snap.CapturedAt.IsZero() {
		return false
	}

	return now.Sub(s.snap.CapturedAt) < s.staleAfter
}

func (s *store) invalidate() {
	s.snap.Valid = false
}
