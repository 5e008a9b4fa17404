package monitor

import (
	"testing"
	"time"

	"codeberg.org/mutker/agxmon/internal/telemetry"
	"github.com/stretchr/testify/assert"
)

func TestStoreStaleness(t *testing.T) {
	t0 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	s := newStore(30 * time.Second)

	assert.False(t, s.fresh(t0), "empty store")
	assert.False(t, s.read(t0).Valid)

	s.publish(telemetry.Snapshot{Timestamp: "ts", Valid: true}, t0)
	assert.True(t, s.fresh(t0.Add(29*time.Second)))
	assert.False(t, s.fresh(t0.Add(30*time.Second)))

	stale := s.read(t0.Add(time.Minute))
	assert.False(t, stale.Valid)
	assert.Equal(t, "ts", stale.Timestamp)
	assert.Equal(t, t0, stale.CapturedAt)
	assert.True(t, s.snap.Valid, "reading a stale snapshot leaves the stored copy intact")
}

func TestStoreInvalidSnapshot(t *testing.T) {
	t0 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	s := newStore(30 * time.Second)

	s.publish(telemetry.Snapshot{Valid: false}, t0)
	assert.False(t, s.fresh(t0))

	s.publish(telemetry.Snapshot{Valid: true}, t0)
	s.invalidate()
	assert.False(t, s.fresh(t0))
}

func TestStoreReadIsCopy(t *testing.T) {
	t0 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	s := newStore(30 * time.Second)

	snap := telemetry.Snapshot{Valid: true}
	snap.CPU.CoreCount = 1
	snap.CPU.Cores[0].Usage = 10
	s.publish(snap, t0)

	got := s.read(t0)
	got.CPU.Cores[0].Usage = 99
	assert.Equal(t, 10.0, s.read(t0).CPU.Cores[0].Usage)
}

func TestTimedMutex(t *testing.T) {
	m := newTimedMutex()

	assert.True(t, m.TryLockFor(time.Millisecond))
	start := time.Now()
	assert.False(t, m.TryLockFor(20*time.Millisecond))
	assert.GreaterOrEqual(t, time.Since(start), 20*time.Millisecond)

	m.Unlock()
	assert.True(t, m.TryLockFor(time.Millisecond))
	m.Unlock()
}

func TestReliability(t *testing.T) {
	assert.Zero(t, reliability(time.Second, 0))
	assert.InDelta(t, 25.0, reliability(time.Second, 4*time.Second), 0.001)
	assert.Equal(t, 100.0, reliability(5*time.Second, 4*time.Second))
}
