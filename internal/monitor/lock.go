package monitor

import "time"

// timedMutex is a mutex whose acquisition can give up after a deadline.
type timedMutex struct {
	slot chan struct{}
}

func newTimedMutex() *timedMutex {
	return &timedMutex{slot: make(chan struct{}, 1)}
}

// TryLockFor acquires the mutex, waiting at most d
func (m *timedMutex) TryLockFor(d time.Duration) bool {
	select {
	case m.slot <- struct{}{}:
		return true
	default:
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case m.slot <- struct{}{}:
		return true
	case <-timer.C:
		return false
	}
}

// Lock acquires the mutex without a deadline
func (m *timedMutex) Lock() {
	m.slot <- struct{}{}
}

func (m *timedMutex) Unlock() {
	<-m.slot
}
