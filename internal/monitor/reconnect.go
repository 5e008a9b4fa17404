package monitor

import "time"

// ReconnectContext tracks connection attempts for the retry policy: a
// startup delay, then FastRetryLimit attempts spaced FastRetryInterval
// apart, then FixedInterval between attempts.
type ReconnectContext struct {
	// Attempts counts attempts since the last successful connection
	Attempts          int
	FastRetryLimit    int
	FastRetryInterval time.Duration
	FixedInterval     time.Duration
	StartupDelay      time.Duration
	StartedAt         time.Time
	LastAttempt       time.Time

	expedite bool
}

// NewReconnectContext returns a context starting at now
func NewReconnectContext(cfg Config, now time.Time) ReconnectContext {
	return ReconnectContext{
		FastRetryLimit:    cfg.FastRetryCount,
		FastRetryInterval: cfg.FastRetryInterval,
		FixedInterval:     cfg.ReconnectInterval,
		StartupDelay:      cfg.StartupDelay,
		StartedAt:         now,
	}
}

// Delay is the wait required after the last attempt
func (r *ReconnectContext) Delay() time.Duration {
	if r.Attempts < r.FastRetryLimit {
		return r.FastRetryInterval
	}

	return r.FixedInterval
}

// WarmingUp reports whether the startup delay is still running
func (r *ReconnectContext) WarmingUp(now time.Time) bool {
	return now.Sub(r.StartedAt) < r.StartupDelay
}

// Ready reports whether an attempt may be made at now
func (r *ReconnectContext) Ready(now time.Time) bool {
	if r.WarmingUp(now) {
		return false
	}
	if r.expedite || r.LastAttempt.IsZero() {
		return true
	}

	return now.Sub(r.LastAttempt) >= r.Delay()
}

// Until returns how long until Ready turns true, zero if it already is
func (r *ReconnectContext) Until(now time.Time) time.Duration {
	if r.WarmingUp(now) {
		return r.StartedAt.Add(r.StartupDelay).Sub(now)
	}
	if r.Ready(now) {
		return 0
	}

	return r.LastAttempt.Add(r.Delay()).Sub(now)
}

// Record registers an attempt made at now
func (r *ReconnectContext) Record(now time.Time) {
	r.Attempts++
	r.LastAttempt = now
	r.expedite = false
}

// Expedite lets the next attempt skip the retry delay
func (r *ReconnectContext) Expedite() {
	r.expedite = true
}

// Reset clears the attempt count after a successful connection
func (r *ReconnectContext) Reset() {
	r.Attempts = 0
	r.expedite = false
}
