package monitor

import "time"

// Clock supplies the time used for policy decisions and accounting
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }
