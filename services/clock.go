package services

import "time"

// Clock stamps every created and completed timestamp the engine writes.
type Clock interface {
	Now() time.Time
}

type ClockFunc func() time.Time

func (f ClockFunc) Now() time.Time { return f() }

func SystemClock() Clock {
	return ClockFunc(func() time.Time { return time.Now().UTC() })
}
