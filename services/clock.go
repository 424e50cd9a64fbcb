package services

import "time"

// Clock abstracts the time source so lifecycle transitions are testable
// without wall-clock waits.
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

func NewRealClock() Clock { return realClock{} }

// SecondsUntil returns the whole seconds left until start, never negative.
// Countdowns are recomputed from this on every poll; no countdown state
// lives in the engine.
func SecondsUntil(start, now time.Time) int64 {
	d := start.Sub(now)
	if d <= 0 {
		return 0
	}
	return int64(d / time.Second)
}
