package model

import "time"

// Clock abstracts the wall clock so record timestamps are testable.
// Clock skew across devices is an accepted source of concurrent
// conflicts, not an error condition.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the real wall clock.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

// NetworkStatus reports whether the device currently has connectivity.
type NetworkStatus interface {
	Online() bool
}

// StaticNetwork is a NetworkStatus with a fixed answer, for deployments
// that are always connected and for tests.
type StaticNetwork bool

func (n StaticNetwork) Online() bool { return bool(n) }
