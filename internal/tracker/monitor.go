package tracker

import "errors"

// ErrMonitorUnavailable is returned by monitors whose OS facility is missing.
var ErrMonitorUnavailable = errors.New("monitor unavailable")

// Monitor wraps one OS signal source for a Tracker.
type Monitor[S any] interface {
	// Start begins observing. update is called for every observed state,
	// in observation order, from the monitor's own goroutine and never
	// from within Start.
	Start(update func(S)) error
	// Stop ends observation. It may wait for an in-flight update to return.
	Stop()
	// Snapshot returns the latest known state without blocking on I/O.
	Snapshot() S
}

// Unavailable is a Monitor for a source that does not exist on this host.
// Its Start always fails, so trackers report the unknown zero state.
type Unavailable[S any] struct {
	Reason error
}

func (u Unavailable[S]) Start(func(S)) error {
	if u.Reason != nil {
		return u.Reason
	}
	return ErrMonitorUnavailable
}

func (Unavailable[S]) Stop() {}

func (Unavailable[S]) Snapshot() S {
	var zero S
	return zero
}
