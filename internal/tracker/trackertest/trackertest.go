// Package trackertest provides in-memory monitors and listeners for tests.
package trackertest

import (
	"sync"
	"sync/atomic"
	"time"
)

// Monitor is a tracker.Monitor driven by Emit. It counts Start and Stop calls.
type Monitor[S any] struct {
	// StartErr, when set, makes Start fail.
	StartErr error
	// StartDelay widens the window in which concurrent subscribers race.
	StartDelay time.Duration

	starts atomic.Int32
	stops  atomic.Int32

	mu     sync.Mutex
	state  S
	update func(S)
}

// NewMonitor returns a Monitor whose Snapshot starts at initial.
func NewMonitor[S any](initial S) *Monitor[S] {
	return &Monitor[S]{state: initial}
}

func (m *Monitor[S]) Start(update func(S)) error {
	m.starts.Add(1)
	if m.StartDelay > 0 {
		time.Sleep(m.StartDelay)
	}
	if m.StartErr != nil {
		return m.StartErr
	}
	m.mu.Lock()
	m.update = update
	m.mu.Unlock()
	return nil
}

func (m *Monitor[S]) Stop() {
	m.stops.Add(1)
	m.mu.Lock()
	m.update = nil
	m.mu.Unlock()
}

func (m *Monitor[S]) Snapshot() S {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Emit records state and pushes it to the tracker if the monitor is started.
// It delivers synchronously on the calling goroutine.
func (m *Monitor[S]) Emit(state S) {
	m.mu.Lock()
	m.state = state
	update := m.update
	m.mu.Unlock()
	if update != nil {
		update(state)
	}
}

// Starts returns the number of Start calls.
func (m *Monitor[S]) Starts() int { return int(m.starts.Load()) }

// Stops returns the number of Stop calls.
func (m *Monitor[S]) Stops() int { return int(m.stops.Load()) }

// Started reports whether the monitor currently has an update callback.
func (m *Monitor[S]) Started() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.update != nil
}

// Listener records every state it receives.
type Listener[S any] struct {
	mu  sync.Mutex
	got []S
}

func (l *Listener[S]) OnStateChanged(state S) {
	l.mu.Lock()
	l.got = append(l.got, state)
	l.mu.Unlock()
}

// States returns a copy of the received states.
func (l *Listener[S]) States() []S {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]S, len(l.got))
	copy(out, l.got)
	return out
}
