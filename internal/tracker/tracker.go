// Package tracker shares OS state sources between constraint controllers.
//
// A Tracker owns one Monitor and a set of listeners. The monitor runs only
// while at least one listener is registered. A new listener receives the
// current state before any later push, and every listener sees pushes in
// the order the monitor observed them.
//
// Listeners are called with the tracker's state lock held and must not add
// or remove listeners on the same tracker from inside OnStateChanged.
package tracker

import (
	"log/slog"
	"sync"

	"github.com/me/workgate/internal/logging"
	"github.com/me/workgate/internal/metrics"
	"github.com/me/workgate/pkg/model"
)

// Listener receives state pushes from a Tracker. Implementations must be
// comparable (typically a pointer) so they can be removed again.
type Listener[S any] interface {
	OnStateChanged(state S)
}

// Tracker broadcasts the latest state of one source to its listeners.
type Tracker[S any] struct {
	source   model.Source
	monitor  Monitor[S]
	logger   *slog.Logger
	recorder metrics.Recorder

	// transition serializes monitor start/stop; mu is never held across
	// Monitor.Start or Monitor.Stop so stopping never waits on delivery.
	transition sync.Mutex

	mu        sync.Mutex
	state     S
	listeners []Listener[S]
	running   bool
	gen       uint64
	pushed    bool
}

// New creates a Tracker for source backed by monitor.
func New[S any](source model.Source, monitor Monitor[S], logger *slog.Logger, recorder metrics.Recorder) *Tracker[S] {
	return &Tracker[S]{
		source:   source,
		monitor:  monitor,
		logger:   logging.Component(logger, "tracker").With("source", source),
		recorder: metrics.OrNoop(recorder),
	}
}

// Source returns the source this tracker observes.
func (t *Tracker[S]) Source() model.Source {
	return t.source
}

// AddListener registers l and pushes the current state to it. The first
// listener starts the monitor; adding a registered listener again is a no-op.
func (t *Tracker[S]) AddListener(l Listener[S]) {
	t.transition.Lock()
	defer t.transition.Unlock()

	t.mu.Lock()
	if t.indexOf(l) >= 0 {
		t.mu.Unlock()
		return
	}
	needStart := !t.running
	t.mu.Unlock()

	if needStart {
		t.start()
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	t.listeners = append(t.listeners, l)
	t.recorder.SetTrackerListeners(string(t.source), len(t.listeners))
	t.logger.Debug("listener added", "listeners", len(t.listeners))
	l.OnStateChanged(t.state)
}

// RemoveListener unregisters l. Removing the last listener stops the monitor.
func (t *Tracker[S]) RemoveListener(l Listener[S]) {
	t.transition.Lock()
	defer t.transition.Unlock()

	t.mu.Lock()
	i := t.indexOf(l)
	if i < 0 {
		t.mu.Unlock()
		return
	}
	t.listeners = append(t.listeners[:i], t.listeners[i+1:]...)
	stop := len(t.listeners) == 0 && t.running
	if stop {
		// Pushes from the stopping monitor are dropped from here on.
		t.running = false
	}
	n := len(t.listeners)
	t.mu.Unlock()

	t.recorder.SetTrackerListeners(string(t.source), n)
	t.logger.Debug("listener removed", "listeners", n)

	if stop {
		t.monitor.Stop()
		t.recorder.IncMonitorTransition(string(t.source), "stop", "ok")
		t.logger.Info("monitor stopped")
	}
}

// Current returns the most recent state.
func (t *Tracker[S]) Current() S {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// Listeners returns the number of registered listeners.
func (t *Tracker[S]) Listeners() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.listeners)
}

// Running reports whether the monitor is active.
func (t *Tracker[S]) Running() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.running
}

// start is called with t.transition held.
func (t *Tracker[S]) start() {
	t.mu.Lock()
	t.gen++
	gen := t.gen
	t.running = true
	t.pushed = false
	t.mu.Unlock()

	if err := t.monitor.Start(t.pusher(gen)); err != nil {
		t.mu.Lock()
		t.running = false
		var unknown S
		t.state = unknown
		t.mu.Unlock()
		t.recorder.IncMonitorTransition(string(t.source), "start", "failed")
		t.logger.Warn("monitor unavailable, reporting unknown state", "error", err)
		return
	}

	snapshot := t.monitor.Snapshot()
	t.mu.Lock()
	if !t.pushed {
		t.state = snapshot
	}
	t.mu.Unlock()
	t.recorder.IncMonitorTransition(string(t.source), "start", "ok")
	t.logger.Info("monitor started")
}

// pusher returns the update callback for one monitor run. Pushes from an
// earlier, stopped run are ignored.
func (t *Tracker[S]) pusher(gen uint64) func(S) {
	return func(state S) {
		t.mu.Lock()
		defer t.mu.Unlock()
		if !t.running || gen != t.gen {
			return
		}
		t.state = state
		t.pushed = true
		for _, l := range t.listeners {
			l.OnStateChanged(state)
		}
	}
}

func (t *Tracker[S]) indexOf(l Listener[S]) int {
	for i, existing := range t.listeners {
		if existing == l {
			return i
		}
	}
	return -1
}
