// Package metrics exposes observability hooks for trackers, controllers
// and the scheduler.
package metrics

import "time"

// Direction labels a delta counter.
type Direction string

const (
	DirectionConstrained   Direction = "constrained"
	DirectionUnconstrained Direction = "unconstrained"
)

// Recorder defines observability hooks. Implementations may forward to
// Prometheus; NoopRecorder is the default when metrics are not configured.
type Recorder interface {
	// SetTrackerListeners reports the listener count for a tracker source.
	SetTrackerListeners(source string, n int)
	// IncMonitorTransition counts monitor start/stop calls; result is ok|failed.
	IncMonitorTransition(source, op, result string)
	// ObserveEvaluation records one controller evaluation and its outcome.
	ObserveEvaluation(kind string, constrained bool, d time.Duration)
	// AddDeltaJobs counts jobs moved by emitted deltas.
	AddDeltaJobs(kind string, dir Direction, n int)
	// IncDispatch counts scheduler dispatch and halt actions.
	IncDispatch(action string)
}

// NoopRecorder is a Recorder that does nothing.
type NoopRecorder struct{}

func (NoopRecorder) SetTrackerListeners(string, int) {}
func (NoopRecorder) IncMonitorTransition(string, string, string) {}
func (NoopRecorder) ObserveEvaluation(string, bool, time.Duration) {}
func (NoopRecorder) AddDeltaJobs(string, Direction, int) {}
func (NoopRecorder) IncDispatch(string) {}

// OrNoop returns r, or a NoopRecorder when r is nil.
func OrNoop(r Recorder) Recorder {
	if r == nil {
		return NoopRecorder{}
	}
	return r
}
