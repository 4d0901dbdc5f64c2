// Package events fans constraint deltas out to external subscribers: a
// NATS subject per condition kind and in-process SSE streams.
package events

import (
	"time"

	"github.com/me/workgate/pkg/model"
)

// Event is a constraint delta as seen by external subscribers.
type Event struct {
	Kind          model.ConditionKind `json:"kind"`
	Constrained   model.JobSet        `json:"constrained"`
	Unconstrained model.JobSet        `json:"unconstrained"`
	Timestamp     time.Time           `json:"timestamp"`
}

// NewEvent stamps a delta with the current time.
func NewEvent(kind model.ConditionKind, constrained, unconstrained model.JobSet) Event {
	return Event{
		Kind:          kind,
		Constrained:   constrained.Clone(),
		Unconstrained: unconstrained.Clone(),
		Timestamp:     time.Now().UTC(),
	}
}

// Publisher delivers events to an external sink.
type Publisher interface {
	Publish(ev Event) error
	Close() error
}

// NoopPublisher discards every event.
type NoopPublisher struct{}

func (NoopPublisher) Publish(Event) error { return nil }
func (NoopPublisher) Close() error        { return nil }

// Multi publishes to every publisher and returns the first error.
type Multi []Publisher

func (m Multi) Publish(ev Event) error {
	var first error
	for _, p := range m {
		if err := p.Publish(ev); err != nil && first == nil {
			first = err
		}
	}
	return first
}

func (m Multi) Close() error {
	var first error
	for _, p := range m {
		if err := p.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
