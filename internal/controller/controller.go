// Package controller maps the state of one tracker to a constrained or
// unconstrained verdict for the jobs that declare one condition kind.
//
// A Controller loads its tracked job set once, at construction. Jobs that
// start declaring the kind afterwards are not observed until a new
// Controller is built.
package controller

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/me/workgate/internal/logging"
	"github.com/me/workgate/internal/metrics"
	"github.com/me/workgate/internal/tracker"
	"github.com/me/workgate/pkg/model"
)

// Callback receives the jobs whose constrained status changed.
type Callback func(delta model.ConstraintDelta)

// JobQuery is the read-only job store view a controller needs.
type JobQuery interface {
	GetJobIDsWithConstraint(ctx context.Context, kind model.ConditionKind) ([]string, error)
}

// Source is the subscription side of a tracker.
type Source[S any] interface {
	AddListener(l tracker.Listener[S])
	RemoveListener(l tracker.Listener[S])
}

// Option configures a Controller.
type Option func(*options)

type options struct {
	initial *bool
}

// WithInitial sets the verdict the controller starts from instead of
// constrained. A replacement controller seeded with its predecessor's
// verdict stays silent until the state actually changes.
func WithInitial(constrained bool) Option {
	return func(o *options) { o.initial = &constrained }
}

// Handle is the type-erased view of a Controller.
type Handle interface {
	Kind() model.ConditionKind
	Replace(ctx context.Context)
	Attach()
	Detach()
	Attached() bool
	Constrained() bool
	Tracked() model.JobSet
}

// Controller evaluates one Variant against every state pushed by its source.
type Controller[S any] struct {
	variant  Variant[S]
	source   Source[S]
	callback Callback
	tracked  model.JobSet
	logger   *slog.Logger
	recorder metrics.Recorder

	// bindMu serializes Attach, Detach and Replace.
	bindMu    sync.Mutex
	binding   uint64
	stopWatch func() bool

	// mu serializes evaluations with the attached flag.
	mu          sync.Mutex
	attached    bool
	constrained bool
}

// New loads the jobs declaring v.Kind and returns an unattached Controller.
// A query failure is returned as a construction error.
func New[S any](ctx context.Context, v Variant[S], query JobQuery, source Source[S], callback Callback, logger *slog.Logger, recorder metrics.Recorder, opts ...Option) (*Controller[S], error) {
	if !v.Kind.Valid() {
		return nil, fmt.Errorf("controller: invalid condition kind %q", v.Kind)
	}
	if v.Constrained == nil {
		return nil, fmt.Errorf("controller %s: nil predicate", v.Kind)
	}
	if callback == nil {
		callback = func(model.ConstraintDelta) {}
	}

	var o options
	for _, opt := range opts {
		opt(&o)
	}

	ids, err := query.GetJobIDsWithConstraint(ctx, v.Kind)
	if err != nil {
		return nil, fmt.Errorf("controller %s: load tracked jobs: %w", v.Kind, err)
	}

	c := &Controller[S]{
		variant:     v,
		source:      source,
		callback:    callback,
		tracked:     model.NewJobSet(ids...),
		logger:      logging.Component(logger, "controller").With("kind", v.Kind),
		recorder:    metrics.OrNoop(recorder),
		constrained: true, // unconfirmed counts as constrained
	}
	if o.initial != nil {
		c.constrained = *o.initial
	}
	c.logger.Debug("controller created", "tracked", len(c.tracked), "constrained", c.constrained)
	return c, nil
}

// Kind returns the condition kind this controller evaluates.
func (c *Controller[S]) Kind() model.ConditionKind {
	return c.variant.Kind
}

// Tracked returns a copy of the tracked job set.
func (c *Controller[S]) Tracked() model.JobSet {
	return c.tracked.Clone()
}

// Constrained returns the verdict of the last evaluation.
func (c *Controller[S]) Constrained() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.constrained
}

// Attached reports whether the controller is subscribed to its source.
func (c *Controller[S]) Attached() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.attached
}

// Replace binds the subscription to ctx: the controller subscribes now and
// unsubscribes when ctx is done. Any previous binding is torn down first.
// An already-done ctx leaves the controller unsubscribed.
func (c *Controller[S]) Replace(ctx context.Context) {
	c.bindMu.Lock()
	defer c.bindMu.Unlock()

	c.detachLocked()
	if ctx.Err() != nil {
		return
	}
	c.attachLocked()

	id := c.binding
	c.stopWatch = context.AfterFunc(ctx, func() {
		c.bindMu.Lock()
		defer c.bindMu.Unlock()
		if c.binding == id {
			c.detachLocked()
		}
	})
}

// Attach subscribes without a lifetime binding. Attaching twice is a no-op.
func (c *Controller[S]) Attach() {
	c.bindMu.Lock()
	defer c.bindMu.Unlock()
	c.attachLocked()
}

// Detach unsubscribes. When Detach returns no further callback is invoked.
func (c *Controller[S]) Detach() {
	c.bindMu.Lock()
	defer c.bindMu.Unlock()
	c.detachLocked()
}

func (c *Controller[S]) attachLocked() {
	c.mu.Lock()
	if c.attached {
		c.mu.Unlock()
		return
	}
	c.attached = true
	c.mu.Unlock()

	c.binding++
	// The source pushes its current state from inside AddListener.
	c.source.AddListener(c)
	c.logger.Debug("attached")
}

func (c *Controller[S]) detachLocked() {
	if c.stopWatch != nil {
		c.stopWatch()
		c.stopWatch = nil
	}
	c.binding++

	c.mu.Lock()
	if !c.attached {
		c.mu.Unlock()
		return
	}
	c.attached = false
	c.mu.Unlock()

	c.source.RemoveListener(c)
	c.logger.Debug("detached")
}

// OnStateChanged implements tracker.Listener. It emits a delta only when
// the verdict flips; every tracked job moves in the new direction.
func (c *Controller[S]) OnStateChanged(state S) {
	start := time.Now()

	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.attached {
		return
	}

	constrained := c.variant.Constrained(state)
	defer func() {
		c.recorder.ObserveEvaluation(string(c.variant.Kind), constrained, time.Since(start))
	}()

	if constrained == c.constrained {
		return
	}
	c.constrained = constrained
	c.logger.Info("constraint changed", "constrained", constrained, "jobs", len(c.tracked))

	if len(c.tracked) == 0 {
		return
	}

	delta := model.ConstraintDelta{Kind: c.variant.Kind}
	if constrained {
		delta.Constrained = c.tracked.Clone()
		c.recorder.AddDeltaJobs(string(c.variant.Kind), metrics.DirectionConstrained, len(c.tracked))
	} else {
		delta.Unconstrained = c.tracked.Clone()
		c.recorder.AddDeltaJobs(string(c.variant.Kind), metrics.DirectionUnconstrained, len(c.tracked))
	}
	c.callback(delta)
}
