// Package constraints builds one controller per condition kind and folds
// their deltas into a per-job view for the scheduler.
package constraints

import (
	"context"
	"log/slog"
	"sync"

	"github.com/me/workgate/internal/controller"
	"github.com/me/workgate/internal/logging"
	"github.com/me/workgate/internal/metrics"
	"github.com/me/workgate/internal/tracker"
	"github.com/me/workgate/pkg/model"
)

// Callback receives every delta, tagged with its kind.
type Callback func(kind model.ConditionKind, constrained, unconstrained model.JobSet)

// Aggregator owns the controllers for every condition kind.
type Aggregator struct {
	logger   *slog.Logger
	callback Callback

	// Set at construction and read-only afterwards.
	controllers []controller.Handle
	tracked     map[model.ConditionKind]model.JobSet
	failed      map[model.ConditionKind]error

	mu          sync.Mutex
	constrained map[model.ConditionKind]map[string]struct{}
}

// Option configures an Aggregator.
type Option func(*buildOptions)

type buildOptions struct {
	prev *Aggregator
}

// WithPrevious seeds each controller with the verdict prev's attached
// controller of the same kind holds, so a rebuild does not re-announce
// transitions that already happened.
func WithPrevious(prev *Aggregator) Option {
	return func(o *buildOptions) { o.prev = prev }
}

// New builds a controller for each condition kind. A controller whose job
// query fails is logged and left out; the others are built normally.
// Nothing is attached until Replace is called.
func New(ctx context.Context, query controller.JobQuery, registry *tracker.Registry, cb Callback, logger *slog.Logger, recorder metrics.Recorder, opts ...Option) *Aggregator {
	if cb == nil {
		cb = func(model.ConditionKind, model.JobSet, model.JobSet) {}
	}
	var o buildOptions
	for _, opt := range opts {
		opt(&o)
	}
	a := &Aggregator{
		logger:      logging.Component(logger, "constraints"),
		callback:    cb,
		tracked:     make(map[model.ConditionKind]model.JobSet),
		failed:      make(map[model.ConditionKind]error),
		constrained: make(map[model.ConditionKind]map[string]struct{}),
	}

	build(ctx, a, o.prev, controller.NetworkVariants(), registry.Network(), query, logger, recorder)
	build(ctx, a, o.prev, controller.BatteryVariants(), registry.Battery(), query, logger, recorder)
	build(ctx, a, o.prev, []controller.Variant[model.StorageState]{controller.StorageNotLow()}, registry.Storage(), query, logger, recorder)

	a.logger.Info("constraint controllers built", "controllers", len(a.controllers), "failed", len(a.failed))
	return a
}

func build[S any](ctx context.Context, a *Aggregator, prev *Aggregator, variants []controller.Variant[S], source controller.Source[S], query controller.JobQuery, logger *slog.Logger, recorder metrics.Recorder) {
	for _, v := range variants {
		var copts []controller.Option
		if constrained, ok := prev.verdict(v.Kind); ok {
			copts = append(copts, controller.WithInitial(constrained))
		}
		c, err := controller.New(ctx, v, query, source, a.onDelta, logger, recorder, copts...)
		if err != nil {
			a.logger.Error("skipping controller", "kind", v.Kind, "error", err)
			a.failed[v.Kind] = err
			continue
		}
		tracked := c.Tracked()
		a.tracked[v.Kind] = tracked
		// Tracked jobs start in the controller's initial verdict.
		set := make(map[string]struct{}, len(tracked))
		if c.Constrained() {
			for _, id := range tracked {
				set[id] = struct{}{}
			}
		}
		a.constrained[v.Kind] = set
		a.controllers = append(a.controllers, c)
	}
}

// verdict returns the constrained flag of the attached controller for kind.
// A detached controller has never evaluated a state, so it reports !ok.
func (a *Aggregator) verdict(kind model.ConditionKind) (constrained bool, ok bool) {
	if a == nil {
		return false, false
	}
	for _, c := range a.controllers {
		if c.Kind() == kind && c.Attached() {
			return c.Constrained(), true
		}
	}
	return false, false
}

// Replace binds every controller with tracked jobs to ctx. Controllers
// without tracked jobs stay detached so their trackers are not started.
func (a *Aggregator) Replace(ctx context.Context) {
	for _, c := range a.controllers {
		if len(a.tracked[c.Kind()]) == 0 {
			c.Detach()
			continue
		}
		c.Replace(ctx)
	}
}

// Detach unsubscribes every controller. No delta is delivered after it returns.
func (a *Aggregator) Detach() {
	for _, c := range a.controllers {
		c.Detach()
	}
}

// Failed returns the kinds whose controller could not be built.
func (a *Aggregator) Failed() map[model.ConditionKind]error {
	out := make(map[model.ConditionKind]error, len(a.failed))
	for k, err := range a.failed {
		out[k] = err
	}
	return out
}

func (a *Aggregator) onDelta(delta model.ConstraintDelta) {
	a.mu.Lock()
	set := a.constrained[delta.Kind]
	for _, id := range delta.Constrained {
		set[id] = struct{}{}
	}
	for _, id := range delta.Unconstrained {
		delete(set, id)
	}
	a.mu.Unlock()

	a.logger.Debug("constraint delta", "kind", delta.Kind,
		"constrained", len(delta.Constrained), "unconstrained", len(delta.Unconstrained))
	a.callback(delta.Kind, delta.Constrained, delta.Unconstrained)
}

// Eligible reports whether no condition kind currently constrains job id.
// A job declaring a kind whose controller failed to build is not eligible.
func (a *Aggregator) Eligible(id string, c model.Constraints) bool {
	return len(a.Blocking(id, c)) == 0
}

// Blocking returns the kinds currently constraining job id, in
// AllConditionKinds order. Kinds declared by c whose controller failed to
// build, or that were not tracked when the aggregator was built, block too.
func (a *Aggregator) Blocking(id string, c model.Constraints) []model.ConditionKind {
	a.mu.Lock()
	defer a.mu.Unlock()

	var out []model.ConditionKind
	for _, kind := range model.AllConditionKinds() {
		set, built := a.constrained[kind]
		if _, ok := set[id]; ok {
			out = append(out, kind)
			continue
		}
		if !c.Has(kind) {
			continue
		}
		if !built || !a.tracks(kind, id) {
			out = append(out, kind)
		}
	}
	return out
}

// tracks reports whether the controller for kind tracks id.
func (a *Aggregator) tracks(kind model.ConditionKind, id string) bool {
	return a.tracked[kind].Contains(id)
}

// Constrained returns the jobs currently constrained for kind.
func (a *Aggregator) Constrained(kind model.ConditionKind) model.JobSet {
	a.mu.Lock()
	defer a.mu.Unlock()
	ids := make([]string, 0, len(a.constrained[kind]))
	for id := range a.constrained[kind] {
		ids = append(ids, id)
	}
	return model.NewJobSet(ids...)
}

// Snapshot reports the status of every condition kind in AllConditionKinds order.
// controllers, tracked and failed are write-once, so only the controllers'
// own locks are taken.
func (a *Aggregator) Snapshot() []model.ConditionStatus {
	byKind := make(map[model.ConditionKind]controller.Handle, len(a.controllers))
	for _, c := range a.controllers {
		byKind[c.Kind()] = c
	}

	out := make([]model.ConditionStatus, 0, len(model.AllConditionKinds()))
	for _, kind := range model.AllConditionKinds() {
		st := model.ConditionStatus{Kind: kind, Source: kind.Source(), Constrained: true}
		if c, ok := byKind[kind]; ok {
			st.Constrained = c.Constrained()
			st.Attached = c.Attached()
			st.Tracked = len(a.tracked[kind])
		} else if err, ok := a.failed[kind]; ok {
			st.Error = err.Error()
		}
		out = append(out, st)
	}
	return out
}
