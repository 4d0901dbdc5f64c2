package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/me/workgate/internal/constraints"
	"github.com/me/workgate/internal/events"
	"github.com/me/workgate/internal/logging"
	"github.com/me/workgate/internal/metrics"
	"github.com/me/workgate/internal/store"
	"github.com/me/workgate/internal/tracker"
	"github.com/me/workgate/pkg/model"
)

// Config holds scheduler configuration.
type Config struct {
	PollInterval time.Duration
	// RefreshInterval rebuilds the controllers periodically even without
	// a Notify. Zero disables the periodic rebuild.
	RefreshInterval time.Duration
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{PollInterval: 2 * time.Second, RefreshInterval: 30 * time.Second}
}

// Option configures optional Loop dependencies.
type Option func(*Loop)

// WithPublisher sets the sink for constraint events.
func WithPublisher(p events.Publisher) Option {
	return func(l *Loop) {
		l.publisher = p
	}
}

// WithRecorder sets the metrics recorder.
func WithRecorder(r metrics.Recorder) Option {
	return func(l *Loop) {
		l.recorder = metrics.OrNoop(r)
	}
}

// Loop implements the Scheduler interface with a polling-based scheduling
// loop that also wakes on constraint changes.
type Loop struct {
	store      store.Store
	registry   *tracker.Registry
	dispatcher Dispatcher
	publisher  events.Publisher
	recorder   metrics.Recorder
	config     Config
	logger     *slog.Logger
	parent     *slog.Logger

	stopCh   chan struct{}
	doneCh   chan struct{}
	stopOnce sync.Once
	wake     chan struct{}

	// refreshMu serializes Refresh.
	refreshMu sync.Mutex

	mu        sync.Mutex
	agg       *constraints.Aggregator
	aggCancel context.CancelFunc
	dirty     bool
}

// NewLoop creates a new scheduler loop.
func NewLoop(st store.Store, reg *tracker.Registry, disp Dispatcher, cfg Config, logger *slog.Logger, opts ...Option) *Loop {
	if disp == nil {
		disp = LogDispatcher{Logger: logging.Component(logger, "dispatcher")}
	}
	l := &Loop{
		store:      st,
		registry:   reg,
		dispatcher: disp,
		publisher:  events.NoopPublisher{},
		recorder:   metrics.NoopRecorder{},
		config:     cfg,
		logger:     logging.Component(logger, "scheduler"),
		parent:     logger,
		stopCh:     make(chan struct{}),
		doneCh:     make(chan struct{}),
		wake:       make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Start refreshes the controllers and runs the loop. Blocks until ctx is
// cancelled or Stop is called. Controllers are detached on return.
func (l *Loop) Start(ctx context.Context) error {
	defer close(l.doneCh)
	defer l.detach()

	if err := l.Refresh(ctx); err != nil {
		return fmt.Errorf("initial refresh: %w", err)
	}
	l.logger.Info("scheduler started", "poll_interval", l.config.PollInterval, "refresh_interval", l.config.RefreshInterval)

	ticker := time.NewTicker(l.config.PollInterval)
	defer ticker.Stop()

	var refresh <-chan time.Time
	if l.config.RefreshInterval > 0 {
		rt := time.NewTicker(l.config.RefreshInterval)
		defer rt.Stop()
		refresh = rt.C
	}

	for {
		select {
		case <-ctx.Done():
			l.logger.Info("scheduler stopping (context cancelled)")
			return ctx.Err()
		case <-l.stopCh:
			l.logger.Info("scheduler stopping (stop called)")
			return nil
		case <-refresh:
			l.markDirty()
		case <-l.wake:
		case <-ticker.C:
		}

		if l.takeDirty() {
			if err := l.Refresh(ctx); err != nil {
				l.logger.Error("refresh error", "error", err)
				l.markDirty()
			}
		}
		if err := l.Tick(ctx); err != nil {
			l.logger.Error("tick error", "error", err)
		}
	}
}

// Stop gracefully shuts down the scheduler and waits for the current tick to finish.
func (l *Loop) Stop() error {
	l.stopOnce.Do(func() { close(l.stopCh) })
	<-l.doneCh
	return nil
}

// Notify marks the controllers stale and wakes the loop.
func (l *Loop) Notify() {
	l.markDirty()
	l.signal()
}

func (l *Loop) signal() {
	select {
	case l.wake <- struct{}{}:
	default:
	}
}

func (l *Loop) markDirty() {
	l.mu.Lock()
	l.dirty = true
	l.mu.Unlock()
}

func (l *Loop) takeDirty() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	d := l.dirty
	l.dirty = false
	return d
}

// Refresh builds a new aggregator from the store and attaches it before
// detaching the previous one, so shared trackers keep running across the
// swap.
func (l *Loop) Refresh(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	l.refreshMu.Lock()
	defer l.refreshMu.Unlock()

	// Seeding from the current aggregator keeps an unchanged verdict silent.
	agg := constraints.New(ctx, l.store, l.registry, l.OnConstraintUpdated, l.parent, l.recorder,
		constraints.WithPrevious(l.aggregator()))
	if failed := agg.Failed(); len(failed) == len(model.AllConditionKinds()) {
		errs := make([]error, 0, len(failed))
		for _, err := range failed {
			errs = append(errs, err)
		}
		return fmt.Errorf("build constraint controllers: %w", errors.Join(errs...))
	}

	aggCtx, cancel := context.WithCancel(ctx)
	agg.Replace(aggCtx)

	l.mu.Lock()
	old, oldCancel := l.agg, l.aggCancel
	l.agg, l.aggCancel = agg, cancel
	l.mu.Unlock()

	if old != nil {
		oldCancel()
		old.Detach()
	}
	l.logger.Debug("constraint controllers refreshed")
	return nil
}

func (l *Loop) detach() {
	l.mu.Lock()
	agg, cancel := l.agg, l.aggCancel
	l.agg, l.aggCancel = nil, nil
	l.mu.Unlock()

	if agg != nil {
		cancel()
		agg.Detach()
	}
}

func (l *Loop) aggregator() *constraints.Aggregator {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.agg
}

// OnConstraintUpdated receives every controller delta. It publishes the
// delta and wakes the loop; job state changes happen on the next tick.
func (l *Loop) OnConstraintUpdated(kind model.ConditionKind, constrained, unconstrained model.JobSet) {
	l.logger.Info("constraint updated", "kind", kind,
		"constrained", len(constrained), "unconstrained", len(unconstrained))
	if err := l.publisher.Publish(events.NewEvent(kind, constrained, unconstrained)); err != nil {
		l.logger.Warn("publish constraint event", "kind", kind, "error", err)
	}
	l.signal()
}

// Constraints reports the status of every condition kind. Before the
// first Refresh every kind reads as constrained and detached.
func (l *Loop) Constraints() []model.ConditionStatus {
	if agg := l.aggregator(); agg != nil {
		return agg.Snapshot()
	}
	out := make([]model.ConditionStatus, 0, len(model.AllConditionKinds()))
	for _, kind := range model.AllConditionKinds() {
		out = append(out, model.ConditionStatus{Kind: kind, Source: kind.Source(), Constrained: true})
	}
	return out
}

// Blocking returns the kinds holding job back. Terminal jobs are never blocked.
func (l *Loop) Blocking(job *model.Job) []model.ConditionKind {
	if job.State.IsTerminal() {
		return nil
	}
	agg := l.aggregator()
	if agg == nil {
		return job.Constraints.Kinds()
	}
	return agg.Blocking(job.ID, job.Constraints)
}

// Tick runs a single scheduling iteration.
func (l *Loop) Tick(ctx context.Context) error {
	// Phase 1: Halt RUNNING jobs that became constrained.
	if err := l.haltConstrained(ctx); err != nil {
		return fmt.Errorf("phase 1 (halt): %w", err)
	}

	// Phase 2: Dispatch ENQUEUED jobs whose constraints are all met.
	if err := l.dispatchEligible(ctx); err != nil {
		return fmt.Errorf("phase 2 (dispatch): %w", err)
	}
	return nil
}

func (l *Loop) haltConstrained(ctx context.Context) error {
	running, err := l.store.GetJobsByState(ctx, model.JobStateRunning)
	if err != nil {
		return err
	}

	for _, job := range running {
		blocking := l.Blocking(job)
		if len(blocking) == 0 {
			continue
		}
		if err := l.dispatcher.Halt(ctx, job); err != nil {
			l.logger.Error("halt job", "job_id", job.ID, "error", err)
			l.recorder.IncDispatch("halt_failed")
			continue
		}
		job.State = model.JobStateEnqueued
		job.HaltCount++
		job.StartedAt = nil
		if err := l.store.UpdateJob(ctx, job); err != nil {
			l.logger.Error("update halted job", "job_id", job.ID, "error", err)
			continue
		}
		l.recorder.IncDispatch("halt")
		l.logger.Info("job halted", "job_id", job.ID, "blocking", blocking, "halt_count", job.HaltCount)
	}
	return nil
}

func (l *Loop) dispatchEligible(ctx context.Context) error {
	enqueued, err := l.store.GetJobsByState(ctx, model.JobStateEnqueued)
	if err != nil {
		return err
	}

	for _, job := range enqueued {
		if blocking := l.Blocking(job); len(blocking) > 0 {
			l.logger.Debug("job waiting", "job_id", job.ID, "blocking", blocking)
			continue
		}
		if err := l.dispatcher.Dispatch(ctx, job); err != nil {
			l.logger.Error("dispatch job", "job_id", job.ID, "error", err)
			l.recorder.IncDispatch("dispatch_failed")
			continue
		}
		now := time.Now().UTC()
		job.State = model.JobStateRunning
		job.StartedAt = &now
		if err := l.store.UpdateJob(ctx, job); err != nil {
			l.logger.Error("update dispatched job", "job_id", job.ID, "error", err)
			continue
		}
		l.recorder.IncDispatch("dispatch")
		l.logger.Info("job dispatched", "job_id", job.ID)
	}
	return nil
}
