package tracker

import (
	"log/slog"
	"sync"

	"github.com/me/workgate/internal/logging"
	"github.com/me/workgate/internal/metrics"
	"github.com/me/workgate/pkg/model"
)

// Monitors holds one monitor factory per source. A nil factory, or one that
// returns nil, yields an Unavailable monitor.
type Monitors struct {
	Network func() Monitor[model.NetworkState]
	Battery func() Monitor[model.BatteryState]
	Storage func() Monitor[model.StorageState]
}

// Handle is the type-erased view of a Tracker used for status reporting.
type Handle interface {
	Source() model.Source
	Listeners() int
	Running() bool
}

// Registry maps each source to its single shared Tracker. Trackers are
// created on first access; a factory is invoked at most once per source.
type Registry struct {
	monitors Monitors
	parent   *slog.Logger
	logger   *slog.Logger
	recorder metrics.Recorder

	mu       sync.Mutex
	trackers map[model.Source]Handle
}

// NewRegistry creates a Registry. It is passed explicitly to every
// component that needs trackers.
func NewRegistry(monitors Monitors, logger *slog.Logger, recorder metrics.Recorder) *Registry {
	return &Registry{
		monitors: monitors,
		parent:   logger,
		logger:   logging.Component(logger, "tracker-registry"),
		recorder: metrics.OrNoop(recorder),
		trackers: make(map[model.Source]Handle),
	}
}

// Network returns the shared network tracker.
func (r *Registry) Network() *Tracker[model.NetworkState] {
	return lookup(r, model.SourceNetwork, r.monitors.Network)
}

// Battery returns the shared battery tracker.
func (r *Registry) Battery() *Tracker[model.BatteryState] {
	return lookup(r, model.SourceBattery, r.monitors.Battery)
}

// Storage returns the shared storage tracker.
func (r *Registry) Storage() *Tracker[model.StorageState] {
	return lookup(r, model.SourceStorage, r.monitors.Storage)
}

// Get returns the tracker for source if it has been created.
func (r *Registry) Get(source model.Source) (Handle, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	h, ok := r.trackers[source]
	return h, ok
}

// Handles returns every created tracker in AllSources order.
func (r *Registry) Handles() []Handle {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Handle
	for _, src := range model.AllSources() {
		if h, ok := r.trackers[src]; ok {
			out = append(out, h)
		}
	}
	return out
}

func lookup[S any](r *Registry, source model.Source, factory func() Monitor[S]) *Tracker[S] {
	r.mu.Lock()
	defer r.mu.Unlock()

	if h, ok := r.trackers[source]; ok {
		return h.(*Tracker[S])
	}

	var m Monitor[S]
	if factory != nil {
		m = factory()
	}
	if m == nil {
		m = Unavailable[S]{}
		r.logger.Warn("no monitor for source", "source", source)
	}
	t := New(source, m, r.parent, r.recorder)
	r.trackers[source] = t
	r.logger.Debug("tracker created", "source", source)
	return t
}
