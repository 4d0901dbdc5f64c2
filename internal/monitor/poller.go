// Package monitor implements the OS monitors behind the state trackers.
// Each monitor samples one signal source on a gocron schedule and pushes
// the samples that differ from the previous one.
package monitor

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"
)

// poller runs probe every interval and forwards changed samples.
type poller[S comparable] struct {
	name     string
	interval time.Duration
	probe    func() S
	logger   *slog.Logger

	mu      sync.Mutex
	sched   gocron.Scheduler
	update  func(S)
	last    S
	sampled bool

	// deliverMu keeps samples ordered across the schedule and triggers.
	deliverMu sync.Mutex
}

func newPoller[S comparable](name string, interval time.Duration, probe func() S, logger *slog.Logger) *poller[S] {
	return &poller[S]{name: name, interval: interval, probe: probe, logger: logger}
}

// start samples once for Snapshot, then schedules probes. The first
// scheduled run fires immediately on the scheduler goroutine.
func (p *poller[S]) start(update func(S)) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.sched != nil {
		return fmt.Errorf("%s monitor already started", p.name)
	}

	s, err := gocron.NewScheduler(gocron.WithStopTimeout(5 * time.Second))
	if err != nil {
		return fmt.Errorf("create %s scheduler: %w", p.name, err)
	}
	_, err = s.NewJob(
		gocron.DurationJob(p.interval),
		gocron.NewTask(p.poll),
		gocron.WithName(p.name+"-poll"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
		gocron.WithStartAt(gocron.WithStartImmediately()),
	)
	if err != nil {
		_ = s.Shutdown()
		return fmt.Errorf("schedule %s poll: %w", p.name, err)
	}

	p.last = p.probe()
	p.sampled = false
	p.update = update
	p.sched = s
	s.Start()
	p.logger.Debug("monitor started", "interval", p.interval)
	return nil
}

func (p *poller[S]) stop() {
	p.mu.Lock()
	s := p.sched
	p.sched = nil
	p.update = nil
	p.mu.Unlock()

	if s == nil {
		return
	}
	if err := s.Shutdown(); err != nil {
		p.logger.Warn("monitor shutdown", "error", err)
	}
	p.logger.Debug("monitor stopped")
}

func (p *poller[S]) snapshot() S {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.last
}

// poll probes and delivers the sample if it differs from the last one.
// The first sample after start is always delivered.
func (p *poller[S]) poll() {
	p.deliverMu.Lock()
	defer p.deliverMu.Unlock()

	state := p.probe()

	p.mu.Lock()
	update := p.update
	changed := !p.sampled || state != p.last
	p.last = state
	p.sampled = true
	p.mu.Unlock()

	if update != nil && changed {
		update(state)
	}
}
