package monitor

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/me/workgate/internal/logging"
	"github.com/me/workgate/internal/tracker"
	"github.com/me/workgate/pkg/model"
)

// Usage is the capacity of the volume holding a path.
type Usage struct {
	Free  uint64
	Total uint64
}

// StorageOptions configures a StorageMonitor.
type StorageOptions struct {
	Interval time.Duration
	// Path is a directory on the volume to watch.
	Path string
	// LowRatio is the free/total ratio at or below which storage is low.
	LowRatio float64
	// Stat reports volume usage. Defaults to statfs(2).
	Stat func(path string) (Usage, error)
}

// StorageMonitor samples free space on a schedule and re-samples whenever
// files are created, written or removed in the watched directory.
type StorageMonitor struct {
	opts   StorageOptions
	logger *slog.Logger
	p      *poller[model.StorageState]

	mu      sync.Mutex
	watcher *fsnotify.Watcher
	done    chan struct{}
	wg      sync.WaitGroup
}

var _ tracker.Monitor[model.StorageState] = (*StorageMonitor)(nil)

// NewStorage returns a StorageMonitor.
func NewStorage(opts StorageOptions, logger *slog.Logger) *StorageMonitor {
	if opts.Stat == nil {
		opts.Stat = statfs
	}
	m := &StorageMonitor{opts: opts, logger: logging.Component(logger, "monitor").With("source", model.SourceStorage)}
	m.p = newPoller(string(model.SourceStorage), opts.Interval, m.probe, m.logger)
	return m
}

// Start begins polling. A failure to set up the file watcher is logged and
// polling continues without it.
func (m *StorageMonitor) Start(update func(model.StorageState)) error {
	if _, err := m.opts.Stat(m.opts.Path); err != nil {
		return fmt.Errorf("%w: statfs %s: %v", tracker.ErrMonitorUnavailable, m.opts.Path, err)
	}
	if err := m.p.start(update); err != nil {
		return err
	}

	w, err := fsnotify.NewWatcher()
	if err == nil {
		err = w.Add(m.opts.Path)
		if err != nil {
			w.Close()
		}
	}
	if err != nil {
		m.logger.Warn("file watcher disabled", "path", m.opts.Path, "error", err)
		return nil
	}

	m.mu.Lock()
	m.watcher = w
	m.done = make(chan struct{})
	m.wg.Add(1)
	go m.watchLoop(w, m.done)
	m.mu.Unlock()
	return nil
}

func (m *StorageMonitor) Stop() {
	m.mu.Lock()
	w, done := m.watcher, m.done
	m.watcher, m.done = nil, nil
	m.mu.Unlock()

	if w != nil {
		close(done)
		if err := w.Close(); err != nil {
			m.logger.Warn("close file watcher", "error", err)
		}
		m.wg.Wait()
	}
	m.p.stop()
}

func (m *StorageMonitor) Snapshot() model.StorageState { return m.p.snapshot() }

func (m *StorageMonitor) watchLoop(w *fsnotify.Watcher, done <-chan struct{}) {
	defer m.wg.Done()
	for {
		select {
		case <-done:
			return
		case event, ok := <-w.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) != 0 {
				m.p.poll()
			}
		case err, ok := <-w.Errors:
			if !ok {
				return
			}
			m.logger.Warn("file watcher error", "error", err)
		}
	}
}

func (m *StorageMonitor) probe() model.StorageState {
	u, err := m.opts.Stat(m.opts.Path)
	if err != nil {
		m.logger.Warn("statfs", "path", m.opts.Path, "error", err)
		return model.StorageState{}
	}
	return EvaluateUsage(u, m.opts.LowRatio)
}

// EvaluateUsage converts usage into a StorageState. A volume reporting
// zero capacity is unknown.
func EvaluateUsage(u Usage, lowRatio float64) model.StorageState {
	if u.Total == 0 {
		return model.StorageState{}
	}
	return model.StorageState{
		Known:      true,
		FreeBytes:  u.Free,
		TotalBytes: u.Total,
		Low:        float64(u.Free)/float64(u.Total) <= lowRatio,
	}
}
