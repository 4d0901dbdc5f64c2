package monitor

import (
	"errors"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/me/workgate/internal/logging"
	"github.com/me/workgate/internal/tracker"
	"github.com/me/workgate/pkg/model"
)

func TestEvaluateUsage(t *testing.T) {
	assert.Equal(t, model.StorageState{}, EvaluateUsage(Usage{}, 0.1))
	assert.Equal(t,
		model.StorageState{Known: true, FreeBytes: 50, TotalBytes: 100},
		EvaluateUsage(Usage{Free: 50, Total: 100}, 0.1))
	assert.True(t, EvaluateUsage(Usage{Free: 10, Total: 100}, 0.1).Low)
	assert.False(t, EvaluateUsage(Usage{Free: 11, Total: 100}, 0.1).Low)
}

// states collects pushed samples.
type states[S any] struct {
	mu  sync.Mutex
	got []S
}

func (s *states[S]) push(v S) {
	s.mu.Lock()
	s.got = append(s.got, v)
	s.mu.Unlock()
}

func (s *states[S]) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.got)
}

func (s *states[S]) last() S {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.got[len(s.got)-1]
}

func TestStorageMonitor_FileEventResamples(t *testing.T) {
	dir := t.TempDir()
	var free atomic.Uint64
	free.Store(900)
	m := NewStorage(StorageOptions{
		Interval: time.Hour,
		Path:     dir,
		LowRatio: 0.1,
		Stat: func(string) (Usage, error) {
			return Usage{Free: free.Load(), Total: 1000}, nil
		},
	}, logging.Discard())

	got := &states[model.StorageState]{}
	require.NoError(t, m.Start(got.push))
	defer m.Stop()

	require.Eventually(t, func() bool { return got.len() == 1 }, 2*time.Second, 5*time.Millisecond)
	assert.False(t, got.last().Low)
	assert.Equal(t, uint64(900), m.Snapshot().FreeBytes)

	free.Store(50)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "blob"), []byte("x"), 0o644))

	require.Eventually(t, func() bool { return got.len() >= 2 && got.last().Low }, 2*time.Second, 5*time.Millisecond)
}

func TestStorageMonitor_StatFailureIsUnavailable(t *testing.T) {
	m := NewStorage(StorageOptions{
		Interval: time.Hour,
		Path:     t.TempDir(),
		Stat:     func(string) (Usage, error) { return Usage{}, errors.New("EACCES") },
	}, logging.Discard())
	assert.ErrorIs(t, m.Start(func(model.StorageState) {}), tracker.ErrMonitorUnavailable)
	m.Stop()
}

func TestPoller_OnlyChangedSamplesAreDelivered(t *testing.T) {
	var n atomic.Int32
	probe := func() int {
		// 0,0,0,1,1,1,2,...
		return int(n.Add(1)-1) / 3
	}
	p := newPoller("test", 5*time.Millisecond, probe, logging.Discard())

	got := &states[int]{}
	require.NoError(t, p.start(got.push))
	require.Eventually(t, func() bool { return got.len() >= 3 }, 2*time.Second, 5*time.Millisecond)
	p.stop()

	got.mu.Lock()
	defer got.mu.Unlock()
	for i := 1; i < len(got.got); i++ {
		assert.NotEqual(t, got.got[i-1], got.got[i], "sample %d repeats", i)
		assert.Less(t, got.got[i-1], got.got[i])
	}
}

func TestPoller_StartTwiceFails(t *testing.T) {
	p := newPoller("test", time.Hour, func() int { return 1 }, logging.Discard())
	require.NoError(t, p.start(func(int) {}))
	defer p.stop()
	assert.Error(t, p.start(func(int) {}))
}

func TestPoller_NoDeliveryAfterStop(t *testing.T) {
	p := newPoller("test", time.Millisecond, func() int { return int(time.Now().UnixNano()) }, logging.Discard())
	got := &states[int]{}
	require.NoError(t, p.start(got.push))
	require.Eventually(t, func() bool { return got.len() > 0 }, 2*time.Second, time.Millisecond)
	p.stop()

	n := got.len()
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, n, got.len())
}
