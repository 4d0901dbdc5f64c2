package tracker

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/me/workgate/internal/logging"
	"github.com/me/workgate/internal/tracker/trackertest"
	"github.com/me/workgate/pkg/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_SameInstancePerSource(t *testing.T) {
	var factoryCalls atomic.Int32
	mon := trackertest.NewMonitor(model.NetworkState{Known: true, Connected: true})
	reg := NewRegistry(Monitors{
		Network: func() Monitor[model.NetworkState] {
			factoryCalls.Add(1)
			return mon
		},
	}, logging.Discard(), nil)

	first := reg.Network()
	for i := 0; i < 5; i++ {
		assert.Same(t, first, reg.Network())
	}
	assert.Equal(t, int32(1), factoryCalls.Load())

	h, ok := reg.Get(model.SourceNetwork)
	require.True(t, ok)
	assert.Equal(t, model.SourceNetwork, h.Source())
}

func TestRegistry_ConcurrentFirstAccess(t *testing.T) {
	var factoryCalls atomic.Int32
	mon := trackertest.NewMonitor(model.BatteryState{Known: true, Level: 80})
	reg := NewRegistry(Monitors{
		Battery: func() Monitor[model.BatteryState] {
			factoryCalls.Add(1)
			return mon
		},
	}, logging.Discard(), nil)

	const n = 16
	got := make([]*Tracker[model.BatteryState], n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			tr := reg.Battery()
			tr.AddListener(&trackertest.Listener[model.BatteryState]{})
			got[i] = tr
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int32(1), factoryCalls.Load())
	assert.Equal(t, 1, mon.Starts())
	for _, tr := range got {
		assert.Same(t, got[0], tr)
	}
	assert.Equal(t, n, got[0].Listeners())
}

func TestRegistry_MissingFactoryIsUnavailable(t *testing.T) {
	reg := NewRegistry(Monitors{}, logging.Discard(), nil)
	tr := reg.Storage()
	l := &trackertest.Listener[model.StorageState]{}
	tr.AddListener(l)

	assert.False(t, tr.Running())
	assert.Equal(t, []model.StorageState{{}}, l.States())
}

func TestRegistry_Handles(t *testing.T) {
	reg := NewRegistry(Monitors{}, logging.Discard(), nil)
	_, ok := reg.Get(model.SourceBattery)
	assert.False(t, ok)

	reg.Storage()
	reg.Network()
	handles := reg.Handles()
	require.Len(t, handles, 2)
	assert.Equal(t, model.SourceNetwork, handles[0].Source())
	assert.Equal(t, model.SourceStorage, handles[1].Source())
}
