package constraints

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/me/workgate/internal/logging"
	"github.com/me/workgate/internal/tracker"
	"github.com/me/workgate/internal/tracker/trackertest"
	"github.com/me/workgate/pkg/model"
)

var (
	online  = model.NetworkState{Known: true, Connected: true, Validated: true}
	offline = model.NetworkState{Known: true}
	full    = model.BatteryState{Known: true, Present: true, Level: 90}
	low     = model.BatteryState{Known: true, Present: true, Level: 5}
)

type fakeQuery struct {
	ids  map[model.ConditionKind][]string
	fail map[model.ConditionKind]error
}

func (q fakeQuery) GetJobIDsWithConstraint(_ context.Context, kind model.ConditionKind) ([]string, error) {
	if err := q.fail[kind]; err != nil {
		return nil, err
	}
	return q.ids[kind], nil
}

type update struct {
	kind          model.ConditionKind
	constrained   model.JobSet
	unconstrained model.JobSet
}

type recorder struct {
	mu      sync.Mutex
	updates []update
}

func (r *recorder) OnConstraintUpdated(kind model.ConditionKind, constrained, unconstrained model.JobSet) {
	r.mu.Lock()
	r.updates = append(r.updates, update{kind, constrained, unconstrained})
	r.mu.Unlock()
}

func (r *recorder) all() []update {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]update(nil), r.updates...)
}

type harness struct {
	net     *trackertest.Monitor[model.NetworkState]
	battery *trackertest.Monitor[model.BatteryState]
	storage *trackertest.Monitor[model.StorageState]
	reg     *tracker.Registry
	rec     *recorder
}

func newHarness() *harness {
	h := &harness{
		net:     trackertest.NewMonitor(online),
		battery: trackertest.NewMonitor(full),
		storage: trackertest.NewMonitor(model.StorageState{Known: true, FreeBytes: 90, TotalBytes: 100}),
		rec:     &recorder{},
	}
	h.reg = tracker.NewRegistry(tracker.Monitors{
		Network: func() tracker.Monitor[model.NetworkState] { return h.net },
		Battery: func() tracker.Monitor[model.BatteryState] { return h.battery },
		Storage: func() tracker.Monitor[model.StorageState] { return h.storage },
	}, logging.Discard(), nil)
	return h
}

func netJob() model.Constraints {
	return model.Constraints{RequiredNetwork: model.NetworkAny}
}

func TestAggregator_SeedsTrackedJobsAsConstrained(t *testing.T) {
	h := newHarness()
	q := fakeQuery{ids: map[model.ConditionKind][]string{model.ConditionNetworkAny: {"A", "B"}}}
	agg := New(context.Background(), q, h.reg, h.rec.OnConstraintUpdated, logging.Discard(), nil)

	assert.False(t, agg.Eligible("A", netJob()))
	assert.Equal(t, []model.ConditionKind{model.ConditionNetworkAny}, agg.Blocking("A", netJob()))
	assert.True(t, agg.Eligible("Z", model.Constraints{}), "unconstrained job is always eligible")
	assert.Empty(t, h.rec.all())
}

func TestAggregator_ForwardsDeltas(t *testing.T) {
	h := newHarness()
	q := fakeQuery{ids: map[model.ConditionKind][]string{
		model.ConditionNetworkAny:    {"A", "B"},
		model.ConditionBatteryNotLow: {"B"},
	}}
	agg := New(context.Background(), q, h.reg, h.rec.OnConstraintUpdated, logging.Discard(), nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	agg.Replace(ctx)

	both := model.Constraints{RequiredNetwork: model.NetworkAny, RequiresBatteryNotLow: true}
	assert.True(t, agg.Eligible("A", netJob()))
	assert.True(t, agg.Eligible("B", both))

	h.battery.Emit(low)
	assert.True(t, agg.Eligible("A", netJob()))
	assert.False(t, agg.Eligible("B", both))
	assert.Equal(t, []model.ConditionKind{model.ConditionBatteryNotLow}, agg.Blocking("B", both))

	h.net.Emit(offline)
	assert.Equal(t, []model.ConditionKind{model.ConditionNetworkAny, model.ConditionBatteryNotLow}, agg.Blocking("B", both))

	updates := h.rec.all()
	require.Len(t, updates, 4)
	assert.Equal(t, update{model.ConditionBatteryNotLow, model.JobSet{"B"}, nil}, updates[2])
	assert.Equal(t, update{model.ConditionNetworkAny, model.JobSet{"A", "B"}, nil}, updates[3])
}

func TestAggregator_FailedControllerIsSkipped(t *testing.T) {
	h := newHarness()
	q := fakeQuery{
		ids:  map[model.ConditionKind][]string{model.ConditionNetworkAny: {"A"}, model.ConditionStorageNotLow: {"S"}},
		fail: map[model.ConditionKind]error{model.ConditionBatteryCharging: errors.New("disk I/O error")},
	}
	agg := New(context.Background(), q, h.reg, nil, logging.Discard(), nil)
	agg.Replace(context.Background())
	defer agg.Detach()

	failed := agg.Failed()
	require.Len(t, failed, 1)
	assert.ErrorContains(t, failed[model.ConditionBatteryCharging], "disk I/O error")

	assert.True(t, agg.Eligible("A", netJob()))
	assert.True(t, agg.Eligible("S", model.Constraints{RequiresStorageNotLow: true}))
	assert.False(t, agg.Eligible("C", model.Constraints{RequiresCharging: true}))

	snap := agg.Snapshot()
	require.Len(t, snap, len(model.AllConditionKinds()))
	for _, st := range snap {
		if st.Kind == model.ConditionBatteryCharging {
			assert.Contains(t, st.Error, "disk I/O error")
			assert.True(t, st.Constrained)
		} else {
			assert.Empty(t, st.Error)
		}
	}
}

func TestAggregator_UntrackedDeclaredKindBlocks(t *testing.T) {
	h := newHarness()
	agg := New(context.Background(), fakeQuery{}, h.reg, nil, logging.Discard(), nil)
	agg.Replace(context.Background())
	assert.False(t, agg.Eligible("new", netJob()), "job submitted after the build waits for a refresh")
}

func TestAggregator_EmptyControllersDoNotStartMonitors(t *testing.T) {
	h := newHarness()
	q := fakeQuery{ids: map[model.ConditionKind][]string{model.ConditionNetworkUnmetered: {"A"}}}
	agg := New(context.Background(), q, h.reg, nil, logging.Discard(), nil)
	agg.Replace(context.Background())

	assert.Equal(t, 1, h.net.Starts())
	assert.Equal(t, 0, h.battery.Starts())
	assert.Equal(t, 0, h.storage.Starts())
	assert.Equal(t, 1, h.reg.Network().Listeners(), "only the unmetered controller subscribes")

	agg.Detach()
	assert.Equal(t, 1, h.net.Stops())
}

func TestAggregator_SharedTrackerAcrossVariants(t *testing.T) {
	h := newHarness()
	q := fakeQuery{ids: map[model.ConditionKind][]string{
		model.ConditionNetworkAny:       {"A"},
		model.ConditionNetworkUnmetered: {"B"},
		model.ConditionNetworkMetered:   {"C"},
	}}
	agg := New(context.Background(), q, h.reg, nil, logging.Discard(), nil)
	ctx, cancel := context.WithCancel(context.Background())
	agg.Replace(ctx)

	assert.Equal(t, 1, h.net.Starts())
	assert.Equal(t, 3, h.reg.Network().Listeners())
	assert.True(t, agg.Eligible("B", model.Constraints{RequiredNetwork: model.NetworkUnmetered}))
	assert.False(t, agg.Eligible("C", model.Constraints{RequiredNetwork: model.NetworkMetered}))

	cancel()
	require.Eventually(t, func() bool { return h.net.Stops() == 1 }, timeout, tick)
	assert.Equal(t, 0, h.reg.Network().Listeners())
}

func TestAggregator_NoDeltasAfterDetach(t *testing.T) {
	h := newHarness()
	q := fakeQuery{ids: map[model.ConditionKind][]string{model.ConditionNetworkAny: {"A"}}}
	agg := New(context.Background(), q, h.reg, h.rec.OnConstraintUpdated, logging.Discard(), nil)
	agg.Replace(context.Background())
	n := len(h.rec.all())

	agg.Detach()
	h.net.Emit(offline)
	assert.Len(t, h.rec.all(), n)
}

func TestAggregator_WithPreviousKeepsVerdictSilent(t *testing.T) {
	h := newHarness()
	ctx := context.Background()
	first := New(ctx, fakeQuery{ids: map[model.ConditionKind][]string{
		model.ConditionNetworkAny:    {"A"},
		model.ConditionBatteryNotLow: {"A"},
	}}, h.reg, h.rec.OnConstraintUpdated, logging.Discard(), nil)
	first.Replace(ctx)
	h.battery.Emit(low)
	require.Len(t, h.rec.all(), 3)

	// "B" was submitted after the first build.
	q := fakeQuery{ids: map[model.ConditionKind][]string{
		model.ConditionNetworkAny:    {"A", "B"},
		model.ConditionBatteryNotLow: {"A", "B"},
	}}
	second := New(ctx, q, h.reg, h.rec.OnConstraintUpdated, logging.Discard(), nil, WithPrevious(first))
	second.Replace(ctx)
	first.Detach()

	assert.Len(t, h.rec.all(), 3, "rebuild with unchanged state must not emit")
	// The new job inherits each kind's verdict without a delta.
	both := model.Constraints{RequiredNetwork: model.NetworkAny, RequiresBatteryNotLow: true}
	assert.Equal(t, []model.ConditionKind{model.ConditionBatteryNotLow}, second.Blocking("B", both))

	h.net.Emit(offline)
	updates := h.rec.all()
	require.Len(t, updates, 4)
	assert.Equal(t, update{model.ConditionNetworkAny, model.JobSet{"A", "B"}, nil}, updates[3])
}

func TestAggregator_WithPreviousIgnoresDetachedControllers(t *testing.T) {
	h := newHarness()
	ctx := context.Background()
	// No jobs: every controller of the first build stays detached.
	first := New(ctx, fakeQuery{}, h.reg, h.rec.OnConstraintUpdated, logging.Discard(), nil)
	first.Replace(ctx)

	q := fakeQuery{ids: map[model.ConditionKind][]string{model.ConditionNetworkAny: {"A"}}}
	second := New(ctx, q, h.reg, h.rec.OnConstraintUpdated, logging.Discard(), nil, WithPrevious(first))
	assert.False(t, second.Eligible("A", netJob()), "unconfirmed job starts constrained")

	second.Replace(ctx)
	assert.Equal(t, []update{{model.ConditionNetworkAny, nil, model.JobSet{"A"}}}, h.rec.all())
}

func TestAggregator_BlockingDoesNotCopyTrackedSets(t *testing.T) {
	h := newHarness()
	ids := make([]string, 10000)
	for i := range ids {
		ids[i] = fmt.Sprintf("job_%05d", i)
	}
	q := fakeQuery{ids: map[model.ConditionKind][]string{
		model.ConditionNetworkAny:    ids,
		model.ConditionBatteryNotLow: ids,
		model.ConditionStorageNotLow: ids,
	}}
	agg := New(context.Background(), q, h.reg, h.rec.OnConstraintUpdated, logging.Discard(), nil)
	agg.Replace(context.Background())
	defer agg.Detach()

	c := model.Constraints{RequiredNetwork: model.NetworkAny, RequiresBatteryNotLow: true, RequiresStorageNotLow: true}
	require.Empty(t, agg.Blocking(ids[0], c))

	const calls = 100
	var before, after runtime.MemStats
	runtime.ReadMemStats(&before)
	for i := 0; i < calls; i++ {
		agg.Blocking(ids[i], c)
	}
	runtime.ReadMemStats(&after)

	perCall := (after.TotalAlloc - before.TotalAlloc) / calls
	assert.Less(t, perCall, uint64(16<<10), "bytes allocated per Blocking call")
}

const (
	timeout = time.Second
	tick    = time.Millisecond
)
