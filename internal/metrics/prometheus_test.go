package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrometheusRecorder(t *testing.T) {
	reg := prom.NewRegistry()
	pr := NewPrometheusRecorder(reg)
	pr.SetTrackerListeners("network", 3)
	pr.IncMonitorTransition("network", "start", "ok")
	pr.ObserveEvaluation("NETWORK_ANY", true, 50*time.Microsecond)
	pr.AddDeltaJobs("NETWORK_ANY", DirectionConstrained, 2)
	pr.AddDeltaJobs("NETWORK_ANY", DirectionUnconstrained, 0)
	pr.IncDispatch("dispatch")

	mfs, err := reg.Gather()
	require.NoError(t, err)
	assert.NotEmpty(t, mfs)

	assert.Equal(t, 3.0, testutil.ToFloat64(pr.trackerListeners.WithLabelValues("network")))
	assert.Equal(t, 1.0, testutil.ToFloat64(pr.constrained.WithLabelValues("NETWORK_ANY")))
	assert.Equal(t, 2.0, testutil.ToFloat64(pr.deltaJobs.WithLabelValues("NETWORK_ANY", "constrained")))
}

func TestPrometheusRecorder_NilSafe(t *testing.T) {
	var pr *PrometheusRecorder
	pr.SetTrackerListeners("network", 1)
	pr.IncMonitorTransition("network", "stop", "ok")
	pr.ObserveEvaluation("NETWORK_ANY", false, time.Millisecond)
	pr.AddDeltaJobs("NETWORK_ANY", DirectionUnconstrained, 1)
	pr.IncDispatch("halt")
}

func TestOrNoop(t *testing.T) {
	assert.IsType(t, NoopRecorder{}, OrNoop(nil))
	pr := NewPrometheusRecorder(nil)
	assert.Same(t, pr, OrNoop(pr))
}

func TestHTTPHandler(t *testing.T) {
	reg := prom.NewRegistry()
	NewPrometheusRecorder(reg).IncDispatch("dispatch")

	w := httptest.NewRecorder()
	HTTPHandler(reg).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, strings.Contains(w.Body.String(), "workgate_scheduler_actions_total"))
}
