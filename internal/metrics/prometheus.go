package metrics

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// PrometheusRecorder implements Recorder using Prometheus metrics.
type PrometheusRecorder struct {
	once               sync.Once
	trackerListeners   *prom.GaugeVec
	monitorTransitions *prom.CounterVec
	evaluations        *prom.CounterVec
	evaluationDuration *prom.HistogramVec
	constrained        *prom.GaugeVec
	deltaJobs          *prom.CounterVec
	dispatches         *prom.CounterVec
}

// NewPrometheusRecorder constructs and registers Prometheus metrics (idempotent).
func NewPrometheusRecorder(reg *prom.Registry) *PrometheusRecorder {
	if reg == nil {
		reg = prom.NewRegistry()
	}
	pr := &PrometheusRecorder{}
	pr.once.Do(func() {
		pr.trackerListeners = prom.NewGaugeVec(prom.GaugeOpts{
			Namespace: "workgate",
			Name:      "tracker_listeners",
			Help:      "Current listener count per state tracker",
		}, []string{"source"})
		pr.monitorTransitions = prom.NewCounterVec(prom.CounterOpts{
			Namespace: "workgate",
			Name:      "monitor_transitions_total",
			Help:      "OS monitor start/stop calls by outcome",
		}, []string{"source", "op", "result"})
		pr.evaluations = prom.NewCounterVec(prom.CounterOpts{
			Namespace: "workgate",
			Name:      "controller_evaluations_total",
			Help:      "Controller evaluations by outcome",
		}, []string{"kind", "constrained"})
		pr.evaluationDuration = prom.NewHistogramVec(prom.HistogramOpts{
			Namespace: "workgate",
			Name:      "controller_evaluation_duration_seconds",
			Help:      "Duration of controller evaluations including callback delivery",
			Buckets:   prom.ExponentialBuckets(0.00001, 4, 10),
		}, []string{"kind"})
		pr.constrained = prom.NewGaugeVec(prom.GaugeOpts{
			Namespace: "workgate",
			Name:      "condition_constrained",
			Help:      "1 when the condition kind currently reports constrained",
		}, []string{"kind"})
		pr.deltaJobs = prom.NewCounterVec(prom.CounterOpts{
			Namespace: "workgate",
			Name:      "delta_jobs_total",
			Help:      "Jobs moved by emitted constraint deltas",
		}, []string{"kind", "direction"})
		pr.dispatches = prom.NewCounterVec(prom.CounterOpts{
			Namespace: "workgate",
			Name:      "scheduler_actions_total",
			Help:      "Scheduler dispatch and halt actions",
		}, []string{"action"})
		reg.MustRegister(pr.trackerListeners, pr.monitorTransitions, pr.evaluations,
			pr.evaluationDuration, pr.constrained, pr.deltaJobs, pr.dispatches)
	})
	return pr
}

func (p *PrometheusRecorder) SetTrackerListeners(source string, n int) {
	if p == nil || p.trackerListeners == nil {
		return
	}
	p.trackerListeners.WithLabelValues(source).Set(float64(n))
}

func (p *PrometheusRecorder) IncMonitorTransition(source, op, result string) {
	if p == nil || p.monitorTransitions == nil {
		return
	}
	p.monitorTransitions.WithLabelValues(source, op, result).Inc()
}

func (p *PrometheusRecorder) ObserveEvaluation(kind string, constrained bool, d time.Duration) {
	if p == nil || p.evaluations == nil {
		return
	}
	p.evaluations.WithLabelValues(kind, strconv.FormatBool(constrained)).Inc()
	p.evaluationDuration.WithLabelValues(kind).Observe(d.Seconds())
	v := 0.0
	if constrained {
		v = 1
	}
	p.constrained.WithLabelValues(kind).Set(v)
}

func (p *PrometheusRecorder) AddDeltaJobs(kind string, dir Direction, n int) {
	if p == nil || p.deltaJobs == nil || n == 0 {
		return
	}
	p.deltaJobs.WithLabelValues(kind, string(dir)).Add(float64(n))
}

func (p *PrometheusRecorder) IncDispatch(action string) {
	if p == nil || p.dispatches == nil {
		return
	}
	p.dispatches.WithLabelValues(action).Inc()
}

// HTTPHandler returns an http.Handler that serves Prometheus metrics for the provided registry.
func HTTPHandler(reg *prom.Registry) http.Handler {
	if reg == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{EnableOpenMetrics: true})
}
