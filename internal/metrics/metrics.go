// Package metrics exposes the weddingsync Prometheus metrics.
package metrics

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	namespace   = "weddingsync"
	typeLabel   = "type"
	actionLabel = "action"
	routeLabel  = "route"
	methodLabel = "method"
	codeLabel   = "code"
	resultLabel = "result"
)

// Metrics manages the metrics the server records.
type Metrics struct {
	registry *prometheus.Registry

	submittedTotal   *prometheus.CounterVec
	drainedTotal     *prometheus.CounterVec
	drainBatchSize   prometheus.Histogram
	sweptTotal       prometheus.Counter
	sweepRunsTotal   *prometheus.CounterVec
	httpDuration     *prometheus.HistogramVec
	httpHandledTotal *prometheus.CounterVec
}

// NewMetrics creates a new instance of Metrics on a private registry.
func NewMetrics() (*Metrics, error) {
	reg := prometheus.NewRegistry()

	if err := reg.Register(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{})); err != nil {
		return nil, fmt.Errorf("register process collector: %w", err)
	}
	if err := reg.Register(collectors.NewGoCollector()); err != nil {
		return nil, fmt.Errorf("register go collector: %w", err)
	}

	return &Metrics{
		registry: reg,
		submittedTotal: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sync",
			Name:      "updates_submitted_total",
			Help:      "The total count of sync updates stored.",
		}, []string{typeLabel, actionLabel}),
		drainedTotal: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sync",
			Name:      "updates_drained_total",
			Help:      "The total count of sync updates delivered by drains.",
		}, []string{typeLabel}),
		drainBatchSize: promauto.With(reg).NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "sync",
			Name:      "drain_batch_size",
			Help:      "The number of updates returned by a single drain.",
			Buckets:   []float64{0, 1, 2, 5, 10, 25, 50, 100, 250, 500},
		}),
		sweptTotal: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "housekeeping",
			Name:      "swept_updates_total",
			Help:      "The total count of processed updates removed by retention sweeps.",
		}),
		sweepRunsTotal: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "housekeeping",
			Name:      "sweep_runs_total",
			Help:      "The total count of retention sweeps by result.",
		}, []string{resultLabel}),
		httpDuration: promauto.With(reg).NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "The response time of HTTP requests by route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{routeLabel, methodLabel}),
		httpHandledTotal: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests completed, regardless of success or failure.",
		}, []string{routeLabel, methodLabel, codeLabel}),
	}, nil
}

// AddSubmitted records a stored update.
func (m *Metrics) AddSubmitted(updateType, action string) {
	m.submittedTotal.With(prometheus.Labels{
		typeLabel:   updateType,
		actionLabel: action,
	}).Inc()
}

// AddDrained records one drained update.
func (m *Metrics) AddDrained(updateType string) {
	m.drainedTotal.With(prometheus.Labels{typeLabel: updateType}).Inc()
}

// ObserveDrainBatchSize records the size of a drain result.
func (m *Metrics) ObserveDrainBatchSize(size int) {
	m.drainBatchSize.Observe(float64(size))
}

// AddSwept records a completed sweep and the number of updates it removed.
func (m *Metrics) AddSwept(count int64) {
	m.sweptTotal.Add(float64(count))
	m.sweepRunsTotal.With(prometheus.Labels{resultLabel: "ok"}).Inc()
}

// AddSweepFailure records a sweep that returned an error.
func (m *Metrics) AddSweepFailure() {
	m.sweepRunsTotal.With(prometheus.Labels{resultLabel: "error"}).Inc()
}

// ObserveHTTPRequest records a completed HTTP request.
func (m *Metrics) ObserveHTTPRequest(route, method string, code int, seconds float64) {
	m.httpDuration.With(prometheus.Labels{
		routeLabel:  route,
		methodLabel: method,
	}).Observe(seconds)
	m.httpHandledTotal.With(prometheus.Labels{
		routeLabel:  route,
		methodLabel: method,
		codeLabel:   strconv.Itoa(code),
	}).Inc()
}

// Registry returns the registry of this metrics.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
