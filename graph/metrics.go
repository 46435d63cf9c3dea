package graph

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// PrometheusMetrics collects engine metrics under the "flowgraph" namespace:
//
//   - inflight_nodes (gauge): nodes evaluating right now
//   - pending_nodes (gauge): nodes of the current wave not yet finished
//   - node_latency_ms (histogram; node_type, status)
//   - retries_total (counter; node_type, reason)
//   - skipped_nodes_total (counter; reason)
//   - runs_total (counter; status)
//   - run_duration_ms (histogram; status)
//
// Labels never carry run or node ids, which are unbounded.
type PrometheusMetrics struct {
	inflightNodes prometheus.Gauge
	pendingNodes  prometheus.Gauge
	nodeLatency   *prometheus.HistogramVec
	retries       *prometheus.CounterVec
	skipped       *prometheus.CounterVec
	runs          *prometheus.CounterVec
	runDuration   *prometheus.HistogramVec

	mu       sync.RWMutex
	enabled  bool
	inflight int
}

// NewPrometheusMetrics registers the engine metrics with registry, or with
// prometheus.DefaultRegisterer when nil. Registering twice on one registry
// panics, as with promauto.
func NewPrometheusMetrics(registry prometheus.Registerer) *PrometheusMetrics {
	if registry == nil {
		registry = prometheus.DefaultRegisterer
	}
	factory := promauto.With(registry)

	pm := &PrometheusMetrics{enabled: true}

	pm.inflightNodes = factory.NewGauge(prometheus.GaugeOpts{
		Namespace: "flowgraph",
		Name:      "inflight_nodes",
		Help:      "Number of nodes currently being evaluated",
	})
	pm.pendingNodes = factory.NewGauge(prometheus.GaugeOpts{
		Namespace: "flowgraph",
		Name:      "pending_nodes",
		Help:      "Nodes of the current wave that have not finished",
	})
	pm.nodeLatency = factory.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "flowgraph",
		Name:      "node_latency_ms",
		Help:      "Node evaluation duration in milliseconds, retries included",
		Buckets:   []float64{1, 5, 10, 50, 100, 500, 1000, 5000, 10000, 60000},
	}, []string{"node_type", "status"})
	pm.retries = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: "flowgraph",
		Name:      "retries_total",
		Help:      "Retry attempts of collaborator-backed nodes",
	}, []string{"node_type", "reason"})
	pm.skipped = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: "flowgraph",
		Name:      "skipped_nodes_total",
		Help:      "Nodes skipped because of inactive or failed inputs",
	}, []string{"reason"})
	pm.runs = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: "flowgraph",
		Name:      "runs_total",
		Help:      "Finished runs by terminal status",
	}, []string{"status"})
	pm.runDuration = factory.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "flowgraph",
		Name:      "run_duration_ms",
		Help:      "Run duration in milliseconds",
		Buckets:   prometheus.ExponentialBuckets(10, 4, 8),
	}, []string{"status"})

	return pm
}

func (pm *PrometheusMetrics) isEnabled() bool {
	pm.mu.RLock()
	defer pm.mu.RUnlock()
	return pm.enabled
}

// RecordNodeLatency observes one node evaluation.
func (pm *PrometheusMetrics) RecordNodeLatency(nodeType NodeType, latency time.Duration, status NodeStatus) {
	if !pm.isEnabled() {
		return
	}
	pm.nodeLatency.WithLabelValues(string(nodeType), string(status)).Observe(float64(latency.Milliseconds()))
}

// IncrementRetries counts a retry; reason is "timeout" or "error".
func (pm *PrometheusMetrics) IncrementRetries(nodeType NodeType, reason string) {
	if !pm.isEnabled() {
		return
	}
	pm.retries.WithLabelValues(string(nodeType), reason).Inc()
}

// IncrementSkipped counts a skipped node; reason is "no_active_inputs" or
// "upstream_failed".
func (pm *PrometheusMetrics) IncrementSkipped(reason string) {
	if !pm.isEnabled() {
		return
	}
	pm.skipped.WithLabelValues(reason).Inc()
}

// RecordRun counts a finished run.
func (pm *PrometheusMetrics) RecordRun(status RunStatus, d time.Duration) {
	if !pm.isEnabled() {
		return
	}
	pm.runs.WithLabelValues(string(status)).Inc()
	pm.runDuration.WithLabelValues(string(status)).Observe(float64(d.Milliseconds()))
}

// UpdatePendingNodes sets the number of unfinished nodes in the current wave.
func (pm *PrometheusMetrics) UpdatePendingNodes(n int) {
	if !pm.isEnabled() {
		return
	}
	pm.pendingNodes.Set(float64(n))
}

// nodeStarted and nodeFinished track inflight_nodes across concurrent runs.
func (pm *PrometheusMetrics) nodeStarted() {
	pm.mu.Lock()
	defer pm.mu.Unlock()
	pm.inflight++
	if pm.enabled {
		pm.inflightNodes.Set(float64(pm.inflight))
	}
}

func (pm *PrometheusMetrics) nodeFinished() {
	pm.mu.Lock()
	defer pm.mu.Unlock()
	pm.inflight--
	if pm.enabled {
		pm.inflightNodes.Set(float64(pm.inflight))
	}
}

// Disable stops recording until Enable is called.
func (pm *PrometheusMetrics) Disable() {
	pm.mu.Lock()
	defer pm.mu.Unlock()
	pm.enabled = false
}

// Enable resumes recording after Disable. Metrics start enabled.
func (pm *PrometheusMetrics) Enable() {
	pm.mu.Lock()
	defer pm.mu.Unlock()
	pm.enabled = true
}

// Reset zeroes the gauges. Counters and histograms are cumulative.
func (pm *PrometheusMetrics) Reset() {
	pm.mu.Lock()
	defer pm.mu.Unlock()
	pm.inflight = 0
	pm.inflightNodes.Set(0)
	pm.pendingNodes.Set(0)
}
