package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics bundles Prometheus collectors for the dispatcher/daemon.
type Metrics struct {
	registry        *prometheus.Registry
	RoutingDecision *prometheus.CounterVec
	ExpertUsage     *prometheus.CounterVec
	ExpertFailures  *prometheus.CounterVec
	Quarantined     *prometheus.GaugeVec
	DispatchLatency *prometheus.HistogramVec
	FanoutSize      prometheus.Histogram
	QuorumScore     prometheus.Histogram
	TransportErrs   *prometheus.CounterVec
	ActiveStreams   prometheus.Gauge
}

// NewMetrics constructs a metrics registry with dispatcher collectors.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()

	decisions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "moegate_routing_decisions_total",
		Help: "Classification outcomes by expert role and retrieval flag",
	}, []string{"role", "retrieval"})

	usage := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "moegate_expert_usage_total",
		Help: "Completed expert calls by expert and outcome",
	}, []string{"expert", "outcome"})

	failures := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "moegate_expert_failures_total",
		Help: "Recorded expert failures",
	}, []string{"expert"})

	quarantined := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "moegate_expert_quarantined",
		Help: "1 when the expert is quarantined, 0 otherwise",
	}, []string{"expert"})

	latency := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "moegate_dispatch_duration_seconds",
		Help:    "Dispatch duration in seconds by mode",
		Buckets: prometheus.DefBuckets,
	}, []string{"mode"})

	fanout := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "moegate_quorum_fanout_size",
		Help:    "Number of experts selected per quorum dispatch",
		Buckets: []float64{1, 2, 3, 4, 5, 6, 7, 8, 9},
	})

	score := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "moegate_quorum_score",
		Help:    "Aggregate confidence score of quorum responses",
		Buckets: prometheus.LinearBuckets(0, 0.1, 11),
	})

	trErrors := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "moegate_transport_errors_total",
		Help: "Transport-level errors by endpoint and reason",
	}, []string{"endpoint", "reason"})

	streams := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "moegate_active_streams",
		Help: "Active SSE completion streams",
	})

	reg.MustRegister(decisions, usage, failures, quarantined, latency, fanout, score, trErrors, streams)

	return &Metrics{
		registry:        reg,
		RoutingDecision: decisions,
		ExpertUsage:     usage,
		ExpertFailures:  failures,
		Quarantined:     quarantined,
		DispatchLatency: latency,
		FanoutSize:      fanout,
		QuorumScore:     score,
		TransportErrs:   trErrors,
		ActiveStreams:   streams,
	}
}

// Registry returns the underlying Prometheus registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// RecordDecision records one classification outcome.
func (m *Metrics) RecordDecision(role string, retrieval bool) {
	if m == nil {
		return
	}
	flag := "off"
	if retrieval {
		flag = "on"
	}
	m.RoutingDecision.WithLabelValues(role, flag).Inc()
}

// RecordExpertCall records a completed call and its outcome.
func (m *Metrics) RecordExpertCall(expert string, err error) {
	if m == nil {
		return
	}
	outcome := "success"
	if err != nil {
		outcome = "failure"
		m.ExpertFailures.WithLabelValues(expert).Inc()
	}
	m.ExpertUsage.WithLabelValues(expert, outcome).Inc()
}

// SetQuarantined reflects an expert's quarantine state.
func (m *Metrics) SetQuarantined(expert string, quarantined bool) {
	if m == nil {
		return
	}
	v := 0.0
	if quarantined {
		v = 1.0
	}
	m.Quarantined.WithLabelValues(expert).Set(v)
}

// RecordDispatch records duration for a single or quorum dispatch.
func (m *Metrics) RecordDispatch(mode string, duration time.Duration) {
	if m == nil {
		return
	}
	if mode == "" {
		mode = "unknown"
	}
	m.DispatchLatency.WithLabelValues(mode).Observe(duration.Seconds())
}

// RecordQuorum records fan-out size and aggregate score.
func (m *Metrics) RecordQuorum(fanout int, score float64) {
	if m == nil {
		return
	}
	m.FanoutSize.Observe(float64(fanout))
	m.QuorumScore.Observe(score)
}

// RecordTransportError records a transport-level error.
func (m *Metrics) RecordTransportError(endpoint, reason string) {
	if m == nil {
		return
	}
	if endpoint == "" {
		endpoint = "unknown"
	}
	if reason == "" {
		reason = "unknown"
	}
	m.TransportErrs.WithLabelValues(endpoint, reason).Inc()
}

// IncActiveStreams increments the active stream gauge.
func (m *Metrics) IncActiveStreams() {
	if m == nil {
		return
	}
	m.ActiveStreams.Inc()
}

// DecActiveStreams decrements the active stream gauge.
func (m *Metrics) DecActiveStreams() {
	if m == nil {
		return
	}
	m.ActiveStreams.Dec()
}
