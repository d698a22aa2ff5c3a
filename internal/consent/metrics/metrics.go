package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds Prometheus collectors for consent operations.
type Metrics struct {
	DecisionsRecorded  *prometheus.CounterVec
	WriteFailures      *prometheus.CounterVec
	CookiesPurged      *prometheus.CounterVec
	InconsistentMasks  prometheus.Counter
	EmbedsGated        *prometheus.CounterVec
	PanelsShown        prometheus.Counter
	IdleDeclines       prometheus.Counter
	GateRewriteLatency prometheus.Histogram
}

// New registers consent collectors on reg. Tests pass a fresh
// prometheus.NewRegistry(); main passes prometheus.DefaultRegisterer.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		DecisionsRecorded: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "optin_decisions_recorded_total",
			Help: "Consent masks written, labeled by action",
		}, []string{"action"}),
		WriteFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "optin_cookie_write_failures_total",
			Help: "Consent writes that did not read back, labeled by action",
		}, []string{"action"}),
		CookiesPurged: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "optin_cookies_purged_total",
			Help: "Associated cookies removed when consent narrowed, labeled by category",
		}, []string{"category"}),
		InconsistentMasks: factory.NewCounter(prometheus.CounterOpts{
			Name: "optin_inconsistent_masks_total",
			Help: "Recorded masks granting targeting without functional",
		}),
		EmbedsGated: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "optin_embeds_gated_total",
			Help: "Gated embeds seen during page rewrites, labeled by category and result",
		}, []string{"category", "result"}),
		PanelsShown: factory.NewCounter(prometheus.CounterOpts{
			Name: "optin_panels_shown_total",
			Help: "Pages rendered with the preference panel visible",
		}),
		IdleDeclines: factory.NewCounter(prometheus.CounterOpts{
			Name: "optin_idle_declines_total",
			Help: "Declines recorded because the idle window lapsed",
		}),
		GateRewriteLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "optin_gate_rewrite_latency_seconds",
			Help:    "Latency of gating one HTML document in seconds",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5},
		}),
	}
}

func (m *Metrics) IncrementDecisionsRecorded(action string) {
	m.DecisionsRecorded.WithLabelValues(action).Inc()
}

func (m *Metrics) IncrementWriteFailures(action string) {
	m.WriteFailures.WithLabelValues(action).Inc()
}

func (m *Metrics) AddCookiesPurged(category string, count int) {
	m.CookiesPurged.WithLabelValues(category).Add(float64(count))
}

func (m *Metrics) IncrementInconsistentMasks() {
	m.InconsistentMasks.Inc()
}

// AddEmbedsGated records count embeds for category; result is "activated" or "blocked".
func (m *Metrics) AddEmbedsGated(category, result string, count int) {
	m.EmbedsGated.WithLabelValues(category, result).Add(float64(count))
}

func (m *Metrics) IncrementPanelsShown() {
	m.PanelsShown.Inc()
}

func (m *Metrics) IncrementIdleDeclines() {
	m.IdleDeclines.Inc()
}

func (m *Metrics) ObserveGateRewriteLatency(durationSeconds float64) {
	m.GateRewriteLatency.Observe(durationSeconds)
}
