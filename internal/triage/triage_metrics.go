package triage

import "github.com/prometheus/client_golang/prometheus"

// Metrics holds Prometheus metrics for the triage subsystem.
type Metrics struct {
	DecisionsTotal      *prometheus.CounterVec
	DecisionDuration    prometheus.Histogram
	SeverityScore       *prometheus.HistogramVec
	MatchedCategories   prometheus.Histogram
	NeedsReviewTotal    prometheus.Counter
	ReloadsTotal        *prometheus.CounterVec
	ReloadWarningsTotal prometheus.Counter
	LLMFallbacksTotal   *prometheus.CounterVec
	LLMFallbackDuration prometheus.Histogram
	NotifyTotal         *prometheus.CounterVec
	SnapshotRules       *prometheus.GaugeVec
	SnapshotLoadedAt    prometheus.Gauge
}

// NewMetrics registers and returns triage metrics on the given registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		DecisionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "intake_decisions_total",
			Help: "Total triage decisions by destination, priority, and resolver rule.",
		}, []string{"destination", "priority", "rule"}),
		DecisionDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "intake_decision_duration_seconds",
			Help:    "Duration of triage decisions in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.00001, 4, 10), // 10us .. ~2.6s
		}),
		SeverityScore: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "intake_severity_score",
			Help:    "Computed severity score per decision.",
			Buckets: prometheus.LinearBuckets(0, 1, 11), // 0 .. 10
		}, []string{"band"}),
		MatchedCategories: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "intake_matched_categories",
			Help:    "Matched category count per decision.",
			Buckets: prometheus.LinearBuckets(0, 1, 8), // 0 .. 7
		}),
		NeedsReviewTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "intake_needs_review_total",
			Help: "Decisions flagged for review due to low keyword confidence.",
		}),
		ReloadsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "intake_config_reloads_total",
			Help: "Configuration reloads by outcome.",
		}, []string{"outcome"}),
		ReloadWarningsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "intake_config_reload_warnings_total",
			Help: "Soft validation warnings collected across reloads.",
		}),
		LLMFallbacksTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "intake_llm_fallbacks_total",
			Help: "LLM category fallback attempts by outcome.",
		}, []string{"outcome"}),
		LLMFallbackDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "intake_llm_fallback_duration_seconds",
			Help:    "Duration of LLM fallback classifications in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 8), // 0.1s .. ~12.8s
		}),
		NotifyTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "intake_notifications_total",
			Help: "Escalation notifications by outcome.",
		}, []string{"outcome"}),
		SnapshotRules: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "intake_snapshot_rules",
			Help: "Rule counts in the active configuration snapshot.",
		}, []string{"kind"}),
		SnapshotLoadedAt: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "intake_snapshot_loaded_timestamp_seconds",
			Help: "Unix time the active snapshot was loaded.",
		}),
	}

	reg.MustRegister(
		m.DecisionsTotal,
		m.DecisionDuration,
		m.SeverityScore,
		m.MatchedCategories,
		m.NeedsReviewTotal,
		m.ReloadsTotal,
		m.ReloadWarningsTotal,
		m.LLMFallbacksTotal,
		m.LLMFallbackDuration,
		m.NotifyTotal,
		m.SnapshotRules,
		m.SnapshotLoadedAt,
	)

	return m
}

// Hooks returns an EngineHooks that increments the corresponding metrics.
func (m *Metrics) Hooks() EngineHooks {
	return EngineHooks{
		OnDecision: func(d *Decision, duration float64) {
			m.DecisionsTotal.WithLabelValues(d.Destination, d.Priority, string(d.Rule)).Inc()
			m.DecisionDuration.Observe(duration)
			m.SeverityScore.WithLabelValues(d.SeverityBand).Observe(float64(d.SeverityScore))
			m.MatchedCategories.Observe(float64(len(d.MatchedCategories)))
			if d.NeedsReview {
				m.NeedsReviewTotal.Inc()
			}
		},
		OnPublish: func(s *Snapshot) {
			m.SnapshotRules.WithLabelValues("taxonomy").Set(float64(len(s.Taxonomy)))
			m.SnapshotRules.WithLabelValues("severity").Set(float64(len(s.Severity)))
			m.SnapshotRules.WithLabelValues("routes").Set(float64(len(s.Routes)))
			m.SnapshotLoadedAt.Set(float64(s.LoadedAt.Unix()))
		},
	}
}

// ObserveReload records one reload attempt.
func (m *Metrics) ObserveReload(outcome string, warnings int) {
	m.ReloadsTotal.WithLabelValues(outcome).Inc()
	m.ReloadWarningsTotal.Add(float64(warnings))
}

// ObserveLLMFallback records one LLM classification fallback attempt.
func (m *Metrics) ObserveLLMFallback(outcome string, duration float64) {
	m.LLMFallbacksTotal.WithLabelValues(outcome).Inc()
	m.LLMFallbackDuration.Observe(duration)
}

// ObserveNotify records one escalation notification attempt.
func (m *Metrics) ObserveNotify(outcome string) {
	m.NotifyTotal.WithLabelValues(outcome).Inc()
}
