package cascade

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	decisionTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "cascade",
		Name:      "decisions_total",
		Help:      "Terminal decisions by stage, method and outcome",
	}, []string{"stage", "method", "outcome"})

	decisionLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "cascade",
		Name:      "decision_latency_seconds",
		Help:      "End-to-end cascade latency by terminal stage",
		Buckets:   []float64{0.0005, 0.001, 0.005, 0.025, 0.1, 0.25, 0.5, 1.0, 3.0},
	}, []string{"stage"})

	decisionCost = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "cascade",
		Name:      "estimated_cost_usd_total",
		Help:      "Estimated provider spend across all decisions",
	})

	matchScore = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "cascade",
		Name:      "match_score",
		Help:      "Similarity or confidence score of terminal decisions",
		Buckets:   prometheus.LinearBuckets(0.5, 0.05, 10),
	}, []string{"method"})
)

// PrometheusTelemetry records decision events into the package's Prometheus
// collectors. Namespace is deliberately not a label — tenant counts are
// unbounded and would blow up cardinality; per-tenant analytics live in the
// pattern store, not in metrics.
type PrometheusTelemetry struct{}

// RecordDecision implements TelemetrySink
func (PrometheusTelemetry) RecordDecision(ev DecisionEvent) {
	decisionTotal.WithLabelValues(ev.Stage.String(), string(ev.Method), string(ev.Outcome)).Inc()
	decisionLatency.WithLabelValues(ev.Stage.String()).Observe(ev.LatencyMs / 1000)
	decisionCost.Add(ev.CostDelta)
	if ev.MatchScore > 0 {
		matchScore.WithLabelValues(string(ev.Method)).Observe(float64(ev.MatchScore))
	}
}

// NopTelemetry discards every event. Used when no sink is configured.
type NopTelemetry struct{}

// RecordDecision implements TelemetrySink
func (NopTelemetry) RecordDecision(DecisionEvent) {}
