// Package metrics provides Prometheus metrics for the clover service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// BatchRunsTotal counts batch runs by status (completed, interrupted, failed, skipped).
	BatchRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "clover",
			Subsystem: "batch",
			Name:      "runs_total",
			Help:      "Total number of matching batch runs by status",
		},
		[]string{"status"},
	)

	BatchDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "clover",
			Subsystem: "batch",
			Name:      "duration_seconds",
			Help:      "Duration of matching batch runs in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120, 300},
		},
	)

	// PaymentsProcessed counts payments by batch outcome (matched, unmatched, skipped, failed).
	PaymentsProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "clover",
			Subsystem: "batch",
			Name:      "payments_total",
			Help:      "Total number of payments processed by outcome",
		},
		[]string{"outcome"},
	)

	AmbiguousMatches = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "clover",
			Subsystem: "batch",
			Name:      "ambiguous_matches_total",
			Help:      "Total number of matches with tied candidates",
		},
	)

	MatchConfidence = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "clover",
			Subsystem: "batch",
			Name:      "match_confidence",
			Help:      "Confidence of selected matches",
			Buckets:   []float64{10, 20, 30, 40, 50, 60, 70, 80, 90, 100},
		},
	)

	// ReviewDecisions counts review decisions by action and method.
	ReviewDecisions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "clover",
			Subsystem: "review",
			Name:      "decisions_total",
			Help:      "Total number of review decisions",
		},
		[]string{"action", "method"},
	)

	InvoicesIssued = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "clover",
			Subsystem: "invoicing",
			Name:      "invoices_total",
			Help:      "Total number of invoices issued by type",
		},
		[]string{"type"},
	)

	KafkaMessagesPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "clover",
			Subsystem: "kafka",
			Name:      "messages_published_total",
			Help:      "Total number of messages published to Kafka",
		},
		[]string{"event_type", "status"},
	)
)

// RecordBatch records the outcome counts of one batch run.
func RecordBatch(status string, durationSeconds float64, matched, unmatched, skipped, failed, ambiguous int) {
	BatchRunsTotal.WithLabelValues(status).Inc()
	BatchDuration.Observe(durationSeconds)
	PaymentsProcessed.WithLabelValues("matched").Add(float64(matched))
	PaymentsProcessed.WithLabelValues("unmatched").Add(float64(unmatched))
	PaymentsProcessed.WithLabelValues("skipped").Add(float64(skipped))
	PaymentsProcessed.WithLabelValues("failed").Add(float64(failed))
	AmbiguousMatches.Add(float64(ambiguous))
}

func RecordMatchConfidence(confidence int) {
	MatchConfidence.Observe(float64(confidence))
}

func RecordReviewDecision(action, method string) {
	ReviewDecisions.WithLabelValues(action, method).Inc()
}

func RecordInvoice(invoiceType string) {
	InvoicesIssued.WithLabelValues(invoiceType).Inc()
}

func RecordKafkaPublish(eventType, status string) {
	KafkaMessagesPublished.WithLabelValues(eventType, status).Inc()
}
