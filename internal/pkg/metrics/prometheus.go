package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Provisioning decision metrics
	decisionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fleetgate",
			Subsystem: "orchestrator",
			Name:      "decisions_total",
			Help:      "Total number of resource decisions by action and kind",
		},
		[]string{"action", "kind"},
	)

	trackedResourcesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fleetgate",
			Subsystem: "orchestrator",
			Name:      "tracked_resources_total",
			Help:      "Total number of resources recorded in run ledgers",
		},
		[]string{"kind"},
	)

	rollbackStepsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fleetgate",
			Subsystem: "orchestrator",
			Name:      "rollback_steps_total",
			Help:      "Total number of rollback steps by outcome",
		},
		[]string{"status"},
	)

	// Cleanup metrics
	orphansDetected = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "fleetgate",
			Subsystem: "cleanup",
			Name:      "orphans_detected",
			Help:      "Number of orphaned resources found by the last scan",
		},
		[]string{"kind"},
	)

	deletionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fleetgate",
			Subsystem: "cleanup",
			Name:      "deletions_total",
			Help:      "Total number of cleanup deletions by kind and status",
		},
		[]string{"kind", "status"},
	)

	realizedSavings = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "fleetgate",
			Subsystem: "cleanup",
			Name:      "realized_savings_dollars_total",
			Help:      "Cumulative estimated monthly savings from deleted orphans",
		},
	)
)

// Handler returns the Prometheus metrics HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordDecision records a resource decision
func RecordDecision(action, kind string) {
	decisionsTotal.WithLabelValues(action, kind).Inc()
}

// RecordTrackedResource records a ledger append
func RecordTrackedResource(kind string) {
	trackedResourcesTotal.WithLabelValues(kind).Inc()
}

// RecordRollbackStep records the outcome of one rollback step
func RecordRollbackStep(status string) {
	rollbackStepsTotal.WithLabelValues(status).Inc()
}

// SetOrphansDetected sets the orphan gauge for a kind
func SetOrphansDetected(kind string, count float64) {
	orphansDetected.WithLabelValues(kind).Set(count)
}

// RecordDeletion records a cleanup deletion attempt
func RecordDeletion(kind, status string) {
	deletionsTotal.WithLabelValues(kind, status).Inc()
}

// AddRealizedSavings adds to the cumulative savings counter
func AddRealizedSavings(amount float64) {
	if amount > 0 {
		realizedSavings.Add(amount)
	}
}
