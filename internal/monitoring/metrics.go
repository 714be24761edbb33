package monitoring

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ledgerOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ticket_ledger_operations_total",
			Help: "Inventory ledger operations by outcome",
		},
		[]string{"operation", "outcome"},
	)

	ledgerLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ticket_ledger_operation_duration_seconds",
			Help:    "Latency of inventory ledger operations",
			Buckets: prometheus.ExponentialBuckets(0.0005, 2, 12),
		},
		[]string{"operation"},
	)

	availableTickets = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "ticket_available",
			Help: "Last observed available tickets per event",
		},
		[]string{"event_id"},
	)

	compensations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ticket_compensations_total",
			Help: "Compensating ledger actions by cause and outcome",
		},
		[]string{"cause", "outcome"},
	)

	transitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ticket_purchase_transitions_total",
			Help: "Purchase status transitions",
		},
		[]string{"from", "to", "outcome"},
	)

	published = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ticket_purchase_events_published_total",
			Help: "Purchase events handed to the message broker",
		},
		[]string{"type", "outcome"},
	)
)

// TrackLedger records one ledger operation. outcome is one of "granted",
// "refused" or "error" for reservations and "ok" or "error" otherwise.
func TrackLedger(operation, outcome string, took time.Duration) {
	ledgerOperations.WithLabelValues(operation, outcome).Inc()
	ledgerLatency.WithLabelValues(operation).Observe(took.Seconds())
}

// SetAvailable publishes the latest counter of an event.
func SetAvailable(eventID uint64, available int) {
	availableTickets.WithLabelValues(strconv.FormatUint(eventID, 10)).Set(float64(available))
}

// ForgetEvent drops the per-event series of a deleted event.
func ForgetEvent(eventID uint64) {
	availableTickets.DeleteLabelValues(strconv.FormatUint(eventID, 10))
}

func TrackCompensation(cause, outcome string) {
	compensations.WithLabelValues(cause, outcome).Inc()
}

func TrackTransition(from, to, outcome string) {
	transitions.WithLabelValues(from, to, outcome).Inc()
}

func TrackPublish(eventType, outcome string) {
	published.WithLabelValues(eventType, outcome).Inc()
}
