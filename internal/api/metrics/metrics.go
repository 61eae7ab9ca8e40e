// Package metrics defines and registers all custom Prometheus metrics for the
// AutoForum license service. It is the single source of truth for metric
// names, labels, and help strings.
//
// Metrics are registered with the default Prometheus registry by promauto at
// package initialisation and exposed on /metrics by the router.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "autoforum"

// ── Licensing metrics ─────────────────────────────────────────────────────────

// LicenseValidationsTotal counts desktop-client validation calls.
// Label:
//   - status: the validation outcome (e.g. "valid", "hwid_mismatch", "error")
var LicenseValidationsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "license_validations_total",
		Help:      "Total number of license validation requests, by outcome.",
	},
	[]string{"status"},
)

// HWIDResetsTotal counts self-service and administrative HWID resets.
// Label:
//   - outcome: "success", "cooldown", "max_resets", "rate_limited", "forbidden", "not_active", "forced"
var HWIDResetsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "hwid_resets_total",
		Help:      "Total number of HWID reset attempts, by outcome.",
	},
	[]string{"outcome"},
)

// LicensesIssuedTotal counts licenses created through the HTTP surface.
// Order-driven issuance is covered by OrderEventsProcessedTotal.
// Label:
//   - source: "admin"
var LicensesIssuedTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "licenses_issued_total",
		Help:      "Total number of licenses issued, by source.",
	},
	[]string{"source"},
)

// ── Auth metrics ──────────────────────────────────────────────────────────────

// LoginAttemptsTotal counts login attempts.
// Label:
//   - result: "success", "failed", "rate_limited", "banned"
var LoginAttemptsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "login_attempts_total",
		Help:      "Total number of login attempts, by result.",
	},
	[]string{"result"},
)

// ── Order event metrics ───────────────────────────────────────────────────────

// OrderEventsProcessedTotal counts commerce events applied successfully.
// Label:
//   - type: the event type (e.g. "order.completed")
var OrderEventsProcessedTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "order_events_processed_total",
		Help:      "Total number of commerce events successfully processed.",
	},
	[]string{"type"},
)

// OrderEventsErrorsTotal counts commerce events that failed processing.
// Label:
//   - type: the event type
var OrderEventsErrorsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "order_events_errors_total",
		Help:      "Total number of commerce events that failed processing.",
	},
	[]string{"type"},
)

// OrderEventsDedupTotal counts deduplication decisions.
// Label:
//   - result: "hit" (duplicate, skipped) or "miss" (new event, dispatched)
var OrderEventsDedupTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "order_events_dedup_total",
		Help:      "Total number of webhook deduplication checks, labelled by result (hit/miss).",
	},
	[]string{"result"},
)

// OrderEventsQueueDepth tracks the current number of events waiting in each worker channel.
// Label:
//   - worker_id: numeric worker index (e.g. "0", "1", …)
var OrderEventsQueueDepth = promauto.NewGaugeVec(
	prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "order_events_queue_depth",
		Help:      "Current number of events pending in each dispatcher worker channel.",
	},
	[]string{"worker_id"},
)

// OrderEventProcessingDuration measures how long a single event takes to apply.
// Label:
//   - type: the event type
var OrderEventProcessingDuration = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "order_event_processing_duration_seconds",
		Help:      "Duration of commerce event processing from dequeue to persistence.",
		Buckets:   prometheus.DefBuckets,
	},
	[]string{"type"},
)
