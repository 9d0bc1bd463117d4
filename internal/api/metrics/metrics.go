// Package metrics defines and registers all custom Prometheus metrics for the
// RapidRecall dashboard. It is the single source of truth for metric names,
// labels, and help strings.
//
// Metrics are registered with the default registry on package load through
// promauto; the HTTP layer exposes them on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "dashboard"

// ── Session metrics ───────────────────────────────────────────────────────────

// ReconciliationsTotal counts role reconciliation attempts by outcome.
// Label:
//   - result: "unchanged", "changed", "unauthorized", "error", "skipped", "discarded"
var ReconciliationsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "reconciliations_total",
		Help:      "Total number of role reconciliation attempts, by outcome.",
	},
	[]string{"result"},
)

// ReconcileDuration measures a reconciliation round trip (token refresh + verify).
var ReconcileDuration = promauto.NewHistogram(
	prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "reconcile_duration_seconds",
		Help:      "Duration of a role reconciliation attempt.",
		Buckets:   prometheus.DefBuckets,
	},
)

// RoleChangesTotal counts cache overwrites, labelled by the new role.
var RoleChangesTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "role_changes_total",
		Help:      "Total number of cached role overwrites, by new role.",
	},
	[]string{"role"},
)

// ForcedSignOutsTotal counts sessions ended because the server rejected the token.
var ForcedSignOutsTotal = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "forced_sign_outs_total",
		Help:      "Total number of sessions terminated after an unauthorized response.",
	},
)

// SessionsExpiredTotal counts sessions ended because their lifetime passed.
var SessionsExpiredTotal = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "sessions_expired_total",
		Help:      "Total number of sessions terminated after exceeding their lifetime.",
	},
)

// ActiveSessions tracks the number of live session reconcilers.
var ActiveSessions = promauto.NewGauge(
	prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "active_sessions",
		Help:      "Current number of signed-in dashboard sessions.",
	},
)

// ── Document metrics ──────────────────────────────────────────────────────────

// DocumentUploadsTotal counts recall document uploads.
// Label:
//   - result: "ok", "rejected" (failed local validation), "failed" (server refused or errored)
var DocumentUploadsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "document_uploads_total",
		Help:      "Total number of recall document uploads, by result.",
	},
	[]string{"result"},
)
