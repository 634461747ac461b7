// Package metrics defines the Prometheus metrics of the chat server. Every metric
// is registered with the default registry through promauto when the package is
// loaded; the router exposes them on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "sdtchat"

// ── Room metrics ──────────────────────────────────────────────────────────────

// RoomsActive tracks the number of live channel rooms.
var RoomsActive = promauto.NewGauge(
	prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "rooms_active",
		Help:      "Current number of live channel rooms.",
	},
)

// SessionsJoined tracks the number of sessions in the JOINED state across all rooms.
var SessionsJoined = promauto.NewGauge(
	prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "sessions_joined",
		Help:      "Current number of joined sessions across all rooms.",
	},
)

// JoinsRejectedTotal counts refused join attempts.
// Label:
//   - reason: "banned", "identity_mismatch", "channel_mismatch" or "invalid"
var JoinsRejectedTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "joins_rejected_total",
		Help:      "Total number of refused join attempts, by reason.",
	},
	[]string{"reason"},
)

// ── Message metrics ───────────────────────────────────────────────────────────

// MessagesTotal counts chat messages accepted and broadcast.
var MessagesTotal = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "messages_total",
		Help:      "Total number of chat messages broadcast.",
	},
)

// DeliveryFailuresTotal counts outbound frames a transport refused.
// Each failure schedules the receiving session for disconnection.
var DeliveryFailuresTotal = promauto.NewCounter(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "delivery_failures_total",
		Help:      "Total number of outbound frames that could not be handed to a transport.",
	},
)

// ── Moderation and persistence metrics ────────────────────────────────────────

// ModerationActionsTotal counts applied admin actions.
// Label:
//   - action: "change_color", "warn", "kick", "ban", "set_role" or "unmute"
var ModerationActionsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "moderation_actions_total",
		Help:      "Total number of applied admin actions, by action.",
	},
	[]string{"action"},
)

// PersistenceFailuresTotal counts failed persistence gateway calls.
// Label:
//   - op: the gateway operation (e.g. "insert_message", "find_ban")
var PersistenceFailuresTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "persistence_failures_total",
		Help:      "Total number of failed persistence calls, by operation.",
	},
	[]string{"op"},
)
