package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Real-time layer
	ConnectionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "cryptochat_ws_connections_active",
			Help: "Currently connected WebSocket clients",
		},
	)

	HandshakesRejected = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "cryptochat_ws_handshakes_rejected_total",
			Help: "WebSocket handshakes rejected before admission",
		},
	)

	BroadcastsDelivered = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cryptochat_ws_broadcasts_delivered_total",
			Help: "Messages delivered over live connections",
		},
		[]string{"room_kind"}, // "conversation" or "user"
	)

	BroadcastsDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "cryptochat_ws_broadcasts_dropped_total",
			Help: "Deliveries dropped due to slow or dead sockets",
		},
	)

	// Business metrics
	MessagesPersisted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "cryptochat_messages_persisted_total",
			Help: "Total messages stored",
		},
	)

	ConversationsCreated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "cryptochat_conversations_created_total",
			Help: "Total conversations created",
		},
	)

	AuthFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cryptochat_auth_failures_total",
			Help: "Authentication failures",
		},
		[]string{"kind"}, // "login", "token", "two_factor"
	)
)
