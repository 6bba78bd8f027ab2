package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	ActiveRooms = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "watchroom",
		Name:      "active_rooms",
		Help:      "Number of live room actors.",
	})

	OpenConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "watchroom",
		Name:      "open_connections",
		Help:      "Number of connected websocket clients.",
	})

	ChatMessages = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "watchroom",
		Name:      "chat_messages_total",
		Help:      "Chat messages accepted and broadcast.",
	})

	SpamRejections = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "watchroom",
		Name:      "spam_rejections_total",
		Help:      "Chat messages rejected by the spam governor.",
	})

	BroadcastsSent = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "watchroom",
		Name:      "broadcasts_sent_total",
		Help:      "Room events fanned out to clients.",
	})

	DeliveryFailures = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "watchroom",
		Name:      "delivery_failures_total",
		Help:      "Outbound events that failed to write to a client connection.",
	})

	ModerationActions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "watchroom",
		Name:      "moderation_actions_total",
		Help:      "Applied moderation actions by kind.",
	}, []string{"action"})
)

func Handler() http.Handler {
	return promhttp.Handler()
}
