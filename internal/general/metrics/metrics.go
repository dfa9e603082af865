package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "transport_connect"

var (
	OnlineConnections = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "online_connections",
		Help:      "Authenticated realtime connections currently registered.",
	})

	EventsReceived = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "ws_events_received_total",
		Help:      "Inbound realtime events by type.",
	}, []string{"type"})

	EventsSent = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "ws_events_sent_total",
		Help:      "Outbound realtime frames by event type.",
	}, []string{"type"})

	SlowConsumers = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "ws_slow_consumers_total",
		Help:      "Connections dropped because their send buffer was full.",
	})

	MessagesSent = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "messages_sent_total",
		Help:      "Persisted conversation messages by type.",
	}, []string{"type"})

	StatusTransitions = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "request_status_transitions_total",
		Help:      "Applied request status transitions by target status.",
	}, []string{"status"})

	NotificationsEnqueued = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "notifications_enqueued_total",
		Help:      "Notification intents accepted by the dispatcher.",
	})

	NotificationsDropped = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "notifications_dropped_total",
		Help:      "Notification intents dropped because the queue was full.",
	})

	NotificationsDelivered = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "notifications_delivered_total",
		Help:      "Notification deliveries by channel and outcome.",
	}, []string{"channel", "outcome"})

	RetentionPurged = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "retention_purged_messages_total",
		Help:      "Expired messages removed by the retention sweeper.",
	})
)

func init() {
	prometheus.MustRegister(
		OnlineConnections,
		EventsReceived,
		EventsSent,
		SlowConsumers,
		MessagesSent,
		StatusTransitions,
		NotificationsEnqueued,
		NotificationsDropped,
		NotificationsDelivered,
		RetentionPurged,
	)
}

// Handler exposes the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
