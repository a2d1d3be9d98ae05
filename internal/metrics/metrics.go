package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Drop reasons recorded on commune_chat_messages_dropped_total.
const (
	DropUnauthenticated = "unauthenticated"
	DropUnknownReceiver = "unknown_receiver"
	DropRateLimited     = "rate_limited"
	DropPersistence     = "persistence"
	DropSlowConsumer    = "slow_consumer"
	DropEmpty           = "empty"
)

// Collector holds the chat-path metrics. The websocket hub and the chat
// service both record through it.
type Collector struct {
	connectionsActive prometheus.Gauge
	messagesSent      prometheus.Counter
	messagesDropped   *prometheus.CounterVec
	deliveries        prometheus.Counter
}

func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		connectionsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "commune_ws_connections_active",
			Help: "Number of open websocket connections.",
		}),
		messagesSent: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "commune_chat_messages_sent_total",
			Help: "Chat messages persisted and dispatched.",
		}),
		messagesDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "commune_chat_messages_dropped_total",
			Help: "Chat events dropped before delivery, by reason.",
		}, []string{"reason"}),
		deliveries: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "commune_chat_deliveries_total",
			Help: "Individual message deliveries to subscribed connections.",
		}),
	}

	reg.MustRegister(
		c.connectionsActive,
		c.messagesSent,
		c.messagesDropped,
		c.deliveries,
	)

	return c
}

func (c *Collector) ConnOpened() {
	c.connectionsActive.Inc()
}

func (c *Collector) ConnClosed() {
	c.connectionsActive.Dec()
}

func (c *Collector) MessageSent() {
	c.messagesSent.Inc()
}

func (c *Collector) MessageDropped(reason string) {
	c.messagesDropped.WithLabelValues(reason).Inc()
}

func (c *Collector) Delivered(count int) {
	c.deliveries.Add(float64(count))
}

// Handler returns the /metrics endpoint for the given registry,
// including the standard Go runtime collectors.
func Handler(reg *prometheus.Registry) http.Handler {
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
}
