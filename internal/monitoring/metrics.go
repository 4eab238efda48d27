package monitoring

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Prometheus metrics for the feed daemon, scraped from /metrics.
var (
	// Bus metrics
	BroadcastsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "busq_broadcasts_total",
		Help: "Total number of messages broadcast into the ring",
	})

	NoReceiversTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "busq_broadcast_no_receivers_total",
		Help: "Total number of broadcasts rejected because no subscriber was live",
	})

	SubscribersActive = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "busq_subscribers_active",
		Help: "Current number of live ring subscribers",
	})

	SubscriberLag = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "busq_subscriber_lag",
		Help:    "Distribution of per-subscriber lag (unread messages) sampled at delivery",
		Buckets: []float64{0, 1, 2, 4, 8, 16, 32, 64, 128, 256, 512, 1024},
	})

	// Pipeline metrics
	EventsIngestedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "busq_events_ingested_total",
		Help: "Total events accepted into the publish pipeline by source",
	}, []string{"source"})

	EventsDroppedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "busq_events_dropped_total",
		Help: "Total events dropped before broadcast because the pipeline was full",
	}, []string{"source"})

	// Delivery metrics
	MessagesSentTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "busq_ws_messages_sent_total",
		Help: "Total number of messages written to WebSocket clients",
	})

	BytesSentTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "busq_ws_bytes_sent_total",
		Help: "Total number of bytes written to WebSocket clients",
	})

	// Connection metrics
	ConnectionsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "busq_ws_connections_total",
		Help: "Total number of WebSocket connections established",
	})

	ConnectionsActive = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "busq_ws_connections_active",
		Help: "Current number of active WebSocket connections",
	})
)

func init() {
	prometheus.MustRegister(
		BroadcastsTotal,
		NoReceiversTotal,
		SubscribersActive,
		SubscriberLag,
		EventsIngestedTotal,
		EventsDroppedTotal,
		MessagesSentTotal,
		BytesSentTotal,
		ConnectionsTotal,
		ConnectionsActive,
	)
}

// Handler returns the HTTP handler serving the metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}
