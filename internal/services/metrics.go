package services

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all custom Prometheus metrics for the application
type Metrics struct {
	// Assistant metrics
	DraftRequests     prometheus.Counter
	QuotaDenials      prometheus.Counter
	Consolidations    *prometheus.CounterVec
	GenerationLatency prometheus.Histogram

	// Change feed metrics
	SnapshotsDelivered   *prometheus.CounterVec
	WebSocketConnections prometheus.Gauge
}

// InitMetrics initializes the Prometheus metrics
func InitMetrics() *Metrics {
	return &Metrics{
		DraftRequests: promauto.NewCounter(prometheus.CounterOpts{
			Name: "opsdesk_draft_requests_total",
			Help: "Total number of assistant draft requests processed",
		}),

		QuotaDenials: promauto.NewCounter(prometheus.CounterOpts{
			Name: "opsdesk_quota_denials_total",
			Help: "Total number of draft requests denied by the monthly quota",
		}),

		Consolidations: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "opsdesk_profile_consolidations_total",
			Help: "Total number of profile consolidations by result",
		}, []string{"result"}), // result: "ok" or "failed"

		GenerationLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "opsdesk_generation_duration_seconds",
			Help:    "Text-generation request latency in seconds",
			Buckets: []float64{0.5, 1, 2, 5, 10, 30, 60}, // up to the 60s client timeout
		}),

		SnapshotsDelivered: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "opsdesk_changefeed_snapshots_total",
			Help: "Total number of collection snapshots delivered by collection",
		}, []string{"collection"}),

		WebSocketConnections: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "opsdesk_websocket_connections_active",
			Help: "Number of active WebSocket snapshot subscriptions",
		}),
	}
}
