package server

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// HTTP request metrics
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "camkit_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "camkit_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint"},
	)

	// Camera control metrics
	cameraRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "camkit_camera_requests_total",
			Help: "Total number of camera control requests",
		},
		[]string{"operation", "status"}, // operation: start, stop, picture, config, barcode
	)

	pictureSizeBytes = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "camkit_picture_size_bytes",
			Help:    "Size of captured original pictures in bytes",
			Buckets: []float64{10 * 1024, 50 * 1024, 100 * 1024, 500 * 1024, 1024 * 1024, 5 * 1024 * 1024, 10 * 1024 * 1024},
		},
	)

	// WebSocket metrics
	websocketConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "camkit_websocket_active_connections",
			Help: "Number of active WebSocket connections",
		},
	)

	websocketMessagesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "camkit_websocket_messages_total",
			Help: "Total number of WebSocket messages",
		},
		[]string{"direction"}, // direction: sent, dropped
	)
)

// metricsHandler serves the default registry, which also holds the session
// metrics when the controller was built with a nil registerer.
func metricsHandler() http.Handler {
	return promhttp.Handler()
}
