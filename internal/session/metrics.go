package session

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/MeKo-Tech/camkit/internal/backend"
)

// Metrics records session activity. A nil *Metrics records nothing.
type Metrics struct {
	starts         *prometheus.CounterVec
	fallbacks      prometheus.Counter
	captures       *prometheus.CounterVec
	captureLatency *prometheus.HistogramVec
	swaps          prometheus.Counter
}

// NewMetrics registers the session collectors with reg. A nil reg uses the
// default registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)
	return &Metrics{
		starts: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "camkit_session_starts_total",
				Help: "Total number of session start attempts",
			},
			[]string{"tier", "result"}, // result: opened, refused, error
		),
		fallbacks: f.NewCounter(
			prometheus.CounterOpts{
				Name: "camkit_session_fallbacks_total",
				Help: "Total number of fallbacks to the legacy backend",
			},
		),
		captures: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "camkit_captures_total",
				Help: "Total number of still captures",
			},
			[]string{"path", "status"}, // path: snapshot, hardware
		),
		captureLatency: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "camkit_capture_duration_seconds",
				Help:    "Time from take picture to delivery",
				Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"path"},
		),
		swaps: f.NewCounter(
			prometheus.CounterOpts{
				Name: "camkit_backend_swaps_total",
				Help: "Total number of barcode mode backend swaps",
			},
		),
	}
}

func (m *Metrics) start(v backend.Variant, result string) {
	if m == nil {
		return
	}
	m.starts.WithLabelValues(v.Tier.String(), result).Inc()
}

func (m *Metrics) fallback() {
	if m == nil {
		return
	}
	m.fallbacks.Inc()
}

func (m *Metrics) swap() {
	if m == nil {
		return
	}
	m.swaps.Inc()
}

func (m *Metrics) capture(path, status string, started time.Time) {
	if m == nil {
		return
	}
	m.captures.WithLabelValues(path, status).Inc()
	if status == "ok" && !started.IsZero() {
		m.captureLatency.WithLabelValues(path).Observe(time.Since(started).Seconds())
	}
}
