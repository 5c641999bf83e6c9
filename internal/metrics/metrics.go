package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the collectors of one process on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	// Agent
	Sessions          *prometheus.CounterVec
	VolumeDropped     prometheus.Counter
	InsertionFailures prometheus.Counter

	// Server
	Requests       *prometheus.CounterVec
	RequestLatency *prometheus.HistogramVec
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,
		Sessions: f.NewCounterVec(prometheus.CounterOpts{
			Name: "ito_sessions_total",
			Help: "Dictation sessions by terminal outcome",
		}, []string{"mode", "outcome"}),
		VolumeDropped: f.NewCounter(prometheus.CounterOpts{
			Name: "ito_volume_events_dropped_total",
			Help: "Volume events dropped because a subscriber was slow",
		}),
		InsertionFailures: f.NewCounter(prometheus.CounterOpts{
			Name: "ito_text_insertion_failures_total",
			Help: "Transcripts that could not be inserted at the cursor",
		}),
		Requests: f.NewCounterVec(prometheus.CounterOpts{
			Name: "ito_transcription_requests_total",
			Help: "Transcription requests by provider and outcome",
		}, []string{"provider", "outcome"}),
		RequestLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "ito_transcription_latency_seconds",
			Help:    "Provider latency of transcription requests",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 4, 8, 16},
		}, []string{"provider"}),
	}
}

func (m *Metrics) ObserveSession(mode, outcome string) {
	m.Sessions.WithLabelValues(mode, outcome).Inc()
}

func (m *Metrics) ObserveVolumeDropped() {
	m.VolumeDropped.Inc()
}

func (m *Metrics) ObserveInsertionFailure() {
	m.InsertionFailures.Inc()
}

func (m *Metrics) ObserveRequest(provider, outcome string, latency time.Duration) {
	m.Requests.WithLabelValues(provider, outcome).Inc()
	m.RequestLatency.WithLabelValues(provider).Observe(latency.Seconds())
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
