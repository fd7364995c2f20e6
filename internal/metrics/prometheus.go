package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics contains the devserver's Prometheus metrics
type Metrics struct {
	registry *prometheus.Registry

	// Channel metrics
	ActiveConnections prometheus.Gauge
	MessagesReceived  *prometheus.CounterVec
	ErrorsSent        *prometheus.CounterVec
	HandleDuration    *prometheus.HistogramVec

	// One-shot endpoint metrics
	ASRRequests        *prometheus.CounterVec
	TimerAudioRequests *prometheus.CounterVec
}

// NewMetrics creates the metrics on a private registry, so several servers
// can coexist in one process
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,

		ActiveConnections: factory.NewGauge(prometheus.GaugeOpts{
			Name: "supermom_active_connections",
			Help: "Current number of open chat channels",
		}),
		MessagesReceived: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "supermom_messages_received_total",
			Help: "Total number of chat messages received by type",
		}, []string{"type"}),
		ErrorsSent: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "supermom_errors_sent_total",
			Help: "Total number of error frames sent by reply type",
		}, []string{"type"}),
		HandleDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "supermom_message_handle_duration_seconds",
			Help:    "Time spent answering a chat message",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 12), // 10ms to ~20s
		}, []string{"type"}),

		ASRRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "supermom_asr_requests_total",
			Help: "Total number of one-shot recognition requests by outcome",
		}, []string{"outcome"}),
		TimerAudioRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "supermom_timer_audio_requests_total",
			Help: "Total number of timer audio requests by outcome",
		}, []string{"outcome"}),
	}
}

// Handler serves the registry in the Prometheus text format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
