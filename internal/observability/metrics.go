package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics groups all Prometheus instruments used by the capture pipeline.
type Metrics struct {
	FramesCaptured    prometheus.Counter
	FramesSent        prometheus.Counter
	FramesDropped     *prometheus.CounterVec
	InboundMessages   *prometheus.CounterVec
	ReconnectAttempts prometheus.Counter
	Connected         prometheus.Gauge
	AudioQueueDepth   prometheus.Gauge
	AudioPlaybacks    *prometheus.CounterVec
	ServiceErrors     *prometheus.CounterVec
	SendLatency       prometheus.Histogram
}

func NewMetrics(namespace string) *Metrics {
	return &Metrics{
		FramesCaptured: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_captured_total",
			Help:      "Frames rasterized and cached by the capture loop.",
		}),
		FramesSent: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_sent_total",
			Help:      "Frames handed to the session protocol client.",
		}),
		FramesDropped: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_dropped_total",
			Help:      "Frames dropped by reason.",
		}, []string{"reason"}),
		InboundMessages: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "inbound_messages_total",
			Help:      "Inbound websocket envelopes by type.",
		}, []string{"type"}),
		ReconnectAttempts: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reconnect_attempts_total",
			Help:      "Websocket dial attempts after the initial connect.",
		}),
		Connected: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "connected",
			Help:      "1 while the session websocket is connected.",
		}),
		AudioQueueDepth: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "audio_queue_depth",
			Help:      "Items waiting in the FIFO playback queue.",
		}),
		AudioPlaybacks: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "audio_playbacks_total",
			Help:      "Completed audio playbacks by outcome.",
		}, []string{"outcome"}),
		ServiceErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "service_errors_total",
			Help:      "Error envelopes by code and classified severity.",
		}, []string{"code", "severity"}),
		SendLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "frame_send_latency_ms",
			Help:      "Websocket write latency per frame in milliseconds.",
			Buckets:   []float64{1, 2, 5, 10, 25, 50, 100, 250, 500},
		}),
	}
}

func (m *Metrics) ObserveSendLatency(d time.Duration) {
	m.SendLatency.Observe(float64(d.Milliseconds()))
}

func MetricsHandler() http.Handler {
	return promhttp.Handler()
}
