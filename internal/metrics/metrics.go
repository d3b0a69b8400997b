// Package metrics exposes the pipeline counters and latencies to Prometheus.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"net/http"
	"time"
)

// Stage names used for the latency histogram
const (
	StageLetterbox = "letterbox"
	StageEncode    = "encode"
	StageInference = "inference"
	StageDecode    = "decode"
	StageNMS       = "nms"
	StageRescale   = "rescale"
	StageAnnotate  = "annotate"
	StageTotal     = "total"
)

// Metrics holds the pipeline collectors registered on a private registry
type Metrics struct {
	FramesCaptured  prometheus.Counter
	FramesProcessed prometheus.Counter
	FramesDropped   prometheus.Counter
	FramesFailed    prometheus.Counter
	CaptureErrors   prometheus.Counter
	Detections      *prometheus.CounterVec
	StageLatency    *prometheus.HistogramVec
	FPS             prometheus.Gauge

	registry *prometheus.Registry
}

// New creates a new Metrics instance with its collectors registered
func New() *Metrics {

	m := &Metrics{
		FramesCaptured: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "yolostream_frames_captured_total",
			Help: "Total frames read from the source",
		}),
		FramesProcessed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "yolostream_frames_processed_total",
			Help: "Total frames run through detection",
		}),
		FramesDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "yolostream_frames_dropped_total",
			Help: "Total frames overwritten by a newer frame before being processed",
		}),
		FramesFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "yolostream_frames_failed_total",
			Help: "Total frames whose processing failed",
		}),
		CaptureErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "yolostream_capture_errors_total",
			Help: "Total failed reads from the source",
		}),
		Detections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "yolostream_detections_total",
			Help: "Total detections emitted by class",
		}, []string{"class"}),
		StageLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "yolostream_stage_seconds",
			Help:    "Processing time of each pipeline stage",
			Buckets: prometheus.ExponentialBuckets(0.0005, 2, 14),
		}, []string{"stage"}),
		FPS: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "yolostream_fps",
			Help: "Rolling processed frames per second",
		}),
		registry: prometheus.NewRegistry(),
	}

	m.registry.MustRegister(
		m.FramesCaptured,
		m.FramesProcessed,
		m.FramesDropped,
		m.FramesFailed,
		m.CaptureErrors,
		m.Detections,
		m.StageLatency,
		m.FPS,
	)

	return m
}

// ObserveStage records the duration of a pipeline stage
func (m *Metrics) ObserveStage(stage string, d time.Duration) {
	m.StageLatency.WithLabelValues(stage).Observe(d.Seconds())
}

// AddDetection counts one emitted detection of the named class
func (m *Metrics) AddDetection(class string) {
	m.Detections.WithLabelValues(class).Inc()
}

// Registry returns the registry the collectors are registered on
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler returns the Prometheus HTTP handler
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
