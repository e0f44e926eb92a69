package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	AnalysesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "veritas_analyses_total",
		Help: "Total number of analyses, by outcome",
	}, []string{"outcome"})

	ClassificationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "veritas_classifications_total",
		Help: "Total number of successful analyses, by label",
	}, []string{"label"})

	StageDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "veritas_stage_duration_seconds",
		Help:    "Duration of each analysis pipeline stage",
		Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60},
	}, []string{"stage"})

	FramesSampledTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "veritas_frames_sampled_total",
		Help: "Total number of frames sampled across all analyses",
	})

	PreviewWriteFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "veritas_preview_write_failures_total",
		Help: "Total number of preview images that could not be persisted",
	})

	CleanupFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "veritas_cleanup_failures_total",
		Help: "Total number of source videos that could not be removed after analysis",
	})

	ActiveAnalyses = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "veritas_active_analyses",
		Help: "Number of analyses currently running",
	})
)
