// Package telemetry exposes prometheus metrics for the extraction pipeline
// and the training loop, plus an optional /metrics HTTP server.
package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	FramesProcessedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "nextvlad_frames_processed_total",
		Help: "Total number of frames pushed through the backbone",
	})

	BatchesProcessedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "nextvlad_batches_processed_total",
		Help: "Total number of batches processed, by pipeline stage",
	}, []string{"stage"})

	StageDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "nextvlad_stage_duration_seconds",
		Help:    "Duration of pipeline stages",
		Buckets: []float64{0.1, 0.5, 1, 5, 10, 30, 60, 300},
	}, []string{"stage"})

	TrainLoss = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "nextvlad_train_loss",
		Help: "Loss of the most recent training step",
	})

	GAPScore = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "nextvlad_gap_score",
		Help: "GAP score of the most recent evaluation",
	})

	EpochsCompletedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "nextvlad_epochs_completed_total",
		Help: "Total number of completed training epochs",
	})
)
