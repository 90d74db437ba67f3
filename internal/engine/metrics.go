package engine

import (
	"math/big"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/roach88/collatz/internal/ir"
)

var (
	watermarkGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "collatz_watermark",
		Help: "Highest number such that every number from the threshold up to it is verified (float approximation)",
	})

	backlogGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "collatz_backlog_entries",
		Help: "Completed batches waiting ahead of the watermark",
	})

	queueDepthGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "collatz_queue_depth",
		Help: "Completion messages not yet consumed by the coordinator",
	})

	batchesClaimedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "collatz_batches_claimed_total",
		Help: "Batches claimed by workers",
	})

	batchesMergedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "collatz_batches_merged_total",
		Help: "Batches merged into the watermark",
	})

	checkpointSavesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "collatz_checkpoint_saves_total",
		Help: "Checkpoint save attempts by outcome",
	}, []string{"outcome"})

	checkpointSaveDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "collatz_checkpoint_save_duration_seconds",
		Help:    "Duration of successful checkpoint saves including retries",
		Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
	})
)

// numberFloat approximates n for gauges, which only carry float64.
func numberFloat(n ir.Number) float64 {
	f, _ := new(big.Float).SetInt(n.Big()).Float64()
	return f
}
