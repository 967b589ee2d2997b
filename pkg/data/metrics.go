package data

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	mmapRebuildsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "composite_mmap_rebuilds_total",
		Help: "Accessor tree rebuilds by root mode",
	}, []string{"mode"})

	mmapRebuildDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "composite_mmap_rebuild_duration_seconds",
		Help:    "Duration of accessor tree rebuilds",
		Buckets: []float64{0.00001, 0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05},
	})

	historyEvictedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "composite_history_evicted_snapshots_total",
		Help: "Historical snapshots dropped by rollover",
	})

	writesRejectedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "composite_writes_rejected_total",
		Help: "Writes vetoed by constraints",
	})
)
