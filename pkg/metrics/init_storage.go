package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

func (r *Registry) initStorageMetrics() {
	r.OperationsTotal = promauto.With(r.registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "cluso_kv_operations_total",
			Help: "Total number of store operations",
		},
		[]string{"operation", "status"},
	)

	r.OperationDuration = promauto.With(r.registry).NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "cluso_kv_operation_duration_seconds",
			Help:    "Store operation duration in seconds",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1.0},
		},
		[]string{"operation"},
	)

	r.FlushesTotal = promauto.With(r.registry).NewCounter(
		prometheus.CounterOpts{
			Name: "cluso_kv_flushes_total",
			Help: "Total number of memtable flushes",
		},
	)

	r.CompactionsTotal = promauto.With(r.registry).NewCounter(
		prometheus.CounterOpts{
			Name: "cluso_kv_compactions_total",
			Help: "Total number of compaction passes that did work",
		},
	)

	r.MemTableBytes = promauto.With(r.registry).NewGauge(
		prometheus.GaugeOpts{
			Name: "cluso_kv_memtable_bytes",
			Help: "Projected SSTable size of the current memtable in bytes",
		},
	)

	r.MemTableKeys = promauto.With(r.registry).NewGauge(
		prometheus.GaugeOpts{
			Name: "cluso_kv_memtable_keys",
			Help: "Distinct live keys in the current memtable, tombstones included",
		},
	)

	r.SSTablesTotal = promauto.With(r.registry).NewGauge(
		prometheus.GaugeOpts{
			Name: "cluso_kv_sstables_total",
			Help: "Total number of SSTables across all levels",
		},
	)

	r.DiskUsageBytes = promauto.With(r.registry).NewGauge(
		prometheus.GaugeOpts{
			Name: "cluso_kv_disk_usage_bytes",
			Help: "Disk space used by SSTable files in bytes",
		},
	)

	r.LevelFileCount = promauto.With(r.registry).NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "cluso_kv_level_files",
			Help: "Number of SSTables per level",
		},
		[]string{"level"},
	)
}
