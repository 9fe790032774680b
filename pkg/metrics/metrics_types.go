package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Registry holds all metrics for the store
type Registry struct {
	registry *prometheus.Registry

	// Operation metrics
	OperationsTotal   *prometheus.CounterVec
	OperationDuration *prometheus.HistogramVec

	// Engine metrics
	FlushesTotal     prometheus.Counter
	CompactionsTotal prometheus.Counter
	MemTableBytes    prometheus.Gauge
	MemTableKeys     prometheus.Gauge
	SSTablesTotal    prometheus.Gauge
	DiskUsageBytes   prometheus.Gauge
	LevelFileCount   *prometheus.GaugeVec
}
