package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// NewRegistry creates a registry with all store metrics registered
func NewRegistry() *Registry {
	r := &Registry{
		registry: prometheus.NewRegistry(),
	}
	r.initStorageMetrics()
	return r
}

// Gatherer exposes the underlying registry so embedding applications can
// serve or push the metrics however they like
func (r *Registry) Gatherer() prometheus.Gatherer {
	return r.registry
}

// RecordOperation records a store operation with its duration
func (r *Registry) RecordOperation(operation, status string, duration time.Duration) {
	r.OperationsTotal.WithLabelValues(operation, status).Inc()
	r.OperationDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// UpdateEngineGauges refreshes the engine-shape gauges from a stats snapshot
func (r *Registry) UpdateEngineGauges(memTableKeys, memTableBytes, diskUsageBytes uint64, sstableCount int, levelFileCounts []int) {
	r.MemTableKeys.Set(float64(memTableKeys))
	r.MemTableBytes.Set(float64(memTableBytes))
	r.SSTablesTotal.Set(float64(sstableCount))
	r.DiskUsageBytes.Set(float64(diskUsageBytes))
	for level, count := range levelFileCounts {
		r.LevelFileCount.WithLabelValues(strconv.Itoa(level)).Set(float64(count))
	}
}
