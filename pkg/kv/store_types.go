package kv

import (
	"github.com/dd0wney/cluso-kv/pkg/logging"
	"github.com/dd0wney/cluso-kv/pkg/lsm"
	"github.com/dd0wney/cluso-kv/pkg/metrics"
)

// Store is the embeddable key-value store: the LSM engine wrapped with
// configuration, structured logging, metrics and a read cache.
//
// A Store assumes exclusive single-threaded access, matching the engine
// underneath. Embedding applications that need sharing must serialize
// access themselves.
type Store struct {
	opts   Options
	engine *lsm.KVStore

	cache   *valueCache // nil when disabled
	logger  logging.Logger
	metrics *metrics.Registry // nil when disabled

	instanceID string
	closed     bool

	// Last engine counter values mirrored into prometheus, so the
	// monotonic counters only ever receive positive deltas.
	lastFlushes     int64
	lastCompactions int64
}

// Stats is a point-in-time snapshot of store and engine counters.
type Stats struct {
	Engine lsm.Stats

	CacheHits    int64
	CacheMisses  int64
	CacheHitRate float64
	CacheSize    int
}

// InstanceID returns the unique id assigned to this opened store; it
// tags every log line the store emits.
func (s *Store) InstanceID() string {
	return s.instanceID
}

// Metrics returns the prometheus registry backing the store's metrics,
// or nil when metrics are disabled.
func (s *Store) Metrics() *metrics.Registry {
	return s.metrics
}

// Stats returns a snapshot of engine and cache counters.
func (s *Store) Stats() Stats {
	stats := Stats{Engine: s.engine.Stats()}
	if s.cache != nil {
		stats.CacheHits, stats.CacheMisses, stats.CacheHitRate = s.cache.stats()
		stats.CacheSize = s.cache.size()
	}
	return stats
}
