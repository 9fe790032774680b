package kv

import (
	"io"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/dd0wney/cluso-kv/pkg/logging"
	"github.com/dd0wney/cluso-kv/pkg/lsm"
	"github.com/dd0wney/cluso-kv/pkg/metrics"
)

// Open opens a store against the configured base directory, creating it
// and loading any persisted levels.
func Open(opts Options) (*Store, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	logger := newLogger(opts)
	instanceID := uuid.NewString()
	logger = logger.With(
		logging.Component("kv"),
		logging.String("instance_id", instanceID),
	)

	engine, err := lsm.NewKVStore(opts.Dir)
	if err != nil {
		return nil, opError("Open", err)
	}

	store := &Store{
		opts:       opts,
		engine:     engine,
		logger:     logger,
		instanceID: instanceID,
	}
	if opts.CacheSize > 0 {
		store.cache = newValueCache(opts.CacheSize)
	}
	if opts.MetricsEnabled {
		store.metrics = metrics.NewRegistry()
	}

	stats := engine.Stats()
	logger.Info("store opened",
		logging.Path(opts.Dir),
		logging.Int("levels", len(stats.LevelFileCounts)),
		logging.Int("sstables", stats.SSTableCount),
	)
	return store, nil
}

func newLogger(opts Options) logging.Logger {
	var w io.Writer
	switch opts.LogOutput {
	case "stdout":
		w = os.Stdout
	case "stderr":
		w = os.Stderr
	default:
		return logging.NewNopLogger()
	}
	return logging.NewJSONLogger(w, logging.ParseLevel(opts.LogLevel))
}

// Put inserts or updates a key-value pair.
func (s *Store) Put(key uint64, value []byte) error {
	if s.closed {
		return opError("Put", ErrStoreClosed)
	}
	start := time.Now()

	if s.cache != nil {
		s.cache.delete(key)
	}

	err := s.engine.Put(key, value)
	s.observe("put", start, err)
	if err != nil {
		s.logger.Error("put failed", logging.Key(key), logging.Error(err))
		return keyError("Put", key, err)
	}
	return nil
}

// Get returns the value for key, or nil when the key is absent or
// deleted.
func (s *Store) Get(key uint64) ([]byte, error) {
	if s.closed {
		return nil, opError("Get", ErrStoreClosed)
	}
	start := time.Now()

	if s.cache != nil {
		if value, ok := s.cache.get(key); ok {
			s.observe("get", start, nil)
			return value, nil
		}
	}

	value, err := s.engine.Get(key)
	s.observe("get", start, err)
	if err != nil {
		s.logger.Error("get failed", logging.Key(key), logging.Error(err))
		return nil, keyError("Get", key, err)
	}
	if s.cache != nil && value != nil {
		s.cache.put(key, value)
	}
	return value, nil
}

// Delete removes a key. It reports whether the key was present.
func (s *Store) Delete(key uint64) (bool, error) {
	if s.closed {
		return false, opError("Delete", ErrStoreClosed)
	}
	start := time.Now()

	if s.cache != nil {
		s.cache.delete(key)
	}

	present, err := s.engine.Del(key)
	s.observe("delete", start, err)
	if err != nil {
		s.logger.Error("delete failed", logging.Key(key), logging.Error(err))
		return false, keyError("Delete", key, err)
	}
	return present, nil
}

// Reset wipes the memtable and every SSTable file on disk.
func (s *Store) Reset() error {
	if s.closed {
		return opError("Reset", ErrStoreClosed)
	}
	start := time.Now()

	if s.cache != nil {
		s.cache.clear()
	}

	err := s.engine.Reset()
	s.observe("reset", start, err)
	if err != nil {
		s.logger.Error("reset failed", logging.Error(err))
		return opError("Reset", err)
	}
	s.logger.Info("store reset", logging.Path(s.opts.Dir))
	return nil
}

// Close flushes pending writes and marks the store closed. Closing an
// already closed store is a no-op.
func (s *Store) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true

	if err := s.engine.Close(); err != nil {
		s.logger.Error("close failed", logging.Error(err))
		return opError("Close", err)
	}
	s.logger.Info("store closed")
	return nil
}

// observe records an operation's metrics and refreshes the engine
// gauges.
func (s *Store) observe(operation string, start time.Time, err error) {
	if s.metrics == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	s.metrics.RecordOperation(operation, status, time.Since(start))

	stats := s.engine.Stats()
	if delta := stats.Flushes - s.lastFlushes; delta > 0 {
		s.metrics.FlushesTotal.Add(float64(delta))
		s.lastFlushes = stats.Flushes
	}
	if delta := stats.Compactions - s.lastCompactions; delta > 0 {
		s.metrics.CompactionsTotal.Add(float64(delta))
		s.lastCompactions = stats.Compactions
	}
	s.metrics.UpdateEngineGauges(
		stats.MemTableKeys,
		stats.MemTableBytes,
		stats.DiskUsageBytes,
		stats.SSTableCount,
		stats.LevelFileCounts,
	)
}
