package lsm

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/dd0wney/cluso-kv/pkg/fsutil"
)

// NewKVStore opens the engine against a base directory, creating it if
// needed. Existing levels are scanned from disk: their timestamps and
// filename stems seed the engine's monotonic counters, level 0 is
// ordered by timestamp and every other level by min key. A single
// compaction pass then absorbs any overflow left by an abrupt prior
// termination.
func NewKVStore(dir string) (*KVStore, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}

	kv := &KVStore{
		dir:       dir,
		memTable:  NewMemTable(),
		timestamp: 1,
		sstNo:     1,
	}

	if err := kv.loadLevels(); err != nil {
		return nil, err
	}
	if len(kv.levels) == 0 {
		kv.levels = [][]*SSTable{{}}
	}

	if err := kv.compact(); err != nil {
		return nil, err
	}
	return kv, nil
}

// loadLevels scans the base directory for level-<i> subdirectories and
// loads every SSTable they contain.
func (kv *KVStore) loadLevels() error {
	names, err := fsutil.ScanDir(kv.dir)
	if err != nil {
		return err
	}

	byIndex := make(map[int][]*SSTable)
	maxLevel := -1
	for _, name := range names {
		index, ok := parseLevelName(name)
		if !ok {
			continue
		}
		level, err := kv.loadLevel(filepath.Join(kv.dir, name))
		if err != nil {
			return err
		}
		byIndex[index] = level
		if index > maxLevel {
			maxLevel = index
		}
	}
	if maxLevel < 0 {
		return nil
	}

	kv.levels = make([][]*SSTable, maxLevel+1)
	for i := 0; i <= maxLevel; i++ {
		level := byIndex[i]
		if i == 0 {
			sort.Slice(level, func(a, b int) bool { return level[a].timestamp < level[b].timestamp })
		} else {
			sort.Slice(level, func(a, b int) bool { return level[a].minKey < level[b].minKey })
		}
		kv.levels[i] = level
	}
	return nil
}

// loadLevel loads all .sst files of one level directory and advances the
// engine counters past everything seen.
func (kv *KVStore) loadLevel(levelDir string) ([]*SSTable, error) {
	names, err := fsutil.ScanDir(levelDir)
	if err != nil {
		return nil, err
	}

	level := make([]*SSTable, 0, len(names))
	for _, name := range names {
		stem, found := strings.CutSuffix(name, ".sst")
		if !found {
			continue
		}
		sstNo, err := strconv.ParseUint(stem, 10, 64)
		if err != nil {
			continue
		}

		sst, err := OpenSSTable(filepath.Join(levelDir, name))
		if err != nil {
			return nil, fmt.Errorf("load %s: %w", name, err)
		}
		level = append(level, sst)

		if sst.timestamp >= kv.timestamp {
			kv.timestamp = sst.timestamp + 1
		}
		if sstNo >= kv.sstNo {
			kv.sstNo = sstNo + 1
		}
	}
	return level, nil
}

func parseLevelName(name string) (int, bool) {
	suffix, found := strings.CutPrefix(name, "level-")
	if !found {
		return 0, false
	}
	index, err := strconv.Atoi(suffix)
	if err != nil || index < 0 {
		return 0, false
	}
	return index, true
}

// Put inserts or updates a key. When the memtable rejects the write
// because the projected file size would exceed the SSTable cap, it is
// flushed to a new level-0 SSTable, reset, the write re-attempted, and
// compaction invoked.
func (kv *KVStore) Put(key uint64, value []byte) error {
	kv.stats.Writes++

	if kv.memTable.Put(key, value) {
		return nil
	}
	if kv.memTable.IsEmpty() {
		return ErrValueTooLarge
	}

	if err := kv.flushMemTable(); err != nil {
		return err
	}
	if !kv.memTable.Put(key, value) {
		return ErrValueTooLarge
	}
	return kv.compact()
}

// Get returns the value for key, or nil when it is absent or its latest
// record is a tombstone.
func (kv *KVStore) Get(key uint64) ([]byte, error) {
	kv.stats.Reads++

	if value, ok := kv.memTable.Get(key); ok {
		if string(value) == Tombstone {
			return nil, nil
		}
		return value, nil
	}

	value, ok, err := kv.searchLevels(key)
	if err != nil {
		return nil, err
	}
	if !ok || string(value) == Tombstone {
		return nil, nil
	}
	return value, nil
}

// searchLevels walks the levels top-down and stops at the first hit.
// Level 0 is iterated newest-first because its ranges may overlap; every
// other level holds disjoint ranges and is binary searched.
func (kv *KVStore) searchLevels(key uint64) ([]byte, bool, error) {
	for index, level := range kv.levels {
		if index == 0 {
			for i := len(level) - 1; i >= 0; i-- {
				value, ok, err := level[i].Get(key)
				if err != nil || ok {
					return value, ok, err
				}
			}
			continue
		}
		if sst := searchLevel(level, key); sst != nil {
			value, ok, err := sst.Get(key)
			if err != nil || ok {
				return value, ok, err
			}
		}
	}
	return nil, false, nil
}

// Del removes a key by writing the tombstone literal. It reports whether
// the key was present beforehand; a tombstone hit counts as absent. The
// presence probe runs before the tombstone write so a purge during the
// triggered compaction cannot skew the answer.
func (kv *KVStore) Del(key uint64) (bool, error) {
	kv.stats.Deletes++

	present := kv.memTable.Del(key)
	_, tombstoned := kv.memTable.Get(key)

	if !present && !tombstoned {
		value, ok, err := kv.searchLevels(key)
		if err != nil {
			return false, err
		}
		present = ok && string(value) != Tombstone
	}

	if err := kv.Put(key, []byte(Tombstone)); err != nil {
		return false, err
	}
	return present, nil
}

// Reset wipes the memtable and the level vector, then removes every
// level-<i> subdirectory of the base directory together with the files in
// it. Other entries of the base directory are left in place.
func (kv *KVStore) Reset() error {
	kv.memTable.Reset()
	kv.levels = [][]*SSTable{{}}

	names, err := fsutil.ScanDir(kv.dir)
	if err != nil {
		return err
	}
	for _, name := range names {
		if _, ok := parseLevelName(name); !ok {
			continue
		}
		levelDir := filepath.Join(kv.dir, name)
		files, err := fsutil.ScanDir(levelDir)
		if err != nil {
			return err
		}
		for _, file := range files {
			if err := fsutil.RemoveFile(filepath.Join(levelDir, file)); err != nil {
				return err
			}
		}
		if err := fsutil.RemoveDir(levelDir); err != nil {
			return err
		}
	}
	return nil
}

// Close flushes a non-empty memtable so every accepted write is on disk,
// then runs a final compaction pass.
func (kv *KVStore) Close() error {
	if kv.memTable.IsEmpty() {
		return nil
	}
	if err := kv.flushMemTable(); err != nil {
		return err
	}
	return kv.compact()
}

// flushMemTable persists the memtable as a new level-0 SSTable and
// resets it.
func (kv *KVStore) flushMemTable() error {
	sst, err := kv.memTable.Flush(kv.timestamp, kv.sstNo, kv.dir)
	if err != nil {
		return err
	}
	kv.timestamp++
	kv.sstNo++
	kv.memTable.Reset()
	kv.levels[0] = append(kv.levels[0], sst)
	kv.stats.Flushes++
	return nil
}

func (kv *KVStore) sstPath(level int, sstNo uint64) string {
	return filepath.Join(kv.dir, levelName(level), strconv.FormatUint(sstNo, 10)+".sst")
}
