package lsm

import (
	"container/heap"
	"io"
	"os"
	"path/filepath"

	"github.com/dd0wney/cluso-kv/pkg/fsutil"
)

// compact runs the compaction policy: resolve a level-0 overflow first,
// then every overflowing middle level top-down, then relocate the bottom
// level's overflow into a newly created level. Invoked after every flush
// and once at startup.
func (kv *KVStore) compact() error {
	ran := false

	if len(kv.levels[0]) > levelCapacity(0) {
		if err := kv.compactLevel0(); err != nil {
			return err
		}
		ran = true
	}

	last := len(kv.levels) - 1
	for level := 1; level < last; level++ {
		if len(kv.levels[level]) > levelCapacity(level) {
			// Tombstones are reclaimed only when merging into the
			// current bottom level; anywhere else they must survive to
			// shadow older records further down.
			if err := kv.compactLevel(level, level == last-1); err != nil {
				return err
			}
			ran = true
		}
	}

	if last >= 1 && len(kv.levels[last]) > levelCapacity(last) {
		if err := kv.overflowBottom(last); err != nil {
			return err
		}
		ran = true
	}

	if ran {
		kv.stats.Compactions++
	}
	return nil
}

// compactLevel0 multi-way merges every level-0 SSTable together with all
// level-1 SSTables whose ranges intersect the union of level 0, creating
// level 1 if it does not exist yet.
func (kv *KVStore) compactLevel0() error {
	level0 := kv.levels[0]

	cursors := make(mergeHeap, 0, len(level0))
	minKey, maxKey := ^uint64(0), uint64(0)
	maxTimestamp := uint64(0)
	for _, sst := range level0 {
		cursor, err := newMergeCursor(sst)
		if err != nil {
			return err
		}
		cursors = append(cursors, cursor)
		if sst.minKey < minKey {
			minKey = sst.minKey
		}
		if sst.maxKey > maxKey {
			maxKey = sst.maxKey
		}
		if sst.timestamp > maxTimestamp {
			maxTimestamp = sst.timestamp
		}
	}

	if len(kv.levels) == 1 {
		if err := kv.ensureLevelDir(1); err != nil {
			return err
		}
		heap.Init(&cursors)
		merged, err := kv.multiWayMerge(1, &cursors, maxTimestamp)
		if err != nil {
			return err
		}
		kv.levels = append(kv.levels, merged)
		kv.levels[0] = kv.levels[0][:0]
		return nil
	}

	discard := make(map[*SSTable]bool)
	for _, sst := range overlapRange(kv.levels[1], minKey, maxKey) {
		cursor, err := newMergeCursor(sst)
		if err != nil {
			return err
		}
		cursors = append(cursors, cursor)
		discard[sst] = true
		if sst.timestamp > maxTimestamp {
			maxTimestamp = sst.timestamp
		}
	}

	heap.Init(&cursors)
	merged, err := kv.multiWayMerge(1, &cursors, maxTimestamp)
	if err != nil {
		return err
	}
	kv.levels[1] = spliceLevel(kv.levels[1], discard, merged)
	kv.levels[0] = kv.levels[0][:0]
	return nil
}

func newMergeCursor(sst *SSTable) (*mergeCursor, error) {
	values, err := sst.AllValues()
	if err != nil {
		return nil, err
	}
	return &mergeCursor{sst: sst, values: values}, nil
}

// multiWayMerge drains the cursor heap into a sequence of output
// SSTables at the target level, each within the file size cap. For a
// duplicate key the first popped record wins: the heap's tie-break puts
// the newest timestamp in front. Input files are unlinked as their
// cursors exhaust. Every output carries the max timestamp of the inputs.
func (kv *KVStore) multiWayMerge(level int, cursors *mergeHeap, timestamp uint64) ([]*SSTable, error) {
	var result []*SSTable

	for cursors.Len() > 0 {
		out := newMergedSSTable(kv.sstPath(level, kv.sstNo), timestamp)
		kv.sstNo++

		fileSize := uint64(HeaderSize + BloomFilterSize)
		var values [][]byte
		full := false

		for cursors.Len() > 0 && !full {
			cursor := (*cursors)[0]
			key := cursor.key()

			if out.numKeys > 0 && out.keys[out.numKeys-1] == key {
				if err := kv.advanceCursor(cursors); err != nil {
					return nil, err
				}
				continue
			}

			value := cursor.value()
			grow := uint64(IndexEntrySize + len(value))
			if fileSize+grow > MaxSSTableSize {
				// The entry stays enqueued for the next output.
				full = true
				continue
			}

			out.appendEntry(key)
			values = append(values, value)
			fileSize += grow
			if err := kv.advanceCursor(cursors); err != nil {
				return nil, err
			}
		}

		if out.numKeys > 0 {
			if err := out.save(fileSize, values); err != nil {
				return nil, err
			}
			result = append(result, out)
		}
	}

	return result, nil
}

// advanceCursor moves the heap's front cursor one key forward, removing
// it and unlinking its input file once exhausted.
func (kv *KVStore) advanceCursor(cursors *mergeHeap) error {
	cursor := (*cursors)[0]
	cursor.idx++
	if cursor.exhausted() {
		heap.Pop(cursors)
		return fsutil.RemoveFile(cursor.sst.path)
	}
	heap.Fix(cursors, 0)
	return nil
}

// compactLevel resolves an overflow of a middle level: the oldest
// |level| - capacity SSTables are each 2-way merged with their overlap
// set in the level below, and both levels are rebuilt.
func (kv *KVStore) compactLevel(level int, removeTombstones bool) error {
	evictCount := len(kv.levels[level]) - levelCapacity(level)
	discard, evictees := selectEvictees(kv.levels[level], evictCount)

	for _, sst := range evictees {
		next := kv.levels[level+1]
		overlap := overlapRange(next, sst.minKey, sst.maxKey)
		nextDiscard := make(map[*SSTable]bool, len(overlap))
		for _, o := range overlap {
			nextDiscard[o] = true
		}

		merged, err := kv.mergeEvictee(level+1, sst, overlap, removeTombstones)
		if err != nil {
			return err
		}
		kv.levels[level+1] = spliceLevel(next, nextDiscard, merged)
	}

	kv.levels[level] = filterLevel(kv.levels[level], discard)
	return nil
}

// mergeEvictee 2-way merges one evicted SSTable with its sorted overlap
// set from the target level. Both sides are key-sorted; ties prefer the
// evictee, whose timestamp is strictly newer by the eviction policy.
// A set of emitted keys drops the losing side of every duplicate across
// output boundaries. When removeTombstones is set, tombstone records are
// dropped entirely (and still recorded as emitted, so an older record of
// the same key cannot resurface). All input files are unlinked at the
// end.
func (kv *KVStore) mergeEvictee(level int, upper *SSTable, overlap []*SSTable, removeTombstones bool) ([]*SSTable, error) {
	upperValues, err := upper.AllValues()
	if err != nil {
		return nil, err
	}
	overlapValues := make([][][]byte, len(overlap))
	for i, sst := range overlap {
		if overlapValues[i], err = sst.AllValues(); err != nil {
			return nil, err
		}
	}

	timestamp := upper.timestamp
	for _, sst := range overlap {
		if sst.timestamp > timestamp {
			timestamp = sst.timestamp
		}
	}

	emitted := make(map[uint64]bool)
	ui := 0        // position in the evictee
	oi, oj := 0, 0 // overlap table, position within it

	hasNext := func() bool {
		return ui < len(upper.keys) || oi < len(overlap)
	}
	advance := func(fromUpper bool) {
		if fromUpper {
			ui++
			return
		}
		oj++
		if oj >= len(overlap[oi].keys) {
			oj = 0
			oi++
		}
	}

	var result []*SSTable
	for hasNext() {
		out := newMergedSSTable(kv.sstPath(level, kv.sstNo), timestamp)
		kv.sstNo++

		fileSize := uint64(HeaderSize + BloomFilterSize)
		var values [][]byte
		full := false

		for hasNext() && !full {
			var key uint64
			var value []byte
			var fromUpper bool

			switch {
			case oi >= len(overlap):
				key, value, fromUpper = upper.keys[ui], upperValues[ui], true
			case ui >= len(upper.keys):
				key, value = overlap[oi].keys[oj], overlapValues[oi][oj]
			case upper.keys[ui] <= overlap[oi].keys[oj]:
				key, value, fromUpper = upper.keys[ui], upperValues[ui], true
			default:
				key, value = overlap[oi].keys[oj], overlapValues[oi][oj]
			}

			if emitted[key] {
				advance(fromUpper)
				continue
			}
			if removeTombstones && string(value) == Tombstone {
				emitted[key] = true
				advance(fromUpper)
				continue
			}

			grow := uint64(IndexEntrySize + len(value))
			if fileSize+grow > MaxSSTableSize {
				// The entry stays pending for the next output.
				full = true
				continue
			}

			out.appendEntry(key)
			values = append(values, value)
			fileSize += grow
			emitted[key] = true
			advance(fromUpper)
		}

		if out.numKeys > 0 {
			if err := out.save(fileSize, values); err != nil {
				return nil, err
			}
			result = append(result, out)
		}
	}

	if err := fsutil.RemoveFile(upper.path); err != nil {
		return nil, err
	}
	for _, sst := range overlap {
		if err := fsutil.RemoveFile(sst.path); err != nil {
			return nil, err
		}
	}
	return result, nil
}

// overflowBottom resolves an overflow of the deepest level: a new level
// is created and the eviction candidates are relocated into it
// physically. No merge is needed because there is nothing below yet; the
// relocated SSTables keep their timestamps and filename stems.
func (kv *KVStore) overflowBottom(last int) error {
	evictCount := len(kv.levels[last]) - levelCapacity(last)
	discard, evictees := selectEvictees(kv.levels[last], evictCount)

	if err := kv.ensureLevelDir(last + 1); err != nil {
		return err
	}

	newLevel := make([]*SSTable, 0, len(evictees))
	for _, sst := range evictees {
		newPath := filepath.Join(kv.dir, levelName(last+1), filepath.Base(sst.path))
		if err := copyFile(sst.path, newPath); err != nil {
			return err
		}
		if err := fsutil.RemoveFile(sst.path); err != nil {
			return err
		}
		sst.path = newPath
		newLevel = append(newLevel, sst)
	}

	kv.levels = append(kv.levels, newLevel)
	kv.levels[last] = filterLevel(kv.levels[last], discard)
	return nil
}

func (kv *KVStore) ensureLevelDir(level int) error {
	dir := filepath.Join(kv.dir, levelName(level))
	if fsutil.DirExists(dir) {
		return nil
	}
	return fsutil.Mkdir(dir)
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return err
	}
	return out.Close()
}
