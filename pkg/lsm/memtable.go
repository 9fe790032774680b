package lsm

import (
	"path/filepath"
	"strconv"

	"github.com/zeebo/pcg"

	"github.com/dd0wney/cluso-kv/pkg/fsutil"
)

// node is one cell of the skip list. The bottom level holds every live
// entry with forward and backward links; each higher level is a sparse
// view over the level below. Every level starts at a header sentinel.
type node struct {
	key   uint64
	value []byte

	left, right, down *node
}

// MemTable is the in-memory write buffer: a skip list with a companion
// Bloom filter and running counters. fileSize tracks the exact byte size
// of the SSTable a flush would produce right now, so the overflow check
// in Put is precise rather than an estimate.
type MemTable struct {
	head *node // top-left sentinel

	bloom BloomFilter

	size     uint64 // distinct live keys, tombstones included
	fileSize uint64 // projected SSTable size in bytes
}

// NewMemTable creates an empty memtable.
func NewMemTable() *MemTable {
	return &MemTable{
		head:     &node{},
		fileSize: HeaderSize + BloomFilterSize,
	}
}

// Size returns the number of distinct live keys, tombstones included.
func (mt *MemTable) Size() uint64 {
	return mt.size
}

// FileSize returns the byte size of the SSTable a flush would produce.
func (mt *MemTable) FileSize() uint64 {
	return mt.fileSize
}

// IsEmpty reports whether the memtable holds no entries.
func (mt *MemTable) IsEmpty() bool {
	return mt.size == 0
}

// Get returns the stored bytes for key. Tombstone values are returned
// as-is; the engine interprets them.
func (mt *MemTable) Get(key uint64) ([]byte, bool) {
	if !mt.bloom.MayContain(key) {
		return nil, false
	}
	if n := mt.findNode(key); n != nil {
		return n.value, true
	}
	return nil, false
}

// findNode descends from the top-left sentinel, moving right while the
// next key is strictly less than key and down otherwise.
func (mt *MemTable) findNode(key uint64) *node {
	n := mt.head
	for n != nil {
		for n.right != nil && n.right.key < key {
			n = n.right
		}
		if n.right != nil && n.right.key == key {
			return n.right
		}
		n = n.down
	}
	return nil
}

// Put inserts or replaces key. It returns false, without modifying
// anything, when the projected file size would exceed the SSTable cap;
// the caller must flush, reset and re-attempt. Tombstone writes go
// through Put like any other value and are added to the Bloom filter so
// deletion records stay visible through it.
func (mt *MemTable) Put(key uint64, value []byte) bool {
	// Record the rightmost node left of key at every level, top-down.
	path := make([]*node, 0, 16)
	n := mt.head
	for n != nil {
		for n.right != nil && n.right.key < key {
			n = n.right
		}
		path = append(path, n)
		n = n.down
	}

	bottom := path[len(path)-1]
	if next := bottom.right; next != nil && next.key == key {
		// In-place replacement at every level the key appears in.
		delta := len(value) - len(next.value)
		if delta > 0 && mt.fileSize+uint64(delta) > MaxSSTableSize {
			return false
		}
		mt.fileSize = uint64(int64(mt.fileSize) + int64(delta))
		mt.bloom.Put(key)
		for i := len(path) - 1; i >= 0; i-- {
			prev := path[i]
			if prev.right == nil || prev.right.key != key {
				break
			}
			prev.right.value = value
		}
		return true
	}

	grow := uint64(IndexEntrySize + len(value))
	if mt.fileSize+grow > MaxSSTableSize {
		return false
	}
	mt.fileSize += grow
	mt.size++
	mt.bloom.Put(key)

	// Insert at the bottom level, then promote with fair-coin trials,
	// growing new top levels with fresh sentinels as needed.
	var down *node
	level := len(path) - 1
	insertUp := true
	for insertUp && level >= 0 {
		prev := path[level]
		fresh := &node{key: key, value: value, left: prev, right: prev.right, down: down}
		prev.right = fresh
		if fresh.right != nil {
			fresh.right.left = fresh
		}
		down = fresh
		level--
		insertUp = coinFlip()
	}
	for insertUp {
		oldHead := mt.head
		mt.head = &node{down: oldHead}
		fresh := &node{key: key, value: value, left: mt.head, down: down}
		mt.head.right = fresh
		down = fresh
		insertUp = coinFlip()
	}
	return true
}

func coinFlip() bool {
	return pcg.Uint32()&1 == 1
}

// Del unlinks key at every level it appears in and updates the counters.
// It returns true iff the key existed and was not already a tombstone.
// The engine-level delete calls it as the memtable part of its presence
// probe, before writing the tombstone record.
func (mt *MemTable) Del(key uint64) bool {
	top := mt.findNode(key)
	if top == nil || string(top.value) == Tombstone {
		return false
	}

	mt.fileSize -= uint64(IndexEntrySize + len(top.value))
	mt.size--

	for top != nil {
		top.left.right = top.right
		if top.right != nil {
			top.right.left = top.left
		}
		top = top.down
	}

	// Drop levels that became empty.
	for mt.head.down != nil && mt.head.right == nil {
		mt.head = mt.head.down
	}

	return true
}

// Reset drops all nodes, zeroes the Bloom filter and restores the
// counters to the header-plus-filter baseline.
func (mt *MemTable) Reset() {
	mt.head = &node{}
	mt.bloom.Reset()
	mt.size = 0
	mt.fileSize = HeaderSize + BloomFilterSize
}

// Flush writes the memtable as a new level-0 SSTable named
// <dir>/level-0/<sstNo>.sst and returns a fully populated in-memory
// handle, so subsequent reads don't need to reparse the file. The caller
// guarantees the memtable is not empty.
func (mt *MemTable) Flush(timestamp, sstNo uint64, dir string) (*SSTable, error) {
	levelDir := filepath.Join(dir, levelName(0))
	if !fsutil.DirExists(levelDir) {
		if err := fsutil.Mkdir(levelDir); err != nil {
			return nil, err
		}
	}

	bottom := mt.head
	for bottom.down != nil {
		bottom = bottom.down
	}

	sst := &SSTable{
		path:      filepath.Join(levelDir, strconv.FormatUint(sstNo, 10)+".sst"),
		timestamp: timestamp,
		numKeys:   mt.size,
		bloom:     mt.bloom,
		keys:      make([]uint64, 0, mt.size),
		offsets:   make([]uint32, 0, mt.size),
		fileSize:  mt.fileSize,
	}

	values := make([][]byte, 0, mt.size)
	offset := uint32(HeaderSize + BloomFilterSize + int(mt.size)*IndexEntrySize)
	for n := bottom.right; n != nil; n = n.right {
		sst.keys = append(sst.keys, n.key)
		sst.offsets = append(sst.offsets, offset)
		values = append(values, n.value)
		offset += uint32(len(n.value))
	}

	sst.minKey = sst.keys[0]
	sst.maxKey = sst.keys[len(sst.keys)-1]

	if err := sst.WriteTo(values); err != nil {
		return nil, err
	}
	return sst, nil
}
