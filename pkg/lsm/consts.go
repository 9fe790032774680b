package lsm

import "strconv"

const (
	// HeaderSize is the fixed SSTable header: timestamp(8) | numKeys(8) | minKey(8) | maxKey(8)
	HeaderSize = 32

	// BloomFilterSize is the number of filter slots, stored one byte per slot on disk
	BloomFilterSize = 10240

	// IndexEntrySize is the per-key index footprint: key(8) | valueOffset(4)
	IndexEntrySize = 12

	// MaxSSTableSize caps every persisted SSTable file at 2 MiB
	MaxSSTableSize = 1 << 21

	// Tombstone is the reserved value literal that encodes a deletion.
	// It is part of the on-disk contract.
	Tombstone = "~DELETED~"
)

// levelCapacity returns the soft capacity of a level: 2^(level+1) SSTables.
func levelCapacity(level int) int {
	return 2 << level
}

// levelName returns the subdirectory name for a level.
func levelName(level int) string {
	return "level-" + strconv.Itoa(level)
}
