package lsm

import (
	"bufio"
	"encoding/binary"
	"os"
)

// newMergedSSTable starts an empty SSTable handle for a compaction
// output. Fields are filled in by appendEntry and sealed by save.
func newMergedSSTable(path string, timestamp uint64) *SSTable {
	return &SSTable{
		path:      path,
		timestamp: timestamp,
		minKey:    ^uint64(0),
		maxKey:    0,
	}
}

// appendEntry records a key during a merge. The caller has already
// checked the size budget; offsets are computed later by save.
func (sst *SSTable) appendEntry(key uint64) {
	sst.keys = append(sst.keys, key)
	sst.bloom.Put(key)
	sst.numKeys++
	if key < sst.minKey {
		sst.minKey = key
	}
	if key > sst.maxKey {
		sst.maxKey = key
	}
}

// save computes the value offsets from the accumulated keys, stamps the
// final file size and writes the table to disk.
func (sst *SSTable) save(fileSize uint64, values [][]byte) error {
	sst.fileSize = fileSize

	offset := uint32(HeaderSize + BloomFilterSize + int(sst.numKeys)*IndexEntrySize)
	sst.offsets = make([]uint32, sst.numKeys)
	for i := range sst.offsets {
		sst.offsets[i] = offset
		offset += uint32(len(values[i]))
	}

	return sst.WriteTo(values)
}

// WriteTo persists the table in the on-disk layout. The caller
// guarantees that keys, offsets, minKey, maxKey, numKeys, timestamp and
// fileSize are already consistent with values.
func (sst *SSTable) WriteTo(values [][]byte) error {
	file, err := os.Create(sst.path)
	if err != nil {
		return err
	}

	// Note: bufio.NewWriter does not return an error - it always succeeds
	writer := bufio.NewWriter(file)

	header := sstHeader{
		Timestamp: sst.timestamp,
		NumKeys:   sst.numKeys,
		MinKey:    sst.minKey,
		MaxKey:    sst.maxKey,
	}
	if err := binary.Write(writer, binary.LittleEndian, &header); err != nil {
		_ = file.Close()
		return err
	}

	if err := sst.bloom.WriteTo(writer); err != nil {
		_ = file.Close()
		return err
	}

	for i := range sst.keys {
		entry := indexEntry{Key: sst.keys[i], Offset: sst.offsets[i]}
		if err := binary.Write(writer, binary.LittleEndian, &entry); err != nil {
			_ = file.Close()
			return err
		}
	}

	for _, value := range values {
		if _, err := writer.Write(value); err != nil {
			_ = file.Close()
			return err
		}
	}

	if err := writer.Flush(); err != nil {
		_ = file.Close()
		return err
	}
	if err := file.Sync(); err != nil {
		_ = file.Close()
		return err
	}
	return file.Close()
}
