package lsm

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"os"
	"sort"
)

// OpenSSTable loads an SSTable handle from a file. The header, Bloom
// filter and index are read into memory; no value payload is touched.
func OpenSSTable(path string) (*SSTable, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	// Note: bufio.NewReader does not return an error - it always succeeds
	reader := bufio.NewReader(file)

	var header sstHeader
	if err := binary.Read(reader, binary.LittleEndian, &header); err != nil {
		return nil, fmt.Errorf("read header of %s: %w", path, err)
	}

	sst := &SSTable{
		path:      path,
		timestamp: header.Timestamp,
		numKeys:   header.NumKeys,
		minKey:    header.MinKey,
		maxKey:    header.MaxKey,
		keys:      make([]uint64, header.NumKeys),
		offsets:   make([]uint32, header.NumKeys),
	}

	if err := sst.bloom.ReadFrom(reader); err != nil {
		return nil, fmt.Errorf("read bloom filter of %s: %w", path, err)
	}

	var entry indexEntry
	for i := uint64(0); i < header.NumKeys; i++ {
		if err := binary.Read(reader, binary.LittleEndian, &entry); err != nil {
			return nil, fmt.Errorf("read index entry %d of %s: %w", i, path, err)
		}
		sst.keys[i] = entry.Key
		sst.offsets[i] = entry.Offset
	}

	info, err := file.Stat()
	if err != nil {
		return nil, err
	}
	sst.fileSize = uint64(info.Size())

	return sst, nil
}

// Get returns the raw stored bytes for key. The value may be the
// tombstone literal; interpreting it is the engine's job. The second
// return is false when the key is absent from this table.
func (sst *SSTable) Get(key uint64) ([]byte, bool, error) {
	if key < sst.minKey || key > sst.maxKey {
		return nil, false, nil
	}
	if !sst.bloom.MayContain(key) {
		return nil, false, nil
	}

	idx := sort.Search(len(sst.keys), func(i int) bool { return sst.keys[i] >= key })
	if idx == len(sst.keys) || sst.keys[idx] != key {
		return nil, false, nil
	}

	value, err := sst.ValueAt(idx)
	if err != nil {
		return nil, false, err
	}
	return value, true, nil
}

// ValueAt reads the value at index position idx from the backing file.
// The file descriptor is opened and released within the call.
func (sst *SSTable) ValueAt(idx int) ([]byte, error) {
	length := sst.valueLength(idx)

	file, err := os.Open(sst.path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	value := make([]byte, length)
	if _, err := file.ReadAt(value, int64(sst.offsets[idx])); err != nil {
		return nil, fmt.Errorf("read value %d of %s: %w", idx, sst.path, err)
	}
	return value, nil
}

// valueLength derives a value's byte length from consecutive offsets;
// the last value runs to end-of-file.
func (sst *SSTable) valueLength(idx int) uint64 {
	if idx != len(sst.offsets)-1 {
		return uint64(sst.offsets[idx+1]) - uint64(sst.offsets[idx])
	}
	return sst.fileSize - uint64(sst.offsets[idx])
}
