package lsm

import (
	"fmt"

	"golang.org/x/exp/mmap"
)

// AllValues reads every value of the table in key order with a single
// open of the backing file. Compaction uses this to amortize the read
// cost over all values instead of paying one open per key. The mapping
// is released before returning.
func (sst *SSTable) AllValues() ([][]byte, error) {
	if sst.numKeys == 0 {
		return nil, nil
	}

	reader, err := mmap.Open(sst.path)
	if err != nil {
		return nil, err
	}
	defer reader.Close()

	values := make([][]byte, sst.numKeys)
	for i := range values {
		value := make([]byte, sst.valueLength(i))
		if _, err := reader.ReadAt(value, int64(sst.offsets[i])); err != nil {
			return nil, fmt.Errorf("read value %d of %s: %w", i, sst.path, err)
		}
		values[i] = value
	}

	return values, nil
}
