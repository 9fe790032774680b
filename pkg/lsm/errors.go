package lsm

import "errors"

// Common sentinel errors
var (
	// ErrValueTooLarge means a single value cannot fit in an SSTable
	// even with an empty memtable. The memtable-full condition itself
	// is internal and never surfaces; this is the one put failure that
	// no flush can resolve.
	ErrValueTooLarge = errors.New("value exceeds maximum SSTable size")
)
