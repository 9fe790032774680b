package lsm

import "sort"

// searchLevel finds the unique SSTable whose key range contains key in a
// level with pairwise disjoint ranges sorted by min key, or nil. Level 0
// is never searched this way; its ranges may overlap.
func searchLevel(level []*SSTable, key uint64) *SSTable {
	left, right := 0, len(level)-1
	for left <= right {
		mid := (left + right) / 2
		sst := level[mid]
		if sst.Contains(key) {
			return sst
		}
		if key > sst.maxKey {
			left = mid + 1
		} else {
			right = mid - 1
		}
	}
	return nil
}

// lowerBoundMaxKey returns the index of the first SSTable whose maxKey
// is >= key. It bounds the overlap scan during compaction.
func lowerBoundMaxKey(level []*SSTable, key uint64) int {
	return sort.Search(len(level), func(i int) bool { return level[i].maxKey >= key })
}

// overlapRange collects the SSTables of a sorted disjoint level whose
// ranges intersect [minKey, maxKey], preserving key order.
func overlapRange(level []*SSTable, minKey, maxKey uint64) []*SSTable {
	var overlap []*SSTable
	for i := lowerBoundMaxKey(level, minKey); i < len(level) && level[i].minKey <= maxKey; i++ {
		overlap = append(overlap, level[i])
	}
	return overlap
}

// filterLevel rebuilds a level keeping original order, dropping the
// discard set.
func filterLevel(level []*SSTable, discard map[*SSTable]bool) []*SSTable {
	kept := make([]*SSTable, 0, len(level))
	for _, sst := range level {
		if !discard[sst] {
			kept = append(kept, sst)
		}
	}
	return kept
}

// spliceLevel rebuilds a level after a merge: retained SSTables keep
// their original key order and the merge result is spliced at the
// position given by its first output's min key. Levels are small, so a
// linear scan suffices.
func spliceLevel(level []*SSTable, discard map[*SSTable]bool, merged []*SSTable) []*SSTable {
	if len(merged) == 0 {
		return filterLevel(level, discard)
	}

	minResult := merged[0].minKey
	rebuilt := make([]*SSTable, 0, len(level)+len(merged))

	i := 0
	for ; i < len(level) && level[i].maxKey < minResult; i++ {
		if !discard[level[i]] {
			rebuilt = append(rebuilt, level[i])
		}
	}
	rebuilt = append(rebuilt, merged...)
	for ; i < len(level); i++ {
		if !discard[level[i]] {
			rebuilt = append(rebuilt, level[i])
		}
	}
	return rebuilt
}
