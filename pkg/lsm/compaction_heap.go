package lsm

import (
	"container/heap"
	"sort"
)

// mergeCursor walks one input SSTable during a multi-way merge. Values
// are preloaded in bulk so popping never pays a per-key file open.
type mergeCursor struct {
	sst    *SSTable
	values [][]byte
	idx    int
}

func (c *mergeCursor) key() uint64 {
	return c.sst.keys[c.idx]
}

func (c *mergeCursor) value() []byte {
	return c.values[c.idx]
}

func (c *mergeCursor) exhausted() bool {
	return c.idx >= len(c.sst.keys)
}

// mergeHeap is a min-heap over cursors keyed by (current key asc,
// timestamp desc), so for duplicate keys the newest record surfaces
// first and the older ones can be discarded.
type mergeHeap []*mergeCursor

func (h mergeHeap) Len() int { return len(h) }

func (h mergeHeap) Less(i, j int) bool {
	ki, kj := h[i].key(), h[j].key()
	if ki != kj {
		return ki < kj
	}
	return h[i].sst.timestamp > h[j].sst.timestamp
}

func (h mergeHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *mergeHeap) Push(x any) { *h = append(*h, x.(*mergeCursor)) }

func (h *mergeHeap) Pop() any {
	old := *h
	last := old[len(old)-1]
	*h = old[:len(old)-1]
	return last
}

// evictionHeap is a bounded max-heap by (timestamp, minKey) used to
// select the k oldest SSTables of a level in one pass: push everything,
// pop whenever the size exceeds k, and the k smallest remain.
type evictionHeap []*SSTable

func (h evictionHeap) Len() int { return len(h) }

func (h evictionHeap) Less(i, j int) bool {
	if h[i].timestamp != h[j].timestamp {
		return h[i].timestamp > h[j].timestamp
	}
	return h[i].minKey > h[j].minKey
}

func (h evictionHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *evictionHeap) Push(x any) { *h = append(*h, x.(*SSTable)) }

func (h *evictionHeap) Pop() any {
	old := *h
	last := old[len(old)-1]
	*h = old[:len(old)-1]
	return last
}

// selectEvictees picks the k eviction candidates of a level: oldest
// timestamp first, ties broken by smallest min key. The result is
// ordered by min key for stable downstream processing.
func selectEvictees(level []*SSTable, k int) (map[*SSTable]bool, []*SSTable) {
	h := make(evictionHeap, 0, k+1)
	for _, sst := range level {
		heap.Push(&h, sst)
		if h.Len() > k {
			heap.Pop(&h)
		}
	}

	discard := make(map[*SSTable]bool, k)
	evictees := make([]*SSTable, len(h))
	copy(evictees, h)
	for _, sst := range evictees {
		discard[sst] = true
	}
	sort.Slice(evictees, func(i, j int) bool { return evictees[i].minKey < evictees[j].minKey })
	return discard, evictees
}
