package lsm

import (
	"encoding/binary"
	"io"

	"github.com/spaolacci/murmur3"
)

// BloomFilter is a fixed-size membership filter over uint64 keys.
// - False positives possible (may say key exists when it doesn't)
// - False negatives impossible (if it says key doesn't exist, it definitely doesn't)
//
// The on-disk form is the slot array verbatim: one byte per slot,
// non-zero meaning set. Packing the slots into bits would change the
// file format, so the byte-per-slot layout is kept.
type BloomFilter struct {
	slots [BloomFilterSize]byte
}

// bloomSeed is part of the on-disk contract: changing it invalidates
// every persisted filter.
const bloomSeed = 1

// bloomPositions derives the four slot positions for a key from a single
// 128-bit murmur3 hash of its little-endian byte representation.
func bloomPositions(key uint64) [4]uint32 {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], key)

	h := murmur3.New128WithSeed(bloomSeed)
	// Note: hash.Hash.Write never returns an error according to the interface contract
	_, _ = h.Write(buf[:])
	h1, h2 := h.Sum128()

	return [4]uint32{
		uint32(h1),
		uint32(h1 >> 32),
		uint32(h2),
		uint32(h2 >> 32),
	}
}

// Put adds a key to the filter.
func (bf *BloomFilter) Put(key uint64) {
	for _, pos := range bloomPositions(key) {
		bf.slots[pos%BloomFilterSize] = 1
	}
}

// MayContain reports whether the key might be in the set.
// Returns false only if the key was definitely never added.
func (bf *BloomFilter) MayContain(key uint64) bool {
	for _, pos := range bloomPositions(key) {
		if bf.slots[pos%BloomFilterSize] == 0 {
			return false
		}
	}
	return true
}

// Reset clears all slots.
func (bf *BloomFilter) Reset() {
	bf.slots = [BloomFilterSize]byte{}
}

// WriteTo writes exactly BloomFilterSize bytes to w.
func (bf *BloomFilter) WriteTo(w io.Writer) error {
	_, err := w.Write(bf.slots[:])
	return err
}

// ReadFrom reads exactly BloomFilterSize bytes from r.
func (bf *BloomFilter) ReadFrom(r io.Reader) error {
	_, err := io.ReadFull(r, bf.slots[:])
	return err
}
