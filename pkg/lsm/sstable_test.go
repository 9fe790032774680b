package lsm

import (
	"bytes"
	"os"
	"testing"
)

// newTestSSTable flushes a memtable with the given entries and reloads
// the resulting file from disk.
func newTestSSTable(t *testing.T, entries map[uint64][]byte) *SSTable {
	t.Helper()
	mt := NewMemTable()
	for key, value := range entries {
		if !mt.Put(key, value) {
			t.Fatalf("put %d rejected while building test table", key)
		}
	}
	written, err := mt.Flush(1, 1, t.TempDir())
	if err != nil {
		t.Fatalf("flush failed: %v", err)
	}
	sst, err := OpenSSTable(written.Path())
	if err != nil {
		t.Fatalf("open failed: %v", err)
	}
	return sst
}

func TestSSTableLoadHeader(t *testing.T) {
	sst := newTestSSTable(t, map[uint64][]byte{
		10: []byte("ten"),
		20: []byte("twenty"),
		30: []byte("thirty"),
	})

	if sst.NumKeys() != 3 {
		t.Fatalf("numKeys = %d, want 3", sst.NumKeys())
	}
	if sst.MinKey() != 10 || sst.MaxKey() != 30 {
		t.Fatalf("range = [%d, %d], want [10, 30]", sst.MinKey(), sst.MaxKey())
	}
	if sst.Timestamp() != 1 {
		t.Fatalf("timestamp = %d, want 1", sst.Timestamp())
	}

	wantSize := uint64(HeaderSize + BloomFilterSize + 3*IndexEntrySize + len("ten")+len("twenty")+len("thirty"))
	if sst.FileSize() != wantSize {
		t.Fatalf("file size = %d, want %d", sst.FileSize(), wantSize)
	}
}

func TestSSTableKeysSorted(t *testing.T) {
	entries := map[uint64][]byte{}
	for i := 0; i < 100; i++ {
		entries[uint64(i*37%1000)] = []byte{byte(i)}
	}
	sst := newTestSSTable(t, entries)

	for i := 1; i < len(sst.keys); i++ {
		if sst.keys[i-1] >= sst.keys[i] {
			t.Fatalf("keys not strictly increasing at %d: %d >= %d", i, sst.keys[i-1], sst.keys[i])
		}
	}
	if sst.keys[0] != sst.minKey || sst.keys[len(sst.keys)-1] != sst.maxKey {
		t.Error("min/max do not match first/last key")
	}
}

func TestSSTableGet(t *testing.T) {
	sst := newTestSSTable(t, map[uint64][]byte{
		5:  []byte("five"),
		15: []byte("fifteen"),
		25: {}, // empty values are legal
	})

	for key, want := range map[uint64]string{5: "five", 15: "fifteen", 25: ""} {
		got, ok, err := sst.Get(key)
		if err != nil {
			t.Fatalf("get %d: %v", key, err)
		}
		if !ok || string(got) != want {
			t.Fatalf("get %d = %q, %v; want %q", key, got, ok, want)
		}
	}

	// Below, above and inside a gap of the range
	for _, key := range []uint64{0, 10, 100} {
		if _, ok, err := sst.Get(key); ok || err != nil {
			t.Fatalf("get %d should miss cleanly, got ok=%v err=%v", key, ok, err)
		}
	}
}

func TestSSTableContains(t *testing.T) {
	sst := newTestSSTable(t, map[uint64][]byte{10: []byte("a"), 30: []byte("b")})

	for key, want := range map[uint64]bool{9: false, 10: true, 20: true, 30: true, 31: false} {
		if sst.Contains(key) != want {
			t.Errorf("Contains(%d) = %v, want %v", key, !want, want)
		}
	}
}

func TestSSTableAllValues(t *testing.T) {
	entries := map[uint64][]byte{}
	for i := uint64(0); i < 50; i++ {
		entries[i] = bytes.Repeat([]byte{byte(i)}, int(i)+1)
	}
	sst := newTestSSTable(t, entries)

	values, err := sst.AllValues()
	if err != nil {
		t.Fatalf("AllValues failed: %v", err)
	}
	if len(values) != 50 {
		t.Fatalf("got %d values, want 50", len(values))
	}
	for i, value := range values {
		key := sst.keys[i]
		if !bytes.Equal(value, entries[key]) {
			t.Fatalf("value %d mismatch for key %d", i, key)
		}
	}
}

func TestSSTableValueAt(t *testing.T) {
	sst := newTestSSTable(t, map[uint64][]byte{
		1: []byte("first"),
		2: []byte("second"),
		3: []byte("last-runs-to-eof"),
	})

	for i, want := range []string{"first", "second", "last-runs-to-eof"} {
		got, err := sst.ValueAt(i)
		if err != nil || string(got) != want {
			t.Fatalf("ValueAt(%d) = %q, %v; want %q", i, got, err, want)
		}
	}
}

func TestSSTableGetSurfacesIOErrors(t *testing.T) {
	sst := newTestSSTable(t, map[uint64][]byte{1: []byte("gone")})

	if err := os.Remove(sst.Path()); err != nil {
		t.Fatal(err)
	}
	if _, ok, err := sst.Get(1); err == nil || ok {
		t.Fatalf("expected error reading value from removed file, got ok=%v err=%v", ok, err)
	}
}
