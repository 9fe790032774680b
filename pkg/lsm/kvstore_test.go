package lsm

import (
	"bytes"
	"strings"
	"testing"

	"github.com/dd0wney/cluso-kv/pkg/fsutil"
)

func newTestKVStore(t *testing.T) *KVStore {
	t.Helper()
	kv, err := NewKVStore(t.TempDir())
	if err != nil {
		t.Fatalf("Failed to create KV store: %v", err)
	}
	return kv
}

func mustPut(t *testing.T, kv *KVStore, key uint64, value string) {
	t.Helper()
	if err := kv.Put(key, []byte(value)); err != nil {
		t.Fatalf("put %d failed: %v", key, err)
	}
}

func mustGet(t *testing.T, kv *KVStore, key uint64) string {
	t.Helper()
	value, err := kv.Get(key)
	if err != nil {
		t.Fatalf("get %d failed: %v", key, err)
	}
	return string(value)
}

func mustDel(t *testing.T, kv *KVStore, key uint64) bool {
	t.Helper()
	present, err := kv.Del(key)
	if err != nil {
		t.Fatalf("del %d failed: %v", key, err)
	}
	return present
}

func TestKVStoreSingleKeyLifecycle(t *testing.T) {
	kv := newTestKVStore(t)

	mustPut(t, kv, 1, "SE")
	if got := mustGet(t, kv, 1); got != "SE" {
		t.Fatalf("get = %q, want SE", got)
	}
	if !mustDel(t, kv, 1) {
		t.Fatal("del of present key returned false")
	}
	if got := mustGet(t, kv, 1); got != "" {
		t.Fatalf("get after del = %q, want empty", got)
	}
	if mustDel(t, kv, 1) {
		t.Fatal("second del returned true")
	}
}

func TestKVStoreSequentialPuts(t *testing.T) {
	kv := newTestKVStore(t)

	for i := uint64(0); i < 512; i++ {
		mustPut(t, kv, i, strings.Repeat("s", int(i)+1))
	}
	for i := uint64(0); i < 512; i++ {
		if got := mustGet(t, kv, i); got != strings.Repeat("s", int(i)+1) {
			t.Fatalf("get %d returned %d bytes, want %d", i, len(got), i+1)
		}
	}
}

func TestKVStoreAlternatingDeletes(t *testing.T) {
	kv := newTestKVStore(t)

	for i := uint64(0); i < 512; i++ {
		mustPut(t, kv, i, strings.Repeat("s", int(i)+1))
	}
	for i := uint64(0); i < 512; i += 2 {
		if !mustDel(t, kv, i) {
			t.Fatalf("del %d returned false", i)
		}
	}
	for i := uint64(0); i < 512; i++ {
		got := mustGet(t, kv, i)
		if i%2 == 0 && got != "" {
			t.Fatalf("even key %d still visible: %d bytes", i, len(got))
		}
		if i%2 == 1 && got != strings.Repeat("s", int(i)+1) {
			t.Fatalf("odd key %d corrupted", i)
		}
	}
	for i := uint64(0); i < 512; i++ {
		if mustDel(t, kv, i) != (i%2 == 1) {
			t.Fatalf("del %d presence mismatch", i)
		}
	}
}

func TestKVStoreOverwriteAcrossFlushAndCompaction(t *testing.T) {
	kv := newTestKVStore(t)
	const key = 77

	mustPut(t, kv, key, "a")
	mustPut(t, kv, key, "bb")
	if got := mustGet(t, kv, key); got != "bb" {
		t.Fatalf("in-memtable overwrite: got %q", got)
	}

	if err := kv.flushMemTable(); err != nil {
		t.Fatalf("flush failed: %v", err)
	}
	mustPut(t, kv, key, "ccc")
	if got := mustGet(t, kv, key); got != "ccc" {
		t.Fatalf("memtable shadowing SST: got %q", got)
	}

	// Two more flushes overflow level 0 and force a merge; the newest
	// record must win the duplicate resolution.
	if err := kv.flushMemTable(); err != nil {
		t.Fatalf("flush failed: %v", err)
	}
	mustPut(t, kv, key+1, "filler")
	if err := kv.flushMemTable(); err != nil {
		t.Fatalf("flush failed: %v", err)
	}
	if err := kv.compact(); err != nil {
		t.Fatalf("compact failed: %v", err)
	}

	if len(kv.levels[0]) != 0 {
		t.Fatalf("level 0 holds %d SSTables after compaction", len(kv.levels[0]))
	}
	if got := mustGet(t, kv, key); got != "ccc" {
		t.Fatalf("after compaction: got %q, want ccc", got)
	}
}

func TestKVStoreValueTooLarge(t *testing.T) {
	kv := newTestKVStore(t)

	tooBig := make([]byte, MaxSSTableSize)
	if err := kv.Put(1, tooBig); err != ErrValueTooLarge {
		t.Fatalf("put of oversized value: err = %v, want ErrValueTooLarge", err)
	}

	// Largest value that fits a fresh memtable
	exact := MaxSSTableSize - (HeaderSize + BloomFilterSize + IndexEntrySize)
	if err := kv.Put(1, make([]byte, exact)); err != nil {
		t.Fatalf("put of exact-fit value failed: %v", err)
	}
}

func TestKVStoreFlushOnOverflow(t *testing.T) {
	kv := newTestKVStore(t)

	// Two puts that cannot coexist in one memtable force a flush of the
	// first when the second arrives.
	half := (MaxSSTableSize - (HeaderSize + BloomFilterSize)) / 2
	mustPut(t, kv, 1, strings.Repeat("a", half))
	if kv.stats.Flushes != 0 {
		t.Fatal("flush before overflow")
	}
	mustPut(t, kv, 2, strings.Repeat("b", half))
	if kv.stats.Flushes != 1 {
		t.Fatalf("flushes = %d, want 1", kv.stats.Flushes)
	}
	if len(kv.levels[0]) != 1 {
		t.Fatalf("level 0 holds %d SSTables, want 1", len(kv.levels[0]))
	}

	// Both keys remain visible, one from disk and one from memory
	if len(mustGet(t, kv, 1)) != half {
		t.Fatal("flushed key unreadable")
	}
	if len(mustGet(t, kv, 2)) != half {
		t.Fatal("in-memory key unreadable")
	}
}

func TestKVStorePersistence(t *testing.T) {
	dir := t.TempDir()

	kv, err := NewKVStore(dir)
	if err != nil {
		t.Fatal(err)
	}
	for i := uint64(0); i < 2048; i++ {
		if err := kv.Put(i, bytes.Repeat([]byte{byte(i)}, 1024)); err != nil {
			t.Fatalf("put %d: %v", i, err)
		}
	}
	mustDel(t, kv, 100)
	if err := kv.Close(); err != nil {
		t.Fatalf("close failed: %v", err)
	}

	reopened, err := NewKVStore(dir)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	for i := uint64(0); i < 2048; i++ {
		got := mustGet(t, reopened, i)
		if i == 100 {
			if got != "" {
				t.Fatalf("deleted key %d visible after reopen", i)
			}
			continue
		}
		if !bytes.Equal([]byte(got), bytes.Repeat([]byte{byte(i)}, 1024)) {
			t.Fatalf("key %d corrupted after reopen", i)
		}
	}

	// Counters resume past everything seen on disk
	if reopened.timestamp <= 1 || reopened.sstNo <= 1 {
		t.Fatalf("counters not advanced: ts=%d sstNo=%d", reopened.timestamp, reopened.sstNo)
	}
}

func TestKVStoreReset(t *testing.T) {
	dir := t.TempDir()
	kv, err := NewKVStore(dir)
	if err != nil {
		t.Fatal(err)
	}

	for i := uint64(0); i < 1024; i++ {
		if err := kv.Put(i, bytes.Repeat([]byte{1}, 4096)); err != nil {
			t.Fatal(err)
		}
	}
	if err := kv.Reset(); err != nil {
		t.Fatalf("reset failed: %v", err)
	}

	names, err := fsutil.ScanDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	for _, name := range names {
		if _, ok := parseLevelName(name); ok {
			t.Fatalf("level directory %s survived reset", name)
		}
	}
	for i := uint64(0); i < 1024; i++ {
		if got := mustGet(t, kv, i); got != "" {
			t.Fatalf("key %d visible after reset", i)
		}
	}

	// The store keeps working after a reset
	mustPut(t, kv, 7, "back")
	if got := mustGet(t, kv, 7); got != "back" {
		t.Fatalf("get after reset+put = %q", got)
	}
}

func TestKVStoreDeleteThenReadAcrossLevels(t *testing.T) {
	kv := newTestKVStore(t)

	mustPut(t, kv, 5, "on-disk")
	if err := kv.flushMemTable(); err != nil {
		t.Fatal(err)
	}

	// Probe sees the on-disk record even though the memtable is empty
	if !mustDel(t, kv, 5) {
		t.Fatal("del missed the on-disk record")
	}
	if got := mustGet(t, kv, 5); got != "" {
		t.Fatalf("get after del = %q", got)
	}
	if mustDel(t, kv, 5) {
		t.Fatal("del of tombstoned key returned true")
	}
}
