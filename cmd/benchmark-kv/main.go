package main

import (
	"flag"
	"fmt"
	"log"
	"math/rand"
	"os"
	"time"

	"github.com/dd0wney/cluso-kv/pkg/kv"
)

func main() {
	writes := flag.Int("writes", 100000, "Number of writes")
	reads := flag.Int("reads", 10000, "Number of reads")
	valueSize := flag.Int("value-size", 1024, "Value size in bytes")
	dir := flag.String("dir", "./data/benchmark-kv", "Base directory")
	flag.Parse()

	fmt.Printf("🔥 Cluso KV - LSM Store Benchmark\n")
	fmt.Printf("=================================\n\n")
	fmt.Printf("Configuration:\n")
	fmt.Printf("  Writes: %d\n", *writes)
	fmt.Printf("  Reads: %d\n", *reads)
	fmt.Printf("  Value Size: %d bytes\n\n", *valueSize)

	// Clean up old data
	os.RemoveAll(*dir)

	fmt.Printf("📂 Opening store...\n")
	opts := kv.DefaultOptions(*dir)
	opts.CacheSize = 0 // Measure the engine, not the cache

	store, err := kv.Open(opts)
	if err != nil {
		log.Fatalf("Failed to open store: %v", err)
	}
	defer store.Close()

	value := make([]byte, *valueSize)
	for i := range value {
		value[i] = byte(rand.Intn(256))
	}

	fmt.Printf("\n📝 Benchmark 1: Sequential Writes\n")
	start := time.Now()
	for i := 0; i < *writes; i++ {
		if err := store.Put(uint64(i), value); err != nil {
			log.Fatalf("Failed to write: %v", err)
		}
		if (i+1)%10000 == 0 {
			fmt.Printf("  Written %d entries...\n", i+1)
		}
	}
	duration := time.Since(start)
	fmt.Printf("✅ Completed %d writes in %v\n", *writes, duration)
	fmt.Printf("  ⚡ Average: %dμs per write\n", duration.Microseconds()/int64(*writes))
	fmt.Printf("  🚀 Throughput: %.0f writes/sec\n", float64(*writes)/duration.Seconds())
	fmt.Printf("  💾 Data written: %.2f MB\n", float64(*writes**valueSize)/(1024*1024))

	fmt.Printf("\n📖 Benchmark 2: Random Reads\n")
	start = time.Now()
	for i := 0; i < *reads; i++ {
		key := uint64(rand.Intn(*writes))
		got, err := store.Get(key)
		if err != nil {
			log.Fatalf("Failed to read: %v", err)
		}
		if len(got) != *valueSize {
			log.Fatalf("Read %d bytes for key %d, want %d", len(got), key, *valueSize)
		}
	}
	duration = time.Since(start)
	fmt.Printf("✅ Completed %d reads in %v\n", *reads, duration)
	fmt.Printf("  ⚡ Average: %dμs per read\n", duration.Microseconds()/int64(*reads))
	fmt.Printf("  🚀 Throughput: %.0f reads/sec\n", float64(*reads)/duration.Seconds())

	stats := store.Stats()
	fmt.Printf("\nEngine shape after benchmark:\n")
	for level, count := range stats.Engine.LevelFileCounts {
		fmt.Printf("  level-%d: %d files\n", level, count)
	}
	fmt.Printf("  Flushes: %d  Compactions: %d\n", stats.Engine.Flushes, stats.Engine.Compactions)
}
