package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"

	"github.com/dd0wney/cluso-kv/pkg/kv"
)

func usage() {
	fmt.Fprintf(os.Stderr, `Usage: kv-cli -dir <path> <command> [args]

Commands:
  put <key> <value>   Insert or update a key
  get <key>           Print the value for a key (empty line if absent)
  del <key>           Delete a key; prints whether it existed
  reset               Wipe the store
  stats               Print engine statistics
`)
	os.Exit(2)
}

func main() {
	dir := flag.String("dir", "./data/kv", "Base directory of the store")
	logLevel := flag.String("log-level", "warn", "Log level: debug, info, warn, error")
	flag.Usage = usage
	flag.Parse()

	args := flag.Args()
	if len(args) == 0 {
		usage()
	}

	opts := kv.DefaultOptions(*dir)
	opts.LogLevel = *logLevel
	opts.LogOutput = "stderr"

	store, err := kv.Open(opts)
	if err != nil {
		log.Fatalf("Failed to open store: %v", err)
	}
	defer store.Close()

	switch args[0] {
	case "put":
		if len(args) != 3 {
			usage()
		}
		if err := store.Put(parseKey(args[1]), []byte(args[2])); err != nil {
			log.Fatalf("Put failed: %v", err)
		}

	case "get":
		if len(args) != 2 {
			usage()
		}
		value, err := store.Get(parseKey(args[1]))
		if err != nil {
			log.Fatalf("Get failed: %v", err)
		}
		fmt.Printf("%s\n", value)

	case "del":
		if len(args) != 2 {
			usage()
		}
		present, err := store.Delete(parseKey(args[1]))
		if err != nil {
			log.Fatalf("Delete failed: %v", err)
		}
		fmt.Printf("%v\n", present)

	case "reset":
		if err := store.Reset(); err != nil {
			log.Fatalf("Reset failed: %v", err)
		}
		fmt.Println("store reset")

	case "stats":
		stats := store.Stats()
		fmt.Printf("MemTable: %d keys, %d projected bytes\n",
			stats.Engine.MemTableKeys, stats.Engine.MemTableBytes)
		fmt.Printf("SSTables: %d (%.2f MB on disk)\n",
			stats.Engine.SSTableCount, float64(stats.Engine.DiskUsageBytes)/(1024*1024))
		for level, count := range stats.Engine.LevelFileCounts {
			fmt.Printf("  level-%d: %d files\n", level, count)
		}
		fmt.Printf("Flushes: %d  Compactions: %d\n",
			stats.Engine.Flushes, stats.Engine.Compactions)

	default:
		usage()
	}
}

func parseKey(s string) uint64 {
	key, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		log.Fatalf("Invalid key %q: %v", s, err)
	}
	return key
}
