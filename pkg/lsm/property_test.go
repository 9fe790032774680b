package lsm

import (
	"strings"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

// op is one step of a generated workload
type op struct {
	kind  int // 0 = put, 1 = del, 2 = get
	key   uint64
	value string
}

func genOp() gopter.Gen {
	return gopter.CombineGens(
		gen.IntRange(0, 2),
		gen.UInt64Range(0, 128),
		gen.AlphaString(),
	).Map(func(vals []any) op {
		return op{kind: vals[0].(int), key: vals[1].(uint64), value: vals[2].(string)}
	})
}

// TestKVStoreInvariants replays random workloads against a plain map
// model. These properties should ALWAYS hold for any operation sequence.
func TestKVStoreInvariants(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping property-based test in short mode")
	}

	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 20

	properties := gopter.NewProperties(parameters)

	properties.Property("store agrees with a map model", prop.ForAll(
		func(ops []op) bool {
			kv := mustNewKVStore(t)
			model := map[uint64]string{}

			for _, o := range ops {
				switch o.kind {
				case 0:
					if err := kv.Put(o.key, []byte(o.value)); err != nil {
						return false
					}
					model[o.key] = o.value
				case 1:
					_, wasPresent := model[o.key]
					present, err := kv.Del(o.key)
					if err != nil || present != wasPresent {
						return false
					}
					delete(model, o.key)
				case 2:
					got, err := kv.Get(o.key)
					if err != nil || string(got) != model[o.key] {
						return false
					}
				}
			}

			// Full read-back at the end
			for key, want := range model {
				got, err := kv.Get(key)
				if err != nil || string(got) != want {
					return false
				}
			}
			return true
		},
		gen.SliceOf(genOp()),
	))

	properties.Property("most recent put wins across flushes", prop.ForAll(
		func(key uint64, versions []string) bool {
			kv := mustNewKVStore(t)

			// Pad versions so several flushes happen along the way
			padding := strings.Repeat("p", 64*1024)
			for i, version := range versions {
				if err := kv.Put(key, []byte(version)); err != nil {
					return false
				}
				if err := kv.Put(uint64(1_000_000+i), []byte(padding)); err != nil {
					return false
				}
			}
			if len(versions) == 0 {
				got, err := kv.Get(key)
				return err == nil && len(got) == 0
			}

			got, err := kv.Get(key)
			return err == nil && string(got) == versions[len(versions)-1]
		},
		gen.UInt64Range(0, 1000),
		gen.SliceOf(gen.Identifier()),
	))

	properties.TestingRun(t)
}

func mustNewKVStore(t *testing.T) *KVStore {
	kv, err := NewKVStore(t.TempDir())
	if err != nil {
		t.Fatalf("Failed to create KV store: %v", err)
	}
	return kv
}
