package testing

import (
	"bytes"
	"fmt"
	"math/rand"
	"strings"
	"testing"

	"github.com/ValentinKolb/walkv/lib/command"
	"github.com/ValentinKolb/walkv/lib/db"
)

// RunKVDBBenchmarks runs all benchmarks for a key-value database implementations
func RunKVDBBenchmarks(b *testing.B, name string, factory DBFactory) {
	b.Run(name, func(b *testing.B) {
		b.Run("Put", func(b *testing.B) {
			benchmarkPut(b, factory())
		})

		b.Run("PutExisting", func(b *testing.B) {
			benchmarkPutExisting(b, factory())
		})

		b.Run("PutLargeValue", func(b *testing.B) {
			benchmarkPutLargeValue(b, factory())
		})

		b.Run("Get", func(b *testing.B) {
			benchmarkGet(b, factory())
		})

		b.Run("Delete", func(b *testing.B) {
			benchmarkDelete(b, factory())
		})

		b.Run("Range", func(b *testing.B) {
			benchmarkRange(b, factory())
		})

		b.Run("Keys", func(b *testing.B) {
			benchmarkKeys(b, factory())
		})

		b.Run("SaveLoad", func(b *testing.B) {
			benchmarkSaveLoad(b, factory)
		})

		b.Run("MixedUsage", func(b *testing.B) {
			benchmarkMixedUsage(b, factory())
		})
	})
}

// --------------------------------------------------------------------------
// Helper functions
// --------------------------------------------------------------------------

const benchKeyCount = 10_000

func benchKey(i int) string {
	return fmt.Sprintf("bench-key-%06d", i)
}

func prefill(database db.KVDB, n int) {
	for i := 0; i < n; i++ {
		database.Put(benchKey(i), fmt.Sprintf("bench-value-%d", i))
	}
}

// --------------------------------------------------------------------------
// Benchmark functions
// --------------------------------------------------------------------------

// Benchmark for Put operation
func benchmarkPut(b *testing.B, database db.KVDB) {
	b.Cleanup(func() {
		database.Close()
	})

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		counter := 0
		for pb.Next() {
			database.Put(fmt.Sprintf("test-key-%d", counter), fmt.Sprintf("test-value-%d", counter))
			counter++
		}
	})
}

// Benchmark for Put operation with existing keys
func benchmarkPutExisting(b *testing.B, database db.KVDB) {
	b.Cleanup(func() {
		database.Close()
	})

	prefill(database, benchKeyCount)

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		r := rand.New(rand.NewSource(rand.Int63()))
		for pb.Next() {
			database.Put(benchKey(r.Intn(benchKeyCount)), "updated-value")
		}
	})
}

// Benchmark for Put operation with 1 MiB values
func benchmarkPutLargeValue(b *testing.B, database db.KVDB) {
	b.Cleanup(func() {
		database.Close()
	})

	largeValue := strings.Repeat("x", 1024*1024)

	b.SetBytes(int64(len(largeValue)))
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		database.Put(benchKey(i%100), largeValue)
	}
}

// Benchmark for Get operation
func benchmarkGet(b *testing.B, database db.KVDB) {
	b.Cleanup(func() {
		database.Close()
	})

	prefill(database, benchKeyCount)

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		r := rand.New(rand.NewSource(rand.Int63()))
		for pb.Next() {
			database.Get(benchKey(r.Intn(benchKeyCount)))
		}
	})
}

// Benchmark for Delete operation through Apply
func benchmarkDelete(b *testing.B, database db.KVDB) {
	b.Cleanup(func() {
		database.Close()
	})

	keys := make([]string, b.N)
	for i := 0; i < b.N; i++ {
		keys[i] = benchKey(i)
		database.Put(keys[i], "value")
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		db.Apply(database, command.Delete{Key: keys[i]})
	}
}

// Benchmark for a range over 100 consecutive keys
func benchmarkRange(b *testing.B, database db.KVDB) {
	b.Cleanup(func() {
		database.Close()
	})

	prefill(database, benchKeyCount)

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		r := rand.New(rand.NewSource(rand.Int63()))
		for pb.Next() {
			start := r.Intn(benchKeyCount - 100)
			database.Range(benchKey(start), benchKey(start+99))
		}
	})
}

// Benchmark for a full scan with a substring filter
func benchmarkKeys(b *testing.B, database db.KVDB) {
	b.Cleanup(func() {
		database.Close()
	})

	prefill(database, benchKeyCount)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		database.Keys("-0042")
	}
}

// Benchmark for snapshotting and restoring
func benchmarkSaveLoad(b *testing.B, factory DBFactory) {
	source := factory()
	target := factory()
	b.Cleanup(func() {
		source.Close()
		target.Close()
	})

	prefill(source, benchKeyCount)

	var buf bytes.Buffer
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		buf.Reset()
		if err := source.Save(&buf); err != nil {
			b.Fatalf("Save failed: %v", err)
		}
		if err := target.Load(&buf); err != nil {
			b.Fatalf("Load failed: %v", err)
		}
	}
}

// Benchmark for a realistic usage pattern: 70% reads, 20% writes, 10% deletes
func benchmarkMixedUsage(b *testing.B, database db.KVDB) {
	b.Cleanup(func() {
		database.Close()
	})

	prefill(database, benchKeyCount)

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		r := rand.New(rand.NewSource(rand.Int63()))
		for pb.Next() {
			key := benchKey(r.Intn(benchKeyCount))
			switch op := r.Intn(10); {
			case op < 7:
				database.Get(key)
			case op < 9:
				database.Put(key, "mixed-value")
			default:
				database.Delete(key)
			}
		}
	})
}
