package ordered

import (
	"testing"

	"github.com/ValentinKolb/walkv/lib/db"
	dbtesting "github.com/ValentinKolb/walkv/lib/db/testing"
)

func Test(t *testing.T) {
	dbtesting.RunKVDBTests(t, "OrderedDB", func() db.KVDB {
		return NewOrderedDB(nil)
	})

	// a tiny degree forces many splits and merges
	dbtesting.RunKVDBTests(t, "OrderedDB(degree=2)", func() db.KVDB {
		return NewOrderedDB(&DBOptions{Degree: 2})
	})
}

func TestGetInfo(t *testing.T) {
	database := NewOrderedDB(nil)
	defer database.Close()

	database.Put("ab", "xyz")
	database.Put("c", "")

	info := database.GetInfo()
	if info.Entries != 2 {
		t.Errorf("Expected 2 entries, got %d", info.Entries)
	}
	if info.DbType != db.ImplOrdered {
		t.Errorf("Expected db type %s, got %s", db.ImplOrdered, info.DbType)
	}
	// count prefix + two pairs with their length prefixes
	if expected := 4 + (8 + 2 + 3) + (8 + 1 + 0); info.SizeBytes != expected {
		t.Errorf("Expected size %d, got %d", expected, info.SizeBytes)
	}
}

func Benchmark(b *testing.B) {
	dbtesting.RunKVDBBenchmarks(b, "OrderedDB", func() db.KVDB {
		return NewOrderedDB(nil)
	})
}
