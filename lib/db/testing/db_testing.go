package testing

import (
	"bytes"
	"errors"
	"fmt"
	"reflect"
	"sync"
	"testing"

	"github.com/ValentinKolb/walkv/lib/command"
	"github.com/ValentinKolb/walkv/lib/db"
)

// DBFactory is a function that creates a new instance of a KVDB implementation
type DBFactory func() db.KVDB

// RunKVDBTests runs a comprehensive test suite for a KVDB implementation.
func RunKVDBTests(t *testing.T, name string, factory DBFactory) {
	t.Run(name, func(t *testing.T) {
		t.Run("Put&Get", func(t *testing.T) {
			testPutGet(t, factory())
		})

		t.Run("Delete", func(t *testing.T) {
			testDelete(t, factory())
		})

		t.Run("Apply", func(t *testing.T) {
			testApply(t, factory())
		})

		t.Run("Range", func(t *testing.T) {
			testRange(t, factory())
		})

		t.Run("Keys&Values", func(t *testing.T) {
			testKeysValues(t, factory())
		})

		t.Run("LenDump", func(t *testing.T) {
			testLenDump(t, factory())
		})

		t.Run("SaveLoad", func(t *testing.T) {
			testSaveLoad(t, factory)
		})

		t.Run("SnapshotLayout", func(t *testing.T) {
			testSnapshotLayout(t, factory())
		})

		t.Run("CorruptLoad", func(t *testing.T) {
			testCorruptLoad(t, factory())
		})

		t.Run("EdgeCases", func(t *testing.T) {
			testEdgeCases(t, factory())
		})

		t.Run("ConcurrentReaders", func(t *testing.T) {
			testConcurrentReaders(t, factory())
		})
	})
}

// --------------------------------------------------------------------------
// Helper functions
// --------------------------------------------------------------------------

func fill(database db.KVDB, pairs ...string) {
	for i := 0; i+1 < len(pairs); i += 2 {
		database.Put(pairs[i], pairs[i+1])
	}
}

// --------------------------------------------------------------------------
// Test functions
// --------------------------------------------------------------------------

func testPutGet(t *testing.T, database db.KVDB) {
	defer database.Close()

	testKey := "test-key"

	database.Put(testKey, "test-value1")

	result, exists := database.Get(testKey)
	if !exists {
		t.Errorf("Expected key %s to exist after Put", testKey)
	}
	if result != "test-value1" {
		t.Errorf("Expected value %s, got %s", "test-value1", result)
	}

	database.Put(testKey, "test-value2")

	result, exists = database.Get(testKey)
	if !exists {
		t.Errorf("Expected key %s to exist after overwrite", testKey)
	}
	if result != "test-value2" {
		t.Errorf("Expected value %s, got %s", "test-value2", result)
	}

	if database.Len() != 1 {
		t.Errorf("Expected 1 entry after overwrite, got %d", database.Len())
	}

	if _, exists = database.Get("nonexistent-key"); exists {
		t.Errorf("Expected nonexistent key to return exists=false")
	}
}

func testDelete(t *testing.T, database db.KVDB) {
	defer database.Close()

	testKey := "delete-test-key"
	database.Put(testKey, "delete-test-value")
	database.Delete(testKey)

	if _, exists := database.Get(testKey); exists {
		t.Errorf("Expected key %s to not exist after Delete", testKey)
	}

	// absent keys are a no-op
	database.Delete("nonexistent-key")
	if database.Len() != 0 {
		t.Errorf("Expected empty database, got %d entries", database.Len())
	}
}

func testApply(t *testing.T, database db.KVDB) {
	defer database.Close()

	mutations := []command.Mutation{
		command.Put{Key: "a", Value: "1"},
		command.Put{Key: "b", Value: "2"},
		command.Delete{Key: "a"},
	}

	for _, m := range mutations {
		db.Apply(database, m)
	}

	expected := []db.Pair{{Key: "b", Value: "2"}}
	if got := database.Dump(); !reflect.DeepEqual(got, expected) {
		t.Errorf("Expected %v after apply, got %v", expected, got)
	}

	// re-applying the same sequence must not change the result
	for _, m := range mutations {
		db.Apply(database, m)
		db.Apply(database, m)
	}
	if got := database.Dump(); !reflect.DeepEqual(got, expected) {
		t.Errorf("Expected %v after re-apply, got %v", expected, got)
	}
}

func testRange(t *testing.T, database db.KVDB) {
	defer database.Close()

	fill(database, "a", "1", "b", "2", "c", "3", "d", "4")

	tests := []struct {
		name       string
		start, end string
		expected   []db.Pair
	}{
		{"inclusive", "b", "c", []db.Pair{{Key: "b", Value: "2"}, {Key: "c", Value: "3"}}},
		{"single", "c", "c", []db.Pair{{Key: "c", Value: "3"}}},
		{"bounds between keys", "aa", "cc", []db.Pair{{Key: "b", Value: "2"}, {Key: "c", Value: "3"}}},
		{"everything", "", "z", []db.Pair{{Key: "a", Value: "1"}, {Key: "b", Value: "2"}, {Key: "c", Value: "3"}, {Key: "d", Value: "4"}}},
		{"inverted", "z", "a", []db.Pair{}},
		{"no match", "e", "f", []db.Pair{}},
	}

	for _, tt := range tests {
		got := database.Range(tt.start, tt.end)
		if got == nil {
			t.Errorf("%s: Range returned nil, expected empty slice", tt.name)
			continue
		}
		if !reflect.DeepEqual(got, tt.expected) {
			t.Errorf("%s: Range(%q, %q) = %v, expected %v", tt.name, tt.start, tt.end, got, tt.expected)
		}
	}
}

func testKeysValues(t *testing.T, database db.KVDB) {
	defer database.Close()

	fill(database,
		"user:2", "bob",
		"user:1", "alice",
		"order:7", "bobcat",
		"misc", "unrelated",
	)

	if got, expected := database.Keys("user"), []string{"user:1", "user:2"}; !reflect.DeepEqual(got, expected) {
		t.Errorf("Keys(user) = %v, expected %v", got, expected)
	}

	if got := database.Keys(""); len(got) != 4 {
		t.Errorf("Keys(\"\") returned %d keys, expected 4", len(got))
	}

	if got := database.Keys("absent"); got == nil || len(got) != 0 {
		t.Errorf("Keys(absent) = %v, expected empty slice", got)
	}

	// values are ordered by their key: order:7 < user:2
	if got, expected := database.Values("bob"), []string{"bobcat", "bob"}; !reflect.DeepEqual(got, expected) {
		t.Errorf("Values(bob) = %v, expected %v", got, expected)
	}

	if got := database.Values("absent"); got == nil || len(got) != 0 {
		t.Errorf("Values(absent) = %v, expected empty slice", got)
	}
}

func testLenDump(t *testing.T, database db.KVDB) {
	defer database.Close()

	if database.Len() != 0 || len(database.Dump()) != 0 {
		t.Errorf("Expected new database to be empty")
	}

	for i := 9; i >= 0; i-- {
		database.Put(fmt.Sprintf("key-%d", i), fmt.Sprintf("value-%d", i))
	}

	if database.Len() != 10 {
		t.Errorf("Expected 10 entries, got %d", database.Len())
	}

	dump := database.Dump()
	if len(dump) != 10 {
		t.Fatalf("Expected 10 dumped entries, got %d", len(dump))
	}
	for i, p := range dump {
		if p.Key != fmt.Sprintf("key-%d", i) || p.Value != fmt.Sprintf("value-%d", i) {
			t.Errorf("Dump()[%d] = %v, expected key-%d", i, p, i)
		}
	}
}

func testSaveLoad(t *testing.T, factory DBFactory) {
	database := factory()
	database2 := factory()

	// close the databases after the test
	defer database.Close()
	defer database2.Close()

	numEntries := 1000
	for i := 0; i < numEntries; i++ {
		database.Put(fmt.Sprintf("save-load-test-key-%d", i), fmt.Sprintf("save-load-test-value-%d", i))
	}

	var buf bytes.Buffer
	if err := database.Save(&buf); err != nil {
		t.Fatalf("Unexpected error during Save: %v", err)
	}

	// Load replaces existing content
	database2.Put("stale", "value")

	if err := database2.Load(&buf); err != nil {
		t.Fatalf("Unexpected error during Load: %v", err)
	}

	if _, exists := database2.Get("stale"); exists {
		t.Errorf("Expected Load to replace the previous state")
	}

	if !reflect.DeepEqual(database.Dump(), database2.Dump()) {
		t.Errorf("State mismatch after Save/Load")
	}

	// empty state round trip
	empty := factory()
	defer empty.Close()

	buf.Reset()
	if err := empty.Save(&buf); err != nil {
		t.Fatalf("Unexpected error saving empty database: %v", err)
	}
	if err := database2.Load(&buf); err != nil {
		t.Fatalf("Unexpected error loading empty snapshot: %v", err)
	}
	if database2.Len() != 0 {
		t.Errorf("Expected empty database after loading empty snapshot, got %d entries", database2.Len())
	}
}

func testSnapshotLayout(t *testing.T, database db.KVDB) {
	defer database.Close()

	fill(database, "b", "2", "a", "1")

	var buf bytes.Buffer
	if err := database.Save(&buf); err != nil {
		t.Fatalf("Unexpected error during Save: %v", err)
	}

	expected := []byte{
		0, 0, 0, 2,
		0, 0, 0, 1, 'a', 0, 0, 0, 1, '1',
		0, 0, 0, 1, 'b', 0, 0, 0, 1, '2',
	}
	if !bytes.Equal(buf.Bytes(), expected) {
		t.Errorf("Snapshot bytes = %v, expected %v", buf.Bytes(), expected)
	}
}

func testCorruptLoad(t *testing.T, database db.KVDB) {
	defer database.Close()

	fill(database, "keep", "me")

	inputs := map[string][]byte{
		"empty":           {},
		"short count":     {0, 0},
		"missing pairs":   {0, 0, 0, 2, 0, 0, 0, 1, 'a', 0, 0, 0, 1, '1'},
		"truncated key":   {0, 0, 0, 1, 0, 0, 0, 5, 'a'},
		"invalid utf8":    {0, 0, 0, 1, 0, 0, 0, 1, 0xff, 0, 0, 0, 0},
		"trailing bytes":  {0, 0, 0, 0, 1},
		"huge key length": {0, 0, 0, 1, 0xff, 0xff, 0xff, 0xff},
	}

	for name, data := range inputs {
		err := database.Load(bytes.NewReader(data))
		if err == nil {
			t.Errorf("%s: expected Load to fail", name)
			continue
		}
		if !errors.Is(err, db.ErrCorruptSnapshot) {
			t.Errorf("%s: expected ErrCorruptSnapshot, got %v", name, err)
		}
		if v, ok := database.Get("keep"); !ok || v != "me" {
			t.Errorf("%s: failed Load modified the state", name)
		}
	}
}

func testEdgeCases(t *testing.T, database db.KVDB) {
	defer database.Close()

	cases := map[string]string{
		"":                     "value for empty key",
		"empty-value-key":      "",
		"line\nbreak":          "multi\nline\nvalue",
		"spaces in key":        "spaces in value",
		"unicode-\u00fc\u4e16": "\U0001F600",
	}

	for k, v := range cases {
		database.Put(k, v)
	}

	for k, v := range cases {
		result, exists := database.Get(k)
		if !exists {
			t.Errorf("Key %q not found after Put", k)
		} else if result != v {
			t.Errorf("Value mismatch for key %q: expected %q, got %q", k, v, result)
		}
	}

	largeKey := string(make([]byte, 1000))
	largeValue := string(bytes.Repeat([]byte("x"), 1024*1024))
	database.Put(largeKey, largeValue)
	if result, exists := database.Get(largeKey); !exists || result != largeValue {
		t.Errorf("Large key/value mismatch")
	}

	// everything must survive a snapshot
	var buf bytes.Buffer
	if err := database.Save(&buf); err != nil {
		t.Fatalf("Unexpected error during Save: %v", err)
	}
	before := database.Dump()
	if err := database.Load(&buf); err != nil {
		t.Fatalf("Unexpected error during Load: %v", err)
	}
	if !reflect.DeepEqual(before, database.Dump()) {
		t.Errorf("Edge case entries changed after Save/Load")
	}
}

func testConcurrentReaders(t *testing.T, database db.KVDB) {
	defer database.Close()

	numWriters := 4
	numReaders := 8
	keysPerWriter := 1000

	var wg sync.WaitGroup
	stop := make(chan struct{})
	errs := make(chan error, numReaders)

	for r := 0; r < numReaders; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				// a dump is a consistent view: strictly ordered and matching Len at some instant
				dump := database.Dump()
				for i := 1; i < len(dump); i++ {
					if dump[i-1].Key >= dump[i].Key {
						errs <- fmt.Errorf("dump out of order at %d: %q >= %q", i, dump[i-1].Key, dump[i].Key)
						return
					}
				}
				database.Range("w0", "w9")
				database.Keys("w1")
			}
		}()
	}

	var writers sync.WaitGroup
	for w := 0; w < numWriters; w++ {
		writers.Add(1)
		go func(id int) {
			defer writers.Done()
			for i := 0; i < keysPerWriter; i++ {
				key := fmt.Sprintf("w%d-%04d", id, i)
				database.Put(key, "v")
				if i%3 == 0 {
					database.Delete(key)
				}
			}
		}(w)
	}

	writers.Wait()
	close(stop)
	wg.Wait()
	close(errs)

	for err := range errs {
		t.Error(err)
	}

	expected := numWriters * (keysPerWriter - (keysPerWriter+2)/3)
	if database.Len() != expected {
		t.Errorf("Expected %d entries after concurrent writes, got %d", expected, database.Len())
	}
}
