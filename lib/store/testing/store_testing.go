package testing

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ValentinKolb/walkv/lib/command"
	"github.com/ValentinKolb/walkv/lib/db"
	"github.com/ValentinKolb/walkv/lib/store"
)

// StoreFactory creates a fresh, empty store for one test
type StoreFactory func(t *testing.T) store.IStore

// RunStoreTests runs the behavior all store.IStore implementations share.
func RunStoreTests(t *testing.T, name string, factory StoreFactory) {
	t.Run(name, func(t *testing.T) {
		t.Run("Put&Get", func(t *testing.T) {
			testPutGet(t, factory(t))
		})

		t.Run("Delete", func(t *testing.T) {
			testDelete(t, factory(t))
		})

		t.Run("RejectInvalid", func(t *testing.T) {
			testRejectInvalid(t, factory(t))
		})

		t.Run("Reads", func(t *testing.T) {
			testReads(t, factory(t))
		})

		t.Run("Ordering", func(t *testing.T) {
			testOrdering(t, factory(t))
		})

		t.Run("ConcurrentProducers", func(t *testing.T) {
			testConcurrentProducers(t, factory(t))
		})

		t.Run("ReadIsolation", func(t *testing.T) {
			testReadIsolation(t, factory(t))
		})

		t.Run("Closed", func(t *testing.T) {
			testClosed(t, factory(t))
		})

		t.Run("Info", func(t *testing.T) {
			testInfo(t, factory(t))
		})
	})
}

// --------------------------------------------------------------------------
// Helper functions
// --------------------------------------------------------------------------

func timeoutCtx(t *testing.T) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func mustPut(t *testing.T, s store.IStore, key, value string) {
	t.Helper()
	if err := s.Put(timeoutCtx(t), key, value); err != nil {
		t.Fatalf("Put(%q) failed: %v", key, err)
	}
}

// --------------------------------------------------------------------------
// Test functions
// --------------------------------------------------------------------------

func testPutGet(t *testing.T, s store.IStore) {
	defer s.Close()

	mustPut(t, s, "key", "value1")
	if v, err := s.Get("key"); err != nil || v != "value1" {
		t.Errorf("Get = %q, %v, expected value1", v, err)
	}

	mustPut(t, s, "key", "value2")
	if v, err := s.Get("key"); err != nil || v != "value2" {
		t.Errorf("Get after overwrite = %q, %v, expected value2", v, err)
	}

	if _, err := s.Get("missing"); !errors.Is(err, store.ErrKeyNotFound) {
		t.Errorf("Expected ErrKeyNotFound for missing key, got %v", err)
	}
}

func testDelete(t *testing.T, s store.IStore) {
	defer s.Close()
	ctx := timeoutCtx(t)

	mustPut(t, s, "key", "value")
	if err := s.Delete(ctx, "key"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, err := s.Get("key"); !errors.Is(err, store.ErrKeyNotFound) {
		t.Errorf("Expected ErrKeyNotFound after Delete, got %v", err)
	}

	if err := s.Delete(ctx, "never-existed"); err != nil {
		t.Errorf("Deleting an absent key returned %v", err)
	}

	if err := s.Submit(ctx, nil); !errors.Is(err, store.ErrInvalidCommand) {
		t.Errorf("Expected ErrInvalidCommand for nil mutation, got %v", err)
	}
}

func testRejectInvalid(t *testing.T, s store.IStore) {
	defer s.Close()
	ctx := timeoutCtx(t)

	mustPut(t, s, "good", "value")

	invalid := []command.Mutation{
		command.Put{Key: "bad", Value: "\xff\xfe"},
		command.Put{Key: "\xc3", Value: "value"},
		command.Delete{Key: "\x80"},
		&command.Put{Key: "ptr", Value: "value"},
		&command.Delete{Key: "good"},
	}
	for _, m := range invalid {
		if err := s.Submit(ctx, m); !errors.Is(err, store.ErrInvalidCommand) {
			t.Errorf("Submit(%#v) = %v, expected ErrInvalidCommand", m, err)
		}
	}

	// nothing of the rejected mutations reached the state
	if got := s.DumpAll(); !reflect.DeepEqual(got, []db.Pair{{Key: "good", Value: "value"}}) {
		t.Errorf("State after rejected mutations = %v", got)
	}
}

func testReads(t *testing.T, s store.IStore) {
	defer s.Close()

	mustPut(t, s, "b", "banana")
	mustPut(t, s, "a", "apple")
	mustPut(t, s, "c", "cherry")
	mustPut(t, s, "ab", "avocado")

	if got, expected := s.Range("a", "b"), []db.Pair{{Key: "a", Value: "apple"}, {Key: "ab", Value: "avocado"}, {Key: "b", Value: "banana"}}; !reflect.DeepEqual(got, expected) {
		t.Errorf("Range(a, b) = %v, expected %v", got, expected)
	}
	if got := s.Range("c", "a"); len(got) != 0 {
		t.Errorf("Range(c, a) = %v, expected empty", got)
	}
	if got, expected := s.Keys("a"), []string{"a", "ab"}; !reflect.DeepEqual(got, expected) {
		t.Errorf("Keys(a) = %v, expected %v", got, expected)
	}
	if got, expected := s.Values("an"), []string{"banana"}; !reflect.DeepEqual(got, expected) {
		t.Errorf("Values(an) = %v, expected %v", got, expected)
	}
	if s.Amount() != 4 {
		t.Errorf("Amount() = %d, expected 4", s.Amount())
	}
	if dump := s.DumpAll(); len(dump) != 4 || dump[0].Key != "a" || dump[3].Key != "c" {
		t.Errorf("DumpAll() = %v", dump)
	}

	// values come in key order, not value order
	mustPut(t, s, "0", "zucchini")
	if got, expected := s.Values("n"), []string{"zucchini", "banana"}; !reflect.DeepEqual(got, expected) {
		t.Errorf("Values(n) = %v, expected %v", got, expected)
	}
}

func testOrdering(t *testing.T, s store.IStore) {
	defer s.Close()

	for i := 0; i < 100; i++ {
		mustPut(t, s, "k", "1")
		mustPut(t, s, "k", "2")
		if v, _ := s.Get("k"); v != "2" {
			t.Fatalf("iteration %d: expected k == 2, got %q", i, v)
		}
	}
}

func testConcurrentProducers(t *testing.T, s store.IStore) {
	defer s.Close()
	ctx := timeoutCtx(t)

	numProducers := 8
	perProducer := 200

	var wg sync.WaitGroup
	errs := make(chan error, numProducers)
	for p := 0; p < numProducers; p++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			key := fmt.Sprintf("producer-%d", id)
			for i := 0; i < perProducer; i++ {
				if err := s.Put(ctx, key, fmt.Sprintf("%d", i)); err != nil {
					errs <- err
					return
				}
			}
		}(p)
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		t.Errorf("Put failed: %v", err)
	}

	// per producer the last submitted value wins
	for p := 0; p < numProducers; p++ {
		key := fmt.Sprintf("producer-%d", p)
		if v, err := s.Get(key); err != nil || v != fmt.Sprintf("%d", perProducer-1) {
			t.Errorf("Get(%s) = %q, %v, expected %d", key, v, err, perProducer-1)
		}
	}
}

func testReadIsolation(t *testing.T, s store.IStore) {
	defer s.Close()
	ctx := timeoutCtx(t)

	oldValue := strings.Repeat("o", 4096)
	newValue := strings.Repeat("n", 4096)
	mustPut(t, s, "k", oldValue)

	done := make(chan struct{})
	var torn int
	go func() {
		defer close(done)
		for i := 0; i < 1000; i++ {
			v, err := s.Get("k")
			if err != nil || (v != oldValue && v != newValue) {
				torn++
			}
		}
	}()

	for i := 0; i < 50; i++ {
		value := newValue
		if i%2 == 1 {
			value = oldValue
		}
		if err := s.Put(ctx, "k", value); err != nil {
			t.Fatalf("Put failed: %v", err)
		}
	}
	<-done

	if torn != 0 {
		t.Errorf("Observed %d torn reads", torn)
	}
}

func testClosed(t *testing.T, s store.IStore) {
	ctx := timeoutCtx(t)
	mustPut(t, s, "key", "value")

	if err := s.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	if err := s.Put(ctx, "other", "value"); !errors.Is(err, store.ErrQueueClosed) {
		t.Errorf("Expected ErrQueueClosed after Close, got %v", err)
	}
	if err := s.Submit(ctx, command.Delete{Key: "key"}); !errors.Is(err, store.ErrQueueClosed) {
		t.Errorf("Expected ErrQueueClosed for Submit after Close, got %v", err)
	}

	// a second close is a no-op
	if err := s.Close(); err != nil {
		t.Errorf("Second Close returned %v", err)
	}
}

func testInfo(t *testing.T, s store.IStore) {
	defer s.Close()

	mustPut(t, s, "a", "1")
	mustPut(t, s, "b", "2")

	info := s.GetDBInfo()
	if info.Entries != 2 {
		t.Errorf("GetDBInfo().Entries = %d, expected 2", info.Entries)
	}
}
