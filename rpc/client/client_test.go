package client

import (
	"context"
	"errors"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/ValentinKolb/walkv/lib/db"
	"github.com/ValentinKolb/walkv/lib/store"
	"github.com/ValentinKolb/walkv/rpc/common"
	"github.com/ValentinKolb/walkv/rpc/server"
	"github.com/ValentinKolb/walkv/rpc/transport/tcp"
)

// startServer runs an in-memory server on a random port and returns a
// client config for it
func startServer(t *testing.T) common.ClientConfig {
	t.Helper()

	s := server.NewRPCServer(common.ServerConfig{
		Endpoint:      "127.0.0.1:0",
		InMemory:      true,
		QueueCapacity: 16,
	}, tcp.NewTCPServerTransport())

	ctx, cancel := context.WithCancel(context.Background())
	served := make(chan error, 1)
	go func() { served <- s.Serve(ctx) }()

	select {
	case <-s.Ready():
	case err := <-served:
		t.Fatalf("Serve failed: %v", err)
	}

	t.Cleanup(func() {
		cancel()
		if err := <-served; err != nil {
			t.Errorf("Serve returned %v", err)
		}
	})

	return common.ClientConfig{
		Endpoint:      s.Addr("tcp").String(),
		TimeoutSecond: 5,
		RetryCount:    1,
	}
}

func dial(t *testing.T, config common.ClientConfig) *Client {
	t.Helper()
	c, err := Dial(config)
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	t.Cleanup(func() { c.Close() })
	return c
}

func TestClient(t *testing.T) {
	c := dial(t, startServer(t))

	data := map[string]string{
		"apple":   "red fruit",
		"banana":  "yellow\tfruit",
		"cherry":  "multi\nline\\value",
		"line\nk": "escaped key",
	}
	for k, v := range data {
		if err := c.Put(k, v); err != nil {
			t.Fatalf("Put(%q) failed: %v", k, err)
		}
	}

	for k, v := range data {
		got, err := c.Get(k)
		if err != nil || got != v {
			t.Errorf("Get(%q) = %q, %v, expected %q", k, got, err, v)
		}
	}

	if _, err := c.Get("missing"); !errors.Is(err, store.ErrKeyNotFound) {
		t.Errorf("Get(missing) = %v, expected ErrKeyNotFound", err)
	}

	n, err := c.Length()
	if err != nil || n != len(data) {
		t.Errorf("Length() = %d, %v, expected %d", n, err, len(data))
	}

	pairs, err := c.Range("apple", "banana")
	expected := []db.Pair{{Key: "apple", Value: "red fruit"}, {Key: "banana", Value: "yellow\tfruit"}}
	if err != nil || !reflect.DeepEqual(pairs, expected) {
		t.Errorf("Range() = %v, %v, expected %v", pairs, err, expected)
	}

	pairs, err = c.Range("z", "a")
	if err != nil || len(pairs) != 0 {
		t.Errorf("inverted Range() = %v, %v, expected no pairs", pairs, err)
	}

	keys, err := c.Keys("an")
	if err != nil || !reflect.DeepEqual(keys, []string{"banana"}) {
		t.Errorf("Keys(an) = %v, %v", keys, err)
	}

	keys, err = c.Keys("")
	if err != nil || len(keys) != len(data) {
		t.Errorf("Keys() = %v, %v", keys, err)
	}

	values, err := c.Values("fruit")
	if err != nil || !reflect.DeepEqual(values, []string{"red fruit", "yellow\tfruit"}) {
		t.Errorf("Values(fruit) = %q, %v", values, err)
	}

	if err := c.Delete("apple"); err != nil {
		t.Errorf("Delete failed: %v", err)
	}
	if err := c.Delete("apple"); err != nil {
		t.Errorf("Delete of an absent key failed: %v", err)
	}

	dump, err := c.DumpAll()
	if err != nil || len(dump) != len(data)-1 || dump[0].Key != "banana" {
		t.Errorf("DumpAll() = %v, %v", dump, err)
	}
}

func TestInvalidArguments(t *testing.T) {
	c := dial(t, startServer(t))

	if err := c.Put("with space", "v"); !errors.Is(err, store.ErrInvalidCommand) {
		t.Errorf("Put with a space in the key = %v, expected ErrInvalidCommand", err)
	}
	if _, err := c.Get(""); !errors.Is(err, store.ErrInvalidCommand) {
		t.Errorf("Get of the empty key = %v, expected ErrInvalidCommand", err)
	}

	// the connection is still usable
	if err := c.Put("k", "v"); err != nil {
		t.Errorf("Put failed: %v", err)
	}
}

func TestConcurrentUse(t *testing.T) {
	c := dial(t, startServer(t))

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 25; j++ {
				key := string(rune('a'+i)) + string(rune('a'+j))
				if err := c.Put(key, key); err != nil {
					t.Errorf("Put failed: %v", err)
					return
				}
				if got, err := c.Get(key); err != nil || got != key {
					t.Errorf("Get(%s) = %q, %v", key, got, err)
					return
				}
			}
		}(i)
	}
	wg.Wait()

	if n, err := c.Length(); err != nil || n != 100 {
		t.Errorf("Length() = %d, %v, expected 100", n, err)
	}
}

func TestShutdown(t *testing.T) {
	config := startServer(t)
	c := dial(t, config)
	other := dial(t, config)

	if err := c.Put("k", "v"); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	if err := c.Shutdown(); err != nil {
		t.Fatalf("Shutdown failed: %v", err)
	}

	// the other connection is either rejected or already closed
	if err := other.Put("k2", "v"); err == nil {
		t.Errorf("Expected Put after shutdown to fail")
	}
}

func TestDialRetries(t *testing.T) {
	start := time.Now()
	_, err := Dial(common.ClientConfig{Endpoint: "127.0.0.1:1", TimeoutSecond: 1, RetryCount: 3})
	if err == nil {
		t.Fatalf("Expected Dial to a closed port to fail")
	}
	// two backoffs of about 50ms and 100ms
	if elapsed := time.Since(start); elapsed < 120*time.Millisecond {
		t.Errorf("Expected Dial to back off between attempts, took %s", elapsed)
	}
}

func TestClosedClient(t *testing.T) {
	c := dial(t, startServer(t))
	if err := c.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if err := c.Put("k", "v"); err == nil {
		t.Errorf("Expected Put on a closed client to fail")
	}
	if err := c.Close(); err != nil {
		t.Errorf("Second Close failed: %v", err)
	}
}
