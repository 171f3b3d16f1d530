package tcp

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ValentinKolb/walkv/lib/command"
	"github.com/ValentinKolb/walkv/lib/db"
	"github.com/ValentinKolb/walkv/lib/store"
	"github.com/ValentinKolb/walkv/rpc/common"
	"github.com/ValentinKolb/walkv/rpc/transport"
)

// --------------------------------------------------------------------------
// Test helpers
// --------------------------------------------------------------------------

// mapHandler is a minimal handler backed by a map
type mapHandler struct {
	mu      sync.Mutex
	data    map[string]string
	release chan struct{} // if set, puts wait for it
}

func (h *mapHandler) Execute(_ context.Context, cmd command.Command) (common.Response, error) {
	if h.release != nil {
		if _, ok := cmd.(command.Put); ok {
			<-h.release
		}
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	switch c := cmd.(type) {
	case command.Put:
		h.data[c.Key] = c.Value
		return common.Response{Kind: common.KindOK}, nil
	case command.Get:
		v, ok := h.data[c.Key]
		if !ok {
			return common.Response{}, store.NewError(store.RetCKeyNotFound, fmt.Sprintf("key %s not found", c.Key))
		}
		return common.Response{Kind: common.KindValue, Value: v}, nil
	case command.Amount:
		return common.Response{Kind: common.KindCount, Count: len(h.data)}, nil
	case command.DumpAll:
		pairs := []db.Pair{}
		for k, v := range h.data {
			pairs = append(pairs, db.Pair{Key: k, Value: v})
		}
		return common.Response{Kind: common.KindPairs, Pairs: pairs}, nil
	default:
		return common.Response{Kind: common.KindOK}, nil
	}
}

func (h *mapHandler) Info() db.DatabaseInfo {
	return db.DatabaseInfo{}
}

func startServer(t *testing.T, h transport.Handler, config common.ServerConfig) (transport.IServerTransport, string) {
	t.Helper()

	srv := NewTCPServerTransport()
	srv.RegisterHandler(h)
	config.Endpoint = "127.0.0.1:0"
	l, err := srv.Listen(config)
	if err != nil {
		t.Fatalf("Listen failed: %v", err)
	}

	served := make(chan error, 1)
	go func() { served <- srv.Serve(l) }()

	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			t.Errorf("Shutdown failed: %v", err)
		}
		if err := <-served; err != nil {
			t.Errorf("Serve returned %v", err)
		}
	})
	return srv, l.Addr().String()
}

type lineConn struct {
	net.Conn
	r *bufio.Reader
}

func dial(t *testing.T, addr string) *lineConn {
	t.Helper()
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return &lineConn{Conn: conn, r: bufio.NewReader(conn)}
}

func (c *lineConn) send(t *testing.T, line string) {
	t.Helper()
	if _, err := c.Write([]byte(line + "\n")); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
}

func (c *lineConn) readLine(t *testing.T) string {
	t.Helper()
	_ = c.SetReadDeadline(time.Now().Add(5 * time.Second))
	line, err := c.r.ReadString('\n')
	if err != nil {
		t.Fatalf("ReadString failed: %v", err)
	}
	return strings.TrimSuffix(line, "\n")
}

// --------------------------------------------------------------------------
// Tests
// --------------------------------------------------------------------------

func TestLineProtocol(t *testing.T) {
	h := &mapHandler{data: map[string]string{}}
	_, addr := startServer(t, h, common.ServerConfig{})
	c := dial(t, addr)

	tests := []struct {
		request  string
		expected []string
	}{
		{"put a hello world", []string{"OK"}},
		{"get a", []string{"hello world"}},
		{`put b two\nlines`, []string{"OK"}},
		{"get b", []string{`two\nlines`}},
		{"", nil},
		{"length", []string{"2"}},
		{"get missing", []string{"ERR: KeyNotFound: key missing not found"}},
		{"frobnicate", []string{`ERR: InvalidCommand: invalid command: unknown command "frobnicate"`}},
		{"put a", []string{"ERR: InvalidCommand: invalid command: put needs a value"}},
	}

	for _, tt := range tests {
		c.send(t, tt.request)
		for _, want := range tt.expected {
			if got := c.readLine(t); got != want {
				t.Errorf("%q: got %q, expected %q", tt.request, got, want)
			}
		}
	}
}

func TestExitClosesConnection(t *testing.T) {
	h := &mapHandler{data: map[string]string{}}
	_, addr := startServer(t, h, common.ServerConfig{})
	c := dial(t, addr)

	c.send(t, "exit")
	_ = c.SetReadDeadline(time.Now().Add(5 * time.Second))
	if _, err := c.r.ReadString('\n'); err == nil {
		t.Errorf("Expected the connection to be closed after exit")
	}
}

func TestConnectionsAreIndependent(t *testing.T) {
	h := &mapHandler{data: map[string]string{}}
	_, addr := startServer(t, h, common.ServerConfig{})

	const clients = 8
	var wg sync.WaitGroup
	for i := 0; i < clients; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			conn, err := net.Dial("tcp", addr)
			if err != nil {
				t.Errorf("Dial failed: %v", err)
				return
			}
			defer conn.Close()
			r := bufio.NewReader(conn)
			for j := 0; j < 50; j++ {
				fmt.Fprintf(conn, "put k%d-%d v\n", i, j)
				if line, err := r.ReadString('\n'); err != nil || line != "OK\n" {
					t.Errorf("put: %q, %v", line, err)
					return
				}
			}
		}(i)
	}
	wg.Wait()

	c := dial(t, addr)
	c.send(t, "length")
	if got := c.readLine(t); got != fmt.Sprint(clients*50) {
		t.Errorf("length = %s, expected %d", got, clients*50)
	}
}

func TestIdleTimeout(t *testing.T) {
	h := &mapHandler{data: map[string]string{}}
	_, addr := startServer(t, h, common.ServerConfig{TimeoutSecond: 1})
	c := dial(t, addr)

	_ = c.SetReadDeadline(time.Now().Add(5 * time.Second))
	if _, err := c.r.ReadString('\n'); err == nil {
		t.Errorf("Expected the idle connection to be closed by the server")
	}
}

func TestShutdownWaitsForRunningCommand(t *testing.T) {
	h := &mapHandler{data: map[string]string{}, release: make(chan struct{})}
	srv, addr := startServer(t, h, common.ServerConfig{})
	c := dial(t, addr)
	idle := dial(t, addr)
	idle.send(t, "length")
	if got := idle.readLine(t); got != "0" {
		t.Fatalf("length = %s", got)
	}

	// the put blocks in the handler until release is closed
	c.send(t, "put k v")
	time.Sleep(50 * time.Millisecond)

	stopped := make(chan error, 1)
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		stopped <- srv.Shutdown(ctx)
	}()

	select {
	case <-stopped:
		t.Fatalf("Shutdown returned while a command was running")
	case <-time.After(100 * time.Millisecond):
	}

	close(h.release)
	if got := c.readLine(t); got != "OK" {
		t.Errorf("Running command got %q, expected OK", got)
	}
	if err := <-stopped; err != nil {
		t.Errorf("Shutdown failed: %v", err)
	}

	if _, err := net.DialTimeout("tcp", addr, time.Second); err == nil {
		t.Errorf("Expected the listener to be closed")
	}
}
