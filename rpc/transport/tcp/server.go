package tcp

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ValentinKolb/walkv/lib/store"
	"github.com/ValentinKolb/walkv/rpc/common"
	"github.com/ValentinKolb/walkv/rpc/parser"
	"github.com/ValentinKolb/walkv/rpc/transport"
	"github.com/VictoriaMetrics/metrics"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/puzpuzpuz/xsync/v3"
)

var Logger = logger.GetLogger("transport/tcp")

const (
	initialBufferSize = 64 * 1024        // 64 KB
	maxLineSize       = 16 * 1024 * 1024 // 16 MB
)

var (
	openConns atomic.Int64

	metricAccepted = metrics.NewCounter(`walkv_tcp_connections_total`)
	metricCommands = metrics.NewCounter(`walkv_tcp_commands_total`)
	_              = metrics.NewGauge(`walkv_tcp_open_connections`, func() float64 {
		return float64(openConns.Load())
	})
)

// serverTransport serves the line protocol, one goroutine per connection.
// Commands of one connection are executed strictly in order.
type serverTransport struct {
	handler transport.Handler
	config  common.ServerConfig

	conns  *xsync.MapOf[uint64, net.Conn]
	nextID atomic.Uint64
	wg     sync.WaitGroup

	mu       sync.Mutex
	listener net.Listener
	done     chan struct{} // closed when Serve returns
	closing  atomic.Bool

	// ctx is passed to the handler, it is cancelled if Shutdown gives up
	ctx    context.Context
	cancel context.CancelFunc
}

// --------------------------------------------------------------------------
// Server Transport Factory Method
// --------------------------------------------------------------------------

// NewTCPServerTransport creates a new server transport for the line protocol
func NewTCPServerTransport() transport.IServerTransport {
	ctx, cancel := context.WithCancel(context.Background())
	return &serverTransport{
		conns:  xsync.NewMapOf[uint64, net.Conn](),
		ctx:    ctx,
		cancel: cancel,
	}
}

// --------------------------------------------------------------------------
// Interface Methods (docu see transport.IServerTransport)
// --------------------------------------------------------------------------

func (t *serverTransport) GetName() string {
	return "tcp"
}

func (t *serverTransport) RegisterHandler(handler transport.Handler) {
	t.handler = handler
}

func (t *serverTransport) Listen(config common.ServerConfig) (net.Listener, error) {
	t.config = config

	listener, err := net.Listen("tcp", config.Endpoint)
	if err != nil {
		return nil, fmt.Errorf("failed to create tcp socket: %w", err)
	}
	return listener, nil
}

func (t *serverTransport) Serve(l net.Listener) error {
	if t.handler == nil {
		return errors.New("no handler registered")
	}

	t.mu.Lock()
	if t.closing.Load() {
		t.mu.Unlock()
		l.Close()
		return nil
	}
	t.listener = l
	t.done = make(chan struct{})
	done := t.done
	t.mu.Unlock()
	defer close(done)

	Logger.Infof("Starting tcp server on %s", l.Addr())

	for {
		conn, err := l.Accept()
		if err != nil {
			if t.closing.Load() {
				return nil
			}
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				Logger.Warningf("Accept error: %v", err)
				time.Sleep(10 * time.Millisecond)
				continue
			}
			return fmt.Errorf("accept: %w", err)
		}

		id := t.nextID.Add(1)
		t.conns.Store(id, conn)
		t.wg.Add(1)
		go t.handleConnection(id, conn)
	}
}

func (t *serverTransport) Shutdown(ctx context.Context) error {
	t.mu.Lock()
	t.closing.Store(true)
	listener, done := t.listener, t.done
	t.mu.Unlock()

	if listener == nil {
		return nil
	}

	// stop accepting, after done is closed no connection is added anymore
	if err := listener.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
		Logger.Warningf("Failed to close listener: %v", err)
	}
	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}

	// wake up connections blocked in a read, busy ones stop after their
	// current command because closing is set
	now := time.Now()
	t.conns.Range(func(_ uint64, conn net.Conn) bool {
		_ = conn.SetReadDeadline(now)
		return true
	})

	finished := make(chan struct{})
	go func() {
		t.wg.Wait()
		close(finished)
	}()

	select {
	case <-finished:
		Logger.Infof("tcp server stopped")
		return nil
	case <-ctx.Done():
		t.cancel()
		t.conns.Range(func(_ uint64, conn net.Conn) bool {
			_ = conn.Close()
			return true
		})
		return ctx.Err()
	}
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

// handleConnection reads lines from conn and answers them until the client
// leaves, the connection idles for longer than the timeout or the
// transport shuts down.
func (t *serverTransport) handleConnection(id uint64, conn net.Conn) {
	openConns.Add(1)
	metricAccepted.Inc()
	defer func() {
		t.conns.Delete(id)
		conn.Close()
		openConns.Add(-1)
		t.wg.Done()
	}()

	remote := conn.RemoteAddr()
	Logger.Debugf("Connection %d from %s opened", id, remote)

	timeout := time.Duration(t.config.TimeoutSecond) * time.Second
	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, initialBufferSize), maxLineSize)
	w := bufio.NewWriter(conn)

	for {
		// the deadline must be set before closing is checked, otherwise it
		// could overwrite the deadline set by Shutdown
		var deadline time.Time
		if timeout > 0 {
			deadline = time.Now().Add(timeout)
		}
		if err := conn.SetReadDeadline(deadline); err != nil {
			Logger.Errorf("Failed to set read deadline: %v", err)
			return
		}
		if t.closing.Load() {
			return
		}

		if !scanner.Scan() {
			t.logReadError(id, scanner.Err())
			if errors.Is(scanner.Err(), bufio.ErrTooLong) {
				_ = common.WriteError(w, store.NewError(store.RetCInvalidCommand, "line too long"))
			}
			return
		}

		req, err := parser.Parse(scanner.Text())
		if errors.Is(err, parser.ErrEmpty) {
			continue
		}
		if req.Exit {
			Logger.Debugf("Connection %d from %s sent exit", id, remote)
			return
		}

		var resp common.Response
		if err == nil {
			start := time.Now()
			resp, err = t.handler.Execute(t.ctx, req.Command)
			metricCommands.Inc()
			Logger.Debugf("Connection %d: %s took %s", id, req.Command, time.Since(start))
		}

		if timeout > 0 {
			if err := conn.SetWriteDeadline(time.Now().Add(timeout)); err != nil {
				Logger.Errorf("Failed to set write deadline: %v", err)
				return
			}
		}
		if err := common.WriteResponse(w, resp, err); err != nil {
			Logger.Errorf("Failed to write response to %s: %v", remote, err)
			return
		}
	}
}

func (t *serverTransport) logReadError(id uint64, err error) {
	var netErr net.Error
	switch {
	case err == nil:
		Logger.Debugf("Connection %d closed by client", id)
	case t.closing.Load():
		Logger.Debugf("Connection %d closed by shutdown", id)
	case errors.As(err, &netErr) && netErr.Timeout():
		Logger.Infof("Connection %d closed after being idle", id)
	default:
		Logger.Errorf("Error reading from connection %d: %v", id, err)
	}
}
