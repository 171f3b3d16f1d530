package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os/signal"
	"runtime"
	"sync"
	"syscall"
	"time"

	"github.com/ValentinKolb/walkv/lib/db"
	"github.com/ValentinKolb/walkv/lib/db/engines/ordered"
	"github.com/ValentinKolb/walkv/lib/store"
	"github.com/ValentinKolb/walkv/lib/store/lstore"
	"github.com/ValentinKolb/walkv/lib/store/wstore"
	"github.com/ValentinKolb/walkv/rpc/common"
	"github.com/ValentinKolb/walkv/rpc/transport"
	"github.com/lni/dragonboat/v4/logger"
)

var Logger = logger.GetLogger("rpc")

// shutdownTimeout bounds how long the front ends may take to answer the
// requests that are running when the server stops
const shutdownTimeout = 10 * time.Second

// NewRPCServer creates a new server. The store is opened and the
// transports are started by Serve.
//
// Usage:
//
//	s := server.NewRPCServer(
//		config,
//		tcp.NewTCPServerTransport(),
//		http.NewHttpServerTransport(),
//	)
//
//	if err := s.Serve(ctx); err != nil {
//		panic(err)
//	}
func NewRPCServer(config common.ServerConfig, transports ...transport.IServerTransport) *RPCServer {
	// https://github.com/golang/go/issues/17393
	if runtime.GOOS == "darwin" {
		signal.Ignore(syscall.Signal(0xd))
	}

	return &RPCServer{
		config:     config,
		transports: transports,
		ready:      make(chan struct{}),
		shutdown:   make(chan struct{}),
		addrs:      map[string]net.Addr{},
	}
}

// RPCServer serves one store over any number of front ends
type RPCServer struct {
	config     common.ServerConfig
	transports []transport.IServerTransport
	store      store.IStore

	ready        chan struct{} // closed when all transports listen
	shutdown     chan struct{} // closed by the shutdown command
	shutdownOnce sync.Once

	mu    sync.Mutex
	addrs map[string]net.Addr
}

// Serve opens the store, starts all transports and blocks until a client
// sends the shutdown command, ctx is cancelled or a transport fails. It then
// stops the transports and closes the store, which waits until every
// accepted mutation is durable.
func (s *RPCServer) Serve(ctx context.Context) error {
	Logger.Infof("Starting walkv server")
	Logger.Infof("%s", s.config.String())

	st, err := s.openStore()
	if err != nil {
		return err
	}
	s.store = st
	handler := NewStoreHandler(st, s.requestShutdown)

	// Start the front ends
	serveErrs := make(chan error, len(s.transports))
	started := make([]transport.IServerTransport, 0, len(s.transports))
	for _, t := range s.transports {
		t.RegisterHandler(handler)
		l, err := t.Listen(s.config)
		if err != nil {
			s.stop(started)
			return fmt.Errorf("failed to start %s transport: %w", t.GetName(), err)
		}

		s.mu.Lock()
		s.addrs[t.GetName()] = l.Addr()
		s.mu.Unlock()

		started = append(started, t)
		go func(t transport.IServerTransport) {
			if err := t.Serve(l); err != nil {
				serveErrs <- fmt.Errorf("%s transport failed: %w", t.GetName(), err)
			}
		}(t)
	}
	close(s.ready)

	var result error
	select {
	case <-s.shutdown:
		Logger.Infof("Received shutdown command")
	case <-ctx.Done():
		Logger.Infof("Stopping server: %v", ctx.Err())
	case err := <-serveErrs:
		Logger.Errorf("%v", err)
		result = err
	}

	if err := s.stop(started); err != nil && result == nil {
		result = err
	}
	return result
}

// Ready is closed as soon as all transports accept connections
func (s *RPCServer) Ready() <-chan struct{} {
	return s.ready
}

// Addr returns the address the named transport listens on, or nil
func (s *RPCServer) Addr(name string) net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addrs[name]
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

func (s *RPCServer) requestShutdown() {
	s.shutdownOnce.Do(func() { close(s.shutdown) })
}

// openStore creates the store described by the config
func (s *RPCServer) openStore() (store.IStore, error) {
	dbFactory := func() db.KVDB { return ordered.NewOrderedDB(nil) }

	if s.config.InMemory {
		Logger.Warningf("Running in-memory, the state is lost when the server stops")
		return lstore.NewLocalStore(dbFactory), nil
	}

	opts := wstore.DefaultOptions(s.config.DataDir)
	opts.MaxWALSize = s.config.MaxWALSize
	opts.NoSync = s.config.NoSync
	if s.config.QueueCapacity > 0 {
		opts.QueueCapacity = s.config.QueueCapacity
	}

	st, info, err := wstore.Open(dbFactory, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}
	Logger.Infof("Recovered %d entries (snapshot loaded: %v, wal records: %d)",
		st.Amount(), info.SnapshotLoaded, info.Replay.Applied)
	return st, nil
}

// stop shuts the transports down and closes the store
func (s *RPCServer) stop(transports []transport.IServerTransport) error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	var errs []error
	for _, t := range transports {
		if err := t.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("failed to stop %s transport: %w", t.GetName(), err))
		}
	}

	if err := s.store.Close(); err != nil {
		errs = append(errs, fmt.Errorf("failed to close store: %w", err))
	}
	Logger.Infof("walkv server stopped")
	return errors.Join(errs...)
}
