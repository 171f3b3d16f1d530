package transport

import (
	"context"
	"net"

	"github.com/ValentinKolb/walkv/lib/command"
	"github.com/ValentinKolb/walkv/lib/db"
	"github.com/ValentinKolb/walkv/rpc/common"
)

// --------------------------------------------------------------------------
// Handler
// --------------------------------------------------------------------------

// Handler executes decoded commands on behalf of a front end. A front end
// only parses requests and renders responses, all semantics live here.
type Handler interface {
	// Execute runs one command. Mutations block until they are durable.
	Execute(ctx context.Context, cmd command.Command) (common.Response, error)
	// Info returns metadata of the underlying store
	Info() db.DatabaseInfo
}

// --------------------------------------------------------------------------
// Server Transport
// --------------------------------------------------------------------------

// IServerTransport is the interface of a front end (TCP line protocol, HTTP)
type IServerTransport interface {
	// GetName returns the name of the transport (e.g. "tcp", "http")
	GetName() string
	// RegisterHandler registers the handler requests are dispatched to.
	// It must be called before Listen or Serve.
	RegisterHandler(handler Handler)
	// Listen creates a listener for the configured endpoint of the transport
	Listen(config common.ServerConfig) (net.Listener, error)
	// Serve accepts connections on l until Shutdown is called. It returns nil
	// after a graceful shutdown.
	Serve(l net.Listener) error
	// Shutdown stops accepting connections and waits until the running
	// requests are answered or ctx expires.
	Shutdown(ctx context.Context) error
}
