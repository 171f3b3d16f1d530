// Package server wires a store to the front ends of walkv.
//
// An RPCServer opens the store described by its common.ServerConfig, either
// the durable wstore in the data directory or, with InMemory set, a lstore.
// Every transport gets the same Handler (see NewStoreHandler), so all front
// ends see one state and all mutations go through one ingestion pipeline.
//
// The shutdown command closes the store first: new mutations are rejected
// with QueueClosed, the mutations already queued are written and applied and
// only then the client receives OK. The server then stops its transports.
// Cancelling the context passed to Serve (for example on SIGTERM) takes the
// same path, so no accepted mutation is lost on either way of stopping.
package server
