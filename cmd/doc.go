// Package cmd implements the command-line interface of walkv. It provides a
// hierarchical command structure for running the server, talking to it as a
// client and working on data directories offline.
//
// The package is organized into several subpackages:
//
//   - serve: Starts the server with the TCP line protocol and the HTTP API
//   - kv: Key-value operations against a running server (put, get, range, ...)
//   - inspect: Lists the frames of a WAL or the pairs of a snapshot
//   - backup: Creates, restores and verifies compressed backups
//   - bench: Measures throughput and latency of a store or a server
//   - util: Shared utilities for command-line processing and configuration (internal use)
//
// Flags can also be set as environment variables with the prefix WALKV_ or
// in a .env / .env.local file. See walkv -help for a list of all commands.
package cmd
