// Package rpc contains the network front ends of walkv. Front ends only
// translate requests into commands (package lib/command) and render the
// results, all semantics live in the store behind transport.Handler.
//
// The package is organized into several subpackages:
//
//   - common: Server and client configuration, the front-end independent
//     Response type, the line protocol rendering and the logger factory.
//
//   - parser: Turns one line of the text protocol into a command.
//
//   - transport: Front end abstraction with the implementations tcp (line
//     protocol) and http (chi router).
//
//   - serializer: JSON, GOB and binary encodings of a Response, negotiated by
//     the HTTP front end.
//
//   - client: Go client speaking the line protocol.
//
//   - server: Opens the store, executes commands for the front ends and
//     handles the shutdown command.
package rpc
