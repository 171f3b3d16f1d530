// Package common provides the data structures shared by the walkv server,
// its front ends and the client.
//
// Key Components:
//
//   - ServerConfig / ClientConfig: configuration values built once by the CLI
//     and passed to the components that need them. Nothing below the CLI reads
//     files or environment variables.
//
//   - Response: the result of executing one command, rendered by the TCP
//     front end as lines (see Response.Lines) and by the HTTP front end as
//     JSON. Values are escaped with EscapeLine so that any string fits on one
//     line, list replies are terminated by ReplyEnd and errors are written as
//     "ERR: <code>: <message>" (ParseError restores the store.Error).
//
//   - Logger: Custom logging implementation for dragonboat's logger facade
//     providing consistent formatting across the application.
package common
