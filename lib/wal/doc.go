// Package wal implements the write-ahead log of walkv.
//
// The log is an append-only file of length-prefixed frames:
//
//	[u32 big-endian payload length][payload]
//
// where the payload is the command encoding of exactly one mutation
// (command.Put or command.Delete). Frames are never delimited by a sentinel
// byte, so keys and values may contain any byte including line terminators.
//
// Writer owns the file handle. It is deliberately not synchronized: the
// ingestion pipeline gives it to a single goroutine, which is the only one
// that ever appends to or truncates the file. Append issues one write per
// frame followed by an fsync, a mutation is durable once Append returned.
//
// Replay streams the file at startup:
//   - a complete frame whose payload does not decode is logged and skipped
//   - an incomplete frame at the end (a crash during a write) is discarded
//     and reported as a torn tail, Repair cuts it off before new frames are
//     appended
//   - a missing file is an empty log
package wal
