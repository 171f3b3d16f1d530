// Package store provides the high-level interface of walkv that the network
// front ends talk to. It serves as an abstraction layer over the lower-level
// db.KVDB implementations, adding the submission of mutations and unified
// error handling.
//
// The package focuses on:
//   - A unified interface (IStore) for key-value operations across different backends
//   - Pluggable storage backend architecture through DBFactory pattern
//
// Key Components:
//
//   - IStore Interface: Mutations are submitted and block until they were
//     applied, reads are answered synchronously from the in-memory state.
//
//   - Error System: Every error returned by a store is an *Error carrying a
//     RetCode (IoFailure, CorruptRecord, InvalidCommand, KeyNotFound,
//     QueueClosed). errors.Is compares by code, so callers check
//     errors.Is(err, store.ErrKeyNotFound) regardless of the message. CodeOf
//     maps errors of the lower layers to a RetCode.
//
//   - DBFactory: A function type that abstracts the creation of underlying
//     db.KVDB instances.
//
// Implementations:
//
//   - Local Store (lstore): in-memory only, mutations are applied directly.
//     Available in the "github.com/ValentinKolb/walkv/lib/store/lstore" package.
//
//   - WAL Store (wstore): durable store with write-ahead log, snapshots and a
//     single-writer ingestion pipeline.
//     Available in the "github.com/ValentinKolb/walkv/lib/store/wstore" package.
//
// The testing package (github.com/ValentinKolb/walkv/lib/store/testing)
// holds the test suite both implementations run.
package store
