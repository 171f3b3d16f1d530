// Package db defines the in-memory state of walkv and the function that
// mutates it.
//
// The package focuses on:
//   - A unified interface (KVDB) for the ordered key-value map
//   - The snapshot binary format, produced by Save and consumed by Load
//   - Apply, the single place where a command.Mutation changes state
//
// Key Components:
//
//   - KVDB Interface: Write operations (Put, Delete), read operations (Get,
//     Range, Keys, Values, Len, Dump) and persistence operations (Save, Load).
//     Implementations guard their state with a reader-writer lock so that any
//     number of readers can run concurrently with each other while writes are
//     exclusive.
//
//   - Apply: Maps a mutating command to the corresponding KVDB write. It has
//     no side effect besides the map itself and is idempotent for Put and
//     Delete (last write wins), so replaying a WAL on top of a snapshot that
//     already contains some of its records is safe.
//
//   - Snapshot Format: [u32 count][(u32 keylen, key, u32 vallen, value) x count],
//     all integers big-endian (see the codec package). A snapshot that fails to
//     decode yields ErrCorruptSnapshot and callers start from an empty state.
//
// Related Packages:
//
// The engines/ordered package (github.com/ValentinKolb/walkv/lib/db/engines/ordered)
// implements KVDB on top of a B-tree.
//
// The testing package (github.com/ValentinKolb/walkv/lib/db/testing) provides
// a standardized test suite and benchmarks for KVDB implementations.
package db
