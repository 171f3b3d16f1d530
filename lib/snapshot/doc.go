// Package snapshot reads and atomically replaces the snapshot file.
//
// The file content is produced by db.KVDB.Save and consumed by db.KVDB.Load
// (see package db for the format). Write always goes through a temporary
// file followed by a rename, so no reader ever observes a half-written
// snapshot.
package snapshot
