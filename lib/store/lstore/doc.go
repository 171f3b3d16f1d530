// Package lstore implements a local, in-memory key-value store based on the
// store.IStore interface. It is a thin wrapper around any db.KVDB
// implementation that applies every mutation directly with db.Apply. Data is
// stored entirely in memory and is not persisted between process restarts.
//
// Implementation Details:
//
//   - Mutations are serialized by a mutex, so the single-writer discipline of
//     the durable store holds here as well (without a queue).
//
//   - Reads go straight to the db.KVDB and rely on its reader-writer lock.
//
//   - Close only rejects further mutations with store.ErrQueueClosed, reads
//     keep working.
//
// Usage Example:
//
//	factory := func() db.KVDB { return ordered.NewOrderedDB(nil) }
//	s := lstore.NewLocalStore(factory)
//
//	err := s.Put(ctx, "session:123", "data")
//	value, err := s.Get("session:123")
//
// The local store is used by "walkv serve --in-memory" and as the reference
// implementation in tests. For durability use the wstore package, which adds
// the write-ahead log and snapshots on top of the same db.KVDB.
package lstore
