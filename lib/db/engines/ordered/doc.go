// Package ordered implements db.KVDB on top of a B-tree
// (github.com/google/btree).
//
// All entries live in a single generic BTreeG[db.Pair] ordered by key, so
// Range is a bounded ascend and Keys, Values and Dump are in-order walks.
// A sync.RWMutex guards the tree: readers run concurrently, Put and Delete
// are exclusive for the duration of one tree operation.
//
// Save clones the tree (copy-on-write) under the lock and encodes the clone
// afterwards, so taking a snapshot does not block writers for long. Load
// decodes into a fresh tree and swaps it in only after the whole snapshot was
// read successfully.
//
// Usage:
//
//	database := ordered.NewOrderedDB(nil)
//	database.Put("key", "value")
//	pairs := database.Range("a", "z")
package ordered
