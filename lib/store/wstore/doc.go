// Package wstore implements the durable store.IStore: the in-memory
// db.KVDB made crash safe by the write-ahead log (package wal) and
// periodically compacted into a snapshot (package snapshot).
//
// Startup:
//
//  1. Stale temporary snapshot files are removed.
//  2. The snapshot is loaded. A missing snapshot is an empty state, a corrupt
//     one is logged and treated as empty as well.
//  3. The WAL is replayed on top. Undecodable frames are skipped, a torn
//     tail (crash during a write) is truncated.
//  4. The WAL is opened for appending and the writer goroutine is started.
//
// Ingestion Pipeline:
//
//	Every mutation (Put, Delete, Submit) becomes a request on a bounded queue
//	(Options.QueueCapacity, default 1024). A full queue blocks the submitter
//	until there is room, this is the backpressure of the store. A single
//	writer goroutine takes requests in arrival order and for each one
//
//	  - appends the frame to the WAL and fsyncs it
//	  - applies the mutation to the db.KVDB (exclusive lock held only for this)
//	  - compacts if the WAL grew beyond Options.MaxWALSize (default 100 KiB)
//	  - answers the submitter
//
//	A mutation is therefore never visible to readers before it is durable.
//	Reads do not use the queue, they go straight to the db.KVDB and share its
//	reader lock.
//
// Lifecycle:
//
//	running -> draining -> stopped. Close moves the pipeline to draining,
//	closes the queue and waits until the writer processed every accepted
//	request, then closes the WAL. A failed append or fsync stops the pipeline
//	immediately: the affected request gets an IoFailure error, queued and
//	new ones get ErrQueueClosed. A failed compaction is logged and retried
//	with the next mutation, the WAL still holds everything.
//
// Compaction:
//
//	The snapshot is written to a temporary file, fsynced and renamed over the
//	old one, then the WAL is truncated. A crash between the two steps replays
//	records the snapshot already contains, which is harmless because applying
//	Put and Delete is idempotent. Only the writer goroutine compacts, so no
//	append can happen between snapshot and truncate.
//
// Metrics (github.com/VictoriaMetrics/metrics) are registered in the default
// set and exposed by the HTTP front end.
package wstore
