package wstore

import (
	"fmt"
	"path/filepath"
)

// --------------------------------------------------------------------------
// Constants
// --------------------------------------------------------------------------

const (
	DefaultWALFile       = "wal.bin"
	DefaultSnapshotFile  = "snap.bin"
	DefaultMaxWALSize    = 100 * 1024 // bytes
	DefaultQueueCapacity = 1024
)

// Options configures the durable store. The store never reads configuration
// itself, everything it depends on is passed in here.
type Options struct {
	DataDir       string // directory holding the WAL and the snapshot (required)
	WALFile       string // file name of the WAL inside DataDir
	SnapshotFile  string // file name of the snapshot inside DataDir
	MaxWALSize    int64  // compact once the WAL grows beyond this many bytes (<= 0 disables compaction)
	QueueCapacity int    // capacity of the ingestion queue
	NoSync        bool   // skip fsync after appends (tests and benchmarks only)
}

// DefaultOptions returns the default options for the given data directory
func DefaultOptions(dataDir string) *Options {
	return &Options{
		DataDir:       dataDir,
		WALFile:       DefaultWALFile,
		SnapshotFile:  DefaultSnapshotFile,
		MaxWALSize:    DefaultMaxWALSize,
		QueueCapacity: DefaultQueueCapacity,
	}
}

func (o *Options) validate() error {
	if o.DataDir == "" {
		return fmt.Errorf("data dir must not be empty")
	}
	if o.WALFile == "" {
		o.WALFile = DefaultWALFile
	}
	if o.SnapshotFile == "" {
		o.SnapshotFile = DefaultSnapshotFile
	}
	if o.QueueCapacity <= 0 {
		o.QueueCapacity = DefaultQueueCapacity
	}
	if o.WALFile == o.SnapshotFile {
		return fmt.Errorf("wal file and snapshot file must differ (both %q)", o.WALFile)
	}
	return nil
}

// WALPath returns the full path of the WAL file
func (o *Options) WALPath() string {
	return filepath.Join(o.DataDir, o.WALFile)
}

// SnapshotPath returns the full path of the snapshot file
func (o *Options) SnapshotPath() string {
	return filepath.Join(o.DataDir, o.SnapshotFile)
}
