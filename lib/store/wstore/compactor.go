package wstore

import (
	"fmt"
	"time"

	"github.com/ValentinKolb/walkv/lib/snapshot"
)

// compact folds the WAL into a new snapshot and truncates the WAL.
//
// The rename of the snapshot and the truncate of the WAL are not atomic as a
// pair. A crash in between replays records that are already part of the
// snapshot, which is harmless because db.Apply is idempotent. Only the
// writer goroutine calls compact, so no append can slip in between.
func (s *storeImpl) compact() error {
	start := time.Now()
	walSize := s.writer.Size()

	if err := snapshot.Write(s.opts.SnapshotPath(), s.db); err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}
	if err := s.writer.Truncate(); err != nil {
		return fmt.Errorf("truncate wal: %w", err)
	}
	s.walSize.Store(0)

	s.compactions.Add(1)
	metricCompactions.Inc()
	metricCompactDuration.UpdateDuration(start)
	Logger.Infof("compacted %d bytes of wal into %s (%d entries) in %s",
		walSize, s.opts.SnapshotPath(), s.db.Len(), time.Since(start))
	return nil
}
