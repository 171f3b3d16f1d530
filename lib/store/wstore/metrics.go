package wstore

import (
	"sync/atomic"

	"github.com/VictoriaMetrics/metrics"
)

// Process wide metrics of all durable stores, exported by the HTTP front end
// on /metrics.
var (
	metricMutations        = metrics.NewCounter(`walkv_mutations_total`)
	metricAppendedBytes    = metrics.NewCounter(`walkv_wal_appended_bytes_total`)
	metricAppendErrors     = metrics.NewCounter(`walkv_wal_append_errors_total`)
	metricAppendDuration   = metrics.NewHistogram(`walkv_wal_append_duration_seconds`)
	metricCompactions      = metrics.NewCounter(`walkv_compactions_total`)
	metricCompactionErrors = metrics.NewCounter(`walkv_compaction_errors_total`)
	metricCompactDuration  = metrics.NewHistogram(`walkv_compaction_duration_seconds`)
	metricReplayed         = metrics.NewCounter(`walkv_wal_replayed_records_total`)
	metricReplaySkipped    = metrics.NewCounter(`walkv_wal_skipped_records_total`)
	metricRejected         = metrics.NewCounter(`walkv_rejected_mutations_total`)

	queued atomic.Int64

	_ = metrics.NewGauge(`walkv_queue_length`, func() float64 {
		return float64(queued.Load())
	})
)
