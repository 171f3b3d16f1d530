package wstore

import (
	"context"
	"time"

	"github.com/ValentinKolb/walkv/lib/command"
	"github.com/ValentinKolb/walkv/lib/db"
	"github.com/ValentinKolb/walkv/lib/store"
)

// --------------------------------------------------------------------------
// Submission
// --------------------------------------------------------------------------

func (s *storeImpl) Put(ctx context.Context, key, value string) error {
	return s.Submit(ctx, command.Put{Key: key, Value: value})
}

func (s *storeImpl) Delete(ctx context.Context, key string) error {
	return s.Submit(ctx, command.Delete{Key: key})
}

// Submit enqueues m and waits for the writer's result. If the queue is full
// Submit blocks until there is room or ctx is done, in the latter case
// nothing was enqueued and ctx.Err() is returned. Once a mutation was
// enqueued it is always processed and Submit waits for its result, ctx is
// no longer consulted.
func (s *storeImpl) Submit(ctx context.Context, m command.Mutation) error {
	if err := command.Validate(m); err != nil {
		metricRejected.Inc()
		return store.WrapError(store.RetCInvalidCommand, "rejected mutation", err)
	}

	req := &request{m: m, done: make(chan error, 1)}
	if err := s.enqueue(ctx, req); err != nil {
		metricRejected.Inc()
		return err
	}

	// the writer answers every accepted request exactly once
	return <-req.done
}

// enqueue hands req to the writer. The shared lock keeps Close from closing
// the queue while a send is in progress.
func (s *storeImpl) enqueue(ctx context.Context, req *request) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if pipelineState(s.state.Load()) != stateRunning {
		return s.closedErr()
	}

	queued.Add(1)
	select {
	case s.queue <- req:
		return nil
	case <-s.failed:
		queued.Add(-1)
		return s.closedErr()
	case <-ctx.Done():
		queued.Add(-1)
		return ctx.Err()
	}
}

// --------------------------------------------------------------------------
// Writer
// --------------------------------------------------------------------------

// run is the single writer. It owns s.writer and is the only goroutine that
// appends to, truncates or compacts the WAL.
func (s *storeImpl) run() {
	defer close(s.stopped)

	for req := range s.queue {
		queued.Add(-1)
		if s.fatalErr != nil {
			req.done <- s.closedErr()
			continue
		}
		req.done <- s.process(req.m)
	}

	s.state.Store(int32(stateStopped))
}

// process persists and applies one mutation: append + fsync, apply, then
// compact if the WAL grew beyond the threshold.
func (s *storeImpl) process(m command.Mutation) error {
	start := time.Now()
	if err := s.writer.Append(m); err != nil {
		s.fail(err)
		return store.WrapError(store.RetCIoFailure, "append to wal", err)
	}
	metricAppendDuration.UpdateDuration(start)
	metricAppendedBytes.Add(int(s.writer.Size() - s.walSize.Load()))
	s.walSize.Store(s.writer.Size())

	db.Apply(s.db, m)
	metricMutations.Inc()

	if s.opts.MaxWALSize > 0 && s.writer.Size() > s.opts.MaxWALSize {
		if err := s.compact(); err != nil {
			// the mutation itself is durable, compaction is retried with the next one
			metricCompactionErrors.Inc()
			Logger.Errorf("compaction failed: %v", err)
		}
	}
	return nil
}

// fail stops the pipeline after an unrecoverable WAL error. Mutations still
// in the queue are answered with ErrQueueClosed, new submissions are
// rejected.
func (s *storeImpl) fail(err error) {
	Logger.Errorf("wal append failed, store stops accepting mutations: %v", err)
	metricAppendErrors.Inc()
	s.fatalErr = err
	s.state.Store(int32(stateStopped))
	close(s.failed)
}

// closedErr is the error for submissions that can no longer be accepted. If
// the writer failed, the cause is attached.
func (s *storeImpl) closedErr() error {
	select {
	case <-s.failed:
		// fatalErr is written before failed is closed
		return store.WrapError(store.RetCQueueClosed, "store is closed", s.fatalErr)
	default:
		return store.ErrQueueClosed
	}
}
