package wstore

import (
	"errors"
	"fmt"
	"os"
	"sync"
	"sync/atomic"

	"github.com/ValentinKolb/walkv/lib/command"
	"github.com/ValentinKolb/walkv/lib/db"
	"github.com/ValentinKolb/walkv/lib/snapshot"
	"github.com/ValentinKolb/walkv/lib/store"
	"github.com/ValentinKolb/walkv/lib/wal"
	"github.com/lni/dragonboat/v4/logger"
)

var Logger = logger.GetLogger("store")

// --------------------------------------------------------------------------
// Pipeline state
// --------------------------------------------------------------------------

type pipelineState int32

const (
	stateRunning  pipelineState = iota // accepting mutations
	stateDraining                      // queue closed, finishing accepted mutations
	stateStopped                       // writer exited or failed
)

func (s pipelineState) String() string {
	switch s {
	case stateRunning:
		return "running"
	case stateDraining:
		return "draining"
	default:
		return "stopped"
	}
}

// request is one accepted mutation waiting for the writer
type request struct {
	m    command.Mutation
	done chan error // buffered, receives exactly one result
}

// --------------------------------------------------------------------------
// Store
// --------------------------------------------------------------------------

type storeImpl struct {
	opts *Options
	db   db.KVDB

	// ingestion pipeline
	queue   chan *request
	mu      sync.RWMutex // submitters hold it shared while sending, Close exclusively while closing the queue
	state   atomic.Int32
	failed  chan struct{} // closed when the writer hit a fatal error
	stopped chan struct{} // closed when the writer goroutine exited

	// owned by the writer goroutine
	writer   *wal.Writer
	fatalErr error

	// mirrors for GetDBInfo
	walSize     atomic.Int64
	compactions atomic.Uint64

	closeOnce sync.Once
	closeErr  error
}

// Metadata is the db.DatabaseInfo metadata reported by the durable store
type Metadata struct {
	Engine      interface{} `json:"engine"` // metadata of the underlying db.KVDB
	State       string      `json:"state"`
	WALSize     int64       `json:"wal_size"`
	MaxWALSize  int64       `json:"max_wal_size"`
	QueueLength int         `json:"queue_length"`
	Compactions uint64      `json:"compactions"`
}

// RecoveryInfo describes what New found on disk
type RecoveryInfo struct {
	SnapshotLoaded  bool
	SnapshotCorrupt bool
	Replay          wal.ReplayResult
}

// New opens the durable store in opts.DataDir. It loads the snapshot, replays
// the WAL on top of it and starts the writer goroutine. A missing or corrupt
// snapshot results in an empty initial state, a torn WAL tail is cut off.
func New(factory store.DBFactory, opts *Options) (store.IStore, error) {
	s, _, err := Open(factory, opts)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// Open is New but additionally reports the recovery result.
func Open(factory store.DBFactory, opts *Options) (store.IStore, RecoveryInfo, error) {
	var info RecoveryInfo

	if opts == nil {
		return nil, info, fmt.Errorf("options must not be nil")
	}
	o := *opts
	if err := o.validate(); err != nil {
		return nil, info, err
	}
	if err := os.MkdirAll(o.DataDir, 0o755); err != nil {
		return nil, info, store.WrapError(store.RetCIoFailure, "create data dir", err)
	}

	database := factory()

	// 1. snapshot
	snapshot.CleanupTemp(o.SnapshotPath())
	loaded, err := snapshot.Load(o.SnapshotPath(), database)
	switch {
	case errors.Is(err, db.ErrCorruptSnapshot):
		Logger.Warningf("snapshot %s is corrupt, starting from an empty state: %v", o.SnapshotPath(), err)
		info.SnapshotCorrupt = true
	case err != nil:
		database.Close()
		return nil, info, store.WrapError(store.RetCIoFailure, "load snapshot", err)
	case loaded:
		Logger.Infof("loaded snapshot %s with %d entries", o.SnapshotPath(), database.Len())
	}
	info.SnapshotLoaded = loaded

	// 2. wal
	result, err := wal.Replay(o.WALPath(), func(m command.Mutation) {
		db.Apply(database, m)
	})
	if err != nil {
		database.Close()
		return nil, info, store.WrapError(store.RetCIoFailure, "replay wal", err)
	}
	info.Replay = result
	metricReplayed.Add(result.Applied)
	metricReplaySkipped.Add(result.Skipped)
	if result.TornTail {
		// frames behind a damaged length field are lost together with the tail
		Logger.Errorf("dropping %d bytes after offset %d of %s, the wal ends in an incomplete frame",
			result.TailBytes, result.ValidOffset, o.WALPath())
		if err := wal.Repair(o.WALPath(), result.ValidOffset); err != nil {
			database.Close()
			return nil, info, store.WrapError(store.RetCIoFailure, "repair wal", err)
		}
	}
	Logger.Infof("replayed %d records from %s (%d skipped, torn tail: %v)",
		result.Applied, o.WALPath(), result.Skipped, result.TornTail)

	// 3. writer
	writer, err := wal.Open(o.WALPath(), o.NoSync)
	if err != nil {
		database.Close()
		return nil, info, store.WrapError(store.RetCIoFailure, "open wal", err)
	}

	s := newStore(&o, database, writer)
	go s.run()
	return s, info, nil
}

// newStore wires the pipeline without starting the writer goroutine
func newStore(opts *Options, database db.KVDB, writer *wal.Writer) *storeImpl {
	s := &storeImpl{
		opts:    opts,
		db:      database,
		queue:   make(chan *request, opts.QueueCapacity),
		failed:  make(chan struct{}),
		stopped: make(chan struct{}),
		writer:  writer,
	}
	s.walSize.Store(writer.Size())
	s.state.Store(int32(stateRunning))
	return s
}

// --------------------------------------------------------------------------
// Interface Methods (docu see store/interface.go)
// --------------------------------------------------------------------------

func (s *storeImpl) Get(key string) (string, error) {
	val, ok := s.db.Get(key)
	if !ok {
		return "", store.ErrKeyNotFound
	}
	return val, nil
}

func (s *storeImpl) Range(start, end string) []db.Pair {
	return s.db.Range(start, end)
}

func (s *storeImpl) Keys(needle string) []string {
	return s.db.Keys(needle)
}

func (s *storeImpl) Values(needle string) []string {
	return s.db.Values(needle)
}

func (s *storeImpl) Amount() int {
	return s.db.Len()
}

func (s *storeImpl) DumpAll() []db.Pair {
	return s.db.Dump()
}

func (s *storeImpl) GetDBInfo() db.DatabaseInfo {
	info := s.db.GetInfo()
	info.Metadata = &Metadata{
		Engine:      info.Metadata,
		State:       pipelineState(s.state.Load()).String(),
		WALSize:     s.walSize.Load(),
		MaxWALSize:  s.opts.MaxWALSize,
		QueueLength: len(s.queue),
		Compactions: s.compactions.Load(),
	}
	return info
}

// Close closes the queue, waits until the writer applied every accepted
// mutation and closes the WAL. The in-memory state stays readable.
func (s *storeImpl) Close() error {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.state.CompareAndSwap(int32(stateRunning), int32(stateDraining))
		close(s.queue)
		s.mu.Unlock()

		<-s.stopped
		s.closeErr = s.writer.Close()
		if s.closeErr == nil && s.fatalErr != nil {
			s.closeErr = store.WrapError(store.RetCIoFailure, "writer failed", s.fatalErr)
		}
		Logger.Infof("store closed (wal %s, %d entries)", s.opts.WALPath(), s.db.Len())
	})
	return s.closeErr
}
