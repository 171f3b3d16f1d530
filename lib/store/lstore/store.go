package lstore

import (
	"context"
	"sync"

	"github.com/ValentinKolb/walkv/lib/command"
	"github.com/ValentinKolb/walkv/lib/db"
	"github.com/ValentinKolb/walkv/lib/store"
)

type storeImpl struct {
	db db.KVDB

	// mu serializes mutations against each other and against Close
	mu     sync.Mutex
	closed bool
}

// NewLocalStore creates a new in-memory store instance.
// Nothing is persisted, the state is lost when the process exits.
func NewLocalStore(factory store.DBFactory) store.IStore {
	return &storeImpl{
		db: factory(),
	}
}

// --------------------------------------------------------------------------
// Interface Methods (docu see store/interface.go)
// --------------------------------------------------------------------------

func (s *storeImpl) Put(ctx context.Context, key, value string) error {
	return s.Submit(ctx, command.Put{Key: key, Value: value})
}

func (s *storeImpl) Delete(ctx context.Context, key string) error {
	return s.Submit(ctx, command.Delete{Key: key})
}

func (s *storeImpl) Submit(ctx context.Context, m command.Mutation) error {
	if err := command.Validate(m); err != nil {
		return store.WrapError(store.RetCInvalidCommand, "rejected mutation", err)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return store.ErrQueueClosed
	}
	db.Apply(s.db, m)
	return nil
}

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
	return s.db.GetInfo()
}

// Close rejects further mutations, the data stays readable.
func (s *storeImpl) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}
