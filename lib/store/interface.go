package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/ValentinKolb/walkv/lib/command"
	"github.com/ValentinKolb/walkv/lib/db"
	"github.com/ValentinKolb/walkv/lib/wal"
)

// --------------------------------------------------------------------------
// Interface Definition
// --------------------------------------------------------------------------

// DBFactory is a function type that creates a new db used by the store.
// This is used to abstract the creation of the db from the store implementation.
type DBFactory func() db.KVDB

// IStore is the generic interface for interacting with a key–value store.
//
// Mutations (Put, Delete, Submit) block until the mutation was applied (and,
// for durable stores, persisted) or failed, the returned error is nil or an
// *Error. Read operations answer from the in-memory state and never wait for
// pending mutations.
type IStore interface {
	// Put inserts or updates a key–value pair.
	Put(ctx context.Context, key, value string) (err error)
	// Delete removes a key. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) (err error)
	// Submit applies an arbitrary mutation. Put and Delete are shorthands for it.
	// Mutations that fail command.Validate (invalid UTF-8, pointer variants)
	// are rejected with an InvalidCommand error before anything is persisted.
	// A ctx that is done before the mutation was accepted yields ctx.Err(),
	// an accepted mutation is always processed and its typed result returned.
	Submit(ctx context.Context, m command.Mutation) (err error)

	// Get returns the value for a key or ErrKeyNotFound.
	Get(key string) (value string, err error)
	// Range returns all pairs with start <= key <= end in key order.
	Range(start, end string) (pairs []db.Pair)
	// Keys returns all keys containing needle in key order.
	Keys(needle string) (keys []string)
	// Values returns all values containing needle ordered by their key.
	Values(needle string) (values []string)
	// Amount returns the number of stored keys.
	Amount() (n int)
	// DumpAll returns all pairs in key order.
	DumpAll() (pairs []db.Pair)

	// GetDBInfo returns metadata about the database underlying the store.
	// It is not guaranteed that all fields are filled in or that the information is up-to-date!
	GetDBInfo() (info db.DatabaseInfo)

	// Close stops accepting mutations, waits for all accepted ones to be
	// applied and releases the resources of the store. Mutations submitted
	// after Close fail with ErrQueueClosed.
	Close() (err error)
}

// --------------------------------------------------------------------------
// Custom Error Type
// --------------------------------------------------------------------------

// Error is a custom error type that wraps a return code (of type RetCode),
// an error message and optionally the underlying cause.
type Error struct {
	Code RetCode // The return code
	Msg  string  // The error message.
	Err  error   // The cause, may be nil
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Msg)
}

// Unwrap returns the cause of the error
func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is an *Error with the same code, so that
// errors.Is(err, store.ErrKeyNotFound) works for every KeyNotFound error.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}

// NewError creates a new Error with the given code and message.
func NewError(code RetCode, msg string) *Error {
	return &Error{
		Code: code,
		Msg:  msg,
	}
}

// WrapError creates a new Error with the given code that wraps err.
func WrapError(code RetCode, msg string, err error) *Error {
	return &Error{
		Code: code,
		Msg:  msg,
		Err:  err,
	}
}

// CodeOf returns the RetCode of err: RetCSuccess for nil, the code of a
// wrapped *Error, the code matching a known sentinel of the lower layers,
// or RetCInternalError.
func CodeOf(err error) RetCode {
	if err == nil {
		return RetCSuccess
	}
	var storeErr *Error
	if errors.As(err, &storeErr) {
		return storeErr.Code
	}
	switch {
	case errors.Is(err, command.ErrInvalidCommand):
		return RetCInvalidCommand
	case errors.Is(err, db.ErrCorruptSnapshot), errors.Is(err, wal.ErrCorruptRecord):
		return RetCCorruptRecord
	default:
		return RetCInternalError
	}
}

// Sentinel errors for comparisons with errors.Is
var (
	ErrKeyNotFound    = NewError(RetCKeyNotFound, "key not found")
	ErrQueueClosed    = NewError(RetCQueueClosed, "store is closed")
	ErrInvalidCommand = NewError(RetCInvalidCommand, "invalid command")
	ErrIoFailure      = NewError(RetCIoFailure, "io failure")
)

// --------------------------------------------------------------------------
// Return Codes
// --------------------------------------------------------------------------

type RetCode uint64

const (
	RetCSuccess        RetCode = iota // 0: Command executed successfully.
	RetCInternalError                 // 1: Command failed due to an internal error.
	RetCIoFailure                     // 2: Disk read, write, flush or rename failed.
	RetCCorruptRecord                 // 3: A WAL frame or snapshot failed to decode.
	RetCInvalidCommand                // 4: Unknown opcode or malformed input.
	RetCKeyNotFound                   // 5: Read miss.
	RetCQueueClosed                   // 6: The ingestion pipeline has shut down.
)

func (c RetCode) String() string {
	switch c {
	case RetCSuccess:
		return "Success"
	case RetCInternalError:
		return "InternalError"
	case RetCIoFailure:
		return "IoFailure"
	case RetCCorruptRecord:
		return "CorruptRecord"
	case RetCInvalidCommand:
		return "InvalidCommand"
	case RetCKeyNotFound:
		return "KeyNotFound"
	case RetCQueueClosed:
		return "QueueClosed"
	default:
		return fmt.Sprintf("RetCode(%d)", uint64(c))
	}
}

// ParseRetCode is the inverse of RetCode.String
func ParseRetCode(name string) (RetCode, bool) {
	for c := RetCSuccess; c <= RetCQueueClosed; c++ {
		if c.String() == name {
			return c, true
		}
	}
	return 0, false
}
