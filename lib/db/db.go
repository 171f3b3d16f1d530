package db

import (
	"errors"
	"io"

	"github.com/ValentinKolb/walkv/lib/command"
)

// --------------------------------------------------------------------------
// Helper Types
// --------------------------------------------------------------------------

type Implementation string

const (
	ImplOrdered Implementation = "ordered"
)

// ErrCorruptSnapshot is returned by Load when the snapshot bytes are
// truncated or contain invalid UTF-8.
var ErrCorruptSnapshot = errors.New("corrupt snapshot")

// Pair is a single key/value entry.
type Pair struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

type DatabaseInfo struct {
	Entries   int            `json:"entries"`
	SizeBytes int            `json:"size_bytes"`
	DbType    Implementation `json:"db_type"`
	Metadata  interface{}    `json:"metadata"`
}

// --------------------------------------------------------------------------
// Database Interface
// --------------------------------------------------------------------------

// KVDB defines the in-memory state of the store: an ordered map from string
// keys to string values. Keys are ordered by byte-wise comparison.
// All methods must be safe for concurrent use, readers never observe a
// partially applied write.
type KVDB interface {

	// --------------------------------------------------------------------------
	// Write Operations
	// --------------------------------------------------------------------------

	// Put inserts or overwrites the value for key.
	Put(key, value string)

	// Delete removes key. Removing an absent key is a no-op.
	Delete(key string)

	// --------------------------------------------------------------------------
	// Query Operations
	// --------------------------------------------------------------------------

	// Get retrieves the value for an exact key.
	// The boolean return value indicates whether a value for the key was found.
	Get(key string) (value string, loaded bool)

	// Range returns all entries with start <= key <= end in key order.
	// The result is empty if start > end.
	Range(start, end string) []Pair

	// Keys returns all keys containing needle in key order.
	Keys(needle string) []string

	// Values returns all values containing needle, ordered by their key.
	Values(needle string) []string

	// Len returns the number of entries.
	Len() int

	// Dump returns every entry in key order.
	Dump() []Pair

	// --------------------------------------------------------------------------
	// Persistence Operations
	// --------------------------------------------------------------------------

	// Save writes the snapshot encoding of the current state to w:
	// a big-endian u32 entry count followed by that many (key, value)
	// pairs, each as a length-prefixed string.
	Save(w io.Writer) (err error)

	// Load replaces the current state with the snapshot read from r.
	// On failure the current state is left untouched and the error wraps
	// ErrCorruptSnapshot (malformed data) or the underlying read error.
	Load(r io.Reader) (err error)

	// GetInfo returns information about the database.
	GetInfo() (info DatabaseInfo)

	// Close releases resources held by the database.
	Close() (err error)
}

// --------------------------------------------------------------------------
// State Machine
// --------------------------------------------------------------------------

// Apply mutates database according to m. It performs no I/O and applying
// the same mutation twice in a row has the same effect as applying it once.
func Apply(database KVDB, m command.Mutation) {
	switch c := m.(type) {
	case command.Put:
		database.Put(c.Key, c.Value)
	case command.Delete:
		database.Delete(c.Key)
	}
}
