package ordered

import (
	"bufio"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/ValentinKolb/walkv/lib/codec"
	"github.com/ValentinKolb/walkv/lib/db"
	"github.com/ValentinKolb/walkv/lib/db/util"
	"github.com/google/btree"
)

// --------------------------------------------------------------------------
// Constants
// --------------------------------------------------------------------------

const (
	defaultDegree = 32
	entryOverhead = 8 // two u32 length prefixes in the snapshot encoding
)

// --------------------------------------------------------------------------
// Core Ordered database structure
// --------------------------------------------------------------------------

// orderedImpl keeps all entries in a single B-tree ordered by key.
// One reader-writer lock guards the tree: writes hold it exclusively and only
// for the duration of the single tree operation.
type orderedImpl struct {
	mu     sync.RWMutex
	tree   *btree.BTreeG[db.Pair]
	degree int
}

// DBOptions configures the orderedImpl behavior during initialization
type DBOptions struct {
	Degree int // B-tree degree (0 = use default: 32)
}

// DefaultOptions returns the default orderedImpl options
func DefaultOptions() *DBOptions {
	return &DBOptions{
		Degree: defaultDegree,
	}
}

// NewOrderedDB creates a new empty database with the specified options (optional)
func NewOrderedDB(opts *DBOptions) db.KVDB {
	if opts == nil {
		opts = DefaultOptions()
	}
	degree := opts.Degree
	if degree < 2 {
		degree = defaultDegree
	}
	return &orderedImpl{
		tree:   newTree(degree),
		degree: degree,
	}
}

func newTree(degree int) *btree.BTreeG[db.Pair] {
	return btree.NewG[db.Pair](degree, func(a, b db.Pair) bool {
		return a.Key < b.Key
	})
}

// --------------------------------------------------------------------------
// KVDB Interface Methods - Write Operations
// --------------------------------------------------------------------------

// Put inserts or overwrites the value for key.
//
// Thread-safety: This method is thread-safe and can be called concurrently.
func (o *orderedImpl) Put(key, value string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.tree.ReplaceOrInsert(db.Pair{Key: key, Value: value})
}

// Delete removes key, a missing key is ignored.
//
// Thread-safety: This method is thread-safe and can be called concurrently.
func (o *orderedImpl) Delete(key string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.tree.Delete(db.Pair{Key: key})
}

// --------------------------------------------------------------------------
// KVDB Interface Methods - Read Operations
// --------------------------------------------------------------------------

func (o *orderedImpl) Get(key string) (string, bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	p, ok := o.tree.Get(db.Pair{Key: key})
	return p.Value, ok
}

func (o *orderedImpl) Range(start, end string) []db.Pair {
	result := []db.Pair{}
	if start > end {
		return result
	}

	o.mu.RLock()
	defer o.mu.RUnlock()

	// AscendRange excludes the upper bound, so walk from start and stop after end
	o.tree.AscendGreaterOrEqual(db.Pair{Key: start}, func(p db.Pair) bool {
		if p.Key > end {
			return false
		}
		result = append(result, p)
		return true
	})
	return result
}

func (o *orderedImpl) Keys(needle string) []string {
	result := []string{}

	o.mu.RLock()
	defer o.mu.RUnlock()

	o.tree.Ascend(func(p db.Pair) bool {
		if strings.Contains(p.Key, needle) {
			result = append(result, p.Key)
		}
		return true
	})
	return result
}

func (o *orderedImpl) Values(needle string) []string {
	result := []string{}

	o.mu.RLock()
	defer o.mu.RUnlock()

	o.tree.Ascend(func(p db.Pair) bool {
		if strings.Contains(p.Value, needle) {
			result = append(result, p.Value)
		}
		return true
	})
	return result
}

func (o *orderedImpl) Len() int {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.tree.Len()
}

func (o *orderedImpl) Dump() []db.Pair {
	o.mu.RLock()
	defer o.mu.RUnlock()

	result := make([]db.Pair, 0, o.tree.Len())
	o.tree.Ascend(func(p db.Pair) bool {
		result = append(result, p)
		return true
	})
	return result
}

// --------------------------------------------------------------------------
// Persistence Operations
// --------------------------------------------------------------------------

// Save persists the database to the writer.
//
// Thread-safety: The tree is cloned under the lock (copy-on-write, O(1)),
// the encoding itself runs without blocking readers or writers.
func (o *orderedImpl) Save(w io.Writer) error {
	o.mu.Lock()
	snapshot := o.tree.Clone()
	o.mu.Unlock()

	bw := bufio.NewWriterSize(w, 64*1024)

	// Write entry count
	if _, err := bw.Write(codec.AppendU32(nil, uint32(snapshot.Len()))); err != nil {
		return err
	}

	// Write entries in key order, reusing one scratch buffer
	var (
		buf      []byte
		writeErr error
	)
	snapshot.Ascend(func(p db.Pair) bool {
		buf = codec.AppendString(buf[:0], p.Key)
		buf = codec.AppendString(buf, p.Value)
		_, writeErr = bw.Write(buf)
		return writeErr == nil
	})
	if writeErr != nil {
		return writeErr
	}

	// Flush buffer to ensure all data is written
	return bw.Flush()
}

// Load restores a database from the reader. The new state is decoded
// completely before it replaces the current one.
//
// Thread-safety: This method is thread-safe, concurrent readers see either
// the old or the new state.
func (o *orderedImpl) Load(r io.Reader) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}

	tree, err := decodeSnapshot(data, o.degree)
	if err != nil {
		return err
	}

	o.mu.Lock()
	o.tree = tree
	o.mu.Unlock()
	return nil
}

// decodeSnapshot parses the snapshot format into a new tree
func decodeSnapshot(data []byte, degree int) (*btree.BTreeG[db.Pair], error) {
	reader := codec.NewReader(data)

	count, err := reader.ReadU32()
	if err != nil {
		return nil, fmt.Errorf("%w: entry count: %v", db.ErrCorruptSnapshot, err)
	}

	tree := newTree(degree)
	for i := uint32(0); i < count; i++ {
		key, err := reader.ReadString()
		if err != nil {
			return nil, fmt.Errorf("%w: key of entry %d: %v", db.ErrCorruptSnapshot, i, err)
		}
		value, err := reader.ReadString()
		if err != nil {
			return nil, fmt.Errorf("%w: value of entry %d: %v", db.ErrCorruptSnapshot, i, err)
		}
		tree.ReplaceOrInsert(db.Pair{Key: key, Value: value})
	}

	if reader.Remaining() != 0 {
		return nil, fmt.Errorf("%w: %d trailing bytes after %d entries", db.ErrCorruptSnapshot, reader.Remaining(), count)
	}
	return tree, nil
}

// --------------------------------------------------------------------------
// KVDB Interface Implementation - Metadata
// --------------------------------------------------------------------------

// GetInfo returns statistics about the database
func (o *orderedImpl) GetInfo() db.DatabaseInfo {
	histogram := util.NewSizeHistogram()
	sizeBytes := 4 // entry count prefix

	o.mu.RLock()
	entries := o.tree.Len()
	o.tree.Ascend(func(p db.Pair) bool {
		histogram.AddSample(len(p.Value))
		sizeBytes += entryOverhead + len(p.Key) + len(p.Value)
		return true
	})
	o.mu.RUnlock()

	meta := &struct {
		Degree          int `json:"degree"`
		MedianValueSize int `json:"median_value_size"`
		AvgValueSize    int `json:"avg_value_size"`
		P99ValueSize    int `json:"p99_value_size"`
	}{
		Degree:          o.degree,
		MedianValueSize: histogram.MedianEstimate(),
		AvgValueSize:    histogram.AverageSize(),
		P99ValueSize:    histogram.GetPercentileEstimate(99),
	}

	return db.DatabaseInfo{
		Entries:   entries,
		SizeBytes: sizeBytes,
		DbType:    db.ImplOrdered,
		Metadata:  meta,
	}
}

// Close drops all entries
func (o *orderedImpl) Close() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.tree.Clear(false)
	return nil
}
