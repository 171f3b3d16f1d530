package wal

import (
	"fmt"
	"os"

	"github.com/ValentinKolb/walkv/lib/command"
)

// Writer appends frames to a WAL file. It is not safe for concurrent use,
// exactly one goroutine may own a Writer.
type Writer struct {
	f      *os.File
	path   string
	size   int64
	noSync bool
	buf    []byte
}

// Open opens (or creates) the WAL at path for appending. With noSync set,
// Append does not fsync, which is only useful for tests and benchmarks.
func Open(path string, noSync bool) (*Writer, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open wal: %w", err)
	}

	stat, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("stat wal: %w", err)
	}

	return &Writer{
		f:      f,
		path:   path,
		size:   stat.Size(),
		noSync: noSync,
	}, nil
}

// Append writes the frame for m with a single write call and flushes it to
// stable storage. When Append returns nil the mutation is durable.
func (w *Writer) Append(m command.Mutation) error {
	w.buf = AppendFrame(w.buf[:0], m)

	n, err := w.f.Write(w.buf)
	w.size += int64(n)
	if err != nil {
		return fmt.Errorf("append to wal: %w", err)
	}

	if w.noSync {
		return nil
	}
	if err := w.f.Sync(); err != nil {
		return fmt.Errorf("sync wal: %w", err)
	}
	return nil
}

// Size returns the current size of the WAL file in bytes
func (w *Writer) Size() int64 {
	return w.size
}

// Path returns the path of the WAL file
func (w *Writer) Path() string {
	return w.path
}

// Truncate empties the WAL, called after its content was folded into a
// snapshot.
func (w *Writer) Truncate() error {
	if err := w.f.Truncate(0); err != nil {
		return fmt.Errorf("truncate wal: %w", err)
	}
	w.size = 0
	if err := w.f.Sync(); err != nil {
		return fmt.Errorf("sync wal: %w", err)
	}
	return nil
}

// Close flushes and closes the file
func (w *Writer) Close() error {
	syncErr := w.f.Sync()
	if err := w.f.Close(); err != nil {
		return fmt.Errorf("close wal: %w", err)
	}
	if syncErr != nil {
		return fmt.Errorf("sync wal: %w", syncErr)
	}
	return nil
}
