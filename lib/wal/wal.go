package wal

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/ValentinKolb/walkv/lib/command"
	"github.com/lni/dragonboat/v4/logger"
)

var Logger = logger.GetLogger("wal")

// --------------------------------------------------------------------------
// Frame format
// --------------------------------------------------------------------------

// HeaderSize is the size of the big-endian u32 payload length in front of
// every record.
const HeaderSize = 4

// ErrCorruptRecord marks a frame that is incomplete or whose payload is not
// a valid mutation.
var ErrCorruptRecord = errors.New("corrupt wal record")

// AppendFrame appends the frame for m (length prefix plus encoded command)
// to buf and returns the extended buffer.
func AppendFrame(buf []byte, m command.Mutation) []byte {
	start := len(buf)
	buf = append(buf, 0, 0, 0, 0)
	buf = command.AppendEncoded(buf, m)
	binary.BigEndian.PutUint32(buf[start:], uint32(len(buf)-start-HeaderSize))
	return buf
}

// --------------------------------------------------------------------------
// Reader
// --------------------------------------------------------------------------

// Reader yields the raw payloads of a frame stream one by one.
type Reader struct {
	r      *bufio.Reader
	size   int64 // total stream size, bounds the payload allocation
	offset int64 // offset of the next frame
	header [HeaderSize]byte
}

// NewReader creates a Reader for a stream of the given total size
func NewReader(r io.Reader, size int64) *Reader {
	return &Reader{
		r:    bufio.NewReaderSize(r, 64*1024),
		size: size,
	}
}

// Offset returns the offset directly behind the last complete frame
func (r *Reader) Offset() int64 {
	return r.offset
}

// Next returns the payload of the next frame. It returns io.EOF at a clean
// end of the stream and an error wrapping ErrCorruptRecord if the stream
// ends inside a frame. Any other error comes from the underlying reader.
func (r *Reader) Next() ([]byte, error) {
	n, err := io.ReadFull(r.r, r.header[:])
	switch {
	case err == io.EOF:
		return nil, io.EOF
	case errors.Is(err, io.ErrUnexpectedEOF):
		return nil, fmt.Errorf("%w: torn header at offset %d (%d of %d bytes)", ErrCorruptRecord, r.offset, n, HeaderSize)
	case err != nil:
		return nil, err
	}

	length := int64(binary.BigEndian.Uint32(r.header[:]))
	if available := r.size - r.offset - HeaderSize; length > available {
		return nil, fmt.Errorf("%w: frame at offset %d declares %d bytes, only %d left", ErrCorruptRecord, r.offset, length, available)
	}

	payload := make([]byte, length)
	if _, err := io.ReadFull(r.r, payload); err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) || err == io.EOF {
			return nil, fmt.Errorf("%w: torn payload at offset %d", ErrCorruptRecord, r.offset)
		}
		return nil, err
	}

	r.offset += HeaderSize + length
	return payload, nil
}

// --------------------------------------------------------------------------
// Replay
// --------------------------------------------------------------------------

// ReplayResult summarizes a replay
type ReplayResult struct {
	Applied     int   // frames decoded and handed to the callback
	Skipped     int   // complete frames that did not decode to a mutation
	ValidOffset int64 // offset behind the last complete frame
	TornTail    bool  // true if bytes after ValidOffset were discarded
	TailBytes   int64 // number of bytes after ValidOffset
}

// Replay reads the WAL at path and calls fn for every mutation in file order.
// A missing file is an empty log. Complete frames that fail to decode are
// skipped and logged. An incomplete trailing frame ends the replay, it is
// reported via TornTail and can be cut off with Repair.
func Replay(path string, fn func(command.Mutation)) (ReplayResult, error) {
	var result ReplayResult

	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return result, nil
	} else if err != nil {
		return result, fmt.Errorf("open wal: %w", err)
	}
	defer f.Close()

	stat, err := f.Stat()
	if err != nil {
		return result, fmt.Errorf("stat wal: %w", err)
	}

	reader := NewReader(f, stat.Size())
	for {
		frameOffset := reader.Offset()
		payload, err := reader.Next()
		if err == io.EOF {
			break
		}
		if errors.Is(err, ErrCorruptRecord) {
			Logger.Warningf("incomplete frame at offset %d of %s: %v", frameOffset, path, err)
			result.TornTail = true
			result.TailBytes = stat.Size() - frameOffset
			break
		}
		if err != nil {
			return result, fmt.Errorf("read wal: %w", err)
		}

		m, err := command.DecodeMutation(payload)
		if err != nil {
			Logger.Warningf("skipping record at offset %d of %s: %v", frameOffset, path, err)
			result.Skipped++
			continue
		}
		fn(m)
		result.Applied++
	}

	result.ValidOffset = reader.Offset()
	return result, nil
}

// Repair truncates the WAL at path to offset, this drops a torn tail found by
// Replay so that new frames are not appended behind garbage.
func Repair(path string, offset int64) error {
	f, err := os.OpenFile(path, os.O_WRONLY, 0)
	if err != nil {
		return fmt.Errorf("open wal: %w", err)
	}
	defer f.Close()

	if err := f.Truncate(offset); err != nil {
		return fmt.Errorf("truncate wal: %w", err)
	}
	return f.Sync()
}
