package backup

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/ValentinKolb/walkv/lib/db"
	"github.com/golang/snappy"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
	"github.com/zeebo/xxh3"
)

// --------------------------------------------------------------------------
// Format
// --------------------------------------------------------------------------

// A backup file is a compressed snapshot with a small header:
//
//	[magic "WKVB"][u8 version][u8 codec][u64 xxh3 of raw][u32 raw length][compressed snapshot]
const (
	Magic      = "WKVB"
	Version    = 1
	HeaderSize = len(Magic) + 1 + 1 + 8 + 4
)

var ErrInvalidBackup = errors.New("invalid backup")

// Codec selects the compression of the snapshot payload
type Codec uint8

const (
	CodecNone Codec = iota
	CodecSnappy
	CodecZstd
	CodecLZ4
)

func (c Codec) String() string {
	switch c {
	case CodecNone:
		return "none"
	case CodecSnappy:
		return "snappy"
	case CodecZstd:
		return "zstd"
	case CodecLZ4:
		return "lz4"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(c))
	}
}

// ParseCodec parses the name of a codec as printed by Codec.String
func ParseCodec(name string) (Codec, error) {
	switch strings.ToLower(name) {
	case "none", "":
		return CodecNone, nil
	case "snappy":
		return CodecSnappy, nil
	case "zstd":
		return CodecZstd, nil
	case "lz4":
		return CodecLZ4, nil
	default:
		return 0, fmt.Errorf("unknown codec %q, must be one of none, snappy, zstd, lz4", name)
	}
}

// Header is the decoded header of a backup
type Header struct {
	Version  uint8
	Codec    Codec
	Checksum uint64
	RawSize  uint32
}

// --------------------------------------------------------------------------
// Create / Read
// --------------------------------------------------------------------------

// Write writes a backup of database to w and returns its header
func Write(w io.Writer, database db.KVDB, codec Codec) (Header, error) {
	var raw bytes.Buffer
	if err := database.Save(&raw); err != nil {
		return Header{}, fmt.Errorf("save snapshot: %w", err)
	}

	payload, err := compress(codec, raw.Bytes())
	if err != nil {
		return Header{}, err
	}

	h := Header{
		Version:  Version,
		Codec:    codec,
		Checksum: xxh3.Hash(raw.Bytes()),
		RawSize:  uint32(raw.Len()),
	}

	buf := make([]byte, 0, HeaderSize+len(payload))
	buf = append(buf, Magic...)
	buf = append(buf, h.Version, byte(h.Codec))
	buf = binary.BigEndian.AppendUint64(buf, h.Checksum)
	buf = binary.BigEndian.AppendUint32(buf, h.RawSize)
	buf = append(buf, payload...)

	if _, err := w.Write(buf); err != nil {
		return Header{}, fmt.Errorf("write backup: %w", err)
	}
	return h, nil
}

// Read verifies the backup in r and loads it into database. The database is
// only modified if the whole backup is valid.
func Read(r io.Reader, database db.KVDB) (Header, error) {
	h, raw, err := decode(r)
	if err != nil {
		return h, err
	}
	if err := database.Load(bytes.NewReader(raw)); err != nil {
		return h, fmt.Errorf("%w: %v", ErrInvalidBackup, err)
	}
	return h, nil
}

// Verify checks header, checksum and snapshot encoding of the backup in r
// without keeping the data.
func Verify(r io.Reader, factory func() db.KVDB) (Header, int, error) {
	database := factory()
	defer database.Close()

	h, err := Read(r, database)
	if err != nil {
		return h, 0, err
	}
	return h, database.Len(), nil
}

func decode(r io.Reader) (Header, []byte, error) {
	var h Header

	data, err := io.ReadAll(r)
	if err != nil {
		return h, nil, fmt.Errorf("read backup: %w", err)
	}
	if len(data) < HeaderSize {
		return h, nil, fmt.Errorf("%w: %d bytes is shorter than the header", ErrInvalidBackup, len(data))
	}
	if string(data[:len(Magic)]) != Magic {
		return h, nil, fmt.Errorf("%w: bad magic %q", ErrInvalidBackup, data[:len(Magic)])
	}

	pos := len(Magic)
	h.Version = data[pos]
	h.Codec = Codec(data[pos+1])
	h.Checksum = binary.BigEndian.Uint64(data[pos+2:])
	h.RawSize = binary.BigEndian.Uint32(data[pos+10:])

	if h.Version != Version {
		return h, nil, fmt.Errorf("%w: unsupported version %d", ErrInvalidBackup, h.Version)
	}

	raw, err := decompress(h.Codec, data[HeaderSize:], int(h.RawSize))
	if err != nil {
		return h, nil, fmt.Errorf("%w: %v", ErrInvalidBackup, err)
	}
	if len(raw) != int(h.RawSize) {
		return h, nil, fmt.Errorf("%w: size mismatch, header says %d, got %d", ErrInvalidBackup, h.RawSize, len(raw))
	}
	if sum := xxh3.Hash(raw); sum != h.Checksum {
		return h, nil, fmt.Errorf("%w: checksum mismatch (%016x != %016x)", ErrInvalidBackup, sum, h.Checksum)
	}
	return h, raw, nil
}

// --------------------------------------------------------------------------
// Compression
// --------------------------------------------------------------------------

func compress(codec Codec, data []byte) ([]byte, error) {
	switch codec {
	case CodecNone:
		return data, nil

	case CodecSnappy:
		return snappy.Encode(nil, data), nil

	case CodecZstd:
		encoder, err := zstd.NewWriter(nil)
		if err != nil {
			return nil, fmt.Errorf("zstd encoder: %w", err)
		}
		defer encoder.Close()
		return encoder.EncodeAll(data, nil), nil

	case CodecLZ4:
		var buf bytes.Buffer
		w := lz4.NewWriter(&buf)
		if _, err := w.Write(data); err != nil {
			return nil, fmt.Errorf("lz4 write: %w", err)
		}
		if err := w.Close(); err != nil {
			return nil, fmt.Errorf("lz4 close: %w", err)
		}
		return buf.Bytes(), nil

	default:
		return nil, fmt.Errorf("unsupported codec: %s", codec)
	}
}

func decompress(codec Codec, data []byte, sizeHint int) ([]byte, error) {
	switch codec {
	case CodecNone:
		return data, nil

	case CodecSnappy:
		return snappy.Decode(nil, data)

	case CodecZstd:
		decoder, err := zstd.NewReader(nil)
		if err != nil {
			return nil, fmt.Errorf("zstd decoder: %w", err)
		}
		defer decoder.Close()
		return decoder.DecodeAll(data, make([]byte, 0, sizeHint))

	case CodecLZ4:
		r := lz4.NewReader(bytes.NewReader(data))
		out := bytes.NewBuffer(make([]byte, 0, sizeHint))
		if _, err := io.Copy(out, r); err != nil {
			return nil, fmt.Errorf("lz4 read: %w", err)
		}
		return out.Bytes(), nil

	default:
		return nil, fmt.Errorf("unsupported codec: %s", codec)
	}
}
