package backup

import (
	"bytes"
	"errors"
	"fmt"
	"reflect"
	"testing"

	"github.com/ValentinKolb/walkv/lib/db"
	"github.com/ValentinKolb/walkv/lib/db/engines/ordered"
)

func newDB() db.KVDB {
	return ordered.NewOrderedDB(nil)
}

func filledDB() db.KVDB {
	database := newDB()
	for i := 0; i < 500; i++ {
		database.Put(fmt.Sprintf("key-%03d", i), fmt.Sprintf("value-%d\nwith a line break", i))
	}
	return database
}

func TestWriteRead(t *testing.T) {
	source := filledDB()

	for _, codec := range []Codec{CodecNone, CodecSnappy, CodecZstd, CodecLZ4} {
		t.Run(codec.String(), func(t *testing.T) {
			var buf bytes.Buffer
			written, err := Write(&buf, source, codec)
			if err != nil {
				t.Fatalf("Write failed: %v", err)
			}

			target := newDB()
			target.Put("stale", "entry")
			read, err := Read(bytes.NewReader(buf.Bytes()), target)
			if err != nil {
				t.Fatalf("Read failed: %v", err)
			}
			if read != written {
				t.Errorf("Header mismatch: wrote %+v, read %+v", written, read)
			}
			if !reflect.DeepEqual(source.Dump(), target.Dump()) {
				t.Errorf("Restored state differs from source")
			}

			h, n, err := Verify(bytes.NewReader(buf.Bytes()), newDB)
			if err != nil || n != 500 || h.Codec != codec {
				t.Errorf("Verify = %+v, %d, %v", h, n, err)
			}
		})
	}
}

func TestCompressionShrinks(t *testing.T) {
	source := filledDB()

	var plain, zstd bytes.Buffer
	if _, err := Write(&plain, source, CodecNone); err != nil {
		t.Fatal(err)
	}
	if _, err := Write(&zstd, source, CodecZstd); err != nil {
		t.Fatal(err)
	}
	if zstd.Len() >= plain.Len() {
		t.Errorf("Expected zstd backup (%d bytes) to be smaller than the plain one (%d bytes)", zstd.Len(), plain.Len())
	}
}

func TestReadRejectsDamagedBackups(t *testing.T) {
	var buf bytes.Buffer
	if _, err := Write(&buf, filledDB(), CodecSnappy); err != nil {
		t.Fatal(err)
	}
	valid := buf.Bytes()

	damage := map[string]func([]byte) []byte{
		"short":       func(b []byte) []byte { return b[:HeaderSize-1] },
		"magic":       func(b []byte) []byte { b[0] = 'X'; return b },
		"version":     func(b []byte) []byte { b[4] = 99; return b },
		"codec":       func(b []byte) []byte { b[5] = 42; return b },
		"checksum":    func(b []byte) []byte { b[6] ^= 0xff; return b },
		"raw size":    func(b []byte) []byte { b[HeaderSize-1] ^= 0x01; return b },
		"payload":     func(b []byte) []byte { b[len(b)-1] ^= 0xff; return b },
		"cut payload": func(b []byte) []byte { return b[:len(b)-10] },
	}

	for name, fn := range damage {
		data := fn(append([]byte(nil), valid...))

		target := newDB()
		target.Put("keep", "me")

		_, err := Read(bytes.NewReader(data), target)
		if !errors.Is(err, ErrInvalidBackup) {
			t.Errorf("%s: expected ErrInvalidBackup, got %v", name, err)
		}
		if v, ok := target.Get("keep"); !ok || v != "me" || target.Len() != 1 {
			t.Errorf("%s: a damaged backup modified the target", name)
		}
	}
}

func TestParseCodec(t *testing.T) {
	for _, codec := range []Codec{CodecNone, CodecSnappy, CodecZstd, CodecLZ4} {
		parsed, err := ParseCodec(codec.String())
		if err != nil || parsed != codec {
			t.Errorf("ParseCodec(%q) = %v, %v", codec.String(), parsed, err)
		}
	}
	if _, err := ParseCodec("gzip"); err == nil {
		t.Errorf("Expected an error for an unknown codec")
	}
}
