package backup

import (
	"bytes"
	"context"
	"testing"

	"github.com/ValentinKolb/walkv/lib/backup"
	"github.com/ValentinKolb/walkv/lib/store/wstore"
)

func fillDataDir(t *testing.T, dir string, n int) {
	t.Helper()
	opts := wstore.DefaultOptions(dir)
	opts.NoSync = true
	opts.MaxWALSize = 64 // compact a few times, the rest stays in the wal
	s, err := wstore.New(newDB, opts)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	for i := 0; i < n; i++ {
		if err := s.Put(context.Background(), string(rune('a'+i)), "value"); err != nil {
			t.Fatalf("Put failed: %v", err)
		}
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
}

func TestCreateRestore(t *testing.T) {
	src := t.TempDir()
	fillDataDir(t, src, 10)

	var buf bytes.Buffer
	header, entries, err := Create(src, &buf, backup.CodecSnappy)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if entries != 10 || header.Codec != backup.CodecSnappy {
		t.Errorf("Create() = %+v, %d", header, entries)
	}
	data := buf.Bytes()

	// restoring into an empty directory
	dst := t.TempDir()
	if n, err := Restore(dst, bytes.NewReader(data), false); err != nil || n != 10 {
		t.Fatalf("Restore() = %d, %v", n, err)
	}

	// the restored directory opens with the same state
	s, err := wstore.New(newDB, wstore.DefaultOptions(dst))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if s.Amount() != 10 {
		t.Errorf("restored store has %d entries, expected 10", s.Amount())
	}
	s.Close()

	// an existing state needs force
	other := t.TempDir()
	fillDataDir(t, other, 3)
	if _, err := Restore(other, bytes.NewReader(data), false); err == nil {
		t.Errorf("Expected Restore without force to refuse an existing state")
	}
	if _, err := Restore(other, bytes.NewReader(data), true); err != nil {
		t.Fatalf("Restore with force failed: %v", err)
	}
	s, err = wstore.New(newDB, wstore.DefaultOptions(other))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer s.Close()
	if s.Amount() != 10 {
		t.Errorf("force restored store has %d entries, expected 10", s.Amount())
	}
}

func TestRestoreRejectsDamagedBackup(t *testing.T) {
	src := t.TempDir()
	fillDataDir(t, src, 5)

	var buf bytes.Buffer
	if _, _, err := Create(src, &buf, backup.CodecNone); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	data := buf.Bytes()
	data[len(data)-1] ^= 0xff

	dst := t.TempDir()
	if _, err := Restore(dst, bytes.NewReader(data), true); err == nil {
		t.Errorf("Expected a damaged backup to be rejected")
	}
}
