package snapshot

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/ValentinKolb/walkv/lib/db"
	"github.com/lni/dragonboat/v4/logger"
)

var Logger = logger.GetLogger("snapshot")

// Write atomically replaces the snapshot at path with the current state of
// database. The state is written to a temporary file in the same directory,
// flushed, and renamed over path, a crash leaves either the old or the new
// snapshot in place.
func Write(path string, database db.KVDB) (err error) {
	dir := filepath.Dir(path)

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp snapshot: %w", err)
	}
	tmpPath := tmp.Name()

	// remove the temp file on every error path
	defer func() {
		if err != nil {
			tmp.Close()
			os.Remove(tmpPath)
		}
	}()

	if err = database.Save(tmp); err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}
	if err = tmp.Sync(); err != nil {
		return fmt.Errorf("sync snapshot: %w", err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("close snapshot: %w", err)
	}
	if err = os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("rename snapshot: %w", err)
	}

	// persist the rename itself
	if d, dirErr := os.Open(dir); dirErr == nil {
		if syncErr := d.Sync(); syncErr != nil {
			Logger.Warningf("failed to sync directory %s: %v", dir, syncErr)
		}
		d.Close()
	}
	return nil
}

// Load replaces the state of database with the snapshot at path. It returns
// false without error if no snapshot exists. A snapshot that fails to decode
// yields an error wrapping db.ErrCorruptSnapshot and leaves database
// untouched.
func Load(path string, database db.KVDB) (bool, error) {
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	} else if err != nil {
		return false, fmt.Errorf("open snapshot: %w", err)
	}
	defer f.Close()

	if err := database.Load(f); err != nil {
		return false, fmt.Errorf("load snapshot %s: %w", path, err)
	}
	return true, nil
}

// CleanupTemp removes temporary files left behind by a Write that was
// interrupted by a crash.
func CleanupTemp(path string) {
	matches, err := filepath.Glob(path + ".tmp-*")
	if err != nil {
		return
	}
	for _, m := range matches {
		if err := os.Remove(m); err != nil {
			Logger.Warningf("failed to remove stale temp snapshot %s: %v", m, err)
		} else {
			Logger.Infof("removed stale temp snapshot %s", m)
		}
	}
}
