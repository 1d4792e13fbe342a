package storage

import (
	"errors"
	"io/fs"
	"os"
)

// DatabaseFiles returns the SQLite database path with its WAL and shared-memory companions.
// In-memory databases have no files.
func DatabaseFiles(dbPath string) []string {
	if dbPath == "" || dbPath == ":memory:" {
		return nil
	}
	return []string{dbPath, dbPath + "-wal", dbPath + "-shm"}
}

// DatabaseSize returns the bytes the database at dbPath occupies on disk. Companion files
// that do not exist count as zero.
func DatabaseSize(dbPath string) (int64, error) {
	var total int64
	for _, f := range DatabaseFiles(dbPath) {
		info, err := os.Stat(f)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return 0, err
		}
		total += info.Size()
	}
	return total, nil
}
