package store

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
	"github.com/pbaille/audit/internal/domain"
)

// lockRetry is how often a blocked append polls the lock file.
const lockRetry = 10 * time.Millisecond

// JSONFile keeps the log as a pretty-printed JSON array in a single file.
// Writes replace the file atomically: the new log is written to a temp file
// in the same directory, synced, then renamed over the old one. Appends
// hold an advisory lock on <path>.lock for the whole read-modify-write,
// so processes sharing the file never overwrite each other's records.
type JSONFile struct {
	path string
}

// NewJSONFile returns a backend for path, creating its directory.
func NewJSONFile(path string) (*JSONFile, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	return &JSONFile{path: path}, nil
}

func (j *JSONFile) Name() string { return "jsonfile" }

// Path returns the file the log is stored in.
func (j *JSONFile) Path() string { return j.path }

func (j *JSONFile) Load(ctx context.Context) ([]domain.Version, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	raw, err := os.ReadFile(j.path)
	if errors.Is(err, fs.ErrNotExist) {
		return []domain.Version{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", j.path, err)
	}

	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return []domain.Version{}, nil
	}

	var versions []domain.Version
	if err := json.Unmarshal(raw, &versions); err != nil {
		return nil, fmt.Errorf("decode %s: %w: %v", j.path, domain.ErrStorageCorrupt, err)
	}
	if versions == nil {
		// literal null
		return nil, fmt.Errorf("decode %s: %w: not an array", j.path, domain.ErrStorageCorrupt)
	}

	return versions, nil
}

func (j *JSONFile) Append(ctx context.Context, build BuildFunc) (domain.Version, int, error) {
	if err := ctx.Err(); err != nil {
		return domain.Version{}, 0, err
	}

	lock := flock.New(j.lockPath())
	if _, err := lock.TryLockContext(ctx, lockRetry); err != nil {
		return domain.Version{}, 0, fmt.Errorf("lock %s: %w", j.lockPath(), err)
	}
	defer lock.Unlock()

	current, err := j.Load(ctx)
	if err != nil {
		return domain.Version{}, 0, err
	}

	var last *domain.Version
	if n := len(current); n > 0 {
		last = &current[n-1]
	}
	v := build(last)

	next := make([]domain.Version, 0, len(current)+1)
	next = append(next, current...)
	next = append(next, v)

	data, err := json.MarshalIndent(next, "", "  ")
	if err != nil {
		return domain.Version{}, 0, fmt.Errorf("encode log: %w", err)
	}
	if err := writeFileAtomic(j.path, data); err != nil {
		return domain.Version{}, 0, err
	}

	return v, len(next), nil
}

func (j *JSONFile) lockPath() string { return j.path + ".lock" }

// Ping checks that the data directory is accessible.
func (j *JSONFile) Ping(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := os.Stat(filepath.Dir(j.path))
	return err
}

func (j *JSONFile) Close() error { return nil }

func writeFileAtomic(path string, data []byte) (err error) {
	dir := filepath.Dir(path)

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()

	defer func() {
		if err != nil {
			tmp.Close()
			os.Remove(tmpPath)
		}
	}()

	if _, err = tmp.Write(data); err != nil {
		return fmt.Errorf("write temp file: %w", err)
	}
	if err = tmp.Sync(); err != nil {
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err = os.Chmod(tmpPath, 0o644); err != nil {
		return fmt.Errorf("chmod temp file: %w", err)
	}
	if err = os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("rename temp file: %w", err)
	}

	syncDir(dir)
	return nil
}

// syncDir flushes the directory entry of a rename. Not every platform
// supports fsync on directories, so failures are ignored.
func syncDir(dir string) {
	d, err := os.Open(dir)
	if err != nil {
		return
	}
	d.Sync()
	d.Close()
}
