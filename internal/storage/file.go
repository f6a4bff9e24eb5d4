package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
)

const (
	dirMode  = 0o750
	fileMode = 0o600
)

// File keeps one <key>.json file per snapshot in a directory.
type File struct {
	dir string
	log *slog.Logger
}

// NewFile returns a file backend rooted at dir, creating it if needed.
func NewFile(dir string, opts ...Option) (*File, error) {
	if dir == "" {
		return nil, errors.New("storage directory is required")
	}
	if err := os.MkdirAll(dir, dirMode); err != nil {
		return nil, fmt.Errorf("creating storage directory: %w", err)
	}
	return &File{dir: dir, log: newOptions(opts).log}, nil
}

// Dir returns the directory holding the snapshot files.
func (f *File) Dir() string { return f.dir }

func (f *File) path(key string) string {
	return filepath.Join(f.dir, key+".json")
}

// Load implements Backend.
func (f *File) Load(_ context.Context, key string) ([]byte, error) {
	data, err := os.ReadFile(f.path(key)) //nolint:gosec // key is one of the fixed snapshot keys
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("reading snapshot %s: %w", key, err)
	}
	return data, nil
}

// SaveBatch implements Backend. All temp files are written and synced before
// the first rename, so a failure while writing leaves every snapshot intact.
// A failed rename leaves the keys renamed before it committed; they are
// logged at error level.
func (f *File) SaveBatch(ctx context.Context, snapshots map[string][]byte) error {
	keys := make([]string, 0, len(snapshots))
	for k := range snapshots {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	staged := make(map[string]string, len(keys))
	cleanup := func() {
		for _, tmp := range staged {
			_ = os.Remove(tmp)
		}
	}

	for _, key := range keys {
		if err := ctx.Err(); err != nil {
			cleanup()
			return err
		}
		tmp, err := writeTemp(f.dir, key, snapshots[key])
		if err != nil {
			cleanup()
			return fmt.Errorf("writing snapshot %s: %w", key, err)
		}
		staged[key] = tmp
	}

	committed := make([]string, 0, len(keys))
	for _, key := range keys {
		if err := os.Rename(staged[key], f.path(key)); err != nil {
			cleanup()
			if len(committed) > 0 {
				f.log.Error("snapshot batch partially committed",
					"dir", f.dir, "committed", committed, "failed", key, "err", err)
			}
			return fmt.Errorf("committing snapshot %s: %w", key, err)
		}
		delete(staged, key)
		committed = append(committed, key)
	}
	return syncDir(f.dir)
}

// Close implements Backend.
func (f *File) Close() error { return nil }

func writeTemp(dir, key string, data []byte) (string, error) {
	tmp, err := os.CreateTemp(dir, key+".json.tmp.*")
	if err != nil {
		return "", err
	}
	name := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(name)
		return "", err
	}
	if err := tmp.Chmod(fileMode); err != nil {
		_ = tmp.Close()
		_ = os.Remove(name)
		return "", err
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		_ = os.Remove(name)
		return "", err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(name)
		return "", err
	}
	return name, nil
}

func syncDir(dir string) error {
	d, err := os.Open(dir) //nolint:gosec // storage dir from trusted workspace
	if err != nil {
		return err
	}
	defer d.Close()
	// Directory fsync is unsupported on some platforms; the rename already happened.
	_ = d.Sync()
	return nil
}
