// Package watcher provides debounced file system watching for workspace
// snapshot directories.
package watcher

import (
	"context"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// debounceDelay is the time to wait after the last file event before triggering
// a callback. This coalesces the several renames of one snapshot commit into a
// single notification.
const debounceDelay = 100 * time.Millisecond

// Watcher watches workspace directories for changes and invokes a callback
// with debouncing.
type Watcher struct {
	fsw      *fsnotify.Watcher
	mu       sync.Mutex
	timer    *time.Timer
	callback func()
	match    func(name string) bool
	delay    time.Duration
}

// New creates a Watcher that monitors the given paths for changes.
// The callback is invoked (debounced) whenever a snapshot file changes.
func New(paths []string, callback func()) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	for _, p := range paths {
		if err := fsw.Add(p); err != nil {
			_ = fsw.Close()
			return nil, err
		}
	}

	return &Watcher{
		fsw:      fsw,
		callback: callback,
		match:    IsSnapshotFile,
		delay:    debounceDelay,
	}, nil
}

// IsSnapshotFile reports whether name is a committed snapshot: a .json file or
// the sqlite database, but not a temp file or the lock.
func IsSnapshotFile(name string) bool {
	base := filepath.Base(name)
	if strings.HasPrefix(base, ".") || strings.Contains(base, ".tmp.") {
		return false
	}
	switch filepath.Ext(base) {
	case ".json", ".db", ".jsonl", ".yml":
		return true
	}
	return strings.HasSuffix(base, ".db-wal")
}

// Run starts the watch loop. It blocks until the context is canceled.
// Errors from the underlying watcher are passed to the optional errFn callback.
func (w *Watcher) Run(ctx context.Context, errFn func(error)) {
	for {
		select {
		case <-ctx.Done():
			w.mu.Lock()
			if w.timer != nil {
				w.timer.Stop()
			}
			w.mu.Unlock()
			return
		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			if !w.match(event.Name) {
				continue
			}
			w.debounce()
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			if errFn != nil {
				errFn(err)
			}
		}
	}
}

// Close stops the underlying filesystem watcher.
func (w *Watcher) Close() error {
	return w.fsw.Close()
}

func (w *Watcher) debounce() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.delay, w.callback)
}
