package watcher

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestIsSnapshotFile(t *testing.T) {
	tests := map[string]bool{
		"/ws/data/tasks.json":          true,
		"/ws/data/tasks.json.tmp.1234": false,
		"/ws/.lock":                    false,
		"/ws/opsdesk.db":               true,
		"/ws/opsdesk.db-wal":           true,
		"/ws/activity.jsonl":           true,
		"/ws/config.yml":               true,
		"/ws/data/.tasks.json.tmp.1":   false,
		"/ws/data/notes.txt":           false,
	}
	for name, want := range tests {
		if got := IsSnapshotFile(name); got != want {
			t.Errorf("IsSnapshotFile(%q) = %v, want %v", name, got, want)
		}
	}
}

func TestWatcherDebouncesSnapshotWrites(t *testing.T) {
	dir := t.TempDir()
	fired := make(chan struct{}, 10)
	w, err := New([]string{dir}, func() { fired <- struct{}{} })
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer w.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Run(ctx, nil)

	for _, name := range []string{"tasks.json", "comments.json", "notifications.json"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("[]"), 0o600); err != nil {
			t.Fatalf("WriteFile: %v", err)
		}
	}

	select {
	case <-fired:
	case <-time.After(2 * time.Second):
		t.Fatalf("callback not invoked")
	}
	select {
	case <-fired:
		t.Fatalf("burst of writes should coalesce into one callback")
	case <-time.After(3 * debounceDelay):
	}
}
