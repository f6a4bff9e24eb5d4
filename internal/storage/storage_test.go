package storage

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func bufferLogger(buf *bytes.Buffer) *slog.Logger {
	return slog.New(slog.NewTextHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

type row struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

func TestFileBackend_BatchRoundTrip(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "data")
	b, err := NewFile(dir)
	if err != nil {
		t.Fatalf("NewFile: %v", err)
	}

	batch := NewBatch()
	if err := batch.Put(KeyTasks, []row{{ID: "1", Name: "first"}}); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := batch.Put(KeyComments, []row{}); err != nil {
		t.Fatalf("Put: %v", err)
	}
	// Later put for the same key wins.
	if err := batch.Put(KeyTasks, []row{{ID: "1", Name: "first"}, {ID: "2", Name: "second"}}); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if got := batch.Keys(); strings.Join(got, ",") != "comments,tasks" {
		t.Fatalf("Keys = %v", got)
	}

	if err := batch.Commit(context.Background(), b); err != nil {
		t.Fatalf("Commit: %v", err)
	}
	if batch.Len() != 0 {
		t.Fatalf("batch should be empty after commit")
	}

	var rows []row
	if err := LoadJSON(context.Background(), b, KeyTasks, &rows); err != nil {
		t.Fatalf("LoadJSON: %v", err)
	}
	if len(rows) != 2 || rows[1].Name != "second" {
		t.Fatalf("rows = %+v", rows)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	for _, e := range entries {
		if strings.Contains(e.Name(), ".tmp.") {
			t.Fatalf("temp file left behind: %s", e.Name())
		}
	}
}

func TestLoadJSON_MissingKeyIsEmpty(t *testing.T) {
	b := NewMemory()
	rows := []row{{ID: "keep"}}
	if err := LoadJSON(context.Background(), b, KeyNotifications, &rows); err != nil {
		t.Fatalf("LoadJSON: %v", err)
	}
	if len(rows) != 1 || rows[0].ID != "keep" {
		t.Fatalf("missing snapshot must leave destination untouched, got %+v", rows)
	}
}

func TestBatch_CommitFailureKeepsPending(t *testing.T) {
	b := NewMemory()
	b.FailSave = errors.New("disk full")

	batch := NewBatch()
	if err := batch.Put(KeyStats, []row{{ID: "u1"}}); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := batch.Commit(context.Background(), b); err == nil {
		t.Fatalf("expected commit error")
	}
	if batch.Len() != 1 {
		t.Fatalf("pending snapshot dropped after failed commit")
	}
	if _, err := b.Load(context.Background(), KeyStats); !errors.Is(err, ErrNotFound) {
		t.Fatalf("failed commit must not write, got %v", err)
	}

	if err := batch.Commit(context.Background(), b); err != nil {
		t.Fatalf("retry Commit: %v", err)
	}
	if b.Saves() != 1 {
		t.Fatalf("Saves = %d, want 1", b.Saves())
	}
}

func TestSQLiteBackend_Upsert(t *testing.T) {
	path := filepath.Join(t.TempDir(), "db", "opsdesk.db")
	b, err := NewSQLite(path)
	if err != nil {
		t.Fatalf("NewSQLite: %v", err)
	}
	defer b.Close()

	ctx := context.Background()
	if _, err := b.Load(ctx, KeyTasks); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Load on empty db = %v, want ErrNotFound", err)
	}
	if err := b.SaveBatch(ctx, map[string][]byte{KeyTasks: []byte(`[{"id":"a"}]`)}); err != nil {
		t.Fatalf("SaveBatch: %v", err)
	}
	if err := b.SaveBatch(ctx, map[string][]byte{KeyTasks: []byte(`[{"id":"b"}]`)}); err != nil {
		t.Fatalf("SaveBatch (update): %v", err)
	}

	var rows []row
	if err := LoadJSON(ctx, b, KeyTasks, &rows); err != nil {
		t.Fatalf("LoadJSON: %v", err)
	}
	if len(rows) != 1 || rows[0].ID != "b" {
		t.Fatalf("rows = %+v, want single row b", rows)
	}
}

func TestOpen_UnknownKind(t *testing.T) {
	if _, err := Open("postgres", t.TempDir()); err == nil {
		t.Fatalf("expected error for unknown backend kind")
	}
}

func TestFileBackend_LogsPartialCommit(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "data")
	var buf bytes.Buffer
	b, err := NewFile(dir, WithLogger(bufferLogger(&buf)))
	if err != nil {
		t.Fatalf("NewFile: %v", err)
	}
	// A non-empty directory where tasks.json belongs makes its rename fail
	// after comments.json has already been renamed.
	blocker := filepath.Join(dir, KeyTasks+".json")
	if err := os.MkdirAll(filepath.Join(blocker, "keep"), 0o750); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}

	err = b.SaveBatch(context.Background(), map[string][]byte{
		KeyComments: []byte(`[{"id":"c1"}]`),
		KeyTasks:    []byte(`[{"id":"t1"}]`),
	})
	if err == nil {
		t.Fatalf("SaveBatch succeeded over a directory")
	}
	out := buf.String()
	if !strings.Contains(out, "snapshot batch partially committed") ||
		!strings.Contains(out, KeyComments) || !strings.Contains(out, "failed="+KeyTasks) {
		t.Fatalf("log = %q", out)
	}
	if data, err := os.ReadFile(filepath.Join(dir, KeyComments+".json")); err != nil || string(data) != `[{"id":"c1"}]` {
		t.Fatalf("comments.json = %q, %v", data, err)
	}
}

func TestGormLoggerRoutesToSlog(t *testing.T) {
	ctx := context.Background()
	sql := func() (string, int64) { return "SELECT 1", 1 }
	tests := []struct {
		name  string
		level logger.LogLevel
		begin time.Time
		err   error
		want  string
	}{
		{"query error", logger.Warn, time.Now(), errors.New("disk I/O error"), "sqlite query failed"},
		{"record not found", logger.Warn, time.Now(), gorm.ErrRecordNotFound, ""},
		{"slow query", logger.Warn, time.Now().Add(-2 * time.Second), nil, "slow sqlite query"},
		{"fast query at warn", logger.Warn, time.Now(), nil, ""},
		{"fast query at info", logger.Info, time.Now(), nil, "sqlite query"},
		{"silent", logger.Silent, time.Now(), errors.New("disk I/O error"), ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			l := gormLogger{log: bufferLogger(&buf), slow: time.Second}.LogMode(tt.level)
			l.Trace(ctx, tt.begin, sql, tt.err)
			out := buf.String()
			if tt.want == "" {
				if out != "" {
					t.Fatalf("unexpected log: %q", out)
				}
				return
			}
			if !strings.Contains(out, tt.want) || !strings.Contains(out, "component=sqlite") {
				t.Fatalf("log = %q, want %q", out, tt.want)
			}
		})
	}
}
