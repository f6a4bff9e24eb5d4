// Package storage persists keyed JSON snapshots of the workflow collections.
// Every write replaces a whole collection; there is no incremental format.
package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
)

// Snapshot keys, one per logical store.
const (
	KeyTasks         = "tasks"
	KeyEmployees     = "employees"
	KeyNotifications = "notifications"
	KeyStats         = "gamification-stats"
	KeyComments      = "comments"
)

// Backend kinds accepted by Open.
const (
	KindFile   = "file"
	KindSQLite = "sqlite"
	KindMemory = "memory"
)

// ErrNotFound is returned by Backend.Load when no snapshot exists for a key.
var ErrNotFound = errors.New("snapshot not found")

// Backend stores raw snapshot bytes by key.
type Backend interface {
	Load(ctx context.Context, key string) ([]byte, error)
	// SaveBatch writes all snapshots together. Implementations apply the
	// whole batch or, as far as the medium allows, none of it.
	SaveBatch(ctx context.Context, snapshots map[string][]byte) error
	Close() error
}

// Sink receives full-collection snapshots from the stores after each mutation.
type Sink interface {
	Put(key string, v any) error
}

// Option configures a file or sqlite backend.
type Option func(*options)

type options struct {
	log *slog.Logger
}

// WithLogger sets the logger for backend diagnostics.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.log = l }
}

func newOptions(opts []Option) options {
	o := options{log: slog.Default()}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// Open returns a backend of the given kind rooted at path.
func Open(kind, path string, opts ...Option) (Backend, error) {
	switch kind {
	case KindFile, "":
		return NewFile(path, opts...)
	case KindSQLite:
		return NewSQLite(path, opts...)
	case KindMemory:
		return NewMemory(), nil
	default:
		return nil, fmt.Errorf("unknown storage backend %q", kind)
	}
}

// LoadJSON decodes the snapshot stored under key into v. A missing snapshot
// leaves v untouched and is not an error.
func LoadJSON(ctx context.Context, b Backend, key string, v any) error {
	data, err := b.Load(ctx, key)
	if errors.Is(err, ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("loading %s: %w", key, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decoding %s: %w", key, err)
	}
	return nil
}

// Batch stages snapshots in memory until Commit. Later puts for the same key
// replace earlier ones, so a multi-step operation writes each key once.
type Batch struct {
	mu      sync.Mutex
	pending map[string][]byte
}

// NewBatch returns an empty staging batch.
func NewBatch() *Batch {
	return &Batch{pending: make(map[string][]byte)}
}

// Put implements Sink.
func (b *Batch) Put(key string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding %s: %w", key, err)
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.pending[key] = data
	return nil
}

// Keys returns the staged keys in sorted order.
func (b *Batch) Keys() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	keys := make([]string, 0, len(b.pending))
	for k := range b.pending {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Len returns the number of staged keys.
func (b *Batch) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.pending)
}

// Commit writes every staged snapshot to the backend and clears the batch.
// On failure the batch keeps its contents so the caller can decide to retry
// or discard.
func (b *Batch) Commit(ctx context.Context, backend Backend) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.pending) == 0 {
		return nil
	}
	if err := backend.SaveBatch(ctx, b.pending); err != nil {
		return err
	}
	b.pending = make(map[string][]byte)
	return nil
}

// Discard drops every staged snapshot.
func (b *Batch) Discard() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.pending = make(map[string][]byte)
}

// Direct is a Sink that writes each snapshot through to a backend immediately.
type Direct struct {
	Backend Backend
}

// Put implements Sink.
func (d Direct) Put(key string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding %s: %w", key, err)
	}
	return d.Backend.SaveBatch(context.Background(), map[string][]byte{key: data})
}

// Discard is a Sink that drops everything. Useful for read-only sessions.
type Discard struct{}

// Put implements Sink.
func (Discard) Put(string, any) error { return nil }
