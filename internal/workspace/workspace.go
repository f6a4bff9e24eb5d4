// Package workspace ties a workspace directory to a workflow controller. Every
// mutating operation runs under the workspace lock against freshly loaded
// snapshots, so concurrent CLI invocations and the TUI serialize cleanly.
package workspace

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/twiced-technology-gmbh/opsdesk/internal/board"
	"github.com/twiced-technology-gmbh/opsdesk/internal/clierr"
	"github.com/twiced-technology-gmbh/opsdesk/internal/config"
	"github.com/twiced-technology-gmbh/opsdesk/internal/employee"
	"github.com/twiced-technology-gmbh/opsdesk/internal/filelock"
	"github.com/twiced-technology-gmbh/opsdesk/internal/storage"
	"github.com/twiced-technology-gmbh/opsdesk/internal/workflow"
)

const (
	// LockFileName is the advisory lock inside the workspace directory.
	LockFileName = ".lock"
	// EnvUser names the acting user when --as is not given.
	EnvUser = "OPSDESK_USER"
)

// Workspace is an opened workspace directory.
type Workspace struct {
	cfg      *config.Config
	backend  storage.Backend
	activity *board.ActivityLog
	log      *slog.Logger
	now      func() time.Time
}

// Option configures a Workspace.
type Option func(*Workspace)

// WithClock replaces time.Now for every store.
func WithClock(now func() time.Time) Option {
	return func(w *Workspace) { w.now = now }
}

// WithLogger sets the logger handed to the controller.
func WithLogger(l *slog.Logger) Option {
	return func(w *Workspace) { w.log = l }
}

// WithBackend overrides the configured snapshot backend.
func WithBackend(b storage.Backend) Option {
	return func(w *Workspace) { w.backend = b }
}

// Open loads the config in dir, applies its .env file and opens the
// configured snapshot backend.
func Open(dir string, opts ...Option) (*Workspace, error) {
	cfg, err := config.Load(dir)
	if err != nil {
		return nil, err
	}
	if err := loadEnv(cfg.EnvPath()); err != nil {
		return nil, err
	}

	w := &Workspace{
		cfg:      cfg,
		activity: board.NewActivityLog(cfg.Dir(), cfg.Activity.MaxEntries),
		log:      slog.Default(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.backend == nil {
		w.backend, err = storage.Open(cfg.Storage.Backend, cfg.StoragePath(), storage.WithLogger(w.log))
		if err != nil {
			return nil, fmt.Errorf("opening %s storage: %w", cfg.Storage.Backend, err)
		}
	}
	return w, nil
}

// Init creates a workspace in dir and opens it.
func Init(dir, name string, opts ...Option) (*Workspace, error) {
	if _, err := config.Init(dir, name); err != nil {
		return nil, err
	}
	return Open(dir, opts...)
}

// loadEnv applies the workspace .env file. Variables already set in the
// process environment win.
func loadEnv(path string) error {
	err := godotenv.Load(path)
	if err == nil || errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return fmt.Errorf("loading %s: %w", path, err)
}

// Config returns the workspace config.
func (w *Workspace) Config() *config.Config { return w.cfg }

// Dir returns the workspace directory.
func (w *Workspace) Dir() string { return w.cfg.Dir() }

// Activity returns the activity log.
func (w *Workspace) Activity() *board.ActivityLog { return w.activity }

// Close releases the snapshot backend.
func (w *Workspace) Close() error { return w.backend.Close() }

// WatchPaths returns the directories whose changes mean the snapshots moved.
func (w *Workspace) WatchPaths() []string {
	paths := []string{w.cfg.Dir()}
	if f, ok := w.backend.(*storage.File); ok && f.Dir() != w.cfg.Dir() {
		paths = append(paths, f.Dir())
	}
	return paths
}

// CurrentUser returns the acting user id: the flag value when set, else
// OPSDESK_USER.
func CurrentUser(flag string) string {
	if flag = strings.TrimSpace(flag); flag != "" {
		return flag
	}
	return strings.TrimSpace(os.Getenv(EnvUser))
}

// Do runs fn as userID with the workspace locked. The snapshots are loaded
// after the lock is acquired; the controller commits before fn returns.
func (w *Workspace) Do(ctx context.Context, userID string, fn func(*workflow.Controller, employee.Employee) error) error {
	unlock, err := filelock.Lock(ctx, filepath.Join(w.cfg.Dir(), LockFileName))
	if err != nil {
		return fmt.Errorf("locking workspace: %w", err)
	}
	defer func() {
		if err := unlock(); err != nil {
			w.log.Warn("releasing workspace lock", "err", err)
		}
	}()
	return w.run(ctx, userID, fn)
}

// View runs fn as userID against a snapshot of the workspace without taking
// the lock. fn must not mutate.
func (w *Workspace) View(ctx context.Context, userID string, fn func(*workflow.Controller, employee.Employee) error) error {
	return w.run(ctx, userID, fn)
}

// Controller loads a controller without a user or a lock. It serves
// background jobs that bring their own locking.
func (w *Workspace) Controller(ctx context.Context) (*workflow.Controller, error) {
	return workflow.Load(ctx, w.backend, workflow.Settings{
		Policy:           w.cfg.ScoringPolicy(),
		MaxNotifications: w.cfg.Notifications.MaxEntries,
		StrictDragDrop:   w.cfg.Workflow.StrictDragDrop,
		DueSoon:          w.cfg.DueSoonDuration(),
		Activity:         w.activity,
		Logger:           w.log,
		Now:              w.now,
	})
}

// Locked runs fn with the workspace lock held and a freshly loaded controller.
func (w *Workspace) Locked(ctx context.Context, fn func(*workflow.Controller) error) error {
	unlock, err := filelock.Lock(ctx, filepath.Join(w.cfg.Dir(), LockFileName))
	if err != nil {
		return fmt.Errorf("locking workspace: %w", err)
	}
	defer func() { _ = unlock() }()
	c, err := w.Controller(ctx)
	if err != nil {
		return err
	}
	return fn(c)
}

func (w *Workspace) run(ctx context.Context, userID string, fn func(*workflow.Controller, employee.Employee) error) error {
	if userID == "" {
		return clierr.Newf(clierr.UnknownUser, "no current user (use --as or set %s)", EnvUser)
	}
	c, err := w.Controller(ctx)
	if err != nil {
		return err
	}
	user, err := c.User(userID)
	if err != nil {
		return err
	}
	return fn(c, user)
}

// Bootstrap adds the first administrator to an empty directory.
func (w *Workspace) Bootstrap(ctx context.Context, admin employee.Employee) (employee.Employee, error) {
	var added employee.Employee
	err := w.Locked(ctx, func(c *workflow.Controller) error {
		if len(c.Directory().List()) > 0 {
			return clierr.New(clierr.ValidationError, "the employee directory is already populated")
		}
		admin.Role = employee.RoleAdmin
		// Nobody exists yet to act, so a synthetic admin performs the insert.
		var err error
		added, err = c.AddEmployee(ctx, employee.Employee{ID: "bootstrap", Role: employee.RoleAdmin}, admin)
		return err
	})
	return added, err
}
