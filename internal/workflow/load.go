package workflow

import (
	"context"
	"log/slog"
	"time"

	"github.com/twiced-technology-gmbh/opsdesk/internal/comment"
	"github.com/twiced-technology-gmbh/opsdesk/internal/employee"
	"github.com/twiced-technology-gmbh/opsdesk/internal/gamify"
	"github.com/twiced-technology-gmbh/opsdesk/internal/notify"
	"github.com/twiced-technology-gmbh/opsdesk/internal/storage"
	"github.com/twiced-technology-gmbh/opsdesk/internal/task"
)

// Settings are the config-derived knobs of a loaded controller.
type Settings struct {
	Policy           gamify.Policy
	MaxNotifications int
	StrictDragDrop   bool
	DueSoon          time.Duration
	Activity         ActivityRecorder
	Logger           *slog.Logger
	Now              func() time.Time
}

// Load reads every snapshot from backend and wires a controller whose stores
// stage their writes in one shared batch. Missing snapshots load as empty.
func Load(ctx context.Context, backend storage.Backend, s Settings) (*Controller, error) {
	var (
		tasks     []task.Task
		employees []employee.Employee
		notes     []notify.Notification
		stats     []gamify.Stats
		comments  []comment.Comment
	)
	snapshots := []struct {
		key string
		v   any
	}{
		{storage.KeyTasks, &tasks},
		{storage.KeyEmployees, &employees},
		{storage.KeyNotifications, &notes},
		{storage.KeyStats, &stats},
		{storage.KeyComments, &comments},
	}
	for _, snap := range snapshots {
		if err := storage.LoadJSON(ctx, backend, snap.key, snap.v); err != nil {
			return nil, err
		}
	}

	if s.Now == nil {
		s.Now = time.Now
	}
	if s.Policy.LevelThreshold == 0 {
		s.Policy = gamify.DefaultPolicy()
	}
	batch := storage.NewBatch()
	return New(Options{
		Tasks:          task.NewStore(tasks, batch, task.WithClock(s.Now)),
		Directory:      employee.NewDirectory(employees, batch),
		Notifications:  notify.NewEmitter(notes, batch, notify.WithClock(s.Now), notify.WithMaxEntries(s.MaxNotifications)),
		Scorer:         gamify.NewScorer(stats, s.Policy, batch, s.Now),
		Comments:       comment.NewStore(comments, batch, comment.WithClock(s.Now)),
		Batch:          batch,
		Backend:        backend,
		Activity:       s.Activity,
		Logger:         s.Logger,
		Now:            s.Now,
		StrictDragDrop: s.StrictDragDrop,
		DueSoon:        s.DueSoon,
	}), nil
}
