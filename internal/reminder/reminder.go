// Package reminder runs the due-date reminder job on a cron schedule.
package reminder

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/twiced-technology-gmbh/opsdesk/internal/workflow"
)

// Runner hands the job a controller with the workspace locked.
type Runner interface {
	Locked(ctx context.Context, fn func(*workflow.Controller) error) error
}

// Scheduler wraps a cron instance running the reminder job.
type Scheduler struct {
	cron   *cron.Cron
	runner Runner
	now    func() time.Time
	log    *slog.Logger
	onRun  func(sent int, err error)
	parser cron.Parser
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithClock replaces time.Now as the reminder reference time.
func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) { s.now = now }
}

// WithLogger sets the logger for job and cron diagnostics.
func WithLogger(l *slog.Logger) Option {
	return func(s *Scheduler) { s.log = l }
}

// WithLocation evaluates schedules in loc instead of the local time zone.
func WithLocation(loc *time.Location) Option {
	return func(s *Scheduler) { s.cron = cron.New(s.cronOptions(loc)...) }
}

// OnRun registers a callback invoked after every scheduled run.
func OnRun(fn func(sent int, err error)) Option {
	return func(s *Scheduler) { s.onRun = fn }
}

// Parser accepts five-field specs, six-field specs with seconds and descriptors.
func Parser() cron.Parser {
	return cron.NewParser(cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
}

// New returns a stopped scheduler.
func New(runner Runner, opts ...Option) *Scheduler {
	s := &Scheduler{
		runner: runner,
		now:    time.Now,
		log:    slog.Default(),
		parser: Parser(),
	}
	s.cron = cron.New(s.cronOptions(time.Local)...)
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Scheduler) cronOptions(loc *time.Location) []cron.Option {
	return []cron.Option{
		cron.WithLocation(loc),
		cron.WithParser(s.parser),
		cron.WithLogger(cronLogger{s}),
		cron.WithChain(cron.SkipIfStillRunning(cronLogger{s})),
	}
}

// Schedule registers the reminder job under spec.
func (s *Scheduler) Schedule(spec string) (cron.EntryID, error) {
	id, err := s.cron.AddFunc(spec, s.job)
	if err != nil {
		return 0, fmt.Errorf("invalid reminder schedule %q: %w", spec, err)
	}
	return id, nil
}

// Next returns the next scheduled run, or the zero time when nothing is
// scheduled or the scheduler is stopped.
func (s *Scheduler) Next() time.Time {
	var next time.Time
	for _, e := range s.cron.Entries() {
		if !e.Next.IsZero() && (next.IsZero() || e.Next.Before(next)) {
			next = e.Next
		}
	}
	return next
}

// RunOnce sends the reminders due now and returns how many were sent.
func (s *Scheduler) RunOnce(ctx context.Context) (int, error) {
	var sent int
	err := s.runner.Locked(ctx, func(c *workflow.Controller) error {
		var err error
		sent, err = c.SendDueReminders(ctx, s.now())
		return err
	})
	return sent, err
}

// Run starts the scheduler and blocks until ctx is done. Running jobs finish
// before Run returns.
func (s *Scheduler) Run(ctx context.Context) {
	s.cron.Start()
	<-ctx.Done()
	<-s.cron.Stop().Done()
}

func (s *Scheduler) job() {
	sent, err := s.RunOnce(context.Background())
	if err != nil {
		s.log.Error("reminder run failed", "err", err)
	} else {
		s.log.Debug("reminder run finished", "sent", sent)
	}
	if s.onRun != nil {
		s.onRun(sent, err)
	}
}

// cronLogger routes cron's own diagnostics to slog.
type cronLogger struct{ s *Scheduler }

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.s.log.Debug("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.s.log.Error("cron: "+msg, append(keysAndValues, "err", err)...)
}
