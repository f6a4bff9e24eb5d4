package task

import (
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/twiced-technology-gmbh/opsdesk/internal/storage"
)

// Store owns the canonical task list. Every successful mutation writes the
// whole list to the sink under storage.KeyTasks. Store is not safe for
// concurrent use; the workflow controller serializes access.
type Store struct {
	tasks []Task
	sink  storage.Sink
	now   func() time.Time
	newID func() string
}

// Option configures a Store.
type Option func(*Store)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithIDGenerator replaces the uuid generator.
func WithIDGenerator(gen func() string) Option {
	return func(s *Store) { s.newID = gen }
}

// NewStore returns a store seeded with a loaded snapshot.
func NewStore(tasks []Task, sink storage.Sink, opts ...Option) *Store {
	if sink == nil {
		sink = storage.Discard{}
	}
	s := &Store{
		sink:  sink,
		now:   time.Now,
		newID: uuid.NewString,
	}
	for _, t := range tasks {
		s.tasks = append(s.tasks, t.Clone())
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create inserts a new task with status todo unless the input sets one.
func (s *Store) Create(in Input) (Task, error) {
	if err := ValidateInput(in); err != nil {
		return Task{}, err
	}
	now := s.now()
	t := Task{
		ID:          s.newID(),
		Title:       in.Title,
		Description: in.Description,
		Status:      in.Status,
		Priority:    in.Priority,
		AssignedTo:  in.AssignedTo,
		CreatedBy:   in.CreatedBy,
		DueDate:     in.DueDate,
		StartDate:   in.StartDate,
		Attachments: slices.Clone(in.Attachments),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if t.Status == "" {
		t.Status = StatusTodo
	}
	if t.Priority == "" {
		t.Priority = DefaultPriority
	}
	if t.Status != StatusTodo {
		updateTimestamps(&t, StatusTodo, t.Status, now)
	}
	t = t.Clone()

	s.tasks = append(s.tasks, t)
	if err := s.persist(); err != nil {
		s.tasks = s.tasks[:len(s.tasks)-1]
		return Task{}, err
	}
	return t.Clone(), nil
}

// Get returns the task with the given id.
func (s *Store) Get(id string) (Task, error) {
	i := s.index(id)
	if i < 0 {
		return Task{}, ErrNotFound(id)
	}
	return s.tasks[i].Clone(), nil
}

// Resolve finds a task by exact id or unique id prefix.
func (s *Store) Resolve(ref string) (Task, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return Task{}, ErrNotFound(ref)
	}
	if i := s.index(ref); i >= 0 {
		return s.tasks[i].Clone(), nil
	}
	var matches []string
	var found Task
	for _, t := range s.tasks {
		if strings.HasPrefix(t.ID, ref) {
			matches = append(matches, t.ID)
			found = t
		}
	}
	switch len(matches) {
	case 0:
		return Task{}, ErrNotFound(ref)
	case 1:
		return found.Clone(), nil
	default:
		return Task{}, ErrAmbiguous(ref, matches)
	}
}

// List returns a copy of every task in insertion order.
func (s *Store) List() []Task {
	out := make([]Task, len(s.tasks))
	for i, t := range s.tasks {
		out[i] = t.Clone()
	}
	return out
}

// Len returns the number of tasks.
func (s *Store) Len() int { return len(s.tasks) }

// Update merges p into the task and stamps updated_at.
func (s *Store) Update(id string, p Patch) (Task, error) {
	i := s.index(id)
	if i < 0 {
		return Task{}, ErrNotFound(id)
	}
	if err := ValidatePatch(p); err != nil {
		return Task{}, err
	}
	old := s.tasks[i]
	if p.IfUpdatedAt != nil && !p.IfUpdatedAt.Equal(old.UpdatedAt) {
		return Task{}, ErrConflict(id, *p.IfUpdatedAt, old.UpdatedAt)
	}

	t := old.Clone()
	applyPatch(&t, p)
	t.UpdatedAt = s.stamp(old)
	return s.replace(i, t)
}

// SetStatus moves a task along the guarded state machine and records the
// transition. It does not check permissions.
func (s *Store) SetStatus(id string, to Status, by string) (Task, error) {
	i := s.index(id)
	if i < 0 {
		return Task{}, ErrNotFound(id)
	}
	if err := ValidateStatus(to); err != nil {
		return Task{}, err
	}
	from := s.tasks[i].Status
	action, ok := ActionFor(from, to)
	if !ok {
		return Task{}, ErrInvalidTransition(id, from, to)
	}
	return s.transition(i, to, action, by)
}

// Apply performs a guarded action on a task.
func (s *Store) Apply(id string, action Action, by string) (Task, error) {
	i := s.index(id)
	if i < 0 {
		return Task{}, ErrNotFound(id)
	}
	from := s.tasks[i].Status
	to, ok := Next(from, action)
	if !ok {
		return Task{}, ErrInvalidTransition(id, from, targetOf(action))
	}
	return s.transition(i, to, action, by)
}

// ForceStatus moves a task to any status without consulting the state
// machine. The move is still recorded. Moving to the current status is a no-op.
func (s *Store) ForceStatus(id string, to Status, by string) (Task, error) {
	i := s.index(id)
	if i < 0 {
		return Task{}, ErrNotFound(id)
	}
	if err := ValidateStatus(to); err != nil {
		return Task{}, err
	}
	if s.tasks[i].Status == to {
		return s.tasks[i].Clone(), nil
	}
	return s.transition(i, to, ActionForce, by)
}

// Delete removes a task permanently.
func (s *Store) Delete(id string) error {
	i := s.index(id)
	if i < 0 {
		return ErrNotFound(id)
	}
	prev := s.tasks
	s.tasks = slices.Delete(slices.Clone(s.tasks), i, i+1)
	if err := s.persist(); err != nil {
		s.tasks = prev
		return err
	}
	return nil
}

// Checkpoint captures the current list and returns a function restoring it.
func (s *Store) Checkpoint() func() {
	saved := s.List()
	return func() { s.tasks = saved }
}

func (s *Store) transition(i int, to Status, action Action, by string) (Task, error) {
	old := s.tasks[i]
	now := s.stamp(old)
	t := old.Clone()
	t.Status = to
	t.UpdatedAt = now
	t.History = append(t.History, Transition{From: old.Status, To: to, Action: action, By: by, At: now})
	updateTimestamps(&t, old.Status, to, now)
	return s.replace(i, t)
}

func (s *Store) replace(i int, t Task) (Task, error) {
	old := s.tasks[i]
	s.tasks[i] = t
	if err := s.persist(); err != nil {
		s.tasks[i] = old
		return Task{}, err
	}
	return t.Clone(), nil
}

// stamp returns the current time, never earlier than t's last update.
func (s *Store) stamp(t Task) time.Time {
	now := s.now()
	if now.Before(t.UpdatedAt) {
		return t.UpdatedAt
	}
	return now
}

func (s *Store) index(id string) int {
	return slices.IndexFunc(s.tasks, func(t Task) bool { return t.ID == id })
}

func (s *Store) persist() error {
	return s.sink.Put(storage.KeyTasks, s.tasks)
}

func applyPatch(t *Task, p Patch) {
	if p.Title != nil {
		t.Title = *p.Title
	}
	if p.Description != nil {
		t.Description = *p.Description
	}
	if p.Priority != nil {
		t.Priority = *p.Priority
	}
	if p.AssignedTo != nil {
		t.AssignedTo = *p.AssignedTo
	}
	if p.DueDate != nil {
		d := *p.DueDate
		t.DueDate = &d
	}
	if p.ClearDueDate {
		t.DueDate = nil
	}
	if p.StartDate != nil {
		d := *p.StartDate
		t.StartDate = &d
	}
	if p.ClearStartDate {
		t.StartDate = nil
	}
	for _, a := range p.AddAttachments {
		if !slices.Contains(t.Attachments, a) {
			t.Attachments = append(t.Attachments, a)
		}
	}
	if len(p.RemoveAttachments) > 0 {
		t.Attachments = slices.DeleteFunc(t.Attachments, func(a string) bool {
			return slices.Contains(p.RemoveAttachments, a)
		})
	}
}

func targetOf(action Action) Status {
	for e, to := range transitions {
		if e.action == action {
			return to
		}
	}
	return ""
}
