// Package notify keeps the notification log. Notifications are appended by
// the workflow controller and observed by polling; there is no push delivery.
package notify

import (
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/twiced-technology-gmbh/opsdesk/internal/clierr"
	"github.com/twiced-technology-gmbh/opsdesk/internal/employee"
	"github.com/twiced-technology-gmbh/opsdesk/internal/storage"
)

// Type classifies a notification.
type Type string

// Notification types emitted by the workflow engine.
const (
	TypeTaskCreated     Type = "task_created"
	TypeTaskAssigned    Type = "task_assigned"
	TypeStatusChanged   Type = "task_status_changed"
	TypeReviewRequested Type = "review_requested"
	TypeTaskApproved    Type = "task_approved"
	TypeTaskRejected    Type = "task_rejected"
	TypeTaskDeleted     Type = "task_deleted"
	TypeMention         Type = "comment_mention"
	TypeComment         Type = "comment_added"
	TypeTaskDue         Type = "task_due"
	TypeTaskOverdue     Type = "task_overdue"
)

// Broadcast targets. Any other UserID addresses a single user.
const (
	TargetAll      = "all"
	TargetHR       = "hr"
	TargetEmployee = "employee"
)

// DefaultMaxEntries bounds the log when no limit is configured.
const DefaultMaxEntries = 1000

// Notification is one entry of the log.
type Notification struct {
	ID        string    `json:"id"`
	Type      Type      `json:"type"`
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	UserID    string    `json:"userId"`
	Read      bool      `json:"read"`
	CreatedAt time.Time `json:"createdAt"`
	ActionURL string    `json:"actionUrl,omitempty"`
	TaskID    string    `json:"taskId,omitempty"`
}

// Broadcast reports whether the notification targets a class of users.
func (n Notification) Broadcast() bool {
	return n.UserID == TargetAll || n.UserID == TargetHR || n.UserID == TargetEmployee
}

// For reports whether the notification is addressed to user: directly, to
// everyone, or to the role class user belongs to.
func (n Notification) For(user employee.Employee) bool {
	switch n.UserID {
	case user.ID:
		return user.ID != ""
	case TargetAll:
		return true
	case TargetHR:
		return user.Role == employee.RoleHR
	case TargetEmployee:
		return user.Role == employee.RoleEmployee
	}
	return false
}

// Emitter owns the notification log.
type Emitter struct {
	items []Notification
	sink  storage.Sink
	now   func() time.Time
	newID func() string
	max   int
}

// Option configures an Emitter.
type Option func(*Emitter)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(e *Emitter) { e.now = now }
}

// WithIDGenerator replaces the uuid generator.
func WithIDGenerator(gen func() string) Option {
	return func(e *Emitter) { e.newID = gen }
}

// WithMaxEntries bounds the log; the oldest entries are dropped first.
// Zero or negative means DefaultMaxEntries.
func WithMaxEntries(n int) Option {
	return func(e *Emitter) {
		if n > 0 {
			e.max = n
		}
	}
}

// NewEmitter returns an emitter seeded with a loaded snapshot.
func NewEmitter(items []Notification, sink storage.Sink, opts ...Option) *Emitter {
	if sink == nil {
		sink = storage.Discard{}
	}
	e := &Emitter{
		items: slices.Clone(items),
		sink:  sink,
		now:   time.Now,
		newID: uuid.NewString,
		max:   DefaultMaxEntries,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Emit appends a notification, filling in id and timestamp when unset.
func (e *Emitter) Emit(n Notification) (Notification, error) {
	if n.UserID == "" {
		return Notification{}, clierr.New(clierr.ValidationError, "notification target is required")
	}
	if n.Type == "" {
		return Notification{}, clierr.New(clierr.ValidationError, "notification type is required")
	}
	if n.ID == "" {
		n.ID = e.newID()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = e.now()
	}

	prev := e.items
	next := append(slices.Clone(e.items), n)
	if over := len(next) - e.max; over > 0 {
		next = next[over:]
	}
	e.items = next
	if err := e.persist(); err != nil {
		e.items = prev
		return Notification{}, err
	}
	return n, nil
}

// ListFor returns the notifications addressed to user, in insertion order.
func (e *Emitter) ListFor(user employee.Employee) []Notification {
	var out []Notification
	for _, n := range e.items {
		if n.For(user) {
			out = append(out, n)
		}
	}
	return out
}

// UnreadCount returns how many notifications addressed to user are unread.
func (e *Emitter) UnreadCount(user employee.Employee) int {
	count := 0
	for _, n := range e.items {
		if !n.Read && n.For(user) {
			count++
		}
	}
	return count
}

// All returns the whole log in insertion order.
func (e *Emitter) All() []Notification {
	return slices.Clone(e.items)
}

// Any reports whether some notification satisfies match.
func (e *Emitter) Any(match func(Notification) bool) bool {
	return slices.ContainsFunc(e.items, match)
}

// MarkRead marks a single notification as read.
func (e *Emitter) MarkRead(id string) error {
	i := e.index(id)
	if i < 0 {
		return ErrNotFound(id)
	}
	if e.items[i].Read {
		return nil
	}
	return e.mutate(func(items []Notification) []Notification {
		items[i].Read = true
		return items
	})
}

// MarkAllRead marks every notification addressed to user as read and returns
// how many changed. A second call changes nothing and writes nothing.
func (e *Emitter) MarkAllRead(user employee.Employee) (int, error) {
	changed := 0
	for _, n := range e.items {
		if !n.Read && n.For(user) {
			changed++
		}
	}
	if changed == 0 {
		return 0, nil
	}
	err := e.mutate(func(items []Notification) []Notification {
		for i := range items {
			if items[i].For(user) {
				items[i].Read = true
			}
		}
		return items
	})
	if err != nil {
		return 0, err
	}
	return changed, nil
}

// Delete removes a single notification.
func (e *Emitter) Delete(id string) error {
	i := e.index(id)
	if i < 0 {
		return ErrNotFound(id)
	}
	return e.mutate(func(items []Notification) []Notification {
		return slices.Delete(items, i, i+1)
	})
}

// ClearAll empties the log.
func (e *Emitter) ClearAll() error {
	if len(e.items) == 0 {
		return nil
	}
	return e.mutate(func([]Notification) []Notification { return []Notification{} })
}

// Checkpoint captures the log and returns a function restoring it.
func (e *Emitter) Checkpoint() func() {
	saved := slices.Clone(e.items)
	return func() { e.items = saved }
}

// ErrNotFound returns a NOT_FOUND error for a notification id.
func ErrNotFound(id string) *clierr.Error {
	return clierr.Newf(clierr.NotFound, "notification not found: %s", id).
		WithDetails(map[string]any{"id": id})
}

func (e *Emitter) mutate(fn func([]Notification) []Notification) error {
	prev := e.items
	e.items = fn(slices.Clone(e.items))
	if err := e.persist(); err != nil {
		e.items = prev
		return err
	}
	return nil
}

func (e *Emitter) index(id string) int {
	return slices.IndexFunc(e.items, func(n Notification) bool { return n.ID == id })
}

func (e *Emitter) persist() error {
	items := e.items
	if items == nil {
		items = []Notification{}
	}
	return e.sink.Put(storage.KeyNotifications, items)
}
