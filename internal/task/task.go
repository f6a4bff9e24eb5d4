// Package task holds the task model, its status lifecycle, and the task store.
package task

import (
	"slices"
	"time"

	"github.com/twiced-technology-gmbh/opsdesk/internal/date"
)

// Status is a task's position in the workflow.
type Status string

// Workflow statuses in board order.
const (
	StatusTodo       Status = "todo"
	StatusInProgress Status = "in_progress"
	StatusReview     Status = "review"
	StatusCompleted  Status = "completed"
)

// Statuses lists every status in board order.
var Statuses = []Status{StatusTodo, StatusInProgress, StatusReview, StatusCompleted}

// Valid reports whether s is a known status.
func (s Status) Valid() bool { return slices.Contains(Statuses, s) }

// Terminal reports whether s is the end of the lifecycle.
func (s Status) Terminal() bool { return s == StatusCompleted }

// Index returns the board column of s, or -1 if unknown.
func (s Status) Index() int { return slices.Index(Statuses, s) }

// Priority ranks how urgent a task is.
type Priority string

// Priorities from lowest to highest.
const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

// Priorities lists every priority from lowest to highest.
var Priorities = []Priority{PriorityLow, PriorityMedium, PriorityHigh, PriorityUrgent}

// DefaultPriority is used when a task is created without one.
const DefaultPriority = PriorityMedium

// Valid reports whether p is a known priority.
func (p Priority) Valid() bool { return slices.Contains(Priorities, p) }

// Rank returns the sort weight of p; higher is more urgent.
func (p Priority) Rank() int { return slices.Index(Priorities, p) }

// Transition is one recorded status change.
type Transition struct {
	From   Status    `json:"from"`
	To     Status    `json:"to"`
	Action Action    `json:"action"`
	By     string    `json:"by"`
	At     time.Time `json:"at"`
}

// Task is a unit of work tracked through the status lifecycle.
type Task struct {
	ID          string       `json:"id"`
	Title       string       `json:"title"`
	Description string       `json:"description,omitempty"`
	Status      Status       `json:"status"`
	Priority    Priority     `json:"priority"`
	AssignedTo  string       `json:"assigned_to,omitempty"`
	CreatedBy   string       `json:"created_by"`
	DueDate     *date.Date   `json:"due_date,omitempty"`
	StartDate   *date.Date   `json:"start_date,omitempty"`
	Attachments []string     `json:"attachments,omitempty"`
	CreatedAt   time.Time    `json:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at"`
	StartedAt   *time.Time   `json:"started_at,omitempty"`
	CompletedAt *time.Time   `json:"completed_at,omitempty"`
	History     []Transition `json:"history,omitempty"`
}

// Clone returns a deep copy of t.
func (t Task) Clone() Task {
	c := t
	c.Attachments = slices.Clone(t.Attachments)
	c.History = slices.Clone(t.History)
	if t.DueDate != nil {
		d := *t.DueDate
		c.DueDate = &d
	}
	if t.StartDate != nil {
		d := *t.StartDate
		c.StartDate = &d
	}
	if t.StartedAt != nil {
		ts := *t.StartedAt
		c.StartedAt = &ts
	}
	if t.CompletedAt != nil {
		ts := *t.CompletedAt
		c.CompletedAt = &ts
	}
	return c
}

// Owner returns the user responsible for the task: the assignee, else the creator.
func (t Task) Owner() string {
	if t.AssignedTo != "" {
		return t.AssignedTo
	}
	return t.CreatedBy
}

// InvolvedUser reports whether userID created or is assigned to the task.
func (t Task) InvolvedUser(userID string) bool {
	return userID != "" && (t.AssignedTo == userID || t.CreatedBy == userID)
}

// Overdue reports whether an open task is past its due date.
func (t Task) Overdue(now time.Time) bool {
	return t.DueDate != nil && !t.Status.Terminal() && t.DueDate.DaysFrom(now) < 0
}

// Completions counts how many times the task entered the completed status.
func (t Task) Completions() int {
	n := 0
	for _, tr := range t.History {
		if tr.To == StatusCompleted {
			n++
		}
	}
	return n
}

// Input describes a task to create.
type Input struct {
	Title       string
	Description string
	Status      Status
	Priority    Priority
	AssignedTo  string
	CreatedBy   string
	DueDate     *date.Date
	StartDate   *date.Date
	Attachments []string
}

// Patch holds the fields to change on a task. Nil fields are left alone.
// Status changes only through SetStatus or ForceStatus.
type Patch struct {
	Title             *string
	Description       *string
	Priority          *Priority
	AssignedTo        *string
	DueDate           *date.Date
	ClearDueDate      bool
	StartDate         *date.Date
	ClearStartDate    bool
	AddAttachments    []string
	RemoveAttachments []string

	// IfUpdatedAt, when set, must equal the stored updated_at or the update
	// fails with a conflict.
	IfUpdatedAt *time.Time
}

// Empty reports whether the patch changes nothing.
func (p Patch) Empty() bool {
	return p.Title == nil && p.Description == nil && p.Priority == nil &&
		p.AssignedTo == nil && p.DueDate == nil && !p.ClearDueDate &&
		p.StartDate == nil && !p.ClearStartDate &&
		len(p.AddAttachments) == 0 && len(p.RemoveAttachments) == 0
}
