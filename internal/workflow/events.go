package workflow

import (
	"context"
	"fmt"

	"github.com/twiced-technology-gmbh/opsdesk/internal/comment"
	"github.com/twiced-technology-gmbh/opsdesk/internal/employee"
	"github.com/twiced-technology-gmbh/opsdesk/internal/task"
)

// Event is published on the bus after a store mutation succeeded.
type Event interface {
	// Kind names the event in logs and the activity trail.
	Kind() string
}

// TaskCreated follows CreateTask.
type TaskCreated struct {
	Actor employee.Employee
	Task  task.Task
}

// TaskUpdated follows UpdateTask.
type TaskUpdated struct {
	Actor  employee.Employee
	Before task.Task
	After  task.Task
}

// AssigneeChanged reports whether the update reassigned the task.
func (e TaskUpdated) AssigneeChanged() bool {
	return e.Before.AssignedTo != e.After.AssignedTo
}

// TaskStatusChanged follows every status change, guarded or forced.
type TaskStatusChanged struct {
	Actor  employee.Employee
	Task   task.Task
	From   task.Status
	To     task.Status
	Action task.Action
}

// Forced reports whether the change bypassed the state machine.
func (e TaskStatusChanged) Forced() bool { return e.Action == task.ActionForce }

// FirstCompletion reports whether this change completed the task for the
// first time.
func (e TaskStatusChanged) FirstCompletion() bool {
	return e.To == task.StatusCompleted && e.Task.Completions() == 1
}

// TaskReviewed follows ValidateTask, after the matching TaskStatusChanged.
type TaskReviewed struct {
	Actor    employee.Employee
	Task     task.Task
	Approved bool
}

// TaskDeleted follows DeleteTask.
type TaskDeleted struct {
	Actor    employee.Employee
	Task     task.Task
	Comments int
}

// CommentAdded follows AddComment.
type CommentAdded struct {
	Actor   employee.Employee
	Task    task.Task
	Comment comment.Comment
}

func (TaskCreated) Kind() string       { return "task_created" }
func (TaskUpdated) Kind() string       { return "task_updated" }
func (TaskStatusChanged) Kind() string { return "task_status_changed" }
func (TaskReviewed) Kind() string      { return "task_reviewed" }
func (TaskDeleted) Kind() string       { return "task_deleted" }
func (CommentAdded) Kind() string      { return "comment_added" }

// Subscriber reacts to events. An error aborts the operation that published
// the event and rolls it back.
type Subscriber interface {
	Name() string
	Handle(ctx context.Context, ev Event) error
}

// SubscriberFunc adapts a function to Subscriber.
type SubscriberFunc struct {
	ID string
	Fn func(ctx context.Context, ev Event) error
}

// Name implements Subscriber.
func (s SubscriberFunc) Name() string { return s.ID }

// Handle implements Subscriber.
func (s SubscriberFunc) Handle(ctx context.Context, ev Event) error { return s.Fn(ctx, ev) }

// Bus delivers events to subscribers synchronously, in subscription order.
type Bus struct {
	subs []Subscriber
}

// Subscribe appends s to the delivery order.
func (b *Bus) Subscribe(s Subscriber) {
	b.subs = append(b.subs, s)
}

// Publish delivers ev to every subscriber and stops at the first error.
func (b *Bus) Publish(ctx context.Context, ev Event) error {
	for _, s := range b.subs {
		if err := s.Handle(ctx, ev); err != nil {
			return fmt.Errorf("%s subscriber on %s: %w", s.Name(), ev.Kind(), err)
		}
	}
	return nil
}
