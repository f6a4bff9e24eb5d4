package workflow

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/twiced-technology-gmbh/opsdesk/internal/board"
	"github.com/twiced-technology-gmbh/opsdesk/internal/employee"
	"github.com/twiced-technology-gmbh/opsdesk/internal/gamify"
	"github.com/twiced-technology-gmbh/opsdesk/internal/notify"
	"github.com/twiced-technology-gmbh/opsdesk/internal/task"
)

func taskURL(id string) string { return "/tasks/" + id }

// notifier turns workflow events into notifications.
type notifier struct {
	emitter   *notify.Emitter
	directory *employee.Directory
}

func (n *notifier) Name() string { return "notify" }

func (n *notifier) Handle(_ context.Context, ev Event) error {
	switch e := ev.(type) {
	case TaskCreated:
		return n.taskCreated(e)
	case TaskUpdated:
		if !e.AssigneeChanged() || e.After.AssignedTo == "" || e.After.AssignedTo == e.Actor.ID {
			return nil
		}
		return n.send(e.After, e.After.AssignedTo, notify.TypeTaskAssigned, "Task assigned to you",
			fmt.Sprintf("%s assigned you %q", e.Actor.Name(), e.After.Title))
	case TaskStatusChanged:
		return n.statusChanged(e)
	case TaskReviewed:
		if e.Approved {
			return n.send(e.Task, e.Task.Owner(), notify.TypeTaskApproved, "Task approved",
				fmt.Sprintf("%s approved %q", e.Actor.Name(), e.Task.Title))
		}
		return n.send(e.Task, e.Task.Owner(), notify.TypeTaskRejected, "Task sent back",
			fmt.Sprintf("%s sent %q back to in progress", e.Actor.Name(), e.Task.Title))
	case TaskDeleted:
		if e.Task.Owner() == e.Actor.ID {
			return nil
		}
		return n.send(e.Task, e.Task.Owner(), notify.TypeTaskDeleted, "Task deleted",
			fmt.Sprintf("%s deleted %q", e.Actor.Name(), e.Task.Title))
	case CommentAdded:
		return n.commentAdded(e)
	}
	return nil
}

func (n *notifier) taskCreated(e TaskCreated) error {
	t := e.Task
	if t.AssignedTo != "" && t.AssignedTo != t.CreatedBy {
		return n.send(t, t.AssignedTo, notify.TypeTaskAssigned, "New task assigned",
			fmt.Sprintf("%s assigned you %q", e.Actor.Name(), t.Title))
	}
	return n.send(t, t.CreatedBy, notify.TypeTaskCreated, "Task created",
		fmt.Sprintf("You created %q", t.Title))
}

func (n *notifier) statusChanged(e TaskStatusChanged) error {
	switch {
	case e.Action == task.ActionSubmitForReview:
		for _, m := range n.reviewers(e.Task) {
			if m.ID == e.Actor.ID {
				continue
			}
			if err := n.send(e.Task, m.ID, notify.TypeReviewRequested, "Review requested",
				fmt.Sprintf("%s submitted %q for review", e.Actor.Name(), e.Task.Title)); err != nil {
				return err
			}
		}
		return nil
	case e.Forced() && e.Task.Owner() != e.Actor.ID:
		return n.send(e.Task, e.Task.Owner(), notify.TypeStatusChanged, "Task moved",
			fmt.Sprintf("%s moved %q from %s to %s", e.Actor.Name(), e.Task.Title, e.From, e.To))
	}
	return nil
}

// reviewers returns the assignee's manager, or every manager when the task
// has no known manager.
func (n *notifier) reviewers(t task.Task) []employee.Employee {
	if m, ok := n.directory.ManagerOf(t.Owner()); ok {
		return []employee.Employee{m}
	}
	return n.directory.Managers()
}

func (n *notifier) commentAdded(e CommentAdded) error {
	notified := map[string]bool{e.Actor.ID: true}
	for _, token := range e.Comment.Mentions {
		m, ok := n.directory.ResolveMention(token)
		if !ok || notified[m.ID] {
			continue
		}
		notified[m.ID] = true
		if err := n.send(e.Task, m.ID, notify.TypeMention, "You were mentioned",
			fmt.Sprintf("%s mentioned you on %q", e.Actor.Name(), e.Task.Title)); err != nil {
			return err
		}
	}
	owner := e.Task.Owner()
	if notified[owner] {
		return nil
	}
	return n.send(e.Task, owner, notify.TypeComment, "New comment",
		fmt.Sprintf("%s commented on %q", e.Actor.Name(), e.Task.Title))
}

func (n *notifier) send(t task.Task, userID string, typ notify.Type, title, msg string) error {
	_, err := n.emitter.Emit(notify.Notification{
		Type:      typ,
		Title:     title,
		Message:   msg,
		UserID:    userID,
		ActionURL: taskURL(t.ID),
		TaskID:    t.ID,
	})
	return err
}

// scorer awards gamification points.
type scorer struct {
	scores *gamify.Scorer
	now    func() time.Time
}

func (s *scorer) Name() string { return "gamify" }

func (s *scorer) Handle(_ context.Context, ev Event) error {
	var err error
	switch e := ev.(type) {
	case TaskCreated:
		_, err = s.scores.RecordEvent(e.Task.CreatedBy, gamify.EventTaskCreated,
			gamify.Payload{TaskID: e.Task.ID, At: e.Task.CreatedAt})
	case TaskStatusChanged:
		if e.FirstCompletion() {
			_, err = s.scores.RecordEvent(e.Task.Owner(), gamify.EventTaskCompleted,
				gamify.Payload{TaskID: e.Task.ID, At: e.Task.UpdatedAt})
		}
	case CommentAdded:
		_, err = s.scores.RecordEvent(e.Comment.UserID, gamify.EventCommentCreated,
			gamify.Payload{TaskID: e.Task.ID, At: e.Comment.CreatedAt})
	}
	return err
}

// ActivityRecorder is the audit trail sink.
type ActivityRecorder interface {
	Append(entry board.LogEntry) error
}

// auditor buffers activity entries for the running operation. Entries reach
// the recorder only after the operation committed.
type auditor struct {
	recorder ActivityRecorder
	log      *slog.Logger
	now      func() time.Time
	pending  []board.LogEntry
}

func (a *auditor) Name() string { return "activity" }

func (a *auditor) Handle(_ context.Context, ev Event) error {
	entry := board.LogEntry{Timestamp: a.now(), Action: ev.Kind()}
	switch e := ev.(type) {
	case TaskCreated:
		entry.TaskID, entry.Actor, entry.Detail = e.Task.ID, e.Actor.ID, e.Task.Title
	case TaskUpdated:
		entry.TaskID, entry.Actor, entry.Detail = e.After.ID, e.Actor.ID, e.After.Title
		if e.AssigneeChanged() {
			entry.Detail = fmt.Sprintf("%s (assignee %s -> %s)", e.After.Title,
				orNone(e.Before.AssignedTo), orNone(e.After.AssignedTo))
		}
	case TaskStatusChanged:
		entry.TaskID, entry.Actor = e.Task.ID, e.Actor.ID
		entry.Detail = fmt.Sprintf("%s -> %s (%s)", e.From, e.To, e.Action)
	case TaskReviewed:
		entry.TaskID, entry.Actor, entry.Detail = e.Task.ID, e.Actor.ID, "rejected"
		if e.Approved {
			entry.Detail = "approved"
		}
	case TaskDeleted:
		entry.TaskID, entry.Actor = e.Task.ID, e.Actor.ID
		entry.Detail = fmt.Sprintf("%s (%d comments)", e.Task.Title, e.Comments)
	case CommentAdded:
		entry.TaskID, entry.Actor, entry.Detail = e.Task.ID, e.Actor.ID, e.Comment.ID
	}
	a.pending = append(a.pending, entry)
	return nil
}

func (a *auditor) flush() {
	defer a.reset()
	if a.recorder == nil {
		return
	}
	for _, entry := range a.pending {
		if err := a.recorder.Append(entry); err != nil {
			a.log.Warn("activity log append failed", "action", entry.Action, "task", entry.TaskID, "err", err)
			return
		}
	}
}

func (a *auditor) reset() { a.pending = nil }

func orNone(id string) string {
	if id == "" {
		return "none"
	}
	return id
}
