package workflow

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/twiced-technology-gmbh/opsdesk/internal/clierr"
	"github.com/twiced-technology-gmbh/opsdesk/internal/date"
	"github.com/twiced-technology-gmbh/opsdesk/internal/employee"
	"github.com/twiced-technology-gmbh/opsdesk/internal/gamify"
	"github.com/twiced-technology-gmbh/opsdesk/internal/notify"
	"github.com/twiced-technology-gmbh/opsdesk/internal/task"
)

// Notifications returns the notifications addressed to user, oldest first.
func (c *Controller) Notifications(user employee.Employee) []notify.Notification {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.notes.ListFor(user)
}

// UnreadCount returns the user's unread notification count.
func (c *Controller) UnreadCount(user employee.Employee) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.notes.UnreadCount(user)
}

// MarkNotificationRead marks one of the user's notifications read.
func (c *Controller) MarkNotificationRead(ctx context.Context, user employee.Employee, id string) error {
	return c.atomically(ctx, "notification_read", func() error {
		full, err := c.ownNotification(user, id)
		if err != nil {
			return err
		}
		return c.notes.MarkRead(full)
	})
}

// MarkAllNotificationsRead marks every notification addressed to user read
// and returns how many changed.
func (c *Controller) MarkAllNotificationsRead(ctx context.Context, user employee.Employee) (int, error) {
	var n int
	err := c.atomically(ctx, "notification_read_all", func() error {
		var err error
		n, err = c.notes.MarkAllRead(user)
		return err
	})
	return n, err
}

// DeleteNotification removes one of the user's notifications.
func (c *Controller) DeleteNotification(ctx context.Context, user employee.Employee, id string) error {
	return c.atomically(ctx, "notification_delete", func() error {
		full, err := c.ownNotification(user, id)
		if err != nil {
			return err
		}
		return c.notes.Delete(full)
	})
}

// ClearNotifications empties the whole log. Admins only.
func (c *Controller) ClearNotifications(ctx context.Context, user employee.Employee) error {
	return c.atomically(ctx, "notification_clear", func() error {
		if user.Role != employee.RoleAdmin {
			return clierr.Newf(clierr.PermissionDenied, "%s may not clear notifications", user.ID).
				WithDetails(map[string]any{"user": user.ID, "role": user.Role})
		}
		return c.notes.ClearAll()
	})
}

// ownNotification resolves id, or a unique prefix of it, among the
// notifications addressed to user.
func (c *Controller) ownNotification(user employee.Employee, id string) (string, error) {
	var matches []string
	for _, n := range c.notes.ListFor(user) {
		if n.ID == id {
			return id, nil
		}
		if id != "" && strings.HasPrefix(n.ID, id) {
			matches = append(matches, n.ID)
		}
	}
	switch len(matches) {
	case 0:
		return "", notify.ErrNotFound(id)
	case 1:
		return matches[0], nil
	}
	return "", clierr.Newf(clierr.InvalidInput, "notification id %q is ambiguous (%d matches)", id, len(matches)).
		WithDetails(map[string]any{"input": id, "matches": matches})
}

// Stats returns the user's gamification stats.
func (c *Controller) Stats(userID string) (gamify.Stats, int, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	st, ok := c.scores.Stats(userID)
	return st, c.scores.Rank(userID), ok
}

// Leaderboard returns every user's stats, best first.
func (c *Controller) Leaderboard() []gamify.Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.scores.Leaderboard()
}

// SendDueReminders notifies the owner of every open task that is overdue or
// due within the configured window. A task gets at most one reminder of each
// kind per day. It returns the number of reminders sent.
func (c *Controller) SendDueReminders(ctx context.Context, now time.Time) (int, error) {
	sent := 0
	err := c.atomically(ctx, "reminders", func() error {
		sent = 0
		horizon := date.Of(now.Add(c.dueSoon)).DaysFrom(now)
		for _, t := range c.tasks.List() {
			if t.DueDate == nil || t.Status.Terminal() {
				continue
			}
			days := t.DueDate.DaysFrom(now)
			if days > horizon {
				continue
			}
			typ, title := notify.TypeTaskDue, "Task due soon"
			if days < 0 {
				typ, title = notify.TypeTaskOverdue, "Task overdue"
			}
			if c.remindedToday(t, typ, now) {
				continue
			}
			if _, err := c.notes.Emit(notify.Notification{
				Type:      typ,
				Title:     title,
				Message:   reminderMessage(t, days),
				UserID:    t.Owner(),
				ActionURL: taskURL(t.ID),
				TaskID:    t.ID,
				CreatedAt: now,
			}); err != nil {
				return err
			}
			sent++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	if sent > 0 {
		c.log.Info("due reminders sent", "count", sent)
	}
	return sent, nil
}

func (c *Controller) remindedToday(t task.Task, typ notify.Type, now time.Time) bool {
	today := date.Of(now)
	return c.notes.Any(func(n notify.Notification) bool {
		return n.TaskID == t.ID && n.Type == typ && n.UserID == t.Owner() && date.Of(n.CreatedAt.In(now.Location())).Equal(today.Time)
	})
}

func reminderMessage(t task.Task, days int) string {
	switch {
	case days < -1:
		return fmt.Sprintf("%s is %d days overdue", t.Title, -days)
	case days == -1:
		return t.Title + " was due yesterday"
	case days == 0:
		return t.Title + " is due today"
	case days == 1:
		return t.Title + " is due tomorrow"
	}
	return fmt.Sprintf("%s is due in %d days", t.Title, days)
}
