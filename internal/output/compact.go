package output

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/twiced-technology-gmbh/opsdesk/internal/board"
	"github.com/twiced-technology-gmbh/opsdesk/internal/notify"
	"github.com/twiced-technology-gmbh/opsdesk/internal/task"
)

// TaskCompact renders a list of tasks in one-line-per-record compact format.
func TaskCompact(w io.Writer, tasks []task.Task, now time.Time) {
	if len(tasks) == 0 {
		fmt.Fprintln(os.Stderr, "No tasks found.")
		return
	}

	for _, t := range tasks {
		fmt.Fprintln(w, formatTaskLine(t, now))
	}
}

// TaskDetailCompact renders a single task with detail in compact format.
func TaskDetailCompact(w io.Writer, t task.Task, comments int, now time.Time) {
	line := formatTaskLine(t, now)
	if comments > 0 {
		line += " comments:" + strconv.Itoa(comments)
	}
	fmt.Fprintln(w, line)

	ts := "  created:" + t.CreatedAt.Format("2006-01-02") +
		" updated:" + t.UpdatedAt.Format("2006-01-02") +
		" by:" + t.CreatedBy
	if t.StartedAt != nil {
		ts += " started:" + t.StartedAt.Format("2006-01-02")
	}
	if t.CompletedAt != nil {
		ts += " completed:" + t.CompletedAt.Format("2006-01-02")
	}
	fmt.Fprintln(w, ts)

	if t.Description != "" {
		for _, bodyLine := range strings.Split(t.Description, "\n") {
			fmt.Fprintln(w, "  "+bodyLine)
		}
	}
}

// OverviewCompact renders a board summary in compact format.
func OverviewCompact(w io.Writer, s board.Overview) {
	fmt.Fprintf(w, "%s (%d tasks)\n", s.Name, s.TotalTasks)

	for _, ss := range s.Statuses {
		line := "  " + string(ss.Status) + ": " + strconv.Itoa(ss.Count)
		var annotations []string
		if ss.Overdue > 0 {
			annotations = append(annotations, strconv.Itoa(ss.Overdue)+" overdue")
		}
		if ss.Unassigned > 0 {
			annotations = append(annotations, strconv.Itoa(ss.Unassigned)+" unassigned")
		}
		if len(annotations) > 0 {
			line += " (" + strings.Join(annotations, ", ") + ")"
		}
		fmt.Fprintln(w, line)
	}

	if len(s.Priorities) > 0 {
		parts := make([]string, 0, len(s.Priorities))
		for _, pc := range s.Priorities {
			parts = append(parts, string(pc.Priority)+"="+strconv.Itoa(pc.Count))
		}
		fmt.Fprintln(w, "Priority: "+strings.Join(parts, " "))
	}
}

// NotificationCompact renders notifications newest first, one per line.
func NotificationCompact(w io.Writer, items []notify.Notification) {
	if len(items) == 0 {
		fmt.Fprintln(os.Stderr, "No notifications.")
		return
	}
	for i := len(items) - 1; i >= 0; i-- {
		n := items[i]
		mark := " "
		if !n.Read {
			mark = "*"
		}
		fmt.Fprintf(w, "%s %s [%s] %s\n", mark, task.ShortID(n.ID), n.Type, n.Message)
	}
}

// formatTaskLine builds the one-line representation of a task.
func formatTaskLine(t task.Task, now time.Time) string {
	line := task.ShortID(t.ID) + " [" + string(t.Status) + "/" + string(t.Priority) + "] " + t.Title

	if t.AssignedTo != "" {
		line += " @" + t.AssignedTo
	}
	if t.DueDate != nil {
		line += " due:" + t.DueDate.String()
		if t.Overdue(now) {
			line += " (overdue)"
		}
	}

	return line
}
