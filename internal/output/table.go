package output

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/twiced-technology-gmbh/opsdesk/internal/board"
	"github.com/twiced-technology-gmbh/opsdesk/internal/comment"
	"github.com/twiced-technology-gmbh/opsdesk/internal/employee"
	"github.com/twiced-technology-gmbh/opsdesk/internal/gamify"
	"github.com/twiced-technology-gmbh/opsdesk/internal/notify"
	"github.com/twiced-technology-gmbh/opsdesk/internal/permission"
	"github.com/twiced-technology-gmbh/opsdesk/internal/task"
)

const timeLayout = "2006-01-02 15:04"

var (
	headerStyle  lipgloss.Style
	dimStyle     lipgloss.Style
	boldStyle    lipgloss.Style
	userStyle    lipgloss.Style
	unreadStyle  lipgloss.Style
	overdueStyle lipgloss.Style

	// Status colors aligned with the TUI column-header palette.
	statusStyles map[string]lipgloss.Style
	// Priority colors matching the TUI priority palette.
	priorityStyles map[string]lipgloss.Style
)

func init() { initStyles() }

func initStyles() {
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("244"))
	dimStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	boldStyle = lipgloss.NewStyle().Bold(true)
	userStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("44")).Bold(true)
	unreadStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("214")).Bold(true)
	overdueStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	statusStyles = map[string]lipgloss.Style{
		string(task.StatusTodo):       lipgloss.NewStyle().Foreground(lipgloss.Color("252")),
		string(task.StatusInProgress): lipgloss.NewStyle().Foreground(lipgloss.Color("33")),
		string(task.StatusReview):     lipgloss.NewStyle().Foreground(lipgloss.Color("62")),
		string(task.StatusCompleted):  lipgloss.NewStyle().Foreground(lipgloss.Color("34")),
	}
	priorityStyles = map[string]lipgloss.Style{
		string(task.PriorityUrgent): lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true),
		string(task.PriorityHigh):   lipgloss.NewStyle().Foreground(lipgloss.Color("208")),
		string(task.PriorityMedium): lipgloss.NewStyle().Foreground(lipgloss.Color("226")),
		string(task.PriorityLow):    lipgloss.NewStyle().Foreground(lipgloss.Color("242")),
	}
}

func resetStyles() {
	plain := lipgloss.NewStyle()
	headerStyle, dimStyle, boldStyle = plain, plain, plain
	userStyle, unreadStyle, overdueStyle = plain, plain, plain
	statusStyles = map[string]lipgloss.Style{}
	priorityStyles = map[string]lipgloss.Style{}
}

// NameFunc maps a user id to a display name.
type NameFunc func(id string) string

// IDName shows raw ids.
func IDName(id string) string { return id }

// TaskTable renders a list of tasks as a formatted table.
func TaskTable(w io.Writer, tasks []task.Task, names NameFunc, now time.Time) {
	if len(tasks) == 0 {
		fmt.Fprintln(os.Stderr, "No tasks found.")
		return
	}
	if names == nil {
		names = IDName
	}

	const pad = 2
	idW, statusW, prioW, titleW, assigneeW, dueW := 10, 8, 10, 5, 10, 12
	for _, t := range tasks {
		statusW = max(statusW, len(t.Status)+pad)
		prioW = max(prioW, len(t.Priority)+pad)
		titleW = max(titleW, min(len(t.Title)+pad, 50)) //nolint:mnd // max title column width
		assigneeW = max(assigneeW, min(len(names(t.AssignedTo))+pad, 24))
	}

	header := fmt.Sprintf("%-*s %-*s %-*s %-*s %-*s %-*s",
		idW, "ID", statusW, "STATUS", prioW, "PRIORITY",
		titleW, "TITLE", assigneeW, "ASSIGNEE", dueW, "DUE")
	fmt.Fprintln(w, headerStyle.Render(strings.TrimRight(header, " ")))

	for _, t := range tasks {
		title := truncate(t.Title, 48) //nolint:mnd // title column
		assignee := dimStyle.Render("--")
		if t.AssignedTo != "" {
			assignee = userStyle.Render(truncate(names(t.AssignedTo), 22)) //nolint:mnd // assignee column
		}
		row := fmt.Sprintf("%-*s %s %s %s %s %s",
			idW, task.ShortID(t.ID),
			padRight(styledValue(string(t.Status), statusStyles), statusW),
			padRight(styledValue(string(t.Priority), priorityStyles), prioW),
			padRight(title, titleW),
			padRight(assignee, assigneeW),
			dueDisplay(t, now))
		fmt.Fprintln(w, strings.TrimRight(row, " "))
	}
}

// TaskDetail renders a single task with full detail, its permissions and its
// comment threads.
func TaskDetail(w io.Writer, t task.Task, perms permission.Set, threads []comment.Thread, names NameFunc, now time.Time) {
	if names == nil {
		names = IDName
	}
	titleLine := fmt.Sprintf("Task %s: %s", task.ShortID(t.ID), t.Title)
	fmt.Fprintln(w, boldStyle.Render(titleLine))
	fmt.Fprintln(w, strings.Repeat("─", lipgloss.Width(titleLine)))

	printField(w, "ID", t.ID)
	printField(w, "Status", styledValue(string(t.Status), statusStyles))
	printField(w, "Priority", styledValue(string(t.Priority), priorityStyles))
	printField(w, "Assignee", userOrDash(t.AssignedTo, names))
	printField(w, "Creator", userOrDash(t.CreatedBy, names))
	printField(w, "Due", dueDisplay(t, now))
	if t.StartDate != nil {
		printField(w, "Start", t.StartDate.String())
	}
	if len(t.Attachments) > 0 {
		printField(w, "Attachments", strings.Join(t.Attachments, ", "))
	}
	printField(w, "Created", t.CreatedAt.Format(timeLayout))
	printField(w, "Updated", t.UpdatedAt.Format(timeLayout))
	if t.StartedAt != nil {
		printField(w, "Started", t.StartedAt.Format(timeLayout))
	}
	if t.CompletedAt != nil {
		printField(w, "Completed", t.CompletedAt.Format(timeLayout))
		printField(w, "Lead time", FormatDuration(t.CompletedAt.Sub(t.CreatedAt)))
		if t.StartedAt != nil {
			printField(w, "Cycle time", FormatDuration(t.CompletedAt.Sub(*t.StartedAt)))
		}
	}
	printField(w, "You can", capabilities(perms))

	if t.Description != "" {
		fmt.Fprintln(w)
		Markdown(w, t.Description)
	}

	if len(t.History) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, headerStyle.Render("HISTORY"))
		for _, h := range t.History {
			fmt.Fprintf(w, "  %s  %s -> %s  %s by %s\n", h.At.Format(timeLayout),
				styledValue(string(h.From), statusStyles), styledValue(string(h.To), statusStyles),
				dimStyle.Render(string(h.Action)), names(h.By))
		}
	}

	if len(threads) > 0 {
		fmt.Fprintln(w)
		Threads(w, threads, names)
	}
}

// Threads renders comment threads, replies indented under their parent.
func Threads(w io.Writer, threads []comment.Thread, names NameFunc) {
	fmt.Fprintln(w, headerStyle.Render("COMMENTS"))
	for _, th := range threads {
		printComment(w, th.Comment, "  ", names)
		for _, r := range th.Replies {
			printComment(w, r, "      ", names)
		}
	}
}

func printComment(w io.Writer, c comment.Comment, indent string, names NameFunc) {
	meta := userStyle.Render(c.UserName) + " " + dimStyle.Render(c.CreatedAt.Format(timeLayout)+" "+task.ShortID(c.ID))
	if c.IsEdited {
		meta += dimStyle.Render(" (edited)")
	}
	fmt.Fprintln(w, indent+meta)
	fmt.Fprintln(w, indent+"  "+renderMentions(c, names))
}

// renderMentions replaces each stored @token with the mentioned user's
// current display name.
func renderMentions(c comment.Comment, names NameFunc) string {
	content := c.Content
	for _, m := range c.Mentions {
		name := names(m)
		if name == m {
			continue
		}
		content = strings.ReplaceAll(content, "@"+m, userStyle.Render("@"+name))
	}
	return content
}

// OverviewTable renders a board summary as a formatted dashboard.
func OverviewTable(w io.Writer, s board.Overview) {
	fmt.Fprintln(w, boldStyle.Render(s.Name))
	fmt.Fprintf(w, "Total: %d tasks (%d overdue)\n\n", s.TotalTasks, s.Overdue)

	header := fmt.Sprintf("%-16s %6s %8s %11s", "STATUS", "COUNT", "OVERDUE", "UNASSIGNED")
	fmt.Fprintln(w, headerStyle.Render(header))

	for _, ss := range s.Statuses {
		const statusColW = 16
		fmt.Fprintf(w, "%s %6d %8d %11d\n",
			padRight(styledValue(string(ss.Status), statusStyles), statusColW),
			ss.Count, ss.Overdue, ss.Unassigned)
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, headerStyle.Render(fmt.Sprintf("%-16s %6s %8s", "PRIORITY", "COUNT", "OVERDUE")))
	for _, pc := range s.Priorities {
		const prioColW = 16
		fmt.Fprintf(w, "%s %6d %8d\n",
			padRight(styledValue(string(pc.Priority), priorityStyles), prioColW), pc.Count, pc.Overdue)
	}
}

// GroupedTable renders a grouped board view with per-group status breakdowns.
func GroupedTable(w io.Writer, gs board.GroupedSummary, names NameFunc) {
	if len(gs.Groups) == 0 {
		fmt.Fprintln(os.Stderr, "No groups found.")
		return
	}
	if names == nil {
		names = IDName
	}

	for i, g := range gs.Groups {
		if i > 0 {
			fmt.Fprintln(w)
		}
		title := fmt.Sprintf("%s (%d tasks)", names(g.Key), g.Total)
		fmt.Fprintln(w, boldStyle.Render(title))

		for _, ss := range g.Statuses {
			if ss.Count == 0 {
				continue
			}
			const groupStatusW = 16
			fmt.Fprintf(w, "  %s %d\n",
				padRight(styledValue(string(ss.Status), statusStyles), groupStatusW), ss.Count)
		}
	}
}

// NotificationTable renders notifications newest first.
func NotificationTable(w io.Writer, items []notify.Notification) {
	if len(items) == 0 {
		fmt.Fprintln(os.Stderr, "No notifications.")
		return
	}
	header := fmt.Sprintf("%-10s %-2s %-20s %-16s %s", "ID", "", "TYPE", "WHEN", "MESSAGE")
	fmt.Fprintln(w, headerStyle.Render(header))
	for i := len(items) - 1; i >= 0; i-- {
		n := items[i]
		marker := "  "
		if !n.Read {
			marker = unreadStyle.Render("● ")
		}
		fmt.Fprintf(w, "%-10s %s %-20s %-16s %s\n",
			task.ShortID(n.ID), marker, n.Type, n.CreatedAt.Format(timeLayout), n.Message)
	}
}

// StatsDetail renders one user's gamification stats.
func StatsDetail(w io.Writer, st gamify.Stats, rank int, name string) {
	fmt.Fprintln(w, boldStyle.Render(name))
	printField(w, "Level", strconv.Itoa(st.Level))
	printField(w, "Points", strconv.Itoa(st.TotalPoints))
	if rank > 0 {
		printField(w, "Rank", "#"+strconv.Itoa(rank))
	}
	printField(w, "Created", strconv.Itoa(st.TasksCreated))
	printField(w, "Completed", strconv.Itoa(st.TasksCompleted))
	printField(w, "Comments", strconv.Itoa(st.CommentsCreated))
	badges := dimStyle.Render("--")
	if len(st.Badges) > 0 {
		badges = strings.Join(st.Badges, ", ")
	}
	printField(w, "Badges", badges)
}

// LeaderboardTable renders the ranking.
func LeaderboardTable(w io.Writer, ranking []gamify.Stats, names NameFunc) {
	if len(ranking) == 0 {
		fmt.Fprintln(os.Stderr, "No scores yet.")
		return
	}
	if names == nil {
		names = IDName
	}
	fmt.Fprintln(w, headerStyle.Render(fmt.Sprintf("%-5s %-24s %7s %6s %s", "RANK", "USER", "POINTS", "LEVEL", "BADGES")))
	for i, st := range ranking {
		fmt.Fprintf(w, "%-5s %s %7d %6d %s\n", "#"+strconv.Itoa(i+1),
			padRight(userStyle.Render(truncate(names(st.UserID), 24)), 24), //nolint:mnd // user column
			st.TotalPoints, st.Level, strings.Join(st.Badges, ","))
	}
}

// EmployeeTable renders the directory.
func EmployeeTable(w io.Writer, list []employee.Employee) {
	if len(list) == 0 {
		fmt.Fprintln(os.Stderr, "No employees.")
		return
	}
	fmt.Fprintln(w, headerStyle.Render(fmt.Sprintf("%-24s %-24s %-9s %-14s %s", "ID", "NAME", "ROLE", "DEPARTMENT", "MANAGER")))
	for _, e := range list {
		fmt.Fprintf(w, "%-24s %-24s %-9s %-14s %s\n",
			e.ID, truncate(e.Name(), 24), e.Role, dashIfEmpty(e.Department), dashIfEmpty(e.ManagerID)) //nolint:mnd // name column
	}
}

// ActivityTable renders activity log entries oldest first.
func ActivityTable(w io.Writer, entries []board.LogEntry) {
	if len(entries) == 0 {
		fmt.Fprintln(os.Stderr, "No activity.")
		return
	}
	for _, e := range entries {
		fmt.Fprintf(w, "%s  %-20s %-10s %-14s %s\n", dimStyle.Render(e.Timestamp.Format(timeLayout)),
			e.Action, task.ShortID(e.TaskID), e.Actor, e.Detail)
	}
}

// Messagef prints a simple formatted message line.
func Messagef(w io.Writer, format string, args ...any) {
	fmt.Fprintf(w, format+"\n", args...)
}

func printField(w io.Writer, label, value string) {
	fmt.Fprintf(w, "  %-12s %s\n", label+":", value)
}

// FormatDuration renders a duration as human-readable "Xd Yh" or "Xh Ym".
func FormatDuration(d time.Duration) string {
	const hoursPerDay = 24
	days := int(d.Hours()) / hoursPerDay
	hours := int(d.Hours()) % hoursPerDay
	if days > 0 {
		return strconv.Itoa(days) + "d " + strconv.Itoa(hours) + "h"
	}
	minutes := int(d.Minutes()) % 60 //nolint:mnd // 60 minutes per hour
	return strconv.Itoa(hours) + "h " + strconv.Itoa(minutes) + "m"
}

// padRight pads s with spaces to the given visible width, accounting for ANSI
// escape codes that are invisible but consume bytes.
func padRight(s string, width int) string {
	visible := lipgloss.Width(s)
	if visible >= width {
		return s
	}
	return s + strings.Repeat(" ", width-visible)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}

func dashIfEmpty(s string) string {
	if s == "" {
		return "--"
	}
	return s
}

func userOrDash(id string, names NameFunc) string {
	if id == "" {
		return dimStyle.Render("--")
	}
	return userStyle.Render(names(id))
}

func dueDisplay(t task.Task, now time.Time) string {
	if t.DueDate == nil {
		return dimStyle.Render("--")
	}
	if t.Overdue(now) {
		return overdueStyle.Render(t.DueDate.String() + " !")
	}
	return t.DueDate.String()
}

func capabilities(s permission.Set) string {
	var caps []string
	for _, c := range []permission.Capability{permission.View, permission.Edit, permission.Validate, permission.Delete} {
		if s.Has(c) {
			caps = append(caps, string(c))
		}
	}
	if len(caps) == 0 {
		return dimStyle.Render("--")
	}
	return strings.Join(caps, ", ")
}

// styledValue renders s using a matching style from the map, or returns s unchanged.
func styledValue(s string, styles map[string]lipgloss.Style) string {
	if st, ok := styles[s]; ok {
		return st.Render(s)
	}
	return s
}
