package tui

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/twiced-technology-gmbh/opsdesk/internal/task"
)

// --- Styles ---

var (
	columnHeaderStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(lipgloss.Color("252")).
				Background(lipgloss.Color("236")).
				Padding(0, 1)

	activeColumnHeaderStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(lipgloss.Color("230")).
				Background(lipgloss.Color("62")).
				Padding(0, 1)

	cardStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("240")).
			Padding(0, 1)

	activeCardStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("226")).
			Padding(0, 1)

	statusBarStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")).
			Bold(true)

	dimStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))

	unreadStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("208")).Bold(true)

	// priorityColors tints card borders and priority labels.
	priorityColors = map[task.Priority]lipgloss.Color{
		task.PriorityLow:    "66",
		task.PriorityMedium: "33",
		task.PriorityHigh:   "208",
		task.PriorityUrgent: "196",
	}

	dialogPadY = 1
	dialogPadX = 2

	dialogStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("62")).
			Padding(dialogPadY, dialogPadX)
)

var columnTitles = map[task.Status]string{
	task.StatusTodo:       "To do",
	task.StatusInProgress: "In progress",
	task.StatusReview:     "Review",
	task.StatusCompleted:  "Completed",
}

func priorityStyle(p task.Priority) lipgloss.Style {
	if c, ok := priorityColors[p]; ok {
		return lipgloss.NewStyle().Foreground(c)
	}
	return dimStyle
}

// ageStyle returns a lipgloss style for the duration label based on the
// configured age thresholds. The highest threshold the duration reaches wins.
func (b *Board) ageStyle(d time.Duration) lipgloss.Style {
	thresholds := b.cfg.AgeThresholdsDuration()
	for i := len(thresholds) - 1; i >= 0; i-- {
		if d >= thresholds[i].After {
			return lipgloss.NewStyle().Foreground(lipgloss.Color(thresholds[i].Color))
		}
	}
	return dimStyle
}

// inStatusSince returns when the task entered its current status.
func inStatusSince(t task.Task) time.Time {
	if n := len(t.History); n > 0 {
		return t.History[n-1].At
	}
	return t.CreatedAt
}

func (b *Board) name(id string) string {
	if n, ok := b.names[id]; ok {
		return n
	}
	return id
}

// --- View rendering ---

func (b *Board) viewBoard() string {
	if len(b.columns) == 0 {
		return "No tasks loaded."
	}

	colWidth := b.columnWidth()

	renderedCols := make([]string, len(b.columns))
	for i, col := range b.columns {
		renderedCols[i] = b.renderColumn(i, col, colWidth)
	}

	boardView := lipgloss.JoinHorizontal(lipgloss.Top, renderedCols...)

	// At very small terminal sizes a single card can exceed the budget.
	// Clamp from the bottom, keeping headers at the top, and pad if needed.
	targetHeight := b.height - b.chromeHeight()
	if targetHeight > 0 {
		actual := strings.Count(boardView, "\n") + 1
		if actual > targetHeight {
			viewLines := strings.SplitN(boardView, "\n", targetHeight+1)
			boardView = strings.Join(viewLines[:targetHeight], "\n")
		} else if actual < targetHeight {
			boardView += strings.Repeat("\n", targetHeight-actual)
		}
	}

	return lipgloss.JoinVertical(lipgloss.Left, boardView, "", b.renderStatusBar())
}

func (b *Board) columnWidth() int {
	if b.width == 0 || len(b.columns) == 0 {
		return 30 //nolint:mnd // default column width
	}
	w := b.width / len(b.columns)
	const maxColWidth = 75
	if w > maxColWidth {
		w = maxColWidth
	}
	return w
}

func (b *Board) renderColumn(colIdx int, col column, width int) string {
	title := columnTitles[col.status]
	if title == "" {
		title = string(col.status)
	}
	headerText := fmt.Sprintf("%s (%d)", title, len(col.tasks))
	const headerPad = 2
	headerText = truncate(headerText, width-headerPad)

	var header string
	if colIdx == b.activeCol {
		header = activeColumnHeaderStyle.Width(width).Render(headerText)
	} else {
		header = columnHeaderStyle.Width(width).Render(headerText)
	}

	maxVis := b.visibleCardsForColumn(&col, width)
	start := min(col.scrollOff, len(col.tasks))
	end := min(start+maxVis, len(col.tasks))

	parts := []string{header}

	if start > 0 {
		indicator := fmt.Sprintf("  ↑ %d more", start)
		parts = append(parts, dimStyle.Width(width).Render(truncate(indicator, width)))
	}

	if len(col.tasks) == 0 {
		parts = append(parts, dimStyle.Width(width).Render("  (empty)"))
	} else {
		for rowIdx := start; rowIdx < end; rowIdx++ {
			active := colIdx == b.activeCol && rowIdx == b.activeRow
			parts = append(parts, b.renderCard(col.tasks[rowIdx], active, width))
		}
	}

	if end < len(col.tasks) {
		indicator := fmt.Sprintf("  ↓ %d more", len(col.tasks)-end)
		parts = append(parts, dimStyle.Width(width).Render(truncate(indicator, width)))
	}

	return lipgloss.JoinVertical(lipgloss.Left, parts...)
}

func (b *Board) renderCard(t task.Task, active bool, width int) string {
	content := strings.Join(b.cardContentLines(t, width), "\n")

	style := cardStyle
	if c, ok := priorityColors[t.Priority]; ok {
		style = cardStyle.BorderForeground(c)
	}
	if active {
		style = activeCardStyle
	}

	return style.Width(width - 2).Render(content) //nolint:mnd // border width
}

func (b *Board) cardHeight(t task.Task, width int) int {
	return len(b.cardContentLines(t, width)) + 2 //nolint:mnd // top and bottom borders
}

func (b *Board) cardContentLines(t task.Task, width int) []string {
	const cardChrome = 4 // border (2) + padding (2)
	cardWidth := max(width-cardChrome, 1)

	lines := wrapTitle(t.Title, cardWidth, b.cfg.TitleLines())

	assignee := "unassigned"
	if t.AssignedTo != "" {
		assignee = b.name(t.AssignedTo)
	}
	meta := priorityStyle(t.Priority).Render(string(t.Priority)) + "  " +
		dimStyle.Render(truncate(assignee, max(cardWidth-len(t.Priority)-2, 1)))
	lines = append(lines, meta)

	now := b.now()
	age := now.Sub(inStatusSince(t))
	due := ""
	if t.DueDate != nil {
		due = "due " + t.DueDate.String()
		if t.Overdue(now) {
			due = errorStyle.Render(due + " !")
		} else {
			due = dimStyle.Render(due)
		}
	}
	footer := b.ageStyle(age).Render(humanDuration(age))
	if due != "" {
		footer += "  " + due
	}
	lines = append(lines, footer)

	return lines
}

// wrapTitle splits a title across maxLines lines, word-wrapping at word
// boundaries. Each line is at most maxWidth characters.
func wrapTitle(title string, maxWidth, maxLines int) []string {
	if maxLines < 1 {
		maxLines = 1
	}
	if lipgloss.Width(title) <= maxWidth || maxLines == 1 {
		return []string{truncate(title, maxWidth)}
	}

	words := strings.Fields(title)
	lines := make([]string, 0, maxLines)
	var current strings.Builder

	for i, word := range words {
		if current.Len() == 0 {
			current.WriteString(word)
			continue
		}
		if lipgloss.Width(current.String())+1+lipgloss.Width(word) <= maxWidth {
			current.WriteByte(' ')
			current.WriteString(word)
		} else {
			lines = append(lines, truncate(current.String(), maxWidth))
			current.Reset()
			current.WriteString(word)
			if len(lines) == maxLines-1 {
				// Last line: append all remaining words.
				for _, w := range words[i+1:] {
					current.WriteByte(' ')
					current.WriteString(w)
				}
				break
			}
		}
	}
	if current.Len() > 0 {
		lines = append(lines, truncate(current.String(), maxWidth))
	}
	return lines
}

func (b *Board) renderStatusBar() string {
	who := b.user.Name()
	if who == "" {
		who = b.userID
	}
	status := fmt.Sprintf(" %s | %s | %d tasks", b.cfg.Workspace.Name, who, len(b.tasks))
	if b.unread > 0 {
		status += " | " + unreadStyle.Render(fmt.Sprintf("%d unread", b.unread))
	}
	status += " | H/L:move s:start r:review a:approve x:reject d:del N:read-all q:quit"
	status = truncate(status, b.width)

	if b.err != nil {
		errStr := errorStyle.Render(truncate("Error: "+b.err.Error(), b.width))
		return errStr + "\n" + statusBarStyle.Render(status)
	}

	return statusBarStyle.Render(status)
}

func (b *Board) viewDetail() string {
	t := b.detail
	var sb strings.Builder
	sb.WriteString(activeColumnHeaderStyle.Render(t.Title) + "\n\n")
	row := func(label, value string) {
		fmt.Fprintf(&sb, "%s %s\n", dimStyle.Render(fmt.Sprintf("%-10s", label)), value)
	}
	row("ID", t.ID)
	row("Status", string(t.Status))
	row("Priority", priorityStyle(t.Priority).Render(string(t.Priority)))
	row("Assignee", b.name(t.AssignedTo))
	row("Creator", b.name(t.CreatedBy))
	if t.DueDate != nil {
		row("Due", t.DueDate.String())
	}
	row("Comments", strconv.Itoa(b.detailComment))
	if t.Description != "" {
		width := max(b.width-2*dialogPadX-2, 20) //nolint:mnd // minimum text width
		sb.WriteString("\n" + lipgloss.NewStyle().Width(width).Render(t.Description) + "\n")
	}
	if len(t.History) > 0 {
		sb.WriteString("\n" + dimStyle.Render("History") + "\n")
		for _, h := range t.History {
			fmt.Fprintf(&sb, "  %s  %s -> %s  %s\n", h.At.Local().Format("2006-01-02 15:04"), h.From, h.To, b.name(h.By))
		}
	}
	sb.WriteString("\n" + dimStyle.Render("esc:back"))
	return dialogStyle.Render(sb.String())
}

func (b *Board) viewDeleteConfirm() string {
	content := errorStyle.Render("Delete task?") + "\n\n" +
		fmt.Sprintf("  %s: %s", task.ShortID(b.deleteID), b.deleteTitle) + "\n" +
		dimStyle.Render("  Its comments are deleted too.") + "\n\n" +
		dimStyle.Render("y:yes  n:no")

	return dialogStyle.Render(content)
}

func truncate(s string, maxLen int) string {
	if maxLen < 4 { //nolint:mnd // minimum length for truncation
		maxLen = 4
	}
	if lipgloss.Width(s) <= maxLen {
		return s
	}
	// Slice by runes to avoid breaking multi-byte UTF-8 characters.
	runes := []rune(s)
	target := min(maxLen-3, len(runes)) //nolint:mnd // room for "..."
	for target > 0 && lipgloss.Width(string(runes[:target])) > maxLen-3 {
		target--
	}
	return string(runes[:target]) + "..."
}

// humanDuration formats a duration as a compact human-readable string.
// Examples: "<1m", "5m", "2h", "3d", "2w", "3mo", "1y".
func humanDuration(d time.Duration) string {
	const (
		day   = 24 * time.Hour
		week  = 7 * day
		month = 30 * day
		year  = 365 * day
	)

	switch {
	case d < time.Minute:
		return "<1m"
	case d < time.Hour:
		return strconv.Itoa(int(d.Minutes())) + "m"
	case d < day:
		return strconv.Itoa(int(d.Hours())) + "h"
	case d < week:
		return strconv.Itoa(int(d/day)) + "d"
	case d < month:
		return strconv.Itoa(int(d/week)) + "w"
	case d < year:
		return strconv.Itoa(int(d/month)) + "mo"
	default:
		return strconv.Itoa(int(d/year)) + "y"
	}
}
