// Package tui implements a terminal UI for opsdesk task boards.
package tui

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/twiced-technology-gmbh/opsdesk/internal/board"
	"github.com/twiced-technology-gmbh/opsdesk/internal/clierr"
	"github.com/twiced-technology-gmbh/opsdesk/internal/config"
	"github.com/twiced-technology-gmbh/opsdesk/internal/employee"
	"github.com/twiced-technology-gmbh/opsdesk/internal/task"
	"github.com/twiced-technology-gmbh/opsdesk/internal/workflow"
)

// view represents the current screen state.
type view int

const (
	viewBoard view = iota
	viewDetail
	viewConfirmDelete
)

// Key and layout constants.
const (
	keyEsc = "esc"

	boardChrome  = 2                // blank line + status bar below the column area
	errorChrome  = 1                // extra line when error toast is displayed
	tickInterval = 30 * time.Second // how often durations refresh
	doubleClick  = 500 * time.Millisecond
)

// Session is the workspace access the board needs. Do runs with the
// workspace lock held; View reads a snapshot.
type Session interface {
	Do(ctx context.Context, userID string, fn func(*workflow.Controller, employee.Employee) error) error
	View(ctx context.Context, userID string, fn func(*workflow.Controller, employee.Employee) error) error
}

// Board is the top-level bubbletea model.
type Board struct {
	ctx       context.Context
	ses       Session
	cfg       *config.Config
	userID    string
	user      employee.Employee
	names     map[string]string
	unread    int
	tasks     []task.Task
	columns   []column
	activeCol int
	activeRow int
	view      view
	width     int
	height    int
	err       error
	now       func() time.Time // clock for duration display; defaults to time.Now

	// Delete confirmation.
	deleteID    string
	deleteTitle string

	// Task shown in the detail view.
	detail        task.Task
	detailComment int

	lastClickCol  int
	lastClickRow  int
	lastClickTime time.Time
}

// column groups tasks belonging to a single status.
type column struct {
	status    task.Status
	tasks     []task.Task
	scrollOff int // first visible row index
}

// NewBoard creates a Board acting as userID and loads the tasks visible to
// that user.
func NewBoard(ctx context.Context, ses Session, cfg *config.Config, userID string) *Board {
	b := &Board{ctx: ctx, ses: ses, cfg: cfg, userID: userID, now: time.Now}
	b.loadTasks()
	return b
}

// SetNow overrides the clock function used for duration display (for testing).
func (b *Board) SetNow(fn func() time.Time) {
	b.now = fn
}

// Init implements tea.Model.
func (b *Board) Init() tea.Cmd {
	return tickCmd()
}

// Update implements tea.Model.
func (b *Board) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return b.handleKey(msg)
	case tea.MouseMsg:
		return b.handleMouse(msg)
	case tea.WindowSizeMsg:
		b.width = msg.Width
		b.height = msg.Height
		b.ensureVisible()
		return b, nil
	case ReloadMsg:
		b.loadTasks()
		return b, nil
	case TickMsg:
		return b, tickCmd()
	case errMsg:
		b.err = msg.err
		return b, nil
	}
	return b, nil
}

// View implements tea.Model.
func (b *Board) View() string {
	if b.width == 0 {
		return "Loading..."
	}

	switch b.view {
	case viewDetail:
		return b.viewDetail()
	case viewConfirmDelete:
		return b.viewDeleteConfirm()
	default:
		return b.viewBoard()
	}
}

func (b *Board) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	// Global keys.
	if key.Matches(msg, key.NewBinding(key.WithKeys("ctrl+c"))) {
		return b, tea.Quit
	}

	switch b.view {
	case viewBoard:
		return b.handleBoardKey(msg)
	case viewDetail:
		return b.handleDetailKey(msg)
	case viewConfirmDelete:
		return b.handleDeleteKey(msg)
	}

	return b, nil
}

func (b *Board) handleBoardKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", keyEsc:
		return b, tea.Quit
	case "h", "left":
		if b.activeCol > 0 {
			b.activeCol--
			b.clampRow()
		}
	case "l", "right":
		if b.activeCol < len(b.columns)-1 {
			b.activeCol++
			b.clampRow()
		}
	case "j", "down":
		col := b.currentColumn()
		if col != nil && b.activeRow < len(col.tasks)-1 {
			b.activeRow++
			b.ensureVisible()
		}
	case "k", "up":
		if b.activeRow > 0 {
			b.activeRow--
			b.ensureVisible()
		}
	case "H", "shift+left":
		b.moveSelected(-1)
	case "L", "shift+right":
		b.moveSelected(1)
	case "s":
		b.act(func(c *workflow.Controller, u employee.Employee, t task.Task) (task.Task, error) {
			return c.StartWork(b.ctx, u, t.ID)
		})
	case "r":
		b.act(func(c *workflow.Controller, u employee.Employee, t task.Task) (task.Task, error) {
			return c.RequestReview(b.ctx, u, t.ID)
		})
	case "a":
		b.act(func(c *workflow.Controller, u employee.Employee, t task.Task) (task.Task, error) {
			return c.ValidateTask(b.ctx, u, t.ID, true, "")
		})
	case "x":
		b.act(func(c *workflow.Controller, u employee.Employee, t task.Task) (task.Task, error) {
			return c.ValidateTask(b.ctx, u, t.ID, false, "")
		})
	case "N":
		b.markAllRead()
	case "d", "D":
		b.handleDeleteStart()
	case "enter":
		b.openDetail()
	case "g":
		b.loadTasks()
	}
	return b, nil
}

func (b *Board) handleDetailKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", keyEsc, "enter":
		b.view = viewBoard
	}
	return b, nil
}

func (b *Board) handleDeleteStart() {
	if t := b.selectedTask(); t != nil {
		b.deleteID = t.ID
		b.deleteTitle = t.Title
		b.view = viewConfirmDelete
	}
}

func (b *Board) handleDeleteKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "y", "Y":
		return b.executeDelete()
	case "n", "N", keyEsc, "q":
		b.view = viewBoard
	}
	return b, nil
}

func (b *Board) executeDelete() (tea.Model, tea.Cmd) {
	id := b.deleteID
	err := b.ses.Do(b.ctx, b.userID, func(c *workflow.Controller, u employee.Employee) error {
		return c.DeleteTask(b.ctx, u, id)
	})
	b.view = viewBoard
	b.loadTasks()
	if err != nil {
		b.err = fmt.Errorf("deleting %s: %w", task.ShortID(id), err)
	}
	return b, nil
}

// moveSelected drags the selected card dir columns to the left or right.
func (b *Board) moveSelected(dir int) {
	target := b.activeCol + dir
	if target < 0 || target >= len(b.columns) {
		return
	}
	to := b.columns[target].status
	b.act(func(c *workflow.Controller, u employee.Employee, t task.Task) (task.Task, error) {
		return c.DragDropStatusChange(b.ctx, u, t.ID, to)
	})
}

// act runs fn against the selected task with the workspace locked. The task
// must not have changed since the board last loaded; a stale card fails
// with a conflict and the board reloads. The selection follows the task.
func (b *Board) act(fn func(*workflow.Controller, employee.Employee, task.Task) (task.Task, error)) {
	sel := b.selectedTask()
	if sel == nil {
		return
	}
	seen := *sel
	var moved task.Task
	err := b.ses.Do(b.ctx, b.userID, func(c *workflow.Controller, u employee.Employee) error {
		cur, _, err := c.Task(u, seen.ID)
		if err != nil {
			return err
		}
		if !cur.UpdatedAt.Equal(seen.UpdatedAt) {
			return clierr.Newf(clierr.Conflict, "task %s changed since the board loaded", task.ShortID(seen.ID)).
				WithDetails(map[string]any{"id": seen.ID})
		}
		moved, err = fn(c, u, cur)
		return err
	})
	b.loadTasks()
	if err != nil {
		b.err = err
		return
	}
	b.selectTask(moved.ID)
}

func (b *Board) markAllRead() {
	err := b.ses.Do(b.ctx, b.userID, func(c *workflow.Controller, u employee.Employee) error {
		_, err := c.MarkAllNotificationsRead(b.ctx, u)
		return err
	})
	b.loadTasks()
	if err != nil {
		b.err = err
	}
}

func (b *Board) openDetail() {
	t := b.selectedTask()
	if t == nil {
		return
	}
	err := b.ses.View(b.ctx, b.userID, func(c *workflow.Controller, u employee.Employee) error {
		cur, _, err := c.Task(u, t.ID)
		if err != nil {
			return err
		}
		b.detail = cur
		b.detailComment = c.CommentCount(cur.ID)
		return nil
	})
	if err != nil {
		b.err = err
		return
	}
	b.view = viewDetail
}

// handleMouse handles mouse click events for card selection. A double click
// opens the card.
func (b *Board) handleMouse(msg tea.MouseMsg) (tea.Model, tea.Cmd) {
	if msg.Action != tea.MouseActionPress || msg.Button != tea.MouseButtonLeft {
		return b, nil
	}
	if b.view != viewBoard {
		return b, nil
	}

	colWidth := b.columnWidth()
	clickedCol := msg.X / colWidth
	if clickedCol >= len(b.columns) {
		return b, nil
	}

	col := &b.columns[clickedCol]
	lineY := msg.Y - 1
	if lineY < 0 {
		b.activeCol = clickedCol
		b.clampRow()
		return b, nil
	}

	clickedRow := -1
	cardLine := 0
	for rowIdx := col.scrollOff; rowIdx < len(col.tasks); rowIdx++ {
		cardH := b.cardHeight(col.tasks[rowIdx], colWidth)
		if lineY < cardLine+cardH {
			clickedRow = rowIdx
			break
		}
		cardLine += cardH
	}

	if clickedRow < 0 {
		b.activeCol = clickedCol
		b.clampRow()
		return b, nil
	}

	now := b.now()
	isDoubleClick := clickedCol == b.lastClickCol &&
		clickedRow == b.lastClickRow &&
		now.Sub(b.lastClickTime) < doubleClick

	b.activeCol = clickedCol
	b.activeRow = clickedRow
	b.lastClickCol = clickedCol
	b.lastClickRow = clickedRow
	b.lastClickTime = now
	b.ensureVisible()

	if isDoubleClick {
		b.openDetail()
	}

	return b, nil
}

// loadTasks reads the tasks visible to the user and organizes them into
// columns.
func (b *Board) loadTasks() {
	var selected string
	if t := b.selectedTask(); t != nil {
		selected = t.ID
	}

	err := b.ses.View(b.ctx, b.userID, func(c *workflow.Controller, u employee.Employee) error {
		b.user = u
		b.tasks = c.Tasks(u)
		b.unread = c.UnreadCount(u)
		b.names = map[string]string{}
		for _, e := range c.Directory().List() {
			b.names[e.ID] = e.Name()
		}
		return nil
	})
	if err != nil {
		b.err = err
		return
	}
	b.err = nil

	board.Sort(b.tasks, "priority", false)

	b.columns = make([]column, len(task.Statuses))
	for i, status := range task.Statuses {
		b.columns[i] = column{status: status}
	}
	for _, t := range b.tasks {
		if i := t.Status.Index(); i >= 0 {
			b.columns[i].tasks = append(b.columns[i].tasks, t)
		}
	}

	if selected != "" {
		b.selectTask(selected)
	}
	b.clampRow()
}

// selectTask moves the cursor to the task with id, if it is on the board.
func (b *Board) selectTask(id string) {
	for ci, col := range b.columns {
		for ri, t := range col.tasks {
			if t.ID == id {
				b.activeCol = ci
				b.activeRow = ri
				b.ensureVisible()
				return
			}
		}
	}
}

func (b *Board) currentColumn() *column {
	if b.activeCol >= 0 && b.activeCol < len(b.columns) {
		return &b.columns[b.activeCol]
	}
	return nil
}

func (b *Board) selectedTask() *task.Task {
	col := b.currentColumn()
	if col == nil || len(col.tasks) == 0 {
		return nil
	}
	if b.activeRow >= 0 && b.activeRow < len(col.tasks) {
		return &col.tasks[b.activeRow]
	}
	return nil
}

func (b *Board) clampRow() {
	col := b.currentColumn()
	if col == nil || len(col.tasks) == 0 {
		b.activeRow = 0
		return
	}
	if b.activeRow >= len(col.tasks) {
		b.activeRow = len(col.tasks) - 1
	}
	b.ensureVisible()
}

// chromeHeight returns the number of lines consumed by non-card elements below
// the column area: blank line + status bar (+ error line when an error is shown).
func (b *Board) chromeHeight() int {
	h := boardChrome
	if b.err != nil {
		h += errorChrome
	}
	return h
}

// visibleCardsForColumn returns the number of cards that fit in the column,
// accounting for the scroll indicator lines.
func (b *Board) visibleCardsForColumn(col *column, width int) int {
	budget := b.height - b.chromeHeight()
	if budget < 1 {
		return 1
	}

	// Always need 1 line for column header.
	avail := budget - 1

	if col.scrollOff > 0 {
		avail--
	}

	n := b.fitCardsInHeight(col, avail, width)

	if col.scrollOff+n < len(col.tasks) {
		n = b.fitCardsInHeight(col, avail-1, width)
		if n < 1 {
			n = 1
		}
	}

	return n
}

// ensureVisible adjusts the active column's scroll offset so the
// selected row is within the visible window.
func (b *Board) ensureVisible() {
	col := b.currentColumn()
	if col == nil || b.height == 0 {
		return
	}
	w := b.columnWidth()

	for range len(col.tasks) + 1 {
		maxVis := b.visibleCardsForColumn(col, w)

		switch {
		case b.activeRow >= col.scrollOff+maxVis:
			col.scrollOff = b.activeRow - maxVis + 1
		case b.activeRow < col.scrollOff:
			col.scrollOff = b.activeRow
		default:
			return
		}
	}
}

func (b *Board) fitCardsInHeight(col *column, avail, width int) int {
	if len(col.tasks) == 0 || avail < 1 {
		return 1
	}

	used := 0
	count := 0
	for i := col.scrollOff; i < len(col.tasks); i++ {
		cardLines := b.cardHeight(col.tasks[i], width)
		if count > 0 && used+cardLines > avail {
			break
		}
		count++
		used += cardLines
		if used >= avail {
			break
		}
	}

	if count < 1 {
		return 1
	}
	return count
}

// --- Messages ---

// ReloadMsg is sent by the file watcher to trigger a board refresh.
type ReloadMsg struct{}

type errMsg struct{ err error }

// TickMsg is sent periodically to refresh duration displays.
type TickMsg struct{}

func tickCmd() tea.Cmd {
	return tea.Tick(tickInterval, func(time.Time) tea.Msg { return TickMsg{} })
}
