package tui

import (
	"context"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/twiced-technology-gmbh/opsdesk/internal/clierr"
	"github.com/twiced-technology-gmbh/opsdesk/internal/config"
	"github.com/twiced-technology-gmbh/opsdesk/internal/employee"
	"github.com/twiced-technology-gmbh/opsdesk/internal/logging"
	"github.com/twiced-technology-gmbh/opsdesk/internal/task"
	"github.com/twiced-technology-gmbh/opsdesk/internal/workflow"
	"github.com/twiced-technology-gmbh/opsdesk/internal/workspace"
)

func tickingClock() func() time.Time {
	var mu sync.Mutex
	now := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		now = now.Add(time.Second)
		return now
	}
}

// setup returns a workspace with ada.admin and erik.lund, and the id of a
// todo task assigned to erik.
func setup(t *testing.T) (*workspace.Workspace, string) {
	t.Helper()
	ctx := context.Background()
	dir := filepath.Join(t.TempDir(), config.DefaultDir)
	ws, err := workspace.Init(dir, "people-ops", workspace.WithLogger(logging.Discard()), workspace.WithClock(tickingClock()))
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	t.Cleanup(func() { _ = ws.Close() })
	if _, err := ws.Bootstrap(ctx, employee.Employee{FirstName: "Ada", LastName: "Admin"}); err != nil {
		t.Fatalf("Bootstrap: %v", err)
	}

	var id string
	err = ws.Do(ctx, "ada.admin", func(c *workflow.Controller, me employee.Employee) error {
		if _, err := c.AddEmployee(ctx, me, employee.Employee{FirstName: "Erik", LastName: "Lund"}); err != nil {
			return err
		}
		created, err := c.CreateTask(ctx, me, workflow.CreateInput{Input: task.Input{
			Title:      "Prepare onboarding checklist",
			AssignedTo: "erik.lund",
			Priority:   task.PriorityHigh,
		}})
		id = created.ID
		return err
	})
	if err != nil {
		t.Fatalf("seeding: %v", err)
	}
	return ws, id
}

func runes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func newTestBoard(t *testing.T, ws *workspace.Workspace, user string) *Board {
	t.Helper()
	b := NewBoard(context.Background(), ws, ws.Config(), user)
	b.SetNow(func() time.Time { return time.Date(2026, 3, 3, 9, 0, 0, 0, time.UTC) })
	b.Update(tea.WindowSizeMsg{Width: 160, Height: 40})
	if b.err != nil {
		t.Fatalf("loading board: %v", b.err)
	}
	return b
}

func TestBoardRendersColumns(t *testing.T) {
	ws, _ := setup(t)
	b := newTestBoard(t, ws, "erik.lund")

	out := b.View()
	for _, want := range []string{"To do (1)", "In progress (0)", "Review (0)", "Completed (0)", "Erik Lund", "1 unread"} {
		if !strings.Contains(out, want) {
			t.Errorf("view missing %q:\n%s", want, out)
		}
	}
}

func TestBoardWorkflowKeys(t *testing.T) {
	ws, id := setup(t)
	b := newTestBoard(t, ws, "erik.lund")

	b.Update(runes("s"))
	if b.err != nil {
		t.Fatalf("start: %v", b.err)
	}
	if b.activeCol != task.StatusInProgress.Index() {
		t.Fatalf("selection did not follow the card: col %d", b.activeCol)
	}

	b.Update(runes("L"))
	if b.err != nil {
		t.Fatalf("drag to review: %v", b.err)
	}
	sel := b.selectedTask()
	if sel == nil || sel.ID != id || sel.Status != task.StatusReview {
		t.Fatalf("selected = %+v", sel)
	}

	// Erik is not privileged, so he cannot approve his own work.
	b.Update(runes("a"))
	if !clierr.Is(b.err, clierr.PermissionDenied) {
		t.Fatalf("approve as employee: got %v", b.err)
	}

	admin := newTestBoard(t, ws, "ada.admin")
	admin.selectTask(id)
	admin.Update(runes("a"))
	if admin.err != nil {
		t.Fatalf("approve as admin: %v", admin.err)
	}
	if got := admin.selectedTask(); got == nil || got.Status != task.StatusCompleted {
		t.Fatalf("after approve: %+v", got)
	}
}

func TestBoardStaleCardConflicts(t *testing.T) {
	ws, id := setup(t)
	b := newTestBoard(t, ws, "erik.lund")
	ctx := context.Background()

	err := ws.Do(ctx, "ada.admin", func(c *workflow.Controller, me employee.Employee) error {
		title := "Prepare onboarding checklist v2"
		_, err := c.UpdateTask(ctx, me, id, task.Patch{Title: &title})
		return err
	})
	if err != nil {
		t.Fatalf("concurrent edit: %v", err)
	}

	b.Update(runes("s"))
	if !clierr.Is(b.err, clierr.Conflict) {
		t.Fatalf("stale start: got %v", b.err)
	}
	if sel := b.selectedTask(); sel == nil || sel.Title != "Prepare onboarding checklist v2" {
		t.Fatalf("board did not reload: %+v", sel)
	}

	// The reloaded card is current, so the retry goes through.
	b.Update(runes("s"))
	if b.err != nil {
		t.Fatalf("retry: %v", b.err)
	}
}

func TestBoardDeleteConfirm(t *testing.T) {
	ws, _ := setup(t)
	b := newTestBoard(t, ws, "ada.admin")

	b.Update(runes("d"))
	if b.view != viewConfirmDelete {
		t.Fatalf("view = %v", b.view)
	}
	b.Update(runes("n"))
	if b.view != viewBoard || len(b.tasks) != 1 {
		t.Fatalf("cancel: view %v, %d tasks", b.view, len(b.tasks))
	}

	b.Update(runes("d"))
	b.Update(runes("y"))
	if b.err != nil {
		t.Fatalf("delete: %v", b.err)
	}
	if len(b.tasks) != 0 {
		t.Fatalf("tasks after delete = %d", len(b.tasks))
	}
}

func TestMarkAllReadClearsBadge(t *testing.T) {
	ws, _ := setup(t)
	b := newTestBoard(t, ws, "erik.lund")
	if b.unread != 1 {
		t.Fatalf("unread = %d", b.unread)
	}
	b.Update(runes("N"))
	if b.err != nil || b.unread != 0 {
		t.Fatalf("after read-all: unread %d, err %v", b.unread, b.err)
	}
}

func TestHumanDuration(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want string
	}{
		{30 * time.Second, "<1m"},
		{5 * time.Minute, "5m"},
		{3 * time.Hour, "3h"},
		{50 * time.Hour, "2d"},
		{15 * 24 * time.Hour, "2w"},
		{100 * 24 * time.Hour, "3mo"},
		{400 * 24 * time.Hour, "1y"},
	}
	for _, tt := range tests {
		if got := humanDuration(tt.d); got != tt.want {
			t.Errorf("humanDuration(%v) = %q, want %q", tt.d, got, tt.want)
		}
	}
}

func TestWrapTitle(t *testing.T) {
	lines := wrapTitle("Collect signed contracts from the new starters", 20, 2)
	if len(lines) != 2 {
		t.Fatalf("lines = %q", lines)
	}
	if lines[0] != "Collect signed" {
		t.Errorf("first line = %q", lines[0])
	}
	if !strings.HasSuffix(lines[1], "...") {
		t.Errorf("overflow not truncated: %q", lines[1])
	}
}
