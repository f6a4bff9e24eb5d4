package board

import (
	"reflect"
	"testing"
	"time"

	"github.com/twiced-technology-gmbh/opsdesk/internal/date"
	"github.com/twiced-technology-gmbh/opsdesk/internal/task"
)

var now = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

func fixture() []task.Task {
	past := date.New(2026, 3, 1)
	future := date.New(2026, 4, 1)
	return []task.Task{
		{ID: "a", Title: "Payroll review", Status: task.StatusTodo, Priority: task.PriorityHigh,
			CreatedBy: "mona", AssignedTo: "erik", DueDate: &past, CreatedAt: now.Add(-3 * time.Hour)},
		{ID: "b", Title: "Badge printer", Status: task.StatusInProgress, Priority: task.PriorityLow,
			CreatedBy: "erik", DueDate: &future, CreatedAt: now.Add(-2 * time.Hour),
			Attachments: []string{"invoice.pdf"}},
		{ID: "c", Title: "archive contracts", Status: task.StatusCompleted, Priority: task.PriorityUrgent,
			CreatedBy: "mona", AssignedTo: "lena", DueDate: &past, CreatedAt: now.Add(-1 * time.Hour)},
	}
}

func taskIDs(tasks []task.Task) []string {
	out := make([]string, 0, len(tasks))
	for _, t := range tasks {
		out = append(out, t.ID)
	}
	return out
}

func TestFilter(t *testing.T) {
	tests := []struct {
		name string
		opts FilterOptions
		want []string
	}{
		{"all", FilterOptions{}, []string{"a", "b", "c"}},
		{"status", FilterOptions{Statuses: []task.Status{task.StatusTodo}}, []string{"a"}},
		{"exclude", FilterOptions{ExcludeStatuses: []task.Status{task.StatusCompleted}}, []string{"a", "b"}},
		{"involving", FilterOptions{Involving: "erik"}, []string{"a", "b"}},
		{"unassigned", FilterOptions{Unassigned: true}, []string{"b"}},
		{"search attachments", FilterOptions{Search: "INVOICE"}, []string{"b"}},
		{"overdue skips completed", FilterOptions{Overdue: true, Now: now}, []string{"a"}},
		{"priority", FilterOptions{Priorities: []task.Priority{task.PriorityUrgent, task.PriorityLow}}, []string{"b", "c"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := taskIDs(Filter(fixture(), tt.opts)); !reflect.DeepEqual(got, tt.want) {
				t.Fatalf("Filter = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestListSortAndLimit(t *testing.T) {
	tests := []struct {
		sort    string
		reverse bool
		want    []string
	}{
		{"", false, []string{"a", "b", "c"}},
		{"priority", false, []string{"c", "a", "b"}},
		{"status", true, []string{"c", "b", "a"}},
		{"due", false, []string{"a", "c", "b"}},
		{"title", false, []string{"c", "b", "a"}},
	}
	for _, tt := range tests {
		got := taskIDs(List(fixture(), ListOptions{SortBy: tt.sort, Reverse: tt.reverse}))
		if !reflect.DeepEqual(got, tt.want) {
			t.Errorf("sort %q reverse=%v = %v, want %v", tt.sort, tt.reverse, got, tt.want)
		}
	}
	if got := List(fixture(), ListOptions{Limit: 2}); len(got) != 2 {
		t.Fatalf("limit ignored: %d", len(got))
	}
}

func TestSummary(t *testing.T) {
	ov := Summary("ops", fixture(), now)
	if ov.TotalTasks != 3 || ov.Overdue != 1 {
		t.Fatalf("overview = %+v", ov)
	}
	if ov.Statuses[0].Status != task.StatusTodo || ov.Statuses[0].Overdue != 1 {
		t.Fatalf("todo column = %+v", ov.Statuses[0])
	}
	if ov.Statuses[1].Unassigned != 1 {
		t.Fatalf("in_progress unassigned = %d", ov.Statuses[1].Unassigned)
	}
	if ov.Priorities[0].Priority != task.PriorityUrgent {
		t.Fatalf("priorities should list most urgent first: %+v", ov.Priorities)
	}
}

func TestGroupBy(t *testing.T) {
	g := GroupBy(fixture(), "assignee")
	var keys []string
	for _, grp := range g.Groups {
		keys = append(keys, grp.Key)
	}
	if want := []string{"(unassigned)", "erik", "lena"}; !reflect.DeepEqual(keys, want) {
		t.Fatalf("group keys = %v, want %v", keys, want)
	}
}

func TestParseRefs(t *testing.T) {
	refs, err := ParseRefs(" a1, b2,,a1 ")
	if err != nil || !reflect.DeepEqual(refs, []string{"a1", "b2"}) {
		t.Fatalf("ParseRefs = %v, %v", refs, err)
	}
	if _, err := ParseRefs(" , "); err == nil {
		t.Fatalf("expected error for empty list")
	}
}

func TestActivityLogBounded(t *testing.T) {
	log := NewActivityLog(t.TempDir(), 3)
	for _, action := range []string{"create", "edit", "move", "approve", "delete"} {
		if err := log.Append(LogEntry{Action: action, TaskID: "t1", Actor: "mona"}); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}
	entries, err := log.Read(0)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	var actions []string
	for _, e := range entries {
		actions = append(actions, e.Action)
	}
	if want := []string{"move", "approve", "delete"}; !reflect.DeepEqual(actions, want) {
		t.Fatalf("actions = %v, want %v", actions, want)
	}
	if last, _ := log.Read(1); len(last) != 1 || last[0].Action != "delete" {
		t.Fatalf("Read(1) = %+v", last)
	}
}
