package board

import (
	"sort"
	"strings"

	"github.com/twiced-technology-gmbh/opsdesk/internal/task"
)

const (
	fieldPriority = "priority"
	fieldStatus   = "status"
	fieldCreated  = "created"
)

// ValidSortFields returns the accepted --sort values.
func ValidSortFields() []string {
	return []string{fieldCreated, "updated", fieldPriority, fieldStatus, "due", "title"}
}

// Sort sorts tasks by the given field. Status follows board order and
// priority sorts most urgent first.
func Sort(tasks []task.Task, field string, reverse bool) {
	sort.SliceStable(tasks, func(i, j int) bool {
		less := compareTasks(tasks[i], tasks[j], field)
		if reverse {
			return !less
		}
		return less
	})
}

func compareTasks(a, b task.Task, field string) bool {
	switch field {
	case fieldStatus:
		return a.Status.Index() < b.Status.Index()
	case fieldPriority:
		return a.Priority.Rank() > b.Priority.Rank()
	case "updated":
		return a.UpdatedAt.Before(b.UpdatedAt)
	case "due":
		return compareDue(a, b)
	case "title":
		return strings.ToLower(a.Title) < strings.ToLower(b.Title)
	default:
		return a.CreatedAt.Before(b.CreatedAt)
	}
}

func compareDue(a, b task.Task) bool {
	if a.DueDate == nil && b.DueDate == nil {
		return false
	}
	if a.DueDate == nil {
		return false // nil sorts last
	}
	if b.DueDate == nil {
		return true
	}
	return a.DueDate.Before(b.DueDate.Time)
}
