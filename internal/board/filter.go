// Package board provides board-level views over task collections: filtering,
// sorting, grouping, summaries, and the activity log.
package board

import (
	"slices"
	"strings"
	"time"

	"github.com/twiced-technology-gmbh/opsdesk/internal/task"
)

// FilterOptions defines which tasks to include.
type FilterOptions struct {
	Statuses        []task.Status
	ExcludeStatuses []task.Status // statuses to exclude from results
	Priorities      []task.Priority
	AssignedTo      string
	CreatedBy       string
	Involving       string // created by or assigned to this user
	Unassigned      bool
	Search          string // case-insensitive substring match across title, description, and attachments
	Overdue         bool   // only open tasks past their due date
	Now             time.Time
}

// Filter returns tasks matching all specified criteria (AND logic).
func Filter(tasks []task.Task, opts FilterOptions) []task.Task {
	var result []task.Task
	for _, t := range tasks {
		if matchesFilter(t, opts) {
			result = append(result, t)
		}
	}
	return result
}

func matchesFilter(t task.Task, opts FilterOptions) bool {
	if !matchesStatus(t.Status, opts.Statuses, opts.ExcludeStatuses) {
		return false
	}
	if len(opts.Priorities) > 0 && !slices.Contains(opts.Priorities, t.Priority) {
		return false
	}
	if opts.AssignedTo != "" && t.AssignedTo != opts.AssignedTo {
		return false
	}
	if opts.CreatedBy != "" && t.CreatedBy != opts.CreatedBy {
		return false
	}
	if opts.Involving != "" && !t.InvolvedUser(opts.Involving) {
		return false
	}
	if opts.Unassigned && t.AssignedTo != "" {
		return false
	}
	if opts.Search != "" && !matchesSearch(t, opts.Search) {
		return false
	}
	if opts.Overdue && !t.Overdue(nowOr(opts.Now)) {
		return false
	}
	return true
}

func matchesStatus(status task.Status, include, exclude []task.Status) bool {
	if len(include) > 0 && !slices.Contains(include, status) {
		return false
	}
	if len(exclude) > 0 && slices.Contains(exclude, status) {
		return false
	}
	return true
}

// matchesSearch performs case-insensitive substring matching across title,
// description, and attachment names.
func matchesSearch(t task.Task, query string) bool {
	q := strings.ToLower(query)
	if strings.Contains(strings.ToLower(t.Title), q) {
		return true
	}
	if strings.Contains(strings.ToLower(t.Description), q) {
		return true
	}
	for _, a := range t.Attachments {
		if strings.Contains(strings.ToLower(a), q) {
			return true
		}
	}
	return false
}

func nowOr(t time.Time) time.Time {
	if t.IsZero() {
		return time.Now()
	}
	return t
}
