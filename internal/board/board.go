package board

import (
	"strings"
	"time"

	"github.com/twiced-technology-gmbh/opsdesk/internal/clierr"
	"github.com/twiced-technology-gmbh/opsdesk/internal/task"
)

// ListOptions controls how tasks are listed.
type ListOptions struct {
	Filter  FilterOptions
	SortBy  string
	Reverse bool
	Limit   int
}

// List applies filters, sorting, and the limit to tasks.
func List(tasks []task.Task, opts ListOptions) []task.Task {
	result := Filter(tasks, opts.Filter)

	sortField := opts.SortBy
	if sortField == "" {
		sortField = fieldCreated
	}
	Sort(result, sortField, opts.Reverse)

	if opts.Limit > 0 && len(result) > opts.Limit {
		result = result[:opts.Limit]
	}
	return result
}

// StatusSummary holds metrics for a single status column.
type StatusSummary struct {
	Status     task.Status `json:"status"`
	Count      int         `json:"count"`
	Overdue    int         `json:"overdue"`
	Unassigned int         `json:"unassigned"`
}

// PriorityCount holds a count for a priority level.
type PriorityCount struct {
	Priority task.Priority `json:"priority"`
	Count    int           `json:"count"`
	Overdue  int           `json:"overdue"`
}

// Overview is the aggregate board overview.
type Overview struct {
	Name       string          `json:"name"`
	TotalTasks int             `json:"total_tasks"`
	Overdue    int             `json:"overdue"`
	Statuses   []StatusSummary `json:"statuses"`
	Priorities []PriorityCount `json:"priorities"`
}

// Summary computes per-status and per-priority counts from tasks.
func Summary(name string, tasks []task.Task, now time.Time) Overview {
	statusMap := make(map[task.Status]*StatusSummary, len(task.Statuses))
	for _, s := range task.Statuses {
		statusMap[s] = &StatusSummary{Status: s}
	}
	prioMap := make(map[task.Priority]*PriorityCount, len(task.Priorities))
	for _, p := range task.Priorities {
		prioMap[p] = &PriorityCount{Priority: p}
	}

	overdue := 0
	for _, t := range tasks {
		late := t.Overdue(now)
		if late {
			overdue++
		}
		if ss, ok := statusMap[t.Status]; ok {
			ss.Count++
			if late {
				ss.Overdue++
			}
			if t.AssignedTo == "" {
				ss.Unassigned++
			}
		}
		if pc, ok := prioMap[t.Priority]; ok {
			pc.Count++
			if late {
				pc.Overdue++
			}
		}
	}

	statuses := make([]StatusSummary, 0, len(task.Statuses))
	for _, s := range task.Statuses {
		statuses = append(statuses, *statusMap[s])
	}
	// Most urgent first.
	priorities := make([]PriorityCount, 0, len(task.Priorities))
	for i := len(task.Priorities) - 1; i >= 0; i-- {
		priorities = append(priorities, *prioMap[task.Priorities[i]])
	}

	return Overview{
		Name:       name,
		TotalTasks: len(tasks),
		Overdue:    overdue,
		Statuses:   statuses,
		Priorities: priorities,
	}
}

// CountByStatus returns the number of tasks in each status.
func CountByStatus(tasks []task.Task) map[task.Status]int {
	counts := make(map[task.Status]int)
	for _, t := range tasks {
		counts[t.Status]++
	}
	return counts
}

// ParseRefs splits a comma-separated list of task references, dropping
// blanks and duplicates.
func ParseRefs(arg string) ([]string, error) {
	parts := strings.Split(arg, ",")
	seen := make(map[string]bool, len(parts))
	refs := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" || seen[p] {
			continue
		}
		refs = append(refs, p)
		seen[p] = true
	}
	if len(refs) == 0 {
		return nil, clierr.New(clierr.InvalidInput, "no task IDs provided")
	}
	return refs, nil
}
