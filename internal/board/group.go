package board

import (
	"sort"

	"github.com/twiced-technology-gmbh/opsdesk/internal/task"
)

// GroupedSummary holds tasks grouped by a field.
type GroupedSummary struct {
	Groups []GroupSummary `json:"groups"`
}

// GroupSummary is one group within a grouped view.
type GroupSummary struct {
	Key      string          `json:"key"`
	Statuses []StatusSummary `json:"statuses"`
	Total    int             `json:"total"`
}

// ValidGroupByFields returns the list of valid --group-by field names.
func ValidGroupByFields() []string {
	return []string{"assignee", "creator", fieldPriority, fieldStatus}
}

// GroupBy groups tasks by the specified field and returns summaries per group.
func GroupBy(tasks []task.Task, field string) GroupedSummary {
	groups := make(map[string][]task.Task)
	for _, t := range tasks {
		key := groupKey(t, field)
		groups[key] = append(groups[key], t)
	}

	keys := make([]string, 0, len(groups))
	for k := range groups {
		keys = append(keys, k)
	}
	sortGroupKeys(keys, field)

	result := GroupedSummary{Groups: make([]GroupSummary, 0, len(keys))}
	for _, key := range keys {
		groupTasks := groups[key]
		result.Groups = append(result.Groups, GroupSummary{
			Key:      key,
			Statuses: groupStatusSummary(groupTasks),
			Total:    len(groupTasks),
		})
	}
	return result
}

func groupKey(t task.Task, field string) string {
	switch field {
	case "assignee":
		if t.AssignedTo == "" {
			return "(unassigned)"
		}
		return t.AssignedTo
	case "creator":
		return t.CreatedBy
	case fieldPriority:
		return string(t.Priority)
	case fieldStatus:
		return string(t.Status)
	default:
		return "(all)"
	}
}

func sortGroupKeys(keys []string, field string) {
	switch field {
	case fieldStatus:
		sort.SliceStable(keys, func(i, j int) bool {
			return task.Status(keys[i]).Index() < task.Status(keys[j]).Index()
		})
	case fieldPriority:
		sort.SliceStable(keys, func(i, j int) bool {
			return task.Priority(keys[i]).Rank() > task.Priority(keys[j]).Rank()
		})
	default:
		sort.Strings(keys)
	}
}

func groupStatusSummary(tasks []task.Task) []StatusSummary {
	counts := CountByStatus(tasks)
	statuses := make([]StatusSummary, 0, len(task.Statuses))
	for _, s := range task.Statuses {
		statuses = append(statuses, StatusSummary{Status: s, Count: counts[s]})
	}
	return statuses
}
