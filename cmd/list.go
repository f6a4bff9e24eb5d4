package cmd

import (
	"os"
	"slices"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/twiced-technology-gmbh/opsdesk/internal/board"
	"github.com/twiced-technology-gmbh/opsdesk/internal/clierr"
	"github.com/twiced-technology-gmbh/opsdesk/internal/employee"
	"github.com/twiced-technology-gmbh/opsdesk/internal/output"
	"github.com/twiced-technology-gmbh/opsdesk/internal/task"
	"github.com/twiced-technology-gmbh/opsdesk/internal/workflow"
)

var listCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List tasks",
	Long: `Lists the tasks visible to the current user with optional filtering,
sorting, and output format control. Completed tasks are hidden unless
--status or --all is given.`,
	RunE: runList,
}

func init() {
	listCmd.Flags().StringSlice("status", nil, "filter by status (comma-separated)")
	listCmd.Flags().StringSlice("priority", nil, "filter by priority (comma-separated)")
	listCmd.Flags().String("assignee", "", "filter by assignee")
	listCmd.Flags().String("creator", "", "filter by creator")
	listCmd.Flags().Bool("mine", false, "only tasks created by or assigned to me")
	listCmd.Flags().Bool("unassigned", false, "only unassigned tasks")
	listCmd.Flags().Bool("overdue", false, "only open tasks past their due date")
	listCmd.Flags().Bool("all", false, "include completed tasks")
	listCmd.Flags().StringP("search", "s", "", "search title, description, and attachments (case-insensitive)")
	listCmd.Flags().String("sort", "created", "sort field ("+strings.Join(board.ValidSortFields(), ", ")+")")
	listCmd.Flags().BoolP("reverse", "r", false, "reverse sort order")
	listCmd.Flags().IntP("limit", "n", 0, "limit number of results")
	listCmd.Flags().String("group-by", "", "group results by field ("+strings.Join(board.ValidGroupByFields(), ", ")+")")
	rootCmd.AddCommand(listCmd)
}

func runList(cmd *cobra.Command, _ []string) error {
	statuses, _ := cmd.Flags().GetStringSlice("status")
	priorities, _ := cmd.Flags().GetStringSlice("priority")
	assignee, _ := cmd.Flags().GetString("assignee")
	creator, _ := cmd.Flags().GetString("creator")
	mine, _ := cmd.Flags().GetBool("mine")
	unassigned, _ := cmd.Flags().GetBool("unassigned")
	overdue, _ := cmd.Flags().GetBool("overdue")
	all, _ := cmd.Flags().GetBool("all")
	search, _ := cmd.Flags().GetString("search")
	sortBy, _ := cmd.Flags().GetString("sort")
	reverse, _ := cmd.Flags().GetBool("reverse")
	limit, _ := cmd.Flags().GetInt("limit")
	groupBy, _ := cmd.Flags().GetString("group-by")

	if !slices.Contains(board.ValidSortFields(), sortBy) {
		return clierr.Newf(clierr.InvalidInput, "invalid --sort field %q; valid: %s",
			sortBy, strings.Join(board.ValidSortFields(), ", "))
	}
	if groupBy != "" && !slices.Contains(board.ValidGroupByFields(), groupBy) {
		return clierr.Newf(clierr.InvalidInput, "invalid --group-by field %q; valid: %s",
			groupBy, strings.Join(board.ValidGroupByFields(), ", "))
	}

	now := time.Now()
	filter := board.FilterOptions{
		AssignedTo: assignee,
		CreatedBy:  creator,
		Unassigned: unassigned,
		Search:     search,
		Overdue:    overdue,
		Now:        now,
	}
	for _, s := range statuses {
		if err := task.ValidateStatus(task.Status(s)); err != nil {
			return err
		}
		filter.Statuses = append(filter.Statuses, task.Status(s))
	}
	for _, p := range priorities {
		if err := task.ValidatePriority(task.Priority(p)); err != nil {
			return err
		}
		filter.Priorities = append(filter.Priorities, task.Priority(p))
	}
	if !all && len(filter.Statuses) == 0 {
		filter.ExcludeStatuses = []task.Status{task.StatusCompleted}
	}

	return read(cmd.Context(), func(c *workflow.Controller, me employee.Employee) error {
		if mine {
			filter.Involving = me.ID
		}
		tasks := board.List(c.Tasks(me), board.ListOptions{
			Filter:  filter,
			SortBy:  sortBy,
			Reverse: reverse,
			Limit:   limit,
		})

		if groupBy != "" {
			grouped := board.GroupBy(tasks, groupBy)
			if outputFormat() == output.FormatJSON {
				return output.JSON(os.Stdout, grouped)
			}
			output.GroupedTable(os.Stdout, grouped, names(c))
			return nil
		}
		return outputTaskList(tasks, names(c), now)
	})
}

func outputTaskList(tasks []task.Task, nameOf output.NameFunc, now time.Time) error {
	switch outputFormat() {
	case output.FormatJSON:
		if tasks == nil {
			tasks = []task.Task{}
		}
		return output.JSON(os.Stdout, tasks)
	case output.FormatCompact:
		output.TaskCompact(os.Stdout, tasks, now)
		return nil
	}
	output.TaskTable(os.Stdout, tasks, nameOf, now)
	return nil
}
