package cmd

import (
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/twiced-technology-gmbh/opsdesk/internal/comment"
	"github.com/twiced-technology-gmbh/opsdesk/internal/employee"
	"github.com/twiced-technology-gmbh/opsdesk/internal/output"
	"github.com/twiced-technology-gmbh/opsdesk/internal/permission"
	"github.com/twiced-technology-gmbh/opsdesk/internal/task"
	"github.com/twiced-technology-gmbh/opsdesk/internal/workflow"
)

var showCmd = &cobra.Command{
	Use:   "show ID",
	Short: "Show task details",
	Long: `Displays full details of a single task: its markdown description, status
history, what the current user may do with it, and its comment threads.
ID may be any unique prefix of the task id.`,
	Args: cobra.ExactArgs(1),
	RunE: runShow,
}

func init() {
	rootCmd.AddCommand(showCmd)
}

// taskView is the JSON shape of show.
type taskView struct {
	task.Task
	Permissions permission.Set   `json:"permissions"`
	Comments    []comment.Thread `json:"comments"`
}

func runShow(cmd *cobra.Command, args []string) error {
	return read(cmd.Context(), func(c *workflow.Controller, me employee.Employee) error {
		t, perms, err := c.Task(me, args[0])
		if err != nil {
			return err
		}
		threads, err := c.Threads(me, t.ID)
		if err != nil {
			return err
		}
		now := time.Now()

		switch outputFormat() {
		case output.FormatJSON:
			if threads == nil {
				threads = []comment.Thread{}
			}
			return output.JSON(os.Stdout, taskView{Task: t, Permissions: perms, Comments: threads})
		case output.FormatCompact:
			output.TaskDetailCompact(os.Stdout, t, c.CommentCount(t.ID), now)
			return nil
		}
		output.TaskDetail(os.Stdout, t, perms, threads, names(c), now)
		return nil
	})
}
