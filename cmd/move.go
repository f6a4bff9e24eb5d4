package cmd

import (
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/twiced-technology-gmbh/opsdesk/internal/board"
	"github.com/twiced-technology-gmbh/opsdesk/internal/clierr"
	"github.com/twiced-technology-gmbh/opsdesk/internal/employee"
	"github.com/twiced-technology-gmbh/opsdesk/internal/output"
	"github.com/twiced-technology-gmbh/opsdesk/internal/task"
	"github.com/twiced-technology-gmbh/opsdesk/internal/workflow"
)

var moveCmd = &cobra.Command{
	Use:   "move ID[,ID,...] STATUS",
	Short: "Move a task to any status",
	Long: `Moves a task straight to STATUS, the way dragging a card on the board does.
The move skips the guarded transitions; with workflow.strict_drag_drop set,
leaving review or entering completed still needs approval rights.

Status can also be given with --next or --prev instead of a positional argument.`,
	Args: cobra.RangeArgs(1, 2), //nolint:mnd // ID and optional status
	RunE: runMove,
}

func init() {
	moveCmd.Flags().Bool("next", false, "move to the next status")
	moveCmd.Flags().Bool("prev", false, "move to the previous status")
	moveCmd.Flags().String("if-updated-at", "", "fail with CONFLICT unless the task's updated_at matches (RFC 3339)")
	rootCmd.AddCommand(moveCmd)
}

func runMove(cmd *cobra.Command, args []string) error {
	refs, err := board.ParseRefs(args[0])
	if err != nil {
		return err
	}

	var expected *time.Time
	if v, _ := cmd.Flags().GetString("if-updated-at"); v != "" {
		ts, err := time.Parse(time.RFC3339Nano, v)
		if err != nil {
			return clierr.Newf(clierr.InvalidInput, "invalid --if-updated-at %q: expected RFC 3339", v)
		}
		expected = &ts
	}

	move := func(ref string) (task.Task, error) {
		var moved task.Task
		err := mutate(cmd.Context(), func(c *workflow.Controller, me employee.Employee) error {
			t, _, err := c.Task(me, ref)
			if err != nil {
				return err
			}
			if expected != nil && !t.UpdatedAt.Equal(*expected) {
				return task.ErrConflict(t.ID, *expected, t.UpdatedAt)
			}
			to, err := resolveTargetStatus(cmd, args, t)
			if err != nil {
				return err
			}
			moved, err = c.DragDropStatusChange(cmd.Context(), me, t.ID, to)
			return err
		})
		return moved, err
	}

	if len(refs) > 1 {
		return runBatch(refs, func(ref string) error {
			_, err := move(ref)
			return err
		})
	}

	t, err := move(refs[0])
	if err != nil {
		return err
	}
	if outputFormat() == output.FormatJSON {
		return output.JSON(os.Stdout, t)
	}
	output.Messagef(os.Stdout, "Moved task %s to %s", task.ShortID(t.ID), t.Status)
	return nil
}

// resolveTargetStatus determines the target status from args or --next/--prev.
func resolveTargetStatus(cmd *cobra.Command, args []string, t task.Task) (task.Status, error) {
	next, _ := cmd.Flags().GetBool("next")
	prev, _ := cmd.Flags().GetBool("prev")

	if next && prev {
		return "", clierr.New(clierr.InvalidInput, "cannot use both --next and --prev")
	}

	if len(args) > 1 {
		if next || prev {
			return "", clierr.New(clierr.InvalidInput, "give a status or --next/--prev, not both")
		}
		to := task.Status(args[1])
		return to, task.ValidateStatus(to)
	}

	idx := t.Status.Index()
	switch {
	case next:
		if idx+1 >= len(task.Statuses) {
			return "", clierr.Newf(clierr.InvalidTransition, "task %s is already at the last status (%s)", task.ShortID(t.ID), t.Status)
		}
		return task.Statuses[idx+1], nil
	case prev:
		if idx <= 0 {
			return "", clierr.Newf(clierr.InvalidTransition, "task %s is already at the first status (%s)", task.ShortID(t.ID), t.Status)
		}
		return task.Statuses[idx-1], nil
	}
	return "", clierr.New(clierr.InvalidInput, "target status is required: give STATUS, --next or --prev")
}
