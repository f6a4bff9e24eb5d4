package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/twiced-technology-gmbh/opsdesk/internal/board"
	"github.com/twiced-technology-gmbh/opsdesk/internal/employee"
	"github.com/twiced-technology-gmbh/opsdesk/internal/output"
	"github.com/twiced-technology-gmbh/opsdesk/internal/task"
	"github.com/twiced-technology-gmbh/opsdesk/internal/workflow"
)

// transitionFunc performs one guarded status change.
type transitionFunc func(ctx context.Context, c *workflow.Controller, me employee.Employee, id string) (task.Task, error)

var startCmd = &cobra.Command{
	Use:   "start ID[,ID,...]",
	Short: "Start work on a task (todo -> in_progress)",
	Args:  cobra.ExactArgs(1),
	RunE: transitionRunner("Started", func(ctx context.Context, c *workflow.Controller, me employee.Employee, id string) (task.Task, error) {
		return c.StartWork(ctx, me, id)
	}),
}

var reviewCmd = &cobra.Command{
	Use:   "review ID[,ID,...]",
	Short: "Submit a task for review (in_progress -> review)",
	Long: `Submits a task for review. The assignee's manager is notified, or every
manager when the assignee has none.`,
	Args: cobra.ExactArgs(1),
	RunE: transitionRunner("Submitted", func(ctx context.Context, c *workflow.Controller, me employee.Employee, id string) (task.Task, error) {
		return c.RequestReview(ctx, me, id)
	}),
}

var approveCmd = &cobra.Command{
	Use:   "approve ID[,ID,...]",
	Short: "Approve a task in review (review -> completed)",
	Long:  `Approves a task in review. Only admins and managers may approve.`,
	Args:  cobra.ExactArgs(1),
	RunE:  reviewRunner(true),
}

var rejectCmd = &cobra.Command{
	Use:   "reject ID[,ID,...]",
	Short: "Send a task in review back to work (review -> in_progress)",
	Long:  `Rejects a task in review. Only admins and managers may reject.`,
	Args:  cobra.ExactArgs(1),
	RunE:  reviewRunner(false),
}

func init() {
	approveCmd.Flags().String("comment", "", "comment to post with the approval")
	rejectCmd.Flags().String("comment", "", "reason, added as a comment")
	rootCmd.AddCommand(startCmd, reviewCmd, approveCmd, rejectCmd)
}

func reviewRunner(approved bool) func(*cobra.Command, []string) error {
	verb := "Rejected"
	if approved {
		verb = "Approved"
	}
	return func(cmd *cobra.Command, args []string) error {
		note, _ := cmd.Flags().GetString("comment")
		fn := func(ctx context.Context, c *workflow.Controller, me employee.Employee, id string) (task.Task, error) {
			return c.ValidateTask(ctx, me, id, approved, note)
		}
		return transitionRunner(verb, fn)(cmd, args)
	}
}

// transitionRunner returns a RunE applying fn to every referenced task.
func transitionRunner(verb string, fn transitionFunc) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		refs, err := board.ParseRefs(args[0])
		if err != nil {
			return err
		}

		apply := func(ref string) (task.Task, error) {
			var moved task.Task
			err := mutate(cmd.Context(), func(c *workflow.Controller, me employee.Employee) error {
				t, _, err := c.Task(me, ref)
				if err != nil {
					return err
				}
				moved, err = fn(cmd.Context(), c, me, t.ID)
				return err
			})
			return moved, err
		}

		if len(refs) > 1 {
			return runBatch(refs, func(ref string) error {
				_, err := apply(ref)
				return err
			})
		}

		t, err := apply(refs[0])
		if err != nil {
			return err
		}
		return outputTransition(verb, t)
	}
}

func outputTransition(verb string, t task.Task) error {
	if outputFormat() == output.FormatJSON {
		return output.JSON(os.Stdout, t)
	}
	msg := fmt.Sprintf("%s task %s: %s", verb, task.ShortID(t.ID), t.Title)
	if n := len(t.History); n > 0 {
		last := t.History[n-1]
		msg += fmt.Sprintf(" (%s -> %s)", last.From, last.To)
	}
	output.Messagef(os.Stdout, "%s", msg)
	return nil
}
