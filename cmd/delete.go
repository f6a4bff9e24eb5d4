package cmd

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/twiced-technology-gmbh/opsdesk/internal/board"
	"github.com/twiced-technology-gmbh/opsdesk/internal/clierr"
	"github.com/twiced-technology-gmbh/opsdesk/internal/employee"
	"github.com/twiced-technology-gmbh/opsdesk/internal/output"
	"github.com/twiced-technology-gmbh/opsdesk/internal/task"
	"github.com/twiced-technology-gmbh/opsdesk/internal/workflow"
)

var deleteCmd = &cobra.Command{
	Use:     "delete ID[,ID,...]",
	Aliases: []string{"rm"},
	Short:   "Delete a task",
	Long: `Deletes a task together with its comments. Prompts for confirmation in interactive mode.
Multiple IDs can be provided as a comma-separated list (requires --yes).`,
	Args: cobra.ExactArgs(1),
	RunE: runDelete,
}

func init() {
	deleteCmd.Flags().BoolP("yes", "y", false, "skip confirmation prompt")
	rootCmd.AddCommand(deleteCmd)
}

func runDelete(cmd *cobra.Command, args []string) error {
	refs, err := board.ParseRefs(args[0])
	if err != nil {
		return err
	}

	yes, _ := cmd.Flags().GetBool("yes")

	// Batch mode requires --yes.
	if len(refs) > 1 && !yes {
		return clierr.New(clierr.ConfirmationReq, "batch delete requires --yes")
	}

	if len(refs) == 1 {
		return deleteSingleTask(cmd, refs[0], yes)
	}

	return runBatch(refs, func(ref string) error {
		_, err := executeDelete(cmd, ref, nil)
		return err
	})
}

// deleteSingleTask handles a single task delete with confirmation and output.
func deleteSingleTask(cmd *cobra.Command, ref string, yes bool) error {
	var confirm func(task.Task, int) bool
	if !yes {
		if !term.IsTerminal(int(os.Stdin.Fd())) {
			return clierr.New(clierr.ConfirmationReq,
				"cannot prompt for confirmation (not a terminal); use --yes")
		}
		confirm = promptDelete
	}

	t, err := executeDelete(cmd, ref, confirm)
	if err != nil {
		return err
	}
	if t == nil {
		fmt.Fprintln(os.Stderr, "Canceled.")
		return nil
	}

	if outputFormat() == output.FormatJSON {
		return output.JSON(os.Stdout, map[string]any{
			"status": "deleted",
			"id":     t.ID,
			"title":  t.Title,
		})
	}

	output.Messagef(os.Stdout, "Deleted task %s: %s", task.ShortID(t.ID), t.Title)
	return nil
}

// executeDelete deletes one task. When confirm is set it is asked first,
// outside the workspace lock, and a false answer returns a nil task.
func executeDelete(cmd *cobra.Command, ref string, confirm func(task.Task, int) bool) (*task.Task, error) {
	if confirm != nil {
		var (
			t        task.Task
			comments int
		)
		err := read(cmd.Context(), func(c *workflow.Controller, me employee.Employee) error {
			var err error
			t, _, err = c.Task(me, ref)
			comments = c.CommentCount(t.ID)
			return err
		})
		if err != nil {
			return nil, err
		}
		if !confirm(t, comments) {
			return nil, nil
		}
		ref = t.ID
	}

	var deleted *task.Task
	err := mutate(cmd.Context(), func(c *workflow.Controller, me employee.Employee) error {
		t, _, err := c.Task(me, ref)
		if err != nil {
			return err
		}
		if err := c.DeleteTask(cmd.Context(), me, t.ID); err != nil {
			return err
		}
		deleted = &t
		return nil
	})
	return deleted, err
}

func promptDelete(t task.Task, comments int) bool {
	prompt := fmt.Sprintf("Delete task %s %q", task.ShortID(t.ID), t.Title)
	if comments > 0 {
		prompt += fmt.Sprintf(" and its %d comment(s)", comments)
	}
	fmt.Fprint(os.Stderr, prompt+"? [y/N] ")
	reader := bufio.NewReader(os.Stdin)
	answer, _ := reader.ReadString('\n')
	answer = strings.TrimSpace(strings.ToLower(answer))
	return answer == "y" || answer == "yes"
}
