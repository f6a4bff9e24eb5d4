package cmd

import (
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/twiced-technology-gmbh/opsdesk/internal/board"
	"github.com/twiced-technology-gmbh/opsdesk/internal/clierr"
	"github.com/twiced-technology-gmbh/opsdesk/internal/date"
	"github.com/twiced-technology-gmbh/opsdesk/internal/employee"
	"github.com/twiced-technology-gmbh/opsdesk/internal/output"
	"github.com/twiced-technology-gmbh/opsdesk/internal/task"
	"github.com/twiced-technology-gmbh/opsdesk/internal/workflow"
)

var editCmd = &cobra.Command{
	Use:   "edit ID[,ID,...]",
	Short: "Edit a task",
	Long: `Modifies fields of an existing task. Only specified fields are changed.
Status is changed with start, review, approve, reject or move.
Multiple IDs can be provided as a comma-separated list.`,
	Args: cobra.ExactArgs(1),
	RunE: runEdit,
}

var (
	editDue   date.Date
	editStart date.Date
)

func init() {
	editCmd.Flags().String("title", "", "new title")
	editCmd.Flags().String("description", "", "new description (replaces the whole text)")
	editCmd.Flags().StringP("append-description", "a", "", "append text to the description")
	editCmd.Flags().BoolP("timestamp", "t", false, "prefix a timestamp line when appending")
	editCmd.Flags().String("priority", "", "new priority")
	editCmd.Flags().String("assignee", "", "new assignee")
	editCmd.Flags().Bool("unassign", false, "remove the assignee")
	editCmd.Flags().Var(&editDue, "due", "new due date (YYYY-MM-DD)")
	editCmd.Flags().Bool("clear-due", false, "clear due date")
	editCmd.Flags().Var(&editStart, "start", "new start date (YYYY-MM-DD)")
	editCmd.Flags().Bool("clear-start", false, "clear start date")
	editCmd.Flags().StringSlice("attach", nil, "add attachments")
	editCmd.Flags().StringSlice("detach", nil, "remove attachments")
	editCmd.Flags().String("if-updated-at", "", "fail with CONFLICT unless the task's updated_at matches (RFC 3339)")
	rootCmd.AddCommand(editCmd)
}

func runEdit(cmd *cobra.Command, args []string) error {
	refs, err := board.ParseRefs(args[0])
	if err != nil {
		return err
	}

	if len(refs) == 1 {
		t, err := executeEdit(cmd, refs[0])
		if err != nil {
			return err
		}
		if outputFormat() == output.FormatJSON {
			return output.JSON(os.Stdout, t)
		}
		output.Messagef(os.Stdout, "Updated task %s: %s", task.ShortID(t.ID), t.Title)
		return nil
	}

	return runBatch(refs, func(ref string) error {
		_, err := executeEdit(cmd, ref)
		return err
	})
}

// executeEdit builds a patch from the flags and applies it to one task.
func executeEdit(cmd *cobra.Command, ref string) (task.Task, error) {
	var updated task.Task
	err := mutate(cmd.Context(), func(c *workflow.Controller, me employee.Employee) error {
		current, _, err := c.Task(me, ref)
		if err != nil {
			return err
		}
		p, err := editPatch(cmd, current)
		if err != nil {
			return err
		}
		updated, err = c.UpdateTask(cmd.Context(), me, current.ID, p)
		return err
	})
	return updated, err
}

func editPatch(cmd *cobra.Command, current task.Task) (task.Patch, error) {
	var p task.Patch
	flags := cmd.Flags()

	if flags.Changed("title") {
		v, _ := flags.GetString("title")
		p.Title = &v
	}
	if flags.Changed("description") && flags.Changed("append-description") {
		return p, clierr.New(clierr.InvalidInput, "use --description or --append-description, not both")
	}
	if flags.Changed("description") {
		v, _ := flags.GetString("description")
		p.Description = &v
	}
	if v, _ := flags.GetString("append-description"); v != "" {
		stamp, _ := flags.GetBool("timestamp")
		desc := appendDescription(current.Description, v, stamp)
		p.Description = &desc
	}
	if v, _ := flags.GetString("priority"); v != "" {
		prio := task.Priority(v)
		p.Priority = &prio
	}
	unassign, _ := flags.GetBool("unassign")
	if flags.Changed("assignee") && unassign {
		return p, clierr.New(clierr.InvalidInput, "use --assignee or --unassign, not both")
	}
	if flags.Changed("assignee") {
		v, _ := flags.GetString("assignee")
		p.AssignedTo = &v
	}
	if unassign {
		empty := ""
		p.AssignedTo = &empty
	}
	if flags.Changed("due") {
		d := editDue
		p.DueDate = &d
	}
	p.ClearDueDate, _ = flags.GetBool("clear-due")
	if flags.Changed("start") {
		d := editStart
		p.StartDate = &d
	}
	p.ClearStartDate, _ = flags.GetBool("clear-start")
	p.AddAttachments, _ = flags.GetStringSlice("attach")
	p.RemoveAttachments, _ = flags.GetStringSlice("detach")

	if v, _ := flags.GetString("if-updated-at"); v != "" {
		ts, err := time.Parse(time.RFC3339Nano, v)
		if err != nil {
			return p, clierr.Newf(clierr.InvalidInput, "invalid --if-updated-at %q: expected RFC 3339", v)
		}
		p.IfUpdatedAt = &ts
	}
	return p, nil
}

// appendDescription appends text to the existing description, optionally
// prefixed with a timestamp line.
func appendDescription(existing, text string, addTimestamp bool) string {
	var b strings.Builder

	if existing != "" {
		b.WriteString(strings.TrimRight(existing, "\n"))
		b.WriteString("\n\n")
	}

	if addTimestamp {
		b.WriteString(time.Now().Format("[[2006-01-02]] Mon 15:04"))
		b.WriteByte('\n')
	}

	b.WriteString(text)

	return b.String()
}
