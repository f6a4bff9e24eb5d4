package cmd

import (
	"errors"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/twiced-technology-gmbh/opsdesk/internal/clierr"
	"github.com/twiced-technology-gmbh/opsdesk/internal/date"
	"github.com/twiced-technology-gmbh/opsdesk/internal/employee"
	"github.com/twiced-technology-gmbh/opsdesk/internal/output"
	"github.com/twiced-technology-gmbh/opsdesk/internal/task"
	"github.com/twiced-technology-gmbh/opsdesk/internal/workflow"
)

var createCmd = &cobra.Command{
	Use:     "create [TITLE]",
	Aliases: []string{"add"},
	Short:   "Create a new task",
	Long: `Creates a task owned by the current user.

Title can be provided as a positional argument or via --title flag.
The assignee is notified; without an assignee the creator is.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runCreate,
}

var (
	createDue   date.Date
	createStart date.Date
)

func init() {
	createCmd.Flags().String("title", "", "task title (alternative to positional argument)")
	createCmd.Flags().String("description", "", "task description (markdown)")
	createCmd.Flags().String("status", "", "initial status (default todo; review and completed need an admin or manager)")
	createCmd.Flags().String("priority", "", "task priority (low, medium, high, urgent)")
	createCmd.Flags().String("assignee", "", "employee id to assign")
	createCmd.Flags().Var(&createDue, "due", "due date (YYYY-MM-DD)")
	createCmd.Flags().Var(&createStart, "start", "start date (YYYY-MM-DD)")
	createCmd.Flags().StringSlice("attach", nil, "attachment paths or URLs (comma-separated)")
	createCmd.Flags().String("comment", "", "initial comment")
	createCmd.Flags().SetNormalizeFunc(func(_ *pflag.FlagSet, name string) pflag.NormalizedName {
		switch name {
		case "body":
			name = "description"
		case "assign", "assigned-to":
			name = "assignee"
		}
		return pflag.NormalizedName(name)
	})
	rootCmd.AddCommand(createCmd)
}

func runCreate(cmd *cobra.Command, args []string) error {
	title, err := resolveCreateTitle(cmd, args)
	if err != nil {
		return err
	}

	in := workflow.CreateInput{Input: task.Input{Title: title}}
	in.Description, _ = cmd.Flags().GetString("description")
	in.AssignedTo, _ = cmd.Flags().GetString("assignee")
	in.Attachments, _ = cmd.Flags().GetStringSlice("attach")
	in.Comment, _ = cmd.Flags().GetString("comment")
	if v, _ := cmd.Flags().GetString("status"); v != "" {
		in.Status = task.Status(v)
	}
	if v, _ := cmd.Flags().GetString("priority"); v != "" {
		in.Priority = task.Priority(v)
	}
	if cmd.Flags().Changed("due") {
		d := createDue
		in.DueDate = &d
	}
	if cmd.Flags().Changed("start") {
		d := createStart
		in.StartDate = &d
	}

	var created task.Task
	err = mutate(cmd.Context(), func(c *workflow.Controller, me employee.Employee) error {
		var err error
		created, err = c.CreateTask(cmd.Context(), me, in)
		return err
	})
	if err != nil {
		return err
	}
	return outputCreateResult(created)
}

func outputCreateResult(t task.Task) error {
	if outputFormat() == output.FormatJSON {
		return output.JSON(os.Stdout, t)
	}

	output.Messagef(os.Stdout, "Created task %s: %s", task.ShortID(t.ID), t.Title)
	output.Messagef(os.Stdout, "  Status: %s | Priority: %s", t.Status, t.Priority)
	if t.AssignedTo != "" {
		output.Messagef(os.Stdout, "  Assignee: %s", t.AssignedTo)
	}
	if t.DueDate != nil {
		output.Messagef(os.Stdout, "  Due: %s", t.DueDate)
	}
	return nil
}

// resolveCreateTitle returns the task title from either the positional arg or --title flag.
func resolveCreateTitle(cmd *cobra.Command, args []string) (string, error) {
	flagTitle, _ := cmd.Flags().GetString("title")
	hasPositional := len(args) > 0
	hasFlag := flagTitle != ""

	switch {
	case hasPositional && hasFlag:
		return "", clierr.New(clierr.InvalidInput,
			"title provided both as argument and --title flag; use one or the other")
	case hasPositional:
		return args[0], nil
	case hasFlag:
		return flagTitle, nil
	default:
		return "", errors.New("title is required: provide it as an argument or with --title")
	}
}
