package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/twiced-technology-gmbh/opsdesk/internal/board"
	"github.com/twiced-technology-gmbh/opsdesk/internal/clierr"
	"github.com/twiced-technology-gmbh/opsdesk/internal/employee"
	"github.com/twiced-technology-gmbh/opsdesk/internal/output"
	"github.com/twiced-technology-gmbh/opsdesk/internal/workflow"
)

var logCmd = &cobra.Command{
	Use:   "log",
	Short: "Show the activity log",
	Long: `Shows the most recent workflow mutations from the audit trail, newest last.
Only admins and HR may read the log.`,
	Args: cobra.NoArgs,
	RunE: runLog,
}

func init() {
	logCmd.Flags().IntP("limit", "n", 20, "number of entries to show (0 for all)") //nolint:mnd // one screen
	logCmd.Flags().String("task", "", "only entries for this task id")
	rootCmd.AddCommand(logCmd)
}

func runLog(cmd *cobra.Command, _ []string) error {
	limit, _ := cmd.Flags().GetInt("limit")
	taskRef, _ := cmd.Flags().GetString("task")

	ws, err := openWorkspace()
	if err != nil {
		return err
	}
	defer ws.Close()

	var entries []board.LogEntry
	err = ws.View(cmd.Context(), currentUser(), func(c *workflow.Controller, me employee.Employee) error {
		if me.Role != employee.RoleAdmin && me.Role != employee.RoleHR {
			return clierr.Newf(clierr.PermissionDenied, "%s may not read the activity log", me.ID)
		}
		// Deleted tasks are no longer resolvable, so their full id matches as given.
		taskID := taskRef
		if taskRef != "" {
			t, _, err := c.Task(me, taskRef)
			switch {
			case err == nil:
				taskID = t.ID
			case !clierr.Is(err, clierr.NotFound):
				return err
			}
		}

		readLimit := limit
		if taskID != "" {
			readLimit = 0
		}
		all, err := ws.Activity().Read(readLimit)
		if err != nil {
			return err
		}
		for _, e := range all {
			if taskID == "" || e.TaskID == taskID {
				entries = append(entries, e)
			}
		}
		if limit > 0 && len(entries) > limit {
			entries = entries[len(entries)-limit:]
		}
		return nil
	})
	if err != nil {
		return err
	}

	switch outputFormat() {
	case output.FormatJSON:
		if entries == nil {
			entries = []board.LogEntry{}
		}
		return output.JSON(os.Stdout, entries)
	case output.FormatCompact:
		for _, e := range entries {
			fmt.Fprintf(os.Stdout, "%s %s %s %s\n", e.Timestamp.Format(time.RFC3339), e.Actor, e.Action, e.Detail)
		}
		return nil
	}
	output.ActivityTable(os.Stdout, entries)
	return nil
}
