package cmd

import (
	"context"
	"fmt"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/twiced-technology-gmbh/opsdesk/internal/board"
	"github.com/twiced-technology-gmbh/opsdesk/internal/clierr"
	"github.com/twiced-technology-gmbh/opsdesk/internal/employee"
	"github.com/twiced-technology-gmbh/opsdesk/internal/output"
	"github.com/twiced-technology-gmbh/opsdesk/internal/watcher"
	"github.com/twiced-technology-gmbh/opsdesk/internal/workflow"
)

var flagWatch bool

var boardCmd = &cobra.Command{
	Use:     "board",
	Aliases: []string{"summary"},
	Short:   "Show board summary",
	Long: `Displays a summary of the tasks visible to you: counts per status, overdue
tasks and the priority distribution.

Use --watch to keep the display live-updating. The summary re-renders whenever
the workspace snapshot changes, for example after a command in another terminal.
Press Ctrl+C to stop.`,
	Args: cobra.NoArgs,
	RunE: runBoard,
}

func init() {
	rootCmd.AddCommand(boardCmd)
	boardCmd.Flags().BoolVarP(&flagWatch, "watch", "w", false, "live-update the summary on workspace changes")
	boardCmd.Flags().String("group-by", "", "group board by field ("+strings.Join(board.ValidGroupByFields(), ", ")+")")
}

func runBoard(cmd *cobra.Command, _ []string) error {
	groupBy, _ := cmd.Flags().GetString("group-by")
	if groupBy != "" && !slices.Contains(board.ValidGroupByFields(), groupBy) {
		return clierr.Newf(clierr.InvalidInput, "invalid --group-by field %q; valid: %s",
			groupBy, strings.Join(board.ValidGroupByFields(), ", "))
	}

	if err := renderBoard(cmd.Context(), groupBy); err != nil {
		return err
	}

	if !flagWatch {
		return nil
	}

	return watchBoard(cmd.Context(), groupBy)
}

func renderBoard(ctx context.Context, groupBy string) error {
	ws, err := openWorkspace()
	if err != nil {
		return err
	}
	defer ws.Close()

	return ws.View(ctx, currentUser(), func(c *workflow.Controller, me employee.Employee) error {
		tasks := c.Tasks(me)
		if groupBy != "" {
			grouped := board.GroupBy(tasks, groupBy)
			if outputFormat() == output.FormatJSON {
				return output.JSON(os.Stdout, grouped)
			}
			output.GroupedTable(os.Stdout, grouped, names(c))
			return nil
		}

		summary := board.Summary(ws.Config().Workspace.Name, tasks, time.Now())
		switch outputFormat() {
		case output.FormatJSON:
			return output.JSON(os.Stdout, summary)
		case output.FormatCompact:
			output.OverviewCompact(os.Stdout, summary)
			return nil
		}
		output.OverviewTable(os.Stdout, summary)
		return nil
	})
}

func watchBoard(ctx context.Context, groupBy string) error {
	ws, err := openWorkspace()
	if err != nil {
		return err
	}
	paths := ws.WatchPaths()
	_ = ws.Close()

	w, err := watcher.New(paths, func() {
		clearScreen()
		if renderErr := renderBoard(ctx, groupBy); renderErr != nil {
			fmt.Fprintf(os.Stderr, "Warning: rendering board: %v\n", renderErr)
		}
	})
	if err != nil {
		return fmt.Errorf("starting file watcher: %w", err)
	}
	defer w.Close()

	fmt.Fprintln(os.Stderr, "Watching for changes... (Ctrl+C to stop)")

	w.Run(ctx, func(watchErr error) {
		fmt.Fprintf(os.Stderr, "Warning: file watcher: %v\n", watchErr)
	})

	return nil
}

// clearScreen sends ANSI escape codes to clear the terminal and move the
// cursor to the top-left corner.
func clearScreen() {
	fmt.Fprint(os.Stdout, "\033[2J\033[H")
}
