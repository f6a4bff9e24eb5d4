// Package cmd implements the opsdesk CLI commands.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/twiced-technology-gmbh/opsdesk/internal/clierr"
	"github.com/twiced-technology-gmbh/opsdesk/internal/config"
	"github.com/twiced-technology-gmbh/opsdesk/internal/employee"
	"github.com/twiced-technology-gmbh/opsdesk/internal/logging"
	"github.com/twiced-technology-gmbh/opsdesk/internal/output"
	"github.com/twiced-technology-gmbh/opsdesk/internal/workflow"
	"github.com/twiced-technology-gmbh/opsdesk/internal/workspace"
)

// version is set at build time via ldflags.
var version = "dev"

// Global flags.
var (
	flagJSON     bool
	flagTable    bool
	flagCompact  bool
	flagDir      string
	flagNoColor  bool
	flagAs       string
	flagLogLevel string
)

var rootCmd = &cobra.Command{
	Use:   "opsdesk",
	Short: "Task workflow desk for HR and operations teams",
	Long: `opsdesk tracks HR and operations tasks through todo, in progress, review and
completed, with notifications, comment threads and points for getting work done.
Run opsdesk without a command to open the board.`,
	Version:       version,
	SilenceErrors: true,
	SilenceUsage:  true,
	RunE:          runTUI,
	PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
		if flagNoColor || os.Getenv("NO_COLOR") != "" {
			output.DisableColor()
		}
		return setupLogging(nil)
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&flagJSON, "json", false, "output as JSON")
	rootCmd.PersistentFlags().BoolVar(&flagTable, "table", false, "output as table")
	rootCmd.PersistentFlags().BoolVar(&flagCompact, "compact", false, "compact one-line-per-record output")
	rootCmd.PersistentFlags().BoolVar(&flagCompact, "oneline", false, "alias for --compact")
	rootCmd.PersistentFlags().StringVar(&flagDir, "dir", "", "path to the opsdesk workspace directory")
	rootCmd.PersistentFlags().BoolVar(&flagNoColor, "no-color", false, "disable color output")
	rootCmd.PersistentFlags().StringVar(&flagAs, "as", "", "act as this employee id (default $"+workspace.EnvUser+")")
	rootCmd.PersistentFlags().StringVar(&flagLogLevel, "log-level", "", "diagnostic log level (debug, info, warn, error)")
}

// Execute runs the root command.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	ran, err := rootCmd.ExecuteContextC(ctx)
	stop()
	if err == nil {
		return
	}
	logging.Log("command failed", slog.LevelDebug, "command", ran.CommandPath(), "code", clierr.CodeOf(err), "err", err)

	// Handle SilentError: exit with code, no output.
	var silent *clierr.SilentError
	if errors.As(err, &silent) {
		os.Exit(silent.Code)
	}

	jsonMode := flagJSON
	if !jsonMode {
		jsonMode = os.Getenv(output.EnvOutput) == "json"
	}

	if jsonMode {
		os.Exit(output.JSONError(os.Stdout, err))
	}

	fmt.Fprintln(os.Stderr, err)
	var cliErr *clierr.Error
	if errors.As(err, &cliErr) {
		os.Exit(cliErr.ExitCode())
	}
	os.Exit(1)
}

// setupLogging installs the process logger. The --log-level flag wins over
// OPSDESK_LOG_LEVEL, which wins over log.level in the workspace config.
func setupLogging(cfg *config.Config) error {
	raw := flagLogLevel
	if raw == "" {
		raw = os.Getenv(logging.EnvLevel)
	}
	if raw == "" {
		if cfg == nil {
			return nil
		}
		logging.Setup(os.Stderr, cfg.LogLevel())
		return nil
	}
	lvl, err := config.ParseLogLevel(raw)
	if err != nil {
		return clierr.New(clierr.InvalidInput, err.Error())
	}
	logging.Setup(os.Stderr, lvl)
	return nil
}

// defaultHomeDir returns the path to ~/.config/opsdesk.
func defaultHomeDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("getting home directory: %w", err)
	}
	return filepath.Join(home, ".config", "opsdesk"), nil
}

// resolveDir returns the workspace directory: --dir, else the nearest
// .opsdesk above the working directory, else ~/.config/opsdesk.
func resolveDir() (string, error) {
	if flagDir != "" {
		return flagDir, nil
	}

	cwd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("getting working directory: %w", err)
	}

	dir, err := config.FindDir(cwd)
	if err == nil {
		return dir, nil
	}

	return defaultHomeDir()
}

// openWorkspace opens the resolved workspace and applies its log level.
func openWorkspace() (*workspace.Workspace, error) {
	dir, err := resolveDir()
	if err != nil {
		return nil, err
	}
	ws, err := workspace.Open(dir, workspace.WithLogger(logging.Logger()))
	if errors.Is(err, config.ErrNotFound) {
		return nil, clierr.Newf(clierr.WorkspaceNotFound, "no opsdesk workspace at %s (run 'opsdesk init')", dir).
			WithDetails(map[string]any{"dir": dir})
	}
	if err != nil {
		return nil, err
	}
	if err := setupLogging(ws.Config()); err != nil {
		_ = ws.Close()
		return nil, err
	}
	return ws, nil
}

// currentUser returns the acting employee id from --as or OPSDESK_USER.
func currentUser() string {
	return workspace.CurrentUser(flagAs)
}

// mutate runs fn as the current user with the workspace locked.
func mutate(ctx context.Context, fn func(*workflow.Controller, employee.Employee) error) error {
	ws, err := openWorkspace()
	if err != nil {
		return err
	}
	defer ws.Close()
	return ws.Do(ctx, currentUser(), fn)
}

// read runs fn as the current user against the latest committed state.
func read(ctx context.Context, fn func(*workflow.Controller, employee.Employee) error) error {
	ws, err := openWorkspace()
	if err != nil {
		return err
	}
	defer ws.Close()
	return ws.View(ctx, currentUser(), fn)
}

func noop(*workflow.Controller, employee.Employee) error { return nil }

// outputFormat returns the detected output format from flags/env.
func outputFormat() output.Format {
	return output.Detect(flagJSON, flagTable, flagCompact)
}

// names maps employee ids to display names for table output. Unknown ids
// are tried as mention tokens before falling back to the id itself.
func names(c *workflow.Controller) output.NameFunc {
	dir := c.Directory()
	return func(id string) string {
		if e, ok := dir.Lookup(id); ok {
			return e.Name()
		}
		if e, ok := dir.ResolveMention(id); ok {
			return e.Name()
		}
		return id
	}
}

// runBatch executes fn for each reference and collects results. Returns a
// SilentError with exit code 1 if any operation failed (after outputting
// results).
func runBatch(refs []string, fn func(string) error) error {
	results := make([]output.BatchResult, 0, len(refs))
	anyFailed := false

	for _, ref := range refs {
		r := output.NewBatchResult(ref, fn(ref))
		if !r.OK {
			anyFailed = true
		}
		results = append(results, r)
	}

	if outputFormat() == output.FormatJSON {
		if err := output.JSON(os.Stdout, results); err != nil {
			return err
		}
	} else {
		var succeeded int
		for _, r := range results {
			if r.OK {
				succeeded++
			} else {
				fmt.Fprintf(os.Stderr, "Error: %s: %s\n", r.ID, r.Error)
			}
		}
		output.Messagef(os.Stdout, "Completed %d/%d operations", succeeded, len(refs))
	}

	if anyFailed {
		return &clierr.SilentError{Code: 1}
	}
	return nil
}
