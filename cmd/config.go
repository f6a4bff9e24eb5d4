package cmd

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/twiced-technology-gmbh/opsdesk/internal/clierr"
	"github.com/twiced-technology-gmbh/opsdesk/internal/config"
	"github.com/twiced-technology-gmbh/opsdesk/internal/output"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "View or modify workspace configuration",
	Long:  `View the full configuration, get a specific key, or set a writable value.`,
	RunE:  runConfigShow,
}

var configGetCmd = &cobra.Command{
	Use:   "get KEY",
	Short: "Get a configuration value",
	Args:  cobra.ExactArgs(1),
	RunE:  runConfigGet,
}

var configSetCmd = &cobra.Command{
	Use:   "set KEY VALUE",
	Short: "Set a configuration value",
	Args:  cobra.ExactArgs(2), //nolint:mnd // key and value
	RunE:  runConfigSet,
}

func init() {
	configCmd.AddCommand(configGetCmd)
	configCmd.AddCommand(configSetCmd)
	rootCmd.AddCommand(configCmd)
}

// configAccessor describes how to get and set a config key.
type configAccessor struct {
	get      func(*config.Config) any
	set      func(*config.Config, string) error
	writable bool
}

func stringKey(field func(*config.Config) *string) configAccessor {
	return configAccessor{
		get:      func(c *config.Config) any { return *field(c) },
		set:      func(c *config.Config, v string) error { *field(c) = v; return nil },
		writable: true,
	}
}

func intKey(key string, field func(*config.Config) *int) configAccessor {
	return configAccessor{
		get: func(c *config.Config) any { return *field(c) },
		set: func(c *config.Config, v string) error {
			n, err := strconv.Atoi(v)
			if err != nil {
				return clierr.Newf(clierr.InvalidInput, "invalid %s %q: must be an integer", key, v)
			}
			*field(c) = n
			return nil // validation handles range check
		},
		writable: true,
	}
}

func configAccessors() map[string]configAccessor {
	return map[string]configAccessor{
		"version": {
			get: func(c *config.Config) any { return c.Version },
		},
		"workspace.name":        stringKey(func(c *config.Config) *string { return &c.Workspace.Name }),
		"workspace.description": stringKey(func(c *config.Config) *string { return &c.Workspace.Description }),
		"storage.backend": {
			get: func(c *config.Config) any { return c.Storage.Backend },
			set: func(c *config.Config, v string) error {
				if v == c.Storage.Backend {
					return nil
				}
				c.Storage.Backend = v
				switch {
				case v == "sqlite" && c.Storage.Path == config.DefaultDataDir:
					c.Storage.Path = config.DefaultDBFile
				case v == "file" && c.Storage.Path == config.DefaultDBFile:
					c.Storage.Path = config.DefaultDataDir
				}
				return nil
			},
			writable: true,
		},
		"storage.path": {
			get: func(c *config.Config) any { return c.StoragePath() },
		},
		"workflow.strict_drag_drop": {
			get: func(c *config.Config) any { return c.Workflow.StrictDragDrop },
			set: func(c *config.Config, v string) error {
				b, err := strconv.ParseBool(v)
				if err != nil {
					return clierr.Newf(clierr.InvalidInput, "invalid workflow.strict_drag_drop %q: must be true or false", v)
				}
				c.Workflow.StrictDragDrop = b
				return nil
			},
			writable: true,
		},
		"notifications.max_entries": intKey("notifications.max_entries", func(c *config.Config) *int { return &c.Notifications.MaxEntries }),
		"reminders.schedule":        stringKey(func(c *config.Config) *string { return &c.Reminders.Schedule }),
		"reminders.due_soon":        stringKey(func(c *config.Config) *string { return &c.Reminders.DueSoon }),
		"scoring.task_created":      intKey("scoring.task_created", func(c *config.Config) *int { return &c.Scoring.TaskCreated }),
		"scoring.task_completed":    intKey("scoring.task_completed", func(c *config.Config) *int { return &c.Scoring.TaskCompleted }),
		"scoring.comment_created":   intKey("scoring.comment_created", func(c *config.Config) *int { return &c.Scoring.CommentCreated }),
		"scoring.creation_credit":   intKey("scoring.creation_credit", func(c *config.Config) *int { return &c.Scoring.CreationCredit }),
		"scoring.level_threshold":   intKey("scoring.level_threshold", func(c *config.Config) *int { return &c.Scoring.LevelThreshold }),
		"scoring.badges": {
			get: func(c *config.Config) any { return c.Scoring.Badges },
		},
		"activity.max_entries": intKey("activity.max_entries", func(c *config.Config) *int { return &c.Activity.MaxEntries }),
		"log.level":            stringKey(func(c *config.Config) *string { return &c.Log.Level }),
		"tui.title_lines":      intKey("tui.title_lines", func(c *config.Config) *int { return &c.TUI.TitleLines }),
		"tui.age_thresholds": {
			get: func(c *config.Config) any { return c.TUI.AgeThresholds },
		},
	}
}

// allConfigKeys returns config keys in display order.
func allConfigKeys() []string {
	return []string{
		"version",
		"workspace.name",
		"workspace.description",
		"storage.backend",
		"storage.path",
		"workflow.strict_drag_drop",
		"notifications.max_entries",
		"reminders.schedule",
		"reminders.due_soon",
		"scoring.task_created",
		"scoring.task_completed",
		"scoring.comment_created",
		"scoring.creation_credit",
		"scoring.level_threshold",
		"scoring.badges",
		"activity.max_entries",
		"log.level",
		"tui.title_lines",
		"tui.age_thresholds",
	}
}

func loadConfig() (*config.Config, error) {
	dir, err := resolveDir()
	if err != nil {
		return nil, err
	}
	cfg, err := config.Load(dir)
	if errors.Is(err, config.ErrNotFound) {
		return nil, clierr.Newf(clierr.WorkspaceNotFound, "no opsdesk workspace at %s (run 'opsdesk init')", dir).
			WithDetails(map[string]any{"dir": dir})
	}
	return cfg, err
}

func runConfigShow(_ *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	accessors := configAccessors()

	if outputFormat() == output.FormatJSON {
		m := make(map[string]any, len(accessors))
		for _, key := range allConfigKeys() {
			m[key] = accessors[key].get(cfg)
		}
		return output.JSON(os.Stdout, m)
	}

	// Table mode: key-value pairs.
	for _, key := range allConfigKeys() {
		val := accessors[key].get(cfg)
		fmt.Fprintf(os.Stdout, "%-26s %v\n", key, formatConfigValue(val))
	}
	return nil
}

func runConfigGet(_ *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	key := args[0]
	acc, ok := configAccessors()[key]
	if !ok {
		return clierr.Newf(clierr.InvalidInput, "unknown config key %q", key).
			WithDetails(map[string]any{"allowed": allConfigKeys()})
	}

	val := acc.get(cfg)

	if outputFormat() == output.FormatJSON {
		return output.JSON(os.Stdout, val)
	}

	fmt.Fprintln(os.Stdout, formatConfigValue(val))
	return nil
}

func runConfigSet(_ *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	key, value := args[0], args[1]
	acc, ok := configAccessors()[key]
	if !ok {
		return clierr.Newf(clierr.InvalidInput, "unknown config key %q", key).
			WithDetails(map[string]any{"allowed": allConfigKeys()})
	}
	if !acc.writable {
		return clierr.Newf(clierr.InvalidInput, "config key %q is read-only", key)
	}

	if err := acc.set(cfg, value); err != nil {
		return err
	}

	if err := cfg.Validate(); err != nil {
		return clierr.New(clierr.ValidationError, err.Error())
	}

	if err := cfg.Save(); err != nil {
		return fmt.Errorf("saving config: %w", err)
	}

	if outputFormat() == output.FormatJSON {
		return output.JSON(os.Stdout, map[string]any{"key": key, "value": acc.get(cfg)})
	}

	output.Messagef(os.Stdout, "Set %s = %v", key, formatConfigValue(acc.get(cfg)))
	return nil
}

func formatConfigValue(val any) string {
	switch v := val.(type) {
	case []string:
		return strings.Join(v, ", ")
	case []config.AgeThreshold:
		if len(v) == 0 {
			return "--"
		}
		parts := make([]string, 0, len(v))
		for _, at := range v {
			parts = append(parts, at.After+"="+at.Color)
		}
		return strings.Join(parts, ", ")
	case string:
		if v == "" {
			return "--"
		}
		return v
	default:
		return fmt.Sprintf("%v", v)
	}
}
