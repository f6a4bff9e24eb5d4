package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"go.yaml.in/yaml/v3"

	"github.com/twiced-technology-gmbh/opsdesk/internal/clierr"
	"github.com/twiced-technology-gmbh/opsdesk/internal/gamify"
)

const (
	fileMode = 0o600
	dirMode  = 0o750
)

// Sentinel errors.
var (
	ErrNotFound = errors.New("no opsdesk workspace found (run 'opsdesk init' to create one)")
	ErrInvalid  = errors.New("invalid config")
)

// Config represents the workspace configuration.
type Config struct {
	Version       int                 `yaml:"version"`
	Workspace     WorkspaceConfig     `yaml:"workspace"`
	Storage       StorageConfig       `yaml:"storage"`
	Workflow      WorkflowConfig      `yaml:"workflow"`
	Notifications NotificationsConfig `yaml:"notifications"`
	Reminders     RemindersConfig     `yaml:"reminders"`
	Scoring       ScoringConfig       `yaml:"scoring"`
	Activity      ActivityConfig      `yaml:"activity"`
	Log           LogConfig           `yaml:"log"`
	TUI           TUIConfig           `yaml:"tui,omitempty"`

	// dir is the absolute path to the workspace directory (not serialized).
	dir string `yaml:"-"`
}

// WorkspaceConfig holds workspace metadata.
type WorkspaceConfig struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description,omitempty"`
}

// StorageConfig selects the snapshot backend.
type StorageConfig struct {
	Backend string `yaml:"backend"`
	// Path is relative to the workspace directory unless absolute.
	Path string `yaml:"path,omitempty"`
}

// WorkflowConfig tunes the workflow controller.
type WorkflowConfig struct {
	// StrictDragDrop requires the review gate for drag-and-drop moves out of
	// review or into completed.
	StrictDragDrop bool `yaml:"strict_drag_drop"`
}

// NotificationsConfig bounds the notification log.
type NotificationsConfig struct {
	MaxEntries int `yaml:"max_entries"`
}

// RemindersConfig drives the due-date reminder job.
type RemindersConfig struct {
	Schedule string `yaml:"schedule"`
	DueSoon  string `yaml:"due_soon"`
}

// ScoringConfig is the gamification points table.
type ScoringConfig struct {
	TaskCreated    int                `yaml:"task_created"`
	TaskCompleted  int                `yaml:"task_completed"`
	CommentCreated int                `yaml:"comment_created"`
	CreationCredit int                `yaml:"creation_credit"`
	LevelThreshold int                `yaml:"level_threshold"`
	Badges         []gamify.BadgeRule `yaml:"badges,omitempty"`
}

// ActivityConfig bounds the activity log.
type ActivityConfig struct {
	MaxEntries int `yaml:"max_entries"`
}

// LogConfig sets the diagnostic log level.
type LogConfig struct {
	Level string `yaml:"level"`
}

// AgeThreshold maps a duration threshold to an ANSI color code.
type AgeThreshold struct {
	After string `yaml:"after" json:"after"` // duration string, e.g. "1h", "24h"
	Color string `yaml:"color" json:"color"` // ANSI 256 color code, e.g. "34", "196"
}

// TUIConfig holds TUI-specific display settings.
type TUIConfig struct {
	TitleLines    int            `yaml:"title_lines,omitempty"`
	AgeThresholds []AgeThreshold `yaml:"age_thresholds,omitempty"`
}

// NewDefault creates a Config with default values.
func NewDefault(name string) *Config {
	return &Config{
		Version:       CurrentVersion,
		Workspace:     WorkspaceConfig{Name: name},
		Storage:       StorageConfig{Backend: DefaultBackend, Path: DefaultDataDir},
		Notifications: NotificationsConfig{MaxEntries: DefaultMaxNotifications},
		Reminders:     RemindersConfig{Schedule: DefaultReminderSchedule, DueSoon: DefaultDueSoon},
		Scoring:       DefaultScoring(),
		Activity:      ActivityConfig{MaxEntries: DefaultMaxActivity},
		Log:           LogConfig{Level: DefaultLogLevel},
		TUI: TUIConfig{
			TitleLines:    DefaultTitleLines,
			AgeThresholds: append([]AgeThreshold{}, DefaultAgeThresholds...),
		},
	}
}

// Dir returns the absolute path to the workspace directory.
func (c *Config) Dir() string {
	return c.dir
}

// SetDir sets the workspace directory path on the config.
func (c *Config) SetDir(dir string) {
	c.dir = dir
}

// ConfigPath returns the absolute path to the config file.
func (c *Config) ConfigPath() string {
	return filepath.Join(c.dir, ConfigFileName)
}

// EnvPath returns the absolute path to the optional .env file.
func (c *Config) EnvPath() string {
	return filepath.Join(c.dir, EnvFileName)
}

// StoragePath returns the absolute location of the snapshot backend.
func (c *Config) StoragePath() string {
	p := c.Storage.Path
	if p == "" {
		p = DefaultDataDir
		if c.Storage.Backend == "sqlite" {
			p = DefaultDBFile
		}
	}
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(c.dir, p)
}

// DueSoonDuration parses reminders.due_soon, falling back to the default.
func (c *Config) DueSoonDuration() time.Duration {
	d, err := time.ParseDuration(c.Reminders.DueSoon)
	if err != nil {
		d, _ = time.ParseDuration(DefaultDueSoon)
	}
	return d
}

// ScoringPolicy converts the scoring table into a gamify policy.
func (c *Config) ScoringPolicy() gamify.Policy {
	s := c.Scoring
	return gamify.Policy{
		Points: map[gamify.Event]int{
			gamify.EventTaskCreated:    s.TaskCreated,
			gamify.EventTaskCompleted:  s.TaskCompleted,
			gamify.EventCommentCreated: s.CommentCreated,
		},
		CreationCredit: s.CreationCredit,
		LevelThreshold: s.LevelThreshold,
		Badges:         append([]gamify.BadgeRule{}, s.Badges...),
	}
}

// LogLevel parses log.level into a slog level.
func (c *Config) LogLevel() slog.Level {
	lvl, err := ParseLogLevel(c.Log.Level)
	if err != nil {
		return slog.LevelWarn
	}
	return lvl
}

// ParseLogLevel parses debug, info, warn, or error.
func ParseLogLevel(s string) (slog.Level, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(strings.TrimSpace(s))); err != nil {
		return slog.LevelWarn, fmt.Errorf("invalid log level %q", s)
	}
	return lvl, nil
}

// TitleLines returns the configured number of title lines for TUI cards.
func (c *Config) TitleLines() int {
	if c.TUI.TitleLines == 0 {
		return DefaultTitleLines
	}
	return c.TUI.TitleLines
}

// AgeColor is a parsed age threshold.
type AgeColor struct {
	After time.Duration
	Color string
}

// AgeThresholdsDuration returns the parsed age thresholds in configured order.
// Returns DefaultAgeThresholds parsed if none are configured.
func (c *Config) AgeThresholdsDuration() []AgeColor {
	thresholds := c.TUI.AgeThresholds
	if len(thresholds) == 0 {
		thresholds = DefaultAgeThresholds
	}
	result := make([]AgeColor, 0, len(thresholds))
	for _, at := range thresholds {
		d, err := time.ParseDuration(at.After)
		if err != nil {
			continue
		}
		result = append(result, AgeColor{After: d, Color: at.Color})
	}
	return result
}

// Validate checks the config for errors.
func (c *Config) Validate() error {
	if c.Version != CurrentVersion {
		return fmt.Errorf("%w: unsupported version %d (expected %d)", ErrInvalid, c.Version, CurrentVersion)
	}
	if c.Workspace.Name == "" {
		return fmt.Errorf("%w: workspace.name is required", ErrInvalid)
	}
	switch c.Storage.Backend {
	case "file", "sqlite":
	default:
		return fmt.Errorf("%w: storage.backend must be file or sqlite, got %q", ErrInvalid, c.Storage.Backend)
	}
	if c.Notifications.MaxEntries < 1 {
		return fmt.Errorf("%w: notifications.max_entries must be >= 1", ErrInvalid)
	}
	if c.Activity.MaxEntries < 1 {
		return fmt.Errorf("%w: activity.max_entries must be >= 1", ErrInvalid)
	}
	if _, err := ParseLogLevel(c.Log.Level); err != nil {
		return fmt.Errorf("%w: log.level: %w", ErrInvalid, err)
	}
	if err := c.validateReminders(); err != nil {
		return err
	}
	if err := c.validateScoring(); err != nil {
		return err
	}
	return c.validateTUI()
}

func (c *Config) validateReminders() error {
	parser := cron.NewParser(cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	if _, err := parser.Parse(c.Reminders.Schedule); err != nil {
		return fmt.Errorf("%w: invalid reminders.schedule %q: %w", ErrInvalid, c.Reminders.Schedule, err)
	}
	d, err := time.ParseDuration(c.Reminders.DueSoon)
	if err != nil {
		return fmt.Errorf("%w: invalid reminders.due_soon %q: %w", ErrInvalid, c.Reminders.DueSoon, err)
	}
	if d < 0 {
		return fmt.Errorf("%w: reminders.due_soon must not be negative", ErrInvalid)
	}
	return nil
}

func (c *Config) validateScoring() error {
	s := c.Scoring
	if s.TaskCreated < 0 || s.TaskCompleted < 0 || s.CommentCreated < 0 || s.CreationCredit < 0 {
		return fmt.Errorf("%w: scoring values must be >= 0", ErrInvalid)
	}
	if s.LevelThreshold < 1 {
		return fmt.Errorf("%w: scoring.level_threshold must be >= 1", ErrInvalid)
	}
	seen := make(map[string]bool, len(s.Badges))
	for i, b := range s.Badges {
		if b.Name == "" {
			return fmt.Errorf("%w: scoring.badges[%d].name is required", ErrInvalid, i)
		}
		if seen[b.Name] {
			return fmt.Errorf("%w: duplicate badge %q", ErrInvalid, b.Name)
		}
		seen[b.Name] = true
		switch b.Metric {
		case gamify.MetricPoints, gamify.MetricLevel, gamify.MetricTasksCreated,
			gamify.MetricTasksCompleted, gamify.MetricCommentsCreated:
		default:
			return fmt.Errorf("%w: badge %q has unknown metric %q", ErrInvalid, b.Name, b.Metric)
		}
	}
	return nil
}

func (c *Config) validateTUI() error {
	const minTitleLines, maxTitleLines = 1, 3
	if c.TUI.TitleLines < minTitleLines || c.TUI.TitleLines > maxTitleLines {
		return fmt.Errorf("%w: tui.title_lines must be between %d and %d",
			ErrInvalid, minTitleLines, maxTitleLines)
	}
	for i, at := range c.TUI.AgeThresholds {
		if _, err := time.ParseDuration(at.After); err != nil {
			return fmt.Errorf("%w: tui.age_thresholds[%d].after %q: %w", ErrInvalid, i, at.After, err)
		}
		if at.Color == "" {
			return fmt.Errorf("%w: tui.age_thresholds[%d].color is required", ErrInvalid, i)
		}
	}
	return nil
}

// Init creates a new workspace in the given directory with default settings.
func Init(dir, name string) (*Config, error) {
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolving path: %w", err)
	}
	if _, err := os.Stat(filepath.Join(absDir, ConfigFileName)); err == nil {
		return nil, clierr.Newf(clierr.WorkspaceExists, "workspace already exists at %s", absDir).
			WithDetails(map[string]any{"dir": absDir})
	}

	cfg := NewDefault(name)
	cfg.SetDir(absDir)

	if err := os.MkdirAll(absDir, dirMode); err != nil {
		return nil, fmt.Errorf("creating workspace directory: %w", err)
	}
	if err := cfg.Save(); err != nil {
		return nil, fmt.Errorf("writing config: %w", err)
	}
	return cfg, nil
}

// Save writes the config to its config file.
func (c *Config) Save() error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	return os.WriteFile(c.ConfigPath(), data, fileMode)
}

// Load reads and validates a config from the given workspace directory.
func Load(dir string) (*Config, error) {
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolving path: %w", err)
	}

	path := filepath.Join(absDir, ConfigFileName)
	data, err := os.ReadFile(path) //nolint:gosec // config path from trusted source
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("reading config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	cfg.dir = absDir

	// Migrate old config versions forward before validating.
	oldVersion := cfg.Version
	if err := migrate(&cfg); err != nil {
		return nil, err
	}

	// Persist migrated config so future loads skip re-migration.
	if cfg.Version != oldVersion {
		if err := cfg.Save(); err != nil {
			return nil, fmt.Errorf("saving migrated config: %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// FindDir walks upward from startDir looking for a workspace directory
// containing config.yml. Returns the absolute path to the workspace directory.
func FindDir(startDir string) (string, error) {
	absStart, err := filepath.Abs(startDir)
	if err != nil {
		return "", fmt.Errorf("resolving path: %w", err)
	}

	dir := absStart
	for {
		candidate := filepath.Join(dir, DefaultDir, ConfigFileName)
		if _, err := os.Stat(candidate); err == nil {
			return filepath.Join(dir, DefaultDir), nil
		}

		// Also check if we're inside the workspace directory itself.
		candidate = filepath.Join(dir, ConfigFileName)
		if _, err := os.Stat(candidate); err == nil {
			return dir, nil
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return "", clierr.New(clierr.WorkspaceNotFound,
				"no opsdesk workspace found (run 'opsdesk init' to create one)")
		}
		dir = parent
	}
}
