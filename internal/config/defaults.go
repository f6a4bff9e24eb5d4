// Package config handles workspace configuration.
package config

import "github.com/twiced-technology-gmbh/opsdesk/internal/gamify"

const (
	// DefaultDir is the workspace directory name looked up from the working directory.
	DefaultDir = ".opsdesk"
	// ConfigFileName is the name of the config file within the workspace directory.
	ConfigFileName = "config.yml"
	// EnvFileName is the optional dotenv file within the workspace directory.
	EnvFileName = ".env"

	// DefaultBackend is the default snapshot backend.
	DefaultBackend = "file"
	// DefaultDataDir is the snapshot directory of the file backend.
	DefaultDataDir = "data"
	// DefaultDBFile is the database file of the sqlite backend.
	DefaultDBFile = "opsdesk.db"

	// DefaultReminderSchedule runs the reminder job every day at 08:00.
	DefaultReminderSchedule = "0 0 8 * * *"
	// DefaultDueSoon is how far ahead a due date triggers a reminder.
	DefaultDueSoon = "48h"

	// DefaultMaxNotifications bounds the notification log.
	DefaultMaxNotifications = 1000
	// DefaultMaxActivity bounds the activity log.
	DefaultMaxActivity = 10000

	// DefaultLogLevel is the slog level used when nothing else is set.
	DefaultLogLevel = "warn"
	// DefaultTitleLines is the default number of title lines in TUI cards.
	DefaultTitleLines = 2

	// CurrentVersion is the current config schema version.
	CurrentVersion = 3
)

// DefaultAgeThresholds colors TUI cards by how long they have sat in their
// current status.
var DefaultAgeThresholds = []AgeThreshold{
	{After: "0s", Color: "242"},   // dim gray (fresh)
	{After: "24h", Color: "34"},   // green
	{After: "72h", Color: "226"},  // yellow
	{After: "168h", Color: "208"}, // orange
	{After: "336h", Color: "196"}, // red (2 weeks)
}

// DefaultScoring mirrors gamify.DefaultPolicy in config form.
func DefaultScoring() ScoringConfig {
	p := gamify.DefaultPolicy()
	return ScoringConfig{
		TaskCreated:    p.Points[gamify.EventTaskCreated],
		TaskCompleted:  p.Points[gamify.EventTaskCompleted],
		CommentCreated: p.Points[gamify.EventCommentCreated],
		CreationCredit: p.CreationCredit,
		LevelThreshold: p.LevelThreshold,
		Badges:         append([]gamify.BadgeRule{}, p.Badges...),
	}
}
