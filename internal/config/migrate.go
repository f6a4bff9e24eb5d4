package config

import "fmt"

// migrate upgrades a config from its current version to CurrentVersion.
// Each migration function transforms the config one version forward.
// Returns nil if no migration is needed (already at current version).
// Returns an error if the config version is newer than what this binary supports.
func migrate(cfg *Config) error {
	if cfg.Version == CurrentVersion {
		return nil
	}
	if cfg.Version > CurrentVersion {
		return fmt.Errorf(
			"%w: config version %d is newer than supported version %d (upgrade opsdesk)",
			ErrInvalid, cfg.Version, CurrentVersion,
		)
	}
	if cfg.Version < 1 {
		return fmt.Errorf("%w: config version %d is invalid", ErrInvalid, cfg.Version)
	}

	for cfg.Version < CurrentVersion {
		fn, ok := migrations[cfg.Version]
		if !ok {
			return fmt.Errorf("%w: no migration path from version %d", ErrInvalid, cfg.Version)
		}
		if err := fn(cfg); err != nil {
			return fmt.Errorf("migrating config from v%d: %w", cfg.Version, err)
		}
	}

	return nil
}

// migrations maps each version to the function that migrates it to the next version.
// The migration function must increment cfg.Version after a successful migration.
var migrations = map[int]func(*Config) error{
	1: migrateV1ToV2,
	2: migrateV2ToV3,
}

// migrateV1ToV2 adds the reminders section and the notification log bound.
func migrateV1ToV2(cfg *Config) error { //nolint:unparam // signature must match migrations map type
	if cfg.Reminders.Schedule == "" {
		cfg.Reminders.Schedule = DefaultReminderSchedule
	}
	if cfg.Reminders.DueSoon == "" {
		cfg.Reminders.DueSoon = DefaultDueSoon
	}
	if cfg.Notifications.MaxEntries == 0 {
		cfg.Notifications.MaxEntries = DefaultMaxNotifications
	}
	cfg.Version = 2
	return nil
}

// migrateV2ToV3 adds configurable badges, the activity bound, and log level.
// v2 configs carried only point values, so a zero table means "use defaults".
func migrateV2ToV3(cfg *Config) error { //nolint:unparam // signature must match migrations map type
	defaults := DefaultScoring()
	if cfg.Scoring.LevelThreshold == 0 {
		cfg.Scoring = defaults
	} else if len(cfg.Scoring.Badges) == 0 {
		cfg.Scoring.Badges = defaults.Badges
	}
	if cfg.Activity.MaxEntries == 0 {
		cfg.Activity.MaxEntries = DefaultMaxActivity
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = DefaultLogLevel
	}
	if cfg.TUI.TitleLines == 0 {
		cfg.TUI.TitleLines = DefaultTitleLines
	}
	cfg.Version = 3
	return nil
}
