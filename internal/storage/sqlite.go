package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

// snapshotRow is one keyed snapshot in the sqlite backend.
type snapshotRow struct {
	Key       string `gorm:"column:snapshot_key;primaryKey"`
	Data      []byte
	UpdatedAt time.Time
}

// TableName pins the table name regardless of gorm's naming strategy.
func (snapshotRow) TableName() string { return "snapshots" }

// SQLite stores snapshots as rows of a single table.
type SQLite struct {
	db *gorm.DB
}

// NewSQLite opens (or creates) the sqlite database at dsn and migrates the schema.
func NewSQLite(dsn string, opts ...Option) (*SQLite, error) {
	if dsn == "" {
		return nil, errors.New("sqlite path is required")
	}
	if err := ensureDirForSQLite(dsn); err != nil {
		return nil, err
	}

	dbLogger := gormLogger{log: newOptions(opts).log, level: logger.Warn, slow: time.Second}

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: dbLogger})
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if err := db.AutoMigrate(&snapshotRow{}); err != nil {
		return nil, fmt.Errorf("migrate db: %w", err)
	}
	return &SQLite{db: db}, nil
}

// Load implements Backend.
func (s *SQLite) Load(ctx context.Context, key string) ([]byte, error) {
	var row snapshotRow
	err := s.db.WithContext(ctx).Where("snapshot_key = ?", key).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load snapshot %s: %w", key, err)
	}
	return row.Data, nil
}

// SaveBatch implements Backend. The batch is applied in one transaction.
func (s *SQLite) SaveBatch(ctx context.Context, snapshots map[string][]byte) error {
	now := time.Now()
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for key, data := range snapshots {
			row := snapshotRow{Key: key, Data: data, UpdatedAt: now}
			err := tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "snapshot_key"}},
				DoUpdates: clause.AssignmentColumns([]string{"data", "updated_at"}),
			}).Create(&row).Error
			if err != nil {
				return fmt.Errorf("save snapshot %s: %w", key, err)
			}
		}
		return nil
	})
}

// Close implements Backend.
func (s *SQLite) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// ensureDirForSQLite creates the parent dir for a SQLite file if needed.
func ensureDirForSQLite(dsn string) error {
	if strings.Contains(dsn, ":memory:") || strings.Contains(dsn, "mode=memory") {
		return nil
	}
	clean := strings.TrimPrefix(dsn, "file:")
	clean = strings.Split(clean, "?")[0]
	dir := filepath.Dir(clean)
	if dir == "." || dir == "" {
		return nil
	}
	if err := os.MkdirAll(dir, dirMode); err != nil {
		return fmt.Errorf("create db dir %q: %w", dir, err)
	}
	return nil
}

// gormLogger routes gorm diagnostics to slog. Record-not-found is expected on
// first load and never logged.
type gormLogger struct {
	log   *slog.Logger
	level logger.LogLevel
	slow  time.Duration
}

// LogMode implements logger.Interface.
func (l gormLogger) LogMode(level logger.LogLevel) logger.Interface {
	l.level = level
	return l
}

// Info implements logger.Interface.
func (l gormLogger) Info(ctx context.Context, msg string, args ...any) {
	if l.level >= logger.Info {
		l.log.InfoContext(ctx, fmt.Sprintf(msg, args...), "component", "sqlite")
	}
}

// Warn implements logger.Interface.
func (l gormLogger) Warn(ctx context.Context, msg string, args ...any) {
	if l.level >= logger.Warn {
		l.log.WarnContext(ctx, fmt.Sprintf(msg, args...), "component", "sqlite")
	}
}

// Error implements logger.Interface.
func (l gormLogger) Error(ctx context.Context, msg string, args ...any) {
	if l.level >= logger.Error {
		l.log.ErrorContext(ctx, fmt.Sprintf(msg, args...), "component", "sqlite")
	}
}

// Trace implements logger.Interface.
func (l gormLogger) Trace(ctx context.Context, begin time.Time, fc func() (string, int64), err error) {
	if l.level <= logger.Silent {
		return
	}
	elapsed := time.Since(begin)
	switch {
	case err != nil && !errors.Is(err, gorm.ErrRecordNotFound) && l.level >= logger.Error:
		sql, rows := fc()
		l.log.ErrorContext(ctx, "sqlite query failed", "component", "sqlite", "sql", sql, "rows", rows, "elapsed", elapsed, "err", err)
	case l.slow > 0 && elapsed > l.slow && l.level >= logger.Warn:
		sql, rows := fc()
		l.log.WarnContext(ctx, "slow sqlite query", "component", "sqlite", "sql", sql, "rows", rows, "elapsed", elapsed)
	case l.level >= logger.Info:
		sql, rows := fc()
		l.log.DebugContext(ctx, "sqlite query", "component", "sqlite", "sql", sql, "rows", rows, "elapsed", elapsed)
	}
}
