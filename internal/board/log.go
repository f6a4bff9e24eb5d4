package board

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

const (
	// LogFileName is the activity log inside the workspace directory.
	LogFileName = "activity.jsonl"

	logFileMode          = 0o600
	defaultMaxLogEntries = 10000 // truncate oldest entries when log exceeds this size
)

// LogEntry represents a single activity log entry.
type LogEntry struct {
	Timestamp time.Time `json:"timestamp"`
	Action    string    `json:"action"`
	TaskID    string    `json:"task_id,omitempty"`
	Actor     string    `json:"actor,omitempty"`
	Detail    string    `json:"detail"`
}

// ActivityLog is the append-only audit trail of workflow mutations.
type ActivityLog struct {
	mu   sync.Mutex
	path string
	max  int
}

// NewActivityLog returns the log stored in dir, keeping at most max entries.
func NewActivityLog(dir string, max int) *ActivityLog {
	if max <= 0 {
		max = defaultMaxLogEntries
	}
	return &ActivityLog{path: filepath.Join(dir, LogFileName), max: max}
}

// Path returns the log file path.
func (l *ActivityLog) Path() string { return l.path }

// Append appends a log entry. If the log exceeds its bound, the oldest
// entries are truncated.
func (l *ActivityLog) Append(entry LogEntry) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now()
	}

	f, err := os.OpenFile(l.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, logFileMode) //nolint:gosec // log path from trusted workspace dir
	if err != nil {
		return fmt.Errorf("opening log file: %w", err)
	}
	defer f.Close()

	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshaling log entry: %w", err)
	}

	if _, err := f.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("writing log entry: %w", err)
	}

	// Truncate if needed (best-effort; errors are non-fatal).
	_ = l.truncateIfNeeded()

	return nil
}

// Read returns the newest limit entries, oldest first. limit <= 0 returns all.
// Malformed lines are skipped.
func (l *ActivityLog) Read(limit int) ([]LogEntry, error) {
	lines, err := readLines(l.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	entries := make([]LogEntry, 0, len(lines))
	for _, line := range lines {
		var e LogEntry
		if json.Unmarshal([]byte(line), &e) == nil {
			entries = append(entries, e)
		}
	}
	if limit > 0 && len(entries) > limit {
		entries = entries[len(entries)-limit:]
	}
	return entries, nil
}

// truncateIfNeeded rewrites the file keeping only the most recent entries.
func (l *ActivityLog) truncateIfNeeded() error {
	lines, err := readLines(l.path)
	if err != nil {
		return err
	}
	if len(lines) <= l.max {
		return nil
	}

	lines = lines[len(lines)-l.max:]

	var buf strings.Builder
	for _, line := range lines {
		buf.WriteString(line)
		buf.WriteByte('\n')
	}

	return os.WriteFile(l.path, []byte(buf.String()), logFileMode)
}

func readLines(path string) ([]string, error) {
	f, err := os.Open(path) //nolint:gosec // trusted path
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var lines []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	return lines, scanner.Err()
}
