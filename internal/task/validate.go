package task

import (
	"strings"
	"time"

	"github.com/twiced-technology-gmbh/opsdesk/internal/clierr"
)

// ValidateStatus checks that a status is one of the known statuses.
func ValidateStatus(status Status) error {
	if status.Valid() {
		return nil
	}
	return clierr.Newf(clierr.ValidationError, "invalid status %q", status).
		WithDetails(map[string]any{
			"status":  status,
			"allowed": Statuses,
		})
}

// ValidatePriority checks that a priority is one of the known priorities.
func ValidatePriority(priority Priority) error {
	if priority.Valid() {
		return nil
	}
	return clierr.Newf(clierr.ValidationError, "invalid priority %q", priority).
		WithDetails(map[string]any{
			"priority": priority,
			"allowed":  Priorities,
		})
}

// ValidateTitle rejects blank titles.
func ValidateTitle(title string) error {
	if strings.TrimSpace(title) == "" {
		return clierr.New(clierr.ValidationError, "title is required").
			WithDetails(map[string]any{"field": "title"})
	}
	return nil
}

// ValidateInput checks the required fields and enums of a create request.
func ValidateInput(in Input) error {
	if err := ValidateTitle(in.Title); err != nil {
		return err
	}
	if in.CreatedBy == "" {
		return clierr.New(clierr.ValidationError, "creator is required").
			WithDetails(map[string]any{"field": "created_by"})
	}
	if in.Status != "" {
		if err := ValidateStatus(in.Status); err != nil {
			return err
		}
	}
	if in.Priority != "" {
		if err := ValidatePriority(in.Priority); err != nil {
			return err
		}
	}
	return nil
}

// ValidatePatch checks the fields a patch would set.
func ValidatePatch(p Patch) error {
	if p.Title != nil {
		if err := ValidateTitle(*p.Title); err != nil {
			return err
		}
	}
	if p.Priority != nil {
		if err := ValidatePriority(*p.Priority); err != nil {
			return err
		}
	}
	if p.DueDate != nil && p.ClearDueDate {
		return clierr.New(clierr.InvalidInput, "cannot set and clear the due date together")
	}
	if p.StartDate != nil && p.ClearStartDate {
		return clierr.New(clierr.InvalidInput, "cannot set and clear the start date together")
	}
	return nil
}

// ErrNotFound returns a NOT_FOUND error for a task id.
func ErrNotFound(id string) *clierr.Error {
	return clierr.Newf(clierr.NotFound, "task not found: %s", id).
		WithDetails(map[string]any{"id": id})
}

// ErrAmbiguous returns an INVALID_INPUT error for an id prefix matching several tasks.
func ErrAmbiguous(prefix string, matches []string) *clierr.Error {
	return clierr.Newf(clierr.InvalidInput, "task id %q is ambiguous (%d matches)", prefix, len(matches)).
		WithDetails(map[string]any{
			"input":   prefix,
			"matches": matches,
		})
}

// ErrInvalidTransition returns an INVALID_TRANSITION error.
func ErrInvalidTransition(id string, from, to Status) *clierr.Error {
	return clierr.Newf(clierr.InvalidTransition,
		"task %s cannot move from %s to %s", ShortID(id), from, to).
		WithDetails(map[string]any{
			"id":   id,
			"from": from,
			"to":   to,
		})
}

// ErrConflict returns a CONFLICT error for a stale optimistic update.
func ErrConflict(id string, expected, actual time.Time) *clierr.Error {
	return clierr.Newf(clierr.Conflict,
		"task %s was modified since it was read", ShortID(id)).
		WithDetails(map[string]any{
			"id":       id,
			"expected": expected.Format(time.RFC3339Nano),
			"actual":   actual.Format(time.RFC3339Nano),
		})
}

const shortIDLength = 8

// ShortID returns the display prefix of a task id.
func ShortID(id string) string {
	if len(id) > shortIDLength {
		return id[:shortIDLength]
	}
	return id
}
