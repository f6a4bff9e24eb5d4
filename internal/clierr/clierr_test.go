package clierr

import (
	"errors"
	"fmt"
	"testing"
)

func TestCodeOf_UnwrapsChain(t *testing.T) {
	base := Newf(NotFound, "task not found: %s", "abc")
	wrapped := fmt.Errorf("deleting: %w", base)

	if got := CodeOf(wrapped); got != NotFound {
		t.Fatalf("CodeOf = %q, want %q", got, NotFound)
	}
	if !Is(wrapped, NotFound) {
		t.Fatalf("Is(wrapped, NotFound) = false")
	}
	if Is(wrapped, PermissionDenied) {
		t.Fatalf("Is(wrapped, PermissionDenied) = true")
	}
	if CodeOf(errors.New("plain")) != "" {
		t.Fatalf("plain error should have no code")
	}
	if Is(nil, NotFound) {
		t.Fatalf("nil error should not match")
	}
}

func TestExitCode(t *testing.T) {
	if got := New(InternalError, "boom").ExitCode(); got != 2 {
		t.Fatalf("internal exit code = %d, want 2", got)
	}
	if got := New(ValidationError, "bad").ExitCode(); got != 1 {
		t.Fatalf("validation exit code = %d, want 1", got)
	}
}
