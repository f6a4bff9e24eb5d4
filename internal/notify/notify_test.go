package notify

import (
	"errors"
	"fmt"
	"reflect"
	"testing"
	"time"

	"github.com/twiced-technology-gmbh/opsdesk/internal/clierr"
	"github.com/twiced-technology-gmbh/opsdesk/internal/employee"
	"github.com/twiced-technology-gmbh/opsdesk/internal/storage"
)

var (
	erik = employee.Employee{ID: "erik", Role: employee.RoleEmployee}
	tom  = employee.Employee{ID: "tom", Role: employee.RoleHR}
	mona = employee.Employee{ID: "mona", Role: employee.RoleManager}
)

func newTestEmitter(t *testing.T, opts ...Option) *Emitter {
	t.Helper()
	n := 0
	base := []Option{
		WithClock(func() time.Time { return time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC) }),
		WithIDGenerator(func() string {
			n++
			return fmt.Sprintf("n%d", n)
		}),
	}
	return NewEmitter(nil, nil, append(base, opts...)...)
}

func emitAll(t *testing.T, e *Emitter, targets ...string) {
	t.Helper()
	for _, target := range targets {
		if _, err := e.Emit(Notification{Type: TypeTaskCreated, Title: "x", UserID: target}); err != nil {
			t.Fatalf("Emit(%s): %v", target, err)
		}
	}
}

func ids(list []Notification) []string {
	out := make([]string, 0, len(list))
	for _, n := range list {
		out = append(out, n.ID)
	}
	return out
}

func TestEmitter_ListForBroadcastClasses(t *testing.T) {
	e := newTestEmitter(t)
	emitAll(t, e, "erik", TargetAll, TargetHR, TargetEmployee, "mona", "tom")

	tests := []struct {
		user employee.Employee
		want []string
	}{
		{erik, []string{"n1", "n2", "n4"}},
		{tom, []string{"n2", "n3", "n6"}},
		{mona, []string{"n2", "n5"}},
	}
	for _, tt := range tests {
		if got := ids(e.ListFor(tt.user)); !reflect.DeepEqual(got, tt.want) {
			t.Errorf("ListFor(%s) = %v, want %v", tt.user.ID, got, tt.want)
		}
	}
}

func TestEmitter_MarkAllReadIdempotent(t *testing.T) {
	e := newTestEmitter(t)
	emitAll(t, e, "erik", TargetEmployee, "mona")

	changed, err := e.MarkAllRead(erik)
	if err != nil || changed != 2 {
		t.Fatalf("first MarkAllRead = %d, %v", changed, err)
	}
	before := e.All()

	changed, err = e.MarkAllRead(erik)
	if err != nil || changed != 0 {
		t.Fatalf("second MarkAllRead = %d, %v", changed, err)
	}
	if !reflect.DeepEqual(before, e.All()) {
		t.Fatalf("second MarkAllRead changed state")
	}
	if e.UnreadCount(erik) != 0 || e.UnreadCount(mona) != 1 {
		t.Fatalf("unread counts erik=%d mona=%d", e.UnreadCount(erik), e.UnreadCount(mona))
	}
}

func TestEmitter_MarkReadDeleteClear(t *testing.T) {
	e := newTestEmitter(t)
	emitAll(t, e, "erik", "erik")

	if err := e.MarkRead("n1"); err != nil {
		t.Fatalf("MarkRead: %v", err)
	}
	if err := e.MarkRead("nope"); !clierr.Is(err, clierr.NotFound) {
		t.Fatalf("MarkRead unknown: got %v", err)
	}
	if err := e.Delete("n2"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if got := ids(e.All()); !reflect.DeepEqual(got, []string{"n1"}) {
		t.Fatalf("after delete = %v", got)
	}
	if err := e.ClearAll(); err != nil {
		t.Fatalf("ClearAll: %v", err)
	}
	if len(e.All()) != 0 {
		t.Fatalf("ClearAll left entries")
	}
}

func TestEmitter_BoundedLog(t *testing.T) {
	e := newTestEmitter(t, WithMaxEntries(2))
	emitAll(t, e, "erik", "erik", "erik")
	if got := ids(e.All()); !reflect.DeepEqual(got, []string{"n2", "n3"}) {
		t.Fatalf("bounded log = %v, want oldest dropped", got)
	}
}

func TestEmitter_EmitValidatesAndRollsBack(t *testing.T) {
	backend := storage.NewMemory()
	e := NewEmitter(nil, storage.Direct{Backend: backend})

	if _, err := e.Emit(Notification{Type: TypeTaskCreated}); !clierr.Is(err, clierr.ValidationError) {
		t.Fatalf("missing target: got %v", err)
	}

	backend.FailSave = errors.New("disk full")
	if _, err := e.Emit(Notification{Type: TypeTaskCreated, UserID: "erik"}); err == nil {
		t.Fatalf("expected persist error")
	}
	if len(e.All()) != 0 {
		t.Fatalf("failed emit left an entry")
	}
}
