package task

import (
	"errors"
	"fmt"
	"reflect"
	"testing"
	"time"

	"github.com/twiced-technology-gmbh/opsdesk/internal/clierr"
	"github.com/twiced-technology-gmbh/opsdesk/internal/date"
	"github.com/twiced-technology-gmbh/opsdesk/internal/storage"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time { return c.t }

func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

type recordingSink struct {
	puts int
	fail error
}

func (r *recordingSink) Put(string, any) error {
	if r.fail != nil {
		return r.fail
	}
	r.puts++
	return nil
}

func newTestStore(t *testing.T, sink storage.Sink) (*Store, *fakeClock) {
	t.Helper()
	clock := &fakeClock{t: time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)}
	n := 0
	s := NewStore(nil, sink,
		WithClock(clock.Now),
		WithIDGenerator(func() string {
			n++
			return fmt.Sprintf("task-%04d", n)
		}),
	)
	return s, clock
}

func TestStore_CreateThenListRoundTrip(t *testing.T) {
	sink := &recordingSink{}
	s, clock := newTestStore(t, sink)

	due := date.New(2026, 3, 10)
	in := Input{
		Title:       "Onboard new hire",
		Description: "Laptop, badge, accounts",
		Priority:    PriorityHigh,
		AssignedTo:  "erik",
		CreatedBy:   "mona",
		DueDate:     &due,
		Attachments: []string{"checklist.pdf", "contract.pdf"},
	}
	created, err := s.Create(in)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	list := s.List()
	if len(list) != 1 {
		t.Fatalf("List len = %d, want 1", len(list))
	}
	got := list[0]
	if got.ID != created.ID || got.ID == "" {
		t.Fatalf("id mismatch: %q vs %q", got.ID, created.ID)
	}
	if got.Title != in.Title || got.Description != in.Description || got.Priority != in.Priority ||
		got.AssignedTo != in.AssignedTo || got.CreatedBy != in.CreatedBy {
		t.Fatalf("fields not preserved: %+v", got)
	}
	if got.DueDate == nil || got.DueDate.String() != "2026-03-10" {
		t.Fatalf("due date = %v", got.DueDate)
	}
	if !reflect.DeepEqual(got.Attachments, in.Attachments) {
		t.Fatalf("attachments = %v", got.Attachments)
	}
	if got.Status != StatusTodo {
		t.Fatalf("status = %s, want todo", got.Status)
	}
	if !got.CreatedAt.Equal(clock.t) || !got.UpdatedAt.Equal(got.CreatedAt) {
		t.Fatalf("timestamps = %v / %v", got.CreatedAt, got.UpdatedAt)
	}
	if sink.puts != 1 {
		t.Fatalf("puts = %d, want 1", sink.puts)
	}

	// The returned slices are copies.
	list[0].Attachments[0] = "mutated"
	if again, _ := s.Get(created.ID); again.Attachments[0] != "checklist.pdf" {
		t.Fatalf("List leaked internal state")
	}
}

func TestStore_CreateValidates(t *testing.T) {
	s, _ := newTestStore(t, nil)
	tests := []struct {
		name string
		in   Input
	}{
		{"blank title", Input{Title: "  ", CreatedBy: "mona"}},
		{"no creator", Input{Title: "x"}},
		{"bad status", Input{Title: "x", CreatedBy: "mona", Status: "archived"}},
		{"bad priority", Input{Title: "x", CreatedBy: "mona", Priority: "critical"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := s.Create(tt.in); !clierr.Is(err, clierr.ValidationError) {
				t.Fatalf("got %v, want VALIDATION_ERROR", err)
			}
		})
	}
	if s.Len() != 0 {
		t.Fatalf("invalid input must not insert")
	}
}

func TestStore_GuardedTransitions(t *testing.T) {
	allowed := map[[2]Status]bool{
		{StatusTodo, StatusInProgress}:   true,
		{StatusInProgress, StatusReview}: true,
		{StatusReview, StatusCompleted}:  true,
		{StatusReview, StatusInProgress}: true,
	}
	for _, from := range Statuses {
		for _, to := range Statuses {
			name := fmt.Sprintf("%s->%s", from, to)
			t.Run(name, func(t *testing.T) {
				s, _ := newTestStore(t, nil)
				created, err := s.Create(Input{Title: "t", CreatedBy: "u", Status: from})
				if err != nil {
					t.Fatalf("Create: %v", err)
				}
				got, err := s.SetStatus(created.ID, to, "u")
				if allowed[[2]Status{from, to}] {
					if err != nil {
						t.Fatalf("SetStatus: %v", err)
					}
					if got.Status != to {
						t.Fatalf("status = %s", got.Status)
					}
					return
				}
				if !clierr.Is(err, clierr.InvalidTransition) {
					t.Fatalf("got %v, want INVALID_TRANSITION", err)
				}
				if unchanged, _ := s.Get(created.ID); unchanged.Status != from || len(unchanged.History) != 0 {
					t.Fatalf("failed transition mutated task: %+v", unchanged)
				}
			})
		}
	}
}

func TestStore_ApplyAndHistory(t *testing.T) {
	s, clock := newTestStore(t, nil)
	created, _ := s.Create(Input{Title: "t", CreatedBy: "erik"})

	clock.Advance(time.Hour)
	started, err := s.Apply(created.ID, ActionStartWork, "erik")
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if started.StartedAt == nil || !started.StartedAt.Equal(clock.t) {
		t.Fatalf("StartedAt = %v", started.StartedAt)
	}

	if _, err := s.Apply(created.ID, ActionApprove, "mona"); !clierr.Is(err, clierr.InvalidTransition) {
		t.Fatalf("approve from in_progress: got %v", err)
	}

	clock.Advance(time.Hour)
	if _, err := s.Apply(created.ID, ActionSubmitForReview, "erik"); err != nil {
		t.Fatalf("review: %v", err)
	}
	clock.Advance(time.Hour)
	done, err := s.Apply(created.ID, ActionApprove, "mona")
	if err != nil {
		t.Fatalf("approve: %v", err)
	}
	if done.CompletedAt == nil || done.Completions() != 1 {
		t.Fatalf("completion not recorded: %+v", done)
	}
	wantActions := []Action{ActionStartWork, ActionSubmitForReview, ActionApprove}
	for i, tr := range done.History {
		if tr.Action != wantActions[i] {
			t.Fatalf("history[%d] = %s, want %s", i, tr.Action, wantActions[i])
		}
	}
	if done.History[2].By != "mona" {
		t.Fatalf("approver not recorded")
	}
}

func TestStore_ForceStatusBypassesGate(t *testing.T) {
	s, _ := newTestStore(t, nil)
	created, _ := s.Create(Input{Title: "t", CreatedBy: "u"})

	done, err := s.ForceStatus(created.ID, StatusCompleted, "u")
	if err != nil {
		t.Fatalf("ForceStatus: %v", err)
	}
	if done.Status != StatusCompleted || done.History[0].Action != ActionForce {
		t.Fatalf("force not recorded: %+v", done.History)
	}
	if done.StartedAt == nil || done.CompletedAt == nil {
		t.Fatalf("direct completion should set both timestamps")
	}

	reopened, err := s.ForceStatus(created.ID, StatusInProgress, "u")
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	if reopened.CompletedAt != nil {
		t.Fatalf("reopen should clear CompletedAt")
	}

	same, err := s.ForceStatus(created.ID, StatusInProgress, "u")
	if err != nil || len(same.History) != 2 {
		t.Fatalf("same-status force should be a no-op, history=%d err=%v", len(same.History), err)
	}
	if _, err := s.ForceStatus(created.ID, "archived", "u"); !clierr.Is(err, clierr.ValidationError) {
		t.Fatalf("unknown status: got %v", err)
	}
}

func TestStore_UpdateMergesAndStamps(t *testing.T) {
	s, clock := newTestStore(t, nil)
	created, _ := s.Create(Input{Title: "t", CreatedBy: "u", Attachments: []string{"a.pdf"}})

	clock.Advance(time.Minute)
	title := "renamed"
	got, err := s.Update(created.ID, Patch{
		Title:             &title,
		AddAttachments:    []string{"b.pdf", "a.pdf"},
		RemoveAttachments: []string{"a.pdf"},
	})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if got.Title != "renamed" || !reflect.DeepEqual(got.Attachments, []string{"b.pdf"}) {
		t.Fatalf("patch not applied: %+v", got)
	}
	if !got.UpdatedAt.After(got.CreatedAt) {
		t.Fatalf("updated_at not stamped")
	}

	// A clock running backwards never moves updated_at back.
	clock.Advance(-time.Hour)
	desc := "x"
	again, err := s.Update(created.ID, Patch{Description: &desc})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if again.UpdatedAt.Before(got.UpdatedAt) {
		t.Fatalf("updated_at decreased: %v < %v", again.UpdatedAt, got.UpdatedAt)
	}

	if _, err := s.Update("missing", Patch{Title: &title}); !clierr.Is(err, clierr.NotFound) {
		t.Fatalf("unknown id: got %v", err)
	}
}

func TestStore_UpdateIfUpdatedAt(t *testing.T) {
	s, clock := newTestStore(t, nil)
	created, _ := s.Create(Input{Title: "t", CreatedBy: "u"})
	stale := created.UpdatedAt

	clock.Advance(time.Second)
	desc := "first writer"
	if _, err := s.Update(created.ID, Patch{Description: &desc, IfUpdatedAt: &stale}); err != nil {
		t.Fatalf("first CAS update: %v", err)
	}
	desc2 := "second writer"
	_, err := s.Update(created.ID, Patch{Description: &desc2, IfUpdatedAt: &stale})
	if !clierr.Is(err, clierr.Conflict) {
		t.Fatalf("stale CAS update: got %v, want CONFLICT", err)
	}
	if got, _ := s.Get(created.ID); got.Description != "first writer" {
		t.Fatalf("conflicting update applied: %q", got.Description)
	}
}

func TestStore_DeleteAndResolve(t *testing.T) {
	s, _ := newTestStore(t, nil)
	a, _ := s.Create(Input{Title: "a", CreatedBy: "u"})
	b, _ := s.Create(Input{Title: "b", CreatedBy: "u"})

	if _, err := s.Resolve("task-000"); !clierr.Is(err, clierr.InvalidInput) {
		t.Fatalf("ambiguous prefix: got %v", err)
	}
	if got, err := s.Resolve("task-0002"); err != nil || got.ID != b.ID {
		t.Fatalf("Resolve exact = %v, %v", got.ID, err)
	}

	if err := s.Delete(a.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := s.Delete(a.ID); !clierr.Is(err, clierr.NotFound) {
		t.Fatalf("second delete: got %v", err)
	}
	if got, err := s.Resolve("task-000"); err != nil || got.ID != b.ID {
		t.Fatalf("prefix now unique: %v, %v", got.ID, err)
	}
}

func TestStore_SinkFailureLeavesStateUnchanged(t *testing.T) {
	sink := &recordingSink{}
	s, _ := newTestStore(t, sink)
	created, _ := s.Create(Input{Title: "t", CreatedBy: "u"})

	sink.fail = errors.New("disk full")
	if _, err := s.Apply(created.ID, ActionStartWork, "u"); err == nil {
		t.Fatalf("expected sink error")
	}
	if _, err := s.Create(Input{Title: "u", CreatedBy: "u"}); err == nil {
		t.Fatalf("expected sink error")
	}
	if err := s.Delete(created.ID); err == nil {
		t.Fatalf("expected sink error")
	}
	got, err := s.Get(created.ID)
	if err != nil || got.Status != StatusTodo || s.Len() != 1 {
		t.Fatalf("state changed after failed persist: %+v (len %d, err %v)", got, s.Len(), err)
	}
}

func TestStore_CheckpointRestore(t *testing.T) {
	s, _ := newTestStore(t, nil)
	created, _ := s.Create(Input{Title: "t", CreatedBy: "u"})

	restore := s.Checkpoint()
	if _, err := s.Apply(created.ID, ActionStartWork, "u"); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if _, err := s.Create(Input{Title: "second", CreatedBy: "u"}); err != nil {
		t.Fatalf("Create: %v", err)
	}
	restore()

	if s.Len() != 1 {
		t.Fatalf("Len after restore = %d", s.Len())
	}
	if got, _ := s.Get(created.ID); got.Status != StatusTodo {
		t.Fatalf("status after restore = %s", got.Status)
	}
}
