package comment

import (
	"fmt"
	"reflect"
	"testing"
	"time"

	"github.com/twiced-technology-gmbh/opsdesk/internal/clierr"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	clock := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	n := 0
	return NewStore(nil, nil,
		WithClock(func() time.Time {
			clock = clock.Add(time.Minute)
			return clock
		}),
		WithIDGenerator(func() string {
			n++
			return fmt.Sprintf("c%d", n)
		}),
	)
}

func TestExtractMentions(t *testing.T) {
	tests := []struct {
		content string
		want    []string
	}{
		{"@mona please check", []string{"mona"}},
		{"cc @erik.van-dam and @mona, also @mona.", []string{"erik.van-dam", "mona"}},
		{"mail me at erik@example.com", []string{}},
		{"no mentions", []string{}},
	}
	for _, tt := range tests {
		if got := ExtractMentions(tt.content); !reflect.DeepEqual(got, tt.want) {
			t.Errorf("ExtractMentions(%q) = %v, want %v", tt.content, got, tt.want)
		}
	}
}

func TestThreadsFlattenReplies(t *testing.T) {
	s := newTestStore(t)
	top, err := s.Add("t1", "erik", "Erik", "first", "")
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	reply, _ := s.Add("t1", "mona", "Mona", "reply", top.ID)
	nested, err := s.Add("t1", "erik", "Erik", "reply to reply", reply.ID)
	if err != nil {
		t.Fatalf("Add nested: %v", err)
	}
	if nested.ParentID != top.ID {
		t.Fatalf("nested parent = %q, want %q", nested.ParentID, top.ID)
	}
	second, _ := s.Add("t1", "mona", "Mona", "second thread", "")
	_, _ = s.Add("t2", "mona", "Mona", "other task", "")

	threads := s.Threads("t1")
	if len(threads) != 2 {
		t.Fatalf("threads = %d, want 2", len(threads))
	}
	if threads[0].Comment.ID != top.ID || len(threads[0].Replies) != 2 {
		t.Fatalf("first thread = %+v", threads[0])
	}
	if threads[1].Comment.ID != second.ID || len(threads[1].Replies) != 0 {
		t.Fatalf("second thread = %+v", threads[1])
	}
}

func TestAddValidation(t *testing.T) {
	s := newTestStore(t)
	if _, err := s.Add("t1", "erik", "Erik", "   ", ""); !clierr.Is(err, clierr.ValidationError) {
		t.Fatalf("empty content: got %v", err)
	}
	if _, err := s.Add("t1", "erik", "Erik", "hi", "missing"); !clierr.Is(err, clierr.NotFound) {
		t.Fatalf("unknown parent: got %v", err)
	}
	other, _ := s.Add("t2", "erik", "Erik", "hi", "")
	if _, err := s.Add("t1", "erik", "Erik", "hi", other.ID); !clierr.Is(err, clierr.ValidationError) {
		t.Fatalf("cross-task parent: got %v", err)
	}
}

func TestEditAndDelete(t *testing.T) {
	s := newTestStore(t)
	top, _ := s.Add("t1", "erik", "Erik", "hello", "")
	_, _ = s.Add("t1", "mona", "Mona", "reply", top.ID)
	keep, _ := s.Add("t1", "mona", "Mona", "separate", "")

	edited, err := s.Edit(top.ID, "hello @mona")
	if err != nil {
		t.Fatalf("Edit: %v", err)
	}
	if !edited.IsEdited || !reflect.DeepEqual(edited.Mentions, []string{"mona"}) {
		t.Fatalf("edit not applied: %+v", edited)
	}
	if !edited.UpdatedAt.After(edited.CreatedAt) {
		t.Fatalf("updatedAt not advanced")
	}
	if _, err := s.Edit("missing", "x"); !clierr.Is(err, clierr.NotFound) {
		t.Fatalf("edit unknown: got %v", err)
	}

	removed, err := s.Delete(top.ID)
	if err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if len(removed) != 2 {
		t.Fatalf("removed = %d, want comment plus reply", len(removed))
	}
	if got := s.ForTask("t1"); len(got) != 1 || got[0].ID != keep.ID {
		t.Fatalf("remaining = %+v", got)
	}

	if _, err := s.DeleteForTask("t1"); err != nil {
		t.Fatalf("DeleteForTask: %v", err)
	}
	if s.Count("t1") != 0 {
		t.Fatalf("task comments not cascaded")
	}
}
