package gamify

import (
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/twiced-technology-gmbh/opsdesk/internal/clierr"
	"github.com/twiced-technology-gmbh/opsdesk/internal/storage"
)

var t0 = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

func TestRecordEvent_PointsLevelsBadges(t *testing.T) {
	s := NewScorer(nil, DefaultPolicy(), nil, func() time.Time { return t0 })

	st, err := s.RecordEvent("erik", EventTaskCreated, Payload{})
	if err != nil {
		t.Fatalf("RecordEvent: %v", err)
	}
	if st.TotalPoints != 10 || st.TasksCreated != 1 || st.Level != 1 {
		t.Fatalf("after create: %+v", st)
	}
	if !reflect.DeepEqual(st.Badges, []string{"first-task"}) {
		t.Fatalf("badges = %v", st.Badges)
	}

	for i := 0; i < 4; i++ {
		if st, err = s.RecordEvent("erik", EventTaskCompleted, Payload{}); err != nil {
			t.Fatalf("RecordEvent: %v", err)
		}
	}
	// 10 + 4*25 = 110 points -> level 2, centurion badge.
	if st.TotalPoints != 110 || st.Level != 2 || st.TasksCompleted != 4 {
		t.Fatalf("after completions: %+v", st)
	}
	if !reflect.DeepEqual(st.Badges, []string{"centurion", "first-task"}) {
		t.Fatalf("badges = %v", st.Badges)
	}

	if _, err := s.RecordEvent("erik", "task_viewed", Payload{}); !clierr.Is(err, clierr.ValidationError) {
		t.Fatalf("unknown event: got %v", err)
	}
}

func TestLevelFormula(t *testing.T) {
	s := NewScorer(nil, DefaultPolicy(), nil, nil)
	tests := map[int]int{0: 1, 99: 1, 100: 2, 250: 3}
	for points, want := range tests {
		if got := s.Level(points); got != want {
			t.Errorf("Level(%d) = %d, want %d", points, got, want)
		}
	}
}

func TestLeaderboardAndRank(t *testing.T) {
	s := NewScorer(nil, DefaultPolicy(), nil, nil)
	record := func(user string, ev Event, at time.Time) {
		t.Helper()
		if _, err := s.RecordEvent(user, ev, Payload{At: at}); err != nil {
			t.Fatalf("RecordEvent: %v", err)
		}
	}
	record("late", EventTaskCompleted, t0.Add(2*time.Hour))
	record("early", EventTaskCompleted, t0.Add(time.Hour))
	record("top", EventTaskCompleted, t0)
	record("top", EventCommentCreated, t0)

	var order []string
	for _, st := range s.Leaderboard() {
		order = append(order, st.UserID)
	}
	if want := []string{"top", "early", "late"}; !reflect.DeepEqual(order, want) {
		t.Fatalf("leaderboard = %v, want %v", order, want)
	}
	if s.Rank("early") != 2 || s.Rank("ghost") != 0 {
		t.Fatalf("Rank early=%d ghost=%d", s.Rank("early"), s.Rank("ghost"))
	}
}

func TestRecordEvent_PersistFailureRollsBack(t *testing.T) {
	backend := storage.NewMemory()
	s := NewScorer(nil, DefaultPolicy(), storage.Direct{Backend: backend}, nil)
	if _, err := s.RecordEvent("erik", EventTaskCreated, Payload{}); err != nil {
		t.Fatalf("RecordEvent: %v", err)
	}

	backend.FailSave = errors.New("disk full")
	if _, err := s.RecordEvent("erik", EventTaskCreated, Payload{}); err == nil {
		t.Fatalf("expected persist error")
	}
	st, _ := s.Stats("erik")
	if st.TotalPoints != 10 {
		t.Fatalf("points after failed persist = %d, want 10", st.TotalPoints)
	}
}

func TestCheckpoint(t *testing.T) {
	s := NewScorer(nil, DefaultPolicy(), nil, nil)
	restore := s.Checkpoint()
	if _, err := s.RecordEvent("erik", EventTaskCreated, Payload{}); err != nil {
		t.Fatalf("RecordEvent: %v", err)
	}
	restore()
	if _, ok := s.Stats("erik"); ok {
		t.Fatalf("stats survived restore")
	}
}
