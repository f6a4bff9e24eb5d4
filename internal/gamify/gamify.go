// Package gamify keeps per-user workflow scores: points, level, badges, and
// activity counters.
package gamify

import (
	"fmt"
	"slices"
	"sort"
	"time"

	"github.com/twiced-technology-gmbh/opsdesk/internal/clierr"
	"github.com/twiced-technology-gmbh/opsdesk/internal/storage"
)

// Event is a scored workflow event.
type Event string

// Scored events.
const (
	EventTaskCreated    Event = "task_created"
	EventTaskCompleted  Event = "task_completed"
	EventCommentCreated Event = "comment_created"
)

// Metrics a badge rule can test.
const (
	MetricPoints          = "points"
	MetricLevel           = "level"
	MetricTasksCreated    = "tasks_created"
	MetricTasksCompleted  = "tasks_completed"
	MetricCommentsCreated = "comments_created"
)

// BadgeRule awards Name once Metric reaches Min.
type BadgeRule struct {
	Name   string `yaml:"name" json:"name"`
	Metric string `yaml:"metric" json:"metric"`
	Min    int    `yaml:"min" json:"min"`
}

// Policy is the scoring table.
type Policy struct {
	Points         map[Event]int
	CreationCredit int
	LevelThreshold int
	Badges         []BadgeRule
}

// DefaultPolicy returns the built-in scoring table.
func DefaultPolicy() Policy {
	return Policy{
		Points: map[Event]int{
			EventTaskCreated:    10,
			EventTaskCompleted:  25,
			EventCommentCreated: 5,
		},
		CreationCredit: 1,
		LevelThreshold: 100,
		Badges: []BadgeRule{
			{Name: "first-task", Metric: MetricTasksCreated, Min: 1},
			{Name: "closer", Metric: MetricTasksCompleted, Min: 10},
			{Name: "conversationalist", Metric: MetricCommentsCreated, Min: 25},
			{Name: "centurion", Metric: MetricPoints, Min: 100},
		},
	}
}

// Stats is one user's cumulative score.
type Stats struct {
	UserID          string    `json:"userId"`
	TotalPoints     int       `json:"totalPoints"`
	Level           int       `json:"level"`
	Badges          []string  `json:"badges"`
	TasksCreated    int       `json:"tasksCreated"`
	TasksCompleted  int       `json:"tasksCompleted"`
	CommentsCreated int       `json:"commentsCreated"`
	LastActivity    time.Time `json:"lastActivity"`
}

func (s Stats) clone() Stats {
	s.Badges = slices.Clone(s.Badges)
	return s
}

func (s Stats) metric(name string) int {
	switch name {
	case MetricPoints:
		return s.TotalPoints
	case MetricLevel:
		return s.Level
	case MetricTasksCreated:
		return s.TasksCreated
	case MetricTasksCompleted:
		return s.TasksCompleted
	case MetricCommentsCreated:
		return s.CommentsCreated
	}
	return 0
}

// Payload carries optional event details.
type Payload struct {
	TaskID string
	At     time.Time
}

// Scorer owns every user's stats.
type Scorer struct {
	stats  []Stats
	policy Policy
	sink   storage.Sink
	now    func() time.Time
}

// NewScorer returns a scorer seeded with a loaded snapshot.
func NewScorer(stats []Stats, policy Policy, sink storage.Sink, now func() time.Time) *Scorer {
	if sink == nil {
		sink = storage.Discard{}
	}
	if now == nil {
		now = time.Now
	}
	if policy.LevelThreshold <= 0 {
		policy.LevelThreshold = DefaultPolicy().LevelThreshold
	}
	s := &Scorer{policy: policy, sink: sink, now: now}
	for _, st := range stats {
		s.stats = append(s.stats, st.clone())
	}
	return s
}

// Level returns the level reached with points.
func (s *Scorer) Level(points int) int {
	return points/s.policy.LevelThreshold + 1
}

// RecordEvent applies an event to a user's stats and returns the result.
func (s *Scorer) RecordEvent(userID string, event Event, p Payload) (Stats, error) {
	if userID == "" {
		return Stats{}, clierr.New(clierr.ValidationError, "user id is required")
	}
	points, ok := s.policy.Points[event]
	if !ok {
		return Stats{}, clierr.Newf(clierr.ValidationError, "unknown gamification event %q", event).
			WithDetails(map[string]any{"event": event})
	}

	i := slices.IndexFunc(s.stats, func(st Stats) bool { return st.UserID == userID })
	var st Stats
	if i >= 0 {
		st = s.stats[i].clone()
	} else {
		st = Stats{UserID: userID, Level: 1, Badges: []string{}}
	}

	st.TotalPoints += points
	switch event {
	case EventTaskCreated:
		st.TasksCreated += s.policy.CreationCredit
	case EventTaskCompleted:
		st.TasksCompleted++
	case EventCommentCreated:
		st.CommentsCreated++
	}
	st.Level = s.Level(st.TotalPoints)
	at := p.At
	if at.IsZero() {
		at = s.now()
	}
	if at.After(st.LastActivity) {
		st.LastActivity = at
	}
	s.awardBadges(&st)

	prev := s.stats
	next := slices.Clone(s.stats)
	if i >= 0 {
		next[i] = st
	} else {
		next = append(next, st)
	}
	s.stats = next
	if err := s.sink.Put(storage.KeyStats, s.stats); err != nil {
		s.stats = prev
		return Stats{}, fmt.Errorf("recording %s for %s: %w", event, userID, err)
	}
	return st.clone(), nil
}

func (s *Scorer) awardBadges(st *Stats) {
	for _, rule := range s.policy.Badges {
		if st.metric(rule.Metric) >= rule.Min && !slices.Contains(st.Badges, rule.Name) {
			st.Badges = append(st.Badges, rule.Name)
		}
	}
	sort.Strings(st.Badges)
}

// Stats returns a user's stats.
func (s *Scorer) Stats(userID string) (Stats, bool) {
	i := slices.IndexFunc(s.stats, func(st Stats) bool { return st.UserID == userID })
	if i < 0 {
		return Stats{}, false
	}
	return s.stats[i].clone(), true
}

// Leaderboard returns every user's stats by total points, highest first.
// Ties go to the user whose last activity came first.
func (s *Scorer) Leaderboard() []Stats {
	out := make([]Stats, len(s.stats))
	for i, st := range s.stats {
		out[i] = st.clone()
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].TotalPoints != out[j].TotalPoints {
			return out[i].TotalPoints > out[j].TotalPoints
		}
		if !out[i].LastActivity.Equal(out[j].LastActivity) {
			return out[i].LastActivity.Before(out[j].LastActivity)
		}
		return out[i].UserID < out[j].UserID
	})
	return out
}

// Rank returns the 1-based leaderboard position of userID, or 0 if unknown.
func (s *Scorer) Rank(userID string) int {
	for i, st := range s.Leaderboard() {
		if st.UserID == userID {
			return i + 1
		}
	}
	return 0
}

// Points returns the configured award for event.
func (s *Scorer) Points(event Event) int {
	return s.policy.Points[event]
}

// Checkpoint captures every user's stats and returns a function restoring them.
func (s *Scorer) Checkpoint() func() {
	saved := make([]Stats, len(s.stats))
	for i, st := range s.stats {
		saved[i] = st.clone()
	}
	return func() { s.stats = saved }
}
