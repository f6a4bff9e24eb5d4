package task

import "time"

// Action names a guarded status transition.
type Action string

// Guarded actions, plus ActionForce for unguarded moves.
const (
	ActionStartWork       Action = "start_work"
	ActionSubmitForReview Action = "submit_for_review"
	ActionApprove         Action = "approve"
	ActionReject          Action = "reject"
	ActionForce           Action = "force"
)

type edge struct {
	from   Status
	action Action
}

// transitions is the guarded state machine. Anything not listed here is
// reachable only through ForceStatus.
var transitions = map[edge]Status{
	{StatusTodo, ActionStartWork}:             StatusInProgress,
	{StatusInProgress, ActionSubmitForReview}: StatusReview,
	{StatusReview, ActionApprove}:             StatusCompleted,
	{StatusReview, ActionReject}:              StatusInProgress,
}

// Next returns the status reached by applying action to from.
func Next(from Status, action Action) (Status, bool) {
	to, ok := transitions[edge{from, action}]
	return to, ok
}

// ActionFor returns the guarded action that moves from to to.
// review -> in_progress resolves to ActionReject.
func ActionFor(from, to Status) (Action, bool) {
	for e, target := range transitions {
		if e.from == from && target == to {
			return e.action, true
		}
	}
	return "", false
}

// Allowed reports whether from -> to is a guarded transition.
func Allowed(from, to Status) bool {
	_, ok := ActionFor(from, to)
	return ok
}

// RequiresValidation reports whether the action is part of the review gate.
func (a Action) RequiresValidation() bool {
	return a == ActionApprove || a == ActionReject
}

// updateTimestamps sets StartedAt and CompletedAt for a status change.
//   - StartedAt is set on the first move out of todo and never overwritten.
//   - CompletedAt is set on entering completed; StartedAt too if still nil.
//   - CompletedAt is cleared when a completed task is reopened.
func updateTimestamps(t *Task, from, to Status, now time.Time) {
	if t.StartedAt == nil && from == StatusTodo && to != StatusTodo {
		started := now
		t.StartedAt = &started
	}

	if to.Terminal() {
		completed := now
		t.CompletedAt = &completed
		if t.StartedAt == nil {
			started := now
			t.StartedAt = &started
		}
	} else if from.Terminal() {
		t.CompletedAt = nil
	}
}
