// Package permission decides what a user may do with a task. Every check is
// a pure function of the user's role, their relation to the task, and the
// task's status.
package permission

import (
	"github.com/twiced-technology-gmbh/opsdesk/internal/clierr"
	"github.com/twiced-technology-gmbh/opsdesk/internal/employee"
	"github.com/twiced-technology-gmbh/opsdesk/internal/task"
)

// Capability is one thing a user may do with a task.
type Capability string

// Capabilities checked by the workflow controller.
const (
	View     Capability = "view"
	Edit     Capability = "edit"
	Validate Capability = "validate"
	Delete   Capability = "delete"
)

// Set is the full capability set of a user on a task.
type Set struct {
	View     bool `json:"view"`
	Edit     bool `json:"edit"`
	Validate bool `json:"validate"`
	Delete   bool `json:"delete"`
}

// Has reports whether c is granted.
func (s Set) Has(c Capability) bool {
	switch c {
	case View:
		return s.View
	case Edit:
		return s.Edit
	case Validate:
		return s.Validate
	case Delete:
		return s.Delete
	}
	return false
}

// Evaluate returns every capability of user on t. assignee is the directory
// record of t's assignee, or nil when the task is unassigned or the assignee
// is unknown.
func Evaluate(user employee.Employee, t task.Task, assignee *employee.Employee) Set {
	return Set{
		View:     CanView(user, t),
		Edit:     CanEdit(user, t),
		Validate: CanValidate(user, t),
		Delete:   CanDelete(user, t, assignee),
	}
}

// CanView: admins and managers see every task; everyone else sees the tasks
// they created or are assigned to.
func CanView(user employee.Employee, t task.Task) bool {
	if user.Role.Privileged() {
		return true
	}
	return t.InvolvedUser(user.ID)
}

// CanEdit: admins and managers edit any task in any status; everyone else
// edits visible tasks that are not completed.
func CanEdit(user employee.Employee, t task.Task) bool {
	if user.Role.Privileged() {
		return true
	}
	return CanView(user, t) && !t.Status.Terminal()
}

// CanValidate: only admins and managers, and only while the task is in review.
func CanValidate(user employee.Employee, t task.Task) bool {
	return user.Role.Privileged() && t.Status == task.StatusReview
}

// CanDelete: admins, the task's creator, or a manager of the assignee.
func CanDelete(user employee.Employee, t task.Task, assignee *employee.Employee) bool {
	switch {
	case user.Role == employee.RoleAdmin:
		return true
	case user.ID != "" && t.CreatedBy == user.ID:
		return true
	case user.Role == employee.RoleManager && assignee != nil:
		return manages(user, *assignee)
	}
	return false
}

// manages reports whether m is a's manager: named explicitly, or sharing a's
// department when a has no explicit manager.
func manages(m, a employee.Employee) bool {
	if a.ManagerID != "" {
		return a.ManagerID == m.ID
	}
	return m.Department != "" && m.Department == a.Department
}

// Require returns a PERMISSION_DENIED error unless c is granted.
func Require(s Set, c Capability, user employee.Employee, t task.Task) error {
	if s.Has(c) {
		return nil
	}
	return Denied(c, user, t)
}

// Denied builds the PERMISSION_DENIED error for capability c.
func Denied(c Capability, user employee.Employee, t task.Task) *clierr.Error {
	return clierr.Newf(clierr.PermissionDenied,
		"%s (%s) may not %s task %s", user.ID, user.Role, c, task.ShortID(t.ID)).
		WithDetails(map[string]any{
			"user":       user.ID,
			"role":       user.Role,
			"capability": c,
			"task":       t.ID,
			"status":     t.Status,
		})
}
