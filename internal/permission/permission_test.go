package permission

import (
	"fmt"
	"testing"

	"github.com/twiced-technology-gmbh/opsdesk/internal/clierr"
	"github.com/twiced-technology-gmbh/opsdesk/internal/employee"
	"github.com/twiced-technology-gmbh/opsdesk/internal/task"
)

type ownership string

const (
	asCreator  ownership = "creator"
	asAssignee ownership = "assignee"
	asStranger ownership = "stranger"
)

func taskFor(userID string, own ownership, status task.Status) task.Task {
	t := task.Task{ID: "t1", Status: status, CreatedBy: "someone", AssignedTo: "other"}
	switch own {
	case asCreator:
		t.CreatedBy = userID
	case asAssignee:
		t.AssignedTo = userID
	}
	return t
}

func TestCapabilityMatrix(t *testing.T) {
	owners := []ownership{asCreator, asAssignee, asStranger}
	for _, role := range employee.Roles {
		for _, own := range owners {
			for _, status := range task.Statuses {
				name := fmt.Sprintf("%s/%s/%s", role, own, status)
				t.Run(name, func(t *testing.T) {
					user := employee.Employee{ID: "u", Role: role}
					tk := taskFor(user.ID, own, status)
					privileged := role == employee.RoleAdmin || role == employee.RoleManager
					involved := own != asStranger

					wantView := privileged || involved
					wantEdit := privileged || (involved && status != task.StatusCompleted)
					wantValidate := privileged && status == task.StatusReview

					got := Evaluate(user, tk, nil)
					if got.View != wantView {
						t.Errorf("View = %v, want %v", got.View, wantView)
					}
					if got.Edit != wantEdit {
						t.Errorf("Edit = %v, want %v", got.Edit, wantEdit)
					}
					if got.Validate != wantValidate {
						t.Errorf("Validate = %v, want %v", got.Validate, wantValidate)
					}
					// Pure: a second evaluation yields the same set.
					if again := Evaluate(user, tk, nil); again != got {
						t.Errorf("Evaluate not deterministic: %+v vs %+v", got, again)
					}
				})
			}
		}
	}
}

func TestCanDelete(t *testing.T) {
	mona := employee.Employee{ID: "mona", Role: employee.RoleManager, Department: "ops"}
	sam := employee.Employee{ID: "sam", Role: employee.RoleManager, Department: "sales"}
	root := employee.Employee{ID: "root", Role: employee.RoleAdmin}
	erik := employee.Employee{ID: "erik", Role: employee.RoleEmployee, Department: "ops", ManagerID: "mona"}
	lena := employee.Employee{ID: "lena", Role: employee.RoleEmployee, Department: "sales"}
	tom := employee.Employee{ID: "tom", Role: employee.RoleHR}

	tests := []struct {
		name     string
		user     employee.Employee
		t        task.Task
		assignee *employee.Employee
		want     bool
	}{
		{"admin", root, task.Task{CreatedBy: "erik", AssignedTo: "erik"}, &erik, true},
		{"creator", erik, task.Task{CreatedBy: "erik", AssignedTo: "lena"}, &lena, true},
		{"assignee only", lena, task.Task{CreatedBy: "erik", AssignedTo: "lena"}, &lena, false},
		{"explicit manager", mona, task.Task{CreatedBy: "tom", AssignedTo: "erik"}, &erik, true},
		{"other manager same dept as explicit report", sam, task.Task{CreatedBy: "tom", AssignedTo: "erik"}, &erik, false},
		{"department manager", sam, task.Task{CreatedBy: "tom", AssignedTo: "lena"}, &lena, true},
		{"manager of another dept", mona, task.Task{CreatedBy: "tom", AssignedTo: "lena"}, &lena, false},
		{"manager, unassigned", mona, task.Task{CreatedBy: "tom"}, nil, false},
		{"hr stranger", tom, task.Task{CreatedBy: "erik", AssignedTo: "erik"}, &erik, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CanDelete(tt.user, tt.t, tt.assignee); got != tt.want {
				t.Fatalf("CanDelete = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestRequire(t *testing.T) {
	user := employee.Employee{ID: "erik", Role: employee.RoleEmployee}
	tk := task.Task{ID: "t1", Status: task.StatusReview, CreatedBy: "erik"}
	set := Evaluate(user, tk, nil)

	if err := Require(set, Edit, user, tk); err != nil {
		t.Fatalf("edit should be allowed: %v", err)
	}
	if err := Require(set, Validate, user, tk); !clierr.Is(err, clierr.PermissionDenied) {
		t.Fatalf("validate: got %v, want PERMISSION_DENIED", err)
	}
}
