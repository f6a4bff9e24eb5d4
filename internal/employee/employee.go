// Package employee holds the read-only employee directory consulted by the
// workflow engine for roles, display names, and reporting lines.
package employee

import (
	"sort"
	"strings"

	"github.com/twiced-technology-gmbh/opsdesk/internal/clierr"
	"github.com/twiced-technology-gmbh/opsdesk/internal/storage"
)

// Role is an employee's access role.
type Role string

// Known roles.
const (
	RoleEmployee Role = "employee"
	RoleHR       Role = "hr"
	RoleManager  Role = "manager"
	RoleAdmin    Role = "admin"
)

// Roles lists every known role in ascending privilege order.
var Roles = []Role{RoleEmployee, RoleHR, RoleManager, RoleAdmin}

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	for _, known := range Roles {
		if r == known {
			return true
		}
	}
	return false
}

// Privileged reports whether r sees and edits every task regardless of ownership.
func (r Role) Privileged() bool {
	return r == RoleAdmin || r == RoleManager
}

// Employee is a directory record.
type Employee struct {
	ID         string `json:"id"`
	FirstName  string `json:"first_name"`
	LastName   string `json:"last_name"`
	Email      string `json:"email,omitempty"`
	Role       Role   `json:"role"`
	Department string `json:"department,omitempty"`
	Status     string `json:"status,omitempty"`
	ManagerID  string `json:"manager_id,omitempty"`
}

// Name returns "First Last", falling back to the id.
func (e Employee) Name() string {
	name := strings.TrimSpace(e.FirstName + " " + e.LastName)
	if name == "" {
		return e.ID
	}
	return name
}

// Directory is the in-memory employee directory.
type Directory struct {
	employees []Employee
	sink      storage.Sink
}

// NewDirectory builds a directory from a loaded snapshot. sink receives the
// full list after Add; pass storage.Discard{} for a read-only directory.
func NewDirectory(list []Employee, sink storage.Sink) *Directory {
	if sink == nil {
		sink = storage.Discard{}
	}
	return &Directory{employees: append([]Employee(nil), list...), sink: sink}
}

// Get returns the employee with the given id.
func (d *Directory) Get(id string) (Employee, error) {
	for _, e := range d.employees {
		if e.ID == id {
			return e, nil
		}
	}
	return Employee{}, clierr.Newf(clierr.UnknownUser, "unknown employee %q", id).
		WithDetails(map[string]any{"id": id})
}

// Lookup is Get without the error.
func (d *Directory) Lookup(id string) (Employee, bool) {
	e, err := d.Get(id)
	return e, err == nil
}

// List returns a copy of every employee, sorted by id.
func (d *Directory) List() []Employee {
	out := append([]Employee(nil), d.employees...)
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Add inserts a new employee. The id defaults to a slug of the name.
func (d *Directory) Add(e Employee) (Employee, error) {
	if strings.TrimSpace(e.FirstName) == "" && strings.TrimSpace(e.LastName) == "" && e.ID == "" {
		return Employee{}, clierr.New(clierr.ValidationError, "employee name is required")
	}
	if e.ID == "" {
		e.ID = GenerateID(e.FirstName, e.LastName)
	}
	if e.Role == "" {
		e.Role = RoleEmployee
	}
	if !e.Role.Valid() {
		return Employee{}, clierr.Newf(clierr.ValidationError, "invalid role %q", e.Role).
			WithDetails(map[string]any{"role": e.Role, "allowed": Roles})
	}
	if e.Status == "" {
		e.Status = "active"
	}
	if _, ok := d.Lookup(e.ID); ok {
		return Employee{}, clierr.Newf(clierr.ValidationError, "employee %q already exists", e.ID).
			WithDetails(map[string]any{"id": e.ID})
	}
	if e.ManagerID != "" {
		if _, ok := d.Lookup(e.ManagerID); !ok {
			return Employee{}, clierr.Newf(clierr.ValidationError, "manager %q not found", e.ManagerID)
		}
	}

	d.employees = append(d.employees, e)
	if err := d.sink.Put(storage.KeyEmployees, d.employees); err != nil {
		d.employees = d.employees[:len(d.employees)-1]
		return Employee{}, err
	}
	return e, nil
}

// ManagerOf returns the explicit manager of the employee with the given id.
func (d *Directory) ManagerOf(id string) (Employee, bool) {
	e, ok := d.Lookup(id)
	if !ok || e.ManagerID == "" {
		return Employee{}, false
	}
	return d.Lookup(e.ManagerID)
}

// WithRole returns every employee holding one of the given roles.
func (d *Directory) WithRole(roles ...Role) []Employee {
	var out []Employee
	for _, e := range d.List() {
		for _, r := range roles {
			if e.Role == r {
				out = append(out, e)
				break
			}
		}
	}
	return out
}

// DisplayName returns the display name for id, or id itself when unknown.
func (d *Directory) DisplayName(id string) string {
	if e, ok := d.Lookup(id); ok {
		return e.Name()
	}
	return id
}

// ResolveMention maps an @token to an employee. Tokens match the id, the
// "first.last" form, or a unique first name, case-insensitively.
func (d *Directory) ResolveMention(token string) (Employee, bool) {
	token = strings.ToLower(strings.TrimPrefix(token, "@"))
	if token == "" {
		return Employee{}, false
	}
	var byFirst []Employee
	for _, e := range d.employees {
		if strings.ToLower(e.ID) == token {
			return e, true
		}
		if GenerateID(e.FirstName, e.LastName) == token {
			return e, true
		}
		if strings.ToLower(e.FirstName) == token {
			byFirst = append(byFirst, e)
		}
	}
	if len(byFirst) == 1 {
		return byFirst[0], true
	}
	return Employee{}, false
}

// Checkpoint captures the directory and returns a function restoring it.
func (d *Directory) Checkpoint() func() {
	saved := append([]Employee(nil), d.employees...)
	return func() { d.employees = saved }
}

// Managers returns every employee with the manager role.
func (d *Directory) Managers() []Employee {
	return d.WithRole(RoleManager)
}
