package employee

import (
	"testing"

	"github.com/twiced-technology-gmbh/opsdesk/internal/clierr"
)

func seedDirectory(t *testing.T) *Directory {
	t.Helper()
	d := NewDirectory(nil, nil)
	for _, e := range []Employee{
		{ID: "mona", FirstName: "Mona", LastName: "Kruger", Role: RoleManager, Department: "ops"},
		{FirstName: "Erik", LastName: "van Dam", Role: RoleEmployee, Department: "ops", ManagerID: "mona"},
		{ID: "eve", FirstName: "Eve", LastName: "Ng", Role: RoleEmployee, Department: "sales"},
		{ID: "eva", FirstName: "Eve", LastName: "Stone", Role: RoleHR},
	} {
		if _, err := d.Add(e); err != nil {
			t.Fatalf("Add(%+v): %v", e, err)
		}
	}
	return d
}

func TestGenerateID(t *testing.T) {
	tests := []struct {
		first, last, want string
	}{
		{"Erik", "van Dam", "erik.van-dam"},
		{"  Zoë ", "", "zo"},
		{"", "O'Neil", "o-neil"},
	}
	for _, tt := range tests {
		if got := GenerateID(tt.first, tt.last); got != tt.want {
			t.Errorf("GenerateID(%q, %q) = %q, want %q", tt.first, tt.last, got, tt.want)
		}
	}
}

func TestDirectory_AddValidates(t *testing.T) {
	d := seedDirectory(t)

	if _, err := d.Add(Employee{ID: "mona", FirstName: "Dup"}); !clierr.Is(err, clierr.ValidationError) {
		t.Fatalf("duplicate id: got %v", err)
	}
	if _, err := d.Add(Employee{FirstName: "Bad", Role: "owner"}); !clierr.Is(err, clierr.ValidationError) {
		t.Fatalf("invalid role: got %v", err)
	}
	if _, err := d.Add(Employee{FirstName: "Orphan", ManagerID: "ghost"}); !clierr.Is(err, clierr.ValidationError) {
		t.Fatalf("unknown manager: got %v", err)
	}
	if _, err := d.Get("ghost"); !clierr.Is(err, clierr.UnknownUser) {
		t.Fatalf("Get unknown: got %v", err)
	}
}

func TestDirectory_ManagerAndMentions(t *testing.T) {
	d := seedDirectory(t)

	m, ok := d.ManagerOf("erik.van-dam")
	if !ok || m.ID != "mona" {
		t.Fatalf("ManagerOf = %+v, %v", m, ok)
	}
	if _, ok := d.ManagerOf("eve"); ok {
		t.Fatalf("eve has no manager")
	}

	if e, ok := d.ResolveMention("@Mona"); !ok || e.ID != "mona" {
		t.Fatalf("ResolveMention(@Mona) = %+v, %v", e, ok)
	}
	if e, ok := d.ResolveMention("erik.van-dam"); !ok || e.FirstName != "Erik" {
		t.Fatalf("ResolveMention(first.last) = %+v, %v", e, ok)
	}
	// Two employees share the first name Eve, so the first name alone is ambiguous.
	if _, ok := d.ResolveMention("eve.ng"); !ok {
		t.Fatalf("full form should resolve")
	}
	if e, ok := d.ResolveMention("eve"); !ok || e.ID != "eve" {
		t.Fatalf("exact id should win over ambiguous first name, got %+v", e)
	}
	if d.DisplayName("ghost") != "ghost" {
		t.Fatalf("unknown id should render as itself")
	}
	if got := len(d.WithRole(RoleManager, RoleAdmin)); got != 1 {
		t.Fatalf("WithRole managers = %d, want 1", got)
	}
}
