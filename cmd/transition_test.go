package cmd

import (
	"strings"
	"testing"

	"github.com/twiced-technology-gmbh/opsdesk/internal/employee"
)

func TestReviewHelpNamesValidatingRoles(t *testing.T) {
	for _, c := range []struct {
		name string
		long string
	}{
		{"approve", approveCmd.Long},
		{"reject", rejectCmd.Long},
	} {
		if !strings.Contains(c.long, "admins and managers") {
			t.Errorf("%s help = %q", c.name, c.long)
		}
		if strings.Contains(c.long, "HR") && !employee.RoleHR.Privileged() {
			t.Errorf("%s help grants HR a review right it does not have", c.name)
		}
	}
}
