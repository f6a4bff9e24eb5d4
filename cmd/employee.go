package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/twiced-technology-gmbh/opsdesk/internal/clierr"
	"github.com/twiced-technology-gmbh/opsdesk/internal/employee"
	"github.com/twiced-technology-gmbh/opsdesk/internal/output"
	"github.com/twiced-technology-gmbh/opsdesk/internal/workflow"
	"github.com/twiced-technology-gmbh/opsdesk/internal/workspace"
)

var employeeCmd = &cobra.Command{
	Use:     "employee",
	Aliases: []string{"employees", "emp"},
	Short:   "Manage the employee directory",
}

var employeeListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List employees",
	Args:    cobra.NoArgs,
	RunE:    runEmployeeList,
}

var employeeAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Add an employee",
	Long: `Adds an employee to the directory. The id defaults to first.last.

On an empty directory the new employee becomes the administrator and --as is
not required. Afterwards only admins and HR may add employees.`,
	Args: cobra.NoArgs,
	RunE: runEmployeeAdd,
}

func init() {
	employeeListCmd.Flags().String("role", "", "only employees with this role")
	employeeListCmd.Flags().String("department", "", "only employees in this department")

	f := employeeAddCmd.Flags()
	f.String("first", "", "first name")
	f.String("last", "", "last name")
	f.String("id", "", "employee id (default first.last)")
	f.String("email", "", "email address")
	f.String("role", string(employee.RoleEmployee), "role ("+roleList()+")")
	f.String("department", "", "department")
	f.String("manager", "", "manager's employee id")
	f.String("status", "", "employment status (default active)")

	employeeCmd.AddCommand(employeeListCmd, employeeAddCmd)
	rootCmd.AddCommand(employeeCmd)
}

func roleList() string {
	parts := make([]string, len(employee.Roles))
	for i, r := range employee.Roles {
		parts[i] = string(r)
	}
	return strings.Join(parts, ", ")
}

func runEmployeeList(cmd *cobra.Command, _ []string) error {
	role, _ := cmd.Flags().GetString("role")
	dept, _ := cmd.Flags().GetString("department")

	ws, err := openWorkspace()
	if err != nil {
		return err
	}
	defer ws.Close()

	c, err := ws.Controller(cmd.Context())
	if err != nil {
		return err
	}

	list := make([]employee.Employee, 0)
	for _, e := range c.Directory().List() {
		if role != "" && string(e.Role) != role {
			continue
		}
		if dept != "" && !strings.EqualFold(e.Department, dept) {
			continue
		}
		list = append(list, e)
	}

	switch outputFormat() {
	case output.FormatJSON:
		return output.JSON(os.Stdout, list)
	case output.FormatCompact:
		for _, e := range list {
			fmt.Fprintf(os.Stdout, "%s %s (%s)\n", e.ID, e.Name(), e.Role)
		}
		return nil
	}
	output.EmployeeTable(os.Stdout, list)
	return nil
}

func runEmployeeAdd(cmd *cobra.Command, _ []string) error {
	e := employeeFromFlags(cmd)
	if e.FirstName == "" && e.LastName == "" {
		return clierr.New(clierr.InvalidInput, "--first or --last is required")
	}

	ws, err := openWorkspace()
	if err != nil {
		return err
	}
	defer ws.Close()

	c, err := ws.Controller(cmd.Context())
	if err != nil {
		return err
	}

	var added employee.Employee
	if len(c.Directory().List()) == 0 {
		added, err = ws.Bootstrap(cmd.Context(), e)
	} else {
		err = ws.Do(cmd.Context(), currentUser(), func(c *workflow.Controller, me employee.Employee) error {
			var err error
			added, err = c.AddEmployee(cmd.Context(), me, e)
			return err
		})
	}
	if err != nil {
		return err
	}

	if outputFormat() == output.FormatJSON {
		return output.JSON(os.Stdout, added)
	}
	output.Messagef(os.Stdout, "Added %s (%s) as %s", added.Name(), added.ID, added.Role)
	if added.Role == employee.RoleAdmin && currentUser() == "" {
		output.Messagef(os.Stdout, "  Hint: export %s=%s", workspace.EnvUser, added.ID)
	}
	return nil
}

func employeeFromFlags(cmd *cobra.Command) employee.Employee {
	f := cmd.Flags()
	get := func(name string) string {
		v, _ := f.GetString(name)
		return strings.TrimSpace(v)
	}
	return employee.Employee{
		ID:         get("id"),
		FirstName:  get("first"),
		LastName:   get("last"),
		Email:      get("email"),
		Role:       employee.Role(get("role")),
		Department: get("department"),
		Status:     get("status"),
		ManagerID:  get("manager"),
	}
}
