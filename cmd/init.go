package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/twiced-technology-gmbh/opsdesk/internal/clierr"
	"github.com/twiced-technology-gmbh/opsdesk/internal/config"
	"github.com/twiced-technology-gmbh/opsdesk/internal/employee"
	"github.com/twiced-technology-gmbh/opsdesk/internal/logging"
	"github.com/twiced-technology-gmbh/opsdesk/internal/output"
	"github.com/twiced-technology-gmbh/opsdesk/internal/workspace"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize a new opsdesk workspace",
	Long: `Creates a workspace directory with config.yml and an empty snapshot store.

With --admin "First Last" the first administrator is added to the employee
directory. Without it, the first 'opsdesk employee add' creates the administrator.`,
	RunE: runInit,
}

func init() {
	initCmd.Flags().String("name", "", "workspace name (defaults to current directory name)")
	initCmd.Flags().String("admin", "", `first administrator as "First Last"`)
	initCmd.Flags().String("admin-email", "", "administrator email")
	initCmd.Flags().String("backend", config.DefaultBackend, "snapshot backend (file, sqlite)")
	rootCmd.AddCommand(initCmd)
}

func runInit(cmd *cobra.Command, _ []string) error {
	dir := flagDir
	if dir == "" {
		dir = config.DefaultDir
	}

	name, _ := cmd.Flags().GetString("name")
	if name == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return fmt.Errorf("getting working directory: %w", err)
		}
		name = filepath.Base(cwd)
	}

	backend, _ := cmd.Flags().GetString("backend")
	if backend != "file" && backend != "sqlite" {
		return clierr.Newf(clierr.InvalidInput, "invalid --backend %q; allowed: file, sqlite", backend)
	}

	cfg, err := config.Init(dir, name)
	if err != nil {
		return err
	}
	if backend != cfg.Storage.Backend {
		cfg.Storage = config.StorageConfig{Backend: backend, Path: config.DefaultDBFile}
		if err := cfg.Save(); err != nil {
			return fmt.Errorf("writing config: %w", err)
		}
	}

	ws, err := workspace.Open(cfg.Dir(), workspace.WithLogger(logging.Logger()))
	if err != nil {
		return err
	}
	defer ws.Close()

	var admin *employee.Employee
	if full, _ := cmd.Flags().GetString("admin"); full != "" {
		first, last, _ := strings.Cut(strings.TrimSpace(full), " ")
		email, _ := cmd.Flags().GetString("admin-email")
		added, err := ws.Bootstrap(cmd.Context(), employee.Employee{
			FirstName: first,
			LastName:  strings.TrimSpace(last),
			Email:     email,
		})
		if err != nil {
			return err
		}
		admin = &added
	}

	if outputFormat() == output.FormatJSON {
		result := map[string]any{
			"status":  "initialized",
			"dir":     cfg.Dir(),
			"name":    name,
			"config":  cfg.ConfigPath(),
			"storage": cfg.StoragePath(),
		}
		if admin != nil {
			result["admin"] = admin
		}
		return output.JSON(os.Stdout, result)
	}

	output.Messagef(os.Stdout, "Initialized workspace %q in %s", name, cfg.Dir())
	output.Messagef(os.Stdout, "  Config:  %s", cfg.ConfigPath())
	output.Messagef(os.Stdout, "  Storage: %s (%s)", cfg.StoragePath(), cfg.Storage.Backend)
	if admin != nil {
		output.Messagef(os.Stdout, "  Admin:   %s (%s)", admin.Name(), admin.ID)
		output.Messagef(os.Stdout, "  Hint:    export %s=%s", workspace.EnvUser, admin.ID)
	} else {
		output.Messagef(os.Stdout, "  Hint:    add the first administrator with: opsdesk employee add --first NAME --last NAME")
	}
	return nil
}
