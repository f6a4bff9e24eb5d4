package workspace

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/twiced-technology-gmbh/opsdesk/internal/clierr"
	"github.com/twiced-technology-gmbh/opsdesk/internal/config"
	"github.com/twiced-technology-gmbh/opsdesk/internal/employee"
	"github.com/twiced-technology-gmbh/opsdesk/internal/logging"
	"github.com/twiced-technology-gmbh/opsdesk/internal/task"
	"github.com/twiced-technology-gmbh/opsdesk/internal/workflow"
)

func newWorkspace(t *testing.T) *Workspace {
	t.Helper()
	dir := filepath.Join(t.TempDir(), config.DefaultDir)
	ws, err := Init(dir, "people-ops", WithLogger(logging.Discard()))
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	t.Cleanup(func() { _ = ws.Close() })
	if _, err := ws.Bootstrap(context.Background(), employee.Employee{FirstName: "Ada", LastName: "Admin"}); err != nil {
		t.Fatalf("Bootstrap: %v", err)
	}
	return ws
}

func TestBootstrapAndDo(t *testing.T) {
	ctx := context.Background()
	ws := newWorkspace(t)

	if _, err := ws.Bootstrap(ctx, employee.Employee{FirstName: "Second"}); !clierr.Is(err, clierr.ValidationError) {
		t.Fatalf("second bootstrap: got %v", err)
	}

	err := ws.Do(ctx, "ada.admin", func(c *workflow.Controller, me employee.Employee) error {
		if me.Role != employee.RoleAdmin {
			t.Fatalf("bootstrap role = %s", me.Role)
		}
		if _, err := c.AddEmployee(ctx, me, employee.Employee{FirstName: "Erik", LastName: "Lund"}); err != nil {
			return err
		}
		_, err := c.CreateTask(ctx, me, workflow.CreateInput{Input: task.Input{Title: "Onboard Erik", AssignedTo: "erik.lund"}})
		return err
	})
	if err != nil {
		t.Fatalf("Do: %v", err)
	}

	// A fresh load sees the committed state.
	err = ws.View(ctx, "erik.lund", func(c *workflow.Controller, me employee.Employee) error {
		tasks := c.Tasks(me)
		if len(tasks) != 1 || tasks[0].Title != "Onboard Erik" {
			t.Fatalf("tasks = %+v", tasks)
		}
		if c.UnreadCount(me) != 1 {
			t.Fatalf("unread = %d", c.UnreadCount(me))
		}
		return nil
	})
	if err != nil {
		t.Fatalf("View: %v", err)
	}

	entries, err := ws.Activity().Read(0)
	if err != nil || len(entries) != 1 || entries[0].Action != "task_created" {
		t.Fatalf("activity = %+v, %v", entries, err)
	}
	if _, err := os.Stat(filepath.Join(ws.Dir(), config.DefaultDataDir, "tasks.json")); err != nil {
		t.Fatalf("tasks snapshot not written: %v", err)
	}
}

func TestUnknownUser(t *testing.T) {
	ws := newWorkspace(t)
	noop := func(*workflow.Controller, employee.Employee) error { return nil }
	if err := ws.View(context.Background(), "", noop); !clierr.Is(err, clierr.UnknownUser) {
		t.Fatalf("empty user: got %v", err)
	}
	if err := ws.Do(context.Background(), "ghost", noop); !clierr.Is(err, clierr.UnknownUser) {
		t.Fatalf("unknown user: got %v", err)
	}
}

func TestConcurrentDoSerializes(t *testing.T) {
	ctx := context.Background()
	ws := newWorkspace(t)

	const writers = 8
	var wg sync.WaitGroup
	errs := make(chan error, writers)
	for i := range writers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			// Each writer opens its own handle, like separate CLI processes.
			other, err := Open(ws.Dir(), WithLogger(logging.Discard()))
			if err != nil {
				errs <- err
				return
			}
			defer other.Close()
			errs <- other.Do(ctx, "ada.admin", func(c *workflow.Controller, me employee.Employee) error {
				_, err := c.CreateTask(ctx, me, workflow.CreateInput{Input: task.Input{Title: "parallel " + string(rune('a'+i))}})
				return err
			})
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Fatalf("writer: %v", err)
		}
	}

	err := ws.View(ctx, "ada.admin", func(c *workflow.Controller, me employee.Employee) error {
		if n := len(c.Tasks(me)); n != writers {
			t.Fatalf("tasks = %d, want %d (lost update)", n, writers)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("View: %v", err)
	}
}

func TestDoHonorsContext(t *testing.T) {
	ws := newWorkspace(t)
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	held := make(chan struct{})
	release := make(chan struct{})
	go func() {
		_ = ws.Do(context.Background(), "ada.admin", func(*workflow.Controller, employee.Employee) error {
			close(held)
			<-release
			return nil
		})
	}()
	<-held
	defer close(release)

	err := ws.Do(ctx, "ada.admin", func(*workflow.Controller, employee.Employee) error { return nil })
	if err == nil {
		t.Fatalf("Do acquired a held lock")
	}
}

func TestEnvFileAndCurrentUser(t *testing.T) {
	dir := filepath.Join(t.TempDir(), config.DefaultDir)
	if _, err := config.Init(dir, "env"); err != nil {
		t.Fatalf("config.Init: %v", err)
	}
	t.Setenv(EnvUser, "")
	if err := os.Unsetenv(EnvUser); err != nil {
		t.Fatalf("Unsetenv: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, config.EnvFileName), []byte(EnvUser+"=mona.berg\n"), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	ws, err := Open(dir)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer ws.Close()

	if got := CurrentUser(""); got != "mona.berg" {
		t.Fatalf("CurrentUser from .env = %q", got)
	}
	if got := CurrentUser("erik.lund"); got != "erik.lund" {
		t.Fatalf("flag should win, got %q", got)
	}
}
