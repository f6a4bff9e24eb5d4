// Package workflow orchestrates task operations across the stores. Every
// operation checks permissions, mutates the stores, publishes events to the
// notification, gamification and activity subscribers, and commits the staged
// snapshot writes once. Any failure rolls every store back.
package workflow

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/twiced-technology-gmbh/opsdesk/internal/clierr"
	"github.com/twiced-technology-gmbh/opsdesk/internal/comment"
	"github.com/twiced-technology-gmbh/opsdesk/internal/employee"
	"github.com/twiced-technology-gmbh/opsdesk/internal/gamify"
	"github.com/twiced-technology-gmbh/opsdesk/internal/notify"
	"github.com/twiced-technology-gmbh/opsdesk/internal/permission"
	"github.com/twiced-technology-gmbh/opsdesk/internal/storage"
	"github.com/twiced-technology-gmbh/opsdesk/internal/task"
)

// Options wires a Controller. The stores must write to Batch.
type Options struct {
	Tasks         *task.Store
	Directory     *employee.Directory
	Notifications *notify.Emitter
	Scorer        *gamify.Scorer
	Comments      *comment.Store

	// Batch collects the snapshot writes of one operation. Backend receives
	// them on commit; a nil Backend keeps everything in memory.
	Batch   *storage.Batch
	Backend storage.Backend

	Activity ActivityRecorder
	Logger   *slog.Logger
	Now      func() time.Time

	// StrictDragDrop makes drag and drop respect the review gate.
	StrictDragDrop bool
	// DueSoon is how far ahead SendDueReminders looks.
	DueSoon time.Duration
}

// Controller is the single entry point for mutations.
type Controller struct {
	mu sync.Mutex

	tasks     *task.Store
	directory *employee.Directory
	notes     *notify.Emitter
	scores    *gamify.Scorer
	comments  *comment.Store

	batch   *storage.Batch
	backend storage.Backend

	bus     *Bus
	audit   *auditor
	log     *slog.Logger
	now     func() time.Time
	strict  bool
	dueSoon time.Duration
}

// New builds a controller and subscribes the notification, gamification and
// activity subscribers in that order.
func New(opts Options) *Controller {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Batch == nil {
		opts.Batch = storage.NewBatch()
	}
	c := &Controller{
		tasks:     opts.Tasks,
		directory: opts.Directory,
		notes:     opts.Notifications,
		scores:    opts.Scorer,
		comments:  opts.Comments,
		batch:     opts.Batch,
		backend:   opts.Backend,
		bus:       &Bus{},
		log:       opts.Logger,
		now:       opts.Now,
		strict:    opts.StrictDragDrop,
		dueSoon:   opts.DueSoon,
	}
	c.audit = &auditor{recorder: opts.Activity, log: opts.Logger, now: opts.Now}
	c.bus.Subscribe(&notifier{emitter: c.notes, directory: c.directory})
	c.bus.Subscribe(&scorer{scores: c.scores, now: opts.Now})
	c.bus.Subscribe(c.audit)
	return c
}

// Subscribe appends a subscriber after the built-in ones.
func (c *Controller) Subscribe(s Subscriber) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.bus.Subscribe(s)
}

// CreateInput is a task creation request. Comment, when set, is posted as
// the first comment of the new task.
type CreateInput struct {
	task.Input
	Comment string
}

// CreateTask creates a task owned by user.
func (c *Controller) CreateTask(ctx context.Context, user employee.Employee, in CreateInput) (task.Task, error) {
	var created task.Task
	err := c.atomically(ctx, "create", func() error {
		in.CreatedBy = user.ID
		if in.AssignedTo != "" {
			if _, ok := c.directory.Lookup(in.AssignedTo); !ok {
				c.log.Warn("task assigned to unknown employee", "assignee", in.AssignedTo)
			}
		}
		start := in.Status
		if start != "" {
			if err := task.ValidateStatus(start); err != nil {
				return err
			}
		}
		in.Status = task.StatusTodo
		t, err := c.tasks.Create(in.Input)
		if err != nil {
			return err
		}
		created = t
		if err := c.bus.Publish(ctx, TaskCreated{Actor: user, Task: t}); err != nil {
			return err
		}
		if start != "" && start != task.StatusTodo {
			if err := c.checkInitialStatus(user, t, start); err != nil {
				return err
			}
			moved, err := c.tasks.ForceStatus(t.ID, start, user.ID)
			if err != nil {
				return err
			}
			created = moved
			if err := c.publishStatus(ctx, user, t.Status, moved); err != nil {
				return err
			}
		}
		if strings.TrimSpace(in.Comment) == "" {
			return nil
		}
		_, err = c.addComment(ctx, user, created, in.Comment, "")
		return err
	})
	if err != nil {
		return task.Task{}, err
	}
	c.log.Info("task created", "task", created.ID, "actor", user.ID)
	return created, nil
}

// checkInitialStatus reports whether user may open a task directly in status
// to. Admins and managers may start anywhere. Everyone else may skip to
// in_progress outside strict mode but never past the review gate.
func (c *Controller) checkInitialStatus(user employee.Employee, t task.Task, to task.Status) error {
	if user.Role.Privileged() {
		return nil
	}
	if to == task.StatusInProgress && !c.strict {
		return nil
	}
	return clierr.Newf(clierr.PermissionDenied, "%s (%s) may not create a task in %s", user.ID, user.Role, to).
		WithDetails(map[string]any{"user": user.ID, "role": user.Role, "status": to, "task": t.ID})
}

// UpdateTask applies a patch. Requires edit permission.
func (c *Controller) UpdateTask(ctx context.Context, user employee.Employee, id string, p task.Patch) (task.Task, error) {
	var updated task.Task
	err := c.atomically(ctx, "update", func() error {
		before, err := c.tasks.Resolve(id)
		if err != nil {
			return err
		}
		if err := c.require(user, before, permission.Edit); err != nil {
			return err
		}
		if p.Empty() {
			updated = before
			return nil
		}
		after, err := c.tasks.Update(before.ID, p)
		if err != nil {
			return err
		}
		updated = after
		return c.bus.Publish(ctx, TaskUpdated{Actor: user, Before: before, After: after})
	})
	if err != nil {
		return task.Task{}, err
	}
	return updated, nil
}

// DeleteTask removes a task and its comments. Like every task operation it
// accepts a full id or a unique id prefix. A missing task reports
// NotFound before any permission check.
func (c *Controller) DeleteTask(ctx context.Context, user employee.Employee, id string) error {
	return c.atomically(ctx, "delete", func() error {
		t, err := c.tasks.Resolve(id)
		if err != nil {
			return err
		}
		if err := c.require(user, t, permission.Delete); err != nil {
			return err
		}
		if err := c.tasks.Delete(t.ID); err != nil {
			return err
		}
		removed, err := c.comments.DeleteForTask(t.ID)
		if err != nil {
			return err
		}
		return c.bus.Publish(ctx, TaskDeleted{Actor: user, Task: t, Comments: len(removed)})
	})
}

// StartWork moves a task from todo to in_progress.
func (c *Controller) StartWork(ctx context.Context, user employee.Employee, id string) (task.Task, error) {
	return c.apply(ctx, user, id, task.ActionStartWork)
}

// RequestReview moves a task from in_progress to review and asks the
// assignee's manager to validate it.
func (c *Controller) RequestReview(ctx context.Context, user employee.Employee, id string) (task.Task, error) {
	return c.apply(ctx, user, id, task.ActionSubmitForReview)
}

func (c *Controller) apply(ctx context.Context, user employee.Employee, id string, action task.Action) (task.Task, error) {
	var moved task.Task
	err := c.atomically(ctx, string(action), func() error {
		t, err := c.tasks.Resolve(id)
		if err != nil {
			return err
		}
		if err := c.require(user, t, permission.Edit); err != nil {
			return err
		}
		moved, err = c.tasks.Apply(t.ID, action, user.ID)
		if err != nil {
			return err
		}
		return c.publishStatus(ctx, user, t.Status, moved)
	})
	if err != nil {
		return task.Task{}, err
	}
	return moved, nil
}

// ValidateTask approves (review -> completed) or rejects (review ->
// in_progress) a task. Only admins and managers may validate. A non-empty
// note is posted as a comment in the same operation.
func (c *Controller) ValidateTask(ctx context.Context, user employee.Employee, id string, approved bool, note string) (task.Task, error) {
	action := task.ActionReject
	if approved {
		action = task.ActionApprove
	}
	var reviewed task.Task
	err := c.atomically(ctx, string(action), func() error {
		t, err := c.tasks.Resolve(id)
		if err != nil {
			return err
		}
		if !user.Role.Privileged() {
			return permission.Denied(permission.Validate, user, t)
		}
		if t.Status != task.StatusReview {
			return task.ErrInvalidTransition(t.ID, t.Status, reviewTarget(approved))
		}
		reviewed, err = c.tasks.Apply(t.ID, action, user.ID)
		if err != nil {
			return err
		}
		if err := c.publishStatus(ctx, user, t.Status, reviewed); err != nil {
			return err
		}
		if err := c.bus.Publish(ctx, TaskReviewed{Actor: user, Task: reviewed, Approved: approved}); err != nil {
			return err
		}
		if note == "" {
			return nil
		}
		_, err = c.addComment(ctx, user, reviewed, note, "")
		return err
	})
	if err != nil {
		return task.Task{}, err
	}
	return reviewed, nil
}

func reviewTarget(approved bool) task.Status {
	if approved {
		return task.StatusCompleted
	}
	return task.StatusInProgress
}

// DragDropStatusChange moves a task to any status, bypassing the state
// machine. In strict mode leaving review or entering completed still needs
// validate permission.
func (c *Controller) DragDropStatusChange(ctx context.Context, user employee.Employee, id string, to task.Status) (task.Task, error) {
	var moved task.Task
	err := c.atomically(ctx, "move", func() error {
		t, err := c.tasks.Resolve(id)
		if err != nil {
			return err
		}
		if err := c.require(user, t, permission.Edit); err != nil {
			return err
		}
		if c.strict && t.Status != to && (t.Status == task.StatusReview || to == task.StatusCompleted) {
			if err := c.require(user, t, permission.Validate); err != nil {
				return err
			}
		}
		moved, err = c.tasks.ForceStatus(t.ID, to, user.ID)
		if err != nil {
			return err
		}
		if moved.Status == t.Status {
			return nil
		}
		return c.publishStatus(ctx, user, t.Status, moved)
	})
	if err != nil {
		return task.Task{}, err
	}
	return moved, nil
}

func (c *Controller) publishStatus(ctx context.Context, user employee.Employee, from task.Status, t task.Task) error {
	last := t.History[len(t.History)-1]
	c.log.Debug("task status changed", "task", t.ID, "from", from, "to", t.Status, "action", last.Action, "actor", user.ID)
	return c.bus.Publish(ctx, TaskStatusChanged{
		Actor:  user,
		Task:   t,
		From:   from,
		To:     t.Status,
		Action: last.Action,
	})
}

// Task returns a visible task by id or unique id prefix, with the user's
// capabilities on it.
func (c *Controller) Task(user employee.Employee, ref string) (task.Task, permission.Set, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	t, err := c.tasks.Resolve(ref)
	if err != nil {
		return task.Task{}, permission.Set{}, err
	}
	perms := c.permissions(user, t)
	if !perms.View {
		return task.Task{}, permission.Set{}, permission.Denied(permission.View, user, t)
	}
	return t, perms, nil
}

// Tasks returns every task the user can view.
func (c *Controller) Tasks(user employee.Employee) []task.Task {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []task.Task
	for _, t := range c.tasks.List() {
		if permission.CanView(user, t) {
			out = append(out, t)
		}
	}
	return out
}

// User resolves a user id through the directory.
func (c *Controller) User(id string) (employee.Employee, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.directory.Get(id)
}

// Directory returns the employee directory.
func (c *Controller) Directory() *employee.Directory { return c.directory }

// AddEmployee adds a directory entry. Only admins and HR manage the directory.
func (c *Controller) AddEmployee(ctx context.Context, user employee.Employee, e employee.Employee) (employee.Employee, error) {
	var added employee.Employee
	err := c.atomically(ctx, "employee_add", func() error {
		if user.Role != employee.RoleAdmin && user.Role != employee.RoleHR {
			return clierr.Newf(clierr.PermissionDenied, "%s may not manage employees", user.ID).
				WithDetails(map[string]any{"user": user.ID, "role": user.Role})
		}
		var err error
		added, err = c.directory.Add(e)
		return err
	})
	return added, err
}

func (c *Controller) permissions(user employee.Employee, t task.Task) permission.Set {
	var assignee *employee.Employee
	if e, ok := c.directory.Lookup(t.AssignedTo); ok {
		assignee = &e
	}
	return permission.Evaluate(user, t, assignee)
}

func (c *Controller) require(user employee.Employee, t task.Task, capability permission.Capability) error {
	return permission.Require(c.permissions(user, t), capability, user, t)
}

// atomically runs fn under the controller lock. Store mutations made by fn
// and its subscribers are staged in the batch and committed once; on any
// error every store is restored and nothing is written.
func (c *Controller) atomically(ctx context.Context, op string, fn func() error) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	restores := []func(){
		c.tasks.Checkpoint(),
		c.directory.Checkpoint(),
		c.notes.Checkpoint(),
		c.scores.Checkpoint(),
		c.comments.Checkpoint(),
	}
	rollback := func(err error) {
		for _, restore := range restores {
			restore()
		}
		c.batch.Discard()
		c.audit.reset()
		c.log.Debug("operation rolled back", "op", op, "err", err)
	}

	if err := fn(); err != nil {
		rollback(err)
		return err
	}
	if err := c.commit(ctx); err != nil {
		rollback(err)
		return fmt.Errorf("%s: committing snapshots: %w", op, err)
	}
	c.audit.flush()
	return nil
}

func (c *Controller) commit(ctx context.Context) error {
	if c.backend == nil || c.batch.Len() == 0 {
		c.batch.Discard()
		return nil
	}
	return c.batch.Commit(ctx, c.backend)
}
