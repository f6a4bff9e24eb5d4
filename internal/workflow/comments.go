package workflow

import (
	"context"

	"github.com/twiced-technology-gmbh/opsdesk/internal/clierr"
	"github.com/twiced-technology-gmbh/opsdesk/internal/comment"
	"github.com/twiced-technology-gmbh/opsdesk/internal/employee"
	"github.com/twiced-technology-gmbh/opsdesk/internal/permission"
	"github.com/twiced-technology-gmbh/opsdesk/internal/task"
)

// AddComment posts a comment on a task the user can view. parentID makes it
// a reply.
func (c *Controller) AddComment(ctx context.Context, user employee.Employee, taskID, content, parentID string) (comment.Comment, error) {
	var added comment.Comment
	err := c.atomically(ctx, "comment", func() error {
		t, err := c.tasks.Resolve(taskID)
		if err != nil {
			return err
		}
		if err := c.require(user, t, permission.View); err != nil {
			return err
		}
		added, err = c.addComment(ctx, user, t, content, parentID)
		return err
	})
	if err != nil {
		return comment.Comment{}, err
	}
	return added, nil
}

func (c *Controller) addComment(ctx context.Context, user employee.Employee, t task.Task, content, parentID string) (comment.Comment, error) {
	cm, err := c.comments.Add(t.ID, user.ID, user.Name(), content, parentID)
	if err != nil {
		return comment.Comment{}, err
	}
	if err := c.bus.Publish(ctx, CommentAdded{Actor: user, Task: t, Comment: cm}); err != nil {
		return comment.Comment{}, err
	}
	return cm, nil
}

// EditComment replaces the content of the user's own comment. Admins may
// edit any comment.
func (c *Controller) EditComment(ctx context.Context, user employee.Employee, id, content string) (comment.Comment, error) {
	var edited comment.Comment
	err := c.atomically(ctx, "comment_edit", func() error {
		cm, err := c.comments.Get(id)
		if err != nil {
			return err
		}
		if err := authorOrAdmin(user, cm, "edit"); err != nil {
			return err
		}
		edited, err = c.comments.Edit(cm.ID, content)
		return err
	})
	if err != nil {
		return comment.Comment{}, err
	}
	return edited, nil
}

// DeleteComment removes a comment and its replies. Admins may delete any
// comment.
func (c *Controller) DeleteComment(ctx context.Context, user employee.Employee, id string) error {
	return c.atomically(ctx, "comment_delete", func() error {
		cm, err := c.comments.Get(id)
		if err != nil {
			return err
		}
		if err := authorOrAdmin(user, cm, "delete"); err != nil {
			return err
		}
		_, err = c.comments.Delete(cm.ID)
		return err
	})
}

// Threads returns the comment threads of a task the user can view.
func (c *Controller) Threads(user employee.Employee, taskID string) ([]comment.Thread, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	t, err := c.tasks.Resolve(taskID)
	if err != nil {
		return nil, err
	}
	if err := c.require(user, t, permission.View); err != nil {
		return nil, err
	}
	return c.comments.Threads(t.ID), nil
}

// CommentCount returns the number of comments on a task.
func (c *Controller) CommentCount(taskID string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.comments.Count(taskID)
}

func authorOrAdmin(user employee.Employee, cm comment.Comment, verb string) error {
	if cm.UserID == user.ID || user.Role == employee.RoleAdmin {
		return nil
	}
	return clierr.Newf(clierr.PermissionDenied, "%s may not %s comment %s", user.ID, verb, cm.ID).
		WithDetails(map[string]any{"user": user.ID, "comment": cm.ID, "author": cm.UserID})
}
