// Package comment stores task comment threads. Threads nest one level: a
// reply to a reply is attached to the top-level comment.
package comment

import (
	"regexp"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/twiced-technology-gmbh/opsdesk/internal/clierr"
	"github.com/twiced-technology-gmbh/opsdesk/internal/storage"
)

var mentionRe = regexp.MustCompile(`(?:^|[^A-Za-z0-9_])@([A-Za-z0-9._-]+)`)

// Comment is a single comment or reply on a task.
type Comment struct {
	ID        string    `json:"id"`
	TaskID    string    `json:"taskId"`
	ParentID  string    `json:"parentId,omitempty"`
	UserID    string    `json:"userId"`
	UserName  string    `json:"userName"`
	Content   string    `json:"content"`
	Mentions  []string  `json:"mentions"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
	IsEdited  bool      `json:"isEdited"`
}

func (c Comment) clone() Comment {
	c.Mentions = slices.Clone(c.Mentions)
	return c
}

// Thread is a top-level comment with its replies in creation order.
type Thread struct {
	Comment Comment   `json:"comment"`
	Replies []Comment `json:"replies"`
}

// ExtractMentions returns the distinct @tokens in content, without the "@",
// in order of first appearance. Trailing punctuation is not part of a token.
func ExtractMentions(content string) []string {
	mentions := []string{}
	for _, m := range mentionRe.FindAllStringSubmatch(content, -1) {
		token := strings.TrimRight(m[1], ".-")
		if token != "" && !slices.Contains(mentions, token) {
			mentions = append(mentions, token)
		}
	}
	return mentions
}

// Store owns every comment.
type Store struct {
	comments []Comment
	sink     storage.Sink
	now      func() time.Time
	newID    func() string
}

// Option configures a Store.
type Option func(*Store)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithIDGenerator replaces the uuid generator.
func WithIDGenerator(gen func() string) Option {
	return func(s *Store) { s.newID = gen }
}

// NewStore returns a store seeded with a loaded snapshot.
func NewStore(comments []Comment, sink storage.Sink, opts ...Option) *Store {
	if sink == nil {
		sink = storage.Discard{}
	}
	s := &Store{sink: sink, now: time.Now, newID: uuid.NewString}
	for _, c := range comments {
		s.comments = append(s.comments, c.clone())
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Add appends a comment to a task. A non-empty parentID makes it a reply.
func (s *Store) Add(taskID, userID, userName, content, parentID string) (Comment, error) {
	if err := validateContent(content); err != nil {
		return Comment{}, err
	}
	if parentID != "" {
		parent, err := s.Get(parentID)
		if err != nil {
			return Comment{}, err
		}
		if parent.TaskID != taskID {
			return Comment{}, clierr.Newf(clierr.ValidationError,
				"comment %s belongs to another task", parentID).
				WithDetails(map[string]any{"parent": parentID, "task": taskID})
		}
		parentID = parent.ID
		if parent.ParentID != "" {
			parentID = parent.ParentID
		}
	}

	now := s.now()
	c := Comment{
		ID:        s.newID(),
		TaskID:    taskID,
		ParentID:  parentID,
		UserID:    userID,
		UserName:  userName,
		Content:   content,
		Mentions:  ExtractMentions(content),
		CreatedAt: now,
		UpdatedAt: now,
	}
	err := s.mutate(func(list []Comment) []Comment { return append(list, c) })
	if err != nil {
		return Comment{}, err
	}
	return c.clone(), nil
}

// Edit replaces a comment's content and re-extracts its mentions.
func (s *Store) Edit(id, content string) (Comment, error) {
	if err := validateContent(content); err != nil {
		return Comment{}, err
	}
	i := s.index(id)
	if i < 0 {
		return Comment{}, ErrNotFound(id)
	}
	c := s.comments[i].clone()
	c.Content = content
	c.Mentions = ExtractMentions(content)
	c.IsEdited = true
	if now := s.now(); now.After(c.UpdatedAt) {
		c.UpdatedAt = now
	}
	err := s.mutate(func(list []Comment) []Comment {
		list[i] = c
		return list
	})
	if err != nil {
		return Comment{}, err
	}
	return c.clone(), nil
}

// Delete removes a comment and its replies, returning everything removed.
func (s *Store) Delete(id string) ([]Comment, error) {
	if s.index(id) < 0 {
		return nil, ErrNotFound(id)
	}
	return s.remove(func(c Comment) bool { return c.ID == id || c.ParentID == id })
}

// DeleteForTask removes every comment on a task.
func (s *Store) DeleteForTask(taskID string) ([]Comment, error) {
	return s.remove(func(c Comment) bool { return c.TaskID == taskID })
}

// Get returns a comment by id or unique id prefix.
func (s *Store) Get(id string) (Comment, error) {
	if i := s.index(id); i >= 0 {
		return s.comments[i].clone(), nil
	}
	var matches []string
	found := -1
	for i, c := range s.comments {
		if id != "" && strings.HasPrefix(c.ID, id) {
			matches = append(matches, c.ID)
			found = i
		}
	}
	switch len(matches) {
	case 0:
		return Comment{}, ErrNotFound(id)
	case 1:
		return s.comments[found].clone(), nil
	}
	return Comment{}, clierr.Newf(clierr.InvalidInput, "comment id %q is ambiguous (%d matches)", id, len(matches)).
		WithDetails(map[string]any{"input": id, "matches": matches})
}

// ForTask returns every comment on a task in creation order.
func (s *Store) ForTask(taskID string) []Comment {
	var out []Comment
	for _, c := range s.comments {
		if c.TaskID == taskID {
			out = append(out, c.clone())
		}
	}
	return out
}

// Threads groups a task's comments into top-level threads.
func (s *Store) Threads(taskID string) []Thread {
	var threads []Thread
	pos := map[string]int{}
	for _, c := range s.ForTask(taskID) {
		if c.ParentID == "" {
			pos[c.ID] = len(threads)
			threads = append(threads, Thread{Comment: c, Replies: []Comment{}})
		}
	}
	for _, c := range s.ForTask(taskID) {
		if c.ParentID == "" {
			continue
		}
		if i, ok := pos[c.ParentID]; ok {
			threads[i].Replies = append(threads[i].Replies, c)
		}
	}
	return threads
}

// Count returns the number of comments on a task.
func (s *Store) Count(taskID string) int {
	n := 0
	for _, c := range s.comments {
		if c.TaskID == taskID {
			n++
		}
	}
	return n
}

// Checkpoint captures every comment and returns a function restoring them.
func (s *Store) Checkpoint() func() {
	saved := make([]Comment, len(s.comments))
	for i, c := range s.comments {
		saved[i] = c.clone()
	}
	return func() { s.comments = saved }
}

// ErrNotFound returns a NOT_FOUND error for a comment id.
func ErrNotFound(id string) *clierr.Error {
	return clierr.Newf(clierr.NotFound, "comment not found: %s", id).
		WithDetails(map[string]any{"id": id})
}

func validateContent(content string) error {
	if strings.TrimSpace(content) == "" {
		return clierr.New(clierr.ValidationError, "comment content is required").
			WithDetails(map[string]any{"field": "content"})
	}
	return nil
}

func (s *Store) remove(match func(Comment) bool) ([]Comment, error) {
	var removed []Comment
	for _, c := range s.comments {
		if match(c) {
			removed = append(removed, c.clone())
		}
	}
	if len(removed) == 0 {
		return nil, nil
	}
	err := s.mutate(func(list []Comment) []Comment { return slices.DeleteFunc(list, match) })
	if err != nil {
		return nil, err
	}
	return removed, nil
}

func (s *Store) mutate(fn func([]Comment) []Comment) error {
	prev := s.comments
	next := fn(slices.Clone(s.comments))
	if next == nil {
		next = []Comment{}
	}
	s.comments = next
	if err := s.sink.Put(storage.KeyComments, s.comments); err != nil {
		s.comments = prev
		return err
	}
	return nil
}

func (s *Store) index(id string) int {
	return slices.IndexFunc(s.comments, func(c Comment) bool { return c.ID == id })
}
