package models

import (
	"encoding/json"
	"strings"
	"time"
)

// TodoItem is an actionable task owned by an agent.
//
// Invariant: completedAt is non-nil iff isCompleted is true.
type TodoItem struct {
	ContentItem

	isCompleted bool
	dueDate     *time.Time
	completedAt *time.Time
	tags        []string // deduplicated, trimmed, insertion order
}

// NewTodoItem creates a pending todo. dueDate may be nil.
func NewTodoItem(content string, priority Priority, dueDate *time.Time) (*TodoItem, error) {
	t := &TodoItem{}
	if err := t.init(content, ContentTypeTodo, priority); err != nil {
		return nil, err
	}
	if dueDate != nil {
		d := dueDate.UTC()
		t.dueDate = &d
	}
	return t, nil
}

// IsCompleted reports whether the todo is done.
func (t *TodoItem) IsCompleted() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.isCompleted
}

// DueDate returns the optional due date.
func (t *TodoItem) DueDate() *time.Time {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return cloneTime(t.dueDate)
}

// CompletedAt returns when the todo transitioned to completed, or nil.
func (t *TodoItem) CompletedAt() *time.Time {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return cloneTime(t.completedAt)
}

// Tags returns a copy of the tag list in insertion order.
func (t *TodoItem) Tags() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]string, len(t.tags))
	copy(out, t.tags)
	return out
}

// MarkCompleted completes the todo, stamping completedAt. Idempotent.
func (t *TodoItem) MarkCompleted() {
	t.mu.Lock()
	if t.isCompleted {
		t.mu.Unlock()
		return
	}
	t.isCompleted = true
	now := time.Now().UTC()
	t.completedAt = &now
	t.touch()
	t.mu.Unlock()
	t.notify()
}

// MarkIncomplete reopens the todo, clearing completedAt. Idempotent.
func (t *TodoItem) MarkIncomplete() {
	t.mu.Lock()
	if !t.isCompleted {
		t.mu.Unlock()
		return
	}
	t.isCompleted = false
	t.completedAt = nil
	t.touch()
	t.mu.Unlock()
	t.notify()
}

// SetDueDate sets or replaces the due date.
func (t *TodoItem) SetDueDate(due time.Time) {
	d := due.UTC()
	t.mu.Lock()
	t.dueDate = &d
	t.touch()
	t.mu.Unlock()
	t.notify()
}

// ClearDueDate removes the due date. No notification if none was set.
func (t *TodoItem) ClearDueDate() {
	t.mu.Lock()
	if t.dueDate == nil {
		t.mu.Unlock()
		return
	}
	t.dueDate = nil
	t.touch()
	t.mu.Unlock()
	t.notify()
}

// AddTag appends tag after trimming. Empty and duplicate tags are rejected
// silently (no mutation, no notification). Tags are case-sensitive.
func (t *TodoItem) AddTag(tag string) {
	tag = strings.TrimSpace(tag)
	if tag == "" {
		return
	}
	t.mu.Lock()
	for _, existing := range t.tags {
		if existing == tag {
			t.mu.Unlock()
			return
		}
	}
	t.tags = append(t.tags, tag)
	t.touch()
	t.mu.Unlock()
	t.notify()
}

// RemoveTag deletes tag. No-op if absent.
func (t *TodoItem) RemoveTag(tag string) {
	t.mu.Lock()
	for i, existing := range t.tags {
		if existing == tag {
			t.tags = append(t.tags[:i], t.tags[i+1:]...)
			t.touch()
			t.mu.Unlock()
			t.notify()
			return
		}
	}
	t.mu.Unlock()
}

// IsOverdue reports whether the todo has a due date in the past and is not
// completed.
func (t *TodoItem) IsOverdue() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.dueDate != nil && t.dueDate.Before(time.Now()) && !t.isCompleted
}

// TimeUntilDue returns the remaining time before the due date, or nil when no
// due date is set or it has already passed.
func (t *TodoItem) TimeUntilDue() *time.Duration {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if t.dueDate == nil {
		return nil
	}
	remaining := time.Until(*t.dueDate)
	if remaining <= 0 {
		return nil
	}
	return &remaining
}

// Validate extends the base structural check with the completion invariant.
func (t *TodoItem) Validate() error {
	err := t.ContentItem.Validate()
	t.mu.RLock()
	inconsistent := t.isCompleted != (t.completedAt != nil)
	t.mu.RUnlock()
	if inconsistent {
		v := "completedAt must be set exactly when the todo is completed"
		if verr, ok := err.(*ValidationError); ok {
			verr.Violations = append(verr.Violations, v)
			return verr
		}
		return newValidationError("content item", t.id, v)
	}
	return err
}

type todoItemJSON struct {
	contentItemJSON
	IsCompleted bool       `json:"is_completed"`
	DueDate     *time.Time `json:"due_date,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	Tags        []string   `json:"tags,omitempty"`
}

// MarshalJSON round-trips every field.
func (t *TodoItem) MarshalJSON() ([]byte, error) {
	t.mu.RLock()
	doc := todoItemJSON{
		contentItemJSON: t.toJSON(),
		IsCompleted:     t.isCompleted,
		DueDate:         cloneTime(t.dueDate),
		CompletedAt:     cloneTime(t.completedAt),
		Tags:            append([]string(nil), t.tags...),
	}
	t.mu.RUnlock()
	return json.Marshal(doc)
}

// UnmarshalJSON decodes and validates a persisted todo item, populating the
// receiver in place.
func (t *TodoItem) UnmarshalJSON(data []byte) error {
	var j todoItemJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return err
	}
	if j.IsCompleted != (j.CompletedAt != nil) {
		return newValidationError("content item", j.ID, "completed_at must be set exactly when is_completed is true")
	}
	if err := t.decode(j.contentItemJSON, ContentTypeTodo); err != nil {
		return err
	}
	t.isCompleted = j.IsCompleted
	t.dueDate = cloneTime(j.DueDate)
	t.completedAt = cloneTime(j.CompletedAt)
	t.tags = j.Tags
	return nil
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	c := *t
	return &c
}
