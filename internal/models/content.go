// Package models defines the agent content and state model: content items
// (inbox, todo, notepad), the per-agent content collection, the agent and MCP
// server entities, and layout preferences. Mutations notify subscribers
// synchronously; persistence is JSON, one file per entity.
//
// The daemon serves the MCP transport and the admin HTTP surface from
// separate goroutines over the same instances, so every model type guards its
// mutable state with its own lock. Notifications are delivered after the
// lock is released.
package models

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/rknell/vibe-coder-sub002/internal/ids"
	"github.com/rknell/vibe-coder-sub002/internal/observer"
	"github.com/rknell/vibe-coder-sub002/internal/validate"
)

// ContentType classifies a content item.
type ContentType string

const (
	ContentTypeInbox   ContentType = "inbox"
	ContentTypeTodo    ContentType = "todo"
	ContentTypeNotepad ContentType = "notepad"
)

// Priority orders content items from low (1) to urgent (4).
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

// Ordinal returns the numeric rank of p, 1-4. Unknown priorities rank 0.
func (p Priority) Ordinal() int {
	switch p {
	case PriorityLow:
		return 1
	case PriorityMedium:
		return 2
	case PriorityHigh:
		return 3
	case PriorityUrgent:
		return 4
	default:
		return 0
	}
}

// Valid reports whether p is one of the four known priorities.
func (p Priority) Valid() bool { return p.Ordinal() != 0 }

// ContentItem carries the fields common to inbox and todo items. The id,
// contentType, and createdAt are immutable; updatedAt never decreases.
//
// Items embed ContentItem by value and initialize it in place via init or
// decode; the base is never copied once constructed, so mu and the notifier
// stay with the one instance.
type ContentItem struct {
	mu sync.RWMutex

	id          string
	content     string
	contentType ContentType
	priority    Priority
	createdAt   time.Time
	updatedAt   time.Time
	metadata    map[string]any

	events observer.Notifier
}

// init sanitizes and validates content and populates the shared base in
// place on the embedding struct.
func (c *ContentItem) init(content string, ct ContentType, priority Priority) error {
	content = validate.SanitizeContent(content)
	if !validate.Content(content) {
		return newValidationError("content item", "", "content must be non-empty, within the length cap, and free of blocked patterns")
	}
	if !priority.Valid() {
		priority = PriorityMedium
	}
	now := time.Now().UTC()
	c.id = ids.New()
	c.content = content
	c.contentType = ct
	c.priority = priority
	c.createdAt = now
	c.updatedAt = now
	c.metadata = map[string]any{}
	return nil
}

// ID returns the immutable item id.
func (c *ContentItem) ID() string { return c.id }

// Content returns the item's text.
func (c *ContentItem) Content() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.content
}

// Type returns the item's immutable content type.
func (c *ContentItem) Type() ContentType { return c.contentType }

// Priority returns the item's priority.
func (c *ContentItem) Priority() Priority {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.priority
}

// CreatedAt returns the immutable creation timestamp.
func (c *ContentItem) CreatedAt() time.Time { return c.createdAt }

// UpdatedAt returns the last mutation timestamp.
func (c *ContentItem) UpdatedAt() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.updatedAt
}

// Metadata returns a copy of the item's metadata map.
func (c *ContentItem) Metadata() map[string]any {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[string]any, len(c.metadata))
	for k, v := range c.metadata {
		out[k] = v
	}
	return out
}

// Subscribe registers fn for this item's change events.
func (c *ContentItem) Subscribe(fn func(observer.Event)) func() {
	return c.events.Subscribe(fn)
}

// UpdateContent sanitizes and stores text. Content that is empty or invalid
// after sanitization is rejected with a ValidationError.
func (c *ContentItem) UpdateContent(text string) error {
	text = validate.SanitizeContent(text)
	if !validate.Content(text) {
		return newValidationError("content item", c.id, "content must be non-empty, within the length cap, and free of blocked patterns")
	}
	c.mu.Lock()
	c.content = text
	c.touch()
	c.mu.Unlock()
	c.notify()
	return nil
}

// UpdatePriority sets the item's priority. Unknown priorities are rejected.
func (c *ContentItem) UpdatePriority(p Priority) error {
	if !p.Valid() {
		return newValidationError("content item", c.id, "unknown priority "+string(p))
	}
	c.mu.Lock()
	c.priority = p
	c.touch()
	c.mu.Unlock()
	c.notify()
	return nil
}

// SetMetadata stores value under key. Values must be JSON-serializable.
func (c *ContentItem) SetMetadata(key string, value any) {
	c.mu.Lock()
	c.metadata[key] = value
	c.touch()
	c.mu.Unlock()
	c.notify()
}

// RemoveMetadata deletes key. Removing an absent key still counts as a
// mutation.
func (c *ContentItem) RemoveMetadata(key string) {
	c.mu.Lock()
	delete(c.metadata, key)
	c.touch()
	c.mu.Unlock()
	c.notify()
}

// Validate performs the structural self-check run before persistence.
func (c *ContentItem) Validate() error {
	c.mu.RLock()
	content := c.content
	createdAt := c.createdAt
	updatedAt := c.updatedAt
	c.mu.RUnlock()

	var violations []string
	if !validate.ID(c.id) {
		violations = append(violations, "id must be a canonical UUID")
	}
	if !validate.Content(content) {
		violations = append(violations, "content must be non-empty, within the length cap, and free of blocked patterns")
	}
	if updatedAt.Before(createdAt) {
		violations = append(violations, "updatedAt must not precede createdAt")
	}
	if len(violations) > 0 {
		return newValidationError("content item", c.id, violations...)
	}
	return nil
}

// touch bumps updatedAt, keeping it monotonically non-decreasing. Caller
// holds mu.
func (c *ContentItem) touch() {
	now := time.Now().UTC()
	if now.After(c.updatedAt) {
		c.updatedAt = now
	}
}

func (c *ContentItem) notify() {
	c.events.Notify(c.id, observer.KindContent)
}

// contentItemJSON is the wire form shared by inbox and todo documents.
type contentItemJSON struct {
	ID          string         `json:"id"`
	Content     string         `json:"content"`
	ContentType ContentType    `json:"content_type"`
	Priority    Priority       `json:"priority"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

// toJSON snapshots the base fields, copying the metadata map so the caller
// can marshal after releasing mu. Caller holds mu.
func (c *ContentItem) toJSON() contentItemJSON {
	meta := make(map[string]any, len(c.metadata))
	for k, v := range c.metadata {
		meta[k] = v
	}
	return contentItemJSON{
		ID:          c.id,
		Content:     c.content,
		ContentType: c.contentType,
		Priority:    c.priority,
		CreatedAt:   c.createdAt,
		UpdatedAt:   c.updatedAt,
		Metadata:    meta,
	}
}

// decode validates the decoded base fields and populates the base in place,
// leaving existing subscribers attached. want pins the expected content type
// for the concrete item. Runs before the item is shared across goroutines.
func (c *ContentItem) decode(j contentItemJSON, want ContentType) error {
	var violations []string
	if !validate.ID(j.ID) {
		violations = append(violations, "id must be a canonical UUID")
	}
	if !validate.Content(j.Content) {
		violations = append(violations, "content must be non-empty, within the length cap, and free of blocked patterns")
	}
	if j.ContentType != want {
		violations = append(violations, "content_type must be "+string(want))
	}
	if !j.Priority.Valid() {
		violations = append(violations, "unknown priority "+string(j.Priority))
	}
	if j.CreatedAt.IsZero() || j.UpdatedAt.IsZero() {
		violations = append(violations, "timestamps must be set")
	} else if j.UpdatedAt.Before(j.CreatedAt) {
		violations = append(violations, "updated_at must not precede created_at")
	}
	if len(violations) > 0 {
		return newValidationError("content item", j.ID, violations...)
	}
	meta := j.Metadata
	if meta == nil {
		meta = map[string]any{}
	}
	c.id = j.ID
	c.content = j.Content
	c.contentType = j.ContentType
	c.priority = j.Priority
	c.createdAt = j.CreatedAt
	c.updatedAt = j.UpdatedAt
	c.metadata = meta
	return nil
}

// marshalIndent is the single JSON encoding used for persisted documents:
// UTF-8, pretty-printed with 2-space indent.
func marshalIndent(v any) ([]byte, error) {
	return json.MarshalIndent(v, "", "  ")
}
