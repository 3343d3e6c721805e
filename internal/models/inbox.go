package models

import (
	"encoding/json"
	"strings"
	"time"
)

// InboxItem is an inbound message delivered to an agent. It is never
// completed, only read or deleted by the owning collection.
type InboxItem struct {
	ContentItem

	isRead       bool
	sender       string
	dateReceived time.Time
}

// NewInboxItem creates an unread inbox item. sender may be empty.
func NewInboxItem(content, sender string, priority Priority) (*InboxItem, error) {
	i := &InboxItem{sender: strings.TrimSpace(sender)}
	if err := i.init(content, ContentTypeInbox, priority); err != nil {
		return nil, err
	}
	i.dateReceived = i.createdAt
	return i, nil
}

// IsRead reports whether the item has been read.
func (i *InboxItem) IsRead() bool {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return i.isRead
}

// Sender returns the optional sender name.
func (i *InboxItem) Sender() string { return i.sender }

// DateReceived returns the immutable arrival timestamp.
func (i *InboxItem) DateReceived() time.Time { return i.dateReceived }

// MarkAsRead marks the item read. Idempotent: no notification when already
// read.
func (i *InboxItem) MarkAsRead() {
	i.mu.Lock()
	if i.isRead {
		i.mu.Unlock()
		return
	}
	i.isRead = true
	i.touch()
	i.mu.Unlock()
	i.notify()
}

// MarkAsUnread marks the item unread. Idempotent.
func (i *InboxItem) MarkAsUnread() {
	i.mu.Lock()
	if !i.isRead {
		i.mu.Unlock()
		return
	}
	i.isRead = false
	i.touch()
	i.mu.Unlock()
	i.notify()
}

// Preview returns the first maxLines lines of content, never truncating
// mid-line. maxLines <= 0 defaults to 5.
func (i *InboxItem) Preview(maxLines int) string {
	if maxLines <= 0 {
		maxLines = 5
	}
	content := i.Content()
	lines := strings.Split(content, "\n")
	if len(lines) <= maxLines {
		return content
	}
	return strings.Join(lines[:maxLines], "\n")
}

type inboxItemJSON struct {
	contentItemJSON
	IsRead       bool      `json:"is_read"`
	Sender       string    `json:"sender,omitempty"`
	DateReceived time.Time `json:"date_received"`
}

// MarshalJSON round-trips every field.
func (i *InboxItem) MarshalJSON() ([]byte, error) {
	i.mu.RLock()
	doc := inboxItemJSON{
		contentItemJSON: i.toJSON(),
		IsRead:          i.isRead,
		Sender:          i.sender,
		DateReceived:    i.dateReceived,
	}
	i.mu.RUnlock()
	return json.Marshal(doc)
}

// UnmarshalJSON decodes and validates a persisted inbox item, populating the
// receiver in place.
func (i *InboxItem) UnmarshalJSON(data []byte) error {
	var j inboxItemJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return err
	}
	if err := i.decode(j.contentItemJSON, ContentTypeInbox); err != nil {
		return err
	}
	if j.DateReceived.IsZero() {
		j.DateReceived = i.createdAt
	}
	i.isRead = j.IsRead
	i.sender = j.Sender
	i.dateReceived = j.DateReceived
	return nil
}
