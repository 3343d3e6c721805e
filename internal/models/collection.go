package models

import (
	"encoding/json"
	"sync"

	"github.com/rknell/vibe-coder-sub002/internal/observer"
)

// ContentCollection aggregates one agent's inbox, todos, and notepad. It
// subscribes to every child and re-broadcasts child changes as its own
// collection-level event. Items are owned exclusively by the collection;
// accessor slices are copies.
//
// Safe for concurrent use. The lock guards the item slices and the
// subscription table; notifications fire after it is released, so a
// subscriber may call back into the collection.
type ContentCollection struct {
	agentID string

	mu      sync.RWMutex
	notepad *Notepad
	inbox   []*InboxItem // insertion order
	todos   []*TodoItem  // explicit reorderable sequence

	events       observer.Notifier
	unsubs       map[string]func()
	notepadUnsub func()
}

// NewContentCollection creates an empty collection for agentID.
func NewContentCollection(agentID string) *ContentCollection {
	c := &ContentCollection{
		agentID: agentID,
		notepad: NewNotepad(),
		unsubs:  map[string]func(){},
	}
	c.notepadUnsub = c.notepad.Subscribe(c.relay)
	return c
}

// AgentID returns the owning agent's id.
func (c *ContentCollection) AgentID() string { return c.agentID }

// Notepad returns the collection's notepad.
func (c *ContentCollection) Notepad() *Notepad {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.notepad
}

// Subscribe registers fn for collection-level change events.
func (c *ContentCollection) Subscribe(fn func(observer.Event)) func() {
	return c.events.Subscribe(fn)
}

// relay re-broadcasts a child change as a collection event. It takes no lock:
// child items notify outside their own locks and the relay touches no
// collection state.
func (c *ContentCollection) relay(observer.Event) {
	c.events.Notify(c.agentID, observer.KindCollection)
}

// AddInboxItem appends item, subscribes to it, and notifies.
func (c *ContentCollection) AddInboxItem(item *InboxItem) {
	c.mu.Lock()
	c.inbox = append(c.inbox, item)
	c.unsubs[item.ID()] = item.Subscribe(c.relay)
	c.mu.Unlock()
	c.events.Notify(c.agentID, observer.KindCollection)
}

// AddTodoItem appends item, subscribes to it, and notifies.
func (c *ContentCollection) AddTodoItem(item *TodoItem) {
	c.mu.Lock()
	c.todos = append(c.todos, item)
	c.unsubs[item.ID()] = item.Subscribe(c.relay)
	c.mu.Unlock()
	c.events.Notify(c.agentID, observer.KindCollection)
}

// RemoveInboxItem unsubscribes and removes the item with id. Removing an
// unknown id is a graceful no-op: nothing changes, nothing notifies.
func (c *ContentCollection) RemoveInboxItem(id string) {
	c.mu.Lock()
	removed := false
	for i, item := range c.inbox {
		if item.ID() == id {
			c.dropSubscription(id)
			c.inbox = append(c.inbox[:i], c.inbox[i+1:]...)
			removed = true
			break
		}
	}
	c.mu.Unlock()
	if removed {
		c.events.Notify(c.agentID, observer.KindCollection)
	}
}

// RemoveTodoItem unsubscribes and removes the item with id. Graceful no-op
// when absent.
func (c *ContentCollection) RemoveTodoItem(id string) {
	c.mu.Lock()
	removed := false
	for i, item := range c.todos {
		if item.ID() == id {
			c.dropSubscription(id)
			c.todos = append(c.todos[:i], c.todos[i+1:]...)
			removed = true
			break
		}
	}
	c.mu.Unlock()
	if removed {
		c.events.Notify(c.agentID, observer.KindCollection)
	}
}

// InboxItems returns the inbox in insertion order.
func (c *ContentCollection) InboxItems() []*InboxItem {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]*InboxItem, len(c.inbox))
	copy(out, c.inbox)
	return out
}

// TodoItems returns the todos in their explicit order.
func (c *ContentCollection) TodoItems() []*TodoItem {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]*TodoItem, len(c.todos))
	copy(out, c.todos)
	return out
}

// InboxItem returns the inbox item with id, or nil.
func (c *ContentCollection) InboxItem(id string) *InboxItem {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, item := range c.inbox {
		if item.ID() == id {
			return item
		}
	}
	return nil
}

// TodoItem returns the todo with id, or nil.
func (c *ContentCollection) TodoItem(id string) *TodoItem {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, item := range c.todos {
		if item.ID() == id {
			return item
		}
	}
	return nil
}

// ReorderTodos rebuilds the todo list to match orderedIDs. Todos absent from
// orderedIDs keep their prior relative order at the end; no item is dropped.
// An id in orderedIDs that is not in the collection is a NotFoundError.
func (c *ContentCollection) ReorderTodos(orderedIDs []string) error {
	c.mu.Lock()
	byID := make(map[string]*TodoItem, len(c.todos))
	for _, item := range c.todos {
		byID[item.ID()] = item
	}

	reordered := make([]*TodoItem, 0, len(c.todos))
	placed := make(map[string]bool, len(orderedIDs))
	for _, id := range orderedIDs {
		item, ok := byID[id]
		if !ok {
			c.mu.Unlock()
			return &NotFoundError{Kind: "todo", ID: id}
		}
		if placed[id] {
			continue
		}
		placed[id] = true
		reordered = append(reordered, item)
	}
	for _, item := range c.todos {
		if !placed[item.ID()] {
			reordered = append(reordered, item)
		}
	}

	c.todos = reordered
	c.mu.Unlock()
	c.events.Notify(c.agentID, observer.KindCollection)
	return nil
}

// UnreadInbox returns unread inbox items in insertion order.
func (c *ContentCollection) UnreadInbox() []*InboxItem {
	var out []*InboxItem
	for _, item := range c.InboxItems() {
		if !item.IsRead() {
			out = append(out, item)
		}
	}
	return out
}

// PendingTodos returns incomplete todos in their current order.
func (c *ContentCollection) PendingTodos() []*TodoItem {
	var out []*TodoItem
	for _, item := range c.TodoItems() {
		if !item.IsCompleted() {
			out = append(out, item)
		}
	}
	return out
}

// OverdueTodos returns incomplete todos whose due date has passed.
func (c *ContentCollection) OverdueTodos() []*TodoItem {
	var out []*TodoItem
	for _, item := range c.TodoItems() {
		if item.IsOverdue() {
			out = append(out, item)
		}
	}
	return out
}

// TodosByPriority returns todos with priority p in their current order.
func (c *ContentCollection) TodosByPriority(p Priority) []*TodoItem {
	var out []*TodoItem
	for _, item := range c.TodoItems() {
		if item.Priority() == p {
			out = append(out, item)
		}
	}
	return out
}

// Dispose unsubscribes from every child before releasing references.
func (c *ContentCollection) Dispose() {
	c.mu.Lock()
	unsubs := make([]func(), 0, len(c.unsubs)+1)
	for id, unsub := range c.unsubs {
		unsubs = append(unsubs, unsub)
		delete(c.unsubs, id)
	}
	if c.notepadUnsub != nil {
		unsubs = append(unsubs, c.notepadUnsub)
		c.notepadUnsub = nil
	}
	c.inbox = nil
	c.todos = nil
	c.mu.Unlock()
	for _, unsub := range unsubs {
		unsub()
	}
}

// dropSubscription is called with mu held.
func (c *ContentCollection) dropSubscription(id string) {
	if unsub, ok := c.unsubs[id]; ok {
		unsub()
		delete(c.unsubs, id)
	}
}

type collectionJSON struct {
	Notepad *Notepad     `json:"notepad"`
	Inbox   []*InboxItem `json:"inbox"`
	Todos   []*TodoItem  `json:"todos"`
}

// MarshalJSON round-trips the collection's items and notepad. The agent id
// lives on the enclosing agent document.
func (c *ContentCollection) MarshalJSON() ([]byte, error) {
	c.mu.RLock()
	doc := collectionJSON{
		Notepad: c.notepad,
		Inbox:   append([]*InboxItem(nil), c.inbox...),
		Todos:   append([]*TodoItem(nil), c.todos...),
	}
	c.mu.RUnlock()
	return json.Marshal(doc)
}

// UnmarshalJSON restores items and re-establishes child subscriptions.
func (c *ContentCollection) UnmarshalJSON(data []byte) error {
	var j collectionJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return err
	}
	if j.Notepad == nil {
		j.Notepad = NewNotepad()
	}
	c.mu.Lock()
	if c.notepadUnsub != nil {
		c.notepadUnsub()
	}
	c.notepad = j.Notepad
	c.inbox = nil
	c.todos = nil
	c.unsubs = map[string]func(){}
	c.notepadUnsub = c.notepad.Subscribe(c.relay)
	for _, item := range j.Inbox {
		c.inbox = append(c.inbox, item)
		c.unsubs[item.ID()] = item.Subscribe(c.relay)
	}
	for _, item := range j.Todos {
		c.todos = append(c.todos, item)
		c.unsubs[item.ID()] = item.Subscribe(c.relay)
	}
	c.mu.Unlock()
	return nil
}
