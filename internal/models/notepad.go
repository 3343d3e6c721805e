package models

import (
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/rknell/vibe-coder-sub002/internal/observer"
	"github.com/rknell/vibe-coder-sub002/internal/validate"
)

// Notepad is the single free-text blob per agent. Unlike inbox and todo items
// it is not a ContentItem: it has no id or priority, may be empty, and caches
// its word/line/character counts lazily, invalidating on every mutation.
//
// A plain Mutex rather than RWMutex: the count accessors fill the stats cache,
// so reads write too.
type Notepad struct {
	mu        sync.Mutex
	content   string
	updatedAt time.Time
	stats     *notepadStats // nil until computed

	events observer.Notifier
}

type notepadStats struct {
	words      int
	lines      int
	characters int
}

// NewNotepad returns an empty notepad.
func NewNotepad() *Notepad {
	return &Notepad{updatedAt: time.Now().UTC()}
}

// Content returns the notepad text.
func (n *Notepad) Content() string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.content
}

// UpdatedAt returns the last mutation timestamp.
func (n *Notepad) UpdatedAt() time.Time {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.updatedAt
}

// Subscribe registers fn for the notepad's change events.
func (n *Notepad) Subscribe(fn func(observer.Event)) func() {
	return n.events.Subscribe(fn)
}

// Update replaces the notepad content with sanitized text.
func (n *Notepad) Update(text string) {
	n.mu.Lock()
	n.set(validate.SanitizeContent(text))
	n.mu.Unlock()
	n.notify()
}

// Append adds sanitized text to the end, separated by a newline when the
// notepad is non-empty.
func (n *Notepad) Append(text string) {
	text = validate.SanitizeContent(text)
	if text == "" {
		return
	}
	n.mu.Lock()
	if n.content == "" {
		n.set(text)
	} else {
		n.set(n.content + "\n" + text)
	}
	n.mu.Unlock()
	n.notify()
}

// Prepend adds sanitized text to the beginning, separated by a newline when
// the notepad is non-empty.
func (n *Notepad) Prepend(text string) {
	text = validate.SanitizeContent(text)
	if text == "" {
		return
	}
	n.mu.Lock()
	if n.content == "" {
		n.set(text)
	} else {
		n.set(text + "\n" + n.content)
	}
	n.mu.Unlock()
	n.notify()
}

// Clear empties the notepad. The notepad is the only content holder allowed
// to become empty.
func (n *Notepad) Clear() {
	n.mu.Lock()
	n.set("")
	n.mu.Unlock()
	n.notify()
}

// WordCount returns the cached whitespace-delimited word count.
func (n *Notepad) WordCount() int { return n.computeStats().words }

// LineCount returns the cached line count. An empty notepad has zero lines.
func (n *Notepad) LineCount() int { return n.computeStats().lines }

// CharacterCount returns the cached character (rune) count.
func (n *Notepad) CharacterCount() int { return n.computeStats().characters }

// set stores text and invalidates the stats cache. Caller holds mu and
// notifies after releasing it.
func (n *Notepad) set(text string) {
	n.content = text
	n.stats = nil
	now := time.Now().UTC()
	if now.After(n.updatedAt) {
		n.updatedAt = now
	}
}

func (n *Notepad) notify() {
	n.events.Notify("notepad", observer.KindContent)
}

func (n *Notepad) computeStats() notepadStats {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.stats != nil {
		return *n.stats
	}
	s := notepadStats{characters: len([]rune(n.content))}
	if n.content != "" {
		s.words = len(strings.Fields(n.content))
		s.lines = strings.Count(n.content, "\n") + 1
	}
	n.stats = &s
	return s
}

type notepadJSON struct {
	Content   string    `json:"content"`
	UpdatedAt time.Time `json:"updated_at"`
}

// MarshalJSON persists content and timestamp; cached statistics are derived
// and never stored.
func (n *Notepad) MarshalJSON() ([]byte, error) {
	n.mu.Lock()
	doc := notepadJSON{Content: n.content, UpdatedAt: n.updatedAt}
	n.mu.Unlock()
	return json.Marshal(doc)
}

// UnmarshalJSON restores a persisted notepad.
func (n *Notepad) UnmarshalJSON(data []byte) error {
	var j notepadJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return err
	}
	n.mu.Lock()
	n.content = j.Content
	n.updatedAt = j.UpdatedAt
	if n.updatedAt.IsZero() {
		n.updatedAt = time.Now().UTC()
	}
	n.stats = nil
	n.mu.Unlock()
	return nil
}
