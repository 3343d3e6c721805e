package models

import (
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/rknell/vibe-coder-sub002/internal/runtime"
	"github.com/rknell/vibe-coder-sub002/internal/store"
)

// newTestFiles builds a FileStore backed by a fast-retry queue that is
// stopped when the test ends.
func newTestFiles(t *testing.T) (*store.FileStore, *store.WriteQueue) {
	t.Helper()
	q := store.NewWriteQueue(store.QueueConfig{
		BaseBackoff: time.Millisecond,
		MaxInterval: 5 * time.Millisecond,
	}, zerolog.Nop())
	t.Cleanup(q.Stop)
	return store.NewFileStore(q, zerolog.Nop()), q
}

func testAgentDeps(t *testing.T, script ...string) AgentDeps {
	t.Helper()
	files, _ := newTestFiles(t)
	return AgentDeps{
		Files:   files,
		Dir:     t.TempDir(),
		Runtime: runtime.ScriptedFactory(script...),
	}
}

func testServerDeps(t *testing.T) ServerDeps {
	t.Helper()
	files, _ := newTestFiles(t)
	return ServerDeps{Files: files, Dir: t.TempDir()}
}

func mustInbox(t *testing.T, content, sender string, p Priority) *InboxItem {
	t.Helper()
	item, err := NewInboxItem(content, sender, p)
	if err != nil {
		t.Fatalf("NewInboxItem: %v", err)
	}
	return item
}

func mustTodo(t *testing.T, content string, p Priority, due *time.Time) *TodoItem {
	t.Helper()
	item, err := NewTodoItem(content, p, due)
	if err != nil {
		t.Fatalf("NewTodoItem: %v", err)
	}
	return item
}
