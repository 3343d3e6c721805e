package mcptools

import (
	"context"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rknell/vibe-coder-sub002/internal/models"
)

func contentFixture(t *testing.T) (*ContentHandler, *models.Agent) {
	t.Helper()
	reg := newTestRegistry(t)
	a, err := reg.CreateAgent(context.Background(), "helper", "p")
	require.NoError(t, err)
	return NewContentHandler(reg, zerolog.Nop()), a
}

func TestInboxFlow(t *testing.T) {
	ch, a := contentFixture(t)
	ctx := context.Background()

	res, err := ch.handleAddInboxItem(ctx, callReq(map[string]any{
		"agent_id": a.ID(),
		"content":  "line one\nline two",
		"sender":   "alice",
		"priority": "high",
	}))
	require.NoError(t, err)

	var added inboxItemView
	decodeResult(t, res, &added)
	assert.Equal(t, "alice", added.Sender)
	assert.Equal(t, "high", added.Priority)
	assert.False(t, added.IsRead)

	// The mutation was persisted, not just applied in memory.
	require.FileExists(t, a.Path())

	res, err = ch.handleMarkInboxRead(ctx, callReq(map[string]any{
		"agent_id": a.ID(),
		"item_id":  added.ID,
	}))
	require.NoError(t, err)
	var marked inboxItemView
	decodeResult(t, res, &marked)
	assert.True(t, marked.IsRead)

	res, err = ch.handleListInbox(ctx, callReq(map[string]any{
		"agent_id":    a.ID(),
		"unread_only": true,
	}))
	require.NoError(t, err)
	var unread []inboxItemView
	decodeResult(t, res, &unread)
	assert.Empty(t, unread)
}

func TestMissingRequiredArguments(t *testing.T) {
	ch, a := contentFixture(t)
	ctx := context.Background()

	tests := []struct {
		name    string
		call    func() (*mcp.CallToolResult, error)
		missing string
	}{
		{
			name: "add_inbox_item without agent_id",
			call: func() (*mcp.CallToolResult, error) {
				return ch.handleAddInboxItem(ctx, callReq(map[string]any{"content": "hello"}))
			},
			missing: "agent_id",
		},
		{
			name: "add_todo without content",
			call: func() (*mcp.CallToolResult, error) {
				return ch.handleAddTodo(ctx, callReq(map[string]any{"agent_id": a.ID()}))
			},
			missing: "content",
		},
		{
			name: "mark_inbox_read without item_id",
			call: func() (*mcp.CallToolResult, error) {
				return ch.handleMarkInboxRead(ctx, callReq(map[string]any{"agent_id": a.ID()}))
			},
			missing: "item_id",
		},
		{
			name: "update_notepad without agent_id",
			call: func() (*mcp.CallToolResult, error) {
				return ch.handleUpdateNotepad(ctx, callReq(map[string]any{"content": "note"}))
			},
			missing: "agent_id",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := tt.call()
			require.NoError(t, err)
			require.True(t, res.IsError, "a missing required argument must be a tool error")
			text, ok := res.Content[0].(mcp.TextContent)
			require.True(t, ok)
			assert.Contains(t, text.Text, tt.missing, "the error names the missing argument")
		})
	}
}

func TestMarkInboxReadUnknownItem(t *testing.T) {
	ch, a := contentFixture(t)

	res, err := ch.handleMarkInboxRead(context.Background(), callReq(map[string]any{
		"agent_id": a.ID(),
		"item_id":  "ghost",
	}))
	require.NoError(t, err)
	assert.True(t, res.IsError)
}

func TestAddInboxItemRejectsBlockedContent(t *testing.T) {
	ch, a := contentFixture(t)

	res, err := ch.handleAddInboxItem(context.Background(), callReq(map[string]any{
		"agent_id": a.ID(),
		"content":  "<script>alert(1)</script>",
	}))
	require.NoError(t, err)
	assert.True(t, res.IsError)
	assert.Empty(t, a.Content().InboxItems())
}

func TestTodoFlow(t *testing.T) {
	ch, a := contentFixture(t)
	ctx := context.Background()

	due := time.Now().Add(-time.Hour).UTC().Format(time.RFC3339)
	res, err := ch.handleAddTodo(ctx, callReq(map[string]any{
		"agent_id": a.ID(),
		"content":  "late task",
		"priority": "urgent",
		"due_date": due,
	}))
	require.NoError(t, err)

	var added todoItemView
	decodeResult(t, res, &added)
	assert.True(t, added.IsOverdue)

	res, err = ch.handleListTodos(ctx, callReq(map[string]any{
		"agent_id": a.ID(),
		"filter":   "overdue",
	}))
	require.NoError(t, err)
	var overdue []todoItemView
	decodeResult(t, res, &overdue)
	require.Len(t, overdue, 1)

	res, err = ch.handleCompleteTodo(ctx, callReq(map[string]any{
		"agent_id": a.ID(),
		"item_id":  added.ID,
	}))
	require.NoError(t, err)
	var completed todoItemView
	decodeResult(t, res, &completed)
	assert.True(t, completed.IsCompleted)

	res, err = ch.handleListTodos(ctx, callReq(map[string]any{
		"agent_id": a.ID(),
		"filter":   "pending",
	}))
	require.NoError(t, err)
	var pending []todoItemView
	decodeResult(t, res, &pending)
	assert.Empty(t, pending)
}

func TestAddTodoRejectsBadDueDate(t *testing.T) {
	ch, a := contentFixture(t)

	res, err := ch.handleAddTodo(context.Background(), callReq(map[string]any{
		"agent_id": a.ID(),
		"content":  "task",
		"due_date": "next tuesday",
	}))
	require.NoError(t, err)
	assert.True(t, res.IsError)
}

func TestListTodosRejectsUnknownFilter(t *testing.T) {
	ch, a := contentFixture(t)

	res, err := ch.handleListTodos(context.Background(), callReq(map[string]any{
		"agent_id": a.ID(),
		"filter":   "done",
	}))
	require.NoError(t, err)
	assert.True(t, res.IsError)
}

func TestReorderTodosTool(t *testing.T) {
	ch, a := contentFixture(t)
	ctx := context.Background()

	var ids []string
	for _, content := range []string{"one", "two", "three"} {
		res, err := ch.handleAddTodo(ctx, callReq(map[string]any{
			"agent_id": a.ID(),
			"content":  content,
		}))
		require.NoError(t, err)
		var v todoItemView
		decodeResult(t, res, &v)
		ids = append(ids, v.ID)
	}

	res, err := ch.handleReorderTodos(ctx, callReq(map[string]any{
		"agent_id":    a.ID(),
		"ordered_ids": []any{ids[2], ids[0]},
	}))
	require.NoError(t, err)

	var got []todoItemView
	decodeResult(t, res, &got)
	require.Len(t, got, 3)
	assert.Equal(t, ids[2], got[0].ID)
	assert.Equal(t, ids[0], got[1].ID)
	assert.Equal(t, ids[1], got[2].ID, "omitted ids keep their relative order at the end")
}

func TestReorderTodosUnknownIDTool(t *testing.T) {
	ch, a := contentFixture(t)

	res, err := ch.handleReorderTodos(context.Background(), callReq(map[string]any{
		"agent_id":    a.ID(),
		"ordered_ids": []any{"ghost"},
	}))
	require.NoError(t, err)
	assert.True(t, res.IsError)
}

func TestNotepadTools(t *testing.T) {
	ch, a := contentFixture(t)
	ctx := context.Background()

	res, err := ch.handleUpdateNotepad(ctx, callReq(map[string]any{
		"agent_id": a.ID(),
		"content":  "first line",
	}))
	require.NoError(t, err)
	var stats map[string]any
	decodeResult(t, res, &stats)
	assert.Equal(t, float64(2), stats["word_count"])

	res, err = ch.handleAppendNotepad(ctx, callReq(map[string]any{
		"agent_id": a.ID(),
		"content":  "second line",
	}))
	require.NoError(t, err)
	decodeResult(t, res, &stats)
	assert.Equal(t, float64(2), stats["line_count"])

	res, err = ch.handleReadNotepad(ctx, callReq(map[string]any{"agent_id": a.ID()}))
	require.NoError(t, err)
	var pad map[string]any
	decodeResult(t, res, &pad)
	assert.Equal(t, "first line\nsecond line", pad["content"])
}
