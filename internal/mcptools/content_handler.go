package mcptools

import (
	"context"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/rs/zerolog"

	"github.com/rknell/vibe-coder-sub002/internal/models"
)

// ContentHandler exposes inbox, todo, and notepad tools.
type ContentHandler struct {
	reg *models.Registry
	log zerolog.Logger
}

// NewContentHandler returns a new handler.
func NewContentHandler(reg *models.Registry, log zerolog.Logger) *ContentHandler {
	return &ContentHandler{reg: reg, log: log}
}

type inboxItemView struct {
	ID       string `json:"id"`
	Preview  string `json:"preview"`
	Sender   string `json:"sender,omitempty"`
	Priority string `json:"priority"`
	IsRead   bool   `json:"is_read"`
	Received string `json:"received"`
}

type todoItemView struct {
	ID          string   `json:"id"`
	Content     string   `json:"content"`
	Priority    string   `json:"priority"`
	IsCompleted bool     `json:"is_completed"`
	IsOverdue   bool     `json:"is_overdue"`
	DueDate     string   `json:"due_date,omitempty"`
	Tags        []string `json:"tags,omitempty"`
}

func inboxView(i *models.InboxItem) inboxItemView {
	return inboxItemView{
		ID:       i.ID(),
		Preview:  i.Preview(5),
		Sender:   i.Sender(),
		Priority: string(i.Priority()),
		IsRead:   i.IsRead(),
		Received: i.DateReceived().Format(time.RFC3339),
	}
}

func todoView(t *models.TodoItem) todoItemView {
	v := todoItemView{
		ID:          t.ID(),
		Content:     t.Content(),
		Priority:    string(t.Priority()),
		IsCompleted: t.IsCompleted(),
		IsOverdue:   t.IsOverdue(),
		Tags:        t.Tags(),
	}
	if due := t.DueDate(); due != nil {
		v.DueDate = due.Format(time.RFC3339)
	}
	return v
}

// RegisterTools registers content tools.
func (ch *ContentHandler) RegisterTools(s *server.MCPServer) error {
	addInbox := mcp.NewTool("add_inbox_item",
		mcp.WithDescription("Deliver a message into an agent's inbox"),
		mcp.WithString("agent_id", mcp.Required(), mcp.Description("The UUID of the agent")),
		mcp.WithString("content", mcp.Required(), mcp.Description("Message text")),
		mcp.WithString("sender", mcp.Description("Optional sender name")),
		mcp.WithString("priority", mcp.Description("low|medium|high|urgent, default medium")),
	)
	s.AddTool(addInbox, ch.handleAddInboxItem)

	listInbox := mcp.NewTool("list_inbox",
		mcp.WithDescription("List an agent's inbox, optionally unread only"),
		mcp.WithString("agent_id", mcp.Required(), mcp.Description("The UUID of the agent")),
		mcp.WithBoolean("unread_only", mcp.Description("Return only unread items")),
	)
	s.AddTool(listInbox, ch.handleListInbox)

	markRead := mcp.NewTool("mark_inbox_read",
		mcp.WithDescription("Mark one inbox item read or unread"),
		mcp.WithString("agent_id", mcp.Required(), mcp.Description("The UUID of the agent")),
		mcp.WithString("item_id", mcp.Required(), mcp.Description("The UUID of the inbox item")),
		mcp.WithBoolean("read", mcp.Description("Target state, default true")),
	)
	s.AddTool(markRead, ch.handleMarkInboxRead)

	addTodo := mcp.NewTool("add_todo",
		mcp.WithDescription("Add a todo to an agent's list"),
		mcp.WithString("agent_id", mcp.Required(), mcp.Description("The UUID of the agent")),
		mcp.WithString("content", mcp.Required(), mcp.Description("Task text")),
		mcp.WithString("priority", mcp.Description("low|medium|high|urgent, default medium")),
		mcp.WithString("due_date", mcp.Description("Optional RFC3339 due date")),
	)
	s.AddTool(addTodo, ch.handleAddTodo)

	listTodos := mcp.NewTool("list_todos",
		mcp.WithDescription("List an agent's todos, optionally pending or overdue only"),
		mcp.WithString("agent_id", mcp.Required(), mcp.Description("The UUID of the agent")),
		mcp.WithString("filter", mcp.Description("all|pending|overdue, default all")),
	)
	s.AddTool(listTodos, ch.handleListTodos)

	completeTodo := mcp.NewTool("complete_todo",
		mcp.WithDescription("Mark a todo completed"),
		mcp.WithString("agent_id", mcp.Required(), mcp.Description("The UUID of the agent")),
		mcp.WithString("item_id", mcp.Required(), mcp.Description("The UUID of the todo")),
	)
	s.AddTool(completeTodo, ch.handleCompleteTodo)

	reorderTodos := mcp.NewTool("reorder_todos",
		mcp.WithDescription("Reorder an agent's todos; ids omitted from the order keep their relative position at the end"),
		mcp.WithString("agent_id", mcp.Required(), mcp.Description("The UUID of the agent")),
		mcp.WithArray("ordered_ids", mcp.Required(), mcp.Description("Todo ids in the desired order")),
	)
	s.AddTool(reorderTodos, ch.handleReorderTodos)

	readNotepad := mcp.NewTool("read_notepad",
		mcp.WithDescription("Read an agent's notepad with its statistics"),
		mcp.WithString("agent_id", mcp.Required(), mcp.Description("The UUID of the agent")),
	)
	s.AddTool(readNotepad, ch.handleReadNotepad)

	updateNotepad := mcp.NewTool("update_notepad",
		mcp.WithDescription("Replace an agent's notepad content"),
		mcp.WithString("agent_id", mcp.Required(), mcp.Description("The UUID of the agent")),
		mcp.WithString("content", mcp.Required(), mcp.Description("New notepad text")),
	)
	s.AddTool(updateNotepad, ch.handleUpdateNotepad)

	appendNotepad := mcp.NewTool("append_notepad",
		mcp.WithDescription("Append a line to an agent's notepad"),
		mcp.WithString("agent_id", mcp.Required(), mcp.Description("The UUID of the agent")),
		mcp.WithString("content", mcp.Required(), mcp.Description("Text to append")),
	)
	s.AddTool(appendNotepad, ch.handleAppendNotepad)

	return nil
}

// agentAndSave looks up the agent, runs mutate, and persists on success.
func (ch *ContentHandler) agentAndSave(ctx context.Context, tool, agentID string, mutate func(*models.Agent) error) (*models.Agent, *mcp.CallToolResult) {
	a, err := ch.reg.Agent(agentID)
	if err != nil {
		return nil, errResult(tool, err.Error())
	}
	if err := mutate(a); err != nil {
		return nil, errResult(tool, err.Error())
	}
	if err := a.Save(ctx); err != nil {
		ch.log.Error().Err(err).Str("agent_id", agentID).Str("tool", tool).Msg("save after mutation failed")
		return nil, errResult(tool, err.Error())
	}
	return a, nil
}

func parsePriority(req mcp.CallToolRequest) models.Priority {
	if p, ok := req.GetArguments()["priority"].(string); ok && p != "" {
		return models.Priority(p)
	}
	return models.PriorityMedium
}

func (ch *ContentHandler) handleAddInboxItem(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	recordCall("add_inbox_item")
	agentID, err := req.RequireString("agent_id")
	if err != nil {
		return errResult("add_inbox_item", err.Error()), nil
	}
	content, err := req.RequireString("content")
	if err != nil {
		return errResult("add_inbox_item", err.Error()), nil
	}
	sender, _ := req.GetArguments()["sender"].(string)

	item, err := models.NewInboxItem(content, sender, parsePriority(req))
	if err != nil {
		return errResult("add_inbox_item", err.Error()), nil
	}

	if _, errRes := ch.agentAndSave(ctx, "add_inbox_item", agentID, func(a *models.Agent) error {
		a.Content().AddInboxItem(item)
		return nil
	}); errRes != nil {
		return errRes, nil
	}
	return jsonResult("add_inbox_item", inboxView(item)), nil
}

func (ch *ContentHandler) handleListInbox(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	recordCall("list_inbox")
	agentID, err := req.RequireString("agent_id")
	if err != nil {
		return errResult("list_inbox", err.Error()), nil
	}
	unreadOnly, _ := req.GetArguments()["unread_only"].(bool)

	a, err := ch.reg.Agent(agentID)
	if err != nil {
		return errResult("list_inbox", err.Error()), nil
	}

	items := a.Content().InboxItems()
	if unreadOnly {
		items = a.Content().UnreadInbox()
	}
	out := make([]inboxItemView, 0, len(items))
	for _, item := range items {
		out = append(out, inboxView(item))
	}
	return jsonResult("list_inbox", out), nil
}

func (ch *ContentHandler) handleMarkInboxRead(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	recordCall("mark_inbox_read")
	agentID, err := req.RequireString("agent_id")
	if err != nil {
		return errResult("mark_inbox_read", err.Error()), nil
	}
	itemID, err := req.RequireString("item_id")
	if err != nil {
		return errResult("mark_inbox_read", err.Error()), nil
	}
	read := true
	if v, ok := req.GetArguments()["read"].(bool); ok {
		read = v
	}

	var view inboxItemView
	_, errRes := ch.agentAndSave(ctx, "mark_inbox_read", agentID, func(a *models.Agent) error {
		item := a.Content().InboxItem(itemID)
		if item == nil {
			return &models.NotFoundError{Kind: "inbox item", ID: itemID}
		}
		if read {
			item.MarkAsRead()
		} else {
			item.MarkAsUnread()
		}
		view = inboxView(item)
		return nil
	})
	if errRes != nil {
		return errRes, nil
	}
	return jsonResult("mark_inbox_read", view), nil
}

func (ch *ContentHandler) handleAddTodo(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	recordCall("add_todo")
	agentID, err := req.RequireString("agent_id")
	if err != nil {
		return errResult("add_todo", err.Error()), nil
	}
	content, err := req.RequireString("content")
	if err != nil {
		return errResult("add_todo", err.Error()), nil
	}

	var due *time.Time
	if raw, ok := req.GetArguments()["due_date"].(string); ok && raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return errResult("add_todo", "due_date must be RFC3339: "+err.Error()), nil
		}
		due = &parsed
	}

	item, err := models.NewTodoItem(content, parsePriority(req), due)
	if err != nil {
		return errResult("add_todo", err.Error()), nil
	}

	_, errRes := ch.agentAndSave(ctx, "add_todo", agentID, func(a *models.Agent) error {
		a.Content().AddTodoItem(item)
		return nil
	})
	if errRes != nil {
		return errRes, nil
	}
	return jsonResult("add_todo", todoView(item)), nil
}

func (ch *ContentHandler) handleListTodos(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	recordCall("list_todos")
	agentID, err := req.RequireString("agent_id")
	if err != nil {
		return errResult("list_todos", err.Error()), nil
	}
	filter, _ := req.GetArguments()["filter"].(string)

	a, err := ch.reg.Agent(agentID)
	if err != nil {
		return errResult("list_todos", err.Error()), nil
	}

	var items []*models.TodoItem
	switch filter {
	case "", "all":
		items = a.Content().TodoItems()
	case "pending":
		items = a.Content().PendingTodos()
	case "overdue":
		items = a.Content().OverdueTodos()
	default:
		return errResult("list_todos", "filter must be all, pending, or overdue"), nil
	}

	out := make([]todoItemView, 0, len(items))
	for _, item := range items {
		out = append(out, todoView(item))
	}
	return jsonResult("list_todos", out), nil
}

func (ch *ContentHandler) handleCompleteTodo(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	recordCall("complete_todo")
	agentID, err := req.RequireString("agent_id")
	if err != nil {
		return errResult("complete_todo", err.Error()), nil
	}
	itemID, err := req.RequireString("item_id")
	if err != nil {
		return errResult("complete_todo", err.Error()), nil
	}

	var view todoItemView
	_, errRes := ch.agentAndSave(ctx, "complete_todo", agentID, func(a *models.Agent) error {
		item := a.Content().TodoItem(itemID)
		if item == nil {
			return &models.NotFoundError{Kind: "todo", ID: itemID}
		}
		item.MarkCompleted()
		view = todoView(item)
		return nil
	})
	if errRes != nil {
		return errRes, nil
	}
	return jsonResult("complete_todo", view), nil
}

func (ch *ContentHandler) handleReorderTodos(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	recordCall("reorder_todos")
	agentID, err := req.RequireString("agent_id")
	if err != nil {
		return errResult("reorder_todos", err.Error()), nil
	}

	raw, ok := req.GetArguments()["ordered_ids"].([]any)
	if !ok {
		return errResult("reorder_todos", "ordered_ids must be an array of todo ids"), nil
	}
	orderedIDs := make([]string, 0, len(raw))
	for _, v := range raw {
		id, ok := v.(string)
		if !ok {
			return errResult("reorder_todos", "ordered_ids must contain only strings"), nil
		}
		orderedIDs = append(orderedIDs, id)
	}

	var out []todoItemView
	_, errRes := ch.agentAndSave(ctx, "reorder_todos", agentID, func(a *models.Agent) error {
		if err := a.Content().ReorderTodos(orderedIDs); err != nil {
			return err
		}
		for _, item := range a.Content().TodoItems() {
			out = append(out, todoView(item))
		}
		return nil
	})
	if errRes != nil {
		return errRes, nil
	}
	return jsonResult("reorder_todos", out), nil
}

func (ch *ContentHandler) handleReadNotepad(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	recordCall("read_notepad")
	agentID, err := req.RequireString("agent_id")
	if err != nil {
		return errResult("read_notepad", err.Error()), nil
	}

	a, err := ch.reg.Agent(agentID)
	if err != nil {
		return errResult("read_notepad", err.Error()), nil
	}

	n := a.Content().Notepad()
	return jsonResult("read_notepad", map[string]any{
		"content":         n.Content(),
		"word_count":      n.WordCount(),
		"line_count":      n.LineCount(),
		"character_count": n.CharacterCount(),
		"updated_at":      n.UpdatedAt().Format(time.RFC3339),
	}), nil
}

func (ch *ContentHandler) handleUpdateNotepad(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	recordCall("update_notepad")
	return ch.mutateNotepad(ctx, "update_notepad", req, func(n *models.Notepad, text string) {
		n.Update(text)
	})
}

func (ch *ContentHandler) handleAppendNotepad(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	recordCall("append_notepad")
	return ch.mutateNotepad(ctx, "append_notepad", req, func(n *models.Notepad, text string) {
		n.Append(text)
	})
}

func (ch *ContentHandler) mutateNotepad(ctx context.Context, tool string, req mcp.CallToolRequest, op func(*models.Notepad, string)) (*mcp.CallToolResult, error) {
	agentID, err := req.RequireString("agent_id")
	if err != nil {
		return errResult(tool, err.Error()), nil
	}
	content, err := req.RequireString("content")
	if err != nil {
		return errResult(tool, err.Error()), nil
	}

	var stats map[string]any
	_, errRes := ch.agentAndSave(ctx, tool, agentID, func(a *models.Agent) error {
		n := a.Content().Notepad()
		op(n, content)
		stats = map[string]any{
			"word_count":      n.WordCount(),
			"line_count":      n.LineCount(),
			"character_count": n.CharacterCount(),
		}
		return nil
	})
	if errRes != nil {
		return errRes, nil
	}
	return jsonResult(tool, stats), nil
}
