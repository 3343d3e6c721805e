package mcptools

import (
	"context"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/rs/zerolog"

	"github.com/rknell/vibe-coder-sub002/internal/models"
)

// AgentHandler exposes agent lifecycle and conversation tools.
type AgentHandler struct {
	reg *models.Registry
	log zerolog.Logger
}

// NewAgentHandler returns a new handler.
func NewAgentHandler(reg *models.Registry, log zerolog.Logger) *AgentHandler {
	return &AgentHandler{reg: reg, log: log}
}

// agentSummary is the wire shape returned by agent tools.
type agentSummary struct {
	ID           string  `json:"id"`
	Name         string  `json:"name"`
	IsActive     bool    `json:"is_active"`
	Status       string  `json:"status"`
	ErrorMessage string  `json:"error_message,omitempty"`
	Temperature  float64 `json:"temperature"`
	MaxTokens    int     `json:"max_tokens"`
	UnreadInbox  int     `json:"unread_inbox"`
	PendingTodos int     `json:"pending_todos"`
	LastActiveAt string  `json:"last_active_at"`
}

func summarize(a *models.Agent) agentSummary {
	c := a.Content()
	return agentSummary{
		ID:           a.ID(),
		Name:         a.Name(),
		IsActive:     a.IsActive(),
		Status:       string(a.Status()),
		ErrorMessage: a.ErrorMessage(),
		Temperature:  a.Temperature(),
		MaxTokens:    a.MaxTokens(),
		UnreadInbox:  len(c.UnreadInbox()),
		PendingTodos: len(c.PendingTodos()),
		LastActiveAt: a.LastActiveAt().Format(time.RFC3339),
	}
}

// RegisterTools registers agent tools.
func (ah *AgentHandler) RegisterTools(s *server.MCPServer) error {
	listAgents := mcp.NewTool("list_agents",
		mcp.WithDescription("List every configured agent with status and content counts"),
	)
	s.AddTool(listAgents, ah.handleListAgents)

	createAgent := mcp.NewTool("create_agent",
		mcp.WithDescription("Create and persist a new agent"),
		mcp.WithString("name", mcp.Required(), mcp.Description("Display name")),
		mcp.WithString("system_prompt", mcp.Required(), mcp.Description("System prompt defining the agent's persona")),
	)
	s.AddTool(createAgent, ah.handleCreateAgent)

	getAgent := mcp.NewTool("get_agent",
		mcp.WithDescription("Get one agent by id"),
		mcp.WithString("agent_id", mcp.Required(), mcp.Description("The UUID of the agent")),
	)
	s.AddTool(getAgent, ah.handleGetAgent)

	sendMessage := mcp.NewTool("send_message",
		mcp.WithDescription("Send a user message to an agent and return its reply"),
		mcp.WithString("agent_id", mcp.Required(), mcp.Description("The UUID of the agent")),
		mcp.WithString("text", mcp.Required(), mcp.Description("Message text")),
	)
	s.AddTool(sendMessage, ah.handleSendMessage)

	return nil
}

func (ah *AgentHandler) handleListAgents(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	recordCall("list_agents")

	agents := ah.reg.Agents()
	out := make([]agentSummary, 0, len(agents))
	for _, a := range agents {
		out = append(out, summarize(a))
	}
	return jsonResult("list_agents", out), nil
}

func (ah *AgentHandler) handleCreateAgent(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	recordCall("create_agent")
	name, err := req.RequireString("name")
	if err != nil {
		return errResult("create_agent", err.Error()), nil
	}
	prompt, err := req.RequireString("system_prompt")
	if err != nil {
		return errResult("create_agent", err.Error()), nil
	}

	a, err := ah.reg.CreateAgent(ctx, name, prompt)
	if err != nil {
		ah.log.Error().Err(err).Str("name", name).Msg("create_agent failed")
		return errResult("create_agent", err.Error()), nil
	}

	ah.log.Info().Str("agent_id", a.ID()).Str("name", a.Name()).Msg("agent created")
	return jsonResult("create_agent", summarize(a)), nil
}

func (ah *AgentHandler) handleGetAgent(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	recordCall("get_agent")
	agentID, err := req.RequireString("agent_id")
	if err != nil {
		return errResult("get_agent", err.Error()), nil
	}

	a, err := ah.reg.Agent(agentID)
	if err != nil {
		return errResult("get_agent", err.Error()), nil
	}
	return jsonResult("get_agent", summarize(a)), nil
}

func (ah *AgentHandler) handleSendMessage(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	recordCall("send_message")
	agentID, err := req.RequireString("agent_id")
	if err != nil {
		return errResult("send_message", err.Error()), nil
	}
	text, err := req.RequireString("text")
	if err != nil {
		return errResult("send_message", err.Error()), nil
	}

	a, err := ah.reg.Agent(agentID)
	if err != nil {
		return errResult("send_message", err.Error()), nil
	}

	start := time.Now()
	resp, err := a.SendMessage(ctx, text)
	if err != nil {
		ah.log.Error().Err(err).Str("agent_id", agentID).Dur("elapsed", time.Since(start)).Msg("send_message failed")
		return errResult("send_message", err.Error()), nil
	}

	ah.log.Debug().Str("agent_id", agentID).Dur("elapsed", time.Since(start)).Msg("send_message completed")
	return jsonResult("send_message", map[string]any{
		"reply":          resp.Content,
		"tool_calls_run": resp.ToolCallsRun,
	}), nil
}
