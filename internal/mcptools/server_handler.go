package mcptools

import (
	"context"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/rs/zerolog"

	"github.com/rknell/vibe-coder-sub002/internal/models"
)

// ServerHandler exposes MCP server records and per-agent preference tools.
type ServerHandler struct {
	reg *models.Registry
	log zerolog.Logger
}

// NewServerHandler returns a new handler.
func NewServerHandler(reg *models.Registry, log zerolog.Logger) *ServerHandler {
	return &ServerHandler{reg: reg, log: log}
}

type serverView struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	DisplayName string `json:"display_name"`
	Type        string `json:"type"`
	Status      string `json:"status"`
	Tools       int    `json:"tools"`
	Resources   int    `json:"resources"`
	Prompts     int    `json:"prompts"`
	LastConnect string `json:"last_connected_at,omitempty"`
}

func viewServer(s *models.MCPServer) serverView {
	v := serverView{
		ID:          s.ID(),
		Name:        s.Name(),
		DisplayName: s.DisplayName(),
		Type:        string(s.Type()),
		Status:      string(s.Status()),
		Tools:       len(s.Tools()),
		Resources:   len(s.Resources()),
		Prompts:     len(s.Prompts()),
	}
	if t := s.LastConnectedAt(); t != nil {
		v.LastConnect = t.Format(time.RFC3339)
	}
	return v
}

// RegisterTools registers server tools.
func (sh *ServerHandler) RegisterTools(s *server.MCPServer) error {
	listServers := mcp.NewTool("list_servers",
		mcp.WithDescription("List configured MCP servers with status and capability counts"),
	)
	s.AddTool(listServers, sh.handleListServers)

	setPref := mcp.NewTool("set_server_preference",
		mcp.WithDescription("Enable or disable one MCP server for one agent"),
		mcp.WithString("agent_id", mcp.Required(), mcp.Description("The UUID of the agent")),
		mcp.WithString("server_name", mcp.Required(), mcp.Description("Configured server name")),
		mcp.WithBoolean("enabled", mcp.Required(), mcp.Description("Whether the server is enabled for the agent")),
	)
	s.AddTool(setPref, sh.handleSetServerPreference)

	setToolPref := mcp.NewTool("set_tool_preference",
		mcp.WithDescription("Enable or disable one tool for one agent"),
		mcp.WithString("agent_id", mcp.Required(), mcp.Description("The UUID of the agent")),
		mcp.WithString("tool_id", mcp.Required(), mcp.Description("Tool identifier")),
		mcp.WithBoolean("enabled", mcp.Required(), mcp.Description("Whether the tool is enabled for the agent")),
	)
	s.AddTool(setToolPref, sh.handleSetToolPreference)

	return nil
}

func (sh *ServerHandler) handleListServers(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	recordCall("list_servers")

	servers := sh.reg.Servers()
	out := make([]serverView, 0, len(servers))
	for _, s := range servers {
		out = append(out, viewServer(s))
	}
	return jsonResult("list_servers", out), nil
}

func (sh *ServerHandler) handleSetServerPreference(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	recordCall("set_server_preference")
	agentID, err := req.RequireString("agent_id")
	if err != nil {
		return errResult("set_server_preference", err.Error()), nil
	}
	serverName, err := req.RequireString("server_name")
	if err != nil {
		return errResult("set_server_preference", err.Error()), nil
	}
	enabled, ok := req.GetArguments()["enabled"].(bool)
	if !ok {
		return errResult("set_server_preference", "enabled must be a boolean"), nil
	}

	if _, err := sh.reg.ServerByName(serverName); err != nil {
		return errResult("set_server_preference", err.Error()), nil
	}

	a, err := sh.reg.Agent(agentID)
	if err != nil {
		return errResult("set_server_preference", err.Error()), nil
	}
	a.SetServerPreference(serverName, enabled)
	if err := a.Save(ctx); err != nil {
		return errResult("set_server_preference", err.Error()), nil
	}

	return jsonResult("set_server_preference", map[string]any{
		"server_name": serverName,
		"enabled":     enabled,
	}), nil
}

func (sh *ServerHandler) handleSetToolPreference(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	recordCall("set_tool_preference")
	agentID, err := req.RequireString("agent_id")
	if err != nil {
		return errResult("set_tool_preference", err.Error()), nil
	}
	toolID, err := req.RequireString("tool_id")
	if err != nil {
		return errResult("set_tool_preference", err.Error()), nil
	}
	enabled, ok := req.GetArguments()["enabled"].(bool)
	if !ok {
		return errResult("set_tool_preference", "enabled must be a boolean"), nil
	}

	a, err := sh.reg.Agent(agentID)
	if err != nil {
		return errResult("set_tool_preference", err.Error()), nil
	}
	a.SetToolPreference(toolID, enabled)
	if err := a.Save(ctx); err != nil {
		return errResult("set_tool_preference", err.Error()), nil
	}

	return jsonResult("set_tool_preference", map[string]any{
		"tool_id": toolID,
		"enabled": enabled,
	}), nil
}
