// Package mcptools exposes the model layer to AI agents as MCP tools over a
// stdio server. Handlers translate tool arguments into model operations;
// domain failures become tool error results, never protocol errors.
package mcptools

import (
	"encoding/json"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/rs/zerolog"

	"github.com/rknell/vibe-coder-sub002/internal/metrics"
	"github.com/rknell/vibe-coder-sub002/internal/models"
)

type toolRegisterer interface {
	RegisterTools(s *server.MCPServer) error
}

// NewServer builds the MCP server with every tool handler registered.
func NewServer(name, version string, reg *models.Registry, log zerolog.Logger) (*server.MCPServer, error) {
	s := server.NewMCPServer(name, version, server.WithToolCapabilities(true))

	handlers := []struct {
		name string
		h    toolRegisterer
	}{
		{"agent", NewAgentHandler(reg, log)},
		{"content", NewContentHandler(reg, log)},
		{"server", NewServerHandler(reg, log)},
	}
	for _, entry := range handlers {
		if err := entry.h.RegisterTools(s); err != nil {
			return nil, err
		}
		log.Debug().Str("handler", entry.name).Msg("mcp tools registered")
	}
	return s, nil
}

// Serve runs the stdio transport until EOF or a fatal transport error.
func Serve(s *server.MCPServer) error {
	return server.ServeStdio(s)
}

// jsonResult marshals v into a text tool result.
func jsonResult(tool string, v any) *mcp.CallToolResult {
	data, err := json.Marshal(v)
	if err != nil {
		return errResult(tool, "encode result: "+err.Error())
	}
	return mcp.NewToolResultText(string(data))
}

// errResult records the failure and wraps message as a tool error result.
func errResult(tool, message string) *mcp.CallToolResult {
	metrics.ToolCallErrors.WithLabelValues(tool).Inc()
	return mcp.NewToolResultError(message)
}

func recordCall(tool string) {
	metrics.ToolCallsTotal.WithLabelValues(tool).Inc()
}
