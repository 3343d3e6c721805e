package mcptools

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rknell/vibe-coder-sub002/internal/models"
	"github.com/rknell/vibe-coder-sub002/internal/runtime"
	"github.com/rknell/vibe-coder-sub002/internal/store"
)

func newTestRegistry(t *testing.T, script ...string) *models.Registry {
	t.Helper()
	q := store.NewWriteQueue(store.QueueConfig{}, zerolog.Nop())
	t.Cleanup(q.Stop)
	files := store.NewFileStore(q, zerolog.Nop())
	base := t.TempDir()
	return models.NewRegistry(files,
		filepath.Join(base, "agents"),
		filepath.Join(base, "mcp_servers"),
		runtime.ScriptedFactory(script...),
		zerolog.Nop())
}

func callReq(args map[string]any) mcp.CallToolRequest {
	return mcp.CallToolRequest{Params: mcp.CallToolParams{Arguments: args}}
}

// decodeResult unmarshals a successful tool result's JSON payload into out.
func decodeResult(t *testing.T, res *mcp.CallToolResult, out any) {
	t.Helper()
	require.NotNil(t, res)
	require.False(t, res.IsError, "tool result is an error: %+v", res.Content)
	require.NotEmpty(t, res.Content)
	txt, ok := res.Content[0].(mcp.TextContent)
	require.True(t, ok, "expected text content, got %T", res.Content[0])
	require.NoError(t, json.Unmarshal([]byte(txt.Text), out))
}

func TestCreateAndGetAgent(t *testing.T) {
	reg := newTestRegistry(t)
	ah := NewAgentHandler(reg, zerolog.Nop())
	ctx := context.Background()

	res, err := ah.handleCreateAgent(ctx, callReq(map[string]any{
		"name":          "helper",
		"system_prompt": "You are helpful.",
	}))
	require.NoError(t, err)

	var created agentSummary
	decodeResult(t, res, &created)
	assert.Equal(t, "helper", created.Name)
	assert.Equal(t, "idle", created.Status)

	res, err = ah.handleGetAgent(ctx, callReq(map[string]any{"agent_id": created.ID}))
	require.NoError(t, err)
	var got agentSummary
	decodeResult(t, res, &got)
	assert.Equal(t, created.ID, got.ID)
}

func TestCreateAgentRejectsEmptyName(t *testing.T) {
	reg := newTestRegistry(t)
	ah := NewAgentHandler(reg, zerolog.Nop())

	res, err := ah.handleCreateAgent(context.Background(), callReq(map[string]any{
		"name":          "   ",
		"system_prompt": "p",
	}))
	require.NoError(t, err, "domain failures are tool errors, not protocol errors")
	require.NotNil(t, res)
	assert.True(t, res.IsError)
}

func TestGetAgentNotFound(t *testing.T) {
	reg := newTestRegistry(t)
	ah := NewAgentHandler(reg, zerolog.Nop())

	res, err := ah.handleGetAgent(context.Background(), callReq(map[string]any{"agent_id": "ghost"}))
	require.NoError(t, err)
	assert.True(t, res.IsError)
}

func TestListAgents(t *testing.T) {
	reg := newTestRegistry(t)
	ah := NewAgentHandler(reg, zerolog.Nop())
	ctx := context.Background()

	_, err := reg.CreateAgent(ctx, "beta", "p")
	require.NoError(t, err)
	_, err = reg.CreateAgent(ctx, "alpha", "p")
	require.NoError(t, err)

	res, err := ah.handleListAgents(ctx, mcp.CallToolRequest{})
	require.NoError(t, err)

	var got []agentSummary
	decodeResult(t, res, &got)
	require.Len(t, got, 2)
	assert.Equal(t, "alpha", got[0].Name)
	assert.Equal(t, "beta", got[1].Name)
}

func TestSendMessageTool(t *testing.T) {
	reg := newTestRegistry(t, "scripted reply")
	ah := NewAgentHandler(reg, zerolog.Nop())
	ctx := context.Background()

	a, err := reg.CreateAgent(ctx, "helper", "p")
	require.NoError(t, err)

	res, err := ah.handleSendMessage(ctx, callReq(map[string]any{
		"agent_id": a.ID(),
		"text":     "hello",
	}))
	require.NoError(t, err)

	var got map[string]any
	decodeResult(t, res, &got)
	assert.Equal(t, "scripted reply", got["reply"])
	assert.Equal(t, models.StatusIdle, a.Status())
}
