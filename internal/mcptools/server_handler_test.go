package mcptools

import (
	"context"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rknell/vibe-coder-sub002/internal/models"
)

func serverFixture(t *testing.T) (*ServerHandler, *models.Registry, *models.Agent) {
	t.Helper()
	reg := newTestRegistry(t)
	ctx := context.Background()

	a, err := reg.CreateAgent(ctx, "helper", "p")
	require.NoError(t, err)
	_, err = reg.AddServer(ctx, models.ServerConfig{
		Name:    "filesystem",
		Type:    models.ServerTypeStdio,
		Command: "npx",
	})
	require.NoError(t, err)

	return NewServerHandler(reg, zerolog.Nop()), reg, a
}

func TestListServers(t *testing.T) {
	sh, _, _ := serverFixture(t)

	res, err := sh.handleListServers(context.Background(), mcp.CallToolRequest{})
	require.NoError(t, err)

	var got []serverView
	decodeResult(t, res, &got)
	require.Len(t, got, 1)
	assert.Equal(t, "filesystem", got[0].Name)
	assert.Equal(t, "disconnected", got[0].Status)
}

func TestSetServerPreference(t *testing.T) {
	sh, _, a := serverFixture(t)

	res, err := sh.handleSetServerPreference(context.Background(), callReq(map[string]any{
		"agent_id":    a.ID(),
		"server_name": "filesystem",
		"enabled":     false,
	}))
	require.NoError(t, err)
	require.False(t, res.IsError)

	assert.False(t, a.ServerPreference("filesystem"))
	assert.True(t, a.ServerPreference("github"), "other servers stay enabled")
}

func TestSetServerPreferenceUnknownServer(t *testing.T) {
	sh, _, a := serverFixture(t)

	res, err := sh.handleSetServerPreference(context.Background(), callReq(map[string]any{
		"agent_id":    a.ID(),
		"server_name": "ghost",
		"enabled":     false,
	}))
	require.NoError(t, err)
	assert.True(t, res.IsError, "preferences may only reference configured servers")
	assert.True(t, a.ServerPreference("ghost"))
}

func TestSetToolPreference(t *testing.T) {
	sh, _, a := serverFixture(t)

	res, err := sh.handleSetToolPreference(context.Background(), callReq(map[string]any{
		"agent_id": a.ID(),
		"tool_id":  "filesystem/read_file",
		"enabled":  false,
	}))
	require.NoError(t, err)
	require.False(t, res.IsError)

	assert.False(t, a.ToolPreference("filesystem/read_file"))
}

func TestSetPreferenceRequiresBoolean(t *testing.T) {
	sh, _, a := serverFixture(t)

	res, err := sh.handleSetServerPreference(context.Background(), callReq(map[string]any{
		"agent_id":    a.ID(),
		"server_name": "filesystem",
		"enabled":     "yes",
	}))
	require.NoError(t, err)
	assert.True(t, res.IsError)
}
