package models

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/rknell/vibe-coder-sub002/internal/runtime"
	"github.com/rknell/vibe-coder-sub002/internal/store"
)

// Registry owns the live agent and server instances: it loads every document
// at startup and is the single source of truth handed to the MCP tool layer
// and the admin API. Safe for concurrent use: the registry lock guards its
// maps, and each agent, server, and content collection carries its own lock,
// so readers like Stats can run while tool handlers mutate entities.
type Registry struct {
	mu      sync.RWMutex
	agents  map[string]*Agent
	servers map[string]*MCPServer

	agentDeps  AgentDeps
	serverDeps ServerDeps
	log        zerolog.Logger
}

// NewRegistry builds an empty registry bound to the given directories.
func NewRegistry(files *store.FileStore, agentsDir, serversDir string, factory runtime.Factory, log zerolog.Logger) *Registry {
	return &Registry{
		agents:     map[string]*Agent{},
		servers:    map[string]*MCPServer{},
		agentDeps:  AgentDeps{Files: files, Dir: agentsDir, Runtime: factory},
		serverDeps: ServerDeps{Files: files, Dir: serversDir},
		log:        log,
	}
}

// Load reads every agent and server document. A malformed document fails the
// load with a descriptive error naming the file; a missing directory is
// treated as empty.
func (r *Registry) Load() error {
	agents, err := loadDir(r.agentDeps.Dir, func(data []byte) (*Agent, error) {
		return AgentFromJSON(data, r.agentDeps)
	})
	if err != nil {
		return err
	}

	servers, err := loadDir(r.serverDeps.Dir, func(data []byte) (*MCPServer, error) {
		return ServerFromJSON(data, r.serverDeps)
	})
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.agents = map[string]*Agent{}
	for _, a := range agents {
		r.agents[a.ID()] = a
	}
	r.servers = map[string]*MCPServer{}
	for _, s := range servers {
		r.servers[s.ID()] = s
	}

	r.log.Info().
		Int("agents", len(r.agents)).
		Int("servers", len(r.servers)).
		Msg("registry loaded")
	return nil
}

func loadDir[T any](dir string, decode func([]byte) (T, error)) ([]T, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, &PersistenceError{Op: "load", Path: dir, Err: err}
	}

	var out []T
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, &PersistenceError{Op: "load", Path: path, Err: err}
		}
		v, err := decode(data)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		out = append(out, v)
	}
	return out, nil
}

// CreateAgent creates, registers, and persists a new agent.
func (r *Registry) CreateAgent(ctx context.Context, name, systemPrompt string) (*Agent, error) {
	a, err := NewAgent(r.agentDeps, name, systemPrompt)
	if err != nil {
		return nil, err
	}
	if err := a.Save(ctx); err != nil {
		return nil, err
	}

	r.mu.Lock()
	r.agents[a.ID()] = a
	r.mu.Unlock()
	return a, nil
}

// Agent returns the agent with id or a NotFoundError.
func (r *Registry) Agent(id string) (*Agent, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.agents[id]
	if !ok {
		return nil, &NotFoundError{Kind: "agent", ID: id}
	}
	return a, nil
}

// Agents returns all agents sorted by name, then id.
func (r *Registry) Agents() []*Agent {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Agent, 0, len(r.agents))
	for _, a := range r.agents {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name() != out[j].Name() {
			return out[i].Name() < out[j].Name()
		}
		return out[i].ID() < out[j].ID()
	})
	return out
}

// DeleteAgent disposes the agent and removes its file.
func (r *Registry) DeleteAgent(ctx context.Context, id string) error {
	r.mu.Lock()
	a, ok := r.agents[id]
	if ok {
		delete(r.agents, id)
	}
	r.mu.Unlock()
	if !ok {
		return &NotFoundError{Kind: "agent", ID: id}
	}

	if err := a.Delete(ctx); err != nil {
		return err
	}
	a.Dispose()
	return nil
}

// AddServer registers and persists a new server record built from cfg.
func (r *Registry) AddServer(ctx context.Context, cfg ServerConfig) (*MCPServer, error) {
	s, err := NewMCPServer(r.serverDeps, cfg)
	if err != nil {
		return nil, err
	}
	if err := s.Save(ctx); err != nil {
		return nil, err
	}

	r.mu.Lock()
	r.servers[s.ID()] = s
	r.mu.Unlock()
	return s, nil
}

// Server returns the server with id or a NotFoundError.
func (r *Registry) Server(id string) (*MCPServer, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.servers[id]
	if !ok {
		return nil, &NotFoundError{Kind: "server", ID: id}
	}
	return s, nil
}

// ServerByName returns the server named name or a NotFoundError.
func (r *Registry) ServerByName(name string) (*MCPServer, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, s := range r.servers {
		if s.Name() == name {
			return s, nil
		}
	}
	return nil, &NotFoundError{Kind: "server", ID: name}
}

// Servers returns all servers sorted by name, then id.
func (r *Registry) Servers() []*MCPServer {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*MCPServer, 0, len(r.servers))
	for _, s := range r.servers {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name() != out[j].Name() {
			return out[i].Name() < out[j].Name()
		}
		return out[i].ID() < out[j].ID()
	})
	return out
}

// RemoveServer deletes the server record and its file.
func (r *Registry) RemoveServer(ctx context.Context, id string) error {
	r.mu.Lock()
	s, ok := r.servers[id]
	if ok {
		delete(r.servers, id)
	}
	r.mu.Unlock()
	if !ok {
		return &NotFoundError{Kind: "server", ID: id}
	}
	return s.Delete(ctx)
}

// Stats aggregates registry contents for the admin surface.
type Stats struct {
	Agents           int            `json:"agents"`
	ActiveAgents     int            `json:"active_agents"`
	ProcessingAgents int            `json:"processing_agents"`
	InboxItems       int            `json:"inbox_items"`
	UnreadInbox      int            `json:"unread_inbox"`
	Todos            int            `json:"todos"`
	PendingTodos     int            `json:"pending_todos"`
	Servers          int            `json:"servers"`
	ServersByStatus  map[string]int `json:"servers_by_status"`
}

// Stats computes aggregate counts across all agents and servers.
func (r *Registry) Stats() Stats {
	r.mu.RLock()
	defer r.mu.RUnlock()

	st := Stats{ServersByStatus: map[string]int{}}
	st.Agents = len(r.agents)
	for _, a := range r.agents {
		if a.IsActive() {
			st.ActiveAgents++
		}
		if a.IsProcessing() {
			st.ProcessingAgents++
		}
		c := a.Content()
		st.InboxItems += len(c.InboxItems())
		st.UnreadInbox += len(c.UnreadInbox())
		st.Todos += len(c.TodoItems())
		st.PendingTodos += len(c.PendingTodos())
	}
	st.Servers = len(r.servers)
	for _, s := range r.servers {
		st.ServersByStatus[string(s.Status())]++
	}
	return st
}

// Dispose tears down every agent.
func (r *Registry) Dispose() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, a := range r.agents {
		a.Dispose()
	}
}
