package models

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/rknell/vibe-coder-sub002/internal/ids"
	"github.com/rknell/vibe-coder-sub002/internal/metrics"
	"github.com/rknell/vibe-coder-sub002/internal/observer"
	"github.com/rknell/vibe-coder-sub002/internal/store"
	"github.com/rknell/vibe-coder-sub002/internal/validate"
)

// ServerType is the MCP transport kind.
type ServerType string

const (
	ServerTypeStdio ServerType = "stdio"
	ServerTypeSSE   ServerType = "sse"
)

// ServerStatus is the connection state reported by the transport layer.
type ServerStatus string

const (
	ServerDisconnected ServerStatus = "disconnected"
	ServerConnecting   ServerStatus = "connecting"
	ServerConnected    ServerStatus = "connected"
	ServerError        ServerStatus = "error"
	ServerUnsupported  ServerStatus = "unsupported"
)

func (s ServerStatus) valid() bool {
	switch s {
	case ServerDisconnected, ServerConnecting, ServerConnected, ServerError, ServerUnsupported:
		return true
	}
	return false
}

// ToolInfo describes one tool exposed by an MCP server.
type ToolInfo struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// ResourceInfo describes one resource exposed by an MCP server.
type ResourceInfo struct {
	URI      string `json:"uri"`
	Name     string `json:"name,omitempty"`
	MimeType string `json:"mime_type,omitempty"`
}

// PromptInfo describes one prompt template exposed by an MCP server.
type PromptInfo struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// MCPServer records one configured MCP server: connection parameters,
// reported status, and capability lists. The transport layer drives status;
// this model only bookkeeps. One JSON file per server.
//
// Safe for concurrent use. Connection parameters (name, type, command, args,
// env, url) are fixed at construction; the lock guards the status and
// capability fields the transport layer mutates.
type MCPServer struct {
	id          string
	name        string
	displayName string
	serverType  ServerType

	// stdio parameters
	command string
	args    []string
	env     map[string]string

	// sse parameters
	url string

	mu              sync.RWMutex
	status          ServerStatus
	lastConnectedAt *time.Time
	tools           []ToolInfo
	resources       []ResourceInfo
	prompts         []PromptInfo
	updatedAt       time.Time

	createdAt time.Time

	events observer.Notifier
	files  *store.FileStore
	dir    string
}

// ServerDeps carries the injected collaborators.
type ServerDeps struct {
	Files *store.FileStore
	Dir   string
}

// ServerConfig is the import-time description of a server.
type ServerConfig struct {
	Name        string
	DisplayName string
	Type        ServerType
	Command     string
	Args        []string
	Env         map[string]string
	URL         string
}

// NewMCPServer creates a disconnected server record from cfg.
func NewMCPServer(deps ServerDeps, cfg ServerConfig) (*MCPServer, error) {
	now := time.Now().UTC()
	s := &MCPServer{
		id:          ids.New(),
		name:        strings.TrimSpace(cfg.Name),
		displayName: strings.TrimSpace(cfg.DisplayName),
		serverType:  cfg.Type,
		command:     strings.TrimSpace(cfg.Command),
		args:        cfg.Args,
		env:         cfg.Env,
		url:         strings.TrimSpace(cfg.URL),
		status:      ServerDisconnected,
		createdAt:   now,
		updatedAt:   now,
		files:       deps.Files,
		dir:         deps.Dir,
	}
	if s.displayName == "" {
		s.displayName = s.name
	}
	if s.env == nil {
		s.env = map[string]string{}
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

// ID returns the immutable server id.
func (s *MCPServer) ID() string { return s.id }

// Name returns the configured server name.
func (s *MCPServer) Name() string { return s.name }

// DisplayName returns the human-facing name.
func (s *MCPServer) DisplayName() string { return s.displayName }

// Type returns the transport kind.
func (s *MCPServer) Type() ServerType { return s.serverType }

// Command returns the stdio launch command.
func (s *MCPServer) Command() string { return s.command }

// Args returns a copy of the stdio arguments.
func (s *MCPServer) Args() []string {
	out := make([]string, len(s.args))
	copy(out, s.args)
	return out
}

// Env returns a copy of the stdio environment.
func (s *MCPServer) Env() map[string]string {
	out := make(map[string]string, len(s.env))
	for k, v := range s.env {
		out[k] = v
	}
	return out
}

// URL returns the SSE endpoint.
func (s *MCPServer) URL() string { return s.url }

// Status returns the current connection status.
func (s *MCPServer) Status() ServerStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status
}

// LastConnectedAt returns when the server last reached connected, or nil.
func (s *MCPServer) LastConnectedAt() *time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneTime(s.lastConnectedAt)
}

// Tools returns a copy of the reported tool list.
func (s *MCPServer) Tools() []ToolInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]ToolInfo, len(s.tools))
	copy(out, s.tools)
	return out
}

// Resources returns a copy of the reported resource list.
func (s *MCPServer) Resources() []ResourceInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]ResourceInfo, len(s.resources))
	copy(out, s.resources)
	return out
}

// Prompts returns a copy of the reported prompt list.
func (s *MCPServer) Prompts() []PromptInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]PromptInfo, len(s.prompts))
	copy(out, s.prompts)
	return out
}

// CreatedAt returns the immutable creation timestamp.
func (s *MCPServer) CreatedAt() time.Time { return s.createdAt }

// UpdatedAt returns the last mutation timestamp.
func (s *MCPServer) UpdatedAt() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.updatedAt
}

// Subscribe registers fn for server change events.
func (s *MCPServer) Subscribe(fn func(observer.Event)) func() {
	return s.events.Subscribe(fn)
}

// UpdateStatus applies a transport-reported status change. No-op when
// unchanged. Reaching connected stamps lastConnectedAt.
func (s *MCPServer) UpdateStatus(status ServerStatus) error {
	if !status.valid() {
		return newValidationError("server", s.id, "unknown status "+string(status))
	}
	s.mu.Lock()
	if s.status == status {
		s.mu.Unlock()
		return nil
	}
	s.status = status
	if status == ServerConnected {
		now := time.Now().UTC()
		s.lastConnectedAt = &now
	}
	s.touch()
	s.mu.Unlock()
	s.notify()
	return nil
}

// UpdateTools replaces the tool list.
func (s *MCPServer) UpdateTools(tools []ToolInfo) {
	s.mu.Lock()
	s.tools = make([]ToolInfo, len(tools))
	copy(s.tools, tools)
	s.touch()
	s.mu.Unlock()
	s.notify()
}

// UpdateResources replaces the resource list.
func (s *MCPServer) UpdateResources(resources []ResourceInfo) {
	s.mu.Lock()
	s.resources = make([]ResourceInfo, len(resources))
	copy(s.resources, resources)
	s.touch()
	s.mu.Unlock()
	s.notify()
}

// UpdatePrompts replaces the prompt list.
func (s *MCPServer) UpdatePrompts(prompts []PromptInfo) {
	s.mu.Lock()
	s.prompts = make([]PromptInfo, len(prompts))
	copy(s.prompts, prompts)
	s.touch()
	s.mu.Unlock()
	s.notify()
}

// Validate checks type-specific requirements, collecting every violation.
// Only construction-time fields are checked, so no lock is taken.
func (s *MCPServer) Validate() error {
	var violations []string
	if strings.TrimSpace(s.id) == "" {
		violations = append(violations, "id must not be empty")
	}
	if strings.TrimSpace(s.name) == "" {
		violations = append(violations, "name must not be empty")
	}
	switch s.serverType {
	case ServerTypeStdio:
		if s.command == "" {
			violations = append(violations, "stdio server requires a non-empty command")
		}
	case ServerTypeSSE:
		if s.url == "" {
			violations = append(violations, "sse server requires a url")
		} else if u, err := url.Parse(s.url); err != nil || u.Scheme == "" || u.Host == "" {
			violations = append(violations, fmt.Sprintf("sse url %q is not a valid absolute URL", s.url))
		}
	default:
		violations = append(violations, "type must be stdio or sse")
	}
	if len(violations) > 0 {
		metrics.ValidationFailures.Inc()
		return newValidationError("server", s.id, violations...)
	}
	return nil
}

// Path returns the server's backing file.
func (s *MCPServer) Path() string {
	return filepath.Join(s.dir, s.id+".json")
}

// Save validates and writes the server document. Same contract as
// Agent.Save.
func (s *MCPServer) Save(ctx context.Context) error {
	if err := s.Validate(); err != nil {
		return err
	}

	data, err := marshalIndent(s)
	if err != nil {
		return &PersistenceError{Op: "save", Path: s.Path(), Err: err}
	}
	if err := s.files.Write(ctx, s.id, s.Path(), data); err != nil {
		metrics.SaveFailures.WithLabelValues("server").Inc()
		return &PersistenceError{Op: "save", Path: s.Path(), Err: err}
	}

	metrics.SavesTotal.WithLabelValues("server").Inc()
	s.mu.Lock()
	s.touch()
	s.mu.Unlock()
	s.notify()
	return nil
}

// Delete removes the server's file. Missing files are not an error.
func (s *MCPServer) Delete(ctx context.Context) error {
	if err := s.files.Delete(ctx, s.id, s.Path()); err != nil {
		return &PersistenceError{Op: "delete", Path: s.Path(), Err: err}
	}
	s.mu.Lock()
	s.touch()
	s.mu.Unlock()
	s.notify()
	return nil
}

// touch bumps updatedAt. Caller holds mu.
func (s *MCPServer) touch() {
	now := time.Now().UTC()
	if now.After(s.updatedAt) {
		s.updatedAt = now
	}
}

func (s *MCPServer) notify() {
	s.events.Notify(s.id, observer.KindServer)
}

type mcpServerJSON struct {
	ID          string            `json:"id"`
	Name        string            `json:"name"`
	DisplayName string            `json:"display_name"`
	Type        ServerType        `json:"type"`
	Command     string            `json:"command,omitempty"`
	Args        []string          `json:"args,omitempty"`
	Env         map[string]string `json:"env,omitempty"`
	URL         string            `json:"url,omitempty"`

	Status          ServerStatus `json:"status"`
	LastConnectedAt *time.Time   `json:"last_connected_at,omitempty"`

	Tools     []ToolInfo     `json:"tools,omitempty"`
	Resources []ResourceInfo `json:"resources,omitempty"`
	Prompts   []PromptInfo   `json:"prompts,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// MarshalJSON round-trips every field.
func (s *MCPServer) MarshalJSON() ([]byte, error) {
	s.mu.RLock()
	doc := mcpServerJSON{
		ID:              s.id,
		Name:            s.name,
		DisplayName:     s.displayName,
		Type:            s.serverType,
		Command:         s.command,
		Args:            append([]string(nil), s.args...),
		Env:             s.env,
		URL:             s.url,
		Status:          s.status,
		LastConnectedAt: cloneTime(s.lastConnectedAt),
		Tools:           append([]ToolInfo(nil), s.tools...),
		Resources:       append([]ResourceInfo(nil), s.resources...),
		Prompts:         append([]PromptInfo(nil), s.prompts...),
		CreatedAt:       s.createdAt,
		UpdatedAt:       s.updatedAt,
	}
	s.mu.RUnlock()
	return json.Marshal(doc)
}

// ServerFromJSON decodes and validates a persisted server document.
func ServerFromJSON(data []byte, deps ServerDeps) (*MCPServer, error) {
	var j mcpServerJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("malformed server document: %w", err)
	}
	if !validate.ID(j.ID) {
		return nil, newValidationError("server", j.ID, "id must be a canonical UUID")
	}

	s := &MCPServer{
		id:              j.ID,
		name:            strings.TrimSpace(j.Name),
		displayName:     strings.TrimSpace(j.DisplayName),
		serverType:      j.Type,
		command:         j.Command,
		args:            j.Args,
		env:             j.Env,
		url:             j.URL,
		status:          j.Status,
		lastConnectedAt: cloneTime(j.LastConnectedAt),
		tools:           j.Tools,
		resources:       j.Resources,
		prompts:         j.Prompts,
		createdAt:       j.CreatedAt,
		updatedAt:       j.UpdatedAt,
		files:           deps.Files,
		dir:             deps.Dir,
	}
	if s.displayName == "" {
		s.displayName = s.name
	}
	if s.env == nil {
		s.env = map[string]string{}
	}
	if !s.status.valid() {
		s.status = ServerDisconnected
	}
	if s.createdAt.IsZero() {
		s.createdAt = time.Now().UTC()
	}
	if s.updatedAt.Before(s.createdAt) {
		s.updatedAt = s.createdAt
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}
