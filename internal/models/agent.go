package models

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/rknell/vibe-coder-sub002/internal/ids"
	"github.com/rknell/vibe-coder-sub002/internal/metrics"
	"github.com/rknell/vibe-coder-sub002/internal/observer"
	"github.com/rknell/vibe-coder-sub002/internal/runtime"
	"github.com/rknell/vibe-coder-sub002/internal/store"
	"github.com/rknell/vibe-coder-sub002/internal/validate"
)

// ProcessingStatus is the agent's activity state.
type ProcessingStatus string

const (
	StatusIdle       ProcessingStatus = "idle"
	StatusProcessing ProcessingStatus = "processing"
	StatusError      ProcessingStatus = "error"
)

// Behavior parameter bounds.
const (
	MinTemperature = 0.0
	MaxTemperature = 2.0
	MinMaxTokens   = 100
	MaxMaxTokens   = 32000

	defaultTemperature = 0.7
	defaultMaxTokens   = 8192
)

// Agent is the root aggregate: identity, behavior parameters, the processing
// status machine, MCP preferences, and the owned content collection. It
// persists itself to one JSON file named by id.
//
// Safe for concurrent use: the MCP transport and the admin surface may read
// and mutate the same agent from different goroutines. The lock covers the
// agent's own fields; the content collection and its items carry their own
// locks. Notifications fire after the lock is released.
type Agent struct {
	mu sync.RWMutex

	id           string
	name         string
	systemPrompt string
	isActive     bool
	createdAt    time.Time
	lastActiveAt time.Time

	status           ProcessingStatus
	lastStatusChange time.Time
	errorMessage     string // set iff status == StatusError

	temperature     float64
	maxTokens       int
	useBetaFeatures bool
	useReasoner     bool

	supervisorID string
	contextFiles []string

	// Preference maps are opt-out: an absent key means enabled.
	serverPrefs map[string]bool
	toolPrefs   map[string]bool

	content *ContentCollection

	events observer.Notifier

	// Injected collaborators.
	files      *store.FileStore
	dir        string
	newRuntime runtime.Factory
	rt         runtime.AgentRuntime // lazily created, guarded by mu
}

// AgentDeps carries the injected collaborators every agent needs.
type AgentDeps struct {
	Files   *store.FileStore
	Dir     string // directory holding <id>.json
	Runtime runtime.Factory
}

// NewAgent creates an idle, active agent with default behavior parameters.
func NewAgent(deps AgentDeps, name, systemPrompt string) (*Agent, error) {
	name = strings.TrimSpace(name)
	systemPrompt = strings.TrimSpace(systemPrompt)

	var violations []string
	if name == "" {
		violations = append(violations, "name must not be empty")
	}
	if systemPrompt == "" {
		violations = append(violations, "system prompt must not be empty")
	}
	if len(violations) > 0 {
		return nil, newValidationError("agent", "", violations...)
	}

	now := time.Now().UTC()
	a := &Agent{
		id:               ids.New(),
		name:             name,
		systemPrompt:     systemPrompt,
		isActive:         true,
		createdAt:        now,
		lastActiveAt:     now,
		status:           StatusIdle,
		lastStatusChange: now,
		temperature:      defaultTemperature,
		maxTokens:        defaultMaxTokens,
		serverPrefs:      map[string]bool{},
		toolPrefs:        map[string]bool{},
		files:            deps.Files,
		dir:              deps.Dir,
		newRuntime:       deps.Runtime,
	}
	a.content = NewContentCollection(a.id)
	return a, nil
}

// ID returns the immutable agent id.
func (a *Agent) ID() string { return a.id }

// Name returns the agent's display name.
func (a *Agent) Name() string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.name
}

// SystemPrompt returns the agent's system prompt.
func (a *Agent) SystemPrompt() string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.systemPrompt
}

// IsActive reports whether the agent is enabled.
func (a *Agent) IsActive() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.isActive
}

// IsProcessing reports whether the agent is mid-request. Kept in lockstep
// with Status for callers that predate the status machine.
func (a *Agent) IsProcessing() bool { return a.Status() == StatusProcessing }

// CreatedAt returns the immutable creation timestamp.
func (a *Agent) CreatedAt() time.Time { return a.createdAt }

// LastActiveAt returns the last mutation timestamp.
func (a *Agent) LastActiveAt() time.Time {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.lastActiveAt
}

// Status returns the current processing status.
func (a *Agent) Status() ProcessingStatus {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.status
}

// LastStatusChange returns when the status last transitioned.
func (a *Agent) LastStatusChange() time.Time {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.lastStatusChange
}

// ErrorMessage returns the current error message; empty unless Status is
// StatusError.
func (a *Agent) ErrorMessage() string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.errorMessage
}

// Temperature returns the sampling temperature.
func (a *Agent) Temperature() float64 {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.temperature
}

// MaxTokens returns the completion token cap.
func (a *Agent) MaxTokens() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.maxTokens
}

// UseBetaFeatures reports the beta feature flag.
func (a *Agent) UseBetaFeatures() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.useBetaFeatures
}

// UseReasoner reports the reasoner-model flag.
func (a *Agent) UseReasoner() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.useReasoner
}

// SupervisorID returns the optional supervising agent id.
func (a *Agent) SupervisorID() string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.supervisorID
}

// ContextFiles returns a copy of the context file list.
func (a *Agent) ContextFiles() []string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	out := make([]string, len(a.contextFiles))
	copy(out, a.contextFiles)
	return out
}

// Content returns the agent's content collection. The collection reference
// is set at construction and never replaced.
func (a *Agent) Content() *ContentCollection { return a.content }

// Subscribe registers fn for agent-level change events.
func (a *Agent) Subscribe(fn func(observer.Event)) func() {
	return a.events.Subscribe(fn)
}

// --- identity and behavior mutation ---

// SetName renames the agent. Empty names are rejected.
func (a *Agent) SetName(name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return newValidationError("agent", a.id, "name must not be empty")
	}
	a.mu.Lock()
	a.name = name
	a.touch()
	a.mu.Unlock()
	a.notify()
	return nil
}

// SetSystemPrompt replaces the system prompt. Empty prompts are rejected.
func (a *Agent) SetSystemPrompt(prompt string) error {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return newValidationError("agent", a.id, "system prompt must not be empty")
	}
	a.mu.Lock()
	a.systemPrompt = prompt
	a.touch()
	a.mu.Unlock()
	a.notify()
	return nil
}

// SetActive toggles the agent. No notification when unchanged.
func (a *Agent) SetActive(active bool) {
	a.mu.Lock()
	if a.isActive == active {
		a.mu.Unlock()
		return
	}
	a.isActive = active
	a.touch()
	a.mu.Unlock()
	a.notify()
}

// SetTemperature sets the sampling temperature within [0.0, 2.0].
func (a *Agent) SetTemperature(t float64) error {
	if t < MinTemperature || t > MaxTemperature {
		return newValidationError("agent", a.id,
			fmt.Sprintf("temperature %g out of range [%g, %g]", t, MinTemperature, MaxTemperature))
	}
	a.mu.Lock()
	a.temperature = t
	a.touch()
	a.mu.Unlock()
	a.notify()
	return nil
}

// SetMaxTokens sets the completion token cap within [100, 32000].
func (a *Agent) SetMaxTokens(n int) error {
	if n < MinMaxTokens || n > MaxMaxTokens {
		return newValidationError("agent", a.id,
			fmt.Sprintf("maxTokens %d out of range [%d, %d]", n, MinMaxTokens, MaxMaxTokens))
	}
	a.mu.Lock()
	a.maxTokens = n
	a.touch()
	a.mu.Unlock()
	a.notify()
	return nil
}

// SetUseBetaFeatures sets the beta feature flag.
func (a *Agent) SetUseBetaFeatures(on bool) {
	a.mu.Lock()
	if a.useBetaFeatures == on {
		a.mu.Unlock()
		return
	}
	a.useBetaFeatures = on
	a.touch()
	a.mu.Unlock()
	a.notify()
}

// SetUseReasoner sets the reasoner-model flag.
func (a *Agent) SetUseReasoner(on bool) {
	a.mu.Lock()
	if a.useReasoner == on {
		a.mu.Unlock()
		return
	}
	a.useReasoner = on
	a.touch()
	a.mu.Unlock()
	a.notify()
}

// SetSupervisorID sets or clears the supervising agent id.
func (a *Agent) SetSupervisorID(id string) {
	a.mu.Lock()
	if a.supervisorID == id {
		a.mu.Unlock()
		return
	}
	a.supervisorID = id
	a.touch()
	a.mu.Unlock()
	a.notify()
}

// AddContextFile appends path unless already present.
func (a *Agent) AddContextFile(path string) {
	a.mu.Lock()
	for _, existing := range a.contextFiles {
		if existing == path {
			a.mu.Unlock()
			return
		}
	}
	a.contextFiles = append(a.contextFiles, path)
	a.touch()
	a.mu.Unlock()
	a.notify()
}

// RemoveContextFile deletes path. No-op if absent.
func (a *Agent) RemoveContextFile(path string) {
	a.mu.Lock()
	for i, existing := range a.contextFiles {
		if existing == path {
			a.contextFiles = append(a.contextFiles[:i], a.contextFiles[i+1:]...)
			a.touch()
			a.mu.Unlock()
			a.notify()
			return
		}
	}
	a.mu.Unlock()
}

// --- processing status machine ---

// SetProcessingStatus transitions to processing. No-op (no notification)
// when already processing.
func (a *Agent) SetProcessingStatus() {
	a.transition(StatusProcessing, "", true)
}

// SetIdleStatus transitions to idle. No-op when already idle.
func (a *Agent) SetIdleStatus() {
	a.transition(StatusIdle, "", true)
}

// SetErrorStatus transitions to error. Unlike the other transitions it
// always applies and always notifies, so a newer error message replaces an
// older one even when already in the error state.
func (a *Agent) SetErrorStatus(message string) {
	a.transition(StatusError, message, false)
}

// transition applies the status change. The same-state check and the update
// are one critical section so concurrent transitions cannot interleave.
func (a *Agent) transition(to ProcessingStatus, errMsg string, skipIfSame bool) {
	a.mu.Lock()
	if skipIfSame && a.status == to {
		a.mu.Unlock()
		return
	}
	now := time.Now().UTC()
	a.status = to
	a.lastStatusChange = now
	a.lastActiveAt = now
	if to == StatusError {
		a.errorMessage = errMsg
	} else {
		a.errorMessage = ""
	}
	a.mu.Unlock()
	a.notify()
}

// --- MCP preferences ---

// ServerPreference reports whether the named MCP server is enabled for this
// agent. Unset means enabled.
func (a *Agent) ServerPreference(name string) bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if enabled, ok := a.serverPrefs[name]; ok {
		return enabled
	}
	return true
}

// SetServerPreference records a per-server preference.
func (a *Agent) SetServerPreference(name string, enabled bool) {
	a.mu.Lock()
	a.serverPrefs[name] = enabled
	a.touch()
	a.mu.Unlock()
	a.notify()
}

// SetAllServerPreferences bulk-sets a preference for every name, emitting a
// single notification regardless of how many entries changed.
func (a *Agent) SetAllServerPreferences(names []string, enabled bool) {
	a.mu.Lock()
	for _, name := range names {
		a.serverPrefs[name] = enabled
	}
	a.touch()
	a.mu.Unlock()
	a.notify()
}

// ToolPreference reports whether the tool is enabled. Unset means enabled.
func (a *Agent) ToolPreference(toolID string) bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if enabled, ok := a.toolPrefs[toolID]; ok {
		return enabled
	}
	return true
}

// SetToolPreference records a per-tool preference.
func (a *Agent) SetToolPreference(toolID string, enabled bool) {
	a.mu.Lock()
	a.toolPrefs[toolID] = enabled
	a.touch()
	a.mu.Unlock()
	a.notify()
}

// --- conversation delegation ---

// Runtime returns the agent's conversation engine, creating it on first use.
func (a *Agent) Runtime() runtime.AgentRuntime {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.rt == nil && a.newRuntime != nil {
		a.rt = a.newRuntime(a.id, a.systemPrompt)
	}
	return a.rt
}

// SendMessage delegates text to the runtime, driving the status machine:
// processing while the call is in flight, idle on success, error on failure.
func (a *Agent) SendMessage(ctx context.Context, text string) (runtime.Response, error) {
	rt := a.Runtime()
	if rt == nil {
		err := &RuntimeDelegationError{AgentID: a.id, Err: fmt.Errorf("no runtime configured")}
		a.SetErrorStatus(err.Error())
		return runtime.Response{}, err
	}

	a.mu.RLock()
	opts := runtime.Options{
		Temperature: a.temperature,
		MaxTokens:   a.maxTokens,
	}
	a.mu.RUnlock()

	a.SetProcessingStatus()
	resp, err := rt.SendUserMessage(ctx, text, opts)
	if err != nil {
		werr := &RuntimeDelegationError{AgentID: a.id, Err: err}
		a.SetErrorStatus(werr.Error())
		return runtime.Response{}, werr
	}
	a.SetIdleStatus()
	return resp, nil
}

// --- validation and persistence ---

// Validate checks every invariant required before persistence, collecting
// all violations.
func (a *Agent) Validate() error {
	a.mu.RLock()
	name := a.name
	systemPrompt := a.systemPrompt
	temperature := a.temperature
	maxTokens := a.maxTokens
	a.mu.RUnlock()

	var violations []string
	if strings.TrimSpace(a.id) == "" {
		violations = append(violations, "id must not be empty")
	}
	if strings.TrimSpace(name) == "" {
		violations = append(violations, "name must not be empty")
	}
	if strings.TrimSpace(systemPrompt) == "" {
		violations = append(violations, "system prompt must not be empty")
	}
	if temperature < MinTemperature || temperature > MaxTemperature {
		violations = append(violations,
			fmt.Sprintf("temperature %g out of range [%g, %g]", temperature, MinTemperature, MaxTemperature))
	}
	if maxTokens < MinMaxTokens || maxTokens > MaxMaxTokens {
		violations = append(violations,
			fmt.Sprintf("maxTokens %d out of range [%d, %d]", maxTokens, MinMaxTokens, MaxMaxTokens))
	}
	if len(violations) > 0 {
		metrics.ValidationFailures.Inc()
		return newValidationError("agent", a.id, violations...)
	}
	return nil
}

// Path returns the agent's backing file.
func (a *Agent) Path() string {
	return filepath.Join(a.dir, a.id+".json")
}

// Save validates the agent and writes its document. Validation failure
// aborts the write; I/O failures propagate wrapped in a PersistenceError.
func (a *Agent) Save(ctx context.Context) error {
	if err := a.Validate(); err != nil {
		return err
	}

	data, err := marshalIndent(a)
	if err != nil {
		return &PersistenceError{Op: "save", Path: a.Path(), Err: err}
	}
	if err := a.files.Write(ctx, a.id, a.Path(), data); err != nil {
		metrics.SaveFailures.WithLabelValues("agent").Inc()
		return &PersistenceError{Op: "save", Path: a.Path(), Err: err}
	}

	metrics.SavesTotal.WithLabelValues("agent").Inc()
	a.mu.Lock()
	a.touch()
	a.mu.Unlock()
	a.notify()
	return nil
}

// Delete removes the agent's file. A missing file is not an error; the
// notification is emitted either way.
func (a *Agent) Delete(ctx context.Context) error {
	if err := a.files.Delete(ctx, a.id, a.Path()); err != nil {
		return &PersistenceError{Op: "delete", Path: a.Path(), Err: err}
	}
	a.mu.Lock()
	a.touch()
	a.mu.Unlock()
	a.notify()
	return nil
}

// Dispose closes the runtime and tears down the content collection's
// subscriptions.
func (a *Agent) Dispose() {
	a.mu.Lock()
	rt := a.rt
	a.rt = nil
	a.mu.Unlock()
	if rt != nil {
		_ = rt.Close()
	}
	a.content.Dispose()
}

// touch bumps lastActiveAt. Caller holds mu.
func (a *Agent) touch() {
	now := time.Now().UTC()
	if now.After(a.lastActiveAt) {
		a.lastActiveAt = now
	}
}

func (a *Agent) notify() {
	a.events.Notify(a.id, observer.KindAgent)
}

// --- JSON document ---

type agentStatusJSON struct {
	Status           ProcessingStatus `json:"status"`
	LastStatusChange time.Time        `json:"last_status_change"`
	ErrorMessage     string           `json:"error_message,omitempty"`
}

type agentJSON struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	SystemPrompt string    `json:"system_prompt"`
	IsActive     bool      `json:"is_active"`
	IsProcessing bool      `json:"is_processing"`
	CreatedAt    time.Time `json:"created_at"`
	LastActiveAt time.Time `json:"last_active_at"`

	ProcessingStatus agentStatusJSON `json:"processing_status"`

	Temperature     float64 `json:"temperature"`
	MaxTokens       int     `json:"max_tokens"`
	UseBetaFeatures bool    `json:"use_beta_features"`
	UseReasoner     bool    `json:"use_reasoner"`

	SupervisorID string   `json:"supervisor_id,omitempty"`
	ContextFiles []string `json:"context_files,omitempty"`

	ServerPreferences map[string]bool `json:"mcp_server_preferences,omitempty"`
	ToolPreferences   map[string]bool `json:"mcp_tool_preferences,omitempty"`

	Content json.RawMessage `json:"content"`
}

// MarshalJSON round-trips every field, embedding the content collection. The
// collection locks itself, so it is marshaled before taking the agent lock;
// maps and slices are copied so encoding happens outside the critical
// section.
func (a *Agent) MarshalJSON() ([]byte, error) {
	content, err := json.Marshal(a.content)
	if err != nil {
		return nil, err
	}

	a.mu.RLock()
	serverPrefs := make(map[string]bool, len(a.serverPrefs))
	for k, v := range a.serverPrefs {
		serverPrefs[k] = v
	}
	toolPrefs := make(map[string]bool, len(a.toolPrefs))
	for k, v := range a.toolPrefs {
		toolPrefs[k] = v
	}
	doc := agentJSON{
		ID:           a.id,
		Name:         a.name,
		SystemPrompt: a.systemPrompt,
		IsActive:     a.isActive,
		IsProcessing: a.status == StatusProcessing,
		CreatedAt:    a.createdAt,
		LastActiveAt: a.lastActiveAt,
		ProcessingStatus: agentStatusJSON{
			Status:           a.status,
			LastStatusChange: a.lastStatusChange,
			ErrorMessage:     a.errorMessage,
		},
		Temperature:       a.temperature,
		MaxTokens:         a.maxTokens,
		UseBetaFeatures:   a.useBetaFeatures,
		UseReasoner:       a.useReasoner,
		SupervisorID:      a.supervisorID,
		ContextFiles:      append([]string(nil), a.contextFiles...),
		ServerPreferences: serverPrefs,
		ToolPreferences:   toolPrefs,
		Content:           content,
	}
	a.mu.RUnlock()
	return json.Marshal(doc)
}

// AgentFromJSON decodes and validates a persisted agent document, wiring the
// injected collaborators.
func AgentFromJSON(data []byte, deps AgentDeps) (*Agent, error) {
	var j agentJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("malformed agent document: %w", err)
	}

	var violations []string
	if !validate.ID(j.ID) {
		violations = append(violations, "id must be a canonical UUID")
	}
	if strings.TrimSpace(j.Name) == "" {
		violations = append(violations, "name must not be empty")
	}
	if strings.TrimSpace(j.SystemPrompt) == "" {
		violations = append(violations, "system prompt must not be empty")
	}
	if j.Temperature < MinTemperature || j.Temperature > MaxTemperature {
		violations = append(violations,
			fmt.Sprintf("temperature %g out of range [%g, %g]", j.Temperature, MinTemperature, MaxTemperature))
	}
	if j.MaxTokens < MinMaxTokens || j.MaxTokens > MaxMaxTokens {
		violations = append(violations,
			fmt.Sprintf("maxTokens %d out of range [%d, %d]", j.MaxTokens, MinMaxTokens, MaxMaxTokens))
	}
	switch j.ProcessingStatus.Status {
	case StatusIdle, StatusProcessing, StatusError, "":
	default:
		violations = append(violations, "unknown processing status "+string(j.ProcessingStatus.Status))
	}
	if len(violations) > 0 {
		return nil, newValidationError("agent", j.ID, violations...)
	}

	now := time.Now().UTC()
	a := &Agent{
		id:               j.ID,
		name:             strings.TrimSpace(j.Name),
		systemPrompt:     strings.TrimSpace(j.SystemPrompt),
		isActive:         j.IsActive,
		createdAt:        j.CreatedAt,
		lastActiveAt:     j.LastActiveAt,
		status:           j.ProcessingStatus.Status,
		lastStatusChange: j.ProcessingStatus.LastStatusChange,
		errorMessage:     j.ProcessingStatus.ErrorMessage,
		temperature:      j.Temperature,
		maxTokens:        j.MaxTokens,
		useBetaFeatures:  j.UseBetaFeatures,
		useReasoner:      j.UseReasoner,
		supervisorID:     j.SupervisorID,
		contextFiles:     j.ContextFiles,
		serverPrefs:      j.ServerPreferences,
		toolPrefs:        j.ToolPreferences,
		files:            deps.Files,
		dir:              deps.Dir,
		newRuntime:       deps.Runtime,
	}
	if a.status == "" {
		a.status = StatusIdle
	}
	if a.status != StatusError {
		a.errorMessage = ""
	}
	if a.createdAt.IsZero() {
		a.createdAt = now
	}
	if a.lastActiveAt.Before(a.createdAt) {
		a.lastActiveAt = a.createdAt
	}
	if a.lastStatusChange.IsZero() {
		a.lastStatusChange = a.createdAt
	}
	if a.serverPrefs == nil {
		a.serverPrefs = map[string]bool{}
	}
	if a.toolPrefs == nil {
		a.toolPrefs = map[string]bool{}
	}

	a.content = NewContentCollection(a.id)
	if len(j.Content) > 0 && string(j.Content) != "null" {
		if err := json.Unmarshal(j.Content, a.content); err != nil {
			return nil, fmt.Errorf("malformed content collection for agent %s: %w", j.ID, err)
		}
	}
	return a, nil
}
