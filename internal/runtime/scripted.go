package runtime

import (
	"context"
	"sync"
	"time"
)

// Scripted is a deterministic AgentRuntime used in development mode and
// tests. It replies from a fixed script and falls back to echoing.
type Scripted struct {
	mu      sync.Mutex
	history []Message
	script  []string
	next    int
	pending bool
	closed  bool
}

// NewScripted returns a runtime that replies with each script entry in turn.
// With an empty script every reply echoes the incoming text.
func NewScripted(script ...string) *Scripted {
	return &Scripted{script: script}
}

// ScriptedFactory adapts NewScripted to the Factory signature, seeding the
// history with the agent's system prompt.
func ScriptedFactory(script ...string) Factory {
	return func(agentID, systemPrompt string) AgentRuntime {
		r := NewScripted(script...)
		if systemPrompt != "" {
			r.AddSystemMessage(systemPrompt)
		}
		return r
	}
}

// SendUserMessage implements AgentRuntime.
func (r *Scripted) SendUserMessage(ctx context.Context, text string, _ Options) (Response, error) {
	if err := ctx.Err(); err != nil {
		return Response{}, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.append(RoleUser, text)
	reply := "echo: " + text
	if r.next < len(r.script) {
		reply = r.script[r.next]
		r.next++
	}
	r.append(RoleAssistant, reply)
	return Response{Content: reply}, nil
}

// History implements AgentRuntime.
func (r *Scripted) History() []Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Message, len(r.history))
	copy(out, r.history)
	return out
}

// AddUserMessage implements AgentRuntime.
func (r *Scripted) AddUserMessage(text string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.append(RoleUser, text)
}

// AddAssistantMessage implements AgentRuntime.
func (r *Scripted) AddAssistantMessage(text string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.append(RoleAssistant, text)
}

// AddSystemMessage implements AgentRuntime.
func (r *Scripted) AddSystemMessage(text string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.append(RoleSystem, text)
}

// SetPendingToolCalls marks the runtime as holding unprocessed tool calls,
// for tests exercising ProcessAndContinue.
func (r *Scripted) SetPendingToolCalls(pending bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pending = pending
}

// HasUnprocessedToolCalls implements AgentRuntime.
func (r *Scripted) HasUnprocessedToolCalls() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.pending
}

// ProcessAndContinue implements AgentRuntime.
func (r *Scripted) ProcessAndContinue(ctx context.Context, _ Options) (Response, error) {
	if err := ctx.Err(); err != nil {
		return Response{}, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.pending {
		return Response{}, nil
	}
	r.pending = false
	reply := "tool results processed"
	r.append(RoleAssistant, reply)
	return Response{Content: reply, ToolCallsRun: 1}, nil
}

// Close implements AgentRuntime.
func (r *Scripted) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	return nil
}

// Closed reports whether Close has been called, for dispose tests.
func (r *Scripted) Closed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closed
}

func (r *Scripted) append(role Role, text string) {
	r.history = append(r.history, Message{Role: role, Content: text, At: time.Now().UTC()})
}
