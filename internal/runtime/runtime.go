// Package runtime defines the conversation-engine collaborator an agent
// delegates message handling to. The engine owns the conversation history so
// the agent model never stores it twice.
package runtime

import (
	"context"
	"time"
)

// Role identifies the author of a conversation message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// Message is one conversation turn.
type Message struct {
	Role    Role      `json:"role"`
	Content string    `json:"content"`
	At      time.Time `json:"at"`
}

// Options carries per-call behavior parameters copied from the agent.
type Options struct {
	Temperature float64
	MaxTokens   int
}

// Response is the engine's reply to a user message.
type Response struct {
	Content      string
	ToolCallsRun int
}

// AgentRuntime is the external conversation engine. Implementations own
// their timeout policy; this layer imposes none.
type AgentRuntime interface {
	// SendUserMessage appends text to the history and returns the reply.
	SendUserMessage(ctx context.Context, text string, opts Options) (Response, error)

	// History returns the full conversation in order.
	History() []Message

	AddUserMessage(text string)
	AddAssistantMessage(text string)
	AddSystemMessage(text string)

	// HasUnprocessedToolCalls reports whether the last reply requested tool
	// work that has not run yet.
	HasUnprocessedToolCalls() bool

	// ProcessAndContinue runs pending tool calls and resumes the reply.
	ProcessAndContinue(ctx context.Context, opts Options) (Response, error)

	// Close releases the engine. The agent calls this on dispose.
	Close() error
}

// Factory builds a runtime for one agent. The daemon injects a concrete
// factory; tests inject scripted ones.
type Factory func(agentID, systemPrompt string) AgentRuntime
