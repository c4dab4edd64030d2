// Package llm defines the decision engine port: the opaque text-generation
// collaborator that reads a conversation and either answers in text or asks
// for a single tool invocation.
package llm

import (
	"context"
	"encoding/json"
)

// Role identifies the author of a conversation turn.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// Turn is one entry of the conversation history handed to the engine.
// Content is a string for text turns or any JSON-marshalable value for tool
// results.
type Turn struct {
	Role     Role
	Content  any
	ToolCall *ToolCall // set on assistant turns that requested a tool
}

// ToolCall is the engine's request to invoke a named tool.
type ToolCall struct {
	ID   string
	Name string
	Args json.RawMessage
}

// ToolSpec advertises a callable tool to the engine.
type ToolSpec struct {
	Name        string
	Description string
	Parameters  map[string]any // JSON-schema object
}

// DecisionKind discriminates the engine's output variant.
type DecisionKind int

const (
	// DecisionText is a plain text answer.
	DecisionText DecisionKind = iota
	// DecisionToolCall asks the caller to run a tool and report back.
	DecisionToolCall
	// DecisionEmpty is a response with no usable content.
	DecisionEmpty
)

// Decision is the tagged output union of one engine round-trip.
type Decision struct {
	Kind DecisionKind
	Text string
	Call *ToolCall
}

// Request primes one engine round-trip.
type Request struct {
	System string
	Turns  []Turn
	Tools  []ToolSpec
}

// Engine is the decision collaborator port. Implementations must honor ctx
// cancellation; one call produces exactly one Decision.
type Engine interface {
	Decide(ctx context.Context, req Request) (*Decision, error)
}
