package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/agentmesh/agentmesh/internal/config"
	"github.com/agentmesh/agentmesh/internal/directory"
	"github.com/agentmesh/agentmesh/internal/port/llm"
)

// TurnEvent is one externally observed step of a conversation turn. A
// non-final event carries a human-readable progress update; a final event
// carries the turn's content, either a plain string or a structured payload.
type TurnEvent struct {
	Complete bool
	Content  any
	Update   string
}

// sendMessageTool is the single tool the decision engine may invoke:
// delegate a message to a named agent.
var sendMessageTool = llm.ToolSpec{
	Name:        "send_message",
	Description: "Send a task message to a remote agent and return its result.",
	Parameters: map[string]any{
		"type": "object",
		"properties": map[string]any{
			"agent_name": map[string]any{
				"type":        "string",
				"description": "Name of the agent to send the message to.",
			},
			"message": map[string]any{
				"type":        "string",
				"description": "The task or question to send.",
			},
		},
		"required": []string{"agent_name", "message"},
	},
}

type sendMessageArgs struct {
	AgentName string `json:"agent_name"`
	Message   string `json:"message"`
}

// Orchestrator owns the per-conversation turn loop: it primes the decision
// engine with the agent roster and trimmed history, routes tool calls
// through the delegation router, and emits a uniform event stream per turn.
type Orchestrator struct {
	engine   llm.Engine
	router   *Router
	sessions *SessionStore
	dir      *directory.Directory
	cfg      config.Router
}

// NewOrchestrator wires the turn loop over its collaborators.
func NewOrchestrator(engine llm.Engine, router *Router, sessions *SessionStore, dir *directory.Directory, cfg config.Router) *Orchestrator {
	return &Orchestrator{
		engine:   engine,
		router:   router,
		sessions: sessions,
		dir:      dir,
		cfg:      cfg,
	}
}

// Sessions exposes the session store backing this orchestrator.
func (o *Orchestrator) Sessions() *SessionStore {
	return o.sessions
}

// Stream runs one turn for sessionID and returns its event channel. The
// channel always ends with exactly one final event: turn content, a timeout
// notice, or a failure description. No error or panic escapes to the caller.
func (o *Orchestrator) Stream(parent context.Context, query, sessionID string) <-chan TurnEvent {
	out := make(chan TurnEvent)
	go func() {
		defer close(out)

		ctx, cancel := context.WithTimeout(parent, o.cfg.TurnTimeout)
		defer cancel()

		// Terminal events are emitted against the parent context so a turn
		// deadline does not swallow its own timeout notice.
		defer func() {
			if p := recover(); p != nil {
				slog.Error("turn panicked", "session_id", sessionID, "panic", p)
				emit(parent, out, TurnEvent{Complete: true, Content: fmt.Sprintf("Turn failed: %v", p)})
			}
		}()

		if err := o.runTurn(ctx, query, sessionID, out); err != nil {
			if errors.Is(err, context.DeadlineExceeded) {
				emit(parent, out, TurnEvent{Complete: true, Content: "The request timed out before a result was produced."})
				return
			}
			emit(parent, out, TurnEvent{Complete: true, Content: fmt.Sprintf("Turn failed: %v", err)})
		}
	}()
	return out
}

// runTurn drives the decision loop until a final event is emitted or the
// round-trip budget runs out.
func (o *Orchestrator) runTurn(ctx context.Context, query, sessionID string, out chan<- TurnEvent) error {
	state := o.sessions.State(sessionID)
	o.sessions.AppendHistory(sessionID, llm.Turn{Role: llm.RoleUser, Content: query})

	turns := append([]llm.Turn(nil), o.sessions.History(sessionID, o.cfg.HistoryTurns)...)

	for call := 0; call < o.cfg.MaxLLMCalls; call++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		decision, err := o.engine.Decide(ctx, llm.Request{
			System: o.systemPrompt(state),
			Turns:  turns,
			Tools:  []llm.ToolSpec{sendMessageTool},
		})
		if err != nil {
			return fmt.Errorf("decision engine: %w", err)
		}

		switch decision.Kind {
		case llm.DecisionText:
			o.sessions.AppendHistory(sessionID, llm.Turn{Role: llm.RoleAssistant, Content: decision.Text})
			emit(ctx, out, TurnEvent{Complete: true, Content: decision.Text})
			return nil

		case llm.DecisionToolCall:
			result, done := o.runToolCall(ctx, decision.Call, state, out)
			if done {
				o.sessions.AppendHistory(sessionID, llm.Turn{Role: llm.RoleAssistant, Content: result})
				emit(ctx, out, TurnEvent{Complete: true, Content: result})
				return nil
			}
			turns = append(turns,
				llm.Turn{Role: llm.RoleAssistant, ToolCall: decision.Call},
				llm.Turn{Role: llm.RoleTool, Content: result, ToolCall: decision.Call},
			)

		case llm.DecisionEmpty:
			// An empty response is an anomaly, not a completion. Report
			// progress and ask again.
			emit(ctx, out, TurnEvent{Update: "Processing the request."})
		}
	}

	if err := ctx.Err(); err != nil {
		return err
	}
	emit(ctx, out, TurnEvent{Complete: true, Content: "The request could not be completed within the allowed number of steps."})
	return nil
}

// runToolCall executes one delegation requested by the engine. It returns
// the value to feed back plus whether the turn ends here: an escalated
// result hands control back to the caller instead of re-entering the engine.
func (o *Orchestrator) runToolCall(ctx context.Context, call *llm.ToolCall, state *ConversationState, out chan<- TurnEvent) (any, bool) {
	if call.Name != sendMessageTool.Name {
		return map[string]any{"error": fmt.Sprintf("unknown tool %q", call.Name)}, false
	}

	var args sendMessageArgs
	if err := json.Unmarshal(call.Args, &args); err != nil {
		return map[string]any{"error": fmt.Sprintf("bad tool arguments: %v", err)}, false
	}

	emit(ctx, out, TurnEvent{Update: fmt.Sprintf("Contacting %s.", args.AgentName)})

	result, err := o.router.Delegate(ctx, args.AgentName, args.Message, state)
	if err != nil {
		slog.Warn("delegation failed", "agent", args.AgentName, "error", err)
		return map[string]any{"error": err.Error()}, false
	}

	if result.Escalate {
		// Hand the raw parts back to the human; no further summarization.
		return map[string]any{"response": map[string]any{"result": result.Parts}}, true
	}
	return map[string]any{"result": result.Parts}, false
}

// systemPrompt assembles the engine preamble: the configured instructions,
// the current agent roster, and the agent bound to this conversation.
func (o *Orchestrator) systemPrompt(state *ConversationState) string {
	var b strings.Builder
	b.WriteString(o.cfg.SystemPrompt)
	b.WriteString("\n\nAvailable agents:\n")
	if summary := o.dir.Summary(); summary != "" {
		b.WriteString(summary)
	} else {
		b.WriteString("(none registered)")
	}
	b.WriteString("\n\nActive agent: ")
	if state.Agent != "" {
		b.WriteString(state.Agent)
	} else {
		b.WriteString("none")
	}
	return b.String()
}

// emit delivers ev unless the turn context has already expired.
func emit(ctx context.Context, out chan<- TurnEvent, ev TurnEvent) {
	select {
	case out <- ev:
	case <-ctx.Done():
	}
}
