package service

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel/trace"

	"github.com/agentmesh/agentmesh/internal/adapter/otel"
	"github.com/agentmesh/agentmesh/internal/directory"
	"github.com/agentmesh/agentmesh/internal/domain"
	"github.com/agentmesh/agentmesh/internal/port/a2a"
	"github.com/agentmesh/agentmesh/internal/port/artifactstore"
)

// NormalizedResult is the router's uniform content shape handed back to the
// decision engine: a sequence of strings and structured payloads, plus an
// escalation flag that suppresses further summarization and returns control
// to the human caller.
type NormalizedResult struct {
	Parts    []any
	Escalate bool
}

// Router delegates one message to one named agent and reconciles the
// remote's response (plain message or task snapshot) into a NormalizedResult.
type Router struct {
	dir       *directory.Directory
	artifacts artifactstore.Store
	observer  directory.TaskObserver
}

// NewRouter creates a router over the given directory. artifacts receives
// file-bearing content parts; observer is notified of every task event seen
// during delegation.
func NewRouter(dir *directory.Directory, artifacts artifactstore.Store) *Router {
	return &Router{dir: dir, artifacts: artifacts, observer: directory.NopObserver{}}
}

// SetObserver installs the task event listener threaded into every send.
func (r *Router) SetObserver(obs directory.TaskObserver) {
	if obs == nil {
		obs = directory.NopObserver{}
	}
	r.observer = obs
}

// Delegate sends text to the named agent on behalf of the conversation in
// state, updating state's continuation ids from the response. Failures come
// back as errors wrapping the delegation sentinels; a panic anywhere below
// is caught here so one bad delegation never takes down the conversation.
func (r *Router) Delegate(ctx context.Context, agentName, text string, state *ConversationState) (res *NormalizedResult, err error) {
	ctx, span := otel.Tracer().Start(ctx, "router.delegate",
		trace.WithAttributes(otel.AgentAttr(agentName)))
	defer func() {
		if p := recover(); p != nil {
			slog.Error("delegation panicked", "agent", agentName, "panic", p)
			res = nil
			err = fmt.Errorf("%w: delegation to %s panicked: %v", domain.ErrTransport, agentName, p)
		}
		if err != nil {
			span.RecordError(err)
		}
		span.End()
	}()

	conn, ok := r.dir.Resolve(agentName)
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrAgentNotFound, agentName)
	}

	// Sticky routing: the conversation records its owning agent so the
	// decision engine sees who holds the session on later turns.
	state.Agent = agentName

	msg := a2a.NewUserMessage(text, state.MessageID, state.TaskID, state.ContextID)
	params := a2a.MessageSendParams{Message: msg}

	result, err := conn.Send(ctx, params, r.observer, conn.Card().Capabilities.Streaming)
	if err != nil {
		return nil, err
	}

	switch v := result.(type) {
	case *a2a.Message:
		parts, escalate, err := r.convertParts(ctx, v.Parts)
		if err != nil {
			return nil, err
		}
		return &NormalizedResult{Parts: parts, Escalate: escalate}, nil
	case *a2a.Task:
		return r.reconcileTask(ctx, v, state)
	default:
		return nil, fmt.Errorf("%w: unexpected send result %T", domain.ErrTransport, result)
	}
}

// reconcileTask applies task-state policy and flattens the task's content.
func (r *Router) reconcileTask(ctx context.Context, task *a2a.Task, state *ConversationState) (*NormalizedResult, error) {
	st := task.Status.State
	state.SessionActive = st != a2a.TaskStateCompleted &&
		st != a2a.TaskStateCanceled &&
		st != a2a.TaskStateFailed &&
		st != a2a.TaskStateUnknown

	// Continuation ids are recorded before any terminal-state error so the
	// next turn resumes from the last observed task.
	if task.ContextID != "" {
		state.ContextID = task.ContextID
	}
	state.TaskID = task.ID

	switch st {
	case a2a.TaskStateCanceled:
		return nil, fmt.Errorf("%w: task %s", domain.ErrTaskCanceled, task.ID)
	case a2a.TaskStateFailed:
		return nil, fmt.Errorf("%w: task %s", domain.ErrTaskFailed, task.ID)
	}

	var raw []a2a.Part
	if task.Status.Message != nil {
		raw = append(raw, task.Status.Message.Parts...)
	}
	for _, artifact := range task.Artifacts {
		raw = append(raw, artifact.Parts...)
	}

	parts, escalate, err := r.convertParts(ctx, raw)
	if err != nil {
		return nil, err
	}
	if st == a2a.TaskStateInputRequired {
		escalate = true
	}
	return &NormalizedResult{Parts: parts, Escalate: escalate}, nil
}

// convertParts maps protocol content parts into the engine-facing shape.
// Text passes through as a string, data as its structured payload. A file
// part is decoded, persisted under its declared name, and replaced by an
// {artifact-file-id} reference; a delivered file always ends the automated
// turn, so it also raises the escalation flag.
func (r *Router) convertParts(ctx context.Context, parts []a2a.Part) ([]any, bool, error) {
	out := make([]any, 0, len(parts))
	escalate := false

	for _, part := range parts {
		switch part.Kind {
		case a2a.PartKindText:
			out = append(out, part.Text)
		case a2a.PartKindData:
			out = append(out, part.Data)
		case a2a.PartKindFile:
			if part.File == nil {
				return nil, false, fmt.Errorf("%w: file part without content", domain.ErrTransport)
			}
			data, err := base64.StdEncoding.DecodeString(part.File.Bytes)
			if err != nil {
				return nil, false, fmt.Errorf("%w: decode file %q: %v", domain.ErrTransport, part.File.Name, err)
			}
			err = r.artifacts.Save(ctx, artifactstore.Artifact{
				Name:     part.File.Name,
				MIMEType: part.File.MIMEType,
				Data:     data,
			})
			if err != nil {
				return nil, false, fmt.Errorf("store file %q: %w", part.File.Name, err)
			}
			out = append(out, map[string]any{"artifact-file-id": part.File.Name})
			escalate = true
		default:
			return nil, false, fmt.Errorf("%w: unknown part kind %q", domain.ErrTransport, part.Kind)
		}
	}
	return out, escalate, nil
}
