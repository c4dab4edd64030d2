package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"

	"github.com/agentmesh/agentmesh/internal/adapter/otel"
	"github.com/agentmesh/agentmesh/internal/domain"
	"github.com/agentmesh/agentmesh/internal/port/a2a"
	"github.com/agentmesh/agentmesh/internal/port/broadcast"
)

// unexpectedStateText is the fixed status message attached to a failed task
// when a final turn payload does not match the expected response shape.
const unexpectedStateText = "Reaching an unexpected state"

// Executor bridges the orchestrator's turn events onto the task-lifecycle
// protocol: it creates the task, publishes working updates, and closes the
// turn with an input-required pause, a completed artifact, or a failure.
type Executor struct {
	orch   *Orchestrator
	tasks  *TaskStore
	events broadcast.Broadcaster
}

// NewExecutor creates an executor over the orchestrator and task store.
func NewExecutor(orch *Orchestrator, tasks *TaskStore) *Executor {
	return &Executor{orch: orch, tasks: tasks}
}

// SetBroadcaster attaches an optional broadcaster for task lifecycle events.
func (e *Executor) SetBroadcaster(b broadcast.Broadcaster) {
	e.events = b
}

// Tasks exposes the backing task store.
func (e *Executor) Tasks() *TaskStore {
	return e.tasks
}

// Get returns the task with the given id.
func (e *Executor) Get(id string) (*a2a.Task, bool) {
	return e.tasks.Get(id)
}

// Cancel is not supported by this executor. It always fails explicitly
// rather than pretending the task was canceled.
func (e *Executor) Cancel(ctx context.Context, id string) error {
	return fmt.Errorf("%w: cancel task %s", domain.ErrUnsupportedOperation, id)
}

// Execute runs one turn for the inbound message and publishes the resulting
// event sequence on q. The task is created and published before any
// processing begins; q is closed when the turn ends.
func (e *Executor) Execute(ctx context.Context, msg *a2a.Message, q *EventQueue) {
	defer q.Close()

	task := e.resolveTask(msg)

	ctx, span := otel.Tracer().Start(ctx, "executor.execute",
		trace.WithAttributes(otel.TaskAttr(task.ID)))
	defer span.End()
	snapshot, _ := e.tasks.Get(task.ID)
	q.Enqueue(ctx, snapshot)

	sessionID := task.ContextID
	query := messageText(msg)

	done := false
	for ev := range e.orch.Stream(ctx, query, sessionID) {
		if done {
			// The turn is already closed; drain so the producer can finish.
			continue
		}
		if !ev.Complete {
			e.publishWorking(ctx, q, task, ev.Update)
			continue
		}
		e.publishFinal(ctx, q, task, ev.Content)
		done = true
	}
}

// resolveTask reuses the task named by the message or creates a fresh one.
func (e *Executor) resolveTask(msg *a2a.Message) *a2a.Task {
	if msg.TaskID != "" {
		if task, ok := e.tasks.Get(msg.TaskID); ok {
			e.tasks.AppendHistory(task.ID, msg)
			return task
		}
	}
	task := a2a.NewTask(msg)
	e.tasks.Save(task)
	return task
}

func (e *Executor) publishWorking(ctx context.Context, q *EventQueue, task *a2a.Task, text string) {
	msg := a2a.NewAgentTextMessage(text, task.ContextID, task.ID)
	e.tasks.SetStatus(task.ID, a2a.TaskStateWorking, msg)
	ev := a2a.NewStatusUpdateEvent(task.ID, task.ContextID, a2a.TaskStateWorking, msg, false)
	q.Enqueue(ctx, ev)
	e.broadcast(ctx, broadcast.SubjectTaskStatus, ev)
}

// publishFinal closes the turn from the final event's content: an
// input-required batch for a {response: {result: [...]}} payload, a failure
// for any other structured payload, and a completed artifact for text.
func (e *Executor) publishFinal(ctx context.Context, q *EventQueue, task *a2a.Task, content any) {
	switch v := content.(type) {
	case string:
		e.publishCompleted(ctx, q, task, v)
	case map[string]any:
		if parts, ok := escalationParts(v); ok {
			e.publishInputRequired(ctx, q, task, parts)
			return
		}
		e.publishFailed(ctx, q, task, content)
	default:
		e.publishFailed(ctx, q, task, content)
	}
}

func (e *Executor) publishCompleted(ctx context.Context, q *EventQueue, task *a2a.Task, text string) {
	artifact := a2a.Artifact{
		ArtifactID: uuid.NewString(),
		Name:       "form",
		Parts:      []a2a.Part{a2a.TextPart(text)},
	}
	e.tasks.AddArtifact(task.ID, artifact)
	artEv := a2a.NewArtifactUpdateEvent(task.ID, task.ContextID, artifact)
	q.Enqueue(ctx, artEv)
	e.broadcast(ctx, broadcast.SubjectTaskArtifact, artEv)

	e.tasks.SetStatus(task.ID, a2a.TaskStateCompleted, nil)
	statusEv := a2a.NewStatusUpdateEvent(task.ID, task.ContextID, a2a.TaskStateCompleted, nil, true)
	q.Enqueue(ctx, statusEv)
	e.broadcast(ctx, broadcast.SubjectTaskStatus, statusEv)
}

// publishInputRequired emits one input-required status update per batch
// element. Only the last element carries the final flag; earlier elements
// keep the stream open so the batch arrives as a single paused turn. Other
// servers flag every element final and consumers must tolerate both.
func (e *Executor) publishInputRequired(ctx context.Context, q *EventQueue, task *a2a.Task, parts []any) {
	for i, part := range parts {
		msg := a2a.NewAgentPartsMessage([]a2a.Part{toPart(part)}, task.ContextID, task.ID)
		final := i == len(parts)-1
		e.tasks.SetStatus(task.ID, a2a.TaskStateInputRequired, msg)
		ev := a2a.NewStatusUpdateEvent(task.ID, task.ContextID, a2a.TaskStateInputRequired, msg, final)
		q.Enqueue(ctx, ev)
		e.broadcast(ctx, broadcast.SubjectTaskStatus, ev)
	}
}

func (e *Executor) publishFailed(ctx context.Context, q *EventQueue, task *a2a.Task, content any) {
	slog.Warn("turn result has unexpected shape",
		"task_id", task.ID,
		"error", fmt.Errorf("%w: payload type %T", domain.ErrUnexpectedState, content))
	msg := a2a.NewAgentTextMessage(unexpectedStateText, task.ContextID, task.ID)
	e.tasks.SetStatus(task.ID, a2a.TaskStateFailed, msg)
	ev := a2a.NewStatusUpdateEvent(task.ID, task.ContextID, a2a.TaskStateFailed, msg, true)
	q.Enqueue(ctx, ev)
	e.broadcast(ctx, broadcast.SubjectTaskStatus, ev)
}

func (e *Executor) broadcast(ctx context.Context, subject string, ev a2a.Event) {
	if e.events != nil {
		e.events.Publish(ctx, subject, ev)
	}
}

// escalationParts extracts the element list of a {response: {result: [...]}}
// payload. ok is false for any other shape.
func escalationParts(payload map[string]any) ([]any, bool) {
	resp, ok := payload["response"].(map[string]any)
	if !ok {
		return nil, false
	}
	result, ok := resp["result"].([]any)
	if !ok {
		return nil, false
	}
	return result, true
}

// toPart maps an engine-facing content element back to a protocol part.
func toPart(v any) a2a.Part {
	switch t := v.(type) {
	case string:
		return a2a.TextPart(t)
	case map[string]any:
		return a2a.DataPart(t)
	default:
		return a2a.TextPart(fmt.Sprint(t))
	}
}

// messageText flattens the text parts of an inbound message into the query
// handed to the orchestrator.
func messageText(msg *a2a.Message) string {
	var texts []string
	for _, part := range msg.Parts {
		if part.Kind == a2a.PartKindText && part.Text != "" {
			texts = append(texts, part.Text)
		}
	}
	return strings.Join(texts, "\n")
}
