package service

import (
	"context"
	"encoding/base64"
	"errors"
	"testing"

	"github.com/agentmesh/agentmesh/internal/directory"
	"github.com/agentmesh/agentmesh/internal/domain"
	"github.com/agentmesh/agentmesh/internal/port/a2a"
	"github.com/agentmesh/agentmesh/internal/port/artifactstore"
)

// scriptedTransport replays one fixed send result.
type scriptedTransport struct {
	result a2a.SendResult
	err    error
	panics bool
}

func (s *scriptedTransport) SendMessage(context.Context, a2a.MessageSendParams) (a2a.SendResult, error) {
	if s.panics {
		panic("transport exploded")
	}
	return s.result, s.err
}

func (s *scriptedTransport) StreamMessage(context.Context, a2a.MessageSendParams) (<-chan a2a.StreamItem, error) {
	ch := make(chan a2a.StreamItem, 1)
	if s.err != nil {
		ch <- a2a.StreamItem{Err: s.err}
	} else if s.result != nil {
		if ev, ok := s.result.(a2a.Event); ok {
			ch <- a2a.StreamItem{Event: ev}
		}
	}
	close(ch)
	return ch, nil
}

// memoryArtifacts is an in-memory artifact store.
type memoryArtifacts struct {
	saved map[string]artifactstore.Artifact
}

func newMemoryArtifacts() *memoryArtifacts {
	return &memoryArtifacts{saved: make(map[string]artifactstore.Artifact)}
}

func (m *memoryArtifacts) Save(_ context.Context, a artifactstore.Artifact) error {
	m.saved[a.Name] = a
	return nil
}

func (m *memoryArtifacts) Load(_ context.Context, name string) (artifactstore.Artifact, bool, error) {
	a, ok := m.saved[name]
	return a, ok, nil
}

func newTestRouter(transport directory.Transport) (*Router, *memoryArtifacts, *directory.Directory) {
	dir := directory.New(nil, func(a2a.AgentCard) directory.Transport { return transport })
	dir.Register(a2a.AgentCard{Name: "Alpha", Description: "test agent", URL: "http://a"})
	artifacts := newMemoryArtifacts()
	return NewRouter(dir, artifacts), artifacts, dir
}

func taskWith(state a2a.TaskState, parts ...a2a.Part) *a2a.Task {
	task := &a2a.Task{Kind: a2a.KindTask, ID: "t1", ContextID: "c1"}
	task.Status.State = state
	if len(parts) > 0 {
		task.Artifacts = []a2a.Artifact{{ArtifactID: "a1", Parts: parts}}
	}
	return task
}

func TestDelegateInputRequiredEscalates(t *testing.T) {
	payload := map[string]any{"city": "Paris", "needsClarification": true}
	router, _, _ := newTestRouter(&scriptedTransport{
		result: taskWith(a2a.TaskStateInputRequired, a2a.DataPart(payload)),
	})
	state := &ConversationState{}

	result, err := router.Delegate(context.Background(), "Alpha", "weather?", state)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.Escalate {
		t.Fatal("input-required result must be flagged for escalation")
	}
	if !state.SessionActive {
		t.Fatal("input-required keeps the session active")
	}
	if state.TaskID != "t1" || state.ContextID != "c1" {
		t.Fatalf("continuation ids not recorded: %+v", state)
	}
	if len(result.Parts) != 1 {
		t.Fatalf("expected 1 part, got %d", len(result.Parts))
	}
}

func TestDelegateFailedTask(t *testing.T) {
	router, _, _ := newTestRouter(&scriptedTransport{
		result: taskWith(a2a.TaskStateFailed),
	})
	state := &ConversationState{}

	_, err := router.Delegate(context.Background(), "Alpha", "do it", state)
	if !errors.Is(err, domain.ErrTaskFailed) {
		t.Fatalf("expected ErrTaskFailed, got %v", err)
	}
	// The task id is recorded before the error is raised.
	if state.TaskID != "t1" {
		t.Fatalf("task id not recorded on failure: %+v", state)
	}
	if state.SessionActive {
		t.Fatal("failed task closes the session")
	}
}

func TestDelegateCanceledTask(t *testing.T) {
	router, _, _ := newTestRouter(&scriptedTransport{
		result: taskWith(a2a.TaskStateCanceled),
	})

	_, err := router.Delegate(context.Background(), "Alpha", "do it", &ConversationState{})
	if !errors.Is(err, domain.ErrTaskCanceled) {
		t.Fatalf("expected ErrTaskCanceled, got %v", err)
	}
}

func TestDelegateUnknownAgent(t *testing.T) {
	router, _, _ := newTestRouter(&scriptedTransport{})

	_, err := router.Delegate(context.Background(), "Nope", "hi", &ConversationState{})
	if !errors.Is(err, domain.ErrAgentNotFound) {
		t.Fatalf("expected ErrAgentNotFound, got %v", err)
	}
}

func TestDelegateBindsAgent(t *testing.T) {
	router, _, _ := newTestRouter(&scriptedTransport{
		result: taskWith(a2a.TaskStateCompleted, a2a.TextPart("done")),
	})
	state := &ConversationState{}

	if _, err := router.Delegate(context.Background(), "Alpha", "hi", state); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if state.Agent != "Alpha" {
		t.Fatalf("routing not sticky, agent %q", state.Agent)
	}
	if state.SessionActive {
		t.Fatal("completed task closes the session")
	}
}

func TestDelegatePlainMessageSkipsStateUpdate(t *testing.T) {
	router, _, _ := newTestRouter(&scriptedTransport{
		result: a2a.NewAgentTextMessage("direct answer", "", ""),
	})
	state := &ConversationState{}

	result, err := router.Delegate(context.Background(), "Alpha", "hi", state)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if state.TaskID != "" || state.ContextID != "" {
		t.Fatalf("plain message must not record task ids: %+v", state)
	}
	if len(result.Parts) != 1 || result.Parts[0] != "direct answer" {
		t.Fatalf("wrong parts: %v", result.Parts)
	}
}

func TestDelegateFilePartStoredAndEscalated(t *testing.T) {
	content := []byte("report body")
	router, artifacts, _ := newTestRouter(&scriptedTransport{
		result: taskWith(a2a.TaskStateCompleted, a2a.FilePart(a2a.FileContent{
			Name:     "report.pdf",
			MIMEType: "application/pdf",
			Bytes:    base64.StdEncoding.EncodeToString(content),
		})),
	})

	result, err := router.Delegate(context.Background(), "Alpha", "report please", &ConversationState{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.Escalate {
		t.Fatal("a delivered file must end the automated turn")
	}

	ref, ok := result.Parts[0].(map[string]any)
	if !ok || ref["artifact-file-id"] != "report.pdf" {
		t.Fatalf("expected artifact reference, got %v", result.Parts[0])
	}

	stored, found, _ := artifacts.Load(context.Background(), "report.pdf")
	if !found {
		t.Fatal("file not persisted")
	}
	if string(stored.Data) != string(content) {
		t.Fatalf("stored bytes differ: %q", stored.Data)
	}
}

func TestDelegateTransportPanicIsCaught(t *testing.T) {
	router, _, _ := newTestRouter(&scriptedTransport{panics: true})

	_, err := router.Delegate(context.Background(), "Alpha", "hi", &ConversationState{})
	if !errors.Is(err, domain.ErrTransport) {
		t.Fatalf("expected wrapped transport error, got %v", err)
	}
}

func TestDelegateTransportError(t *testing.T) {
	router, _, _ := newTestRouter(&scriptedTransport{
		err: errors.New("connection reset"),
	})

	_, err := router.Delegate(context.Background(), "Alpha", "hi", &ConversationState{})
	if err == nil {
		t.Fatal("expected error")
	}
}
