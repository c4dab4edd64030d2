package a2a

import (
	"encoding/json"
	"fmt"
	"time"
)

// Event is the sealed union of payloads an agent can emit on a message
// stream: a final Message, a Task snapshot, or incremental task updates.
type Event interface {
	isEvent()
}

func (*Message) isEvent()                 {}
func (*Task) isEvent()                    {}
func (*TaskStatusUpdateEvent) isEvent()   {}
func (*TaskArtifactUpdateEvent) isEvent() {}

// Stream event kind discriminators.
const (
	KindStatusUpdate   = "status-update"
	KindArtifactUpdate = "artifact-update"
)

// TaskStatusUpdateEvent reports a task state change during streaming.
// Final marks the last event of the stream for this turn.
type TaskStatusUpdateEvent struct {
	Kind      string     `json:"kind"`
	TaskID    string     `json:"taskId"`
	ContextID string     `json:"contextId"`
	Status    TaskStatus `json:"status"`
	Final     bool       `json:"final"`
}

// NewStatusUpdateEvent builds a status update for the given task.
func NewStatusUpdateEvent(taskID, contextID string, state TaskState, msg *Message, final bool) *TaskStatusUpdateEvent {
	now := time.Now().UTC()
	return &TaskStatusUpdateEvent{
		Kind:      KindStatusUpdate,
		TaskID:    taskID,
		ContextID: contextID,
		Status:    TaskStatus{State: state, Message: msg, Timestamp: &now},
		Final:     final,
	}
}

// TaskArtifactUpdateEvent delivers an artifact produced during streaming.
type TaskArtifactUpdateEvent struct {
	Kind      string   `json:"kind"`
	TaskID    string   `json:"taskId"`
	ContextID string   `json:"contextId"`
	Artifact  Artifact `json:"artifact"`
	LastChunk bool     `json:"lastChunk,omitempty"`
}

// NewArtifactUpdateEvent builds an artifact update for the given task.
func NewArtifactUpdateEvent(taskID, contextID string, artifact Artifact) *TaskArtifactUpdateEvent {
	return &TaskArtifactUpdateEvent{
		Kind:      KindArtifactUpdate,
		TaskID:    taskID,
		ContextID: contextID,
		Artifact:  artifact,
	}
}

// IsFinal reports whether the event terminates a stream: a Message always
// does, a status update does when flagged.
func IsFinal(ev Event) bool {
	switch v := ev.(type) {
	case *Message:
		return true
	case *TaskStatusUpdateEvent:
		return v.Final
	}
	return false
}

// StreamItem is one item of a streamed exchange: a decoded event or a
// terminal transport error.
type StreamItem struct {
	Event Event
	Err   error
}

// DecodeEvent decodes a stream event payload by its kind discriminator.
func DecodeEvent(raw json.RawMessage) (Event, error) {
	var head struct {
		Kind string `json:"kind"`
	}
	if err := json.Unmarshal(raw, &head); err != nil {
		return nil, fmt.Errorf("decode event: %w", err)
	}

	switch head.Kind {
	case KindMessage:
		var msg Message
		if err := json.Unmarshal(raw, &msg); err != nil {
			return nil, fmt.Errorf("decode message event: %w", err)
		}
		return &msg, nil
	case KindTask:
		var task Task
		if err := json.Unmarshal(raw, &task); err != nil {
			return nil, fmt.Errorf("decode task event: %w", err)
		}
		return &task, nil
	case KindStatusUpdate:
		var ev TaskStatusUpdateEvent
		if err := json.Unmarshal(raw, &ev); err != nil {
			return nil, fmt.Errorf("decode status update: %w", err)
		}
		return &ev, nil
	case KindArtifactUpdate:
		var ev TaskArtifactUpdateEvent
		if err := json.Unmarshal(raw, &ev); err != nil {
			return nil, fmt.Errorf("decode artifact update: %w", err)
		}
		return &ev, nil
	default:
		return nil, fmt.Errorf("unknown event kind %q", head.Kind)
	}
}
