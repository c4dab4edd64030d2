// Package a2a defines the wire types of the A2A (agent-to-agent) protocol
// as used by AgentMesh: agent cards, messages, tasks, content parts, and the
// JSON-RPC envelopes that carry them over HTTP.
package a2a

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// AgentCard describes a remote agent's identity and capabilities. It is
// immutable once fetched from the agent's well-known endpoint.
type AgentCard struct {
	Name               string            `json:"name"`
	Description        string            `json:"description"`
	URL                string            `json:"url"`
	Version            string            `json:"version"`
	DefaultInputModes  []string          `json:"defaultInputModes,omitempty"`
	DefaultOutputModes []string          `json:"defaultOutputModes,omitempty"`
	Capabilities       AgentCapabilities `json:"capabilities"`
	Skills             []AgentSkill      `json:"skills,omitempty"`
}

// AgentCapabilities declares optional protocol features an agent supports.
type AgentCapabilities struct {
	Streaming         bool `json:"streaming"`
	PushNotifications bool `json:"pushNotifications,omitempty"`
}

// AgentSkill describes one named capability of an agent.
type AgentSkill struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Tags        []string `json:"tags,omitempty"`
	Examples    []string `json:"examples,omitempty"`
}

// WellKnownPath is where an agent serves its card relative to its base URL.
const WellKnownPath = "/.well-known/agent.json"

// MessageRole identifies the sender of a message.
type MessageRole string

const (
	RoleUser  MessageRole = "user"
	RoleAgent MessageRole = "agent"
)

// Message is a single conversational message exchanged with an agent.
type Message struct {
	Kind      string      `json:"kind"`
	MessageID string      `json:"messageId"`
	Role      MessageRole `json:"role"`
	Parts     []Part      `json:"parts"`
	TaskID    string      `json:"taskId,omitempty"`
	ContextID string      `json:"contextId,omitempty"`
}

// KindMessage is the discriminator value carried by Message events.
const KindMessage = "message"

// NewUserMessage builds a user-role message with a single text part.
// messageID may be empty, in which case a fresh id is generated.
func NewUserMessage(text, messageID, taskID, contextID string) *Message {
	if messageID == "" {
		messageID = uuid.NewString()
	}
	return &Message{
		Kind:      KindMessage,
		MessageID: messageID,
		Role:      RoleUser,
		Parts:     []Part{TextPart(text)},
		TaskID:    taskID,
		ContextID: contextID,
	}
}

// NewAgentTextMessage builds an agent-role message with a single text part
// bound to the given task and context.
func NewAgentTextMessage(text, contextID, taskID string) *Message {
	return NewAgentPartsMessage([]Part{TextPart(text)}, contextID, taskID)
}

// NewAgentPartsMessage builds an agent-role message from the given parts.
func NewAgentPartsMessage(parts []Part, contextID, taskID string) *Message {
	return &Message{
		Kind:      KindMessage,
		MessageID: uuid.NewString(),
		Role:      RoleAgent,
		Parts:     parts,
		TaskID:    taskID,
		ContextID: contextID,
	}
}

// PartKind discriminates the content part union.
type PartKind string

const (
	PartKindText PartKind = "text"
	PartKindData PartKind = "data"
	PartKindFile PartKind = "file"
)

// Part is the tagged content union: text, structured data, or a file.
// Exactly one of Text, Data, or File is meaningful, selected by Kind.
type Part struct {
	Kind PartKind       `json:"kind"`
	Text string         `json:"text,omitempty"`
	Data map[string]any `json:"data,omitempty"`
	File *FileContent   `json:"file,omitempty"`
}

// FileContent carries a file either inline (base64 Bytes on the wire) or by
// external URI reference.
type FileContent struct {
	Name     string `json:"name,omitempty"`
	MIMEType string `json:"mimeType,omitempty"`
	Bytes    string `json:"bytes,omitempty"`
	URI      string `json:"uri,omitempty"`
}

// TextPart builds a text content part.
func TextPart(text string) Part {
	return Part{Kind: PartKindText, Text: text}
}

// DataPart builds a structured-data content part.
func DataPart(data map[string]any) Part {
	return Part{Kind: PartKindData, Data: data}
}

// FilePart builds a file content part.
func FilePart(file FileContent) Part {
	return Part{Kind: PartKindFile, File: &file}
}

// Validate checks the part's discriminator against its populated content.
func (p Part) Validate() error {
	switch p.Kind {
	case PartKindText, PartKindData:
		return nil
	case PartKindFile:
		if p.File == nil {
			return fmt.Errorf("file part without file content")
		}
		return nil
	default:
		return fmt.Errorf("unknown part kind %q", p.Kind)
	}
}

// TaskState is the lifecycle state of a delegated task.
type TaskState string

const (
	TaskStateSubmitted     TaskState = "submitted"
	TaskStateWorking       TaskState = "working"
	TaskStateInputRequired TaskState = "input-required"
	TaskStateCompleted     TaskState = "completed"
	TaskStateCanceled      TaskState = "canceled"
	TaskStateFailed        TaskState = "failed"
	TaskStateRejected      TaskState = "rejected"
	TaskStateUnknown       TaskState = "unknown"
)

// Terminal reports whether the state closes the task. Input-required pauses
// the task without closing it.
func (s TaskState) Terminal() bool {
	switch s {
	case TaskStateCompleted, TaskStateCanceled, TaskStateFailed, TaskStateRejected:
		return true
	}
	return false
}

// TaskStatus is a task's state at a point in time, with an optional
// human-readable or structured status message.
type TaskStatus struct {
	State     TaskState  `json:"state"`
	Message   *Message   `json:"message,omitempty"`
	Timestamp *time.Time `json:"timestamp,omitempty"`
}

// Task is a stateful unit of work owned by a remote agent.
type Task struct {
	Kind      string     `json:"kind"`
	ID        string     `json:"id"`
	ContextID string     `json:"contextId"`
	Status    TaskStatus `json:"status"`
	Artifacts []Artifact `json:"artifacts,omitempty"`
	History   []*Message `json:"history,omitempty"`
}

// KindTask is the discriminator value carried by Task events.
const KindTask = "task"

// NewTask creates a submitted task from the inbound message, generating task
// and context ids where the message does not supply them.
func NewTask(msg *Message) *Task {
	taskID := msg.TaskID
	if taskID == "" {
		taskID = uuid.NewString()
	}
	contextID := msg.ContextID
	if contextID == "" {
		contextID = uuid.NewString()
	}
	now := time.Now().UTC()
	return &Task{
		Kind:      KindTask,
		ID:        taskID,
		ContextID: contextID,
		Status:    TaskStatus{State: TaskStateSubmitted, Timestamp: &now},
		History:   []*Message{msg},
	}
}

// Artifact is a named, ordered sequence of content parts produced by a task.
type Artifact struct {
	ArtifactID string `json:"artifactId"`
	Name       string `json:"name,omitempty"`
	Parts      []Part `json:"parts"`
}

// MessageSendParams is the params payload of message/send and message/stream.
type MessageSendParams struct {
	Message       *Message           `json:"message"`
	Configuration *SendConfiguration `json:"configuration,omitempty"`
}

// SendConfiguration tunes a send request.
type SendConfiguration struct {
	AcceptedOutputModes []string `json:"acceptedOutputModes,omitempty"`
	HistoryLength       *int     `json:"historyLength,omitempty"`
	Blocking            *bool    `json:"blocking,omitempty"`
}

// TaskQueryParams is the params payload of tasks/get and tasks/cancel.
type TaskQueryParams struct {
	ID            string `json:"id"`
	HistoryLength *int   `json:"historyLength,omitempty"`
}

// SendResult is the sealed two-way union a remote agent returns from a
// message send: either a final Message or a Task snapshot. Transport and
// protocol failures travel separately as errors.
type SendResult interface {
	isSendResult()
}

func (*Message) isSendResult() {}
func (*Task) isSendResult()    {}

// decodeResult decodes a message/send result payload by its kind field.
func decodeResult(raw json.RawMessage) (SendResult, error) {
	ev, err := DecodeEvent(raw)
	if err != nil {
		return nil, err
	}
	switch v := ev.(type) {
	case *Message:
		return v, nil
	case *Task:
		return v, nil
	default:
		return nil, fmt.Errorf("unexpected result kind %T", ev)
	}
}
