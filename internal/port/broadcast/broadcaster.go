// Package broadcast defines the port for publishing task lifecycle and
// directory change events to external observers.
package broadcast

import "context"

// Broadcaster publishes typed events. Implementations must not block request
// handling on slow consumers; failures are logged, never propagated.
type Broadcaster interface {
	// Publish sends a typed event on the given subject.
	Publish(ctx context.Context, subject string, payload any)
}

// Subjects published by AgentMesh.
const (
	SubjectTaskStatus      = "tasks.status"   // tasks.status.{taskId}
	SubjectTaskArtifact    = "tasks.artifact" // tasks.artifact.{taskId}
	SubjectAgentRegistered = "agents.registered"
	SubjectAgentRemoved    = "agents.removed"
)
