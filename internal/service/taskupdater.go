package service

import (
	"log/slog"

	"github.com/agentmesh/agentmesh/internal/port/a2a"
)

// TaskUpdater folds task events observed during delegation into the task
// store, so remotely owned tasks are visible through the same query surface
// as locally created ones.
type TaskUpdater struct {
	tasks *TaskStore
}

// NewTaskUpdater creates an updater writing into tasks.
func NewTaskUpdater(tasks *TaskStore) *TaskUpdater {
	return &TaskUpdater{tasks: tasks}
}

// OnTaskEvent records one observed event. Called once per event; never
// called after a final event.
func (u *TaskUpdater) OnTaskEvent(ev a2a.Event, card a2a.AgentCard) {
	switch v := ev.(type) {
	case *a2a.Task:
		copied := *v
		u.tasks.Save(&copied)
		slog.Debug("remote task observed", "agent", card.Name, "task_id", v.ID, "state", v.Status.State)
	case *a2a.TaskStatusUpdateEvent:
		u.ensure(v.TaskID, v.ContextID)
		u.tasks.SetStatus(v.TaskID, v.Status.State, v.Status.Message)
	case *a2a.TaskArtifactUpdateEvent:
		u.ensure(v.TaskID, v.ContextID)
		u.tasks.AddArtifact(v.TaskID, v.Artifact)
	}
}

// ensure creates a placeholder record for updates that arrive before any
// full task snapshot.
func (u *TaskUpdater) ensure(taskID, contextID string) {
	if _, ok := u.tasks.Get(taskID); !ok {
		u.tasks.Save(&a2a.Task{Kind: a2a.KindTask, ID: taskID, ContextID: contextID})
	}
}
