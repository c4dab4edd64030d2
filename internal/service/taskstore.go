package service

import (
	"sync"
	"time"

	"github.com/agentmesh/agentmesh/internal/port/a2a"
)

// TaskStore is the in-memory record of tasks created by the execution
// adapter. Tasks do not survive a process restart.
type TaskStore struct {
	mu    sync.RWMutex
	tasks map[string]*a2a.Task
}

// NewTaskStore creates an empty store.
func NewTaskStore() *TaskStore {
	return &TaskStore{tasks: make(map[string]*a2a.Task)}
}

// Save inserts or replaces the task keyed by its id.
func (s *TaskStore) Save(task *a2a.Task) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tasks[task.ID] = task
}

// Get returns a copy of the task with the given id.
func (s *TaskStore) Get(id string) (*a2a.Task, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	task, ok := s.tasks[id]
	if !ok {
		return nil, false
	}
	copied := *task
	copied.Artifacts = append([]a2a.Artifact(nil), task.Artifacts...)
	copied.History = append([]*a2a.Message(nil), task.History...)
	return &copied, true
}

// SetStatus records a state change on the task.
func (s *TaskStore) SetStatus(id string, state a2a.TaskState, msg *a2a.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	task, ok := s.tasks[id]
	if !ok {
		return
	}
	now := time.Now().UTC()
	task.Status = a2a.TaskStatus{State: state, Message: msg, Timestamp: &now}
}

// AddArtifact appends an artifact produced by the task.
func (s *TaskStore) AddArtifact(id string, artifact a2a.Artifact) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if task, ok := s.tasks[id]; ok {
		task.Artifacts = append(task.Artifacts, artifact)
	}
}

// AppendHistory records a message exchanged on the task.
func (s *TaskStore) AppendHistory(id string, msg *a2a.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if task, ok := s.tasks[id]; ok {
		task.History = append(task.History, msg)
	}
}
