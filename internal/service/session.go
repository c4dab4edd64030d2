// Package service implements the delegation core: per-session conversation
// state, the delegation router, the turn orchestrator that drives the
// decision engine, and the execution adapter that bridges turns onto the
// task-lifecycle protocol.
package service

import (
	"sync"

	"github.com/agentmesh/agentmesh/internal/port/llm"
)

// ConversationState is the per-session continuation record: the ids needed
// to resume a remote task on the next turn, whether the remote session is
// still open, and which agent currently owns the conversation.
type ConversationState struct {
	TaskID        string
	ContextID     string
	MessageID     string
	SessionActive bool
	Agent         string
}

// SessionStore keeps conversation state and history per session id. Entries
// are created on first use and live for the life of the process.
//
// TODO: evict idle sessions once a retention policy is agreed on.
type SessionStore struct {
	historyCap int

	mu        sync.RWMutex
	states    map[string]*ConversationState
	histories map[string][]llm.Turn
}

// NewSessionStore creates a store whose histories are capped server-side at
// historyCap turns regardless of what a caller requests.
func NewSessionStore(historyCap int) *SessionStore {
	return &SessionStore{
		historyCap: historyCap,
		states:     make(map[string]*ConversationState),
		histories:  make(map[string][]llm.Turn),
	}
}

// State returns the conversation state for sessionID, creating an empty one
// on first use.
func (s *SessionStore) State(sessionID string) *ConversationState {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.states[sessionID]
	if !ok {
		st = &ConversationState{}
		s.states[sessionID] = st
	}
	return st
}

// AppendHistory records one conversation turn for sessionID.
func (s *SessionStore) AppendHistory(sessionID string, turn llm.Turn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.histories[sessionID] = append(s.histories[sessionID], turn)
}

// History returns the trimmed conversation history for sessionID. maxTurns
// is the caller's cap; the store's server-side cap also applies and the
// smaller of the two wins.
func (s *SessionStore) History(sessionID string, maxTurns int) []llm.Turn {
	s.mu.RLock()
	entries := s.histories[sessionID]
	s.mu.RUnlock()

	limit := maxTurns
	if s.historyCap < limit {
		limit = s.historyCap
	}
	return TrimHistory(entries, limit)
}

// Len reports the number of tracked sessions.
func (s *SessionStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.states)
}

// TrimHistory bounds a conversation history to the last maxTurns turns, two
// entries per turn. An odd entry count is the well-formed case (alternating
// prompt/response with a leading prompt for the current turn); an even count
// is an anomaly and is passed through untrimmed rather than guessed at.
func TrimHistory(entries []llm.Turn, maxTurns int) []llm.Turn {
	if len(entries)%2 == 0 {
		return entries
	}
	keep := maxTurns * 2
	if keep <= 0 || len(entries) <= keep {
		return entries
	}
	return entries[len(entries)-keep:]
}
