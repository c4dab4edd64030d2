package service

import (
	"testing"

	"github.com/agentmesh/agentmesh/internal/port/llm"
)

func turns(n int) []llm.Turn {
	out := make([]llm.Turn, n)
	for i := range out {
		role := llm.RoleUser
		if i%2 == 1 {
			role = llm.RoleAssistant
		}
		out[i] = llm.Turn{Role: role, Content: string(rune('a' + i))}
	}
	return out
}

func TestTrimHistory(t *testing.T) {
	tests := []struct {
		name     string
		entries  int
		maxTurns int
		want     int
	}{
		{"odd over cap", 7, 3, 6},
		{"even untouched", 8, 3, 8},
		{"odd under cap", 5, 3, 5},
		{"single entry", 1, 3, 1},
		{"empty", 0, 3, 0},
		{"zero cap passes through", 7, 0, 7},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := turns(tt.entries)
			got := TrimHistory(in, tt.maxTurns)
			if len(got) != tt.want {
				t.Fatalf("expected %d entries, got %d", tt.want, len(got))
			}
			// Trimming keeps the most recent entries.
			if len(got) > 0 && got[len(got)-1].Content != in[len(in)-1].Content {
				t.Fatalf("last entry changed: %v vs %v", got[len(got)-1], in[len(in)-1])
			}
		})
	}
}

func TestSessionStoreServerCapWins(t *testing.T) {
	store := NewSessionStore(2)
	for _, turn := range turns(9) {
		store.AppendHistory("s1", turn)
	}

	// Caller asks for 5 turns; the server cap of 2 turns is smaller and wins.
	got := store.History("s1", 5)
	if len(got) != 4 {
		t.Fatalf("expected 4 entries (2 turns), got %d", len(got))
	}
}

func TestSessionStoreCallerCapWins(t *testing.T) {
	store := NewSessionStore(10)
	for _, turn := range turns(9) {
		store.AppendHistory("s1", turn)
	}

	got := store.History("s1", 3)
	if len(got) != 6 {
		t.Fatalf("expected 6 entries (3 turns), got %d", len(got))
	}
}

func TestSessionStoreStateCreatedOnFirstUse(t *testing.T) {
	store := NewSessionStore(10)

	st := store.State("s1")
	if st == nil {
		t.Fatal("expected state")
	}
	if st.SessionActive || st.TaskID != "" || st.Agent != "" {
		t.Fatalf("expected empty initial state, got %+v", st)
	}

	st.Agent = "Alpha"
	if store.State("s1").Agent != "Alpha" {
		t.Fatal("state not shared across lookups")
	}
	if store.Len() != 1 {
		t.Fatalf("expected 1 session, got %d", store.Len())
	}
}
