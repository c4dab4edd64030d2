package a2aclient

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/agentmesh/agentmesh/internal/domain"
	"github.com/agentmesh/agentmesh/internal/port/a2a"
)

func TestResolveFetchesCard(t *testing.T) {
	card := a2a.AgentCard{Name: "Alpha", Description: "test agent", URL: "http://a"}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != a2a.WellKnownPath {
			t.Errorf("wrong path %q", r.URL.Path)
		}
		_ = json.NewEncoder(w).Encode(card)
	}))
	defer srv.Close()

	resolver := NewCardResolver(time.Second)
	got, err := resolver.Resolve(context.Background(), srv.URL+"/")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Name != "Alpha" {
		t.Fatalf("wrong card name %q", got.Name)
	}
}

func TestResolveUpstreamFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "not here", http.StatusNotFound)
	}))
	defer srv.Close()

	resolver := NewCardResolver(time.Second)
	_, err := resolver.Resolve(context.Background(), srv.URL)
	if !errors.Is(err, domain.ErrCardResolution) {
		t.Fatalf("expected ErrCardResolution, got %v", err)
	}
}

func TestResolveRejectsNamelessCard(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"description":"no name"}`))
	}))
	defer srv.Close()

	resolver := NewCardResolver(time.Second)
	_, err := resolver.Resolve(context.Background(), srv.URL)
	if !errors.Is(err, domain.ErrCardResolution) {
		t.Fatalf("expected ErrCardResolution, got %v", err)
	}
}

func TestResolveUnreachable(t *testing.T) {
	resolver := NewCardResolver(200 * time.Millisecond)
	_, err := resolver.Resolve(context.Background(), "http://127.0.0.1:1")
	if !errors.Is(err, domain.ErrCardResolution) {
		t.Fatalf("expected ErrCardResolution, got %v", err)
	}
}
