package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := LoadFrom(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Server.Port != "10000" {
		t.Errorf("expected default port 10000, got %q", cfg.Server.Port)
	}
	if cfg.Router.HistoryTurns != 3 {
		t.Errorf("expected 3 history turns, got %d", cfg.Router.HistoryTurns)
	}
	if cfg.Router.SessionHistoryCap != 10 {
		t.Errorf("expected session history cap 10, got %d", cfg.Router.SessionHistoryCap)
	}
	if cfg.Router.TurnTimeout != 300*time.Second {
		t.Errorf("expected 300s turn timeout, got %v", cfg.Router.TurnTimeout)
	}
	if cfg.Router.SendTimeout != 60*time.Second {
		t.Errorf("expected 60s send timeout, got %v", cfg.Router.SendTimeout)
	}
}

func TestLoadYAMLOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "agentmesh.yaml")
	yaml := `
server:
  port: "8080"
router:
  history_turns: 5
  turn_timeout: 30s
llm:
  model: openai/gpt-4o
`
	if err := os.WriteFile(path, []byte(yaml), 0o600); err != nil {
		t.Fatalf("write yaml: %v", err)
	}

	cfg, err := LoadFrom(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Server.Port != "8080" {
		t.Errorf("yaml port not applied, got %q", cfg.Server.Port)
	}
	if cfg.Router.HistoryTurns != 5 {
		t.Errorf("yaml history_turns not applied, got %d", cfg.Router.HistoryTurns)
	}
	if cfg.Router.TurnTimeout != 30*time.Second {
		t.Errorf("yaml turn_timeout not applied, got %v", cfg.Router.TurnTimeout)
	}
	if cfg.LLM.Model != "openai/gpt-4o" {
		t.Errorf("yaml model not applied, got %q", cfg.LLM.Model)
	}
	// Unset values keep their defaults.
	if cfg.Router.MaxLLMCalls != 10 {
		t.Errorf("default max_llm_calls lost, got %d", cfg.Router.MaxLLMCalls)
	}
}

func TestLoadEnvOverridesYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "agentmesh.yaml")
	if err := os.WriteFile(path, []byte("server:\n  port: \"8080\"\n"), 0o600); err != nil {
		t.Fatalf("write yaml: %v", err)
	}

	t.Setenv("AGENTMESH_PORT", "9090")
	t.Setenv("LLM_MODEL", "openai/gpt-4o-mini")
	t.Setenv("AGENTMESH_TURN_TIMEOUT", "45s")

	cfg, err := LoadFrom(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Server.Port != "9090" {
		t.Errorf("env port not applied, got %q", cfg.Server.Port)
	}
	if cfg.LLM.Model != "openai/gpt-4o-mini" {
		t.Errorf("env model not applied, got %q", cfg.LLM.Model)
	}
	if cfg.Router.TurnTimeout != 45*time.Second {
		t.Errorf("env turn_timeout not applied, got %v", cfg.Router.TurnTimeout)
	}
}

func TestLoadRejectsInvalidConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "agentmesh.yaml")
	if err := os.WriteFile(path, []byte("router:\n  history_turns: 0\n"), 0o600); err != nil {
		t.Fatalf("write yaml: %v", err)
	}

	if _, err := LoadFrom(path); err == nil {
		t.Fatal("expected validation error")
	}
}
