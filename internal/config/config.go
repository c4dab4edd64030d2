// Package config provides hierarchical configuration loading for AgentMesh.
// Precedence: defaults < YAML file < environment variables.
package config

import "time"

// Config holds all runtime configuration for the AgentMesh router service.
type Config struct {
	Server  Server  `yaml:"server"`
	Card    Card    `yaml:"card"`
	Router  Router  `yaml:"router"`
	LLM     LLM     `yaml:"llm"`
	NATS    NATS    `yaml:"nats"`
	Cache   Cache   `yaml:"cache"`
	Logging Logging `yaml:"logging"`
	Breaker Breaker `yaml:"breaker"`
}

// Server holds HTTP server configuration.
type Server struct {
	Port       string `yaml:"port"`
	CORSOrigin string `yaml:"cors_origin"`
}

// Card describes the agent card AgentMesh publishes for itself.
type Card struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
	URL         string `yaml:"url"`
	Version     string `yaml:"version"`
}

// Router holds delegation and turn-processing configuration.
type Router struct {
	// HistoryTurns is the number of recent conversation turns kept when
	// priming the decision engine.
	HistoryTurns int `yaml:"history_turns"`

	// SessionHistoryCap is the hard server-side cap on recent turns returned
	// by the session store, regardless of what a caller requests.
	SessionHistoryCap int `yaml:"session_history_cap"`

	// MaxLLMCalls bounds decision/tool round-trips for one user turn.
	MaxLLMCalls int `yaml:"max_llm_calls"`

	// TurnTimeout bounds wall-clock processing of one user turn.
	TurnTimeout time.Duration `yaml:"turn_timeout"`

	// SendTimeout bounds a single non-streaming send to a remote agent.
	SendTimeout time.Duration `yaml:"send_timeout"`

	// SystemPrompt is the base instruction prepended to the agent roster.
	SystemPrompt string `yaml:"system_prompt"`
}

// LLM holds decision engine (OpenAI-compatible chat completions) configuration.
type LLM struct {
	URL       string `yaml:"url"`
	APIKey    string `yaml:"api_key"`
	Model     string `yaml:"model"`
	MaxTokens int    `yaml:"max_tokens"`
}

// NATS holds the optional JetStream event broadcaster configuration.
// An empty URL disables broadcasting.
type NATS struct {
	URL string `yaml:"url"`
}

// Cache holds artifact store configuration.
type Cache struct {
	MaxBytes    int64         `yaml:"max_bytes"`
	ArtifactTTL time.Duration `yaml:"artifact_ttl"`
}

// Logging holds structured logging configuration.
type Logging struct {
	Level   string `yaml:"level"`
	Service string `yaml:"service"`
}

// Breaker holds circuit breaker configuration for outbound HTTP calls.
type Breaker struct {
	MaxFailures int           `yaml:"max_failures"`
	Timeout     time.Duration `yaml:"timeout"`
}

// Defaults returns a Config with sensible default values for local development.
func Defaults() Config {
	return Config{
		Server: Server{
			Port:       "10000",
			CORSOrigin: "*",
		},
		Card: Card{
			Name:        "AgentMesh",
			Description: "Routes requests to registered remote agents",
			URL:         "http://localhost:10000",
			Version:     "1.0.0",
		},
		Router: Router{
			HistoryTurns:      3,
			SessionHistoryCap: 10,
			MaxLLMCalls:       10,
			TurnTimeout:       300 * time.Second,
			SendTimeout:       60 * time.Second,
			SystemPrompt: "You route each user request to the remote agent " +
				"best suited to answer it. Always delegate with the send_message " +
				"tool; never answer from your own knowledge.",
		},
		LLM: LLM{
			URL:       "http://localhost:4000",
			Model:     "openai/gpt-4o-mini",
			MaxTokens: 32000,
		},
		NATS: NATS{
			URL: "",
		},
		Cache: Cache{
			MaxBytes:    64 << 20,
			ArtifactTTL: time.Hour,
		},
		Logging: Logging{
			Level:   "info",
			Service: "agentmesh",
		},
		Breaker: Breaker{
			MaxFailures: 5,
			Timeout:     30 * time.Second,
		},
	}
}
