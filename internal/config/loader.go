package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultConfigFile is the path checked for YAML configuration.
const DefaultConfigFile = "agentmesh.yaml"

// Load returns a Config using the hierarchy: defaults < YAML < ENV.
// YAML file is optional; missing file is not an error.
func Load() (*Config, error) {
	return LoadFrom(DefaultConfigFile)
}

// LoadFrom returns a Config loaded from the given YAML path using the
// hierarchy: defaults < YAML < ENV. The YAML file is optional.
func LoadFrom(yamlPath string) (*Config, error) {
	cfg := Defaults()

	if err := loadYAML(&cfg, yamlPath); err != nil {
		return nil, fmt.Errorf("config yaml: %w", err)
	}

	loadEnv(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("config validate: %w", err)
	}

	return &cfg, nil
}

// loadYAML reads the YAML file and unmarshals it over cfg.
// Returns nil if the file does not exist.
func loadYAML(cfg *Config, path string) error {
	data, err := os.ReadFile(path) //nolint:gosec // G304: path is validated by caller
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}

	return nil
}

// loadEnv overlays environment variables onto cfg.
// Only non-empty env values override the current config.
func loadEnv(cfg *Config) {
	setString(&cfg.Server.Port, "AGENTMESH_PORT")
	setString(&cfg.Server.CORSOrigin, "AGENTMESH_CORS_ORIGIN")
	setString(&cfg.Card.Name, "AGENTMESH_CARD_NAME")
	setString(&cfg.Card.Description, "AGENTMESH_CARD_DESCRIPTION")
	setString(&cfg.Card.URL, "AGENTMESH_CARD_URL")
	setInt(&cfg.Router.HistoryTurns, "AGENTMESH_HISTORY_TURNS")
	setInt(&cfg.Router.SessionHistoryCap, "AGENTMESH_SESSION_HISTORY_CAP")
	setInt(&cfg.Router.MaxLLMCalls, "AGENTMESH_MAX_LLM_CALLS")
	setDuration(&cfg.Router.TurnTimeout, "AGENTMESH_TURN_TIMEOUT")
	setDuration(&cfg.Router.SendTimeout, "AGENTMESH_SEND_TIMEOUT")
	setString(&cfg.Router.SystemPrompt, "AGENTMESH_SYSTEM_PROMPT")
	setString(&cfg.LLM.URL, "LLM_API_BASE")
	setString(&cfg.LLM.APIKey, "LLM_API_KEY")
	setString(&cfg.LLM.Model, "LLM_MODEL")
	setInt(&cfg.LLM.MaxTokens, "LLM_MAX_TOKENS")
	setString(&cfg.NATS.URL, "NATS_URL")
	setInt64(&cfg.Cache.MaxBytes, "AGENTMESH_CACHE_MAX_BYTES")
	setDuration(&cfg.Cache.ArtifactTTL, "AGENTMESH_ARTIFACT_TTL")
	setString(&cfg.Logging.Level, "AGENTMESH_LOG_LEVEL")
	setString(&cfg.Logging.Service, "AGENTMESH_LOG_SERVICE")
	setInt(&cfg.Breaker.MaxFailures, "AGENTMESH_BREAKER_MAX_FAILURES")
	setDuration(&cfg.Breaker.Timeout, "AGENTMESH_BREAKER_TIMEOUT")
}

// validate rejects configurations that cannot work.
func validate(cfg *Config) error {
	if cfg.Server.Port == "" {
		return errors.New("server port must not be empty")
	}
	if cfg.Router.HistoryTurns < 1 {
		return errors.New("router history_turns must be at least 1")
	}
	if cfg.Router.SessionHistoryCap < 1 {
		return errors.New("router session_history_cap must be at least 1")
	}
	if cfg.Router.MaxLLMCalls < 1 {
		return errors.New("router max_llm_calls must be at least 1")
	}
	if cfg.Router.TurnTimeout <= 0 {
		return errors.New("router turn_timeout must be positive")
	}
	if cfg.Router.SendTimeout <= 0 {
		return errors.New("router send_timeout must be positive")
	}
	if cfg.Cache.MaxBytes <= 0 {
		return errors.New("cache max_bytes must be positive")
	}
	return nil
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setInt64(dst *int64, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			*dst = n
		}
	}
}

func setDuration(dst *time.Duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			*dst = d
		}
	}
}
