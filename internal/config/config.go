// Package config loads and validates reviewcore's runtime configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"reviewcore/internal/logging"
)

// Config holds all reviewcore configuration.
type Config struct {
	Name    string `yaml:"name"`
	Version string `yaml:"version"`

	// Default LLM client, used when the Model Router has no more specific
	// assignment for a reviewer.
	LLM LLMConfig `yaml:"llm"`

	// Embedding engine configuration for the Knowledge Pipeline.
	Embedding EmbeddingConfig `yaml:"embedding"`

	// Model routing table (reviewer -> model, diff-size auto-routing).
	Router RouterConfig `yaml:"router"`

	// Knowledge retrieval (RAG) paths and tiering.
	RAG RAGConfig `yaml:"rag"`

	// Consensus scoring thresholds.
	Consensus ConsensusConfig `yaml:"consensus"`

	// Emergency bypass policy and audit log location.
	Bypass BypassConfig `yaml:"bypass"`

	// Logging.
	Logging LoggingConfig `yaml:"logging"`

	// Core resource limits enforced system-wide.
	CoreLimits CoreLimits `yaml:"core_limits" json:"core_limits"`
}

// EmbeddingConfig configures the embedding backend.
type EmbeddingConfig struct {
	Provider       string `yaml:"provider"` // ollama, genai
	OllamaEndpoint string `yaml:"ollama_endpoint"`
	OllamaModel    string `yaml:"ollama_model"`
	GenAIModel     string `yaml:"genai_model"`
	GenAIAPIKey    string `yaml:"genai_api_key"`
	TaskType       string `yaml:"task_type"`
}

// RouterConfig configures the Model Router.
type RouterConfig struct {
	ConfigPath string `yaml:"config_path"` // JSON routing table, falls back to built-in defaults
}

// RAGConfig configures the two-tier Knowledge Retriever.
type RAGConfig struct {
	GlobalDBPath   string  `yaml:"global_db_path"` // SQLite-backed cross-project knowledge store
	ProjectRoot    string  `yaml:"project_root"`    // project tier source root
	MaxGlobalHits  int     `yaml:"max_global_hits"` // per-query cap on global-tier hits
	MaxProjectHits int     `yaml:"max_project_hits"`
	GlobalWeight   float64 `yaml:"global_weight"` // checked to lie in [0,1]; the Knowledge Retriever does not reweight hits by it
}

// ConsensusConfig holds Minority Protection Rule settings. Package consensus
// uses its own fixed reviewer set and threshold and does not read these.
type ConsensusConfig struct {
	MinorityProtectionReviewers []string `yaml:"minority_protection_reviewers"`
	MinorityProtectionThreshold float64  `yaml:"minority_protection_threshold"` // R_max threshold to trigger MPR
}

// BypassConfig configures the Emergency Bypass audit path.
type BypassConfig struct {
	AuditLogPath     string   `yaml:"audit_log_path"`
	RequireReason    bool     `yaml:"require_reason"`
	AllowedApprovers []string `yaml:"allowed_approvers"`
}

// CoreLimits enforces system-wide resource constraints.
type CoreLimits struct {
	MaxConcurrentReviewers int `yaml:"max_concurrent_reviewers" json:"max_concurrent_reviewers"`
	MaxConcurrentAPICalls  int `yaml:"max_concurrent_api_calls" json:"max_concurrent_api_calls"`
	MaxSessionDurationMin  int `yaml:"max_session_duration_min" json:"max_session_duration_min"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Name:    "reviewcore",
		Version: "0.1.0",

		LLM: LLMConfig{
			Provider: "anthropic",
			Model:    "claude-sonnet-4-5-20250929",
			Timeout:  "120s",
		},

		Embedding: EmbeddingConfig{
			Provider:       "ollama",
			OllamaEndpoint: "http://localhost:11434",
			OllamaModel:    "embeddinggemma",
			GenAIModel:     "gemini-embedding-001",
			TaskType:       "SEMANTIC_SIMILARITY",
		},

		Router: RouterConfig{
			ConfigPath: "config/model_routing.json",
		},

		RAG: RAGConfig{
			GlobalDBPath:   "data/knowledge.db",
			ProjectRoot:    ".",
			MaxGlobalHits:  5,
			MaxProjectHits: 8,
			GlobalWeight:   0.7,
		},

		Consensus: ConsensusConfig{
			MinorityProtectionReviewers: []string{"security", "reliability"},
			MinorityProtectionThreshold: 8.5,
		},

		Bypass: BypassConfig{
			AuditLogPath:  "data/bypass_audit.json",
			RequireReason: true,
		},

		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
			File:   "reviewcore.log",
		},

		CoreLimits: CoreLimits{
			MaxConcurrentReviewers: 5,
			MaxConcurrentAPICalls:  4,
			MaxSessionDurationMin:  120,
		},
	}
}

// Load reads configuration from a YAML file, falling back to defaults if the
// file does not exist.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()
	logging.BootDebug("Loading config from: %s", path)

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			logging.Boot("Config file not found, using defaults: %s", path)
			cfg.applyEnvOverrides()
			return cfg, nil
		}
		logging.BootError("Failed to read config file %s: %v", path, err)
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		logging.BootError("Failed to parse config file %s: %v", path, err)
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.applyEnvOverrides()
	logging.Boot("Config loaded: provider=%s model=%s", cfg.LLM.Provider, cfg.LLM.Model)
	return cfg, nil
}

// Save writes configuration to a YAML file.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create config directory: %w", err)
		}
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// applyEnvOverrides applies environment variable overrides, checked in
// priority order.
func (c *Config) applyEnvOverrides() {
	if key := os.Getenv("ANTHROPIC_API_KEY"); key != "" {
		c.LLM.APIKey = key
		c.LLM.Provider = "anthropic"
	}
	if key := os.Getenv("OPENAI_API_KEY"); key != "" {
		c.LLM.APIKey = key
		c.LLM.Provider = "openai"
	}
	if key := os.Getenv("GEMINI_API_KEY"); key != "" {
		c.LLM.APIKey = key
		c.LLM.Provider = "gemini"
	}

	if key := os.Getenv("GENAI_API_KEY"); key != "" {
		c.Embedding.GenAIAPIKey = key
		if c.Embedding.Provider == "" || c.Embedding.Provider == "ollama" {
			c.Embedding.Provider = "genai"
		}
	}
	if endpoint := os.Getenv("OLLAMA_ENDPOINT"); endpoint != "" {
		c.Embedding.OllamaEndpoint = endpoint
	}
	if model := os.Getenv("OLLAMA_EMBEDDING_MODEL"); model != "" {
		c.Embedding.OllamaModel = model
	}

	if path := os.Getenv("REVIEWCORE_KNOWLEDGE_DB"); path != "" {
		c.RAG.GlobalDBPath = path
	}
	if path := os.Getenv("REVIEWCORE_BYPASS_LOG"); path != "" {
		c.Bypass.AuditLogPath = path
	}
}

// GetLLMTimeout returns the LLM timeout as a duration.
func (c *Config) GetLLMTimeout() time.Duration {
	d, err := time.ParseDuration(c.LLM.Timeout)
	if err != nil {
		return 120 * time.Second
	}
	return d
}

// Validate checks that the loaded configuration is internally consistent.
func (c *Config) Validate() error {
	if c.CoreLimits.MaxConcurrentReviewers < 1 {
		return fmt.Errorf("core_limits.max_concurrent_reviewers must be >= 1")
	}
	if c.CoreLimits.MaxConcurrentAPICalls < 1 {
		return fmt.Errorf("core_limits.max_concurrent_api_calls must be >= 1")
	}
	if c.Consensus.MinorityProtectionThreshold <= 0 {
		return fmt.Errorf("consensus.minority_protection_threshold must be > 0")
	}
	if c.RAG.GlobalWeight < 0 || c.RAG.GlobalWeight > 1 {
		return fmt.Errorf("rag.global_weight must be in [0, 1]")
	}
	return nil
}
