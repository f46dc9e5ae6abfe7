package config

// LLMConfig configures the default LLM client used by reviewers that don't
// have a more specific model assignment from the router.
type LLMConfig struct {
	Provider string `yaml:"provider"` // anthropic, openai, gemini
	APIKey   string `yaml:"api_key"`
	Model    string `yaml:"model"`
	BaseURL  string `yaml:"base_url"`
	Timeout  string `yaml:"timeout"`
}

// GeminiProviderConfig holds Gemini-specific generation configuration, used
// when a reviewer or the embedding provider is routed to a Gemini model.
type GeminiProviderConfig struct {
	// EnableThinking enables thinking/reasoning mode.
	EnableThinking bool `json:"enable_thinking,omitempty"`

	// ThinkingLevel: "minimal", "low", "medium", "high" (must be lowercase).
	ThinkingLevel string `json:"thinking_level,omitempty"`
}

// DefaultGeminiProviderConfig returns sensible defaults favoring deeper
// reasoning for the security and reliability reviewer lenses.
func DefaultGeminiProviderConfig() *GeminiProviderConfig {
	return &GeminiProviderConfig{
		EnableThinking: true,
		ThinkingLevel:  "high",
	}
}
