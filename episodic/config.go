package episodic

// Backend names accepted by Config.Backend.
const (
	BackendBadger = "badger"
	BackendSQLite = "sqlite"
	BackendNone   = "none"
)

// Answerer providers accepted by AnswererConfig.Provider.
const (
	ProviderExtractive = "extractive"
	ProviderClaude     = "claude"
)

// AnswererConfig selects and parameterises the Answerer used by Ask.
type AnswererConfig struct {
	Provider  string `json:"provider,omitempty" yaml:"provider,omitempty" validate:"omitempty,oneof=extractive claude"`
	Model     string `json:"model,omitempty" yaml:"model,omitempty"`
	MaxTokens int    `json:"max_tokens,omitempty" yaml:"max_tokens,omitempty" validate:"omitempty,min=1"`
	APIKeyEnv string `json:"api_key_env,omitempty" yaml:"api_key_env,omitempty"`
	BaseURL   string `json:"base_url,omitempty" yaml:"base_url,omitempty" validate:"omitempty,url"`
}

// Config holds episodic engine initialization parameters.
type Config struct {
	Backend string `json:"backend,omitempty" yaml:"backend,omitempty" validate:"omitempty,oneof=badger sqlite none"`

	// Workers bounds the number of turns extracted in parallel during
	// compression.
	Workers int `json:"workers,omitempty" yaml:"workers,omitempty" validate:"omitempty,min=1,max=16"`

	MaxFacts int `json:"max_facts,omitempty" yaml:"max_facts,omitempty" validate:"omitempty,min=1"`
	AskTopK  int `json:"ask_top_k,omitempty" yaml:"ask_top_k,omitempty" validate:"omitempty,min=1"`

	// CacheEntries sizes the answer cache. A negative value disables it.
	CacheEntries int `json:"cache_entries,omitempty" yaml:"cache_entries,omitempty"`

	Answerer AnswererConfig `json:"answerer" yaml:"answerer"`
}

// DefaultConfig returns the default episodic configuration.
func DefaultConfig() Config {
	return Config{
		Backend:      BackendBadger,
		Workers:      2,
		MaxFacts:     500,
		AskTopK:      3,
		CacheEntries: 256,
		Answerer: AnswererConfig{
			Provider:  ProviderExtractive,
			Model:     "claude-sonnet-4-5",
			MaxTokens: 512,
			APIKeyEnv: "ANTHROPIC_API_KEY",
		},
	}
}

// Merge applies non-zero values from source into c.
func (c *Config) Merge(source *Config) {
	if source.Backend != "" {
		c.Backend = source.Backend
	}
	if source.Workers > 0 {
		c.Workers = source.Workers
	}
	if source.MaxFacts > 0 {
		c.MaxFacts = source.MaxFacts
	}
	if source.AskTopK > 0 {
		c.AskTopK = source.AskTopK
	}
	if source.CacheEntries != 0 {
		c.CacheEntries = source.CacheEntries
	}
	c.Answerer.Merge(&source.Answerer)
}

// Merge applies non-zero values from source into c.
func (c *AnswererConfig) Merge(source *AnswererConfig) {
	if source.Provider != "" {
		c.Provider = source.Provider
	}
	if source.Model != "" {
		c.Model = source.Model
	}
	if source.MaxTokens > 0 {
		c.MaxTokens = source.MaxTokens
	}
	if source.APIKeyEnv != "" {
		c.APIKeyEnv = source.APIKeyEnv
	}
	if source.BaseURL != "" {
		c.BaseURL = source.BaseURL
	}
}
