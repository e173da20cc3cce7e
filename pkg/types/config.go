// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "time"

// HTTPConfig holds shared HTTP settings used by components that make network requests.
type HTTPConfig struct {
	// Timeout is the HTTP request timeout.
	Timeout time.Duration `json:"timeout" yaml:"timeout"`

	// UserAgent is the User-Agent header sent with HTTP requests
	// (e.g. "bioanalyzer/0.1").
	UserAgent string `json:"user_agent" yaml:"user_agent"`
}

// NCBIConfig holds settings for the E-utilities retriever.
type NCBIConfig struct {
	HTTPConfig `yaml:",inline"`

	// APIKey raises the NCBI rate limit when set.
	APIKey string `json:"api_key,omitempty" yaml:"api_key,omitempty"`

	// Email and Tool identify the client to NCBI as their usage policy asks.
	Email string `json:"email" yaml:"email"`
	Tool  string `json:"tool" yaml:"tool"`

	// RateLimitDelay is the minimum spacing between requests, shared by all callers (default 340ms).
	RateLimitDelay time.Duration `json:"rate_limit_delay" yaml:"rate_limit_delay"`

	// MaxRetries is the number of retries per request (default 3). Zero
	// disables retries.
	MaxRetries int `json:"max_retries" yaml:"max_retries"`

	// MetadataTimeout bounds a metadata fetch inside FetchCombined (default 6s).
	MetadataTimeout time.Duration `json:"metadata_timeout" yaml:"metadata_timeout"`

	// FullTextTimeout bounds a full-text fetch inside FetchCombined (default 8s).
	FullTextTimeout time.Duration `json:"fulltext_timeout" yaml:"fulltext_timeout"`

	// UseFullText enables PMC full-text retrieval.
	UseFullText bool `json:"use_fulltext" yaml:"use_fulltext"`
}

// LLMProvider selects the language-model backend.
type LLMProvider string

const (
	ProviderGemini LLMProvider = "gemini"
	ProviderClaude LLMProvider = "claude"
	ProviderOpenAI LLMProvider = "openai"
	ProviderNone   LLMProvider = "none"
)

// AIConfig holds settings for the language-model extractor.
type AIConfig struct {
	// Provider is gemini, claude, openai, or none (heuristic only).
	Provider LLMProvider `json:"provider" yaml:"provider"`

	// Model is the AI model identifier (e.g. "gemini-2.5-flash").
	Model string `json:"model" yaml:"model"`

	// APIKey is the authentication key for the AI API.
	APIKey string `json:"api_key,omitempty" yaml:"api_key,omitempty"`

	// MaxRetries is the number of retry attempts for failed API calls (default 1).
	MaxRetries int `json:"max_retries" yaml:"max_retries"`

	// Timeout bounds a single model call (default 30s).
	Timeout time.Duration `json:"timeout" yaml:"timeout"`

	Temperature float64 `json:"temperature" yaml:"temperature"`
	MaxTokens   int     `json:"max_tokens" yaml:"max_tokens"`
	TopP        float64 `json:"top_p" yaml:"top_p"`
	TopK        int     `json:"top_k" yaml:"top_k"`
}

// CacheConfig holds settings for the SQLite result cache.
type CacheConfig struct {
	// Path is the database file (default "cache/analysis_cache.db").
	Path string `json:"path" yaml:"path"`

	// Validity is how long a cached record is served without refetching (default 24h).
	Validity time.Duration `json:"validity" yaml:"validity"`

	// SweepAge is the age beyond which records are deleted by a sweep (default 168h).
	SweepAge time.Duration `json:"sweep_age" yaml:"sweep_age"`

	// SweepSchedule is a cron expression for periodic sweeps in serve mode.
	SweepSchedule string `json:"sweep_schedule" yaml:"sweep_schedule"`

	// MaxConnections caps the connection pool (default 5).
	MaxConnections int `json:"max_connections" yaml:"max_connections"`
}

// AnalysisMode selects the extraction protocol.
type AnalysisMode string

const (
	ModeSimple   AnalysisMode = "simple"
	ModeCombined AnalysisMode = "combined"
)

// AnalysisConfig holds settings for the orchestrator.
type AnalysisConfig struct {
	Mode AnalysisMode `json:"mode" yaml:"mode"`

	// Timeout bounds one paper's analysis (default 45s).
	Timeout time.Duration `json:"timeout" yaml:"timeout"`

	// MaxConcurrent bounds batch fan-out (default 3).
	MaxConcurrent int `json:"max_concurrent" yaml:"max_concurrent"`

	// Validate attaches the validator's second opinion to each result.
	Validate bool `json:"validate" yaml:"validate"`
}

// ServerConfig holds settings for the HTTP API.
type ServerConfig struct {
	Addr string `json:"addr" yaml:"addr"`

	// RequestTimeout bounds every route except batch analysis, which is
	// bounded per paper by AnalysisConfig.Timeout.
	RequestTimeout time.Duration `json:"request_timeout" yaml:"request_timeout"`

	ShutdownTimeout time.Duration `json:"shutdown_timeout" yaml:"shutdown_timeout"`
}

// LogConfig selects the log level and encoding.
type LogConfig struct {
	Level  string `json:"level" yaml:"level"`
	Format string `json:"format" yaml:"format"`
}

// Config groups all component configurations.
type Config struct {
	NCBI     NCBIConfig     `json:"ncbi" yaml:"ncbi"`
	AI       AIConfig       `json:"ai" yaml:"ai"`
	Cache    CacheConfig    `json:"cache" yaml:"cache"`
	Analysis AnalysisConfig `json:"analysis" yaml:"analysis"`
	Server   ServerConfig   `json:"server" yaml:"server"`
	Log      LogConfig      `json:"log" yaml:"log"`
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() Config {
	return Config{
		NCBI: NCBIConfig{
			HTTPConfig: HTTPConfig{
				Timeout:   30 * time.Second,
				UserAgent: "bioanalyzer/0.1",
			},
			Email:           "bioanalyzer@example.com",
			Tool:            "BioAnalyzer",
			RateLimitDelay:  340 * time.Millisecond,
			MaxRetries:      3,
			MetadataTimeout: 6 * time.Second,
			FullTextTimeout: 8 * time.Second,
		},
		AI: AIConfig{
			Provider:    ProviderGemini,
			Model:       "gemini-2.5-flash",
			MaxRetries:  1,
			Timeout:     30 * time.Second,
			Temperature: 0.1,
			MaxTokens:   500,
			TopP:        0.7,
			TopK:        10,
		},
		Cache: CacheConfig{
			Path:           "cache/analysis_cache.db",
			Validity:       24 * time.Hour,
			SweepAge:       168 * time.Hour,
			SweepSchedule:  "@every 6h",
			MaxConnections: 5,
		},
		Analysis: AnalysisConfig{
			Mode:          ModeSimple,
			Timeout:       45 * time.Second,
			MaxConcurrent: 3,
		},
		Server: ServerConfig{
			Addr:            ":8000",
			RequestTimeout:  60 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// Redacted returns a copy of c with secrets masked, for display.
func (c Config) Redacted() Config {
	if c.NCBI.APIKey != "" {
		c.NCBI.APIKey = "***"
	}
	if c.AI.APIKey != "" {
		c.AI.APIKey = "***"
	}
	return c
}
