// Package config loads the scicontent configuration: model provider, retry policy,
// tool limits, storage paths and metrics settings.
package config

import (
	"os"
	"path/filepath"
	"time"
)

// Model provider names.
const (
	ProviderGoogle    = "google"
	ProviderAnthropic = "anthropic"
	ProviderOpenAI    = "openai"
	ProviderOllama    = "ollama"
)

// API key secret names, looked up through Secrets.
const (
	EnvGoogleAPIKey    = "GOOGLE_API_KEY"
	EnvAnthropicAPIKey = "ANTHROPIC_API_KEY"
	EnvOpenAIAPIKey    = "OPENAI_API_KEY"
	EnvOllamaHost      = "OLLAMA_HOST"
)

// Defaults.
const (
	DefaultAppName          = "scientific-content-agent"
	DefaultModelName        = "gemini-2.0-flash-exp"
	DefaultMaxTokens        = 8192
	DefaultTemperature      = 0.7
	DefaultRequestTimeout   = 180
	DefaultOllamaHost       = "http://localhost:11434"
	DefaultMaxAttempts      = 5
	DefaultInitialDelayMs   = 1000
	DefaultMaxDelayMs       = 60000
	DefaultBackoffFactor    = 7.0
	DefaultFailureThreshold = 5
	DefaultSuccessThreshold = 1
	DefaultCircuitTimeout   = 30
	DefaultMaxConcurrency   = 2
	DefaultRateLimitWait    = 120
	DefaultMaxPapers        = 5
	DefaultHTTPTimeout      = 10
	DefaultCitationStyle    = "apa"
	DefaultPaperCacheSize   = 128
	DefaultPaperCacheTTL    = 30
	DefaultMaxToolIters     = 10
	DefaultOutputDir        = "output"
	DefaultDataDirName      = ".scicontent"
	DefaultDBFile           = "sessions.db"
	DefaultLogDirName       = "logs"
	DefaultConfigFile       = "config.json"
	DefaultProfileFile      = "profile.yaml"
)

// RateLimitBufferFactor scales the bucket capacity below the configured
// tokens per minute, since prompt sizes are estimates.
const RateLimitBufferFactor = 0.9

// DefaultRetryableStatusCodes are the transient HTTP statuses the model layer retries.
//
//nolint:gochecknoglobals // read-only default
var DefaultRetryableStatusCodes = []int{429, 500, 503, 504}

// Config is the root configuration.
type Config struct {
	AppName string          `json:"app_name"`
	Model   ModelConfig     `json:"model"`
	Retry   RetryConfig     `json:"retry"`
	Circuit CircuitConfig   `json:"circuit"`
	Limits  RateLimitConfig `json:"rate_limit"`
	Tools   ToolsConfig     `json:"tools"`
	Search  SearchConfig    `json:"search"`
	Storage StorageConfig   `json:"storage"`
	Metrics MetricsConfig   `json:"metrics"`
}

// ModelConfig selects the LLM provider and generation parameters.
type ModelConfig struct {
	Provider       string  `json:"provider"`
	Name           string  `json:"name"`
	MaxTokens      int     `json:"max_tokens"`
	Temperature    float64 `json:"temperature"`
	TimeoutSec     int     `json:"timeout_sec"`
	OllamaHost     string  `json:"ollama_host"`
	OllamaNumCtx   int     `json:"ollama_num_ctx"` // 0 keeps the model's context window
	OpenAIBaseURL  string  `json:"openai_base_url"`
	GoogleBackend  string  `json:"google_backend"`
	GoogleProject  string  `json:"google_project"`
	GoogleLocation string  `json:"google_location"`
}

// RetryConfig mirrors the model-call retry policy.
type RetryConfig struct {
	MaxAttempts          int     `json:"max_attempts"`
	InitialDelayMs       int     `json:"initial_delay_ms"`
	MaxDelayMs           int     `json:"max_delay_ms"`
	BackoffFactor        float64 `json:"backoff_factor"`
	Jitter               *bool   `json:"jitter,omitempty"`
	RetryableStatusCodes []int   `json:"retryable_status_codes"`
}

// CircuitConfig configures the circuit breaker in front of the provider.
type CircuitConfig struct {
	FailureThreshold int `json:"failure_threshold"`
	SuccessThreshold int `json:"success_threshold"`
	TimeoutSec       int `json:"timeout_sec"`
}

// RateLimitConfig bounds model traffic from this process.
// A zero TokensPerMinute disables limiting.
type RateLimitConfig struct {
	TokensPerMinute int `json:"tokens_per_minute"`
	MaxConcurrency  int `json:"max_concurrency"`
	MaxWaitSec      int `json:"max_wait_sec"`
}

// Enabled reports whether model calls pass through the token bucket.
func (r RateLimitConfig) Enabled() bool {
	return r.TokensPerMinute > 0
}

// MaxWait returns how long a call may wait for budget before failing.
func (r RateLimitConfig) MaxWait() time.Duration {
	return time.Duration(r.MaxWaitSec) * time.Second
}

// ToolsConfig holds limits for the tool functions.
type ToolsConfig struct {
	MaxPapers         int    `json:"max_papers"`
	HTTPTimeoutSec    int    `json:"http_timeout_sec"`
	CitationStyle     string `json:"citation_style"`
	PaperCacheSize    int    `json:"paper_cache_size"`
	PaperCacheTTLMin  int    `json:"paper_cache_ttl_min"`
	MaxToolIterations int    `json:"max_tool_iterations"`
	ArxivBaseURL      string `json:"arxiv_base_url"`
}

// SearchConfig selects the web search provider ("auto" detects from available keys).
type SearchConfig struct {
	Provider string `json:"provider"`
}

// StorageConfig holds on-disk locations.
type StorageConfig struct {
	DataDir   string `json:"data_dir"`
	DBPath    string `json:"db_path"`
	OutputDir string `json:"output_dir"`
	LogDir    string `json:"log_dir"`
}

// MetricsConfig controls the Prometheus registry exposure.
type MetricsConfig struct {
	Enabled      bool   `json:"enabled"`
	ListenAddr   string `json:"listen_addr"`
	SnapshotPath string `json:"snapshot_path"`
}

// JitterEnabled reports whether retry jitter is on (default true).
func (r RetryConfig) JitterEnabled() bool {
	return r.Jitter == nil || *r.Jitter
}

// InitialDelay returns the first retry delay.
func (r RetryConfig) InitialDelay() time.Duration {
	return time.Duration(r.InitialDelayMs) * time.Millisecond
}

// MaxDelay returns the retry delay cap.
func (r RetryConfig) MaxDelay() time.Duration {
	return time.Duration(r.MaxDelayMs) * time.Millisecond
}

// RequestTimeout returns the per-request model timeout.
func (m ModelConfig) RequestTimeout() time.Duration {
	return time.Duration(m.TimeoutSec) * time.Second
}

// HTTPTimeout returns the per-call timeout for tool HTTP requests.
func (t ToolsConfig) HTTPTimeout() time.Duration {
	return time.Duration(t.HTTPTimeoutSec) * time.Second
}

// PaperCacheTTL returns how long paper search results stay cached.
func (t ToolsConfig) PaperCacheTTL() time.Duration {
	return time.Duration(t.PaperCacheTTLMin) * time.Minute
}

// DefaultDataDir returns ~/.scicontent, or .scicontent when the home directory is unknown.
func DefaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return DefaultDataDirName
	}
	return filepath.Join(home, DefaultDataDirName)
}

// DefaultConfigPath returns the config file location inside the default data dir.
func DefaultConfigPath() string {
	return filepath.Join(DefaultDataDir(), DefaultConfigFile)
}

// ProfilePath returns the user profile location inside the data dir.
func (c *Config) ProfilePath() string {
	return filepath.Join(c.Storage.DataDir, DefaultProfileFile)
}

// Default returns a fully defaulted configuration.
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}
