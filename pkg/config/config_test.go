package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ============================================================================
// LoadConfig
// ============================================================================

func TestLoadConfigMissingFileUsesDefaults(t *testing.T) {
	dir := t.TempDir()
	cfg, err := LoadConfig(filepath.Join(dir, "absent.json"))
	require.NoError(t, err)

	assert.Equal(t, DefaultAppName, cfg.AppName)
	assert.Equal(t, ProviderGoogle, cfg.Model.Provider)
	assert.Equal(t, DefaultModelName, cfg.Model.Name)
	assert.Equal(t, 5, cfg.Retry.MaxAttempts)
	assert.Equal(t, 7.0, cfg.Retry.BackoffFactor)
	assert.Equal(t, time.Second, cfg.Retry.InitialDelay())
	assert.Equal(t, []int{429, 500, 503, 504}, cfg.Retry.RetryableStatusCodes)
	assert.True(t, cfg.Retry.JitterEnabled())
	assert.Equal(t, 10*time.Second, cfg.Tools.HTTPTimeout())
	assert.Equal(t, 5, cfg.Tools.MaxPapers)
	assert.Equal(t, "apa", cfg.Tools.CitationStyle)
	assert.Equal(t, SearchProviderAuto, cfg.Search.Provider)
	assert.Equal(t, filepath.Join(cfg.Storage.DataDir, DefaultDBFile), cfg.Storage.DBPath)
	assert.Equal(t, filepath.Join(cfg.Storage.DataDir, DefaultLogDirName), cfg.Storage.LogDir)
	assert.False(t, cfg.Limits.Enabled(), "rate limiting is opt-in")
	assert.Equal(t, 2*time.Minute, cfg.Limits.MaxWait())
}

func TestLoadConfigEnvSubstitution(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	t.Setenv("TEST_MODEL_NAME", "claude-sonnet-4")
	require.NoError(t, os.WriteFile(path, []byte(`{
		"model": {"provider": "anthropic", "name": "${TEST_MODEL_NAME}"},
		"storage": {"data_dir": "`+dir+`"}
	}`), 0o644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, ProviderAnthropic, cfg.Model.Provider)
	assert.Equal(t, "claude-sonnet-4", cfg.Model.Name)
	assert.Equal(t, filepath.Join(dir, DefaultDBFile), cfg.Storage.DBPath)
}

func TestLoadConfigEnvOverrides(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("SCICONTENT_MODEL_PROVIDER", "ollama")
	t.Setenv("SCICONTENT_RETRY_MAX_ATTEMPTS", "3")
	t.Setenv("SCICONTENT_RETRY_JITTER", "false")
	t.Setenv("SCICONTENT_RETRY_RETRYABLE_STATUS_CODES", "429, 503")
	t.Setenv("SCICONTENT_TOOLS_MAX_PAPERS", "8")
	t.Setenv("SCICONTENT_METRICS_ENABLED", "true")

	cfg, err := LoadConfig(filepath.Join(dir, "config.json"))
	require.NoError(t, err)
	assert.Equal(t, ProviderOllama, cfg.Model.Provider)
	assert.Equal(t, 3, cfg.Retry.MaxAttempts)
	assert.False(t, cfg.Retry.JitterEnabled())
	assert.Equal(t, []int{429, 503}, cfg.Retry.RetryableStatusCodes)
	assert.Equal(t, 8, cfg.Tools.MaxPapers)
	assert.True(t, cfg.Metrics.Enabled)
}

func TestLoadConfigValidation(t *testing.T) {
	tests := []struct {
		name string
		json string
	}{
		{"unknown provider", `{"model": {"provider": "palm"}}`},
		{"bad temperature", `{"model": {"temperature": 3.5}}`},
		{"bad status code", `{"retry": {"retryable_status_codes": [42]}}`},
		{"bad citation style", `{"tools": {"citation_style": "ieee"}}`},
		{"too many papers", `{"tools": {"max_papers": 500}}`},
		{"unknown search provider", `{"search": {"provider": "bing"}}`},
		{"negative ollama context", `{"model": {"provider": "ollama", "ollama_num_ctx": -1}}`},
		{"negative rate limit", `{"rate_limit": {"tokens_per_minute": -1}}`},
		{"bucket below max tokens", `{"rate_limit": {"tokens_per_minute": 5000}}`},
		{"malformed json", `{"model": `},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.json")
			require.NoError(t, os.WriteFile(path, []byte(tt.json), 0o644))
			_, err := LoadConfig(path)
			assert.Error(t, err)
		})
	}
}

func TestConfigSaveRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "config.json")

	cfg := Default()
	cfg.Model.Name = "gpt-4o"
	cfg.Model.Provider = ProviderOpenAI
	require.NoError(t, cfg.Save(path))

	loaded, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "gpt-4o", loaded.Model.Name)
	assert.Equal(t, ProviderOpenAI, loaded.Model.Provider)
}

// ============================================================================
// Search provider detection
// ============================================================================

func TestDetectSearchAPIs(t *testing.T) {
	t.Setenv(EnvGoogleSearchAPIKey, "")
	t.Setenv(EnvGoogleSearchCX, "")
	t.Setenv(EnvBraveSearchAPIKey, "")

	tests := []struct {
		name     string
		provider string
		secrets  map[string]string
		expected SearchProviderType
	}{
		{"auto without keys", SearchProviderAuto, nil, SearchProviderDuckDuckGo},
		{"auto prefers google", SearchProviderAuto, map[string]string{
			EnvGoogleSearchAPIKey: "g", EnvGoogleSearchCX: "cx", EnvBraveSearchAPIKey: "b",
		}, SearchProviderGoogle},
		{"auto falls to brave", SearchProviderAuto, map[string]string{EnvBraveSearchAPIKey: "b"}, SearchProviderBrave},
		{"google needs cx", SearchProviderAuto, map[string]string{EnvGoogleSearchAPIKey: "g"}, SearchProviderDuckDuckGo},
		{"explicit brave without key", "brave", nil, SearchProviderDuckDuckGo},
		{"explicit duckduckgo", "duckduckgo", map[string]string{EnvBraveSearchAPIKey: "b"}, SearchProviderDuckDuckGo},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status := DetectSearchAPIs(SearchConfig{Provider: tt.provider}, NewSecrets(tt.secrets))
			assert.Equal(t, tt.expected, status.Provider)
		})
	}
}
