package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"reflect"
	"regexp"
	"strconv"
	"strings"
)

// EnvPrefix prefixes every environment override, e.g. SCICONTENT_MODEL_NAME.
const EnvPrefix = "SCICONTENT_"

var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

// LoadConfig loads and validates configuration from a JSON file with environment variable substitution.
// A missing file is not an error: defaults and environment overrides still apply.
func LoadConfig(configPath string) (*Config, error) {
	if configPath == "" {
		configPath = DefaultConfigPath()
	}

	var config Config
	data, err := os.ReadFile(configPath)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		// Defaults only.
	case err != nil:
		return nil, fmt.Errorf("failed to read config file: %w", err)
	default:
		dataStr := envVarRegex.ReplaceAllStringFunc(string(data), func(match string) string {
			envVar := match[2 : len(match)-1]
			if value := os.Getenv(envVar); value != "" {
				return value
			}
			return match // Return original if env var not found
		})
		if err := json.Unmarshal([]byte(dataStr), &config); err != nil {
			return nil, fmt.Errorf("failed to parse config JSON: %w", err)
		}
	}

	applyEnvOverrides(&config)
	applyDefaults(&config)

	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

// Save writes the configuration as indented JSON.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

func applyEnvOverrides(config *Config) {
	v := reflect.ValueOf(config).Elem()
	applyEnvOverridesRecursive(v, v.Type(), EnvPrefix)
}

func applyEnvOverridesRecursive(v reflect.Value, t reflect.Type, prefix string) {
	for i := 0; i < v.NumField(); i++ {
		field := v.Field(i)
		fieldType := t.Field(i)

		jsonTag := fieldType.Tag.Get("json")
		if jsonTag == "" || jsonTag == "-" {
			continue
		}

		fieldName := strings.Split(jsonTag, ",")[0]
		envKey := strings.ToUpper(prefix + fieldName)

		if field.Kind() == reflect.Struct {
			applyEnvOverridesRecursive(field, field.Type(), envKey+"_")
			continue
		}

		if envValue := os.Getenv(envKey); envValue != "" {
			setFieldFromEnv(field, envValue)
		}
	}
}

func setFieldFromEnv(field reflect.Value, envValue string) {
	if !field.CanSet() {
		return
	}

	switch field.Kind() {
	case reflect.String:
		field.SetString(envValue)
	case reflect.Int:
		if val, err := strconv.Atoi(envValue); err == nil {
			field.SetInt(int64(val))
		}
	case reflect.Float64:
		if val, err := strconv.ParseFloat(envValue, 64); err == nil {
			field.SetFloat(val)
		}
	case reflect.Bool:
		if val, err := strconv.ParseBool(envValue); err == nil {
			field.SetBool(val)
		}
	case reflect.Pointer:
		if field.Type().Elem().Kind() == reflect.Bool {
			if val, err := strconv.ParseBool(envValue); err == nil {
				field.Set(reflect.ValueOf(&val))
			}
		}
	case reflect.Slice:
		if field.Type().Elem().Kind() == reflect.Int {
			var codes []int
			for _, part := range strings.Split(envValue, ",") {
				if n, err := strconv.Atoi(strings.TrimSpace(part)); err == nil {
					codes = append(codes, n)
				}
			}
			field.Set(reflect.ValueOf(codes))
		}
	}
}

// applyDefaults sets default values for missing configuration.
func applyDefaults(config *Config) {
	if config.AppName == "" {
		config.AppName = DefaultAppName
	}

	m := &config.Model
	if m.Provider == "" {
		m.Provider = ProviderGoogle
	}
	m.Provider = strings.ToLower(m.Provider)
	if m.Name == "" {
		m.Name = DefaultModelName
	}
	if m.MaxTokens == 0 {
		m.MaxTokens = DefaultMaxTokens
	}
	if m.Temperature == 0 {
		m.Temperature = DefaultTemperature
	}
	if m.TimeoutSec == 0 {
		m.TimeoutSec = DefaultRequestTimeout
	}
	if m.OllamaHost == "" {
		if host := os.Getenv(EnvOllamaHost); host != "" {
			m.OllamaHost = host
		} else {
			m.OllamaHost = DefaultOllamaHost
		}
	}

	r := &config.Retry
	if r.MaxAttempts == 0 {
		r.MaxAttempts = DefaultMaxAttempts
	}
	if r.InitialDelayMs == 0 {
		r.InitialDelayMs = DefaultInitialDelayMs
	}
	if r.MaxDelayMs == 0 {
		r.MaxDelayMs = DefaultMaxDelayMs
	}
	if r.BackoffFactor == 0 {
		r.BackoffFactor = DefaultBackoffFactor
	}
	if len(r.RetryableStatusCodes) == 0 {
		r.RetryableStatusCodes = append([]int(nil), DefaultRetryableStatusCodes...)
	}

	c := &config.Circuit
	if c.FailureThreshold == 0 {
		c.FailureThreshold = DefaultFailureThreshold
	}
	if c.SuccessThreshold == 0 {
		c.SuccessThreshold = DefaultSuccessThreshold
	}
	if c.TimeoutSec == 0 {
		c.TimeoutSec = DefaultCircuitTimeout
	}

	l := &config.Limits
	if l.MaxConcurrency == 0 {
		l.MaxConcurrency = DefaultMaxConcurrency
	}
	if l.MaxWaitSec == 0 {
		l.MaxWaitSec = DefaultRateLimitWait
	}

	t := &config.Tools
	if t.MaxPapers == 0 {
		t.MaxPapers = DefaultMaxPapers
	}
	if t.HTTPTimeoutSec == 0 {
		t.HTTPTimeoutSec = DefaultHTTPTimeout
	}
	if t.CitationStyle == "" {
		t.CitationStyle = DefaultCitationStyle
	}
	if t.PaperCacheSize == 0 {
		t.PaperCacheSize = DefaultPaperCacheSize
	}
	if t.PaperCacheTTLMin == 0 {
		t.PaperCacheTTLMin = DefaultPaperCacheTTL
	}
	if t.MaxToolIterations == 0 {
		t.MaxToolIterations = DefaultMaxToolIters
	}

	if config.Search.Provider == "" {
		config.Search.Provider = SearchProviderAuto
	}

	s := &config.Storage
	if s.DataDir == "" {
		s.DataDir = DefaultDataDir()
	}
	if s.DBPath == "" {
		s.DBPath = filepath.Join(s.DataDir, DefaultDBFile)
	}
	if s.OutputDir == "" {
		s.OutputDir = DefaultOutputDir
	}
	if s.LogDir == "" {
		s.LogDir = filepath.Join(s.DataDir, DefaultLogDirName)
	}
}

func validateConfig(config *Config) error {
	switch config.Model.Provider {
	case ProviderGoogle, ProviderAnthropic, ProviderOpenAI, ProviderOllama:
	default:
		return fmt.Errorf("model.provider %q is not supported (use %s, %s, %s or %s)",
			config.Model.Provider, ProviderGoogle, ProviderAnthropic, ProviderOpenAI, ProviderOllama)
	}
	if config.Model.MaxTokens < 0 {
		return fmt.Errorf("model.max_tokens must be positive, got %d", config.Model.MaxTokens)
	}
	if config.Model.OllamaNumCtx < 0 {
		return fmt.Errorf("model.ollama_num_ctx must not be negative, got %d", config.Model.OllamaNumCtx)
	}
	if config.Model.Temperature < 0 || config.Model.Temperature > 2 {
		return fmt.Errorf("model.temperature must be within [0, 2], got %v", config.Model.Temperature)
	}
	if config.Retry.MaxAttempts < 1 {
		return fmt.Errorf("retry.max_attempts must be at least 1, got %d", config.Retry.MaxAttempts)
	}
	if config.Retry.BackoffFactor < 1 {
		return fmt.Errorf("retry.backoff_factor must be >= 1, got %v", config.Retry.BackoffFactor)
	}
	if config.Retry.InitialDelayMs < 0 || config.Retry.MaxDelayMs < config.Retry.InitialDelayMs {
		return fmt.Errorf("retry delays invalid: initial=%dms max=%dms", config.Retry.InitialDelayMs, config.Retry.MaxDelayMs)
	}
	for _, code := range config.Retry.RetryableStatusCodes {
		if code < 100 || code > 599 {
			return fmt.Errorf("retry.retryable_status_codes contains invalid HTTP status %d", code)
		}
	}
	if config.Limits.TokensPerMinute < 0 {
		return fmt.Errorf("rate_limit.tokens_per_minute must not be negative, got %d", config.Limits.TokensPerMinute)
	}
	if config.Limits.Enabled() {
		if config.Limits.MaxConcurrency < 1 {
			return fmt.Errorf("rate_limit.max_concurrency must be at least 1, got %d", config.Limits.MaxConcurrency)
		}
		if capacity := int(float64(config.Limits.TokensPerMinute) * RateLimitBufferFactor); capacity < config.Model.MaxTokens {
			return fmt.Errorf("rate_limit.tokens_per_minute %d leaves a bucket of %d, smaller than model.max_tokens %d",
				config.Limits.TokensPerMinute, capacity, config.Model.MaxTokens)
		}
	}
	if config.Tools.MaxPapers < 1 || config.Tools.MaxPapers > maxPapersLimit {
		return fmt.Errorf("tools.max_papers must be within [1, %d], got %d", maxPapersLimit, config.Tools.MaxPapers)
	}
	if config.Tools.MaxToolIterations < 1 {
		return fmt.Errorf("tools.max_tool_iterations must be at least 1, got %d", config.Tools.MaxToolIterations)
	}
	switch strings.ToLower(config.Tools.CitationStyle) {
	case "apa", "mla", "chicago":
	default:
		return fmt.Errorf("tools.citation_style %q is not supported (use apa, mla or chicago)", config.Tools.CitationStyle)
	}
	switch config.Search.Provider {
	case SearchProviderAuto, string(SearchProviderGoogle), string(SearchProviderBrave), string(SearchProviderDuckDuckGo):
	default:
		return fmt.Errorf("search.provider %q is not supported", config.Search.Provider)
	}
	return nil
}

const maxPapersLimit = 50
