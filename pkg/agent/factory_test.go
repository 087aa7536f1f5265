package agent

import (
	"bytes"
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"scicontent/internal/mocks"
	"scicontent/pkg/agent/llm"
	"scicontent/pkg/agent/llmerrors"
	"scicontent/pkg/agent/middleware/metrics"
	"scicontent/pkg/agent/middleware/resilience/ratelimit"
	"scicontent/pkg/config"
	"scicontent/pkg/logx"
)

func fastConfig() *config.Config {
	cfg := config.Default()
	cfg.Retry.InitialDelayMs = 1
	cfg.Retry.MaxDelayMs = 2
	return cfg
}

func quietLogger() *logx.Logger {
	return logx.NewLoggerWithWriter("test", &bytes.Buffer{})
}

func TestNewClientMissingKeyIsAuthError(t *testing.T) {
	t.Setenv(config.EnvGoogleAPIKey, "")
	t.Setenv(config.EnvAnthropicAPIKey, "")
	t.Setenv(config.EnvOpenAIAPIKey, "")

	for _, provider := range []string{config.ProviderGoogle, config.ProviderAnthropic, config.ProviderOpenAI} {
		t.Run(provider, func(t *testing.T) {
			cfg := config.Default()
			cfg.Model.Provider = provider

			client, err := NewClient(context.Background(), cfg, config.NewSecrets(nil), nil, quietLogger())
			require.Error(t, err)
			assert.Nil(t, client)
			assert.Equal(t, llmerrors.ErrorTypeAuth, llmerrors.TypeOf(err))
		})
	}
}

func TestNewClientSelectsProvider(t *testing.T) {
	tests := []struct {
		provider string
		model    string
		secret   string
	}{
		{config.ProviderGoogle, "gemini-2.0-flash-exp", config.EnvGoogleAPIKey},
		{config.ProviderAnthropic, "claude-sonnet-4-0", config.EnvAnthropicAPIKey},
		{config.ProviderOpenAI, "gpt-4o-mini", config.EnvOpenAIAPIKey},
		{config.ProviderOllama, "llama3.1", ""},
	}
	for _, tt := range tests {
		t.Run(tt.provider, func(t *testing.T) {
			cfg := config.Default()
			cfg.Model.Provider = tt.provider
			cfg.Model.Name = tt.model

			secrets := config.NewSecrets(map[string]string{tt.secret: "test-key"})
			client, err := NewClient(context.Background(), cfg, secrets, nil, quietLogger())
			require.NoError(t, err)
			assert.Equal(t, tt.model, client.GetModelName())
		})
	}

	cfg := config.Default()
	cfg.Model.Provider = "carrier-pigeon"
	_, err := NewClient(context.Background(), cfg, nil, nil, quietLogger())
	assert.ErrorContains(t, err, "unsupported model provider")
}

func TestWrapClientRetriesUntilServiceUnavailable(t *testing.T) {
	mock := mocks.NewMockLLMClient()
	mock.FailCompleteWith(llmerrors.NewErrorWithStatus(llmerrors.ErrorTypeRateLimit, 429, "slow down"))

	cfg := fastConfig()
	client := WrapClient(mock, cfg, nil, quietLogger())

	_, err := client.Complete(llm.WithStage(context.Background(), "ResearchAgent"), llm.NewCompletionRequest(nil))
	require.Error(t, err)
	assert.True(t, llmerrors.IsServiceUnavailable(err))
	assert.Equal(t, cfg.Retry.MaxAttempts, mock.GetCompleteCallCount())
}

func TestWrapClientDoesNotRetryAuth(t *testing.T) {
	mock := mocks.NewMockLLMClient()
	mock.FailCompleteWith(llmerrors.NewErrorWithStatus(llmerrors.ErrorTypeAuth, 401, "bad key"))

	_, err := WrapClient(mock, fastConfig(), nil, quietLogger()).Complete(context.Background(), llm.NewCompletionRequest(nil))
	require.Error(t, err)
	assert.Equal(t, llmerrors.ErrorTypeAuth, llmerrors.TypeOf(err))
	assert.Equal(t, 1, mock.GetCompleteCallCount())
}

func TestWrapClientRecordsMetricsPerStage(t *testing.T) {
	reg := prometheus.NewRegistry()
	recorder := metrics.NewPrometheusRecorder(reg)

	mock := mocks.NewMockLLMClient()
	mock.RespondWith("done")

	client := WrapClient(mock, fastConfig(), recorder, quietLogger())
	for i := 0; i < 2; i++ {
		_, err := client.Complete(llm.WithStage(context.Background(), "ReviewAgent"), llm.NewCompletionRequest([]llm.CompletionMessage{llm.NewUserMessage("hi")}))
		require.NoError(t, err)
	}

	count, err := testutil.GatherAndCount(reg, metrics.MetricRequestsTotal)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
	assert.Equal(t, []string{"ReviewAgent", "ReviewAgent"}, mock.Stages())
}

func TestWrapClientChargesLimiterPerAttempt(t *testing.T) {
	mock := mocks.NewMockLLMClient()
	mock.FailCompleteWith(llmerrors.NewErrorWithStatus(llmerrors.ErrorTypeTransient, 503, "overloaded"))

	cfg := fastConfig()
	cfg.Retry.MaxAttempts = 3
	limiter := ratelimit.NewTokenBucketLimiter("test", ratelimit.Config{TokensPerMinute: 100000, MaxConcurrency: 1}, quietLogger())
	client := WrapClient(mock, cfg, nil, quietLogger(), WithLimiter(limiter))

	req := llm.NewCompletionRequest([]llm.CompletionMessage{llm.NewUserMessage("hi")})
	req.MaxTokens = 1000
	_, err := client.Complete(context.Background(), req)
	require.Error(t, err)

	stats := limiter.GetStats()
	assert.Equal(t, 3, mock.GetCompleteCallCount())
	assert.LessOrEqual(t, stats.AvailableTokens, stats.MaxCapacity-3*1000, "each retry acquires its own budget")
	assert.Zero(t, stats.ActiveRequests, "slots are released after every attempt")
}

func TestNewClientWithRateLimit(t *testing.T) {
	cfg := config.Default()
	cfg.Model.Provider = config.ProviderOllama
	cfg.Limits.TokensPerMinute = 60000

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	client, err := NewClient(ctx, cfg, nil, nil, quietLogger())
	require.NoError(t, err)
	assert.NotNil(t, client)
}

func TestConfigConversions(t *testing.T) {
	cfg := config.Default()
	rc := RetryConfig(cfg.Retry)
	assert.Equal(t, 5, rc.MaxAttempts)
	assert.Equal(t, 7.0, rc.BackoffFactor)
	assert.True(t, rc.Jitter)
	assert.Equal(t, []int{429, 500, 503, 504}, rc.RetryableStatusCodes)

	cc := CircuitConfig(cfg.Circuit)
	assert.Equal(t, 5, cc.FailureThreshold)
	assert.Equal(t, 30.0, cc.Timeout.Seconds())
}
