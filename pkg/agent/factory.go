package agent

import (
	"context"
	"fmt"
	"time"

	"scicontent/pkg/agent/internal/llmimpl/anthropic"
	"scicontent/pkg/agent/internal/llmimpl/google"
	"scicontent/pkg/agent/internal/llmimpl/ollama"
	"scicontent/pkg/agent/internal/llmimpl/openaiofficial"
	"scicontent/pkg/agent/llm"
	"scicontent/pkg/agent/llmerrors"
	"scicontent/pkg/agent/middleware/metrics"
	"scicontent/pkg/agent/middleware/resilience/circuit"
	"scicontent/pkg/agent/middleware/resilience/ratelimit"
	"scicontent/pkg/agent/middleware/resilience/retry"
	"scicontent/pkg/agent/middleware/resilience/timeout"
	"scicontent/pkg/agent/middleware/validation"
	"scicontent/pkg/config"
	"scicontent/pkg/logx"
)

// NewClient creates the model client selected by cfg.Model.Provider, wrapped in the
// full middleware chain. API keys are looked up through secrets; a missing key is an
// auth error returned before any request is made. When rate limiting is configured
// the token bucket refills until ctx is done.
func NewClient(ctx context.Context, cfg *config.Config, secrets config.SecretSource, recorder metrics.Recorder, logger *logx.Logger) (llm.LLMClient, error) {
	if cfg == nil {
		return nil, fmt.Errorf("model client: nil config")
	}
	if logger == nil {
		logger = logx.NewLogger("llm")
	}

	base, err := newProviderClient(cfg.Model, secrets)
	if err != nil {
		return nil, err
	}

	logger.Info("🤖 Model client: provider=%s model=%s", cfg.Model.Provider, base.GetModelName())

	var opts []WrapOption
	if cfg.Limits.Enabled() {
		limiter := ratelimit.NewTokenBucketLimiter(cfg.Model.Provider,
			ratelimit.FromConfig(cfg.Limits, cfg.Model.RequestTimeout()), logger)
		limiter.Start(ctx)
		logger.Info("🚦 Rate limit: %d tokens/min, %d concurrent requests", cfg.Limits.TokensPerMinute, cfg.Limits.MaxConcurrency)
		opts = append(opts, WithLimiter(limiter))
	}
	return WrapClient(base, cfg, recorder, logger, opts...), nil
}

type wrapOptions struct {
	limiter ratelimit.Limiter
}

// WrapOption customizes WrapClient.
type WrapOption func(*wrapOptions)

// WithLimiter puts limiter between the retry and timeout layers, so every
// attempt pays for its own tokens and waiting does not eat into the request timeout.
func WithLimiter(limiter ratelimit.Limiter) WrapOption {
	return func(o *wrapOptions) { o.limiter = limiter }
}

// WrapClient builds the middleware chain around base:
//
//	Metrics -> EmptyResponse -> CircuitBreaker -> Retry -> [RateLimit] -> Timeout -> base
//
// Metrics sits outermost so one observation covers all retries of a request.
func WrapClient(base llm.LLMClient, cfg *config.Config, recorder metrics.Recorder, logger *logx.Logger, opts ...WrapOption) llm.LLMClient {
	if logger == nil {
		logger = logx.NewLogger("llm")
	}
	var o wrapOptions
	for _, opt := range opts {
		opt(&o)
	}

	breaker := circuit.New(CircuitConfig(cfg.Circuit), circuit.WithStateChange(func(from, to circuit.State) {
		logger.Warn("⚡ Circuit breaker %s → %s", from, to)
	}))

	policy := retry.NewPolicy(RetryConfig(cfg.Retry), nil)
	policy.OnRetry = func(attempt int, delay time.Duration, err error) {
		logger.Warn("🔁 Model call failed (%v), attempt %d/%d in %s", err, attempt, policy.Config.MaxAttempts, delay.Round(time.Millisecond))
	}

	return llm.Chain(base,
		metrics.Middleware(recorder, nil, logger),
		validation.NewEmptyResponseValidator(logger).Middleware(),
		circuit.Middleware(breaker),
		retry.Middleware(policy),
		ratelimit.Middleware(o.limiter, nil),
		timeout.Middleware(cfg.Model.RequestTimeout()),
	)
}

// RetryConfig converts the configured retry policy to the middleware's form.
func RetryConfig(rc config.RetryConfig) retry.Config {
	return retry.Config{
		MaxAttempts:          rc.MaxAttempts,
		InitialDelay:         rc.InitialDelay(),
		MaxDelay:             rc.MaxDelay(),
		BackoffFactor:        rc.BackoffFactor,
		Jitter:               rc.JitterEnabled(),
		RetryableStatusCodes: rc.RetryableStatusCodes,
	}
}

// CircuitConfig converts the configured breaker settings to the middleware's form.
func CircuitConfig(cc config.CircuitConfig) circuit.Config {
	return circuit.Config{
		FailureThreshold: cc.FailureThreshold,
		SuccessThreshold: cc.SuccessThreshold,
		Timeout:          time.Duration(cc.TimeoutSec) * time.Second,
	}
}

func newProviderClient(mc config.ModelConfig, secrets config.SecretSource) (llm.LLMClient, error) {
	switch mc.Provider {
	case config.ProviderGoogle:
		// Vertex AI authenticates with application default credentials.
		key := secretOrEmpty(secrets, config.EnvGoogleAPIKey)
		if key == "" && mc.GoogleBackend != google.BackendVertex {
			return nil, missingKey(mc.Provider, config.EnvGoogleAPIKey)
		}
		return google.NewGeminiClient(google.Options{
			APIKey:   key,
			Model:    mc.Name,
			Backend:  mc.GoogleBackend,
			Project:  mc.GoogleProject,
			Location: mc.GoogleLocation,
		}), nil

	case config.ProviderAnthropic:
		key := secretOrEmpty(secrets, config.EnvAnthropicAPIKey)
		if key == "" {
			return nil, missingKey(mc.Provider, config.EnvAnthropicAPIKey)
		}
		return anthropic.NewClaudeClientWithModel(key, mc.Name), nil

	case config.ProviderOpenAI:
		key := secretOrEmpty(secrets, config.EnvOpenAIAPIKey)
		if key == "" {
			return nil, missingKey(mc.Provider, config.EnvOpenAIAPIKey)
		}
		return openaiofficial.NewOfficialClientWithModel(key, mc.Name, mc.OpenAIBaseURL), nil

	case config.ProviderOllama:
		host := mc.OllamaHost
		if env := secretOrEmpty(secrets, config.EnvOllamaHost); env != "" {
			host = env
		}
		if host == "" {
			host = config.DefaultOllamaHost
		}
		return ollama.NewClient(ollama.Options{Host: host, Model: mc.Name, NumCtx: mc.OllamaNumCtx}), nil

	default:
		return nil, fmt.Errorf("unsupported model provider: %q", mc.Provider)
	}
}

func secretOrEmpty(secrets config.SecretSource, name string) string {
	if secrets == nil {
		return ""
	}
	value, err := secrets.Get(name)
	if err != nil {
		return ""
	}
	return value
}

func missingKey(provider, name string) error {
	return llmerrors.NewErrorWithStatus(llmerrors.ErrorTypeAuth, 0,
		fmt.Sprintf("%s provider requires %s (set it with 'scicontent secrets set %s' or the environment)", provider, name, name))
}
