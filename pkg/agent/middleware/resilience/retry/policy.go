// Package retry provides retry logic with exponential backoff for resilient LLM calls.
package retry

import (
	"context"
	"errors"
	"math"
	"math/rand/v2"
	"slices"
	"strings"
	"time"

	"scicontent/pkg/agent/llmerrors"
	"scicontent/pkg/agent/middleware/resilience/circuit"
)

// Config defines configuration for retry behavior.
type Config struct {
	MaxAttempts          int           `json:"max_attempts"`           // Maximum number of attempts (including initial)
	InitialDelay         time.Duration `json:"initial_delay"`          // Delay before the first retry
	MaxDelay             time.Duration `json:"max_delay"`              // Maximum delay between retries
	BackoffFactor        float64       `json:"backoff_factor"`         // Multiplier for exponential backoff
	Jitter               bool          `json:"jitter"`                 // Spread delays by ±10%
	RetryableStatusCodes []int         `json:"retryable_status_codes"` // HTTP statuses worth another attempt
}

// DefaultConfig matches the Gemini HTTP retry options: 5 attempts, 1s initial delay,
// exponential base 7, retrying 429/500/503/504.
//
//nolint:gochecknoglobals // Sensible default config pattern
var DefaultConfig = Config{
	MaxAttempts:          5,
	InitialDelay:         time.Second,
	MaxDelay:             60 * time.Second,
	BackoffFactor:        7.0,
	Jitter:               true,
	RetryableStatusCodes: []int{429, 500, 503, 504},
}

// Classifier determines if an error should be retried.
type Classifier func(error) bool

// ShouldRetry is the default error classifier for errors without a status code.
func ShouldRetry(err error) bool {
	if err == nil {
		return false
	}

	// Never retry cancellation by the caller.
	if errors.Is(err, context.Canceled) {
		return false
	}

	// Never retry circuit breaker errors - let the circuit breaker handle recovery
	var circuitErr *circuit.Error
	if errors.As(err, &circuitErr) {
		return false
	}

	var llmErr *llmerrors.Error
	if errors.As(err, &llmErr) {
		return llmErr.IsRetryable()
	}

	// Per-request timeouts wrap DeadlineExceeded while the parent context is still valid.
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	errStr := strings.ToLower(err.Error())
	return strings.Contains(errStr, "timeout") ||
		strings.Contains(errStr, "connection reset") ||
		strings.Contains(errStr, "connection refused") ||
		strings.Contains(errStr, "eof") ||
		strings.Contains(errStr, "temporary")
}

// StatusCodeClassifier retries errors carrying one of codes. Errors without a status
// code fall back to ShouldRetry.
func StatusCodeClassifier(codes []int) Classifier {
	allowed := slices.Clone(codes)
	return func(err error) bool {
		if err == nil || errors.Is(err, context.Canceled) {
			return false
		}
		if code := llmerrors.StatusCodeOf(err); code != 0 {
			return slices.Contains(allowed, code)
		}
		return ShouldRetry(err)
	}
}

// Policy encapsulates retry configuration and logic.
//
//nolint:govet // Simple struct, logical grouping preferred
type Policy struct {
	Config     Config
	Classifier Classifier

	// OnRetry, when set, is called before each backoff sleep.
	OnRetry func(attempt int, delay time.Duration, err error)
}

// NewPolicy creates a new retry policy. A nil classifier retries the configured status codes.
func NewPolicy(config Config, classifier Classifier) *Policy {
	if config.MaxAttempts < 1 {
		config.MaxAttempts = 1
	}
	if classifier == nil {
		classifier = StatusCodeClassifier(config.RetryableStatusCodes)
	}
	return &Policy{
		Config:     config,
		Classifier: classifier,
	}
}

// CalculateDelay computes the delay before the given attempt number (attempt 1 has none).
func (p *Policy) CalculateDelay(attempt int) time.Duration {
	if attempt <= 1 {
		return 0
	}

	raw := float64(p.Config.InitialDelay) * math.Pow(p.Config.BackoffFactor, float64(attempt-2))

	// Cap in float space so huge attempts never overflow the Duration conversion.
	var delay time.Duration
	switch {
	case p.Config.MaxDelay > 0 && raw > float64(p.Config.MaxDelay):
		delay = p.Config.MaxDelay
	case raw > float64(math.MaxInt64):
		delay = time.Duration(math.MaxInt64)
	default:
		delay = time.Duration(raw)
	}

	if p.Config.Jitter && delay > 0 {
		jitter := time.Duration(float64(delay) * 0.1 * (2*rand.Float64() - 1))
		delay += jitter
	}

	return delay
}

// ShouldRetry determines if an error should be retried based on the configured classifier.
func (p *Policy) ShouldRetry(err error) bool {
	return p.Classifier(err)
}
