package retry

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"scicontent/pkg/agent/llm"
	"scicontent/pkg/agent/llmerrors"
	"scicontent/pkg/agent/middleware/resilience/circuit"
)

// =============================================================================
// Classifier tests
// =============================================================================

func TestShouldRetry(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{"nil", nil, false},
		{"canceled", context.Canceled, false},
		{"wrapped canceled", fmt.Errorf("op: %w", context.Canceled), false},
		{"deadline", fmt.Errorf("http: %w", context.DeadlineExceeded), true},
		{"circuit open", &circuit.Error{State: circuit.Open}, false},
		{"auth", llmerrors.NewError(llmerrors.ErrorTypeAuth, "bad key"), false},
		{"bad prompt", llmerrors.NewError(llmerrors.ErrorTypeBadPrompt, "too long"), false},
		{"transient", llmerrors.NewError(llmerrors.ErrorTypeTransient, "reset"), true},
		{"connection reset", errors.New("read tcp: connection reset by peer"), true},
		{"plain", errors.New("something odd"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ShouldRetry(tt.err))
		})
	}
}

func TestStatusCodeClassifier(t *testing.T) {
	classify := StatusCodeClassifier([]int{429, 500, 503, 504})

	assert.True(t, classify(llmerrors.FromStatus(429, nil, "")))
	assert.True(t, classify(llmerrors.FromStatus(503, nil, "")))
	assert.False(t, classify(llmerrors.FromStatus(502, nil, "")), "502 is not in the configured list")
	assert.False(t, classify(llmerrors.FromStatus(400, nil, "")))
	assert.True(t, classify(errors.New("unexpected EOF")), "status-less transient errors still retry")
	assert.False(t, classify(context.Canceled))
}

// =============================================================================
// Delay calculation
// =============================================================================

func TestCalculateDelayExponential(t *testing.T) {
	p := NewPolicy(Config{
		MaxAttempts:   5,
		InitialDelay:  time.Second,
		MaxDelay:      60 * time.Second,
		BackoffFactor: 7,
	}, nil)

	assert.Equal(t, time.Duration(0), p.CalculateDelay(1))
	assert.Equal(t, time.Second, p.CalculateDelay(2))
	assert.Equal(t, 7*time.Second, p.CalculateDelay(3))
	assert.Equal(t, 49*time.Second, p.CalculateDelay(4))
	assert.Equal(t, 60*time.Second, p.CalculateDelay(5), "capped at MaxDelay")
	assert.Equal(t, 60*time.Second, p.CalculateDelay(500), "overflow is capped too")
}

func TestCalculateDelayJitterBounds(t *testing.T) {
	p := NewPolicy(Config{
		MaxAttempts:   3,
		InitialDelay:  time.Second,
		MaxDelay:      time.Minute,
		BackoffFactor: 2,
		Jitter:        true,
	}, nil)

	for i := 0; i < 100; i++ {
		d := p.CalculateDelay(2)
		assert.GreaterOrEqual(t, d, 900*time.Millisecond)
		assert.LessOrEqual(t, d, 1100*time.Millisecond)
	}
}

// =============================================================================
// Middleware
// =============================================================================

type scriptedClient struct {
	errs  []error
	calls int
}

func (c *scriptedClient) Complete(_ context.Context, _ llm.CompletionRequest) (llm.CompletionResponse, error) {
	c.calls++
	if c.calls <= len(c.errs) && c.errs[c.calls-1] != nil {
		return llm.CompletionResponse{}, c.errs[c.calls-1]
	}
	return llm.CompletionResponse{Content: "ok"}, nil
}

func (c *scriptedClient) GetModelName() string { return "scripted" }

func fastPolicy(attempts int) *Policy {
	return NewPolicy(Config{
		MaxAttempts:          attempts,
		InitialDelay:         time.Millisecond,
		MaxDelay:             5 * time.Millisecond,
		BackoffFactor:        2,
		RetryableStatusCodes: []int{429, 500, 503, 504},
	}, nil)
}

func TestMiddlewareRecoversAfterTransientFailures(t *testing.T) {
	base := &scriptedClient{errs: []error{
		llmerrors.FromStatus(503, nil, ""),
		llmerrors.FromStatus(429, nil, ""),
	}}
	client := llm.Chain(base, Middleware(fastPolicy(5)))

	resp, err := client.Complete(context.Background(), llm.CompletionRequest{})
	require.NoError(t, err)
	assert.Equal(t, "ok", resp.Content)
	assert.Equal(t, 3, base.calls)
}

func TestMiddlewareExhaustionIsServiceUnavailable(t *testing.T) {
	rateLimited := llmerrors.FromStatus(429, errors.New("quota"), "")
	base := &scriptedClient{errs: []error{rateLimited, rateLimited, rateLimited, rateLimited, rateLimited, rateLimited}}

	policy := fastPolicy(5)
	var retries []int
	policy.OnRetry = func(attempt int, _ time.Duration, err error) {
		retries = append(retries, attempt)
		assert.Error(t, err)
	}
	client := llm.Chain(base, Middleware(policy))

	_, err := client.Complete(context.Background(), llm.CompletionRequest{})
	require.Error(t, err)
	assert.True(t, llmerrors.IsServiceUnavailable(err))
	assert.Equal(t, 429, llmerrors.StatusCodeOf(err))
	assert.Equal(t, 5, base.calls)
	assert.Equal(t, []int{2, 3, 4, 5}, retries)
}

func TestMiddlewareDoesNotRetryPermanentErrors(t *testing.T) {
	authErr := llmerrors.FromStatus(401, nil, "")
	base := &scriptedClient{errs: []error{authErr}}
	client := llm.Chain(base, Middleware(fastPolicy(5)))

	_, err := client.Complete(context.Background(), llm.CompletionRequest{})
	require.Error(t, err)
	assert.Equal(t, 1, base.calls)
	assert.True(t, llmerrors.Is(err, llmerrors.ErrorTypeAuth))
}

func TestMiddlewareHonorsCancellation(t *testing.T) {
	base := &scriptedClient{errs: []error{llmerrors.FromStatus(503, nil, ""), llmerrors.FromStatus(503, nil, "")}}
	policy := NewPolicy(Config{
		MaxAttempts:          3,
		InitialDelay:         time.Hour,
		MaxDelay:             time.Hour,
		BackoffFactor:        1,
		RetryableStatusCodes: []int{503},
	}, nil)
	client := llm.Chain(base, Middleware(policy))

	ctx, cancel := context.WithCancel(context.Background())
	policy.OnRetry = func(int, time.Duration, error) { cancel() }

	_, err := client.Complete(ctx, llm.CompletionRequest{})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, base.calls)
}
