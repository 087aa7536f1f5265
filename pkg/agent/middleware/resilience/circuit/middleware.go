package circuit

import (
	"context"
	"errors"

	"scicontent/pkg/agent/llm"
	"scicontent/pkg/agent/llmerrors"
)

// Middleware returns a middleware function that wraps an LLM client with circuit breaker logic.
// If the circuit is OPEN, requests are rejected immediately without calling the underlying client.
func Middleware(breaker Breaker) llm.Middleware {
	return func(next llm.LLMClient) llm.LLMClient {
		return llm.WrapClient(
			func(ctx context.Context, req llm.CompletionRequest) (llm.CompletionResponse, error) {
				if !breaker.Allow() {
					return llm.CompletionResponse{}, &Error{State: breaker.GetState()}
				}

				resp, err := next.Complete(ctx, req)

				if countsTowardsBreaker(err) {
					breaker.Record(err == nil)
				}

				return resp, err //nolint:wrapcheck // Middleware should pass through errors unchanged
			},
			next.GetModelName,
		)
	}
}

// countsTowardsBreaker excludes outcomes that say nothing about provider health:
// caller cancellation and requests the provider rejected as malformed.
func countsTowardsBreaker(err error) bool {
	if err == nil {
		return true
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	return !llmerrors.Is(err, llmerrors.ErrorTypeBadPrompt)
}
