package ratelimit

import (
	"context"

	"scicontent/pkg/agent/llm"
)

// Middleware wraps a client so every request first acquires its estimated
// prompt tokens plus MaxTokens from limiter. A nil limiter disables limiting.
func Middleware(limiter Limiter, estimator TokenEstimator) llm.Middleware {
	if estimator == nil {
		estimator = TiktokenEstimator{}
	}
	return func(next llm.LLMClient) llm.LLMClient {
		if limiter == nil {
			return next
		}
		return llm.WrapClient(
			func(ctx context.Context, req llm.CompletionRequest) (llm.CompletionResponse, error) {
				caller, ok := llm.StageOf(ctx)
				if !ok {
					caller = next.GetModelName()
				}
				release, err := limiter.Acquire(ctx, estimator.EstimatePrompt(req)+req.MaxTokens, caller)
				if err != nil {
					return llm.CompletionResponse{}, err
				}
				defer release()

				return next.Complete(ctx, req)
			},
			next.GetModelName,
		)
	}
}
