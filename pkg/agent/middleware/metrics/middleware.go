package metrics

import (
	"context"
	"errors"
	"time"

	"scicontent/pkg/agent/llm"
	"scicontent/pkg/agent/llmerrors"
	"scicontent/pkg/agent/middleware/resilience/circuit"
	"scicontent/pkg/logx"
	"scicontent/pkg/utils"
)

const (
	statusSuccess = "success"
	statusError   = "error"
)

// UsageExtractor is a function that extracts token usage from a request and response.
type UsageExtractor func(req llm.CompletionRequest, resp llm.CompletionResponse) (promptTokens, completionTokens int)

// DefaultUsageExtractor provides a default implementation using TikToken for token counting.
func DefaultUsageExtractor(req llm.CompletionRequest, resp llm.CompletionResponse) (promptTokens, completionTokens int) {
	for i := range req.Messages {
		msg := &req.Messages[i]
		promptTokens += utils.CountTokensSimple(msg.Content)
		for j := range msg.ToolResults {
			promptTokens += utils.CountTokensSimple(msg.ToolResults[j].Content)
		}
	}

	completionTokens = utils.CountTokensSimple(resp.Content)
	return promptTokens, completionTokens
}

// Middleware returns a middleware function that records metrics for LLM operations.
// It tracks request latency, token usage, success/failure rates, and error types.
// The stage label comes from llm.WithStage on the request context.
func Middleware(recorder Recorder, usageExtractor UsageExtractor, logger *logx.Logger) llm.Middleware {
	if usageExtractor == nil {
		usageExtractor = DefaultUsageExtractor
	}
	if recorder == nil {
		recorder = Nop()
	}

	return func(next llm.LLMClient) llm.LLMClient {
		return llm.WrapClient(
			func(ctx context.Context, req llm.CompletionRequest) (llm.CompletionResponse, error) {
				start := time.Now()
				model := next.GetModelName()

				resp, err := next.Complete(ctx, req)
				duration := time.Since(start)

				var promptTokens, completionTokens int
				if err == nil {
					promptTokens, completionTokens = usageExtractor(req, resp)
				}

				obs := RequestObservation{
					Model:            model,
					SessionID:        llm.SessionFrom(ctx),
					Stage:            llm.StageFrom(ctx),
					PromptTokens:     promptTokens,
					CompletionTokens: completionTokens,
					ToolCalls:        len(resp.ToolCalls),
					Success:          err == nil,
					ErrorType:        getErrorType(err),
					Duration:         duration,
				}
				recorder.ObserveRequest(obs)

				if logger != nil {
					status := statusSuccess
					if err != nil {
						status = statusError
					}
					logger.Debug("LLM request: model=%s stage=%s tokens=%d+%d tool_calls=%d status=%s duration=%dms",
						model, obs.Stage, promptTokens, completionTokens, obs.ToolCalls, status, duration.Milliseconds())
				}

				return resp, err //nolint:wrapcheck // Middleware should pass through errors unchanged
			},
			next.GetModelName,
		)
	}
}

// getErrorType classifies errors for metrics labeling.
func getErrorType(err error) string {
	if err == nil {
		return ""
	}

	var circuitErr *circuit.Error
	switch {
	case errors.As(err, &circuitErr):
		return "circuit_breaker"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, context.Canceled):
		return "canceled"
	default:
		return llmerrors.TypeOf(err).String()
	}
}
