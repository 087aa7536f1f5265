// Package validation provides response validation middleware for LLM clients.
package validation

import (
	"context"
	"strings"

	"scicontent/pkg/agent/llm"
	"scicontent/pkg/agent/llmerrors"
	"scicontent/pkg/logx"
)

// maxEmptyAttempts is the original request plus one retry with guidance.
const maxEmptyAttempts = 2

// Guidance messages appended to the conversation after an empty response.
const (
	guidanceWithTools    = "No response received. Either call one of the available tools or answer with the requested content."
	guidanceWithoutTools = "No response received. Please answer with the requested content."
)

// EmptyResponseValidator retries a request once, with a guidance message, when the
// model answers with neither text nor tool calls.
type EmptyResponseValidator struct {
	logger *logx.Logger
}

// NewEmptyResponseValidator creates a validator. A nil logger gets a default one.
func NewEmptyResponseValidator(logger *logx.Logger) *EmptyResponseValidator {
	if logger == nil {
		logger = logx.NewLogger("empty-response-validator")
	}
	return &EmptyResponseValidator{logger: logger}
}

// Middleware returns the validating middleware.
//
// For empty responses:
//   - First occurrence: appends a guidance user message and retries immediately.
//   - Second occurrence: returns ErrorTypeEmptyResponse, which fails the stage.
func (v *EmptyResponseValidator) Middleware() llm.Middleware {
	return func(next llm.LLMClient) llm.LLMClient {
		return llm.WrapClient(
			func(ctx context.Context, req llm.CompletionRequest) (llm.CompletionResponse, error) {
				for attempt := 1; attempt <= maxEmptyAttempts; attempt++ {
					resp, err := next.Complete(ctx, req)
					if err != nil && !llmerrors.Is(err, llmerrors.ErrorTypeEmptyResponse) {
						//nolint:wrapcheck // Middleware intentionally passes through errors unchanged
						return resp, err
					}

					if err == nil && !IsEmpty(resp) {
						return resp, nil
					}

					v.logger.Warn("⚠️ EMPTY RESPONSE DETECTED (stage %s, attempt %d/%d)", llm.StageFrom(ctx), attempt, maxEmptyAttempts)

					if attempt < maxEmptyAttempts {
						guided := req
						guided.Messages = append(append([]llm.CompletionMessage(nil), req.Messages...),
							llm.NewUserMessage(guidanceFor(req)))
						req = guided
					}
				}

				v.logger.Error("❌ Both attempts returned empty responses for stage %s", llm.StageFrom(ctx))
				return llm.CompletionResponse{}, llmerrors.NewError(
					llmerrors.ErrorTypeEmptyResponse,
					"received empty response after guidance: no content and no tool calls",
				)
			},
			next.GetModelName,
		)
	}
}

// IsEmpty reports whether a response carries neither text nor tool calls.
func IsEmpty(resp llm.CompletionResponse) bool {
	return len(resp.ToolCalls) == 0 && strings.TrimSpace(resp.Content) == ""
}

func guidanceFor(req llm.CompletionRequest) string {
	if len(req.Tools) > 0 {
		return guidanceWithTools
	}
	return guidanceWithoutTools
}
