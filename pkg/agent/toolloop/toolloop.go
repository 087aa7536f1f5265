// Package toolloop runs the model/tool conversation for one pipeline stage.
//
// Each iteration sends the accumulated messages to the model. Tool calls in the
// answer are dispatched through the stage's tools.Provider and their envelopes are
// sent back as the next user turn. The loop ends on the first answer without tool
// calls.
package toolloop

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"scicontent/pkg/agent/llm"
	"scicontent/pkg/agent/middleware/metrics"
	"scicontent/pkg/logx"
	"scicontent/pkg/tools"
	"scicontent/pkg/tracing"
	"scicontent/pkg/utils"
)

// DefaultMaxIterations bounds the model turns of one stage.
const DefaultMaxIterations = 10

// DefaultMaxResultTokens bounds a single tool result sent back to the model.
const DefaultMaxResultTokens = 4000

// ToolLoop manages LLM interactions with tool calling.
type ToolLoop struct {
	llmClient llm.LLMClient
	logger    *logx.Logger
	recorder  metrics.Recorder
	tracer    trace.Tracer
	counter   *utils.TokenCounter
}

// Option customizes a ToolLoop.
type Option func(*ToolLoop)

// WithRecorder records one observation per tool call.
func WithRecorder(r metrics.Recorder) Option {
	return func(tl *ToolLoop) {
		if r != nil {
			tl.recorder = r
		}
	}
}

// WithTracer wraps each tool call in a span.
func WithTracer(t trace.Tracer) Option {
	return func(tl *ToolLoop) { tl.tracer = t }
}

// New creates a new ToolLoop instance.
func New(llmClient llm.LLMClient, logger *logx.Logger, opts ...Option) *ToolLoop {
	if logger == nil {
		logger = logx.NewLogger("toolloop")
	}
	counter, err := utils.NewTokenCounter(llmClient.GetModelName())
	if err != nil {
		logger.Warn("token counter unavailable, estimating by characters: %v", err)
	}
	tl := &ToolLoop{
		llmClient: llmClient,
		logger:    logger,
		recorder:  metrics.Nop(),
		counter:   counter,
	}
	for _, opt := range opts {
		opt(tl)
	}
	return tl
}

// Config defines how the tool loop behaves.
//
//nolint:govet // fieldalignment: struct fields ordered for clarity over memory alignment
type Config struct {
	// SystemPrompt is the resolved stage template.
	SystemPrompt string

	// InitialPrompt is the run's request message, sent as the first user turn.
	InitialPrompt string

	// Tools is the stage allowlist. An empty provider disables tool calling.
	Tools *tools.Provider

	// MaxIterations bounds the number of model turns.
	MaxIterations int

	// MaxTokens bounds a single model answer.
	MaxTokens int

	Temperature float32

	// MaxResultTokens truncates oversized tool results before they reach the model.
	MaxResultTokens int
}

// Result is the outcome of a completed loop.
type Result struct {
	// Content is the model's final answer.
	Content string

	// Messages is the full conversation, system prompt first.
	Messages []llm.CompletionMessage

	// Iterations is the number of model turns taken.
	Iterations int

	// ToolCalls counts dispatched tool calls; FailedToolCalls counts error envelopes among them.
	ToolCalls       int
	FailedToolCalls int
}

// Run executes the tool loop with the given configuration.
//
// A model failure ends the loop with that error. Tool failures never do: their
// error envelopes become model input. When the model is still calling tools at the
// iteration limit, Run returns ErrMaxIterations along with the partial result.
func (tl *ToolLoop) Run(ctx context.Context, cfg *Config) (*Result, error) {
	if cfg == nil {
		return nil, ErrNoTools
	}
	maxIterations := cfg.MaxIterations
	if maxIterations <= 0 {
		maxIterations = DefaultMaxIterations
	}
	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = llm.DefaultMaxTokens
	}
	maxResultTokens := cfg.MaxResultTokens
	if maxResultTokens <= 0 {
		maxResultTokens = DefaultMaxResultTokens
	}

	messages := make([]llm.CompletionMessage, 0, 2+2*maxIterations)
	if cfg.SystemPrompt != "" {
		messages = append(messages, llm.NewSystemMessage(cfg.SystemPrompt))
	}
	if cfg.InitialPrompt != "" {
		messages = append(messages, llm.NewUserMessage(cfg.InitialPrompt))
	}

	toolDefs := cfg.Tools.Definitions()
	stage := llm.StageFrom(ctx)
	result := &Result{}

	for iteration := 0; iteration < maxIterations; iteration++ {
		req := llm.CompletionRequest{
			Messages:    messages,
			Tools:       toolDefs,
			MaxTokens:   maxTokens,
			Temperature: cfg.Temperature,
		}

		tl.logger.Info("🔄 [%s] LLM call to '%s' with %d messages (~%d tokens), %d tools (iteration %d)",
			stage, tl.llmClient.GetModelName(), len(messages), tl.estimateTokens(messages), len(toolDefs), iteration+1)

		start := time.Now()
		resp, err := tl.llmClient.Complete(ctx, req)
		duration := time.Since(start)
		result.Iterations = iteration + 1

		if err != nil {
			tl.logger.Error("❌ [%s] LLM call failed after %.3gs: %v", stage, duration.Seconds(), err)
			result.Messages = messages
			return result, fmt.Errorf("LLM completion failed: %w", err)
		}

		tl.logger.Info("✅ [%s] LLM call completed in %.3gs, response length: %d chars, tool calls: %d",
			stage, duration.Seconds(), len(resp.Content), len(resp.ToolCalls))

		messages = append(messages, llm.CompletionMessage{
			Role:      llm.RoleAssistant,
			Content:   resp.Content,
			ToolCalls: resp.ToolCalls,
		})

		if len(resp.ToolCalls) == 0 {
			result.Content = resp.Content
			result.Messages = messages
			return result, nil
		}

		// Every tool call must be answered in the next user turn.
		results := make([]llm.ToolResult, 0, len(resp.ToolCalls))
		for i := range resp.ToolCalls {
			call := &resp.ToolCalls[i]
			if call.ID == "" {
				call.ID = "call_" + uuid.NewString()
			}
			res := tl.invoke(ctx, cfg.Tools, stage, call)
			result.ToolCalls++
			if !res.Envelope.Success {
				result.FailedToolCalls++
			}
			results = append(results, llm.ToolResult{
				ToolCallID: call.ID,
				Name:       call.Name,
				Content:    tl.limitResult(res.Content, maxResultTokens),
				IsError:    !res.Envelope.Success,
			})
		}
		messages = append(messages, llm.CompletionMessage{
			Role:        llm.RoleUser,
			ToolResults: results,
		})
	}

	tl.logger.Warn("⚠️  [%s] maximum tool iterations (%d) reached", stage, maxIterations)
	result.Messages = messages
	return result, fmt.Errorf("%w (%d)", ErrMaxIterations, maxIterations)
}

// invoke dispatches one tool call, recording a span and a metric observation.
func (tl *ToolLoop) invoke(ctx context.Context, provider *tools.Provider, stage string, call *llm.ToolCall) *tools.ExecResult {
	ctx, span := tracing.StartSpan(ctx, tl.tracer, "tool."+call.Name,
		attribute.String(tracing.ToolNameKey, call.Name),
		attribute.String(tracing.StageKey, stage),
	)
	defer span.End()

	tl.logger.Info("Executing tool: %s", call.Name)
	start := time.Now()
	res := provider.Invoke(ctx, call.Name, call.Parameters)
	duration := time.Since(start)

	if res.Envelope.Success {
		tl.logger.Info("Tool %s completed in %.3fs", call.Name, duration.Seconds())
	} else {
		// Error envelopes are model input; the run continues.
		tl.logger.Warn("Tool %s returned error after %.3fs: %s", call.Name, duration.Seconds(), res.Envelope.Error)
		tracing.SetError(span, fmt.Errorf("%s", res.Envelope.Error))
	}
	tl.recorder.ObserveToolCall(call.Name, stage, res.Envelope.Success, duration)
	return res
}

func (tl *ToolLoop) estimateTokens(messages []llm.CompletionMessage) int {
	total := 0
	for i := range messages {
		total += tl.counter.CountTokens(messages[i].Content)
		for j := range messages[i].ToolResults {
			total += tl.counter.CountTokens(messages[i].ToolResults[j].Content)
		}
	}
	return total
}

func (tl *ToolLoop) limitResult(content string, limit int) string {
	if tl.counter.CountTokens(content) <= limit {
		return content
	}
	tl.logger.Debug("truncating tool result to ~%d tokens", limit)
	return tl.counter.TruncateToTokenLimit(content, limit)
}
