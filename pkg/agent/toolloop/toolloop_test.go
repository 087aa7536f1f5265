package toolloop_test

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"scicontent/internal/mocks"
	"scicontent/pkg/agent/llm"
	"scicontent/pkg/agent/middleware/metrics"
	"scicontent/pkg/agent/toolloop"
	"scicontent/pkg/logx"
	"scicontent/pkg/tools"
)

// echoTool returns its "text" argument, or an error envelope when it is missing.
type echoTool struct {
	calls int
}

func (e *echoTool) Name() string { return "echo" }

func (e *echoTool) Definition() tools.ToolDefinition {
	return tools.ToolDefinition{
		Name:        "echo",
		Description: "Echo text back",
		InputSchema: tools.InputSchema{
			Type:       "object",
			Properties: map[string]tools.Property{"text": {Type: "string"}},
		},
	}
}

func (e *echoTool) Exec(_ context.Context, args map[string]any) (*tools.ExecResult, error) {
	e.calls++
	text, _ := args["text"].(string)
	if text == "" {
		return &tools.ExecResult{
			Content:  `{"success":false,"error":"nothing to echo"}`,
			Envelope: tools.Envelope{Error: "nothing to echo"},
		}, nil
	}
	payload := map[string]any{"text": text}
	return &tools.ExecResult{
		Content:  `{"success":true,"text":"` + text + `"}`,
		Envelope: tools.Envelope{Success: true, Payload: payload},
	}, nil
}

type toolObservation struct {
	tool, stage string
	success     bool
}

type fakeRecorder struct {
	metrics.NoopRecorder
	mu    sync.Mutex
	tools []toolObservation
}

func (f *fakeRecorder) ObserveToolCall(tool, stage string, success bool, _ time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tools = append(f.tools, toolObservation{tool, stage, success})
}

func newProvider(t *testing.T, tool *echoTool, allowed ...string) *tools.Provider {
	t.Helper()
	reg := tools.NewRegistry()
	require.NoError(t, reg.Register(tool))
	p, err := tools.NewProvider(reg, allowed)
	require.NoError(t, err)
	return p
}

func quietLogger() *logx.Logger {
	return logx.NewLoggerWithWriter("toolloop-test", &bytes.Buffer{})
}

func toolCall(id, name string, params map[string]any) llm.CompletionResponse {
	return llm.CompletionResponse{
		ToolCalls:  []llm.ToolCall{{ID: id, Name: name, Parameters: params}},
		StopReason: "tool_use",
	}
}

func TestRunReturnsFirstAnswerWithoutToolCalls(t *testing.T) {
	client := mocks.NewMockLLMClient()
	client.RespondWith("final answer")

	res, err := toolloop.New(client, quietLogger()).Run(context.Background(), &toolloop.Config{
		SystemPrompt:  "system prompt",
		InitialPrompt: "user request",
	})
	require.NoError(t, err)
	assert.Equal(t, "final answer", res.Content)
	assert.Equal(t, 1, res.Iterations)
	assert.Zero(t, res.ToolCalls)

	require.Len(t, res.Messages, 3)
	assert.Equal(t, llm.RoleSystem, res.Messages[0].Role)
	assert.Equal(t, "user request", res.Messages[1].Content)
	assert.Equal(t, llm.RoleAssistant, res.Messages[2].Role)

	// No provider means no tool definitions are advertised.
	assert.Empty(t, client.LastCompleteCall().Tools)
}

func TestRunDispatchesToolsAndSendsEnvelopes(t *testing.T) {
	echo := &echoTool{}
	client := mocks.NewMockLLMClient()
	client.RespondWithSequence([]llm.CompletionResponse{
		toolCall("call-1", "echo", map[string]any{"text": "hello"}),
		{Content: "done"},
	})

	res, err := toolloop.New(client, quietLogger()).Run(context.Background(), &toolloop.Config{
		SystemPrompt:  "sys",
		InitialPrompt: "go",
		Tools:         newProvider(t, echo, "echo"),
	})
	require.NoError(t, err)
	assert.Equal(t, "done", res.Content)
	assert.Equal(t, 2, res.Iterations)
	assert.Equal(t, 1, res.ToolCalls)
	assert.Zero(t, res.FailedToolCalls)
	assert.Equal(t, 1, echo.calls)

	first := client.GetNthCompleteCall(0)
	require.Len(t, first.Tools, 1)
	assert.Equal(t, "echo", first.Tools[0].Name)

	second := client.GetNthCompleteCall(1)
	last := second.Messages[len(second.Messages)-1]
	assert.Equal(t, llm.RoleUser, last.Role)
	require.Len(t, last.ToolResults, 1)
	assert.Equal(t, "call-1", last.ToolResults[0].ToolCallID)
	assert.False(t, last.ToolResults[0].IsError)

	env, err := tools.ParseEnvelope(last.ToolResults[0].Content)
	require.NoError(t, err)
	assert.True(t, env.Success)
	assert.Equal(t, "hello", env.Payload["text"])
}

func TestRunFeedsErrorEnvelopesBackToModel(t *testing.T) {
	echo := &echoTool{}
	client := mocks.NewMockLLMClient()
	client.RespondWithSequence([]llm.CompletionResponse{
		{ToolCalls: []llm.ToolCall{
			{ID: "a", Name: "echo", Parameters: map[string]any{}},
			{ID: "b", Name: "not_allowed", Parameters: map[string]any{}},
			{Name: "echo", Parameters: map[string]any{"text": "ok"}},
		}},
		{Content: "recovered"},
	})

	res, err := toolloop.New(client, quietLogger()).Run(context.Background(), &toolloop.Config{
		InitialPrompt: "go",
		Tools:         newProvider(t, echo, "echo"),
	})
	require.NoError(t, err)
	assert.Equal(t, "recovered", res.Content)
	assert.Equal(t, 3, res.ToolCalls)
	assert.Equal(t, 2, res.FailedToolCalls)

	results := client.LastCompleteCall().Messages[len(client.LastCompleteCall().Messages)-1].ToolResults
	require.Len(t, results, 3)
	assert.True(t, results[0].IsError)
	assert.Contains(t, results[0].Content, "nothing to echo")
	assert.True(t, results[1].IsError)
	assert.Contains(t, results[1].Content, "not available in this stage")
	assert.False(t, results[2].IsError)
	assert.True(t, strings.HasPrefix(results[2].ToolCallID, "call_"), "missing ids are generated")
}

func TestRunStopsAtIterationLimit(t *testing.T) {
	client := mocks.NewMockLLMClient()
	client.RespondWithToolCall("echo", map[string]any{"text": "again"})

	res, err := toolloop.New(client, quietLogger()).Run(context.Background(), &toolloop.Config{
		InitialPrompt: "loop forever",
		Tools:         newProvider(t, &echoTool{}, "echo"),
		MaxIterations: 3,
	})
	require.ErrorIs(t, err, toolloop.ErrMaxIterations)
	require.NotNil(t, res)
	assert.Equal(t, 3, res.Iterations)
	assert.Equal(t, 3, client.GetCompleteCallCount())
	assert.Empty(t, res.Content)
}

func TestRunPropagatesModelFailure(t *testing.T) {
	boom := errors.New("upstream exploded")
	client := mocks.NewMockLLMClient()
	client.FailCompleteWith(boom)

	_, err := toolloop.New(client, quietLogger()).Run(context.Background(), &toolloop.Config{InitialPrompt: "x"})
	require.ErrorIs(t, err, boom)
	assert.Equal(t, 1, client.GetCompleteCallCount())
}

func TestRunRecordsToolMetricsAndSpans(t *testing.T) {
	spans := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(spans))
	recorder := &fakeRecorder{}

	client := mocks.NewMockLLMClient()
	client.RespondWithSequence([]llm.CompletionResponse{
		toolCall("1", "echo", map[string]any{"text": "hi"}),
		toolCall("2", "echo", map[string]any{}),
		{Content: "ok"},
	})

	loop := toolloop.New(client, quietLogger(),
		toolloop.WithRecorder(recorder),
		toolloop.WithTracer(tp.Tracer("test")))
	ctx := llm.WithStage(context.Background(), "ResearchAgent")
	_, err := loop.Run(ctx, &toolloop.Config{InitialPrompt: "x", Tools: newProvider(t, &echoTool{}, "echo")})
	require.NoError(t, err)

	assert.Equal(t, []toolObservation{
		{"echo", "ResearchAgent", true},
		{"echo", "ResearchAgent", false},
	}, recorder.tools)

	ended := spans.Ended()
	require.Len(t, ended, 2)
	assert.Equal(t, "tool.echo", ended[0].Name())
	assert.Equal(t, "Error", ended[1].Status().Code.String())
}

func TestRunTruncatesOversizedToolResults(t *testing.T) {
	client := mocks.NewMockLLMClient()
	client.RespondWithSequence([]llm.CompletionResponse{
		toolCall("1", "echo", map[string]any{"text": strings.Repeat("word ", 2000)}),
		{Content: "ok"},
	})

	_, err := toolloop.New(client, quietLogger()).Run(context.Background(), &toolloop.Config{
		InitialPrompt:   "x",
		Tools:           newProvider(t, &echoTool{}, "echo"),
		MaxResultTokens: 50,
	})
	require.NoError(t, err)

	msgs := client.LastCompleteCall().Messages
	content := msgs[len(msgs)-1].ToolResults[0].Content
	assert.Less(t, len(content), 1000)
	assert.True(t, strings.HasSuffix(content, "..."))
}

func TestRunRequiresConfig(t *testing.T) {
	_, err := toolloop.New(mocks.NewMockLLMClient(), quietLogger()).Run(context.Background(), nil)
	assert.ErrorIs(t, err, toolloop.ErrNoTools)
}
