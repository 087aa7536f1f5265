// Package ollama adapts a local Ollama server to llm.LLMClient.
package ollama

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/ollama/ollama/api"

	"scicontent/pkg/agent/llm"
	"scicontent/pkg/agent/llmerrors"
	"scicontent/pkg/config"
	"scicontent/pkg/tools"
)

const (
	providerName = "ollama"
	roleTool     = "tool"
)

// Options configures a Client.
type Options struct {
	Host  string // server URL; empty or unparsable falls back to config.DefaultOllamaHost
	Model string
	// NumCtx sets the context window in tokens. Zero keeps the model's default,
	// which is often too small for the review stage's five-output prompt.
	NumCtx     int
	HTTPClient *http.Client
}

// Client talks to the /api/chat endpoint without streaming.
type Client struct {
	api    *api.Client
	model  string
	numCtx int
}

// NewClient creates a raw Ollama client; middleware is applied at a higher level.
func NewClient(opts Options) llm.LLMClient {
	base, err := url.Parse(opts.Host)
	if err != nil || base.Host == "" {
		base, _ = url.Parse(config.DefaultOllamaHost)
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &Client{
		api:    api.NewClient(base, httpClient),
		model:  opts.Model,
		numCtx: opts.NumCtx,
	}
}

// NewOllamaClientWithModel creates a client for model served at hostURL.
func NewOllamaClientWithModel(hostURL, model string) llm.LLMClient {
	return NewClient(Options{Host: hostURL, Model: model})
}

// Complete implements llm.LLMClient.
//
//nolint:gocritic // request passed by value to match the interface
func (c *Client) Complete(ctx context.Context, in llm.CompletionRequest) (llm.CompletionResponse, error) {
	req, err := c.chatRequest(&in)
	if err != nil {
		return llm.CompletionResponse{}, llmerrors.NewErrorWithCause(llmerrors.ErrorTypeBadPrompt, err, "ollama request conversion failed")
	}

	// Stream is off, so the callback runs once with the whole answer.
	var resp api.ChatResponse
	if err := c.api.Chat(ctx, req, func(r api.ChatResponse) error {
		resp = r
		return nil
	}); err != nil {
		return llm.CompletionResponse{}, classifyError(err)
	}

	out := llm.CompletionResponse{
		Content:    resp.Message.Content,
		StopReason: stopReason(&resp),
		ToolCalls:  fromToolCalls(resp.Message.ToolCalls),
	}
	if len(out.ToolCalls) > 0 {
		out.StopReason = "tool_use"
	}
	if strings.TrimSpace(out.Content) == "" && len(out.ToolCalls) == 0 {
		return llm.CompletionResponse{}, llmerrors.NewError(llmerrors.ErrorTypeEmptyResponse,
			fmt.Sprintf("ollama model %s returned an empty message", c.model))
	}
	return out, nil
}

// GetModelName implements llm.LLMClient.
func (c *Client) GetModelName() string {
	return c.model
}

func (c *Client) chatRequest(in *llm.CompletionRequest) (*api.ChatRequest, error) {
	messages, err := toMessages(in.Messages)
	if err != nil {
		return nil, err
	}
	options := map[string]any{"temperature": in.Temperature}
	if in.MaxTokens > 0 {
		options["num_predict"] = in.MaxTokens
	}
	if c.numCtx > 0 {
		options["num_ctx"] = c.numCtx
	}
	stream := false
	return &api.ChatRequest{
		Model:    c.model,
		Messages: messages,
		Stream:   &stream,
		Tools:    toTools(in.Tools),
		Options:  options,
	}, nil
}

// toMessages flattens tool results into one "tool" message per result, placed
// before any text the same turn carries.
func toMessages(messages []llm.CompletionMessage) ([]api.Message, error) {
	if len(messages) == 0 {
		return nil, errors.New("message list cannot be empty")
	}

	out := make([]api.Message, 0, len(messages))
	for i := range messages {
		msg := &messages[i]
		for j := range msg.ToolResults {
			tr := &msg.ToolResults[j]
			out = append(out, api.Message{
				Role:       roleTool,
				Content:    tr.Content,
				ToolName:   tr.Name,
				ToolCallID: tr.ToolCallID,
			})
		}
		if len(msg.ToolResults) > 0 && msg.Content == "" {
			continue
		}

		m := api.Message{Role: string(msg.Role), Content: msg.Content}
		for j := range msg.ToolCalls {
			tc := &msg.ToolCalls[j]
			m.ToolCalls = append(m.ToolCalls, api.ToolCall{
				ID: tc.ID,
				Function: api.ToolCallFunction{
					Index:     j,
					Name:      tc.Name,
					Arguments: toArguments(tc.Parameters),
				},
			})
		}
		out = append(out, m)
	}
	return out, nil
}

// toArguments copies params in key order so requests are reproducible.
func toArguments(params map[string]any) api.ToolCallFunctionArguments {
	args := api.NewToolCallFunctionArguments()
	for _, k := range sortedKeys(params) {
		args.Set(k, params[k])
	}
	return args
}

func toTools(defs []tools.ToolDefinition) api.Tools {
	if len(defs) == 0 {
		return nil
	}
	out := make(api.Tools, 0, len(defs))
	for i := range defs {
		def := &defs[i]
		schemaType := def.InputSchema.Type
		if schemaType == "" {
			schemaType = "object"
		}
		out = append(out, api.Tool{
			Type: "function",
			Function: api.ToolFunction{
				Name:        def.Name,
				Description: def.Description,
				Parameters: api.ToolFunctionParameters{
					Type:       schemaType,
					Required:   def.InputSchema.Required,
					Properties: toProperties(def.InputSchema.Properties),
				},
			},
		})
	}
	return out
}

func toProperties(props map[string]tools.Property) *api.ToolPropertiesMap {
	out := api.NewToolPropertiesMap()
	for _, name := range sortedKeys(props) {
		prop := props[name]
		out.Set(name, toProperty(&prop))
	}
	return out
}

func toProperty(prop *tools.Property) api.ToolProperty {
	propType := prop.Type
	if propType == "" {
		propType = "string"
	}
	out := api.ToolProperty{
		Type:        api.PropertyType{propType},
		Description: prop.Description,
	}
	for _, v := range prop.Enum {
		out.Enum = append(out.Enum, v)
	}
	if len(prop.Properties) > 0 {
		out.Properties = toProperties(prop.Properties)
	}
	if prop.Items != nil {
		out.Items = toProperty(prop.Items)
	}
	return out
}

func fromToolCalls(calls []api.ToolCall) []llm.ToolCall {
	if len(calls) == 0 {
		return nil
	}
	out := make([]llm.ToolCall, 0, len(calls))
	for i := range calls {
		call := &calls[i]
		// Ollama only started returning call ids recently.
		id := call.ID
		if id == "" {
			id = "call_" + uuid.NewString()
		}
		params := call.Function.Arguments.ToMap()
		if params == nil {
			params = map[string]any{}
		}
		out = append(out, llm.ToolCall{ID: id, Name: call.Function.Name, Parameters: params})
	}
	return out
}

func stopReason(resp *api.ChatResponse) string {
	if !resp.Done {
		return "incomplete"
	}
	switch resp.DoneReason {
	case "", "stop":
		return "end_turn"
	case "length":
		return "max_tokens"
	default:
		return resp.DoneReason
	}
}

func classifyError(err error) error {
	var statusErr api.StatusError
	if errors.As(err, &statusErr) {
		if statusErr.StatusCode == http.StatusNotFound {
			// A missing model is a configuration problem; retrying cannot help.
			return llmerrors.NewErrorWithCause(llmerrors.ErrorTypeBadPrompt, err,
				fmt.Sprintf("ollama model not available (run 'ollama pull'): %s", statusErr.ErrorMessage))
		}
		return llmerrors.Classify(err, statusErr.StatusCode, providerName)
	}
	var authErr api.AuthorizationError
	if errors.As(err, &authErr) {
		return llmerrors.NewErrorWithCause(llmerrors.ErrorTypeAuth, err, "ollama server requires sign-in")
	}
	if strings.Contains(err.Error(), "connection refused") {
		return llmerrors.NewErrorWithCause(llmerrors.ErrorTypeTransient, err, "ollama server not reachable")
	}
	return llmerrors.Classify(err, 0, providerName)
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
