package openaiofficial

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"scicontent/pkg/agent/llm"
	"scicontent/pkg/agent/llmerrors"
	"scicontent/pkg/tools"
)

// TestConvertPropertyToSchema tests property to schema conversion.
func TestConvertPropertyToSchema(t *testing.T) {
	minimum := 1.0
	tests := []struct {
		name     string
		property tools.Property
		wantKeys []string
		noType   bool
	}{
		{
			name:     "string with enum",
			property: tools.Property{Type: "string", Description: "Platform", Enum: []string{"blog", "linkedin"}},
			wantKeys: []string{"type", "description", "enum"},
		},
		{
			name:     "array of objects",
			property: tools.Property{Type: "array", Items: &tools.Property{Type: "object", Properties: map[string]tools.Property{"title": {Type: "string"}}}},
			wantKeys: []string{"type", "items"},
		},
		{
			name:     "bounded integer",
			property: tools.Property{Type: "integer", Minimum: &minimum},
			wantKeys: []string{"type", "minimum"},
		},
		{
			name:     "untyped",
			property: tools.Property{Description: "string or number"},
			wantKeys: []string{"description"},
			noType:   true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			schema := convertPropertyToSchema(&tt.property)
			for _, key := range tt.wantKeys {
				assert.Contains(t, schema, key)
			}
			if tt.noType {
				assert.NotContains(t, schema, "type")
			}
		})
	}
}

func TestConvertMessages(t *testing.T) {
	msgs, err := convertMessages([]llm.CompletionMessage{
		llm.NewSystemMessage("sys"),
		llm.NewUserMessage("go"),
		{Role: llm.RoleAssistant, ToolCalls: []llm.ToolCall{
			{ID: "c1", Name: "search_web", Parameters: map[string]any{"query": "x"}},
			{ID: "c2", Name: "search_web", Parameters: map[string]any{"query": "y"}},
		}},
		{Role: llm.RoleUser, ToolResults: []llm.ToolResult{
			{ToolCallID: "c1", Content: `{"success":true}`},
			{ToolCallID: "c2", Content: `{"success":false,"error":"x"}`, IsError: true},
		}},
	})
	require.NoError(t, err)
	// system, user, assistant, two tool messages
	require.Len(t, msgs, 5)
	require.NotNil(t, msgs[2].OfAssistant)
	assert.Len(t, msgs[2].OfAssistant.ToolCalls, 2)
	require.NotNil(t, msgs[3].OfTool)
	assert.Equal(t, "c1", msgs[3].OfTool.ToolCallID)

	_, err = convertMessages(nil)
	assert.Error(t, err)
}

func TestCompleteAgainstChatCompletionsServer(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		raw, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(raw, &got)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"id": "chatcmpl-1", "object": "chat.completion", "created": 1, "model": "gpt-4o",
			"choices": [{
				"index": 0, "finish_reason": "tool_calls", "logprobs": null,
				"message": {"role": "assistant", "content": null, "refusal": null, "tool_calls": [
					{"id": "call_1", "type": "function", "function": {"name": "generate_citations", "arguments": "{\"style\":\"apa\"}"}}
				]}
			}]
		}`))
	}))
	defer srv.Close()

	client := NewOfficialClientWithModel("test-key", "gpt-4o", srv.URL)
	req := llm.NewCompletionRequest([]llm.CompletionMessage{llm.NewUserMessage("cite")})
	req.Tools = []tools.ToolDefinition{{Name: "generate_citations", Description: "Cite", InputSchema: tools.InputSchema{Type: "object"}}}

	resp, err := client.Complete(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "tool_use", resp.StopReason)
	require.Len(t, resp.ToolCalls, 1)
	assert.Equal(t, "generate_citations", resp.ToolCalls[0].Name)
	assert.Equal(t, "apa", resp.ToolCalls[0].Parameters["style"])

	assert.Equal(t, "gpt-4o", got["model"])
	assert.NotEmpty(t, got["tools"])
}

func TestCompleteClassifiesRateLimit(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":{"message":"slow down","type":"rate_limit"}}`))
	}))
	defer srv.Close()

	_, err := NewOfficialClientWithModel("k", "gpt-4o", srv.URL).
		Complete(context.Background(), llm.NewCompletionRequest([]llm.CompletionMessage{llm.NewUserMessage("hi")}))
	require.Error(t, err)
	assert.Equal(t, llmerrors.ErrorTypeRateLimit, llmerrors.TypeOf(err))
	assert.Equal(t, http.StatusTooManyRequests, llmerrors.StatusCodeOf(err))
}
