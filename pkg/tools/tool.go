// Package tools provides the research and formatting tools exposed to the model, and the
// registry that dispatches model tool calls to them.
package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

// Tool is one function the model may call during a stage.
type Tool interface {
	// Name returns the tool's identifier.
	Name() string
	// Definition returns the schema advertised to the model.
	Definition() ToolDefinition
	// Exec runs the tool. Precondition and upstream failures are reported as an
	// error envelope in the result; a returned error is reserved for internal faults.
	Exec(ctx context.Context, args map[string]any) (*ExecResult, error)
}

// ToolDefinition describes a tool to the model.
type ToolDefinition struct {
	Name        string      `json:"name"`
	Description string      `json:"description"`
	InputSchema InputSchema `json:"input_schema"`
}

// InputSchema is the JSON schema of a tool's arguments object.
type InputSchema struct {
	Type       string              `json:"type"`
	Properties map[string]Property `json:"properties,omitempty"`
	Required   []string            `json:"required,omitempty"`
}

// Property is the JSON schema of one argument.
//
//nolint:govet // fieldalignment: Logical grouping preferred over memory optimization
type Property struct {
	Type        string              `json:"type,omitempty"`
	Description string              `json:"description,omitempty"`
	Enum        []string            `json:"enum,omitempty"`
	Items       *Property           `json:"items,omitempty"`
	Properties  map[string]Property `json:"properties,omitempty"`
	Required    []string            `json:"required,omitempty"`
	Minimum     *float64            `json:"minimum,omitempty"`
	Maximum     *float64            `json:"maximum,omitempty"`
}

// ExecResult is what a tool call hands back to the model: the envelope and its JSON text.
type ExecResult struct {
	Content  string
	Envelope Envelope
}

// Envelope is the two-branch result every tool returns. Callers must check Success
// before reading Payload.
type Envelope struct {
	Payload map[string]any
	Error   string
	Success bool
}

// MarshalJSON flattens the payload next to the success flag:
// {"success":true,...payload} or {"success":false,"error":"..."}.
func (e Envelope) MarshalJSON() ([]byte, error) {
	if !e.Success {
		return json.Marshal(struct {
			Success bool   `json:"success"`
			Error   string `json:"error"`
		}{false, e.Error})
	}

	if len(e.Payload) == 0 {
		return []byte(`{"success":true}`), nil
	}
	body, err := json.Marshal(e.Payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal payload: %w", err)
	}

	var buf bytes.Buffer
	buf.WriteString(`{"success":true,`)
	buf.Write(body[1:])
	return buf.Bytes(), nil
}

// UnmarshalJSON is the inverse of MarshalJSON.
func (e *Envelope) UnmarshalJSON(data []byte) error {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("invalid envelope: %w", err)
	}
	success, ok := raw["success"].(bool)
	if !ok {
		return fmt.Errorf("invalid envelope: missing success flag")
	}
	e.Success = success
	if !success {
		e.Error, _ = raw["error"].(string)
		e.Payload = nil
		return nil
	}
	delete(raw, "success")
	e.Payload = raw
	e.Error = ""
	return nil
}

// ParseEnvelope decodes the JSON content of a tool result.
func ParseEnvelope(content string) (Envelope, error) {
	var env Envelope
	err := json.Unmarshal([]byte(content), &env)
	return env, err
}

func newResult(env Envelope) (*ExecResult, error) {
	content, err := json.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal result: %w", err)
	}
	return &ExecResult{Content: string(content), Envelope: env}, nil
}

// successResult creates a success envelope carrying payload.
func successResult(payload map[string]any) (*ExecResult, error) {
	delete(payload, "success")
	delete(payload, "error")
	return newResult(Envelope{Success: true, Payload: payload})
}

// errorResult creates an error envelope.
func errorResult(format string, args ...any) (*ExecResult, error) {
	return newResult(Envelope{Error: fmt.Sprintf(format, args...)})
}

// failureResult builds an error envelope that cannot fail to marshal.
func failureResult(msg string) *ExecResult {
	env := Envelope{Error: msg}
	content, err := json.Marshal(env)
	if err != nil {
		content = []byte(`{"success":false,"error":"internal tool failure"}`)
	}
	return &ExecResult{Content: string(content), Envelope: env}
}

// =============================================================================
// Argument helpers. Arguments arrive decoded from JSON and already checked against
// the tool's schema, so integers are float64 unless a Go caller built the map.
// =============================================================================

func stringArg(args map[string]any, name, def string) string {
	switch v := args[name].(type) {
	case string:
		if strings.TrimSpace(v) == "" {
			return def
		}
		return v
	case nil:
		return def
	default:
		return fmt.Sprint(v)
	}
}

func intArg(args map[string]any, name string, def int) int {
	switch v := args[name].(type) {
	case float64:
		return int(v)
	case float32:
		return int(v)
	case int:
		return v
	case int64:
		return int(v)
	case int32:
		return int(v)
	}
	return def
}

func clamp(n, lo, hi int) int {
	if n < lo {
		return lo
	}
	if n > hi {
		return hi
	}
	return n
}

func floatPtr(f float64) *float64 {
	return &f
}

// dedupe keeps the first occurrence of each value, preserving order.
func dedupe(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}

func firstN(values []string, n int) []string {
	if len(values) > n {
		return values[:n]
	}
	return values
}

// truncateRunes shortens s to at most n runes.
func truncateRunes(s string, n int) (string, bool) {
	r := []rune(s)
	if len(r) <= n {
		return s, false
	}
	return string(r[:n]), true
}
