package tools

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/xeipuuv/gojsonschema"

	"scicontent/pkg/logx"
)

// ErrUnknownTool is returned when a tool name is not registered.
var ErrUnknownTool = errors.New("unknown tool")

// Registry maps tool names to their implementation and compiled argument schema.
// It is built once at startup and passed explicitly; there is no global instance.
//
//nolint:govet // fieldalignment: Logical grouping preferred over memory optimization
type Registry struct {
	mu      sync.RWMutex
	tools   map[string]Tool
	schemas map[string]*gojsonschema.Schema
	order   []string
	logger  *logx.Logger
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		tools:   make(map[string]Tool),
		schemas: make(map[string]*gojsonschema.Schema),
		logger:  logx.NewLogger("tools"),
	}
}

// Register adds a tool and compiles its input schema.
func (r *Registry) Register(tool Tool) error {
	if tool == nil {
		return fmt.Errorf("tool cannot be nil")
	}
	name := tool.Name()
	if name == "" {
		return fmt.Errorf("tool name cannot be empty")
	}

	schema, err := gojsonschema.NewSchema(gojsonschema.NewGoLoader(tool.Definition().InputSchema))
	if err != nil {
		return fmt.Errorf("invalid input schema for tool %s: %w", name, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.tools[name]; exists {
		return fmt.Errorf("tool %s already registered", name)
	}
	r.tools[name] = tool
	r.schemas[name] = schema
	r.order = append(r.order, name)
	return nil
}

// Get retrieves a tool by name.
func (r *Registry) Get(name string) (Tool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	tool, ok := r.tools[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTool, name)
	}
	return tool, nil
}

// Names returns registered tool names in registration order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.order...)
}

// Definitions returns the definitions of every registered tool in registration order.
func (r *Registry) Definitions() []ToolDefinition {
	r.mu.RLock()
	defer r.mu.RUnlock()

	defs := make([]ToolDefinition, 0, len(r.order))
	for _, name := range r.order {
		defs = append(defs, r.tools[name].Definition())
	}
	return defs
}

// Invoke validates args against the tool's schema and runs it. It never returns a
// fault: unknown tools, invalid arguments, Exec errors and panics all become an
// error envelope the model can reason about.
func (r *Registry) Invoke(ctx context.Context, name string, args map[string]any) (result *ExecResult) {
	r.mu.RLock()
	tool, ok := r.tools[name]
	schema := r.schemas[name]
	r.mu.RUnlock()

	if !ok {
		return failureResult(fmt.Sprintf("Unknown tool: %s. Available tools: %s", name, strings.Join(r.Names(), ", ")))
	}
	if args == nil {
		args = map[string]any{}
	}

	if msg := validateArgs(schema, args); msg != "" {
		return failureResult(fmt.Sprintf("Invalid arguments for %s: %s", name, msg))
	}

	defer func() {
		if p := recover(); p != nil {
			r.logger.Error("Tool %s panicked: %v", name, p)
			result = failureResult(fmt.Sprintf("%s failed unexpectedly: %v", name, p))
		}
	}()

	res, err := tool.Exec(ctx, args)
	if err != nil {
		r.logger.Warn("Tool %s failed: %v", name, err)
		return failureResult(fmt.Sprintf("%s failed: %v", name, err))
	}
	if res == nil {
		return failureResult(fmt.Sprintf("%s returned no result", name))
	}
	return res
}

func validateArgs(schema *gojsonschema.Schema, args map[string]any) string {
	if schema == nil {
		return ""
	}
	result, err := schema.Validate(gojsonschema.NewGoLoader(args))
	if err != nil {
		return err.Error()
	}
	if result.Valid() {
		return ""
	}
	msgs := make([]string, 0, len(result.Errors()))
	for _, desc := range result.Errors() {
		msgs = append(msgs, desc.String())
	}
	sort.Strings(msgs)
	return strings.Join(msgs, "; ")
}

// Provider exposes the subset of a registry allowed for one stage.
type Provider struct {
	registry *Registry
	allowed  []string
	allowSet map[string]struct{}
}

// NewProvider creates a provider limited to allowed, which must all be registered.
func NewProvider(registry *Registry, allowed []string) (*Provider, error) {
	allowSet := make(map[string]struct{}, len(allowed))
	for _, name := range allowed {
		if _, err := registry.Get(name); err != nil {
			return nil, err
		}
		allowSet[name] = struct{}{}
	}
	return &Provider{
		registry: registry,
		allowed:  append([]string(nil), allowed...),
		allowSet: allowSet,
	}, nil
}

// Names returns the allowed tool names in allowlist order.
func (p *Provider) Names() []string {
	if p == nil {
		return nil
	}
	return append([]string(nil), p.allowed...)
}

// Definitions returns definitions for the allowed tools in allowlist order.
func (p *Provider) Definitions() []ToolDefinition {
	if p == nil {
		return nil
	}
	defs := make([]ToolDefinition, 0, len(p.allowed))
	for _, name := range p.allowed {
		if tool, err := p.registry.Get(name); err == nil {
			defs = append(defs, tool.Definition())
		}
	}
	return defs
}

// Invoke runs an allowed tool. Tools outside the allowlist yield an error envelope.
func (p *Provider) Invoke(ctx context.Context, name string, args map[string]any) *ExecResult {
	if p == nil {
		return failureResult(fmt.Sprintf("Tool %s is not available: no tools are enabled for this stage", name))
	}
	if _, ok := p.allowSet[name]; !ok {
		return failureResult(fmt.Sprintf("Tool %s is not available in this stage. Available tools: %s",
			name, strings.Join(p.allowed, ", ")))
	}
	return p.registry.Invoke(ctx, name, args)
}

// GenerateToolDocumentation creates markdown documentation for the allowed tools.
func (p *Provider) GenerateToolDocumentation() string {
	defs := p.Definitions()
	if len(defs) == 0 {
		return "No tools available"
	}

	var doc strings.Builder
	doc.WriteString("## Available Tools\n\n")
	for i := range defs {
		fmt.Fprintf(&doc, "- **%s** - %s\n", defs[i].Name, firstLine(defs[i].Description))
	}
	return doc.String()
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
