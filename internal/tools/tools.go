package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// ToolSpec is the static description of a tool: its name, a description
// and a JSON schema for its parameters.
type ToolSpec interface {
	Name() string
	Description() string
	Parameters() map[string]interface{}
}

// ToolExecutor runs a tool with already decoded parameters.
type ToolExecutor interface {
	Execute(ctx context.Context, params map[string]interface{}) *ToolResult
}

// Tool combines ToolSpec and ToolExecutor for tools without runtime
// dependencies.
type Tool interface {
	ToolSpec
	ToolExecutor
}

// ToolFactory creates the executor for a spec once it is registered.
type ToolFactory func(registry *Registry) ToolExecutor

// ToolCall is one invocation request, from the CLI or over HTTP.
type ToolCall struct {
	ID         string                 `json:"id"`
	Name       string                 `json:"name"`
	Parameters map[string]interface{} `json:"parameters"`
}

// ToolResult is the outcome of a tool call. Exactly one of Result and
// Error is set.
type ToolResult struct {
	ID     string      `json:"id"`
	Result interface{} `json:"result,omitempty"`
	Error  string      `json:"error,omitempty"`
}

// NewErrorResult wraps err as a ToolResult.
func NewErrorResult(err error) *ToolResult {
	return &ToolResult{Error: err.Error()}
}

type registryEntry struct {
	spec     ToolSpec
	executor ToolExecutor
}

// Registry manages available tools
type Registry struct {
	mu      sync.RWMutex
	entries map[string]*registryEntry
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]*registryEntry)}
}

// NewDefaultRegistry returns a registry with every built-in tool.
func NewDefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(NewECSPlanTool())
	return r
}

// Register adds a self-contained tool.
func (r *Registry) Register(tool Tool) {
	r.RegisterSpec(tool, func(*Registry) ToolExecutor { return tool })
}

// RegisterSpec adds a tool spec with a factory for its executor.
func (r *Registry) RegisterSpec(spec ToolSpec, factory ToolFactory) {
	executor := factory(r)

	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[spec.Name()] = &registryEntry{spec: spec, executor: executor}
}

// GetExecutor retrieves a tool executor by name
func (r *Registry) GetExecutor(name string) (ToolExecutor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entry, ok := r.entries[name]
	if !ok {
		return nil, false
	}
	return entry.executor, true
}

// ListSpecs returns all registered tool specs sorted by name
func (r *Registry) ListSpecs() []ToolSpec {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]ToolSpec, 0, len(r.entries))
	for _, entry := range r.entries {
		result = append(result, entry.spec)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name() < result[j].Name() })
	return result
}

// Execute executes a tool call
func (r *Registry) Execute(ctx context.Context, call *ToolCall) *ToolResult {
	executor, ok := r.GetExecutor(call.Name)
	if !ok {
		return &ToolResult{
			ID:    call.ID,
			Error: "tool not found: " + call.Name,
		}
	}
	if executor == nil {
		return &ToolResult{
			ID:    call.ID,
			Error: "tool executor not available: " + call.Name,
		}
	}

	params := call.Parameters
	if params == nil {
		params = map[string]interface{}{}
	}

	result := executor.Execute(ctx, params)
	if result == nil {
		return &ToolResult{
			ID:    call.ID,
			Error: "tool returned nil result",
		}
	}

	result.ID = call.ID
	return result
}

// ToJSONSchema describes every tool in the function-calling format.
func (r *Registry) ToJSONSchema() []map[string]interface{} {
	specs := r.ListSpecs()
	schemas := make([]map[string]interface{}, 0, len(specs))
	for _, spec := range specs {
		schemas = append(schemas, map[string]interface{}{
			"type": "function",
			"function": map[string]interface{}{
				"name":        spec.Name(),
				"description": spec.Description(),
				"parameters":  spec.Parameters(),
			},
		})
	}
	return schemas
}

// ParseCall decodes a JSON object of parameters into a call for name.
func ParseCall(name string, body []byte) (*ToolCall, error) {
	call := &ToolCall{Name: name, Parameters: map[string]interface{}{}}
	if len(strings.TrimSpace(string(body))) == 0 {
		return call, nil
	}
	if err := json.Unmarshal(body, &call.Parameters); err != nil {
		return nil, fmt.Errorf("failed to decode parameters for %s: %w", name, err)
	}
	return call, nil
}

// GetStringParam returns params[key] if it is a string.
func GetStringParam(params map[string]interface{}, key string, defaultVal string) string {
	if val, ok := params[key]; ok {
		if str, ok := val.(string); ok {
			return str
		}
	}
	return defaultVal
}
