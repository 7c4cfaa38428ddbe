package registry

import (
	"context"
	"sort"
	"sync"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/tmc/langchaingo/llms"
)

// DefaultModel sizes tool payloads when the client model is unknown.
const DefaultModel = "gpt-4o"

// Registry keeps the tool definitions and handlers registered on a server.
type Registry struct {
	mu       sync.RWMutex
	tools    map[string]mcp.Tool
	handlers map[string]server.ToolHandlerFunc
	model    string
}

// New constructs an empty Registry.
func New() *Registry {
	return &Registry{
		tools:    map[string]mcp.Tool{},
		handlers: map[string]server.ToolHandlerFunc{},
		model:    DefaultModel,
	}
}

// WithModel sets the model whose context window bounds tool payloads.
func (r *Registry) WithModel(model string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if model != "" {
		r.model = model
	}
}

// Register stores a tool definition and its handler.
func (r *Registry) Register(tool mcp.Tool, h server.ToolHandlerFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.tools[tool.Name] = tool
	r.handlers[tool.Name] = h
}

// Get returns a tool by name when present.
func (r *Registry) Get(name string) (mcp.Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[name]
	return t, ok
}

// Handler returns the handler registered for name.
func (r *Registry) Handler(name string) (server.ToolHandlerFunc, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.handlers[name]
	return h, ok
}

// Tools returns a stable-sorted list of registered tool definitions.
func (r *Registry) Tools(ctx context.Context) ([]mcp.Tool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	tools := make([]mcp.Tool, 0, len(r.tools))
	for _, tool := range r.tools {
		tools = append(tools, tool)
	}

	sort.Slice(tools, func(i, j int) bool {
		return tools[i].Name < tools[j].Name
	})

	return tools, nil
}

// ModelContextSize exposes a model's context window in tokens.
func (r *Registry) ModelContextSize(modelName string) int {
	return llms.GetModelContextSize(modelName)
}

// PayloadBudget bounds a tool response in bytes: the configured limit, or a
// quarter of the model window at about four bytes per token when smaller.
func (r *Registry) PayloadBudget(limit int) int {
	r.mu.RLock()
	model := r.model
	r.mu.RUnlock()

	budget := r.ModelContextSize(model)
	if limit > 0 && (budget <= 0 || limit < budget) {
		budget = limit
	}
	return budget
}
