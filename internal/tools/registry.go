// Package tools implements the function-calling surface offered to the model:
// a registry of named tools and the built-in tools the assistant ships with.
package tools

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/novalabs/nova/internal/observe"
	"github.com/novalabs/nova/pkg/live"
)

// Handler executes one tool invocation. The returned map becomes the
// function response payload sent back to the model.
type Handler func(ctx context.Context, args map[string]any) (map[string]any, error)

// Registry maps tool names to handlers. Safe for concurrent use.
type Registry struct {
	mu    sync.RWMutex
	defs  map[string]live.ToolDefinition
	impls map[string]Handler
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		defs:  make(map[string]live.ToolDefinition),
		impls: make(map[string]Handler),
	}
}

// Register adds a tool. Registering a name twice is an error.
func (r *Registry) Register(def live.ToolDefinition, h Handler) error {
	if def.Name == "" {
		return fmt.Errorf("tools: definition has no name")
	}
	if h == nil {
		return fmt.Errorf("tools: %s: nil handler", def.Name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.defs[def.Name]; exists {
		return fmt.Errorf("tools: %s: already registered", def.Name)
	}
	r.defs[def.Name] = def
	r.impls[def.Name] = h
	return nil
}

// Definitions returns all registered tool definitions, sorted by name.
func (r *Registry) Definitions() []live.ToolDefinition {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]live.ToolDefinition, 0, len(r.defs))
	for _, def := range r.defs {
		out = append(out, def)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Dispatch runs the tool named by call and returns the response payload.
// Unknown tools and handler errors produce an error payload rather than a Go
// error: a failed tool must still answer the model so the conversation can
// continue.
func (r *Registry) Dispatch(ctx context.Context, call live.ToolCall) map[string]any {
	r.mu.RLock()
	h, ok := r.impls[call.Name]
	r.mu.RUnlock()

	if !ok {
		observe.DefaultMetrics().RecordToolCall(ctx, call.Name, "unknown", 0)
		return map[string]any{"error": fmt.Sprintf("unknown tool: %s", call.Name)}
	}

	start := time.Now()
	result, err := h(ctx, call.Args)
	elapsed := time.Since(start).Seconds()
	if err != nil {
		observe.DefaultMetrics().RecordToolCall(ctx, call.Name, "error", elapsed)
		return map[string]any{"error": err.Error()}
	}
	observe.DefaultMetrics().RecordToolCall(ctx, call.Name, "ok", elapsed)
	if result == nil {
		result = map[string]any{}
	}
	return result
}
