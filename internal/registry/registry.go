// Package registry provides Tool Invocation Registry implementations: a
// static in-process registry for locally defined tools, and an MCP client
// adapter for externally hosted tool providers.
package registry

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/leapstack-labs/scriptbox/pkg/core"
)

// Func is a locally registered tool implementation.
type Func func(ctx context.Context, args ...any) (any, error)

// Static is an in-process registry mapping tool names to functions.
type Static struct {
	mu    sync.RWMutex
	tools map[string]staticTool
}

type staticTool struct {
	info core.ToolInfo
	fn   Func
}

// NewStatic creates an empty static registry.
func NewStatic() *Static {
	return &Static{tools: map[string]staticTool{}}
}

// Register adds or replaces a tool.
func (r *Static) Register(name, description string, fn Func) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tools[name] = staticTool{
		info: core.ToolInfo{Name: name, Description: description},
		fn:   fn,
	}
}

// Tools lists registered tools in name order.
func (r *Static) Tools(_ context.Context) ([]core.ToolInfo, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	infos := make([]core.ToolInfo, 0, len(r.tools))
	for _, t := range r.tools {
		infos = append(infos, t.info)
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Name < infos[j].Name })
	return infos, nil
}

// Invoke calls the named tool with positional arguments.
func (r *Static) Invoke(ctx context.Context, name string, args ...any) (any, error) {
	r.mu.RLock()
	t, ok := r.tools[name]
	r.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("unknown tool %q", name)
	}
	return t.fn(ctx, args...)
}
