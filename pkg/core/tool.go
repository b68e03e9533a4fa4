package core

import (
	"context"
	"strings"
)

// Invoker is the Tool Invocation Registry contract. Implementations perform
// the real work behind a capability name (network calls, browser automation,
// document search). The sandbox forwards positional arguments and does not
// interpret failures beyond classification.
type Invoker interface {
	// Tools returns the set of invocable tool descriptors.
	Tools(ctx context.Context) ([]ToolInfo, error)

	// Invoke calls the named tool with positional arguments and returns its
	// raw result. The returned value is typically a *ToolOutcome or a plain
	// JSON-compatible value.
	Invoke(ctx context.Context, name string, args ...any) (any, error)
}

// ToolInfo describes a registered tool.
type ToolInfo struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// ToolOutcome is the structured result of a tool invocation.
// Success=false carries a tool-level business failure that the engine must
// surface as an execution failure rather than a successful result.
type ToolOutcome struct {
	Success bool   `json:"success"`
	Content any    `json:"content,omitempty"`
	Error   string `json:"error,omitempty"`
}

// TextBundle is a sequence of text-bearing content parts, as returned by
// tools that produce multiple document fragments.
type TextBundle struct {
	Parts []string `json:"parts"`
}

// Text joins the bundle's parts with newlines.
func (b *TextBundle) Text() string {
	return strings.Join(b.Parts, "\n")
}
