package sandbox

import (
	"fmt"
	"strings"

	"github.com/leapstack-labs/scriptbox/pkg/core"
	"go.starlark.net/starlark"
)

// serializeResult converts the unit-of-work's returned value into a
// JSON-safe mapping. A returned dict keeps its field names; any other value
// is wrapped under the conventional "result" key.
func serializeResult(v starlark.Value) map[string]any {
	if dict, ok := v.(*starlark.Dict); ok {
		out := make(map[string]any, dict.Len())
		for _, item := range dict.Items() {
			key, ok := item[0].(starlark.String)
			if !ok {
				key = starlark.String(item[0].String())
			}
			out[string(key)] = serializeValue(item[1])
		}
		return out
	}
	if _, ok := v.(starlark.NoneType); ok || v == nil {
		return map[string]any{}
	}
	return map[string]any{"result": serializeValue(v)}
}

// serializeValue converts one returned value to a JSON-safe form. The
// variants are matched exhaustively: structured tool outcomes, text
// bundles, plain JSON-compatible values, and opaque values via their
// textual representation.
func serializeValue(v starlark.Value) any {
	switch t := v.(type) {
	case *ToolResult:
		if !t.Outcome.Success {
			return fmt.Sprintf("Error executing tool: %s", t.Outcome.Error)
		}
		return serializeOutcomeContent(t.Outcome.Content)

	case *TextParts:
		return t.Bundle.Text()

	default:
		g, err := toGo(v)
		if err != nil {
			return v.String()
		}
		return g
	}
}

// serializeOutcomeContent renders a successful outcome's content. Empty
// content collapses to the literal "Success" so callers always see a
// non-empty signal.
func serializeOutcomeContent(content any) any {
	switch c := content.(type) {
	case nil:
		return "Success"
	case *core.TextBundle:
		if len(c.Parts) == 0 {
			return "Success"
		}
		return c.Text()
	case string:
		if c == "" {
			return "Success"
		}
		return c
	case []string:
		if len(c) == 0 {
			return "Success"
		}
		return strings.Join(c, "\n")
	default:
		return c
	}
}

// failedOutcome scans the raw returned mapping for a structured tool
// outcome whose success flag is false. It takes precedence over the string
// scan because it carries the tool's own error field.
func failedOutcome(v starlark.Value) (string, bool) {
	dict, ok := v.(*starlark.Dict)
	if !ok {
		if r, ok := v.(*ToolResult); ok && !r.Outcome.Success {
			return outcomeError(r, ""), true
		}
		return "", false
	}
	for _, item := range dict.Items() {
		if r, ok := item[1].(*ToolResult); ok && !r.Outcome.Success {
			return outcomeError(r, item[0].String()), true
		}
	}
	return "", false
}

func outcomeError(r *ToolResult, key string) string {
	if r.Outcome.Error != "" {
		return r.Outcome.Error
	}
	if key != "" {
		return fmt.Sprintf("Tool %s failed", key)
	}
	return "Tool call failed"
}

// detectFailure scans serialized string fields for error-signaling text.
// Tool-level business failures must surface as execution failures rather
// than masquerade as success. The bare "failed" substring match is known to
// be a blunt heuristic; it is kept deliberately conservative to match the
// planner's expectations.
func detectFailure(result map[string]any) (string, bool) {
	for _, v := range result {
		s, ok := v.(string)
		if !ok {
			continue
		}
		lower := strings.ToLower(s)
		if strings.HasPrefix(lower, "error executing tool") ||
			strings.HasPrefix(lower, "error:") ||
			strings.Contains(lower, "failed") {
			return s, true
		}
	}
	return "", false
}
