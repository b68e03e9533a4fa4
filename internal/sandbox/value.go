package sandbox

import (
	"fmt"

	"github.com/leapstack-labs/scriptbox/pkg/core"
	"go.starlark.net/starlark"
)

// ToolResult wraps a structured tool outcome as a Starlark value. Scripts
// can probe .success, .content, and .error on it, and its truth value
// follows the success flag so `if not r:` reads naturally.
type ToolResult struct {
	Outcome *core.ToolOutcome
}

var (
	_ starlark.Value    = (*ToolResult)(nil)
	_ starlark.HasAttrs = (*ToolResult)(nil)
)

func (r *ToolResult) String() string {
	if !r.Outcome.Success {
		return fmt.Sprintf("Error executing tool: %s", r.Outcome.Error)
	}
	return fmt.Sprintf("tool_result(content = %v)", r.Outcome.Content)
}

func (r *ToolResult) Type() string          { return "tool_result" }
func (r *ToolResult) Freeze()               {}
func (r *ToolResult) Truth() starlark.Bool  { return starlark.Bool(r.Outcome.Success) }
func (r *ToolResult) Hash() (uint32, error) { return 0, fmt.Errorf("unhashable type: tool_result") }

// Attr implements field access for the three outcome fields. Unknown names
// return (nil, nil) so the interpreter reports a standard missing-attribute
// error, which the classifier maps to an attribute-access failure.
func (r *ToolResult) Attr(name string) (starlark.Value, error) {
	switch name {
	case "success":
		return starlark.Bool(r.Outcome.Success), nil
	case "content":
		return toStarlark(r.Outcome.Content)
	case "error":
		return starlark.String(r.Outcome.Error), nil
	}
	return nil, nil
}

func (r *ToolResult) AttrNames() []string {
	return []string{"content", "error", "success"}
}

// TextParts wraps a bundle of text-bearing content items as a Starlark
// value. Its .content attribute exposes the parts as a list of strings.
type TextParts struct {
	Bundle *core.TextBundle
}

var (
	_ starlark.Value    = (*TextParts)(nil)
	_ starlark.HasAttrs = (*TextParts)(nil)
)

func (t *TextParts) String() string         { return t.Bundle.Text() }
func (t *TextParts) Type() string           { return "text_parts" }
func (t *TextParts) Freeze()                {}
func (t *TextParts) Truth() starlark.Bool   { return starlark.Bool(len(t.Bundle.Parts) > 0) }
func (t *TextParts) Hash() (uint32, error)  { return 0, fmt.Errorf("unhashable type: text_parts") }
func (t *TextParts) AttrNames() []string    { return []string{"content", "text"} }

func (t *TextParts) Attr(name string) (starlark.Value, error) {
	switch name {
	case "content":
		parts := make([]starlark.Value, len(t.Bundle.Parts))
		for i, p := range t.Bundle.Parts {
			parts[i] = starlark.String(p)
		}
		return starlark.NewList(parts), nil
	case "text":
		return starlark.String(t.Bundle.Text()), nil
	}
	return nil, nil
}

// toStarlark converts a Go value into a Starlark value. Tool outcomes and
// text bundles get their dedicated wrapper types; plain JSON-compatible
// values convert structurally.
func toStarlark(v any) (starlark.Value, error) {
	if v == nil {
		return starlark.None, nil
	}

	switch val := v.(type) {
	case starlark.Value:
		return val, nil

	case *core.ToolOutcome:
		return &ToolResult{Outcome: val}, nil

	case core.ToolOutcome:
		return &ToolResult{Outcome: &val}, nil

	case *core.TextBundle:
		return &TextParts{Bundle: val}, nil

	case string:
		return starlark.String(val), nil

	case bool:
		return starlark.Bool(val), nil

	case int:
		return starlark.MakeInt(val), nil

	case int64:
		return starlark.MakeInt64(val), nil

	case float64:
		return starlark.Float(val), nil

	case []string:
		list := make([]starlark.Value, len(val))
		for i, s := range val {
			list[i] = starlark.String(s)
		}
		return starlark.NewList(list), nil

	case []any:
		list := make([]starlark.Value, len(val))
		for i, item := range val {
			sv, err := toStarlark(item)
			if err != nil {
				return nil, fmt.Errorf("list index %d: %w", i, err)
			}
			list[i] = sv
		}
		return starlark.NewList(list), nil

	case map[string]any:
		dict := starlark.NewDict(len(val))
		for k, item := range val {
			sv, err := toStarlark(item)
			if err != nil {
				return nil, fmt.Errorf("dict key %q: %w", k, err)
			}
			if err := dict.SetKey(starlark.String(k), sv); err != nil {
				return nil, fmt.Errorf("dict setkey %q: %w", k, err)
			}
		}
		return dict, nil

	default:
		return nil, fmt.Errorf("unsupported type: %T", v)
	}
}

// toGo converts a Starlark value back to a JSON-compatible Go value.
// Returns string, int64, float64, bool, []any, map[string]any, or nil.
func toGo(v starlark.Value) (any, error) {
	switch val := v.(type) {
	case starlark.NoneType:
		return nil, nil

	case starlark.String:
		return string(val), nil

	case starlark.Int:
		i64, ok := val.Int64()
		if !ok {
			// Very large integers fall back to their decimal string form.
			return val.String(), nil
		}
		return i64, nil

	case starlark.Float:
		return float64(val), nil

	case starlark.Bool:
		return bool(val), nil

	case *starlark.List:
		result := make([]any, val.Len())
		for i := 0; i < val.Len(); i++ {
			gv, err := toGo(val.Index(i))
			if err != nil {
				return nil, fmt.Errorf("list index %d: %w", i, err)
			}
			result[i] = gv
		}
		return result, nil

	case starlark.Tuple:
		result := make([]any, val.Len())
		for i := 0; i < val.Len(); i++ {
			gv, err := toGo(val.Index(i))
			if err != nil {
				return nil, fmt.Errorf("tuple index %d: %w", i, err)
			}
			result[i] = gv
		}
		return result, nil

	case *starlark.Dict:
		result := make(map[string]any)
		for _, item := range val.Items() {
			key, ok := item[0].(starlark.String)
			if !ok {
				return nil, fmt.Errorf("dict key must be string, got %s", item[0].Type())
			}
			gv, err := toGo(item[1])
			if err != nil {
				return nil, fmt.Errorf("dict key %q: %w", key, err)
			}
			result[string(key)] = gv
		}
		return result, nil

	default:
		return nil, fmt.Errorf("not a JSON-compatible value: %s", v.Type())
	}
}
