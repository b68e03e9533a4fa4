package registry

import (
	"context"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatic_RegisterAndInvoke(t *testing.T) {
	r := NewStatic()
	r.Register("echo", "echoes its first argument", func(_ context.Context, args ...any) (any, error) {
		return args[0], nil
	})

	got, err := r.Invoke(context.Background(), "echo", "hello")
	require.NoError(t, err)
	assert.Equal(t, "hello", got)
}

func TestStatic_UnknownTool(t *testing.T) {
	r := NewStatic()

	_, err := r.Invoke(context.Background(), "missing")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown tool "missing"`)
}

func TestStatic_ToolsSortedByName(t *testing.T) {
	r := NewStatic()
	nop := func(context.Context, ...any) (any, error) { return nil, nil }
	r.Register("zeta", "", nop)
	r.Register("alpha", "", nop)
	r.Register("mid", "", nop)

	tools, err := r.Tools(context.Background())
	require.NoError(t, err)

	names := make([]string, len(tools))
	for i, tool := range tools {
		names[i] = tool.Name
	}
	assert.Equal(t, []string{"alpha", "mid", "zeta"}, names)
}

func TestStatic_RegisterReplaces(t *testing.T) {
	r := NewStatic()
	r.Register("t", "", func(context.Context, ...any) (any, error) { return "old", nil })
	r.Register("t", "", func(context.Context, ...any) (any, error) { return "new", nil })

	got, err := r.Invoke(context.Background(), "t")
	require.NoError(t, err)
	assert.Equal(t, "new", got)

	tools, err := r.Tools(context.Background())
	require.NoError(t, err)
	assert.Len(t, tools, 1)
}

func TestMapPositionalArgs(t *testing.T) {
	schema := mcp.ToolInputSchema{
		Type: "object",
		Properties: map[string]any{
			"query":  map[string]any{"type": "string"},
			"limit":  map[string]any{"type": "integer"},
			"offset": map[string]any{"type": "integer"},
		},
		Required: []string{"query"},
	}

	t.Run("required first then optional alphabetically", func(t *testing.T) {
		named, err := mapPositionalArgs(schema, []any{"cats", 10, 5})
		require.NoError(t, err)
		assert.Equal(t, map[string]any{"query": "cats", "limit": 10, "offset": 5}, named)
	})

	t.Run("fewer args than properties", func(t *testing.T) {
		named, err := mapPositionalArgs(schema, []any{"cats"})
		require.NoError(t, err)
		assert.Equal(t, map[string]any{"query": "cats"}, named)
	})

	t.Run("too many args", func(t *testing.T) {
		_, err := mapPositionalArgs(schema, []any{"a", 1, 2, 3})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "at most 3 args (4 given)")
	})

	t.Run("duplicate required names are deduplicated", func(t *testing.T) {
		dup := mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]any{"a": map[string]any{}},
			Required:   []string{"a", "a"},
		}
		named, err := mapPositionalArgs(dup, []any{1})
		require.NoError(t, err)
		assert.Equal(t, map[string]any{"a": 1}, named)
	})
}

func TestOutcomeFromResult(t *testing.T) {
	t.Run("single text part", func(t *testing.T) {
		res := &mcp.CallToolResult{Content: []mcp.Content{mcp.TextContent{Type: "text", Text: "body"}}}
		out := outcomeFromResult(res)
		assert.True(t, out.Success)
		assert.Equal(t, "body", out.Content)
	})

	t.Run("multiple text parts become a bundle", func(t *testing.T) {
		res := &mcp.CallToolResult{Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: "one"},
			mcp.TextContent{Type: "text", Text: "two"},
		}}
		out := outcomeFromResult(res)
		require.True(t, out.Success)
		bundle, ok := out.Content.(interface{ Text() string })
		require.True(t, ok)
		assert.Equal(t, "one\ntwo", bundle.Text())
	})

	t.Run("error result", func(t *testing.T) {
		res := &mcp.CallToolResult{
			IsError: true,
			Content: []mcp.Content{mcp.TextContent{Type: "text", Text: "tool blew up"}},
		}
		out := outcomeFromResult(res)
		assert.False(t, out.Success)
		assert.Equal(t, "tool blew up", out.Error)
	})

	t.Run("empty content", func(t *testing.T) {
		out := outcomeFromResult(&mcp.CallToolResult{})
		assert.True(t, out.Success)
		assert.Equal(t, "", out.Content)
	})
}
