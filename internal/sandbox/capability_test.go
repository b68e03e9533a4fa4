package sandbox

import (
	"context"
	"testing"

	"github.com/leapstack-labs/scriptbox/internal/testutil"
	"github.com/leapstack-labs/scriptbox/pkg/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.starlark.net/starlark"
)

func TestBuildCapabilityTable(t *testing.T) {
	st := &runState{ctx: context.Background(), logger: testutil.NewTestLogger(t)}
	tools := []core.ToolInfo{{Name: "fetch"}, {Name: "search"}}
	sessionVars := map[string]any{"prev": "value"}

	table, err := BuildCapabilityTable(st, tools, sessionVars)
	require.NoError(t, err)

	for _, name := range []string{
		"math", "time", "json", "random", "re", "hashlib", "base64", "struct",
		"fetch", "search", "prev",
		finalAnswerName, parallelName, globalsSchemaName,
	} {
		assert.Contains(t, table, name)
	}

	schema, ok := table[globalsSchemaName].(*starlark.Dict)
	require.True(t, ok)

	// Tools and session variables are introspectable; the convenience
	// bindings and the schema itself are not.
	_, found, err := schema.Get(starlark.String("fetch"))
	require.NoError(t, err)
	assert.True(t, found)
	_, found, err = schema.Get(starlark.String("prev"))
	require.NoError(t, err)
	assert.True(t, found)
	for _, excluded := range []string{finalAnswerName, parallelName, globalsSchemaName} {
		_, found, err := schema.Get(starlark.String(excluded))
		require.NoError(t, err)
		assert.False(t, found, "%s must not be introspectable", excluded)
	}
}

func TestBuildCapabilityTable_SessionVarsFrozen(t *testing.T) {
	st := &runState{ctx: context.Background(), logger: testutil.NewTestLogger(t)}

	table, err := BuildCapabilityTable(st, nil, map[string]any{"items": []any{int64(1)}})
	require.NoError(t, err)

	list, ok := table["items"].(*starlark.List)
	require.True(t, ok)
	assert.Error(t, list.Append(starlark.MakeInt(2)))
}

func TestBuildCapabilityTable_ToolShadowsSessionVar(t *testing.T) {
	st := &runState{ctx: context.Background(), logger: testutil.NewTestLogger(t)}

	table, err := BuildCapabilityTable(st, []core.ToolInfo{{Name: "fetch"}}, map[string]any{"fetch": "stale"})
	require.NoError(t, err)

	_, ok := table["fetch"].(*starlark.Builtin)
	assert.True(t, ok, "tool proxy must win the name collision")
}
