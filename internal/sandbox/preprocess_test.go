package sandbox

import (
	"testing"

	"github.com/leapstack-labs/scriptbox/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.starlark.net/syntax"
)

func TestPreprocess_CountsCalls(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want int
	}{
		{name: "no calls", src: "x = 1 + 2", want: 0},
		{name: "single call", src: "x = len([1, 2])", want: 1},
		{name: "nested calls", src: "x = str(len(sorted([3, 1])))", want: 3},
		{
			name: "calls inside control flow",
			src:  "for i in range(3):\n    print(i)",
			want: 2,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			script, err := Preprocess(testutil.NewTestLogger(t), tt.src)
			require.NoError(t, err)
			assert.Equal(t, tt.want, script.Calls)
		})
	}
}

func TestPreprocess_ParseFailure(t *testing.T) {
	_, err := Preprocess(testutil.NewTestLogger(t), "x = = 1")
	require.Error(t, err)
}

func TestPreprocess_DedentsIndentedFragment(t *testing.T) {
	src := "\n    x = 1\n    y = 2\n"
	script, err := Preprocess(testutil.NewTestLogger(t), src)
	require.NoError(t, err)
	assert.Len(t, script.File.Stmts, 2)
}

func TestPreprocess_RepairsUnterminatedTripleQuote(t *testing.T) {
	src := "x = \"\"\"hello"
	script, err := Preprocess(testutil.NewTestLogger(t), src)
	require.NoError(t, err)
	assert.Equal(t, 0, script.Calls)
}

func TestDedent(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "no indent", in: "a\nb", want: "a\nb"},
		{name: "uniform indent", in: "  a\n  b", want: "a\nb"},
		{name: "mixed indent keeps relative", in: "  a\n    b", want: "a\n  b"},
		{name: "blank lines ignored", in: "  a\n\n  b", want: "a\n\nb"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, dedent(tt.in))
		})
	}
}

func TestStripKeywordArgs(t *testing.T) {
	script, err := Preprocess(testutil.NewTestLogger(t), "x = f(1, b=2, c=3)")
	require.NoError(t, err)

	StripKeywordArgs(script.File)

	assign, ok := script.File.Stmts[0].(*syntax.AssignStmt)
	require.True(t, ok)
	call, ok := assign.RHS.(*syntax.CallExpr)
	require.True(t, ok)

	require.Len(t, call.Args, 3)
	for i, arg := range call.Args {
		_, isNamed := arg.(*syntax.BinaryExpr)
		assert.False(t, isNamed, "argument %d still named", i)
	}
}

func TestMarkToolCalls(t *testing.T) {
	src := "a = search_web(\"query\")\nb = len(a)\nc = search_web(\"again\")"
	script, err := Preprocess(testutil.NewTestLogger(t), src)
	require.NoError(t, err)

	MarkToolCalls(script, map[string]bool{"search_web": true})
	assert.Equal(t, []string{"search_web", "search_web"}, script.ToolCalls)
}

func TestValidateComplexity(t *testing.T) {
	script := &Script{Calls: 21}
	err := ValidateComplexity(script, 20)
	require.Error(t, err)

	ce := Classify(err)
	assert.Equal(t, ErrValidation, ce.Kind)
	assert.Contains(t, ce.Message, "21 > 20")

	script.Calls = 20
	assert.NoError(t, ValidateComplexity(script, 20))
}

func TestNormalizeResultShape_SynthesizesReturn(t *testing.T) {
	script, err := Preprocess(testutil.NewTestLogger(t), "result = 5")
	require.NoError(t, err)

	NormalizeResultShape(script.File)

	require.Len(t, script.File.Stmts, 2)
	ret, ok := script.File.Stmts[1].(*syntax.ReturnStmt)
	require.True(t, ok)
	ident, ok := ret.Result.(*syntax.Ident)
	require.True(t, ok)
	assert.Equal(t, "result", ident.Name)
}

func TestNormalizeResultShape_RewritesBareIdentReturn(t *testing.T) {
	script, err := Preprocess(testutil.NewTestLogger(t), "x = 1\nreturn x")
	require.NoError(t, err)

	NormalizeResultShape(script.File)

	ret, ok := script.File.Stmts[1].(*syntax.ReturnStmt)
	require.True(t, ok)
	_, isDict := ret.Result.(*syntax.DictExpr)
	assert.True(t, isDict)
}

func TestNormalizeResultShape_LeavesOtherReturns(t *testing.T) {
	script, err := Preprocess(testutil.NewTestLogger(t), "return {\"a\": 1}")
	require.NoError(t, err)

	NormalizeResultShape(script.File)

	ret, ok := script.File.Stmts[0].(*syntax.ReturnStmt)
	require.True(t, ok)
	_, isDict := ret.Result.(*syntax.DictExpr)
	assert.True(t, isDict)
}
