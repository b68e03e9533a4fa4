package sandbox

import (
	"crypto/md5"
	"crypto/sha1"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"math/rand/v2"
	"regexp"
	"sync"

	"github.com/leapstack-labs/scriptbox/pkg/core"
	"go.starlark.net/lib/json"
	"go.starlark.net/lib/math"
	starlarktime "go.starlark.net/lib/time"
	"go.starlark.net/starlark"
	"go.starlark.net/starlarkstruct"
)

// Namespace bindings with engine-level meaning. final_answer records a
// result without a return statement; parallel fans out tool calls;
// globals_schema is the read-only reflective view of the namespace.
const (
	finalAnswerName   = "final_answer"
	parallelName      = "parallel"
	globalsSchemaName = "globals_schema"
)

// libraryModules returns the fixed allow-list of library namespaces visible
// inside the sandbox. Every namespace is side-effect-free or locally
// contained: math, date-time, structured data encoding, randomness, regex,
// hashing, and base64. The table is built once per process and its values
// are frozen, so it is safe to share across concurrent requests.
var libraryModules = sync.OnceValue(func() starlark.StringDict {
	modules := starlark.StringDict{
		"math":    math.Module,
		"time":    starlarktime.Module,
		"json":    json.Module,
		"random":  randomModule(),
		"re":      reModule(),
		"hashlib": hashlibModule(),
		"base64":  base64Module(),
		"struct":  starlark.NewBuiltin("struct", starlarkstruct.Make),
	}
	for _, v := range modules {
		v.Freeze()
	}
	return modules
})

// BuildCapabilityTable constructs the closed set of symbols visible inside
// the sandbox for one request: library namespaces, one proxy per registered
// tool, the convenience bindings, and the caller's session variables. The
// allow-list is append-only during construction and effectively immutable
// afterwards; the host environment's ambient primitives are never exposed.
func BuildCapabilityTable(st *runState, tools []core.ToolInfo, sessionVars map[string]any) (starlark.StringDict, error) {
	table := starlark.StringDict{}

	for name, mod := range libraryModules() {
		table[name] = mod
	}

	for name, value := range sessionVars {
		sv, err := toStarlark(value)
		if err != nil {
			return nil, fmt.Errorf("session variable %q: %w", name, err)
		}
		sv.Freeze()
		table[name] = sv
	}

	for _, tool := range tools {
		table[tool.Name] = newToolProxy(st, tool.Name)
	}

	// The reflective view excludes the two convenience bindings and itself,
	// matching what scripts are expected to introspect defensively.
	schema := starlark.NewDict(len(table))
	for name, value := range table {
		if err := schema.SetKey(starlark.String(name), value); err != nil {
			return nil, fmt.Errorf("globals schema %q: %w", name, err)
		}
	}
	schema.Freeze()

	table[finalAnswerName] = newFinalAnswer(st)
	table[parallelName] = newParallel(st)
	table[globalsSchemaName] = schema

	return table, nil
}

func randomModule() *starlarkstruct.Module {
	return &starlarkstruct.Module{
		Name: "random",
		Members: starlark.StringDict{
			"random": starlark.NewBuiltin("random.random", func(_ *starlark.Thread, _ *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
				if err := starlark.UnpackPositionalArgs("random.random", args, kwargs, 0); err != nil {
					return nil, err
				}
				return starlark.Float(rand.Float64()), nil
			}),
			"randint": starlark.NewBuiltin("random.randint", func(_ *starlark.Thread, _ *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
				var lo, hi int
				if err := starlark.UnpackPositionalArgs("random.randint", args, kwargs, 2, &lo, &hi); err != nil {
					return nil, err
				}
				if hi < lo {
					return nil, fmt.Errorf("random.randint: empty range [%d, %d]", lo, hi)
				}
				return starlark.MakeInt(lo + rand.IntN(hi-lo+1)), nil
			}),
			"uniform": starlark.NewBuiltin("random.uniform", func(_ *starlark.Thread, _ *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
				var lo, hi float64
				if err := starlark.UnpackPositionalArgs("random.uniform", args, kwargs, 2, &lo, &hi); err != nil {
					return nil, err
				}
				return starlark.Float(lo + rand.Float64()*(hi-lo)), nil
			}),
			"choice": starlark.NewBuiltin("random.choice", func(_ *starlark.Thread, _ *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
				var v starlark.Value
				if err := starlark.UnpackPositionalArgs("random.choice", args, kwargs, 1, &v); err != nil {
					return nil, err
				}
				seq, ok := v.(starlark.Indexable)
				if !ok {
					return nil, fmt.Errorf("random.choice: got %s, want sequence", v.Type())
				}
				if seq.Len() == 0 {
					return nil, fmt.Errorf("random.choice: empty sequence")
				}
				return seq.Index(rand.IntN(seq.Len())), nil
			}),
		},
	}
}

func reModule() *starlarkstruct.Module {
	return &starlarkstruct.Module{
		Name: "re",
		Members: starlark.StringDict{
			"search": starlark.NewBuiltin("re.search", func(_ *starlark.Thread, _ *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
				var pattern, s string
				if err := starlark.UnpackPositionalArgs("re.search", args, kwargs, 2, &pattern, &s); err != nil {
					return nil, err
				}
				re, err := regexp.Compile(pattern)
				if err != nil {
					return nil, fmt.Errorf("re.search: %w", err)
				}
				m := re.FindString(s)
				if m == "" && !re.MatchString(s) {
					return starlark.None, nil
				}
				return starlark.String(m), nil
			}),
			"findall": starlark.NewBuiltin("re.findall", func(_ *starlark.Thread, _ *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
				var pattern, s string
				if err := starlark.UnpackPositionalArgs("re.findall", args, kwargs, 2, &pattern, &s); err != nil {
					return nil, err
				}
				re, err := regexp.Compile(pattern)
				if err != nil {
					return nil, fmt.Errorf("re.findall: %w", err)
				}
				matches := re.FindAllString(s, -1)
				list := make([]starlark.Value, len(matches))
				for i, m := range matches {
					list[i] = starlark.String(m)
				}
				return starlark.NewList(list), nil
			}),
			"sub": starlark.NewBuiltin("re.sub", func(_ *starlark.Thread, _ *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
				var pattern, repl, s string
				if err := starlark.UnpackPositionalArgs("re.sub", args, kwargs, 3, &pattern, &repl, &s); err != nil {
					return nil, err
				}
				re, err := regexp.Compile(pattern)
				if err != nil {
					return nil, fmt.Errorf("re.sub: %w", err)
				}
				return starlark.String(re.ReplaceAllString(s, repl)), nil
			}),
			"split": starlark.NewBuiltin("re.split", func(_ *starlark.Thread, _ *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
				var pattern, s string
				if err := starlark.UnpackPositionalArgs("re.split", args, kwargs, 2, &pattern, &s); err != nil {
					return nil, err
				}
				re, err := regexp.Compile(pattern)
				if err != nil {
					return nil, fmt.Errorf("re.split: %w", err)
				}
				parts := re.Split(s, -1)
				list := make([]starlark.Value, len(parts))
				for i, p := range parts {
					list[i] = starlark.String(p)
				}
				return starlark.NewList(list), nil
			}),
		},
	}
}

func hashlibModule() *starlarkstruct.Module {
	hexDigest := func(name string, sum func([]byte) string) *starlark.Builtin {
		return starlark.NewBuiltin(name, func(_ *starlark.Thread, _ *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
			var s string
			if err := starlark.UnpackPositionalArgs(name, args, kwargs, 1, &s); err != nil {
				return nil, err
			}
			return starlark.String(sum([]byte(s))), nil
		})
	}
	return &starlarkstruct.Module{
		Name: "hashlib",
		Members: starlark.StringDict{
			"sha256": hexDigest("hashlib.sha256", func(b []byte) string {
				h := sha256.Sum256(b)
				return hex.EncodeToString(h[:])
			}),
			"sha1": hexDigest("hashlib.sha1", func(b []byte) string {
				h := sha1.Sum(b)
				return hex.EncodeToString(h[:])
			}),
			"md5": hexDigest("hashlib.md5", func(b []byte) string {
				h := md5.Sum(b)
				return hex.EncodeToString(h[:])
			}),
		},
	}
}

func base64Module() *starlarkstruct.Module {
	return &starlarkstruct.Module{
		Name: "base64",
		Members: starlark.StringDict{
			"b64encode": starlark.NewBuiltin("base64.b64encode", func(_ *starlark.Thread, _ *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
				var s string
				if err := starlark.UnpackPositionalArgs("base64.b64encode", args, kwargs, 1, &s); err != nil {
					return nil, err
				}
				return starlark.String(base64.StdEncoding.EncodeToString([]byte(s))), nil
			}),
			"b64decode": starlark.NewBuiltin("base64.b64decode", func(_ *starlark.Thread, _ *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
				var s string
				if err := starlark.UnpackPositionalArgs("base64.b64decode", args, kwargs, 1, &s); err != nil {
					return nil, err
				}
				decoded, err := base64.StdEncoding.DecodeString(s)
				if err != nil {
					return nil, fmt.Errorf("base64.b64decode: %w", err)
				}
				return starlark.String(decoded), nil
			}),
		},
	}
}
