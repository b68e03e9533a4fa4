package sandbox

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/leapstack-labs/scriptbox/pkg/core"
	"go.starlark.net/starlark"
	"golang.org/x/sync/errgroup"
)

// runState carries per-request execution state shared by the capability
// proxies: the cancellation context, the tool registry, and the holder for
// a final_answer result. One runState exists per request; it is never
// shared across requests.
type runState struct {
	ctx     context.Context
	invoker core.Invoker
	logger  *slog.Logger

	mu          sync.Mutex
	finalAnswer starlark.Value
}

func (st *runState) setFinalAnswer(v starlark.Value) {
	st.mu.Lock()
	defer st.mu.Unlock()
	if st.finalAnswer == nil {
		st.finalAnswer = v
	}
}

func (st *runState) finalAnswerValue() starlark.Value {
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.finalAnswer
}

// invokeTool forwards one capability call to the registry. It is a
// designated suspension point: the request's cancellation token is checked
// on entry, and the registry call itself observes the same context, so a
// timed-out request unwinds here rather than mid-computation.
func (st *runState) invokeTool(name string, args []any) (starlark.Value, error) {
	if err := st.ctx.Err(); err != nil {
		return nil, err
	}

	raw, err := st.invoker.Invoke(st.ctx, name, args...)
	if err != nil {
		return nil, fmt.Errorf("tool %s: %w", name, err)
	}

	return toStarlark(raw)
}

// newToolProxy wraps a registered tool name into a callable that forwards
// its positional arguments to the registry and returns the raw result.
func newToolProxy(st *runState, name string) *starlark.Builtin {
	return starlark.NewBuiltin(name, func(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
		if len(kwargs) > 0 {
			return nil, fmt.Errorf("%s: unexpected keyword arguments", b.Name())
		}
		goArgs, err := tupleToGo(args)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", b.Name(), err)
		}
		st.logger.Debug("invoking tool", "tool", b.Name(), "args", len(goArgs))
		return st.invokeTool(b.Name(), goArgs)
	})
}

// newFinalAnswer returns the final_answer builtin: it records its argument
// as the request's result without requiring a return statement. The first
// recorded value wins.
func newFinalAnswer(st *runState) *starlark.Builtin {
	return starlark.NewBuiltin(finalAnswerName, func(_ *starlark.Thread, _ *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
		var v starlark.Value
		if err := starlark.UnpackPositionalArgs(finalAnswerName, args, kwargs, 1, &v); err != nil {
			return nil, err
		}
		st.setFinalAnswer(v)
		return starlark.None, nil
	})
}

// newParallel returns the parallel combinator. Given (tool_name, args...)
// tuples it invokes each tool as an independent concurrent call and returns
// their results as a list in input order, regardless of completion order.
// The first failure cancels the remaining calls.
func newParallel(st *runState) *starlark.Builtin {
	return starlark.NewBuiltin(parallelName, func(_ *starlark.Thread, _ *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
		if len(kwargs) > 0 {
			return nil, fmt.Errorf("%s: unexpected keyword arguments", parallelName)
		}

		type toolCall struct {
			name string
			args []any
		}
		calls := make([]toolCall, len(args))
		for i, arg := range args {
			seq, ok := arg.(starlark.Indexable)
			if !ok || seq.Len() == 0 {
				return nil, fmt.Errorf("%s: argument %d must be a (tool_name, args...) tuple", parallelName, i+1)
			}
			name, err := toolName(seq.Index(0))
			if err != nil {
				return nil, fmt.Errorf("%s: argument %d: %w", parallelName, i+1, err)
			}
			goArgs := make([]any, 0, seq.Len()-1)
			for j := 1; j < seq.Len(); j++ {
				gv, err := toGo(seq.Index(j))
				if err != nil {
					return nil, fmt.Errorf("%s: argument %d: %w", parallelName, i+1, err)
				}
				goArgs = append(goArgs, gv)
			}
			calls[i] = toolCall{name: name, args: goArgs}
		}

		if err := st.ctx.Err(); err != nil {
			return nil, err
		}

		results := make([]starlark.Value, len(calls))
		g, gctx := errgroup.WithContext(st.ctx)
		for i, call := range calls {
			g.Go(func() error {
				raw, err := st.invoker.Invoke(gctx, call.name, call.args...)
				if err != nil {
					return fmt.Errorf("tool %s: %w", call.name, err)
				}
				sv, err := toStarlark(raw)
				if err != nil {
					return fmt.Errorf("tool %s: %w", call.name, err)
				}
				results[i] = sv
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}

		return starlark.NewList(results), nil
	})
}

// toolName extracts a tool name from either a string or a proxy callable,
// so scripts can write parallel(("search", q)) or parallel((search, q)).
func toolName(v starlark.Value) (string, error) {
	switch t := v.(type) {
	case starlark.String:
		return string(t), nil
	case *starlark.Builtin:
		return t.Name(), nil
	}
	return "", fmt.Errorf("tool name must be a string or tool, got %s", v.Type())
}

// tupleToGo converts positional Starlark arguments to Go values.
func tupleToGo(args starlark.Tuple) ([]any, error) {
	out := make([]any, len(args))
	for i, arg := range args {
		gv, err := toGo(arg)
		if err != nil {
			return nil, fmt.Errorf("argument %d: %w", i+1, err)
		}
		out[i] = gv
	}
	return out, nil
}
