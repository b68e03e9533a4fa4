package sandbox

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/leapstack-labs/scriptbox/internal/session"
	"github.com/leapstack-labs/scriptbox/pkg/core"
	"go.starlark.net/starlark"
)

const (
	// DefaultSessionID scopes persisted variables when the caller does not
	// supply a session id.
	DefaultSessionID = "default_session"

	// MaxCalls is the hard complexity ceiling: scripts with more call
	// expressions are rejected before any capability work happens.
	MaxCalls = 20

	// secondsPerCall sizes the execution budget from the complexity metric.
	secondsPerCall = 50

	// minTimeout is the floor of the execution budget.
	minTimeout = 3 * time.Second
)

// Request is one script execution request.
type Request struct {
	Script    string `json:"script"`
	SessionID string `json:"session_id"`
}

// Response is the process-boundary envelope. Exactly one response is
// produced per request; it is never partially returned.
type Response struct {
	Status        string         `json:"status"`
	Result        map[string]any `json:"result,omitempty"`
	Error         string         `json:"error,omitempty"`
	ErrorKind     string         `json:"error_kind,omitempty"`
	Traceback     string         `json:"traceback,omitempty"`
	ExecutionTime string         `json:"execution_time"`
	TotalTime     string         `json:"total_time"`
}

// StatusSuccess and StatusError are the two envelope states.
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// Config holds engine configuration.
type Config struct {
	// Invoker is the Tool Invocation Registry. Optional; without one the
	// sandbox exposes no tool proxies.
	Invoker core.Invoker
	// Sessions persists variables across runs. Defaults to an in-memory
	// store when nil.
	Sessions session.Store
	// Logger is the structured logger (optional, uses discard if nil).
	Logger *slog.Logger
}

// Engine executes sandboxed scripts. It is safe for concurrent use; each
// request gets its own namespace, syntax tree, and Starlark thread.
type Engine struct {
	invoker  core.Invoker
	sessions session.Store
	logger   *slog.Logger

	// timeoutFor derives the execution budget from the complexity metric.
	// Overridable in tests; production always uses the fixed formula.
	timeoutFor func(calls int) time.Duration
}

// New creates an engine.
func New(cfg Config) *Engine {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	sessions := cfg.Sessions
	if sessions == nil {
		sessions = session.NewMemoryStore()
	}
	invoker := cfg.Invoker
	if invoker == nil {
		invoker = noopInvoker{}
	}
	return &Engine{
		invoker:    invoker,
		sessions:   sessions,
		logger:     logger,
		timeoutFor: computeTimeout,
	}
}

// computeTimeout is the fixed budget formula: max(3, calls*50) seconds.
func computeTimeout(calls int) time.Duration {
	timeout := time.Duration(calls) * secondsPerCall * time.Second
	if timeout < minTimeout {
		return minTimeout
	}
	return timeout
}

// Execute runs one script to a single outcome. Every failure path returns a
// classified envelope; the engine never lets a script failure escape as a
// panic or crash.
func (e *Engine) Execute(ctx context.Context, req Request) Response {
	start := time.Now()
	stamp := start.Format("2006-01-02 15:04:05")

	sessionID := req.SessionID
	if sessionID == "" {
		sessionID = DefaultSessionID
	}

	if strings.TrimSpace(req.Script) == "" {
		return e.failure(&ClassifiedError{Kind: ErrValidation, Message: "script is empty"}, stamp, start)
	}

	script, err := Preprocess(e.logger, req.Script)
	if err != nil {
		return e.failure(Classify(err), stamp, start)
	}

	// Hard pre-check with zero side effects: no tool listing, no proxy
	// construction, no invocation happens past this point on rejection.
	if err := ValidateComplexity(script, MaxCalls); err != nil {
		return e.failure(Classify(err), stamp, start)
	}

	tools, err := e.invoker.Tools(ctx)
	if err != nil {
		return e.failure(Classify(fmt.Errorf("failed to list tools: %w", err)), stamp, start)
	}
	toolNames := make(map[string]bool, len(tools))
	for _, t := range tools {
		toolNames[t.Name] = true
	}

	StripKeywordArgs(script.File)
	MarkToolCalls(script, toolNames)
	NormalizeResultShape(script.File)
	WrapForExecution(script.File)

	sessionVars, err := e.sessions.Load(ctx, sessionID)
	if err != nil {
		return e.failure(Classify(fmt.Errorf("failed to load session: %w", err)), stamp, start)
	}

	timeout := e.timeoutFor(script.Calls)
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	st := &runState{ctx: runCtx, invoker: e.invoker, logger: e.logger}
	table, err := BuildCapabilityTable(st, tools, sessionVars)
	if err != nil {
		return e.failure(Classify(err), stamp, start)
	}

	prog, err := starlark.FileProgram(script.File, func(name string) bool {
		_, ok := table[name]
		return ok
	})
	if err != nil {
		return e.failure(Classify(err), stamp, start)
	}

	e.logger.Debug("executing script",
		"session_id", sessionID,
		"calls", script.Calls,
		"tool_calls", len(script.ToolCalls),
		"timeout", timeout)

	out, err := e.run(runCtx, prog, table, st)
	if err != nil {
		ce := Classify(err)
		if runCtx.Err() != nil && ce.Kind == ErrTimeout {
			ce.Message = fmt.Sprintf("Execution timed out after %.0f seconds", timeout.Seconds())
		}
		return e.failure(ce, stamp, start)
	}

	// A failed structured outcome in the raw result takes precedence over
	// the serialized string scan: it carries the tool's own error field.
	if msg, failed := failedOutcome(out); failed {
		return e.failure(&ClassifiedError{Kind: ErrGenericRuntime, Message: msg}, stamp, start)
	}

	result := serializeResult(out)

	if msg, failed := detectFailure(result); failed {
		return e.failure(&ClassifiedError{Kind: ErrGenericRuntime, Message: msg}, stamp, start)
	}

	if err := e.sessions.Save(ctx, sessionID, result); err != nil {
		e.logger.Warn("failed to save session variables", "session_id", sessionID, "error", err)
	}

	return Response{
		Status:        StatusSuccess,
		Result:        result,
		ExecutionTime: stamp,
		TotalTime:     elapsedSeconds(start),
	}
}

// run executes the compiled program as a single logical unit of work,
// cancelling the Starlark thread when the budget elapses. Cancellation is
// cooperative: tool proxies unwind at their suspension points, and the
// interpreter stops pure computation at its next safe point, so a runaway
// loop cannot outlive the budget.
func (e *Engine) run(ctx context.Context, prog *starlark.Program, table starlark.StringDict, st *runState) (starlark.Value, error) {
	thread := &starlark.Thread{
		Name: "scriptbox",
		Print: func(_ *starlark.Thread, msg string) {
			e.logger.Debug("script print", "msg", msg)
		},
	}

	watchDone := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			thread.Cancel("timeout")
		case <-watchDone:
		}
	}()

	globals, err := prog.Init(thread, table)
	close(watchDone)

	if err != nil {
		if ctx.Err() != nil {
			return nil, &ClassifiedError{Kind: ErrTimeout, Message: "Execution timed out", cause: err}
		}
		return nil, err
	}

	out := globals[resultVarName]
	if out == nil || out == starlark.None {
		if fa := st.finalAnswerValue(); fa != nil {
			out = fa
		}
	}
	if out == nil {
		out = starlark.None
	}
	return out, nil
}

func (e *Engine) failure(ce *ClassifiedError, stamp string, start time.Time) Response {
	e.logger.Debug("script failed", "kind", string(ce.Kind), "error", ce.Message)
	return Response{
		Status:        StatusError,
		Error:         ce.Message,
		ErrorKind:     string(ce.Kind),
		Traceback:     ce.Traceback,
		ExecutionTime: stamp,
		TotalTime:     elapsedSeconds(start),
	}
}

func elapsedSeconds(start time.Time) string {
	return strconv.FormatFloat(time.Since(start).Seconds(), 'f', 3, 64)
}

// noopInvoker is the registry used when none is configured: no tools exist
// and any invocation fails.
type noopInvoker struct{}

func (noopInvoker) Tools(context.Context) ([]core.ToolInfo, error) { return nil, nil }

func (noopInvoker) Invoke(_ context.Context, name string, _ ...any) (any, error) {
	return nil, fmt.Errorf("no tool registry configured: cannot invoke %q", name)
}
