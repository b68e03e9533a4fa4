package sandbox

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"go.starlark.net/resolve"
	"go.starlark.net/starlark"
	"go.starlark.net/syntax"
)

// ErrorKind is the stable classification of a failure mode. Every failure
// path maps to exactly one kind; none is silently swallowed.
type ErrorKind string

const (
	ErrStructural       ErrorKind = "StructuralError"
	ErrValidation       ErrorKind = "ValidationError"
	ErrTimeout          ErrorKind = "TimeoutError"
	ErrUnboundReference ErrorKind = "UnboundReferenceError"
	ErrUnknownSymbol    ErrorKind = "UnknownSymbolError"
	ErrArgument         ErrorKind = "ArgumentError"
	ErrAttributeAccess  ErrorKind = "AttributeAccessError"
	ErrGenericRuntime   ErrorKind = "GenericRuntimeError"
)

// ClassifiedError is a failure mapped to a stable kind with an actionable
// message and the raw diagnostic trace.
type ClassifiedError struct {
	Kind      ErrorKind
	Message   string
	Traceback string
	cause     error
}

func (e *ClassifiedError) Error() string { return e.Message }
func (e *ClassifiedError) Unwrap() error { return e.cause }

// browserTools is the optional browser-automation capability group. A
// reference to one of these names when the provider is not registered gets
// a dedicated hint, since the usual cause is that the browser tool server
// is simply not running.
var browserTools = map[string]bool{
	"open_tab":               true,
	"search_google":          true,
	"input_text_by_index":    true,
	"click_element_by_index": true,
}

var (
	unboundRe   = regexp.MustCompile(`(?:local|global) variable (\w+) referenced before assignment`)
	undefinedRe = regexp.MustCompile(`undefined: (\w+)`)
	attrRe      = regexp.MustCompile(`has no \.(\w+)`)
)

// Classify maps any raised condition to a ClassifiedError. Already
// classified errors pass through unchanged.
func Classify(err error) *ClassifiedError {
	var ce *ClassifiedError
	if errors.As(err, &ce) {
		return ce
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return &ClassifiedError{Kind: ErrTimeout, Message: "Execution timed out", cause: err}
	}

	var syntaxErr syntax.Error
	if errors.As(err, &syntaxErr) {
		return &ClassifiedError{Kind: ErrStructural, Message: syntaxErr.Msg, cause: err}
	}

	var resolveList resolve.ErrorList
	if errors.As(err, &resolveList) && len(resolveList) > 0 {
		return classifyResolve(resolveList[0], err)
	}
	var resolveErr resolve.Error
	if errors.As(err, &resolveErr) {
		return classifyResolve(resolveErr, err)
	}

	var evalErr *starlark.EvalError
	if errors.As(err, &evalErr) {
		return classifyEval(evalErr)
	}

	return &ClassifiedError{
		Kind:    ErrGenericRuntime,
		Message: genericHint(err.Error()),
		cause:   err,
	}
}

func classifyResolve(re resolve.Error, cause error) *ClassifiedError {
	if m := undefinedRe.FindStringSubmatch(re.Msg); m != nil {
		return &ClassifiedError{
			Kind:    ErrUnknownSymbol,
			Message: unknownSymbolHint(m[1], re.Msg),
			cause:   cause,
		}
	}
	return &ClassifiedError{Kind: ErrStructural, Message: re.Msg, cause: cause}
}

func classifyEval(evalErr *starlark.EvalError) *ClassifiedError {
	msg := evalErr.Msg
	trace := evalErr.Backtrace()

	switch {
	case strings.Contains(msg, "cancelled"):
		return &ClassifiedError{Kind: ErrTimeout, Message: "Execution timed out", Traceback: trace, cause: evalErr}

	case unboundRe.MatchString(msg):
		name := unboundRe.FindStringSubmatch(msg)[1]
		hint := fmt.Sprintf(
			"Variable %q was accessed before being assigned a value. "+
				"This usually means a tool call failed and its result was not checked before use, "+
				"or the assignment sits inside a conditional that did not execute. "+
				"Fix: check each tool result for errors before relying on variables derived from it.",
			name)
		return &ClassifiedError{
			Kind:      ErrUnboundReference,
			Message:   fmt.Sprintf("%s\n\nOriginal error: %s", hint, msg),
			Traceback: trace,
			cause:     evalErr,
		}

	case undefinedRe.MatchString(msg):
		name := undefinedRe.FindStringSubmatch(msg)[1]
		return &ClassifiedError{
			Kind:      ErrUnknownSymbol,
			Message:   unknownSymbolHint(name, msg),
			Traceback: trace,
			cause:     evalErr,
		}

	case attrRe.MatchString(msg):
		attr := attrRe.FindStringSubmatch(msg)[1]
		hint := fmt.Sprintf(
			"Attribute %q was accessed on a value that does not have it. "+
				"This often happens when extracting data from dynamic content: the structure changed, "+
				"the content has not loaded, or the value is None. "+
				"Fix strategies: check the value before accessing fields, extract raw text first and "+
				"parse patterns from it, or fetch the full page content and inspect its actual shape.",
			attr)
		return &ClassifiedError{
			Kind:      ErrAttributeAccess,
			Message:   fmt.Sprintf("%s\n\nOriginal error: %s", hint, msg),
			Traceback: trace,
			cause:     evalErr,
		}

	case isArgumentMismatch(msg):
		return &ClassifiedError{
			Kind: ErrArgument,
			Message: fmt.Sprintf(
				"Argument mismatch on a call.\n%s\n\nFix: check the callee's expected arguments and provide them in the correct order.",
				msg),
			Traceback: trace,
			cause:     evalErr,
		}
	}

	return &ClassifiedError{
		Kind:      ErrGenericRuntime,
		Message:   genericHint(msg),
		Traceback: trace,
		cause:     evalErr,
	}
}

func isArgumentMismatch(msg string) bool {
	if strings.Contains(msg, "unexpected keyword argument") {
		return true
	}
	if strings.Contains(msg, "argument") && (strings.Contains(msg, "given") ||
		strings.Contains(msg, "want") || strings.Contains(msg, "got")) {
		return true
	}
	return strings.Contains(msg, "expects") && strings.Contains(msg, "args")
}

func unknownSymbolHint(name, msg string) string {
	if browserTools[name] {
		return fmt.Sprintf(
			"%s\n\nBrowser tools are not available. Make sure the browser tool provider is running and registered before retrying.",
			msg)
	}
	return fmt.Sprintf(
		"%s\n\nThis usually means a function, tool, or variable name is misspelled or not defined.",
		msg)
}

func genericHint(msg string) string {
	lower := strings.ToLower(msg)
	if strings.Contains(lower, "executable doesn't exist") ||
		strings.Contains(lower, "executable file not found") ||
		strings.Contains(lower, "connection refused") ||
		strings.Contains(lower, "no such host") {
		return fmt.Sprintf(
			"%s\n\nAn external runtime dependency appears to be missing or unreachable. "+
				"Check that the tool provider and its runtime (e.g. the browser executable) are installed and running.",
			msg)
	}
	if strings.Contains(lower, "tool") {
		return fmt.Sprintf(
			"%s\n\nThis might be a tool execution error. Check that the tool name is correct, "+
				"the arguments match the tool's expected format, and the tool returned valid data.",
			msg)
	}
	return msg
}
