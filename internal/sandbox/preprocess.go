// Package sandbox implements the capability-restricted Starlark execution
// engine: it rewrites freshly generated script fragments for safety,
// executes them against a closed namespace with a complexity-derived
// timeout, and returns a normalized JSON-safe result or a classified error.
package sandbox

import (
	"fmt"
	"log/slog"
	"strings"

	"go.starlark.net/syntax"
)

// Script is a parsed and preprocessed script fragment. The syntax tree is
// owned by the preprocessing pipeline for the duration of one request and
// is never shared across requests.
type Script struct {
	File *syntax.File

	// Calls is the complexity metric: the number of call expressions in
	// the tree as parsed, before any rewrite. All downstream policy
	// (ceiling, timeout) uses this value unchanged.
	Calls int

	// ToolCalls lists the names of marked capability call sites in source
	// order. These are the script's designated suspension points.
	ToolCalls []string
}

// fileOptions returns the dialect options for parsing generated scripts.
// Generated fragments use loops, sets, and top-level control flow freely,
// so the permissive dialect is enabled.
func fileOptions() *syntax.FileOptions {
	return &syntax.FileOptions{
		Set:             true,
		While:           true,
		TopLevelControl: true,
		GlobalReassign:  true,
		Recursion:       true,
	}
}

// Preprocess normalizes and parses raw script text. It dedents the source,
// repairs unbalanced triple-quoted strings, parses it into a syntax tree,
// and computes the complexity metric. Rewrites are applied separately so
// the complexity ceiling can be enforced before any further work.
func Preprocess(logger *slog.Logger, src string) (*Script, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	// Dedent before trimming: trimming first would strip the first line's
	// indentation and leave the rest of a uniformly indented fragment
	// misaligned.
	cleaned := strings.TrimSpace(dedent(src))
	cleaned = repairTripleQuotes(logger, cleaned)

	f, err := fileOptions().Parse("<script>", cleaned, 0)
	if err != nil {
		return nil, err
	}

	return &Script{
		File:  f,
		Calls: countCalls(f),
	}, nil
}

// dedent removes the longest common leading whitespace from all non-blank
// lines, mirroring how generated fragments arrive indented inside a larger
// prompt body.
func dedent(s string) string {
	lines := strings.Split(s, "\n")

	margin := -1
	for _, line := range lines {
		trimmed := strings.TrimLeft(line, " \t")
		if trimmed == "" {
			continue
		}
		indent := len(line) - len(trimmed)
		if margin < 0 || indent < margin {
			margin = indent
		}
	}
	if margin <= 0 {
		return s
	}

	for i, line := range lines {
		if len(line) >= margin && strings.TrimLeft(line[:margin], " \t") == "" {
			lines[i] = line[margin:]
		} else {
			lines[i] = strings.TrimLeft(line, " \t")
		}
	}
	return strings.Join(lines, "\n")
}

// repairTripleQuotes appends a closing delimiter when the script contains an
// odd number of triple-quote delimiters. This is best-effort recovery for a
// common generation truncation; beyond closing the string it never changes
// semantics.
func repairTripleQuotes(logger *slog.Logger, src string) string {
	if strings.Count(src, `"""`)%2 != 0 {
		logger.Warn("repairing unterminated triple-quoted string")
		return src + "\n\"\"\""
	}
	return src
}

// countCalls counts every call expression in the tree.
func countCalls(f *syntax.File) int {
	n := 0
	for _, stmt := range f.Stmts {
		syntax.Walk(stmt, func(node syntax.Node) bool {
			if _, ok := node.(*syntax.CallExpr); ok {
				n++
			}
			return true
		})
	}
	return n
}

// StripKeywordArgs converts every call expression's named arguments into
// positional arguments in order of appearance, discarding the names.
// Generated scripts are inconsistent about keyword-vs-positional style;
// normalizing avoids spurious signature mismatches against tool proxies.
func StripKeywordArgs(f *syntax.File) {
	for _, stmt := range f.Stmts {
		syntax.Walk(stmt, func(node syntax.Node) bool {
			call, ok := node.(*syntax.CallExpr)
			if !ok {
				return true
			}
			var positional, named []syntax.Expr
			for _, arg := range call.Args {
				if bin, ok := arg.(*syntax.BinaryExpr); ok && bin.Op == syntax.EQ {
					if _, ok := bin.X.(*syntax.Ident); ok {
						named = append(named, bin.Y)
						continue
					}
				}
				positional = append(positional, arg)
			}
			call.Args = append(positional, named...)
			return true
		})
	}
}

// MarkToolCalls records every call site whose callee is a registered tool
// name. These are the script's suspension points: the corresponding proxy
// builtins check the request's cancellation token around each invocation.
func MarkToolCalls(s *Script, tools map[string]bool) {
	var marked []string
	for _, stmt := range s.File.Stmts {
		syntax.Walk(stmt, func(node syntax.Node) bool {
			call, ok := node.(*syntax.CallExpr)
			if !ok {
				return true
			}
			if ident, ok := call.Fn.(*syntax.Ident); ok && tools[ident.Name] {
				marked = append(marked, ident.Name)
			}
			return true
		})
	}
	s.ToolCalls = marked
}

// ValidateComplexity enforces the hard call-count ceiling. It has no side
// effects: no capability is constructed or invoked when it fails.
func ValidateComplexity(s *Script, max int) error {
	if s.Calls > max {
		return &ClassifiedError{
			Kind:    ErrValidation,
			Message: fmt.Sprintf("Too many function calls (%d > %d). Break the task into smaller steps.", s.Calls, max),
		}
	}
	return nil
}
