package sandbox

import (
	"strconv"

	"go.starlark.net/syntax"
)

// Names synthesized by the execution wrapper. The leading underscores keep
// them out of collision range of generated scripts, and the resolver treats
// them as ordinary module globals.
const (
	mainFuncName   = "_scriptbox_main"
	resultVarName  = "_scriptbox_out"
	resultConvName = "result"
)

// NormalizeResultShape rewrites the tree's top-level statements so the
// wrapped function's outcome is always a named mapping:
//
//   - `return x` for a bare identifier becomes `return {"x": x}`
//   - any other return form passes through unchanged
//   - when no top-level return exists but `result` is assigned at the top
//     level, a trailing `return result` is appended
//
// The rewrites are purely structural; evaluation order is untouched and no
// calls are introduced.
func NormalizeResultShape(f *syntax.File) {
	returnFound := false
	resultAssigned := false

	for i, stmt := range f.Stmts {
		switch st := stmt.(type) {
		case *syntax.ReturnStmt:
			returnFound = true
			if ident, ok := st.Result.(*syntax.Ident); ok {
				f.Stmts[i] = &syntax.ReturnStmt{
					Result: singletonDict(ident.Name, ident),
				}
			}
		case *syntax.AssignStmt:
			if st.Op == syntax.EQ {
				if ident, ok := st.LHS.(*syntax.Ident); ok && ident.Name == resultConvName {
					resultAssigned = true
				}
			}
		}
	}

	if !returnFound && resultAssigned {
		f.Stmts = append(f.Stmts, &syntax.ReturnStmt{
			Result: &syntax.Ident{Name: resultConvName},
		})
	}
}

// singletonDict builds the expression {"name": value}.
func singletonDict(name string, value syntax.Expr) syntax.Expr {
	return &syntax.DictExpr{
		List: []syntax.Expr{
			&syntax.DictEntry{
				Key: &syntax.Literal{
					Token: syntax.STRING,
					Raw:   strconv.Quote(name),
					Value: name,
				},
				Value: value,
			},
		},
	}
}

// WrapForExecution moves the file's statements into a nullary function and
// assigns its call to a module global, so the program can be compiled as a
// single logical unit of work whose result is read back from the globals:
//
//	def _scriptbox_main():
//	    <original statements>
//	_scriptbox_out = _scriptbox_main()
//
// The synthesized call is the only call the wrapper introduces.
func WrapForExecution(f *syntax.File) {
	def := &syntax.DefStmt{
		Name: &syntax.Ident{Name: mainFuncName},
		Body: f.Stmts,
	}
	assign := &syntax.AssignStmt{
		Op:  syntax.EQ,
		LHS: &syntax.Ident{Name: resultVarName},
		RHS: &syntax.CallExpr{Fn: &syntax.Ident{Name: mainFuncName}},
	}
	f.Stmts = []syntax.Stmt{def, assign}
}
