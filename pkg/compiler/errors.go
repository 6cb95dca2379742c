package compiler

import (
	"errors"
	"fmt"
)

// ErrUndeclared is wrapped by every CodegenError caused by a failed symbol lookup.
var ErrUndeclared = errors.New("undeclared identifier")

// SyntaxError is the single fatal error a parse can produce.
type SyntaxError struct {
	Line    int
	Msg     string
	Excerpt string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("line %d: %s\n  |> %s", e.Line, e.Msg, e.Excerpt)
}

// CodegenError reports a semantic failure found while walking the AST.
type CodegenError struct {
	Line int
	Msg  string
	Err  error
}

func (e *CodegenError) Error() string {
	return fmt.Sprintf("line %d: %s", e.Line, e.Msg)
}

func (e *CodegenError) Unwrap() error { return e.Err }
