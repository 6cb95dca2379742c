package compiler

import (
	"github.com/ztrue/tracerr"

	"stackcc/pkg/asm"
)

// Result holds every artifact of one compilation.
type Result struct {
	Tokens   []Token
	AST      *AST
	Assembly string
	Program  *asm.Program
	Symbols  string   // global scope dump taken before the table is closed
	Warnings []string // non-fatal diagnostics such as duplicate declarations
}

// Compile runs src through every stage. It stops at the first error, and
// the returned Result then carries only the artifacts of the stages that
// completed. Errors are wrapped with a stack trace; tracerr.Unwrap returns
// the *SyntaxError, *CodegenError or *asm.Error underneath.
func Compile(src string) (*Result, error) {
	res := &Result{}

	tokens, err := Lex(src)
	if err != nil {
		return res, tracerr.Wrap(err)
	}
	res.Tokens = tokens

	tree, err := Parse(tokens, src)
	if err != nil {
		return res, tracerr.Wrap(err)
	}
	res.AST = tree

	syms := NewSymbolTable()
	assembly, err := Generate(tree, syms)
	res.Warnings = syms.Warnings()
	res.Symbols = syms.String()
	syms.Close()
	if err != nil {
		return res, tracerr.Wrap(err)
	}
	res.Assembly = assembly

	prog, err := asm.Assemble(assembly)
	if err != nil {
		return res, tracerr.Wrap(err)
	}
	res.Program = prog
	return res, nil
}
