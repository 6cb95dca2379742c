// Package compiler turns stackcc source into stack-machine assembly text.
//
// Pipeline: source → Lex → Parse → Generate → assembly text (→ asm.Assemble)
//
// The language has integer variables, functions, if / else if / else,
// while with break, print and input. Every block runs in its own frame of
// a linked chain of activation records kept in VM memory.
package compiler
