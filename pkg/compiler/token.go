package compiler

import (
	"fmt"
	"strconv"
)

// TokenType identifies the category of a lexed token.
type TokenType int

const (
	EOF TokenType = iota // sentinel: end of input

	// Literals
	IDENTIFIER // variable / function name
	NUMBER     // integer or double constant

	// Type keywords
	SHORT  // "short"
	INT    // "int"
	LONG   // "long"
	DOUBLE // "double"
	CHAR   // "char"
	VOID   // "void"

	// Value keywords
	TRUE  // "true"
	FALSE // "false"
	INPUT // "input"
	PRINT // "print"

	// Statement keywords
	IF     // "if"
	ELSE   // "else"
	WHILE  // "while"
	BREAK  // "break"
	RETURN // "return"

	// Punctuation
	COMMA     // ,
	SEMICOLON // ;
	LPAREN    // (
	RPAREN    // )
	LBRACE    // {
	RBRACE    // }
	LBRACKET  // [
	RBRACKET  // ]

	// Arithmetic operators
	PLUS  // +
	MINUS // -
	STAR  // *
	SLASH // /

	// Comparison
	LESS       // <
	GREATER    // >
	LESS_EQ    // <=
	GREATER_EQ // >=
	EQUALS     // ==
	NOT_EQ     // !=

	AND_LOGICAL // &&
	OR_LOGICAL  // ||

	ASSIGN // =
)

var tokenNames = [...]string{
	EOF:         "EOF",
	IDENTIFIER:  "IDENTIFIER",
	NUMBER:      "NUMBER",
	SHORT:       "SHORT",
	INT:         "INT",
	LONG:        "LONG",
	DOUBLE:      "DOUBLE",
	CHAR:        "CHAR",
	VOID:        "VOID",
	TRUE:        "TRUE",
	FALSE:       "FALSE",
	INPUT:       "INPUT",
	PRINT:       "PRINT",
	IF:          "IF",
	ELSE:        "ELSE",
	WHILE:       "WHILE",
	BREAK:       "BREAK",
	RETURN:      "RETURN",
	COMMA:       "COMMA",
	SEMICOLON:   "SEMICOLON",
	LPAREN:      "LPAREN",
	RPAREN:      "RPAREN",
	LBRACE:      "LBRACE",
	RBRACE:      "RBRACE",
	LBRACKET:    "LBRACKET",
	RBRACKET:    "RBRACKET",
	PLUS:        "PLUS",
	MINUS:       "MINUS",
	STAR:        "STAR",
	SLASH:       "SLASH",
	LESS:        "LESS",
	GREATER:     "GREATER",
	LESS_EQ:     "LESS_EQ",
	GREATER_EQ:  "GREATER_EQ",
	EQUALS:      "EQUALS",
	NOT_EQ:      "NOT_EQ",
	AND_LOGICAL: "AND_LOGICAL",
	OR_LOGICAL:  "OR_LOGICAL",
	ASSIGN:      "ASSIGN",
}

func (tt TokenType) String() string {
	if int(tt) >= 0 && int(tt) < len(tokenNames) {
		return tokenNames[tt]
	}
	return fmt.Sprintf("TokenType(%d)", int(tt))
}

// IsType reports whether tt names a declarable data type.
func (tt TokenType) IsType() bool {
	return tt >= SHORT && tt <= VOID
}

// ValueKind tells which field of a Value is meaningful.
type ValueKind int

const (
	IntValue ValueKind = iota
	DoubleValue
)

// Value is a typed numeric constant carried by NUMBER tokens and Constant nodes.
type Value struct {
	Kind   ValueKind
	Int    int32
	Double float64
}

func IntConst(v int32) Value { return Value{Kind: IntValue, Int: v} }

func (v Value) String() string {
	if v.Kind == DoubleValue {
		return strconv.FormatFloat(v.Double, 'g', -1, 64)
	}
	return strconv.Itoa(int(v.Int))
}

// Token is a single lexical unit produced by the Lexer.
type Token struct {
	Type   TokenType
	Lexeme string // the exact source text that was matched
	Line   int    // 1-based source line
	Value  Value  // NUMBER only
}

func (t Token) String() string {
	return fmt.Sprintf("%-10s %-14q  line %d", t.Type, t.Lexeme, t.Line)
}
