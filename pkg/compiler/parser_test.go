package compiler

import (
	"errors"
	"strings"
	"testing"

	"github.com/nalgeon/be"
)

func parse(t *testing.T, src string) *AST {
	t.Helper()
	toks, err := Lex(src)
	be.Err(t, err, nil)
	tree, err := Parse(toks, src)
	be.Err(t, err, nil)
	be.Err(t, tree.Validate(), nil)
	return tree
}

func TestParseTrees(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "Empty",
			input: "",
			want:  "Sentinel\n",
		},
		{
			name:  "Uninitialized Declaration",
			input: "long n;",
			want: "Sentinel\n" +
				"  L: Declaration(long)\n" +
				"    R: Variable(n)\n",
		},
		{
			name:  "Precedence",
			input: "x = 1 + 2 * 3;",
			want: "Sentinel\n" +
				"  L: Assign\n" +
				"    L: Variable(x)\n" +
				"    R: Add\n" +
				"      L: Constant(1)\n" +
				"      R: Mul\n" +
				"        L: Constant(2)\n" +
				"        R: Constant(3)\n",
		},
		{
			name:  "Left Associative",
			input: "x = 8 - 4 - 2;",
			want: "Sentinel\n" +
				"  L: Assign\n" +
				"    L: Variable(x)\n" +
				"    R: Sub\n" +
				"      L: Sub\n" +
				"        L: Constant(8)\n" +
				"        R: Constant(4)\n" +
				"      R: Constant(2)\n",
		},
		{
			name:  "Logic Ladder",
			input: "x = a || b && c == d < e;",
			want: "Sentinel\n" +
				"  L: Assign\n" +
				"    L: Variable(x)\n" +
				"    R: Or\n" +
				"      L: Variable(a)\n" +
				"      R: And\n" +
				"        L: Variable(b)\n" +
				"        R: Equal\n" +
				"          L: Variable(c)\n" +
				"          R: Less\n" +
				"            L: Variable(d)\n" +
				"            R: Variable(e)\n",
		},
		{
			name:  "Assignment Chain",
			input: "a = b = 4;",
			want: "Sentinel\n" +
				"  L: Assign\n" +
				"    L: Variable(a)\n" +
				"    R: Assign\n" +
				"      L: Variable(b)\n" +
				"      R: Constant(4)\n",
		},
		{
			name:  "Booleans And Input",
			input: "x = true; y = false; z = input();",
			want: "Sentinel\n" +
				"  L: Assign\n" +
				"    L: Variable(x)\n" +
				"    R: Constant(1)\n" +
				"  R: Sentinel\n" +
				"    L: Assign\n" +
				"      L: Variable(y)\n" +
				"      R: Constant(0)\n" +
				"    R: Sentinel\n" +
				"      L: Assign\n" +
				"        L: Variable(z)\n" +
				"        R: Input\n",
		},
		{
			name:  "Call Arguments",
			input: "f(1, x);",
			want: "Sentinel\n" +
				"  L: Call\n" +
				"    L: Sentinel\n" +
				"      L: Sentinel\n" +
				"        R: Variable(x)\n" +
				"      R: Constant(1)\n" +
				"    R: Variable(f)\n",
		},
		{
			name:  "Function",
			input: "int add(int a, int b) { return a + b; }",
			want: "Sentinel\n" +
				"  L: Declaration(int)\n" +
				"    R: Variable(add)\n" +
				"      L: Declaration(int)\n" +
				"        L: Declaration(int)\n" +
				"          R: Variable(b)\n" +
				"        R: Variable(a)\n" +
				"      R: Sentinel\n" +
				"        L: Return\n" +
				"          R: Add\n" +
				"            L: Variable(a)\n" +
				"            R: Variable(b)\n",
		},
		{
			name:  "Empty Function Body",
			input: "void f() { }",
			want: "Sentinel\n" +
				"  L: Declaration(void)\n" +
				"    R: Variable(f)\n" +
				"      R: Sentinel\n",
		},
		{
			name:  "While And Break",
			input: "while (1) { break; }",
			want: "Sentinel\n" +
				"  L: While\n" +
				"    L: Constant(1)\n" +
				"    R: Sentinel\n" +
				"      L: Break\n",
		},
		{
			name:  "Nested Block",
			input: "{ print(1); }",
			want: "Sentinel\n" +
				"  L: Sentinel\n" +
				"    L: Print\n" +
				"      R: Constant(1)\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tree := parse(t, tt.input)
			be.Equal(t, tree.String(), tt.want)
		})
	}
}

func TestParseIfChain(t *testing.T) {
	tree := parse(t, "if (a < b) { x = 1; } else if (a > b) { x = 2; } else { x = 3; }")

	stmts := tree.Statements(tree.Root())
	be.Equal(t, len(stmts), 1)
	first := tree.Node(stmts[0])
	be.True(t, first.IsOp(OpIf))

	// The else-if hangs off the last Sentinel of the first body.
	body := first.Right
	be.Equal(t, len(tree.Statements(body)), 1)
	elseIf := tree.Node(tree.lastSentinel(body)).Right
	be.True(t, tree.Node(elseIf).IsOp(OpIf))

	elseClause := tree.Node(tree.lastSentinel(tree.Node(elseIf).Right)).Right
	be.True(t, tree.Node(elseClause).IsOp(OpElse))
	be.Equal(t, len(tree.Statements(tree.Node(elseClause).Right)), 1)
}

func TestParseIfWithEmptyBodyAndElse(t *testing.T) {
	tree := parse(t, "if (x) { } else { print(2); }")
	ifNode := tree.Node(tree.Statements(tree.Root())[0])
	// An empty body is one empty Sentinel, and the else hangs off it.
	body := tree.Node(ifNode.Right)
	be.Equal(t, body.Left, NoNode)
	be.True(t, tree.Node(body.Right).IsOp(OpElse))
	be.Equal(t, len(tree.Statements(ifNode.Right)), 0)
}

func TestParseLines(t *testing.T) {
	tree := parse(t, "int a;\n\nprint(a);")
	stmts := tree.Statements(tree.Root())
	be.Equal(t, tree.Node(stmts[0]).Line, 1)
	be.Equal(t, tree.Node(stmts[1]).Line, 3)
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name  string
		input string
		line  int
		want  string
	}{
		{"Missing Semicolon", "int x = 1\nprint(x);", 2, "expected SEMICOLON, got PRINT"},
		{"Missing Paren", "print(1;", 1, "expected RPAREN, got SEMICOLON"},
		{"Missing Expression", "x = ;", 1, "expected expression, got SEMICOLON"},
		{"If Without Braces", "if (x) print(1);", 1, "expected LBRACE after if condition"},
		{"Unterminated Block", "{ int a;", 1, "unterminated block"},
		{"Nested Function", "int f() { int g() { return 1; } }", 1, "must be declared at top level"},
		{"Stray Token", "}", 1, "unexpected token RBRACE"},
		{"Bad Parameter", "int f(x) { }", 1, "expected parameter type"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			toks, err := Lex(tt.input)
			be.Err(t, err, nil)
			_, err = Parse(toks, tt.input)
			var syn *SyntaxError
			be.True(t, errors.As(err, &syn))
			be.Equal(t, syn.Line, tt.line)
			be.True(t, strings.Contains(syn.Msg, tt.want))
		})
	}
}

func TestParseErrorExcerpt(t *testing.T) {
	src := "int a = 1;\nint b = a +;\n"
	toks, err := Lex(src)
	be.Err(t, err, nil)
	_, err = Parse(toks, src)
	be.True(t, err != nil)
	be.Equal(t, err.Error(), "line 2: expected expression, got SEMICOLON (\";\")\n  |> int b = a +;")
}
