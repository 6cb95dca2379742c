package compiler

import (
	"testing"

	"github.com/nalgeon/be"
)

func TestASTLinks(t *testing.T) {
	a := NewAST()
	add := a.NewOperation(OpAdd, 1)
	two := a.NewConstant(IntConst(2), 1)
	three := a.NewConstant(IntConst(3), 1)
	a.Link(add, two, three)
	a.SetRoot(add)

	be.Equal(t, a.Len(), 3)
	be.Equal(t, a.Node(two).Parent, add)
	be.Equal(t, a.Node(three).Parent, add)
	be.Equal(t, a.Node(add).Parent, NoNode)
	be.Err(t, a.Validate(), nil)
}

func TestASTWalkIsPostOrder(t *testing.T) {
	a := NewAST()
	mul := a.NewOperation(OpMul, 1)
	add := a.NewOperation(OpAdd, 1)
	x := a.NewVariable("x", 1)
	one := a.NewConstant(IntConst(1), 1)
	y := a.NewVariable("y", 1)
	a.Link(add, x, one)
	a.Link(mul, add, y)
	a.SetRoot(mul)

	var order []NodeID
	a.Walk(a.Root(), func(id NodeID) { order = append(order, id) })
	be.Equal(t, order, []NodeID{x, one, add, y, mul})
}

func TestASTDetach(t *testing.T) {
	a := NewAST()
	assign := a.NewOperation(OpAssign, 1)
	x := a.NewVariable("x", 1)
	v := a.NewConstant(IntConst(7), 1)
	a.Link(assign, x, v)
	a.SetRoot(assign)

	a.Detach(v)
	be.Equal(t, a.Node(assign).Right, NoNode)
	be.Equal(t, a.Node(v).Parent, NoNode)
	be.Equal(t, a.Node(assign).Left, x)
	be.Err(t, a.Validate(), nil)

	a.Detach(assign)
	be.Equal(t, a.Root(), NoNode)
}

func TestASTValidateCatchesBrokenLink(t *testing.T) {
	a := NewAST()
	s := a.NewOperation(OpSentinel, 1)
	x := a.NewVariable("x", 1)
	a.SetLeft(s, x)
	a.SetRoot(s)

	// Point x at a parent that does not hold it.
	other := a.NewOperation(OpSentinel, 1)
	a.Node(x).Parent = other
	be.True(t, a.Validate() != nil)
}

func TestASTStatements(t *testing.T) {
	toks, err := Lex("int a; a = 1; print(a);")
	be.Err(t, err, nil)
	tree, err := Parse(toks, "")
	be.Err(t, err, nil)

	stmts := tree.Statements(tree.Root())
	be.Equal(t, len(stmts), 3)
	be.Equal(t, tree.Node(stmts[0]).Payload, Payload(Declaration{Type: INT}))
	be.True(t, tree.Node(stmts[1]).IsOp(OpAssign))
	be.True(t, tree.Node(stmts[2]).IsOp(OpPrint))
}

func TestASTString(t *testing.T) {
	toks, err := Lex("int x = 2 + 3;")
	be.Err(t, err, nil)
	tree, err := Parse(toks, "")
	be.Err(t, err, nil)

	want := "Sentinel\n" +
		"  L: Declaration(int)\n" +
		"    R: Assign\n" +
		"      L: Variable(x)\n" +
		"      R: Add\n" +
		"        L: Constant(2)\n" +
		"        R: Constant(3)\n"
	be.Equal(t, tree.String(), want)
}
