package compiler

import (
	"fmt"
	"strings"
)

// NodeID addresses a node inside an AST arena.
type NodeID int

// NoNode marks an absent child or the parent of the root.
const NoNode NodeID = -1

// Op tags an Operation node.
type Op int

const (
	OpSentinel Op = iota // statement-list cell: left = statement, right = next cell
	OpAssign
	OpAdd
	OpSub
	OpMul
	OpDiv
	OpLess
	OpGreater
	OpLessEq
	OpGreaterEq
	OpEqual
	OpNotEqual
	OpAnd
	OpOr
	OpCall
	OpIf
	OpElse
	OpWhile
	OpReturn
	OpPrint
	OpInput
	OpBreak
)

var opNames = [...]string{
	OpSentinel:  "Sentinel",
	OpAssign:    "Assign",
	OpAdd:       "Add",
	OpSub:       "Sub",
	OpMul:       "Mul",
	OpDiv:       "Div",
	OpLess:      "Less",
	OpGreater:   "Greater",
	OpLessEq:    "LessEq",
	OpGreaterEq: "GreaterEq",
	OpEqual:     "Equal",
	OpNotEqual:  "NotEqual",
	OpAnd:       "And",
	OpOr:        "Or",
	OpCall:      "Call",
	OpIf:        "If",
	OpElse:      "Else",
	OpWhile:     "While",
	OpReturn:    "Return",
	OpPrint:     "Print",
	OpInput:     "Input",
	OpBreak:     "Break",
}

func (o Op) String() string {
	if int(o) >= 0 && int(o) < len(opNames) {
		return opNames[o]
	}
	return fmt.Sprintf("Op(%d)", int(o))
}

// Payload is the kind-specific part of a node. The set of
// implementations is closed: Declaration, Operation, Variable, Constant.
type Payload interface {
	payload()
	String() string
}

// Declaration introduces a variable, parameter or function of Type.
//
//	int x = 1;
//	^^^  Declaration{Type: INT}
type Declaration struct {
	Type TokenType
}

// Operation is an operator, a statement form or a Sentinel list cell.
type Operation struct {
	Op Op
}

// Variable names a symbol.
type Variable struct {
	Name string
}

// Constant is a numeric literal.
type Constant struct {
	Value Value
}

func (Declaration) payload() {}
func (Operation) payload()   {}
func (Variable) payload()    {}
func (Constant) payload()    {}

func (d Declaration) String() string { return "Declaration(" + strings.ToLower(d.Type.String()) + ")" }
func (o Operation) String() string   { return o.Op.String() }
func (v Variable) String() string    { return fmt.Sprintf("Variable(%s)", v.Name) }
func (c Constant) String() string    { return fmt.Sprintf("Constant(%s)", c.Value) }

// Node is one arena slot.
type Node struct {
	Payload Payload
	Left    NodeID
	Right   NodeID
	Parent  NodeID
	Line    int
}

// IsOp reports whether n is an Operation tagged op.
func (n *Node) IsOp(op Op) bool {
	o, ok := n.Payload.(Operation)
	return ok && o.Op == op
}

// AST owns every node of one parsed program.
type AST struct {
	nodes []Node
	root  NodeID
}

func NewAST() *AST {
	return &AST{root: NoNode}
}

func (a *AST) add(p Payload, line int) NodeID {
	a.nodes = append(a.nodes, Node{Payload: p, Left: NoNode, Right: NoNode, Parent: NoNode, Line: line})
	return NodeID(len(a.nodes) - 1)
}

func (a *AST) NewDeclaration(t TokenType, line int) NodeID {
	return a.add(Declaration{Type: t}, line)
}

func (a *AST) NewOperation(op Op, line int) NodeID {
	return a.add(Operation{Op: op}, line)
}

func (a *AST) NewVariable(name string, line int) NodeID {
	return a.add(Variable{Name: name}, line)
}

func (a *AST) NewConstant(v Value, line int) NodeID {
	return a.add(Constant{Value: v}, line)
}

// Node returns the node stored at id. It panics on NoNode.
func (a *AST) Node(id NodeID) *Node {
	return &a.nodes[id]
}

func (a *AST) Root() NodeID { return a.root }

func (a *AST) SetRoot(id NodeID) {
	a.root = id
	if id != NoNode {
		a.nodes[id].Parent = NoNode
	}
}

// Len is the number of nodes allocated in the arena.
func (a *AST) Len() int { return len(a.nodes) }

func (a *AST) SetLeft(parent, child NodeID) {
	a.nodes[parent].Left = child
	if child != NoNode {
		a.nodes[child].Parent = parent
	}
}

func (a *AST) SetRight(parent, child NodeID) {
	a.nodes[parent].Right = child
	if child != NoNode {
		a.nodes[child].Parent = parent
	}
}

// Link attaches both children of parent.
func (a *AST) Link(parent, left, right NodeID) NodeID {
	a.SetLeft(parent, left)
	a.SetRight(parent, right)
	return parent
}

// Detach unhooks id from its parent. The subtree stays in the arena but is
// no longer reachable from the root.
func (a *AST) Detach(id NodeID) {
	n := &a.nodes[id]
	if n.Parent == NoNode {
		if a.root == id {
			a.root = NoNode
		}
		return
	}
	p := &a.nodes[n.Parent]
	switch id {
	case p.Left:
		p.Left = NoNode
	case p.Right:
		p.Right = NoNode
	}
	n.Parent = NoNode
}

// Walk visits the subtree under id children first.
func (a *AST) Walk(id NodeID, fn func(NodeID)) {
	if id == NoNode {
		return
	}
	n := a.nodes[id]
	a.Walk(n.Left, fn)
	a.Walk(n.Right, fn)
	fn(id)
}

// Validate checks that every node reachable from the root is linked from
// its parent's left or right field.
func (a *AST) Validate() error {
	var err error
	a.Walk(a.root, func(id NodeID) {
		if err != nil {
			return
		}
		n := a.nodes[id]
		if n.Parent == NoNode {
			if id != a.root {
				err = fmt.Errorf("node %d (%s) has no parent", id, n.Payload)
			}
			return
		}
		p := a.nodes[n.Parent]
		if p.Left != id && p.Right != id {
			err = fmt.Errorf("node %d (%s) is not a child of its parent %d", id, n.Payload, n.Parent)
		}
	})
	return err
}

// Statements returns the statement nodes of the Sentinel chain starting at
// head. The walk stops at the first right link that is not a Sentinel.
func (a *AST) Statements(head NodeID) []NodeID {
	var out []NodeID
	for id := head; id != NoNode && a.nodes[id].IsOp(OpSentinel); id = a.nodes[id].Right {
		if l := a.nodes[id].Left; l != NoNode {
			out = append(out, l)
		}
	}
	return out
}

// lastSentinel follows the right links of a Sentinel chain to its final cell.
func (a *AST) lastSentinel(head NodeID) NodeID {
	id := head
	for {
		r := a.nodes[id].Right
		if r == NoNode || !a.nodes[r].IsOp(OpSentinel) {
			return id
		}
		id = r
	}
}

// String renders the tree one node per line, children indented under
// their parent with an L/R marker.
func (a *AST) String() string {
	var sb strings.Builder
	a.dump(&sb, a.root, "", "")
	return sb.String()
}

func (a *AST) dump(sb *strings.Builder, id NodeID, indent, side string) {
	if id == NoNode {
		return
	}
	n := a.nodes[id]
	fmt.Fprintf(sb, "%s%s%s\n", indent, side, n.Payload)
	a.dump(sb, n.Left, indent+"  ", "L: ")
	a.dump(sb, n.Right, indent+"  ", "R: ")
}
