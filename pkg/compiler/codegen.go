package compiler

import (
	"fmt"
	"strings"
)

// CodeGen walks an AST and emits stack-machine assembly text.
type CodeGen struct {
	ast  *AST
	syms *SymbolTable

	out   *strings.Builder // where line writes: main or funcs
	main  strings.Builder
	funcs strings.Builder

	// depth counts the frames opened by the tree walk. It moves in lock-step
	// with syms.Level().
	depth int

	nextIf    int
	nextWhile int
	nextBool  int
	loopStack []LoopLabel
}

// LoopLabel is the innermost enclosing while loop.
type LoopLabel struct {
	N     int
	Depth int // frame depth outside the loop body
}

func newCodeGen(ast *AST, syms *SymbolTable) *CodeGen {
	cg := &CodeGen{ast: ast, syms: syms}
	cg.out = &cg.main
	return cg
}

func (cg *CodeGen) line(format string, args ...any) {
	fmt.Fprintf(cg.out, format+"\n", args...)
}

func (cg *CodeGen) comment(format string, args ...any) {
	cg.line("    ; "+format, args...)
}

func (cg *CodeGen) label(name string) {
	cg.line(": %s", name)
}

func (cg *CodeGen) errorf(id NodeID, format string, args ...any) error {
	line := 0
	if id != NoNode {
		line = cg.ast.Node(id).Line
	}
	return &CodegenError{Line: line, Msg: fmt.Sprintf(format, args...)}
}

func (cg *CodeGen) undeclared(id NodeID, name string) error {
	return &CodegenError{Line: cg.ast.Node(id).Line, Msg: fmt.Sprintf("undeclared identifier %q", name), Err: ErrUndeclared}
}

// child returns the left or right child of id, failing when it is absent.
func (cg *CodeGen) child(id NodeID, right bool) (NodeID, error) {
	n := cg.ast.Node(id)
	c := n.Left
	side := "left"
	if right {
		c, side = n.Right, "right"
	}
	if c == NoNode {
		return NoNode, cg.errorf(id, "malformed tree: %s has no %s child", n.Payload, side)
	}
	return c, nil
}

// enterFrame opens a runtime frame and a symbol scope together.
func (cg *CodeGen) enterFrame() error {
	cg.line("    CALL %s", rtEnterScope)
	cg.syms.EnterScope()
	cg.depth++
	if cg.depth != cg.syms.Level() {
		return fmt.Errorf("scope depth %d out of step with symbol level %d", cg.depth, cg.syms.Level())
	}
	return nil
}

func (cg *CodeGen) exitFrame() error {
	if err := cg.syms.ExitScope(); err != nil {
		return err
	}
	cg.depth--
	cg.line("    CALL %s", rtExitScope)
	return nil
}

// frame generates a block inside its own frame.
func (cg *CodeGen) frame(block NodeID) error {
	if err := cg.enterFrame(); err != nil {
		return err
	}
	if err := cg.genBlock(block); err != nil {
		return err
	}
	return cg.exitFrame()
}

func (cg *CodeGen) genBlock(head NodeID) error {
	for _, stmt := range cg.ast.Statements(head) {
		if err := cg.genStmt(stmt); err != nil {
			return err
		}
	}
	return nil
}

// frameBase leaves RCX pointing at the frame that holds sym.
func (cg *CodeGen) frameBase(sym *SymbolData) {
	if sym.Level == 0 {
		cg.line("    PUSH 0")
		cg.line("    POPR RCX")
		return
	}
	cg.line("    PUSHR RBX")
	cg.line("    POPR RCX")
	for i := sym.Level; i < cg.depth; i++ {
		cg.line("    PUSHM [RCX]")
		cg.line("    POPR RCX")
	}
}

func (cg *CodeGen) lookupVar(id NodeID, name string) (*SymbolData, error) {
	sym, ok := cg.syms.Lookup(name)
	if !ok {
		return nil, cg.undeclared(id, name)
	}
	if sym.Kind == SymFunction {
		return nil, cg.errorf(id, "%q is a function, not a variable", name)
	}
	return sym, nil
}

// loadVar pushes the value of the named variable.
func (cg *CodeGen) loadVar(id NodeID, name string) error {
	sym, err := cg.lookupVar(id, name)
	if err != nil {
		return err
	}
	cg.comment("get variable %q", name)
	cg.frameBase(sym)
	cg.line("    PUSH %d", sym.Offset)
	cg.line("    CALL %s", rtGetByOffset)
	return nil
}

// storeVar pops the top of the stack into the named variable.
func (cg *CodeGen) storeVar(id NodeID, name string) error {
	sym, err := cg.lookupVar(id, name)
	if err != nil {
		return err
	}
	cg.comment("set variable %q", name)
	cg.frameBase(sym)
	cg.line("    PUSH %d", sym.Offset)
	cg.line("    CALL %s", rtSetByOffset)
	return nil
}

// allocSlot pops the top of the stack into the next free slot.
func (cg *CodeGen) allocSlot() {
	cg.line("    POPM [RAX]")
	cg.line("    CALL %s", rtMoveRAX)
}

func (cg *CodeGen) genStmt(id NodeID) error {
	n := cg.ast.Node(id)
	switch p := n.Payload.(type) {
	case Declaration:
		right, err := cg.child(id, true)
		if err != nil {
			return err
		}
		if v := cg.ast.Node(right); v.Right != NoNode {
			if _, isVar := v.Payload.(Variable); isVar {
				return cg.genFunction(id)
			}
		}
		return cg.genVarDecl(id, p.Type)

	case Operation:
		switch p.Op {
		case OpSentinel:
			return cg.frame(id)
		case OpAssign:
			return cg.genAssign(id)
		case OpIf:
			return cg.genIf(id)
		case OpWhile:
			return cg.genWhile(id)
		case OpReturn:
			return cg.genReturn(id)
		case OpBreak:
			return cg.genBreak(id)
		case OpPrint:
			value, err := cg.child(id, true)
			if err != nil {
				return err
			}
			if err := cg.genExpr(value); err != nil {
				return err
			}
			cg.line("    OUT")
			return nil
		case OpElse:
			return cg.errorf(id, "else without if")
		}
	}

	// Expression statement: evaluate and discard.
	if err := cg.genExpr(id); err != nil {
		return err
	}
	cg.line("    POP")
	return nil
}

// genVarDecl evaluates the initializer (or 0) into a fresh slot and binds the name.
func (cg *CodeGen) genVarDecl(id NodeID, typ TokenType) error {
	target, _ := cg.child(id, true)
	t := cg.ast.Node(target)

	nameID := target
	if t.IsOp(OpAssign) {
		var err error
		if nameID, err = cg.child(target, false); err != nil {
			return err
		}
		value, err := cg.child(target, true)
		if err != nil {
			return err
		}
		if err := cg.genExpr(value); err != nil {
			return err
		}
	} else {
		cg.line("    PUSH 0")
	}

	v, ok := cg.ast.Node(nameID).Payload.(Variable)
	if !ok {
		return cg.errorf(id, "malformed tree: declaration names %s", cg.ast.Node(nameID).Payload)
	}
	if typ == VOID {
		return cg.errorf(id, "variable %q declared void", v.Name)
	}

	cg.comment("declare variable %q", v.Name)
	cg.allocSlot()
	cg.syms.Insert(SymbolData{Name: v.Name, Kind: SymVariable, Type: typ, Node: id, Line: cg.ast.Node(id).Line})
	return nil
}

// genAssign stores right into left. In a chain a = b = e the inner
// assignment runs first and its target is read back for the outer one.
func (cg *CodeGen) genAssign(id NodeID) error {
	left, err := cg.child(id, false)
	if err != nil {
		return err
	}
	right, err := cg.child(id, true)
	if err != nil {
		return err
	}
	v, ok := cg.ast.Node(left).Payload.(Variable)
	if !ok {
		return cg.errorf(id, "cannot assign to %s", cg.ast.Node(left).Payload)
	}

	r := cg.ast.Node(right)
	if r.IsOp(OpAssign) {
		if err := cg.genAssign(right); err != nil {
			return err
		}
		inner, err := cg.child(right, false)
		if err != nil {
			return err
		}
		iv, ok := cg.ast.Node(inner).Payload.(Variable)
		if !ok {
			return cg.errorf(right, "cannot assign to %s", cg.ast.Node(inner).Payload)
		}
		if err := cg.loadVar(inner, iv.Name); err != nil {
			return err
		}
	} else if err := cg.genExpr(right); err != nil {
		return err
	}
	return cg.storeVar(left, v.Name)
}

// genIf emits one clause of an if / else if / else chain.
func (cg *CodeGen) genIf(id NodeID) error {
	cond, err := cg.child(id, false)
	if err != nil {
		return err
	}
	body, err := cg.child(id, true)
	if err != nil {
		return err
	}

	n := cg.nextIf
	cg.nextIf++

	if err := cg.genExpr(cond); err != nil {
		return err
	}
	cg.line("    PUSH 0")
	cg.line("    JE else_%d", n)
	cg.label(fmt.Sprintf("if_%d", n))
	if err := cg.frame(body); err != nil {
		return err
	}
	cg.line("    JMP end_if_%d", n)
	cg.label(fmt.Sprintf("else_%d", n))

	if clause := cg.ast.Node(cg.ast.lastSentinel(body)).Right; clause != NoNode {
		c := cg.ast.Node(clause)
		switch {
		case c.IsOp(OpIf):
			if err := cg.genIf(clause); err != nil {
				return err
			}
		case c.IsOp(OpElse):
			elseBody, err := cg.child(clause, true)
			if err != nil {
				return err
			}
			if err := cg.frame(elseBody); err != nil {
				return err
			}
		default:
			return cg.errorf(clause, "malformed tree: %s follows an if body", c.Payload)
		}
	}

	cg.label(fmt.Sprintf("end_if_%d", n))
	return nil
}

func (cg *CodeGen) genWhile(id NodeID) error {
	cond, err := cg.child(id, false)
	if err != nil {
		return err
	}
	body, err := cg.child(id, true)
	if err != nil {
		return err
	}

	n := cg.nextWhile
	cg.nextWhile++

	cg.label(fmt.Sprintf("while_%d", n))
	if err := cg.genExpr(cond); err != nil {
		return err
	}
	cg.line("    PUSH 0")
	cg.line("    JE end_while_%d", n)
	cg.label(fmt.Sprintf("while_body_%d", n))

	cg.loopStack = append(cg.loopStack, LoopLabel{N: n, Depth: cg.depth})
	if err := cg.frame(body); err != nil {
		return err
	}
	cg.loopStack = cg.loopStack[:len(cg.loopStack)-1]

	cg.line("    JMP while_%d", n)
	cg.label(fmt.Sprintf("end_while_%d", n))
	return nil
}

func (cg *CodeGen) genBreak(id NodeID) error {
	if len(cg.loopStack) == 0 {
		return cg.errorf(id, "break outside of a loop")
	}
	loop := cg.loopStack[len(cg.loopStack)-1]
	for i := loop.Depth; i < cg.depth; i++ {
		cg.line("    CALL %s", rtExitScope)
	}
	cg.line("    JMP end_while_%d", loop.N)
	return nil
}

// genReturn leaves the value on the stack and unwinds every open frame.
func (cg *CodeGen) genReturn(id NodeID) error {
	value, err := cg.child(id, true)
	if err != nil {
		return err
	}
	if err := cg.genExpr(value); err != nil {
		return err
	}
	for i := 0; i < cg.depth; i++ {
		cg.line("    CALL %s", rtExitScope)
	}
	cg.line("    RET")
	return nil
}

// functionParts splits a function declaration into its name node,
// parameter chain and body.
func (cg *CodeGen) functionParts(id NodeID) (name string, params []NodeID, body NodeID) {
	nameID := cg.ast.Node(id).Right
	n := cg.ast.Node(nameID)
	name = n.Payload.(Variable).Name
	for p := n.Left; p != NoNode; p = cg.ast.Node(p).Left {
		params = append(params, p)
	}
	return name, params, n.Right
}

func (cg *CodeGen) isFunction(id NodeID) bool {
	n := cg.ast.Node(id)
	if _, ok := n.Payload.(Declaration); !ok || n.Right == NoNode {
		return false
	}
	v := cg.ast.Node(n.Right)
	_, ok := v.Payload.(Variable)
	return ok && v.Right != NoNode
}

// declareFunctions binds every top-level function in the global scope so
// calls may precede the definition.
func (cg *CodeGen) declareFunctions(root NodeID) error {
	for _, stmt := range cg.ast.Statements(root) {
		if !cg.isFunction(stmt) {
			continue
		}
		name, params, _ := cg.functionParts(stmt)
		if reservedLabel(name) {
			return cg.errorf(stmt, "function name %q is reserved", name)
		}
		if name == "main" && len(params) != 0 {
			return cg.errorf(stmt, "main must not take parameters")
		}
		cg.syms.Insert(SymbolData{
			Name:   name,
			Kind:   SymFunction,
			Type:   cg.ast.Node(stmt).Payload.(Declaration).Type,
			Node:   stmt,
			Line:   cg.ast.Node(stmt).Line,
			Params: len(params),
		})
	}
	return nil
}

// genFunction emits a function into the function buffer. A redefinition
// is skipped: the first body wins.
func (cg *CodeGen) genFunction(id NodeID) error {
	name, params, body := cg.functionParts(id)
	sym, ok := cg.syms.Lookup(name)
	if !ok || sym.Kind != SymFunction {
		return cg.errorf(id, "function %q must be declared at top level", name)
	}
	if sym.Node != id {
		return nil
	}

	saved, savedDepth, savedLoops := cg.out, cg.depth, cg.loopStack
	cg.out, cg.depth, cg.loopStack = &cg.funcs, 0, nil
	defer func() {
		cg.out, cg.depth, cg.loopStack = saved, savedDepth, savedLoops
	}()

	names := make([]string, len(params))
	for i, p := range params {
		names[i] = cg.ast.Node(cg.ast.Node(p).Right).Payload.(Variable).Name
	}
	cg.comment("function %s(%s)", name, strings.Join(names, ", "))
	cg.label(name)

	cg.syms.NewBranch()
	if err := cg.enterFrame(); err != nil {
		return err
	}

	// Arguments were pushed left to right, so the last one is on top.
	// Claim the slots first, then fill them from the top of the stack down.
	for i, p := range params {
		cg.syms.Insert(SymbolData{
			Name: names[i],
			Kind: SymParameter,
			Type: cg.ast.Node(p).Payload.(Declaration).Type,
			Node: p,
			Line: cg.ast.Node(p).Line,
		})
	}
	for i := len(params) - 1; i >= 0; i-- {
		cg.line("    PUSHR RBX")
		cg.line("    POPR RCX")
		cg.line("    PUSH %d", i+1)
		cg.line("    CALL %s", rtSetByOffset)
	}
	for range params {
		cg.line("    CALL %s", rtMoveRAX)
	}

	if err := cg.genBlock(body); err != nil {
		return err
	}

	cg.line("    PUSH 0")
	if err := cg.exitFrame(); err != nil {
		return err
	}
	cg.line("    RET")
	cg.syms.DelBranch()
	return nil
}

// inverted maps a relational operator to the jump taken when it is false.
var inverted = map[Op]string{
	OpLess:      "JAE",
	OpLessEq:    "JA",
	OpGreater:   "JBE",
	OpGreaterEq: "JB",
	OpEqual:     "JNE",
	OpNotEqual:  "JE",
}

var arithmetic = map[Op]string{
	OpAdd: "ADD",
	OpSub: "SUB",
	OpMul: "MUL",
	OpDiv: "DIV",
}

// boolean turns the two values on top of the stack into 1 or 0. falseJump
// is the conditional jump taken when the comparison does not hold.
func (cg *CodeGen) boolean(falseJump string) {
	n := cg.nextBool
	cg.nextBool++
	cg.line("    %s false_result_%d", falseJump, n)
	cg.line("    PUSH 1")
	cg.line("    JMP truth_result_%d", n)
	cg.label(fmt.Sprintf("false_result_%d", n))
	cg.line("    PUSH 0")
	cg.label(fmt.Sprintf("truth_result_%d", n))
}

// truthValue evaluates id and normalises it to 0 or 1.
func (cg *CodeGen) truthValue(id NodeID) error {
	if err := cg.genExpr(id); err != nil {
		return err
	}
	cg.line("    PUSH 0")
	cg.boolean("JE")
	return nil
}

// genExpr leaves the value of the expression on top of the stack.
func (cg *CodeGen) genExpr(id NodeID) error {
	n := cg.ast.Node(id)
	switch p := n.Payload.(type) {
	case Constant:
		if p.Value.Kind != IntValue {
			return cg.errorf(id, "non-integer constant %s is not supported", p.Value)
		}
		cg.line("    PUSH %d", p.Value.Int)
		return nil

	case Variable:
		return cg.loadVar(id, p.Name)

	case Operation:
		switch p.Op {
		case OpInput:
			cg.line("    IN")
			return nil
		case OpCall:
			return cg.genCall(id)
		}

		left, err := cg.child(id, false)
		if err != nil {
			return err
		}
		right, err := cg.child(id, true)
		if err != nil {
			return err
		}

		if ins, ok := arithmetic[p.Op]; ok {
			if err := cg.genExpr(left); err != nil {
				return err
			}
			if err := cg.genExpr(right); err != nil {
				return err
			}
			cg.line("    %s", ins)
			return nil
		}

		if jump, ok := inverted[p.Op]; ok {
			if err := cg.genExpr(left); err != nil {
				return err
			}
			if err := cg.genExpr(right); err != nil {
				return err
			}
			cg.boolean(jump)
			return nil
		}

		switch p.Op {
		case OpAnd, OpOr:
			if err := cg.truthValue(left); err != nil {
				return err
			}
			if err := cg.truthValue(right); err != nil {
				return err
			}
			if p.Op == OpAnd {
				cg.line("    MUL")
				return nil
			}
			cg.line("    ADD")
			cg.line("    PUSH 0")
			cg.boolean("JE")
			return nil
		}
	}

	return cg.errorf(id, "%s is not an expression", n.Payload)
}

func (cg *CodeGen) genCall(id NodeID) error {
	callee, err := cg.child(id, true)
	if err != nil {
		return err
	}
	v, ok := cg.ast.Node(callee).Payload.(Variable)
	if !ok {
		return cg.errorf(id, "malformed tree: call of %s", cg.ast.Node(callee).Payload)
	}
	sym, ok := cg.syms.Lookup(v.Name)
	if !ok {
		return cg.undeclared(callee, v.Name)
	}
	if sym.Kind != SymFunction {
		return cg.errorf(id, "%q is not a function", v.Name)
	}

	var args []NodeID
	for a := cg.ast.Node(id).Left; a != NoNode; a = cg.ast.Node(a).Left {
		arg, err := cg.child(a, true)
		if err != nil {
			return err
		}
		args = append(args, arg)
	}
	if len(args) != sym.Params {
		return cg.errorf(id, "%s expects %d argument(s), got %d", v.Name, sym.Params, len(args))
	}

	for _, arg := range args {
		if err := cg.genExpr(arg); err != nil {
			return err
		}
	}
	cg.line("    CALL %s", v.Name)
	return nil
}

// Generate walks the whole program and returns its assembly text. An
// empty program yields "". On error no text is returned.
func Generate(ast *AST, syms *SymbolTable) (string, error) {
	if ast.Root() == NoNode || len(ast.Statements(ast.Root())) == 0 {
		return "", nil
	}

	cg := newCodeGen(ast, syms)
	root := ast.Root()
	if err := cg.declareFunctions(root); err != nil {
		return "", err
	}

	cg.emitRuntime()
	cg.line("MAIN")
	cg.line("    PUSH 1")
	cg.line("    POPR RAX")
	cg.line("    PUSH 0")
	cg.line("    POPR RBX")
	cg.line("    PUSH 0")
	cg.line("    POPR RCX")

	if err := cg.genBlock(root); err != nil {
		return "", err
	}

	if sym, ok := syms.Lookup("main"); ok && sym.Kind == SymFunction {
		cg.line("    CALL main")
	}
	cg.line("    HLT")

	return cg.main.String() + cg.funcs.String(), nil
}
