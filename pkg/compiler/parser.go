package compiler

import (
	"fmt"
	"strings"
)

// Parser consumes the flat token slice produced by the Lexer and builds an
// arena AST. It is predictive: every sub-parser either consumes its whole
// production or fails, and the first failure ends the parse.
//
// Grammar:
//
//	program    = (funcDecl | statement)* EOF
//	funcDecl   = type IDENTIFIER "(" (type IDENTIFIER ("," type IDENTIFIER)*)? ")" block
//	statement  = varDecl | assignment | if | while | return | block | exprStmt | print | break
//	varDecl    = type IDENTIFIER ("=" expression)? ";"
//	assignment = IDENTIFIER "=" (IDENTIFIER "=")* expression ";"
//	if         = "if" "(" expression ")" block ("else" "if" "(" expression ")" block)* ("else" block)?
//	while      = "while" "(" expression ")" block
//	return     = "return" expression ";"
//	print      = "print" "(" expression ")" ";"
//	break      = "break" ";"
//	expression = logical_or
//	logical_or  = logical_and ("||" logical_and)*
//	logical_and = equality ("&&" equality)*
//	equality    = comparison (("==" | "!=") comparison)*
//	comparison  = term (("<" | ">" | "<=" | ">=") term)*
//	term        = factor (("+" | "-") factor)*
//	factor      = primary (("*" | "/") primary)*
//	primary     = IDENTIFIER "(" args? ")" | IDENTIFIER | NUMBER | "true" | "false"
//	            | "input" "(" ")" | "(" expression ")"
//	type        = "short" | "int" | "long" | "double" | "char" | "void"
type Parser struct {
	tokens      []Token
	pos         int
	sourceLines []string
	ast         *AST
}

func NewParser(tokens []Token, rawSource string) *Parser {
	return &Parser{tokens: tokens, sourceLines: strings.Split(rawSource, "\n"), ast: NewAST()}
}

// fmtError wraps an error message with the source line where the token appears.
func (p *Parser) fmtError(tok Token, format string, args ...any) error {
	lineIdx := tok.Line - 1 // Lines are 1-based

	snippet := "<source unavailable>"
	if lineIdx >= 0 && lineIdx < len(p.sourceLines) {
		snippet = strings.TrimSpace(p.sourceLines[lineIdx])
	}

	return &SyntaxError{Line: tok.Line, Msg: fmt.Sprintf(format, args...), Excerpt: snippet}
}

// peek returns the current token without consuming it.
func (p *Parser) peek() Token {
	return p.peekAt(0)
}

func (p *Parser) peekNext() Token {
	return p.peekAt(1)
}

func (p *Parser) peekAt(offset int) Token {
	i := p.pos + offset
	if i >= len(p.tokens) {
		line := 0
		if len(p.tokens) > 0 {
			line = p.tokens[len(p.tokens)-1].Line
		}
		return Token{Type: EOF, Line: line}
	}
	return p.tokens[i]
}

func (p *Parser) advance() Token {
	tok := p.peek()
	if p.pos < len(p.tokens) {
		p.pos++
	}
	return tok
}

// expect consumes the current token if it matches tt, otherwise returns an error.
func (p *Parser) expect(tt TokenType) (Token, error) {
	tok := p.advance()
	if tok.Type != tt {
		return tok, p.fmtError(tok, "expected %s, got %s (%q)", tt, tok.Type, tok.Lexeme)
	}
	return tok, nil
}

// chain builds a right-threaded Sentinel list.
type chain struct {
	ast   *AST
	first NodeID
	last  NodeID
	line  int
}

func (p *Parser) newChain(line int) *chain {
	return &chain{ast: p.ast, first: NoNode, last: NoNode, line: line}
}

func (c *chain) append(stmt NodeID) {
	cell := c.ast.NewOperation(OpSentinel, c.ast.Node(stmt).Line)
	c.ast.SetLeft(cell, stmt)
	if c.last == NoNode {
		c.first = cell
	} else {
		c.ast.SetRight(c.last, cell)
	}
	c.last = cell
}

// head returns the first cell. An empty chain is one empty Sentinel.
func (c *chain) head() NodeID {
	if c.first == NoNode {
		c.first = c.ast.NewOperation(OpSentinel, c.line)
		c.last = c.first
	}
	return c.first
}

// isFuncDecl is the two-token lookahead: a type whose second successor is "(".
func (p *Parser) isFuncDecl() bool {
	return p.peek().Type.IsType() && p.peekNext().Type == IDENTIFIER && p.peekAt(2).Type == LPAREN
}

// parseProgram parses top-level function declarations and statements up to EOF.
func (p *Parser) parseProgram() (NodeID, error) {
	body := p.newChain(1)
	for p.peek().Type != EOF {
		var (
			id  NodeID
			err error
		)
		if p.isFuncDecl() {
			id, err = p.parseFunctionDecl()
		} else {
			id, err = p.parseStatement()
		}
		if err != nil {
			return NoNode, err
		}
		body.append(id)
	}
	return body.head(), nil
}

// parseFunctionDecl parses int name(params) { ... }
//
//	Declaration(type)
//	  R: Variable(name)
//	       L: Declaration(ptype) -R-> Variable(param), -L-> next parameter
//	       R: body
func (p *Parser) parseFunctionDecl() (NodeID, error) {
	typ := p.advance()
	nameTok, err := p.expect(IDENTIFIER)
	if err != nil {
		return NoNode, err
	}
	if _, err := p.expect(LPAREN); err != nil {
		return NoNode, err
	}

	params := NoNode
	last := NoNode
	for p.peek().Type != RPAREN {
		if last != NoNode {
			if _, err := p.expect(COMMA); err != nil {
				return NoNode, err
			}
		}
		ptype := p.advance()
		if !ptype.Type.IsType() {
			return NoNode, p.fmtError(ptype, "expected parameter type, got %s (%q)", ptype.Type, ptype.Lexeme)
		}
		pname, err := p.expect(IDENTIFIER)
		if err != nil {
			return NoNode, err
		}
		decl := p.ast.NewDeclaration(ptype.Type, ptype.Line)
		p.ast.SetRight(decl, p.ast.NewVariable(pname.Lexeme, pname.Line))
		if last == NoNode {
			params = decl
		} else {
			p.ast.SetLeft(last, decl)
		}
		last = decl
	}
	p.advance() // )

	if p.peek().Type != LBRACE {
		tok := p.peek()
		return NoNode, p.fmtError(tok, "expected LBRACE after parameters of %q, got %s (%q)", nameTok.Lexeme, tok.Type, tok.Lexeme)
	}
	body, err := p.parseBlock()
	if err != nil {
		return NoNode, err
	}

	name := p.ast.NewVariable(nameTok.Lexeme, nameTok.Line)
	p.ast.Link(name, params, body)
	decl := p.ast.NewDeclaration(typ.Type, typ.Line)
	p.ast.SetRight(decl, name)
	return decl, nil
}

// parseStatement tries each statement form in a fixed order.
func (p *Parser) parseStatement() (NodeID, error) {
	tok := p.peek()
	switch {
	case tok.Type.IsType():
		if p.isFuncDecl() {
			return NoNode, p.fmtError(tok, "function %q must be declared at top level", p.peekNext().Lexeme)
		}
		return p.parseVarDecl()

	case tok.Type == IDENTIFIER && p.peekNext().Type == ASSIGN:
		return p.parseAssignment()

	case tok.Type == IF:
		return p.parseIf()

	case tok.Type == WHILE:
		return p.parseWhile()

	case tok.Type == RETURN:
		return p.parseReturn()

	case tok.Type == LBRACE:
		return p.parseBlock()

	case startsExpression(tok.Type):
		return p.parseExprStmt()

	case tok.Type == PRINT:
		return p.parsePrint()

	case tok.Type == BREAK:
		p.advance()
		if _, err := p.expect(SEMICOLON); err != nil {
			return NoNode, err
		}
		return p.ast.NewOperation(OpBreak, tok.Line), nil
	}

	return NoNode, p.fmtError(tok, "unexpected token %s (%q)", tok.Type, tok.Lexeme)
}

func startsExpression(tt TokenType) bool {
	switch tt {
	case IDENTIFIER, NUMBER, TRUE, FALSE, INPUT, LPAREN:
		return true
	}
	return false
}

// parseVarDecl parses type name ("=" expr)? ";"
//
//	Declaration(type) -R-> Variable(name)
//	Declaration(type) -R-> Assign(L: Variable(name), R: expr)
func (p *Parser) parseVarDecl() (NodeID, error) {
	typ := p.advance()
	nameTok, err := p.expect(IDENTIFIER)
	if err != nil {
		return NoNode, err
	}
	decl := p.ast.NewDeclaration(typ.Type, typ.Line)
	name := p.ast.NewVariable(nameTok.Lexeme, nameTok.Line)

	if p.peek().Type == ASSIGN {
		eq := p.advance()
		value, err := p.parseExpression()
		if err != nil {
			return NoNode, err
		}
		assign := p.ast.NewOperation(OpAssign, eq.Line)
		p.ast.Link(assign, name, value)
		p.ast.SetRight(decl, assign)
	} else {
		p.ast.SetRight(decl, name)
	}

	if _, err := p.expect(SEMICOLON); err != nil {
		return NoNode, err
	}
	return decl, nil
}

// parseAssignment parses a = b = expr; into right-nested Assign nodes.
func (p *Parser) parseAssignment() (NodeID, error) {
	id, err := p.parseAssignChain()
	if err != nil {
		return NoNode, err
	}
	if _, err := p.expect(SEMICOLON); err != nil {
		return NoNode, err
	}
	return id, nil
}

func (p *Parser) parseAssignChain() (NodeID, error) {
	target := p.advance()
	eq, err := p.expect(ASSIGN)
	if err != nil {
		return NoNode, err
	}

	var value NodeID
	if p.peek().Type == IDENTIFIER && p.peekNext().Type == ASSIGN {
		value, err = p.parseAssignChain()
	} else {
		value, err = p.parseExpression()
	}
	if err != nil {
		return NoNode, err
	}

	assign := p.ast.NewOperation(OpAssign, eq.Line)
	return p.ast.Link(assign, p.ast.NewVariable(target.Lexeme, target.Line), value), nil
}

// parseCondition parses "(" expression ")".
func (p *Parser) parseCondition() (NodeID, error) {
	if _, err := p.expect(LPAREN); err != nil {
		return NoNode, err
	}
	cond, err := p.parseExpression()
	if err != nil {
		return NoNode, err
	}
	if _, err := p.expect(RPAREN); err != nil {
		return NoNode, err
	}
	return cond, nil
}

// parseIf parses an if / else if / else chain. Each following clause is
// hung off the right link of the last Sentinel of the preceding body.
func (p *Parser) parseIf() (NodeID, error) {
	ifTok := p.advance()
	cond, err := p.parseCondition()
	if err != nil {
		return NoNode, err
	}
	if p.peek().Type != LBRACE {
		tok := p.peek()
		return NoNode, p.fmtError(tok, "expected LBRACE after if condition, got %s (%q)", tok.Type, tok.Lexeme)
	}
	body, err := p.parseBlock()
	if err != nil {
		return NoNode, err
	}
	node := p.ast.NewOperation(OpIf, ifTok.Line)
	p.ast.Link(node, cond, body)

	if p.peek().Type != ELSE {
		return node, nil
	}
	elseTok := p.advance()

	var clause NodeID
	if p.peek().Type == IF {
		clause, err = p.parseIf()
		if err != nil {
			return NoNode, err
		}
	} else {
		if p.peek().Type != LBRACE {
			tok := p.peek()
			return NoNode, p.fmtError(tok, "expected LBRACE or IF after else, got %s (%q)", tok.Type, tok.Lexeme)
		}
		elseBody, err := p.parseBlock()
		if err != nil {
			return NoNode, err
		}
		clause = p.ast.NewOperation(OpElse, elseTok.Line)
		p.ast.SetRight(clause, elseBody)
	}
	p.ast.SetRight(p.ast.lastSentinel(body), clause)
	return node, nil
}

func (p *Parser) parseWhile() (NodeID, error) {
	whileTok := p.advance()
	cond, err := p.parseCondition()
	if err != nil {
		return NoNode, err
	}
	if p.peek().Type != LBRACE {
		tok := p.peek()
		return NoNode, p.fmtError(tok, "expected LBRACE after while condition, got %s (%q)", tok.Type, tok.Lexeme)
	}
	body, err := p.parseBlock()
	if err != nil {
		return NoNode, err
	}
	node := p.ast.NewOperation(OpWhile, whileTok.Line)
	return p.ast.Link(node, cond, body), nil
}

func (p *Parser) parseReturn() (NodeID, error) {
	retTok := p.advance()
	value, err := p.parseExpression()
	if err != nil {
		return NoNode, err
	}
	if _, err := p.expect(SEMICOLON); err != nil {
		return NoNode, err
	}
	node := p.ast.NewOperation(OpReturn, retTok.Line)
	p.ast.SetRight(node, value)
	return node, nil
}

func (p *Parser) parsePrint() (NodeID, error) {
	printTok := p.advance()
	value, err := p.parseCondition()
	if err != nil {
		return NoNode, err
	}
	if _, err := p.expect(SEMICOLON); err != nil {
		return NoNode, err
	}
	node := p.ast.NewOperation(OpPrint, printTok.Line)
	p.ast.SetRight(node, value)
	return node, nil
}

// parseBlock parses "{" statement* "}" into a Sentinel chain.
func (p *Parser) parseBlock() (NodeID, error) {
	open, err := p.expect(LBRACE)
	if err != nil {
		return NoNode, err
	}
	body := p.newChain(open.Line)
	for p.peek().Type != RBRACE {
		if p.peek().Type == EOF {
			return NoNode, p.fmtError(p.peek(), "unterminated block (opened on line %d)", open.Line)
		}
		stmt, err := p.parseStatement()
		if err != nil {
			return NoNode, err
		}
		body.append(stmt)
	}
	p.advance() // }
	return body.head(), nil
}

func (p *Parser) parseExprStmt() (NodeID, error) {
	expr, err := p.parseExpression()
	if err != nil {
		return NoNode, err
	}
	if _, err := p.expect(SEMICOLON); err != nil {
		return NoNode, err
	}
	return expr, nil
}

// parseExpression is the entry point for expression parsing.
func (p *Parser) parseExpression() (NodeID, error) {
	return p.parseLogicalOr()
}

// binaryLevel parses one left-associative precedence level.
func (p *Parser) binaryLevel(next func() (NodeID, error), ops map[TokenType]Op) (NodeID, error) {
	left, err := next()
	if err != nil {
		return NoNode, err
	}
	for {
		op, ok := ops[p.peek().Type]
		if !ok {
			return left, nil
		}
		tok := p.advance()
		right, err := next()
		if err != nil {
			return NoNode, err
		}
		node := p.ast.NewOperation(op, tok.Line)
		left = p.ast.Link(node, left, right)
	}
}

var (
	orOps         = map[TokenType]Op{OR_LOGICAL: OpOr}
	andOps        = map[TokenType]Op{AND_LOGICAL: OpAnd}
	equalityOps   = map[TokenType]Op{EQUALS: OpEqual, NOT_EQ: OpNotEqual}
	comparisonOps = map[TokenType]Op{LESS: OpLess, GREATER: OpGreater, LESS_EQ: OpLessEq, GREATER_EQ: OpGreaterEq}
	termOps       = map[TokenType]Op{PLUS: OpAdd, MINUS: OpSub}
	factorOps     = map[TokenType]Op{STAR: OpMul, SLASH: OpDiv}
)

// parseLogicalOr handles ||
func (p *Parser) parseLogicalOr() (NodeID, error) {
	return p.binaryLevel(p.parseLogicalAnd, orOps)
}

// parseLogicalAnd handles &&
func (p *Parser) parseLogicalAnd() (NodeID, error) {
	return p.binaryLevel(p.parseEquality, andOps)
}

func (p *Parser) parseEquality() (NodeID, error) {
	return p.binaryLevel(p.parseComparison, equalityOps)
}

func (p *Parser) parseComparison() (NodeID, error) {
	return p.binaryLevel(p.parseTerm, comparisonOps)
}

func (p *Parser) parseTerm() (NodeID, error) {
	return p.binaryLevel(p.parseFactor, termOps)
}

func (p *Parser) parseFactor() (NodeID, error) {
	return p.binaryLevel(p.parsePrimary, factorOps)
}

func (p *Parser) parsePrimary() (NodeID, error) {
	tok := p.peek()
	switch tok.Type {
	case IDENTIFIER:
		if p.peekNext().Type == LPAREN {
			return p.parseCall()
		}
		p.advance()
		return p.ast.NewVariable(tok.Lexeme, tok.Line), nil

	case NUMBER:
		p.advance()
		return p.ast.NewConstant(tok.Value, tok.Line), nil

	case TRUE:
		p.advance()
		return p.ast.NewConstant(IntConst(1), tok.Line), nil

	case FALSE:
		p.advance()
		return p.ast.NewConstant(IntConst(0), tok.Line), nil

	case INPUT:
		p.advance()
		if _, err := p.expect(LPAREN); err != nil {
			return NoNode, err
		}
		if _, err := p.expect(RPAREN); err != nil {
			return NoNode, err
		}
		return p.ast.NewOperation(OpInput, tok.Line), nil

	case LPAREN:
		p.advance()
		expr, err := p.parseExpression()
		if err != nil {
			return NoNode, err
		}
		if _, err := p.expect(RPAREN); err != nil {
			return NoNode, err
		}
		return expr, nil
	}

	return NoNode, p.fmtError(tok, "expected expression, got %s (%q)", tok.Type, tok.Lexeme)
}

// parseCall parses name(args).
//
//	Call
//	  L: Sentinel -R-> arg0, -L-> Sentinel -R-> arg1 ...
//	  R: Variable(name)
func (p *Parser) parseCall() (NodeID, error) {
	nameTok := p.advance()
	p.advance() // (

	args := NoNode
	last := NoNode
	for p.peek().Type != RPAREN {
		if last != NoNode {
			if _, err := p.expect(COMMA); err != nil {
				return NoNode, err
			}
		}
		arg, err := p.parseExpression()
		if err != nil {
			return NoNode, err
		}
		cell := p.ast.NewOperation(OpSentinel, p.ast.Node(arg).Line)
		p.ast.SetRight(cell, arg)
		if last == NoNode {
			args = cell
		} else {
			p.ast.SetLeft(last, cell)
		}
		last = cell
		if p.peek().Type == EOF {
			break
		}
	}
	if _, err := p.expect(RPAREN); err != nil {
		return NoNode, err
	}

	call := p.ast.NewOperation(OpCall, nameTok.Line)
	return p.ast.Link(call, args, p.ast.NewVariable(nameTok.Lexeme, nameTok.Line)), nil
}

// Parse builds the AST for a whole program. rawSource is used only for
// error excerpts.
func Parse(tokens []Token, rawSource string) (*AST, error) {
	p := NewParser(tokens, rawSource)
	root, err := p.parseProgram()
	if err != nil {
		return nil, err
	}
	p.ast.SetRoot(root)
	return p.ast, nil
}
