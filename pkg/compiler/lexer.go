package compiler

import (
	"fmt"
	"strconv"
	"strings"
)

// literals is scanned in order and the first case-insensitive prefix match
// wins, so "integer" lexes as INT followed by IDENTIFIER("eger").
// Two-character operators precede their one-character prefixes.
var literals = []struct {
	text string
	tt   TokenType
}{
	{"short", SHORT},
	{"int", INT},
	{"long", LONG},
	{"double", DOUBLE},
	{"char", CHAR},
	{"void", VOID},
	{"true", TRUE},
	{"false", FALSE},

	{",", COMMA},
	{";", SEMICOLON},
	{"(", LPAREN},
	{")", RPAREN},
	{"{", LBRACE},
	{"}", RBRACE},
	{"[", LBRACKET},
	{"]", RBRACKET},

	{"+", PLUS},
	{"-", MINUS},
	{"*", STAR},
	{"/", SLASH},

	{"<=", LESS_EQ},
	{">=", GREATER_EQ},
	{"<", LESS},
	{">", GREATER},
	{"==", EQUALS},
	{"!=", NOT_EQ},

	{"&&", AND_LOGICAL},
	{"||", OR_LOGICAL},

	{"input", INPUT},
	{"print", PRINT},

	{"=", ASSIGN},

	{"if", IF},
	{"else", ELSE},
	{"while", WHILE},
	{"break", BREAK},
	{"return", RETURN},
}

// Lexer holds all mutable state for a single scanning pass over src.
type Lexer struct {
	src  string
	pos  int // index of the next byte to consume
	line int // current 1-based source line
}

func newLexer(src string) *Lexer {
	return &Lexer{src: src, pos: 0, line: 1}
}

func (l *Lexer) peek() byte {
	if l.pos >= len(l.src) {
		return 0
	}
	return l.src[l.pos]
}

func (l *Lexer) peek2() byte {
	if l.pos+1 >= len(l.src) {
		return 0
	}
	return l.src[l.pos+1]
}

func (l *Lexer) advance() byte {
	if l.pos >= len(l.src) {
		return 0
	}
	c := l.src[l.pos]
	l.pos++
	if c == '\n' {
		l.line++
	}
	return c
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r' || c == '\v' || c == '\f'
}

func isLetter(c byte) bool {
	return c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c == '_'
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}

func (l *Lexer) skipWhitespace() {
	for l.pos < len(l.src) && isSpace(l.peek()) {
		l.advance()
	}
}

// skipLineComment discards everything from the current position to end-of-line.
// The opening "//" must already have been consumed.
func (l *Lexer) skipLineComment() {
	for l.pos < len(l.src) && l.peek() != '\n' {
		l.advance()
	}
}

// skipBlockComment discards everything up to and including the closing "*/".
// The opening "/*" must already have been consumed.
func (l *Lexer) skipBlockComment() error {
	startLine := l.line
	for l.pos < len(l.src) {
		if l.peek() == '*' && l.peek2() == '/' {
			l.advance() // *
			l.advance() // /
			return nil
		}
		l.advance()
	}
	return fmt.Errorf("unterminated block comment (opened on line %d)", startLine)
}

// matchLiteral tries the literal table at the current position.
func (l *Lexer) matchLiteral() (Token, bool) {
	rest := l.src[l.pos:]
	for _, lit := range literals {
		if len(rest) >= len(lit.text) && strings.EqualFold(rest[:len(lit.text)], lit.text) {
			tok := Token{Type: lit.tt, Lexeme: rest[:len(lit.text)], Line: l.line}
			l.pos += len(lit.text)
			return tok, true
		}
	}
	return Token{}, false
}

// scanIdent collects a full identifier.
// The first character (letter or '_') must still be at l.peek().
func (l *Lexer) scanIdent() Token {
	line := l.line
	start := l.pos
	for l.pos < len(l.src) && (isLetter(l.peek()) || isDigit(l.peek())) {
		l.advance()
	}
	return Token{Type: IDENTIFIER, Lexeme: l.src[start:l.pos], Line: line}
}

// scanNumber collects a digit run, switching to a double when a '.' follows.
// A literal that does not parse (for example an integer wider than 32 bits)
// produces no token; the characters are consumed and silently dropped.
func (l *Lexer) scanNumber() (Token, bool) {
	line := l.line
	start := l.pos
	for l.pos < len(l.src) && isDigit(l.peek()) {
		l.advance()
	}

	if l.peek() == '.' {
		l.advance()
		for l.pos < len(l.src) && isDigit(l.peek()) {
			l.advance()
		}
		lexeme := l.src[start:l.pos]
		f, err := strconv.ParseFloat(lexeme, 64)
		if err != nil {
			return Token{}, false
		}
		return Token{Type: NUMBER, Lexeme: lexeme, Line: line, Value: Value{Kind: DoubleValue, Double: f}}, true
	}

	lexeme := l.src[start:l.pos]
	n, err := strconv.ParseInt(lexeme, 10, 32)
	if err != nil {
		return Token{}, false
	}
	return Token{Type: NUMBER, Lexeme: lexeme, Line: line, Value: IntConst(int32(n))}, true
}

// nextToken skips whitespace/comments and returns the next Token.
// ok is false when characters were consumed without producing a token.
func (l *Lexer) nextToken() (tok Token, ok bool, err error) {
	for {
		l.skipWhitespace()
		if l.pos >= len(l.src) {
			return Token{Type: EOF, Lexeme: "", Line: l.line}, true, nil
		}
		if l.peek() == '/' && l.peek2() == '/' {
			l.advance()
			l.advance()
			l.skipLineComment()
			continue
		}
		if l.peek() == '/' && l.peek2() == '*' {
			l.advance()
			l.advance()
			if err := l.skipBlockComment(); err != nil {
				return Token{}, false, err
			}
			continue
		}
		break
	}

	if tok, ok := l.matchLiteral(); ok {
		return tok, true, nil
	}

	ch := l.peek()
	if isLetter(ch) {
		return l.scanIdent(), true, nil
	}
	if isDigit(ch) {
		tok, ok := l.scanNumber()
		return tok, ok, nil
	}

	return Token{}, false, fmt.Errorf("unexpected character %q on line %d", ch, l.line)
}

// Lex tokenises src and returns all tokens including the final EOF token.
// It returns a non-nil error on the first illegal character or unterminated comment.
func Lex(src string) ([]Token, error) {
	l := newLexer(src)
	var tokens []Token
	for {
		tok, ok, err := l.nextToken()
		if err != nil {
			return tokens, err
		}
		if !ok {
			continue
		}
		tokens = append(tokens, tok)
		if tok.Type == EOF {
			return tokens, nil
		}
	}
}
