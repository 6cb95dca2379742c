package compiler

import (
	"errors"
	"fmt"
	"strings"

	"stackcc/pkg/hashmap"
)

type SymbolKind int

const (
	SymVariable SymbolKind = iota
	SymConstant
	SymFunction
	SymParameter
)

func (k SymbolKind) String() string {
	switch k {
	case SymVariable:
		return "variable"
	case SymConstant:
		return "constant"
	case SymFunction:
		return "function"
	case SymParameter:
		return "parameter"
	}
	return fmt.Sprintf("SymbolKind(%d)", int(k))
}

// SymbolData is everything the code generator knows about one name.
type SymbolData struct {
	Name   string
	Kind   SymbolKind
	Type   TokenType
	Level  int    // scope level of the declaration, 0 = global
	Node   NodeID // declaring AST node
	Line   int
	Offset int // frame slot; 0 for functions
	Params int // functions only
}

// Scope is one lexical binding region.
type Scope struct {
	Level   int
	symbols *hashmap.Map[*SymbolData]
	prev    *Scope
	slots   int // last frame slot handed out; slot 0 is the frame link
}

func newScope(level int, prev *Scope) *Scope {
	return &Scope{Level: level, symbols: hashmap.New[*SymbolData](), prev: prev}
}

var errGlobalExit = errors.New("cannot exit the global scope")

// SymbolTable maps names to SymbolData through a chain of scopes.
//
// The cursor walks a tree of scopes rooted at the global scope. NewBranch
// saves the cursor and restarts from the global scope, so each top-level
// function builds a local chain that shares only the globals.
type SymbolTable struct {
	global   *Scope
	current  *Scope
	branches []*Scope
	warnings []string
}

func NewSymbolTable() *SymbolTable {
	g := newScope(0, nil)
	return &SymbolTable{global: g, current: g}
}

// Level is the nesting level of the current scope.
func (s *SymbolTable) Level() int { return s.current.Level }

func (s *SymbolTable) EnterScope() {
	s.current = newScope(s.current.Level+1, s.current)
}

// ExitScope drops the current scope. Leaving the outermost local scope of
// a branch returns to the cursor saved by NewBranch.
func (s *SymbolTable) ExitScope() error {
	if s.current == s.global {
		return errGlobalExit
	}
	prev := s.current.prev
	s.current.symbols.Clear()
	if prev == s.global && len(s.branches) > 0 {
		s.current = s.branches[len(s.branches)-1]
		return nil
	}
	s.current = prev
	return nil
}

// NewBranch saves the cursor and moves it to the global scope.
func (s *SymbolTable) NewBranch() {
	s.branches = append(s.branches, s.current)
	s.current = s.global
}

// DelBranch restores the cursor saved by the matching NewBranch.
func (s *SymbolTable) DelBranch() {
	if len(s.branches) == 0 {
		return
	}
	s.current = s.branches[len(s.branches)-1]
	s.branches = s.branches[:len(s.branches)-1]
}

// Lookup returns the nearest binding of name.
func (s *SymbolTable) Lookup(name string) (*SymbolData, bool) {
	for sc := s.current; sc != nil; sc = sc.prev {
		if sym, ok := sc.symbols.Find(name); ok {
			return sym, true
		}
	}
	return nil, false
}

// LookupCurrentScope only searches the innermost scope.
func (s *SymbolTable) LookupCurrentScope(name string) (*SymbolData, bool) {
	return s.current.symbols.Find(name)
}

// Insert binds sym.Name in the current scope and stamps its Level and
// Offset. If the name is already bound there, the first binding is kept,
// a warning is recorded and ok is false. Storage-bearing symbols consume
// a frame slot either way.
func (s *SymbolTable) Insert(sym SymbolData) (*SymbolData, bool) {
	sc := s.current
	offset := 0
	if sym.Kind != SymFunction {
		sc.slots++
		offset = sc.slots
	}

	if prev, exists := sc.symbols.Find(sym.Name); exists {
		s.warnings = append(s.warnings, fmt.Sprintf("line %d: duplicate declaration of %q (first declared on line %d)",
			sym.Line, sym.Name, prev.Line))
		return prev, false
	}

	sym.Level = sc.Level
	sym.Offset = offset
	stored := &sym
	sc.symbols.Insert(sym.Name, stored)
	return stored, true
}

// Warnings returns the diagnostics recorded so far, in order.
func (s *SymbolTable) Warnings() []string {
	return s.warnings
}

// Close releases every scope and saved branch.
func (s *SymbolTable) Close() {
	for sc := s.current; sc != nil; sc = sc.prev {
		sc.symbols.Clear()
	}
	for _, b := range s.branches {
		for sc := b; sc != nil; sc = sc.prev {
			sc.symbols.Clear()
		}
	}
	s.branches = nil
	s.current = s.global
}

// String returns a deterministically ordered dump of the scopes on the
// current path, innermost first.
func (s *SymbolTable) String() string {
	var sb strings.Builder
	for sc := s.current; sc != nil; sc = sc.prev {
		if sc.Level == 0 {
			sb.WriteString("Globals:")
		} else {
			fmt.Fprintf(&sb, "Scope %d:", sc.Level)
		}
		if sc.symbols.Empty() {
			sb.WriteString(" (empty)\n")
			continue
		}
		sb.WriteByte('\n')
		for _, name := range sc.symbols.Keys() {
			sym, _ := sc.symbols.Find(name)
			switch sym.Kind {
			case SymFunction:
				fmt.Fprintf(&sb, "  %-20s  %s %s (params: %d)\n", name, sym.Kind, strings.ToLower(sym.Type.String()), sym.Params)
			default:
				fmt.Fprintf(&sb, "  %-20s  %s %s (offset: %d)\n", name, sym.Kind, strings.ToLower(sym.Type.String()), sym.Offset)
			}
		}
	}
	return sb.String()
}
