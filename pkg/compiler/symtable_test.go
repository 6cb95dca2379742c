package compiler

import (
	"strings"
	"testing"

	"github.com/nalgeon/be"
)

func TestSymbolTable(t *testing.T) {
	t.Run("GlobalOffsets", func(t *testing.T) {
		s := NewSymbolTable()
		g1, ok := s.Insert(SymbolData{Name: "g1", Kind: SymVariable, Type: INT})
		be.True(t, ok)
		g2, _ := s.Insert(SymbolData{Name: "g2", Kind: SymVariable, Type: INT})
		f, _ := s.Insert(SymbolData{Name: "f", Kind: SymFunction, Type: INT, Params: 2})
		g3, _ := s.Insert(SymbolData{Name: "g3", Kind: SymVariable, Type: INT})

		// Slot 0 of a frame is its link, so offsets start at 1.
		be.Equal(t, g1.Offset, 1)
		be.Equal(t, g2.Offset, 2)
		be.Equal(t, f.Offset, 0)
		be.Equal(t, g3.Offset, 3)
		be.Equal(t, g1.Level, 0)
	})

	t.Run("OffsetsResetPerScope", func(t *testing.T) {
		s := NewSymbolTable()
		s.Insert(SymbolData{Name: "g", Kind: SymVariable})
		s.EnterScope()
		a, _ := s.Insert(SymbolData{Name: "a", Kind: SymParameter})
		b, _ := s.Insert(SymbolData{Name: "b", Kind: SymVariable})
		be.Equal(t, a.Offset, 1)
		be.Equal(t, b.Offset, 2)
		be.Equal(t, b.Level, 1)

		s.EnterScope()
		c, _ := s.Insert(SymbolData{Name: "c", Kind: SymVariable})
		be.Equal(t, c.Offset, 1)
		be.Equal(t, c.Level, 2)
	})

	t.Run("Shadowing", func(t *testing.T) {
		s := NewSymbolTable()
		s.Insert(SymbolData{Name: "x", Kind: SymVariable, Type: INT})
		s.EnterScope()
		s.Insert(SymbolData{Name: "x", Kind: SymVariable, Type: LONG})

		sym, ok := s.Lookup("x")
		be.True(t, ok)
		be.Equal(t, sym.Type, LONG)
		be.Equal(t, sym.Level, 1)

		be.Err(t, s.ExitScope(), nil)
		sym, ok = s.Lookup("x")
		be.True(t, ok)
		be.Equal(t, sym.Type, INT)
		be.Equal(t, sym.Level, 0)
		be.Equal(t, len(s.Warnings()), 0)
	})

	t.Run("ScopeExitHidesLocals", func(t *testing.T) {
		s := NewSymbolTable()
		s.EnterScope()
		s.Insert(SymbolData{Name: "tmp", Kind: SymVariable})
		_, ok := s.LookupCurrentScope("tmp")
		be.True(t, ok)

		be.Err(t, s.ExitScope(), nil)
		_, ok = s.Lookup("tmp")
		be.True(t, !ok)
	})

	t.Run("LookupCurrentScopeOnly", func(t *testing.T) {
		s := NewSymbolTable()
		s.Insert(SymbolData{Name: "g", Kind: SymVariable})
		s.EnterScope()
		_, ok := s.LookupCurrentScope("g")
		be.True(t, !ok)
		_, ok = s.Lookup("g")
		be.True(t, ok)
	})

	t.Run("GlobalScopeCannotExit", func(t *testing.T) {
		s := NewSymbolTable()
		be.True(t, s.ExitScope() != nil)
	})
}

// A local x inside f and a global x coexist. A second x in the same block
// is reported once and the first binding is kept.
func TestSymbolTableLocalAndGlobal(t *testing.T) {
	s := NewSymbolTable()
	global, _ := s.Insert(SymbolData{Name: "x", Kind: SymVariable, Type: INT, Line: 1})

	s.NewBranch()
	s.EnterScope()
	local, ok := s.Insert(SymbolData{Name: "x", Kind: SymVariable, Type: LONG, Line: 3})
	be.True(t, ok)
	be.Equal(t, len(s.Warnings()), 0)

	dup, ok := s.Insert(SymbolData{Name: "x", Kind: SymVariable, Type: CHAR, Line: 4})
	be.True(t, !ok)
	be.Equal(t, dup, local)
	be.Equal(t, dup.Type, LONG)
	be.Equal(t, dup.Offset, 1)
	be.Equal(t, s.Warnings(), []string{`line 4: duplicate declaration of "x" (first declared on line 3)`})

	// The rejected duplicate still used slot 2.
	next, _ := s.Insert(SymbolData{Name: "y", Kind: SymVariable})
	be.Equal(t, next.Offset, 3)

	got, _ := s.Lookup("x")
	be.Equal(t, got, local)

	be.Err(t, s.ExitScope(), nil)
	s.DelBranch()
	got, _ = s.Lookup("x")
	be.Equal(t, got, global)
	be.Equal(t, s.Level(), 0)
}

func TestSymbolTableBranches(t *testing.T) {
	s := NewSymbolTable()
	s.Insert(SymbolData{Name: "g", Kind: SymVariable})

	// First function.
	s.NewBranch()
	s.EnterScope()
	s.Insert(SymbolData{Name: "a", Kind: SymParameter})
	s.EnterScope()
	be.Equal(t, s.Level(), 2)
	be.Err(t, s.ExitScope(), nil)
	be.Equal(t, s.Level(), 1)
	be.Err(t, s.ExitScope(), nil)
	s.DelBranch()

	// Second function sees globals but not the first one's locals.
	s.NewBranch()
	s.EnterScope()
	be.Equal(t, s.Level(), 1)
	_, ok := s.Lookup("a")
	be.True(t, !ok)
	_, ok = s.Lookup("g")
	be.True(t, ok)
	be.Err(t, s.ExitScope(), nil)
	s.DelBranch()
	be.Equal(t, s.Level(), 0)
}

func TestSymbolTableString(t *testing.T) {
	s := NewSymbolTable()
	s.Insert(SymbolData{Name: "total", Kind: SymVariable, Type: INT})
	s.Insert(SymbolData{Name: "add", Kind: SymFunction, Type: INT, Params: 2})
	s.EnterScope()

	want := "Scope 1: (empty)\n" +
		"Globals:\n" +
		"  add                   function int (params: 2)\n" +
		"  total                 variable int (offset: 1)\n"
	be.Equal(t, s.String(), want)

	s.Close()
	be.True(t, strings.HasPrefix(s.String(), "Globals: (empty)"))
}
