// Package asm assembles stackcc assembly text into bytecode.
//
// The assembler makes two passes over the text. Pass 1 records every
// ": name" label as the instruction index of the instruction that follows
// it and blanks the definition. Pass 2 encodes each mnemonic and resolves
// its operand with the complete label table.
package asm

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"stackcc/pkg/hashmap"
	"stackcc/pkg/vm"
)

var (
	ErrNoLabel            = errors.New("missing label name")
	ErrInvalidInstruction = errors.New("invalid instruction")
	ErrInvalidLabel       = errors.New("undefined label")
	ErrInvalidRegister    = errors.New("invalid register")
	ErrInvalidNumber      = errors.New("invalid number")
	ErrDuplicateLabel     = errors.New("duplicate label")
)

// Error is an assembly failure tied to a source line.
type Error struct {
	Kind    error
	Line    int
	Excerpt string
	Detail  string
}

func (e *Error) Error() string {
	msg := e.Kind.Error()
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	return fmt.Sprintf("line %d: %s\n  |> %s", e.Line, msg, e.Excerpt)
}

func (e *Error) Unwrap() error { return e.Kind }

// Program is assembled bytecode.
type Program struct {
	StartIP int
	Code    []int32

	// Instructions is the number of encoded mnemonics, MAIN excluded.
	Instructions int

	// SourceMap maps an instruction index to its 1-based assembly line.
	SourceMap map[int]int
}

type Assembler struct {
	labels *hashmap.Map[int]
	source []string
}

type parsedLine struct {
	lineNo   int
	mnemonic string
	operands []string
}

func NewAssembler() *Assembler {
	return &Assembler{labels: hashmap.New[int]()}
}

func Assemble(code string) (*Program, error) {
	return NewAssembler().Assemble(code)
}

func (a *Assembler) Assemble(code string) (*Program, error) {
	if code == "" {
		return &Program{SourceMap: map[int]int{}}, nil
	}
	a.source = strings.Split(code, "\n")
	lines := make([]string, len(a.source))
	copy(lines, a.source)

	if err := a.pass1(lines); err != nil {
		return nil, err
	}
	return a.pass2(lines)
}

// Labels returns the label table built by the last Assemble call.
func (a *Assembler) Labels() map[string]int {
	out := make(map[string]int, a.labels.Len())
	for _, k := range a.labels.Keys() {
		v, _ := a.labels.Find(k)
		out[k] = v
	}
	return out
}

func (a *Assembler) fail(kind error, lineNo int, format string, args ...any) *Error {
	excerpt := "<source unavailable>"
	if lineNo >= 1 && lineNo <= len(a.source) {
		excerpt = strings.TrimSpace(a.source[lineNo-1])
	}
	return &Error{Kind: kind, Line: lineNo, Excerpt: excerpt, Detail: fmt.Sprintf(format, args...)}
}

func (a *Assembler) pass1(lines []string) error {
	index := 0

	for i := range lines {
		lineNo := i + 1
		line := strings.TrimSpace(stripComments(lines[i]))

		if strings.HasPrefix(line, ":") {
			fields := strings.Fields(line[1:])
			if len(fields) == 0 {
				return a.fail(ErrNoLabel, lineNo, "expected a name after ':'")
			}
			name := fields[0]
			if !isIdentifier(name) {
				return a.fail(ErrNoLabel, lineNo, "%q is not a label name", name)
			}
			if _, exists := a.labels.Find(name); exists {
				return a.fail(ErrDuplicateLabel, lineNo, "%q", name)
			}
			a.labels.Insert(name, index)

			// Blank the definition so pass 2 only sees what follows it.
			line = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(line[1:]), name))
			lines[i] = line
		}

		p := parseLine(line, lineNo)
		if p.mnemonic == "" {
			continue
		}
		in, ok := vm.Lookup(p.mnemonic)
		if !ok {
			return a.fail(ErrInvalidInstruction, lineNo, "unknown mnemonic %q", p.mnemonic)
		}
		index += in.Width()
	}

	return nil
}

func (a *Assembler) pass2(lines []string) (*Program, error) {
	prog := &Program{SourceMap: make(map[int]int)}

	for i, raw := range lines {
		lineNo := i + 1
		p := parseLine(raw, lineNo)
		if p.mnemonic == "" {
			continue
		}

		in, ok := vm.Lookup(p.mnemonic)
		if !ok {
			return nil, a.fail(ErrInvalidInstruction, lineNo, "unknown mnemonic %q", p.mnemonic)
		}

		if in.Op == vm.OpMAIN {
			if len(p.operands) != 0 {
				return nil, a.fail(ErrInvalidInstruction, lineNo, "MAIN takes no operands")
			}
			prog.StartIP = len(prog.Code)
			continue
		}

		want := in.Width() - 1
		if len(p.operands) > want {
			return nil, a.fail(ErrInvalidInstruction, lineNo, "%s expects %d operand(s), got %d", in.Name, want, len(p.operands))
		}

		prog.SourceMap[len(prog.Code)] = lineNo
		prog.Code = append(prog.Code, in.Op)
		prog.Instructions++

		if in.Mode == vm.ModeNone {
			continue
		}

		operand := ""
		if len(p.operands) == 1 {
			operand = p.operands[0]
		}
		value, err := a.resolveOperand(in, operand, lineNo)
		if err != nil {
			return nil, err
		}
		prog.Code = append(prog.Code, value)
	}

	return prog, nil
}

func (a *Assembler) resolveOperand(in vm.Instr, operand string, lineNo int) (int32, error) {
	switch in.Mode {
	case vm.ModeImmediate:
		return a.parseImmediate(operand, lineNo)

	case vm.ModeRegister:
		return a.parseRegister(operand, lineNo)

	case vm.ModeMemory:
		if len(operand) < 3 || operand[0] != '[' || operand[len(operand)-1] != ']' {
			return 0, a.fail(ErrInvalidRegister, lineNo, "%s expects [REG], got %q", in.Name, operand)
		}
		return a.parseRegister(operand[1:len(operand)-1], lineNo)

	case vm.ModeLabel:
		if operand == "" {
			return 0, a.fail(ErrInvalidLabel, lineNo, "%s expects a label", in.Name)
		}
		target, ok := a.labels.Find(operand)
		if !ok {
			return 0, a.fail(ErrInvalidLabel, lineNo, "%q", operand)
		}
		return int32(target), nil
	}
	return 0, a.fail(ErrInvalidInstruction, lineNo, "unsupported operand mode for %s", in.Name)
}

func parseLine(raw string, lineNo int) parsedLine {
	p := parsedLine{lineNo: lineNo}

	line := strings.TrimSpace(stripComments(raw))
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return p
	}

	p.mnemonic = strings.ToUpper(fields[0])
	if len(fields) > 1 {
		p.operands = fields[1:]
	}
	return p
}

func stripComments(line string) string {
	if semicolon := strings.IndexByte(line, ';'); semicolon >= 0 {
		return line[:semicolon]
	}
	return line
}

func (a *Assembler) parseRegister(token string, lineNo int) (int32, error) {
	r, ok := vm.LookupRegister(token)
	if !ok {
		return 0, a.fail(ErrInvalidRegister, lineNo, "%q", token)
	}
	return r, nil
}

// parseImmediate accepts only base-10 integers that fit a 32-bit slot.
func (a *Assembler) parseImmediate(token string, lineNo int) (int32, error) {
	if token == "" {
		return 0, a.fail(ErrInvalidNumber, lineNo, "missing operand")
	}
	value, err := strconv.ParseInt(token, 10, 32)
	if err != nil {
		return 0, a.fail(ErrInvalidNumber, lineNo, "%q", token)
	}
	return int32(value), nil
}

func isIdentifier(s string) bool {
	if s == "" {
		return false
	}

	for i, r := range s {
		if i == 0 {
			if !unicode.IsLetter(r) && r != '_' {
				return false
			}
			continue
		}

		if !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_' {
			return false
		}
	}

	return true
}
