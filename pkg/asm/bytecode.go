package asm

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/ztrue/tracerr"

	"stackcc/pkg/vm"
)

// maxSlots bounds the count read from a file header before allocating.
const maxSlots = 1 << 26

var ErrCorrupt = errors.New("corrupt bytecode")

var byteOrder = binary.LittleEndian

// WriteTo writes the bytecode file format:
//
//	[uint64 start_ip][uint64 count][count × int32]
func (p *Program) WriteTo(w io.Writer) (int64, error) {
	bw := bufio.NewWriter(w)
	header := [2]uint64{uint64(p.StartIP), uint64(len(p.Code))}
	if err := binary.Write(bw, byteOrder, header); err != nil {
		return 0, err
	}
	if err := binary.Write(bw, byteOrder, p.Code); err != nil {
		return 16, err
	}
	if err := bw.Flush(); err != nil {
		return 0, err
	}
	return int64(16 + 4*len(p.Code)), nil
}

// ReadProgram decodes a bytecode stream written by WriteTo.
func ReadProgram(r io.Reader) (*Program, error) {
	var header [2]uint64
	if err := binary.Read(r, byteOrder, &header); err != nil {
		return nil, fmt.Errorf("%w: header: %v", ErrCorrupt, err)
	}
	start, count := header[0], header[1]
	if count > maxSlots {
		return nil, fmt.Errorf("%w: %d slots exceeds limit", ErrCorrupt, count)
	}
	if start > count {
		return nil, fmt.Errorf("%w: start_ip %d beyond %d slots", ErrCorrupt, start, count)
	}

	code := make([]int32, count)
	if err := binary.Read(r, byteOrder, code); err != nil {
		return nil, fmt.Errorf("%w: body: %v", ErrCorrupt, err)
	}

	p := &Program{StartIP: int(start), Code: code}
	lines, err := p.Disassemble()
	if err != nil {
		return nil, err
	}
	p.Instructions = len(lines)
	return p, nil
}

// WriteFile writes p to path. The file is written under a temporary name
// and renamed into place, so a failed write never leaves a partial file.
func WriteFile(path string, p *Program) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".stackcc-*.tmp")
	if err != nil {
		return tracerr.Wrap(err)
	}
	defer os.Remove(tmp.Name())

	if _, err := p.WriteTo(tmp); err != nil {
		tmp.Close()
		return tracerr.Wrap(err)
	}
	if err := tmp.Close(); err != nil {
		return tracerr.Wrap(err)
	}
	return tracerr.Wrap(os.Rename(tmp.Name(), path))
}

func ReadFile(path string) (*Program, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, tracerr.Wrap(err)
	}
	defer f.Close()

	p, err := ReadProgram(bufio.NewReader(f))
	if err != nil {
		return nil, tracerr.Wrap(fmt.Errorf("%s: %w", path, err))
	}
	return p, nil
}

// Line is one decoded instruction.
type Line struct {
	Index   int
	Instr   vm.Instr
	Operand int32
}

func (l Line) String() string {
	switch l.Instr.Mode {
	case vm.ModeNone:
		return fmt.Sprintf("%04d  %s", l.Index, l.Instr.Name)
	case vm.ModeRegister:
		return fmt.Sprintf("%04d  %s %s", l.Index, l.Instr.Name, vm.RegisterName(l.Operand))
	case vm.ModeMemory:
		return fmt.Sprintf("%04d  %s [%s]", l.Index, l.Instr.Name, vm.RegisterName(l.Operand))
	default:
		return fmt.Sprintf("%04d  %s %d", l.Index, l.Instr.Name, l.Operand)
	}
}

// Disassemble replays the arity table over the integer stream.
func (p *Program) Disassemble() ([]Line, error) {
	var lines []Line
	for i := 0; i < len(p.Code); {
		in, ok := vm.Decode(p.Code[i])
		if !ok || in.Op == vm.OpMAIN {
			return lines, fmt.Errorf("%w: opcode %d at %d", ErrCorrupt, p.Code[i], i)
		}
		l := Line{Index: i, Instr: in}
		if in.Width() == 2 {
			if i+1 >= len(p.Code) {
				return lines, fmt.Errorf("%w: %s at %d is missing its operand", ErrCorrupt, in.Name, i)
			}
			l.Operand = p.Code[i+1]
		}
		lines = append(lines, l)
		i += in.Width()
	}
	return lines, nil
}

// Listing renders the disassembly with the entry point marked.
func (p *Program) Listing() (string, error) {
	lines, err := p.Disassemble()
	var sb strings.Builder
	fmt.Fprintf(&sb, "; start_ip %d, %d slots, %d instructions\n", p.StartIP, len(p.Code), len(lines))
	for _, l := range lines {
		if l.Index == p.StartIP {
			sb.WriteString("MAIN\n")
		}
		sb.WriteString(l.String())
		sb.WriteByte('\n')
	}
	return sb.String(), err
}
