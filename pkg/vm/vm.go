// Package vm implements the stack machine that executes stackcc bytecode.
//
// The machine has a data stack, a separate call stack, three registers
// (RAX, RBX, RCX) and a flat word-addressed memory that holds the chain of
// activation records built by the compiler's runtime routines.
package vm

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
)

const (
	DefaultMemory   = 4096
	DefaultMaxSteps = 10_000_000
)

var (
	ErrStackUnderflow = errors.New("stack underflow")
	ErrDivideByZero   = errors.New("division by zero")
	ErrBadAddress     = errors.New("memory address out of range")
	ErrBadOpcode      = errors.New("invalid opcode")
	ErrBadRegister    = errors.New("invalid register")
	ErrBadJump        = errors.New("jump target out of range")
	ErrNegativeSqrt   = errors.New("square root of negative value")
	ErrNoInput        = errors.New("no input available")
	ErrStepLimit      = errors.New("step limit exceeded")
)

// Fault is a runtime error raised while executing the instruction at IP.
type Fault struct {
	IP  int
	Op  string
	Err error
}

func (f *Fault) Error() string {
	return fmt.Sprintf("fault at %d (%s): %v", f.IP, f.Op, f.Err)
}

func (f *Fault) Unwrap() error { return f.Err }

// Options configures a Machine. Zero values select the defaults.
type Options struct {
	Memory   int
	MaxSteps int
	Stdin    io.Reader
	Stdout   io.Writer
}

// Machine is a single execution of a bytecode program.
type Machine struct {
	Regs   [4]int32 // indexed by register number, slot 0 unused
	IP     int
	Stack  []int32
	Calls  []int
	Memory []int32
	Steps  int
	Halted bool

	code     []int32
	maxSteps int
	in       *bufio.Reader
	out      io.Writer
}

// New loads code and positions the instruction pointer at startIP.
func New(code []int32, startIP int, opts Options) *Machine {
	if opts.Memory <= 0 {
		opts.Memory = DefaultMemory
	}
	if opts.MaxSteps <= 0 {
		opts.MaxSteps = DefaultMaxSteps
	}
	if opts.Stdin == nil {
		opts.Stdin = os.Stdin
	}
	if opts.Stdout == nil {
		opts.Stdout = os.Stdout
	}
	return &Machine{
		IP:       startIP,
		Memory:   make([]int32, opts.Memory),
		code:     code,
		maxSteps: opts.MaxSteps,
		in:       bufio.NewReader(opts.Stdin),
		out:      opts.Stdout,
	}
}

func (m *Machine) push(v int32) {
	m.Stack = append(m.Stack, v)
}

func (m *Machine) pop() (int32, error) {
	if len(m.Stack) == 0 {
		return 0, ErrStackUnderflow
	}
	v := m.Stack[len(m.Stack)-1]
	m.Stack = m.Stack[:len(m.Stack)-1]
	return v, nil
}

// pop2 returns the second-from-top value as a and the top as b.
func (m *Machine) pop2() (a, b int32, err error) {
	if b, err = m.pop(); err != nil {
		return 0, 0, err
	}
	if a, err = m.pop(); err != nil {
		return 0, 0, err
	}
	return a, b, nil
}

func (m *Machine) reg(r int32) (*int32, error) {
	if r < RegRAX || r > RegRCX {
		return nil, ErrBadRegister
	}
	return &m.Regs[r], nil
}

func (m *Machine) addr(r int32) (int, error) {
	p, err := m.reg(r)
	if err != nil {
		return 0, err
	}
	a := int(*p)
	if a < 0 || a >= len(m.Memory) {
		return 0, ErrBadAddress
	}
	return a, nil
}

func (m *Machine) jump(target int32) error {
	if target < 0 || int(target) > len(m.code) {
		return ErrBadJump
	}
	m.IP = int(target)
	return nil
}

// Step executes one instruction.
func (m *Machine) Step() error {
	if m.Halted {
		return nil
	}
	if m.IP < 0 || m.IP >= len(m.code) {
		// Running off the end of the program is a normal stop.
		m.Halted = true
		return nil
	}
	if m.Steps >= m.maxSteps {
		return &Fault{IP: m.IP, Op: "-", Err: ErrStepLimit}
	}
	m.Steps++

	ip := m.IP
	in, ok := Decode(m.code[ip])
	if !ok {
		return &Fault{IP: ip, Op: fmt.Sprintf("%d", m.code[ip]), Err: ErrBadOpcode}
	}
	var operand int32
	if in.Width() == 2 {
		if ip+1 >= len(m.code) {
			return &Fault{IP: ip, Op: in.Name, Err: ErrBadOpcode}
		}
		operand = m.code[ip+1]
	}
	m.IP += in.Width()

	if err := m.exec(in, operand); err != nil {
		return &Fault{IP: ip, Op: in.Name, Err: err}
	}
	return nil
}

func (m *Machine) exec(in Instr, operand int32) error {
	switch in.Op {
	case OpHLT:
		m.Halted = true

	case OpMAIN:
		// Marker only; the assembler never emits it.

	case OpIN:
		var v int32
		if _, err := fmt.Fscan(m.in, &v); err != nil {
			if errors.Is(err, io.EOF) {
				return ErrNoInput
			}
			return err
		}
		m.push(v)

	case OpOUT:
		v, err := m.pop()
		if err != nil {
			return err
		}
		fmt.Fprintln(m.out, v)

	case OpPUSH:
		m.push(operand)

	case OpPOP:
		_, err := m.pop()
		return err

	case OpPUSHR:
		r, err := m.reg(operand)
		if err != nil {
			return err
		}
		m.push(*r)

	case OpPOPR:
		r, err := m.reg(operand)
		if err != nil {
			return err
		}
		v, err := m.pop()
		if err != nil {
			return err
		}
		*r = v

	case OpPUSHM:
		a, err := m.addr(operand)
		if err != nil {
			return err
		}
		m.push(m.Memory[a])

	case OpPOPM:
		a, err := m.addr(operand)
		if err != nil {
			return err
		}
		v, err := m.pop()
		if err != nil {
			return err
		}
		m.Memory[a] = v

	case OpADD, OpSUB, OpMUL, OpDIV:
		a, b, err := m.pop2()
		if err != nil {
			return err
		}
		switch in.Op {
		case OpADD:
			m.push(a + b)
		case OpSUB:
			m.push(a - b)
		case OpMUL:
			m.push(a * b)
		case OpDIV:
			if b == 0 {
				return ErrDivideByZero
			}
			m.push(a / b)
		}

	case OpSQRT:
		a, err := m.pop()
		if err != nil {
			return err
		}
		if a < 0 {
			return ErrNegativeSqrt
		}
		m.push(int32(math.Sqrt(float64(a))))

	case OpJMP:
		return m.jump(operand)

	case OpJA, OpJAE, OpJB, OpJBE, OpJE, OpJNE:
		a, b, err := m.pop2()
		if err != nil {
			return err
		}
		if compare(in.Op, a, b) {
			return m.jump(operand)
		}

	case OpCALL:
		m.Calls = append(m.Calls, m.IP)
		return m.jump(operand)

	case OpRET:
		if len(m.Calls) == 0 {
			// Returning from the outermost level ends the program.
			m.Halted = true
			return nil
		}
		m.IP = m.Calls[len(m.Calls)-1]
		m.Calls = m.Calls[:len(m.Calls)-1]

	default:
		return ErrBadOpcode
	}
	return nil
}

// compare evaluates a conditional jump: a is the second value on the stack, b the top.
func compare(op int32, a, b int32) bool {
	switch op {
	case OpJA:
		return a > b
	case OpJAE:
		return a >= b
	case OpJB:
		return a < b
	case OpJBE:
		return a <= b
	case OpJE:
		return a == b
	case OpJNE:
		return a != b
	}
	return false
}

// Run steps until the machine halts or faults.
func (m *Machine) Run() error {
	for !m.Halted {
		if err := m.Step(); err != nil {
			return err
		}
	}
	return nil
}
