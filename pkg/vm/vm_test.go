package vm

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/nalgeon/be"
)

// prog flattens instruction words into a code slice.
func prog(words ...int32) []int32 {
	return words
}

func run(t *testing.T, code []int32, stdin string) (*Machine, string, error) {
	t.Helper()
	var out bytes.Buffer
	m := New(code, 0, Options{Memory: 64, MaxSteps: 1000, Stdin: strings.NewReader(stdin), Stdout: &out})
	err := m.Run()
	return m, out.String(), err
}

func TestArithmetic(t *testing.T) {
	tests := []struct {
		name string
		op   int32
		a, b int32
		want int32
	}{
		{"add", OpADD, 7, 5, 12},
		{"sub", OpSUB, 7, 5, 2},
		{"mul", OpMUL, 7, 5, 35},
		{"div", OpDIV, 7, 2, 3},
		{"sub negative", OpSUB, 2, 9, -7},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			m, _, err := run(t, prog(OpPUSH, tc.a, OpPUSH, tc.b, tc.op, OpHLT), "")
			be.Err(t, err, nil)
			be.Equal(t, m.Stack, []int32{tc.want})
		})
	}
}

func TestConditionalJumps(t *testing.T) {
	// PUSH a; PUSH b; Jcc 9; PUSH 0; HLT; (9:) PUSH 1; HLT
	tests := []struct {
		op    int32
		a, b  int32
		taken bool
	}{
		{OpJA, 3, 2, true},
		{OpJA, 2, 2, false},
		{OpJAE, 2, 2, true},
		{OpJB, 1, 2, true},
		{OpJB, 2, 1, false},
		{OpJBE, 2, 2, true},
		{OpJE, 4, 4, true},
		{OpJNE, 4, 4, false},
	}
	for _, tc := range tests {
		in, _ := Decode(tc.op)
		t.Run(in.Name, func(t *testing.T) {
			m, _, err := run(t, prog(OpPUSH, tc.a, OpPUSH, tc.b, tc.op, 9, OpPUSH, 0, OpHLT, OpPUSH, 1, OpHLT), "")
			be.Err(t, err, nil)
			want := int32(0)
			if tc.taken {
				want = 1
			}
			be.Equal(t, m.Stack, []int32{want})
		})
	}
}

func TestRegistersAndMemory(t *testing.T) {
	code := prog(
		OpPUSH, 5, OpPOPR, RegRAX, // RAX = 5
		OpPUSH, 42, OpPOPM, RegRAX, // mem[5] = 42
		OpPUSHM, RegRAX, // push mem[5]
		OpPUSHR, RegRAX,
		OpHLT,
	)
	m, _, err := run(t, code, "")
	be.Err(t, err, nil)
	be.Equal(t, m.Memory[5], int32(42))
	be.Equal(t, m.Stack, []int32{42, 5})
}

func TestCallAndReturn(t *testing.T) {
	code := prog(
		OpCALL, 3, // 0
		OpHLT,     // 2
		OpPUSH, 9, // 3
		OpRET, // 5
	)
	m, _, err := run(t, code, "")
	be.Err(t, err, nil)
	be.Equal(t, m.Stack, []int32{9})
	be.Equal(t, len(m.Calls), 0)
	be.Equal(t, m.IP, 3)
}

func TestReturnFromTopLevelHalts(t *testing.T) {
	m, _, err := run(t, prog(OpPUSH, 1, OpRET, OpPUSH, 2), "")
	be.Err(t, err, nil)
	be.True(t, m.Halted)
	be.Equal(t, m.Stack, []int32{1})
}

func TestInputOutput(t *testing.T) {
	_, out, err := run(t, prog(OpIN, OpIN, OpADD, OpOUT, OpHLT), "40 2\n")
	be.Err(t, err, nil)
	be.Equal(t, out, "42\n")
}

func TestSqrt(t *testing.T) {
	m, _, err := run(t, prog(OpPUSH, 17, OpSQRT, OpHLT), "")
	be.Err(t, err, nil)
	be.Equal(t, m.Stack, []int32{4})
}

func TestFaults(t *testing.T) {
	tests := []struct {
		name string
		code []int32
		want error
	}{
		{"underflow", prog(OpADD), ErrStackUnderflow},
		{"divide by zero", prog(OpPUSH, 1, OpPUSH, 0, OpDIV), ErrDivideByZero},
		{"bad address", prog(OpPUSH, 1000, OpPOPR, RegRCX, OpPUSHM, RegRCX), ErrBadAddress},
		{"bad register", prog(OpPUSHR, 7), ErrBadRegister},
		{"bad opcode", prog(99), ErrBadOpcode},
		{"negative sqrt", prog(OpPUSH, -4, OpSQRT), ErrNegativeSqrt},
		{"no input", prog(OpIN), ErrNoInput},
		{"infinite loop", prog(OpJMP, 0), ErrStepLimit},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, _, err := run(t, tc.code, "")
			be.True(t, errors.Is(err, tc.want))
			var f *Fault
			be.True(t, errors.As(err, &f))
		})
	}
}

func TestLookup(t *testing.T) {
	in, ok := Lookup("pushm")
	be.True(t, ok)
	be.Equal(t, in.Op, OpPUSHM)
	be.Equal(t, in.Mode, ModeMemory)
	be.Equal(t, in.Width(), 2)

	main, ok := Lookup("MAIN")
	be.True(t, ok)
	be.Equal(t, main.Width(), 0)

	_, ok = Lookup("UNDEF")
	be.True(t, !ok)
	_, ok = Lookup("MOV")
	be.True(t, !ok)

	r, ok := LookupRegister("rbx")
	be.True(t, ok)
	be.Equal(t, r, RegRBX)
	be.Equal(t, RegisterName(RegRCX), "RCX")
}
