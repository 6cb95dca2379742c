package vm

import "strings"

// Opcodes. The numbering is part of the bytecode file format.
const (
	OpUNDEF int32 = 0x00
	OpIN    int32 = 0x01
	OpOUT   int32 = 0x02
	OpPUSH  int32 = 0x03
	OpPOP   int32 = 0x04
	OpPUSHR int32 = 0x05
	OpPOPR  int32 = 0x06
	OpADD   int32 = 0x07
	OpSUB   int32 = 0x08
	OpMUL   int32 = 0x09
	OpDIV   int32 = 0x0A
	OpSQRT  int32 = 0x0B
	OpJA    int32 = 0x0C
	OpJAE   int32 = 0x0D
	OpJB    int32 = 0x0E
	OpJBE   int32 = 0x0F
	OpJE    int32 = 0x10
	OpJNE   int32 = 0x11
	OpJMP   int32 = 0x12
	OpCALL  int32 = 0x13
	OpRET   int32 = 0x14
	OpHLT   int32 = 0x15
	OpPUSHM int32 = 0x16
	OpPOPM  int32 = 0x17
	OpMAIN  int32 = 0x18
)

// Register numbers as they appear in operand slots.
const (
	RegRAX int32 = 1
	RegRBX int32 = 2
	RegRCX int32 = 3
)

// Mode says how the operand slot after an opcode is encoded.
type Mode byte

const (
	ModeNone      Mode = 0
	ModeImmediate Mode = 'n' // signed integer
	ModeRegister  Mode = 'r' // register number
	ModeLabel     Mode = 'l' // instruction index
	ModeMemory    Mode = 'm' // [REG], encoded as the register number
)

// Instr describes one mnemonic of the instruction set.
type Instr struct {
	Op   int32
	Name string
	Mode Mode
}

// Width is the number of integer slots the instruction occupies in the bytecode stream.
// MAIN is a marker and occupies none.
func (i Instr) Width() int {
	switch {
	case i.Op == OpMAIN:
		return 0
	case i.Mode == ModeNone:
		return 1
	default:
		return 2
	}
}

// instructions is indexed by opcode.
var instructions = [...]Instr{
	OpUNDEF: {OpUNDEF, "UNDEF", ModeNone},
	OpIN:    {OpIN, "IN", ModeNone},
	OpOUT:   {OpOUT, "OUT", ModeNone},
	OpPUSH:  {OpPUSH, "PUSH", ModeImmediate},
	OpPOP:   {OpPOP, "POP", ModeNone},
	OpPUSHR: {OpPUSHR, "PUSHR", ModeRegister},
	OpPOPR:  {OpPOPR, "POPR", ModeRegister},
	OpADD:   {OpADD, "ADD", ModeNone},
	OpSUB:   {OpSUB, "SUB", ModeNone},
	OpMUL:   {OpMUL, "MUL", ModeNone},
	OpDIV:   {OpDIV, "DIV", ModeNone},
	OpSQRT:  {OpSQRT, "SQRT", ModeNone},
	OpJA:    {OpJA, "JA", ModeLabel},
	OpJAE:   {OpJAE, "JAE", ModeLabel},
	OpJB:    {OpJB, "JB", ModeLabel},
	OpJBE:   {OpJBE, "JBE", ModeLabel},
	OpJE:    {OpJE, "JE", ModeLabel},
	OpJNE:   {OpJNE, "JNE", ModeLabel},
	OpJMP:   {OpJMP, "JMP", ModeLabel},
	OpCALL:  {OpCALL, "CALL", ModeLabel},
	OpRET:   {OpRET, "RET", ModeNone},
	OpHLT:   {OpHLT, "HLT", ModeNone},
	OpPUSHM: {OpPUSHM, "PUSHM", ModeMemory},
	OpPOPM:  {OpPOPM, "POPM", ModeMemory},
	OpMAIN:  {OpMAIN, "MAIN", ModeNone},
}

var mnemonics = func() map[string]Instr {
	m := make(map[string]Instr, len(instructions))
	for _, in := range instructions[OpIN:] {
		m[in.Name] = in
	}
	return m
}()

var registers = map[string]int32{
	"RAX": RegRAX,
	"RBX": RegRBX,
	"RCX": RegRCX,
}

// Lookup resolves a mnemonic, ignoring case. UNDEF is not an assemblable mnemonic.
func Lookup(mnemonic string) (Instr, bool) {
	in, ok := mnemonics[strings.ToUpper(mnemonic)]
	return in, ok
}

// Decode returns the instruction for an opcode read from a bytecode stream.
func Decode(op int32) (Instr, bool) {
	if op <= OpUNDEF || int(op) >= len(instructions) {
		return Instr{}, false
	}
	return instructions[op], true
}

// LookupRegister resolves a register name, ignoring case.
func LookupRegister(name string) (int32, bool) {
	r, ok := registers[strings.ToUpper(name)]
	return r, ok
}

// RegisterName is the inverse of LookupRegister.
func RegisterName(r int32) string {
	for name, n := range registers {
		if n == r {
			return name
		}
	}
	return "R?"
}
