package compiler

import "regexp"

// Runtime routines emitted ahead of every program.
//
// Registers:
//
//	RAX  next free memory slot
//	RBX  base of the current frame; [RBX] holds the enclosing frame's base
//	RCX  scratch address for variable access
//
// A frame is a run of slots starting at its base. Slot 0 is the link, the
// variables of the scope follow at offsets 1, 2, ...
const (
	rtMoveRAX      = "move_rax_by_one"
	rtEnterScope   = "enter_scope"
	rtExitScope    = "exit_scope"
	rtSetRCXOffset = "set_rcx_offset"
	rtGetByOffset  = "get_rcx_by_offset"
	rtSetByOffset  = "set_rcx_by_offset"
)

var runtimeRoutines = []struct {
	name string
	body []string
}{
	{rtMoveRAX, []string{
		"PUSHR RAX",
		"PUSH 1",
		"ADD",
		"POPR RAX",
		"RET",
	}},
	{rtEnterScope, []string{
		"PUSHR RBX",
		"POPM [RAX]",
		"PUSHR RAX",
		"POPR RBX",
		"CALL " + rtMoveRAX,
		"RET",
	}},
	{rtExitScope, []string{
		"PUSHR RBX",
		"POPR RAX",
		"PUSHM [RBX]",
		"POPR RBX",
		"RET",
	}},
	// ( offset -- ) RCX += offset
	{rtSetRCXOffset, []string{
		"PUSHR RCX",
		"ADD",
		"POPR RCX",
		"RET",
	}},
	// ( offset -- value )
	{rtGetByOffset, []string{
		"CALL " + rtSetRCXOffset,
		"PUSHM [RCX]",
		"RET",
	}},
	// ( value offset -- )
	{rtSetByOffset, []string{
		"CALL " + rtSetRCXOffset,
		"POPM [RCX]",
		"RET",
	}},
}

// generatedLabel matches the numbered labels of control flow and comparisons.
var generatedLabel = regexp.MustCompile(`^(if|else|end_if|while|while_body|end_while|false_result|truth_result)_[0-9]+$`)

// reservedLabel reports whether a function called name would clash with a
// label the code generator emits itself.
func reservedLabel(name string) bool {
	for _, r := range runtimeRoutines {
		if r.name == name {
			return true
		}
	}
	return generatedLabel.MatchString(name)
}

func (cg *CodeGen) emitRuntime() {
	for _, r := range runtimeRoutines {
		cg.label(r.name)
		for _, ins := range r.body {
			cg.line("    %s", ins)
		}
	}
}
