package bytecode

import (
	"fmt"
	"strings"
)

// Opcode represents a dialogue VM instruction.
// Opcodes are organized into ranges by category for easy identification.
type Opcode byte

const (
	// ========================================================================
	// Stack manipulation (0x00-0x0F)
	// ========================================================================

	OpNop Opcode = 0x00 // No operation
	OpPop Opcode = 0x01 // Pop and discard top of stack

	// ========================================================================
	// Values and variables (0x10-0x1F)
	// ========================================================================

	OpPushValue     Opcode = 0x10 // Push literal: OpPushValue <value>
	OpPushVariable  Opcode = 0x11 // Push variable: OpPushVariable <name>
	OpStoreVariable Opcode = 0x12 // Pop and store: OpStoreVariable <name>

	// ========================================================================
	// Expressions (0x20-0x2F)
	// ========================================================================

	OpCallFunction Opcode = 0x20 // Call library function: OpCallFunction <name> <argc>

	// ========================================================================
	// Control flow (0x30-0x3F)
	// ========================================================================

	OpJump        Opcode = 0x30 // Unconditional jump: OpJump <label>
	OpJumpIfFalse Opcode = 0x31 // Pop, jump if falsy: OpJumpIfFalse <label>
	OpJumpToNode  Opcode = 0x32 // Leave node for another: OpJumpToNode [name]

	// ========================================================================
	// Dialogue content (0x40-0x4F)
	// ========================================================================

	OpRunLine     Opcode = 0x40 // Yield a line: OpRunLine <lineID> [count]
	OpAddOption   Opcode = 0x41 // Append option: OpAddOption <lineID> <dest> [cond] [count]
	OpShowOptions Opcode = 0x42 // Yield pending options and wait for a choice
	OpRunCommand  Opcode = 0x43 // Yield a command: OpRunCommand <text> [count]

	// ========================================================================
	// Termination (0xF0-0xFF)
	// ========================================================================

	OpStop    Opcode = 0xF0 // Terminate the run
	OpEndNode Opcode = 0xF1 // Mark node boundary and yield NodeComplete
)

// OperandKind identifies the type of an instruction operand.
type OperandKind uint8

const (
	OperandValue  OperandKind = iota // literal value.Value
	OperandString                    // name, label, line ID or command text
	OperandInt                       // count
	OperandBool                      // flag
)

// String returns the operand kind name.
func (k OperandKind) String() string {
	switch k {
	case OperandValue:
		return "value"
	case OperandString:
		return "string"
	case OperandInt:
		return "int"
	case OperandBool:
		return "bool"
	default:
		return fmt.Sprintf("OperandKind(%d)", k)
	}
}

// OpcodeInfo provides metadata about each opcode for debugging and validation.
type OpcodeInfo struct {
	Name      string        // Human-readable name
	StackPop  int           // How many values popped from stack (-1 = variable)
	StackPush int           // How many values pushed to stack
	Required  []OperandKind // Operands that must be present
	Optional  []OperandKind // Trailing operands that may be present
}

// opcodeInfoTable maps opcodes to their metadata.
var opcodeInfoTable = map[Opcode]OpcodeInfo{
	// Stack manipulation
	OpNop: {"Nop", 0, 0, nil, nil},
	OpPop: {"Pop", 1, 0, nil, nil},

	// Values and variables
	OpPushValue:     {"PushValue", 0, 1, []OperandKind{OperandValue}, nil},
	OpPushVariable:  {"PushVariable", 0, 1, []OperandKind{OperandString}, nil},
	OpStoreVariable: {"StoreVariable", 1, 0, []OperandKind{OperandString}, nil},

	// Expressions
	OpCallFunction: {"CallFunction", -1, 1, []OperandKind{OperandString, OperandInt}, nil},

	// Control flow
	OpJump:        {"Jump", 0, 0, []OperandKind{OperandString}, nil},
	OpJumpIfFalse: {"JumpIfFalse", 1, 0, []OperandKind{OperandString}, nil},
	OpJumpToNode:  {"JumpToNode", -1, 0, nil, []OperandKind{OperandString}},

	// Dialogue content
	OpRunLine:     {"RunLine", -1, 0, []OperandKind{OperandString}, []OperandKind{OperandInt}},
	OpAddOption:   {"AddOption", -1, 0, []OperandKind{OperandString, OperandString}, []OperandKind{OperandBool, OperandInt}},
	OpShowOptions: {"ShowOptions", 0, 0, nil, nil},
	OpRunCommand:  {"RunCommand", -1, 0, []OperandKind{OperandString}, []OperandKind{OperandInt}},

	// Termination
	OpStop:    {"Stop", 0, 0, nil, nil},
	OpEndNode: {"EndNode", 0, 0, nil, nil},
}

// GetOpcodeInfo returns metadata for an opcode.
// Returns a zero OpcodeInfo with name "UNKNOWN" if the opcode is not recognized.
func GetOpcodeInfo(op Opcode) OpcodeInfo {
	if info, ok := opcodeInfoTable[op]; ok {
		return info
	}
	return OpcodeInfo{Name: fmt.Sprintf("UNKNOWN(0x%02X)", byte(op))}
}

// String returns the human-readable name of an opcode.
func (op Opcode) String() string {
	return GetOpcodeInfo(op).Name
}

// Valid reports whether op is a defined opcode.
func (op Opcode) Valid() bool {
	_, ok := opcodeInfoTable[op]
	return ok
}

// IsJump returns true if this opcode moves the instruction pointer within a node.
func (op Opcode) IsJump() bool {
	return op == OpJump || op == OpJumpIfFalse
}

// IsSuspension returns true if executing this opcode may hand a result to the host.
func (op Opcode) IsSuspension() bool {
	switch op {
	case OpRunLine, OpShowOptions, OpRunCommand, OpJumpToNode, OpStop, OpEndNode:
		return true
	}
	return false
}

// IsTerminator returns true if this opcode ends the run.
func (op Opcode) IsTerminator() bool {
	return op >= OpStop
}

// ParseOpcode looks an opcode up by name, case-insensitively.
// "Return" is accepted as an alias for EndNode.
func ParseOpcode(name string) (Opcode, error) {
	if strings.EqualFold(name, "Return") {
		return OpEndNode, nil
	}
	for op, info := range opcodeInfoTable {
		if strings.EqualFold(info.Name, name) {
			return op, nil
		}
	}
	return 0, fmt.Errorf("unknown opcode %q", name)
}

// AllOpcodes returns a slice of all defined opcodes.
// Useful for testing that all opcodes have metadata.
func AllOpcodes() []Opcode {
	opcodes := make([]Opcode, 0, len(opcodeInfoTable))
	for op := range opcodeInfoTable {
		opcodes = append(opcodes, op)
	}
	return opcodes
}

// OpcodeCount returns the number of defined opcodes.
func OpcodeCount() int {
	return len(opcodeInfoTable)
}
