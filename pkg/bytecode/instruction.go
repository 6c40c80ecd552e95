package bytecode

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/chazu/yarnvm/pkg/value"
)

// Operand is a typed instruction argument. Only the field matching Kind is set.
type Operand struct {
	Kind  OperandKind `cbor:"1,keyasint"`
	Value value.Value `cbor:"2,keyasint"`
	Str   string      `cbor:"3,keyasint,omitempty"`
	Int   int         `cbor:"4,keyasint,omitempty"`
	Bool  bool        `cbor:"5,keyasint,omitempty"`
}

// ValueOperand wraps a literal.
func ValueOperand(v value.Value) Operand { return Operand{Kind: OperandValue, Value: v} }

// StringOperand wraps a name, label, line ID or command text.
func StringOperand(s string) Operand { return Operand{Kind: OperandString, Str: s} }

// IntOperand wraps a count.
func IntOperand(n int) Operand { return Operand{Kind: OperandInt, Int: n} }

// BoolOperand wraps a flag.
func BoolOperand(b bool) Operand { return Operand{Kind: OperandBool, Bool: b} }

// String formats the operand for listings.
func (o Operand) String() string {
	switch o.Kind {
	case OperandValue:
		if o.Value.Kind() == value.KindText {
			return strconv.Quote(o.Value.Str())
		}
		return o.Value.String()
	case OperandString:
		return o.Str
	case OperandInt:
		return strconv.Itoa(o.Int)
	case OperandBool:
		return strconv.FormatBool(o.Bool)
	default:
		return "?"
	}
}

// Instruction is one opcode plus its operands. Instructions are immutable
// once a Program has been validated.
type Instruction struct {
	Op       Opcode    `cbor:"1,keyasint"`
	Operands []Operand `cbor:"2,keyasint,omitempty"`
}

// NewInstruction builds an instruction.
func NewInstruction(op Opcode, operands ...Operand) Instruction {
	return Instruction{Op: op, Operands: operands}
}

// String formats the instruction as "Op a b c".
func (in Instruction) String() string {
	if len(in.Operands) == 0 {
		return in.Op.String()
	}
	parts := make([]string, 0, len(in.Operands)+1)
	parts = append(parts, in.Op.String())
	for _, o := range in.Operands {
		parts = append(parts, o.String())
	}
	return strings.Join(parts, " ")
}

// Str returns string operand i, or "" if absent.
func (in Instruction) Str(i int) string {
	if i < len(in.Operands) {
		return in.Operands[i].Str
	}
	return ""
}

// Int returns int operand i, or 0 if absent.
func (in Instruction) Int(i int) int {
	if i < len(in.Operands) {
		return in.Operands[i].Int
	}
	return 0
}

// Bool returns bool operand i, or false if absent.
func (in Instruction) Bool(i int) bool {
	if i < len(in.Operands) {
		return in.Operands[i].Bool
	}
	return false
}

// Literal returns value operand i, or Absent if missing.
func (in Instruction) Literal(i int) value.Value {
	if i < len(in.Operands) {
		return in.Operands[i].Value
	}
	return value.Absent
}

// HasOperand reports whether operand i is present.
func (in Instruction) HasOperand(i int) bool {
	return i < len(in.Operands)
}

// validate checks operand count and kinds against the opcode table.
func (in Instruction) validate() error {
	info, ok := opcodeInfoTable[in.Op]
	if !ok {
		return fmt.Errorf("unknown opcode 0x%02X", byte(in.Op))
	}
	limit := len(info.Required) + len(info.Optional)
	if len(in.Operands) < len(info.Required) || len(in.Operands) > limit {
		if len(info.Optional) == 0 {
			return fmt.Errorf("%s expects %d operands, got %d", info.Name, len(info.Required), len(in.Operands))
		}
		return fmt.Errorf("%s expects %d to %d operands, got %d", info.Name, len(info.Required), limit, len(in.Operands))
	}
	for i, o := range in.Operands {
		var want OperandKind
		if i < len(info.Required) {
			want = info.Required[i]
		} else {
			want = info.Optional[i-len(info.Required)]
		}
		if o.Kind != want {
			return fmt.Errorf("%s operand %d: expected %s, got %s", info.Name, i, want, o.Kind)
		}
		if o.Kind == OperandInt && o.Int < 0 {
			return fmt.Errorf("%s operand %d: negative count %d", info.Name, i, o.Int)
		}
	}
	return nil
}
