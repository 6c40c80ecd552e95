// Package value implements the runtime datum manipulated by the dialogue VM.
//
// A Value is exactly one of:
//   - Number: a float64
//   - Text: a string
//   - Bool: a boolean
//   - Absent: the "no value" sentinel returned for unset variables
//
// Operators are defined per operand-kind combination. Combinations that have
// no meaning return an *OperatorError instead of coercing.
package value

import (
	"math"
	"strconv"
)

// Kind identifies which variant a Value holds.
type Kind uint8

const (
	KindAbsent Kind = iota
	KindNumber
	KindText
	KindBool
)

// String returns the name of the kind as used in error messages.
func (k Kind) String() string {
	switch k {
	case KindAbsent:
		return "absent"
	case KindNumber:
		return "number"
	case KindText:
		return "text"
	case KindBool:
		return "bool"
	default:
		return "Kind(" + strconv.Itoa(int(k)) + ")"
	}
}

// Value is a tagged union. The zero Value is Absent.
type Value struct {
	kind Kind
	num  float64
	str  string
	b    bool
}

// Absent is the "no value" sentinel.
var Absent = Value{}

// Number returns a Number value.
func Number(f float64) Value {
	return Value{kind: KindNumber, num: f}
}

// Text returns a Text value.
func Text(s string) Value {
	return Value{kind: KindText, str: s}
}

// Bool returns a Bool value.
func Bool(b bool) Value {
	return Value{kind: KindBool, b: b}
}

// Kind returns the variant held by v.
func (v Value) Kind() Kind { return v.kind }

// IsAbsent reports whether v is the Absent sentinel.
func (v Value) IsAbsent() bool { return v.kind == KindAbsent }

// Float returns the number payload. Only meaningful for KindNumber.
func (v Value) Float() float64 { return v.num }

// Str returns the text payload. Only meaningful for KindText.
func (v Value) Str() string { return v.str }

// Boolean returns the bool payload. Only meaningful for KindBool.
func (v Value) Boolean() bool { return v.b }

// AsBool evaluates truthiness: Absent is false, Bool is itself, Number is
// nonzero, Text is non-empty.
func (v Value) AsBool() bool {
	switch v.kind {
	case KindBool:
		return v.b
	case KindNumber:
		return v.num != 0
	case KindText:
		return v.str != ""
	default:
		return false
	}
}

// AsNumber converts v to a float64 for host-side consumers such as runtime
// functions. Text that does not parse as a number converts to NaN.
func (v Value) AsNumber() float64 {
	switch v.kind {
	case KindNumber:
		return v.num
	case KindBool:
		if v.b {
			return 1
		}
		return 0
	case KindText:
		f, err := strconv.ParseFloat(v.str, 64)
		if err != nil {
			return math.NaN()
		}
		return f
	default:
		return 0
	}
}

// AsString converts v to text. Absent converts to the empty string.
func (v Value) AsString() string {
	switch v.kind {
	case KindNumber:
		return FormatNumber(v.num)
	case KindText:
		return v.str
	case KindBool:
		return strconv.FormatBool(v.b)
	default:
		return ""
	}
}

// String returns a display form. Unlike AsString, Absent renders as "null"
// and Text is left unquoted.
func (v Value) String() string {
	if v.kind == KindAbsent {
		return "null"
	}
	return v.AsString()
}

// GoString returns a debugging form that makes the variant visible.
func (v Value) GoString() string {
	switch v.kind {
	case KindNumber:
		return "Number(" + FormatNumber(v.num) + ")"
	case KindText:
		return "Text(" + strconv.Quote(v.str) + ")"
	case KindBool:
		return "Bool(" + strconv.FormatBool(v.b) + ")"
	default:
		return "Absent"
	}
}

// FormatNumber returns the canonical decimal text of f: the shortest
// representation that parses back to the same float64, without exponent.
func FormatNumber(f float64) string {
	if f == 0 {
		// Normalise -0.
		return "0"
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// FromAny converts a native Go value into a Value. Supported inputs are nil,
// bool, string, all integer and float types, and Value itself.
func FromAny(x any) (Value, bool) {
	switch t := x.(type) {
	case nil:
		return Absent, true
	case Value:
		return t, true
	case bool:
		return Bool(t), true
	case string:
		return Text(t), true
	case float64:
		return Number(t), true
	case float32:
		return Number(float64(t)), true
	case int:
		return Number(float64(t)), true
	case int8:
		return Number(float64(t)), true
	case int16:
		return Number(float64(t)), true
	case int32:
		return Number(float64(t)), true
	case int64:
		return Number(float64(t)), true
	case uint:
		return Number(float64(t)), true
	case uint8:
		return Number(float64(t)), true
	case uint16:
		return Number(float64(t)), true
	case uint32:
		return Number(float64(t)), true
	case uint64:
		return Number(float64(t)), true
	default:
		return Absent, false
	}
}

// Interface returns the native Go form of v: nil, float64, string or bool.
func (v Value) Interface() any {
	switch v.kind {
	case KindNumber:
		return v.num
	case KindText:
		return v.str
	case KindBool:
		return v.b
	default:
		return nil
	}
}
