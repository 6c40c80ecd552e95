package value

import (
	"errors"
	"fmt"
	"math"
)

var (
	// ErrTypeMismatch is returned when an operator is applied to operand
	// kinds it does not define.
	ErrTypeMismatch = errors.New("type mismatch")

	// ErrDivisionByZero is returned by Div and Mod when the divisor is zero.
	ErrDivisionByZero = errors.New("division by zero")
)

// OperatorError describes a failed operator application.
type OperatorError struct {
	Op    string
	Left  Kind
	Right Kind // KindAbsent and Unary set for unary operators
	Unary bool
	Err   error
}

func (e *OperatorError) Error() string {
	if e.Unary {
		return fmt.Sprintf("%s: %s on %s", e.Err, e.Op, e.Left)
	}
	return fmt.Sprintf("%s: %s %s %s", e.Err, e.Left, e.Op, e.Right)
}

func (e *OperatorError) Unwrap() error { return e.Err }

func mismatch(op string, a, b Value) error {
	return &OperatorError{Op: op, Left: a.kind, Right: b.kind, Err: ErrTypeMismatch}
}

// Add sums two Numbers, concatenates two Texts, or concatenates a Text with
// the canonical text of a Number (in either order).
func (v Value) Add(o Value) (Value, error) {
	switch {
	case v.kind == KindNumber && o.kind == KindNumber:
		return Number(v.num + o.num), nil
	case v.kind == KindText && o.kind == KindText:
		return Text(v.str + o.str), nil
	case v.kind == KindText && o.kind == KindNumber:
		return Text(v.str + FormatNumber(o.num)), nil
	case v.kind == KindNumber && o.kind == KindText:
		return Text(FormatNumber(v.num) + o.str), nil
	}
	return Absent, mismatch("+", v, o)
}

func (v Value) numeric(op string, o Value) (float64, float64, error) {
	if v.kind != KindNumber || o.kind != KindNumber {
		return 0, 0, mismatch(op, v, o)
	}
	return v.num, o.num, nil
}

// Sub subtracts o from v. Numbers only.
func (v Value) Sub(o Value) (Value, error) {
	a, b, err := v.numeric("-", o)
	if err != nil {
		return Absent, err
	}
	return Number(a - b), nil
}

// Mul multiplies two Numbers.
func (v Value) Mul(o Value) (Value, error) {
	a, b, err := v.numeric("*", o)
	if err != nil {
		return Absent, err
	}
	return Number(a * b), nil
}

// Div divides v by o. Fails with ErrDivisionByZero when o is exactly zero.
func (v Value) Div(o Value) (Value, error) {
	a, b, err := v.numeric("/", o)
	if err != nil {
		return Absent, err
	}
	if b == 0 {
		return Absent, &OperatorError{Op: "/", Left: v.kind, Right: o.kind, Err: ErrDivisionByZero}
	}
	return Number(a / b), nil
}

// Mod returns the floating-point remainder of v / o, with the sign of v.
func (v Value) Mod(o Value) (Value, error) {
	a, b, err := v.numeric("%", o)
	if err != nil {
		return Absent, err
	}
	if b == 0 {
		return Absent, &OperatorError{Op: "%", Left: v.kind, Right: o.kind, Err: ErrDivisionByZero}
	}
	return Number(math.Mod(a, b)), nil
}

// Neg negates a Number.
func (v Value) Neg() (Value, error) {
	if v.kind != KindNumber {
		return Absent, &OperatorError{Op: "-", Left: v.kind, Unary: true, Err: ErrTypeMismatch}
	}
	return Number(-v.num), nil
}

// Less reports v < o. Numbers only.
func (v Value) Less(o Value) (Value, error) {
	a, b, err := v.numeric("<", o)
	if err != nil {
		return Absent, err
	}
	return Bool(a < b), nil
}

// LessEqual reports v <= o. Numbers only.
func (v Value) LessEqual(o Value) (Value, error) {
	a, b, err := v.numeric("<=", o)
	if err != nil {
		return Absent, err
	}
	return Bool(a <= b), nil
}

// Greater reports v > o. Numbers only.
func (v Value) Greater(o Value) (Value, error) {
	a, b, err := v.numeric(">", o)
	if err != nil {
		return Absent, err
	}
	return Bool(a > b), nil
}

// GreaterEqual reports v >= o. Numbers only.
func (v Value) GreaterEqual(o Value) (Value, error) {
	a, b, err := v.numeric(">=", o)
	if err != nil {
		return Absent, err
	}
	return Bool(a >= b), nil
}

// Equal is defined for every pair of kinds. Values of different kinds are
// never equal; Absent equals Absent.
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case KindNumber:
		return v.num == o.num
	case KindText:
		return v.str == o.str
	case KindBool:
		return v.b == o.b
	default:
		return true
	}
}
