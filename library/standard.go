package library

import "github.com/chazu/yarnvm/pkg/value"

// Standard operator names, as emitted by the dialogue compiler.
const (
	Add                  = "Add"
	Minus                = "Minus"
	UnaryMinus           = "UnaryMinus"
	Multiply             = "Multiply"
	Divide               = "Divide"
	Modulo               = "Modulo"
	EqualTo              = "EqualTo"
	NotEqualTo           = "NotEqualTo"
	LessThan             = "LessThan"
	LessThanOrEqualTo    = "LessThanOrEqualTo"
	GreaterThan          = "GreaterThan"
	GreaterThanOrEqualTo = "GreaterThanOrEqualTo"
	And                  = "And"
	Or                   = "Or"
	Xor                  = "Xor"
	Not                  = "Not"
)

type binaryOp func(a, b value.Value) (value.Value, error)

func binary(op binaryOp) Func {
	return func(args []value.Value) (value.Value, error) {
		return op(args[0], args[1])
	}
}

func predicate(p func(a, b value.Value) bool) Func {
	return func(args []value.Value) (value.Value, error) {
		return value.Bool(p(args[0], args[1])), nil
	}
}

// RegisterStandard installs the arithmetic, comparison and boolean
// operators into l. Every entry is defined through the Value operator
// contracts.
func RegisterStandard(l *Library) {
	// Arithmetic
	l.Register(Add, Exact(2), binary(value.Value.Add))
	l.Register(Minus, Exact(2), binary(value.Value.Sub))
	l.Register(Multiply, Exact(2), binary(value.Value.Mul))
	l.Register(Divide, Exact(2), binary(value.Value.Div))
	l.Register(Modulo, Exact(2), binary(value.Value.Mod))
	l.Register(UnaryMinus, Exact(1), func(args []value.Value) (value.Value, error) {
		return args[0].Neg()
	})

	// Comparison
	l.Register(EqualTo, Exact(2), predicate(value.Value.Equal))
	l.Register(NotEqualTo, Exact(2), predicate(func(a, b value.Value) bool { return !a.Equal(b) }))
	l.Register(LessThan, Exact(2), binary(value.Value.Less))
	l.Register(LessThanOrEqualTo, Exact(2), binary(value.Value.LessEqual))
	l.Register(GreaterThan, Exact(2), binary(value.Value.Greater))
	l.Register(GreaterThanOrEqualTo, Exact(2), binary(value.Value.GreaterEqual))

	// Boolean
	l.Register(And, Exact(2), predicate(func(a, b value.Value) bool { return a.AsBool() && b.AsBool() }))
	l.Register(Or, Exact(2), predicate(func(a, b value.Value) bool { return a.AsBool() || b.AsBool() }))
	l.Register(Xor, Exact(2), predicate(func(a, b value.Value) bool { return a.AsBool() != b.AsBool() }))
	l.Register(Not, Exact(1), func(args []value.Value) (value.Value, error) {
		return value.Bool(!args[0].AsBool()), nil
	})
}
