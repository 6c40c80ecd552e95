package value

import (
	"errors"
	"math"
	"testing"
)

func TestAddContracts(t *testing.T) {
	tests := []struct {
		name string
		a, b Value
		want Value
	}{
		{"number+number", Number(2), Number(3), Number(5)},
		{"text+text", Text("a"), Text("b"), Text("ab")},
		{"text+number", Text("x="), Number(5), Text("x=5")},
		{"number+text", Number(2.5), Text(" apples"), Text("2.5 apples")},
		{"negative number text", Text("t"), Number(-0.25), Text("t-0.25")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.a.Add(tt.b)
			if err != nil {
				t.Fatalf("Add failed: %v", err)
			}
			if !got.Equal(tt.want) {
				t.Errorf("Expected %#v, got %#v", tt.want, got)
			}
		})
	}
}

func TestAddTypeMismatch(t *testing.T) {
	cases := [][2]Value{
		{Bool(true), Number(1)},
		{Number(1), Bool(false)},
		{Absent, Number(1)},
		{Text("a"), Absent},
		{Bool(true), Text("a")},
	}
	for _, c := range cases {
		_, err := c[0].Add(c[1])
		if !errors.Is(err, ErrTypeMismatch) {
			t.Errorf("%#v + %#v: expected ErrTypeMismatch, got %v", c[0], c[1], err)
		}
	}
}

func TestArithmetic(t *testing.T) {
	sub, err := Number(5).Sub(Number(2))
	if err != nil || sub.Float() != 3 {
		t.Errorf("5 - 2: got %#v, %v", sub, err)
	}
	mul, err := Number(4).Mul(Number(2.5))
	if err != nil || mul.Float() != 10 {
		t.Errorf("4 * 2.5: got %#v, %v", mul, err)
	}
	div, err := Number(9).Div(Number(2))
	if err != nil || div.Float() != 4.5 {
		t.Errorf("9 / 2: got %#v, %v", div, err)
	}
	mod, err := Number(-7).Mod(Number(3))
	if err != nil || mod.Float() != -1 {
		t.Errorf("-7 %% 3: got %#v, %v", mod, err)
	}
	neg, err := Number(3).Neg()
	if err != nil || neg.Float() != -3 {
		t.Errorf("-3: got %#v, %v", neg, err)
	}
}

func TestDivisionByZero(t *testing.T) {
	if _, err := Number(1).Div(Number(0)); !errors.Is(err, ErrDivisionByZero) {
		t.Errorf("1 / 0: expected ErrDivisionByZero, got %v", err)
	}
	if _, err := Number(1).Mod(Number(0)); !errors.Is(err, ErrDivisionByZero) {
		t.Errorf("1 %% 0: expected ErrDivisionByZero, got %v", err)
	}
	if _, err := Number(1).Div(Number(math.Copysign(0, -1))); !errors.Is(err, ErrDivisionByZero) {
		t.Errorf("1 / -0: expected ErrDivisionByZero, got %v", err)
	}
}

func TestNumericOnlyOperators(t *testing.T) {
	ops := map[string]func(Value, Value) (Value, error){
		"sub": Value.Sub,
		"mul": Value.Mul,
		"div": Value.Div,
		"mod": Value.Mod,
		"lt":  Value.Less,
		"le":  Value.LessEqual,
		"gt":  Value.Greater,
		"ge":  Value.GreaterEqual,
	}
	for name, op := range ops {
		_, err := op(Text("a"), Text("b"))
		if !errors.Is(err, ErrTypeMismatch) {
			t.Errorf("%s on text: expected ErrTypeMismatch, got %v", name, err)
		}
		var opErr *OperatorError
		if !errors.As(err, &opErr) {
			t.Fatalf("%s: expected *OperatorError, got %T", name, err)
		}
		if opErr.Left != KindText || opErr.Right != KindText {
			t.Errorf("%s: operand kinds not recorded: %+v", name, opErr)
		}
	}
	if _, err := Text("a").Neg(); !errors.Is(err, ErrTypeMismatch) {
		t.Errorf("-text: expected ErrTypeMismatch, got %v", err)
	}
}

func TestComparisons(t *testing.T) {
	lt, _ := Number(1).Less(Number(2))
	le, _ := Number(2).LessEqual(Number(2))
	gt, _ := Number(1).Greater(Number(2))
	ge, _ := Number(3).GreaterEqual(Number(2))
	if !lt.Boolean() || !le.Boolean() || gt.Boolean() || !ge.Boolean() {
		t.Errorf("unexpected comparison results: %v %v %v %v", lt, le, gt, ge)
	}
}

func TestEqual(t *testing.T) {
	tests := []struct {
		a, b Value
		want bool
	}{
		{Number(1), Number(1), true},
		{Number(1), Text("1"), false},
		{Text("abc"), Text("abc"), true},
		{Text("abc"), Text("abd"), false},
		{Bool(true), Bool(true), true},
		{Bool(true), Number(1), false},
		{Absent, Absent, true},
		{Absent, Bool(false), false},
		{Absent, Text(""), false},
	}
	for _, tt := range tests {
		if got := tt.a.Equal(tt.b); got != tt.want {
			t.Errorf("%#v == %#v: expected %v, got %v", tt.a, tt.b, tt.want, got)
		}
	}
}

func TestAsBool(t *testing.T) {
	tests := []struct {
		v    Value
		want bool
	}{
		{Absent, false},
		{Bool(true), true},
		{Bool(false), false},
		{Number(0), false},
		{Number(-2), true},
		{Text(""), false},
		{Text("no"), true},
	}
	for _, tt := range tests {
		if got := tt.v.AsBool(); got != tt.want {
			t.Errorf("%#v.AsBool(): expected %v, got %v", tt.v, tt.want, got)
		}
	}
}

func TestFormatNumber(t *testing.T) {
	tests := map[float64]string{
		5:       "5",
		2.5:     "2.5",
		-0.125:  "-0.125",
		1000000: "1000000",
		0.1:     "0.1",
	}
	for in, want := range tests {
		if got := FormatNumber(in); got != want {
			t.Errorf("FormatNumber(%v): expected %q, got %q", in, want, got)
		}
	}
	if got := FormatNumber(math.Copysign(0, -1)); got != "0" {
		t.Errorf("FormatNumber(-0): expected \"0\", got %q", got)
	}
}

func TestZeroValueIsAbsent(t *testing.T) {
	var v Value
	if !v.IsAbsent() || v.Kind() != KindAbsent {
		t.Errorf("zero Value should be Absent, got %#v", v)
	}
	if v.String() != "null" || v.AsString() != "" {
		t.Errorf("unexpected text forms for Absent: %q %q", v.String(), v.AsString())
	}
}

func TestFromAny(t *testing.T) {
	v, ok := FromAny(3)
	if !ok || !v.Equal(Number(3)) {
		t.Errorf("FromAny(3): got %#v, %v", v, ok)
	}
	v, ok = FromAny("hi")
	if !ok || !v.Equal(Text("hi")) {
		t.Errorf("FromAny(\"hi\"): got %#v, %v", v, ok)
	}
	if _, ok := FromAny([]int{1}); ok {
		t.Error("FromAny should reject slices")
	}
}

func TestCBORRoundTrip(t *testing.T) {
	for _, v := range []Value{Absent, Number(-1.5), Text("hello"), Bool(true), Bool(false)} {
		data, err := v.MarshalCBOR()
		if err != nil {
			t.Fatalf("MarshalCBOR(%#v): %v", v, err)
		}
		var got Value
		if err := got.UnmarshalCBOR(data); err != nil {
			t.Fatalf("UnmarshalCBOR(%#v): %v", v, err)
		}
		if !got.Equal(v) {
			t.Errorf("round trip: expected %#v, got %#v", v, got)
		}
	}
}
