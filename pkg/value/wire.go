package value

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

// wireValue is the CBOR shape of a Value. Only the field matching K is set.
type wireValue struct {
	K Kind    `cbor:"1,keyasint"`
	N float64 `cbor:"2,keyasint,omitempty"`
	S string  `cbor:"3,keyasint,omitempty"`
	B bool    `cbor:"4,keyasint,omitempty"`
}

// MarshalCBOR implements cbor.Marshaler.
func (v Value) MarshalCBOR() ([]byte, error) {
	return cbor.Marshal(wireValue{K: v.kind, N: v.num, S: v.str, B: v.b})
}

// UnmarshalCBOR implements cbor.Unmarshaler.
func (v *Value) UnmarshalCBOR(data []byte) error {
	var w wireValue
	if err := cbor.Unmarshal(data, &w); err != nil {
		return fmt.Errorf("value: unmarshal: %w", err)
	}
	switch w.K {
	case KindAbsent:
		*v = Absent
	case KindNumber:
		*v = Number(w.N)
	case KindText:
		*v = Text(w.S)
	case KindBool:
		*v = Bool(w.B)
	default:
		return fmt.Errorf("value: unmarshal: unknown kind %d", w.K)
	}
	return nil
}
