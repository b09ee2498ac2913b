package calc

import "math"

// Operand is a decoded request operand. Numeric is false when the transport
// layer found a value of a non-numeric JSON type; Value is then meaningless.
type Operand struct {
	Value   float64
	Numeric bool
}

// Number returns a numeric Operand.
func Number(v float64) Operand {
	return Operand{Value: v, Numeric: true}
}

// ValidateOperands checks a pair of operands in fixed order: type first,
// then NaN. Infinite values are accepted.
func ValidateOperands(a, b Operand) error {
	if !a.Numeric || !b.Numeric {
		return ErrInvalidType
	}
	if math.IsNaN(a.Value) || math.IsNaN(b.Value) {
		return ErrNotANumber
	}
	return nil
}
