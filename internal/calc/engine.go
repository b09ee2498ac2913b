package calc

import "math"

// Evaluate applies op to a and b and classifies the result.
//
// Division by zero is rejected before dividing. Every other result is then
// checked uniformly: ±Inf is ErrOverflow, and so is the NaN produced by
// combining infinities (Inf-Inf, Inf*0, Inf/Inf). An exact zero produced
// from two nonzero operands is ErrUnderflow. The underflow rule also fires
// on exact cancellation such as 5-5; callers rely on that behaviour.
func Evaluate(op Operation, a, b float64) (float64, error) {
	fn, ok := binaryFuncs[op]
	if !ok {
		return 0, ErrUnsupportedOperation
	}

	if op == OpDivide && b == 0 {
		return 0, ErrDivisionByZero
	}

	result := fn(a, b)

	if math.IsInf(result, 0) || math.IsNaN(result) {
		return 0, ErrOverflow
	}
	if result == 0 && a != 0 && b != 0 {
		return 0, ErrUnderflow
	}
	return result, nil
}
