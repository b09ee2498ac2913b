package calc

// Operation is one of the supported binary arithmetic operations.
type Operation int

// Supported operations. The zero value is not a valid operation.
const (
	OpAdd Operation = iota + 1
	OpSubtract
	OpMultiply
	OpDivide
)

var operationNames = map[Operation]string{
	OpAdd:      "add",
	OpSubtract: "subtract",
	OpMultiply: "multiply",
	OpDivide:   "divide",
}

var binaryFuncs = map[Operation]func(a, b float64) float64{
	OpAdd:      func(a, b float64) float64 { return a + b },
	OpSubtract: func(a, b float64) float64 { return a - b },
	OpMultiply: func(a, b float64) float64 { return a * b },
	OpDivide:   func(a, b float64) float64 { return a / b },
}

// Operations returns all supported operations in a stable order.
func Operations() []Operation {
	return []Operation{OpAdd, OpSubtract, OpMultiply, OpDivide}
}

// String returns the wire name of the operation ("add", "divide", ...).
func (o Operation) String() string {
	if name, ok := operationNames[o]; ok {
		return name
	}
	return "unknown"
}

// Valid reports whether o is one of the supported operations.
func (o Operation) Valid() bool {
	_, ok := operationNames[o]
	return ok
}

// ParseOperation resolves a wire name to an Operation.
// Names are matched exactly; anything else yields ErrUnsupportedOperation.
func ParseOperation(name string) (Operation, error) {
	for op, n := range operationNames {
		if n == name {
			return op, nil
		}
	}
	return 0, ErrUnsupportedOperation
}

// MetricLabel returns a bounded label value for an arbitrary operation name.
// Unknown names collapse to "unknown" to keep metric cardinality fixed.
func MetricLabel(name string) string {
	if _, err := ParseOperation(name); err != nil {
		return "unknown"
	}
	return name
}
