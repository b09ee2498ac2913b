package calc

// Status is the persisted status of an operation attempt.
type Status string

// Status values stored in the audit log.
const (
	StatusSuccess Status = "Success"
	StatusError   Status = "Error"
)

// Outcome is the result of one request attempt, successful or not.
// Operands are nil when they could not be decoded.
type Outcome struct {
	Operation    string
	Operand1     *float64
	Operand2     *float64
	Result       *float64
	Status       Status
	ErrorMessage *string
}

// Succeeded builds a successful Outcome.
func Succeeded(operation string, a, b, result float64) Outcome {
	return Outcome{
		Operation: operation,
		Operand1:  &a,
		Operand2:  &b,
		Result:    &result,
		Status:    StatusSuccess,
	}
}

// Failed builds a failed Outcome. a and b may be nil.
func Failed(operation string, a, b *float64, err error) Outcome {
	msg := "unknown error"
	if err != nil {
		msg = err.Error()
	}
	return Outcome{
		Operation:    operation,
		Operand1:     a,
		Operand2:     b,
		Status:       StatusError,
		ErrorMessage: &msg,
	}
}

// Valid reports whether the outcome satisfies the exclusive invariant:
// either a result with Success and no message, or no result with Error
// and a message.
func (o Outcome) Valid() bool {
	switch o.Status {
	case StatusSuccess:
		return o.Result != nil && o.ErrorMessage == nil
	case StatusError:
		return o.Result == nil && o.ErrorMessage != nil
	default:
		return false
	}
}
