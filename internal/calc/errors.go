// Package calc implements the arithmetic core of the service: operand
// validation, the four binary operations and the classification of their
// results into the error taxonomy reported to callers.
package calc

import "errors"

// Kind identifies a class of failure in the operation pipeline.
type Kind int

// Failure kinds, in the order the pipeline can produce them.
const (
	KindNone Kind = iota
	KindValidation
	KindInvalidType
	KindUnsupportedOperation
	KindNotANumber
	KindDivisionByZero
	KindOverflow
	KindUnderflow
	KindUnexpectedFault
)

// Code returns the machine-readable code for the kind. Codes are used for
// the error_code log field and metrics labels.
func (k Kind) Code() string {
	switch k {
	case KindValidation:
		return "validation_error"
	case KindInvalidType:
		return "invalid_type"
	case KindUnsupportedOperation:
		return "unsupported_operation"
	case KindNotANumber:
		return "not_a_number"
	case KindDivisionByZero:
		return "division_by_zero"
	case KindOverflow:
		return "overflow"
	case KindUnderflow:
		return "underflow"
	case KindUnexpectedFault:
		return "unexpected_fault"
	default:
		return ""
	}
}

// Error is a classified pipeline failure. Message is the human-readable
// detail returned to the caller and persisted in the audit record.
type Error struct {
	Kind    Kind
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

// Sentinel errors for every business failure kind.
var (
	ErrValidation           = &Error{Kind: KindValidation, Message: "Request validation failed"}
	ErrInvalidType          = &Error{Kind: KindInvalidType, Message: "Invalid operand type, expected a number"}
	ErrUnsupportedOperation = &Error{Kind: KindUnsupportedOperation, Message: "Invalid operation"}
	ErrNotANumber           = &Error{Kind: KindNotANumber, Message: "Operands cannot be NaN"}
	ErrDivisionByZero       = &Error{Kind: KindDivisionByZero, Message: "Division by zero"}
	ErrOverflow             = &Error{Kind: KindOverflow, Message: "Overflow error"}
	ErrUnderflow            = &Error{Kind: KindUnderflow, Message: "Underflow error"}
)

// Fault wraps an unexpected failure (usually a recovered panic) so it can flow
// through the same reporting path as business errors.
func Fault(message string) *Error {
	return &Error{Kind: KindUnexpectedFault, Message: message}
}

// KindOf returns the Kind of err. Errors that are not *Error are reported
// as KindUnexpectedFault; a nil error is KindNone.
func KindOf(err error) Kind {
	if err == nil {
		return KindNone
	}
	var ce *Error
	if errors.As(err, &ce) {
		return ce.Kind
	}
	return KindUnexpectedFault
}
