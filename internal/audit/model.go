// Package audit records every arithmetic operation attempt, successful or not,
// to a pluggable backing store. Writes are best-effort: store failures are
// reported on the diagnostic log and in metrics, never to the caller.
package audit

import (
	"time"
)

// Status values persisted in the status column.
const (
	StatusSuccess = "Success"
	StatusError   = "Error"
)

// OperationValidationError is recorded as the operation type when a request
// body was rejected before its operation could be determined.
const OperationValidationError = "validation_error"

// Record is a persisted audit entry. ID and CreatedAt are assigned by the store.
type Record struct {
	ID            string
	OperationType string
	Operand1      *float64
	Operand2      *float64
	Result        *float64
	Status        string
	ErrorMessage  *string
	CreatedAt     time.Time

	// Optional metadata
	RequestID string
}

// Entry is the input for creating a Record. Nil pointers are stored as NULL.
type Entry struct {
	OperationType string
	Operand1      *float64
	Operand2      *float64
	Result        *float64
	Status        string
	ErrorMessage  *string

	// Optional metadata
	RequestID string
}

// newRecord copies an Entry into a Record, leaving ID and CreatedAt unset.
func newRecord(entry Entry) *Record {
	return &Record{
		OperationType: entry.OperationType,
		Operand1:      copyFloat(entry.Operand1),
		Operand2:      copyFloat(entry.Operand2),
		Result:        copyFloat(entry.Result),
		Status:        entry.Status,
		ErrorMessage:  copyString(entry.ErrorMessage),
		RequestID:     entry.RequestID,
	}
}

func copyFloat(v *float64) *float64 {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

func copyString(v *string) *string {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}
