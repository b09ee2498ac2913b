package audit

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrNilRepository is returned when a nil repository is passed to NewLogger.
	ErrNilRepository = errors.New("audit repository cannot be nil")
	// ErrInvalidOperationType is returned when an entry has no operation type.
	ErrInvalidOperationType = errors.New("operation type cannot be empty")
	// ErrInvalidStatus is returned when an entry status is not Success or Error.
	ErrInvalidStatus = errors.New("status must be Success or Error")
)

// Repository is the write side of the audit store.
type Repository interface {
	// Insert persists one entry and returns the stored record.
	Insert(ctx context.Context, entry Entry) (*Record, error)
}

// validateEntry checks the non-nullable columns.
func validateEntry(entry Entry) error {
	if entry.OperationType == "" {
		return ErrInvalidOperationType
	}
	if entry.Status != StatusSuccess && entry.Status != StatusError {
		return ErrInvalidStatus
	}
	return nil
}

// InMemoryRepository is an in-memory implementation of Repository.
// Used for testing and development. Thread-safe via RWMutex.
type InMemoryRepository struct {
	mu      sync.RWMutex
	records []*Record
}

// NewInMemoryRepository creates a new in-memory audit repository.
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{
		records: make([]*Record, 0),
	}
}

// Insert stores the entry with a generated UUID and UTC timestamp.
func (r *InMemoryRepository) Insert(ctx context.Context, entry Entry) (*Record, error) {
	if err := validateEntry(entry); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	rec := newRecord(entry)
	rec.ID = uuid.New().String()
	rec.CreatedAt = time.Now().UTC()

	r.mu.Lock()
	r.records = append(r.records, rec)
	r.mu.Unlock()

	// Return a copy to prevent external modification
	return copyRecord(rec), nil
}

// All returns copies of every stored record in insertion order.
func (r *InMemoryRepository) All() []*Record {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*Record, 0, len(r.records))
	for _, rec := range r.records {
		out = append(out, copyRecord(rec))
	}
	return out
}

// Count returns the number of stored records.
func (r *InMemoryRepository) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.records)
}

func copyRecord(rec *Record) *Record {
	c := *rec
	c.Operand1 = copyFloat(rec.Operand1)
	c.Operand2 = copyFloat(rec.Operand2)
	c.Result = copyFloat(rec.Result)
	c.ErrorMessage = copyString(rec.ErrorMessage)
	return &c
}
