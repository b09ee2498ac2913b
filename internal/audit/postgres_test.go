package audit

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
)

func TestNewPostgresRepository_TableName(t *testing.T) {
	db, _, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock new: %v", err)
	}
	defer db.Close()

	tests := []struct {
		name    string
		table   string
		wantErr bool
	}{
		{"default", "", false},
		{"custom", "calc_audit", false},
		{"injection", "logs; DROP TABLE users", true},
		{"schema qualified", "public.logs", true},
		{"leading digit", "1logs", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewPostgresRepository(db, tt.table)
			if tt.wantErr && !errors.Is(err, ErrInvalidTableName) {
				t.Errorf("NewPostgresRepository(%q) error = %v, want %v", tt.table, err, ErrInvalidTableName)
			}
			if !tt.wantErr && err != nil {
				t.Errorf("NewPostgresRepository(%q) error = %v", tt.table, err)
			}
		})
	}

	if _, err := NewPostgresRepository(nil, ""); !errors.Is(err, ErrNilRepository) {
		t.Errorf("NewPostgresRepository(nil) error = %v, want %v", err, ErrNilRepository)
	}
}

func TestPostgresRepository_InsertSuccess(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock new: %v", err)
	}
	defer db.Close()

	repo, err := NewPostgresRepository(db, "")
	if err != nil {
		t.Fatalf("NewPostgresRepository() error = %v", err)
	}

	createdAt := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	mock.ExpectQuery(`INSERT INTO "operation_logs"`).
		WithArgs("add", 10.0, 5.0, 15.0, StatusSuccess, nil, "req-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).AddRow("7c9e6679-7425-40de-944b-e07fc1f90ae7", createdAt))

	rec, err := repo.Insert(context.Background(), Entry{
		OperationType: "add",
		Operand1:      floatPtr(10),
		Operand2:      floatPtr(5),
		Result:        floatPtr(15),
		Status:        StatusSuccess,
		RequestID:     "req-1",
	})
	if err != nil {
		t.Fatalf("Insert() error = %v", err)
	}
	if rec.ID != "7c9e6679-7425-40de-944b-e07fc1f90ae7" {
		t.Errorf("Insert() ID = %q", rec.ID)
	}
	if !rec.CreatedAt.Equal(createdAt) {
		t.Errorf("Insert() CreatedAt = %v, want %v", rec.CreatedAt, createdAt)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestPostgresRepository_InsertNulls(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock new: %v", err)
	}
	defer db.Close()

	repo, err := NewPostgresRepository(db, "calc_audit")
	if err != nil {
		t.Fatalf("NewPostgresRepository() error = %v", err)
	}

	mock.ExpectQuery(`INSERT INTO "calc_audit"`).
		WithArgs(OperationValidationError, nil, nil, nil, StatusError, "Request validation failed", nil).
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).AddRow("id-1", time.Now()))

	_, err = repo.Insert(context.Background(), Entry{
		OperationType: OperationValidationError,
		Status:        StatusError,
		ErrorMessage:  strPtr("Request validation failed"),
	})
	if err != nil {
		t.Fatalf("Insert() error = %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestPostgresRepository_InsertError(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock new: %v", err)
	}
	defer db.Close()

	repo, err := NewPostgresRepository(db, "")
	if err != nil {
		t.Fatalf("NewPostgresRepository() error = %v", err)
	}

	dbErr := errors.New("relation does not exist")
	mock.ExpectQuery(`INSERT INTO "operation_logs"`).WillReturnError(dbErr)

	_, err = repo.Insert(context.Background(), Entry{
		OperationType: "subtract",
		Operand1:      floatPtr(5),
		Operand2:      floatPtr(5),
		Status:        StatusError,
		ErrorMessage:  strPtr("Underflow error"),
	})
	if !errors.Is(err, dbErr) {
		t.Errorf("Insert() error = %v, want wrapped %v", err, dbErr)
	}
}

func TestPostgresRepository_RejectsInvalidEntry(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock new: %v", err)
	}
	defer db.Close()

	repo, _ := NewPostgresRepository(db, "")
	if _, err := repo.Insert(context.Background(), Entry{Status: StatusSuccess}); !errors.Is(err, ErrInvalidOperationType) {
		t.Errorf("Insert() error = %v, want %v", err, ErrInvalidOperationType)
	}

	// No query should have been issued.
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}
