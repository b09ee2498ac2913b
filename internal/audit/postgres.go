package audit

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"

	"github.com/lib/pq"
	"github.com/onnwee/calcapi/internal/tracing"
)

// DefaultTable is the table operation logs are written to.
const DefaultTable = "operation_logs"

// ErrInvalidTableName is returned for table names that are not plain identifiers.
var ErrInvalidTableName = errors.New("invalid audit table name")

var tableNamePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]{0,62}$`)

// PostgresRepository implements Repository using PostgreSQL.
// The table schema lives in migrations/000001_create_operation_logs.up.sql.
type PostgresRepository struct {
	db          *sql.DB
	table       string
	insertQuery string
}

// NewPostgresRepository creates a repository writing to table (DefaultTable if empty).
func NewPostgresRepository(db *sql.DB, table string) (*PostgresRepository, error) {
	if db == nil {
		return nil, ErrNilRepository
	}
	if table == "" {
		table = DefaultTable
	}
	if !tableNamePattern.MatchString(table) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidTableName, table)
	}

	query := fmt.Sprintf(`
		INSERT INTO %s (operation_type, operand1, operand2, result, status, error_message, request_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at
	`, pq.QuoteIdentifier(table))

	return &PostgresRepository{
		db:          db,
		table:       table,
		insertQuery: query,
	}, nil
}

// Insert writes one row and returns it with the database-assigned id and timestamp.
func (r *PostgresRepository) Insert(ctx context.Context, entry Entry) (rec *Record, err error) {
	if err := validateEntry(entry); err != nil {
		return nil, err
	}

	ctx, end := tracing.StartStoreSpan(ctx, "postgresql", "INSERT", r.table)
	defer func() { end(err) }()

	rec = newRecord(entry)
	err = r.db.QueryRowContext(ctx, r.insertQuery,
		entry.OperationType,
		nullFloat(entry.Operand1),
		nullFloat(entry.Operand2),
		nullFloat(entry.Result),
		entry.Status,
		nullString(entry.ErrorMessage),
		sql.NullString{String: entry.RequestID, Valid: entry.RequestID != ""},
	).Scan(&rec.ID, &rec.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to insert audit record: %w", err)
	}

	rec.CreatedAt = rec.CreatedAt.UTC()
	return rec, nil
}

func nullFloat(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}

func nullString(v *string) sql.NullString {
	if v == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *v, Valid: true}
}
