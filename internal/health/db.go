package health

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"
)

// DBChecker implements health checking for SQL databases.
type DBChecker struct {
	db    *sql.DB
	table string
}

// NewDBChecker creates a new database health checker.
// When table is non-empty the check also verifies the table is queryable,
// which catches a database whose migrations were never applied.
func NewDBChecker(db *sql.DB, table string) *DBChecker {
	return &DBChecker{
		db:    db,
		table: table,
	}
}

// HealthCheck pings the database and probes the configured table.
func (d *DBChecker) HealthCheck(ctx context.Context) error {
	if err := d.db.PingContext(ctx); err != nil {
		return fmt.Errorf("ping database: %w", err)
	}
	if d.table == "" {
		return nil
	}
	query := fmt.Sprintf("SELECT 1 FROM %s LIMIT 0", pq.QuoteIdentifier(d.table))
	rows, err := d.db.QueryContext(ctx, query)
	if err != nil {
		return fmt.Errorf("probe table %s: %w", d.table, err)
	}
	return rows.Close()
}
