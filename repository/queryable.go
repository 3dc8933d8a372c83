package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Queryable is satisfied by both *pgxpool.Pool and pgx.Tx
type Queryable interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// rowScanner is satisfied by pgx.Row and *sql.Row
type rowScanner interface {
	Scan(dest ...any) error
}

// QueryRecorder measures repository calls, see observability.MetricsProvider
type QueryRecorder interface {
	MeasureDatabaseQuery(repository, method string) func()
}
