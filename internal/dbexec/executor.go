// Package dbexec is the seam between the query engine and database/sql.
// Resolvers, the chat writer, migrations and seeding all issue statements
// through a QueryExecutor, so tests can run them against sqlmock and the server
// can wrap the pool in an ObservedExecutor that feeds statement metrics.
package dbexec

import (
	"context"
	"database/sql"
	"fmt"
)

// Rows is the part of *sql.Rows the row scanner reads.
type Rows interface {
	Columns() ([]string, error)
	Next() bool
	Scan(dest ...any) error
	Err() error
	Close() error
}

// QueryExecutor runs planned statements with bound arguments.
type QueryExecutor interface {
	QueryContext(ctx context.Context, query string, args ...any) (Rows, error)
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

var errNoDatabase = fmt.Errorf("dbexec: executor has no database: %w", sql.ErrConnDone)

// StandardExecutor sends statements straight to the connection pool.
type StandardExecutor struct {
	db *sql.DB
}

// NewStandardExecutor creates an executor over db.
func NewStandardExecutor(db *sql.DB) *StandardExecutor {
	return &StandardExecutor{db: db}
}

func (e *StandardExecutor) QueryContext(ctx context.Context, query string, args ...any) (Rows, error) {
	if e.db == nil {
		return nil, errNoDatabase
	}
	rows, err := e.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (e *StandardExecutor) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	if e.db == nil {
		return nil, errNoDatabase
	}
	return e.db.ExecContext(ctx, query, args...)
}
