package dbexec

import (
	"context"
	"database/sql"
	"time"
)

// Operation names reported to an Observer.
const (
	OpQuery = "query"
	OpExec  = "exec"
)

// Observer receives one call per statement issued through an ObservedExecutor.
type Observer func(ctx context.Context, op string, duration time.Duration, err error)

// ObservedExecutor reports every statement it forwards to the wrapped executor.
type ObservedExecutor struct {
	next     QueryExecutor
	observer Observer
}

// NewObservedExecutor wraps next so each statement is reported to observer.
// A nil observer makes the wrapper a pass-through.
func NewObservedExecutor(next QueryExecutor, observer Observer) *ObservedExecutor {
	return &ObservedExecutor{next: next, observer: observer}
}

func (e *ObservedExecutor) QueryContext(ctx context.Context, query string, args ...any) (Rows, error) {
	start := time.Now()
	rows, err := e.next.QueryContext(ctx, query, args...)
	e.observe(ctx, OpQuery, start, err)
	return rows, err
}

func (e *ObservedExecutor) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	start := time.Now()
	result, err := e.next.ExecContext(ctx, query, args...)
	e.observe(ctx, OpExec, start, err)
	return result, err
}

func (e *ObservedExecutor) observe(ctx context.Context, op string, start time.Time, err error) {
	if e.observer == nil {
		return
	}
	e.observer(ctx, op, time.Since(start), err)
}
