// Package store owns the chat database: opening a handle for the configured
// driver, creating the tables, loading seed rows and writing new messages.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"chat-graphql/internal/logging"

	"github.com/XSAM/otelsql"
	"github.com/go-sql-driver/mysql"
	_ "github.com/mattn/go-sqlite3"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

// Supported database drivers.
const (
	DriverMySQL  = "mysql"
	DriverSQLite = "sqlite3"
)

// PoolOptions bounds the connection pool.
type PoolOptions struct {
	MaxOpen     int
	MaxIdle     int
	MaxLifetime time.Duration
}

// Options describes how to open the database.
type Options struct {
	Driver string
	DSN    string
	Pool   PoolOptions

	Metrics      bool
	Tracing      bool
	SQLCommenter bool

	// ConnectTimeout bounds how long Open waits for the database to answer a
	// ping. Zero means a single attempt.
	ConnectTimeout time.Duration
	RetryInterval  time.Duration
}

// Handle is an open database together with its driver name.
type Handle struct {
	DB     *sql.DB
	Driver string

	statsReg interface{ Unregister() error }
}

// Close releases the pool and any metric registration.
func (h *Handle) Close() error {
	if h.statsReg != nil {
		_ = h.statsReg.Unregister()
	}
	return h.DB.Close()
}

// Open connects to the configured database and waits for it to answer.
// MySQL DSNs are forced to parse DATETIME columns as UTC time.Time values and
// SQLite DSNs to enforce foreign keys.
func Open(ctx context.Context, opts Options, logger *logging.Logger) (*Handle, error) {
	dsn, err := normalizeDSN(opts.Driver, opts.DSN)
	if err != nil {
		return nil, err
	}

	h := &Handle{Driver: opts.Driver}
	system := semconv.DBSystemKey.String(dbSystem(opts.Driver))

	if opts.Metrics || opts.Tracing {
		otelOpts := []otelsql.Option{otelsql.WithAttributes(system)}
		if opts.Tracing {
			otelOpts = append(otelOpts, otelsql.WithSpanOptions(otelsql.SpanOptions{DisableErrSkip: true}))
		}
		if opts.SQLCommenter && opts.Tracing {
			otelOpts = append(otelOpts, otelsql.WithSQLCommenter(true))
		} else if opts.SQLCommenter {
			logger.Warn("SQLCommenter requires tracing to be enabled - skipping SQLCommenter")
		}

		h.DB, err = otelsql.Open(opts.Driver, dsn, otelOpts...)
		if err != nil {
			return nil, err
		}
		if opts.Metrics {
			h.statsReg, err = otelsql.RegisterDBStatsMetrics(h.DB, otelsql.WithAttributes(system))
			if err != nil {
				logger.Warn("failed to register DB stats metrics", slog.String("error", err.Error()))
			}
		}
		logger.Info("database instrumentation enabled",
			slog.Bool("metrics", opts.Metrics),
			slog.Bool("tracing", opts.Tracing),
			slog.Bool("sqlcommenter", opts.SQLCommenter && opts.Tracing),
		)
	} else {
		h.DB, err = sql.Open(opts.Driver, dsn)
		if err != nil {
			return nil, err
		}
	}

	configurePool(h.DB, opts, dsn)

	if err := waitForDatabase(ctx, h.DB, opts, logger); err != nil {
		_ = h.Close()
		return nil, err
	}

	logger.Info("connected to database",
		slog.String("driver", opts.Driver),
		slog.Int("pool_max_open", opts.Pool.MaxOpen),
		slog.Int("pool_max_idle", opts.Pool.MaxIdle),
		slog.Duration("pool_max_lifetime", opts.Pool.MaxLifetime),
	)
	return h, nil
}

func dbSystem(driver string) string {
	if driver == DriverSQLite {
		return "sqlite"
	}
	return "mysql"
}

func normalizeDSN(driver, dsn string) (string, error) {
	switch driver {
	case DriverMySQL:
		cfg, err := mysql.ParseDSN(dsn)
		if err != nil {
			return "", fmt.Errorf("invalid mysql DSN: %w", err)
		}
		cfg.ParseTime = true
		cfg.Loc = time.UTC
		return cfg.FormatDSN(), nil
	case DriverSQLite:
		if dsn == "" {
			dsn = "file::memory:?cache=shared"
		}
		if strings.Contains(dsn, "_foreign_keys=") || strings.Contains(dsn, "_fk=") {
			return dsn, nil
		}
		sep := "?"
		if strings.Contains(dsn, "?") {
			sep = "&"
		}
		return dsn + sep + "_foreign_keys=on", nil
	default:
		return "", fmt.Errorf("unsupported database driver %q (use %s or %s)", driver, DriverMySQL, DriverSQLite)
	}
}

// isMemoryDSN reports whether every pooled connection would see its own
// private in-memory database.
func isMemoryDSN(dsn string) bool {
	return strings.Contains(dsn, ":memory:") || strings.Contains(dsn, "mode=memory")
}

func configurePool(db *sql.DB, opts Options, dsn string) {
	if opts.Driver == DriverSQLite && isMemoryDSN(dsn) {
		db.SetMaxOpenConns(1)
		db.SetConnMaxLifetime(0)
		return
	}
	if opts.Pool.MaxOpen > 0 {
		db.SetMaxOpenConns(opts.Pool.MaxOpen)
	}
	if opts.Pool.MaxIdle > 0 {
		db.SetMaxIdleConns(opts.Pool.MaxIdle)
	}
	db.SetConnMaxLifetime(opts.Pool.MaxLifetime)
}

func waitForDatabase(ctx context.Context, db *sql.DB, opts Options, logger *logging.Logger) error {
	if opts.ConnectTimeout == 0 {
		return db.PingContext(ctx)
	}

	interval := opts.RetryInterval
	if interval <= 0 {
		interval = time.Second
	}
	deadline := time.Now().Add(opts.ConnectTimeout)
	attempt := 0

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		attempt++
		err := db.PingContext(ctx)
		if err == nil {
			if attempt > 1 {
				logger.Info("database connection established", slog.Int("attempts", attempt))
			}
			return nil
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("database not available after %v: %w", opts.ConnectTimeout, err)
		}

		logger.Warn("database not ready, retrying...",
			slog.Int("attempt", attempt),
			slog.Duration("retry_in", interval),
			slog.String("error", err.Error()),
		)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(interval):
		}
		interval = min(interval*2, 30*time.Second)
	}
}
