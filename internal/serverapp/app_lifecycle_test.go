package serverapp

import (
	"context"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"sync/atomic"
	"syscall"
	"testing"
	"time"

	"chat-graphql/internal/config"
	"chat-graphql/internal/logging"
	"chat-graphql/internal/naming"
)

func testLogger() *logging.Logger {
	return logging.NewLogger(logging.Config{Level: "error", Format: "text"})
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		Database: config.DatabaseConfig{
			Driver:           config.DriverSQLite,
			ConnectionString: filepath.Join(t.TempDir(), "chat.db"),
			Migrate:          true,
			Seed:             true,
		},
		Server: config.ServerConfig{
			Port:               0,
			ReadTimeout:        time.Second,
			WriteTimeout:       time.Second,
			IdleTimeout:        time.Second,
			ShutdownTimeout:    time.Second,
			HealthCheckTimeout: time.Second,
			TLSMode:            "off",
		},
		Auth: config.AuthConfig{
			Mode:        config.AuthModeHS256,
			HS256Secret: testSecret,
			ClockSkew:   time.Minute,
			UserIDClaim: "user_id",
			AdminClaim:  "admin",
		},
		Observability: config.ObservabilityConfig{
			ServiceName:    "chat-graphql",
			ServiceVersion: "test",
			Environment:    "test",
			Logging:        config.LoggingConfig{Level: "error", Format: "text"},
		},
		Naming: naming.DefaultConfig(),
	}
}

func TestWaitForStop_SignalWins(t *testing.T) {
	app := &App{logger: testLogger()}
	stop := make(chan os.Signal, 1)
	serverErrors := make(chan error, 1)

	stop <- syscall.SIGTERM

	reason, err := app.WaitForStop(stop, serverErrors)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if reason != StopSignal {
		t.Fatalf("expected reason=%s, got %q", StopSignal, reason)
	}
}

func TestWaitForStop_ServerErrorWins(t *testing.T) {
	app := &App{logger: testLogger()}
	serverErrors := make(chan error, 1)
	serverErrors <- errors.New("boom")

	reason, err := app.WaitForStop(nil, serverErrors)
	if err == nil {
		t.Fatalf("expected error, got nil")
	}
	if reason != StopServerError {
		t.Fatalf("expected reason=%s, got %q", StopServerError, reason)
	}
}

func TestWaitForStop_NoChannels(t *testing.T) {
	app := &App{logger: testLogger()}
	if _, err := app.WaitForStop(nil, nil); err == nil {
		t.Fatalf("expected error when nothing can stop the app")
	}
}

func TestShutdown_IdempotentAndLIFO(t *testing.T) {
	app := &App{logger: testLogger()}
	var calls int32
	var order []string
	app.cleanup.push("first", func(context.Context) error {
		atomic.AddInt32(&calls, 1)
		order = append(order, "first")
		return nil
	})
	app.cleanup.push("second", func(context.Context) error {
		atomic.AddInt32(&calls, 1)
		order = append(order, "second")
		return errors.New("ignored")
	})

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	if err := app.Shutdown(ctx); err != nil {
		t.Fatalf("first shutdown failed: %v", err)
	}
	if err := app.Shutdown(ctx); err != nil {
		t.Fatalf("second shutdown failed: %v", err)
	}

	if got := atomic.LoadInt32(&calls); got != 2 {
		t.Fatalf("expected each cleanup to run once, got %d calls", got)
	}
	if len(order) != 2 || order[0] != "second" || order[1] != "first" {
		t.Fatalf("expected reverse order, got %v", order)
	}
}

func TestStart_BeforeInit_Fails(t *testing.T) {
	app := &App{logger: testLogger()}
	if _, err := app.Start(); err == nil {
		t.Fatalf("expected start to fail before init")
	}
}

func TestStartAndShutdown_HappyPath(t *testing.T) {
	app := &App{
		cfg: &config.Config{
			Server: config.ServerConfig{TLSMode: "off"},
		},
		logger:     testLogger(),
		serverAddr: "127.0.0.1:0",
		srv: &http.Server{
			Addr:    "127.0.0.1:0",
			Handler: http.NewServeMux(),
		},
		initialized: true,
	}
	app.cleanup.push("HTTP server", func(ctx context.Context) error {
		return app.srv.Shutdown(ctx)
	})

	if _, err := app.Start(); err != nil {
		t.Fatalf("start failed: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := app.Shutdown(ctx); err != nil {
		t.Fatalf("shutdown failed: %v", err)
	}
}

func TestNew_RequiresConfigAndLogger(t *testing.T) {
	if _, err := New(nil, testLogger()); err == nil {
		t.Fatalf("expected error for nil config")
	}
	if _, err := New(&config.Config{}, nil); err == nil {
		t.Fatalf("expected error for nil logger")
	}
}

func TestInitFailure_DoesNotMarkInitialized(t *testing.T) {
	cfg := testConfig(t)
	cfg.Database = config.DatabaseConfig{
		Driver:                  config.DriverMySQL,
		Host:                    "127.0.0.1",
		Port:                    1,
		User:                    "root",
		Password:                "invalid",
		Database:                "chat",
		TLS:                     config.DatabaseTLSConfig{Mode: "off"},
		Pool:                    config.PoolConfig{MaxOpen: 1, MaxIdle: 1, MaxLifetime: time.Second},
		ConnectionRetryInterval: 10 * time.Millisecond,
	}

	app, err := New(cfg, testLogger())
	if err != nil {
		t.Fatalf("new failed: %v", err)
	}

	if err := app.Init(context.Background()); err == nil {
		t.Fatalf("expected init to fail with unreachable database")
	}

	app.stateMu.Lock()
	initialized := app.initialized
	app.stateMu.Unlock()
	if initialized {
		t.Fatalf("app should not be marked initialized after failed Init")
	}
}

func TestInitFailure_BadAuthConfig(t *testing.T) {
	cfg := testConfig(t)
	cfg.Auth.HS256Secret = ""

	app, err := New(cfg, testLogger())
	if err != nil {
		t.Fatalf("new failed: %v", err)
	}
	if err := app.Init(context.Background()); err == nil {
		t.Fatalf("expected init to fail without an hs256 secret")
	}
}
