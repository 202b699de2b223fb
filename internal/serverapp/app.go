// Package serverapp assembles the chat GraphQL server: telemetry providers,
// the database handle, the schema and the HTTP server, and tears them down in
// reverse order.
package serverapp

import (
	"errors"
	"net/http"
	"sync"

	"chat-graphql/internal/config"
	"chat-graphql/internal/dbexec"
	"chat-graphql/internal/logging"
	"chat-graphql/internal/observability"
	"chat-graphql/internal/store"
)

// App owns runtime resources for the server lifecycle.
type App struct {
	cfg    *config.Config
	logger *logging.Logger

	loggerProvider *observability.LoggerProvider
	metrics        appMetrics
	tracerProvider *observability.TracerProvider

	store         *store.Handle
	queryExecutor dbexec.QueryExecutor

	handler    http.Handler
	serverAddr string
	srv        *http.Server

	cleanup cleanupStack

	stateMu      sync.Mutex
	initialized  bool
	started      bool
	serverErrors chan error

	shutdownOnce sync.Once
}

// New creates an App lifecycle wrapper.
func New(cfg *config.Config, logger *logging.Logger) (*App, error) {
	if cfg == nil {
		return nil, errors.New("config is required")
	}
	if logger == nil {
		return nil, errors.New("logger is required")
	}
	return &App{cfg: cfg, logger: logger}, nil
}

// AttachLoggerProvider registers an optional logger provider for shutdown cleanup.
func (a *App) AttachLoggerProvider(provider *observability.LoggerProvider) {
	a.stateMu.Lock()
	defer a.stateMu.Unlock()
	a.loggerProvider = provider
}

// Handler returns the root HTTP handler once Init has completed.
func (a *App) Handler() http.Handler {
	a.stateMu.Lock()
	defer a.stateMu.Unlock()
	return a.handler
}
