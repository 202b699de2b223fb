package serverapp

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"chat-graphql/internal/config"
	"chat-graphql/internal/dbexec"
	"chat-graphql/internal/entities"
	"chat-graphql/internal/logging"
	"chat-graphql/internal/middleware"
	"chat-graphql/internal/naming"
	"chat-graphql/internal/observability"
	"chat-graphql/internal/policy"
	"chat-graphql/internal/resolver"
	"chat-graphql/internal/store"
	"chat-graphql/internal/tlscert"

	"github.com/graphql-go/handler"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

func exporterConfig(c config.OTLPConfig) observability.OTLPExporterConfig {
	return observability.OTLPExporterConfig{
		Endpoint:          c.Endpoint,
		Protocol:          c.Protocol,
		Insecure:          c.Insecure,
		TLSCertFile:       c.TLSCertFile,
		TLSClientCertFile: c.TLSClientCertFile,
		TLSClientKeyFile:  c.TLSClientKeyFile,
		Headers:           c.Headers,
		Timeout:           c.Timeout,
		Compression:       c.Compression,
		RetryEnabled:      c.RetryEnabled,
	}
}

func observabilityConfig(cfg *config.Config, otlp config.OTLPConfig) observability.Config {
	return observability.Config{
		ServiceName:      cfg.Observability.ServiceName,
		ServiceVersion:   cfg.Observability.ServiceVersion,
		Environment:      cfg.Observability.Environment,
		TraceSampleRatio: cfg.Observability.TraceSampleRatio,
		OTLPConfig:       exporterConfig(otlp),
	}
}

// InitLogger builds the process logger. When log export is enabled the
// returned provider must be shut down by the caller or attached to the App.
func InitLogger(cfg *config.Config) (*logging.Logger, *observability.LoggerProvider, error) {
	loggerCfg := logging.Config{
		Level:  cfg.Observability.Logging.Level,
		Format: cfg.Observability.Logging.Format,
	}
	logger := logging.NewLogger(loggerCfg)
	slog.SetDefault(logger.Logger)

	if !cfg.Observability.Logging.ExportsEnabled {
		return logger, nil, nil
	}

	logsConfig := cfg.Observability.GetLogsConfig()
	logger.Info("initializing OpenTelemetry logging",
		slog.String("otlp_endpoint", logsConfig.Endpoint),
		slog.String("otlp_protocol", logsConfig.Protocol),
		slog.Bool("insecure", logsConfig.Insecure),
	)

	loggerProvider, err := observability.InitLoggerProvider(observabilityConfig(cfg, logsConfig))
	if err != nil {
		return nil, nil, err
	}

	loggerCfg.LoggerProvider = loggerProvider.Provider()
	logger = logging.NewLogger(loggerCfg)
	slog.SetDefault(logger.Logger)

	return logger, loggerProvider, nil
}

type appMetrics struct {
	provider *observability.MeterProvider
	graphql  *observability.GraphQLMetrics
	query    *observability.QueryMetrics
	security *observability.SecurityMetrics
}

func initMetrics(cfg *config.Config, logger *logging.Logger) (appMetrics, error) {
	if !cfg.Observability.MetricsEnabled {
		return appMetrics{}, nil
	}

	logger.Info("initializing OpenTelemetry metrics",
		slog.String("service_name", cfg.Observability.ServiceName),
		slog.String("environment", cfg.Observability.Environment),
	)

	provider, err := observability.InitMeterProvider(observabilityConfig(cfg, config.OTLPConfig{}))
	if err != nil {
		return appMetrics{}, err
	}

	graphqlMetrics, queryMetrics, err := observability.InitMetrics(logger.Logger)
	if err != nil {
		return appMetrics{}, err
	}

	securityMetrics, err := observability.InitSecurityMetrics()
	if err != nil {
		return appMetrics{}, err
	}

	return appMetrics{
		provider: provider,
		graphql:  graphqlMetrics,
		query:    queryMetrics,
		security: securityMetrics,
	}, nil
}

func initTracing(cfg *config.Config, logger *logging.Logger) (*observability.TracerProvider, error) {
	if !cfg.Observability.TracingEnabled {
		return nil, nil
	}

	tracesConfig := cfg.Observability.GetTracesConfig()
	logger.Info("initializing OpenTelemetry tracing",
		slog.String("otlp_endpoint", tracesConfig.Endpoint),
		slog.String("otlp_protocol", tracesConfig.Protocol),
		slog.Float64("sample_ratio", cfg.Observability.TraceSampleRatio),
	)

	return observability.InitTracerProvider(observabilityConfig(cfg, tracesConfig))
}

func openStore(ctx context.Context, cfg *config.Config, logger *logging.Logger) (*store.Handle, error) {
	if err := cfg.Database.RegisterTLS(); err != nil {
		return nil, fmt.Errorf("failed to register database TLS config: %w", err)
	}

	return store.Open(ctx, store.Options{
		Driver: cfg.Database.Driver,
		DSN:    cfg.Database.DSN(),
		Pool: store.PoolOptions{
			MaxOpen:     cfg.Database.Pool.MaxOpen,
			MaxIdle:     cfg.Database.Pool.MaxIdle,
			MaxLifetime: cfg.Database.Pool.MaxLifetime,
		},
		Metrics:        cfg.Observability.MetricsEnabled,
		Tracing:        cfg.Observability.TracingEnabled,
		SQLCommenter:   cfg.Observability.SQLCommenterEnabled,
		ConnectTimeout: cfg.Database.ConnectionTimeout,
		RetryInterval:  cfg.Database.ConnectionRetryInterval,
	}, logger)
}

// prepareStore creates the tables and loads the demo rows as configured.
func prepareStore(ctx context.Context, cfg *config.Config, logger *logging.Logger, exec dbexec.QueryExecutor) error {
	if cfg.Database.Migrate {
		if err := store.Migrate(ctx, exec, cfg.Database.Driver); err != nil {
			return err
		}
		logger.Info("database schema ready", slog.String("driver", cfg.Database.Driver))
	}
	if cfg.Database.Seed {
		seeded, err := store.Seed(ctx, exec, time.Now())
		if err != nil {
			return err
		}
		logger.Info("seed data checked", slog.Bool("inserted", seeded))
	}
	return nil
}

func buildQueryExecutor(db *sql.DB, metrics *observability.QueryMetrics) dbexec.QueryExecutor {
	var exec dbexec.QueryExecutor = dbexec.NewStandardExecutor(db)
	if metrics != nil {
		exec = dbexec.NewObservedExecutor(exec, metrics.RecordStatement)
	}
	return exec
}

func buildGraphQLSchemaHandler(cfg *config.Config, logger *logging.Logger, exec dbexec.QueryExecutor, queryMetrics *observability.QueryMetrics) (http.Handler, error) {
	namer := naming.New(cfg.Naming, logger.Logger)
	registry, err := resolver.NewRegistry(entities.All(), policy.Default(), namer)
	if err != nil {
		return nil, fmt.Errorf("failed to register entities: %w", err)
	}

	r := resolver.NewResolver(exec, registry, store.NewChatWriter(exec), resolver.Config{
		StrictSort: cfg.Server.StrictSort,
		Metrics:    queryMetrics,
	})
	schema, err := r.BuildGraphQLSchema()
	if err != nil {
		return nil, fmt.Errorf("failed to build GraphQL schema: %w", err)
	}

	return handler.New(&handler.Config{
		Schema:   &schema,
		Pretty:   true,
		GraphiQL: cfg.Server.GraphiQLEnabled,
	}), nil
}

func authConfig(cfg *config.Config) middleware.AuthConfig {
	return middleware.AuthConfig{
		Mode:        cfg.Auth.Mode,
		HS256Secret: []byte(cfg.Auth.HS256Secret),
		Issuer:      cfg.Auth.Issuer,
		Audience:    cfg.Auth.Audience,
		ClockSkew:   cfg.Auth.ClockSkew,
		UserIDClaim: cfg.Auth.UserIDClaim,
		AdminClaim:  cfg.Auth.AdminClaim,
	}
}

// wrapGraphQLHandler applies the per-request GraphQL chain:
//
//	auth -> metrics -> tracing -> graphql
func wrapGraphQLHandler(ctx context.Context, cfg *config.Config, logger *logging.Logger, graphqlHandler http.Handler, metrics appMetrics) (http.Handler, error) {
	h := middleware.GraphQLTracingMiddleware()(graphqlHandler)

	if metrics.graphql != nil {
		h = middleware.GraphQLMetricsMiddleware(metrics.graphql)(h)
	}

	authCfg := authConfig(cfg)
	verifier, err := middleware.NewTokenVerifier(ctx, authCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize %s auth: %w", authCfg.Mode, err)
	}
	if verifier == nil {
		logger.Warn("authentication disabled - every query will be rejected as unauthenticated")
	} else {
		logger.Info("auth middleware enabled", slog.String("mode", authCfg.Mode))
	}
	return middleware.AuthMiddleware(authCfg, verifier, metrics.security)(h), nil
}

func buildRouter(cfg *config.Config, logger *logging.Logger, db *sql.DB, graphqlHandler http.Handler, metricsEnabled bool) *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/graphql", graphqlHandler)
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/" {
			http.Redirect(w, r, "/graphql", http.StatusFound)
			return
		}
		http.NotFound(w, r)
	})

	mux.HandleFunc("/health", healthHandler(db, cfg.Server.HealthCheckTimeout))

	if metricsEnabled {
		mux.Handle("/metrics", promhttp.Handler())
		logger.Info("metrics endpoint enabled", slog.String("path", "/metrics"))
	}

	return mux
}

// wrapHTTPHandler adds request logging to every route and, when any telemetry
// is enabled, an HTTP server span around it.
func wrapHTTPHandler(cfg *config.Config, logger *logging.Logger, h http.Handler) http.Handler {
	h = middleware.LoggingMiddleware(logger)(h)

	if cfg.Observability.MetricsEnabled || cfg.Observability.TracingEnabled {
		h = otelhttp.NewHandler(h, "http.server",
			otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
				return httpRootSpanName(r)
			}),
		)
		logger.Info("HTTP instrumentation enabled")
	}

	return h
}

func httpRootSpanName(r *http.Request) string {
	if r == nil {
		return "HTTP /*"
	}

	method := strings.TrimSpace(r.Method)
	if method == "" {
		method = "HTTP"
	}

	return method + " " + normalizeHTTPSpanRoute(r.URL.Path)
}

func normalizeHTTPSpanRoute(rawPath string) string {
	switch rawPath {
	case "/", "/graphql", "/health", "/metrics":
		return rawPath
	default:
		return "/*"
	}
}

func tlsEnabled(cfg *config.Config) bool {
	return cfg.Server.TLSMode == "file"
}

func buildServer(cfg *config.Config, logger *logging.Logger, h http.Handler, serverAddr string) (*http.Server, error) {
	srv := &http.Server{
		Addr:         serverAddr,
		Handler:      h,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	if tlsEnabled(cfg) {
		source, err := tlscert.Load(cfg.Server.TLSCertFile, cfg.Server.TLSKeyFile, logger.Logger)
		if err != nil {
			return nil, err
		}
		srv.TLSConfig = source.TLSConfig()
		logger.Info("TLS enabled", slog.String("cert_source", source.Description()))
	}

	return srv, nil
}

func startServer(cfg *config.Config, logger *logging.Logger, srv *http.Server, serverAddr string) chan error {
	serverErrors := make(chan error, 1)
	useTLS := tlsEnabled(cfg)
	go func() {
		protocol := "http"
		if useTLS {
			protocol = "https"
		}

		logAttrs := []any{
			slog.String("protocol", protocol),
			slog.String("address", serverAddr),
			slog.String("graphql_endpoint", "/graphql"),
			slog.String("health_endpoint", "/health"),
			slog.String("auth_mode", cfg.Auth.Mode),
			slog.Bool("graphiql", cfg.Server.GraphiQLEnabled),
		}
		if cfg.Observability.MetricsEnabled {
			logAttrs = append(logAttrs, slog.String("metrics_endpoint", "/metrics"))
		}
		logger.Info("server starting", logAttrs...)

		var err error
		if useTLS {
			err = srv.ListenAndServeTLS("", "")
		} else {
			err = srv.ListenAndServe()
		}

		if err != nil && err != http.ErrServerClosed {
			serverErrors <- fmt.Errorf("server failed: %w", err)
		}
	}()
	return serverErrors
}

// healthHandler reports whether the database answers a ping.
func healthHandler(db *sql.DB, timeout time.Duration) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		reqLogger := logging.FromContext(r.Context())
		w.Header().Set("Content-Type", "application/json")

		ctx := r.Context()
		if timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, timeout)
			defer cancel()
		}

		if err := db.PingContext(ctx); err != nil {
			reqLogger.Error("health check failed",
				slog.String("error", err.Error()),
				slog.String("check", "database"),
			)
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = fmt.Fprint(w, `{"status":"unhealthy","database":"failed"}`)
			return
		}

		reqLogger.Debug("health check passed")
		w.WriteHeader(http.StatusOK)
		_, _ = fmt.Fprint(w, `{"status":"healthy","database":"ok"}`)
	}
}
