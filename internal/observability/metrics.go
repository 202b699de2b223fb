package observability

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// GraphQLMetrics holds request-level metrics for the GraphQL endpoint
type GraphQLMetrics struct {
	requestDuration metric.Float64Histogram
	requestCounter  metric.Int64Counter
	errorCounter    metric.Int64Counter
	activeRequests  metric.Int64UpDownCounter
}

// InitGraphQLMetrics initializes GraphQL request metrics
func InitGraphQLMetrics() (*GraphQLMetrics, error) {
	meter := otel.Meter("chat-graphql")

	requestDuration, err := meter.Float64Histogram(
		"graphql.request.duration",
		metric.WithDescription("Duration of GraphQL requests in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create request duration histogram: %w", err)
	}

	requestCounter, err := meter.Int64Counter(
		"graphql.requests.total",
		metric.WithDescription("Total number of GraphQL requests"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create request counter: %w", err)
	}

	errorCounter, err := meter.Int64Counter(
		"graphql.errors.total",
		metric.WithDescription("Total number of GraphQL errors"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create error counter: %w", err)
	}

	activeRequests, err := meter.Int64UpDownCounter(
		"graphql.requests.active",
		metric.WithDescription("Number of active GraphQL requests"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create active requests counter: %w", err)
	}

	return &GraphQLMetrics{
		requestDuration: requestDuration,
		requestCounter:  requestCounter,
		errorCounter:    errorCounter,
		activeRequests:  activeRequests,
	}, nil
}

// RecordRequest records a GraphQL request with its duration and outcome
func (m *GraphQLMetrics) RecordRequest(ctx context.Context, duration time.Duration, hasErrors bool, operationType string) {
	if m == nil {
		return
	}
	attrs := []attribute.KeyValue{
		attribute.String("operation_type", operationType),
		attribute.Bool("has_errors", hasErrors),
	}

	m.requestDuration.Record(ctx, float64(duration.Milliseconds()), metric.WithAttributes(attrs...))
	m.requestCounter.Add(ctx, 1, metric.WithAttributes(attrs...))

	if hasErrors {
		m.errorCounter.Add(ctx, 1, metric.WithAttributes(
			attribute.String("operation_type", operationType),
		))
	}
}

// IncrementActiveRequests increments the active requests counter
func (m *GraphQLMetrics) IncrementActiveRequests(ctx context.Context) {
	if m == nil {
		return
	}
	m.activeRequests.Add(ctx, 1)
}

// DecrementActiveRequests decrements the active requests counter
func (m *GraphQLMetrics) DecrementActiveRequests(ctx context.Context) {
	if m == nil {
		return
	}
	m.activeRequests.Add(ctx, -1)
}

// QueryMetrics holds resolver and statement metrics. A nil *QueryMetrics
// records nothing, so resolvers can be built without a meter.
type QueryMetrics struct {
	resolutions        metric.Int64Counter
	resolutionDuration metric.Float64Histogram
	resultsCount       metric.Int64Histogram
	filterRejections   metric.Int64Counter
	statementDuration  metric.Float64Histogram
	statementErrors    metric.Int64Counter
}

// InitQueryMetrics initializes resolver and database statement metrics
func InitQueryMetrics() (*QueryMetrics, error) {
	meter := otel.Meter("chat-graphql/resolver")

	resolutions, err := meter.Int64Counter(
		"graphql.resolutions.total",
		metric.WithDescription("Total number of resolver executions by entity, shape and outcome"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resolutions counter: %w", err)
	}

	resolutionDuration, err := meter.Float64Histogram(
		"graphql.resolution.duration",
		metric.WithDescription("Duration of resolver executions in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resolution duration histogram: %w", err)
	}

	resultsCount, err := meter.Int64Histogram(
		"graphql.results.count",
		metric.WithDescription("Number of rows returned by a resolver"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create results count histogram: %w", err)
	}

	filterRejections, err := meter.Int64Counter(
		"graphql.filter.rejections.total",
		metric.WithDescription("Total number of rejected filter arguments"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create filter rejections counter: %w", err)
	}

	statementDuration, err := meter.Float64Histogram(
		"db.statement.duration",
		metric.WithDescription("Duration of SQL statements in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create statement duration histogram: %w", err)
	}

	statementErrors, err := meter.Int64Counter(
		"db.statement.errors.total",
		metric.WithDescription("Total number of failed SQL statements"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create statement errors counter: %w", err)
	}

	return &QueryMetrics{
		resolutions:        resolutions,
		resolutionDuration: resolutionDuration,
		resultsCount:       resultsCount,
		filterRejections:   filterRejections,
		statementDuration:  statementDuration,
		statementErrors:    statementErrors,
	}, nil
}

// RecordResolution records one resolver execution.
func (m *QueryMetrics) RecordResolution(ctx context.Context, entity, shape, outcome string, duration time.Duration, results int) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("entity", entity),
		attribute.String("shape", shape),
		attribute.String("outcome", outcome),
	)
	m.resolutions.Add(ctx, 1, attrs)
	m.resolutionDuration.Record(ctx, float64(duration.Microseconds())/1000, attrs)
	if outcome == "success" {
		m.resultsCount.Record(ctx, int64(results), metric.WithAttributes(
			attribute.String("entity", entity),
			attribute.String("shape", shape),
		))
	}
}

// RecordFilterRejected counts a filter argument that failed validation.
func (m *QueryMetrics) RecordFilterRejected(ctx context.Context, entity string) {
	if m == nil {
		return
	}
	m.filterRejections.Add(ctx, 1, metric.WithAttributes(attribute.String("entity", entity)))
}

// RecordStatement records one SQL statement. Its signature matches
// dbexec.Observer so it can be passed to NewObservedExecutor directly.
func (m *QueryMetrics) RecordStatement(ctx context.Context, op string, duration time.Duration, err error) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String("operation", op))
	m.statementDuration.Record(ctx, float64(duration.Microseconds())/1000, attrs)
	if err != nil {
		m.statementErrors.Add(ctx, 1, attrs)
	}
}

// InitMetrics initializes all custom metrics
func InitMetrics(logger *slog.Logger) (*GraphQLMetrics, *QueryMetrics, error) {
	gqlMetrics, err := InitGraphQLMetrics()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize GraphQL metrics: %w", err)
	}
	queryMetrics, err := InitQueryMetrics()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize query metrics: %w", err)
	}

	logger.Info("custom GraphQL metrics initialized")
	return gqlMetrics, queryMetrics, nil
}
