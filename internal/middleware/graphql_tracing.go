package middleware

import (
	"log/slog"
	"net/http"
	"strings"

	"chat-graphql/internal/logging"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// GraphQLTracingMiddleware wraps GraphQL execution in a "graphql.execute"
// span describing the operation, and adds the trace and span IDs to the
// request logger.
func GraphQLTracingMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			op, r := requestOperation(r)
			if strings.TrimSpace(op.query) == "" {
				next.ServeHTTP(w, r)
				return
			}

			tracer := otel.Tracer("chat-graphql/graphql")
			ctx, span := tracer.Start(r.Context(), "graphql.execute")
			defer span.End()

			if spanCtx := span.SpanContext(); spanCtx.IsValid() {
				reqLogger := logging.FromContext(ctx).WithFields(
					slog.String("trace_id", spanCtx.TraceID().String()),
					slog.String("span_id", spanCtx.SpanID().String()),
				)
				ctx = logging.WithLogger(ctx, reqLogger)
			}

			if span.IsRecording() {
				span.SetAttributes(operationAttributes(op)...)
			}

			wrapped := &metricsResponseWriter{ResponseWriter: w, statusCode: http.StatusOK}
			next.ServeHTTP(wrapped, r.WithContext(ctx))

			if wrapped.statusCode >= 400 || responseHasGraphQLErrors(wrapped.body.Bytes()) {
				span.SetStatus(codes.Error, "graphql response contains errors")
			}
		})
	}
}

func operationAttributes(op *operation) []attribute.KeyValue {
	attrs := []attribute.KeyValue{
		attribute.String("graphql.operation.type", op.operationType()),
	}
	if op.name != "" {
		attrs = append(attrs, attribute.String("graphql.operation.name", op.name))
	}
	if op.metadata != nil {
		attrs = append(attrs,
			attribute.Int("graphql.document.field_count", op.metadata.fieldCount),
			attribute.Int("graphql.document.depth", op.metadata.selectionDepth),
			attribute.Int("graphql.document.variable_count", op.metadata.variableCount),
		)
	}
	return attrs
}
