package middleware

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"chat-graphql/internal/logging"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func setupSpanRecorder(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSampler(sdktrace.AlwaysSample()))
	tp.RegisterSpanProcessor(recorder)
	originalTP := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() {
		_ = tp.Shutdown(context.Background())
		otel.SetTracerProvider(originalTP)
	})
	return recorder
}

func endedSpan(t *testing.T, recorder *tracetest.SpanRecorder, name string) sdktrace.ReadOnlySpan {
	t.Helper()
	for _, span := range recorder.Ended() {
		if span.Name() == name {
			return span
		}
	}
	t.Fatalf("expected %s span", name)
	return nil
}

func spanAttributes(span sdktrace.ReadOnlySpan) map[attribute.Key]attribute.Value {
	attrs := make(map[attribute.Key]attribute.Value)
	for _, kv := range span.Attributes() {
		attrs[kv.Key] = kv.Value
	}
	return attrs
}

func TestGraphQLTracingMiddleware_RecordsOperation(t *testing.T) {
	recorder := setupSpanRecorder(t)

	var logs bytes.Buffer
	base := logging.NewLogger(logging.Config{Level: "info", Format: "json", Output: &logs})
	handler := GraphQLTracingMiddleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		logging.FromContext(r.Context()).Info("executing")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"data":{"chats":[]}}`))
	}))

	body := `{"query":"query Recent($since: String) { chat_history(history_since: $since) { message from { username } } }","operationName":"Recent"}`
	req := httptest.NewRequest(http.MethodPost, "/graphql", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req = req.WithContext(logging.WithLogger(req.Context(), base))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	span := endedSpan(t, recorder, "graphql.execute")
	attrs := spanAttributes(span)
	assert.Equal(t, "query", attrs["graphql.operation.type"].AsString())
	assert.Equal(t, "Recent", attrs["graphql.operation.name"].AsString())
	assert.Equal(t, int64(4), attrs["graphql.document.field_count"].AsInt64())
	assert.Equal(t, int64(3), attrs["graphql.document.depth"].AsInt64())
	assert.Equal(t, int64(1), attrs["graphql.document.variable_count"].AsInt64())
	assert.NotEqual(t, codes.Error, span.Status().Code)
	assert.Contains(t, logs.String(), `"trace_id":"`+span.SpanContext().TraceID().String()+`"`)
}

func TestGraphQLTracingMiddleware_MarksErrors(t *testing.T) {
	recorder := setupSpanRecorder(t)

	handler := GraphQLTracingMiddleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"data":null,"errors":[{"message":"Unauthenticated","extensions":{"code":"UNAUTHENTICATED"}}]}`))
	}))

	req := httptest.NewRequest(http.MethodPost, "/graphql", strings.NewReader(`{"query":"{ all_chats { message } }"}`))
	req.Header.Set("Content-Type", "application/json")
	handler.ServeHTTP(httptest.NewRecorder(), req)

	span := endedSpan(t, recorder, "graphql.execute")
	assert.Equal(t, codes.Error, span.Status().Code)
}

func TestGraphQLTracingMiddleware_SkipsRequestsWithoutQuery(t *testing.T) {
	recorder := setupSpanRecorder(t)

	called := false
	handler := GraphQLTracingMiddleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/graphql", nil))
	assert.True(t, called)
	assert.Empty(t, recorder.Ended())
}
