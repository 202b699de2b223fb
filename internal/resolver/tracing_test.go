package resolver

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func recordSpans(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSampler(sdktrace.AlwaysSample()))
	tp.RegisterSpanProcessor(recorder)
	previous := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() {
		_ = tp.Shutdown(context.Background())
		otel.SetTracerProvider(previous)
	})
	return recorder
}

func spanByName(t *testing.T, recorder *tracetest.SpanRecorder, name string) sdktrace.ReadOnlySpan {
	t.Helper()
	for _, span := range recorder.Ended() {
		if span.Name() == name {
			return span
		}
	}
	t.Fatalf("no ended span named %s", name)
	return nil
}

func attrsOf(span sdktrace.ReadOnlySpan) map[attribute.Key]attribute.Value {
	out := make(map[attribute.Key]attribute.Value)
	for _, kv := range span.Attributes() {
		out[kv.Key] = kv.Value
	}
	return out
}

func TestResolverSpan_CollectionOutcomes(t *testing.T) {
	recorder := recordSpans(t)
	exec, _ := newSeededExecutor(t)
	q := newChatsQuery(t, exec)

	results, err := q.Resolve(asUser(1), nil, map[string]interface{}{"from_id": int64(1)})
	require.NoError(t, err)
	require.Len(t, results, 2)

	span := spanByName(t, recorder, "graphql.resolve.collection")
	attrs := attrsOf(span)
	assert.Equal(t, "Chat", attrs["graphql.resolver.entity"].AsString())
	assert.Equal(t, "collection", attrs["graphql.resolver.shape"].AsString())
	assert.Equal(t, "success", attrs["graphql.resolver.outcome"].AsString())
	assert.Equal(t, int64(2), attrs["graphql.resolver.rows"].AsInt64())
	assert.NotEqual(t, codes.Error, span.Status().Code)
}

func TestResolverSpan_UnauthorizedIsAnError(t *testing.T) {
	recorder := recordSpans(t)
	exec, _ := newSeededExecutor(t)
	q := newChatsQuery(t, exec)

	_, err := q.Resolve(context.Background(), nil, nil)
	require.Error(t, err)

	span := spanByName(t, recorder, "graphql.resolve.collection")
	assert.Equal(t, "unauthorized", attrsOf(span)["graphql.resolver.outcome"].AsString())
	assert.Equal(t, codes.Error, span.Status().Code)
}

func TestResolverSpan_RejectedMutation(t *testing.T) {
	recorder := recordSpans(t)
	api := newChatAPI(t, Config{})

	data := requireNoErrors(t, api.exec(asUser(1), `mutation {
		create_chat_message(from_user_id: 2, to_user_id: 1, message: "spoofed") { errors }
	}`))
	payload := data["create_chat_message"].(map[string]interface{})
	assert.NotEmpty(t, payload["errors"])

	span := spanByName(t, recorder, "graphql.mutation.create_chat_message")
	attrs := attrsOf(span)
	assert.Equal(t, "rejected", attrs["graphql.resolver.outcome"].AsString())
	assert.Equal(t, mutationResultClassTypedFailure, attrs["graphql.mutation.result.class"].AsString())
	assert.Equal(t, mutationResultCodeForbidden, attrs["graphql.mutation.result.code"].AsString())
	assert.NotEqual(t, codes.Error, span.Status().Code)
}
