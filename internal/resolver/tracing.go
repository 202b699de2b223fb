package resolver

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "chat-graphql/resolver"

// resolverSpan traces one resolver call. Its outcome attribute uses the same
// values as the resolution metric, plus "rejected" for mutations that answer
// with payload errors.
type resolverSpan struct {
	trace.Span
}

func startResolverSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, resolverSpan) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, name, trace.WithAttributes(attrs...))
	return ctx, resolverSpan{Span: span}
}

// finish records the outcome and row count and ends the span.
func (s resolverSpan) finish(err error, rows int) {
	s.SetAttributes(attribute.Int("graphql.resolver.rows", rows))
	s.end(outcomeFor(err), err)
}

// finishMutation records how create_chat_message answered and ends the span.
func (s resolverSpan) finishMutation(err error, class, code string) {
	s.SetAttributes(
		attribute.String("graphql.mutation.result.typename", "CreateChatMessagePayload"),
		attribute.String("graphql.mutation.result.class", class),
		attribute.String("graphql.mutation.result.code", code),
	)
	outcome := outcomeFor(err)
	if err == nil && class == mutationResultClassTypedFailure {
		outcome = "rejected"
	}
	s.end(outcome, err)
}

func (s resolverSpan) end(outcome string, err error) {
	s.SetAttributes(attribute.String("graphql.resolver.outcome", outcome))
	if err != nil {
		s.RecordError(err)
		s.SetStatus(codes.Error, err.Error())
	}
	s.End()
}
