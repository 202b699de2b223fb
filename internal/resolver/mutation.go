package resolver

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"chat-graphql/internal/authz"
	"chat-graphql/internal/entities"
	"chat-graphql/internal/logging"
	"chat-graphql/internal/schema"
	"chat-graphql/internal/store"

	"github.com/graphql-go/graphql"
	"go.opentelemetry.io/otel/attribute"
)

const (
	mutationResultClassSuccess      = "success"
	mutationResultClassTypedFailure = "typed_failure"
	mutationResultClassError        = "execution_error"

	mutationResultCodeOK           = "ok"
	mutationResultCodeInvalidInput = "invalid_input"
	mutationResultCodeForbidden    = "forbidden_sender"
	mutationResultCodeInternal     = "internal"
)

// internalError hides storage failures from callers; the cause is logged.
type internalError struct {
	cause error
}

func (e *internalError) Error() string {
	return "internal server error"
}

func (e *internalError) Unwrap() error {
	return e.cause
}

func (e *internalError) Extensions() map[string]interface{} {
	return map[string]interface{}{"code": "INTERNAL"}
}

func (r *Resolver) mutationFields() (graphql.Fields, error) {
	chat, ok := r.registry.Entity(entities.ChatName)
	if !ok {
		return nil, &schema.ConfigurationError{Entity: entities.ChatName, Reason: "entity is not registered"}
	}
	return graphql.Fields{
		"create_chat_message": &graphql.Field{
			Type:        graphql.NewNonNull(r.createChatMessagePayload(chat)),
			Description: "Sends a chat message. Rejected input is reported in the payload errors.",
			Args: graphql.FieldConfigArgument{
				"from_user_id": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Int)},
				"to_user_id":   &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Int)},
				"timestamp":    &graphql.ArgumentConfig{Type: graphql.DateTime},
				"message":      &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
			},
			Resolve: r.resolveCreateChatMessage,
		},
	}, nil
}

func (r *Resolver) createChatMessagePayload(chat schema.Entity) *graphql.Object {
	r.mu.RLock()
	cached := r.payloadObj
	r.mu.RUnlock()
	if cached != nil {
		return cached
	}

	payload := graphql.NewObject(graphql.ObjectConfig{
		Name: "CreateChatMessagePayload",
		Fields: graphql.Fields{
			"chat": &graphql.Field{Type: r.objectType(chat)},
			"errors": &graphql.Field{
				Type: graphql.NewNonNull(graphql.NewList(graphql.NewNonNull(graphql.String))),
			},
		},
	})

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.payloadObj == nil {
		r.payloadObj = payload
	}
	return r.payloadObj
}

func chatMessageInput(args map[string]interface{}) store.NewChatMessage {
	var in store.NewChatMessage
	if v, ok := args["from_user_id"].(int); ok {
		in.FromUserID = int64(v)
	}
	if v, ok := args["to_user_id"].(int); ok {
		in.ToUserID = int64(v)
	}
	if v, ok := args["timestamp"].(time.Time); ok {
		in.Timestamp = &v
	}
	in.Message, _ = args["message"].(string)
	return in
}

func rejectedPayload(messages []string) map[string]interface{} {
	return map[string]interface{}{"chat": nil, "errors": messages}
}

func (r *Resolver) resolveCreateChatMessage(p graphql.ResolveParams) (result interface{}, err error) {
	ctx, span := startResolverSpan(p.Context, "graphql.mutation.create_chat_message",
		attribute.String("graphql.resolver.entity", entities.ChatName),
		attribute.String("graphql.resolver.shape", "mutation"),
	)
	class, code := mutationResultClassError, mutationResultCodeInternal
	defer func() {
		span.finishMutation(err, class, code)
	}()

	principal, err := authz.RequirePrincipal(ctx)
	if err != nil {
		return nil, err
	}

	in := chatMessageInput(p.Args)
	if !principal.Admin && in.FromUserID != principal.UserID {
		class, code = mutationResultClassTypedFailure, mutationResultCodeForbidden
		return rejectedPayload([]string{"From must be the authenticated user"}), nil
	}

	id, err := r.writer.CreateChatMessage(ctx, in)
	var verr *store.ValidationError
	if errors.As(err, &verr) {
		class, code = mutationResultClassTypedFailure, mutationResultCodeInvalidInput
		return rejectedPayload(verr.Messages), nil
	}
	if err != nil {
		logging.FromContext(ctx).Error("failed to create chat message", slog.String("error", err.Error()))
		return nil, &internalError{cause: err}
	}

	chat, err := r.records[entities.ChatName].Resolve(ctx, nil, map[string]interface{}{"id": id})
	if err != nil {
		return nil, fmt.Errorf("failed to load created chat %d: %w", id, err)
	}
	logging.FromContext(ctx).Info("chat message created",
		slog.Int64("chat_id", id),
		slog.Int64("from_id", in.FromUserID),
		slog.Int64("to_id", in.ToUserID),
	)

	class, code = mutationResultClassSuccess, mutationResultCodeOK
	var chatValue interface{}
	if chat != nil {
		chatValue = chat
	}
	return map[string]interface{}{"chat": chatValue, "errors": []string{}}, nil
}
