package resolver

import (
	"time"

	"chat-graphql/internal/entities"
	"chat-graphql/internal/schema"

	"github.com/graphql-go/graphql"
)

// chatHistorySort orders a conversation newest first.
const chatHistorySort = "timestamp.desc"

// addChatQueries adds the chat-specific root fields on top of the generic ones.
func (r *Resolver) addChatQueries(fields graphql.Fields) error {
	chat, ok := r.registry.Entity(entities.ChatName)
	if !ok {
		return &schema.ConfigurationError{Entity: entities.ChatName, Reason: "entity is not registered"}
	}
	q := r.collections[entities.ChatName]
	chatList := graphql.NewNonNull(graphql.NewList(graphql.NewNonNull(r.objectType(chat))))

	fields["all_chats"] = &graphql.Field{
		Type:        chatList,
		Description: "Returns every chat message visible to the caller",
		Resolve: func(p graphql.ResolveParams) (interface{}, error) {
			return q.Resolve(p.Context, nil, nil)
		},
	}

	fields["chat_history"] = &graphql.Field{
		Type:        chatList,
		Description: "Returns chat messages between users, newest first, optionally since a point in time",
		Args: graphql.FieldConfigArgument{
			"from_user_id":  &graphql.ArgumentConfig{Type: graphql.ID},
			"to_user_id":    &graphql.ArgumentConfig{Type: graphql.ID},
			"history_since": &graphql.ArgumentConfig{Type: graphql.DateTime},
		},
		Resolve: func(p graphql.ResolveParams) (interface{}, error) {
			return q.Resolve(p.Context, nil, chatHistoryArgs(p.Args))
		},
	}
	return nil
}

// chatHistoryArgs translates chat_history arguments into filter arguments,
// applying only the ones the caller supplied.
func chatHistoryArgs(args map[string]interface{}) map[string]interface{} {
	out := map[string]interface{}{SortArg: chatHistorySort}
	if since, ok := args["history_since"].(time.Time); ok {
		out["timestamp_gte"] = since
	}
	if from := args["from_user_id"]; from != nil {
		out["from_id_in"] = []interface{}{from}
	}
	if to := args["to_user_id"]; to != nil {
		out["to_id_in"] = []interface{}{to}
	}
	return out
}
