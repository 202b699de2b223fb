// Package entities registers the queryable record types of the chat domain.
package entities

import "chat-graphql/internal/schema"

// Entity names.
const (
	ChatName = "Chat"
	UserName = "User"
)

var defaultOrder = []schema.OrderTerm{
	{Column: "created_at", Direction: schema.Asc},
	{Column: "id", Direction: schema.Asc},
}

// Chat is a message sent from one user to another.
func Chat() schema.Entity {
	return schema.Entity{
		Name:       ChatName,
		Table:      "chats",
		PrimaryKey: "id",
		Columns:    []string{"id", "timestamp", "message", "from_id", "to_id", "created_at", "updated_at"},
		Fields: []schema.Field{
			{Name: "id", Type: schema.TypeID},
			{Name: "timestamp", Type: schema.TypeDateTime, Description: "When the message was sent."},
			{Name: "message", Type: schema.TypeString},
			{Name: "created_at", Type: schema.TypeDateTime},
			{Name: "updated_at", Type: schema.TypeDateTime},
			{Name: "history_since", Type: schema.TypeDateTime, Description: "Lower bound used by chat_history; not stored."},
			{Name: "from", Type: schema.TypeAssociation, Description: "Sender."},
			{Name: "to", Type: schema.TypeAssociation, Description: "Recipient."},
		},
		BelongsTo: []schema.BelongsTo{
			{Name: "from", ForeignKey: "from_id", Target: UserName},
			{Name: "to", ForeignKey: "to_id", Target: UserName},
		},
		DefaultOrder: defaultOrder,
	}
}

// User is a chat participant.
func User() schema.Entity {
	return schema.Entity{
		Name:       UserName,
		Table:      "users",
		PrimaryKey: "id",
		Columns:    []string{"id", "username", "created_at", "updated_at"},
		Fields: []schema.Field{
			{Name: "id", Type: schema.TypeID},
			{Name: "username", Type: schema.TypeString},
			{Name: "created_at", Type: schema.TypeDateTime},
			{Name: "updated_at", Type: schema.TypeDateTime},
		},
		HasMany: []schema.HasMany{
			{Name: "sent_chats", Target: ChatName, ForeignKey: "from_id", LocalKey: "id"},
			{Name: "received_chats", Target: ChatName, ForeignKey: "to_id", LocalKey: "id"},
		},
		DefaultOrder: defaultOrder,
	}
}

// All returns every registered entity.
func All() []schema.Entity {
	return []schema.Entity{User(), Chat()}
}
