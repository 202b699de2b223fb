package policy

import (
	"errors"
	"testing"

	"chat-graphql/internal/authz"
	"chat-graphql/internal/planner"
	"chat-graphql/internal/schema"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func chatEntity() schema.Entity {
	return schema.Entity{
		Name:         "Chat",
		Table:        "chats",
		PrimaryKey:   "id",
		Columns:      []string{"id", "from_id", "to_id", "created_at"},
		DefaultOrder: []schema.OrderTerm{{Column: "created_at", Direction: schema.Asc}, {Column: "id", Direction: schema.Asc}},
	}
}

func TestChatScope(t *testing.T) {
	entity := chatEntity()
	base := planner.NewCollection(entity, entity.DefaultOrder)

	t.Run("participant sees sent and received chats", func(t *testing.T) {
		planned, err := ChatScope(authz.Principal{UserID: 4}, base).ToSQL()
		require.NoError(t, err)
		assert.Contains(t, planned.SQL, "WHERE (`chats`.`from_id` = ? OR `chats`.`to_id` = ?)")
		assert.Equal(t, []interface{}{int64(4), int64(4)}, planned.Args)
	})

	t.Run("admin sees everything", func(t *testing.T) {
		scoped := ChatScope(authz.Principal{UserID: 4, Admin: true}, base)
		assert.Equal(t, 0, scoped.Conditions())
	})
}

func TestUserScope(t *testing.T) {
	entity := chatEntity()
	base := planner.NewCollection(entity, entity.DefaultOrder)
	assert.Equal(t, 0, UserScope(authz.Principal{}, base).Conditions())
}

func TestSetCheck(t *testing.T) {
	users := schema.Entity{Name: "User"}
	chats := schema.Entity{Name: "Chat"}

	require.NoError(t, Default().Check([]schema.Entity{users, chats}))

	err := Set{"User": UserScope}.Check([]schema.Entity{users, chats})
	require.Error(t, err)
	var cfgErr *schema.ConfigurationError
	require.True(t, errors.As(err, &cfgErr))
	assert.Equal(t, "Chat", cfgErr.Entity)

	err = Set{"User": UserScope, "Chat": nil}.Check([]schema.Entity{users, chats})
	assert.Error(t, err)
}
