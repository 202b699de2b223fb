package schema

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testEntity() Entity {
	return Entity{
		Name:       "Chat",
		Table:      "chats",
		PrimaryKey: "id",
		Columns:    []string{"id", "message", "from_id", "created_at"},
		Fields: []Field{
			{Name: "id", Type: TypeID},
			{Name: "message", Type: TypeString},
			{Name: "from", Type: TypeAssociation},
		},
		BelongsTo:    []BelongsTo{{Name: "from", ForeignKey: "from_id", Target: "User"}},
		DefaultOrder: []OrderTerm{{Column: "created_at", Direction: Asc}, {Column: "id", Direction: Asc}},
	}
}

func TestEntityValidate(t *testing.T) {
	require.NoError(t, testEntity().Validate())

	tests := []struct {
		name   string
		mutate func(*Entity)
		reason string
	}{
		{"missing table", func(e *Entity) { e.Table = "" }, "table name is required"},
		{"primary key not a column", func(e *Entity) { e.PrimaryKey = "uuid" }, `primary key "uuid" is not a column`},
		{"no default order", func(e *Entity) { e.DefaultOrder = nil }, "default ordering is required"},
		{"bad default order column", func(e *Entity) { e.DefaultOrder = []OrderTerm{{Column: "nope", Direction: Asc}} }, `default ordering column "nope"`},
		{"bad default direction", func(e *Entity) { e.DefaultOrder = []OrderTerm{{Column: "id", Direction: "up"}} }, `direction "up" is invalid`},
		{"duplicate field", func(e *Entity) { e.Fields = append(e.Fields, Field{Name: "message", Type: TypeString}) }, `field "message" declared twice`},
		{"association without relation", func(e *Entity) { e.BelongsTo = nil }, `association field "from" has no belongs-to relation`},
		{"foreign key not a column", func(e *Entity) { e.BelongsTo[0].ForeignKey = "sender_id" }, `foreign key "sender_id" is not a column`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			entity := testEntity()
			entity.BelongsTo = append([]BelongsTo(nil), entity.BelongsTo...)
			tt.mutate(&entity)
			err := entity.Validate()
			require.Error(t, err)
			var cfgErr *ConfigurationError
			require.True(t, errors.As(err, &cfgErr))
			assert.Equal(t, "Chat", cfgErr.Entity)
			assert.Contains(t, err.Error(), tt.reason)
		})
	}
}

func TestEntityIDFields(t *testing.T) {
	entity := testEntity()
	entity.Fields = append(entity.Fields, Field{Name: "external_ref", Type: TypeID})

	ids := entity.IDFields()
	require.Len(t, ids, 1, "ID fields that are not columns are not lookup keys")
	assert.Equal(t, "id", ids[0].Name)
}
