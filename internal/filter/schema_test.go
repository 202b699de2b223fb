package filter

import (
	"errors"
	"testing"

	"chat-graphql/internal/schema"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func chatEntity() schema.Entity {
	return schema.Entity{
		Name:       "Chat",
		Table:      "chats",
		PrimaryKey: "id",
		Columns:    []string{"id", "timestamp", "message", "status", "score", "from_id", "to_id", "created_at", "updated_at"},
		Fields: []schema.Field{
			{Name: "id", Type: schema.TypeID},
			{Name: "timestamp", Type: schema.TypeDateTime},
			{Name: "message", Type: schema.TypeString},
			{Name: "status", Type: schema.TypeEnum, EnumValues: []string{"sent", "read"}},
			{Name: "score", Type: schema.TypeFloat},
			{Name: "tags", Type: schema.TypeString, IsList: true},
			{Name: "history_since", Type: schema.TypeDateTime},
			{Name: "from", Type: schema.TypeAssociation},
			{Name: "to", Type: schema.TypeAssociation},
		},
		BelongsTo: []schema.BelongsTo{
			{Name: "from", ForeignKey: "from_id", Target: "User"},
			{Name: "to", ForeignKey: "to_id", Target: "User"},
		},
		DefaultOrder: []schema.OrderTerm{{Column: "created_at", Direction: schema.Asc}, {Column: "id", Direction: schema.Asc}},
	}
}

func TestOperatorsFor(t *testing.T) {
	for _, typ := range []schema.SemanticType{schema.TypeDateTime, schema.TypeFloat, schema.TypeInt} {
		assert.Equal(t, []Operator{OpEq, OpGt, OpGte, OpLt, OpLte, OpIn, OpNin}, OperatorsFor(typ), string(typ))
	}
	for _, typ := range []schema.SemanticType{schema.TypeID, schema.TypeString, schema.TypeEnum} {
		ops := OperatorsFor(typ)
		assert.Equal(t, []Operator{OpEq, OpIn, OpNin}, ops, string(typ))
		for _, rangeOp := range []Operator{OpGt, OpGte, OpLt, OpLte} {
			assert.NotContains(t, ops, rangeOp)
		}
	}
	assert.Empty(t, OperatorsFor(schema.TypeAssociation))
	assert.Empty(t, OperatorsFor("Boolean"))
}

func TestOperatorsForReturnsCopy(t *testing.T) {
	ops := OperatorsFor(schema.TypeID)
	ops[0] = OpGt
	assert.Equal(t, OpEq, OperatorsFor(schema.TypeID)[0])
}

func TestParseOperator(t *testing.T) {
	for _, suffix := range []string{"gt", "gte", "lt", "lte", "in", "nin"} {
		op, ok := ParseOperator(suffix)
		assert.True(t, ok, suffix)
		assert.Equal(t, Operator(suffix), op)
	}
	for _, suffix := range []string{"eq", "", "ne", "like", "GTE"} {
		_, ok := ParseOperator(suffix)
		assert.False(t, ok, suffix)
	}
}

func TestBuildSchema(t *testing.T) {
	fs, err := BuildSchema(chatEntity())
	require.NoError(t, err)

	assert.Equal(t, []string{
		"id", "id_in", "id_nin",
		"timestamp", "timestamp_gt", "timestamp_gte", "timestamp_lt", "timestamp_lte", "timestamp_in", "timestamp_nin",
		"message", "message_in", "message_nin",
		"status", "status_in", "status_nin",
		"score", "score_gt", "score_gte", "score_lt", "score_lte", "score_in", "score_nin",
		"from_id", "from_id_in", "from_id_nin",
		"to_id", "to_id_in", "to_id_nin",
	}, fs.Keys())

	t.Run("list fields and non-columns are excluded", func(t *testing.T) {
		for _, key := range []string{"tags", "tags_in", "history_since", "history_since_gte", "from", "to_in"} {
			_, ok := fs.Lookup(key)
			assert.False(t, ok, key)
		}
	})

	t.Run("associations filter through their foreign key as ID", func(t *testing.T) {
		entry, ok := fs.Lookup("from_id_in")
		require.True(t, ok)
		assert.Equal(t, ValueShape{Type: schema.TypeID, IsList: true}, entry.Shape)
		_, ok = fs.Lookup("from_id_gt")
		assert.False(t, ok)
	})

	t.Run("value shapes", func(t *testing.T) {
		entry, _ := fs.Lookup("timestamp_gte")
		assert.Equal(t, ValueShape{Type: schema.TypeDateTime}, entry.Shape)
		entry, _ = fs.Lookup("status_nin")
		assert.Equal(t, ValueShape{Type: schema.TypeEnum, IsList: true, EnumValues: []string{"sent", "read"}}, entry.Shape)
	})
}

func TestSchemaDecomposeRoundTrip(t *testing.T) {
	fs, err := BuildSchema(chatEntity())
	require.NoError(t, err)

	for _, field := range fs.Fields() {
		entry, ok := fs.Lookup(field)
		require.True(t, ok, field)
		for _, op := range OperatorsFor(entry.Shape.Type) {
			key := field + op.Suffix()
			gotField, gotOp, ok := fs.Decompose(key)
			require.True(t, ok, key)
			assert.Equal(t, field, gotField, key)
			assert.Equal(t, op, gotOp, key)
		}
	}

	_, _, ok := fs.Decompose("secret_token_eq")
	assert.False(t, ok)
}

func TestBuildSchemaRejectsCollisions(t *testing.T) {
	t.Run("association foreign key collides with scalar field", func(t *testing.T) {
		entity := chatEntity()
		entity.Fields = append(entity.Fields, schema.Field{Name: "from_id", Type: schema.TypeInt})

		_, err := BuildSchema(entity)
		require.Error(t, err)
		var cfgErr *schema.ConfigurationError
		require.True(t, errors.As(err, &cfgErr))
		assert.Contains(t, err.Error(), `filter key "from_id"`)
	})

	t.Run("operator suffix collides with another field", func(t *testing.T) {
		entity := chatEntity()
		entity.Columns = append(entity.Columns, "score_gt")
		entity.Fields = append(entity.Fields, schema.Field{Name: "score_gt", Type: schema.TypeInt})

		_, err := BuildSchema(entity)
		require.Error(t, err)
		assert.Contains(t, err.Error(), `filter key "score_gt" generated by both score and score_gt`)
	})
}

func TestBuildSchemaMissingRelation(t *testing.T) {
	entity := chatEntity()
	entity.BelongsTo = entity.BelongsTo[:1]

	_, err := BuildSchema(entity)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `association field "to" has no belongs-to relation`)
}
