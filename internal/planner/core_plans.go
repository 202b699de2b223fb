package planner

import (
	"errors"
	"fmt"

	"chat-graphql/internal/schema"
)

// ErrNoIdentifiers indicates a record lookup was planned without any identifier value.
var ErrNoIdentifiers = errors.New("no identifier values")

// SQLQuery represents a planned SQL statement with bound args.
type SQLQuery struct {
	SQL  string
	Args []interface{}
}

// IdentifierValues picks the non-nil values of the entity's ID fields from args.
func IdentifierValues(entity schema.Entity, args map[string]interface{}) map[string]interface{} {
	values := make(map[string]interface{})
	for _, f := range entity.IDFields() {
		if v, ok := args[f.Name]; ok && v != nil {
			values[f.Name] = v
		}
	}
	return values
}

// PlanRecordLookup builds the SQL for a single-row lookup by exact identifier
// equality within an already scoped collection.
func PlanRecordLookup(scope Collection, values map[string]interface{}) (SQLQuery, error) {
	if len(values) == 0 {
		return SQLQuery{}, ErrNoIdentifiers
	}
	entity := scope.Entity()
	for col := range values {
		if !entity.HasColumn(col) {
			return SQLQuery{}, fmt.Errorf("%s has no identifier column %s", entity.Name, col)
		}
	}
	return scope.WhereColumns(values).Limit(1).ToSQL()
}
