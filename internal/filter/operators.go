// Package filter derives the whitelist of filter keys an entity accepts.
// Keys are the bare field name (equality) or the field name suffixed with an
// operator, e.g. created_at_gte or from_id_in.
package filter

import "chat-graphql/internal/schema"

// Operator is a comparison kind usable in a filter key.
type Operator string

const (
	OpEq  Operator = "eq"
	OpGt  Operator = "gt"
	OpGte Operator = "gte"
	OpLt  Operator = "lt"
	OpLte Operator = "lte"
	OpIn  Operator = "in"
	OpNin Operator = "nin"
)

var (
	equalityOperators   = []Operator{OpEq, OpIn, OpNin}
	comparableOperators = []Operator{OpEq, OpGt, OpGte, OpLt, OpLte, OpIn, OpNin}
)

// operatorTable maps each filterable semantic type to its ordered operator set.
// Associations are absent: they are filtered through their foreign key as TypeID.
var operatorTable = map[schema.SemanticType][]Operator{
	schema.TypeID:       equalityOperators,
	schema.TypeString:   equalityOperators,
	schema.TypeEnum:     equalityOperators,
	schema.TypeDateTime: comparableOperators,
	schema.TypeFloat:    comparableOperators,
	schema.TypeInt:      comparableOperators,
}

// OperatorsFor returns the ordered operators permitted for a semantic type.
// Unknown types return nil, which excludes the field from filtering.
func OperatorsFor(t schema.SemanticType) []Operator {
	ops, ok := operatorTable[t]
	if !ok {
		return nil
	}
	return append([]Operator(nil), ops...)
}

// ParseOperator converts a key suffix into an operator. The implicit eq is not a valid suffix.
func ParseOperator(suffix string) (Operator, bool) {
	switch op := Operator(suffix); op {
	case OpGt, OpGte, OpLt, OpLte, OpIn, OpNin:
		return op, true
	default:
		return "", false
	}
}

// Suffix returns the key suffix for the operator, including the separator.
func (o Operator) Suffix() string {
	if o == OpEq {
		return ""
	}
	return "_" + string(o)
}

// IsList reports whether the operator takes a list of values.
func (o Operator) IsList() bool {
	return o == OpIn || o == OpNin
}

// Applicable reports whether op is permitted for the semantic type.
func Applicable(t schema.SemanticType, op Operator) bool {
	for _, candidate := range operatorTable[t] {
		if candidate == op {
			return true
		}
	}
	return false
}
