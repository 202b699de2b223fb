package planner

import (
	"fmt"
	"strings"

	"chat-graphql/internal/naming"
	"chat-graphql/internal/schema"
)

// ParseSort resolves a `field.direction` sort specifier. It returns nil, meaning
// keep the collection's default ordering, when raw is empty or names no column.
// A missing or unrecognized direction means ascending.
func ParseSort(entity schema.Entity, raw string) *schema.OrderTerm {
	term, _ := parseSort(entity, raw)
	return term
}

// ParseSortStrict behaves like ParseSort but reports an unknown column as a
// SortValidationError instead of ignoring it.
func ParseSortStrict(entity schema.Entity, raw string) (*schema.OrderTerm, error) {
	term, reason := parseSort(entity, raw)
	if reason != "" {
		return nil, &SortValidationError{Spec: raw, Reason: reason}
	}
	return term, nil
}

func parseSort(entity schema.Entity, raw string) (*schema.OrderTerm, string) {
	if strings.TrimSpace(raw) == "" {
		return nil, ""
	}
	field, dir, _ := strings.Cut(raw, ".")
	column := naming.ColumnName(field)
	if column == "" || !entity.HasColumn(column) {
		return nil, fmt.Sprintf("unknown sort field %q", column)
	}
	return &schema.OrderTerm{Column: column, Direction: parseDirection(dir)}, ""
}

func parseDirection(raw string) schema.Direction {
	if strings.EqualFold(strings.TrimSpace(raw), string(schema.Desc)) {
		return schema.Desc
	}
	return schema.Asc
}
