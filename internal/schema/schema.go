// Package schema holds the static metadata describing each queryable entity:
// its declared fields, storage columns, relations, and default ordering.
// Entities are registered once at startup and are read-only afterwards.
package schema

import (
	"fmt"
	"strings"
)

// SemanticType is the API-level type of a declared field.
type SemanticType string

const (
	TypeID          SemanticType = "ID"
	TypeString      SemanticType = "String"
	TypeEnum        SemanticType = "Enum"
	TypeDateTime    SemanticType = "DateTime"
	TypeFloat       SemanticType = "Float"
	TypeInt         SemanticType = "Int"
	TypeAssociation SemanticType = "Association"
)

// Field describes one field an entity exposes to callers.
type Field struct {
	Name   string
	Type   SemanticType
	IsList bool
	// EnumValues lists the allowed values when Type is TypeEnum.
	EnumValues []string
	// Description is surfaced in the GraphQL schema.
	Description string
}

// BelongsTo is a many-to-one relation owned by the entity through a foreign key column.
type BelongsTo struct {
	Name       string // field name of the association, e.g. "from"
	ForeignKey string // local column, e.g. "from_id"
	Target     string // target entity name, e.g. "User"
}

// HasMany is a one-to-many relation where the target entity holds the foreign key.
type HasMany struct {
	Name       string // association name on the parent, e.g. "sent_chats"
	Target     string // child entity name, e.g. "Chat"
	ForeignKey string // column on the child table
	LocalKey   string // column on the parent table, usually the primary key
}

// Direction is a sort direction.
type Direction string

const (
	Asc  Direction = "asc"
	Desc Direction = "desc"
)

// OrderTerm is one column of an ordering.
type OrderTerm struct {
	Column    string
	Direction Direction
}

// Entity is the static configuration for one queryable record type.
type Entity struct {
	Name       string
	Table      string
	PrimaryKey string
	Columns    []string
	Fields     []Field
	BelongsTo  []BelongsTo
	HasMany    []HasMany
	// DefaultOrder applies whenever a caller does not request an explicit ordering.
	DefaultOrder []OrderTerm
}

// HasColumn reports whether name is a real storage column of the entity.
func (e Entity) HasColumn(name string) bool {
	for _, col := range e.Columns {
		if col == name {
			return true
		}
	}
	return false
}

// Field returns the declared field with the given name.
func (e Entity) Field(name string) (Field, bool) {
	for _, f := range e.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// BelongsToByName returns the belongs-to relation backing an association field.
func (e Entity) BelongsToByName(name string) (BelongsTo, bool) {
	for _, rel := range e.BelongsTo {
		if rel.Name == name {
			return rel, true
		}
	}
	return BelongsTo{}, false
}

// HasManyByName returns the has-many relation with the given association name.
func (e Entity) HasManyByName(name string) (HasMany, bool) {
	for _, rel := range e.HasMany {
		if rel.Name == name {
			return rel, true
		}
	}
	return HasMany{}, false
}

// IDFields returns the declared ID-typed scalar fields that are storage columns.
// These are the lookup keys accepted by single-record resolvers.
func (e Entity) IDFields() []Field {
	var out []Field
	for _, f := range e.Fields {
		if f.Type == TypeID && !f.IsList && e.HasColumn(f.Name) {
			out = append(out, f)
		}
	}
	return out
}

// Validate checks the internal consistency of the entity configuration.
func (e Entity) Validate() error {
	if strings.TrimSpace(e.Name) == "" {
		return &ConfigurationError{Entity: e.Name, Reason: "entity name is required"}
	}
	if strings.TrimSpace(e.Table) == "" {
		return &ConfigurationError{Entity: e.Name, Reason: "table name is required"}
	}
	if e.PrimaryKey == "" || !e.HasColumn(e.PrimaryKey) {
		return &ConfigurationError{Entity: e.Name, Reason: fmt.Sprintf("primary key %q is not a column", e.PrimaryKey)}
	}
	if len(e.DefaultOrder) == 0 {
		return &ConfigurationError{Entity: e.Name, Reason: "default ordering is required"}
	}
	for _, term := range e.DefaultOrder {
		if !e.HasColumn(term.Column) {
			return &ConfigurationError{Entity: e.Name, Reason: fmt.Sprintf("default ordering column %q is not a column", term.Column)}
		}
		if term.Direction != Asc && term.Direction != Desc {
			return &ConfigurationError{Entity: e.Name, Reason: fmt.Sprintf("default ordering direction %q is invalid", term.Direction)}
		}
	}
	seen := make(map[string]struct{}, len(e.Fields))
	for _, f := range e.Fields {
		if _, dup := seen[f.Name]; dup {
			return &ConfigurationError{Entity: e.Name, Reason: fmt.Sprintf("field %q declared twice", f.Name)}
		}
		seen[f.Name] = struct{}{}
		if f.Type == TypeAssociation {
			if _, ok := e.BelongsToByName(f.Name); !ok && !f.IsList {
				return &ConfigurationError{Entity: e.Name, Reason: fmt.Sprintf("association field %q has no belongs-to relation", f.Name)}
			}
		}
	}
	for _, rel := range e.BelongsTo {
		if !e.HasColumn(rel.ForeignKey) {
			return &ConfigurationError{Entity: e.Name, Reason: fmt.Sprintf("belongs-to %q foreign key %q is not a column", rel.Name, rel.ForeignKey)}
		}
	}
	for _, rel := range e.HasMany {
		if !e.HasColumn(rel.LocalKey) {
			return &ConfigurationError{Entity: e.Name, Reason: fmt.Sprintf("has-many %q local key %q is not a column", rel.Name, rel.LocalKey)}
		}
	}
	return nil
}

// ConfigurationError reports an entity configuration defect detected at registration time.
type ConfigurationError struct {
	Entity string
	Reason string
}

func (e *ConfigurationError) Error() string {
	if e.Entity == "" {
		return "schema configuration error: " + e.Reason
	}
	return fmt.Sprintf("schema configuration error for %s: %s", e.Entity, e.Reason)
}
