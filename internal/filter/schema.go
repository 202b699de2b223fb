package filter

import (
	"fmt"
	"sort"

	"chat-graphql/internal/schema"
)

// ValueShape is the expected shape of a filter argument value.
type ValueShape struct {
	Type       schema.SemanticType
	IsList     bool
	EnumValues []string
}

// Entry is one whitelisted filter key.
type Entry struct {
	Key      string
	Field    string
	Operator Operator
	Shape    ValueShape
}

// Schema is the read-only filter whitelist for one entity.
type Schema struct {
	entity  string
	entries map[string]Entry
	keys    []string
}

type filterDescriptor struct {
	name       string
	typ        schema.SemanticType
	enumValues []string
}

// BuildSchema computes the filter whitelist for an entity.
// Two descriptors generating the same key is a configuration error.
func BuildSchema(entity schema.Entity) (*Schema, error) {
	descriptors, err := filterableDescriptors(entity)
	if err != nil {
		return nil, err
	}

	s := &Schema{
		entity:  entity.Name,
		entries: make(map[string]Entry),
	}
	for _, d := range descriptors {
		for _, op := range OperatorsFor(d.typ) {
			key := d.name + op.Suffix()
			if existing, dup := s.entries[key]; dup {
				return nil, &schema.ConfigurationError{
					Entity: entity.Name,
					Reason: fmt.Sprintf("filter key %q generated by both %s and %s", key, existing.Field, d.name),
				}
			}
			s.entries[key] = Entry{
				Key:      key,
				Field:    d.name,
				Operator: op,
				Shape: ValueShape{
					Type:       d.typ,
					IsList:     op.IsList(),
					EnumValues: d.enumValues,
				},
			}
			s.keys = append(s.keys, key)
		}
	}
	return s, nil
}

func filterableDescriptors(entity schema.Entity) ([]filterDescriptor, error) {
	var out []filterDescriptor
	for _, f := range entity.Fields {
		if f.IsList {
			continue
		}
		if f.Type == schema.TypeAssociation {
			rel, ok := entity.BelongsToByName(f.Name)
			if !ok {
				return nil, &schema.ConfigurationError{
					Entity: entity.Name,
					Reason: fmt.Sprintf("association field %q has no belongs-to relation", f.Name),
				}
			}
			out = append(out, filterDescriptor{name: rel.ForeignKey, typ: schema.TypeID})
			continue
		}
		if !entity.HasColumn(f.Name) || len(OperatorsFor(f.Type)) == 0 {
			continue
		}
		out = append(out, filterDescriptor{name: f.Name, typ: f.Type, enumValues: f.EnumValues})
	}
	return out, nil
}

// Entity returns the name of the entity the schema was built for.
func (s *Schema) Entity() string {
	return s.entity
}

// Keys returns every whitelisted key in generation order.
func (s *Schema) Keys() []string {
	return append([]string(nil), s.keys...)
}

// SortedKeys returns every whitelisted key in lexical order.
func (s *Schema) SortedKeys() []string {
	keys := s.Keys()
	sort.Strings(keys)
	return keys
}

// Lookup returns the whitelist entry for key.
func (s *Schema) Lookup(key string) (Entry, bool) {
	entry, ok := s.entries[key]
	return entry, ok
}

// Decompose resolves a key to its field and operator using the whitelist.
func (s *Schema) Decompose(key string) (string, Operator, bool) {
	entry, ok := s.entries[key]
	if !ok {
		return "", "", false
	}
	return entry.Field, entry.Operator, true
}

// Fields returns the distinct filterable field names.
func (s *Schema) Fields() []string {
	seen := make(map[string]struct{})
	var out []string
	for _, key := range s.keys {
		field := s.entries[key].Field
		if _, ok := seen[field]; ok {
			continue
		}
		seen[field] = struct{}{}
		out = append(out, field)
	}
	return out
}

// Shape returns the expected value shape for key.
func (s *Schema) Shape(key string) (ValueShape, bool) {
	entry, ok := s.entries[key]
	return entry.Shape, ok
}
