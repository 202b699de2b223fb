package resolver

import (
	"fmt"

	"chat-graphql/internal/filter"
	"chat-graphql/internal/schema"

	"github.com/graphql-go/graphql"
)

// objectType returns the cached GraphQL object for an entity. Fields are built
// lazily so entities may reference each other.
func (r *Resolver) objectType(e schema.Entity) *graphql.Object {
	r.mu.RLock()
	cached, ok := r.typeCache[e.Name]
	r.mu.RUnlock()
	if ok {
		return cached
	}

	objType := graphql.NewObject(graphql.ObjectConfig{
		Name: r.registry.Namer().TypeName(e.Name),
		Fields: graphql.FieldsThunk(func() graphql.Fields {
			return r.buildFieldsForEntity(e)
		}),
	})

	r.mu.Lock()
	if cached, ok := r.typeCache[e.Name]; ok {
		r.mu.Unlock()
		return cached
	}
	r.typeCache[e.Name] = objType
	r.mu.Unlock()

	return objType
}

// buildFieldsForEntity builds the GraphQL fields for an entity (called lazily by FieldsThunk).
func (r *Resolver) buildFieldsForEntity(e schema.Entity) graphql.Fields {
	fields := graphql.Fields{}

	for _, f := range e.Fields {
		if f.Type == schema.TypeAssociation {
			rel, ok := e.BelongsToByName(f.Name)
			if !ok {
				continue
			}
			target, _ := r.registry.Entity(rel.Target)
			fields[rel.ForeignKey] = &graphql.Field{Type: graphql.ID}
			fields[f.Name] = &graphql.Field{
				Type:        r.objectType(target),
				Description: f.Description,
				Resolve:     makeBelongsToResolver(r.records[rel.Target], rel.ForeignKey),
			}
			continue
		}

		var fieldType graphql.Output = r.outputType(e, f)
		if f.IsList {
			fieldType = graphql.NewList(fieldType)
		}
		if f.Name == e.PrimaryKey {
			fieldType = graphql.NewNonNull(fieldType)
		}
		fields[f.Name] = &graphql.Field{Type: fieldType, Description: f.Description}
	}

	for _, rel := range e.HasMany {
		q := r.relations[e.Name+"."+rel.Name]
		target, _ := r.registry.Entity(rel.Target)
		fields[rel.Name] = &graphql.Field{
			Type:    graphql.NewNonNull(graphql.NewList(graphql.NewNonNull(r.objectType(target)))),
			Args:    r.filterArgs(q),
			Resolve: makeListResolver(q, true),
		}
	}

	return fields
}

func (r *Resolver) outputType(e schema.Entity, f schema.Field) graphql.Output {
	if f.Type == schema.TypeEnum {
		return r.enumType(e, f.Name, f.EnumValues)
	}
	return scalarFor(f.Type)
}

func (r *Resolver) inputType(e schema.Entity, field string, shape filter.ValueShape) graphql.Input {
	var t graphql.Input
	if shape.Type == schema.TypeEnum {
		t = r.enumType(e, field, shape.EnumValues)
	} else {
		t = scalarFor(shape.Type)
	}
	if shape.IsList {
		return graphql.NewList(graphql.NewNonNull(t))
	}
	return t
}

func scalarFor(t schema.SemanticType) *graphql.Scalar {
	switch t {
	case schema.TypeID:
		return graphql.ID
	case schema.TypeDateTime:
		return graphql.DateTime
	case schema.TypeFloat:
		return graphql.Float
	case schema.TypeInt:
		return graphql.Int
	default:
		return graphql.String
	}
}

func (r *Resolver) enumType(e schema.Entity, field string, values []string) *graphql.Enum {
	name := r.registry.Namer().TypeName(e.Name + "_" + field)

	r.mu.Lock()
	defer r.mu.Unlock()
	if cached, ok := r.enumCache[name]; ok {
		return cached
	}
	enumValues := graphql.EnumValueConfigMap{}
	for _, v := range values {
		enumValues[v] = &graphql.EnumValueConfig{Value: v}
	}
	enum := graphql.NewEnum(graphql.EnumConfig{
		Name:   name,
		Values: enumValues,
	})
	r.enumCache[name] = enum
	return enum
}

// filterArgs exposes every whitelisted filter key of the query's entity plus sort_by.
func (r *Resolver) filterArgs(q *CollectionQuery) graphql.FieldConfigArgument {
	fs := q.FilterSchema()
	args := graphql.FieldConfigArgument{}
	for _, key := range fs.Keys() {
		entry, _ := fs.Lookup(key)
		args[key] = &graphql.ArgumentConfig{
			Type:        r.inputType(q.Entity(), entry.Field, entry.Shape),
			Description: filterDescription(entry),
		}
	}
	args[SortArg] = &graphql.ArgumentConfig{
		Type:        graphql.String,
		Description: "Use dot notation to sort by a specific field. E.g. `created_at.asc` or `created_at.desc`.",
	}
	return args
}

func filterDescription(entry filter.Entry) string {
	switch entry.Operator {
	case filter.OpEq:
		return fmt.Sprintf("%s equals value", entry.Field)
	case filter.OpGt:
		return fmt.Sprintf("%s strictly greater than value", entry.Field)
	case filter.OpGte:
		return fmt.Sprintf("%s greater than or equal to value", entry.Field)
	case filter.OpLt:
		return fmt.Sprintf("%s strictly less than value", entry.Field)
	case filter.OpLte:
		return fmt.Sprintf("%s less than or equal to value", entry.Field)
	case filter.OpIn:
		return fmt.Sprintf("%s in list of values", entry.Field)
	default:
		return fmt.Sprintf("%s not in list of values", entry.Field)
	}
}
