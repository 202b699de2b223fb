// Package resolver exposes registered entities over GraphQL. Every entity gets
// a filterable, sortable listing field and a single-record lookup field, both
// scoped to what the request's principal may see; has-many associations become
// nested listing fields scoped to their parent row.
package resolver

import (
	"fmt"
	"sync"

	"chat-graphql/internal/dbexec"
	"chat-graphql/internal/naming"
	"chat-graphql/internal/observability"
	"chat-graphql/internal/schema"
	"chat-graphql/internal/store"

	"github.com/graphql-go/graphql"
)

// Config controls schema construction.
type Config struct {
	// StrictSort rejects unknown sort fields instead of keeping the default ordering.
	StrictSort bool
	Metrics    *observability.QueryMetrics
}

// Resolver builds the GraphQL schema for a registry and executes its queries.
type Resolver struct {
	executor dbexec.QueryExecutor
	registry *Registry
	writer   store.ChatWriter
	cfg      Config

	collections map[string]*CollectionQuery
	records     map[string]*RecordQuery
	relations   map[string]*CollectionQuery // keyed by "Parent.relation"

	typeCache  map[string]*graphql.Object
	enumCache  map[string]*graphql.Enum
	payloadObj *graphql.Object
	mu         sync.RWMutex
}

// NewResolver creates a resolver. writer may be nil, in which case the schema has no mutations.
func NewResolver(executor dbexec.QueryExecutor, registry *Registry, writer store.ChatWriter, cfg Config) *Resolver {
	return &Resolver{
		executor:    executor,
		registry:    registry,
		writer:      writer,
		cfg:         cfg,
		collections: make(map[string]*CollectionQuery),
		records:     make(map[string]*RecordQuery),
		relations:   make(map[string]*CollectionQuery),
		typeCache:   make(map[string]*graphql.Object),
		enumCache:   make(map[string]*graphql.Enum),
	}
}

func (r *Resolver) queryOptions(extra ...Option) []Option {
	opts := []Option{WithMetrics(r.cfg.Metrics)}
	if r.cfg.StrictSort {
		opts = append(opts, WithStrictSort())
	}
	return append(opts, extra...)
}

// prepareQueries constructs every resolver up front so configuration defects
// surface from BuildGraphQLSchema instead of during a request.
func (r *Resolver) prepareQueries() error {
	for _, e := range r.registry.Entities() {
		coll, err := NewCollectionQuery(r.registry, r.executor, e.Name, r.queryOptions()...)
		if err != nil {
			return err
		}
		rec, err := NewRecordQuery(r.registry, r.executor, e.Name, r.queryOptions()...)
		if err != nil {
			return err
		}
		r.collections[e.Name] = coll
		r.records[e.Name] = rec

		for _, rel := range e.HasMany {
			nested, err := NewCollectionQuery(r.registry, r.executor, rel.Target,
				r.queryOptions(WithParent(e.Name), WithRelation(rel.Name))...)
			if err != nil {
				return err
			}
			r.relations[e.Name+"."+rel.Name] = nested
		}
	}
	return nil
}

// BuildGraphQLSchema constructs the executable schema: a listing and a lookup
// field per entity, chat_history, all_chats, and the create_chat_message mutation.
func (r *Resolver) BuildGraphQLSchema() (graphql.Schema, error) {
	if err := r.prepareQueries(); err != nil {
		return graphql.Schema{}, err
	}

	queryFields := graphql.Fields{}
	namer := r.registry.Namer()
	for _, e := range r.registry.Entities() {
		listName := namer.AssociationName(e.Name)
		recordName := naming.ColumnName(e.Name)
		if _, dup := queryFields[listName]; dup {
			return graphql.Schema{}, &schema.ConfigurationError{Entity: e.Name, Reason: fmt.Sprintf("query field %q already defined", listName)}
		}
		queryFields[listName] = r.listField(e, r.collections[e.Name])
		queryFields[recordName] = r.recordField(e, r.records[e.Name])
	}
	if err := r.addChatQueries(queryFields); err != nil {
		return graphql.Schema{}, err
	}

	schemaConfig := graphql.SchemaConfig{
		Query: graphql.NewObject(graphql.ObjectConfig{
			Name:   "Query",
			Fields: queryFields,
		}),
	}
	if r.writer != nil {
		mutationFields, err := r.mutationFields()
		if err != nil {
			return graphql.Schema{}, err
		}
		schemaConfig.Mutation = graphql.NewObject(graphql.ObjectConfig{
			Name:   "Mutation",
			Fields: mutationFields,
		})
	}

	return graphql.NewSchema(schemaConfig)
}

func (r *Resolver) listField(e schema.Entity, q *CollectionQuery) *graphql.Field {
	return &graphql.Field{
		Type:        graphql.NewNonNull(graphql.NewList(graphql.NewNonNull(r.objectType(e)))),
		Args:        r.filterArgs(q),
		Description: fmt.Sprintf("Lists %s records. Filter with field or field_op arguments; sort_by takes field.asc or field.desc.", e.Name),
		Resolve:     makeListResolver(q, false),
	}
}

func (r *Resolver) recordField(e schema.Entity, q *RecordQuery) *graphql.Field {
	args := graphql.FieldConfigArgument{}
	for _, f := range q.IDFields() {
		args[f.Name] = &graphql.ArgumentConfig{Type: graphql.ID}
	}
	return &graphql.Field{
		Type:        r.objectType(e),
		Args:        args,
		Description: fmt.Sprintf("Looks up one %s by identifier.", e.Name),
		Resolve:     makeRecordResolver(q, false),
	}
}

// makeListResolver adapts a collection query to graphql-go. Nested resolvers
// pass their source row as the parent.
func makeListResolver(q *CollectionQuery, nested bool) graphql.FieldResolveFn {
	return func(p graphql.ResolveParams) (interface{}, error) {
		parent, err := parentRow(p, nested)
		if err != nil {
			return nil, err
		}
		return q.Resolve(p.Context, parent, p.Args)
	}
}

func makeRecordResolver(q *RecordQuery, nested bool) graphql.FieldResolveFn {
	return func(p graphql.ResolveParams) (interface{}, error) {
		parent, err := parentRow(p, nested)
		if err != nil {
			return nil, err
		}
		row, err := q.Resolve(p.Context, parent, p.Args)
		if err != nil || row == nil {
			return nil, err
		}
		return row, nil
	}
}

// makeBelongsToResolver looks up the record a foreign key points at, through
// the target entity's policy scope.
func makeBelongsToResolver(q *RecordQuery, foreignKey string) graphql.FieldResolveFn {
	return func(p graphql.ResolveParams) (interface{}, error) {
		source, ok := p.Source.(map[string]interface{})
		if !ok {
			return nil, fmt.Errorf("invalid source type")
		}
		fk := source[foreignKey]
		if fk == nil {
			return nil, nil
		}
		row, err := q.Resolve(p.Context, nil, map[string]interface{}{q.entity.PrimaryKey: fk})
		if err != nil || row == nil {
			return nil, err
		}
		return row, nil
	}
}

func parentRow(p graphql.ResolveParams, nested bool) (map[string]interface{}, error) {
	if !nested {
		return nil, nil
	}
	source, ok := p.Source.(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("invalid source type")
	}
	return source, nil
}
