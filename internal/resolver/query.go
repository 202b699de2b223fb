package resolver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"chat-graphql/internal/authz"
	"chat-graphql/internal/dbexec"
	"chat-graphql/internal/filter"
	"chat-graphql/internal/logging"
	"chat-graphql/internal/observability"
	"chat-graphql/internal/planner"
	"chat-graphql/internal/policy"
	"chat-graphql/internal/schema"

	"go.opentelemetry.io/otel/attribute"
)

// SortArg is the argument carrying a `field.direction` sort specifier.
const SortArg = "sort_by"

type queryOptions struct {
	parent     string
	relation   string
	strictSort bool
	metrics    *observability.QueryMetrics
}

// Option configures a collection or record query.
type Option func(*queryOptions)

// WithParent makes the query association-scoped: it resolves within the
// related collection of a parent entity instance.
func WithParent(entity string) Option {
	return func(o *queryOptions) {
		o.parent = entity
	}
}

// WithRelation names the parent's has-many association. Without it the name
// is inferred from the child entity, e.g. Chat -> chats.
func WithRelation(name string) Option {
	return func(o *queryOptions) {
		o.relation = name
	}
}

// WithStrictSort rejects sort specifiers naming unknown columns instead of ignoring them.
func WithStrictSort() Option {
	return func(o *queryOptions) {
		o.strictSort = true
	}
}

// WithMetrics records resolution outcomes.
func WithMetrics(m *observability.QueryMetrics) Option {
	return func(o *queryOptions) {
		o.metrics = m
	}
}

// scopedQuery is the plumbing shared by both resolver shapes: principal check,
// base collection selection and policy narrowing.
type scopedQuery struct {
	entity   schema.Entity
	filters  *filter.Schema
	scope    policy.Scope
	executor dbexec.QueryExecutor
	relation *schema.HasMany
	opts     queryOptions
}

func newScopedQuery(reg *Registry, exec dbexec.QueryExecutor, entityName string, opts []Option) (scopedQuery, error) {
	entity, ok := reg.Entity(entityName)
	if !ok {
		return scopedQuery{}, &schema.ConfigurationError{Entity: entityName, Reason: "entity is not registered"}
	}
	fs, _ := reg.FilterSchema(entityName)
	scope, ok := reg.Scope(entityName)
	if !ok {
		return scopedQuery{}, &schema.ConfigurationError{Entity: entityName, Reason: "no policy scope is registered"}
	}

	q := scopedQuery{entity: entity, filters: fs, scope: scope, executor: exec}
	for _, opt := range opts {
		opt(&q.opts)
	}
	if q.opts.parent != "" {
		rel, err := reg.relation(q.opts.parent, entityName, q.opts.relation)
		if err != nil {
			return scopedQuery{}, err
		}
		q.relation = &rel
	}
	return q, nil
}

// base returns the collection a resolution starts from: the whole entity, or
// the parent's related rows for association-scoped queries. ok is false when
// the parent has no key, which means there is nothing to read.
func (q scopedQuery) base(parent map[string]interface{}) (planner.Collection, bool, error) {
	coll := planner.NewCollection(q.entity, q.entity.DefaultOrder)
	if q.relation == nil {
		return coll, true, nil
	}
	if parent == nil {
		return planner.Collection{}, false, fmt.Errorf("%s.%s requires a parent %s", q.opts.parent, q.relation.Name, q.opts.parent)
	}
	key := parent[q.relation.LocalKey]
	if key == nil {
		return planner.Collection{}, false, nil
	}
	return coll.WhereColumns(map[string]interface{}{q.relation.ForeignKey: key}), true, nil
}

func (q scopedQuery) name() string {
	if q.relation != nil {
		return q.opts.parent + "." + q.relation.Name
	}
	return q.entity.Name
}

func (q scopedQuery) spanAttributes(shape string) []attribute.KeyValue {
	attrs := []attribute.KeyValue{
		attribute.String("graphql.resolver.entity", q.entity.Name),
		attribute.String("graphql.resolver.shape", shape),
	}
	if q.relation != nil {
		attrs = append(attrs, attribute.String("graphql.resolver.relation", q.relation.Name))
	}
	return attrs
}

func (q scopedQuery) execute(ctx context.Context, planned planner.SQLQuery) ([]map[string]interface{}, error) {
	rows, err := q.executor.QueryContext(ctx, planned.SQL, planned.Args...)
	if err != nil {
		return nil, normalizeQueryError(err)
	}
	defer func() {
		_ = rows.Close()
	}()

	return scanRows(rows)
}

func (q scopedQuery) record(ctx context.Context, shape string, start time.Time, results int, err error) {
	outcome := outcomeFor(err)
	q.opts.metrics.RecordResolution(ctx, q.entity.Name, shape, outcome, time.Since(start), results)

	var fve *planner.FilterValidationError
	if errors.As(err, &fve) {
		q.opts.metrics.RecordFilterRejected(ctx, q.entity.Name)
		logging.FromContext(ctx).Warn("rejected filter argument",
			slog.String("entity", q.entity.Name),
			slog.String("filter", fve.Key),
			slog.String("reason", fve.Reason),
		)
	}
}

func outcomeFor(err error) string {
	var unauthorized *authz.UnauthorizedError
	var fve *planner.FilterValidationError
	var sve *planner.SortValidationError
	switch {
	case err == nil:
		return "success"
	case errors.As(err, &unauthorized):
		return "unauthorized"
	case errors.As(err, &fve), errors.As(err, &sve):
		return "invalid"
	default:
		return "error"
	}
}

// CollectionQuery is the listing resolver for one entity.
type CollectionQuery struct {
	scopedQuery
}

// NewCollectionQuery builds a listing resolver for a registered entity.
func NewCollectionQuery(reg *Registry, exec dbexec.QueryExecutor, entity string, opts ...Option) (*CollectionQuery, error) {
	q, err := newScopedQuery(reg, exec, entity, opts)
	if err != nil {
		return nil, err
	}
	return &CollectionQuery{scopedQuery: q}, nil
}

// Entity returns the entity the query lists.
func (q *CollectionQuery) Entity() schema.Entity {
	return q.entity
}

// FilterSchema returns the filter whitelist the query validates arguments against.
func (q *CollectionQuery) FilterSchema() *filter.Schema {
	return q.filters
}

// Resolve lists the rows visible to the context's principal, narrowed by the
// filter arguments and ordered by the optional sort_by argument. parent is the
// parent row for association-scoped queries and is ignored otherwise.
func (q *CollectionQuery) Resolve(ctx context.Context, parent map[string]interface{}, args map[string]interface{}) (results []map[string]interface{}, err error) {
	ctx, span := startResolverSpan(ctx, "graphql.resolve.collection", q.spanAttributes("collection")...)
	start := time.Now()
	defer func() {
		q.record(ctx, "collection", start, len(results), err)
		span.finish(err, len(results))
	}()

	principal, err := authz.RequirePrincipal(ctx)
	if err != nil {
		return nil, err
	}

	sortSpec, filterArgs := splitSortArg(args)
	pred, err := planner.BuildPredicate(q.entity, q.filters, filterArgs)
	if err != nil {
		return nil, err
	}
	term, err := q.sortTerm(sortSpec)
	if err != nil {
		return nil, err
	}

	coll, ok, err := q.base(parent)
	if err != nil {
		return nil, err
	}
	if !ok {
		return []map[string]interface{}{}, nil
	}
	coll = q.scope(principal, coll).Filter(pred).Sort(term)

	logging.FromContext(ctx).Debug("resolving collection",
		slog.String("resolver", q.name()),
		slog.Int("filters", len(pred)),
		slog.String("sort", sortSpec),
		slog.Bool("sort_override", term != nil),
	)

	planned, err := coll.ToSQL()
	if err != nil {
		return nil, fmt.Errorf("failed to build query: %w", err)
	}
	results, err = q.execute(ctx, planned)
	if err != nil {
		return nil, err
	}
	if results == nil {
		results = []map[string]interface{}{}
	}
	return results, nil
}

func (q *CollectionQuery) sortTerm(spec string) (*schema.OrderTerm, error) {
	if q.opts.strictSort {
		return planner.ParseSortStrict(q.entity, spec)
	}
	return planner.ParseSort(q.entity, spec), nil
}

func splitSortArg(args map[string]interface{}) (string, map[string]interface{}) {
	if len(args) == 0 {
		return "", nil
	}
	filters := make(map[string]interface{}, len(args))
	var spec string
	for k, v := range args {
		if k == SortArg {
			spec, _ = v.(string)
			continue
		}
		filters[k] = v
	}
	return spec, filters
}

// RecordQuery is the single-record resolver for one entity.
type RecordQuery struct {
	scopedQuery
}

// NewRecordQuery builds a single-record resolver for a registered entity.
func NewRecordQuery(reg *Registry, exec dbexec.QueryExecutor, entity string, opts ...Option) (*RecordQuery, error) {
	q, err := newScopedQuery(reg, exec, entity, opts)
	if err != nil {
		return nil, err
	}
	return &RecordQuery{scopedQuery: q}, nil
}

// IDFields returns the identifier fields the query accepts as arguments.
func (q *RecordQuery) IDFields() []schema.Field {
	return q.entity.IDFields()
}

// Resolve looks up one row by exact equality on the supplied identifiers within
// the principal's visible rows. It returns nil, without querying, when no
// identifier is supplied, and nil when the row is missing or not visible.
func (q *RecordQuery) Resolve(ctx context.Context, parent map[string]interface{}, args map[string]interface{}) (result map[string]interface{}, err error) {
	ctx, span := startResolverSpan(ctx, "graphql.resolve.record", q.spanAttributes("record")...)
	start := time.Now()
	defer func() {
		n := 0
		if result != nil {
			n = 1
		}
		q.record(ctx, "record", start, n, err)
		span.finish(err, n)
	}()

	principal, err := authz.RequirePrincipal(ctx)
	if err != nil {
		return nil, err
	}

	ids := planner.IdentifierValues(q.entity, args)
	if len(ids) == 0 {
		return nil, nil
	}

	coll, ok, err := q.base(parent)
	if err != nil || !ok {
		return nil, err
	}

	planned, err := planner.PlanRecordLookup(q.scope(principal, coll), ids)
	if err != nil {
		return nil, fmt.Errorf("failed to build query: %w", err)
	}
	results, err := q.execute(ctx, planned)
	if err != nil {
		return nil, err
	}
	if len(results) == 0 {
		return nil, nil
	}
	return results[0], nil
}
