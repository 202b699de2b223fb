// Package planner turns validated caller input into SQL: filter arguments become
// parameterized predicates, sort specifiers become orderings, and both are
// applied to immutable collection views over an entity's table.
package planner

import (
	"strings"

	"chat-graphql/internal/schema"
	"chat-graphql/internal/sqlutil"

	sq "github.com/Masterminds/squirrel"
)

// Collection is an immutable, lazily executed view over an entity's rows.
// Each method returns a new Collection; the receiver is never modified.
type Collection struct {
	entity     schema.Entity
	conditions []sq.Sqlizer
	order      []schema.OrderTerm
	limit      uint64
}

// NewCollection returns the unfiltered view of entity ordered by defaultOrder.
// The default ordering is explicit so every call site shows what it iterates by.
func NewCollection(entity schema.Entity, defaultOrder []schema.OrderTerm) Collection {
	return Collection{
		entity: entity,
		order:  append([]schema.OrderTerm(nil), defaultOrder...),
	}
}

// Entity returns the entity the collection ranges over.
func (c Collection) Entity() schema.Entity {
	return c.entity
}

// Order returns the ordering the collection will be read in.
func (c Collection) Order() []schema.OrderTerm {
	return append([]schema.OrderTerm(nil), c.order...)
}

// Conditions returns the number of conditions narrowing the collection.
func (c Collection) Conditions() int {
	return len(c.conditions)
}

// Where narrows the collection with an additional AND condition.
func (c Collection) Where(cond sq.Sqlizer) Collection {
	out := c
	out.conditions = append(append([]sq.Sqlizer(nil), c.conditions...), cond)
	return out
}

// WhereColumns narrows the collection to rows whose columns equal the given values.
func (c Collection) WhereColumns(values map[string]interface{}) Collection {
	if len(values) == 0 {
		return c
	}
	eq := sq.Eq{}
	for col, val := range values {
		eq[c.Column(col)] = val
	}
	return c.Where(eq)
}

// Filter narrows the collection by a predicate. An empty predicate is a no-op.
func (c Collection) Filter(p Predicate) Collection {
	if len(p) == 0 {
		return c
	}
	return c.Where(p)
}

// OrderBy replaces the collection's ordering.
func (c Collection) OrderBy(terms ...schema.OrderTerm) Collection {
	out := c
	out.order = append([]schema.OrderTerm(nil), terms...)
	return out
}

// Sort applies a resolved sort override. A nil term keeps the current ordering.
// Rows that tie on the override column are ordered by primary key.
func (c Collection) Sort(term *schema.OrderTerm) Collection {
	if term == nil {
		return c
	}
	if pk := c.entity.PrimaryKey; pk != "" && term.Column != pk {
		return c.OrderBy(*term, schema.OrderTerm{Column: pk, Direction: schema.Asc})
	}
	return c.OrderBy(*term)
}

// Limit caps the number of rows read. Zero means no limit.
func (c Collection) Limit(n uint64) Collection {
	out := c
	out.limit = n
	return out
}

// Column returns the table-qualified reference for one of the entity's columns.
func (c Collection) Column(name string) string {
	return sqlutil.QualifiedColumn(c.entity.Table, name)
}

// ToSQL plans the SELECT statement for the collection.
func (c Collection) ToSQL() (SQLQuery, error) {
	columns := make([]string, len(c.entity.Columns))
	for i, col := range c.entity.Columns {
		columns[i] = c.Column(col)
	}

	builder := sq.Select(columns...).From(sqlutil.QuoteIdentifier(c.entity.Table))
	for _, cond := range c.conditions {
		builder = builder.Where(cond)
	}
	if len(c.order) > 0 {
		clauses := make([]string, len(c.order))
		for i, term := range c.order {
			clauses[i] = c.Column(term.Column) + " " + strings.ToUpper(string(term.Direction))
		}
		builder = builder.OrderBy(clauses...)
	}
	if c.limit > 0 {
		builder = builder.Limit(c.limit)
	}

	query, args, err := builder.PlaceholderFormat(sq.Question).ToSql()
	if err != nil {
		return SQLQuery{}, err
	}
	return SQLQuery{SQL: query, Args: args}, nil
}
