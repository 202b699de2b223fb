package planner

import (
	"fmt"

	sq "github.com/Masterminds/squirrel"

	"chat-graphql/internal/schema"
	"chat-graphql/internal/sqlutil"
)

// PlanInsert builds SQL for inserting a single row with the provided columns.
func PlanInsert(entity schema.Entity, columns []string, values []interface{}) (SQLQuery, error) {
	if len(columns) == 0 {
		return SQLQuery{}, fmt.Errorf("insert into %s requires at least one column", entity.Table)
	}
	if len(columns) != len(values) {
		return SQLQuery{}, fmt.Errorf("insert into %s has %d columns but %d values", entity.Table, len(columns), len(values))
	}

	quotedCols := make([]string, len(columns))
	for i, col := range columns {
		if !entity.HasColumn(col) {
			return SQLQuery{}, fmt.Errorf("%s has no column %s", entity.Name, col)
		}
		quotedCols[i] = sqlutil.QuoteIdentifier(col)
	}

	query, args, err := sq.Insert(sqlutil.QuoteIdentifier(entity.Table)).
		Columns(quotedCols...).
		Values(values...).
		PlaceholderFormat(sq.Question).
		ToSql()
	if err != nil {
		return SQLQuery{}, err
	}

	return SQLQuery{SQL: query, Args: args}, nil
}
