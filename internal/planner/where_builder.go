package planner

import (
	"fmt"
	"reflect"
	"sort"
	"strings"
	"time"

	"chat-graphql/internal/filter"
	"chat-graphql/internal/schema"
	"chat-graphql/internal/sqlutil"
)

var operatorTemplates = map[filter.Operator]string{
	filter.OpEq:  "= ?",
	filter.OpGt:  "> ?",
	filter.OpGte: ">= ?",
	filter.OpLt:  "< ?",
	filter.OpLte: "<= ?",
	filter.OpIn:  "IN (%s)",
	filter.OpNin: "NOT IN (%s)",
}

// Fragment is one column comparison of a filter predicate. Values are always
// bound parameters; only the column reference and operator template reach the SQL text.
type Fragment struct {
	Key      string
	Column   string // table-qualified, quoted column reference
	Operator filter.Operator
	Values   []interface{}
}

// ToSql implements squirrel's Sqlizer.
func (f Fragment) ToSql() (string, []interface{}, error) {
	tmpl, ok := operatorTemplates[f.Operator]
	if !ok {
		return "", nil, fmt.Errorf("unsupported operator %q", f.Operator)
	}
	if !f.Operator.IsList() {
		if len(f.Values) != 1 {
			return "", nil, fmt.Errorf("operator %s on %s expects one value, got %d", f.Operator, f.Column, len(f.Values))
		}
		return f.Column + " " + tmpl, f.Values, nil
	}
	if len(f.Values) == 0 {
		// Empty IN matches nothing; empty NOT IN matches everything.
		if f.Operator == filter.OpIn {
			return "1=0", nil, nil
		}
		return "1=1", nil, nil
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(f.Values)), ",")
	return f.Column + " " + fmt.Sprintf(tmpl, placeholders), f.Values, nil
}

// Predicate is an AND-conjunction of fragments. An empty predicate matches everything.
type Predicate []Fragment

// ToSql implements squirrel's Sqlizer. It fails if the rendered placeholders
// and bound values ever disagree in number.
func (p Predicate) ToSql() (string, []interface{}, error) {
	if len(p) == 0 {
		return "", nil, nil
	}
	parts := make([]string, 0, len(p))
	var args []interface{}
	for _, frag := range p {
		sql, fragArgs, err := frag.ToSql()
		if err != nil {
			return "", nil, err
		}
		parts = append(parts, sql)
		args = append(args, fragArgs...)
	}
	sql := strings.Join(parts, " AND ")
	if n := sqlutil.CountPlaceholders(sql); n != len(args) {
		return "", nil, fmt.Errorf("predicate has %d placeholders but %d bound values", n, len(args))
	}
	return sql, args, nil
}

// BuildPredicate parses filter arguments against the entity's whitelist and
// compiles them into a predicate.
func BuildPredicate(entity schema.Entity, fs *filter.Schema, args map[string]interface{}) (Predicate, error) {
	fragments, err := ParseFilterArgs(entity, fs, args)
	if err != nil {
		return nil, err
	}
	return Predicate(fragments), nil
}

// ParseFilterArgs validates every argument key against the entity's columns and
// filter whitelist, producing one fragment per supplied argument. Arguments
// with a nil value are treated as not supplied. The first invalid key aborts
// parsing with a FilterValidationError.
func ParseFilterArgs(entity schema.Entity, fs *filter.Schema, args map[string]interface{}) ([]Fragment, error) {
	if len(args) == 0 {
		return nil, nil
	}
	keys := make([]string, 0, len(args))
	for key := range args {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	fragments := make([]Fragment, 0, len(keys))
	for _, key := range keys {
		field, op, err := decomposeKey(entity, fs, key)
		if err != nil {
			return nil, err
		}
		value := args[key]
		if value == nil {
			continue
		}
		values, err := bindValues(key, op, value)
		if err != nil {
			return nil, err
		}
		fragments = append(fragments, Fragment{
			Key:      key,
			Column:   sqlutil.QualifiedColumn(entity.Table, field),
			Operator: op,
			Values:   values,
		})
	}
	return fragments, nil
}

// decomposeKey resolves key into a column and operator. A key equal to a column
// name is an equality filter; otherwise the key is split at its last underscore,
// and only when the prefix is a confirmed column.
func decomposeKey(entity schema.Entity, fs *filter.Schema, key string) (string, filter.Operator, error) {
	field, op := key, filter.OpEq
	if !entity.HasColumn(key) {
		idx := strings.LastIndex(key, "_")
		if idx <= 0 || idx == len(key)-1 {
			return "", "", &FilterValidationError{Key: key, Reason: "unknown field"}
		}
		field = key[:idx]
		if !entity.HasColumn(field) {
			return "", "", &FilterValidationError{Key: key, Reason: "unknown field"}
		}
		parsed, ok := filter.ParseOperator(key[idx+1:])
		if !ok {
			return "", "", &FilterValidationError{Key: key, Reason: "unknown operator"}
		}
		op = parsed
	}

	gotField, gotOp, ok := fs.Decompose(key)
	if !ok || gotField != field || gotOp != op {
		return "", "", &FilterValidationError{Key: key, Reason: "filter not permitted"}
	}
	return field, op, nil
}

func bindValues(key string, op filter.Operator, value interface{}) ([]interface{}, error) {
	rv := reflect.ValueOf(value)
	isList := rv.Kind() == reflect.Slice && rv.Type().Elem().Kind() != reflect.Uint8
	if op.IsList() {
		if !isList {
			return nil, &FilterValidationError{Key: key, Reason: "expected a list value"}
		}
		values := make([]interface{}, 0, rv.Len())
		for i := 0; i < rv.Len(); i++ {
			elem := rv.Index(i).Interface()
			if elem == nil {
				return nil, &FilterValidationError{Key: key, Reason: "list values must not be null"}
			}
			values = append(values, bindable(elem))
		}
		return values, nil
	}
	if isList {
		return nil, &FilterValidationError{Key: key, Reason: "expected a single value"}
	}
	return []interface{}{bindable(value)}, nil
}

// bindable converts times to UTC. Stored DateTime columns are UTC, and the
// SQLite driver compares times as text, so the offset must match.
func bindable(value interface{}) interface{} {
	switch v := value.(type) {
	case time.Time:
		return v.UTC()
	case *time.Time:
		if v == nil {
			return nil
		}
		return v.UTC()
	}
	return value
}
