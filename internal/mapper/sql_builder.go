package mapper

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"sort"
	"strings"
)

var (
	ErrInvalidIdentifier = errors.New("invalid sql identifier")
	ErrUnsupportedOp     = errors.New("unsupported filter operator")
	ErrEmptyRow          = errors.New("no columns provided")
	ErrMissingPredicate  = errors.New("refusing to run without a predicate")
)

var identifierPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)?$`)

// SQLBuilder translates table-agnostic operations into parameterized SQL for one dialect
type SQLBuilder struct {
	dialect Dialect
}

func NewSQLBuilder(d Dialect) *SQLBuilder {
	if d.Placeholder == nil {
		d.Placeholder = questionMark
	}
	return &SQLBuilder{dialect: d}
}

func (b *SQLBuilder) Dialect() Dialect {
	return b.dialect
}

// args accumulates bind values and hands out dialect placeholders in order
type args struct {
	d      Dialect
	values []any
}

func (a *args) add(v any) string {
	if a.d.FormatValue != nil {
		v = a.d.FormatValue(v)
	}
	a.values = append(a.values, v)
	return a.d.Placeholder(len(a.values))
}

// BuildSelect generates a SELECT * with optional predicate, ordering and pagination
func (b *SQLBuilder) BuildSelect(tableName string, q Query) (string, []any, error) {
	table, err := b.ident(tableName)
	if err != nil {
		return "", nil, err
	}

	a := &args{d: b.dialect}
	where, err := b.where(q.Where, a)
	if err != nil {
		return "", nil, err
	}

	var sb strings.Builder
	sb.WriteString("SELECT ")
	if b.dialect.FirstSkip {
		if q.Limit > 0 {
			fmt.Fprintf(&sb, "FIRST %d ", q.Limit)
		}
		if q.Offset > 0 {
			fmt.Fprintf(&sb, "SKIP %d ", q.Offset)
		}
	}
	sb.WriteString("* FROM ")
	sb.WriteString(table)
	sb.WriteString(where)

	if len(q.OrderBy) > 0 {
		parts := make([]string, 0, len(q.OrderBy))
		for _, o := range q.OrderBy {
			col, err := b.ident(o.Column)
			if err != nil {
				return "", nil, err
			}
			if o.Desc {
				col += " DESC"
			} else {
				col += " ASC"
			}
			parts = append(parts, col)
		}
		sb.WriteString(" ORDER BY ")
		sb.WriteString(strings.Join(parts, ", "))
	}

	if !b.dialect.FirstSkip {
		switch {
		case q.Limit > 0:
			fmt.Fprintf(&sb, " LIMIT %d", q.Limit)
		case q.Offset > 0 && b.dialect.UnboundedLimit != "":
			fmt.Fprintf(&sb, " LIMIT %s", b.dialect.UnboundedLimit)
		}
		if q.Offset > 0 {
			fmt.Fprintf(&sb, " OFFSET %d", q.Offset)
		}
	}

	return sb.String(), a.values, nil
}

// BuildInsert generates an INSERT with deterministic column order.
// When the dialect reads ids through RETURNING, pkColumn is appended as the returned column
func (b *SQLBuilder) BuildInsert(tableName string, data map[string]any, pkColumn string) (string, []any, error) {
	if len(data) == 0 {
		return "", nil, fmt.Errorf("%w for insert on table %s", ErrEmptyRow, tableName)
	}
	table, err := b.ident(tableName)
	if err != nil {
		return "", nil, err
	}

	a := &args{d: b.dialect}
	columns := make([]string, 0, len(data))
	placeholders := make([]string, 0, len(data))

	for _, k := range sortedKeys(data) {
		col, err := b.ident(k)
		if err != nil {
			return "", nil, err
		}
		columns = append(columns, col)
		placeholders = append(placeholders, a.add(data[k]))
	}

	query := fmt.Sprintf(
		"INSERT INTO %s (%s) VALUES (%s)",
		table,
		strings.Join(columns, ", "),
		strings.Join(placeholders, ", "),
	)

	if b.dialect.Returning && pkColumn != "" {
		pk, err := b.ident(pkColumn)
		if err != nil {
			return "", nil, err
		}
		query += " RETURNING " + pk
	}

	return query, a.values, nil
}

// BuildUpdate generates an UPDATE restricted to the keys in data. stampColumn, when set
// and not supplied by the caller, is refreshed with CURRENT_TIMESTAMP
func (b *SQLBuilder) BuildUpdate(tableName string, data map[string]any, stampColumn string, where []Filter) (string, []any, error) {
	if len(data) == 0 {
		return "", nil, fmt.Errorf("%w for update on table %s", ErrEmptyRow, tableName)
	}
	if len(where) == 0 {
		return "", nil, fmt.Errorf("%w: update on table %s", ErrMissingPredicate, tableName)
	}
	table, err := b.ident(tableName)
	if err != nil {
		return "", nil, err
	}

	a := &args{d: b.dialect}
	setClauses := make([]string, 0, len(data)+1)
	stamped := false

	for _, k := range sortedKeys(data) {
		col, err := b.ident(k)
		if err != nil {
			return "", nil, err
		}
		if strings.EqualFold(k, stampColumn) {
			stamped = true
		}
		setClauses = append(setClauses, fmt.Sprintf("%s = %s", col, a.add(data[k])))
	}

	if stampColumn != "" && !stamped {
		col, err := b.ident(stampColumn)
		if err != nil {
			return "", nil, err
		}
		setClauses = append(setClauses, col+" = CURRENT_TIMESTAMP")
	}

	whereSQL, err := b.where(where, a)
	if err != nil {
		return "", nil, err
	}

	query := fmt.Sprintf("UPDATE %s SET %s%s", table, strings.Join(setClauses, ", "), whereSQL)
	return query, a.values, nil
}

// BuildDelete generates a DELETE. An empty predicate is rejected
func (b *SQLBuilder) BuildDelete(tableName string, where []Filter) (string, []any, error) {
	if len(where) == 0 {
		return "", nil, fmt.Errorf("%w: delete on table %s", ErrMissingPredicate, tableName)
	}
	table, err := b.ident(tableName)
	if err != nil {
		return "", nil, err
	}

	a := &args{d: b.dialect}
	whereSQL, err := b.where(where, a)
	if err != nil {
		return "", nil, err
	}

	return "DELETE FROM " + table + whereSQL, a.values, nil
}

func (b *SQLBuilder) where(filters []Filter, a *args) (string, error) {
	if len(filters) == 0 {
		return "", nil
	}

	parts := make([]string, 0, len(filters))
	for _, f := range filters {
		if !f.Op.valid() {
			return "", fmt.Errorf("%w: %q", ErrUnsupportedOp, f.Op)
		}
		col, err := b.ident(f.Column)
		if err != nil {
			return "", err
		}

		switch {
		case f.Op.unary():
			parts = append(parts, fmt.Sprintf("%s %s", col, f.Op))
		case f.Op == OpIn:
			values := flatten(f.Value)
			if len(values) == 0 {
				parts = append(parts, "1 = 0")
				continue
			}
			ph := make([]string, 0, len(values))
			for _, v := range values {
				ph = append(ph, a.add(v))
			}
			parts = append(parts, fmt.Sprintf("%s IN (%s)", col, strings.Join(ph, ", ")))
		default:
			parts = append(parts, fmt.Sprintf("%s %s %s", col, f.Op, a.add(f.Value)))
		}
	}

	return " WHERE " + strings.Join(parts, " AND "), nil
}

func (b *SQLBuilder) ident(name string) (string, error) {
	if !identifierPattern.MatchString(name) {
		return "", fmt.Errorf("%w: %q", ErrInvalidIdentifier, name)
	}
	if b.dialect.UpperIdentifiers {
		return strings.ToUpper(name), nil
	}
	return name, nil
}

// flatten expands any slice value into its elements. Scalars become a one-element list
func flatten(v any) []any {
	if v == nil {
		return nil
	}
	if list, ok := v.([]any); ok {
		// In("col", ids) where ids is []int64 arrives as []any{[]int64{...}}
		if len(list) == 1 {
			if rv := reflect.ValueOf(list[0]); rv.Kind() == reflect.Slice && rv.Type().Elem().Kind() != reflect.Uint8 {
				return flatten(list[0])
			}
		}
		return list
	}

	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice || rv.Type().Elem().Kind() == reflect.Uint8 {
		return []any{v}
	}
	out := make([]any, rv.Len())
	for i := range out {
		out[i] = rv.Index(i).Interface()
	}
	return out
}

// Sort keys for deterministic SQL generation
func sortedKeys(data map[string]any) []string {
	keys := make([]string, 0, len(data))
	for k := range data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
