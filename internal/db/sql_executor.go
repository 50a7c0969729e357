package db

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"fmt"
	"strings"
)

// executor is the narrow contract the Store needs from a relational backend
type executor interface {
	exec(ctx context.Context, query string, args []any) (int64, error)
	insert(ctx context.Context, query string, args []any, returning bool) (int64, error)
	query(ctx context.Context, query string, args []any) ([]Row, error)
	close() error
}

// sqlExecutor runs statements through database/sql (Firebird, SQLite)
type sqlExecutor struct {
	db         *sql.DB
	decodeText func([]byte) string
}

func (e *sqlExecutor) exec(ctx context.Context, query string, args []any) (int64, error) {
	res, err := e.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (e *sqlExecutor) insert(ctx context.Context, query string, args []any, returning bool) (int64, error) {
	if returning {
		var id int64
		if err := e.db.QueryRowContext(ctx, query, args...).Scan(&id); err != nil {
			return 0, err
		}
		return id, nil
	}

	res, err := e.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func (e *sqlExecutor) query(ctx context.Context, query string, args []any) ([]Row, error) {
	rows, err := e.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("failed to read columns: %w", err)
	}

	var out []Row
	for rows.Next() {
		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("row scan failed: %w", err)
		}

		row := make(Row, len(cols))
		for i, c := range cols {
			row[strings.ToLower(c)] = normalizeValue(values[i], e.decodeText)
		}
		out = append(out, row)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func (e *sqlExecutor) close() error {
	return e.db.Close()
}

// normalizeValue folds driver-specific types into the Row scalar set
func normalizeValue(v any, decodeText func([]byte) string) any {
	switch val := v.(type) {
	case nil, string, int64, float64, bool:
		return val
	case []byte:
		if decodeText != nil {
			return decodeText(val)
		}
		return string(val)
	case int:
		return int64(val)
	case int8:
		return int64(val)
	case int16:
		return int64(val)
	case int32:
		return int64(val)
	case uint32:
		return int64(val)
	case float32:
		return float64(val)
	case driver.Valuer:
		// NUMERIC columns (decimal.Decimal, pgtype.Numeric) come back as exact strings
		inner, err := val.Value()
		if err != nil {
			return nil
		}
		return normalizeValue(inner, decodeText)
	default:
		return val
	}
}
