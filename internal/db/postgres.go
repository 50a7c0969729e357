package db

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/Guizzs26/watch-crm/internal/mapper"

	"github.com/jackc/pgx/v5/pgxpool"
)

// pgxExecutor runs statements on a pgx connection pool
type pgxExecutor struct {
	pool *pgxpool.Pool
}

// NewPostgresStore connects a pool to Postgres and returns a Store speaking its dialect
func NewPostgresStore(ctx context.Context, connString string, logger *slog.Logger, opts ...Option) (*Store, error) {
	config, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("failed to parse postgres pool config: %w", err)
	}

	p, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create postgres pool: %w", err)
	}

	if err := p.Ping(ctx); err != nil {
		p.Close()
		return nil, fmt.Errorf("postgres ping failed: %w", err)
	}

	if logger != nil {
		logger.Info("Connected to Postgres successfully", "max_conns", config.MaxConns)
	}

	return newStore(&pgxExecutor{pool: p}, mapper.Postgres, logger, opts...), nil
}

func (e *pgxExecutor) exec(ctx context.Context, query string, args []any) (int64, error) {
	tag, err := e.pool.Exec(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (e *pgxExecutor) insert(ctx context.Context, query string, args []any, returning bool) (int64, error) {
	if !returning {
		return 0, errors.New("postgres inserts must read the id through RETURNING")
	}

	var id int64
	if err := e.pool.QueryRow(ctx, query, args...).Scan(&id); err != nil {
		return 0, err
	}
	return id, nil
}

func (e *pgxExecutor) query(ctx context.Context, query string, args []any) ([]Row, error) {
	rows, err := e.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	fields := rows.FieldDescriptions()

	var out []Row
	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return nil, fmt.Errorf("row decode failed: %w", err)
		}

		row := make(Row, len(fields))
		for i, f := range fields {
			row[f.Name] = normalizeValue(values[i], nil)
		}
		out = append(out, row)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func (e *pgxExecutor) close() error {
	e.pool.Close()
	return nil
}
