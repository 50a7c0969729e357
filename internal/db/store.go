package db

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/Guizzs26/watch-crm/internal/mapper"
	"github.com/Guizzs26/watch-crm/pkg/metrics"
)

const (
	DefaultPrimaryKey      = "id"
	DefaultUpdatedAtColumn = "updated_at"
	DefaultQueryTimeout    = 10 * time.Second
)

// Store is the table-agnostic data access layer. Values always travel as bind
// parameters; table and column names must be plain identifiers.
// Store never retries, retry policy belongs to callers
type Store struct {
	exec      executor
	builder   *mapper.SQLBuilder
	logger    *slog.Logger
	timeout   time.Duration
	pkColumn  string
	updatedAt string
}

type Option func(*Store)

// WithQueryTimeout bounds every single statement. Zero disables the bound
func WithQueryTimeout(d time.Duration) Option {
	return func(s *Store) { s.timeout = d }
}

// WithPrimaryKey sets the column returned by Insert on RETURNING dialects
func WithPrimaryKey(column string) Option {
	return func(s *Store) { s.pkColumn = column }
}

// WithUpdatedAtColumn sets the column stamped by Update. Empty disables stamping
func WithUpdatedAtColumn(column string) Option {
	return func(s *Store) { s.updatedAt = column }
}

// NewSQLStore wraps an already opened database/sql handle
func NewSQLStore(sqlDB *sql.DB, d mapper.Dialect, logger *slog.Logger, opts ...Option) *Store {
	return newStore(&sqlExecutor{db: sqlDB}, d, logger, opts...)
}

// Open connects to the engine named by driver ("postgres" or "firebird")
func Open(ctx context.Context, driver, url string, logger *slog.Logger, opts ...Option) (*Store, error) {
	switch driver {
	case "postgres", "postgresql", "pgx":
		return NewPostgresStore(ctx, url, logger, opts...)
	case "firebird", "firebirdsql":
		return NewFirebirdStore(url, logger, opts...)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}
}

func newStore(ex executor, d mapper.Dialect, logger *slog.Logger, opts ...Option) *Store {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	s := &Store{
		exec:      ex,
		builder:   mapper.NewSQLBuilder(d),
		logger:    logger.With("dialect", d.Name),
		timeout:   DefaultQueryTimeout,
		pkColumn:  DefaultPrimaryKey,
		updatedAt: DefaultUpdatedAtColumn,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SelectAll returns every row of table matching q. A zero Query returns all rows
func (s *Store) SelectAll(ctx context.Context, table string, q Query) ([]Row, error) {
	var rows []Row
	err := s.run(ctx, "select", table, func(ctx context.Context) error {
		query, args, err := s.builder.BuildSelect(table, q)
		if err != nil {
			return err
		}
		s.logger.Debug("Executing select", "table", table, "sql", query)

		rows, err = s.exec.query(ctx, query, args)
		return err
	})
	return rows, err
}

// SelectOne returns the first row matching where. Zero matches is not an error: found is false
func (s *Store) SelectOne(ctx context.Context, table string, where ...Filter) (Row, bool, error) {
	rows, err := s.SelectAll(ctx, table, Query{Where: where, Limit: 1})
	if err != nil {
		return nil, false, err
	}
	if len(rows) == 0 {
		return nil, false, nil
	}
	return rows[0], true, nil
}

// Insert writes row and returns the store-assigned identifier
func (s *Store) Insert(ctx context.Context, table string, row Row) (int64, error) {
	var id int64
	err := s.run(ctx, "insert", table, func(ctx context.Context) error {
		query, args, err := s.builder.BuildInsert(table, row, s.pkColumn)
		if err != nil {
			return err
		}
		s.logger.Debug("Executing insert", "table", table, "sql", query)

		id, err = s.exec.insert(ctx, query, args, s.builder.Dialect().Returning)
		return err
	})
	return id, err
}

// Update sets only the columns present in patch on rows matching where, stamping the
// updated-at column as a side effect. It reports whether at least one row changed
func (s *Store) Update(ctx context.Context, table string, patch Row, where ...Filter) (bool, error) {
	var affected int64
	err := s.run(ctx, "update", table, func(ctx context.Context) error {
		query, args, err := s.builder.BuildUpdate(table, patch, s.updatedAt, where)
		if err != nil {
			return err
		}
		s.logger.Debug("Executing update", "table", table, "sql", query)

		affected, err = s.exec.exec(ctx, query, args)
		return err
	})
	return affected > 0, err
}

// Delete removes rows matching where and reports whether any row was removed
func (s *Store) Delete(ctx context.Context, table string, where ...Filter) (bool, error) {
	var affected int64
	err := s.run(ctx, "delete", table, func(ctx context.Context) error {
		query, args, err := s.builder.BuildDelete(table, where)
		if err != nil {
			return err
		}
		s.logger.Debug("Executing delete", "table", table, "sql", query)

		affected, err = s.exec.exec(ctx, query, args)
		return err
	})
	return affected > 0, err
}

// Close gracefully shuts down the underlying connection pool
func (s *Store) Close() error {
	s.logger.Info("Closing database connection pool")
	return s.exec.close()
}

// run applies the statement timeout, records telemetry and wraps failures in StorageError
func (s *Store) run(ctx context.Context, op, table string, fn func(ctx context.Context) error) error {
	start := time.Now()

	opCtx := ctx
	if s.timeout > 0 {
		var cancel context.CancelFunc
		opCtx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	err := fn(opCtx)
	metrics.StorageDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())

	if err != nil {
		metrics.StorageOperations.WithLabelValues(op, "error").Inc()
		s.logger.Warn("Storage operation failed", "op", op, "table", table, "error", err)
		return &StorageError{Op: op, Table: table, Err: err}
	}

	metrics.StorageOperations.WithLabelValues(op, "success").Inc()
	return nil
}
