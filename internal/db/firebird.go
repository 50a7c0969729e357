package db

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/Guizzs26/watch-crm/internal/mapper"
	"github.com/Guizzs26/watch-crm/pkg/encoding"

	_ "github.com/nakagami/firebirdsql"
)

// NewFirebirdStore opens a Firebird 2.5 database (legacy shop installs) behind the Store API
func NewFirebirdStore(connString string, logger *slog.Logger, opts ...Option) (*Store, error) {
	sqlDB, err := sql.Open("firebirdsql", connString)
	if err != nil {
		return nil, fmt.Errorf("failed to open firebird connection: %w", err)
	}

	// Connection pool settings optimized for legacy systems.
	// A single connection also keeps the DAL's synchronous-per-call contract
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)
	sqlDB.SetConnMaxLifetime(30 * time.Minute)
	sqlDB.SetConnMaxIdleTime(10 * time.Minute)

	pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := sqlDB.PingContext(pingCtx); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("firebird ping failed: %w", err)
	}

	if logger != nil {
		logger.Info("Connected to Firebird successfully", "dialect", 3)
	}

	ex := &sqlExecutor{db: sqlDB, decodeText: encoding.ToUTF8}
	return newStore(ex, mapper.Firebird, logger, opts...), nil
}
