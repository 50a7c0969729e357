package db

import (
	"errors"
	"fmt"
	"strings"

	"github.com/Guizzs26/watch-crm/internal/mapper"
	"github.com/jackc/pgx/v5/pgconn"
)

var (
	ErrInvalidIdentifier = mapper.ErrInvalidIdentifier
	ErrEmptyRow          = mapper.ErrEmptyRow
	ErrMissingPredicate  = mapper.ErrMissingPredicate
)

// StorageError is the single failure kind returned by Store operations
type StorageError struct {
	Op    string
	Table string
	Err   error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage %s on %s: %v", e.Op, e.Table, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// IsConstraintViolation reports whether err comes from a unique, not-null,
// foreign-key or check constraint
func IsConstraintViolation(err error) bool {
	if err == nil {
		return false
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		// Class 23: integrity constraint violation
		return strings.HasPrefix(pgErr.Code, "23")
	}

	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "violation of") ||
		strings.Contains(msg, "constraint failed")
}

// IsUniqueViolation narrows IsConstraintViolation to duplicate keys
func IsUniqueViolation(err error) bool {
	if err == nil {
		return false
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}

	msg := strings.ToLower(err.Error())
	// sqlite: "UNIQUE constraint failed"; firebird: "violation of PRIMARY or UNIQUE KEY constraint"
	return strings.Contains(msg, "unique constraint failed") ||
		strings.Contains(msg, "unique key constraint")
}
