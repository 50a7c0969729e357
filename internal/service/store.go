package service

import (
	"context"
	"errors"

	"github.com/Guizzs26/watch-crm/internal/db"
	"github.com/shopspring/decimal"
)

var (
	ErrValidation             = errors.New("validation failed")
	ErrWatchNotFound          = errors.New("watch not found")
	ErrWatchSold              = errors.New("watch is already sold")
	ErrDuplicateReference     = errors.New("a watch with this reference already exists")
	ErrInquiryNotFound        = errors.New("inquiry not found")
	ErrSellSubmissionNotFound = errors.New("sell submission not found")
)

// DataStore defines the generic data access contract shared by every service.
// *db.Store satisfies it for postgres, firebird and sqlite
type DataStore interface {
	SelectAll(ctx context.Context, table string, q db.Query) ([]db.Row, error)
	SelectOne(ctx context.Context, table string, where ...db.Filter) (db.Row, bool, error)
	Insert(ctx context.Context, table string, row db.Row) (int64, error)
	Update(ctx context.Context, table string, patch db.Row, where ...db.Filter) (bool, error)
	Delete(ctx context.Context, table string, where ...db.Filter) (bool, error)
}

var _ DataStore = (*db.Store)(nil)

// rowDecimal reads a NUMERIC column whatever scalar the driver produced for it
func rowDecimal(r db.Row, col string) decimal.Decimal {
	switch v := r[col].(type) {
	case string:
		d, _ := decimal.NewFromString(v)
		return d
	case float64:
		return decimal.NewFromFloat(v)
	case int64:
		return decimal.NewFromInt(v)
	}
	return decimal.Zero
}

// optional maps an empty string to NULL
func optional(s string) any {
	if s == "" {
		return nil
	}
	return s
}
