package models

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	TableWatches         = "watches"
	TableInquiries       = "inquiries"
	TableSellSubmissions = "sell_submissions"
	TableNotificationLog = "notification_log"
)

type WatchStatus string

const (
	WatchAvailable WatchStatus = "available"
	WatchReserved  WatchStatus = "reserved"
	WatchSold      WatchStatus = "sold"
)

func (s WatchStatus) Valid() bool {
	return s == WatchAvailable || s == WatchReserved || s == WatchSold
}

// Watch represents a row in the watches table
type Watch struct {
	ID          int64           `db:"id" json:"id"`
	Brand       string          `db:"brand" json:"brand"`
	Model       string          `db:"model" json:"model"`
	Reference   string          `db:"reference" json:"reference,omitempty"`
	Year        int             `db:"year" json:"year,omitempty"`
	Condition   string          `db:"condition" json:"condition,omitempty"`
	Price       decimal.Decimal `db:"price" json:"price"`
	Currency    string          `db:"currency" json:"currency"`
	Status      WatchStatus     `db:"status" json:"status"`
	Description string          `db:"description" json:"description,omitempty"`
	CreatedAt   *time.Time      `db:"created_at" json:"created_at,omitempty"`
	UpdatedAt   *time.Time      `db:"updated_at" json:"updated_at,omitempty"`
}

// WatchSoldEvent is the storefront checkout event consumed from the intake exchange
type WatchSoldEvent struct {
	WatchID int64  `json:"watch_id"`
	OrderID string `json:"order_id,omitempty"`
}
