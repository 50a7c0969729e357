package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type InquiryStatus string

const (
	InquiryNew       InquiryStatus = "new"
	InquiryContacted InquiryStatus = "contacted"
	InquiryClosed    InquiryStatus = "closed"
)

func (s InquiryStatus) Valid() bool {
	return s == InquiryNew || s == InquiryContacted || s == InquiryClosed
}

// Inquiry is a customer question about a listed watch (or a general one when WatchID is 0)
type Inquiry struct {
	ID        int64         `db:"id" json:"id"`
	WatchID   int64         `db:"watch_id" json:"watch_id,omitempty"`
	Name      string        `db:"name" json:"name"`
	Email     string        `db:"email" json:"email,omitempty"`
	Phone     string        `db:"phone" json:"phone,omitempty"`
	Message   string        `db:"message" json:"message"`
	Status    InquiryStatus `db:"status" json:"status"`
	CreatedAt *time.Time    `db:"created_at" json:"created_at,omitempty"`
}

type SellStatus string

const (
	SellNew       SellStatus = "new"
	SellReviewing SellStatus = "reviewing"
	SellOffered   SellStatus = "offered"
	SellRejected  SellStatus = "rejected"
)

func (s SellStatus) Valid() bool {
	switch s {
	case SellNew, SellReviewing, SellOffered, SellRejected:
		return true
	}
	return false
}

// SellSubmission is a customer offering a watch to the shop
type SellSubmission struct {
	ID          int64           `db:"id" json:"id"`
	Name        string          `db:"name" json:"name"`
	Email       string          `db:"email" json:"email,omitempty"`
	Phone       string          `db:"phone" json:"phone,omitempty"`
	Brand       string          `db:"brand" json:"brand"`
	Model       string          `db:"model" json:"model,omitempty"`
	Year        int             `db:"year" json:"year,omitempty"`
	AskingPrice decimal.Decimal `db:"asking_price" json:"asking_price"`
	Notes       string          `db:"notes" json:"notes,omitempty"`
	Status      SellStatus      `db:"status" json:"status"`
	CreatedAt   *time.Time      `db:"created_at" json:"created_at,omitempty"`
}
