package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// OrderStatus defines the workflow states of an order.
type OrderStatus string

const (
	StatusPendingAssignment OrderStatus = "Pending Assignment"
	StatusInProgress        OrderStatus = "In Progress"
	StatusSubmitted         OrderStatus = "Submitted"
	StatusDelivered         OrderStatus = "Delivered to Client"
)

func IsValidOrderStatus(s OrderStatus) bool {
	switch s {
	case StatusPendingAssignment, StatusInProgress, StatusSubmitted, StatusDelivered:
		return true
	}
	return false
}

type PaymentStatus string

const (
	PaymentUnpaid  PaymentStatus = "unpaid"
	PaymentPending PaymentStatus = "pending"
	PaymentPaid    PaymentStatus = "paid"
)

type Order struct {
	ID          int64  `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	ClientID    int64  `json:"client_id"`
	WriterID    *int64 `json:"writer_id,omitempty"`

	Status OrderStatus `json:"status"`

	// submission_file is set when the writer submits work; preview_file is the
	// normalized PDF artifact generated from it (best effort, may stay empty).
	SubmissionFile *string `json:"submission_file,omitempty"`
	PreviewFile    *string `json:"preview_file,omitempty"`
	ClientGuide    *string `json:"client_guide,omitempty"`

	PaymentStatus PaymentStatus   `json:"payment_status"`
	PaymentRef    *string         `json:"payment_ref,omitempty"`
	PaymentPhone  *string         `json:"-"`
	Amount        decimal.Decimal `json:"amount"`

	Deadline  *time.Time `json:"deadline,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// OrderFilter defines the available parameters for listing orders.
type OrderFilter struct {
	ClientID          *int64
	WriterID          *int64
	Status            *OrderStatus
	IncludeUnassigned bool // also return unassigned pending orders (writer browsing)
}
