package notify

import "time"

const (
	KindBookingUpdate = "booking_update"
	KindStockAlert    = "stock_alert"
	KindTransaction   = "transaction_update"
	KindCashApproval  = "cash_approval"
)

type Notification struct {
	ID            int       `db:"id" json:"id"`
	UserID        int       `db:"user_id" json:"user_id"`
	Kind          string    `db:"kind" json:"kind"`
	Title         string    `db:"title" json:"title"`
	Message       string    `db:"message" json:"message"`
	ReferenceID   *int      `db:"reference_id" json:"reference_id,omitempty"`
	ReferenceType string    `db:"reference_type" json:"reference_type"`
	IsRead        bool      `db:"is_read" json:"is_read"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
}

// Job is the queued form of a notification. Broadcast jobs fan out to
// every active customer when the worker drains them.
type Job struct {
	UserID        int       `json:"user_id"`
	Kind          string    `json:"kind"`
	Title         string    `json:"title"`
	Message       string    `json:"message"`
	ReferenceID   *int      `json:"reference_id,omitempty"`
	ReferenceType string    `json:"reference_type"`
	Broadcast     bool      `json:"broadcast"`
	Tries         int       `json:"tries"`
	Created       time.Time `json:"created"`
}
