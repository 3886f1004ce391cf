package booking

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	StatusPending   = "Pending"
	StatusCompleted = "Completed"
	StatusCancelled = "Cancelled"
)

// Allocation is one booking attempt against a pool. It is created atomically
// with its Booking_Hold ledger transaction and batch deductions; after that
// the only mutation path is the owner flipping its status.
type Allocation struct {
	ID          int             `db:"id" json:"id"`
	AccountID   int             `db:"account_id" json:"account_id"`
	UserID      int             `db:"user_id" json:"user_id"`
	PoolID      int             `db:"pool_id" json:"pool_id"`
	VariantName string          `db:"variant_name" json:"variant_name"`
	SlotsBooked int             `db:"slots_booked" json:"slots_booked"`
	UnitPrice   decimal.Decimal `db:"unit_price" json:"unit_price"`
	TotalCost   decimal.Decimal `db:"total_cost" json:"total_cost"`
	Status      string          `db:"status" json:"status"`
	CreatedAt   time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time       `db:"updated_at" json:"updated_at"`
}

// AllocationBatch links an allocation to the stock batches it drew from, so
// cancellation can return stock to exactly those batches.
type AllocationBatch struct {
	ID           int `db:"id" json:"id"`
	AllocationID int `db:"allocation_id" json:"allocation_id"`
	BatchID      int `db:"batch_id" json:"batch_id"`
	Quantity     int `db:"quantity" json:"quantity"`
}
