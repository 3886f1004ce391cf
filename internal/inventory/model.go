package inventory

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	PoolOpen      = "open"
	PoolCompleted = "completed"
)

// Pool is a bookable listing with a finite slot counter. slots_remaining is
// only mutated under the pool row lock. Status flips to completed exactly
// when slots_remaining hits 0 and reopens when a cancellation restores slots.
type Pool struct {
	ID               int             `db:"id" json:"id"`
	ProductVariantID int             `db:"product_variant_id" json:"product_variant_id"`
	VariantName      string          `db:"variant_name" json:"variant_name"`
	UnitPrice        decimal.Decimal `db:"unit_price" json:"unit_price"`
	TotalSlots       int             `db:"total_slots" json:"total_slots"`
	SlotsRemaining   int             `db:"slots_remaining" json:"slots_remaining"`
	Status           string          `db:"status" json:"status"`
	CreatedAt        time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time       `db:"updated_at" json:"updated_at"`
}

// Batch is one physical restock event. quantity_remaining only moves down
// during booking and only moves back up when a cancellation returns stock to
// the exact batches it was drawn from, never above quantity_added.
type Batch struct {
	ID                int       `db:"id" json:"id"`
	ProductVariantID  int       `db:"product_variant_id" json:"product_variant_id"`
	QuantityAdded     int       `db:"quantity_added" json:"quantity_added"`
	QuantityRemaining int       `db:"quantity_remaining" json:"quantity_remaining"`
	CreatedAt         time.Time `db:"created_at" json:"created_at"`
}

// BatchDeduction records how much one booking drew from one batch. The
// booking orchestrator persists these so a cancellation can put the stock
// back where it came from.
type BatchDeduction struct {
	BatchID  int
	Quantity int
}

// StockBoardEntry is the customer-facing view of what is bookable.
type StockBoardEntry struct {
	PoolID         int             `db:"pool_id" json:"pool_id"`
	VariantName    string          `db:"variant_name" json:"variant_name"`
	UnitPrice      decimal.Decimal `db:"unit_price" json:"unit_price"`
	SlotsRemaining int             `db:"slots_remaining" json:"slots_remaining"`
	TotalSlots     int             `db:"total_slots" json:"total_slots"`
	Status         string          `db:"status" json:"status"`
}

// LowStockEntry surfaces variants whose physical stock is running out.
type LowStockEntry struct {
	ProductVariantID int    `db:"product_variant_id" json:"product_variant_id"`
	VariantName      string `db:"variant_name" json:"variant_name"`
	StockRemaining   int    `db:"stock_remaining" json:"stock_remaining"`
}
