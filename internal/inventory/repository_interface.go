package inventory

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/shopspring/decimal"
)

// Repository exposes the slot-pool and batch primitives. Everything that
// mutates counters expects to run inside a caller-owned transaction with the
// relevant rows locked; the booking orchestrator drives ConsumeFIFO and the
// restore methods through its own tx.
type Repository interface {
	CreatePool(ctx context.Context, q sqlx.ExtContext, variantID int, variantName string, unitPrice decimal.Decimal, totalSlots int) (*Pool, error)
	CreateBatch(ctx context.Context, q sqlx.ExtContext, variantID, quantity int) (*Batch, error)
	GetPool(ctx context.Context, q sqlx.ExtContext, poolID int) (*Pool, error)
	GetPoolForUpdate(ctx context.Context, q sqlx.ExtContext, poolID int) (*Pool, error)

	AvailableStock(ctx context.Context, q sqlx.ExtContext, variantID int) (int, error)
	ListBatchesForUpdate(ctx context.Context, q sqlx.ExtContext, variantID int) ([]Batch, error)
	DeductBatch(ctx context.Context, q sqlx.ExtContext, batchID, quantity int) error
	RestoreBatch(ctx context.Context, q sqlx.ExtContext, batchID, quantity int) error
	ConsumeFIFO(ctx context.Context, q sqlx.ExtContext, variantID, quantity int) ([]BatchDeduction, error)

	DecrementSlots(ctx context.Context, q sqlx.ExtContext, poolID, quantity int) error
	RestoreSlots(ctx context.Context, q sqlx.ExtContext, poolID, quantity int) error

	StockBoard(ctx context.Context, q sqlx.ExtContext) ([]StockBoardEntry, error)
	ListBatches(ctx context.Context, q sqlx.ExtContext, variantID int) ([]Batch, error)
	LowStock(ctx context.Context, q sqlx.ExtContext, threshold int) ([]LowStockEntry, error)
	FullyBooked(ctx context.Context, q sqlx.ExtContext) ([]Pool, error)
}
