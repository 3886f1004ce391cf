package booking

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/shopspring/decimal"
)

type Repository interface {
	InsertAllocation(ctx context.Context, q sqlx.ExtContext, accountID, poolID, slots int, unitPrice, totalCost decimal.Decimal) (*Allocation, error)
	GetAllocation(ctx context.Context, q sqlx.ExtContext, allocationID int) (*Allocation, error)
	GetAllocationForUpdate(ctx context.Context, q sqlx.ExtContext, allocationID int) (*Allocation, error)
	SetAllocationStatus(ctx context.Context, q sqlx.ExtContext, allocationID int, status string) error

	InsertAllocationBatches(ctx context.Context, q sqlx.ExtContext, allocationID int, batches []AllocationBatch) error
	ListAllocationBatches(ctx context.Context, q sqlx.ExtContext, allocationID int) ([]AllocationBatch, error)

	ListForAccount(ctx context.Context, q sqlx.ExtContext, accountID int) ([]Allocation, error)
	ListAll(ctx context.Context, q sqlx.ExtContext, status string, limit, offset int) ([]Allocation, error)
}
