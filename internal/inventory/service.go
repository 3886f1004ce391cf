package inventory

import (
	"context"
	"fmt"

	"stocksave/internal/notify"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
)

type AddStockResult struct {
	Pool  *Pool  `json:"pool"`
	Batch *Batch `json:"batch"`
}

type Service interface {
	AddStock(ctx context.Context, variantID int, variantName string, unitPrice decimal.Decimal, totalSlots int) (*AddStockResult, error)
	StockBoard(ctx context.Context) ([]StockBoardEntry, error)
	Batches(ctx context.Context, variantID int) ([]Batch, error)
	LowStock(ctx context.Context, threshold int) ([]LowStockEntry, error)
	FullyBooked(ctx context.Context) ([]Pool, error)
}

type service struct {
	db   *sqlx.DB
	repo Repository
	sink notify.Sink
}

func NewService(db *sqlx.DB, repo Repository, sink notify.Sink) Service {
	return &service{db: db, repo: repo, sink: sink}
}

// AddStock creates the pool and its paired batch in one transaction. Every
// restock is an independent batch; bookings drain them oldest first.
func (s *service) AddStock(ctx context.Context, variantID int, variantName string, unitPrice decimal.Decimal, totalSlots int) (*AddStockResult, error) {
	if totalSlots <= 0 {
		return nil, ErrInvalidQuantity
	}
	if unitPrice.LessThanOrEqual(decimal.Zero) {
		return nil, ErrInvalidQuantity
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	pool, err := s.repo.CreatePool(ctx, tx, variantID, variantName, unitPrice, totalSlots)
	if err != nil {
		return nil, err
	}

	batch, err := s.repo.CreateBatch(ctx, tx, variantID, totalSlots)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	s.sink.EnqueueBroadcast(ctx, notify.KindStockAlert,
		"New Stock Available",
		fmt.Sprintf("%s is now available: %d slots at ₦%s each.", variantName, totalSlots, unitPrice.StringFixed(2)),
		&pool.ID, "pool")

	return &AddStockResult{Pool: pool, Batch: batch}, nil
}

func (s *service) StockBoard(ctx context.Context) ([]StockBoardEntry, error) {
	return s.repo.StockBoard(ctx, s.db)
}

func (s *service) Batches(ctx context.Context, variantID int) ([]Batch, error) {
	return s.repo.ListBatches(ctx, s.db, variantID)
}

func (s *service) LowStock(ctx context.Context, threshold int) ([]LowStockEntry, error) {
	if threshold <= 0 {
		threshold = 5
	}
	return s.repo.LowStock(ctx, s.db, threshold)
}

func (s *service) FullyBooked(ctx context.Context) ([]Pool, error) {
	return s.repo.FullyBooked(ctx, s.db)
}
