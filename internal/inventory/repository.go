package inventory

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
)

type repository struct{}

func NewRepository() Repository {
	return &repository{}
}

const poolColumns = `id, product_variant_id, variant_name, unit_price, total_slots, slots_remaining, status, created_at, updated_at`

func (r *repository) CreatePool(ctx context.Context, q sqlx.ExtContext, variantID int, variantName string, unitPrice decimal.Decimal, totalSlots int) (*Pool, error) {
	query := `
		INSERT INTO inventory_pools (product_variant_id, variant_name, unit_price, total_slots, slots_remaining)
		VALUES ($1, $2, $3, $4, $4)
		RETURNING ` + poolColumns

	var pool Pool
	err := sqlx.GetContext(ctx, q, &pool, query, variantID, variantName, unitPrice, totalSlots)
	if err != nil {
		return nil, err
	}

	return &pool, nil
}

func (r *repository) CreateBatch(ctx context.Context, q sqlx.ExtContext, variantID, quantity int) (*Batch, error) {
	query := `
		INSERT INTO stock_batches (product_variant_id, quantity_added, quantity_remaining)
		VALUES ($1, $2, $2)
		RETURNING id, product_variant_id, quantity_added, quantity_remaining, created_at`

	var batch Batch
	err := sqlx.GetContext(ctx, q, &batch, query, variantID, quantity)
	if err != nil {
		return nil, err
	}

	return &batch, nil
}

func (r *repository) getPool(ctx context.Context, q sqlx.ExtContext, poolID int, forUpdate bool) (*Pool, error) {
	query := `SELECT ` + poolColumns + ` FROM inventory_pools WHERE id = $1`
	if forUpdate {
		query += ` FOR UPDATE`
	}

	var pool Pool
	err := sqlx.GetContext(ctx, q, &pool, query, poolID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrPoolNotFound
	}
	if err != nil {
		return nil, err
	}

	return &pool, nil
}

func (r *repository) GetPool(ctx context.Context, q sqlx.ExtContext, poolID int) (*Pool, error) {
	return r.getPool(ctx, q, poolID, false)
}

func (r *repository) GetPoolForUpdate(ctx context.Context, q sqlx.ExtContext, poolID int) (*Pool, error) {
	return r.getPool(ctx, q, poolID, true)
}

func (r *repository) AvailableStock(ctx context.Context, q sqlx.ExtContext, variantID int) (int, error) {
	query := `
		SELECT COALESCE(SUM(quantity_remaining), 0)
		FROM stock_batches
		WHERE product_variant_id = $1`

	var total int
	err := sqlx.GetContext(ctx, q, &total, query, variantID)
	if err != nil {
		return 0, err
	}

	return total, nil
}

// ListBatchesForUpdate locks all live batches for the variant in FIFO order.
// Batch rows are locked before any deduction so two concurrent bookings of
// the same variant serialize here.
func (r *repository) ListBatchesForUpdate(ctx context.Context, q sqlx.ExtContext, variantID int) ([]Batch, error) {
	query := `
		SELECT id, product_variant_id, quantity_added, quantity_remaining, created_at
		FROM stock_batches
		WHERE product_variant_id = $1 AND quantity_remaining > 0
		ORDER BY created_at ASC, id ASC
		FOR UPDATE`

	var batches []Batch
	err := sqlx.SelectContext(ctx, q, &batches, query, variantID)
	if err != nil {
		return nil, err
	}

	return batches, nil
}

func (r *repository) DeductBatch(ctx context.Context, q sqlx.ExtContext, batchID, quantity int) error {
	result, err := q.ExecContext(ctx,
		`UPDATE stock_batches
		 SET quantity_remaining = quantity_remaining - $1
		 WHERE id = $2 AND quantity_remaining >= $1`,
		quantity, batchID,
	)
	if err != nil {
		return err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrBatchNotFound
	}

	return nil
}

// RestoreBatch credits stock back to the batch it was drawn from, capped at
// quantity_added so a batch can never hold more than it ever physically had.
func (r *repository) RestoreBatch(ctx context.Context, q sqlx.ExtContext, batchID, quantity int) error {
	result, err := q.ExecContext(ctx,
		`UPDATE stock_batches
		 SET quantity_remaining = LEAST(quantity_remaining + $1, quantity_added)
		 WHERE id = $2`,
		quantity, batchID,
	)
	if err != nil {
		return err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrBatchNotFound
	}

	return nil
}

// planConsumption walks batches oldest first, deducting min(remaining,
// still needed) from each. Pure allocation; no batch is ever over-drawn.
func planConsumption(batches []Batch, quantity int) []BatchDeduction {
	var plan []BatchDeduction
	needed := quantity
	for _, batch := range batches {
		if needed == 0 {
			break
		}
		take := batch.QuantityRemaining
		if take > needed {
			take = needed
		}
		if take == 0 {
			continue
		}
		plan = append(plan, BatchDeduction{BatchID: batch.ID, Quantity: take})
		needed -= take
	}
	return plan
}

// ConsumeFIFO deducts physical stock oldest batch first. The caller must
// have already verified that available stock covers the quantity inside the
// same transaction; an uncovered request here is a programming error and
// fails the whole transaction.
func (r *repository) ConsumeFIFO(ctx context.Context, q sqlx.ExtContext, variantID, quantity int) ([]BatchDeduction, error) {
	if quantity <= 0 {
		return nil, ErrInvalidQuantity
	}

	batches, err := r.ListBatchesForUpdate(ctx, q, variantID)
	if err != nil {
		return nil, err
	}

	total := 0
	for _, batch := range batches {
		total += batch.QuantityRemaining
	}
	if total < quantity {
		return nil, &InsufficientStockError{Available: total}
	}

	plan := planConsumption(batches, quantity)
	for _, deduction := range plan {
		if err := r.DeductBatch(ctx, q, deduction.BatchID, deduction.Quantity); err != nil {
			return nil, err
		}
	}

	return plan, nil
}

func (r *repository) DecrementSlots(ctx context.Context, q sqlx.ExtContext, poolID, quantity int) error {
	result, err := q.ExecContext(ctx,
		`UPDATE inventory_pools
		 SET slots_remaining = slots_remaining - $1,
		     status = CASE WHEN slots_remaining - $1 = 0 THEN 'completed' ELSE status END,
		     updated_at = NOW()
		 WHERE id = $2 AND slots_remaining >= $1`,
		quantity, poolID,
	)
	if err != nil {
		return err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrPoolNotFound
	}

	return nil
}

// RestoreSlots reopens the pool if the cancellation brought it back from
// completed.
func (r *repository) RestoreSlots(ctx context.Context, q sqlx.ExtContext, poolID, quantity int) error {
	result, err := q.ExecContext(ctx,
		`UPDATE inventory_pools
		 SET slots_remaining = LEAST(slots_remaining + $1, total_slots),
		     status = 'open',
		     updated_at = NOW()
		 WHERE id = $2`,
		quantity, poolID,
	)
	if err != nil {
		return err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrPoolNotFound
	}

	return nil
}

func (r *repository) StockBoard(ctx context.Context, q sqlx.ExtContext) ([]StockBoardEntry, error) {
	query := `
		SELECT id AS pool_id, variant_name, unit_price, slots_remaining, total_slots, status
		FROM inventory_pools
		ORDER BY created_at DESC`

	var entries []StockBoardEntry
	err := sqlx.SelectContext(ctx, q, &entries, query)
	if err != nil {
		return nil, err
	}

	return entries, nil
}

func (r *repository) ListBatches(ctx context.Context, q sqlx.ExtContext, variantID int) ([]Batch, error) {
	query := `
		SELECT id, product_variant_id, quantity_added, quantity_remaining, created_at
		FROM stock_batches
		WHERE product_variant_id = $1
		ORDER BY created_at ASC, id ASC`

	var batches []Batch
	err := sqlx.SelectContext(ctx, q, &batches, query, variantID)
	if err != nil {
		return nil, err
	}

	return batches, nil
}

func (r *repository) LowStock(ctx context.Context, q sqlx.ExtContext, threshold int) ([]LowStockEntry, error) {
	query := `
		SELECT b.product_variant_id,
		       COALESCE(MAX(p.variant_name), '') AS variant_name,
		       COALESCE(SUM(b.quantity_remaining), 0) AS stock_remaining
		FROM stock_batches b
		LEFT JOIN inventory_pools p ON p.product_variant_id = b.product_variant_id
		GROUP BY b.product_variant_id
		HAVING COALESCE(SUM(b.quantity_remaining), 0) <= $1
		ORDER BY stock_remaining ASC`

	var entries []LowStockEntry
	err := sqlx.SelectContext(ctx, q, &entries, query, threshold)
	if err != nil {
		return nil, err
	}

	return entries, nil
}

func (r *repository) FullyBooked(ctx context.Context, q sqlx.ExtContext) ([]Pool, error) {
	query := `SELECT ` + poolColumns + ` FROM inventory_pools WHERE status = 'completed' ORDER BY updated_at DESC`

	var pools []Pool
	err := sqlx.SelectContext(ctx, q, &pools, query)
	if err != nil {
		return nil, err
	}

	return pools, nil
}
