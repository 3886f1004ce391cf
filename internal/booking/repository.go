package booking

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
)

type repository struct{}

func NewRepository() Repository {
	return &repository{}
}

const allocationColumns = `ba.id, ba.account_id, a.user_id, ba.pool_id, p.variant_name,
	ba.slots_booked, ba.unit_price, ba.total_cost, ba.status, ba.created_at, ba.updated_at`

const allocationFrom = `
	FROM booking_allocations ba
	JOIN accounts a ON ba.account_id = a.id
	JOIN inventory_pools p ON ba.pool_id = p.id`

func (r *repository) InsertAllocation(ctx context.Context, q sqlx.ExtContext, accountID, poolID, slots int, unitPrice, totalCost decimal.Decimal) (*Allocation, error) {
	query := `
		INSERT INTO booking_allocations (account_id, pool_id, slots_booked, unit_price, total_cost)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, account_id, pool_id, slots_booked, unit_price, total_cost, status, created_at, updated_at`

	var allocation Allocation
	err := sqlx.GetContext(ctx, q, &allocation, query, accountID, poolID, slots, unitPrice, totalCost)
	if err != nil {
		return nil, err
	}

	return &allocation, nil
}

func (r *repository) getAllocation(ctx context.Context, q sqlx.ExtContext, allocationID int, forUpdate bool) (*Allocation, error) {
	query := `SELECT ` + allocationColumns + allocationFrom + ` WHERE ba.id = $1`
	if forUpdate {
		query += ` FOR UPDATE OF ba`
	}

	var allocation Allocation
	err := sqlx.GetContext(ctx, q, &allocation, query, allocationID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrAllocationNotFound
	}
	if err != nil {
		return nil, err
	}

	return &allocation, nil
}

func (r *repository) GetAllocation(ctx context.Context, q sqlx.ExtContext, allocationID int) (*Allocation, error) {
	return r.getAllocation(ctx, q, allocationID, false)
}

func (r *repository) GetAllocationForUpdate(ctx context.Context, q sqlx.ExtContext, allocationID int) (*Allocation, error) {
	return r.getAllocation(ctx, q, allocationID, true)
}

func (r *repository) SetAllocationStatus(ctx context.Context, q sqlx.ExtContext, allocationID int, status string) error {
	_, err := q.ExecContext(ctx,
		`UPDATE booking_allocations SET status = $1, updated_at = NOW() WHERE id = $2`,
		status, allocationID,
	)
	return err
}

func (r *repository) InsertAllocationBatches(ctx context.Context, q sqlx.ExtContext, allocationID int, batches []AllocationBatch) error {
	if len(batches) == 0 {
		return nil
	}

	values := make([]string, 0, len(batches))
	args := make([]interface{}, 0, len(batches)*3)
	for i, b := range batches {
		values = append(values, fmt.Sprintf("($%d, $%d, $%d)", i*3+1, i*3+2, i*3+3))
		args = append(args, allocationID, b.BatchID, b.Quantity)
	}

	query := `INSERT INTO allocation_batches (allocation_id, batch_id, quantity) VALUES ` + strings.Join(values, ", ")
	_, err := q.ExecContext(ctx, query, args...)
	return err
}

func (r *repository) ListAllocationBatches(ctx context.Context, q sqlx.ExtContext, allocationID int) ([]AllocationBatch, error) {
	query := `
		SELECT id, allocation_id, batch_id, quantity
		FROM allocation_batches
		WHERE allocation_id = $1
		ORDER BY id ASC`

	var batches []AllocationBatch
	err := sqlx.SelectContext(ctx, q, &batches, query, allocationID)
	if err != nil {
		return nil, err
	}

	return batches, nil
}

func (r *repository) ListForAccount(ctx context.Context, q sqlx.ExtContext, accountID int) ([]Allocation, error) {
	query := `SELECT ` + allocationColumns + allocationFrom + `
		WHERE ba.account_id = $1
		ORDER BY ba.created_at DESC`

	var allocations []Allocation
	err := sqlx.SelectContext(ctx, q, &allocations, query, accountID)
	if err != nil {
		return nil, err
	}

	return allocations, nil
}

func (r *repository) ListAll(ctx context.Context, q sqlx.ExtContext, status string, limit, offset int) ([]Allocation, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `SELECT ` + allocationColumns + allocationFrom
	args := []interface{}{}
	if status != "" {
		query += ` WHERE ba.status = $1`
		args = append(args, status)
	}
	query += fmt.Sprintf(` ORDER BY ba.created_at DESC LIMIT $%d OFFSET $%d`, len(args)+1, len(args)+2)
	args = append(args, limit, offset)

	var allocations []Allocation
	err := sqlx.SelectContext(ctx, q, &allocations, query, args...)
	if err != nil {
		return nil, err
	}

	return allocations, nil
}
