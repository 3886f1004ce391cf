package inventory

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupRepoMock(t *testing.T) (Repository, *sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	sqlxDB := sqlx.NewDb(db, "sqlmock")
	return NewRepository(), sqlxDB, mock, func() { sqlxDB.Close() }
}

func batchRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "product_variant_id", "quantity_added", "quantity_remaining", "created_at"})
}

func TestPlanConsumptionDrainsOldestFirst(t *testing.T) {
	now := time.Now()
	batches := []Batch{
		{ID: 1, QuantityRemaining: 10, CreatedAt: now.Add(-2 * time.Hour)},
		{ID: 2, QuantityRemaining: 10, CreatedAt: now.Add(-time.Hour)},
	}

	plan := planConsumption(batches, 15)
	require.Len(t, plan, 2)
	assert.Equal(t, BatchDeduction{BatchID: 1, Quantity: 10}, plan[0])
	assert.Equal(t, BatchDeduction{BatchID: 2, Quantity: 5}, plan[1])
}

func TestPlanConsumptionSkipsEmptyBatches(t *testing.T) {
	batches := []Batch{
		{ID: 1, QuantityRemaining: 0},
		{ID: 2, QuantityRemaining: 3},
		{ID: 3, QuantityRemaining: 5},
	}

	plan := planConsumption(batches, 4)
	require.Len(t, plan, 2)
	assert.Equal(t, BatchDeduction{BatchID: 2, Quantity: 3}, plan[0])
	assert.Equal(t, BatchDeduction{BatchID: 3, Quantity: 1}, plan[1])
}

func TestPlanConsumptionExactFit(t *testing.T) {
	batches := []Batch{{ID: 1, QuantityRemaining: 7}}

	plan := planConsumption(batches, 7)
	require.Len(t, plan, 1)
	assert.Equal(t, BatchDeduction{BatchID: 1, Quantity: 7}, plan[0])
}

func TestConsumeFIFO(t *testing.T) {
	repo, db, mock, done := setupRepoMock(t)
	defer done()

	now := time.Now()
	mock.ExpectQuery(regexp.QuoteMeta(`ORDER BY created_at ASC, id ASC`)).
		WithArgs(9).
		WillReturnRows(batchRows().
			AddRow(1, 9, 10, 10, now.Add(-time.Hour)).
			AddRow(2, 9, 10, 10, now))
	mock.ExpectExec(regexp.QuoteMeta(`SET quantity_remaining = quantity_remaining - $1`)).
		WithArgs(10, 1).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta(`SET quantity_remaining = quantity_remaining - $1`)).
		WithArgs(5, 2).
		WillReturnResult(sqlmock.NewResult(0, 1))

	plan, err := repo.ConsumeFIFO(context.Background(), db, 9, 15)
	require.NoError(t, err)
	require.Len(t, plan, 2)
	assert.Equal(t, 10, plan[0].Quantity)
	assert.Equal(t, 5, plan[1].Quantity)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestConsumeFIFOInsufficientStock(t *testing.T) {
	repo, db, mock, done := setupRepoMock(t)
	defer done()

	mock.ExpectQuery(regexp.QuoteMeta(`ORDER BY created_at ASC, id ASC`)).
		WithArgs(9).
		WillReturnRows(batchRows().AddRow(1, 9, 10, 4, time.Now()))

	_, err := repo.ConsumeFIFO(context.Background(), db, 9, 5)
	require.Error(t, err)
	assert.True(t, IsInsufficientStock(err))
	assert.Contains(t, err.Error(), "4")
}

func TestConsumeFIFORejectsNonPositiveQuantity(t *testing.T) {
	repo, db, _, done := setupRepoMock(t)
	defer done()

	_, err := repo.ConsumeFIFO(context.Background(), db, 9, 0)
	assert.ErrorIs(t, err, ErrInvalidQuantity)
}

func TestDeductBatchGuardsRemaining(t *testing.T) {
	repo, db, mock, done := setupRepoMock(t)
	defer done()

	mock.ExpectExec(regexp.QuoteMeta(`WHERE id = $2 AND quantity_remaining >= $1`)).
		WithArgs(5, 1).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.DeductBatch(context.Background(), db, 1, 5)
	assert.ErrorIs(t, err, ErrBatchNotFound)
}

func TestRestoreBatchCapsAtQuantityAdded(t *testing.T) {
	repo, db, mock, done := setupRepoMock(t)
	defer done()

	mock.ExpectExec(regexp.QuoteMeta(`SET quantity_remaining = LEAST(quantity_remaining + $1, quantity_added)`)).
		WithArgs(3, 1).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.RestoreBatch(context.Background(), db, 1, 3)
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDecrementSlotsCompletesPool(t *testing.T) {
	repo, db, mock, done := setupRepoMock(t)
	defer done()

	mock.ExpectExec(regexp.QuoteMeta(`status = CASE WHEN slots_remaining - $1 = 0 THEN 'completed' ELSE status END`)).
		WithArgs(2, 7).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.DecrementSlots(context.Background(), db, 7, 2)
	assert.NoError(t, err)
}

func TestDecrementSlotsInsufficient(t *testing.T) {
	repo, db, mock, done := setupRepoMock(t)
	defer done()

	mock.ExpectExec(regexp.QuoteMeta(`WHERE id = $2 AND slots_remaining >= $1`)).
		WithArgs(50, 7).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.DecrementSlots(context.Background(), db, 7, 50)
	assert.ErrorIs(t, err, ErrPoolNotFound)
}

func TestRestoreSlotsReopensPool(t *testing.T) {
	repo, db, mock, done := setupRepoMock(t)
	defer done()

	mock.ExpectExec(regexp.QuoteMeta(`SET slots_remaining = LEAST(slots_remaining + $1, total_slots)`)).
		WithArgs(2, 7).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.RestoreSlots(context.Background(), db, 7, 2)
	assert.NoError(t, err)
}

func TestGetPoolNotFound(t *testing.T) {
	repo, db, mock, done := setupRepoMock(t)
	defer done()

	mock.ExpectQuery(regexp.QuoteMeta(`FROM inventory_pools WHERE id = $1`)).
		WithArgs(99).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := repo.GetPool(context.Background(), db, 99)
	assert.ErrorIs(t, err, ErrPoolNotFound)
}

func TestCreatePoolSeedsSlots(t *testing.T) {
	repo, db, mock, done := setupRepoMock(t)
	defer done()

	now := time.Now()
	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO inventory_pools (product_variant_id, variant_name, unit_price, total_slots, slots_remaining)`)).
		WithArgs(9, "Bag of Rice 50kg", decimal.NewFromInt(45000), 20).
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "product_variant_id", "variant_name", "unit_price", "total_slots",
			"slots_remaining", "status", "created_at", "updated_at",
		}).AddRow(7, 9, "Bag of Rice 50kg", "45000.00", 20, 20, PoolOpen, now, now))

	pool, err := repo.CreatePool(context.Background(), db, 9, "Bag of Rice 50kg", decimal.NewFromInt(45000), 20)
	require.NoError(t, err)
	assert.Equal(t, 20, pool.SlotsRemaining)
	assert.Equal(t, PoolOpen, pool.Status)
}

func TestLowStockFiltersByThreshold(t *testing.T) {
	repo, db, mock, done := setupRepoMock(t)
	defer done()

	mock.ExpectQuery(regexp.QuoteMeta(`HAVING COALESCE(SUM(b.quantity_remaining), 0) <= $1`)).
		WithArgs(5).
		WillReturnRows(sqlmock.NewRows([]string{"product_variant_id", "variant_name", "stock_remaining"}).
			AddRow(9, "Bag of Rice 50kg", 3))

	entries, err := repo.LowStock(context.Background(), db, 5)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, 3, entries[0].StockRemaining)
}
