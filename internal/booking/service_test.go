package booking

import (
	"context"
	"testing"
	"time"

	"stocksave/internal/inventory"
	"stocksave/internal/ledger"
	"stocksave/internal/logger"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	logger.Init()
	m.Run()
}

type MockBookingRepo struct{ mock.Mock }

func (m *MockBookingRepo) InsertAllocation(ctx context.Context, q sqlx.ExtContext, accountID, poolID, slots int, unitPrice, totalCost decimal.Decimal) (*Allocation, error) {
	args := m.Called(ctx, q, accountID, poolID, slots, unitPrice, totalCost)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Allocation), args.Error(1)
}

func (m *MockBookingRepo) GetAllocation(ctx context.Context, q sqlx.ExtContext, allocationID int) (*Allocation, error) {
	args := m.Called(ctx, q, allocationID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Allocation), args.Error(1)
}

func (m *MockBookingRepo) GetAllocationForUpdate(ctx context.Context, q sqlx.ExtContext, allocationID int) (*Allocation, error) {
	args := m.Called(ctx, q, allocationID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Allocation), args.Error(1)
}

func (m *MockBookingRepo) SetAllocationStatus(ctx context.Context, q sqlx.ExtContext, allocationID int, status string) error {
	return m.Called(ctx, q, allocationID, status).Error(0)
}

func (m *MockBookingRepo) InsertAllocationBatches(ctx context.Context, q sqlx.ExtContext, allocationID int, batches []AllocationBatch) error {
	return m.Called(ctx, q, allocationID, batches).Error(0)
}

func (m *MockBookingRepo) ListAllocationBatches(ctx context.Context, q sqlx.ExtContext, allocationID int) ([]AllocationBatch, error) {
	args := m.Called(ctx, q, allocationID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]AllocationBatch), args.Error(1)
}

func (m *MockBookingRepo) ListForAccount(ctx context.Context, q sqlx.ExtContext, accountID int) ([]Allocation, error) {
	args := m.Called(ctx, q, accountID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]Allocation), args.Error(1)
}

func (m *MockBookingRepo) ListAll(ctx context.Context, q sqlx.ExtContext, status string, limit, offset int) ([]Allocation, error) {
	args := m.Called(ctx, q, status, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]Allocation), args.Error(1)
}

type MockLedgerRepo struct{ mock.Mock }

func (m *MockLedgerRepo) CreateAccount(ctx context.Context, q sqlx.ExtContext, userID int) (*ledger.Account, error) {
	args := m.Called(ctx, q, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ledger.Account), args.Error(1)
}

func (m *MockLedgerRepo) GetAccountByUserID(ctx context.Context, q sqlx.ExtContext, userID int) (*ledger.Account, error) {
	args := m.Called(ctx, q, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ledger.Account), args.Error(1)
}

func (m *MockLedgerRepo) GetAccountForUpdate(ctx context.Context, q sqlx.ExtContext, accountID int) (*ledger.Account, error) {
	args := m.Called(ctx, q, accountID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ledger.Account), args.Error(1)
}

func (m *MockLedgerRepo) CreditBalance(ctx context.Context, q sqlx.ExtContext, accountID int, amount decimal.Decimal) (decimal.Decimal, error) {
	args := m.Called(ctx, q, accountID, amount)
	return args.Get(0).(decimal.Decimal), args.Error(1)
}

func (m *MockLedgerRepo) DebitBalance(ctx context.Context, q sqlx.ExtContext, accountID int, amount decimal.Decimal) (decimal.Decimal, error) {
	args := m.Called(ctx, q, accountID, amount)
	return args.Get(0).(decimal.Decimal), args.Error(1)
}

func (m *MockLedgerRepo) InsertTransaction(ctx context.Context, q sqlx.ExtContext, txn *ledger.Transaction) (*ledger.Transaction, error) {
	args := m.Called(ctx, q, txn)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ledger.Transaction), args.Error(1)
}

func (m *MockLedgerRepo) GetTransactionByReference(ctx context.Context, q sqlx.ExtContext, reference string) (*ledger.Transaction, error) {
	args := m.Called(ctx, q, reference)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ledger.Transaction), args.Error(1)
}

func (m *MockLedgerRepo) GetTransactionByReferenceForUpdate(ctx context.Context, q sqlx.ExtContext, reference string) (*ledger.Transaction, error) {
	args := m.Called(ctx, q, reference)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ledger.Transaction), args.Error(1)
}

func (m *MockLedgerRepo) GetTransactionForUpdate(ctx context.Context, q sqlx.ExtContext, id int) (*ledger.Transaction, error) {
	args := m.Called(ctx, q, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ledger.Transaction), args.Error(1)
}

func (m *MockLedgerRepo) SetTransactionStatus(ctx context.Context, q sqlx.ExtContext, id int, status string) error {
	return m.Called(ctx, q, id, status).Error(0)
}

func (m *MockLedgerRepo) SetGatewayRef(ctx context.Context, q sqlx.ExtContext, id int, gatewayRef string) error {
	return m.Called(ctx, q, id, gatewayRef).Error(0)
}

func (m *MockLedgerRepo) SetApprovalCode(ctx context.Context, q sqlx.ExtContext, id int, code string, ttl time.Duration) error {
	return m.Called(ctx, q, id, code, ttl).Error(0)
}

func (m *MockLedgerRepo) CompleteWithApproval(ctx context.Context, q sqlx.ExtContext, id int) error {
	return m.Called(ctx, q, id).Error(0)
}

func (m *MockLedgerRepo) ListTransactions(ctx context.Context, q sqlx.ExtContext, accountID, limit, offset int) ([]ledger.Transaction, error) {
	args := m.Called(ctx, q, accountID, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]ledger.Transaction), args.Error(1)
}

func (m *MockLedgerRepo) ListPendingTransactions(ctx context.Context, q sqlx.ExtContext) ([]ledger.Transaction, error) {
	args := m.Called(ctx, q)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]ledger.Transaction), args.Error(1)
}

func (m *MockLedgerRepo) ReconciliationSummary(ctx context.Context, q sqlx.ExtContext) (*ledger.Reconciliation, error) {
	args := m.Called(ctx, q)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ledger.Reconciliation), args.Error(1)
}

type MockStockRepo struct{ mock.Mock }

func (m *MockStockRepo) CreatePool(ctx context.Context, q sqlx.ExtContext, variantID int, variantName string, unitPrice decimal.Decimal, totalSlots int) (*inventory.Pool, error) {
	args := m.Called(ctx, q, variantID, variantName, unitPrice, totalSlots)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*inventory.Pool), args.Error(1)
}

func (m *MockStockRepo) CreateBatch(ctx context.Context, q sqlx.ExtContext, variantID, quantity int) (*inventory.Batch, error) {
	args := m.Called(ctx, q, variantID, quantity)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*inventory.Batch), args.Error(1)
}

func (m *MockStockRepo) GetPool(ctx context.Context, q sqlx.ExtContext, poolID int) (*inventory.Pool, error) {
	args := m.Called(ctx, q, poolID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*inventory.Pool), args.Error(1)
}

func (m *MockStockRepo) GetPoolForUpdate(ctx context.Context, q sqlx.ExtContext, poolID int) (*inventory.Pool, error) {
	args := m.Called(ctx, q, poolID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*inventory.Pool), args.Error(1)
}

func (m *MockStockRepo) AvailableStock(ctx context.Context, q sqlx.ExtContext, variantID int) (int, error) {
	args := m.Called(ctx, q, variantID)
	return args.Int(0), args.Error(1)
}

func (m *MockStockRepo) ListBatchesForUpdate(ctx context.Context, q sqlx.ExtContext, variantID int) ([]inventory.Batch, error) {
	args := m.Called(ctx, q, variantID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]inventory.Batch), args.Error(1)
}

func (m *MockStockRepo) DeductBatch(ctx context.Context, q sqlx.ExtContext, batchID, quantity int) error {
	return m.Called(ctx, q, batchID, quantity).Error(0)
}

func (m *MockStockRepo) RestoreBatch(ctx context.Context, q sqlx.ExtContext, batchID, quantity int) error {
	return m.Called(ctx, q, batchID, quantity).Error(0)
}

func (m *MockStockRepo) ConsumeFIFO(ctx context.Context, q sqlx.ExtContext, variantID, quantity int) ([]inventory.BatchDeduction, error) {
	args := m.Called(ctx, q, variantID, quantity)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]inventory.BatchDeduction), args.Error(1)
}

func (m *MockStockRepo) DecrementSlots(ctx context.Context, q sqlx.ExtContext, poolID, quantity int) error {
	return m.Called(ctx, q, poolID, quantity).Error(0)
}

func (m *MockStockRepo) RestoreSlots(ctx context.Context, q sqlx.ExtContext, poolID, quantity int) error {
	return m.Called(ctx, q, poolID, quantity).Error(0)
}

func (m *MockStockRepo) StockBoard(ctx context.Context, q sqlx.ExtContext) ([]inventory.StockBoardEntry, error) {
	args := m.Called(ctx, q)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]inventory.StockBoardEntry), args.Error(1)
}

func (m *MockStockRepo) ListBatches(ctx context.Context, q sqlx.ExtContext, variantID int) ([]inventory.Batch, error) {
	args := m.Called(ctx, q, variantID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]inventory.Batch), args.Error(1)
}

func (m *MockStockRepo) LowStock(ctx context.Context, q sqlx.ExtContext, threshold int) ([]inventory.LowStockEntry, error) {
	args := m.Called(ctx, q, threshold)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]inventory.LowStockEntry), args.Error(1)
}

func (m *MockStockRepo) FullyBooked(ctx context.Context, q sqlx.ExtContext) ([]inventory.Pool, error) {
	args := m.Called(ctx, q)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]inventory.Pool), args.Error(1)
}

type MockSink struct{ mock.Mock }

func (m *MockSink) Enqueue(ctx context.Context, userID int, kind, title, message string, referenceID *int, referenceType string) {
	m.Called(ctx, userID, kind, title, message, referenceID, referenceType)
}

func (m *MockSink) EnqueueBroadcast(ctx context.Context, kind, title, message string, referenceID *int, referenceType string) {
	m.Called(ctx, kind, title, message, referenceID, referenceType)
}

func setupService(t *testing.T) (Service, *MockBookingRepo, *MockLedgerRepo, *MockStockRepo, *MockSink, sqlmock.Sqlmock, func()) {
	db, dbMock, err := sqlmock.New()
	require.NoError(t, err)
	sqlxDB := sqlx.NewDb(db, "sqlmock")

	repo := new(MockBookingRepo)
	ledgers := new(MockLedgerRepo)
	stock := new(MockStockRepo)
	sink := new(MockSink)
	sink.On("Enqueue", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).Maybe()

	svc := NewService(sqlxDB, repo, ledgers, stock, sink)
	return svc, repo, ledgers, stock, sink, dbMock, func() { sqlxDB.Close() }
}

func openPool() *inventory.Pool {
	return &inventory.Pool{
		ID:               7,
		ProductVariantID: 9,
		VariantName:      "Bag of Rice 50kg",
		UnitPrice:        decimal.NewFromInt(45000),
		TotalSlots:       20,
		SlotsRemaining:   10,
		Status:           inventory.PoolOpen,
	}
}

func activeAccount(balance int64) *ledger.Account {
	return &ledger.Account{ID: 3, UserID: 1, Balance: decimal.NewFromInt(balance), Status: ledger.AccountActive}
}

func TestBookSlotSuccess(t *testing.T) {
	svc, repo, ledgers, stock, _, dbMock, done := setupService(t)
	defer done()

	pool := openPool()
	account := activeAccount(100000)
	totalCost := decimal.NewFromInt(90000)

	dbMock.ExpectBegin()
	stock.On("GetPoolForUpdate", mock.Anything, mock.Anything, 7).Return(pool, nil)
	ledgers.On("GetAccountByUserID", mock.Anything, mock.Anything, 1).Return(account, nil)
	ledgers.On("GetAccountForUpdate", mock.Anything, mock.Anything, 3).Return(account, nil)
	stock.On("ConsumeFIFO", mock.Anything, mock.Anything, 9, 2).Return([]inventory.BatchDeduction{{BatchID: 4, Quantity: 2}}, nil).Once()
	stock.On("DecrementSlots", mock.Anything, mock.Anything, 7, 2).Return(nil).Once()
	ledgers.On("DebitBalance", mock.Anything, mock.Anything, 3, mock.Anything).Return(decimal.NewFromInt(10000), nil).Once()
	repo.On("InsertAllocation", mock.Anything, mock.Anything, 3, 7, 2, mock.Anything, mock.Anything).Return(&Allocation{
		ID: 15, AccountID: 3, PoolID: 7, SlotsBooked: 2, TotalCost: totalCost, Status: StatusPending,
	}, nil).Once()
	repo.On("InsertAllocationBatches", mock.Anything, mock.Anything, 15, []AllocationBatch{{BatchID: 4, Quantity: 2}}).Return(nil).Once()
	ledgers.On("InsertTransaction", mock.Anything, mock.Anything, mock.MatchedBy(func(txn *ledger.Transaction) bool {
		return txn.Kind == ledger.KindBookingHold && txn.Channel == ledger.ChannelInternal &&
			txn.Status == ledger.StatusCompleted && txn.Amount.Equal(totalCost)
	})).Return(&ledger.Transaction{ID: 30}, nil).Once()
	dbMock.ExpectCommit()

	result, err := svc.BookSlot(context.Background(), 1, 7, 2)
	require.NoError(t, err)
	assert.Equal(t, 15, result.AllocationID)
	assert.True(t, result.TotalCost.Equal(totalCost))
	assert.True(t, result.NewBalance.Equal(decimal.NewFromInt(10000)))

	repo.AssertExpectations(t)
	ledgers.AssertExpectations(t)
	stock.AssertExpectations(t)
	assert.NoError(t, dbMock.ExpectationsWereMet())
}

func TestBookSlotPoolClosed(t *testing.T) {
	svc, _, _, stock, _, dbMock, done := setupService(t)
	defer done()

	pool := openPool()
	pool.Status = inventory.PoolCompleted

	dbMock.ExpectBegin()
	stock.On("GetPoolForUpdate", mock.Anything, mock.Anything, 7).Return(pool, nil)
	dbMock.ExpectRollback()

	_, err := svc.BookSlot(context.Background(), 1, 7, 2)
	assert.ErrorIs(t, err, inventory.ErrPoolClosed)
}

func TestBookSlotInsufficientSlots(t *testing.T) {
	svc, _, ledgers, stock, _, dbMock, done := setupService(t)
	defer done()

	pool := openPool()
	pool.SlotsRemaining = 1

	dbMock.ExpectBegin()
	stock.On("GetPoolForUpdate", mock.Anything, mock.Anything, 7).Return(pool, nil)
	dbMock.ExpectRollback()

	_, err := svc.BookSlot(context.Background(), 1, 7, 2)
	require.Error(t, err)
	assert.True(t, inventory.IsInsufficientSlots(err))
	ledgers.AssertNotCalled(t, "DebitBalance", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestBookSlotInsufficientBalance(t *testing.T) {
	svc, _, ledgers, stock, _, dbMock, done := setupService(t)
	defer done()

	dbMock.ExpectBegin()
	stock.On("GetPoolForUpdate", mock.Anything, mock.Anything, 7).Return(openPool(), nil)
	ledgers.On("GetAccountByUserID", mock.Anything, mock.Anything, 1).Return(activeAccount(5000), nil)
	ledgers.On("GetAccountForUpdate", mock.Anything, mock.Anything, 3).Return(activeAccount(5000), nil)
	dbMock.ExpectRollback()

	_, err := svc.BookSlot(context.Background(), 1, 7, 2)
	require.Error(t, err)
	assert.True(t, IsInsufficientBalance(err))
	assert.Contains(t, err.Error(), "Insufficient balance")
	ledgers.AssertNotCalled(t, "DebitBalance", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	stock.AssertNotCalled(t, "ConsumeFIFO", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestBookSlotInsufficientPhysicalStock(t *testing.T) {
	svc, repo, ledgers, stock, _, dbMock, done := setupService(t)
	defer done()

	dbMock.ExpectBegin()
	stock.On("GetPoolForUpdate", mock.Anything, mock.Anything, 7).Return(openPool(), nil)
	ledgers.On("GetAccountByUserID", mock.Anything, mock.Anything, 1).Return(activeAccount(100000), nil)
	ledgers.On("GetAccountForUpdate", mock.Anything, mock.Anything, 3).Return(activeAccount(100000), nil)
	stock.On("ConsumeFIFO", mock.Anything, mock.Anything, 9, 2).Return(nil, &inventory.InsufficientStockError{Available: 1})
	dbMock.ExpectRollback()

	_, err := svc.BookSlot(context.Background(), 1, 7, 2)
	require.Error(t, err)
	assert.True(t, inventory.IsInsufficientStock(err))
	repo.AssertNotCalled(t, "InsertAllocation", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestBookSlotInactiveAccount(t *testing.T) {
	svc, _, ledgers, stock, _, dbMock, done := setupService(t)
	defer done()

	suspended := activeAccount(100000)
	suspended.Status = ledger.AccountSuspended

	dbMock.ExpectBegin()
	stock.On("GetPoolForUpdate", mock.Anything, mock.Anything, 7).Return(openPool(), nil)
	ledgers.On("GetAccountByUserID", mock.Anything, mock.Anything, 1).Return(suspended, nil)
	ledgers.On("GetAccountForUpdate", mock.Anything, mock.Anything, 3).Return(suspended, nil)
	dbMock.ExpectRollback()

	_, err := svc.BookSlot(context.Background(), 1, 7, 2)
	assert.ErrorIs(t, err, ledger.ErrAccountInactive)
}

func TestBookSlotRejectsNonPositiveSlots(t *testing.T) {
	svc, _, _, _, _, _, done := setupService(t)
	defer done()

	_, err := svc.BookSlot(context.Background(), 1, 7, 0)
	assert.ErrorIs(t, err, ErrInvalidSlotCount)
}

func cancellableAllocation() *Allocation {
	return &Allocation{
		ID:          15,
		AccountID:   3,
		UserID:      1,
		PoolID:      7,
		VariantName: "Bag of Rice 50kg",
		SlotsBooked: 2,
		UnitPrice:   decimal.NewFromInt(45000),
		TotalCost:   decimal.NewFromInt(90000),
		Status:      StatusPending,
	}
}

func TestCancelBookingRefundsAndRestores(t *testing.T) {
	svc, repo, ledgers, stock, _, dbMock, done := setupService(t)
	defer done()

	allocation := cancellableAllocation()

	dbMock.ExpectBegin()
	repo.On("GetAllocation", mock.Anything, mock.Anything, 15).Return(allocation, nil)
	stock.On("GetPoolForUpdate", mock.Anything, mock.Anything, 7).Return(openPool(), nil)
	ledgers.On("GetAccountForUpdate", mock.Anything, mock.Anything, 3).Return(activeAccount(10000), nil)
	repo.On("GetAllocationForUpdate", mock.Anything, mock.Anything, 15).Return(allocation, nil)
	ledgers.On("CreditBalance", mock.Anything, mock.Anything, 3, mock.Anything).Return(decimal.NewFromInt(100000), nil).Once()
	stock.On("RestoreSlots", mock.Anything, mock.Anything, 7, 2).Return(nil).Once()
	repo.On("ListAllocationBatches", mock.Anything, mock.Anything, 15).Return([]AllocationBatch{{BatchID: 4, Quantity: 2}}, nil)
	stock.On("RestoreBatch", mock.Anything, mock.Anything, 4, 2).Return(nil).Once()
	ledgers.On("InsertTransaction", mock.Anything, mock.Anything, mock.MatchedBy(func(txn *ledger.Transaction) bool {
		return txn.Kind == ledger.KindRefund && txn.Channel == ledger.ChannelInternal &&
			txn.Status == ledger.StatusCompleted && txn.Amount.Equal(decimal.NewFromInt(90000))
	})).Return(&ledger.Transaction{ID: 31}, nil).Once()
	repo.On("SetAllocationStatus", mock.Anything, mock.Anything, 15, StatusCancelled).Return(nil).Once()
	dbMock.ExpectCommit()

	err := svc.UpdateBookingStatus(context.Background(), 15, StatusCancelled)
	require.NoError(t, err)

	repo.AssertExpectations(t)
	ledgers.AssertExpectations(t)
	stock.AssertExpectations(t)
	assert.NoError(t, dbMock.ExpectationsWereMet())
}

func TestCancelBookingAlreadyCancelled(t *testing.T) {
	svc, repo, ledgers, stock, _, dbMock, done := setupService(t)
	defer done()

	allocation := cancellableAllocation()
	allocation.Status = StatusCancelled

	dbMock.ExpectBegin()
	repo.On("GetAllocation", mock.Anything, mock.Anything, 15).Return(allocation, nil)
	stock.On("GetPoolForUpdate", mock.Anything, mock.Anything, 7).Return(openPool(), nil)
	ledgers.On("GetAccountForUpdate", mock.Anything, mock.Anything, 3).Return(activeAccount(10000), nil)
	repo.On("GetAllocationForUpdate", mock.Anything, mock.Anything, 15).Return(allocation, nil)
	dbMock.ExpectRollback()

	err := svc.UpdateBookingStatus(context.Background(), 15, StatusCancelled)
	assert.ErrorIs(t, err, ErrAlreadyCancelled)
	ledgers.AssertNotCalled(t, "CreditBalance", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestCompleteBookingDoesNotTouchMoney(t *testing.T) {
	svc, repo, ledgers, stock, _, dbMock, done := setupService(t)
	defer done()

	allocation := cancellableAllocation()

	dbMock.ExpectBegin()
	repo.On("GetAllocation", mock.Anything, mock.Anything, 15).Return(allocation, nil)
	stock.On("GetPoolForUpdate", mock.Anything, mock.Anything, 7).Return(openPool(), nil)
	ledgers.On("GetAccountForUpdate", mock.Anything, mock.Anything, 3).Return(activeAccount(10000), nil)
	repo.On("GetAllocationForUpdate", mock.Anything, mock.Anything, 15).Return(allocation, nil)
	repo.On("SetAllocationStatus", mock.Anything, mock.Anything, 15, StatusCompleted).Return(nil).Once()
	dbMock.ExpectCommit()

	err := svc.UpdateBookingStatus(context.Background(), 15, StatusCompleted)
	require.NoError(t, err)
	ledgers.AssertNotCalled(t, "CreditBalance", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	stock.AssertNotCalled(t, "RestoreSlots", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestUpdateBookingStatusRejectsUnknownStatus(t *testing.T) {
	svc, _, _, _, _, _, done := setupService(t)
	defer done()

	err := svc.UpdateBookingStatus(context.Background(), 15, "Shipped")
	assert.ErrorIs(t, err, ErrInvalidStatus)
}

func TestMyBookingsResolvesAccount(t *testing.T) {
	svc, repo, ledgers, _, _, _, done := setupService(t)
	defer done()

	ledgers.On("GetAccountByUserID", mock.Anything, mock.Anything, 1).Return(activeAccount(0), nil)
	repo.On("ListForAccount", mock.Anything, mock.Anything, 3).Return([]Allocation{{ID: 15}}, nil)

	bookings, err := svc.MyBookings(context.Background(), 1)
	require.NoError(t, err)
	assert.Len(t, bookings, 1)
}

func TestMyBookingsNoAccount(t *testing.T) {
	svc, _, ledgers, _, _, _, done := setupService(t)
	defer done()

	ledgers.On("GetAccountByUserID", mock.Anything, mock.Anything, 1).Return(nil, ledger.ErrAccountNotFound)

	_, err := svc.MyBookings(context.Background(), 1)
	assert.ErrorIs(t, err, ledger.ErrAccountNotFound)
}
