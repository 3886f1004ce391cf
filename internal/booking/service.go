package booking

import (
	"context"
	"fmt"

	"stocksave/internal/inventory"
	"stocksave/internal/ledger"
	"stocksave/internal/logger"
	"stocksave/internal/metrics"
	"stocksave/internal/notify"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
)

type BookResult struct {
	AllocationID int             `json:"allocation_id"`
	TotalCost    decimal.Decimal `json:"total_cost"`
	NewBalance   decimal.Decimal `json:"new_balance"`
	Status       string          `json:"status"`
}

type Service interface {
	BookSlot(ctx context.Context, userID, poolID, slotsRequested int) (*BookResult, error)
	UpdateBookingStatus(ctx context.Context, allocationID int, newStatus string) error
	MyBookings(ctx context.Context, userID int) ([]Allocation, error)
	AllBookings(ctx context.Context, status string, limit, offset int) ([]Allocation, error)
}

// service orchestrates bookings across the money and inventory ledgers. It
// owns the database transaction; the repositories it drives never begin or
// commit one themselves.
type service struct {
	db      *sqlx.DB
	repo    Repository
	ledgers ledger.Repository
	stock   inventory.Repository
	sink    notify.Sink
}

func NewService(db *sqlx.DB, repo Repository, ledgers ledger.Repository, stock inventory.Repository, sink notify.Sink) Service {
	return &service{
		db:      db,
		repo:    repo,
		ledgers: ledgers,
		stock:   stock,
		sink:    sink,
	}
}

// BookSlot runs the whole booking as one transaction. Lock order is pool
// first, then account; cancellation uses the same order, so the two can
// never deadlock against each other. Every check happens before the first
// mutation, and any failure rolls the whole thing back.
func (s *service) BookSlot(ctx context.Context, userID, poolID, slotsRequested int) (*BookResult, error) {
	if slotsRequested <= 0 {
		return nil, ErrInvalidSlotCount
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	pool, err := s.stock.GetPoolForUpdate(ctx, tx, poolID)
	if err != nil {
		return nil, err
	}
	if pool.Status != inventory.PoolOpen {
		return nil, inventory.ErrPoolClosed
	}

	totalCost := pool.UnitPrice.Mul(decimal.NewFromInt(int64(slotsRequested)))

	if pool.SlotsRemaining < slotsRequested {
		return nil, &inventory.InsufficientSlotsError{Available: pool.SlotsRemaining}
	}

	account, err := s.ledgers.GetAccountByUserID(ctx, tx, userID)
	if err != nil {
		return nil, err
	}
	account, err = s.ledgers.GetAccountForUpdate(ctx, tx, account.ID)
	if err != nil {
		return nil, err
	}
	if account.Status != ledger.AccountActive {
		return nil, ledger.ErrAccountInactive
	}
	if account.Balance.LessThan(totalCost) {
		return nil, &InsufficientBalanceError{Required: totalCost, Available: account.Balance}
	}

	// The physical-stock check and deduction. Slots and batches are tracked
	// separately and must not diverge; ConsumeFIFO verifies coverage under
	// the batch row locks before deducting anything.
	deductions, err := s.stock.ConsumeFIFO(ctx, tx, pool.ProductVariantID, slotsRequested)
	if err != nil {
		return nil, err
	}

	if err := s.stock.DecrementSlots(ctx, tx, pool.ID, slotsRequested); err != nil {
		return nil, err
	}

	newBalance, err := s.ledgers.DebitBalance(ctx, tx, account.ID, totalCost)
	if err != nil {
		return nil, err
	}

	allocation, err := s.repo.InsertAllocation(ctx, tx, account.ID, pool.ID, slotsRequested, pool.UnitPrice, totalCost)
	if err != nil {
		return nil, err
	}

	allocationBatches := make([]AllocationBatch, 0, len(deductions))
	for _, d := range deductions {
		allocationBatches = append(allocationBatches, AllocationBatch{BatchID: d.BatchID, Quantity: d.Quantity})
	}
	if err := s.repo.InsertAllocationBatches(ctx, tx, allocation.ID, allocationBatches); err != nil {
		return nil, err
	}

	// Booking is a direct debit, not an external payment, so the hold is
	// Completed the moment it exists.
	if _, err := s.ledgers.InsertTransaction(ctx, tx, &ledger.Transaction{
		AccountID: account.ID,
		Amount:    totalCost,
		Kind:      ledger.KindBookingHold,
		Channel:   ledger.ChannelInternal,
		Status:    ledger.StatusCompleted,
		Reference: ledger.NewReference("SSV-BKG"),
	}); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	metrics.RecordBooking("created")
	s.sink.Enqueue(ctx, userID, notify.KindBookingUpdate,
		"Booking Confirmed",
		fmt.Sprintf("You booked %d slot(s) of %s for ₦%s.", slotsRequested, pool.VariantName, totalCost.StringFixed(2)),
		&allocation.ID, "booking")

	return &BookResult{
		AllocationID: allocation.ID,
		TotalCost:    totalCost,
		NewBalance:   newBalance,
		Status:       allocation.Status,
	}, nil
}

// UpdateBookingStatus is the owner's fulfil/cancel action. Completed is
// informational; Cancelled refunds the hold, reopens the pool and returns
// stock to the batches the booking drew from.
func (s *service) UpdateBookingStatus(ctx context.Context, allocationID int, newStatus string) error {
	if newStatus != StatusCompleted && newStatus != StatusCancelled {
		return ErrInvalidStatus
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	// Plain read first to learn the pool, so locks can be taken in the
	// same pool-then-account order as BookSlot.
	peek, err := s.repo.GetAllocation(ctx, tx, allocationID)
	if err != nil {
		return err
	}

	if _, err := s.stock.GetPoolForUpdate(ctx, tx, peek.PoolID); err != nil {
		return err
	}
	if _, err := s.ledgers.GetAccountForUpdate(ctx, tx, peek.AccountID); err != nil {
		return err
	}

	allocation, err := s.repo.GetAllocationForUpdate(ctx, tx, allocationID)
	if err != nil {
		return err
	}
	if allocation.Status == StatusCancelled {
		return ErrAlreadyCancelled
	}

	if newStatus == StatusCompleted {
		if err := s.repo.SetAllocationStatus(ctx, tx, allocation.ID, StatusCompleted); err != nil {
			return err
		}
		if err := tx.Commit(); err != nil {
			return err
		}

		s.sink.Enqueue(ctx, allocation.UserID, notify.KindBookingUpdate,
			"Order Ready",
			fmt.Sprintf("Your booking of %s is ready for pickup.", allocation.VariantName),
			&allocation.ID, "booking")
		return nil
	}

	refund := allocation.TotalCost
	if _, err := s.ledgers.CreditBalance(ctx, tx, allocation.AccountID, refund); err != nil {
		return err
	}

	if err := s.stock.RestoreSlots(ctx, tx, allocation.PoolID, allocation.SlotsBooked); err != nil {
		return err
	}

	batches, err := s.repo.ListAllocationBatches(ctx, tx, allocation.ID)
	if err != nil {
		return err
	}
	for _, b := range batches {
		if err := s.stock.RestoreBatch(ctx, tx, b.BatchID, b.Quantity); err != nil {
			return err
		}
	}

	if _, err := s.ledgers.InsertTransaction(ctx, tx, &ledger.Transaction{
		AccountID: allocation.AccountID,
		Amount:    refund,
		Kind:      ledger.KindRefund,
		Channel:   ledger.ChannelInternal,
		Status:    ledger.StatusCompleted,
		Reference: ledger.NewReference("SSV-RFD"),
	}); err != nil {
		return err
	}

	if err := s.repo.SetAllocationStatus(ctx, tx, allocation.ID, StatusCancelled); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return err
	}

	metrics.RecordBookingCancellation()
	s.sink.Enqueue(ctx, allocation.UserID, notify.KindBookingUpdate,
		"Booking Cancelled",
		fmt.Sprintf("Your booking of %s was cancelled and ₦%s has been refunded.", allocation.VariantName, refund.StringFixed(2)),
		&allocation.ID, "booking")

	logger.Info("Booking cancelled", "allocation_id", allocation.ID, "refund", refund.StringFixed(2))
	return nil
}

func (s *service) MyBookings(ctx context.Context, userID int) ([]Allocation, error) {
	account, err := s.ledgers.GetAccountByUserID(ctx, s.db, userID)
	if err != nil {
		return nil, err
	}
	return s.repo.ListForAccount(ctx, s.db, account.ID)
}

func (s *service) AllBookings(ctx context.Context, status string, limit, offset int) ([]Allocation, error) {
	return s.repo.ListAll(ctx, s.db, status, limit, offset)
}
