package ledger

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"
	"time"

	"stocksave/internal/gateway"
	"stocksave/internal/logger"
	"stocksave/internal/metrics"
	"stocksave/internal/notify"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
)

type DepositResult struct {
	TransactionID int    `json:"transaction_id"`
	Reference     string `json:"reference"`
	Status        string `json:"status"`
	RedirectURL   string `json:"redirect_url,omitempty"`
}

type ConfirmResult struct {
	TransactionID int              `json:"transaction_id"`
	Status        string           `json:"status"`
	NewBalance    *decimal.Decimal `json:"new_balance,omitempty"`
}

type WithdrawResult struct {
	TransactionID int             `json:"transaction_id"`
	Reference     string          `json:"reference"`
	Status        string          `json:"status"`
	NewBalance    decimal.Decimal `json:"new_balance"`
}

type Service interface {
	EnsureAccount(ctx context.Context, userID int) (*Account, error)
	GetAccount(ctx context.Context, userID int) (*Account, error)

	Deposit(ctx context.Context, userID int, amount decimal.Decimal, channel, reference, email string) (*DepositResult, error)
	ConfirmDeposit(ctx context.Context, reference string) (*ConfirmResult, error)
	GenerateApprovalCode(ctx context.Context, transactionID int) (string, error)
	ApproveCashDeposit(ctx context.Context, transactionID int, code string, requestingUserID int) (*ConfirmResult, error)
	Withdraw(ctx context.Context, userID int, amount decimal.Decimal, bank gateway.BankDetails) (*WithdrawResult, error)
	HandleTransferEvent(ctx context.Context, event *gateway.WebhookEvent) error
	UpdateTransactionStatus(ctx context.Context, transactionID int, newStatus string) error

	History(ctx context.Context, userID, limit, offset int) ([]Transaction, error)
	PendingTransactions(ctx context.Context) ([]Transaction, error)
	Reconciliation(ctx context.Context) (*Reconciliation, error)
}

type service struct {
	db            *sqlx.DB
	repo          Repository
	gw            gateway.Client
	sink          notify.Sink
	callbackURL   string
	minWithdrawal decimal.Decimal
}

func NewService(db *sqlx.DB, repo Repository, gw gateway.Client, sink notify.Sink, callbackURL string, minWithdrawal decimal.Decimal) Service {
	return &service{
		db:            db,
		repo:          repo,
		gw:            gw,
		sink:          sink,
		callbackURL:   callbackURL,
		minWithdrawal: minWithdrawal,
	}
}

func (s *service) EnsureAccount(ctx context.Context, userID int) (*Account, error) {
	account, err := s.repo.GetAccountByUserID(ctx, s.db, userID)
	if err == nil {
		return account, nil
	}
	if !errors.Is(err, ErrAccountNotFound) {
		return nil, err
	}
	return s.repo.CreateAccount(ctx, s.db, userID)
}

func (s *service) GetAccount(ctx context.Context, userID int) (*Account, error) {
	return s.repo.GetAccountByUserID(ctx, s.db, userID)
}

// NewReference builds a globally unique ledger reference.
func NewReference(prefix string) string {
	buf := make([]byte, 6)
	_, _ = rand.Read(buf)
	return fmt.Sprintf("%s-%d-%s", prefix, time.Now().UnixMilli(), hex.EncodeToString(buf))
}

func toMinorUnits(amount decimal.Decimal) int64 {
	return amount.Mul(decimal.NewFromInt(100)).IntPart()
}

func validChannel(channel string) bool {
	return channel == ChannelCash || channel == ChannelPaystack || channel == ChannelTransfer
}

// Deposit inserts a Pending deposit. For the Paystack channel the gateway is
// consulted first, before anything is written, so a gateway failure leaves no
// orphaned Pending row. No balance mutation happens here.
func (s *service) Deposit(ctx context.Context, userID int, amount decimal.Decimal, channel, reference, email string) (*DepositResult, error) {
	if amount.LessThanOrEqual(decimal.Zero) {
		return nil, ErrInvalidAmount
	}
	if !validChannel(channel) {
		return nil, ErrInvalidChannel
	}

	account, err := s.repo.GetAccountByUserID(ctx, s.db, userID)
	if err != nil {
		return nil, err
	}
	if account.Status != AccountActive {
		return nil, ErrAccountInactive
	}

	if reference == "" {
		reference = NewReference("SSV-DEP")
	}

	var redirectURL string
	if channel == ChannelPaystack {
		charge, err := s.gw.InitializeCharge(ctx, email, toMinorUnits(amount), s.callbackURL, reference)
		if err != nil {
			metrics.RecordDeposit(channel, "gateway_error")
			return nil, err
		}
		redirectURL = charge.RedirectURL
	}

	txn, err := s.repo.InsertTransaction(ctx, s.db, &Transaction{
		AccountID: account.ID,
		Amount:    amount,
		Kind:      KindDeposit,
		Channel:   channel,
		Status:    StatusPending,
		Reference: reference,
	})
	if err != nil {
		return nil, err
	}

	metrics.RecordDeposit(channel, "initiated")
	return &DepositResult{
		TransactionID: txn.ID,
		Reference:     reference,
		Status:        txn.Status,
		RedirectURL:   redirectURL,
	}, nil
}

// ConfirmDeposit reconciles a gateway charge into the ledger. It is
// idempotent: confirming an already-Completed transaction returns the
// current state without touching the balance. The gateway is consulted
// before the row lock is taken; the locked re-read of the transaction row
// is the idempotency boundary.
func (s *service) ConfirmDeposit(ctx context.Context, reference string) (*ConfirmResult, error) {
	peek, err := s.repo.GetTransactionByReference(ctx, s.db, reference)
	if err != nil {
		return nil, err
	}
	if peek.IsTerminal() {
		return &ConfirmResult{TransactionID: peek.ID, Status: peek.Status}, nil
	}

	charge, err := s.gw.VerifyCharge(ctx, reference)
	if err != nil {
		return nil, err
	}
	// Gateway responses are untrusted: the reported amount must match the
	// ledger's own record before any credit.
	if charge.Status == gateway.ChargeSuccess && charge.AmountMinor != toMinorUnits(peek.Amount) {
		logger.Error("Deposit amount mismatch on verification",
			"reference", reference, "gateway_minor", charge.AmountMinor, "ledger_minor", toMinorUnits(peek.Amount))
		return nil, gateway.ErrGatewayUnavailable
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	txn, err := s.repo.GetTransactionByReferenceForUpdate(ctx, tx, reference)
	if err != nil {
		return nil, err
	}
	if txn.IsTerminal() {
		// A concurrent confirmation won the race; this call is a no-op.
		return &ConfirmResult{TransactionID: txn.ID, Status: txn.Status}, nil
	}

	result := &ConfirmResult{TransactionID: txn.ID}
	if charge.Status == gateway.ChargeSuccess {
		newBalance, err := s.repo.CreditBalance(ctx, tx, txn.AccountID, txn.Amount)
		if err != nil {
			return nil, err
		}
		if err := s.repo.SetTransactionStatus(ctx, tx, txn.ID, StatusCompleted); err != nil {
			return nil, err
		}
		result.Status = StatusCompleted
		result.NewBalance = &newBalance
	} else {
		if err := s.repo.SetTransactionStatus(ctx, tx, txn.ID, StatusFailed); err != nil {
			return nil, err
		}
		result.Status = StatusFailed
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	metrics.RecordDeposit(txn.Channel, result.Status)
	s.notifyTransaction(ctx, txn, result.Status)
	return result, nil
}

// GenerateApprovalCode assigns a one-time 6-digit code to a pending cash
// deposit. The code is communicated to the customer out of band.
func (s *service) GenerateApprovalCode(ctx context.Context, transactionID int) (string, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return "", err
	}
	defer tx.Rollback()

	txn, err := s.repo.GetTransactionForUpdate(ctx, tx, transactionID)
	if err != nil {
		return "", err
	}
	if txn.Kind != KindDeposit || txn.Channel != ChannelCash {
		return "", ErrInvalidState
	}
	if txn.Status != StatusPending {
		if txn.IsTerminal() {
			return "", ErrAlreadyProcessed
		}
		return "", ErrInvalidState
	}

	code, err := randomSixDigits()
	if err != nil {
		return "", err
	}
	if err := s.repo.SetApprovalCode(ctx, tx, txn.ID, code, ApprovalCodeTTL); err != nil {
		return "", err
	}

	if err := tx.Commit(); err != nil {
		return "", err
	}

	s.sink.Enqueue(ctx, txn.UserID, notify.KindCashApproval,
		"Cash Deposit Approval",
		fmt.Sprintf("Use code %s to confirm your cash deposit of ₦%s. It expires in %d minutes.",
			code, txn.Amount.StringFixed(2), int(ApprovalCodeTTL.Minutes())),
		&txn.ID, "transaction")

	return code, nil
}

func randomSixDigits() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1000000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}

// ApproveCashDeposit completes the two-step cash confirmation. The code
// must match exactly, belong to the requesting user, and be unexpired.
func (s *service) ApproveCashDeposit(ctx context.Context, transactionID int, code string, requestingUserID int) (*ConfirmResult, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	txn, err := s.repo.GetTransactionForUpdate(ctx, tx, transactionID)
	if err != nil {
		return nil, err
	}
	if txn.UserID != requestingUserID {
		return nil, ErrTransactionNotFound
	}
	if txn.IsTerminal() {
		return nil, ErrAlreadyProcessed
	}
	if txn.Status != StatusPending || txn.Kind != KindDeposit || txn.Channel != ChannelCash {
		return nil, ErrInvalidState
	}
	if txn.ApprovalCode == nil || *txn.ApprovalCode != code {
		return nil, ErrInvalidApproval
	}
	if txn.ApprovalCodeExpiresAt != nil && time.Now().After(*txn.ApprovalCodeExpiresAt) {
		return nil, ErrInvalidApproval
	}

	newBalance, err := s.repo.CreditBalance(ctx, tx, txn.AccountID, txn.Amount)
	if err != nil {
		return nil, err
	}
	if err := s.repo.CompleteWithApproval(ctx, tx, txn.ID); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	metrics.RecordDeposit(ChannelCash, StatusCompleted)
	s.notifyTransaction(ctx, txn, StatusCompleted)
	return &ConfirmResult{TransactionID: txn.ID, Status: StatusCompleted, NewBalance: &newBalance}, nil
}

// Withdraw debits the balance up front (escrow) and only then talks to the
// gateway, so no network call ever happens under the account row lock. A
// synchronous gateway failure triggers the compensating credit, leaving the
// balance as if the withdrawal never happened.
func (s *service) Withdraw(ctx context.Context, userID int, amount decimal.Decimal, bank gateway.BankDetails) (*WithdrawResult, error) {
	if amount.LessThan(s.minWithdrawal) {
		return nil, ErrBelowMinWithdrawal
	}

	reference := NewReference("SSV-WDR")

	// Escrow phase: lock, check, debit, record Pending withdrawal.
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	account, err := s.repo.GetAccountByUserID(ctx, tx, userID)
	if err != nil {
		return nil, err
	}
	account, err = s.repo.GetAccountForUpdate(ctx, tx, account.ID)
	if err != nil {
		return nil, err
	}
	if account.Status != AccountActive {
		return nil, ErrAccountInactive
	}
	if account.Balance.LessThan(amount) {
		return nil, &InsufficientFundsError{Need: amount, Have: account.Balance}
	}

	newBalance, err := s.repo.DebitBalance(ctx, tx, account.ID, amount)
	if err != nil {
		return nil, err
	}

	txn, err := s.repo.InsertTransaction(ctx, tx, &Transaction{
		AccountID: account.ID,
		Amount:    amount,
		Kind:      KindWithdrawal,
		Channel:   ChannelTransfer,
		Status:    StatusPending,
		Reference: reference,
	})
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	// Gateway phase, outside any row lock.
	recipient, err := s.gw.CreateTransferRecipient(ctx, bank)
	if err != nil {
		s.compensateWithdrawal(ctx, txn.ID)
		metrics.RecordWithdrawal("gateway_error")
		return nil, err
	}

	transfer, err := s.gw.InitiateTransfer(ctx, recipient, toMinorUnits(amount), reference)
	if err != nil {
		s.compensateWithdrawal(ctx, txn.ID)
		metrics.RecordWithdrawal("gateway_error")
		return nil, err
	}

	// Record the transfer reference and park the withdrawal in Processing
	// until the webhook settles it.
	tx2, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx2.Rollback()

	locked, err := s.repo.GetTransactionForUpdate(ctx, tx2, txn.ID)
	if err != nil {
		return nil, err
	}
	if locked.Status == StatusPending {
		if err := s.repo.SetGatewayRef(ctx, tx2, txn.ID, transfer.TransferCode); err != nil {
			return nil, err
		}
		if err := s.repo.SetTransactionStatus(ctx, tx2, txn.ID, StatusProcessing); err != nil {
			return nil, err
		}
	}
	if err := tx2.Commit(); err != nil {
		return nil, err
	}

	metrics.RecordWithdrawal("initiated")
	return &WithdrawResult{
		TransactionID: txn.ID,
		Reference:     reference,
		Status:        StatusProcessing,
		NewBalance:    newBalance,
	}, nil
}

// compensateWithdrawal reverses the escrow debit after a failed transfer
// initiation. Conservation of money depends on this path.
func (s *service) compensateWithdrawal(ctx context.Context, transactionID int) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		logger.Errorf("Withdrawal compensation failed to open tx: %v", err)
		return
	}
	defer tx.Rollback()

	txn, err := s.repo.GetTransactionForUpdate(ctx, tx, transactionID)
	if err != nil {
		logger.Errorf("Withdrawal compensation lookup failed: %v", err)
		return
	}
	if txn.IsTerminal() {
		return
	}

	if _, err := s.repo.CreditBalance(ctx, tx, txn.AccountID, txn.Amount); err != nil {
		logger.Errorf("Withdrawal compensation credit failed: %v", err)
		return
	}
	if err := s.repo.SetTransactionStatus(ctx, tx, txn.ID, StatusFailed); err != nil {
		logger.Errorf("Withdrawal compensation status update failed: %v", err)
		return
	}
	if err := tx.Commit(); err != nil {
		logger.Errorf("Withdrawal compensation commit failed: %v", err)
	}
}

// HandleTransferEvent reconciles an asynchronous transfer webhook. Success
// leaves the escrowed debit in place; failure or reversal credits it back.
// Duplicate deliveries are no-ops thanks to the transaction row lock and
// the terminal-state check.
func (s *service) HandleTransferEvent(ctx context.Context, event *gateway.WebhookEvent) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	txn, err := s.repo.GetTransactionByReferenceForUpdate(ctx, tx, event.Reference)
	if err != nil {
		return err
	}
	if txn.Kind != KindWithdrawal {
		return ErrInvalidState
	}
	if txn.IsTerminal() {
		return nil
	}

	switch event.Event {
	case gateway.EventTransferSuccess:
		if err := s.repo.SetTransactionStatus(ctx, tx, txn.ID, StatusCompleted); err != nil {
			return err
		}
	case gateway.EventTransferFailed, gateway.EventTransferReversed:
		if _, err := s.repo.CreditBalance(ctx, tx, txn.AccountID, txn.Amount); err != nil {
			return err
		}
		if err := s.repo.SetTransactionStatus(ctx, tx, txn.ID, StatusFailed); err != nil {
			return err
		}
	default:
		return nil
	}

	if err := tx.Commit(); err != nil {
		return err
	}

	finalStatus := StatusCompleted
	if event.Event != gateway.EventTransferSuccess {
		finalStatus = StatusFailed
	}
	metrics.RecordWithdrawal(finalStatus)
	s.notifyTransaction(ctx, txn, finalStatus)
	return nil
}

// UpdateTransactionStatus is the owner override used for manual
// reconciliation of deposits that don't flow through the approval-code
// path, and for settling stuck withdrawals.
func (s *service) UpdateTransactionStatus(ctx context.Context, transactionID int, newStatus string) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	txn, err := s.repo.GetTransactionForUpdate(ctx, tx, transactionID)
	if err != nil {
		return err
	}
	if txn.IsTerminal() {
		return ErrAlreadyProcessed
	}
	if !canTransition(txn.Status, newStatus) {
		return ErrInvalidState
	}

	// Exactly one balance mutation per transaction: deposits and refunds
	// credit on completion; withdrawals were escrow-debited at creation and
	// only move money again on failure.
	if newStatus == StatusCompleted && (txn.Kind == KindDeposit || txn.Kind == KindRefund) {
		if _, err := s.repo.CreditBalance(ctx, tx, txn.AccountID, txn.Amount); err != nil {
			return err
		}
	}
	// Every non-terminal withdrawal carries the escrow debit, whether it got
	// as far as Processing or died Pending before the transfer was initiated.
	if newStatus == StatusFailed && txn.Kind == KindWithdrawal {
		if _, err := s.repo.CreditBalance(ctx, tx, txn.AccountID, txn.Amount); err != nil {
			return err
		}
	}

	if err := s.repo.SetTransactionStatus(ctx, tx, txn.ID, newStatus); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return err
	}

	if newStatus == StatusCompleted || newStatus == StatusFailed {
		s.notifyTransaction(ctx, txn, newStatus)
	}
	return nil
}

func (s *service) notifyTransaction(ctx context.Context, txn *Transaction, status string) {
	title := "Transaction Update"
	message := fmt.Sprintf("Your %s of ₦%s is now %s.", txn.Kind, txn.Amount.StringFixed(2), status)
	if status == StatusCompleted && txn.Kind == KindDeposit {
		title = "Deposit Confirmed"
		message = fmt.Sprintf("Your deposit of ₦%s has been added to your balance.", txn.Amount.StringFixed(2))
	}
	s.sink.Enqueue(ctx, txn.UserID, notify.KindTransaction, title, message, &txn.ID, "transaction")
}

func (s *service) History(ctx context.Context, userID, limit, offset int) ([]Transaction, error) {
	account, err := s.repo.GetAccountByUserID(ctx, s.db, userID)
	if err != nil {
		return nil, err
	}
	return s.repo.ListTransactions(ctx, s.db, account.ID, limit, offset)
}

func (s *service) PendingTransactions(ctx context.Context) ([]Transaction, error) {
	return s.repo.ListPendingTransactions(ctx, s.db)
}

func (s *service) Reconciliation(ctx context.Context) (*Reconciliation, error) {
	return s.repo.ReconciliationSummary(ctx, s.db)
}
