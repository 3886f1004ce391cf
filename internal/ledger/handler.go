package ledger

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"stocksave/internal/auth"
	"stocksave/internal/gateway"
	"stocksave/internal/logger"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

type Handler struct {
	service       Service
	webhookSecret string
}

func NewHandler(service Service, webhookSecret string) *Handler {
	return &Handler{service: service, webhookSecret: webhookSecret}
}

type DepositRequest struct {
	Amount  decimal.Decimal `json:"amount" binding:"required"`
	Channel string          `json:"channel" binding:"required,oneof=Cash Paystack Transfer"`
}

type ApproveRequest struct {
	Code string `json:"code" binding:"required,len=6"`
}

type WithdrawRequest struct {
	Amount        decimal.Decimal `json:"amount" binding:"required"`
	AccountName   string          `json:"account_name" binding:"required"`
	AccountNumber string          `json:"account_number" binding:"required,len=10"`
	BankCode      string          `json:"bank_code" binding:"required"`
}

type StatusUpdateRequest struct {
	Status string `json:"status" binding:"required,oneof=Processing Completed Failed"`
}

// GetBalance godoc
// @Summary      Get savings balance
// @Description  Returns the authenticated user's savings account.
// @Tags         savings
// @Security     BearerAuth
// @Produce      json
// @Success      200  {object}  Account
// @Failure      404  {object}  gin.H
// @Router       /savings/balance [get]
func (h *Handler) GetBalance(c *gin.Context) {
	userID, ok := auth.GetUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	account, err := h.service.GetAccount(c.Request.Context(), userID)
	if errors.Is(err, ErrAccountNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Savings account not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load account"})
		return
	}

	c.JSON(http.StatusOK, account)
}

// Deposit godoc
// @Summary      Start a deposit
// @Description  Creates a pending deposit. Paystack deposits return a redirect URL.
// @Tags         savings
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        request  body      DepositRequest  true  "Deposit details"
// @Success      201      {object}  DepositResult
// @Failure      400      {object}  gin.H
// @Failure      502      {object}  gin.H
// @Router       /savings/deposit [post]
func (h *Handler) Deposit(c *gin.Context) {
	userID, ok := auth.GetUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	var req DepositRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "amount and a valid channel are required"})
		return
	}

	email, _ := c.Get("user_email")
	emailStr, _ := email.(string)

	result, err := h.service.Deposit(c.Request.Context(), userID, req.Amount, req.Channel, "", emailStr)
	if err != nil {
		h.writeServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, result)
}

// ConfirmDeposit godoc
// @Summary      Confirm a deposit
// @Description  Verifies a gateway charge and credits the balance. Idempotent.
// @Tags         savings
// @Security     BearerAuth
// @Produce      json
// @Param        reference  path      string  true  "Transaction reference"
// @Success      200        {object}  ConfirmResult
// @Failure      404        {object}  gin.H
// @Failure      502        {object}  gin.H
// @Router       /savings/deposit/{reference}/confirm [post]
func (h *Handler) ConfirmDeposit(c *gin.Context) {
	reference := c.Param("reference")
	if reference == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Transaction reference is required"})
		return
	}

	result, err := h.service.ConfirmDeposit(c.Request.Context(), reference)
	if err != nil {
		h.writeServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// GenerateApprovalCode godoc
// @Summary      Issue a cash approval code
// @Description  Generates a one-time code for a pending cash deposit. Owner only.
// @Tags         admin
// @Security     BearerAuth
// @Produce      json
// @Param        transactionID  path      int  true  "Transaction ID"
// @Success      200            {object}  gin.H
// @Failure      400            {object}  gin.H
// @Failure      409            {object}  gin.H
// @Router       /admin/transactions/{transactionID}/approval-code [post]
func (h *Handler) GenerateApprovalCode(c *gin.Context) {
	transactionID, err := strconv.Atoi(c.Param("transactionID"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid transaction ID"})
		return
	}

	code, err := h.service.GenerateApprovalCode(c.Request.Context(), transactionID)
	if err != nil {
		h.writeServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Approval code generated",
		"code":    code,
	})
}

// ApproveCashDeposit godoc
// @Summary      Approve a cash deposit
// @Description  Completes a pending cash deposit with the one-time code.
// @Tags         savings
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        transactionID  path      int             true  "Transaction ID"
// @Param        request        body      ApproveRequest  true  "Approval code"
// @Success      200            {object}  ConfirmResult
// @Failure      400            {object}  gin.H
// @Failure      409            {object}  gin.H
// @Router       /savings/deposit/{transactionID}/approve [post]
func (h *Handler) ApproveCashDeposit(c *gin.Context) {
	userID, ok := auth.GetUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	transactionID, err := strconv.Atoi(c.Param("transactionID"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid transaction ID"})
		return
	}

	var req ApproveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "A 6-digit code is required"})
		return
	}

	result, err := h.service.ApproveCashDeposit(c.Request.Context(), transactionID, req.Code, userID)
	if err != nil {
		h.writeServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// Withdraw godoc
// @Summary      Withdraw savings
// @Description  Debits the balance and initiates a bank transfer.
// @Tags         savings
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        request  body      WithdrawRequest  true  "Withdrawal details"
// @Success      200      {object}  WithdrawResult
// @Failure      400      {object}  gin.H
// @Failure      402      {object}  gin.H
// @Failure      502      {object}  gin.H
// @Router       /savings/withdraw [post]
func (h *Handler) Withdraw(c *gin.Context) {
	userID, ok := auth.GetUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	var req WithdrawRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "amount and bank details are required"})
		return
	}

	result, err := h.service.Withdraw(c.Request.Context(), userID, req.Amount, gateway.BankDetails{
		AccountName:   req.AccountName,
		AccountNumber: req.AccountNumber,
		BankCode:      req.BankCode,
	})
	if err != nil {
		h.writeServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// History godoc
// @Summary      Transaction history
// @Description  Returns the authenticated user's transactions, newest first.
// @Tags         savings
// @Security     BearerAuth
// @Produce      json
// @Param        limit   query     int  false  "Page size (default 50)"
// @Param        offset  query     int  false  "Offset"
// @Success      200     {array}   Transaction
// @Failure      500     {object}  gin.H
// @Router       /savings/transactions [get]
func (h *Handler) History(c *gin.Context) {
	userID, ok := auth.GetUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	txns, err := h.service.History(c.Request.Context(), userID, limit, offset)
	if err != nil {
		h.writeServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, txns)
}

// ListPending godoc
// @Summary      List pending transactions
// @Description  Returns all pending transactions across accounts. Owner only.
// @Tags         admin
// @Security     BearerAuth
// @Produce      json
// @Success      200  {array}   Transaction
// @Failure      500  {object}  gin.H
// @Router       /admin/transactions/pending [get]
func (h *Handler) ListPending(c *gin.Context) {
	txns, err := h.service.PendingTransactions(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch pending transactions"})
		return
	}

	c.JSON(http.StatusOK, txns)
}

// UpdateStatus godoc
// @Summary      Update transaction status
// @Description  Moves a transaction through its state machine. Owner only.
// @Tags         admin
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        transactionID  path      int                  true  "Transaction ID"
// @Param        request        body      StatusUpdateRequest  true  "Target status"
// @Success      200            {object}  gin.H
// @Failure      400            {object}  gin.H
// @Failure      409            {object}  gin.H
// @Router       /admin/transactions/{transactionID}/status [patch]
func (h *Handler) UpdateStatus(c *gin.Context) {
	transactionID, err := strconv.Atoi(c.Param("transactionID"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid transaction ID"})
		return
	}

	var req StatusUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "status must be Processing, Completed or Failed"})
		return
	}

	if err := h.service.UpdateTransactionStatus(c.Request.Context(), transactionID, req.Status); err != nil {
		h.writeServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Transaction updated"})
}

// Reconciliation godoc
// @Summary      Ledger reconciliation
// @Description  Returns money totals across the whole ledger. Owner only.
// @Tags         admin
// @Security     BearerAuth
// @Produce      json
// @Success      200  {object}  Reconciliation
// @Failure      500  {object}  gin.H
// @Router       /admin/reconciliation [get]
func (h *Handler) Reconciliation(c *gin.Context) {
	summary, err := h.service.Reconciliation(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to build reconciliation summary"})
		return
	}

	c.JSON(http.StatusOK, summary)
}

// Webhook godoc
// @Summary      Paystack webhook
// @Description  Receives transfer events. Requests with a bad signature are rejected.
// @Tags         webhooks
// @Accept       json
// @Produce      json
// @Success      200  {object}  gin.H
// @Failure      401  {object}  gin.H
// @Router       /webhooks/paystack [post]
func (h *Handler) Webhook(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Unable to read request body"})
		return
	}

	signature := c.GetHeader("x-paystack-signature")
	if !gateway.VerifyWebhookSignature(h.webhookSecret, body, signature) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid signature"})
		return
	}

	event, err := gateway.ParseWebhook(body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Malformed webhook payload"})
		return
	}

	if err := h.service.HandleTransferEvent(c.Request.Context(), event); err != nil {
		if errors.Is(err, ErrTransactionNotFound) {
			// Unknown references are acknowledged so the gateway stops retrying.
			c.JSON(http.StatusOK, gin.H{"message": "ignored"})
			return
		}
		logger.Errorf("Webhook processing failed for %s: %v", event.Reference, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to process event"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "processed"})
}

func (h *Handler) writeServiceError(c *gin.Context, err error) {
	switch {
	case IsInsufficientFunds(err):
		c.JSON(http.StatusPaymentRequired, gin.H{"error": err.Error()})
	case errors.Is(err, ErrAccountNotFound), errors.Is(err, ErrTransactionNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, ErrInvalidAmount), errors.Is(err, ErrInvalidChannel), errors.Is(err, ErrBelowMinWithdrawal):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, ErrAccountInactive):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
	case errors.Is(err, ErrAlreadyProcessed), errors.Is(err, ErrInvalidState):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, ErrInvalidApproval):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
	case errors.Is(err, gateway.ErrGatewayUnavailable), errors.Is(err, gateway.ErrChargeNotFound):
		c.JSON(http.StatusBadGateway, gin.H{"error": "Payment gateway error, please try again"})
	default:
		logger.Errorf("Ledger operation failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
	}
}
