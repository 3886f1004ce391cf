package booking

import (
	"errors"
	"net/http"
	"strconv"

	"stocksave/internal/auth"
	"stocksave/internal/inventory"
	"stocksave/internal/ledger"
	"stocksave/internal/logger"

	"github.com/gin-gonic/gin"
)

type Handler struct {
	service Service
}

func NewHandler(service Service) *Handler {
	return &Handler{service: service}
}

type BookRequest struct {
	Slots int `json:"slots" binding:"required,min=1"`
}

type BookingStatusRequest struct {
	Status string `json:"status" binding:"required,oneof=Completed Cancelled"`
}

// BookSlot godoc
// @Summary      Book slots
// @Description  Books slots from a pool, debiting the savings balance atomically.
// @Tags         bookings
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        poolID   path      int          true  "Inventory pool ID"
// @Param        request  body      BookRequest  true  "Slot count"
// @Success      201      {object}  BookResult
// @Failure      400      {object}  gin.H
// @Failure      402      {object}  gin.H
// @Failure      404      {object}  gin.H
// @Failure      409      {object}  gin.H
// @Router       /pools/{poolID}/book [post]
func (h *Handler) BookSlot(c *gin.Context) {
	userID, ok := auth.GetUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	poolID, err := strconv.Atoi(c.Param("poolID"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid pool ID"})
		return
	}

	var req BookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "slots must be a positive integer"})
		return
	}

	result, err := h.service.BookSlot(c.Request.Context(), userID, poolID, req.Slots)
	if err != nil {
		h.writeServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, result)
}

// MyBookings godoc
// @Summary      List my bookings
// @Description  Returns the authenticated user's bookings, newest first.
// @Tags         bookings
// @Security     BearerAuth
// @Produce      json
// @Success      200  {array}   Allocation
// @Failure      500  {object}  gin.H
// @Router       /bookings [get]
func (h *Handler) MyBookings(c *gin.Context) {
	userID, ok := auth.GetUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	bookings, err := h.service.MyBookings(c.Request.Context(), userID)
	if err != nil {
		if errors.Is(err, ledger.ErrAccountNotFound) {
			c.JSON(http.StatusOK, []Allocation{})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch bookings"})
		return
	}

	c.JSON(http.StatusOK, bookings)
}

// ListAll godoc
// @Summary      List all bookings
// @Description  Returns bookings across all accounts, optionally by status. Owner only.
// @Tags         admin
// @Security     BearerAuth
// @Produce      json
// @Param        status  query     string  false  "Filter by status (Pending, Completed, Cancelled)"
// @Param        limit   query     int     false  "Page size (default 50)"
// @Param        offset  query     int     false  "Offset"
// @Success      200     {array}   Allocation
// @Failure      500     {object}  gin.H
// @Router       /admin/bookings [get]
func (h *Handler) ListAll(c *gin.Context) {
	status := c.Query("status")
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	bookings, err := h.service.AllBookings(c.Request.Context(), status, limit, offset)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch bookings"})
		return
	}

	c.JSON(http.StatusOK, bookings)
}

// UpdateStatus godoc
// @Summary      Fulfil or cancel a booking
// @Description  Completed marks the order ready; Cancelled refunds and restores stock. Owner only.
// @Tags         admin
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        bookingID  path      int                   true  "Booking ID"
// @Param        request    body      BookingStatusRequest  true  "Target status"
// @Success      200        {object}  gin.H
// @Failure      400        {object}  gin.H
// @Failure      404        {object}  gin.H
// @Failure      409        {object}  gin.H
// @Router       /admin/bookings/{bookingID}/status [patch]
func (h *Handler) UpdateStatus(c *gin.Context) {
	bookingID, err := strconv.Atoi(c.Param("bookingID"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid booking ID"})
		return
	}

	var req BookingStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "status must be Completed or Cancelled"})
		return
	}

	if err := h.service.UpdateBookingStatus(c.Request.Context(), bookingID, req.Status); err != nil {
		h.writeServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Booking updated"})
}

func (h *Handler) writeServiceError(c *gin.Context, err error) {
	switch {
	case IsInsufficientBalance(err):
		c.JSON(http.StatusPaymentRequired, gin.H{"error": err.Error()})
	case inventory.IsInsufficientSlots(err), inventory.IsInsufficientStock(err):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, inventory.ErrPoolNotFound), errors.Is(err, ErrAllocationNotFound), errors.Is(err, ledger.ErrAccountNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, inventory.ErrPoolClosed), errors.Is(err, ErrAlreadyCancelled):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, ErrInvalidSlotCount), errors.Is(err, ErrInvalidStatus):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, ledger.ErrAccountInactive):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
	default:
		logger.Errorf("Booking operation failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
	}
}
