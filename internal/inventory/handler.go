package inventory

import (
	"errors"
	"net/http"
	"strconv"

	"stocksave/internal/logger"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

type Handler struct {
	service Service
}

func NewHandler(service Service) *Handler {
	return &Handler{service: service}
}

type AddStockRequest struct {
	ProductVariantID int             `json:"product_variant_id" binding:"required"`
	VariantName      string          `json:"variant_name" binding:"required"`
	UnitPrice        decimal.Decimal `json:"unit_price" binding:"required"`
	TotalSlots       int             `json:"total_slots" binding:"required,min=1"`
}

// AddStock godoc
// @Summary      Add stock
// @Description  Creates a bookable pool and its paired stock batch. Owner only.
// @Tags         admin
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        request  body      AddStockRequest  true  "Stock details"
// @Success      201      {object}  AddStockResult
// @Failure      400      {object}  gin.H
// @Router       /admin/stock [post]
func (h *Handler) AddStock(c *gin.Context) {
	var req AddStockRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "variant, name, unit price and slot count are required"})
		return
	}

	result, err := h.service.AddStock(c.Request.Context(), req.ProductVariantID, req.VariantName, req.UnitPrice, req.TotalSlots)
	if errors.Is(err, ErrInvalidQuantity) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unit price and slot count must be positive"})
		return
	}
	if err != nil {
		logger.Errorf("Failed to add stock: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to add stock"})
		return
	}

	c.JSON(http.StatusCreated, result)
}

// StockBoard godoc
// @Summary      Stock board
// @Description  Lists every pool with its remaining slots and price.
// @Tags         inventory
// @Security     BearerAuth
// @Produce      json
// @Success      200  {array}   StockBoardEntry
// @Failure      500  {object}  gin.H
// @Router       /stock [get]
func (h *Handler) StockBoard(c *gin.Context) {
	entries, err := h.service.StockBoard(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load stock board"})
		return
	}

	c.JSON(http.StatusOK, entries)
}

// ListBatches godoc
// @Summary      List batches
// @Description  Lists a variant's stock batches in FIFO order. Owner only.
// @Tags         admin
// @Security     BearerAuth
// @Produce      json
// @Param        variantID  path      int  true  "Product variant ID"
// @Success      200        {array}   Batch
// @Failure      400        {object}  gin.H
// @Router       /admin/stock/{variantID}/batches [get]
func (h *Handler) ListBatches(c *gin.Context) {
	variantID, err := strconv.Atoi(c.Param("variantID"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid variant ID"})
		return
	}

	batches, err := h.service.Batches(c.Request.Context(), variantID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load batches"})
		return
	}

	c.JSON(http.StatusOK, batches)
}

// LowStock godoc
// @Summary      Low stock report
// @Description  Variants whose remaining physical stock is at or below the threshold. Owner only.
// @Tags         admin
// @Security     BearerAuth
// @Produce      json
// @Param        threshold  query     int  false  "Threshold (default 5)"
// @Success      200        {array}   LowStockEntry
// @Failure      500        {object}  gin.H
// @Router       /admin/stock/low [get]
func (h *Handler) LowStock(c *gin.Context) {
	threshold, _ := strconv.Atoi(c.DefaultQuery("threshold", "5"))

	entries, err := h.service.LowStock(c.Request.Context(), threshold)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load low stock report"})
		return
	}

	c.JSON(http.StatusOK, entries)
}

// FullyBooked godoc
// @Summary      Fully booked pools
// @Description  Pools with no slots remaining. Owner only.
// @Tags         admin
// @Security     BearerAuth
// @Produce      json
// @Success      200  {array}   Pool
// @Failure      500  {object}  gin.H
// @Router       /admin/stock/fully-booked [get]
func (h *Handler) FullyBooked(c *gin.Context) {
	pools, err := h.service.FullyBooked(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load fully booked pools"})
		return
	}

	c.JSON(http.StatusOK, pools)
}
