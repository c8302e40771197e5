package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"market-service/internal/market"
	"market-service/internal/models"
	"market-service/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shopspring/decimal"
)

// Handler contains HTTP handlers for the trusted in-process front-end
type Handler struct {
	engine  *market.Engine
	catalog *market.CatalogView
}

// NewHandler creates a new HTTP handler
func NewHandler(engine *market.Engine, catalog *market.CatalogView) *Handler {
	return &Handler{
		engine:  engine,
		catalog: catalog,
	}
}

// SetupRoutes sets up HTTP routes
func (h *Handler) SetupRoutes(router *gin.Engine) {
	router.Use(gin.Recovery())
	router.Use(prometheusMiddleware())
	router.Use(gin.Logger())

	router.GET("/health", h.healthCheck)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/api/v1")
	{
		v1.POST("/listings", h.createListing)
		v1.POST("/listings/:id/purchase", h.purchase)
		v1.POST("/owners/:id/collect", h.collectExpired)
		v1.GET("/catalog", h.catalogPage)
	}
}

// healthCheck handles health check requests
func (h *Handler) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
		"time":   time.Now().Unix(),
	})
}

// CreateListingRequest represents a request to list an item
type CreateListingRequest struct {
	SellerID    uuid.UUID             `json:"seller_id" binding:"required"`
	Item        models.ItemDescriptor `json:"item" binding:"required"`
	Price       decimal.Decimal       `json:"price"`
	MaxListings int                   `json:"max_listings,omitempty"`
}

// createListing handles listing creation
func (h *Handler) createListing(c *gin.Context) {
	var req CreateListingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
		return
	}

	listing, err := h.engine.CreateListing(c.Request.Context(),
		req.SellerID, req.Item, req.Price, req.MaxListings)
	if err != nil {
		status, msg := statusFor(err)
		c.JSON(status, gin.H{"error": msg, "details": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, listing)
}

// PurchaseRequest identifies the buyer
type PurchaseRequest struct {
	BuyerID uuid.UUID `json:"buyer_id" binding:"required"`
}

// purchase handles purchase settlement
func (h *Handler) purchase(c *gin.Context) {
	listingID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid listing ID"})
		return
	}

	var req PurchaseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
		return
	}

	if err := h.engine.Purchase(c.Request.Context(), req.BuyerID, listingID); err != nil {
		status, msg := statusFor(err)
		c.JSON(status, gin.H{"error": msg, "details": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "purchased"})
}

// collectExpired hands back the owner's expired listings
func (h *Handler) collectExpired(c *gin.Context) {
	ownerID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid owner ID"})
		return
	}

	items, err := h.engine.CollectExpired(c.Request.Context(), ownerID)
	if err != nil {
		status, msg := statusFor(err)
		c.JSON(status, gin.H{"error": msg, "details": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"items": items})
}

// catalogPage renders one page of the active catalog
func (h *Handler) catalogPage(c *gin.Context) {
	page := 0
	if p := c.Query("page"); p != "" {
		parsed, err := strconv.Atoi(p)
		if err != nil || parsed < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid page"})
			return
		}
		page = parsed
	}

	snapshot, err := h.catalog.Seek(c.Request.Context(), page)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Failed to load catalog",
			"details": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, snapshot)
}

// statusFor maps engine errors onto HTTP statuses
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, models.ErrInvalidPrice),
		errors.Is(err, models.ErrInvalidQuantity),
		errors.Is(err, models.ErrInvalidItem):
		return http.StatusBadRequest, "Invalid listing"
	case errors.Is(err, models.ErrCapacityExceeded):
		return http.StatusConflict, "Listing limit reached"
	case errors.Is(err, models.ErrInsufficientHoldings):
		return http.StatusConflict, "Not enough of the item held"
	case errors.Is(err, models.ErrInsufficientFunds):
		return http.StatusPaymentRequired, "Insufficient funds"
	case errors.Is(err, models.ErrNoLongerAvailable):
		return http.StatusGone, "Listing no longer available"
	default:
		return http.StatusInternalServerError, "Internal error"
	}
}

// prometheusMiddleware collects HTTP metrics
func prometheusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Writer.Status())

		util.HTTPRequestDuration.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Observe(duration)

		util.HTTPRequestsTotal.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Inc()
	}
}
