package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"github.com/mamadbah2/amutrack/internal/domain/models"
	"github.com/mamadbah2/amutrack/internal/repository/mongodb"
	"github.com/mamadbah2/amutrack/internal/server/middleware"
)

// FeedHandler exposes feed batch management over HTTP. Batches are plain CRUD
// plus the guarded deactivate; stock mutations only happen through the
// administration workflow.
type FeedHandler struct {
	feeds  *mongodb.FeedRepository
	logger *zap.Logger
}

// NewFeedHandler constructs the HTTP handler adapter.
func NewFeedHandler(feeds *mongodb.FeedRepository, logger *zap.Logger) *FeedHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FeedHandler{feeds: feeds, logger: logger}
}

// Create registers a batch for the calling farmer.
func (h *FeedHandler) Create(c *gin.Context) {
	actor, _ := middleware.IdentityFrom(c)

	var req models.CreateFeedRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("invalid feed payload", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	feed := &models.FeedBatch{
		FarmerID:             actor.ID,
		Name:                 req.Name,
		PrescriptionRequired: req.PrescriptionRequired,
		ActiveIngredient:     req.ActiveIngredient,
		Concentration:        req.Concentration,
		TotalQuantity:        req.TotalQuantity,
		RemainingQuantity:    req.TotalQuantity,
		Unit:                 req.Unit,
		ExpiryDate:           req.ExpiryDate,
		WithdrawalPeriodDays: req.WithdrawalPeriodDays,
		Active:               true,
	}
	if err := feed.Validate(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.feeds.Insert(c.Request.Context(), feed); err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, feed)
}

// List returns the caller's batches.
func (h *FeedHandler) List(c *gin.Context) {
	actor, _ := middleware.IdentityFrom(c)

	feeds, err := h.feeds.ListByOwner(c.Request.Context(), actor.ID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, feeds)
}

// Get fetches one of the caller's batches.
func (h *FeedHandler) Get(c *gin.Context) {
	actor, _ := middleware.IdentityFrom(c)
	id, ok := h.feedID(c)
	if !ok {
		return
	}

	feed, err := h.feeds.GetByID(c.Request.Context(), id, actor.ID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, feed)
}

// Deactivate retires a batch.
func (h *FeedHandler) Deactivate(c *gin.Context) {
	actor, _ := middleware.IdentityFrom(c)
	id, ok := h.feedID(c)
	if !ok {
		return
	}

	if err := h.feeds.Deactivate(c.Request.Context(), id, actor.ID); err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *FeedHandler) feedID(c *gin.Context) (primitive.ObjectID, bool) {
	id, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "malformed feed id"})
		return primitive.NilObjectID, false
	}
	return id, true
}
