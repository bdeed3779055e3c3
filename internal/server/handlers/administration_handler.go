package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"github.com/mamadbah2/amutrack/internal/domain/models"
	"github.com/mamadbah2/amutrack/internal/server/middleware"
	"github.com/mamadbah2/amutrack/internal/service/administration"
)

// AdministrationHandler exposes the feed administration workflow over HTTP.
type AdministrationHandler struct {
	svc    *administration.Service
	logger *zap.Logger
}

// NewAdministrationHandler constructs the HTTP handler adapter.
func NewAdministrationHandler(svc *administration.Service, logger *zap.Logger) *AdministrationHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AdministrationHandler{svc: svc, logger: logger}
}

// Create starts a new administration for the calling farmer.
func (h *AdministrationHandler) Create(c *gin.Context) {
	actor, _ := middleware.IdentityFrom(c)

	var req models.CreateAdministrationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("invalid create payload", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	rec, err := h.svc.Create(c.Request.Context(), actor, req)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusCreated, rec)
}

// Get fetches a single record.
func (h *AdministrationHandler) Get(c *gin.Context) {
	actor, _ := middleware.IdentityFrom(c)
	id, ok := h.recordID(c)
	if !ok {
		return
	}

	rec, err := h.svc.Get(c.Request.Context(), actor, id)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, rec)
}

// Update patches the mutable fields of a record.
func (h *AdministrationHandler) Update(c *gin.Context) {
	actor, _ := middleware.IdentityFrom(c)
	id, ok := h.recordID(c)
	if !ok {
		return
	}

	var req models.UpdateAdministrationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("invalid update payload", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	rec, err := h.svc.Update(c.Request.Context(), actor, id, req)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, rec)
}

// Delete removes a still-pending record and returns its stock.
func (h *AdministrationHandler) Delete(c *gin.Context) {
	actor, _ := middleware.IdentityFrom(c)
	id, ok := h.recordID(c)
	if !ok {
		return
	}

	if err := h.svc.Delete(c.Request.Context(), actor, id); err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Complete closes an active record.
func (h *AdministrationHandler) Complete(c *gin.Context) {
	actor, _ := middleware.IdentityFrom(c)
	id, ok := h.recordID(c)
	if !ok {
		return
	}

	rec, err := h.svc.Complete(c.Request.Context(), actor, id)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, rec)
}

// Approve is the veterinarian sign-off.
func (h *AdministrationHandler) Approve(c *gin.Context) {
	actor, _ := middleware.IdentityFrom(c)
	id, ok := h.recordID(c)
	if !ok {
		return
	}

	rec, err := h.svc.Approve(c.Request.Context(), actor, id)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, rec)
}

// Reject refuses a pending record with a mandatory reason.
func (h *AdministrationHandler) Reject(c *gin.Context) {
	actor, _ := middleware.IdentityFrom(c)
	id, ok := h.recordID(c)
	if !ok {
		return
	}

	var req models.RejectAdministrationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("invalid reject payload", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "rejection reason is required"})
		return
	}

	rec, err := h.svc.Reject(c.Request.Context(), actor, id, req.Reason)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, rec)
}

func (h *AdministrationHandler) recordID(c *gin.Context) (primitive.ObjectID, bool) {
	id, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "malformed record id"})
		return primitive.NilObjectID, false
	}
	return id, true
}
