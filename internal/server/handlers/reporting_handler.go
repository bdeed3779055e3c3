package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/mamadbah2/amutrack/internal/domain/models"
	"github.com/mamadbah2/amutrack/internal/server/middleware"
	"github.com/mamadbah2/amutrack/internal/service/reporting"
)

// ReportingHandler exposes the read-only query surface.
type ReportingHandler struct {
	svc    *reporting.Service
	logger *zap.Logger
}

// NewReportingHandler constructs the HTTP handler adapter.
func NewReportingHandler(svc *reporting.Service, logger *zap.Logger) *ReportingHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReportingHandler{svc: svc, logger: logger}
}

// List returns administrations visible to the caller, filtered by the query
// parameters status, animal, from and to.
func (h *ReportingHandler) List(c *gin.Context) {
	actor, _ := middleware.IdentityFrom(c)

	filter := models.AdministrationFilter{
		Status:      models.AdministrationStatus(c.Query("status")),
		AnimalTagID: c.Query("animal"),
	}
	if from, ok := parseDateQuery(c, "from"); ok {
		filter.From = from
	}
	if to, ok := parseDateQuery(c, "to"); ok {
		filter.To = to
	}

	recs, err := h.svc.ListAdministrations(c.Request.Context(), actor, filter)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, recs)
}

// PendingQueue lists the records awaiting the calling veterinarian.
func (h *ReportingHandler) PendingQueue(c *gin.Context) {
	actor, _ := middleware.IdentityFrom(c)

	recs, err := h.svc.PendingQueue(c.Request.Context(), actor)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, recs)
}

// ActivePrograms lists the calling farmer's running administrations.
func (h *ReportingHandler) ActivePrograms(c *gin.Context) {
	actor, _ := middleware.IdentityFrom(c)

	recs, err := h.svc.ActivePrograms(c.Request.Context(), actor)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, recs)
}

// AnimalsInWithdrawal lists the calling farmer's animals under withdrawal.
func (h *ReportingHandler) AnimalsInWithdrawal(c *gin.Context) {
	actor, _ := middleware.IdentityFrom(c)

	animals, err := h.svc.AnimalsInWithdrawal(c.Request.Context(), actor)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, animals)
}

// AnimalHistory lists every administration that touched the given tag.
func (h *ReportingHandler) AnimalHistory(c *gin.Context) {
	actor, _ := middleware.IdentityFrom(c)

	recs, err := h.svc.AnimalHistory(c.Request.Context(), actor, c.Param("tagId"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, recs)
}

func parseDateQuery(c *gin.Context, key string) (time.Time, bool) {
	value := c.Query(key)
	if value == "" {
		return time.Time{}, false
	}
	t, err := time.Parse("2006-01-02", value)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}
