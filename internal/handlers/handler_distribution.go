package handlers

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	portssvc "github.com/commonward/coop_ledger_app/internal/core/ports/services"
	"github.com/commonward/coop_ledger_app/internal/dto"
	"github.com/commonward/coop_ledger_app/internal/middleware"
)

// distributionHandler handles HTTP requests for the cash payout lifecycle.
type distributionHandler struct {
	distributionService portssvc.DistributionSvcFacade
}

func newDistributionHandler(ds portssvc.DistributionSvcFacade) *distributionHandler {
	return &distributionHandler{distributionService: ds}
}

// registerDistributionRoutes registers routes related to distributions.
func registerDistributionRoutes(rg *gin.RouterGroup, distributionService portssvc.DistributionSvcFacade) {
	h := newDistributionHandler(distributionService)

	distributions := rg.Group("/distributions")
	{
		distributions.POST("", h.scheduleDistribution)
		distributions.GET("/:id", h.getDistribution)
		distributions.POST("/:id/begin", h.beginDistribution)
		distributions.POST("/:id/complete", h.completeDistribution)
		distributions.POST("/:id/fail", h.failDistribution)
		distributions.POST("/:id/cancel", h.cancelDistribution)
	}
}

func (h *distributionHandler) scheduleDistribution(c *gin.Context) {
	logger := middleware.GetLoggerFromCtx(c.Request.Context())

	var req dto.ScheduleDistributionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logger.Warn("Failed to bind JSON for ScheduleDistribution", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format: " + err.Error()})
		return
	}
	actorID, ok := requireActor(c)
	if !ok {
		return
	}

	distribution, err := h.distributionService.ScheduleDistribution(c.Request.Context(), req, actorID)
	if err != nil {
		respondError(c, err)
		return
	}

	logger.Info("Distribution scheduled",
		slog.String("distribution_id", distribution.DistributionID),
		slog.String("allocation_id", distribution.AllocationID),
		slog.String("amount", distribution.Amount.String()),
	)
	c.JSON(http.StatusCreated, distribution)
}

func (h *distributionHandler) getDistribution(c *gin.Context) {
	distribution, err := h.distributionService.GetDistribution(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, distribution)
}

func (h *distributionHandler) beginDistribution(c *gin.Context) {
	actorID, ok := requireActor(c)
	if !ok {
		return
	}
	distribution, err := h.distributionService.BeginDistribution(c.Request.Context(), c.Param("id"), actorID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, distribution)
}

func (h *distributionHandler) completeDistribution(c *gin.Context) {
	actorID, ok := requireActor(c)
	if !ok {
		return
	}
	distribution, err := h.distributionService.CompleteDistribution(c.Request.Context(), c.Param("id"), actorID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, distribution)
}

func (h *distributionHandler) failDistribution(c *gin.Context) {
	var req dto.FailDistributionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format: " + err.Error()})
		return
	}
	actorID, ok := requireActor(c)
	if !ok {
		return
	}

	distribution, err := h.distributionService.FailDistribution(c.Request.Context(), c.Param("id"), req.Reason, actorID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, distribution)
}

func (h *distributionHandler) cancelDistribution(c *gin.Context) {
	var req dto.FailDistributionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format: " + err.Error()})
		return
	}
	actorID, ok := requireActor(c)
	if !ok {
		return
	}

	distribution, err := h.distributionService.CancelDistribution(c.Request.Context(), c.Param("id"), req.Reason, actorID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, distribution)
}
