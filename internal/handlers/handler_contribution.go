package handlers

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/commonward/coop_ledger_app/internal/core/domain"
	portssvc "github.com/commonward/coop_ledger_app/internal/core/ports/services"
	"github.com/commonward/coop_ledger_app/internal/dto"
	"github.com/commonward/coop_ledger_app/internal/middleware"
)

// contributionHandler handles HTTP requests for the contribution review flow.
type contributionHandler struct {
	contributionService portssvc.ContributionSvcFacade
}

func newContributionHandler(cs portssvc.ContributionSvcFacade) *contributionHandler {
	return &contributionHandler{contributionService: cs}
}

// registerContributionRoutes registers routes related to contributions.
func registerContributionRoutes(rg *gin.RouterGroup, contributionService portssvc.ContributionSvcFacade) {
	h := newContributionHandler(contributionService)

	contributions := rg.Group("/contributions")
	{
		contributions.POST("", h.submitContribution)
		contributions.GET("/:id", h.getContribution)
		contributions.POST("/:id/approve", h.approveContribution)
		contributions.POST("/:id/reject", h.rejectContribution)
	}
	rg.GET("/periods/:id/contributions", h.listPeriodContributions)
}

func (h *contributionHandler) submitContribution(c *gin.Context) {
	logger := middleware.GetLoggerFromCtx(c.Request.Context())

	var req dto.SubmitContributionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logger.Warn("Failed to bind JSON for SubmitContribution", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format: " + err.Error()})
		return
	}
	actorID, ok := requireActor(c)
	if !ok {
		return
	}

	contribution, err := h.contributionService.SubmitContribution(c.Request.Context(), req, actorID)
	if err != nil {
		respondError(c, err)
		return
	}

	logger.Info("Contribution submitted",
		slog.String("contribution_id", contribution.ContributionID),
		slog.String("member_id", contribution.MemberID),
		slog.String("type", string(contribution.Type)),
	)
	c.JSON(http.StatusCreated, contribution)
}

func (h *contributionHandler) getContribution(c *gin.Context) {
	contribution, err := h.contributionService.GetContribution(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, contribution)
}

func (h *contributionHandler) approveContribution(c *gin.Context) {
	actorID, ok := requireActor(c)
	if !ok {
		return
	}
	contribution, err := h.contributionService.ApproveContribution(c.Request.Context(), c.Param("id"), actorID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, contribution)
}

func (h *contributionHandler) rejectContribution(c *gin.Context) {
	var req dto.RejectContributionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format: " + err.Error()})
		return
	}
	actorID, ok := requireActor(c)
	if !ok {
		return
	}

	contribution, err := h.contributionService.RejectContribution(c.Request.Context(), c.Param("id"), req.Reason, actorID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, contribution)
}

func (h *contributionHandler) listPeriodContributions(c *gin.Context) {
	var status *domain.ContributionStatus
	if raw := c.Query("status"); raw != "" {
		s := domain.ContributionStatus(raw)
		status = &s
	}
	contributions, err := h.contributionService.ListContributionsByPeriod(c.Request.Context(), c.Param("id"), status)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"contributions": contributions})
}
