package handlers

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	portssvc "github.com/commonward/coop_ledger_app/internal/core/ports/services"
	"github.com/commonward/coop_ledger_app/internal/dto"
	"github.com/commonward/coop_ledger_app/internal/middleware"
)

// periodHandler handles HTTP requests for period lifecycle and the
// period-close workflow.
type periodHandler struct {
	periodService portssvc.PeriodSvcFacade
	closeService  portssvc.PeriodCloseSvcFacade
}

func newPeriodHandler(ps portssvc.PeriodSvcFacade, cs portssvc.PeriodCloseSvcFacade) *periodHandler {
	return &periodHandler{periodService: ps, closeService: cs}
}

// registerPeriodRoutes registers routes related to periods and their close
// workflow. Period-scoped transaction listing lives here too.
func registerPeriodRoutes(rg *gin.RouterGroup, periodService portssvc.PeriodSvcFacade, closeService portssvc.PeriodCloseSvcFacade, ledgerService portssvc.LedgerSvcFacade) {
	h := newPeriodHandler(periodService, closeService)

	periods := rg.Group("/periods")
	{
		periods.POST("", h.openPeriod)
		periods.GET("", h.listPeriods)
		periods.GET("/:id", h.getPeriod)
		periods.POST("/:id/lock", h.lockPeriod)
		periods.GET("/:id/transactions", listPeriodTransactions(ledgerService))

		periods.POST("/:id/close", h.initiateClose)
		periods.GET("/:id/close", h.getCloseWorkflow)
		periods.POST("/:id/close/resume", h.resumeClose)
		periods.POST("/:id/close/approvals", h.approveClose)
	}
}

func (h *periodHandler) openPeriod(c *gin.Context) {
	logger := middleware.GetLoggerFromCtx(c.Request.Context())

	var req dto.OpenPeriodRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logger.Warn("Failed to bind JSON for OpenPeriod", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format: " + err.Error()})
		return
	}
	actorID, ok := requireActor(c)
	if !ok {
		return
	}

	period, err := h.periodService.OpenPeriod(c.Request.Context(), req, actorID)
	if err != nil {
		respondError(c, err)
		return
	}

	logger.Info("Period opened", slog.String("period_id", period.PeriodID), slog.String("name", period.Name))
	c.JSON(http.StatusCreated, period)
}

func (h *periodHandler) getPeriod(c *gin.Context) {
	period, err := h.periodService.GetPeriod(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, period)
}

func (h *periodHandler) listPeriods(c *gin.Context) {
	limit, offset := parseLimitOffset(c)
	periods, err := h.periodService.ListPeriods(c.Request.Context(), limit, offset)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"periods": periods})
}

func (h *periodHandler) lockPeriod(c *gin.Context) {
	actorID, ok := requireActor(c)
	if !ok {
		return
	}
	period, err := h.periodService.LockPeriod(c.Request.Context(), c.Param("id"), actorID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, period)
}

// initiateClose starts the period-close workflow with the allocable surplus
// and runs it forward until human approval is needed.
func (h *periodHandler) initiateClose(c *gin.Context) {
	logger := middleware.GetLoggerFromCtx(c.Request.Context())

	var req dto.InitiateCloseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format: " + err.Error()})
		return
	}
	actorID, ok := requireActor(c)
	if !ok {
		return
	}

	workflow, err := h.closeService.InitiateClose(c.Request.Context(), c.Param("id"), req.Surplus, actorID)
	if err != nil {
		respondError(c, err)
		return
	}

	logger.Info("Period close initiated",
		slog.String("period_id", workflow.PeriodID),
		slog.String("status", string(workflow.Status)),
		slog.String("surplus", req.Surplus.String()),
	)
	c.JSON(http.StatusAccepted, workflow)
}

func (h *periodHandler) getCloseWorkflow(c *gin.Context) {
	workflow, err := h.closeService.GetWorkflow(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, workflow)
}

func (h *periodHandler) resumeClose(c *gin.Context) {
	actorID, ok := requireActor(c)
	if !ok {
		return
	}
	workflow, err := h.closeService.Resume(c.Request.Context(), c.Param("id"), actorID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, workflow)
}

func (h *periodHandler) approveClose(c *gin.Context) {
	logger := middleware.GetLoggerFromCtx(c.Request.Context())

	var req dto.ApproveCloseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format: " + err.Error()})
		return
	}

	workflow, err := h.closeService.RecordApproval(c.Request.Context(), c.Param("id"), req.ApproverID)
	if err != nil {
		respondError(c, err)
		return
	}

	logger.Info("Close approval recorded",
		slog.String("period_id", workflow.PeriodID),
		slog.String("approver_id", req.ApproverID),
		slog.Int("approvals", len(workflow.Approvals)),
	)
	c.JSON(http.StatusOK, workflow)
}
