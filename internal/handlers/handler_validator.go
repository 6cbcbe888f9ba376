package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	portssvc "github.com/commonward/coop_ledger_app/internal/core/ports/services"
)

// validatorHandler exposes the batch invariant checks. Reports list every
// violation found instead of stopping at the first.
type validatorHandler struct {
	validatorService portssvc.ValidatorSvcFacade
}

func newValidatorHandler(vs portssvc.ValidatorSvcFacade) *validatorHandler {
	return &validatorHandler{validatorService: vs}
}

// registerValidatorRoutes registers the validation report routes.
func registerValidatorRoutes(rg *gin.RouterGroup, validatorService portssvc.ValidatorSvcFacade) {
	h := newValidatorHandler(validatorService)

	validate := rg.Group("/validate")
	{
		validate.GET("/ledger", h.checkLedger)
		validate.GET("/capital/:memberID", h.checkCapital)
		validate.GET("/allocations/:periodID", h.checkAllocations)
	}
}

func (h *validatorHandler) checkLedger(c *gin.Context) {
	report, err := h.validatorService.CheckLedgerIntegrity(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

func (h *validatorHandler) checkCapital(c *gin.Context) {
	report, err := h.validatorService.CheckCapitalAccountReconciliation(c.Request.Context(), c.Param("memberID"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

func (h *validatorHandler) checkAllocations(c *gin.Context) {
	report, err := h.validatorService.CheckAllocationCompliance(c.Request.Context(), c.Param("periodID"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}
