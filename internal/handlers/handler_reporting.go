package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	portssvc "github.com/commonward/coop_ledger_app/internal/core/ports/services"
)

// reportingHandler serves the compliance exports. All reads come from
// projections; nothing here mutates state.
type reportingHandler struct {
	reportingService portssvc.ReportingSvcFacade
}

func newReportingHandler(rs portssvc.ReportingSvcFacade) *reportingHandler {
	return &reportingHandler{reportingService: rs}
}

// registerReportingRoutes registers period-scoped report routes. The member
// capital statement is registered with the member routes.
func registerReportingRoutes(rg *gin.RouterGroup, reportingService portssvc.ReportingSvcFacade) {
	h := newReportingHandler(reportingService)

	rg.GET("/periods/:id/reports/patronage-summary", h.getPatronageSummary)
	rg.GET("/periods/:id/reports/allocation-statement", h.getAllocationStatement)
}

func (h *reportingHandler) getPatronageSummary(c *gin.Context) {
	summary, err := h.reportingService.PatronageSummary(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}

func (h *reportingHandler) getAllocationStatement(c *gin.Context) {
	surplus, ok := parseSurplusQuery(c)
	if !ok {
		return
	}
	statement, err := h.reportingService.AllocationStatement(c.Request.Context(), c.Param("id"), surplus)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, statement)
}

// parseSurplusQuery reads the declared surplus from the query string. Reports
// and compliance checks compare allocations against it.
func parseSurplusQuery(c *gin.Context) (decimal.Decimal, bool) {
	raw := c.Query("surplus")
	if raw == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "surplus query parameter is required"})
		return decimal.Zero, false
	}
	surplus, err := decimal.NewFromString(raw)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "surplus must be a decimal number"})
		return decimal.Zero, false
	}
	return surplus, true
}
