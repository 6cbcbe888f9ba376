package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	portssvc "github.com/commonward/coop_ledger_app/internal/core/ports/services"
)

// allocationHandler handles HTTP requests for allocation review.
type allocationHandler struct {
	allocationService   portssvc.AllocationSvcFacade
	distributionService portssvc.DistributionSvcFacade
}

func newAllocationHandler(as portssvc.AllocationSvcFacade, ds portssvc.DistributionSvcFacade) *allocationHandler {
	return &allocationHandler{allocationService: as, distributionService: ds}
}

// registerAllocationRoutes registers routes related to allocations.
func registerAllocationRoutes(rg *gin.RouterGroup, allocationService portssvc.AllocationSvcFacade, distributionService portssvc.DistributionSvcFacade) {
	h := newAllocationHandler(allocationService, distributionService)

	allocations := rg.Group("/allocations")
	{
		allocations.GET("/:id", h.getAllocation)
		allocations.POST("/:id/propose", h.proposeAllocation)
		allocations.POST("/:id/approve", h.approveAllocation)
	}
	rg.GET("/periods/:id/allocations", h.listPeriodAllocations)
	rg.GET("/periods/:id/distributions", h.listPeriodDistributions)
}

func (h *allocationHandler) getAllocation(c *gin.Context) {
	allocation, err := h.allocationService.GetAllocation(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, allocation)
}

func (h *allocationHandler) proposeAllocation(c *gin.Context) {
	actorID, ok := requireActor(c)
	if !ok {
		return
	}
	allocation, err := h.allocationService.ProposeAllocation(c.Request.Context(), c.Param("id"), actorID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, allocation)
}

func (h *allocationHandler) approveAllocation(c *gin.Context) {
	actorID, ok := requireActor(c)
	if !ok {
		return
	}
	allocation, err := h.allocationService.ApproveAllocation(c.Request.Context(), c.Param("id"), actorID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, allocation)
}

func (h *allocationHandler) listPeriodAllocations(c *gin.Context) {
	allocations, err := h.allocationService.ListAllocationsByPeriod(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"allocations": allocations})
}

func (h *allocationHandler) listPeriodDistributions(c *gin.Context) {
	distributions, err := h.distributionService.ListDistributionsByPeriod(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"distributions": distributions})
}
