package handlers

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	portssvc "github.com/commonward/coop_ledger_app/internal/core/ports/services"
	"github.com/commonward/coop_ledger_app/internal/dto"
	"github.com/commonward/coop_ledger_app/internal/middleware"
)

// memberHandler handles HTTP requests related to cooperative members and
// their member-scoped listings.
type memberHandler struct {
	memberService       portssvc.MemberSvcFacade
	contributionService portssvc.ContributionSvcFacade
	allocationService   portssvc.AllocationSvcFacade
	reportingService    portssvc.ReportingSvcFacade
}

func newMemberHandler(ms portssvc.MemberSvcFacade, cs portssvc.ContributionSvcFacade, as portssvc.AllocationSvcFacade, rs portssvc.ReportingSvcFacade) *memberHandler {
	return &memberHandler{
		memberService:       ms,
		contributionService: cs,
		allocationService:   as,
		reportingService:    rs,
	}
}

// registerMemberRoutes registers routes related to members.
func registerMemberRoutes(rg *gin.RouterGroup, memberService portssvc.MemberSvcFacade, contributionService portssvc.ContributionSvcFacade, allocationService portssvc.AllocationSvcFacade, reportingService portssvc.ReportingSvcFacade) {
	h := newMemberHandler(memberService, contributionService, allocationService, reportingService)

	members := rg.Group("/members")
	{
		members.POST("", h.enrollMember)
		members.GET("", h.listMembers)
		members.GET("/:id", h.getMember)
		members.GET("/:id/contributions", h.listMemberContributions)
		members.GET("/:id/allocations", h.listMemberAllocations)
		members.GET("/:id/capital-statement", h.getCapitalStatement)
	}
}

func (h *memberHandler) enrollMember(c *gin.Context) {
	logger := middleware.GetLoggerFromCtx(c.Request.Context())

	var req dto.EnrollMemberRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logger.Warn("Failed to bind JSON for EnrollMember", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format: " + err.Error()})
		return
	}
	actorID, ok := requireActor(c)
	if !ok {
		return
	}

	member, err := h.memberService.EnrollMember(c.Request.Context(), req, actorID)
	if err != nil {
		respondError(c, err)
		return
	}

	logger.Info("Member enrolled", slog.String("member_id", member.MemberID), slog.String("name", member.Name))
	c.JSON(http.StatusCreated, member)
}

func (h *memberHandler) getMember(c *gin.Context) {
	member, err := h.memberService.GetMember(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, member)
}

func (h *memberHandler) listMembers(c *gin.Context) {
	limit, offset := parseLimitOffset(c)
	members, err := h.memberService.ListMembers(c.Request.Context(), limit, offset)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"members": members})
}

func (h *memberHandler) listMemberContributions(c *gin.Context) {
	limit, offset := parseLimitOffset(c)
	contributions, err := h.contributionService.ListContributionsByMember(c.Request.Context(), c.Param("id"), limit, offset)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"contributions": contributions})
}

func (h *memberHandler) listMemberAllocations(c *gin.Context) {
	allocations, err := h.allocationService.ListAllocationsByMember(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"allocations": allocations})
}

func (h *memberHandler) getCapitalStatement(c *gin.Context) {
	statement, err := h.reportingService.CapitalStatement(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, statement)
}
