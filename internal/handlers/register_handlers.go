package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	portssvc "github.com/commonward/coop_ledger_app/internal/core/ports/services"
	"github.com/commonward/coop_ledger_app/internal/middleware"
	"github.com/commonward/coop_ledger_app/internal/platform/config"
)

// RegisterRoutes sets up all application routes, injecting dependencies using interfaces
func RegisterRoutes(
	r *gin.Engine,
	cfg *config.Config,
	services *portssvc.ServiceContainer,
) {
	registerBindingValidations()

	r.GET("/health", func(c *gin.Context) {
		c.String(200, "OK")
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	setupAPIV1Routes(r, cfg, services)
}

// setupAPIV1Routes configures the /api/v1 group and delegates to specific entity route registrations
func setupAPIV1Routes(
	r *gin.Engine,
	cfg *config.Config,
	service *portssvc.ServiceContainer,
) {
	v1 := r.Group("/api/v1", middleware.ActorMiddleware())

	registerAccountRoutes(v1, service.Ledger)
	registerTransactionRoutes(v1, service.Ledger)
	registerPeriodRoutes(v1, service.Period, service.PeriodClose, service.Ledger)
	registerMemberRoutes(v1, service.Member, service.Contribution, service.Allocation, service.Reporting)
	registerContributionRoutes(v1, service.Contribution)
	registerAllocationRoutes(v1, service.Allocation, service.Distribution)
	registerDistributionRoutes(v1, service.Distribution)
	registerReportingRoutes(v1, service.Reporting)
	registerValidatorRoutes(v1, service.Validator)
}
