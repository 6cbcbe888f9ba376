package services

import (
	portsrepo "github.com/commonward/coop_ledger_app/internal/core/ports/repositories"
	portssvc "github.com/commonward/coop_ledger_app/internal/core/ports/services"
	"github.com/commonward/coop_ledger_app/internal/eventbus"
	"github.com/commonward/coop_ledger_app/internal/platform/config"
)

// NewServiceContainer creates the service container with properly initialized
// dependencies. The formula engine is built once from config and shared.
func NewServiceContainer(cfg *config.Config, repos portsrepo.RepositoryProvider, bus *eventbus.Bus) *portssvc.ServiceContainer {
	formula := NewFormulaEngine(cfg.FormulaConfig())

	container := &portssvc.ServiceContainer{}
	container.Ledger = NewLedgerService(repos, bus)
	container.Period = NewPeriodService(repos, bus)
	container.Member = NewMemberService(repos, bus)
	container.Contribution = NewContributionService(repos, bus)
	container.Allocation = NewAllocationService(repos, bus)
	container.Distribution = NewDistributionService(repos, bus)
	container.PeriodClose = NewPeriodCloseService(repos, bus, container.Period, container.Ledger, formula, cfg.CloseApprovalQuorum, cfg.EquitySuspenseAccountID)
	container.Validator = NewValidatorService(repos, bus, formula)
	container.Reporting = NewReportingService(repos, bus)
	return container
}

// Compile-time interface checks.
var (
	_ portssvc.LedgerSvcFacade       = (*LedgerService)(nil)
	_ portssvc.PeriodSvcFacade       = (*PeriodService)(nil)
	_ portssvc.MemberSvcFacade       = (*MemberService)(nil)
	_ portssvc.ContributionSvcFacade = (*ContributionService)(nil)
	_ portssvc.AllocationSvcFacade   = (*AllocationService)(nil)
	_ portssvc.DistributionSvcFacade = (*DistributionService)(nil)
	_ portssvc.PeriodCloseSvcFacade  = (*PeriodCloseService)(nil)
	_ portssvc.ValidatorSvcFacade    = (*ValidatorService)(nil)
	_ portssvc.ReportingSvcFacade    = (*ReportingService)(nil)
)
