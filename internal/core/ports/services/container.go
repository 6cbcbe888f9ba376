package services

// ServiceContainer holds all service facades for injection into handlers.
type ServiceContainer struct {
	Ledger       LedgerSvcFacade
	Period       PeriodSvcFacade
	Member       MemberSvcFacade
	Contribution ContributionSvcFacade
	Allocation   AllocationSvcFacade
	Distribution DistributionSvcFacade
	PeriodClose  PeriodCloseSvcFacade
	Validator    ValidatorSvcFacade
	Reporting    ReportingSvcFacade
}
