package repositories

// RepositoryProvider holds all repository interfaces needed by services,
// the projector, and the reactors.
type RepositoryProvider struct {
	EventStoreRepo     EventStoreRepositoryFacade
	AccountRepo        AccountRepositoryFacade
	TransactionRepo    TransactionRepositoryFacade
	PeriodRepo         PeriodRepositoryFacade
	MemberRepo         MemberRepositoryFacade
	ContributionRepo   ContributionRepositoryFacade
	ClaimRepo          ClaimRepositoryFacade
	AllocationRepo     AllocationRepositoryFacade
	DistributionRepo   DistributionRepositoryFacade
	CapitalAccountRepo CapitalAccountRepositoryFacade
	WorkflowRepo       WorkflowRepositoryFacade
	IdempotencyRepo    IdempotencyRepositoryFacade
	CheckpointRepo     CheckpointRepositoryFacade
	ProjectionAdmin    ProjectionAdminFacade
}
