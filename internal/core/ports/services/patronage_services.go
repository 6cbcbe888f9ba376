package services

import (
	"context"

	"github.com/commonward/coop_ledger_app/internal/core/domain"
	"github.com/commonward/coop_ledger_app/internal/dto"
	"github.com/shopspring/decimal"
)

// MemberSvcFacade manages cooperative members.
type MemberSvcFacade interface {
	EnrollMember(ctx context.Context, req dto.EnrollMemberRequest, actorID string) (*domain.Member, error)
	GetMember(ctx context.Context, memberID string) (*domain.Member, error)
	ListMembers(ctx context.Context, limit, offset int) ([]domain.Member, error)
}

// ContributionSvcFacade manages the contribution state machine.
type ContributionSvcFacade interface {
	SubmitContribution(ctx context.Context, req dto.SubmitContributionRequest, actorID string) (*domain.Contribution, error)
	ApproveContribution(ctx context.Context, contributionID string, actorID string) (*domain.Contribution, error)
	RejectContribution(ctx context.Context, contributionID string, reason string, actorID string) (*domain.Contribution, error)
	GetContribution(ctx context.Context, contributionID string) (*domain.Contribution, error)
	ListContributionsByPeriod(ctx context.Context, periodID string, status *domain.ContributionStatus) ([]domain.Contribution, error)
	ListContributionsByMember(ctx context.Context, memberID string, limit, offset int) ([]domain.Contribution, error)
}

// AllocationSvcFacade manages allocation lifecycle outside the saga.
type AllocationSvcFacade interface {
	ProposeAllocation(ctx context.Context, allocationID string, actorID string) (*domain.Allocation, error)
	ApproveAllocation(ctx context.Context, allocationID string, actorID string) (*domain.Allocation, error)
	GetAllocation(ctx context.Context, allocationID string) (*domain.Allocation, error)
	ListAllocationsByPeriod(ctx context.Context, periodID string) ([]domain.Allocation, error)
	ListAllocationsByMember(ctx context.Context, memberID string) ([]domain.Allocation, error)
}

// DistributionSvcFacade manages the cash payout lifecycle. Actual payment
// execution is an external collaborator; only status moves through here.
type DistributionSvcFacade interface {
	ScheduleDistribution(ctx context.Context, req dto.ScheduleDistributionRequest, actorID string) (*domain.Distribution, error)
	BeginDistribution(ctx context.Context, distributionID string, actorID string) (*domain.Distribution, error)
	CompleteDistribution(ctx context.Context, distributionID string, actorID string) (*domain.Distribution, error)
	FailDistribution(ctx context.Context, distributionID string, reason string, actorID string) (*domain.Distribution, error)
	CancelDistribution(ctx context.Context, distributionID string, reason string, actorID string) (*domain.Distribution, error)
	GetDistribution(ctx context.Context, distributionID string) (*domain.Distribution, error)
	ListDistributionsByPeriod(ctx context.Context, periodID string) ([]domain.Distribution, error)
}

// PeriodCloseSvcFacade drives the period-close saga.
type PeriodCloseSvcFacade interface {
	// InitiateClose creates (or resumes) the workflow and advances it as far
	// as it can go without human approval.
	InitiateClose(ctx context.Context, periodID string, surplus decimal.Decimal, actorID string) (*domain.PeriodCloseWorkflow, error)
	// Resume re-reads persisted state and continues from the last completed
	// step; safe to call after a crash.
	Resume(ctx context.Context, periodID string, actorID string) (*domain.PeriodCloseWorkflow, error)
	// RecordApproval registers one governance approval. Approvers may not
	// approve their own allocation.
	RecordApproval(ctx context.Context, periodID string, approverID string) (*domain.PeriodCloseWorkflow, error)
	GetWorkflow(ctx context.Context, periodID string) (*domain.PeriodCloseWorkflow, error)
}

// ValidatorSvcFacade runs batch invariant checks, returning structured
// reports instead of failing on the first violation.
type ValidatorSvcFacade interface {
	CheckLedgerIntegrity(ctx context.Context) (*domain.ValidationReport, error)
	CheckCapitalAccountReconciliation(ctx context.Context, memberID string) (*domain.ValidationReport, error)
	CheckAllocationCompliance(ctx context.Context, periodID string) (*domain.ValidationReport, error)
}

// ReportingSvcFacade derives compliance exports purely from projections.
type ReportingSvcFacade interface {
	PatronageSummary(ctx context.Context, periodID string) (*domain.PatronageSummary, error)
	AllocationStatement(ctx context.Context, periodID string, surplus decimal.Decimal) (*domain.AllocationStatement, error)
	CapitalStatement(ctx context.Context, memberID string) (*domain.CapitalStatement, error)
}
