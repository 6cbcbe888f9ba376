package repositories

import (
	"context"
	"time"

	"github.com/commonward/coop_ledger_app/internal/core/domain"
	"github.com/shopspring/decimal"
)

// MemberRepositoryFacade maintains the members projection.
type MemberRepositoryFacade interface {
	SaveMember(ctx context.Context, member domain.Member) error
	FindMemberByID(ctx context.Context, memberID string) (*domain.Member, error)
	ListMembers(ctx context.Context, limit int, offset int) ([]domain.Member, error)
}

// ContributionRepositoryFacade maintains the contributions projection.
type ContributionRepositoryFacade interface {
	SaveContribution(ctx context.Context, contribution domain.Contribution) error
	FindContributionByID(ctx context.Context, contributionID string) (*domain.Contribution, error)
	UpdateContributionStatus(ctx context.Context, contributionID string, status domain.ContributionStatus, reason string, updatedBy string, updatedAt time.Time) error
	ListContributionsByPeriod(ctx context.Context, periodID string, status *domain.ContributionStatus) ([]domain.Contribution, error)
	ListContributionsByMember(ctx context.Context, memberID string, limit int, offset int) ([]domain.Contribution, error)
}

// ClaimRepositoryFacade maintains the patronage claims projection.
type ClaimRepositoryFacade interface {
	SaveClaim(ctx context.Context, claim domain.PatronageClaim) error
	FindClaimByContributionID(ctx context.Context, contributionID string) (*domain.PatronageClaim, error)
	MarkClaimRevoked(ctx context.Context, claimID string, updatedBy string, updatedAt time.Time) error
	ListClaimsByPeriod(ctx context.Context, periodID string) ([]domain.PatronageClaim, error)
}

// AllocationRepositoryFacade maintains the allocations projection.
type AllocationRepositoryFacade interface {
	SaveAllocation(ctx context.Context, allocation domain.Allocation) error
	FindAllocationByID(ctx context.Context, allocationID string) (*domain.Allocation, error)
	UpdateAllocationStatus(ctx context.Context, allocationID string, status domain.AllocationStatus, updatedBy string, updatedAt time.Time) error
	DeleteAllocation(ctx context.Context, allocationID string) error
	ListAllocationsByPeriod(ctx context.Context, periodID string) ([]domain.Allocation, error)
	ListAllocationsByMember(ctx context.Context, memberID string) ([]domain.Allocation, error)
}

// DistributionRepositoryFacade maintains the distributions projection.
type DistributionRepositoryFacade interface {
	SaveDistribution(ctx context.Context, distribution domain.Distribution) error
	FindDistributionByID(ctx context.Context, distributionID string) (*domain.Distribution, error)
	UpdateDistributionStatus(ctx context.Context, distributionID string, status domain.DistributionStatus, reason string, updatedBy string, updatedAt time.Time) error
	ListDistributionsByAllocation(ctx context.Context, allocationID string) ([]domain.Distribution, error)
	ListDistributionsByPeriod(ctx context.Context, periodID string) ([]domain.Distribution, error)
}

// CapitalMovement is one applied change to a capital account bucket,
// retained for statement generation.
type CapitalMovement struct {
	MemberID   string
	Bucket     domain.CapitalBucket
	Amount     decimal.Decimal
	TaxAmount  decimal.Decimal
	SourceKind string
	SourceID   string
	OccurredAt time.Time
}

// CapitalAccountRepositoryFacade maintains the capital accounts projection.
type CapitalAccountRepositoryFacade interface {
	FindCapitalAccount(ctx context.Context, memberID string) (*domain.CapitalAccount, error)
	// ApplyMovement upserts the account and adjusts the targeted bucket plus
	// book/tax balances atomically, recording the movement line.
	ApplyMovement(ctx context.Context, movement CapitalMovement, updatedBy string) error
	ListMovements(ctx context.Context, memberID string) ([]CapitalMovement, error)
	ListCapitalAccounts(ctx context.Context) ([]domain.CapitalAccount, error)
}
