package services

import (
	"context"
	"log/slog"

	"github.com/commonward/coop_ledger_app/internal/apperrors"
	"github.com/commonward/coop_ledger_app/internal/core/domain"
	portsrepo "github.com/commonward/coop_ledger_app/internal/core/ports/repositories"
	"github.com/commonward/coop_ledger_app/internal/eventbus"
)

// AllocationService manages allocation status outside the close workflow.
// Allocations are created by the workflow; this service moves them through
// PROPOSED → APPROVED and serves reads.
type AllocationService struct {
	BaseService
}

func NewAllocationService(repos portsrepo.RepositoryProvider, bus *eventbus.Bus) *AllocationService {
	return &AllocationService{BaseService: BaseService{Repos: repos, Bus: bus}}
}

// ProposeAllocation re-proposes a draft allocation. The workflow proposes
// allocations itself; this path exists for manual correction flows.
func (s *AllocationService) ProposeAllocation(ctx context.Context, allocationID string, actorID string) (*domain.Allocation, error) {
	allocation, err := s.Repos.AllocationRepo.FindAllocationByID(ctx, allocationID)
	if err != nil {
		return nil, err
	}
	if allocation.Status != domain.AllocDraft {
		return nil, apperrors.NewAppError(409, "allocation "+allocationID+" has status "+string(allocation.Status), apperrors.ErrConflict)
	}

	payload := domain.AllocationProposedPayload{
		AllocationID:       allocation.AllocationID,
		MemberID:           allocation.MemberID,
		PeriodID:           allocation.PeriodID,
		TotalPatronage:     allocation.TotalPatronage,
		Share:              allocation.Share,
		TotalAllocation:    allocation.TotalAllocation,
		CashDistribution:   allocation.CashDistribution,
		RetainedAllocation: allocation.RetainedAllocation,
		CashRate:           allocation.CashRate,
	}
	if _, err := s.AppendAndPublish(ctx, domain.AggregateAllocation, allocationID, domain.EventAllocationProposed, payload, actorMeta(actorID)); err != nil {
		return nil, err
	}
	return s.Repos.AllocationRepo.FindAllocationByID(ctx, allocationID)
}

// ApproveAllocation moves PROPOSED → APPROVED. The capital-account credit
// happens downstream in the reactor.
func (s *AllocationService) ApproveAllocation(ctx context.Context, allocationID string, actorID string) (*domain.Allocation, error) {
	allocation, err := s.Repos.AllocationRepo.FindAllocationByID(ctx, allocationID)
	if err != nil {
		return nil, err
	}
	if allocation.Status != domain.AllocProposed {
		return nil, apperrors.NewAppError(409, "allocation "+allocationID+" has status "+string(allocation.Status), apperrors.ErrConflict)
	}

	payload := domain.AllocationStatusPayload{AllocationID: allocationID, ActorID: actorID}
	if _, err := s.AppendAndPublish(ctx, domain.AggregateAllocation, allocationID, domain.EventAllocationApproved, payload, actorMeta(actorID)); err != nil {
		return nil, err
	}

	s.GetLogger(ctx).Info("Allocation approved",
		slog.String("allocation_id", allocationID),
		slog.String("member_id", allocation.MemberID),
	)
	return s.Repos.AllocationRepo.FindAllocationByID(ctx, allocationID)
}

func (s *AllocationService) GetAllocation(ctx context.Context, allocationID string) (*domain.Allocation, error) {
	return s.Repos.AllocationRepo.FindAllocationByID(ctx, allocationID)
}

func (s *AllocationService) ListAllocationsByPeriod(ctx context.Context, periodID string) ([]domain.Allocation, error) {
	return s.Repos.AllocationRepo.ListAllocationsByPeriod(ctx, periodID)
}

func (s *AllocationService) ListAllocationsByMember(ctx context.Context, memberID string) ([]domain.Allocation, error) {
	return s.Repos.AllocationRepo.ListAllocationsByMember(ctx, memberID)
}
