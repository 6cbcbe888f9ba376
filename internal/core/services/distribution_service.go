package services

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/commonward/coop_ledger_app/internal/apperrors"
	"github.com/commonward/coop_ledger_app/internal/core/domain"
	portsrepo "github.com/commonward/coop_ledger_app/internal/core/ports/repositories"
	"github.com/commonward/coop_ledger_app/internal/dto"
	"github.com/commonward/coop_ledger_app/internal/eventbus"
)

// DistributionService tracks the payout lifecycle of an allocation's cash
// leg. Payment execution is external; completion is what posts the treasury
// movement, via the reactor.
type DistributionService struct {
	BaseService
}

func NewDistributionService(repos portsrepo.RepositoryProvider, bus *eventbus.Bus) *DistributionService {
	return &DistributionService{BaseService: BaseService{Repos: repos, Bus: bus}}
}

// ScheduleDistribution creates the cash leg for an approved or executed
// allocation. A zero amount defaults to the allocation's cash distribution.
func (s *DistributionService) ScheduleDistribution(ctx context.Context, req dto.ScheduleDistributionRequest, actorID string) (*domain.Distribution, error) {
	allocation, err := s.Repos.AllocationRepo.FindAllocationByID(ctx, req.AllocationID)
	if err != nil {
		return nil, err
	}
	if allocation.Status != domain.AllocApproved && allocation.Status != domain.AllocExecuted {
		return nil, apperrors.NewAppError(409, "allocation "+req.AllocationID+" has status "+string(allocation.Status), apperrors.ErrConflict)
	}

	amount := req.Amount
	if amount.IsZero() {
		amount = allocation.CashDistribution
	}
	if amount.LessThanOrEqual(decimal.Zero) {
		return nil, apperrors.NewAppError(400, "distribution amount must be positive", apperrors.ErrValidation)
	}
	if amount.GreaterThan(allocation.CashDistribution) {
		return nil, apperrors.NewAppError(400, "distribution amount exceeds the allocation's cash distribution", apperrors.ErrValidation)
	}

	distributionID := uuid.NewString()
	payload := domain.DistributionScheduledPayload{
		DistributionID: distributionID,
		AllocationID:   req.AllocationID,
		MemberID:       allocation.MemberID,
		Amount:         amount,
		Method:         req.Method,
	}
	if _, err := s.AppendAndPublish(ctx, domain.AggregateDistribution, distributionID, domain.EventDistribScheduled, payload, actorMeta(actorID)); err != nil {
		return nil, err
	}

	s.GetLogger(ctx).Info("Distribution scheduled",
		slog.String("distribution_id", distributionID),
		slog.String("allocation_id", req.AllocationID),
		slog.String("amount", amount.String()),
	)
	return s.Repos.DistributionRepo.FindDistributionByID(ctx, distributionID)
}

func (s *DistributionService) BeginDistribution(ctx context.Context, distributionID string, actorID string) (*domain.Distribution, error) {
	return s.transition(ctx, distributionID, domain.DistProcessing, domain.EventDistribProcessing, "", actorID)
}

func (s *DistributionService) CompleteDistribution(ctx context.Context, distributionID string, actorID string) (*domain.Distribution, error) {
	return s.transition(ctx, distributionID, domain.DistCompleted, domain.EventDistribCompleted, "", actorID)
}

func (s *DistributionService) FailDistribution(ctx context.Context, distributionID string, reason string, actorID string) (*domain.Distribution, error) {
	if reason == "" {
		return nil, apperrors.NewAppError(400, "failure reason is required", apperrors.ErrValidation)
	}
	return s.transition(ctx, distributionID, domain.DistFailed, domain.EventDistribFailed, reason, actorID)
}

func (s *DistributionService) CancelDistribution(ctx context.Context, distributionID string, reason string, actorID string) (*domain.Distribution, error) {
	return s.transition(ctx, distributionID, domain.DistCancelled, domain.EventDistribCancelled, reason, actorID)
}

func (s *DistributionService) transition(ctx context.Context, distributionID string, status domain.DistributionStatus, eventType domain.EventType, reason string, actorID string) (*domain.Distribution, error) {
	distribution, err := s.Repos.DistributionRepo.FindDistributionByID(ctx, distributionID)
	if err != nil {
		return nil, err
	}
	if !distribution.Status.CanTransition(status) {
		return nil, apperrors.NewAppError(409,
			"distribution "+distributionID+" cannot move from "+string(distribution.Status)+" to "+string(status),
			apperrors.ErrConflict)
	}

	payload := domain.DistributionStatusPayload{DistributionID: distributionID, Reason: reason}
	if _, err := s.AppendAndPublish(ctx, domain.AggregateDistribution, distributionID, eventType, payload, actorMeta(actorID)); err != nil {
		return nil, err
	}
	return s.Repos.DistributionRepo.FindDistributionByID(ctx, distributionID)
}

func (s *DistributionService) GetDistribution(ctx context.Context, distributionID string) (*domain.Distribution, error) {
	return s.Repos.DistributionRepo.FindDistributionByID(ctx, distributionID)
}

func (s *DistributionService) ListDistributionsByPeriod(ctx context.Context, periodID string) ([]domain.Distribution, error) {
	return s.Repos.DistributionRepo.ListDistributionsByPeriod(ctx, periodID)
}
