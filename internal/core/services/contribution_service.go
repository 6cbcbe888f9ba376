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

// ContributionService manages the contribution review state machine.
// Approval triggers claim creation downstream via the reactor, not here.
type ContributionService struct {
	BaseService
}

func NewContributionService(repos portsrepo.RepositoryProvider, bus *eventbus.Bus) *ContributionService {
	return &ContributionService{BaseService: BaseService{Repos: repos, Bus: bus}}
}

func (s *ContributionService) SubmitContribution(ctx context.Context, req dto.SubmitContributionRequest, actorID string) (*domain.Contribution, error) {
	member, err := s.Repos.MemberRepo.FindMemberByID(ctx, req.MemberID)
	if err != nil {
		return nil, err
	}
	if member.Status != domain.MemberActive {
		return nil, apperrors.NewAppError(409, "member "+req.MemberID+" is not active", apperrors.ErrConflict)
	}

	period, err := s.Repos.PeriodRepo.FindPeriodByID(ctx, req.PeriodID)
	if err != nil {
		return nil, err
	}
	if period.Status != domain.PeriodOpen {
		return nil, apperrors.NewAppError(409, "period "+req.PeriodID+" is not open for contributions", apperrors.ErrPeriodNotOpen)
	}

	contribType := domain.ContributionType(req.Type)
	if err := validateContributionValue(contribType, req); err != nil {
		return nil, err
	}

	contributionID := uuid.NewString()
	payload := domain.ContributionSubmittedPayload{
		ContributionID: contributionID,
		MemberID:       req.MemberID,
		PeriodID:       req.PeriodID,
		Type:           contribType,
		Description:    req.Description,
		Hours:          req.Hours,
		HourlyRate:     req.HourlyRate,
		StatedValue:    req.StatedValue,
	}
	if _, err := s.AppendAndPublish(ctx, domain.AggregateContribution, contributionID, domain.EventContribSubmitted, payload, actorMeta(actorID)); err != nil {
		return nil, err
	}

	s.GetLogger(ctx).Info("Contribution submitted",
		slog.String("contribution_id", contributionID),
		slog.String("member_id", req.MemberID),
		slog.String("type", req.Type),
	)
	return s.Repos.ContributionRepo.FindContributionByID(ctx, contributionID)
}

func validateContributionValue(t domain.ContributionType, req dto.SubmitContributionRequest) error {
	if t == domain.ContribLabor {
		if req.Hours.LessThanOrEqual(decimal.Zero) || req.HourlyRate.LessThanOrEqual(decimal.Zero) {
			return apperrors.NewAppError(400, "labor contributions require positive hours and hourly rate", apperrors.ErrValidation)
		}
		return nil
	}
	if req.StatedValue.LessThanOrEqual(decimal.Zero) {
		return apperrors.NewAppError(400, string(t)+" contributions require a positive stated value", apperrors.ErrValidation)
	}
	return nil
}

func (s *ContributionService) ApproveContribution(ctx context.Context, contributionID string, actorID string) (*domain.Contribution, error) {
	return s.decide(ctx, contributionID, domain.ContribApproved, domain.EventContribApproved, "", actorID)
}

func (s *ContributionService) RejectContribution(ctx context.Context, contributionID string, reason string, actorID string) (*domain.Contribution, error) {
	if reason == "" {
		return nil, apperrors.NewAppError(400, "rejection reason is required", apperrors.ErrValidation)
	}
	return s.decide(ctx, contributionID, domain.ContribRejected, domain.EventContribRejected, reason, actorID)
}

func (s *ContributionService) decide(ctx context.Context, contributionID string, status domain.ContributionStatus, eventType domain.EventType, reason string, actorID string) (*domain.Contribution, error) {
	contribution, err := s.Repos.ContributionRepo.FindContributionByID(ctx, contributionID)
	if err != nil {
		return nil, err
	}
	if !contribution.Status.CanTransition(status) {
		return nil, apperrors.NewAppError(409,
			"contribution "+contributionID+" cannot move from "+string(contribution.Status)+" to "+string(status),
			apperrors.ErrConflict)
	}

	payload := domain.ContributionDecidedPayload{
		ContributionID: contributionID,
		DecidedBy:      actorID,
		Reason:         reason,
	}
	if _, err := s.AppendAndPublish(ctx, domain.AggregateContribution, contributionID, eventType, payload, actorMeta(actorID)); err != nil {
		return nil, err
	}

	s.GetLogger(ctx).Info("Contribution decided",
		slog.String("contribution_id", contributionID),
		slog.String("status", string(status)),
	)
	return s.Repos.ContributionRepo.FindContributionByID(ctx, contributionID)
}

func (s *ContributionService) GetContribution(ctx context.Context, contributionID string) (*domain.Contribution, error) {
	return s.Repos.ContributionRepo.FindContributionByID(ctx, contributionID)
}

func (s *ContributionService) ListContributionsByPeriod(ctx context.Context, periodID string, status *domain.ContributionStatus) ([]domain.Contribution, error) {
	return s.Repos.ContributionRepo.ListContributionsByPeriod(ctx, periodID, status)
}

func (s *ContributionService) ListContributionsByMember(ctx context.Context, memberID string, limit, offset int) ([]domain.Contribution, error) {
	return s.Repos.ContributionRepo.ListContributionsByMember(ctx, memberID, limit, offset)
}
