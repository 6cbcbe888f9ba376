package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/commonward/coop_ledger_app/internal/apperrors"
	"github.com/commonward/coop_ledger_app/internal/core/domain"
	portsrepo "github.com/commonward/coop_ledger_app/internal/core/ports/repositories"
	"github.com/commonward/coop_ledger_app/internal/dto"
	"github.com/commonward/coop_ledger_app/internal/eventbus"
)

// PeriodService manages the accounting-period lifecycle:
// OPEN → CLOSING → CLOSED → LOCKED, with CLOSING → OPEN on compensation.
type PeriodService struct {
	BaseService
}

func NewPeriodService(repos portsrepo.RepositoryProvider, bus *eventbus.Bus) *PeriodService {
	return &PeriodService{BaseService: BaseService{Repos: repos, Bus: bus}}
}

func (s *PeriodService) OpenPeriod(ctx context.Context, req dto.OpenPeriodRequest, actorID string) (*domain.Period, error) {
	if !req.End.After(req.Start) {
		return nil, apperrors.NewAppError(400, "period end must be after start", apperrors.ErrValidation)
	}

	periodID := uuid.NewString()
	payload := domain.PeriodOpenedPayload{
		PeriodID: periodID,
		Name:     req.Name,
		Start:    req.Start,
		End:      req.End,
	}
	if _, err := s.AppendAndPublish(ctx, domain.AggregatePeriod, periodID, domain.EventPeriodOpened, payload, actorMeta(actorID)); err != nil {
		return nil, err
	}
	return s.Repos.PeriodRepo.FindPeriodByID(ctx, periodID)
}

func (s *PeriodService) GetPeriod(ctx context.Context, periodID string) (*domain.Period, error) {
	return s.Repos.PeriodRepo.FindPeriodByID(ctx, periodID)
}

func (s *PeriodService) ListPeriods(ctx context.Context, limit, offset int) ([]domain.Period, error) {
	return s.Repos.PeriodRepo.ListPeriods(ctx, limit, offset)
}

// ClosePeriod finalizes a period. Draft transactions must be resolved first;
// posted and voided transactions are both acceptable history.
func (s *PeriodService) ClosePeriod(ctx context.Context, periodID string, actorID string) (*domain.Period, error) {
	period, err := s.Repos.PeriodRepo.FindPeriodByID(ctx, periodID)
	if err != nil {
		return nil, err
	}
	if period.Status != domain.PeriodOpen && period.Status != domain.PeriodClosing {
		return nil, apperrors.NewAppError(409, "period "+periodID+" has status "+string(period.Status), apperrors.ErrConflict)
	}

	drafts, err := s.Repos.TransactionRepo.CountDraftTransactionsInPeriod(ctx, periodID)
	if err != nil {
		return nil, err
	}
	if drafts > 0 {
		return nil, apperrors.NewAppError(409,
			fmt.Sprintf("period %s still has %d draft transactions", periodID, drafts),
			apperrors.ErrOpenTransactionsRemain)
	}

	if err := s.transition(ctx, periodID, domain.EventPeriodClosed, domain.PeriodClosed, actorID); err != nil {
		return nil, err
	}
	return s.Repos.PeriodRepo.FindPeriodByID(ctx, periodID)
}

// MarkPeriodClosing moves OPEN → CLOSING at the start of the close workflow.
func (s *PeriodService) MarkPeriodClosing(ctx context.Context, periodID string, actorID string) error {
	period, err := s.Repos.PeriodRepo.FindPeriodByID(ctx, periodID)
	if err != nil {
		return err
	}
	if period.Status != domain.PeriodOpen {
		return apperrors.NewAppError(409, "period "+periodID+" has status "+string(period.Status), apperrors.ErrConflict)
	}
	return s.transition(ctx, periodID, domain.EventPeriodClosing, domain.PeriodClosing, actorID)
}

// ReopenPeriod moves CLOSING → OPEN when the close workflow compensates.
func (s *PeriodService) ReopenPeriod(ctx context.Context, periodID string, actorID string) error {
	period, err := s.Repos.PeriodRepo.FindPeriodByID(ctx, periodID)
	if err != nil {
		return err
	}
	if period.Status != domain.PeriodClosing {
		return apperrors.NewAppError(409, "period "+periodID+" has status "+string(period.Status), apperrors.ErrConflict)
	}
	return s.transition(ctx, periodID, domain.EventPeriodReopened, domain.PeriodOpen, actorID)
}

// LockPeriod moves CLOSED → LOCKED. Locked periods are immutable forever.
func (s *PeriodService) LockPeriod(ctx context.Context, periodID string, actorID string) (*domain.Period, error) {
	period, err := s.Repos.PeriodRepo.FindPeriodByID(ctx, periodID)
	if err != nil {
		return nil, err
	}
	if period.Status != domain.PeriodClosed {
		return nil, apperrors.NewAppError(409, "period "+periodID+" has status "+string(period.Status), apperrors.ErrConflict)
	}
	if err := s.transition(ctx, periodID, domain.EventPeriodLocked, domain.PeriodLocked, actorID); err != nil {
		return nil, err
	}
	return s.Repos.PeriodRepo.FindPeriodByID(ctx, periodID)
}

func (s *PeriodService) transition(ctx context.Context, periodID string, eventType domain.EventType, status domain.PeriodStatus, actorID string) error {
	payload := domain.PeriodStatusChangedPayload{PeriodID: periodID, Status: status}
	if _, err := s.AppendAndPublish(ctx, domain.AggregatePeriod, periodID, eventType, payload, actorMeta(actorID)); err != nil {
		return err
	}
	s.GetLogger(ctx).Info("Period status changed",
		slog.String("period_id", periodID),
		slog.String("status", string(status)),
	)
	return nil
}
