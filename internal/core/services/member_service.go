package services

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/commonward/coop_ledger_app/internal/core/domain"
	portsrepo "github.com/commonward/coop_ledger_app/internal/core/ports/repositories"
	"github.com/commonward/coop_ledger_app/internal/dto"
	"github.com/commonward/coop_ledger_app/internal/eventbus"
)

// MemberService manages enrollment. Enrolling a member provisions their
// book and tax capital accounts in the same request.
type MemberService struct {
	BaseService
}

func NewMemberService(repos portsrepo.RepositoryProvider, bus *eventbus.Bus) *MemberService {
	return &MemberService{BaseService: BaseService{Repos: repos, Bus: bus}}
}

func (s *MemberService) EnrollMember(ctx context.Context, req dto.EnrollMemberRequest, actorID string) (*domain.Member, error) {
	memberID := uuid.NewString()
	payload := domain.MemberEnrolledPayload{
		MemberID: memberID,
		Name:     req.Name,
		Tier:     req.Tier,
	}
	meta := actorMeta(actorID)
	event, err := s.AppendAndPublish(ctx, domain.AggregateMember, memberID, domain.EventMemberEnrolled, payload, meta)
	if err != nil {
		return nil, err
	}

	// Provision one capital account per ledger kind, correlated to the
	// enrollment event.
	for _, ledger := range []domain.LedgerKind{domain.BookLedger, domain.TaxLedger} {
		accountID := uuid.NewString()
		accountPayload := domain.AccountOpenedPayload{
			AccountID:       accountID,
			Number:          "3000-" + memberID[:8] + "-" + string(ledger),
			Name:            req.Name + " capital (" + string(ledger) + ")",
			AccountType:     domain.Equity,
			Ledger:          ledger,
			NormalBalance:   domain.CreditNormal,
			IsMemberCapital: true,
			MemberID:        &memberID,
			OpeningBalance:  decimal.Zero,
		}
		accountMeta := domain.EventMetadata{
			CorrelationID: meta.CorrelationID,
			CausationID:   event.EventID,
			ActorID:       actorID,
		}
		if _, err := s.AppendAndPublish(ctx, domain.AggregateAccount, accountID, domain.EventAccountOpened, accountPayload, accountMeta); err != nil {
			return nil, err
		}
	}

	s.GetLogger(ctx).Info("Member enrolled",
		slog.String("member_id", memberID),
		slog.String("tier", req.Tier),
	)
	return s.Repos.MemberRepo.FindMemberByID(ctx, memberID)
}

func (s *MemberService) GetMember(ctx context.Context, memberID string) (*domain.Member, error) {
	return s.Repos.MemberRepo.FindMemberByID(ctx, memberID)
}

func (s *MemberService) ListMembers(ctx context.Context, limit, offset int) ([]domain.Member, error) {
	return s.Repos.MemberRepo.ListMembers(ctx, limit, offset)
}
