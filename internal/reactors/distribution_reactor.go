package reactors

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/commonward/coop_ledger_app/internal/apperrors"
	"github.com/commonward/coop_ledger_app/internal/core/domain"
	portsrepo "github.com/commonward/coop_ledger_app/internal/core/ports/repositories"
	portssvc "github.com/commonward/coop_ledger_app/internal/core/ports/services"
	"github.com/commonward/coop_ledger_app/internal/core/services"
	"github.com/commonward/coop_ledger_app/internal/dto"
	"github.com/commonward/coop_ledger_app/internal/eventbus"
	"github.com/commonward/coop_ledger_app/internal/middleware"
)

// DistributionCompletedReactor settles a completed cash payout: it debits the
// distributed bucket of the member's capital account and posts the treasury
// movement on the book ledger (cash out, member capital down).
type DistributionCompletedReactor struct {
	services.BaseService
	ledger            portssvc.LedgerSvcFacade
	formula           *services.FormulaEngine
	treasuryAccountID string
}

func NewDistributionCompletedReactor(repos portsrepo.RepositoryProvider, bus *eventbus.Bus, ledger portssvc.LedgerSvcFacade, formula *services.FormulaEngine, treasuryAccountID string) *DistributionCompletedReactor {
	return &DistributionCompletedReactor{
		BaseService:       services.BaseService{Repos: repos, Bus: bus},
		ledger:            ledger,
		formula:           formula,
		treasuryAccountID: treasuryAccountID,
	}
}

func (r *DistributionCompletedReactor) Name() string {
	return "distribution_completed_settlement"
}

func (r *DistributionCompletedReactor) Handles(eventType domain.EventType) bool {
	return eventType == domain.EventDistribCompleted
}

func (r *DistributionCompletedReactor) Handle(ctx context.Context, event domain.Event) error {
	logger := middleware.GetLoggerFromCtx(ctx)

	var payload domain.DistributionStatusPayload
	if err := json.Unmarshal(event.Payload, &payload); err != nil {
		return apperrors.NewAppError(500, "malformed payload for event "+event.EventID, err)
	}

	distribution, err := r.Repos.DistributionRepo.FindDistributionByID(ctx, payload.DistributionID)
	if err != nil {
		return err
	}

	movement := domain.CapitalMovementPayload{
		MemberID:    distribution.MemberID,
		Amount:      distribution.Amount,
		TaxAmount:   r.formula.TaxAmountFor(distribution.Amount),
		Bucket:      domain.BucketDistributed,
		SourceID:    distribution.DistributionID,
		SourceKind:  "DISTRIBUTION",
		EffectiveAt: time.Now().UTC(),
	}
	meta := domain.EventMetadata{
		CorrelationID: event.Metadata.CorrelationID,
		CausationID:   event.EventID,
		ActorID:       event.Metadata.ActorID,
	}
	if _, err := r.AppendAndPublish(ctx, domain.AggregateCapital, distribution.MemberID, domain.EventCapitalDebited, movement, meta); err != nil {
		return err
	}

	return r.postTreasuryMovement(ctx, logger, event, distribution)
}

// postTreasuryMovement posts the book-ledger leg: debit member capital,
// credit treasury cash. Skipped with a warning when the treasury account is
// not configured or no period accepts the posting.
func (r *DistributionCompletedReactor) postTreasuryMovement(ctx context.Context, logger *slog.Logger, event domain.Event, distribution *domain.Distribution) error {
	if r.treasuryAccountID == "" {
		logger.Warn("Treasury account not configured; skipping ledger posting",
			slog.String("distribution_id", distribution.DistributionID),
		)
		return nil
	}

	capitalAccount, err := r.Repos.AccountRepo.FindMemberCapitalAccount(ctx, distribution.MemberID, domain.BookLedger)
	if err != nil {
		return err
	}
	period, err := r.currentOpenPeriod(ctx)
	if err != nil {
		logger.Warn("No open period for distribution settlement; skipping ledger posting",
			slog.String("distribution_id", distribution.DistributionID),
		)
		return nil
	}

	req := dto.PostTransactionRequest{
		Date:        time.Now().UTC(),
		PeriodID:    period.PeriodID,
		Description: "Cash distribution " + distribution.DistributionID,
		Entries: []dto.EntryRequest{
			{AccountID: capitalAccount.AccountID, Direction: string(domain.Debit), Amount: distribution.Amount, Memo: "distribution payout"},
			{AccountID: r.treasuryAccountID, Direction: string(domain.Credit), Amount: distribution.Amount, Memo: "distribution payout"},
		},
	}
	if _, err := r.ledger.PostTransaction(ctx, req, event.Metadata.ActorID, true); err != nil {
		return err
	}

	logger.Info("Distribution settled on ledger",
		slog.String("distribution_id", distribution.DistributionID),
		slog.String("period_id", period.PeriodID),
		slog.String("amount", distribution.Amount.String()),
	)
	return nil
}

func (r *DistributionCompletedReactor) currentOpenPeriod(ctx context.Context) (*domain.Period, error) {
	periods, err := r.Repos.PeriodRepo.ListPeriods(ctx, 50, 0)
	if err != nil {
		return nil, err
	}
	for i := range periods {
		if periods[i].Status == domain.PeriodOpen {
			return &periods[i], nil
		}
	}
	return nil, apperrors.NewNotFoundError("no open period for settlement posting")
}
