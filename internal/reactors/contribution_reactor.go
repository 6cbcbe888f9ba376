package reactors

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/google/uuid"

	"github.com/commonward/coop_ledger_app/internal/apperrors"
	"github.com/commonward/coop_ledger_app/internal/core/domain"
	portsrepo "github.com/commonward/coop_ledger_app/internal/core/ports/repositories"
	"github.com/commonward/coop_ledger_app/internal/core/services"
	"github.com/commonward/coop_ledger_app/internal/eventbus"
	"github.com/commonward/coop_ledger_app/internal/middleware"
)

// ContributionApprovedReactor materializes exactly one patronage claim per
// approved contribution. The dispatcher's idempotency record plus the unique
// contribution constraint on claims make the "exactly once" hold under
// redelivery.
type ContributionApprovedReactor struct {
	services.BaseService
	formula *services.FormulaEngine
}

func NewContributionApprovedReactor(repos portsrepo.RepositoryProvider, bus *eventbus.Bus, formula *services.FormulaEngine) *ContributionApprovedReactor {
	return &ContributionApprovedReactor{
		BaseService: services.BaseService{Repos: repos, Bus: bus},
		formula:     formula,
	}
}

func (r *ContributionApprovedReactor) Name() string {
	return "contribution_approved_claim"
}

func (r *ContributionApprovedReactor) Handles(eventType domain.EventType) bool {
	return eventType == domain.EventContribApproved
}

func (r *ContributionApprovedReactor) Handle(ctx context.Context, event domain.Event) error {
	var payload domain.ContributionDecidedPayload
	if err := json.Unmarshal(event.Payload, &payload); err != nil {
		return apperrors.NewAppError(500, "malformed payload for event "+event.EventID, err)
	}

	contribution, err := r.Repos.ContributionRepo.FindContributionByID(ctx, payload.ContributionID)
	if err != nil {
		return err
	}

	claim := r.formula.BuildClaim(*contribution)
	claim.ClaimID = uuid.NewString()

	claimPayload := domain.ClaimCreatedPayload{
		ClaimID:        claim.ClaimID,
		ContributionID: claim.ContributionID,
		MemberID:       claim.MemberID,
		PeriodID:       claim.PeriodID,
		RawValue:       claim.RawValue,
		Weight:         claim.Weight,
		WeightedValue:  claim.WeightedValue,
	}
	meta := domain.EventMetadata{
		CorrelationID: event.Metadata.CorrelationID,
		CausationID:   event.EventID,
		ActorID:       event.Metadata.ActorID,
	}
	if _, err := r.AppendAndPublish(ctx, domain.AggregateClaim, claim.ClaimID, domain.EventClaimCreated, claimPayload, meta); err != nil {
		return err
	}

	middleware.GetLoggerFromCtx(ctx).Info("Patronage claim created",
		slog.String("claim_id", claim.ClaimID),
		slog.String("contribution_id", claim.ContributionID),
		slog.String("weighted_value", claim.WeightedValue.String()),
	)
	return nil
}
