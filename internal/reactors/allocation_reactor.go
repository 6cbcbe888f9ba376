package reactors

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/commonward/coop_ledger_app/internal/apperrors"
	"github.com/commonward/coop_ledger_app/internal/core/domain"
	portsrepo "github.com/commonward/coop_ledger_app/internal/core/ports/repositories"
	"github.com/commonward/coop_ledger_app/internal/core/services"
	"github.com/commonward/coop_ledger_app/internal/eventbus"
	"github.com/commonward/coop_ledger_app/internal/middleware"
)

// AllocationApprovedReactor credits the retained share of an approved
// allocation to the member's capital account, on both ledgers.
type AllocationApprovedReactor struct {
	services.BaseService
	formula *services.FormulaEngine
}

func NewAllocationApprovedReactor(repos portsrepo.RepositoryProvider, bus *eventbus.Bus, formula *services.FormulaEngine) *AllocationApprovedReactor {
	return &AllocationApprovedReactor{
		BaseService: services.BaseService{Repos: repos, Bus: bus},
		formula:     formula,
	}
}

func (r *AllocationApprovedReactor) Name() string {
	return "allocation_approved_capital_credit"
}

func (r *AllocationApprovedReactor) Handles(eventType domain.EventType) bool {
	return eventType == domain.EventAllocationApproved
}

func (r *AllocationApprovedReactor) Handle(ctx context.Context, event domain.Event) error {
	var payload domain.AllocationStatusPayload
	if err := json.Unmarshal(event.Payload, &payload); err != nil {
		return apperrors.NewAppError(500, "malformed payload for event "+event.EventID, err)
	}

	allocation, err := r.Repos.AllocationRepo.FindAllocationByID(ctx, payload.AllocationID)
	if err != nil {
		return err
	}

	movement := domain.CapitalMovementPayload{
		MemberID:    allocation.MemberID,
		Amount:      allocation.RetainedAllocation,
		TaxAmount:   r.formula.TaxAmountFor(allocation.RetainedAllocation),
		Bucket:      domain.BucketRetained,
		SourceID:    allocation.AllocationID,
		SourceKind:  "ALLOCATION",
		EffectiveAt: time.Now().UTC(),
	}
	meta := domain.EventMetadata{
		CorrelationID: event.Metadata.CorrelationID,
		CausationID:   event.EventID,
		ActorID:       event.Metadata.ActorID,
	}
	if _, err := r.AppendAndPublish(ctx, domain.AggregateCapital, allocation.MemberID, domain.EventCapitalCredited, movement, meta); err != nil {
		return err
	}

	middleware.GetLoggerFromCtx(ctx).Info("Capital account credited",
		slog.String("member_id", allocation.MemberID),
		slog.String("allocation_id", allocation.AllocationID),
		slog.String("amount", allocation.RetainedAllocation.String()),
	)
	return nil
}
