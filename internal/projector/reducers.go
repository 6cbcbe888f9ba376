package projector

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/shopspring/decimal"

	"github.com/commonward/coop_ledger_app/internal/apperrors"
	"github.com/commonward/coop_ledger_app/internal/core/domain"
	portsrepo "github.com/commonward/coop_ledger_app/internal/core/ports/repositories"
	"github.com/commonward/coop_ledger_app/internal/utils/accounting"
)

func (p *Projector) registerReducers() {
	p.reducers[domain.EventAccountOpened] = p.reduceAccountOpened
	p.reducers[domain.EventAccountDeactivated] = p.reduceAccountDeactivated
	p.reducers[domain.EventTransactionPosted] = p.reduceTransactionPosted
	p.reducers[domain.EventTransactionVoided] = p.reduceTransactionVoided
	p.reducers[domain.EventPeriodOpened] = p.reducePeriodOpened
	p.reducers[domain.EventPeriodClosing] = p.periodStatusReducer(domain.PeriodClosing)
	p.reducers[domain.EventPeriodClosed] = p.periodStatusReducer(domain.PeriodClosed)
	p.reducers[domain.EventPeriodLocked] = p.periodStatusReducer(domain.PeriodLocked)
	p.reducers[domain.EventPeriodReopened] = p.periodStatusReducer(domain.PeriodOpen)
	p.reducers[domain.EventMemberEnrolled] = p.reduceMemberEnrolled
	p.reducers[domain.EventContribSubmitted] = p.reduceContributionSubmitted
	p.reducers[domain.EventContribApproved] = p.contributionStatusReducer(domain.ContribApproved)
	p.reducers[domain.EventContribRejected] = p.contributionStatusReducer(domain.ContribRejected)
	p.reducers[domain.EventClaimCreated] = p.reduceClaimCreated
	p.reducers[domain.EventClaimRevoked] = p.reduceClaimRevoked
	p.reducers[domain.EventAllocationProposed] = p.reduceAllocationProposed
	p.reducers[domain.EventAllocationApproved] = p.allocationStatusReducer(domain.AllocApproved)
	p.reducers[domain.EventAllocationExecuted] = p.allocationStatusReducer(domain.AllocExecuted)
	p.reducers[domain.EventAllocationDeleted] = p.reduceAllocationDeleted
	p.reducers[domain.EventCapitalCredited] = p.reduceCapitalMovement
	p.reducers[domain.EventCapitalDebited] = p.reduceCapitalMovement
	p.reducers[domain.EventDistribScheduled] = p.reduceDistributionScheduled
	p.reducers[domain.EventDistribProcessing] = p.distributionStatusReducer(domain.DistProcessing)
	p.reducers[domain.EventDistribCompleted] = p.distributionStatusReducer(domain.DistCompleted)
	p.reducers[domain.EventDistribFailed] = p.distributionStatusReducer(domain.DistFailed)
	p.reducers[domain.EventDistribCancelled] = p.distributionStatusReducer(domain.DistCancelled)
}

func unmarshalPayload[T any](event domain.Event) (T, error) {
	var payload T
	if err := json.Unmarshal(event.Payload, &payload); err != nil {
		return payload, apperrors.NewAppError(500, "malformed payload for event "+event.EventID, err)
	}
	return payload, nil
}

func auditFrom(event domain.Event) domain.AuditFields {
	return domain.AuditFields{
		CreatedAt:     event.OccurredAt,
		CreatedBy:     event.Metadata.ActorID,
		LastUpdatedAt: event.OccurredAt,
		LastUpdatedBy: event.Metadata.ActorID,
	}
}

func (p *Projector) reduceAccountOpened(ctx context.Context, event domain.Event) error {
	payload, err := unmarshalPayload[domain.AccountOpenedPayload](event)
	if err != nil {
		return err
	}
	return p.repos.AccountRepo.SaveAccount(ctx, domain.Account{
		AccountID:       payload.AccountID,
		Number:          payload.Number,
		Name:            payload.Name,
		AccountType:     payload.AccountType,
		Ledger:          payload.Ledger,
		NormalBalance:   payload.NormalBalance,
		IsMemberCapital: payload.IsMemberCapital,
		MemberID:        payload.MemberID,
		ParentAccountID: payload.ParentAccountID,
		IsActive:        true,
		Balance:         payload.OpeningBalance,
		AuditFields:     auditFrom(event),
	})
}

func (p *Projector) reduceAccountDeactivated(ctx context.Context, event domain.Event) error {
	payload, err := unmarshalPayload[domain.AccountDeactivatedPayload](event)
	if err != nil {
		return err
	}
	return p.repos.AccountRepo.SetAccountActive(ctx, payload.AccountID, false, event.Metadata.ActorID, event.OccurredAt)
}

func (p *Projector) reduceTransactionPosted(ctx context.Context, event domain.Event) error {
	payload, err := unmarshalPayload[domain.TransactionPostedPayload](event)
	if err != nil {
		return err
	}
	txn := domain.Transaction{
		TransactionID: payload.TransactionID,
		Date:          payload.Date,
		PeriodID:      payload.PeriodID,
		Description:   payload.Description,
		Status:        domain.TxnPosted,
		Entries:       payload.Entries,
		AuditFields:   auditFrom(event),
	}
	if err := p.repos.TransactionRepo.SaveTransaction(ctx, txn); err != nil {
		return err
	}

	deltas, err := p.balanceDeltas(ctx, payload.Entries, false)
	if err != nil {
		return err
	}
	return p.repos.AccountRepo.AdjustBalances(ctx, deltas, event.Metadata.ActorID, event.OccurredAt)
}

func (p *Projector) reduceTransactionVoided(ctx context.Context, event domain.Event) error {
	payload, err := unmarshalPayload[domain.TransactionVoidedPayload](event)
	if err != nil {
		return err
	}
	txn, err := p.repos.TransactionRepo.FindTransactionByID(ctx, payload.TransactionID)
	if err != nil {
		return err
	}
	if txn.Status == domain.TxnVoid {
		// Redelivery; the reversal already happened.
		return nil
	}
	if err := p.repos.TransactionRepo.MarkTransactionVoid(ctx, payload.TransactionID, payload.Reason, event.Metadata.ActorID, event.OccurredAt); err != nil {
		return err
	}

	deltas, err := p.balanceDeltas(ctx, txn.Entries, true)
	if err != nil {
		return err
	}
	return p.repos.AccountRepo.AdjustBalances(ctx, deltas, event.Metadata.ActorID, event.OccurredAt)
}

// balanceDeltas folds entries into per-account signed deltas, reversed when
// undoing a voided transaction.
func (p *Projector) balanceDeltas(ctx context.Context, entries []domain.Entry, reverse bool) (map[string]decimal.Decimal, error) {
	accountIDs := make([]string, 0, len(entries))
	for _, e := range entries {
		accountIDs = append(accountIDs, e.AccountID)
	}
	accounts, err := p.repos.AccountRepo.FindAccountsByIDs(ctx, accountIDs)
	if err != nil {
		return nil, err
	}

	deltas := map[string]decimal.Decimal{}
	for _, e := range entries {
		account, ok := accounts[e.AccountID]
		if !ok {
			return nil, apperrors.NewNotFoundError("account " + e.AccountID + " missing for balance update")
		}
		signed, err := accounting.SignedAmount(e, account.NormalBalance)
		if err != nil {
			return nil, apperrors.NewAppError(500, "failed to sign entry amount", err)
		}
		if reverse {
			signed = signed.Neg()
		}
		deltas[e.AccountID] = deltas[e.AccountID].Add(signed)
	}
	return deltas, nil
}

func (p *Projector) reducePeriodOpened(ctx context.Context, event domain.Event) error {
	payload, err := unmarshalPayload[domain.PeriodOpenedPayload](event)
	if err != nil {
		return err
	}
	return p.repos.PeriodRepo.SavePeriod(ctx, domain.Period{
		PeriodID:    payload.PeriodID,
		Name:        payload.Name,
		Start:       payload.Start,
		End:         payload.End,
		Status:      domain.PeriodOpen,
		AuditFields: auditFrom(event),
	})
}

func (p *Projector) periodStatusReducer(status domain.PeriodStatus) Reducer {
	return func(ctx context.Context, event domain.Event) error {
		payload, err := unmarshalPayload[domain.PeriodStatusChangedPayload](event)
		if err != nil {
			return err
		}
		return p.repos.PeriodRepo.UpdatePeriodStatus(ctx, payload.PeriodID, status, event.Metadata.ActorID, event.OccurredAt)
	}
}

func (p *Projector) reduceMemberEnrolled(ctx context.Context, event domain.Event) error {
	payload, err := unmarshalPayload[domain.MemberEnrolledPayload](event)
	if err != nil {
		return err
	}
	return p.repos.MemberRepo.SaveMember(ctx, domain.Member{
		MemberID:    payload.MemberID,
		Name:        payload.Name,
		Tier:        payload.Tier,
		Status:      domain.MemberActive,
		AuditFields: auditFrom(event),
	})
}

func (p *Projector) reduceContributionSubmitted(ctx context.Context, event domain.Event) error {
	payload, err := unmarshalPayload[domain.ContributionSubmittedPayload](event)
	if err != nil {
		return err
	}
	return p.repos.ContributionRepo.SaveContribution(ctx, domain.Contribution{
		ContributionID: payload.ContributionID,
		MemberID:       payload.MemberID,
		PeriodID:       payload.PeriodID,
		Type:           payload.Type,
		Status:         domain.ContribSubmitted,
		Description:    payload.Description,
		Hours:          payload.Hours,
		HourlyRate:     payload.HourlyRate,
		StatedValue:    payload.StatedValue,
		AuditFields:    auditFrom(event),
	})
}

func (p *Projector) contributionStatusReducer(status domain.ContributionStatus) Reducer {
	return func(ctx context.Context, event domain.Event) error {
		payload, err := unmarshalPayload[domain.ContributionDecidedPayload](event)
		if err != nil {
			return err
		}
		return p.repos.ContributionRepo.UpdateContributionStatus(ctx, payload.ContributionID, status, payload.Reason, payload.DecidedBy, event.OccurredAt)
	}
}

func (p *Projector) reduceClaimCreated(ctx context.Context, event domain.Event) error {
	payload, err := unmarshalPayload[domain.ClaimCreatedPayload](event)
	if err != nil {
		return err
	}
	err = p.repos.ClaimRepo.SaveClaim(ctx, domain.PatronageClaim{
		ClaimID:        payload.ClaimID,
		ContributionID: payload.ContributionID,
		MemberID:       payload.MemberID,
		PeriodID:       payload.PeriodID,
		RawValue:       payload.RawValue,
		Weight:         payload.Weight,
		WeightedValue:  payload.WeightedValue,
		AuditFields:    auditFrom(event),
	})
	if errors.Is(err, apperrors.ErrDuplicate) {
		// Redelivery; the one-claim-per-contribution row already exists.
		return nil
	}
	return err
}

func (p *Projector) reduceClaimRevoked(ctx context.Context, event domain.Event) error {
	payload, err := unmarshalPayload[domain.ClaimRevokedPayload](event)
	if err != nil {
		return err
	}
	return p.repos.ClaimRepo.MarkClaimRevoked(ctx, payload.ClaimID, event.Metadata.ActorID, event.OccurredAt)
}

func (p *Projector) reduceAllocationProposed(ctx context.Context, event domain.Event) error {
	payload, err := unmarshalPayload[domain.AllocationProposedPayload](event)
	if err != nil {
		return err
	}
	return p.repos.AllocationRepo.SaveAllocation(ctx, domain.Allocation{
		AllocationID:       payload.AllocationID,
		MemberID:           payload.MemberID,
		PeriodID:           payload.PeriodID,
		Status:             domain.AllocProposed,
		TotalPatronage:     payload.TotalPatronage,
		Share:              payload.Share,
		TotalAllocation:    payload.TotalAllocation,
		CashDistribution:   payload.CashDistribution,
		RetainedAllocation: payload.RetainedAllocation,
		CashRate:           payload.CashRate,
		AuditFields:        auditFrom(event),
	})
}

func (p *Projector) allocationStatusReducer(status domain.AllocationStatus) Reducer {
	return func(ctx context.Context, event domain.Event) error {
		payload, err := unmarshalPayload[domain.AllocationStatusPayload](event)
		if err != nil {
			return err
		}
		return p.repos.AllocationRepo.UpdateAllocationStatus(ctx, payload.AllocationID, status, event.Metadata.ActorID, event.OccurredAt)
	}
}

func (p *Projector) reduceAllocationDeleted(ctx context.Context, event domain.Event) error {
	payload, err := unmarshalPayload[domain.AllocationStatusPayload](event)
	if err != nil {
		return err
	}
	return p.repos.AllocationRepo.DeleteAllocation(ctx, payload.AllocationID)
}

func (p *Projector) reduceCapitalMovement(ctx context.Context, event domain.Event) error {
	payload, err := unmarshalPayload[domain.CapitalMovementPayload](event)
	if err != nil {
		return err
	}
	return p.repos.CapitalAccountRepo.ApplyMovement(ctx, portsrepo.CapitalMovement{
		MemberID:   payload.MemberID,
		Bucket:     payload.Bucket,
		Amount:     payload.Amount,
		TaxAmount:  payload.TaxAmount,
		SourceKind: payload.SourceKind,
		SourceID:   payload.SourceID,
		OccurredAt: payload.EffectiveAt,
	}, event.Metadata.ActorID)
}

func (p *Projector) reduceDistributionScheduled(ctx context.Context, event domain.Event) error {
	payload, err := unmarshalPayload[domain.DistributionScheduledPayload](event)
	if err != nil {
		return err
	}
	return p.repos.DistributionRepo.SaveDistribution(ctx, domain.Distribution{
		DistributionID: payload.DistributionID,
		AllocationID:   payload.AllocationID,
		MemberID:       payload.MemberID,
		Amount:         payload.Amount,
		Method:         payload.Method,
		Status:         domain.DistScheduled,
		AuditFields:    auditFrom(event),
	})
}

func (p *Projector) distributionStatusReducer(status domain.DistributionStatus) Reducer {
	return func(ctx context.Context, event domain.Event) error {
		payload, err := unmarshalPayload[domain.DistributionStatusPayload](event)
		if err != nil {
			return err
		}
		return p.repos.DistributionRepo.UpdateDistributionStatus(ctx, payload.DistributionID, status, payload.Reason, event.Metadata.ActorID, event.OccurredAt)
	}
}
