package services

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/commonward/coop_ledger_app/internal/apperrors"
	"github.com/commonward/coop_ledger_app/internal/core/domain"
	portsrepo "github.com/commonward/coop_ledger_app/internal/core/ports/repositories"
	portssvc "github.com/commonward/coop_ledger_app/internal/core/ports/services"
	"github.com/commonward/coop_ledger_app/internal/dto"
	"github.com/commonward/coop_ledger_app/internal/eventbus"
	"github.com/commonward/coop_ledger_app/internal/metrics"
)

// PeriodCloseService drives the period-close saga: an explicit, persisted
// state machine. Every step writes its output to the workflow row before
// moving on, so a crash at any point resumes from the last completed step
// instead of re-deriving state from scratch.
type PeriodCloseService struct {
	BaseService
	periodSvc       portssvc.PeriodSvcFacade
	ledger          portssvc.LedgerSvcFacade
	formula         *FormulaEngine
	quorum          int
	equityAccountID string
}

func NewPeriodCloseService(repos portsrepo.RepositoryProvider, bus *eventbus.Bus, periodSvc portssvc.PeriodSvcFacade, ledger portssvc.LedgerSvcFacade, formula *FormulaEngine, quorum int, equityAccountID string) *PeriodCloseService {
	if quorum < 1 {
		quorum = 1
	}
	return &PeriodCloseService{
		BaseService:     BaseService{Repos: repos, Bus: bus},
		periodSvc:       periodSvc,
		ledger:          ledger,
		formula:         formula,
		quorum:          quorum,
		equityAccountID: equityAccountID,
	}
}

// Step outputs persisted on the workflow row. Resume reads these instead of
// recomputing earlier steps.

type aggregateStepOutput struct {
	Surplus    decimal.Decimal `json:"surplus"`
	ClaimCount int             `json:"claimCount"`
}

type weightsStepOutput struct {
	Totals map[string]decimal.Decimal `json:"totals"`
	Grand  decimal.Decimal            `json:"grand"`
}

type allocationsStepOutput struct {
	AllocationIDs []string `json:"allocationIDs"`
}

type distributionsStepOutput struct {
	DistributionIDs []string `json:"distributionIDs"`
}

// InitiateClose starts the workflow for an open period, or resumes an
// existing one, and advances it as far as it can go without approvals.
func (s *PeriodCloseService) InitiateClose(ctx context.Context, periodID string, surplus decimal.Decimal, actorID string) (*domain.PeriodCloseWorkflow, error) {
	existing, err := s.Repos.WorkflowRepo.FindWorkflowByPeriodID(ctx, periodID)
	if err != nil && !errors.Is(err, apperrors.ErrNotFound) {
		return nil, err
	}
	if existing != nil {
		return s.Resume(ctx, periodID, actorID)
	}

	if surplus.IsNegative() {
		return nil, apperrors.NewAppError(400, "allocable surplus must not be negative", apperrors.ErrValidation)
	}
	period, err := s.Repos.PeriodRepo.FindPeriodByID(ctx, periodID)
	if err != nil {
		return nil, err
	}
	if period.Status != domain.PeriodOpen {
		return nil, apperrors.NewAppError(409, "period "+periodID+" has status "+string(period.Status), apperrors.ErrConflict)
	}
	drafts, err := s.Repos.TransactionRepo.CountDraftTransactionsInPeriod(ctx, periodID)
	if err != nil {
		return nil, err
	}
	if drafts > 0 {
		return nil, apperrors.NewAppError(409, "period "+periodID+" still has draft transactions", apperrors.ErrOpenTransactionsRemain)
	}

	now := time.Now().UTC()
	wf := &domain.PeriodCloseWorkflow{
		PeriodID:  periodID,
		Status:    domain.StepNotStarted,
		StartedAt: now,
		UpdatedAt: now,
	}
	// The surplus is pinned to the workflow up front; re-runs never re-read
	// it from the request.
	wf.Steps = append(wf.Steps, domain.WorkflowStep{
		Step:   domain.StepNotStarted,
		Status: domain.StepCompleted,
		Output: mustJSON(aggregateStepOutput{Surplus: surplus}),
	})
	if err := s.Repos.WorkflowRepo.SaveWorkflow(ctx, *wf); err != nil {
		return nil, err
	}

	if err := s.periodSvc.MarkPeriodClosing(ctx, periodID, actorID); err != nil {
		return nil, err
	}

	s.GetLogger(ctx).Info("Period close initiated",
		slog.String("period_id", periodID),
		slog.String("surplus", surplus.String()),
	)
	return s.advance(ctx, wf, actorID)
}

// Resume re-reads persisted state and continues from where the workflow
// stopped. Safe after a crash; completed steps are never re-executed.
func (s *PeriodCloseService) Resume(ctx context.Context, periodID string, actorID string) (*domain.PeriodCloseWorkflow, error) {
	wf, err := s.Repos.WorkflowRepo.FindWorkflowByPeriodID(ctx, periodID)
	if err != nil {
		return nil, err
	}
	switch wf.Status {
	case domain.StepFailed:
		return nil, apperrors.NewAppError(409, "close of period "+periodID+" failed and was compensated: "+wf.FailureNote, apperrors.ErrConflict)
	case domain.StepManualIntervention:
		return nil, apperrors.NewAppError(409, "close of period "+periodID+" is parked for manual intervention: "+wf.FailureNote, apperrors.ErrConflict)
	case domain.StepExecuted:
		return wf, nil
	case domain.StepAwaitingApproval:
		// Nothing to advance until approvals arrive.
		return wf, nil
	}
	return s.advance(ctx, wf, actorID)
}

// RecordApproval registers one governance approval. An approver who holds an
// allocation in the period may not approve, and double approvals are ignored
// with an error. Reaching quorum advances the workflow to execution.
func (s *PeriodCloseService) RecordApproval(ctx context.Context, periodID string, approverID string) (*domain.PeriodCloseWorkflow, error) {
	wf, err := s.Repos.WorkflowRepo.FindWorkflowByPeriodID(ctx, periodID)
	if err != nil {
		return nil, err
	}
	if wf.Status != domain.StepAwaitingApproval {
		return nil, apperrors.NewAppError(409, "close of period "+periodID+" is not awaiting approval", apperrors.ErrConflict)
	}
	if wf.HasApproval(approverID) {
		return nil, apperrors.NewAppError(409, "approver "+approverID+" already approved this close", apperrors.ErrDuplicate)
	}

	allocations, err := s.Repos.AllocationRepo.ListAllocationsByPeriod(ctx, periodID)
	if err != nil {
		return nil, err
	}
	for _, a := range allocations {
		if a.MemberID == approverID {
			return nil, apperrors.NewAppError(403, "approver "+approverID+" holds an allocation in this period", apperrors.ErrForbidden)
		}
	}

	now := time.Now().UTC()
	wf.Approvals = append(wf.Approvals, domain.CloseApproval{ApproverID: approverID, ApprovedAt: now})
	wf.UpdatedAt = now
	if err := s.Repos.WorkflowRepo.SaveWorkflow(ctx, *wf); err != nil {
		return nil, err
	}

	payload := domain.CloseApprovalPayload{PeriodID: periodID, ApproverID: approverID, ApprovedAt: now}
	if _, err := s.AppendAndPublish(ctx, domain.AggregateCloseFlow, periodID, domain.EventCloseApprovalLogged, payload, actorMeta(approverID)); err != nil {
		return nil, err
	}

	s.GetLogger(ctx).Info("Close approval recorded",
		slog.String("period_id", periodID),
		slog.String("approver_id", approverID),
		slog.Int("approvals", len(wf.Approvals)),
		slog.Int("quorum", s.quorum),
	)

	if len(wf.Approvals) >= s.quorum {
		metrics.ApprovalWaitSeconds.WithLabelValues(periodID).Set(0)
		wf.Status = domain.StepApproved
		wf.UpdatedAt = time.Now().UTC()
		if err := s.Repos.WorkflowRepo.SaveWorkflow(ctx, *wf); err != nil {
			return nil, err
		}
		return s.advance(ctx, wf, approverID)
	}
	return wf, nil
}

func (s *PeriodCloseService) GetWorkflow(ctx context.Context, periodID string) (*domain.PeriodCloseWorkflow, error) {
	return s.Repos.WorkflowRepo.FindWorkflowByPeriodID(ctx, periodID)
}

// advance runs forward steps until the workflow blocks on approval, finishes,
// or a step fails and triggers compensation.
func (s *PeriodCloseService) advance(ctx context.Context, wf *domain.PeriodCloseWorkflow, actorID string) (*domain.PeriodCloseWorkflow, error) {
	for {
		next := domain.NextCloseStep(wf.Status)
		if next == "" {
			return wf, nil
		}

		if next == domain.StepAwaitingApproval {
			wf.Status = domain.StepAwaitingApproval
			wf.UpdatedAt = time.Now().UTC()
			if err := s.Repos.WorkflowRepo.SaveWorkflow(ctx, *wf); err != nil {
				return nil, err
			}
			metrics.ApprovalWaitSeconds.WithLabelValues(wf.PeriodID).Set(0)
			return wf, nil
		}
		if next == domain.StepApproved {
			// Only RecordApproval moves past the approval gate.
			return wf, nil
		}

		if err := s.runStep(ctx, wf, next, actorID); err != nil {
			return s.compensate(ctx, wf, next, err, actorID)
		}
	}
}

// runStep executes one forward step, persisting RUNNING before the work and
// COMPLETED with the step output after it.
func (s *PeriodCloseService) runStep(ctx context.Context, wf *domain.PeriodCloseWorkflow, step domain.CloseStep, actorID string) error {
	now := time.Now().UTC()
	record := wf.StepRecord(step)
	if record == nil {
		wf.Steps = append(wf.Steps, domain.WorkflowStep{Step: step})
		record = &wf.Steps[len(wf.Steps)-1]
	}
	if record.Status == domain.StepCompleted {
		// Already done on a previous run; just move the cursor.
		wf.Status = step
		wf.UpdatedAt = now
		return s.Repos.WorkflowRepo.SaveWorkflow(ctx, *wf)
	}

	record.Status = domain.StepRunning
	record.StartedAt = &now
	record.Irreversible = step == domain.StepExecuted
	wf.UpdatedAt = now
	if err := s.Repos.WorkflowRepo.SaveWorkflow(ctx, *wf); err != nil {
		return err
	}
	s.appendCloseEvent(ctx, wf.PeriodID, domain.EventCloseStepStarted, step, "", actorID)

	var output string
	var err error
	switch step {
	case domain.StepAggregatingPatronage:
		output, err = s.stepAggregatePatronage(ctx, wf)
	case domain.StepApplyingWeights:
		output, err = s.stepApplyWeights(ctx, wf)
	case domain.StepCalculatingAllocations:
		output, err = s.stepCalculateAllocations(ctx, wf, actorID)
	case domain.StepGeneratingDistributions:
		output, err = s.stepGenerateDistributions(ctx, wf, actorID)
	case domain.StepExecuted:
		output, err = s.stepExecute(ctx, wf, actorID)
	default:
		err = apperrors.NewAppError(500, "no handler for close step "+string(step), apperrors.ErrInternal)
	}

	done := time.Now().UTC()
	record = wf.StepRecord(step)
	if err != nil {
		metrics.SagaStepTransitions.WithLabelValues(string(step), "failed").Inc()
		record.Status = domain.StepFailedState
		record.Error = err.Error()
		record.CompletedAt = &done
		wf.UpdatedAt = done
		if saveErr := s.Repos.WorkflowRepo.SaveWorkflow(ctx, *wf); saveErr != nil {
			return saveErr
		}
		s.appendCloseEvent(ctx, wf.PeriodID, domain.EventCloseStepFailed, step, err.Error(), actorID)
		return err
	}

	metrics.SagaStepTransitions.WithLabelValues(string(step), "completed").Inc()
	record.Status = domain.StepCompleted
	record.Output = output
	record.CompletedAt = &done
	wf.Status = step
	wf.UpdatedAt = done
	if err := s.Repos.WorkflowRepo.SaveWorkflow(ctx, *wf); err != nil {
		return err
	}
	s.appendCloseEvent(ctx, wf.PeriodID, domain.EventCloseStepCompleted, step, "", actorID)
	return nil
}

func (s *PeriodCloseService) stepAggregatePatronage(ctx context.Context, wf *domain.PeriodCloseWorkflow) (string, error) {
	surplus, err := pinnedSurplus(wf)
	if err != nil {
		return "", err
	}

	// Every approved contribution must have its claim materialized before
	// aggregation; the reactor creates them, so a gap means it is behind.
	approved := domain.ContribApproved
	contributions, err := s.Repos.ContributionRepo.ListContributionsByPeriod(ctx, wf.PeriodID, &approved)
	if err != nil {
		return "", err
	}
	claims, err := s.Repos.ClaimRepo.ListClaimsByPeriod(ctx, wf.PeriodID)
	if err != nil {
		return "", err
	}
	claimed := make(map[string]bool, len(claims))
	for _, c := range claims {
		claimed[c.ContributionID] = true
	}
	for _, c := range contributions {
		if !claimed[c.ContributionID] {
			return "", apperrors.NewAppError(409, "approved contribution "+c.ContributionID+" has no patronage claim yet", apperrors.ErrConflict)
		}
	}

	return mustJSON(aggregateStepOutput{Surplus: surplus, ClaimCount: len(claims)}), nil
}

func (s *PeriodCloseService) stepApplyWeights(ctx context.Context, wf *domain.PeriodCloseWorkflow) (string, error) {
	claims, err := s.Repos.ClaimRepo.ListClaimsByPeriod(ctx, wf.PeriodID)
	if err != nil {
		return "", err
	}
	totals, grand := s.formula.AggregateByMember(claims)
	if grand.LessThanOrEqual(decimal.Zero) {
		return "", apperrors.NewAppError(409, "period "+wf.PeriodID+" has no weighted patronage to allocate", apperrors.ErrConflict)
	}
	return mustJSON(weightsStepOutput{Totals: totals, Grand: grand}), nil
}

func (s *PeriodCloseService) stepCalculateAllocations(ctx context.Context, wf *domain.PeriodCloseWorkflow, actorID string) (string, error) {
	surplus, err := pinnedSurplus(wf)
	if err != nil {
		return "", err
	}
	var weights weightsStepOutput
	if err := stepOutput(wf, domain.StepApplyingWeights, &weights); err != nil {
		return "", err
	}

	allocations := s.formula.ComputeAllocations(wf.PeriodID, surplus, weights.Totals)
	report := s.formula.Verify(wf.PeriodID, surplus, allocations)
	if !report.Valid() {
		return "", apperrors.NewAppError(409, "computed allocations violate compliance invariants", apperrors.ErrValidation)
	}

	// A crash mid-step leaves proposed allocations behind without a recorded
	// output; a re-run adopts them instead of proposing duplicates.
	existing, err := s.Repos.AllocationRepo.ListAllocationsByPeriod(ctx, wf.PeriodID)
	if err != nil {
		return "", err
	}
	byMember := make(map[string]string, len(existing))
	for _, e := range existing {
		byMember[e.MemberID] = e.AllocationID
	}

	ids := make([]string, 0, len(allocations))
	for _, a := range allocations {
		if allocationID, proposed := byMember[a.MemberID]; proposed {
			ids = append(ids, allocationID)
			continue
		}
		a.AllocationID = uuid.NewString()
		payload := domain.AllocationProposedPayload{
			AllocationID:       a.AllocationID,
			MemberID:           a.MemberID,
			PeriodID:           a.PeriodID,
			TotalPatronage:     a.TotalPatronage,
			Share:              a.Share,
			TotalAllocation:    a.TotalAllocation,
			CashDistribution:   a.CashDistribution,
			RetainedAllocation: a.RetainedAllocation,
			CashRate:           a.CashRate,
		}
		if _, err := s.AppendAndPublish(ctx, domain.AggregateAllocation, a.AllocationID, domain.EventAllocationProposed, payload, actorMeta(actorID)); err != nil {
			return "", err
		}
		ids = append(ids, a.AllocationID)
	}
	return mustJSON(allocationsStepOutput{AllocationIDs: ids}), nil
}

func (s *PeriodCloseService) stepGenerateDistributions(ctx context.Context, wf *domain.PeriodCloseWorkflow, actorID string) (string, error) {
	var allocs allocationsStepOutput
	if err := stepOutput(wf, domain.StepCalculatingAllocations, &allocs); err != nil {
		return "", err
	}

	// Same re-run guard as the allocation step: adopt distributions already
	// scheduled for an allocation instead of scheduling them twice.
	existing, err := s.Repos.DistributionRepo.ListDistributionsByPeriod(ctx, wf.PeriodID)
	if err != nil {
		return "", err
	}
	byAllocation := make(map[string]string, len(existing))
	for _, d := range existing {
		byAllocation[d.AllocationID] = d.DistributionID
	}

	ids := make([]string, 0, len(allocs.AllocationIDs))
	for _, allocationID := range allocs.AllocationIDs {
		if distributionID, scheduled := byAllocation[allocationID]; scheduled {
			ids = append(ids, distributionID)
			continue
		}
		allocation, err := s.Repos.AllocationRepo.FindAllocationByID(ctx, allocationID)
		if err != nil {
			return "", err
		}
		if allocation.CashDistribution.LessThanOrEqual(decimal.Zero) {
			continue
		}
		distributionID := uuid.NewString()
		payload := domain.DistributionScheduledPayload{
			DistributionID: distributionID,
			AllocationID:   allocationID,
			MemberID:       allocation.MemberID,
			Amount:         allocation.CashDistribution,
			Method:         "ACH",
		}
		if _, err := s.AppendAndPublish(ctx, domain.AggregateDistribution, distributionID, domain.EventDistribScheduled, payload, actorMeta(actorID)); err != nil {
			return "", err
		}
		ids = append(ids, distributionID)
	}
	return mustJSON(distributionsStepOutput{DistributionIDs: ids}), nil
}

// stepExecute is the irreversible step: approve and execute every allocation,
// post the settlement that moves the allocated surplus from the equity
// suspense account into member capital ledger accounts, and close the period.
// The capital-account projection follows via the reactor chain.
func (s *PeriodCloseService) stepExecute(ctx context.Context, wf *domain.PeriodCloseWorkflow, actorID string) (string, error) {
	var allocs allocationsStepOutput
	if err := stepOutput(wf, domain.StepCalculatingAllocations, &allocs); err != nil {
		return "", err
	}

	allocations := make([]domain.Allocation, 0, len(allocs.AllocationIDs))
	for _, allocationID := range allocs.AllocationIDs {
		allocation, err := s.Repos.AllocationRepo.FindAllocationByID(ctx, allocationID)
		if err != nil {
			return "", err
		}
		if allocation.Status == domain.AllocProposed {
			payload := domain.AllocationStatusPayload{AllocationID: allocationID, ActorID: actorID}
			if _, err := s.AppendAndPublish(ctx, domain.AggregateAllocation, allocationID, domain.EventAllocationApproved, payload, actorMeta(actorID)); err != nil {
				return "", err
			}
			allocation.Status = domain.AllocApproved
		}
		if allocation.Status == domain.AllocApproved {
			payload := domain.AllocationStatusPayload{AllocationID: allocationID, ActorID: actorID}
			if _, err := s.AppendAndPublish(ctx, domain.AggregateAllocation, allocationID, domain.EventAllocationExecuted, payload, actorMeta(actorID)); err != nil {
				return "", err
			}
		}
		allocations = append(allocations, *allocation)
	}

	if err := s.postAllocationSettlement(ctx, wf, allocations, actorID); err != nil {
		return "", err
	}

	if _, err := s.periodSvc.ClosePeriod(ctx, wf.PeriodID, actorID); err != nil {
		return "", err
	}
	return "", nil
}

// postAllocationSettlement posts the book-ledger leg of an executed close:
// debit the equity suspense account for the full surplus, credit each
// member's capital account with their total allocation. Later cash
// distributions debit the same capital accounts, leaving the retained share
// behind. Skipped with a warning when the equity account is not configured.
func (s *PeriodCloseService) postAllocationSettlement(ctx context.Context, wf *domain.PeriodCloseWorkflow, allocations []domain.Allocation, actorID string) error {
	logger := s.GetLogger(ctx)
	if s.equityAccountID == "" {
		logger.Warn("Equity suspense account not configured; skipping allocation settlement posting",
			slog.String("period_id", wf.PeriodID),
		)
		return nil
	}

	total := decimal.Zero
	entries := make([]dto.EntryRequest, 0, len(allocations)+1)
	for _, a := range allocations {
		if a.TotalAllocation.LessThanOrEqual(decimal.Zero) {
			continue
		}
		capitalAccount, err := s.Repos.AccountRepo.FindMemberCapitalAccount(ctx, a.MemberID, domain.BookLedger)
		if err != nil {
			return err
		}
		entries = append(entries, dto.EntryRequest{
			AccountID: capitalAccount.AccountID,
			Direction: string(domain.Credit),
			Amount:    a.TotalAllocation,
			Memo:      "patronage allocation " + a.AllocationID,
		})
		total = total.Add(a.TotalAllocation)
	}
	if len(entries) == 0 {
		// A zero-surplus close has nothing to move.
		return nil
	}
	entries = append(entries, dto.EntryRequest{
		AccountID: s.equityAccountID,
		Direction: string(domain.Debit),
		Amount:    total,
		Memo:      "patronage allocation funding",
	})

	req := dto.PostTransactionRequest{
		Date:        time.Now().UTC(),
		PeriodID:    wf.PeriodID,
		Description: "Patronage allocation settlement for period " + wf.PeriodID,
		Entries:     entries,
	}
	if _, err := s.ledger.PostTransaction(ctx, req, actorID, true); err != nil {
		return err
	}

	logger.Info("Allocation settlement posted",
		slog.String("period_id", wf.PeriodID),
		slog.String("amount", total.String()),
	)
	return nil
}

// compensate undoes completed reversible steps in reverse order. A failure
// at or after the irreversible execution step parks the workflow for manual
// intervention instead.
func (s *PeriodCloseService) compensate(ctx context.Context, wf *domain.PeriodCloseWorkflow, failedStep domain.CloseStep, cause error, actorID string) (*domain.PeriodCloseWorkflow, error) {
	logger := s.GetLogger(ctx)
	now := time.Now().UTC()

	if failedStep == domain.StepExecuted {
		wf.Status = domain.StepManualIntervention
		wf.FailureNote = cause.Error()
		wf.UpdatedAt = now
		if err := s.Repos.WorkflowRepo.SaveWorkflow(ctx, *wf); err != nil {
			return nil, err
		}
		s.appendCloseEvent(ctx, wf.PeriodID, domain.EventCloseParkedForManual, failedStep, cause.Error(), actorID)
		logger.Error("Period close parked for manual intervention",
			slog.String("period_id", wf.PeriodID),
			slog.String("error", cause.Error()),
		)
		return wf, cause
	}

	logger.Warn("Compensating period close",
		slog.String("period_id", wf.PeriodID),
		slog.String("failed_step", string(failedStep)),
		slog.String("error", cause.Error()),
	)

	// Reverse order: cancel scheduled distributions, delete proposed
	// allocations, reopen the period. Compensation works off the projections
	// rather than step outputs: a crash mid-step leaves events behind with no
	// recorded output, and those must be undone too.
	distributions, err := s.Repos.DistributionRepo.ListDistributionsByPeriod(ctx, wf.PeriodID)
	if err != nil {
		logger.Error("Failed to list distributions during compensation",
			slog.String("period_id", wf.PeriodID),
			slog.String("error", err.Error()),
		)
	}
	for _, d := range distributions {
		if d.Status != domain.DistScheduled {
			continue
		}
		payload := domain.DistributionStatusPayload{DistributionID: d.DistributionID, Reason: "period close compensated"}
		if _, err := s.AppendAndPublish(ctx, domain.AggregateDistribution, d.DistributionID, domain.EventDistribCancelled, payload, actorMeta(actorID)); err != nil {
			logger.Error("Failed to cancel distribution during compensation",
				slog.String("distribution_id", d.DistributionID),
				slog.String("error", err.Error()),
			)
		}
	}

	allocations, err := s.Repos.AllocationRepo.ListAllocationsByPeriod(ctx, wf.PeriodID)
	if err != nil {
		logger.Error("Failed to list allocations during compensation",
			slog.String("period_id", wf.PeriodID),
			slog.String("error", err.Error()),
		)
	}
	for _, a := range allocations {
		payload := domain.AllocationStatusPayload{AllocationID: a.AllocationID, ActorID: actorID}
		if _, err := s.AppendAndPublish(ctx, domain.AggregateAllocation, a.AllocationID, domain.EventAllocationDeleted, payload, actorMeta(actorID)); err != nil {
			logger.Error("Failed to delete allocation during compensation",
				slog.String("allocation_id", a.AllocationID),
				slog.String("error", err.Error()),
			)
		}
	}

	if err := s.periodSvc.ReopenPeriod(ctx, wf.PeriodID, actorID); err != nil {
		logger.Error("Failed to reopen period during compensation",
			slog.String("period_id", wf.PeriodID),
			slog.String("error", err.Error()),
		)
	}

	for i := range wf.Steps {
		if wf.Steps[i].Status == domain.StepCompleted && wf.Steps[i].Step != domain.StepNotStarted {
			wf.Steps[i].Status = domain.StepCompensated
		}
	}
	wf.Status = domain.StepFailed
	wf.FailureNote = cause.Error()
	wf.UpdatedAt = time.Now().UTC()
	if err := s.Repos.WorkflowRepo.SaveWorkflow(ctx, *wf); err != nil {
		return nil, err
	}
	s.appendCloseEvent(ctx, wf.PeriodID, domain.EventCloseCompensated, failedStep, cause.Error(), actorID)
	metrics.SagaStepTransitions.WithLabelValues(string(failedStep), "compensated").Inc()
	return wf, cause
}

func (s *PeriodCloseService) appendCloseEvent(ctx context.Context, periodID string, eventType domain.EventType, step domain.CloseStep, detail string, actorID string) {
	payload := domain.CloseStepPayload{PeriodID: periodID, Step: step, Detail: detail}
	if _, err := s.AppendAndPublish(ctx, domain.AggregateCloseFlow, periodID, eventType, payload, actorMeta(actorID)); err != nil {
		s.LogError(ctx, err, "Failed to append close audit event",
			slog.String("period_id", periodID),
			slog.String("event_type", string(eventType)),
		)
	}
}

// pinnedSurplus reads the surplus recorded at initiation. The validator
// service reads it too, so re-verification uses the same surplus the close
// was executed with.
func pinnedSurplus(wf *domain.PeriodCloseWorkflow) (decimal.Decimal, error) {
	var out aggregateStepOutput
	if err := stepOutput(wf, domain.StepNotStarted, &out); err != nil {
		return decimal.Zero, err
	}
	return out.Surplus, nil
}

func stepOutput(wf *domain.PeriodCloseWorkflow, step domain.CloseStep, into any) error {
	record := wf.StepRecord(step)
	if record == nil || record.Output == "" {
		return apperrors.NewAppError(500, "missing output for close step "+string(step), apperrors.ErrInternal)
	}
	if err := json.Unmarshal([]byte(record.Output), into); err != nil {
		return apperrors.NewAppError(500, "corrupt output for close step "+string(step), err)
	}
	return nil
}

func mustJSON(v any) string {
	raw, err := json.Marshal(v)
	if err != nil {
		return "{}"
	}
	return string(raw)
}
