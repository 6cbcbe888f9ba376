package services_test

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/commonward/coop_ledger_app/internal/apperrors"
	"github.com/commonward/coop_ledger_app/internal/core/domain"
	portsrepo "github.com/commonward/coop_ledger_app/internal/core/ports/repositories"
)

// In-memory repository fakes. They mirror the behavior of the pgsql layer
// closely enough that service tests exercise the full append → project →
// read-back loop without a database: the event store enforces the expected
// sequence, the claim store enforces one claim per contribution, and the
// idempotency store enforces one record per (event, handler).

type memEventStore struct {
	mu     sync.Mutex
	events []domain.Event
}

func (s *memEventStore) AppendEvent(_ context.Context, params portsrepo.AppendEventParams) (*domain.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var latest int64
	for _, e := range s.events {
		if e.AggregateType == params.AggregateType && e.AggregateID == params.AggregateID && e.SequenceNumber > latest {
			latest = e.SequenceNumber
		}
	}
	if params.ExpectedSequence != latest+1 {
		return nil, apperrors.ErrConcurrencyConflict
	}

	event := domain.Event{
		EventID:        uuid.NewString(),
		AggregateType:  params.AggregateType,
		AggregateID:    params.AggregateID,
		EventType:      params.EventType,
		Payload:        params.Payload,
		Metadata:       params.Metadata,
		SequenceNumber: params.ExpectedSequence,
		GlobalSequence: int64(len(s.events) + 1),
		OccurredAt:     time.Now().UTC(),
	}
	s.events = append(s.events, event)
	return &event, nil
}

func (s *memEventStore) ReadStream(_ context.Context, aggregateType domain.AggregateType, aggregateID string, fromSeq int64, limit int) ([]domain.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Event
	for _, e := range s.events {
		if e.AggregateType == aggregateType && e.AggregateID == aggregateID && e.SequenceNumber > fromSeq {
			out = append(out, e)
			if limit > 0 && len(out) == limit {
				break
			}
		}
	}
	return out, nil
}

func (s *memEventStore) ReadAll(_ context.Context, fromGlobalSeq int64, limit int) ([]domain.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Event
	for _, e := range s.events {
		if e.GlobalSequence > fromGlobalSeq {
			out = append(out, e)
			if limit > 0 && len(out) == limit {
				break
			}
		}
	}
	return out, nil
}

func (s *memEventStore) LatestSequence(_ context.Context, aggregateType domain.AggregateType, aggregateID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var latest int64
	for _, e := range s.events {
		if e.AggregateType == aggregateType && e.AggregateID == aggregateID && e.SequenceNumber > latest {
			latest = e.SequenceNumber
		}
	}
	return latest, nil
}

func (s *memEventStore) FindEventByID(_ context.Context, eventID string) (*domain.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range s.events {
		if e.EventID == eventID {
			out := e
			return &out, nil
		}
	}
	return nil, apperrors.ErrNotFound
}

func (s *memEventStore) countByType(eventType domain.EventType) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, e := range s.events {
		if e.EventType == eventType {
			n++
		}
	}
	return n
}

type memAccountRepo struct {
	mu       sync.Mutex
	accounts map[string]domain.Account
}

func (r *memAccountRepo) SaveAccount(_ context.Context, account domain.Account) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.accounts[account.AccountID] = account
	return nil
}

func (r *memAccountRepo) FindAccountByID(_ context.Context, accountID string) (*domain.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.accounts[accountID]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	return &a, nil
}

func (r *memAccountRepo) FindAccountsByIDs(_ context.Context, accountIDs []string) (map[string]domain.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := map[string]domain.Account{}
	for _, id := range accountIDs {
		if a, ok := r.accounts[id]; ok {
			out[id] = a
		}
	}
	return out, nil
}

func (r *memAccountRepo) FindMemberCapitalAccount(_ context.Context, memberID string, ledger domain.LedgerKind) (*domain.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, a := range r.accounts {
		if a.IsMemberCapital && a.MemberID != nil && *a.MemberID == memberID && a.Ledger == ledger {
			out := a
			return &out, nil
		}
	}
	return nil, apperrors.ErrNotFound
}

func (r *memAccountRepo) ListAccounts(_ context.Context, limit, offset int) ([]domain.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]domain.Account, 0, len(r.accounts))
	for _, a := range r.accounts {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Number < out[j].Number })
	return paginate(out, limit, offset), nil
}

func (r *memAccountRepo) AdjustBalances(_ context.Context, deltas map[string]decimal.Decimal, updatedBy string, updatedAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, delta := range deltas {
		a, ok := r.accounts[id]
		if !ok {
			return apperrors.ErrNotFound
		}
		a.Balance = a.Balance.Add(delta)
		a.LastUpdatedBy = updatedBy
		a.LastUpdatedAt = updatedAt
		r.accounts[id] = a
	}
	return nil
}

func (r *memAccountRepo) SetAccountActive(_ context.Context, accountID string, active bool, updatedBy string, updatedAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.accounts[accountID]
	if !ok {
		return apperrors.ErrNotFound
	}
	a.IsActive = active
	a.LastUpdatedBy = updatedBy
	a.LastUpdatedAt = updatedAt
	r.accounts[accountID] = a
	return nil
}

type memTransactionRepo struct {
	mu   sync.Mutex
	txns map[string]domain.Transaction
}

func (r *memTransactionRepo) SaveTransaction(_ context.Context, txn domain.Transaction) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.txns[txn.TransactionID]; exists {
		return nil
	}
	r.txns[txn.TransactionID] = txn
	return nil
}

func (r *memTransactionRepo) FindTransactionByID(_ context.Context, transactionID string) (*domain.Transaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.txns[transactionID]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	return &t, nil
}

func (r *memTransactionRepo) MarkTransactionVoid(_ context.Context, transactionID, reason, updatedBy string, updatedAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.txns[transactionID]
	if !ok {
		return apperrors.ErrNotFound
	}
	t.Status = domain.TxnVoid
	t.VoidReason = reason
	t.LastUpdatedBy = updatedBy
	t.LastUpdatedAt = updatedAt
	r.txns[transactionID] = t
	return nil
}

func (r *memTransactionRepo) ListTransactionsByPeriod(_ context.Context, periodID string, status *domain.TransactionStatus) ([]domain.Transaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Transaction
	for _, t := range r.txns {
		if t.PeriodID != periodID {
			continue
		}
		if status != nil && t.Status != *status {
			continue
		}
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TransactionID < out[j].TransactionID })
	return out, nil
}

func (r *memTransactionRepo) CountDraftTransactionsInPeriod(_ context.Context, periodID string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, t := range r.txns {
		if t.PeriodID == periodID && t.Status == domain.TxnDraft {
			n++
		}
	}
	return n, nil
}

func (r *memTransactionRepo) ListEntriesByAccount(_ context.Context, accountID string, asOf *time.Time) ([]domain.Entry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Entry
	for _, t := range r.txns {
		if t.Status != domain.TxnPosted {
			continue
		}
		if asOf != nil && t.Date.After(*asOf) {
			continue
		}
		for _, e := range t.Entries {
			if e.AccountID == accountID {
				out = append(out, e)
			}
		}
	}
	return out, nil
}

func (r *memTransactionRepo) ListAllEntries(_ context.Context) ([]domain.Entry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Entry
	for _, t := range r.txns {
		if t.Status != domain.TxnPosted {
			continue
		}
		out = append(out, t.Entries...)
	}
	return out, nil
}

type memPeriodRepo struct {
	mu      sync.Mutex
	periods map[string]domain.Period
}

func (r *memPeriodRepo) SavePeriod(_ context.Context, period domain.Period) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.periods[period.PeriodID] = period
	return nil
}

func (r *memPeriodRepo) FindPeriodByID(_ context.Context, periodID string) (*domain.Period, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.periods[periodID]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	return &p, nil
}

func (r *memPeriodRepo) UpdatePeriodStatus(_ context.Context, periodID string, status domain.PeriodStatus, updatedBy string, updatedAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.periods[periodID]
	if !ok {
		return apperrors.NewNotFoundError("period " + periodID + " not found")
	}
	p.Status = status
	p.LastUpdatedBy = updatedBy
	p.LastUpdatedAt = updatedAt
	r.periods[periodID] = p
	return nil
}

func (r *memPeriodRepo) ListPeriods(_ context.Context, limit, offset int) ([]domain.Period, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]domain.Period, 0, len(r.periods))
	for _, p := range r.periods {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Start.After(out[j].Start) })
	return paginate(out, limit, offset), nil
}

type memMemberRepo struct {
	mu      sync.Mutex
	members map[string]domain.Member
}

func (r *memMemberRepo) SaveMember(_ context.Context, member domain.Member) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.members[member.MemberID] = member
	return nil
}

func (r *memMemberRepo) FindMemberByID(_ context.Context, memberID string) (*domain.Member, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.members[memberID]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	return &m, nil
}

func (r *memMemberRepo) ListMembers(_ context.Context, limit, offset int) ([]domain.Member, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]domain.Member, 0, len(r.members))
	for _, m := range r.members {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return paginate(out, limit, offset), nil
}

type memContributionRepo struct {
	mu            sync.Mutex
	contributions map[string]domain.Contribution
}

func (r *memContributionRepo) SaveContribution(_ context.Context, contribution domain.Contribution) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.contributions[contribution.ContributionID] = contribution
	return nil
}

func (r *memContributionRepo) FindContributionByID(_ context.Context, contributionID string) (*domain.Contribution, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.contributions[contributionID]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	return &c, nil
}

func (r *memContributionRepo) UpdateContributionStatus(_ context.Context, contributionID string, status domain.ContributionStatus, reason, updatedBy string, updatedAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.contributions[contributionID]
	if !ok {
		return apperrors.ErrNotFound
	}
	c.Status = status
	c.DecisionReason = reason
	c.LastUpdatedBy = updatedBy
	c.LastUpdatedAt = updatedAt
	r.contributions[contributionID] = c
	return nil
}

func (r *memContributionRepo) ListContributionsByPeriod(_ context.Context, periodID string, status *domain.ContributionStatus) ([]domain.Contribution, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Contribution
	for _, c := range r.contributions {
		if c.PeriodID != periodID {
			continue
		}
		if status != nil && c.Status != *status {
			continue
		}
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ContributionID < out[j].ContributionID })
	return out, nil
}

func (r *memContributionRepo) ListContributionsByMember(_ context.Context, memberID string, limit, offset int) ([]domain.Contribution, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Contribution
	for _, c := range r.contributions {
		if c.MemberID == memberID {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ContributionID < out[j].ContributionID })
	return paginate(out, limit, offset), nil
}

type memClaimRepo struct {
	mu     sync.Mutex
	claims map[string]domain.PatronageClaim // keyed by claim ID
}

func (r *memClaimRepo) SaveClaim(_ context.Context, claim domain.PatronageClaim) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.claims {
		if c.ContributionID == claim.ContributionID {
			return apperrors.ErrDuplicate
		}
	}
	r.claims[claim.ClaimID] = claim
	return nil
}

func (r *memClaimRepo) FindClaimByContributionID(_ context.Context, contributionID string) (*domain.PatronageClaim, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.claims {
		if c.ContributionID == contributionID {
			out := c
			return &out, nil
		}
	}
	return nil, apperrors.ErrNotFound
}

func (r *memClaimRepo) MarkClaimRevoked(_ context.Context, claimID, updatedBy string, updatedAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.claims[claimID]
	if !ok {
		return apperrors.ErrNotFound
	}
	c.Revoked = true
	c.LastUpdatedBy = updatedBy
	c.LastUpdatedAt = updatedAt
	r.claims[claimID] = c
	return nil
}

func (r *memClaimRepo) ListClaimsByPeriod(_ context.Context, periodID string) ([]domain.PatronageClaim, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.PatronageClaim
	for _, c := range r.claims {
		if c.PeriodID == periodID {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ClaimID < out[j].ClaimID })
	return out, nil
}

type memAllocationRepo struct {
	mu          sync.Mutex
	allocations map[string]domain.Allocation
}

func (r *memAllocationRepo) SaveAllocation(_ context.Context, allocation domain.Allocation) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.allocations[allocation.AllocationID] = allocation
	return nil
}

func (r *memAllocationRepo) FindAllocationByID(_ context.Context, allocationID string) (*domain.Allocation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.allocations[allocationID]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	return &a, nil
}

func (r *memAllocationRepo) UpdateAllocationStatus(_ context.Context, allocationID string, status domain.AllocationStatus, updatedBy string, updatedAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.allocations[allocationID]
	if !ok {
		return apperrors.ErrNotFound
	}
	a.Status = status
	a.LastUpdatedBy = updatedBy
	a.LastUpdatedAt = updatedAt
	r.allocations[allocationID] = a
	return nil
}

func (r *memAllocationRepo) DeleteAllocation(_ context.Context, allocationID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.allocations, allocationID)
	return nil
}

func (r *memAllocationRepo) ListAllocationsByPeriod(_ context.Context, periodID string) ([]domain.Allocation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Allocation
	for _, a := range r.allocations {
		if a.PeriodID == periodID {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].MemberID < out[j].MemberID })
	return out, nil
}

func (r *memAllocationRepo) ListAllocationsByMember(_ context.Context, memberID string) ([]domain.Allocation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Allocation
	for _, a := range r.allocations {
		if a.MemberID == memberID {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].AllocationID < out[j].AllocationID })
	return out, nil
}

type memDistributionRepo struct {
	mu            sync.Mutex
	distributions map[string]domain.Distribution
	allocations   *memAllocationRepo // for the period join
}

func (r *memDistributionRepo) SaveDistribution(_ context.Context, distribution domain.Distribution) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.distributions[distribution.DistributionID] = distribution
	return nil
}

func (r *memDistributionRepo) FindDistributionByID(_ context.Context, distributionID string) (*domain.Distribution, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.distributions[distributionID]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	return &d, nil
}

func (r *memDistributionRepo) UpdateDistributionStatus(_ context.Context, distributionID string, status domain.DistributionStatus, reason, updatedBy string, updatedAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.distributions[distributionID]
	if !ok {
		return apperrors.ErrNotFound
	}
	d.Status = status
	d.FailureReason = reason
	d.LastUpdatedBy = updatedBy
	d.LastUpdatedAt = updatedAt
	r.distributions[distributionID] = d
	return nil
}

func (r *memDistributionRepo) ListDistributionsByAllocation(_ context.Context, allocationID string) ([]domain.Distribution, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Distribution
	for _, d := range r.distributions {
		if d.AllocationID == allocationID {
			out = append(out, d)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DistributionID < out[j].DistributionID })
	return out, nil
}

func (r *memDistributionRepo) ListDistributionsByPeriod(ctx context.Context, periodID string) ([]domain.Distribution, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Distribution
	for _, d := range r.distributions {
		alloc, err := r.allocations.FindAllocationByID(ctx, d.AllocationID)
		if err != nil {
			continue
		}
		if alloc.PeriodID == periodID {
			out = append(out, d)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DistributionID < out[j].DistributionID })
	return out, nil
}

type memCapitalRepo struct {
	mu        sync.Mutex
	accounts  map[string]domain.CapitalAccount
	movements []portsrepo.CapitalMovement
}

func (r *memCapitalRepo) FindCapitalAccount(_ context.Context, memberID string) (*domain.CapitalAccount, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.accounts[memberID]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	return &a, nil
}

func (r *memCapitalRepo) ApplyMovement(_ context.Context, movement portsrepo.CapitalMovement, updatedBy string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	a := r.accounts[movement.MemberID]
	a.MemberID = movement.MemberID

	bookDelta := movement.Amount
	taxDelta := movement.TaxAmount
	switch movement.Bucket {
	case domain.BucketContributed:
		a.ContributedCapital = a.ContributedCapital.Add(movement.Amount)
	case domain.BucketRetained:
		a.RetainedPatronage = a.RetainedPatronage.Add(movement.Amount)
	case domain.BucketDistributed:
		a.DistributedPatronage = a.DistributedPatronage.Add(movement.Amount)
		bookDelta = bookDelta.Neg()
		taxDelta = taxDelta.Neg()
	}
	a.BookBalance = a.BookBalance.Add(bookDelta)
	a.TaxBalance = a.TaxBalance.Add(taxDelta)
	a.LastUpdatedBy = updatedBy
	a.LastUpdatedAt = time.Now().UTC()

	r.accounts[movement.MemberID] = a
	r.movements = append(r.movements, movement)
	return nil
}

func (r *memCapitalRepo) ListMovements(_ context.Context, memberID string) ([]portsrepo.CapitalMovement, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []portsrepo.CapitalMovement
	for _, m := range r.movements {
		if m.MemberID == memberID {
			out = append(out, m)
		}
	}
	return out, nil
}

func (r *memCapitalRepo) ListCapitalAccounts(_ context.Context) ([]domain.CapitalAccount, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]domain.CapitalAccount, 0, len(r.accounts))
	for _, a := range r.accounts {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].MemberID < out[j].MemberID })
	return out, nil
}

type memWorkflowRepo struct {
	mu        sync.Mutex
	workflows map[string]domain.PeriodCloseWorkflow
}

func (r *memWorkflowRepo) SaveWorkflow(_ context.Context, wf domain.PeriodCloseWorkflow) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	wf.Steps = append([]domain.WorkflowStep(nil), wf.Steps...)
	wf.Approvals = append([]domain.CloseApproval(nil), wf.Approvals...)
	r.workflows[wf.PeriodID] = wf
	return nil
}

func (r *memWorkflowRepo) FindWorkflowByPeriodID(_ context.Context, periodID string) (*domain.PeriodCloseWorkflow, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	wf, ok := r.workflows[periodID]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	out := wf
	out.Steps = append([]domain.WorkflowStep(nil), wf.Steps...)
	out.Approvals = append([]domain.CloseApproval(nil), wf.Approvals...)
	return &out, nil
}

func (r *memWorkflowRepo) ListWorkflows(_ context.Context, statuses []domain.CloseStep) ([]domain.PeriodCloseWorkflow, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.PeriodCloseWorkflow
	for _, wf := range r.workflows {
		for _, s := range statuses {
			if wf.Status == s {
				out = append(out, wf)
				break
			}
		}
	}
	return out, nil
}

type memIdempotencyRepo struct {
	mu      sync.Mutex
	records map[string]domain.ProcessedEvent
}

func idemKey(eventID, handlerName string) string {
	return eventID + "/" + handlerName
}

func (r *memIdempotencyRepo) TryBegin(_ context.Context, eventID, handlerName string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	k := idemKey(eventID, handlerName)
	if _, exists := r.records[k]; exists {
		return apperrors.ErrDuplicate
	}
	r.records[k] = domain.ProcessedEvent{
		EventID:     eventID,
		HandlerName: handlerName,
		Status:      domain.HandlerPending,
		ProcessedAt: time.Now().UTC(),
	}
	return nil
}

func (r *memIdempotencyRepo) MarkSuccess(_ context.Context, eventID, handlerName string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec := r.records[idemKey(eventID, handlerName)]
	rec.Status = domain.HandlerSuccess
	rec.LastError = ""
	r.records[idemKey(eventID, handlerName)] = rec
	return nil
}

func (r *memIdempotencyRepo) MarkError(_ context.Context, eventID, handlerName string, retryCount int, lastError string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec := r.records[idemKey(eventID, handlerName)]
	rec.Status = domain.HandlerError
	rec.RetryCount = retryCount
	rec.LastError = lastError
	r.records[idemKey(eventID, handlerName)] = rec
	return nil
}

func (r *memIdempotencyRepo) Find(_ context.Context, eventID, handlerName string) (*domain.ProcessedEvent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records[idemKey(eventID, handlerName)]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	return &rec, nil
}

func (r *memIdempotencyRepo) ListByStatus(_ context.Context, status domain.HandlerStatus, limit int) ([]domain.ProcessedEvent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.ProcessedEvent
	for _, rec := range r.records {
		if rec.Status == status {
			out = append(out, rec)
			if limit > 0 && len(out) == limit {
				break
			}
		}
	}
	return out, nil
}

type memCheckpointRepo struct {
	mu          sync.Mutex
	checkpoints map[string]int64
	offsets     map[string]int64
	halts       map[string]string
}

func (r *memCheckpointRepo) GetGlobalCheckpoint(_ context.Context, projectorName string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.checkpoints[projectorName], nil
}

func (r *memCheckpointRepo) SetGlobalCheckpoint(_ context.Context, projectorName string, globalSeq int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.checkpoints[projectorName] = globalSeq
	return nil
}

func (r *memCheckpointRepo) offsetKey(projectorName string, aggregateType domain.AggregateType, aggregateID string) string {
	return projectorName + "/" + string(aggregateType) + "/" + aggregateID
}

func (r *memCheckpointRepo) GetAggregateOffset(_ context.Context, projectorName string, aggregateType domain.AggregateType, aggregateID string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.offsets[r.offsetKey(projectorName, aggregateType, aggregateID)], nil
}

func (r *memCheckpointRepo) SetAggregateOffset(_ context.Context, projectorName string, aggregateType domain.AggregateType, aggregateID string, seq int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.offsets[r.offsetKey(projectorName, aggregateType, aggregateID)] = seq
	return nil
}

func (r *memCheckpointRepo) MarkAggregateHalted(_ context.Context, projectorName string, aggregateType domain.AggregateType, aggregateID, reason string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.halts[r.offsetKey(projectorName, aggregateType, aggregateID)] = reason
	return nil
}

func (r *memCheckpointRepo) IsAggregateHalted(_ context.Context, projectorName string, aggregateType domain.AggregateType, aggregateID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, halted := r.halts[r.offsetKey(projectorName, aggregateType, aggregateID)]
	return halted, nil
}

func (r *memCheckpointRepo) ClearHalts(_ context.Context, projectorName string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for k := range r.halts {
		if strings.HasPrefix(k, projectorName+"/") {
			delete(r.halts, k)
		}
	}
	return nil
}

func (r *memCheckpointRepo) Reset(_ context.Context, projectorName string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.checkpoints, projectorName)
	for k := range r.offsets {
		if strings.HasPrefix(k, projectorName+"/") {
			delete(r.offsets, k)
		}
	}
	for k := range r.halts {
		if strings.HasPrefix(k, projectorName+"/") {
			delete(r.halts, k)
		}
	}
	return nil
}

// memProjectionAdmin wipes every projection fake, mirroring the TRUNCATE the
// pgsql admin performs ahead of a rebuild.
type memProjectionAdmin struct {
	accounts      *memAccountRepo
	txns          *memTransactionRepo
	periods       *memPeriodRepo
	members       *memMemberRepo
	contributions *memContributionRepo
	claims        *memClaimRepo
	allocations   *memAllocationRepo
	distributions *memDistributionRepo
	capital       *memCapitalRepo
}

func (a *memProjectionAdmin) TruncateProjections(_ context.Context) error {
	a.accounts.accounts = map[string]domain.Account{}
	a.txns.txns = map[string]domain.Transaction{}
	a.periods.periods = map[string]domain.Period{}
	a.members.members = map[string]domain.Member{}
	a.contributions.contributions = map[string]domain.Contribution{}
	a.claims.claims = map[string]domain.PatronageClaim{}
	a.allocations.allocations = map[string]domain.Allocation{}
	a.distributions.distributions = map[string]domain.Distribution{}
	a.capital.accounts = map[string]domain.CapitalAccount{}
	a.capital.movements = nil
	return nil
}

// newMemProvider wires a fully in-memory RepositoryProvider.
func newMemProvider() (portsrepo.RepositoryProvider, *memEventStore) {
	eventStore := &memEventStore{}
	accounts := &memAccountRepo{accounts: map[string]domain.Account{}}
	txns := &memTransactionRepo{txns: map[string]domain.Transaction{}}
	periods := &memPeriodRepo{periods: map[string]domain.Period{}}
	members := &memMemberRepo{members: map[string]domain.Member{}}
	contributions := &memContributionRepo{contributions: map[string]domain.Contribution{}}
	claims := &memClaimRepo{claims: map[string]domain.PatronageClaim{}}
	allocations := &memAllocationRepo{allocations: map[string]domain.Allocation{}}
	distributions := &memDistributionRepo{distributions: map[string]domain.Distribution{}, allocations: allocations}
	capital := &memCapitalRepo{accounts: map[string]domain.CapitalAccount{}}
	workflows := &memWorkflowRepo{workflows: map[string]domain.PeriodCloseWorkflow{}}
	idempotency := &memIdempotencyRepo{records: map[string]domain.ProcessedEvent{}}
	checkpoints := &memCheckpointRepo{
		checkpoints: map[string]int64{},
		offsets:     map[string]int64{},
		halts:       map[string]string{},
	}

	return portsrepo.RepositoryProvider{
		EventStoreRepo:     eventStore,
		AccountRepo:        accounts,
		TransactionRepo:    txns,
		PeriodRepo:         periods,
		MemberRepo:         members,
		ContributionRepo:   contributions,
		ClaimRepo:          claims,
		AllocationRepo:     allocations,
		DistributionRepo:   distributions,
		CapitalAccountRepo: capital,
		WorkflowRepo:       workflows,
		IdempotencyRepo:    idempotency,
		CheckpointRepo:     checkpoints,
		ProjectionAdmin: &memProjectionAdmin{
			accounts:      accounts,
			txns:          txns,
			periods:       periods,
			members:       members,
			contributions: contributions,
			claims:        claims,
			allocations:   allocations,
			distributions: distributions,
			capital:       capital,
		},
	}, eventStore
}

func paginate[T any](items []T, limit, offset int) []T {
	if offset >= len(items) {
		return nil
	}
	items = items[offset:]
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}
