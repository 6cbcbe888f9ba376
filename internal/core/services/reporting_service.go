package services

import (
	"context"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/commonward/coop_ledger_app/internal/core/domain"
	portsrepo "github.com/commonward/coop_ledger_app/internal/core/ports/repositories"
	"github.com/commonward/coop_ledger_app/internal/eventbus"
)

// ReportingService derives compliance exports purely from projections. It
// appends no events.
type ReportingService struct {
	BaseService
}

func NewReportingService(repos portsrepo.RepositoryProvider, bus *eventbus.Bus) *ReportingService {
	return &ReportingService{BaseService: BaseService{Repos: repos, Bus: bus}}
}

// PatronageSummary groups a period's non-revoked claims per member with each
// member's share of the total weighted value.
func (s *ReportingService) PatronageSummary(ctx context.Context, periodID string) (*domain.PatronageSummary, error) {
	claims, err := s.Repos.ClaimRepo.ListClaimsByPeriod(ctx, periodID)
	if err != nil {
		return nil, err
	}

	type memberAgg struct {
		claimCount int
		raw        decimal.Decimal
		weighted   decimal.Decimal
	}
	perMember := map[string]*memberAgg{}
	totalWeighted := decimal.Zero
	for _, c := range claims {
		if c.Revoked {
			continue
		}
		agg, ok := perMember[c.MemberID]
		if !ok {
			agg = &memberAgg{}
			perMember[c.MemberID] = agg
		}
		agg.claimCount++
		agg.raw = agg.raw.Add(c.RawValue)
		agg.weighted = agg.weighted.Add(c.WeightedValue)
		totalWeighted = totalWeighted.Add(c.WeightedValue)
	}

	memberIDs := make([]string, 0, len(perMember))
	for id := range perMember {
		memberIDs = append(memberIDs, id)
	}
	sort.Strings(memberIDs)

	rows := make([]domain.PatronageSummaryRow, 0, len(memberIDs))
	for _, memberID := range memberIDs {
		agg := perMember[memberID]
		share := decimal.Zero
		if totalWeighted.GreaterThan(decimal.Zero) {
			share = agg.weighted.Div(totalWeighted)
		}
		memberName := ""
		if member, err := s.Repos.MemberRepo.FindMemberByID(ctx, memberID); err == nil {
			memberName = member.Name
		}
		rows = append(rows, domain.PatronageSummaryRow{
			MemberID:      memberID,
			MemberName:    memberName,
			ClaimCount:    agg.claimCount,
			RawValue:      agg.raw,
			WeightedValue: agg.weighted,
			Share:         share,
		})
	}

	return &domain.PatronageSummary{
		PeriodID:           periodID,
		TotalWeightedValue: totalWeighted,
		Rows:               rows,
	}, nil
}

// AllocationStatement sums a period's allocations into the compliance export.
func (s *ReportingService) AllocationStatement(ctx context.Context, periodID string, surplus decimal.Decimal) (*domain.AllocationStatement, error) {
	allocations, err := s.Repos.AllocationRepo.ListAllocationsByPeriod(ctx, periodID)
	if err != nil {
		return nil, err
	}

	totalCash := decimal.Zero
	totalRetained := decimal.Zero
	cashRate := decimal.Zero
	for _, a := range allocations {
		totalCash = totalCash.Add(a.CashDistribution)
		totalRetained = totalRetained.Add(a.RetainedAllocation)
		cashRate = a.CashRate
	}

	return &domain.AllocationStatement{
		PeriodID:      periodID,
		Surplus:       surplus,
		TotalCash:     totalCash,
		TotalRetained: totalRetained,
		CashRate:      cashRate,
		Allocations:   allocations,
		GeneratedAt:   time.Now().UTC(),
	}, nil
}

// CapitalStatement exports one member's capital account with every movement.
func (s *ReportingService) CapitalStatement(ctx context.Context, memberID string) (*domain.CapitalStatement, error) {
	account, err := s.Repos.CapitalAccountRepo.FindCapitalAccount(ctx, memberID)
	if err != nil {
		return nil, err
	}
	movements, err := s.Repos.CapitalAccountRepo.ListMovements(ctx, memberID)
	if err != nil {
		return nil, err
	}

	lines := make([]domain.CapitalStatementLine, len(movements))
	for i, m := range movements {
		lines[i] = domain.CapitalStatementLine{
			OccurredAt: m.OccurredAt,
			Bucket:     m.Bucket,
			Amount:     m.Amount,
			SourceKind: m.SourceKind,
			SourceID:   m.SourceID,
		}
	}

	return &domain.CapitalStatement{
		MemberID:    memberID,
		Account:     *account,
		Lines:       lines,
		GeneratedAt: time.Now().UTC(),
	}, nil
}
