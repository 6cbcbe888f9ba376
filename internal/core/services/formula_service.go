package services

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/commonward/coop_ledger_app/internal/core/domain"
)

// FormulaEngine is the pure patronage math: weighting, aggregation, and the
// surplus split into per-member allocations. It holds no I/O so the same
// inputs always produce the same allocations, which is what makes period
// close replayable.
type FormulaEngine struct {
	Config domain.FormulaConfig
}

func NewFormulaEngine(cfg domain.FormulaConfig) *FormulaEngine {
	return &FormulaEngine{Config: cfg}
}

// BuildClaim derives the weighted claim values from an approved contribution.
// Identity and audit fields are the caller's concern.
func (e *FormulaEngine) BuildClaim(contribution domain.Contribution) domain.PatronageClaim {
	raw := contribution.RawValue()
	weight := e.Config.WeightFor(contribution.Type)
	return domain.PatronageClaim{
		ContributionID: contribution.ContributionID,
		MemberID:       contribution.MemberID,
		PeriodID:       contribution.PeriodID,
		RawValue:       raw,
		Weight:         weight,
		WeightedValue:  raw.Mul(weight),
	}
}

// AggregateByMember sums non-revoked claims per member and in total.
func (e *FormulaEngine) AggregateByMember(claims []domain.PatronageClaim) (map[string]decimal.Decimal, decimal.Decimal) {
	totals := map[string]decimal.Decimal{}
	grand := decimal.Zero
	for _, c := range claims {
		if c.Revoked {
			continue
		}
		totals[c.MemberID] = totals[c.MemberID].Add(c.WeightedValue)
		grand = grand.Add(c.WeightedValue)
	}
	return totals, grand
}

// effectiveCashRate never dips below the regulatory floor.
func (e *FormulaEngine) effectiveCashRate() decimal.Decimal {
	if e.Config.CashRate.LessThan(e.Config.RegulatoryMinCash) {
		return e.Config.RegulatoryMinCash
	}
	return e.Config.CashRate
}

// TaxAmountFor derives the tax-ledger amount from a book amount per the
// configured book/tax divergence.
func (e *FormulaEngine) TaxAmountFor(bookAmount decimal.Decimal) decimal.Decimal {
	factor := decimal.NewFromInt(1).Sub(e.Config.BookTaxDivergence)
	return bookAmount.Mul(factor).Round(e.Config.AmountPrecision)
}

// ComputeAllocations splits the allocable surplus across members in
// proportion to their weighted patronage. Amounts are rounded to the
// configured precision; any rounding residue lands on the member with the
// largest share so allocations always sum exactly to the surplus. Members
// are processed in sorted order for determinism. A zero total patronage
// yields no allocations; a zero surplus yields one zero-amount allocation
// per contributing member, so a break-even period still closes with an
// explicit record for everyone.
func (e *FormulaEngine) ComputeAllocations(periodID string, surplus decimal.Decimal, totals map[string]decimal.Decimal) []domain.Allocation {
	if len(totals) == 0 || surplus.IsNegative() {
		return nil
	}
	grand := decimal.Zero
	for _, t := range totals {
		grand = grand.Add(t)
	}
	if grand.LessThanOrEqual(decimal.Zero) {
		return nil
	}

	memberIDs := make([]string, 0, len(totals))
	for id := range totals {
		memberIDs = append(memberIDs, id)
	}
	sort.Strings(memberIDs)

	cashRate := e.effectiveCashRate()
	precision := e.Config.AmountPrecision

	allocations := make([]domain.Allocation, 0, len(memberIDs))
	allocatedSum := decimal.Zero
	largestIdx := 0
	for i, memberID := range memberIDs {
		patronage := totals[memberID]
		share := patronage.Div(grand)
		total := surplus.Mul(share).Round(precision)
		allocatedSum = allocatedSum.Add(total)

		allocations = append(allocations, domain.Allocation{
			MemberID:        memberID,
			PeriodID:        periodID,
			Status:          domain.AllocProposed,
			TotalPatronage:  patronage,
			Share:           share,
			TotalAllocation: total,
			CashRate:        cashRate,
		})
		if patronage.GreaterThan(totals[memberIDs[largestIdx]]) {
			largestIdx = i
		}
	}

	// Rounding residue goes to the largest share.
	residue := surplus.Sub(allocatedSum)
	if !residue.IsZero() {
		allocations[largestIdx].TotalAllocation = allocations[largestIdx].TotalAllocation.Add(residue)
	}

	for i := range allocations {
		cash := allocations[i].TotalAllocation.Mul(cashRate).Round(precision)
		allocations[i].CashDistribution = cash
		allocations[i].RetainedAllocation = allocations[i].TotalAllocation.Sub(cash)
	}
	return allocations
}

// Verify checks allocation invariants against the surplus and reports every
// violation it finds: totals summing to the surplus, the cash/retained split,
// the regulatory cash floor, and the concentration cap.
func (e *FormulaEngine) Verify(periodID string, surplus decimal.Decimal, allocations []domain.Allocation) *domain.ValidationReport {
	report := &domain.ValidationReport{Validator: "allocation_compliance"}
	tolerance := decimal.New(1, -e.Config.AmountPrecision)

	totalSum := decimal.Zero
	for _, a := range allocations {
		totalSum = totalSum.Add(a.TotalAllocation)

		split := a.CashDistribution.Add(a.RetainedAllocation)
		if !split.Sub(a.TotalAllocation).Abs().LessThanOrEqual(tolerance) {
			report.Add("ALLOC_SPLIT_MISMATCH", domain.SeverityError, "allocation", a.AllocationID,
				"cash "+a.CashDistribution.String()+" plus retained "+a.RetainedAllocation.String()+
					" does not equal total "+a.TotalAllocation.String())
		}
		if a.CashRate.LessThan(e.Config.RegulatoryMinCash) {
			report.Add("ALLOC_CASH_RATE_BELOW_FLOOR", domain.SeverityError, "allocation", a.AllocationID,
				"cash rate "+a.CashRate.String()+" is below the regulatory minimum "+e.Config.RegulatoryMinCash.String())
		}
		if e.Config.MaxConcentration.GreaterThan(decimal.Zero) && a.Share.GreaterThan(e.Config.MaxConcentration) {
			report.Add("ALLOC_CONCENTRATION_EXCEEDED", domain.SeverityWarning, "allocation", a.AllocationID,
				"member "+a.MemberID+" share "+a.Share.String()+" exceeds the concentration cap "+e.Config.MaxConcentration.String())
		}
	}

	if len(allocations) > 0 && !totalSum.Sub(surplus).Abs().LessThanOrEqual(tolerance) {
		report.Add("ALLOC_SUM_MISMATCH", domain.SeverityError, "period", periodID,
			"allocations sum to "+totalSum.String()+" but the surplus is "+surplus.String())
	}
	return report
}
