package domain

import (
	"github.com/shopspring/decimal"
)

// PatronageClaim is the derived record created exactly once per approved
// contribution. It carries the weighted value used in allocation math.
type PatronageClaim struct {
	ClaimID        string          `json:"claimID"`
	ContributionID string          `json:"contributionID"`
	MemberID       string          `json:"memberID"`
	PeriodID       string          `json:"periodID"`
	RawValue       decimal.Decimal `json:"rawValue"`
	Weight         decimal.Decimal `json:"weight"`
	WeightedValue  decimal.Decimal `json:"weightedValue"`
	Revoked        bool            `json:"revoked"`
	AuditFields
}

// AllocationStatus is the lifecycle state of a member's period allocation.
type AllocationStatus string

const (
	AllocDraft    AllocationStatus = "DRAFT"
	AllocProposed AllocationStatus = "PROPOSED"
	AllocApproved AllocationStatus = "APPROVED"
	AllocExecuted AllocationStatus = "EXECUTED"
)

// Allocation splits a member's share of allocable surplus into cash and
// retained equity. Invariant: CashDistribution + RetainedAllocation equals
// TotalAllocation within tolerance, and CashRate is at least the regulatory
// minimum.
type Allocation struct {
	AllocationID       string           `json:"allocationID"`
	MemberID           string           `json:"memberID"`
	PeriodID           string           `json:"periodID"`
	Status             AllocationStatus `json:"status"`
	TotalPatronage     decimal.Decimal  `json:"totalPatronage"` // member's summed weighted value
	Share              decimal.Decimal  `json:"share"`          // fraction of total weighted value
	TotalAllocation    decimal.Decimal  `json:"totalAllocation"`
	CashDistribution   decimal.Decimal  `json:"cashDistribution"`
	RetainedAllocation decimal.Decimal  `json:"retainedAllocation"`
	CashRate           decimal.Decimal  `json:"cashRate"`
	AuditFields
}

// FormulaConfig parameterizes the patronage formula engine.
type FormulaConfig struct {
	Weights             map[ContributionType]decimal.Decimal
	CashRate            decimal.Decimal // applied rate, >= RegulatoryMinCashRate
	RegulatoryMinCash   decimal.Decimal // floor, default 0.20
	MaxConcentration    decimal.Decimal // per-member share cap, default 0.50; zero disables
	BookTaxDivergence   decimal.Decimal // tax balance moves at (1 - divergence) of book; default 0
	AmountPrecision     int32           // currency rounding, default 2
}

// DefaultFormulaConfig returns the standard weight/rate configuration.
func DefaultFormulaConfig() FormulaConfig {
	return FormulaConfig{
		Weights: map[ContributionType]decimal.Decimal{
			ContribLabor:        decimal.NewFromFloat(1.0),
			ContribExpertise:    decimal.NewFromFloat(1.5),
			ContribCapital:      decimal.NewFromFloat(1.0),
			ContribRelationship: decimal.NewFromFloat(0.5),
		},
		CashRate:          decimal.NewFromFloat(0.20),
		RegulatoryMinCash: decimal.NewFromFloat(0.20),
		MaxConcentration:  decimal.NewFromFloat(0.50),
		BookTaxDivergence: decimal.Zero,
		AmountPrecision:   2,
	}
}

// WeightFor returns the configured weight for a contribution type, defaulting
// to 1.0 when unset.
func (c FormulaConfig) WeightFor(t ContributionType) decimal.Decimal {
	if w, ok := c.Weights[t]; ok {
		return w
	}
	return decimal.NewFromInt(1)
}
