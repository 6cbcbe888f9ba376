package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// PatronageSummaryRow aggregates one member's patronage within a period.
type PatronageSummaryRow struct {
	MemberID      string          `json:"memberID"`
	MemberName    string          `json:"memberName"`
	ClaimCount    int             `json:"claimCount"`
	RawValue      decimal.Decimal `json:"rawValue"`
	WeightedValue decimal.Decimal `json:"weightedValue"`
	Share         decimal.Decimal `json:"share"`
}

// PatronageSummary is the per-period patronage view across members.
type PatronageSummary struct {
	PeriodID           string                `json:"periodID"`
	TotalWeightedValue decimal.Decimal       `json:"totalWeightedValue"`
	Rows               []PatronageSummaryRow `json:"rows"`
}

// AllocationStatement is the per-period allocation compliance export.
type AllocationStatement struct {
	PeriodID        string          `json:"periodID"`
	Surplus         decimal.Decimal `json:"surplus"`
	TotalCash       decimal.Decimal `json:"totalCash"`
	TotalRetained   decimal.Decimal `json:"totalRetained"`
	CashRate        decimal.Decimal `json:"cashRate"`
	Allocations     []Allocation    `json:"allocations"`
	GeneratedAt     time.Time       `json:"generatedAt"`
}

// CapitalStatementLine is one movement on a member's capital account.
type CapitalStatementLine struct {
	OccurredAt time.Time       `json:"occurredAt"`
	Bucket     CapitalBucket   `json:"bucket"`
	Amount     decimal.Decimal `json:"amount"`
	SourceKind string          `json:"sourceKind"`
	SourceID   string          `json:"sourceID"`
}

// CapitalStatement is the per-member capital account export, derived purely
// from projections.
type CapitalStatement struct {
	MemberID    string                 `json:"memberID"`
	Account     CapitalAccount         `json:"account"`
	Lines       []CapitalStatementLine `json:"lines"`
	GeneratedAt time.Time              `json:"generatedAt"`
}
