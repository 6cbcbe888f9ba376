package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Event payloads. Reducers and reactors unmarshal these from Event.Payload;
// they must stay backward compatible because the log is never rewritten.

type AccountOpenedPayload struct {
	AccountID       string          `json:"accountID"`
	Number          string          `json:"number"`
	Name            string          `json:"name"`
	AccountType     AccountType     `json:"accountType"`
	Ledger          LedgerKind      `json:"ledger"`
	NormalBalance   NormalBalance   `json:"normalBalance"`
	IsMemberCapital bool            `json:"isMemberCapital"`
	MemberID        *string         `json:"memberID,omitempty"`
	ParentAccountID *string         `json:"parentAccountID,omitempty"`
	OpeningBalance  decimal.Decimal `json:"openingBalance"`
}

type AccountDeactivatedPayload struct {
	AccountID string `json:"accountID"`
	Reason    string `json:"reason"`
}

type TransactionPostedPayload struct {
	TransactionID string    `json:"transactionID"`
	Date          time.Time `json:"date"`
	PeriodID      string    `json:"periodID"`
	Description   string    `json:"description"`
	Entries       []Entry   `json:"entries"`
}

type TransactionVoidedPayload struct {
	TransactionID string `json:"transactionID"`
	Reason        string `json:"reason"`
}

type PeriodOpenedPayload struct {
	PeriodID string    `json:"periodID"`
	Name     string    `json:"name"`
	Start    time.Time `json:"start"`
	End      time.Time `json:"end"`
}

type PeriodStatusChangedPayload struct {
	PeriodID string       `json:"periodID"`
	Status   PeriodStatus `json:"status"`
}

type MemberEnrolledPayload struct {
	MemberID string `json:"memberID"`
	Name     string `json:"name"`
	Tier     string `json:"tier"`
}

type ContributionSubmittedPayload struct {
	ContributionID string           `json:"contributionID"`
	MemberID       string           `json:"memberID"`
	PeriodID       string           `json:"periodID"`
	Type           ContributionType `json:"type"`
	Description    string           `json:"description"`
	Hours          decimal.Decimal  `json:"hours"`
	HourlyRate     decimal.Decimal  `json:"hourlyRate"`
	StatedValue    decimal.Decimal  `json:"statedValue"`
}

type ContributionDecidedPayload struct {
	ContributionID string `json:"contributionID"`
	DecidedBy      string `json:"decidedBy"`
	Reason         string `json:"reason,omitempty"`
}

type ClaimCreatedPayload struct {
	ClaimID        string          `json:"claimID"`
	ContributionID string          `json:"contributionID"`
	MemberID       string          `json:"memberID"`
	PeriodID       string          `json:"periodID"`
	RawValue       decimal.Decimal `json:"rawValue"`
	Weight         decimal.Decimal `json:"weight"`
	WeightedValue  decimal.Decimal `json:"weightedValue"`
}

type ClaimRevokedPayload struct {
	ClaimID string `json:"claimID"`
	Reason  string `json:"reason"`
}

type AllocationProposedPayload struct {
	AllocationID       string          `json:"allocationID"`
	MemberID           string          `json:"memberID"`
	PeriodID           string          `json:"periodID"`
	TotalPatronage     decimal.Decimal `json:"totalPatronage"`
	Share              decimal.Decimal `json:"share"`
	TotalAllocation    decimal.Decimal `json:"totalAllocation"`
	CashDistribution   decimal.Decimal `json:"cashDistribution"`
	RetainedAllocation decimal.Decimal `json:"retainedAllocation"`
	CashRate           decimal.Decimal `json:"cashRate"`
}

type AllocationStatusPayload struct {
	AllocationID string  `json:"allocationID"`
	ActorID      string  `json:"actorID,omitempty"`
	Reason       *string `json:"reason,omitempty"`
}

type CapitalMovementPayload struct {
	MemberID     string          `json:"memberID"`
	Amount       decimal.Decimal `json:"amount"`
	TaxAmount    decimal.Decimal `json:"taxAmount"`
	Bucket       CapitalBucket   `json:"bucket"`
	SourceID     string          `json:"sourceID"` // allocation or distribution ID
	SourceKind   string          `json:"sourceKind"`
	EffectiveAt  time.Time       `json:"effectiveAt"`
}

type DistributionScheduledPayload struct {
	DistributionID string          `json:"distributionID"`
	AllocationID   string          `json:"allocationID"`
	MemberID       string          `json:"memberID"`
	Amount         decimal.Decimal `json:"amount"`
	Method         string          `json:"method"`
}

type DistributionStatusPayload struct {
	DistributionID string `json:"distributionID"`
	Reason         string `json:"reason,omitempty"`
}

type CloseStepPayload struct {
	PeriodID string    `json:"periodID"`
	Step     CloseStep `json:"step"`
	Detail   string    `json:"detail,omitempty"`
}

type CloseApprovalPayload struct {
	PeriodID   string    `json:"periodID"`
	ApproverID string    `json:"approverID"`
	ApprovedAt time.Time `json:"approvedAt"`
}
