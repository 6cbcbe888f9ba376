package domain

import (
	"github.com/shopspring/decimal"
)

// ContributionType classifies how a member contributed to the cooperative.
type ContributionType string

const (
	ContribLabor        ContributionType = "LABOR"
	ContribExpertise    ContributionType = "EXPERTISE"
	ContribCapital      ContributionType = "CAPITAL"
	ContribRelationship ContributionType = "RELATIONSHIP"
)

// ContributionStatus is the review state of a contribution.
// draft → submitted → {approved | rejected}; terminal states are immutable.
type ContributionStatus string

const (
	ContribDraft     ContributionStatus = "DRAFT"
	ContribSubmitted ContributionStatus = "SUBMITTED"
	ContribApproved  ContributionStatus = "APPROVED"
	ContribRejected  ContributionStatus = "REJECTED"
)

// CanTransition reports whether a contribution may move from its current
// status to the target status.
func (s ContributionStatus) CanTransition(to ContributionStatus) bool {
	switch s {
	case ContribDraft:
		return to == ContribSubmitted
	case ContribSubmitted:
		return to == ContribApproved || to == ContribRejected
	default:
		return false
	}
}

// Contribution records member work/value put into the cooperative during a
// period. Value fields are type-specific: labor uses Hours × HourlyRate,
// the other types use StatedValue.
type Contribution struct {
	ContributionID string             `json:"contributionID"`
	MemberID       string             `json:"memberID"`
	PeriodID       string             `json:"periodID"`
	Type           ContributionType   `json:"type"`
	Status         ContributionStatus `json:"status"`
	Description    string             `json:"description"`
	Hours          decimal.Decimal    `json:"hours"`
	HourlyRate     decimal.Decimal    `json:"hourlyRate"`
	StatedValue    decimal.Decimal    `json:"statedValue"`
	DecisionReason string             `json:"decisionReason,omitempty"`
	AuditFields
}

// RawValue is the monetary value of the contribution before weighting.
func (c Contribution) RawValue() decimal.Decimal {
	if c.Type == ContribLabor {
		return c.Hours.Mul(c.HourlyRate)
	}
	return c.StatedValue
}
