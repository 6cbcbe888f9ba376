package dto

import (
	"github.com/shopspring/decimal"
)

// EnrollMemberRequest enrolls a new cooperative member. Capital accounts for
// the book and tax ledgers are provisioned implicitly.
type EnrollMemberRequest struct {
	Name string `json:"name" binding:"required"`
	Tier string `json:"tier" binding:"required"`
}

// SubmitContributionRequest submits a member contribution for review.
// Labor contributions carry hours and an hourly rate; the other types carry
// a stated value.
type SubmitContributionRequest struct {
	MemberID    string          `json:"memberID" binding:"required"`
	PeriodID    string          `json:"periodID" binding:"required"`
	Type        string          `json:"type" binding:"required,oneof=LABOR EXPERTISE CAPITAL RELATIONSHIP"`
	Description string          `json:"description"`
	Hours       decimal.Decimal `json:"hours"`
	HourlyRate  decimal.Decimal `json:"hourlyRate"`
	StatedValue decimal.Decimal `json:"statedValue"`
}

// RejectContributionRequest rejects a submitted contribution.
type RejectContributionRequest struct {
	Reason string `json:"reason" binding:"required"`
}

// ScheduleDistributionRequest schedules the cash leg of an executed allocation.
type ScheduleDistributionRequest struct {
	AllocationID string          `json:"allocationID" binding:"required"`
	Amount       decimal.Decimal `json:"amount"`
	Method       string          `json:"method" binding:"required"`
}

// FailDistributionRequest records a payment failure.
type FailDistributionRequest struct {
	Reason string `json:"reason" binding:"required"`
}

// InitiateCloseRequest starts the period-close workflow.
type InitiateCloseRequest struct {
	// Surplus is the allocable surplus for the period, net of reserves.
	Surplus decimal.Decimal `json:"surplus" binding:"required"`
}

// ApproveCloseRequest records one governance approval.
type ApproveCloseRequest struct {
	ApproverID string `json:"approverID" binding:"required"`
}
