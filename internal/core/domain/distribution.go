package domain

import (
	"github.com/shopspring/decimal"
)

// DistributionStatus tracks the payout lifecycle of a cash distribution.
type DistributionStatus string

const (
	DistScheduled  DistributionStatus = "SCHEDULED"
	DistProcessing DistributionStatus = "PROCESSING"
	DistCompleted  DistributionStatus = "COMPLETED"
	DistFailed     DistributionStatus = "FAILED"
	DistCancelled  DistributionStatus = "CANCELLED"
)

// CanTransition reports whether a distribution may move to the target status.
// Forward-only; FAILED may be rescheduled via a new distribution, not reused.
func (s DistributionStatus) CanTransition(to DistributionStatus) bool {
	switch s {
	case DistScheduled:
		return to == DistProcessing || to == DistCancelled
	case DistProcessing:
		return to == DistCompleted || to == DistFailed
	default:
		return false
	}
}

// Distribution is the cash leg of an executed allocation. Payment-provider
// execution is external; the core only tracks status and posts the ledger
// movement on completion.
type Distribution struct {
	DistributionID string             `json:"distributionID"`
	AllocationID   string             `json:"allocationID"`
	MemberID       string             `json:"memberID"`
	Amount         decimal.Decimal    `json:"amount"`
	Method         string             `json:"method"` // ACH, CHECK, ...; opaque to the core
	Status         DistributionStatus `json:"status"`
	FailureReason  string             `json:"failureReason,omitempty"`
	AuditFields
}
