package domain

import "time"

// PeriodStatus is the lifecycle state of an accounting period.
type PeriodStatus string

const (
	PeriodOpen    PeriodStatus = "OPEN"
	PeriodClosing PeriodStatus = "CLOSING"
	PeriodClosed  PeriodStatus = "CLOSED"
	PeriodLocked  PeriodStatus = "LOCKED"
)

// Period is a posting window. Transactions may only post into OPEN periods,
// or into CLOSING periods when the posting is close-workflow internal.
type Period struct {
	PeriodID string       `json:"periodID"`
	Name     string       `json:"name"`
	Start    time.Time    `json:"start"`
	End      time.Time    `json:"end"`
	Status   PeriodStatus `json:"status"`
	AuditFields
}

// AcceptsPosting reports whether a new transaction may post into the period.
// Close-workflow internal postings are additionally allowed while CLOSING.
func (p Period) AcceptsPosting(closeInternal bool) bool {
	switch p.Status {
	case PeriodOpen:
		return true
	case PeriodClosing:
		return closeInternal
	default:
		return false
	}
}
