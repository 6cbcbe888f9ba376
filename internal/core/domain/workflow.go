package domain

import (
	"time"
)

// CloseStep is one stage of the period-close saga.
type CloseStep string

const (
	StepNotStarted              CloseStep = "NOT_STARTED"
	StepAggregatingPatronage    CloseStep = "AGGREGATING_PATRONAGE"
	StepApplyingWeights         CloseStep = "APPLYING_WEIGHTS"
	StepCalculatingAllocations  CloseStep = "CALCULATING_ALLOCATIONS"
	StepGeneratingDistributions CloseStep = "GENERATING_DISTRIBUTIONS"
	StepAwaitingApproval        CloseStep = "AWAITING_APPROVAL"
	StepApproved                CloseStep = "APPROVED"
	StepExecuted                CloseStep = "EXECUTED"
	StepFailed                  CloseStep = "FAILED"
	StepManualIntervention      CloseStep = "MANUAL_INTERVENTION"
)

// closeStepOrder is the forward path of the saga. Failed/ManualIntervention
// are reachable from any step and are not part of the forward order.
var closeStepOrder = []CloseStep{
	StepNotStarted,
	StepAggregatingPatronage,
	StepApplyingWeights,
	StepCalculatingAllocations,
	StepGeneratingDistributions,
	StepAwaitingApproval,
	StepApproved,
	StepExecuted,
}

// NextCloseStep returns the forward successor of a step, or "" at the end.
func NextCloseStep(s CloseStep) CloseStep {
	for i, step := range closeStepOrder {
		if step == s && i+1 < len(closeStepOrder) {
			return closeStepOrder[i+1]
		}
	}
	return ""
}

// ForwardCloseSteps returns the forward path in order.
func ForwardCloseSteps() []CloseStep {
	out := make([]CloseStep, len(closeStepOrder))
	copy(out, closeStepOrder)
	return out
}

// StepStatus is the persisted outcome of a single saga step.
type StepStatus string

const (
	StepPending     StepStatus = "PENDING"
	StepRunning     StepStatus = "RUNNING"
	StepCompleted   StepStatus = "COMPLETED"
	StepFailedState StepStatus = "FAILED"
	StepCompensated StepStatus = "COMPENSATED"
)

// WorkflowStep is one persisted step record of a period-close workflow.
// Output holds the step's serialized result so a restart can resume without
// re-executing completed work.
type WorkflowStep struct {
	Step         CloseStep  `json:"step"`
	Status       StepStatus `json:"status"`
	Irreversible bool       `json:"irreversible"`
	Output       string     `json:"output,omitempty"`
	Error        string     `json:"error,omitempty"`
	StartedAt    *time.Time `json:"startedAt,omitempty"`
	CompletedAt  *time.Time `json:"completedAt,omitempty"`
}

// CloseApproval is one governance approval of a period close.
type CloseApproval struct {
	ApproverID string    `json:"approverID"`
	ApprovedAt time.Time `json:"approvedAt"`
}

// PeriodCloseWorkflow is the persisted saga state for closing one period.
// It is re-read on resume; no process needs to stay alive between steps.
type PeriodCloseWorkflow struct {
	PeriodID    string          `json:"periodID"`
	Status      CloseStep       `json:"status"`
	Steps       []WorkflowStep  `json:"steps"`
	Approvals   []CloseApproval `json:"approvals"`
	FailureNote string          `json:"failureNote,omitempty"`
	StartedAt   time.Time       `json:"startedAt"`
	UpdatedAt   time.Time       `json:"updatedAt"`
}

// StepRecord returns the persisted record for a step, if any.
func (w *PeriodCloseWorkflow) StepRecord(s CloseStep) *WorkflowStep {
	for i := range w.Steps {
		if w.Steps[i].Step == s {
			return &w.Steps[i]
		}
	}
	return nil
}

// HasApproval reports whether the given member already approved this close.
func (w *PeriodCloseWorkflow) HasApproval(memberID string) bool {
	for _, a := range w.Approvals {
		if a.ApproverID == memberID {
			return true
		}
	}
	return false
}
