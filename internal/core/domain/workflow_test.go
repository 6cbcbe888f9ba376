package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNextCloseStep_WalksTheForwardPath(t *testing.T) {
	steps := ForwardCloseSteps()
	require.NotEmpty(t, steps)
	assert.Equal(t, StepNotStarted, steps[0])
	assert.Equal(t, StepExecuted, steps[len(steps)-1])

	for i := 0; i < len(steps)-1; i++ {
		assert.Equal(t, steps[i+1], NextCloseStep(steps[i]))
	}
	assert.Equal(t, CloseStep(""), NextCloseStep(StepExecuted))
	assert.Equal(t, CloseStep(""), NextCloseStep(StepFailed))
	assert.Equal(t, CloseStep(""), NextCloseStep(StepManualIntervention))
}

func TestStepRecord(t *testing.T) {
	wf := PeriodCloseWorkflow{
		Steps: []WorkflowStep{
			{Step: StepAggregatingPatronage, Status: StepCompleted},
			{Step: StepApplyingWeights, Status: StepRunning},
		},
	}

	record := wf.StepRecord(StepApplyingWeights)
	require.NotNil(t, record)
	assert.Equal(t, StepRunning, record.Status)

	// The record is addressable, so callers mutate workflow state through it.
	record.Status = StepCompleted
	assert.Equal(t, StepCompleted, wf.Steps[1].Status)

	assert.Nil(t, wf.StepRecord(StepExecuted))
}

func TestHasApproval(t *testing.T) {
	wf := PeriodCloseWorkflow{
		Approvals: []CloseApproval{{ApproverID: "gov-1"}},
	}
	assert.True(t, wf.HasApproval("gov-1"))
	assert.False(t, wf.HasApproval("gov-2"))
}

func TestContributionStatusTransitions(t *testing.T) {
	assert.True(t, ContribDraft.CanTransition(ContribSubmitted))
	assert.True(t, ContribSubmitted.CanTransition(ContribApproved))
	assert.True(t, ContribSubmitted.CanTransition(ContribRejected))

	// Approved and rejected are terminal.
	assert.False(t, ContribApproved.CanTransition(ContribRejected))
	assert.False(t, ContribRejected.CanTransition(ContribSubmitted))
	assert.False(t, ContribDraft.CanTransition(ContribApproved))
}

func TestDistributionStatusTransitions(t *testing.T) {
	assert.True(t, DistScheduled.CanTransition(DistProcessing))
	assert.True(t, DistScheduled.CanTransition(DistCancelled))
	assert.True(t, DistProcessing.CanTransition(DistCompleted))
	assert.True(t, DistProcessing.CanTransition(DistFailed))

	assert.False(t, DistScheduled.CanTransition(DistCompleted))
	assert.False(t, DistProcessing.CanTransition(DistCancelled))
	assert.False(t, DistCompleted.CanTransition(DistProcessing))
	assert.False(t, DistFailed.CanTransition(DistProcessing))
}

func TestPeriodAcceptsPosting(t *testing.T) {
	assert.True(t, Period{Status: PeriodOpen}.AcceptsPosting(false))
	assert.False(t, Period{Status: PeriodClosing}.AcceptsPosting(false))
	assert.True(t, Period{Status: PeriodClosing}.AcceptsPosting(true))
	assert.False(t, Period{Status: PeriodClosed}.AcceptsPosting(true))
	assert.False(t, Period{Status: PeriodLocked}.AcceptsPosting(true))
}
