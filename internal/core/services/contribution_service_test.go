package services_test

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/commonward/coop_ledger_app/internal/apperrors"
	"github.com/commonward/coop_ledger_app/internal/core/domain"
	"github.com/commonward/coop_ledger_app/internal/dto"
)

func TestSubmitContribution_RequiresOpenPeriodAndActiveMember(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	period := env.openPeriod(t, "FY2025")

	_, err := env.services.Contribution.SubmitContribution(ctx, dto.SubmitContributionRequest{
		MemberID:    "nobody",
		PeriodID:    period.PeriodID,
		Type:        string(domain.ContribCapital),
		StatedValue: dec("100"),
	}, "nobody")
	require.ErrorIs(t, err, apperrors.ErrNotFound)

	member := env.enrollMember(t, "Ada")
	_, err = env.services.Period.ClosePeriod(ctx, period.PeriodID, "admin")
	require.NoError(t, err)

	_, err = env.services.Contribution.SubmitContribution(ctx, dto.SubmitContributionRequest{
		MemberID:    member.MemberID,
		PeriodID:    period.PeriodID,
		Type:        string(domain.ContribCapital),
		StatedValue: dec("100"),
	}, member.MemberID)
	require.ErrorIs(t, err, apperrors.ErrPeriodNotOpen)
}

func TestSubmitContribution_LaborNeedsHoursAndRate(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	period := env.openPeriod(t, "FY2025")
	member := env.enrollMember(t, "Ada")

	_, err := env.services.Contribution.SubmitContribution(ctx, dto.SubmitContributionRequest{
		MemberID: member.MemberID,
		PeriodID: period.PeriodID,
		Type:     string(domain.ContribLabor),
		Hours:    decimal.Zero,
	}, member.MemberID)
	require.ErrorIs(t, err, apperrors.ErrValidation)
}

func TestApproveContribution_CreatesExactlyOneClaim(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	period := env.openPeriod(t, "FY2025")
	member := env.enrollMember(t, "Ada")

	contribution := env.approvedLaborContribution(t, member.MemberID, period.PeriodID, 40, 100)
	require.Equal(t, domain.ContribApproved, contribution.Status)

	claim, err := env.repos.ClaimRepo.FindClaimByContributionID(ctx, contribution.ContributionID)
	require.NoError(t, err)
	assert.True(t, dec("4000").Equal(claim.RawValue))
	assert.True(t, dec("4000").Equal(claim.WeightedValue))
	assert.Equal(t, member.MemberID, claim.MemberID)

	claims, err := env.repos.ClaimRepo.ListClaimsByPeriod(ctx, period.PeriodID)
	require.NoError(t, err)
	assert.Len(t, claims, 1)
}

func TestApproveContribution_TerminalStatusIsImmutable(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	period := env.openPeriod(t, "FY2025")
	member := env.enrollMember(t, "Ada")
	contribution := env.approvedLaborContribution(t, member.MemberID, period.PeriodID, 10, 50)

	_, err := env.services.Contribution.ApproveContribution(ctx, contribution.ContributionID, "reviewer")
	require.Error(t, err)

	_, err = env.services.Contribution.RejectContribution(ctx, contribution.ContributionID, "changed my mind", "reviewer")
	require.Error(t, err)
}

func TestRejectContribution_RecordsReasonAndCreatesNoClaim(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	period := env.openPeriod(t, "FY2025")
	member := env.enrollMember(t, "Ada")

	contribution, err := env.services.Contribution.SubmitContribution(ctx, dto.SubmitContributionRequest{
		MemberID:    member.MemberID,
		PeriodID:    period.PeriodID,
		Type:        string(domain.ContribRelationship),
		StatedValue: dec("500"),
	}, member.MemberID)
	require.NoError(t, err)

	rejected, err := env.services.Contribution.RejectContribution(ctx, contribution.ContributionID, "not verifiable", "reviewer")
	require.NoError(t, err)
	assert.Equal(t, domain.ContribRejected, rejected.Status)
	assert.Equal(t, "not verifiable", rejected.DecisionReason)

	_, err = env.repos.ClaimRepo.FindClaimByContributionID(ctx, contribution.ContributionID)
	require.ErrorIs(t, err, apperrors.ErrNotFound)
}
