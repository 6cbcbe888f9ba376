package services_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/commonward/coop_ledger_app/internal/apperrors"
	"github.com/commonward/coop_ledger_app/internal/core/domain"
	portsrepo "github.com/commonward/coop_ledger_app/internal/core/ports/repositories"
	"github.com/commonward/coop_ledger_app/internal/projector"
)

// Rebuild truncates every projection and replays the event log from zero, so
// the read model after a rebuild must match the one built incrementally.
func TestRebuild_RestoresProjectionsFromTheEventLog(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	period := env.openPeriod(t, "FY2025")
	member := env.enrollMember(t, "Ada")
	cash := env.openAccount(t, "1000", "Cash", domain.Asset)
	revenue := env.openAccount(t, "4000", "Service revenue", domain.Revenue)

	_, err := env.services.Ledger.PostTransaction(ctx, postingRequest(period.PeriodID, cash.AccountID, revenue.AccountID, dec("250")), "bookkeeper", false)
	require.NoError(t, err)
	env.approvedLaborContribution(t, member.MemberID, period.PeriodID, 40, 100)

	require.NoError(t, env.projector.Rebuild(ctx))

	account, err := env.services.Ledger.GetAccount(ctx, cash.AccountID)
	require.NoError(t, err)
	assert.True(t, dec("250").Equal(account.Balance), "rebuilt balance %s", account.Balance)

	rebuiltPeriod, err := env.repos.PeriodRepo.FindPeriodByID(ctx, period.PeriodID)
	require.NoError(t, err)
	assert.Equal(t, domain.PeriodOpen, rebuiltPeriod.Status)

	rebuiltMember, err := env.repos.MemberRepo.FindMemberByID(ctx, member.MemberID)
	require.NoError(t, err)
	assert.Equal(t, "Ada", rebuiltMember.Name)

	claims, err := env.repos.ClaimRepo.ListClaimsByPeriod(ctx, period.PeriodID)
	require.NoError(t, err)
	require.Len(t, claims, 1)
	assert.True(t, dec("4000").Equal(claims[0].WeightedValue))
}

func TestRebuild_IsRepeatable(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	period := env.openPeriod(t, "FY2025")
	cash := env.openAccount(t, "1000", "Cash", domain.Asset)
	revenue := env.openAccount(t, "4000", "Service revenue", domain.Revenue)
	_, err := env.services.Ledger.PostTransaction(ctx, postingRequest(period.PeriodID, cash.AccountID, revenue.AccountID, dec("100")), "bookkeeper", false)
	require.NoError(t, err)

	require.NoError(t, env.projector.Rebuild(ctx))
	require.NoError(t, env.projector.Rebuild(ctx))

	balance, err := env.services.Ledger.GetAccountBalance(ctx, cash.AccountID, nil)
	require.NoError(t, err)
	assert.True(t, dec("100").Equal(balance), "balance after double rebuild %s", balance)
}

func TestCatchUp_AfterRebuildFindsNothingNew(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	period := env.openPeriod(t, "FY2025")
	require.NoError(t, env.projector.Rebuild(ctx))
	require.NoError(t, env.projector.CatchUp(ctx))

	found, err := env.repos.PeriodRepo.FindPeriodByID(ctx, period.PeriodID)
	require.NoError(t, err)
	assert.Equal(t, period.PeriodID, found.PeriodID)
}

// stuckCheckpointRepo refuses to advance the global checkpoint, simulating a
// persistent checkpoint-write failure.
type stuckCheckpointRepo struct {
	portsrepo.CheckpointRepositoryFacade
}

func (r *stuckCheckpointRepo) SetGlobalCheckpoint(context.Context, string, int64) error {
	return errors.New("checkpoint write refused")
}

func TestCatchUp_SurfacesStallInsteadOfSpinning(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.openPeriod(t, "FY2025")

	// One committed event the projections have not applied yet.
	_, err := env.store.AppendEvent(ctx, portsrepo.AppendEventParams{
		AggregateType:    domain.AggregateCloseFlow,
		AggregateID:      "p-stall",
		EventType:        domain.EventCloseStepStarted,
		Payload:          json.RawMessage(`{}`),
		ExpectedSequence: 1,
	})
	require.NoError(t, err)

	// A checkpoint that cannot move would make catch-up re-read the same
	// batch on every iteration; it must error out instead.
	badRepos := env.repos
	badRepos.CheckpointRepo = &stuckCheckpointRepo{CheckpointRepositoryFacade: env.repos.CheckpointRepo}
	stalled := projector.New(badRepos)

	err = stalled.CatchUp(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrProjection)
}

func TestProjections_TruncateLeavesEventLogIntact(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	period := env.openPeriod(t, "FY2025")

	require.NoError(t, env.repos.ProjectionAdmin.TruncateProjections(ctx))
	_, err := env.repos.PeriodRepo.FindPeriodByID(ctx, period.PeriodID)
	require.ErrorIs(t, err, apperrors.ErrNotFound)

	events, err := env.store.ReadAll(ctx, 0, 100)
	require.NoError(t, err)
	assert.NotEmpty(t, events, "truncation must not touch the source of truth")
}
