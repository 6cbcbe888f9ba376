package services_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/commonward/coop_ledger_app/internal/apperrors"
	"github.com/commonward/coop_ledger_app/internal/core/domain"
)

func TestCheckLedgerIntegrity_CleanLedger(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	period := env.openPeriod(t, "FY2025")
	cash := env.openAccount(t, "1000", "Cash", domain.Asset)
	revenue := env.openAccount(t, "4000", "Service revenue", domain.Revenue)

	_, err := env.services.Ledger.PostTransaction(ctx, postingRequest(period.PeriodID, cash.AccountID, revenue.AccountID, dec("250")), "bookkeeper", false)
	require.NoError(t, err)

	report, err := env.services.Validator.CheckLedgerIntegrity(ctx)
	require.NoError(t, err)
	assert.True(t, report.Valid())
	assert.Empty(t, report.Violations)
}

func TestCheckLedgerIntegrity_FlagsCorruptedProjection(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	period := env.openPeriod(t, "FY2025")
	cash := env.openAccount(t, "1000", "Cash", domain.Asset)
	revenue := env.openAccount(t, "4000", "Service revenue", domain.Revenue)

	txn, err := env.services.Ledger.PostTransaction(ctx, postingRequest(period.PeriodID, cash.AccountID, revenue.AccountID, dec("250")), "bookkeeper", false)
	require.NoError(t, err)

	// Corrupt one credit leg directly in the projection; the validator reads
	// projections, not the event stream, so this is exactly what it catches.
	env.corruptEntryAmount(t, txn.TransactionID, domain.Credit, dec("200"))

	report, err := env.services.Validator.CheckLedgerIntegrity(ctx)
	require.NoError(t, err)
	require.False(t, report.Valid())

	codes := map[string]int{}
	for _, v := range report.Violations {
		codes[v.Code]++
	}
	assert.Equal(t, 1, codes["LEDGER_UNBALANCED_TRANSACTION"])
	assert.Equal(t, 1, codes["LEDGER_GLOBAL_IMBALANCE"])
	// The revenue account's projected balance no longer matches its entries.
	assert.Equal(t, 1, codes["LEDGER_BALANCE_DRIFT"])
}

func TestCheckLedgerIntegrity_FlagsUnknownAccount(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	period := env.openPeriod(t, "FY2025")
	cash := env.openAccount(t, "1000", "Cash", domain.Asset)
	revenue := env.openAccount(t, "4000", "Service revenue", domain.Revenue)

	txn, err := env.services.Ledger.PostTransaction(ctx, postingRequest(period.PeriodID, cash.AccountID, revenue.AccountID, dec("250")), "bookkeeper", false)
	require.NoError(t, err)

	env.corruptEntryAccount(t, txn.TransactionID, domain.Credit, "ghost-account")

	report, err := env.services.Validator.CheckLedgerIntegrity(ctx)
	require.NoError(t, err)
	require.False(t, report.Valid())

	var found bool
	for _, v := range report.Violations {
		if v.Code == "LEDGER_UNKNOWN_ACCOUNT" {
			found = true
			assert.Equal(t, "ghost-account", v.EntityID)
		}
	}
	assert.True(t, found)
}

func TestCheckLedgerIntegrity_FlagsInactiveAccount(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	period := env.openPeriod(t, "FY2025")
	cash := env.openAccount(t, "1000", "Cash", domain.Asset)
	revenue := env.openAccount(t, "4000", "Service revenue", domain.Revenue)

	_, err := env.services.Ledger.PostTransaction(ctx, postingRequest(period.PeriodID, cash.AccountID, revenue.AccountID, dec("250")), "bookkeeper", false)
	require.NoError(t, err)

	// Deactivated after the fact: its history must still reconcile, and the
	// validator calls out the inactive account holding posted entries.
	require.NoError(t, env.repos.AccountRepo.SetAccountActive(ctx, revenue.AccountID, false, "admin", time.Now().UTC()))

	report, err := env.services.Validator.CheckLedgerIntegrity(ctx)
	require.NoError(t, err)
	require.False(t, report.Valid())
	require.Len(t, report.Violations, 1)
	assert.Equal(t, "LEDGER_INACTIVE_ACCOUNT", report.Violations[0].Code)
	assert.Equal(t, revenue.AccountID, report.Violations[0].EntityID)
}

func TestCheckLedgerIntegrity_FlagsBalanceDrift(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	period := env.openPeriod(t, "FY2025")
	cash := env.openAccount(t, "1000", "Cash", domain.Asset)
	revenue := env.openAccount(t, "4000", "Service revenue", domain.Revenue)

	_, err := env.services.Ledger.PostTransaction(ctx, postingRequest(period.PeriodID, cash.AccountID, revenue.AccountID, dec("250")), "bookkeeper", false)
	require.NoError(t, err)

	// Nudge the cash balance away from what its entries fold to.
	require.NoError(t, env.repos.AccountRepo.AdjustBalances(ctx, map[string]decimal.Decimal{cash.AccountID: dec("50")}, "admin", time.Now().UTC()))

	report, err := env.services.Validator.CheckLedgerIntegrity(ctx)
	require.NoError(t, err)
	require.False(t, report.Valid())
	require.Len(t, report.Violations, 1)
	assert.Equal(t, "LEDGER_BALANCE_DRIFT", report.Violations[0].Code)
	assert.Equal(t, cash.AccountID, report.Violations[0].EntityID)
}

func TestCheckLedgerIntegrity_AbnormalBalanceIsWarningOnly(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	period := env.openPeriod(t, "FY2025")
	checking := env.openAccount(t, "1000", "Checking", domain.Asset)
	savings := env.openAccount(t, "1100", "Savings", domain.Asset)

	// Crediting an asset account past zero drives it against its debit-normal
	// direction. The ledger stays balanced, so this only warns.
	_, err := env.services.Ledger.PostTransaction(ctx, postingRequest(period.PeriodID, checking.AccountID, savings.AccountID, dec("100")), "bookkeeper", false)
	require.NoError(t, err)

	report, err := env.services.Validator.CheckLedgerIntegrity(ctx)
	require.NoError(t, err)
	assert.True(t, report.Valid())
	require.Len(t, report.Violations, 1)
	assert.Equal(t, "LEDGER_ABNORMAL_BALANCE", report.Violations[0].Code)
	assert.Equal(t, domain.SeverityWarning, report.Violations[0].Severity)
	assert.Equal(t, savings.AccountID, report.Violations[0].EntityID)
}

func TestCheckCapitalAccountReconciliation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	fx := newCloseFixture(t, env)

	_, err := env.services.PeriodClose.InitiateClose(ctx, fx.period.PeriodID, dec("10000"), "admin")
	require.NoError(t, err)
	_, err = env.services.PeriodClose.RecordApproval(ctx, fx.period.PeriodID, "gov-1")
	require.NoError(t, err)
	_, err = env.services.PeriodClose.RecordApproval(ctx, fx.period.PeriodID, "gov-2")
	require.NoError(t, err)

	report, err := env.services.Validator.CheckCapitalAccountReconciliation(ctx, fx.ada.MemberID)
	require.NoError(t, err)
	assert.True(t, report.Valid())

	// Empty member ID sweeps every account.
	report, err = env.services.Validator.CheckCapitalAccountReconciliation(ctx, "")
	require.NoError(t, err)
	assert.True(t, report.Valid())
}

func TestCheckCapitalAccountReconciliation_MissingAccount(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	report, err := env.services.Validator.CheckCapitalAccountReconciliation(ctx, "ghost")
	require.NoError(t, err)
	require.False(t, report.Valid())
	require.Len(t, report.Violations, 1)
	assert.Equal(t, "CAPITAL_ACCOUNT_MISSING", report.Violations[0].Code)
}

func TestCheckAllocationCompliance_AfterClose(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	fx := newCloseFixture(t, env)

	_, err := env.services.PeriodClose.InitiateClose(ctx, fx.period.PeriodID, dec("10000"), "admin")
	require.NoError(t, err)

	// The check reads the surplus pinned on the close workflow, so it verifies
	// the allocations against the figure the close actually ran with.
	report, err := env.services.Validator.CheckAllocationCompliance(ctx, fx.period.PeriodID)
	require.NoError(t, err)
	assert.True(t, report.Valid())

	// A tampered allocation row no longer sums to the pinned surplus.
	repo, ok := env.repos.AllocationRepo.(*memAllocationRepo)
	require.True(t, ok)
	repo.mu.Lock()
	for id, a := range repo.allocations {
		a.TotalAllocation = a.TotalAllocation.Add(dec("500"))
		repo.allocations[id] = a
		break
	}
	repo.mu.Unlock()

	report, err = env.services.Validator.CheckAllocationCompliance(ctx, fx.period.PeriodID)
	require.NoError(t, err)
	assert.False(t, report.Valid())
}

func TestCheckAllocationCompliance_RequiresCloseWorkflow(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	period := env.openPeriod(t, "FY2025")

	_, err := env.services.Validator.CheckAllocationCompliance(ctx, period.PeriodID)
	require.ErrorIs(t, err, apperrors.ErrNotFound)
}
