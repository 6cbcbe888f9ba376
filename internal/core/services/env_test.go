package services_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/commonward/coop_ledger_app/internal/core/domain"
	portsrepo "github.com/commonward/coop_ledger_app/internal/core/ports/repositories"
	portssvc "github.com/commonward/coop_ledger_app/internal/core/ports/services"
	"github.com/commonward/coop_ledger_app/internal/core/services"
	"github.com/commonward/coop_ledger_app/internal/dto"
	"github.com/commonward/coop_ledger_app/internal/eventbus"
	"github.com/commonward/coop_ledger_app/internal/platform/config"
	"github.com/commonward/coop_ledger_app/internal/projector"
	"github.com/commonward/coop_ledger_app/internal/reactors"
)

func testConfig() *config.Config {
	return &config.Config{
		LaborWeight:         1.0,
		ExpertiseWeight:     1.5,
		CapitalWeight:       1.0,
		RelationshipWeight:  0.5,
		CashRate:            0.20,
		RegulatoryMinCash:   0.20,
		MaxConcentration:    0.50,
		BookTaxDivergence:   0.0,
		CloseApprovalQuorum: 2,
	}
}

// testEnv wires the full in-process pipeline on in-memory repositories: the
// event store, the bus, the projector, the reactor dispatcher, and the
// service container. Tests drive services exactly the way handlers do.
type testEnv struct {
	repos     portsrepo.RepositoryProvider
	store     *memEventStore
	bus       *eventbus.Bus
	projector *projector.Projector
	services  *portssvc.ServiceContainer
	formula   *services.FormulaEngine
	cfg       *config.Config
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	repos, store := newMemProvider()
	bus := eventbus.New()

	proj := projector.New(repos)
	bus.Subscribe(proj)

	cfg := testConfig()
	container := services.NewServiceContainer(cfg, repos, bus)
	formula := services.NewFormulaEngine(cfg.FormulaConfig())

	dispatcher := reactors.NewDispatcher(
		repos.IdempotencyRepo,
		reactors.RetryPolicy{MaxAttempts: 1},
		reactors.NewContributionApprovedReactor(repos, bus, formula),
		reactors.NewAllocationApprovedReactor(repos, bus, formula),
		reactors.NewDistributionCompletedReactor(repos, bus, container.Ledger, formula, ""),
	)
	bus.Subscribe(dispatcher)

	return &testEnv{
		repos:     repos,
		store:     store,
		bus:       bus,
		projector: proj,
		services:  container,
		formula:   formula,
		cfg:       cfg,
	}
}

func (env *testEnv) openPeriod(t *testing.T, name string) *domain.Period {
	t.Helper()
	period, err := env.services.Period.OpenPeriod(context.Background(), dto.OpenPeriodRequest{
		Name:  name,
		Start: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
		End:   time.Date(2025, 12, 31, 0, 0, 0, 0, time.UTC),
	}, "admin")
	require.NoError(t, err)
	return period
}

func (env *testEnv) enrollMember(t *testing.T, name string) *domain.Member {
	t.Helper()
	member, err := env.services.Member.EnrollMember(context.Background(), dto.EnrollMemberRequest{
		Name: name,
		Tier: "WORKER",
	}, "admin")
	require.NoError(t, err)
	return member
}

func (env *testEnv) openAccount(t *testing.T, number, name string, accountType domain.AccountType) *domain.Account {
	t.Helper()
	account, err := env.services.Ledger.OpenAccount(context.Background(), dto.OpenAccountRequest{
		Number:      number,
		Name:        name,
		AccountType: string(accountType),
		Ledger:      string(domain.BookLedger),
	}, "admin")
	require.NoError(t, err)
	return account
}

// withLedgerSettlement opens an equity suspense account and rewires the
// period-close service to post the allocation settlement against it. Kept
// out of newTestEnv so tests that count events see an untouched log.
func (env *testEnv) withLedgerSettlement(t *testing.T) *domain.Account {
	t.Helper()
	equity := env.openAccount(t, "3100", "Patronage Suspense", domain.Equity)
	env.services.PeriodClose = services.NewPeriodCloseService(
		env.repos, env.bus, env.services.Period, env.services.Ledger,
		env.formula, env.cfg.CloseApprovalQuorum, equity.AccountID,
	)
	return equity
}

// approvedLaborContribution submits and approves a labor contribution,
// which triggers the claim reactor.
func (env *testEnv) approvedLaborContribution(t *testing.T, memberID, periodID string, hours, rate float64) *domain.Contribution {
	t.Helper()
	ctx := context.Background()
	contribution, err := env.services.Contribution.SubmitContribution(ctx, dto.SubmitContributionRequest{
		MemberID:   memberID,
		PeriodID:   periodID,
		Type:       string(domain.ContribLabor),
		Hours:      decimal.NewFromFloat(hours),
		HourlyRate: decimal.NewFromFloat(rate),
	}, memberID)
	require.NoError(t, err)

	approved, err := env.services.Contribution.ApproveContribution(ctx, contribution.ContributionID, "reviewer")
	require.NoError(t, err)
	return approved
}

func (env *testEnv) approvedStatedContribution(t *testing.T, memberID, periodID string, contribType domain.ContributionType, value float64) *domain.Contribution {
	t.Helper()
	ctx := context.Background()
	contribution, err := env.services.Contribution.SubmitContribution(ctx, dto.SubmitContributionRequest{
		MemberID:    memberID,
		PeriodID:    periodID,
		Type:        string(contribType),
		StatedValue: decimal.NewFromFloat(value),
	}, memberID)
	require.NoError(t, err)

	approved, err := env.services.Contribution.ApproveContribution(ctx, contribution.ContributionID, "reviewer")
	require.NoError(t, err)
	return approved
}

// corruptEntryAmount rewrites one leg of a projected transaction in place,
// simulating projection drift for the integrity validators.
func (env *testEnv) corruptEntryAmount(t *testing.T, transactionID string, direction domain.EntryDirection, amount decimal.Decimal) {
	t.Helper()
	repo, ok := env.repos.TransactionRepo.(*memTransactionRepo)
	require.True(t, ok)

	repo.mu.Lock()
	defer repo.mu.Unlock()
	txn, found := repo.txns[transactionID]
	require.True(t, found)
	for i := range txn.Entries {
		if txn.Entries[i].Direction == direction {
			txn.Entries[i].Amount = amount
			break
		}
	}
	repo.txns[transactionID] = txn
}

// corruptEntryAccount repoints one leg of a projected transaction at another
// account, for the account-existence integrity checks.
func (env *testEnv) corruptEntryAccount(t *testing.T, transactionID string, direction domain.EntryDirection, accountID string) {
	t.Helper()
	repo, ok := env.repos.TransactionRepo.(*memTransactionRepo)
	require.True(t, ok)

	repo.mu.Lock()
	defer repo.mu.Unlock()
	txn, found := repo.txns[transactionID]
	require.True(t, found)
	for i := range txn.Entries {
		if txn.Entries[i].Direction == direction {
			txn.Entries[i].AccountID = accountID
			break
		}
	}
	repo.txns[transactionID] = txn
}

func dec(v string) decimal.Decimal {
	d, err := decimal.NewFromString(v)
	if err != nil {
		panic(err)
	}
	return d
}
